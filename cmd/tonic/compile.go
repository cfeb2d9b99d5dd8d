package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tonic-lang/tonic/internal/cache"
	"github.com/tonic-lang/tonic/internal/cbackend"
	"github.com/tonic-lang/tonic/internal/linker"
	"github.com/tonic-lang/tonic/internal/profiling"
)

func newCompileCmd(log *logrus.Logger) *cobra.Command {
	var out, backend string
	cmd := &cobra.Command{
		Use:   "compile <path>",
		Short: "compile a Tonic program to a native executable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if backend != "" && backend != "llvm" {
				return &usageError{msg: fmt.Sprintf("unknown --backend %q", backend)}
			}

			path := args[0]
			if err := preflightDeps(path); err != nil {
				return err
			}

			source, err := readSource(path)
			if err != nil {
				return err
			}

			prof, err := profiling.FromEnv()
			if err != nil {
				return err
			}
			defer prof.Close()

			result, err := compileFile(prof, source)
			if err != nil {
				return err
			}

			var cSource string
			if err := prof.Track(profiling.PhaseBackendEmit, func() error {
				var genErr error
				cSource, genErr = cbackend.Generate(result.entryModule, result.fns)
				return genErr
			}); err != nil {
				return err
			}

			compilerPath, err := linker.FindCompiler()
			if err != nil {
				return err
			}

			outPath := out
			if outPath == "" {
				store := cache.NewStore(projectRootFor(path), log)
				outPath = store.BuildArtifactPath(result.entryModule, "")
			}
			if err := linker.Link(compilerPath, cSource, outPath); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), outPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "output executable path (default .tonic/build/<entry>)")
	cmd.Flags().StringVar(&backend, "backend", "", "native backend to use (only llvm is accepted, reserved for parity with the original toolchain)")
	return cmd
}
