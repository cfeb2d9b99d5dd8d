package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tonic-lang/tonic/internal/host"
	"github.com/tonic-lang/tonic/internal/interp"
	"github.com/tonic-lang/tonic/internal/profiling"
	"github.com/tonic-lang/tonic/internal/runtime"
)

func newRunCmd(log *logrus.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "run <path> [args...]",
		Short: "compile and run a Tonic program with the tree-walking interpreter",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, programArgs := args[0], args[1:]

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

			i := interp.New(interp.Options{
				Stdout: cmd.OutOrStdout(),
				Stderr: cmd.ErrOrStderr(),
				Args:   programArgs,
			})
			for name, fn := range host.Standard(host.Options{Args: programArgs}) {
				i.RegisterHost(name, fn)
			}
			i.Load(result.fns)

			var value runtime.Value
			if err := prof.Track(profiling.PhaseRunEvaluateEntry, func() error {
				var runErr error
				value, runErr = i.Run(result.entryModule)
				return runErr
			}); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "error: %s\n", err.Error())
				os.Exit(1)
			}
			// A Result-typed entrypoint that unwinds via `?` all the way
			// to the top returns Err(x) as an ordinary value, not a Go
			// error; spec.md §7 gives this its own message shape.
			if value.Kind == runtime.KResultErr {
				fmt.Fprintf(cmd.ErrOrStderr(), "error: runtime returned err(%s)\n", runtime.Render(*value.Inner))
				os.Exit(1)
			}
			fmt.Fprintln(cmd.OutOrStdout(), runtime.Render(value))
			return nil
		},
	}
}
