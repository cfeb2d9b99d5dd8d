package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tonic-lang/tonic/internal/host"
	"github.com/tonic-lang/tonic/internal/interp"
	"github.com/tonic-lang/tonic/internal/profiling"
	"github.com/tonic-lang/tonic/internal/runtime"
)

type testReport struct {
	Module string `json:"module"`
	Passed bool   `json:"passed"`
	Result string `json:"result"`
}

// newTestCmd wires the interpreter (the same backend `run` uses,
// spec.md §4.6.1's "also used as the authority for behavioural catalog
// tests") to a program's own `test/0` entrypoint, the convention this
// language uses for in-source test bodies.
func newTestCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "test <path>",
		Short: "run a Tonic program's test/0 entrypoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "" && format != "json" {
				return &usageError{msg: fmt.Sprintf("unknown --format %q", format)}
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

			i := interp.New(interp.Options{Stdout: cmd.OutOrStdout(), Stderr: cmd.ErrOrStderr()})
			for name, fn := range host.Standard(host.Options{EnableTestHosts: true}) {
				i.RegisterHost(name, fn)
			}
			i.Load(result.fns)

			var value runtime.Value
			testErr := prof.Track(profiling.PhaseRunEvaluateEntry, func() error {
				var runErr error
				value, runErr = i.Eval(result.entryModule, "test", nil)
				return runErr
			})

			report := testReport{Module: result.entryModule, Passed: testErr == nil}
			if testErr != nil {
				report.Result = testErr.Error()
			} else {
				report.Result = runtime.Render(value)
			}

			if format == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			} else if report.Passed {
				fmt.Fprintf(cmd.OutOrStdout(), "PASS %s: %s\n", report.Module, report.Result)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "FAIL %s: %s\n", report.Module, report.Result)
			}

			if !report.Passed {
				os.Exit(1)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "output format (json or plain text)")
	return cmd
}
