// Command tonic is the Tonic language driver: run|check|compile|test|
// fmt|docs|deps|verify|cache, per spec.md §6. Each subcommand's RunE
// does flag parsing and exit-code mapping only; all real behavior
// lives in the internal/* packages it calls straight into.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// usageExit is the exit code for missing/unknown arguments and
// mutually-exclusive flag violations, per spec.md §6.
const usageExit = 64

func main() {
	log := logrus.New()
	root := &cobra.Command{
		Use:           "tonic",
		Short:         "Tonic language compiler and runtime",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newRunCmd(log),
		newCheckCmd(),
		newCompileCmd(log),
		newTestCmd(),
		newFmtCmd(),
		newDocsCmd(),
		newDepsCmd(log),
		newVerifyCmd(),
		newCacheCmd(log),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if code, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(code.ExitCode())
		}
		os.Exit(1)
	}
}

// usageError marks an error as a usage violation (exit 64) rather than
// a compile/runtime failure (exit 1).
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }
func (e *usageError) ExitCode() int { return usageExit }

func readSource(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}
