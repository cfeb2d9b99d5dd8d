package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tonic-lang/tonic/internal/ast"
	"github.com/tonic-lang/tonic/internal/parser"
)

// newDocsCmd lists every module's public function signatures. Per
// spec.md §1, the richer "markdown/JSON report renderers" a full docs
// tool would use are an external collaborator's concern; this command
// only surfaces the signature data the parser already has.
func newDocsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "docs <path>",
		Short: "list a Tonic program's public function signatures",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := readSource(args[0])
			if err != nil {
				return err
			}
			mods, err := parser.Parse(source)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, mod := range mods {
				fmt.Fprintf(out, "defmodule %s\n", mod.Name)
				for _, fn := range mod.Functions {
					if fn.Visibility != ast.Public {
						continue
					}
					fmt.Fprintf(out, "  def %s/%d\n", fn.Name, len(fn.Params))
				}
			}
			return nil
		},
	}
}
