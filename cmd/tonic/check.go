package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tonic-lang/tonic/internal/ir"
	"github.com/tonic-lang/tonic/internal/lexer"
	"github.com/tonic-lang/tonic/internal/mir"
	"github.com/tonic-lang/tonic/internal/parser"
	"github.com/tonic-lang/tonic/internal/resolver"
)

func newCheckCmd() *cobra.Command {
	var dumpTokens, dumpAST, dumpIR, dumpMIR bool
	cmd := &cobra.Command{
		Use:   "check <path>",
		Short: "parse, resolve, and type-check a Tonic program without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			set := 0
			for _, b := range []bool{dumpTokens, dumpAST, dumpIR, dumpMIR} {
				if b {
					set++
				}
			}
			if set > 1 {
				return &usageError{msg: "--dump-tokens, --dump-ast, --dump-ir, and --dump-mir are mutually exclusive"}
			}

			path := args[0]
			source, err := readSource(path)
			if err != nil {
				return err
			}

			if dumpTokens {
				tokens, err := lexer.Lex(source)
				if err != nil {
					return err
				}
				return dumpJSON(cmd, tokens)
			}

			mods, err := parser.Parse(source)
			if err != nil {
				return err
			}
			if dumpAST {
				return dumpJSON(cmd, mods)
			}

			if err := resolver.Resolve(mods); err != nil {
				return err
			}
			if err := resolver.Typecheck(mods); err != nil {
				return err
			}

			irFns, err := ir.Lower(mods)
			if err != nil {
				return err
			}
			if dumpIR {
				return dumpJSON(cmd, irFns)
			}

			fns, err := mir.Build(irFns)
			if err != nil {
				return err
			}
			if dumpMIR {
				return dumpJSON(cmd, fns)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
	cmd.Flags().BoolVar(&dumpTokens, "dump-tokens", false, "print the token stream as JSON")
	cmd.Flags().BoolVar(&dumpAST, "dump-ast", false, "print the parsed AST as JSON")
	cmd.Flags().BoolVar(&dumpIR, "dump-ir", false, "print lowered IR as JSON")
	cmd.Flags().BoolVar(&dumpMIR, "dump-mir", false, "print built MIR as JSON")
	return cmd
}

func dumpJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
