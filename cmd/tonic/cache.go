package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// newCacheCmd reports on (and optionally clears) the project build
// cache under .tonic/cache relative to the current directory.
func newCacheCmd(log *logrus.Logger) *cobra.Command {
	var clear bool
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "inspect or clear the build cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := os.Getwd()
			if err != nil {
				return err
			}
			cacheDir := filepath.Join(root, ".tonic", "cache")

			if clear {
				if err := os.RemoveAll(cacheDir); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "cache cleared")
				return nil
			}

			entries, err := os.ReadDir(cacheDir)
			if err != nil {
				if os.IsNotExist(err) {
					fmt.Fprintln(cmd.OutOrStdout(), "cache empty: "+cacheDir)
					return nil
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d entries\n", cacheDir, len(entries))
			return nil
		},
	}
	cmd.Flags().BoolVar(&clear, "clear", false, "remove the cache directory")
	return cmd
}
