package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tonic-lang/tonic/internal/deps"
)

func newDepsCmd(log *logrus.Logger) *cobra.Command {
	cmd := &cobra.Command{Use: "deps", Short: "manage project dependencies"}
	cmd.AddCommand(newDepsLockCmd(), newDepsSyncCmd(log))
	return cmd
}

func loadManifest(root string) (*deps.Manifest, error) {
	data, err := os.ReadFile(filepath.Join(root, "tonic.toml"))
	if err != nil {
		return nil, fmt.Errorf("reading tonic.toml: %w", err)
	}
	return deps.ParseManifest(data)
}

func newDepsLockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lock",
		Short: "generate tonic.lock from tonic.toml in the current directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := os.Getwd()
			if err != nil {
				return err
			}
			manifest, err := loadManifest(root)
			if err != nil {
				return err
			}
			lock := deps.GenerateLockfile(manifest)
			data, err := deps.Encode(lock)
			if err != nil {
				return err
			}
			if err := os.WriteFile(filepath.Join(root, "tonic.lock"), data, 0o644); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "tonic.lock")
			return nil
		},
	}
}

func newDepsSyncCmd(log *logrus.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "fetch git dependencies recorded in tonic.lock",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := os.Getwd()
			if err != nil {
				return err
			}
			lockData, err := os.ReadFile(filepath.Join(root, "tonic.lock"))
			if err != nil {
				return fmt.Errorf("reading tonic.lock: %w", err)
			}
			lock, err := deps.ParseLockfile(lockData)
			if err != nil {
				return err
			}
			resolver := deps.NewResolver(root)
			if err := resolver.Sync(lock); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "synced")
			return nil
		},
	}
}
