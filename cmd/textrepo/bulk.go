package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newBulkCmd() *cobra.Command {
	var (
		message string
		author  authorFlags
	)

	cmd := &cobra.Command{
		Use:   "bulk <path>...",
		Short: "Commit files as one change and push immediately",
		Long:  "Commit the given repository-relative paths as a single bulk commit. A pending edit batch is pushed first; bulk commits are never amended.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			who, err := author.resolve()
			if err != nil {
				return err
			}

			r, err := openRepository()
			if err != nil {
				return err
			}
			defer closeRepository(cmd, r)

			for _, p := range args {
				if _, err := os.Stat(filepath.Join(r.Git.Dir(), filepath.FromSlash(p))); err != nil {
					return fmt.Errorf("cannot commit %s: %w", p, err)
				}
			}

			if err := r.Bulk(cmd.Context(), who, message, args...); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Committed %d files\n", len(args))
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "Commit message (default \"Bulk update\")")
	author.register(cmd)

	return cmd
}
