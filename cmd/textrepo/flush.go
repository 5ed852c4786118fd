package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newFlushCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flush",
		Short: "Push the pending commit batch now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := openRepository()
			if err != nil {
				return err
			}
			defer closeRepository(cmd, r)

			if err := r.Sync.Flush(cmd.Context()); err != nil {
				return err
			}
			head, err := r.Git.Head(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Flushed at %s\n", shortHash(head.Hash))
			return nil
		},
	}

	return cmd
}

func shortHash(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
