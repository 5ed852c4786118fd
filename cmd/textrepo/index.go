package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newIndexCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build the repository index",
		Long:  "Restore the persisted index snapshot, or walk the repository when --force is set or no valid snapshot exists.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := openRepository()
			if err != nil {
				return err
			}
			defer closeRepository(cmd, r)

			ctx := cmd.Context()
			start := time.Now()
			if err := r.Index.Build(ctx, force); err != nil {
				return err
			}
			snap, err := r.Index.Current(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d documents (%d uids) in %s\n",
				len(snap.Files), len(snap.UIDs), time.Since(start).Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Walk the repository even if a snapshot exists")

	return cmd
}
