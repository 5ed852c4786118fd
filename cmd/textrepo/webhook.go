package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/vault-md/textrepo/internal/webhook"
)

func newWebhookCmd() *cobra.Command {
	var filePath string

	cmd := &cobra.Command{
		Use:   "webhook",
		Short: "Apply a push event payload: pull and reindex",
		Long:  "Read a push webhook payload from a file or stdin, pull the tracked branch, and reindex the files it touched.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var in io.Reader = os.Stdin
			if filePath != "" && filePath != "-" {
				//nolint:gosec // G304: payload path is operator supplied
				f, err := os.Open(filePath)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			ev, err := webhook.ParsePushEvent(in)
			if err != nil {
				return err
			}

			r, err := openRepository()
			if err != nil {
				return err
			}
			defer closeRepository(cmd, r)

			outcome, err := r.Webhook.HandlePushEvent(cmd.Context(), ev)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", ev.Ref, outcome)
			return nil
		},
	}

	cmd.Flags().StringVarP(&filePath, "file", "f", "", "Payload file (default stdin)")

	return cmd
}
