package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
)

func newProblemsCmd() *cobra.Command {
	var (
		limit         int
		format        string
		notifications bool
		clearJournal  bool
		file          string
	)

	cmd := &cobra.Command{
		Use:   "problems",
		Short: "List recorded data problems or operator notifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}

			r, err := openRepository()
			if err != nil {
				return err
			}
			defer closeRepository(cmd, r)

			ctx := cmd.Context()
			if clearJournal {
				if err := r.ClearJournal(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Journal cleared")
				return nil
			}
			if file != "" {
				n, err := r.ProblemCount(ctx, file)
				if err != nil {
					return err
				}
				if format == "json" {
					return outputJSON(cmd, map[string]any{"file": file, "count": n})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d problem(s) recorded for %s\n", n, file)
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			width := textWidth(2, 1)

			if notifications {
				list, err := r.Notifier.List(ctx, limit)
				if err != nil {
					return err
				}
				if format == "json" {
					return outputJSON(cmd, list)
				}
				t.AppendHeader(table.Row{"Created", "Title", "Message"})
				for _, n := range list {
					t.AppendRow(table.Row{
						n.CreatedAt.Local().Format("2006-01-02 15:04:05"),
						n.Title,
						runewidth.Truncate(n.Message, width, "..."),
					})
				}
				t.Render()
				return nil
			}

			list, err := r.Problems.List(ctx, limit)
			if err != nil {
				return err
			}
			if format == "json" {
				return outputJSON(cmd, list)
			}
			t.AppendHeader(table.Row{"Created", "File", "Message"})
			for _, p := range list {
				t.AppendRow(table.Row{
					p.CreatedAt.Local().Format("2006-01-02 15:04:05"),
					wrapString(p.File, width),
					runewidth.Truncate(p.Message, width, "..."),
				})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of rows")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table or json")
	cmd.Flags().BoolVar(&notifications, "notifications", false, "List operator notifications instead")
	cmd.Flags().BoolVar(&clearJournal, "clear", false, "Remove recorded problems, notifications and pending search updates")
	cmd.Flags().StringVar(&file, "file", "", "Count the problems recorded for one repository path")
	cmd.MarkFlagsMutuallyExclusive("clear", "file", "notifications")

	return cmd
}
