package main

import (
	"slices"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/vault-md/textrepo/internal/publication"
)

func newPublicationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publication",
		Short: "Compare the working branch with the published branch",
	}
	cmd.AddCommand(newPublicationStateCmd())
	cmd.AddCommand(newPublicationCountsCmd())
	return cmd
}

func newPublicationStateCmd() *cobra.Command {
	var (
		format string
		files  bool
	)

	cmd := &cobra.Command{
		Use:   "state",
		Short: "Show which files are published, unpublished, or modified",
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

			report, err := r.PublicationState(cmd.Context())
			if err != nil {
				return err
			}
			if format == "json" {
				return outputJSON(cmd, report)
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			width := textWidth(3, 1)
			if files {
				t.AppendHeader(table.Row{"File", "State"})
				for _, path := range sortedKeys(report.Files) {
					t.AppendRow(table.Row{wrapString(path, width), report.Files[path]})
				}
			} else {
				t.AppendHeader(table.Row{"Directory", publication.Published, publication.Modified, publication.Unpublished})
				for _, dir := range sortedKeys(report.Directories) {
					tally := report.Directories[dir]
					t.AppendRow(table.Row{wrapString(displayDir(dir), width), tally.Published, tally.Modified, tally.Unpublished})
				}
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "Output format: table or json")
	cmd.Flags().BoolVar(&files, "files", false, "List files instead of directory tallies")

	return cmd
}

func newPublicationCountsCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "counts",
		Short: "Count changed lines not yet published",
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

			report, err := r.PublicationCounts(cmd.Context())
			if err != nil {
				return err
			}
			if format == "json" {
				return outputJSON(cmd, report)
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			width := textWidth(1, 1)
			t.AppendHeader(table.Row{"Path", "Changed"})
			for _, dir := range sortedKeys(report.Directories) {
				t.AppendRow(table.Row{wrapString(displayDir(dir)+"/", width), report.Directories[dir]})
			}
			t.AppendSeparator()
			for _, path := range sortedKeys(report.Files) {
				t.AppendRow(table.Row{wrapString(path, width), report.Files[path]})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "Output format: table or json")

	return cmd
}

func displayDir(dir string) string {
	if dir == "" {
		return "."
	}
	return dir
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
