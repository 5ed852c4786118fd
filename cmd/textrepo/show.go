package main

import (
	"slices"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/vault-md/textrepo/internal/segments"
)

func newShowCmd() *cobra.Command {
	var (
		root     string
		tertiary string
		format   string
	)

	cmd := &cobra.Command{
		Use:   "show <long-id>",
		Short: "Show a document merged with its root and related documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}

			r, err := openRepository()
			if err != nil {
				return err
			}
			defer closeRepository(cmd, r)

			merged, err := r.Segments.GetMergedDocument(cmd.Context(), args[0], root, tertiary)
			if err != nil {
				return err
			}

			if format == "json" {
				return outputJSON(cmd, merged)
			}
			outputMerged(cmd, merged)
			return nil
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "Comma-separated root selectors (default: the canonical root)")
	cmd.Flags().StringVar(&tertiary, "tertiary", "", "Comma-separated muid selectors, each hyphen-separated")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table or json")

	return cmd
}

func outputMerged(cmd *cobra.Command, merged *segments.MergedDocument) {
	columns := []string{merged.TargetField}
	if merged.SourceField != "" {
		columns = append(columns, merged.SourceField)
	}
	var others []string
	for field := range merged.Fields {
		if field != merged.TargetField && field != merged.SourceField {
			others = append(others, field)
		}
	}
	slices.Sort(others)
	columns = append(columns, others...)

	header := table.Row{"Segment"}
	for _, c := range columns {
		header = append(header, c)
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(header)

	width := textWidth(1, len(columns))
	for _, entry := range merged.Segments {
		row := table.Row{entry.ID}
		for _, c := range columns {
			row = append(row, wrapString(runewidth.Truncate(entry.Values[c], width*3, "..."), width))
		}
		t.AppendRow(row)
	}

	t.Render()
}
