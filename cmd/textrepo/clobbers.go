package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/vault-md/textrepo/internal/filesystem"
)

type clobberEntry struct {
	SegmentID string `json:"segment_id"`
	Path      string `json:"path"`
	Hash      string `json:"hash"`
	Verified  bool   `json:"verified"`
	Text      string `json:"text,omitempty"`
}

func newClobbersCmd() *cobra.Command {
	var (
		format string
		purge  bool
	)

	cmd := &cobra.Command{
		Use:   "clobbers <field> [segment-id]",
		Short: "List or purge text archived when an edit overwrote unseen changes",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			field := args[0]
			segmentID := ""
			if len(args) == 2 {
				segmentID = args[1]
			}

			if purge {
				return purgeClobbers(cmd.OutOrStdout(), field, segmentID)
			}

			entries, err := collectClobbers(field, segmentID)
			if err != nil {
				return err
			}
			if format == "json" {
				return outputJSON(cmd, entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No archived text")
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Segment", "Hash", "Status", "Text"})
			width := textWidth(3, 1)
			for _, e := range entries {
				status := "ok"
				if !e.Verified {
					status = "modified"
				}
				t.AppendRow(table.Row{e.SegmentID, shortHash(e.Hash), status, runewidth.Truncate(e.Text, width, "...")})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "Output format: table or json")
	cmd.Flags().BoolVar(&purge, "purge", false, "Delete the archived text instead of listing it")

	return cmd
}

// collectClobbers reads and verifies the archived text of a field, or of one
// segment when segmentID is set.
func collectClobbers(field, segmentID string) ([]clobberEntry, error) {
	var (
		texts []filesystem.ArchivedText
		err   error
	)
	if segmentID != "" {
		texts, err = filesystem.ListKeyFiles(field, segmentID)
	} else {
		texts, err = filesystem.ListFieldFiles(field)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list archived text for %s: %w", field, err)
	}

	entries := make([]clobberEntry, 0, len(texts))
	for _, text := range texts {
		ok, err := filesystem.VerifyFile(text.Path, text.Hash)
		if err != nil {
			return nil, fmt.Errorf("failed to verify %s: %w", text.Path, err)
		}
		content, err := filesystem.ReadFile(text.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", text.Path, err)
		}
		entries = append(entries, clobberEntry{
			SegmentID: text.SegmentID,
			Path:      text.Path,
			Hash:      text.Hash,
			Verified:  ok,
			Text:      content,
		})
	}
	return entries, nil
}

func purgeClobbers(out io.Writer, field, segmentID string) error {
	if segmentID == "" {
		if err := filesystem.DeleteFieldFiles(field); err != nil {
			return fmt.Errorf("failed to purge %s: %w", field, err)
		}
		fmt.Fprintf(out, "Purged archived text for %s\n", field)
		return nil
	}

	n, err := filesystem.DeleteKeyFiles(field, segmentID)
	if err != nil {
		return fmt.Errorf("failed to purge %s %s: %w", field, segmentID, err)
	}
	fmt.Fprintf(out, "Purged %d archived text(s) for %s %s\n", n, field, segmentID)
	return nil
}
