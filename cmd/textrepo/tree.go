package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/vault-md/textrepo/internal/completion"
)

func newTreeCmd() *cobra.Command {
	var (
		format string
		depth  int
	)

	cmd := &cobra.Command{
		Use:   "tree [path...]",
		Short: "Show translation completion below a directory",
		Long:  "Show translated and root segment counts for every document and directory below the given path segments.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}

			r, err := openRepository()
			if err != nil {
				return err
			}
			defer closeRepository(cmd, r)

			tree, err := r.Completion.Tree(cmd.Context(), args...)
			if err != nil {
				return err
			}

			if format == "json" {
				return outputJSON(cmd, tree)
			}
			outputTree(cmd, tree, depth)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "Output format: table or json")
	cmd.Flags().IntVar(&depth, "depth", 0, "Limit displayed depth (0 for unlimited)")

	return cmd
}

func outputTree(cmd *cobra.Command, tree *completion.TreeNode, depth int) {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Name", "Translated", "Root", "Done"})

	nameWidth := textWidth(3, 1)
	var walk func(n *completion.TreeNode, level int)
	walk = func(n *completion.TreeNode, level int) {
		name := n.Name
		if name == "" {
			name = "."
		}
		if n.Type == completion.TypeNode {
			name += "/"
		}
		name = strings.Repeat("  ", level) + name
		t.AppendRow(table.Row{
			runewidth.Truncate(name, nameWidth, "..."),
			n.Translated,
			n.Root,
			percent(n.Counts),
		})
		if depth > 0 && level+1 >= depth {
			return
		}
		for _, child := range n.Children {
			walk(child, level+1)
		}
	}
	walk(tree, 0)

	t.Render()
}

func percent(c completion.Counts) string {
	if c.Root == 0 {
		return "-"
	}
	return fmt.Sprintf("%d%%", c.Translated*100/c.Root)
}
