package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	diffpatch "github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"

	"github.com/vault-md/textrepo/internal/gitsync"
	"github.com/vault-md/textrepo/internal/segments"
)

func newUpdateCmd() *cobra.Command {
	var (
		value    string
		oldValue string
		fromFile string
		author   authorFlags
	)

	cmd := &cobra.Command{
		Use:   "update <segment-id> <field>",
		Short: "Write one segment and add it to the commit batch",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if fromFile != "" {
				content, err := readContent(cmd, fromFile)
				if err != nil {
					return err
				}
				value = strings.TrimRight(content, "\n")
			}

			who, err := author.resolve()
			if err != nil {
				return err
			}

			r, err := openRepository()
			if err != nil {
				return err
			}
			defer closeRepository(cmd, r)

			res, err := r.Segments.UpdateSegment(cmd.Context(), segments.Update{
				SegmentID: args[0],
				Field:     args[1],
				Value:     value,
				OldValue:  oldValue,
			}, who)
			if err != nil {
				return err
			}
			if res.Error != "" {
				return fmt.Errorf("%s: %s", args[0], res.Error)
			}

			out := cmd.OutOrStdout()
			if res.Clobbered != nil {
				color.New(color.FgYellow).Fprintf(out, "Warning: %s had changed since it was read; replaced text:\n", args[0])
				writeDiff(out, *res.Clobbered, value)
			}
			if res.Changed {
				fmt.Fprintln(out, "Segment updated")
			} else {
				fmt.Fprintln(out, "No changes made")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&value, "value", "", "New segment text")
	cmd.Flags().StringVar(&oldValue, "old", "", "Segment text the edit was based on")
	cmd.Flags().StringVarP(&fromFile, "file", "f", "", "Read the new text from a file ('-' for stdin)")
	author.register(cmd)

	return cmd
}

// writeDiff prints a character diff from the replaced text to the new text.
func writeDiff(w io.Writer, from, to string) {
	dmp := diffpatch.New()
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(from, to, false))

	removed := color.New(color.FgRed, color.CrossedOut).SprintFunc()
	added := color.New(color.FgGreen).SprintFunc()

	var b strings.Builder
	for _, d := range diffs {
		switch d.Type {
		case diffpatch.DiffDelete:
			b.WriteString(removed(d.Text))
		case diffpatch.DiffInsert:
			b.WriteString(added(d.Text))
		case diffpatch.DiffEqual:
			b.WriteString(d.Text)
		}
	}
	fmt.Fprintf(w, "  %s\n", b.String())
}

type authorFlags struct {
	login string
	name  string
	email string
}

func (a *authorFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&a.login, "login", "", "Author login used in commit messages")
	cmd.Flags().StringVar(&a.name, "name", "", "Author name (defaults to the login)")
	cmd.Flags().StringVar(&a.email, "email", "", "Author email")
}

func (a *authorFlags) resolve() (gitsync.Author, error) {
	if a.login == "" {
		return gitsync.Author{}, errors.New("--login is required")
	}
	email := a.email
	if email == "" {
		email = a.login + "@users.noreply.textrepo"
	}
	return gitsync.Author{Login: a.login, Name: a.name, Email: email}, nil
}
