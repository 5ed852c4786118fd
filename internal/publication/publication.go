// Package publication compares the working branch with the published branch.
package publication

import (
	"context"
	"fmt"
	"strings"

	"github.com/vault-md/textrepo/internal/git"
)

// File states.
const (
	Published   = "PUBLISHED"
	Unpublished = "UNPUBLISHED"
	Modified    = "MODIFIED"
)

// Git is the subset of repository operations publication needs.
type Git interface {
	DiffNumstat(ctx context.Context, from, to string) ([]git.NumstatEntry, error)
	ListTree(ctx context.Context, ref string) ([]git.TreeEntry, error)
}

// Tally counts files per state below a directory.
type Tally struct {
	Published   int `json:"PUBLISHED"`
	Unpublished int `json:"UNPUBLISHED"`
	Modified    int `json:"MODIFIED"`
}

func (t *Tally) add(state string) {
	switch state {
	case Published:
		t.Published++
	case Unpublished:
		t.Unpublished++
	case Modified:
		t.Modified++
	}
}

// StateReport holds the state of every file and a tally for every directory
// prefix. The repository root is the empty prefix.
type StateReport struct {
	Files       map[string]string `json:"files"`
	Directories map[string]*Tally `json:"directories"`
}

// CountReport holds changed line counts per file and changed file counts
// per directory prefix.
type CountReport struct {
	Files       map[string]int `json:"files"`
	Directories map[string]int `json:"directories"`
}

// LineCounts compares two branches with diff --numstat. Each file maps to its
// added plus deleted lines; each ancestor directory of a changed file is
// incremented once per file.
func LineCounts(ctx context.Context, repo Git, from, to string) (*CountReport, error) {
	entries, err := repo.DiffNumstat(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to diff %s..%s: %w", from, to, err)
	}

	report := &CountReport{Files: map[string]int{}, Directories: map[string]int{}}
	for _, e := range entries {
		report.Files[e.Path] = e.Added + e.Deleted
		for _, dir := range ancestors(e.Path) {
			report.Directories[dir]++
		}
	}
	return report, nil
}

// State classifies every file on the unpublished branch: absent from the
// published branch, identical there, or different.
func State(ctx context.Context, repo Git, published, unpublished string) (*StateReport, error) {
	pub, err := blobs(ctx, repo, published)
	if err != nil {
		return nil, err
	}
	unpub, err := blobs(ctx, repo, unpublished)
	if err != nil {
		return nil, err
	}

	report := &StateReport{Files: map[string]string{}, Directories: map[string]*Tally{}}
	for path, hash := range unpub {
		state := Unpublished
		if pubHash, ok := pub[path]; ok {
			if pubHash == hash {
				state = Published
			} else {
				state = Modified
			}
		}
		report.Files[path] = state

		for _, dir := range ancestors(path) {
			tally, ok := report.Directories[dir]
			if !ok {
				tally = &Tally{}
				report.Directories[dir] = tally
			}
			tally.add(state)
		}
	}
	return report, nil
}

func blobs(ctx context.Context, repo Git, ref string) (map[string]string, error) {
	entries, err := repo.ListTree(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", ref, err)
	}
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		out[e.Path] = e.Hash
	}
	return out, nil
}

// ancestors returns every directory prefix of path, starting with "".
func ancestors(path string) []string {
	parts := strings.Split(path, "/")
	dirs := make([]string, 0, len(parts))
	for i := 0; i < len(parts); i++ {
		dirs = append(dirs, strings.Join(parts[:i], "/"))
	}
	return dirs
}
