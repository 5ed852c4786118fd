package publication

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vault-md/textrepo/internal/git"
)

type fakeGit struct {
	numstat []git.NumstatEntry
	trees   map[string][]git.TreeEntry
}

func (f *fakeGit) DiffNumstat(context.Context, string, string) ([]git.NumstatEntry, error) {
	return f.numstat, nil
}

func (f *fakeGit) ListTree(_ context.Context, ref string) ([]git.TreeEntry, error) {
	entries, ok := f.trees[ref]
	if !ok {
		return nil, errors.New("unknown ref")
	}
	return entries, nil
}

func blob(path, hash string) git.TreeEntry {
	return git.TreeEntry{Mode: "100644", Type: "blob", Hash: hash, Path: path}
}

func TestLineCounts(t *testing.T) {
	repo := &fakeGit{numstat: []git.NumstatEntry{
		{Path: "translation/en/dn1.json", Added: 3, Deleted: 1},
		{Path: "translation/en/dn2.json", Added: 0, Deleted: 2},
		{Path: "readme.md", Added: 1},
	}}

	report, err := LineCounts(context.Background(), repo, "unpublished", "published")
	require.NoError(t, err)

	assert.Equal(t, 4, report.Files["translation/en/dn1.json"])
	assert.Equal(t, 2, report.Files["translation/en/dn2.json"])
	assert.Equal(t, 3, report.Directories[""])
	assert.Equal(t, 2, report.Directories["translation"])
	assert.Equal(t, 2, report.Directories["translation/en"])
	assert.NotContains(t, report.Directories, "translation/en/dn1.json")
}

func TestState(t *testing.T) {
	repo := &fakeGit{trees: map[string][]git.TreeEntry{
		"published": {
			blob("tr/en/dn1.json", "aaa"),
			blob("tr/en/dn2.json", "bbb"),
			blob("gone.json", "zzz"),
		},
		"unpublished": {
			blob("tr/en/dn1.json", "aaa"),
			blob("tr/en/dn2.json", "ccc"),
			blob("tr/de/dn1.json", "ddd"),
		},
	}}

	report, err := State(context.Background(), repo, "published", "unpublished")
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"tr/en/dn1.json": Published,
		"tr/en/dn2.json": Modified,
		"tr/de/dn1.json": Unpublished,
	}, report.Files)
	assert.Equal(t, &Tally{Published: 1, Modified: 1, Unpublished: 1}, report.Directories[""])
	assert.Equal(t, &Tally{Published: 1, Modified: 1}, report.Directories["tr/en"])
	assert.Equal(t, &Tally{Unpublished: 1}, report.Directories["tr/de"])
}

func TestStateUnknownRef(t *testing.T) {
	_, err := State(context.Background(), &fakeGit{}, "published", "unpublished")
	assert.Error(t, err)
}
