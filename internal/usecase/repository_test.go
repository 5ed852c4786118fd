package usecase

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/vault-md/textrepo/internal/config"
	"github.com/vault-md/textrepo/internal/gitsync"
	"github.com/vault-md/textrepo/internal/publication"
	"github.com/vault-md/textrepo/internal/segments"
)

const (
	rootPath        = "root/pli/ms/dn/dn1_root-pli-ms.json"
	translationPath = "translation/en/x/dn/dn1_translation-en-x.json"
)

func gitRun(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Skipf("Skipping test: git %v failed: %v: %s", args, err, out)
	}
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// setupRepository creates a working copy on branch unpublished with a
// published branch at the initial commit.
func setupRepository(t *testing.T) *Repository {
	t.Helper()
	t.Setenv("TEXTREPO_DIR", t.TempDir())

	dir := t.TempDir()
	gitRun(t, dir, "init")
	gitRun(t, dir, "symbolic-ref", "HEAD", "refs/heads/unpublished")
	gitRun(t, dir, "config", "user.email", "test@example.com")
	gitRun(t, dir, "config", "user.name", "Test User")
	writeFile(t, dir, "_authors.json", `{"x": {"type": "author", "root_lang": "pli", "root_edition": "ms"}}`)
	writeFile(t, dir, rootPath, `{"dn1:1.1": "Text A", "dn1:1.2": "Text B"}`)
	writeFile(t, dir, translationPath, `{"dn1:1.1": ""}`)
	gitRun(t, dir, "add", "-A")
	gitRun(t, dir, "commit", "-m", "Initial commit")
	gitRun(t, dir, "branch", "published")

	settings := config.Defaults()
	settings.RepoDir = dir
	settings.SyncEnabled = false

	r, err := Open(settings, Options{
		DBPath:       filepath.Join(t.TempDir(), "index.db"),
		SnapshotPath: "-",
		Logger:       zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close(context.Background()) })
	return r
}

func TestOpenOutsideRepository(t *testing.T) {
	settings := config.Defaults()
	settings.RepoDir = t.TempDir()
	_, err := Open(settings, Options{DBPath: ":memory:", SnapshotPath: "-"})
	assert.Error(t, err)
}

func TestEditCommitAndPublicationState(t *testing.T) {
	r := setupRepository(t)
	ctx := context.Background()
	author := gitsync.Author{Login: "x", Email: "x@example.com"}

	doc, err := r.Segments.GetMergedDocument(ctx, "dn1_translation-en-x", "", "")
	require.NoError(t, err)
	assert.Equal(t, "translation-en-x", doc.TargetField)
	assert.Equal(t, "root-pli-ms", doc.SourceField)

	res, err := r.Segments.UpdateSegment(ctx, segments.Update{
		SegmentID: "dn1:1.1",
		Field:     "translation-en-x",
		Value:     "Thus have I heard.",
	}, author)
	require.NoError(t, err)
	assert.True(t, res.Success)

	count, err := r.Git.CommitCount(ctx, "HEAD")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, r.Sync.Flush(ctx))
	_, pending := r.Sync.Pending()
	assert.False(t, pending, "flush retires the batch when sync is disabled")

	state, err := r.PublicationState(ctx)
	require.NoError(t, err)
	assert.Equal(t, publication.Modified, state.Files[translationPath])
	assert.Equal(t, publication.Published, state.Files[rootPath])

	counts, err := r.PublicationCounts(ctx)
	require.NoError(t, err)
	assert.Positive(t, counts.Files[translationPath])
	assert.NotContains(t, counts.Files, rootPath)

	updates, err := r.Outbox.Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Equal(t, "dn1:1.1", updates[0].SegmentID)
}

func TestBulk(t *testing.T) {
	r := setupRepository(t)
	ctx := context.Background()
	author := gitsync.Author{Login: "x", Email: "x@example.com"}

	writeFile(t, r.Git.Dir(), "translation/en/x/dn/dn2_translation-en-x.json", `{"dn2:1": "Hi"}`)
	require.NoError(t, r.Bulk(ctx, author, "", "/translation/en/x/dn/dn2_translation-en-x.json"))

	count, err := r.Git.CommitCount(ctx, "HEAD")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	head, err := r.Git.Head(ctx)
	require.NoError(t, err)
	assert.Equal(t, gitsync.BulkMessage, head.Message)

	// Nothing left to commit.
	require.NoError(t, r.Bulk(ctx, author, "again", "translation/en/x/dn/dn2_translation-en-x.json"))
	count, err = r.Git.CommitCount(ctx, "HEAD")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestCompletionRecordsProblems(t *testing.T) {
	r := setupRepository(t)
	ctx := context.Background()

	writeFile(t, r.Git.Dir(), "translation/de/y/dn/dn1_translation-de-y.json", `{"dn1:1.1": "So"}`)
	require.NoError(t, r.Index.Build(ctx, true))

	tree, err := r.Completion.Tree(ctx)
	require.NoError(t, err)
	assert.NotNil(t, tree)

	problems, err := r.Problems.List(ctx, 10)
	require.NoError(t, err)
	files := make([]string, 0, len(problems))
	for _, p := range problems {
		files = append(files, p.File)
	}
	assert.Contains(t, files, "translation/de/y/dn/dn1_translation-de-y.json")
	assert.NotContains(t, files, translationPath)
}

func TestEditsAmendPerAuthor(t *testing.T) {
	r := setupRepository(t)
	ctx := context.Background()
	x := gitsync.Author{Login: "x", Email: "x@example.com"}
	y := gitsync.Author{Login: "y", Email: "y@example.com"}

	edit := func(author gitsync.Author, value string) {
		t.Helper()
		res, err := r.Segments.UpdateSegment(ctx, segments.Update{
			SegmentID: "dn1:1.1",
			Field:     "translation-en-x",
			Value:     value,
		}, author)
		require.NoError(t, err)
		require.True(t, res.Success)
	}
	commits := func() int {
		t.Helper()
		n, err := r.Git.CommitCount(ctx, "HEAD")
		require.NoError(t, err)
		return n
	}

	edit(x, "Thus")
	edit(x, "Thus have I heard.")
	assert.Equal(t, 2, commits(), "second edit by the same author amends")

	head, err := r.Git.Head(ctx)
	require.NoError(t, err)
	assert.Equal(t, gitsync.CommitMessage("x", translationPath), head.Message)

	edit(y, "So I have heard.")
	assert.Equal(t, 3, commits(), "another author starts a new commit")

	head, err = r.Git.Head(ctx)
	require.NoError(t, err)
	assert.Equal(t, gitsync.CommitMessage("y", translationPath), head.Message)
}

func TestProblemCountAndClearJournal(t *testing.T) {
	r := setupRepository(t)
	ctx := context.Background()
	const broken = "translation/de/y/dn/dn1_translation-de-y.json"

	writeFile(t, r.Git.Dir(), broken, `{"dn1:1.1": "So"}`)
	require.NoError(t, r.Index.Build(ctx, true))
	_, err := r.Completion.Tree(ctx)
	require.NoError(t, err)

	n, err := r.ProblemCount(ctx, "/"+broken)
	require.NoError(t, err)
	assert.Positive(t, n)

	n, err = r.ProblemCount(ctx, translationPath)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, r.ClearJournal())
	n, err = r.ProblemCount(ctx, broken)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, r.Completion.Len())

	_, err = r.Completion.Tree(ctx)
	require.NoError(t, err)
	n, err = r.ProblemCount(ctx, broken)
	require.NoError(t, err)
	assert.Positive(t, n, "problems are reported again after a clear")
}
