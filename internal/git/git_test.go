package git

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func gitRun(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Skipf("Skipping test: git %v failed: %v: %s", args, err, out)
	}
}

// initRepo creates a repository on branch main with one commit.
func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	gitRun(t, dir, "init")
	gitRun(t, dir, "symbolic-ref", "HEAD", "refs/heads/main")
	gitRun(t, dir, "config", "user.email", "test@example.com")
	gitRun(t, dir, "config", "user.name", "Test User")
	writeFile(t, dir, "readme.txt", "hello\n")
	gitRun(t, dir, "add", "readme.txt")
	gitRun(t, dir, "commit", "-m", "Initial commit")
	return dir
}

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll error: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}
}

func TestGetGitInfo_NotGitRepo(t *testing.T) {
	tmpDir := t.TempDir()

	info, err := GetGitInfo(tmpDir)
	if err != nil {
		t.Fatalf("GetGitInfo returned error: %v", err)
	}

	if info.IsGitRepo {
		t.Error("Expected IsGitRepo to be false for non-git directory")
	}

	if _, err := Open(tmpDir); err == nil {
		t.Error("Expected Open to fail outside a repository")
	}
}

func TestGetGitInfo_GitRepo(t *testing.T) {
	dir := initRepo(t)

	info, err := GetGitInfo(dir)
	if err != nil {
		t.Fatalf("GetGitInfo returned error: %v", err)
	}
	if !info.IsGitRepo {
		t.Fatal("Expected IsGitRepo to be true for git repository")
	}
	if info.CurrentBranch != "main" {
		t.Errorf("Expected branch main, got %q", info.CurrentBranch)
	}
	if info.IsWorktree {
		t.Error("Expected IsWorktree to be false for primary worktree")
	}
}

func TestCommitAndAmend(t *testing.T) {
	dir := initRepo(t)
	repo, err := Open(dir)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	ctx := context.Background()

	writeFile(t, dir, "dn/dn1.json", `{"dn1:1.1": "a"}`)
	if err := repo.Stage(ctx, "dn/dn1.json"); err != nil {
		t.Fatalf("Stage returned error: %v", err)
	}
	if err := repo.Commit(ctx, "Translations by ann to dn/dn1.json", "Ann <ann@example.com>"); err != nil {
		t.Fatalf("Commit returned error: %v", err)
	}

	head, err := repo.Head(ctx)
	if err != nil {
		t.Fatalf("Head returned error: %v", err)
	}
	if head.Message != "Translations by ann to dn/dn1.json" {
		t.Errorf("unexpected head message %q", head.Message)
	}
	if head.Hash == "" || head.Time.IsZero() {
		t.Errorf("expected hash and time, got %+v", head)
	}

	writeFile(t, dir, "dn/dn1.json", `{"dn1:1.1": "b"}`)
	if err := repo.Stage(ctx, "dn/dn1.json"); err != nil {
		t.Fatalf("Stage returned error: %v", err)
	}
	if err := repo.Amend(ctx); err != nil {
		t.Fatalf("Amend returned error: %v", err)
	}

	count, err := repo.CommitCount(ctx, "HEAD")
	if err != nil {
		t.Fatalf("CommitCount returned error: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 commits after amend, got %d", count)
	}

	if err := repo.Commit(ctx, "empty", ""); !errors.Is(err, ErrNothingToCommit) {
		t.Errorf("expected ErrNothingToCommit, got %v", err)
	}
}

func TestPushAndPull(t *testing.T) {
	dir := initRepo(t)
	remote := t.TempDir()
	gitRun(t, remote, "init", "--bare")
	gitRun(t, dir, "remote", "add", "origin", remote)

	repo, err := Open(dir)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	ctx := context.Background()

	if err := repo.Push(ctx, "origin", "main"); err != nil {
		t.Fatalf("Push returned error: %v", err)
	}

	other := t.TempDir()
	gitRun(t, other, "clone", "--branch", "main", remote, ".")
	gitRun(t, other, "config", "user.email", "other@example.com")
	gitRun(t, other, "config", "user.name", "Other User")
	writeFile(t, other, "readme.txt", "remote edit\n")
	gitRun(t, other, "commit", "-am", "Remote edit")
	gitRun(t, other, "push", "origin", "main")

	writeFile(t, dir, "readme.txt", "local edit\n")
	gitRun(t, dir, "commit", "-am", "Local edit")

	if err := repo.Push(ctx, "origin", "main"); err == nil {
		t.Fatal("expected push of diverged branch to fail")
	}
	if err := repo.Pull(ctx, "origin", "main", true); err != nil {
		t.Fatalf("Pull returned error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "readme.txt"))
	if err != nil {
		t.Fatalf("ReadFile error: %v", err)
	}
	if string(data) != "remote edit\n" {
		t.Errorf("expected remote side to win the conflict, got %q", data)
	}
	if err := repo.Push(ctx, "origin", "main"); err != nil {
		t.Fatalf("Push after pull returned error: %v", err)
	}
}

func TestDiffNumstatAndListTree(t *testing.T) {
	dir := initRepo(t)
	repo, err := Open(dir)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	ctx := context.Background()

	gitRun(t, dir, "branch", "published")
	writeFile(t, dir, "sutta/dn/dn1.json", "one\ntwo\n")
	writeFile(t, dir, "readme.txt", "hello\nworld\n")
	gitRun(t, dir, "add", ".")
	gitRun(t, dir, "commit", "-m", "More")

	entries, err := repo.DiffNumstat(ctx, "published", "main")
	if err != nil {
		t.Fatalf("DiffNumstat returned error: %v", err)
	}
	got := map[string]int{}
	for _, e := range entries {
		got[e.Path] = e.Added + e.Deleted
	}
	if got["sutta/dn/dn1.json"] != 2 || got["readme.txt"] != 1 {
		t.Errorf("unexpected numstat %v", got)
	}

	tree, err := repo.ListTree(ctx, "main")
	if err != nil {
		t.Fatalf("ListTree returned error: %v", err)
	}
	if len(tree) != 2 {
		t.Fatalf("expected 2 blobs, got %d: %+v", len(tree), tree)
	}
	for _, e := range tree {
		if e.Type != "blob" || len(e.Hash) < 40 {
			t.Errorf("unexpected tree entry %+v", e)
		}
	}
}

func TestParseNumstatBinary(t *testing.T) {
	entries, err := parseNumstat("-\t-\timg.png\n3\t1\tdir/a b.json\n")
	if err != nil {
		t.Fatalf("parseNumstat returned error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Added != 0 || entries[0].Deleted != 0 {
		t.Errorf("binary file should count zero lines: %+v", entries[0])
	}
	if entries[1].Path != "dir/a b.json" || entries[1].Added != 3 || entries[1].Deleted != 1 {
		t.Errorf("unexpected entry %+v", entries[1])
	}
}
