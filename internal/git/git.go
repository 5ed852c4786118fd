// Package git provides the version-control operations the repository layer needs.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrNothingToCommit indicates a commit was requested with no staged changes.
var ErrNothingToCommit = errors.New("git: nothing to commit")

// GitInfo contains information about a git repository
//
//nolint:revive // GitInfo is intentionally prefixed to avoid overly generic "Info" type
type GitInfo struct {
	IsGitRepo     bool
	TopLevel      string
	CurrentBranch string
	IsWorktree    bool
}

// GetGitInfo retrieves git repository information for the given directory.
// If dir is empty, it uses the current working directory.
// Returns a GitInfo with IsGitRepo=false if the directory is not a git repository.
func GetGitInfo(dir string) (*GitInfo, error) {
	if dir == "" {
		var err error
		dir, err = os.Getwd()
		if err != nil {
			//nolint:nilerr // Intentionally return non-repo info instead of error
			return &GitInfo{IsGitRepo: false}, nil
		}
	}

	ctx := context.Background()
	gitRoot, err := runGitCommand(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil || gitRoot == "" {
		//nolint:nilerr // Intentionally return non-repo info instead of error
		return &GitInfo{IsGitRepo: false}, nil
	}

	branch, err := runGitCommand(ctx, dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		// A repository without commits has no HEAD yet.
		branch, _ = runGitCommand(ctx, dir, "symbolic-ref", "--short", "HEAD")
	}

	gitDir, err := runGitCommand(ctx, dir, "rev-parse", "--git-dir")
	if err != nil {
		//nolint:nilerr // Intentionally return non-repo info instead of error
		return &GitInfo{IsGitRepo: false}, nil
	}
	if !filepath.IsAbs(gitDir) {
		gitDir = filepath.Join(dir, gitDir)
	}
	_, err = os.Stat(filepath.Join(gitDir, "objects"))

	return &GitInfo{
		IsGitRepo:     true,
		TopLevel:      gitRoot,
		CurrentBranch: branch,
		IsWorktree:    os.IsNotExist(err),
	}, nil
}

// CommandError is a failed git invocation.
type CommandError struct {
	Args   []string
	Stdout string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		msg = strings.TrimSpace(e.Stdout)
	}
	return fmt.Sprintf("git %s: %v: %s", strings.Join(e.Args, " "), e.Err, msg)
}

func (e *CommandError) Unwrap() error { return e.Err }

// runGitCommand executes a git command and returns the trimmed output
func runGitCommand(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", &CommandError{Args: args, Stdout: stdout.String(), Stderr: stderr.String(), Err: err}
	}

	return strings.TrimSpace(stdout.String()), nil
}

// Repo runs git operations against one working copy.
type Repo struct {
	dir string
}

// Open returns a Repo for the working copy at dir.
func Open(dir string) (*Repo, error) {
	info, err := GetGitInfo(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsGitRepo {
		return nil, fmt.Errorf("%s is not a git repository", dir)
	}
	return &Repo{dir: info.TopLevel}, nil
}

// Dir returns the working copy root.
func (r *Repo) Dir() string {
	return r.dir
}

// Branch returns the checked out branch.
func (r *Repo) Branch(ctx context.Context) (string, error) {
	return runGitCommand(ctx, r.dir, "rev-parse", "--abbrev-ref", "HEAD")
}

// Stage adds paths to the index.
func (r *Repo) Stage(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	args := append([]string{"add", "--"}, paths...)
	_, err := runGitCommand(ctx, r.dir, args...)
	return err
}

// Commit records the staged changes. author is "Name <email>".
func (r *Repo) Commit(ctx context.Context, message, author string) error {
	args := []string{"commit", "-m", message}
	if author != "" {
		args = append(args, "--author", author)
	}
	_, err := runGitCommand(ctx, r.dir, args...)
	return nothingToCommit(err)
}

// Amend folds the staged changes into the last commit without editing its message.
func (r *Repo) Amend(ctx context.Context) error {
	_, err := runGitCommand(ctx, r.dir, "commit", "--amend", "--no-edit")
	return nothingToCommit(err)
}

// Push pushes branch to remote and sets it as upstream.
func (r *Repo) Push(ctx context.Context, remote, branch string) error {
	_, err := runGitCommand(ctx, r.dir, "push", "-u", remote, branch)
	return err
}

// Pull fetches and merges branch from remote. With preferRemote set, conflicts
// resolve in favour of the remote side.
func (r *Repo) Pull(ctx context.Context, remote, branch string, preferRemote bool) error {
	args := []string{"pull", "--no-rebase", "--no-edit"}
	if preferRemote {
		args = append(args, "-Xtheirs")
	}
	args = append(args, remote, branch)
	_, err := runGitCommand(ctx, r.dir, args...)
	return err
}

// Commit describes one commit.
type Commit struct {
	Hash    string
	Message string
	Time    time.Time
}

// Head returns the commit HEAD points at.
func (r *Repo) Head(ctx context.Context) (Commit, error) {
	return r.resolve(ctx, "HEAD")
}

func (r *Repo) resolve(ctx context.Context, rev string) (Commit, error) {
	out, err := runGitCommand(ctx, r.dir, "log", "-1", "--format=%H%x00%ct%x00%B", rev)
	if err != nil {
		return Commit{}, err
	}
	parts := strings.SplitN(out, "\x00", 3)
	if len(parts) != 3 {
		return Commit{}, fmt.Errorf("unexpected git log output %q", out)
	}
	secs, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return Commit{}, fmt.Errorf("failed to parse commit time: %w", err)
	}
	return Commit{
		Hash:    parts[0],
		Message: strings.TrimSpace(parts[2]),
		Time:    time.Unix(secs, 0),
	}, nil
}

// CommitCount returns the number of commits reachable from rev.
func (r *Repo) CommitCount(ctx context.Context, rev string) (int, error) {
	out, err := runGitCommand(ctx, r.dir, "rev-list", "--count", rev)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(out)
}

// NumstatEntry is one line of diff --numstat output.
type NumstatEntry struct {
	Path    string
	Added   int
	Deleted int
}

// DiffNumstat returns per-file line changes between two revisions.
// Binary files report zero lines.
func (r *Repo) DiffNumstat(ctx context.Context, from, to string) ([]NumstatEntry, error) {
	out, err := runGitCommand(ctx, r.dir, "diff", "--numstat", from+".."+to)
	if err != nil {
		return nil, err
	}
	return parseNumstat(out)
}

func parseNumstat(out string) ([]NumstatEntry, error) {
	var entries []NumstatEntry
	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, "\t", 3)
		if len(fields) != 3 {
			return nil, fmt.Errorf("unexpected numstat line %q", line)
		}
		entries = append(entries, NumstatEntry{
			Path:    fields[2],
			Added:   numstatCount(fields[0]),
			Deleted: numstatCount(fields[1]),
		})
	}
	return entries, nil
}

func numstatCount(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0 // "-" for binary files
	}
	return n
}

// TreeEntry is one blob listed by ls-tree.
type TreeEntry struct {
	Mode string
	Type string
	Hash string
	Path string
}

// ListTree lists every blob reachable from ref.
func (r *Repo) ListTree(ctx context.Context, ref string) ([]TreeEntry, error) {
	out, err := runGitCommand(ctx, r.dir, "ls-tree", "-r", ref)
	if err != nil {
		return nil, err
	}
	return parseListTree(out)
}

func parseListTree(out string) ([]TreeEntry, error) {
	var entries []TreeEntry
	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			continue
		}
		meta, path, ok := strings.Cut(line, "\t")
		if !ok {
			return nil, fmt.Errorf("unexpected ls-tree line %q", line)
		}
		fields := strings.Fields(meta)
		if len(fields) != 3 {
			return nil, fmt.Errorf("unexpected ls-tree line %q", line)
		}
		entries = append(entries, TreeEntry{Mode: fields[0], Type: fields[1], Hash: fields[2], Path: path})
	}
	return entries, nil
}

func nothingToCommit(err error) error {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		out := cmdErr.Stdout + cmdErr.Stderr
		if strings.Contains(out, "nothing to commit") || strings.Contains(out, "nothing added to commit") {
			return ErrNothingToCommit
		}
	}
	return err
}
