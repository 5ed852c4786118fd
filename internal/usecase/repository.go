// Package usecase wires the repository services together for the command line
// and the long-running server.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/vault-md/textrepo/internal/completion"
	"github.com/vault-md/textrepo/internal/config"
	"github.com/vault-md/textrepo/internal/database"
	"github.com/vault-md/textrepo/internal/filesystem"
	"github.com/vault-md/textrepo/internal/git"
	"github.com/vault-md/textrepo/internal/gitsync"
	"github.com/vault-md/textrepo/internal/index"
	"github.com/vault-md/textrepo/internal/logging"
	"github.com/vault-md/textrepo/internal/publication"
	"github.com/vault-md/textrepo/internal/segments"
	"github.com/vault-md/textrepo/internal/webhook"
)

// Repository is one indexed working copy with its journal and commit batch.
type Repository struct {
	Settings   config.Settings
	DB         *database.Context
	Git        *git.Repo
	Index      *index.Builder
	Completion *completion.Cache
	Sync       *gitsync.Coalescer
	Segments   *segments.Store
	Webhook    *webhook.Reindexer
	Problems   *database.ProblemsLog
	Notifier   *database.Notifier
	Outbox     *database.SearchOutbox

	logger *zap.Logger
}

// Options configures Open.
type Options struct {
	// DBPath overrides the journal location; ":memory:" keeps it in memory.
	DBPath string
	// SnapshotPath overrides the index snapshot location. "-" disables it.
	SnapshotPath string
	Logger       *zap.Logger
}

// Open wires every service for the working copy named by settings. The
// repository root is the git top level of settings.RepoDir.
func Open(settings config.Settings, opts Options) (*Repository, error) {
	logger := logging.OrNop(opts.Logger)

	repoDir, err := filepath.Abs(settings.RepoDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve repository path: %w", err)
	}
	repo, err := git.Open(repoDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open repository %s: %w", repoDir, err)
	}

	dbCtx, err := database.CreateDatabase(opts.DBPath)
	if err != nil {
		return nil, err
	}

	snapshotPath := opts.SnapshotPath
	switch snapshotPath {
	case "":
		snapshotPath = config.GetSnapshotPath()
	case "-":
		snapshotPath = ""
	}

	r := &Repository{
		Settings: settings,
		DB:       dbCtx,
		Git:      repo,
		Problems: database.NewProblemsLog(dbCtx, logger.Named("problems")),
		Notifier: database.NewNotifier(dbCtx, logger.Named("notify")),
		Outbox:   database.NewSearchOutbox(dbCtx, logger.Named("search")),
		logger:   logger,
	}

	r.Index = index.NewBuilder(repo.Dir(), index.Options{
		SnapshotPath: snapshotPath,
		Exclude:      settings.Exclude,
		Logger:       logger.Named("index"),
	})
	r.Completion = completion.New(r.Index,
		completion.WithProblems(r.Problems),
		completion.WithLogger(logger.Named("completion")),
	)
	r.Sync = gitsync.New(repo, gitsync.Config{
		Remote:       settings.Remote,
		Branch:       settings.Branch,
		SyncEnabled:  settings.SyncEnabled,
		PushDelay:    settings.PushDelay.Duration,
		TickInterval: settings.TickInterval.Duration,
		PushAttempts: settings.PushAttempts,
	},
		gitsync.WithNotifier(r.Notifier),
		gitsync.WithLogger(logger.Named("gitsync")),
	)
	r.Segments = segments.NewStore(r.Index, segments.Options{
		Lock:          r.Sync,
		Search:        r.Outbox,
		Cache:         r.Completion,
		Archive:       filesystem.Archive{},
		CommitEnabled: settings.CommitEnabled,
		Logger:        logger.Named("segments"),
	})
	r.Webhook = webhook.NewReindexer(webhook.Options{
		Branch: settings.Branch,
		Lock:   r.Sync,
		Index:  r.Index,
		Search: r.Outbox,
		Cache:  r.Completion,
		Logger: logger.Named("webhook"),
	})

	return r, nil
}

// Close flushes the pending commit and closes the journal.
func (r *Repository) Close(ctx context.Context) error {
	var errs []error
	if r.Sync != nil {
		if err := r.Sync.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("final flush failed: %w", err))
		}
	}
	if err := database.CloseDatabase(r.DB); err != nil {
		errs = append(errs, fmt.Errorf("failed to close database: %w", err))
	}
	return errors.Join(errs...)
}

// Bulk commits paths as one change and pushes it.
func (r *Repository) Bulk(ctx context.Context, author gitsync.Author, message string, paths ...string) error {
	rel := make([]string, len(paths))
	for i, p := range paths {
		rel[i] = config.RelativeRepoPath(p)
	}
	if err := r.Sync.UpdateFiles(ctx, author, message, rel...); err != nil {
		return err
	}
	r.Completion.Invalidate(rel...)
	return nil
}

// PublicationState classifies every file on the working branch against the
// published branch.
func (r *Repository) PublicationState(ctx context.Context) (*publication.StateReport, error) {
	return publication.State(ctx, r.Git, r.Settings.PublishedBranch, r.Settings.Branch)
}

// PublicationCounts counts changed lines between the working and published branches.
func (r *Repository) PublicationCounts(ctx context.Context) (*publication.CountReport, error) {
	return publication.LineCounts(ctx, r.Git, r.Settings.PublishedBranch, r.Settings.Branch)
}

// ProblemCount returns how many problems were recorded for path.
func (r *Repository) ProblemCount(ctx context.Context, path string) (int, error) {
	return r.Problems.CountForFile(ctx, config.RelativeRepoPath(path))
}

// ClearJournal drops recorded problems, notifications and pending search
// updates. Completion counts are dropped too so problems are reported again.
func (r *Repository) ClearJournal() error {
	if err := database.ClearDatabase(r.DB); err != nil {
		return fmt.Errorf("failed to clear journal: %w", err)
	}
	r.Completion.Clear()
	r.logger.Info("journal cleared")
	return nil
}
