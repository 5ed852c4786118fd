// Package webhook reacts to push events from the remote repository.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/vault-md/textrepo/internal/gitsync"
	"github.com/vault-md/textrepo/internal/index"
	"github.com/vault-md/textrepo/internal/logging"
	"github.com/vault-md/textrepo/internal/metrics"
)

// PushCommit is one commit of a push event.
type PushCommit struct {
	ID       string   `json:"id"`
	Added    []string `json:"added"`
	Modified []string `json:"modified"`
	Removed  []string `json:"removed"`
}

// PushEvent is the subset of a push webhook payload the reindexer reads.
type PushEvent struct {
	Ref     string       `json:"ref"`
	Commits []PushCommit `json:"commits"`
}

// ParsePushEvent decodes a push webhook payload.
func ParsePushEvent(r io.Reader) (PushEvent, error) {
	var ev PushEvent
	if err := json.NewDecoder(r).Decode(&ev); err != nil {
		return PushEvent{}, fmt.Errorf("failed to decode push event: %w", err)
	}
	if ev.Ref == "" {
		return PushEvent{}, errors.New("push event has no ref")
	}
	return ev, nil
}

// Branch returns the last segment of the event ref.
func (e PushEvent) Branch() string {
	return e.Ref[strings.LastIndex(e.Ref, "/")+1:]
}

// Locker runs work under the repository lock.
type Locker interface {
	Exclusive(ctx context.Context, fn func(tx *gitsync.Tx) error) error
}

// Rebuilder reads and rebuilds the whole index.
type Rebuilder interface {
	Current(ctx context.Context) (*index.Snapshot, error)
	Build(ctx context.Context, force bool) error
}

// Search is the search index collaborator.
type Search interface {
	UpdatePartial(ctx context.Context, added, modified []string) error
}

// Invalidator drops cached per-document statistics.
type Invalidator interface {
	Invalidate(paths ...string)
}

// Outcome describes what a push event caused.
type Outcome string

const (
	OutcomeIgnoredBranch Outcome = "ignored_branch"
	OutcomeSelf          Outcome = "self"
	OutcomePartial       Outcome = "partial"
	OutcomeFull          Outcome = "full"
)

// Reindexer pulls remote changes and reindexes after a push event.
type Reindexer struct {
	branch string
	lock   Locker
	index  Rebuilder
	search Search
	cache  Invalidator
	logger *zap.Logger
}

// Options configures a Reindexer. Search and Cache may be nil.
type Options struct {
	Branch string
	Lock   Locker
	Index  Rebuilder
	Search Search
	Cache  Invalidator
	Logger *zap.Logger
}

// NewReindexer creates a reindexer for the tracked branch.
func NewReindexer(opts Options) *Reindexer {
	return &Reindexer{
		branch: opts.Branch,
		lock:   opts.Lock,
		index:  opts.Index,
		search: opts.Search,
		cache:  opts.Cache,
		logger: logging.OrNop(opts.Logger),
	}
}

// HandlePushEvent is OnRemoteUpdate for a decoded payload.
func (r *Reindexer) HandlePushEvent(ctx context.Context, ev PushEvent) (Outcome, error) {
	return r.OnRemoteUpdate(ctx, ev.Ref, ev.Commits)
}

// OnRemoteUpdate pulls the tracked branch and reindexes what the commits
// touched. Events for other branches and events that contain the local head
// commit are ignored.
func (r *Reindexer) OnRemoteUpdate(ctx context.Context, ref string, commits []PushCommit) (Outcome, error) {
	outcome, err := r.onRemoteUpdate(ctx, ref, commits)
	if err != nil {
		metrics.RecordWebhookEvent("error")
	} else {
		metrics.RecordWebhookEvent(string(outcome))
	}
	return outcome, err
}

func (r *Reindexer) onRemoteUpdate(ctx context.Context, ref string, commits []PushCommit) (Outcome, error) {
	if (PushEvent{Ref: ref}).Branch() != r.branch {
		r.logger.Debug("ignoring push to other branch", zap.String("ref", ref))
		return OutcomeIgnoredBranch, nil
	}

	var added, modified, removed []string
	self := false
	err := r.lock.Exclusive(ctx, func(tx *gitsync.Tx) error {
		head, err := tx.Head()
		if err != nil {
			return fmt.Errorf("failed to read local head: %w", err)
		}
		for _, c := range commits {
			if c.ID == head.Hash {
				self = true
				return nil
			}
			added = append(added, c.Added...)
			modified = append(modified, c.Modified...)
			removed = append(removed, c.Removed...)
		}

		r.logger.Info("remote update",
			zap.Int("added", len(added)),
			zap.Int("modified", len(modified)),
			zap.Int("removed", len(removed)),
		)
		if err := tx.Flush(); err != nil {
			r.logger.Warn("flush before pull failed", zap.Error(err))
		}
		if err := tx.Pull(); err != nil {
			return fmt.Errorf("failed to pull: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if self {
		return OutcomeSelf, nil
	}

	// Removed documents are only known to the index before the rebuild,
	// added ones only after it.
	if r.cache != nil {
		changed := make([]string, 0, len(modified)+len(removed))
		changed = append(changed, modified...)
		changed = append(changed, removed...)
		r.cache.Invalidate(r.related(ctx, changed)...)
	}

	outcome := OutcomePartial
	if len(added) > 0 || len(removed) > 0 {
		outcome = OutcomeFull
		if err := r.index.Build(ctx, true); err != nil {
			return "", fmt.Errorf("failed to rebuild index: %w", err)
		}
		if r.cache != nil && len(added) > 0 {
			r.cache.Invalidate(r.related(ctx, added)...)
		}
	}

	if r.search != nil {
		if err := r.search.UpdatePartial(ctx, added, modified); err != nil {
			return "", fmt.Errorf("failed to queue search update: %w", err)
		}
	}
	return outcome, nil
}

// related adds every document sharing a uid with paths, so translations of a
// changed root document are invalidated with it.
func (r *Reindexer) related(ctx context.Context, paths []string) []string {
	if len(paths) == 0 {
		return nil
	}
	snap, err := r.index.Current(ctx)
	if err != nil {
		r.logger.Warn("index unavailable, invalidating changed paths only", zap.Error(err))
		return paths
	}
	return snap.RelatedPaths(paths...)
}
