// Package gitsync batches repository edits into commits and pushes them.
//
// A Coalescer owns the repository lock. Every read-modify-write of a working
// copy file and every pull runs inside Exclusive, so edits, flushes and
// remote updates never interleave.
package gitsync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vault-md/textrepo/internal/git"
	"github.com/vault-md/textrepo/internal/logging"
	"github.com/vault-md/textrepo/internal/metrics"
	"github.com/vault-md/textrepo/internal/retry"
)

// ErrPushExhausted indicates every push attempt of a flush failed. The local
// commits are kept and the next flush starts over.
var ErrPushExhausted = errors.New("gitsync: push failed after retries")

// BulkMessage is the commit message used for bulk updates without one.
const BulkMessage = "Bulk update"

// Backend is the version-control capability the coalescer drives.
type Backend interface {
	Stage(ctx context.Context, paths ...string) error
	Commit(ctx context.Context, message, author string) error
	Amend(ctx context.Context) error
	Push(ctx context.Context, remote, branch string) error
	Pull(ctx context.Context, remote, branch string, preferRemote bool) error
	Head(ctx context.Context) (git.Commit, error)
}

// Notifier escalates failures that need an operator.
type Notifier interface {
	Notify(ctx context.Context, title, message string) error
}

// Author identifies who made an edit.
type Author struct {
	Login string
	Name  string
	Email string
}

// Signature returns the "Name <email>" form git expects, using the login
// when no name is set.
func (a Author) Signature() string {
	name := a.Name
	if name == "" {
		name = a.Login
	}
	return fmt.Sprintf("%s <%s>", name, a.Email)
}

// CommitMessage is the message for an interactive edit of path by login.
// Consecutive edits that derive the same message share one commit.
func CommitMessage(login, path string) string {
	return fmt.Sprintf("Translations by %s to %s", login, strings.TrimLeft(path, "/"))
}

// State is the coalescer state.
type State int

const (
	StateIdle State = iota
	StatePending
	StateAmending
	StateFlushing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateAmending:
		return "amending"
	case StateFlushing:
		return "flushing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Pending is the unpushed commit of a batch.
type Pending struct {
	Branch  string
	Message string
	Author  Author
	Time    time.Time
	Bulk    bool
}

// Config configures a Coalescer.
type Config struct {
	Remote       string
	Branch       string
	SyncEnabled  bool          // push on flush; when false a flush only retires the batch
	PushDelay    time.Duration // idle window before the ticker flushes
	TickInterval time.Duration
	PushAttempts int
	RetryWait    time.Duration // backoff before re-pushing, after the pull
}

// Coalescer batches edits into commits for one branch.
type Coalescer struct {
	backend  Backend
	notifier Notifier
	logger   *zap.Logger
	cfg      Config
	now      func() time.Time

	lock chan struct{}

	// state and pending are written only while lock is held; mu lets
	// readers outside the lock observe them.
	mu      sync.Mutex
	state   State
	pending *Pending

	startOnce sync.Once
	started   bool
	closeOnce sync.Once
	stop      chan struct{}
	stopped   chan struct{}
}

// Option configures a Coalescer.
type Option func(*Coalescer)

// WithNotifier sets the escalation target for exhausted pushes.
func WithNotifier(n Notifier) Option {
	return func(c *Coalescer) { c.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Coalescer) { c.logger = logging.OrNop(l) }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Coalescer) { c.now = now }
}

// New creates a coalescer over backend.
func New(backend Backend, cfg Config, opts ...Option) *Coalescer {
	if cfg.Remote == "" {
		cfg.Remote = "origin"
	}
	if cfg.PushAttempts < 1 {
		cfg.PushAttempts = 3
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 5 * time.Second
	}
	c := &Coalescer{
		backend: backend,
		logger:  zap.NewNop(),
		cfg:     cfg,
		now:     time.Now,
		lock:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current state.
func (c *Coalescer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Pending returns a copy of the pending commit, if any.
func (c *Coalescer) Pending() (Pending, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return Pending{}, false
	}
	return *c.pending, true
}

func (c *Coalescer) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Coalescer) setPending(p *Pending) {
	c.mu.Lock()
	c.pending = p
	if p == nil {
		c.state = StateIdle
	} else {
		c.state = StatePending
	}
	c.mu.Unlock()
}

// Tx is the handle passed to functions running under the repository lock.
type Tx struct {
	c   *Coalescer
	ctx context.Context
}

// Context returns the context the lock was acquired with.
func (tx *Tx) Context() context.Context {
	return tx.ctx
}

// RecordEdit commits path for author, amending the pending commit when the
// derived message matches it.
func (tx *Tx) RecordEdit(path string, author Author) error {
	return tx.c.recordEdit(tx.ctx, path, author)
}

// Flush pushes the pending commit, if any.
func (tx *Tx) Flush() error {
	return tx.c.flush(tx.ctx)
}

// Pull merges the tracked branch from the remote, preferring remote changes.
func (tx *Tx) Pull() error {
	return tx.c.backend.Pull(tx.ctx, tx.c.cfg.Remote, tx.c.cfg.Branch, true)
}

// Head returns the local head commit.
func (tx *Tx) Head() (git.Commit, error) {
	return tx.c.backend.Head(tx.ctx)
}

// Exclusive runs fn while holding the repository lock.
func (c *Coalescer) Exclusive(ctx context.Context, fn func(tx *Tx) error) error {
	select {
	case c.lock <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-c.lock }()
	return fn(&Tx{c: c, ctx: ctx})
}

// RecordEdit is Exclusive plus Tx.RecordEdit.
func (c *Coalescer) RecordEdit(ctx context.Context, path string, author Author) error {
	return c.Exclusive(ctx, func(tx *Tx) error {
		return tx.RecordEdit(path, author)
	})
}

// Flush pushes the pending commit, if any.
func (c *Coalescer) Flush(ctx context.Context) error {
	return c.Exclusive(ctx, func(tx *Tx) error {
		return tx.Flush()
	})
}

// UpdateFiles commits paths as one bulk change and pushes it immediately.
// A pending interactive commit is flushed first; bulk commits are never amended.
func (c *Coalescer) UpdateFiles(ctx context.Context, author Author, message string, paths ...string) error {
	if message == "" {
		message = BulkMessage
	}
	return c.Exclusive(ctx, func(_ *Tx) error {
		if err := c.flush(ctx); err != nil {
			c.logger.Warn("flush before bulk update failed", zap.Error(err))
		}
		if err := c.backend.Stage(ctx, paths...); err != nil {
			return fmt.Errorf("failed to stage bulk update: %w", err)
		}
		if err := c.backend.Commit(ctx, message, author.Signature()); err != nil {
			if errors.Is(err, git.ErrNothingToCommit) {
				c.logger.Info("bulk update had nothing to commit", zap.Int("files", len(paths)))
				return nil
			}
			return fmt.Errorf("failed to commit bulk update: %w", err)
		}
		metrics.RecordCommit("bulk")
		c.setPending(&Pending{
			Branch:  c.cfg.Branch,
			Message: message,
			Author:  author,
			Time:    c.now(),
			Bulk:    true,
		})
		return c.flush(ctx)
	})
}

// Tick flushes the pending commit once it has been idle longer than the push delay.
func (c *Coalescer) Tick(ctx context.Context) error {
	if _, ok := c.Pending(); !ok {
		return nil
	}
	return c.Exclusive(ctx, func(_ *Tx) error {
		c.mu.Lock()
		p := c.pending
		c.mu.Unlock()
		if p == nil || c.now().Sub(p.Time) <= c.cfg.PushDelay {
			return nil
		}
		return c.flush(ctx)
	})
}

func (c *Coalescer) recordEdit(ctx context.Context, path string, author Author) error {
	message := CommitMessage(author.Login, path)

	c.mu.Lock()
	p := c.pending
	c.mu.Unlock()

	if p != nil && !p.Bulk && p.Message == message {
		c.setState(StateAmending)
		if err := c.backend.Stage(ctx, path); err != nil {
			c.setState(StatePending)
			return fmt.Errorf("failed to stage %s: %w", path, err)
		}
		if err := c.backend.Amend(ctx); err != nil && !errors.Is(err, git.ErrNothingToCommit) {
			c.setState(StatePending)
			return fmt.Errorf("failed to amend commit: %w", err)
		}
		metrics.RecordCommit("amend")
		next := *p
		next.Time = c.now()
		c.setPending(&next)
		return nil
	}

	if err := c.flush(ctx); err != nil {
		c.logger.Warn("flush before new commit failed", zap.Error(err))
	}

	if err := c.backend.Stage(ctx, path); err != nil {
		return fmt.Errorf("failed to stage %s: %w", path, err)
	}
	if err := c.backend.Commit(ctx, message, author.Signature()); err != nil {
		if errors.Is(err, git.ErrNothingToCommit) {
			return nil
		}
		return fmt.Errorf("failed to commit %s: %w", path, err)
	}
	metrics.RecordCommit("commit")
	c.setPending(&Pending{
		Branch:  c.cfg.Branch,
		Message: message,
		Author:  author,
		Time:    c.now(),
	})
	return nil
}

func (c *Coalescer) flush(ctx context.Context) error {
	c.mu.Lock()
	p := c.pending
	c.mu.Unlock()
	if p == nil {
		return nil
	}

	if !c.cfg.SyncEnabled {
		c.logger.Info("not pushing, sync disabled", zap.String("branch", c.cfg.Branch))
		c.setPending(nil)
		return nil
	}

	c.setState(StateFlushing)
	c.logger.Info("pushing", zap.String("remote", c.cfg.Remote), zap.String("branch", c.cfg.Branch))

	out := retry.Run(ctx, retry.Config{
		MaxAttempts: c.cfg.PushAttempts,
		InitialWait: c.cfg.RetryWait,
		MaxWait:     10 * c.cfg.RetryWait,
		Multiplier:  2,
		Between: func(ctx context.Context, attempt int, err error) {
			c.logger.Warn("push failed, pulling and trying again",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			if pullErr := c.backend.Pull(ctx, c.cfg.Remote, c.cfg.Branch, true); pullErr != nil {
				c.logger.Warn("pull failed", zap.Error(pullErr))
			}
		},
	}, func(ctx context.Context) error {
		err := c.backend.Push(ctx, c.cfg.Remote, c.cfg.Branch)
		metrics.RecordPushAttempt(err == nil)
		return err
	})

	if out.OK() {
		c.logger.Info("push succeeded", zap.Int("attempts", out.Attempts))
		c.setPending(nil)
		return nil
	}

	c.setState(StatePending)
	if !out.Exhausted {
		return fmt.Errorf("push interrupted: %w", out.Err)
	}

	c.logger.Error("push failed repeatedly",
		zap.Int("attempts", out.Attempts),
		zap.String("branch", c.cfg.Branch),
		zap.Error(out.Err),
	)
	metrics.RecordPushEscalation()
	if c.notifier != nil {
		msg := fmt.Sprintf("Failed to push %s to %s after %d attempts, this requires manual intervention: %v",
			c.cfg.Branch, c.cfg.Remote, out.Attempts, out.Err)
		if err := c.notifier.Notify(ctx, "Push Fail", msg); err != nil {
			c.logger.Error("failed to notify admin", zap.Error(err))
		}
	}
	return fmt.Errorf("%w: %v", ErrPushExhausted, out.Err)
}

// Start runs the idle flush ticker until Close is called or ctx ends.
func (c *Coalescer) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		c.started = true
		go c.run(ctx)
	})
}

func (c *Coalescer) run(ctx context.Context) {
	defer close(c.stopped)
	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Tick(ctx); err != nil {
				c.logger.Warn("scheduled flush failed", zap.Error(err))
			}
		}
	}
}

// Close stops the ticker and makes a final flush attempt. A later Start is a no-op.
func (c *Coalescer) Close(ctx context.Context) error {
	var err error
	c.closeOnce.Do(func() {
		close(c.stop)
		c.startOnce.Do(func() {})
		if c.started {
			<-c.stopped
		}
		err = c.Flush(ctx)
	})
	return err
}
