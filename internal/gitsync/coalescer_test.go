package gitsync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/vault-md/textrepo/internal/git"
)

var errRejected = errors.New("push rejected")

// fakeBackend counts version-control calls. Commits add to the branch
// history; amends rewrite the tip.
type fakeBackend struct {
	mu       sync.Mutex
	staged   []string
	commits  []string
	amends   int
	pushes   int
	pulls    int
	pushErrs []error // consumed one per push; nil entries succeed
	nothing  bool    // next commit reports nothing to commit
}

func (f *fakeBackend) Stage(_ context.Context, paths ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.staged = append(f.staged, paths...)
	return nil
}

func (f *fakeBackend) Commit(_ context.Context, message, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.nothing {
		f.nothing = false
		return git.ErrNothingToCommit
	}
	f.commits = append(f.commits, message)
	return nil
}

func (f *fakeBackend) Amend(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.amends++
	return nil
}

func (f *fakeBackend) Push(context.Context, string, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushes++
	if len(f.pushErrs) == 0 {
		return nil
	}
	err := f.pushErrs[0]
	f.pushErrs = f.pushErrs[1:]
	return err
}

func (f *fakeBackend) Pull(context.Context, string, string, bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pulls++
	return nil
}

func (f *fakeBackend) Head(context.Context) (git.Commit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.commits) == 0 {
		return git.Commit{}, errors.New("no commits")
	}
	return git.Commit{Hash: "head", Message: f.commits[len(f.commits)-1]}, nil
}

func (f *fakeBackend) counts() (commits, amends, pushes, pulls int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.commits), f.amends, f.pushes, f.pulls
}

type fakeNotifier struct {
	mu     sync.Mutex
	titles []string
}

func (n *fakeNotifier) Notify(_ context.Context, title, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.titles = append(n.titles, title)
	return nil
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.titles)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var (
	ann = Author{Login: "ann", Name: "Ann", Email: "ann@example.com"}
	bob = Author{Login: "bob", Email: "bob@example.com"}
)

func newCoalescer(backend *fakeBackend, opts ...Option) *Coalescer {
	cfg := Config{
		Remote:       "origin",
		Branch:       "unpublished",
		SyncEnabled:  true,
		PushDelay:    15 * time.Second,
		PushAttempts: 3,
	}
	return New(backend, cfg, opts...)
}

func TestSameMessageAmends(t *testing.T) {
	backend := &fakeBackend{}
	c := newCoalescer(backend)
	ctx := context.Background()

	require.NoError(t, c.RecordEdit(ctx, "dn/dn1_translation-en-ann.json", ann))
	require.NoError(t, c.RecordEdit(ctx, "dn/dn1_translation-en-ann.json", ann))

	commits, amends, pushes, _ := backend.counts()
	assert.Equal(t, 1, commits)
	assert.Equal(t, 1, amends)
	assert.Zero(t, pushes)
	assert.Equal(t, StatePending, c.State())

	p, ok := c.Pending()
	require.True(t, ok)
	assert.Equal(t, "Translations by ann to dn/dn1_translation-en-ann.json", p.Message)
	assert.Equal(t, "unpublished", p.Branch)
}

func TestDifferentMessageFlushesFirst(t *testing.T) {
	backend := &fakeBackend{}
	c := newCoalescer(backend)
	ctx := context.Background()

	require.NoError(t, c.RecordEdit(ctx, "dn/dn1_translation-en-ann.json", ann))
	require.NoError(t, c.RecordEdit(ctx, "dn/dn1_translation-en-ann.json", bob))

	commits, amends, pushes, _ := backend.counts()
	assert.Equal(t, 2, commits)
	assert.Zero(t, amends)
	assert.Equal(t, 1, pushes, "prior batch is pushed before the new commit")

	p, ok := c.Pending()
	require.True(t, ok)
	assert.Equal(t, bob, p.Author)
}

func TestPushRetryRecovers(t *testing.T) {
	backend := &fakeBackend{pushErrs: []error{errRejected, errRejected, nil}}
	notifier := &fakeNotifier{}
	c := newCoalescer(backend, WithNotifier(notifier))
	ctx := context.Background()

	require.NoError(t, c.RecordEdit(ctx, "a.json", ann))
	require.NoError(t, c.Flush(ctx))

	_, _, pushes, pulls := backend.counts()
	assert.Equal(t, 3, pushes)
	assert.Equal(t, 2, pulls, "one pull after each failed push")
	assert.Equal(t, StateIdle, c.State())
	assert.Zero(t, notifier.count())
}

func TestPushRetryExhausted(t *testing.T) {
	backend := &fakeBackend{pushErrs: []error{errRejected, errRejected, errRejected}}
	notifier := &fakeNotifier{}
	c := newCoalescer(backend, WithNotifier(notifier))
	ctx := context.Background()

	require.NoError(t, c.RecordEdit(ctx, "a.json", ann))
	err := c.Flush(ctx)
	require.ErrorIs(t, err, ErrPushExhausted)

	commits, _, pushes, pulls := backend.counts()
	assert.Equal(t, 1, commits, "local commit is kept")
	assert.Equal(t, 3, pushes)
	assert.Equal(t, 2, pulls)
	assert.Equal(t, 1, notifier.count())
	assert.Equal(t, []string{"Push Fail"}, notifier.titles)
	assert.Equal(t, StatePending, c.State())
	_, ok := c.Pending()
	assert.True(t, ok)

	// The next flush starts a fresh attempt counter.
	require.NoError(t, c.Flush(ctx))
	_, _, pushes, _ = backend.counts()
	assert.Equal(t, 4, pushes)
	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, 1, notifier.count())
}

func TestTickWaitsForIdleWindow(t *testing.T) {
	backend := &fakeBackend{}
	clk := &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := newCoalescer(backend, WithClock(clk.Now))
	ctx := context.Background()

	require.NoError(t, c.Tick(ctx))
	require.NoError(t, c.RecordEdit(ctx, "a.json", ann))

	clk.Advance(10 * time.Second)
	require.NoError(t, c.Tick(ctx))
	_, _, pushes, _ := backend.counts()
	assert.Zero(t, pushes)

	// An amend restarts the idle window.
	require.NoError(t, c.RecordEdit(ctx, "a.json", ann))
	clk.Advance(10 * time.Second)
	require.NoError(t, c.Tick(ctx))
	_, _, pushes, _ = backend.counts()
	assert.Zero(t, pushes)

	clk.Advance(6 * time.Second)
	require.NoError(t, c.Tick(ctx))
	_, _, pushes, _ = backend.counts()
	assert.Equal(t, 1, pushes)
	assert.Equal(t, StateIdle, c.State())
}

func TestUpdateFilesFlushesPendingFirst(t *testing.T) {
	backend := &fakeBackend{}
	c := newCoalescer(backend)
	ctx := context.Background()

	require.NoError(t, c.RecordEdit(ctx, "a.json", ann))
	require.NoError(t, c.UpdateFiles(ctx, ann, "", "a.json", "b.json"))

	commits, amends, pushes, _ := backend.counts()
	assert.Equal(t, 2, commits)
	assert.Zero(t, amends)
	assert.Equal(t, 2, pushes)
	assert.Equal(t, BulkMessage, backend.commits[1])
	assert.Equal(t, StateIdle, c.State())
}

func TestSyncDisabledRetiresWithoutPush(t *testing.T) {
	backend := &fakeBackend{}
	c := New(backend, Config{Branch: "unpublished", PushDelay: time.Second})
	ctx := context.Background()

	require.NoError(t, c.RecordEdit(ctx, "a.json", ann))
	require.NoError(t, c.Flush(ctx))

	_, _, pushes, _ := backend.counts()
	assert.Zero(t, pushes)
	assert.Equal(t, StateIdle, c.State())
}

func TestNothingToCommitStaysIdle(t *testing.T) {
	backend := &fakeBackend{nothing: true}
	c := newCoalescer(backend)

	require.NoError(t, c.RecordEdit(context.Background(), "a.json", ann))
	assert.Equal(t, StateIdle, c.State())
}

func TestExclusiveHonoursContext(t *testing.T) {
	c := newCoalescer(&fakeBackend{})

	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- c.Exclusive(context.Background(), func(*Tx) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := c.Exclusive(ctx, func(*Tx) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, <-done)
}

func TestStartAndCloseFlush(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	backend := &fakeBackend{}
	c := New(backend, Config{
		Branch:       "unpublished",
		SyncEnabled:  true,
		PushDelay:    time.Hour,
		TickInterval: time.Millisecond,
	})
	ctx := context.Background()
	c.Start(ctx)

	require.NoError(t, c.RecordEdit(ctx, "a.json", ann))
	time.Sleep(5 * time.Millisecond)
	_, _, pushes, _ := backend.counts()
	assert.Zero(t, pushes, "idle window has not elapsed")

	require.NoError(t, c.Close(ctx))
	_, _, pushes, _ = backend.counts()
	assert.Equal(t, 1, pushes, "close performs a final flush")
	assert.Equal(t, StateIdle, c.State())

	require.NoError(t, c.Close(ctx))
}

func TestAuthorSignature(t *testing.T) {
	assert.Equal(t, "Ann <ann@example.com>", ann.Signature())
	assert.Equal(t, "bob <bob@example.com>", bob.Signature())
	assert.Equal(t, "Translations by ann to x/y.json", CommitMessage("ann", "/x/y.json"))
}
