package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/vault-md/textrepo/internal/logging"
	"github.com/vault-md/textrepo/internal/meta"
	"github.com/vault-md/textrepo/internal/metrics"
	"github.com/vault-md/textrepo/internal/sortkey"
)

// MetaFilePattern matches metadata definition files within a directory.
const MetaFilePattern = "_*.json"

// Options configures a Builder.
type Options struct {
	// SnapshotPath is where builds are persisted. Empty disables persistence.
	SnapshotPath string
	// Exclude lists doublestar patterns, relative to the root, that the walk skips.
	Exclude []string
	Logger  *zap.Logger
}

// Builder owns the index of one repository tree. Readers get whole snapshots;
// a rebuild swaps in a new snapshot only once it is complete.
type Builder struct {
	root         string
	snapshotPath string
	exclude      []string
	logger       *zap.Logger

	current atomic.Pointer[Snapshot]
	buildMu sync.Mutex

	startedFlag atomic.Bool
	started     chan struct{}
	startOnce   sync.Once
	done        chan struct{}
	doneOnce    sync.Once

	errMu   sync.Mutex
	lastErr error
}

// NewBuilder creates a builder for the repository rooted at root.
func NewBuilder(root string, opts Options) *Builder {
	return &Builder{
		root:         root,
		snapshotPath: opts.SnapshotPath,
		exclude:      opts.Exclude,
		logger:       logging.OrNop(opts.Logger),
		started:      make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Root returns the repository root directory.
func (b *Builder) Root() string {
	return b.root
}

// Started is closed once any build or restore has begun.
func (b *Builder) Started() <-chan struct{} {
	return b.started
}

// Done is closed once the first build or restore has finished.
func (b *Builder) Done() <-chan struct{} {
	return b.done
}

func (b *Builder) markStarted() {
	b.startedFlag.Store(true)
	b.startOnce.Do(func() { close(b.started) })
}

func (b *Builder) markDone() {
	b.doneOnce.Do(func() { close(b.done) })
}

// Current returns the latest snapshot. If no build has started, one is run
// synchronously on the caller; if one is in flight, Current waits for it.
func (b *Builder) Current(ctx context.Context) (*Snapshot, error) {
	if b.startedFlag.CompareAndSwap(false, true) {
		if err := b.Build(ctx, false); err != nil {
			return nil, err
		}
	}

	select {
	case <-b.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if snap := b.current.Load(); snap != nil {
		return snap, nil
	}

	b.errMu.Lock()
	defer b.errMu.Unlock()
	if b.lastErr != nil {
		return nil, fmt.Errorf("index unavailable: %w", b.lastErr)
	}
	return nil, errors.New("index unavailable")
}

// Prewarm starts a build in the background unless one has already started.
func (b *Builder) Prewarm(ctx context.Context) {
	if !b.startedFlag.CompareAndSwap(false, true) {
		return
	}
	go func() {
		if err := b.Build(ctx, false); err != nil {
			b.logger.Error("index prewarm failed", zap.Error(err))
		}
	}()
}

// Build restores the persisted snapshot, or walks the tree when force is set
// or no valid snapshot exists. A walked build is persisted.
func (b *Builder) Build(ctx context.Context, force bool) error {
	b.markStarted()
	defer b.markDone()

	b.buildMu.Lock()
	defer b.buildMu.Unlock()

	if !force && b.restoreLocked() {
		return nil
	}

	start := time.Now()
	b.logger.Info("building file index", zap.String("root", b.root))

	snap, err := b.walk(ctx)
	if err != nil {
		b.errMu.Lock()
		b.lastErr = err
		b.errMu.Unlock()
		return fmt.Errorf("failed to build index: %w", err)
	}

	b.current.Store(snap)
	metrics.RecordIndexBuild("walk", time.Since(start), snap.Len())
	b.logger.Info("file index built",
		zap.Int("documents", snap.Len()),
		zap.Duration("duration", time.Since(start)),
	)

	if err := b.persistLocked(snap); err != nil {
		b.logger.Warn("failed to persist index snapshot", zap.Error(err))
	}
	return nil
}

// Restore loads the persisted snapshot. It reports whether a valid snapshot was loaded.
func (b *Builder) Restore() bool {
	b.buildMu.Lock()
	defer b.buildMu.Unlock()

	ok := b.restoreLocked()
	if ok {
		b.markStarted()
		b.markDone()
	}
	return ok
}

func (b *Builder) restoreLocked() bool {
	if b.snapshotPath == "" {
		return false
	}
	start := time.Now()
	snap, err := readSnapshot(b.snapshotPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			b.logger.Warn("discarding unreadable index snapshot",
				zap.String("path", b.snapshotPath),
				zap.Error(err),
			)
			if rmErr := os.Remove(b.snapshotPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				b.logger.Warn("failed to remove index snapshot", zap.Error(rmErr))
			}
		}
		return false
	}

	b.current.Store(snap)
	metrics.RecordIndexBuild("snapshot", time.Since(start), snap.Len())
	b.logger.Info("loaded saved file index", zap.Int("documents", snap.Len()))
	return true
}

// Persist writes the current snapshot to the snapshot path.
func (b *Builder) Persist() error {
	snap := b.current.Load()
	if snap == nil {
		return errors.New("no index to persist")
	}
	b.buildMu.Lock()
	defer b.buildMu.Unlock()
	return b.persistLocked(snap)
}

func (b *Builder) persistLocked(snap *Snapshot) error {
	if b.snapshotPath == "" {
		return nil
	}
	return writeSnapshot(b.snapshotPath, snap)
}

// walk builds a fresh snapshot from the filesystem.
func (b *Builder) walk(ctx context.Context) (*Snapshot, error) {
	snap := newSnapshot()
	tree, err := b.walkDir(ctx, snap, "", meta.Definitions{})
	if err != nil {
		return nil, err
	}
	snap.Tree = tree
	snap.BuiltAt = time.Now()
	return snap, nil
}

func (b *Builder) walkDir(ctx context.Context, snap *Snapshot, rel string, inherited meta.Definitions) (*Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir := filepath.Join(b.root, filepath.FromSlash(rel))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	isDir := make(map[string]bool, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
		isDir[entry.Name()] = entry.IsDir()
	}
	sortkey.SortHuman(names)

	defs := inherited.Clone()
	metaFiles := map[string]bool{}
	for _, name := range names {
		if isDir[name] {
			continue
		}
		if matched, _ := doublestar.Match(MetaFilePattern, name); !matched {
			continue
		}
		metaFiles[name] = true
		//nolint:gosec // G304: walking the configured repository
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		fileDefs, err := meta.ParseDefinitions(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path.Join(rel, name), err)
		}
		defs.Merge(fileDefs)
		snap.Definitions.MergeFirst(fileDefs)
	}

	node := &Node{
		Name:     path.Base("/" + rel),
		Children: map[string]*Node{},
	}

	for _, name := range names {
		if strings.HasPrefix(name, ".") || metaFiles[name] {
			continue
		}
		childRel := path.Join(rel, name)
		if b.excluded(childRel) {
			continue
		}

		if isDir[name] {
			child, err := b.walkDir(ctx, snap, childRel, defs)
			if err != nil {
				return nil, err
			}
			child.Meta = defs.Resolve(childRel)
			node.Children[name] = child
			node.Order = append(node.Order, name)
			continue
		}

		if path.Ext(name) != ".json" {
			continue
		}

		rec, err := b.record(childRel, defs)
		if err != nil {
			return nil, err
		}
		b.add(snap, rec)
		node.Children[rec.LongID] = &Node{Name: rec.LongID, Record: rec, Meta: rec.Meta}
		node.Order = append(node.Order, rec.LongID)
	}

	return node, nil
}

func (b *Builder) record(rel string, defs meta.Definitions) (*Record, error) {
	info, err := os.Stat(filepath.Join(b.root, filepath.FromSlash(rel)))
	if err != nil {
		return nil, err
	}
	longID := LongIDFromPath(rel)
	uid, muids := SplitLongID(longID)
	return &Record{
		LongID:     longID,
		Path:       rel,
		UID:        uid,
		MUIDs:      muids,
		MTimeNanos: info.ModTime().UnixNano(),
		Meta:       defs.Resolve(rel),
	}, nil
}

func (b *Builder) add(snap *Snapshot, rec *Record) {
	if existing, dup := snap.Files[rec.LongID]; dup {
		b.logger.Error("document long id not unique",
			zap.String("long_id", rec.LongID),
			zap.String("path", rec.Path),
			zap.String("previous_path", existing.Path),
		)
	}
	snap.Files[rec.LongID] = rec

	if snap.UIDs[rec.UID] == nil {
		snap.UIDs[rec.UID] = map[string]bool{}
	}
	snap.UIDs[rec.UID][rec.LongID] = true

	for _, muid := range rec.MUIDs {
		if snap.MUIDs[muid] == nil {
			snap.MUIDs[muid] = map[string]bool{}
		}
		snap.MUIDs[muid][rec.LongID] = true
	}
}

func (b *Builder) excluded(rel string) bool {
	for _, pattern := range b.exclude {
		if matched, _ := doublestar.Match(pattern, rel); matched {
			return true
		}
	}
	return false
}
