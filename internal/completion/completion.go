// Package completion computes translation progress for documents and rolls it
// up over the tree index.
package completion

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/vault-md/textrepo/internal/document"
	"github.com/vault-md/textrepo/internal/index"
	"github.com/vault-md/textrepo/internal/logging"
)

// Node types in a condensed tree.
const (
	TypeNode     = "node"
	TypeDocument = "document"
)

// Counts is the completion of a document or subtree.
type Counts struct {
	Translated int `json:"translated"`
	Root       int `json:"root"`
}

func (c Counts) add(other Counts) Counts {
	return Counts{Translated: c.Translated + other.Translated, Root: c.Root + other.Root}
}

// Index supplies the current index snapshot and the repository root.
type Index interface {
	Current(ctx context.Context) (*index.Snapshot, error)
	Root() string
}

// Problems receives diagnostics for documents whose metadata is incomplete.
type Problems interface {
	Add(ctx context.Context, file, message string) error
}

// Cache memoizes per-document completion for the lifetime of the process.
// Entries are dropped only by Invalidate or Clear.
type Cache struct {
	idx      Index
	problems Problems
	logger   *zap.Logger
	workers  int

	mu      sync.RWMutex
	entries map[string]Counts
	// gens advances per path on Invalidate and epoch on Clear.
	gens  map[string]uint64
	epoch uint64
}

// Option configures a Cache.
type Option func(*Cache)

// WithProblems sets the diagnostics sink.
func WithProblems(p Problems) Option {
	return func(c *Cache) { c.problems = p }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) { c.logger = logging.OrNop(l) }
}

// WithWorkers bounds the number of documents counted concurrently by Tree.
func WithWorkers(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.workers = n
		}
	}
}

// New creates a completion cache over idx.
func New(idx Index, opts ...Option) *Cache {
	c := &Cache{
		idx:     idx,
		logger:  zap.NewNop(),
		workers: 8,
		entries: map[string]Counts{},
		gens:    map[string]uint64{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// maxRecount bounds how often CompletionFor recounts a document that was
// invalidated while it was being counted.
const maxRecount = 3

// CompletionFor returns the completion of the document at rec.Path. A count
// that raced with Invalidate or Clear is recounted and is never cached stale.
func (c *Cache) CompletionFor(ctx context.Context, rec *index.Record) (Counts, error) {
	var counts Counts
	for i := 0; i < maxRecount; i++ {
		c.mu.RLock()
		cached, ok := c.entries[rec.Path]
		gen, epoch := c.gens[rec.Path], c.epoch
		c.mu.RUnlock()
		if ok {
			return cached, nil
		}

		snap, err := c.idx.Current(ctx)
		if err != nil {
			return Counts{}, err
		}
		counts, err = c.calculate(ctx, snap, rec)
		if err != nil {
			return Counts{}, err
		}

		c.mu.Lock()
		if c.gens[rec.Path] == gen && c.epoch == epoch {
			if existing, ok := c.entries[rec.Path]; ok {
				counts = existing
			} else {
				c.entries[rec.Path] = counts
			}
			c.mu.Unlock()
			return counts, nil
		}
		c.mu.Unlock()
		c.logger.Debug("completion invalidated while counting", zap.String("file", rec.Path))
	}
	return counts, nil
}

func (c *Cache) calculate(ctx context.Context, snap *index.Snapshot, rec *index.Record) (Counts, error) {
	translated, err := c.count(rec)
	if err != nil {
		return Counts{}, err
	}

	rootLang := rec.Meta.Property("root_lang")
	rootEdition := rec.Meta.Property("root_edition")

	var missing []string
	if rootLang == "" {
		missing = append(missing, "root lang")
	}
	if rootEdition == "" {
		missing = append(missing, "root edition")
	}
	if len(missing) > 0 {
		c.problem(ctx, rec.Path, strings.Join(missing, ", ")+" could not be determined, please check author and project definitions")
		return Counts{Translated: translated, Root: translated}, nil
	}

	rootRec, err := snap.MatchingRecord(rec.UID, "root", rootLang, rootEdition)
	if err != nil {
		if errors.Is(err, index.ErrNotFound) || errors.Is(err, index.ErrAmbiguous) {
			c.problem(ctx, rec.Path, fmt.Sprintf("root document could not be resolved: %v", err))
			return Counts{Translated: translated, Root: translated}, nil
		}
		return Counts{}, err
	}

	root, err := c.count(rootRec)
	if err != nil {
		return Counts{}, err
	}
	return Counts{Translated: translated, Root: max(root, translated)}, nil
}

func (c *Cache) count(rec *index.Record) (int, error) {
	doc, err := document.Load(filepath.Join(c.idx.Root(), filepath.FromSlash(rec.Path)))
	if err != nil {
		return 0, fmt.Errorf("failed to count segments: %w", err)
	}
	return doc.CountNonEmpty(), nil
}

func (c *Cache) problem(ctx context.Context, file, message string) {
	c.logger.Warn("completion fallback", zap.String("file", file), zap.String("problem", message))
	if c.problems == nil {
		return
	}
	if err := c.problems.Add(ctx, file, message); err != nil {
		c.logger.Error("failed to record problem", zap.String("file", file), zap.Error(err))
	}
}

// Invalidate drops the cached completion for the given document paths.
func (c *Cache) Invalidate(paths ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range paths {
		p = filepath.ToSlash(p)
		delete(c.entries, p)
		c.gens[p]++
	}
}

// Clear drops every cached entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[string]Counts{}
	c.gens = map[string]uint64{}
	c.epoch++
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
