// Package segments merges related documents into one editable view and writes
// single segments back to their owning files.
package segments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/vault-md/textrepo/internal/document"
	"github.com/vault-md/textrepo/internal/gitsync"
	"github.com/vault-md/textrepo/internal/index"
	"github.com/vault-md/textrepo/internal/logging"
	"github.com/vault-md/textrepo/internal/meta"
	"github.com/vault-md/textrepo/internal/sortkey"
)

// RootSelector selects the canonical root document.
const RootSelector = "root"

// Roles of documents in a merged view.
const (
	RoleTarget   = "target"
	RoleSource   = "source"
	RoleTertiary = "tertiary"
)

// Index supplies the current index snapshot and the repository root.
type Index interface {
	Current(ctx context.Context) (*index.Snapshot, error)
	Root() string
}

// Locker runs work under the repository lock.
type Locker interface {
	Exclusive(ctx context.Context, fn func(tx *gitsync.Tx) error) error
}

// Search receives single segment edits for the search index.
type Search interface {
	UpdateSegment(ctx context.Context, segmentID, field, value string) error
}

// Invalidator drops cached per-document statistics.
type Invalidator interface {
	Invalidate(paths ...string)
}

// Archive keeps segment text replaced by a conflicting write.
type Archive interface {
	Save(field, segmentID, text string) (string, error)
}

// Field describes one document contributing to a merged view.
type Field struct {
	LongID     string   `json:"longId"`
	Path       string   `json:"path"`
	Role       string   `json:"role"`
	Editable   bool     `json:"editable"`
	Attributes meta.Set `json:"attributes"`
}

// Entry is one segment of a merged view: field name to text.
type Entry struct {
	ID     string
	Values map[string]string
}

// SegmentMap is the merged segments in canonical order.
type SegmentMap []Entry

// Get returns the values of segment id.
func (m SegmentMap) Get(id string) (map[string]string, bool) {
	for _, e := range m {
		if e.ID == id {
			return e.Values, true
		}
	}
	return nil, false
}

// IDs returns the segment ids in order.
func (m SegmentMap) IDs() []string {
	ids := make([]string, len(m))
	for i, e := range m {
		ids[i] = e.ID
	}
	return ids
}

// MarshalJSON renders the map as a JSON object that keeps segment order.
func (m SegmentMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.ID)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(e.Values)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MergedDocument is a target document merged with its related documents.
type MergedDocument struct {
	Segments    SegmentMap       `json:"segments"`
	Fields      map[string]Field `json:"fields"`
	TargetField string           `json:"targetField"`
	SourceField string           `json:"sourceField,omitempty"`
}

// Store reads merged views and writes segments.
type Store struct {
	idx           Index
	lock          Locker
	search        Search
	cache         Invalidator
	archive       Archive
	commitEnabled bool
	logger        *zap.Logger
}

// Options configures a Store. Search, Cache and Archive may be nil.
type Options struct {
	Lock          Locker
	Search        Search
	Cache         Invalidator
	Archive       Archive
	CommitEnabled bool
	Logger        *zap.Logger
}

// NewStore creates a store over idx.
func NewStore(idx Index, opts Options) *Store {
	return &Store{
		idx:           idx,
		lock:          opts.Lock,
		search:        opts.Search,
		cache:         opts.Cache,
		archive:       opts.Archive,
		commitEnabled: opts.CommitEnabled,
		logger:        logging.OrNop(opts.Logger),
	}
}

// GetMergedDocument merges the primary document with the documents chosen by
// the comma-separated root and tertiary selectors. An empty root selects the
// canonical root. Each tertiary selector is a hyphen-separated muid list and
// includes every matching document. Selectors that match nothing are skipped.
func (s *Store) GetMergedDocument(ctx context.Context, primaryLongID, root, tertiary string) (*MergedDocument, error) {
	snap, err := s.idx.Current(ctx)
	if err != nil {
		return nil, err
	}

	primary, err := snap.Record(primaryLongID)
	if err != nil {
		return nil, err
	}

	m := &merger{
		root:     s.idx.Root(),
		segments: map[string]map[string]string{},
		result:   &MergedDocument{Fields: map[string]Field{}},
		seen:     map[string]bool{},
	}
	if err := m.add(primary, RoleTarget); err != nil {
		return nil, err
	}
	m.result.TargetField = primary.Field()

	if root == "" {
		root = RootSelector
	}
	rootLang := primary.Meta.Property("root_lang")
	rootEdition := primary.Meta.Property("root_edition")
	for _, selector := range splitList(root) {
		if rootLang == "" || rootEdition == "" {
			s.logger.Debug("root selector skipped, root language or edition unknown",
				zap.String("long_id", primaryLongID),
				zap.String("selector", selector),
			)
			break
		}
		rec, err := snap.MatchingRecord(primary.UID, selector, rootLang, rootEdition)
		if errors.Is(err, index.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		role := selector
		if selector == RootSelector {
			role = RoleSource
		}
		if err := m.add(rec, role); err != nil {
			return nil, err
		}
		if role == RoleSource {
			m.result.SourceField = rec.Field()
		}
	}

	for _, selector := range splitList(tertiary) {
		ids, err := snap.MatchingIDs(primary.UID, strings.Split(selector, "-")...)
		if errors.Is(err, index.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			rec, err := snap.Record(id)
			if err != nil {
				return nil, err
			}
			if err := m.add(rec, RoleTertiary); err != nil {
				return nil, err
			}
		}
	}

	ordered, err := s.order(primaryLongID, m.segments)
	if err != nil {
		return nil, err
	}
	m.result.Segments = ordered
	return m.result, nil
}

// order sorts segments canonically. A pair of ids with no defined order is
// reported for every offending combination before the error is returned.
func (s *Store) order(longID string, segments map[string]map[string]string) (SegmentMap, error) {
	ids := make([]string, 0, len(segments))
	for id := range segments {
		ids = append(ids, id)
	}
	if err := sortkey.Sort(ids); err != nil {
		s.logger.Error("segment sort failure", zap.String("long_id", longID), zap.Error(err))
		for _, pair := range sortkey.IncomparablePairs(ids) {
			s.logger.Error("segment ids not comparable",
				zap.String("a", pair.A),
				zap.String("b", pair.B),
			)
		}
		return nil, err
	}

	out := make(SegmentMap, len(ids))
	for i, id := range ids {
		out[i] = Entry{ID: id, Values: segments[id]}
	}
	return out, nil
}

type merger struct {
	root     string
	segments map[string]map[string]string
	result   *MergedDocument
	seen     map[string]bool
}

// add merges one document. A document already merged under another role
// keeps its first role.
func (m *merger) add(rec *index.Record, role string) error {
	if m.seen[rec.LongID] {
		return nil
	}
	m.seen[rec.LongID] = true

	doc, err := document.Load(filepath.Join(m.root, filepath.FromSlash(rec.Path)))
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", rec.LongID, err)
	}

	field := rec.Field()
	m.result.Fields[field] = Field{
		LongID:     rec.LongID,
		Path:       rec.Path,
		Role:       role,
		Editable:   role == RoleTarget,
		Attributes: rec.Meta,
	}
	for id, text := range doc.Segments {
		values, ok := m.segments[id]
		if !ok {
			values = map[string]string{}
			m.segments[id] = values
		}
		values[field] = text
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
