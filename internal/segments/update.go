package segments

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/vault-md/textrepo/internal/document"
	"github.com/vault-md/textrepo/internal/gitsync"
	"github.com/vault-md/textrepo/internal/index"
	"github.com/vault-md/textrepo/internal/metrics"
)

// Update is a client edit of one segment.
type Update struct {
	SegmentID string `json:"segmentId"`
	Field     string `json:"field"`
	Value     string `json:"value"`
	OldValue  string `json:"oldValue"`
}

// Result reports the outcome of an Update. Expected failures set Error
// instead of returning a Go error.
type Result struct {
	Success bool `json:"success,omitempty"`
	Changed bool `json:"changed,omitempty"`
	// Clobbered holds the stored value when it differed from OldValue.
	// The write still happened.
	Clobbered *string `json:"clobbered,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// Result errors.
const (
	ErrorInvalidSegment = "invalid segment id"
	ErrorFileNotFound   = "file not found"
)

// UpdateSegment writes u.Value to the document named by the segment's owning
// uid and u.Field. The read-modify-write runs under the repository lock; the
// search index and the commit batch are told about it afterwards and their
// failures are only logged.
func (s *Store) UpdateSegment(ctx context.Context, u Update, author gitsync.Author) (Result, error) {
	uid, _, ok := strings.Cut(u.SegmentID, ":")
	if !ok || uid == "" {
		metrics.RecordSegmentWrite("invalid")
		return Result{Error: ErrorInvalidSegment}, nil
	}

	snap, err := s.idx.Current(ctx)
	if err != nil {
		return Result{}, err
	}

	rec, err := s.owner(snap, uid, u.Field)
	if errors.Is(err, index.ErrNotFound) {
		s.logger.Error("segment file not found",
			zap.String("segment_id", u.SegmentID),
			zap.String("field", u.Field),
			zap.Error(err),
		)
		metrics.RecordSegmentWrite("not_found")
		return Result{Error: ErrorFileNotFound}, nil
	}
	if err != nil {
		return Result{}, err
	}

	var result Result
	err = s.lock.Exclusive(ctx, func(tx *gitsync.Tx) error {
		path := filepath.Join(s.idx.Root(), filepath.FromSlash(rec.Path))
		doc, err := document.Load(path)
		if err != nil {
			return err
		}

		current, exists := doc.Segments[u.SegmentID]
		if current != "" && current != u.OldValue {
			clobbered := current
			result.Clobbered = &clobbered
			metrics.RecordClobber()
			s.logger.Warn("segment changed since client read it",
				zap.String("segment_id", u.SegmentID),
				zap.String("field", u.Field),
			)
			if s.archive != nil {
				kept, err := s.archive.Save(u.Field, u.SegmentID, current)
				if err != nil {
					s.logger.Error("failed to archive clobbered text", zap.String("segment_id", u.SegmentID), zap.Error(err))
				} else {
					s.logger.Info("clobbered text archived", zap.String("segment_id", u.SegmentID), zap.String("path", kept))
				}
			}
		}
		result.Changed = !exists || current != u.Value

		doc.Segments[u.SegmentID] = u.Value
		if err := document.Save(path, doc); err != nil {
			return fmt.Errorf("could not write segment %s: %w", u.SegmentID, err)
		}
		result.Success = true

		if s.search != nil {
			if err := s.search.UpdateSegment(ctx, u.SegmentID, u.Field, u.Value); err != nil {
				s.logger.Error("failed to update search index", zap.String("segment_id", u.SegmentID), zap.Error(err))
			}
		}
		if s.cache != nil {
			s.cache.Invalidate(snap.RelatedPaths(rec.Path)...)
		}
		if s.commitEnabled {
			if err := tx.RecordEdit(rec.Path, author); err != nil {
				s.logger.Error("git commit failed", zap.String("path", rec.Path), zap.Error(err))
			}
		}
		return nil
	})
	if err != nil {
		metrics.RecordSegmentWrite("error")
		return Result{}, err
	}
	metrics.RecordSegmentWrite("ok")
	return result, nil
}

// owner finds the document holding segments of uid for field. A uid without a
// document of its own belongs to the nearest preceding uid.
func (s *Store) owner(snap *index.Snapshot, uid, field string) (*index.Record, error) {
	parent, err := snap.ParentUID(uid)
	if err != nil {
		return nil, err
	}
	if parent != uid {
		s.logger.Debug("segment owned by preceding uid", zap.String("uid", uid), zap.String("owner", parent))
	}
	return snap.Record(parent + "_" + field)
}
