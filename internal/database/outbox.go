package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	sqldb "github.com/vault-md/textrepo/internal/database/sqlc"
	"github.com/vault-md/textrepo/internal/logging"
)

// SearchOutbox queues search index updates until a drainer forwards them.
type SearchOutbox struct {
	queries *sqldb.Queries
	logger  *zap.Logger
	now     func() time.Time
}

// NewSearchOutbox creates an outbox on dbCtx.
func NewSearchOutbox(dbCtx *Context, logger *zap.Logger) *SearchOutbox {
	return &SearchOutbox{
		queries: queriesFromContext(dbCtx),
		logger:  logging.OrNop(logger),
		now:     time.Now,
	}
}

// UpdateSegment queues a single segment edit.
func (o *SearchOutbox) UpdateSegment(ctx context.Context, segmentID, field, value string) error {
	if o.queries == nil {
		return errors.New("database context is not initialised")
	}
	now := o.now().UTC()
	err := o.queries.InsertSearchUpdate(ctx, sqldb.InsertSearchUpdateParams{
		ID:        newID(now),
		Kind:      SearchUpdateSegment,
		SegmentID: nullString(segmentID),
		Field:     nullString(field),
		Value:     nullString(value),
		CreatedAt: now,
	})
	if err != nil {
		return fmt.Errorf("failed to queue search update for %s: %w", segmentID, err)
	}
	return nil
}

// UpdatePartial queues a reindex of the files a push added or modified.
// Nothing is queued when both lists are empty.
func (o *SearchOutbox) UpdatePartial(ctx context.Context, added, modified []string) error {
	if len(added) == 0 && len(modified) == 0 {
		return nil
	}
	if o.queries == nil {
		return errors.New("database context is not initialised")
	}
	addedCol, err := nullPathList(added)
	if err != nil {
		return fmt.Errorf("failed to encode added paths: %w", err)
	}
	modifiedCol, err := nullPathList(modified)
	if err != nil {
		return fmt.Errorf("failed to encode modified paths: %w", err)
	}
	now := o.now().UTC()
	err = o.queries.InsertSearchUpdate(ctx, sqldb.InsertSearchUpdateParams{
		ID:        newID(now),
		Kind:      SearchUpdatePartial,
		Added:     addedCol,
		Modified:  modifiedCol,
		CreatedAt: now,
	})
	if err != nil {
		return fmt.Errorf("failed to queue partial search update: %w", err)
	}
	o.logger.Debug("queued partial search update",
		zap.Int("added", len(added)),
		zap.Int("modified", len(modified)),
	)
	return nil
}

// Pending returns up to limit undrained updates, oldest first.
func (o *SearchOutbox) Pending(ctx context.Context, limit int) ([]SearchUpdateRecord, error) {
	if o.queries == nil {
		return nil, errors.New("database context is not initialised")
	}
	rows, err := o.queries.ListPendingSearchUpdates(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list search updates: %w", err)
	}
	out := make([]SearchUpdateRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := searchUpdateFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// MarkDrained marks an update as forwarded. It returns ErrNotFound when the
// update does not exist or was already drained.
func (o *SearchOutbox) MarkDrained(ctx context.Context, id string) error {
	if o.queries == nil {
		return errors.New("database context is not initialised")
	}
	n, err := o.queries.MarkSearchUpdateDrained(ctx, sqldb.MarkSearchUpdateDrainedParams{
		DrainedAt: o.now().UTC(),
		ID:        id,
	})
	if err != nil {
		return fmt.Errorf("failed to mark search update %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func searchUpdateFromRow(row sqldb.SearchUpdate) (SearchUpdateRecord, error) {
	added, err := optionalPathList(row.Added)
	if err != nil {
		return SearchUpdateRecord{}, fmt.Errorf("failed to decode search update %s: %w", row.ID, err)
	}
	modified, err := optionalPathList(row.Modified)
	if err != nil {
		return SearchUpdateRecord{}, fmt.Errorf("failed to decode search update %s: %w", row.ID, err)
	}
	return SearchUpdateRecord{
		ID:        row.ID,
		Kind:      row.Kind,
		SegmentID: optionalString(row.SegmentID),
		Field:     optionalString(row.Field),
		Value:     optionalString(row.Value),
		Added:     added,
		Modified:  modified,
		CreatedAt: row.CreatedAt,
		DrainedAt: optionalTime(row.DrainedAt),
	}, nil
}
