package sqldb

import (
	"context"
	"database/sql"
	"time"
)

const insertSearchUpdate = `INSERT INTO search_updates (id, kind, segment_id, field, value, added, modified, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

type InsertSearchUpdateParams struct {
	ID        string
	Kind      string
	SegmentID sql.NullString
	Field     sql.NullString
	Value     sql.NullString
	Added     sql.NullString
	Modified  sql.NullString
	CreatedAt time.Time
}

func (q *Queries) InsertSearchUpdate(ctx context.Context, arg InsertSearchUpdateParams) error {
	_, err := q.db.ExecContext(ctx, insertSearchUpdate,
		arg.ID,
		arg.Kind,
		arg.SegmentID,
		arg.Field,
		arg.Value,
		arg.Added,
		arg.Modified,
		arg.CreatedAt,
	)
	return err
}

const listPendingSearchUpdates = `SELECT id, kind, segment_id, field, value, added, modified, created_at, drained_at
FROM search_updates WHERE drained_at IS NULL ORDER BY id LIMIT ?`

func (q *Queries) ListPendingSearchUpdates(ctx context.Context, limit int64) ([]SearchUpdate, error) {
	rows, err := q.db.QueryContext(ctx, listPendingSearchUpdates, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SearchUpdate
	for rows.Next() {
		var i SearchUpdate
		if err := rows.Scan(
			&i.ID,
			&i.Kind,
			&i.SegmentID,
			&i.Field,
			&i.Value,
			&i.Added,
			&i.Modified,
			&i.CreatedAt,
			&i.DrainedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const markSearchUpdateDrained = `UPDATE search_updates SET drained_at = ? WHERE id = ? AND drained_at IS NULL`

type MarkSearchUpdateDrainedParams struct {
	DrainedAt time.Time
	ID        string
}

func (q *Queries) MarkSearchUpdateDrained(ctx context.Context, arg MarkSearchUpdateDrainedParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, markSearchUpdateDrained, arg.DrainedAt, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
