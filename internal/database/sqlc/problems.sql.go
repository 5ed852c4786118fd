package sqldb

import (
	"context"
	"time"
)

const insertProblem = `INSERT INTO problems (id, file, message, created_at) VALUES (?, ?, ?, ?)`

type InsertProblemParams struct {
	ID        string
	File      string
	Message   string
	CreatedAt time.Time
}

func (q *Queries) InsertProblem(ctx context.Context, arg InsertProblemParams) error {
	_, err := q.db.ExecContext(ctx, insertProblem, arg.ID, arg.File, arg.Message, arg.CreatedAt)
	return err
}

const listProblems = `SELECT id, file, message, created_at FROM problems ORDER BY id DESC LIMIT ?`

func (q *Queries) ListProblems(ctx context.Context, limit int64) ([]Problem, error) {
	rows, err := q.db.QueryContext(ctx, listProblems, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Problem
	for rows.Next() {
		var i Problem
		if err := rows.Scan(&i.ID, &i.File, &i.Message, &i.CreatedAt); err != nil {
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

const countProblemsForFile = `SELECT COUNT(*) FROM problems WHERE file = ?`

func (q *Queries) CountProblemsForFile(ctx context.Context, file string) (int64, error) {
	row := q.db.QueryRowContext(ctx, countProblemsForFile, file)
	var count int64
	err := row.Scan(&count)
	return count, err
}
