package sqldb

import (
	"context"
	"time"
)

const insertNotification = `INSERT INTO notifications (id, title, message, created_at) VALUES (?, ?, ?, ?)`

type InsertNotificationParams struct {
	ID        string
	Title     string
	Message   string
	CreatedAt time.Time
}

func (q *Queries) InsertNotification(ctx context.Context, arg InsertNotificationParams) error {
	_, err := q.db.ExecContext(ctx, insertNotification, arg.ID, arg.Title, arg.Message, arg.CreatedAt)
	return err
}

const listNotifications = `SELECT id, title, message, created_at FROM notifications ORDER BY id DESC LIMIT ?`

func (q *Queries) ListNotifications(ctx context.Context, limit int64) ([]Notification, error) {
	rows, err := q.db.QueryContext(ctx, listNotifications, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Notification
	for rows.Next() {
		var i Notification
		if err := rows.Scan(&i.ID, &i.Title, &i.Message, &i.CreatedAt); err != nil {
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
