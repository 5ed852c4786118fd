package sqldb

import "context"

const deleteAllProblems = `DELETE FROM problems`

func (q *Queries) DeleteAllProblems(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteAllProblems)
	return err
}

const deleteAllNotifications = `DELETE FROM notifications`

func (q *Queries) DeleteAllNotifications(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteAllNotifications)
	return err
}

const deleteAllSearchUpdates = `DELETE FROM search_updates`

func (q *Queries) DeleteAllSearchUpdates(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteAllSearchUpdates)
	return err
}
