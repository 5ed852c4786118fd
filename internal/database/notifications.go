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

// Notifier stores operator notifications and logs them at error level.
type Notifier struct {
	queries *sqldb.Queries
	logger  *zap.Logger
	now     func() time.Time
}

// NewNotifier creates a notifier on dbCtx.
func NewNotifier(dbCtx *Context, logger *zap.Logger) *Notifier {
	return &Notifier{
		queries: queriesFromContext(dbCtx),
		logger:  logging.OrNop(logger),
		now:     time.Now,
	}
}

// Notify records a notification.
func (n *Notifier) Notify(ctx context.Context, title, message string) error {
	n.logger.Error(title, zap.String("message", message))
	if n.queries == nil {
		return errors.New("database context is not initialised")
	}
	now := n.now().UTC()
	err := n.queries.InsertNotification(ctx, sqldb.InsertNotificationParams{
		ID:        newID(now),
		Title:     title,
		Message:   message,
		CreatedAt: now,
	})
	if err != nil {
		return fmt.Errorf("failed to record notification: %w", err)
	}
	return nil
}

// List returns up to limit notifications, newest first.
func (n *Notifier) List(ctx context.Context, limit int) ([]NotificationRecord, error) {
	if n.queries == nil {
		return nil, errors.New("database context is not initialised")
	}
	rows, err := n.queries.ListNotifications(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	out := make([]NotificationRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, NotificationRecord(row))
	}
	return out, nil
}
