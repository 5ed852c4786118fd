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

// ProblemsLog records data problems reported by the statistics layer.
type ProblemsLog struct {
	queries *sqldb.Queries
	logger  *zap.Logger
	now     func() time.Time
}

// NewProblemsLog creates a problems log on dbCtx.
func NewProblemsLog(dbCtx *Context, logger *zap.Logger) *ProblemsLog {
	return &ProblemsLog{
		queries: queriesFromContext(dbCtx),
		logger:  logging.OrNop(logger),
		now:     time.Now,
	}
}

// Add records a problem for file.
func (p *ProblemsLog) Add(ctx context.Context, file, message string) error {
	if p.queries == nil {
		return errors.New("database context is not initialised")
	}
	now := p.now().UTC()
	err := p.queries.InsertProblem(ctx, sqldb.InsertProblemParams{
		ID:        newID(now),
		File:      file,
		Message:   message,
		CreatedAt: now,
	})
	if err != nil {
		return fmt.Errorf("failed to record problem for %s: %w", file, err)
	}
	p.logger.Warn("data problem", zap.String("file", file), zap.String("message", message))
	return nil
}

// List returns up to limit problems, newest first.
func (p *ProblemsLog) List(ctx context.Context, limit int) ([]ProblemRecord, error) {
	if p.queries == nil {
		return nil, errors.New("database context is not initialised")
	}
	rows, err := p.queries.ListProblems(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list problems: %w", err)
	}
	out := make([]ProblemRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, ProblemRecord(row))
	}
	return out, nil
}

// CountForFile returns how many problems were recorded for file.
func (p *ProblemsLog) CountForFile(ctx context.Context, file string) (int, error) {
	if p.queries == nil {
		return 0, errors.New("database context is not initialised")
	}
	n, err := p.queries.CountProblemsForFile(ctx, file)
	if err != nil {
		return 0, fmt.Errorf("failed to count problems for %s: %w", file, err)
	}
	return int(n), nil
}
