package database

import (
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	sqldb "github.com/vault-md/textrepo/internal/database/sqlc"
)

var (
	idMu      sync.Mutex
	idEntropy = ulid.Monotonic(rand.Reader, 0)
)

// newID returns a ULID. IDs from one process sort in creation order.
func newID(now time.Time) string {
	idMu.Lock()
	defer idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(now), idEntropy).String()
}

func nullString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func optionalString(ns sql.NullString) string {
	if !ns.Valid {
		return ""
	}
	return ns.String
}

func optionalTime(nt sql.NullTime) time.Time {
	if !nt.Valid {
		return time.Time{}
	}
	return nt.Time
}

// nullPathList stores a path list as a JSON array. An empty list is NULL.
func nullPathList(paths []string) (sql.NullString, error) {
	if len(paths) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(paths)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func optionalPathList(ns sql.NullString) ([]string, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	var paths []string
	if err := json.Unmarshal([]byte(ns.String), &paths); err != nil {
		return nil, err
	}
	return paths, nil
}

func queriesFromContext(ctx *Context) *sqldb.Queries {
	if ctx == nil {
		return nil
	}
	if ctx.Queries != nil {
		return ctx.Queries
	}
	if ctx.DB == nil {
		return nil
	}
	return sqldb.New(ctx.DB)
}
