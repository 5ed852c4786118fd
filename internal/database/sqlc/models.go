package sqldb

import (
	"database/sql"
	"time"
)

type Problem struct {
	ID        string
	File      string
	Message   string
	CreatedAt time.Time
}

type Notification struct {
	ID        string
	Title     string
	Message   string
	CreatedAt time.Time
}

type SearchUpdate struct {
	ID        string
	Kind      string
	SegmentID sql.NullString
	Field     sql.NullString
	Value     sql.NullString
	Added     sql.NullString
	Modified  sql.NullString
	CreatedAt time.Time
	DrainedAt sql.NullTime
}
