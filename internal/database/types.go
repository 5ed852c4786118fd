package database

import "time"

// ProblemRecord is a data problem found while computing statistics, such as
// a document whose root language cannot be determined.
type ProblemRecord struct {
	ID        string
	File      string
	Message   string
	CreatedAt time.Time
}

// NotificationRecord is an operator-facing alert, such as exhausted push
// retries.
type NotificationRecord struct {
	ID        string
	Title     string
	Message   string
	CreatedAt time.Time
}

// Search update kinds.
const (
	SearchUpdateSegment = "segment"
	SearchUpdatePartial = "partial"
)

// SearchUpdateRecord is one pending change for the external search index.
// Segment updates carry SegmentID, Field and Value; partial updates carry the
// added and modified paths of a push.
type SearchUpdateRecord struct {
	ID        string
	Kind      string
	SegmentID string
	Field     string
	Value     string
	Added     []string
	Modified  []string
	CreatedAt time.Time
	DrainedAt time.Time
}
