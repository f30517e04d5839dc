package directory

import (
	"context"
	"time"
)

// RecordStore reads employee rows. Implementations wrap every failure with
// ErrDataAccess.
type RecordStore interface {
	// CountExactMatch counts rows whose first and last names equal the
	// arguments exactly and reports how long the query call took.
	CountExactMatch(ctx context.Context, first, last string) (int64, time.Duration, error)
	// Stats returns the row count plus a sample row.
	Stats(ctx context.Context) (DirectoryStats, error)
	// Ping verifies connectivity.
	Ping(ctx context.Context) error
	Close()
}

// Searcher runs the fixed-name search.
type Searcher interface {
	SearchFixedName(ctx context.Context) (SearchResult, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Publisher pushes run notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}
