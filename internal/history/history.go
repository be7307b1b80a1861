package history

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-facade/internal/graph"
)

// Query limits.
const (
	DefaultLimit = 50
	MaxLimit     = 1000
)

// Entry is one recorded attribute change.
type Entry struct {
	ID        int64         `json:"id"`
	Device    string        `json:"device"`
	Attribute string        `json:"attribute"`
	Value     any           `json:"value,omitempty"`
	Quality   graph.Quality `json:"quality"`
	Error     string        `json:"error,omitempty"`

	// Time is the stamp of the attribute reading.
	Time time.Time `json:"time"`

	// RecordedAt is when the entry was written. Pruning uses it.
	RecordedAt time.Time `json:"recorded_at"`
}

// Query selects history entries. Zero fields do not filter.
type Query struct {
	Device    string
	Attribute string
	Since     time.Time
	Until     time.Time

	// Limit caps the result, DefaultLimit when 0, clamped to MaxLimit.
	Limit int
}

// Repository stores and retrieves attribute history.
//
// Implementations must be safe for concurrent use.
type Repository interface {
	// Record stores an entry. ID and RecordedAt are assigned by the repository.
	Record(ctx context.Context, e Entry) error

	// Query returns matching entries, newest reading first.
	Query(ctx context.Context, q Query) ([]Entry, error)

	// Prune deletes entries recorded more than olderThan ago and returns
	// how many were deleted.
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}
