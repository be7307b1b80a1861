// Package audit records operator actions taken on facade devices, such
// as attribute writes through the HTTP API, in the audit_log table.
package audit

import (
	"context"
	"errors"
	"time"
)

// Actions.
const (
	ActionWrite = "write"
)

// Query limits.
const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// Sentinel errors.
var (
	ErrMissingAction = errors.New("audit: action is required")
	ErrMissingDevice = errors.New("audit: device is required")
)

// Entry is one audit trail entry.
type Entry struct {
	ID        string         `json:"id"`
	Action    string         `json:"action"`
	Device    string         `json:"device"`
	Attribute string         `json:"attribute,omitempty"`
	Subject   string         `json:"subject,omitempty"` // token subject, empty when auth is off
	Source    string         `json:"source"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Filter controls which entries to return. Zero fields do not filter.
type Filter struct {
	Action    string
	Device    string
	Attribute string
	Limit     int // DefaultLimit when 0, clamped to MaxLimit
	Offset    int
}

// ListResult contains a page of entries, most recent first.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Repository stores and lists audit entries.
type Repository interface {
	// Create stores e, assigning ID and CreatedAt when empty.
	Create(ctx context.Context, e *Entry) error
	List(ctx context.Context, f Filter) (*ListResult, error)
}
