// Package audit records cart operations so operators can trace what a
// visitor session did to its cart.
package audit

import (
	"context"
	"time"
)

// Logger defines the interface for audit logging.
type Logger interface {
	// Log records an audit event.
	Log(ctx context.Context, event Event) error

	// Query retrieves audit events matching the filter, newest first.
	Query(ctx context.Context, filter QueryFilter) ([]Event, error)

	// Close releases resources.
	Close() error
}

// Event represents one cart operation.
type Event struct {
	ID           string         `json:"id"`
	Timestamp    time.Time      `json:"timestamp"`
	DurationMS   int64          `json:"duration_ms"`
	RequestID    string         `json:"request_id,omitempty"`
	SessionID    string         `json:"session_id,omitempty"`
	CustomerID   string         `json:"customer_id,omitempty"`
	Operation    Operation      `json:"operation"`
	CartID       string         `json:"cart_id,omitempty"`
	CountryCode  string         `json:"country_code,omitempty"`
	RegionID     string         `json:"region_id,omitempty"`
	Tags         []string       `json:"tags,omitempty"`
	Parameters   map[string]any `json:"parameters,omitempty"`
	Success      bool           `json:"success"`
	ErrorMessage string         `json:"error_message,omitempty"`
}

// QueryFilter defines criteria for querying audit events.
type QueryFilter struct {
	ID        string
	StartTime *time.Time
	EndTime   *time.Time
	SessionID string
	CartID    string
	Operation Operation
	Success   *bool
	Limit     int
	Offset    int
}

// Matches reports whether e satisfies the filter, ignoring Limit and Offset.
func (f QueryFilter) Matches(e Event) bool {
	switch {
	case f.ID != "" && e.ID != f.ID:
		return false
	case f.StartTime != nil && e.Timestamp.Before(*f.StartTime):
		return false
	case f.EndTime != nil && e.Timestamp.After(*f.EndTime):
		return false
	case f.SessionID != "" && e.SessionID != f.SessionID:
		return false
	case f.CartID != "" && e.CartID != f.CartID:
		return false
	case f.Operation != "" && e.Operation != f.Operation:
		return false
	case f.Success != nil && e.Success != *f.Success:
		return false
	}
	return true
}

// Config configures audit logging.
type Config struct {
	Enabled       bool
	RetentionDays int
}
