// Package session maps a visitor to a persisted cart id and an optional
// customer auth token. It defines the Identity passed explicitly into every
// cart operation, the cookie and store backed Identity implementations, and
// the Store interface for server-side session persistence.
package session

import (
	"context"
	"time"
)

// Session is a server-side visitor session.
type Session struct {
	// ID is the opaque session identifier held in the visitor's cookie.
	ID string

	// CartID references the visitor's active cart; empty when none.
	CartID string

	// AuthToken is the customer JWT; empty for guests.
	AuthToken string

	// CreatedAt is when the session was established.
	CreatedAt time.Time

	// LastActiveAt is the most recent activity timestamp.
	LastActiveAt time.Time

	// ExpiresAt is when the session expires if not touched.
	ExpiresAt time.Time
}

// Update selects the session attributes to change. Nil fields are left as
// they are; a pointer to "" clears the attribute.
type Update struct {
	CartID    *string
	AuthToken *string
}

// IsEmpty reports whether the update changes nothing.
func (u Update) IsEmpty() bool {
	return u.CartID == nil && u.AuthToken == nil
}

// Stats summarizes the live (unexpired) sessions of a store.
type Stats struct {
	// Active is the number of live sessions.
	Active int `json:"active"`

	// WithCart is the number of live sessions that reference a cart.
	WithCart int `json:"with_cart"`

	// Customers is the number of live sessions holding a customer token.
	Customers int `json:"customers"`
}

// Store defines the interface for session persistence.
type Store interface {
	// Create persists a new session.
	Create(ctx context.Context, s *Session) error

	// Get retrieves a session by ID. Returns nil, nil if not found or expired.
	Get(ctx context.Context, id string) (*Session, error)

	// Touch updates LastActiveAt and extends ExpiresAt by the store's TTL.
	Touch(ctx context.Context, id string) error

	// Delete removes a session.
	Delete(ctx context.Context, id string) error

	// Stats counts the live sessions.
	Stats(ctx context.Context) (Stats, error)

	// Update applies u to the session. Updating a missing session is a no-op.
	Update(ctx context.Context, id string, u Update) error

	// Cleanup removes expired sessions and reports how many it removed.
	Cleanup(ctx context.Context) (int, error)

	// Close stops background routines and releases resources.
	Close() error
}

func strPtr(s string) *string { return &s }
