package audit

import (
	"context"
	"sync"
)

// DefaultMemoryCapacity bounds the events a MemoryLogger keeps.
const DefaultMemoryCapacity = 1000

// MemoryLogger keeps the most recent events in a ring buffer. It serves the
// admin and operator surfaces when no database is configured.
type MemoryLogger struct {
	mu     sync.RWMutex
	events []Event
	next   int
	full   bool
}

// NewMemoryLogger creates a MemoryLogger holding up to capacity events.
func NewMemoryLogger(capacity int) *MemoryLogger {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryLogger{events: make([]Event, capacity)}
}

// Log records an audit event, evicting the oldest when full.
func (m *MemoryLogger) Log(_ context.Context, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events[m.next] = event
	m.next = (m.next + 1) % len(m.events)
	if m.next == 0 {
		m.full = true
	}
	return nil
}

// Query retrieves events matching the filter, newest first.
func (m *MemoryLogger) Query(_ context.Context, filter QueryFilter) ([]Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := m.next
	if m.full {
		n = len(m.events)
	}

	out := make([]Event, 0)
	skipped := 0
	for i := range n {
		idx := (m.next - 1 - i + len(m.events)) % len(m.events)
		e := m.events[idx]
		if !filter.Matches(e) {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

// Count returns the number of events matching the filter, ignoring Limit
// and Offset.
func (m *MemoryLogger) Count(_ context.Context, filter QueryFilter) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := m.next
	if m.full {
		n = len(m.events)
	}
	count := 0
	for i := range n {
		if filter.Matches(m.events[i]) {
			count++
		}
	}
	return count, nil
}

// Close releases resources.
func (*MemoryLogger) Close() error { return nil }

// NoopLogger discards events.
type NoopLogger struct{}

// Log discards the event.
func (NoopLogger) Log(context.Context, Event) error { return nil }

// Query returns no events.
func (NoopLogger) Query(context.Context, QueryFilter) ([]Event, error) { return []Event{}, nil }

// Count returns zero.
func (NoopLogger) Count(context.Context, QueryFilter) (int, error) { return 0, nil }

// Close releases resources.
func (NoopLogger) Close() error { return nil }

// Verify interface compliance.
var (
	_ Logger = (*MemoryLogger)(nil)
	_ Logger = NoopLogger{}
)
