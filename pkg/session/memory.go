package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultMaxMemorySessions bounds a MemoryStore unless WithMaxSessions says
// otherwise.
const DefaultMaxMemorySessions = 100_000

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMaxSessions bounds the number of sessions held. When the store is full,
// creating a session first drops expired ones and then evicts the least
// recently active. Zero or less removes the bound.
func WithMaxSessions(n int) MemoryOption {
	return func(s *MemoryStore) { s.max = n }
}

// WithClock replaces time.Now for expiry decisions.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

// MemoryStore keeps sessions in process memory. Sessions are copied in and
// out so callers never share state with the map. It suits single-instance
// deployments; sessions are lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	max      int
	now      func() time.Time

	stopOnce sync.Once
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewMemoryStore creates an in-memory store whose Touch extends sessions by
// ttl. A zero ttl uses DefaultTTL.
func NewMemoryStore(ttl time.Duration, opts ...MemoryOption) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &MemoryStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		max:      DefaultMaxMemorySessions,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) live(sess *Session, now time.Time) bool {
	return now.Before(sess.ExpiresAt)
}

// Create stores a copy of sess, making room first when the store is full.
func (s *MemoryStore) Create(_ context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[sess.ID]; !exists && s.max > 0 && len(s.sessions) >= s.max {
		s.makeRoomLocked()
	}
	cp := *sess
	s.sessions[sess.ID] = &cp
	return nil
}

// makeRoomLocked drops expired sessions, or the least recently active one
// when none has expired.
func (s *MemoryStore) makeRoomLocked() {
	now := s.now()
	if s.removeExpiredLocked(now) > 0 {
		return
	}
	var (
		oldestID string
		oldest   time.Time
	)
	for id, sess := range s.sessions {
		if oldestID == "" || sess.LastActiveAt.Before(oldest) {
			oldestID, oldest = id, sess.LastActiveAt
		}
	}
	if oldestID != "" {
		delete(s.sessions, oldestID)
		slog.Debug("session: evicted least recently active session",
			"session_id", oldestID, "max_sessions", s.max)
	}
}

// Get returns a copy of the session, or nil, nil when it is missing or
// expired.
func (s *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok || !s.live(sess, s.now()) {
		return nil, nil //nolint:nilnil // Store interface specifies nil,nil for not-found
	}
	cp := *sess
	return &cp, nil
}

// Touch marks a live session active and extends it by the store's TTL.
func (s *MemoryStore) Touch(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if sess, ok := s.sessions[id]; ok && s.live(sess, now) {
		sess.LastActiveAt = now
		sess.ExpiresAt = now.Add(s.ttl)
	}
	return nil
}

// Delete removes a session.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

// Stats counts the live sessions.
func (s *MemoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st Stats
	now := s.now()
	for _, sess := range s.sessions {
		if !s.live(sess, now) {
			continue
		}
		st.Active++
		if sess.CartID != "" {
			st.WithCart++
		}
		if sess.AuthToken != "" {
			st.Customers++
		}
	}
	return st, nil
}

// Update applies u to the session.
func (s *MemoryStore) Update(_ context.Context, id string, u Update) error {
	if u.IsEmpty() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil
	}
	if u.CartID != nil {
		sess.CartID = *u.CartID
	}
	if u.AuthToken != nil {
		sess.AuthToken = *u.AuthToken
	}
	sess.LastActiveAt = s.now()
	return nil
}

// Cleanup removes expired sessions.
func (s *MemoryStore) Cleanup(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeExpiredLocked(s.now()), nil
}

func (s *MemoryStore) removeExpiredLocked(now time.Time) int {
	n := 0
	for id, sess := range s.sessions {
		if !s.live(sess, now) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

// StartCleanupRoutine removes expired sessions every interval until Close.
func (s *MemoryStore) StartCleanupRoutine(interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, _ := s.Cleanup(ctx); n > 0 {
					slog.Debug("session: expired sessions removed", "count", n)
				}
			}
		}
	}()
}

// Close stops the cleanup goroutine. It is safe to call more than once and
// without StartCleanupRoutine.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
			<-s.done
		}
	})
	return nil
}

// Verify interface compliance.
var _ Store = (*MemoryStore)(nil)
