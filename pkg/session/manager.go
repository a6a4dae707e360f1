package session

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Mode selects where session attributes live.
type Mode string

const (
	// ModeCookie keeps cart id and token in client-held cookies.
	ModeCookie Mode = "cookie"

	// ModeStore keeps them in a server-side Store behind a session cookie.
	ModeStore Mode = "store"

	// slogKeyError is the slog attribute key for error values.
	slogKeyError = "error"

	// DefaultTTL is the server-side session lifetime.
	DefaultTTL = 7 * 24 * time.Hour
)

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	Mode   Mode
	Store  Store
	TTL    time.Duration
	Cookie CookieConfig
}

// Manager opens the Identity for a request.
type Manager struct {
	mode   Mode
	store  Store
	ttl    time.Duration
	cookie CookieConfig
}

// NewManager creates a Manager. ModeStore requires a Store.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	mode := cfg.Mode
	if mode == "" {
		mode = ModeCookie
	}
	switch mode {
	case ModeCookie:
	case ModeStore:
		if cfg.Store == nil {
			return nil, errors.New("session: store mode requires a store")
		}
	default:
		return nil, fmt.Errorf("session: unknown mode %q", mode)
	}

	ttl := cfg.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		mode:   mode,
		store:  cfg.Store,
		ttl:    ttl,
		cookie: cfg.Cookie.withDefaults(),
	}, nil
}

// Mode returns the configured mode.
func (m *Manager) Mode() Mode { return m.mode }

// Open returns the visitor's Identity. In store mode a missing or expired
// session is replaced by a new one and its id is written to the response.
func (m *Manager) Open(w http.ResponseWriter, r *http.Request) (Identity, error) {
	if m.mode == ModeCookie {
		return NewCookieIdentity(w, r, m.cookie), nil
	}

	ctx := r.Context()
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		sess, err := m.store.Get(ctx, c.Value)
		if err != nil {
			return nil, fmt.Errorf("loading session: %w", err)
		}
		if sess != nil {
			if err := m.store.Touch(ctx, sess.ID); err != nil {
				slog.Debug("session: touch failed", "session_id", sess.ID, slogKeyError, err)
			}
			return NewStoredIdentity(m.store, sess), nil
		}
	}

	now := time.Now()
	sess := &Session{
		ID:           uuid.NewString(),
		CreatedAt:    now,
		LastActiveAt: now,
		ExpiresAt:    now.Add(m.ttl),
	}
	if err := m.store.Create(ctx, sess); err != nil {
		slog.Error("session: failed to create", slogKeyError, err)
		return nil, fmt.Errorf("creating session: %w", err)
	}
	http.SetCookie(w, m.cookie.cookie(SessionCookie, sess.ID))

	slog.Debug("session: created", "session_id", sess.ID)
	return NewStoredIdentity(m.store, sess), nil
}
