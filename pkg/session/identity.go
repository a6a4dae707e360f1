package session

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"
)

const (
	// CartCookie holds the visitor's cart id in cookie mode.
	CartCookie = "_medusa_cart_id"

	// TokenCookie holds the customer JWT in cookie mode.
	TokenCookie = "_medusa_jwt"

	// SessionCookie holds the opaque session id in store mode.
	SessionCookie = "_storefront_sid"

	// DefaultCookieMaxAge is the lifetime of cart, token, and session cookies.
	DefaultCookieMaxAge = 7 * 24 * time.Hour
)

// Identity is the per-request view of a visitor's session. Guests have no
// auth token; that is a valid state, not an error.
type Identity interface {
	// SessionID returns the server-side session id, or "" in cookie mode.
	SessionID() string

	CartID() string
	SetCartID(ctx context.Context, id string) error
	// RemoveCartID clears the cart reference. Clearing an absent id succeeds.
	RemoveCartID(ctx context.Context) error

	AuthToken() string
	SetAuthToken(ctx context.Context, token string) error
	RemoveAuthToken(ctx context.Context) error
}

// AuthHeaders returns the backend authorization headers for id: a bearer
// token when one is stored, otherwise an empty set.
func AuthHeaders(id Identity) http.Header {
	h := http.Header{}
	if id == nil {
		return h
	}
	if token := id.AuthToken(); token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}

// CookieConfig controls the attributes of cookies written for a visitor.
type CookieConfig struct {
	MaxAge time.Duration
	Secure bool
	Path   string
}

func (c CookieConfig) withDefaults() CookieConfig {
	if c.MaxAge == 0 {
		c.MaxAge = DefaultCookieMaxAge
	}
	if c.Path == "" {
		c.Path = "/"
	}
	return c
}

func (c CookieConfig) cookie(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     c.Path,
		MaxAge:   int(c.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
	}
}

func (c CookieConfig) expired(name string) *http.Cookie {
	ck := c.cookie(name, "")
	ck.MaxAge = -1
	return ck
}

// CookieIdentity keeps the cart id and auth token in client-held cookies.
// Writes set response cookies and are visible to later reads on the same
// request.
type CookieIdentity struct {
	w   http.ResponseWriter
	cfg CookieConfig

	mu     sync.RWMutex
	cartID string
	token  string
}

// NewCookieIdentity reads the visitor's cookies from r; writes go to w.
func NewCookieIdentity(w http.ResponseWriter, r *http.Request, cfg CookieConfig) *CookieIdentity {
	id := &CookieIdentity{w: w, cfg: cfg.withDefaults()}
	if c, err := r.Cookie(CartCookie); err == nil {
		id.cartID = c.Value
	}
	if c, err := r.Cookie(TokenCookie); err == nil {
		id.token = c.Value
	}
	return id
}

// SessionID returns "" since cookie mode has no server-side session.
func (*CookieIdentity) SessionID() string { return "" }

// CartID returns the cart id cookie value.
func (c *CookieIdentity) CartID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cartID
}

// SetCartID writes the cart id cookie.
func (c *CookieIdentity) SetCartID(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cartID = id
	http.SetCookie(c.w, c.cfg.cookie(CartCookie, id))
	return nil
}

// RemoveCartID expires the cart id cookie.
func (c *CookieIdentity) RemoveCartID(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cartID = ""
	http.SetCookie(c.w, c.cfg.expired(CartCookie))
	return nil
}

// AuthToken returns the customer token cookie value.
func (c *CookieIdentity) AuthToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetAuthToken writes the customer token cookie.
func (c *CookieIdentity) SetAuthToken(_ context.Context, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	http.SetCookie(c.w, c.cfg.cookie(TokenCookie, token))
	return nil
}

// RemoveAuthToken expires the customer token cookie.
func (c *CookieIdentity) RemoveAuthToken(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	http.SetCookie(c.w, c.cfg.expired(TokenCookie))
	return nil
}

// StoredIdentity keeps the cart id and auth token in a server-side Store.
type StoredIdentity struct {
	store Store

	mu   sync.RWMutex
	sess Session
}

// NewStoredIdentity wraps a session loaded from store.
func NewStoredIdentity(store Store, sess *Session) *StoredIdentity {
	return &StoredIdentity{store: store, sess: *sess}
}

// SessionID returns the server-side session id.
func (s *StoredIdentity) SessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sess.ID
}

// CartID returns the stored cart id.
func (s *StoredIdentity) CartID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sess.CartID
}

// SetCartID persists the cart id.
func (s *StoredIdentity) SetCartID(ctx context.Context, id string) error {
	return s.apply(ctx, Update{CartID: strPtr(id)})
}

// RemoveCartID clears the stored cart id.
func (s *StoredIdentity) RemoveCartID(ctx context.Context) error {
	return s.apply(ctx, Update{CartID: strPtr("")})
}

// AuthToken returns the stored customer token.
func (s *StoredIdentity) AuthToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sess.AuthToken
}

// SetAuthToken persists the customer token.
func (s *StoredIdentity) SetAuthToken(ctx context.Context, token string) error {
	return s.apply(ctx, Update{AuthToken: strPtr(token)})
}

// RemoveAuthToken clears the stored customer token.
func (s *StoredIdentity) RemoveAuthToken(ctx context.Context) error {
	return s.apply(ctx, Update{AuthToken: strPtr("")})
}

func (s *StoredIdentity) apply(ctx context.Context, u Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Update(ctx, s.sess.ID, u); err != nil {
		return fmt.Errorf("updating session %s: %w", s.sess.ID, err)
	}
	if u.CartID != nil {
		s.sess.CartID = *u.CartID
	}
	if u.AuthToken != nil {
		s.sess.AuthToken = *u.AuthToken
	}
	return nil
}

// Verify interface compliance.
var (
	_ Identity = (*CookieIdentity)(nil)
	_ Identity = (*StoredIdentity)(nil)
)
