package auth

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidAPIKey is returned when no configured key matches.
var ErrInvalidAPIKey = errors.New("invalid API key")

// RoleAdmin grants access to the admin API and operator tools.
const RoleAdmin = "admin"

// APIKey is a named operator key. Hash is the bcrypt hash of the key value.
type APIKey struct {
	Name  string   `yaml:"name"`
	Hash  string   `yaml:"hash"`
	Roles []string `yaml:"roles"`
}

// APIKeyConfig holds API key configuration.
type APIKeyConfig struct {
	Keys []APIKey
}

// APIKeyAuthenticator authenticates operators by API key.
type APIKeyAuthenticator struct {
	mu   sync.RWMutex
	keys []APIKey
}

// NewAPIKeyAuthenticator creates an authenticator. Keys whose hash is not a
// bcrypt hash are rejected.
func NewAPIKeyAuthenticator(cfg APIKeyConfig) (*APIKeyAuthenticator, error) {
	a := &APIKeyAuthenticator{}
	for _, k := range cfg.Keys {
		if err := a.AddKey(k); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// HashAPIKey returns the bcrypt hash to store for a key value.
func HashAPIKey(key string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing API key: %w", err)
	}
	return string(h), nil
}

// Authenticate returns the operator owning key.
func (a *APIKeyAuthenticator) Authenticate(key string) (*Operator, error) {
	if key == "" {
		return nil, ErrInvalidAPIKey
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	for _, k := range a.keys {
		if bcrypt.CompareHashAndPassword([]byte(k.Hash), []byte(key)) == nil {
			return &Operator{
				Name:     k.Name,
				Roles:    slices.Clone(k.Roles),
				AuthType: "apikey",
			}, nil
		}
	}
	return nil, ErrInvalidAPIKey
}

// AuthenticateRequest reads the key from X-API-Key or a bearer
// Authorization header.
func (a *APIKeyAuthenticator) AuthenticateRequest(r *http.Request) (*Operator, error) {
	return a.Authenticate(ExtractAPIKey(r))
}

// AddKey adds a key at runtime.
func (a *APIKeyAuthenticator) AddKey(k APIKey) error {
	if _, err := bcrypt.Cost([]byte(k.Hash)); err != nil {
		return fmt.Errorf("api key %q: hash is not bcrypt: %w", k.Name, err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.keys = append(a.keys, k)
	return nil
}

// RemoveKey removes every key with the given name.
func (a *APIKeyAuthenticator) RemoveKey(name string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	before := len(a.keys)
	a.keys = slices.DeleteFunc(a.keys, func(k APIKey) bool { return k.Name == name })
	return len(a.keys) != before
}

// ExtractAPIKey gets the key from X-API-Key or a bearer Authorization header.
func ExtractAPIKey(r *http.Request) string {
	return APIKeyFromHeader(r.Header)
}

// APIKeyFromHeader is ExtractAPIKey for a bare header set.
func APIKeyFromHeader(h http.Header) string {
	if key := h.Get("X-API-Key"); key != "" {
		return key
	}
	if token, ok := strings.CutPrefix(h.Get("Authorization"), "Bearer "); ok {
		return token
	}
	return ""
}
