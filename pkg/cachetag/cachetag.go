// Package cachetag tracks logical invalidation tags for backend resource
// classes. Cart and region mutations mark tags stale; the rendering layer
// observes the bumped versions, or receives them through a Notifier.
package cachetag

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Tag is a resource class, optionally suffixed with an identifier.
type Tag string

// Resource classes.
const (
	Carts       Tag = "carts"
	Fulfillment Tag = "fulfillment"
	Products    Tag = "products"
	Regions     Tag = "regions"
	Orders      Tag = "orders"
)

// With returns the tag suffixed with id, e.g. "regions-reg_01".
func (t Tag) With(id string) Tag {
	if id == "" {
		return t
	}
	return t + "-" + Tag(id)
}

// Invalidator marks tags stale.
type Invalidator interface {
	Invalidate(ctx context.Context, tags ...Tag)
}

// Notifier forwards invalidated keys to an external cache.
type Notifier interface {
	Notify(ctx context.Context, keys []string)
}

// Entry is the state of one namespaced tag key.
type Entry struct {
	Key           string    `json:"key"`
	Version       uint64    `json:"version"`
	InvalidatedAt time.Time `json:"invalidated_at"`
}

// Config configures a Registry.
type Config struct {
	// CacheID namespaces every key ("carts" becomes "carts-<CacheID>").
	CacheID  string
	Notifier Notifier
}

// Registry holds per-key versions. It is safe for concurrent use.
type Registry struct {
	cacheID  string
	notifier Notifier

	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewRegistry creates a Registry.
func NewRegistry(cfg Config) *Registry {
	return &Registry{
		cacheID:  cfg.CacheID,
		notifier: cfg.Notifier,
		entries:  make(map[string]*Entry),
	}
}

// Key returns the namespaced key for t.
func (r *Registry) Key(t Tag) string {
	if r.cacheID == "" {
		return string(t)
	}
	return string(t) + "-" + r.cacheID
}

// Invalidate bumps the version of each tag once, even when a tag is repeated,
// then informs the notifier.
func (r *Registry) Invalidate(ctx context.Context, tags ...Tag) {
	if len(tags) == 0 {
		return
	}

	keys := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		k := r.Key(t)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}

	now := time.Now()
	r.mu.Lock()
	for _, k := range keys {
		e, ok := r.entries[k]
		if !ok {
			e = &Entry{Key: k}
			r.entries[k] = e
		}
		e.Version++
		e.InvalidatedAt = now
	}
	r.mu.Unlock()

	slog.Debug("cachetag: invalidated", "keys", keys)

	if r.notifier != nil {
		r.notifier.Notify(ctx, keys)
	}
}

// Version returns the current version of t; zero if never invalidated.
func (r *Registry) Version(t Tag) uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.entries[r.Key(t)]; ok {
		return e.Version
	}
	return 0
}

// Snapshot returns all known entries ordered by key.
func (r *Registry) Snapshot() []Entry {
	r.mu.RLock()
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, *e)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Verify interface compliance.
var _ Invalidator = (*Registry)(nil)
