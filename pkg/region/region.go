// Package region resolves ISO-2 country codes to commerce regions through an
// in-process index built from the backend's full region list.
//
// The index is populated for every country at once on the first lookup, kept
// for a configurable TTL, and can be dropped explicitly with Invalidate.
package region

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/txn2/storefront/pkg/commerce"
)

const (
	// DefaultTTL is how long a populated index is served before a refresh.
	DefaultTTL = time.Hour

	// DefaultCountry is resolved when the caller passes an empty code.
	DefaultCountry = "us"

	// loadKey is the singleflight key for index population.
	loadKey = "regions"
)

// ErrNotFound is returned when no region covers the country code, including
// when the region list could not be fetched.
var ErrNotFound = errors.New("region: not found")

// Lister fetches the complete region list from the backend.
type Lister interface {
	ListRegions(ctx context.Context) ([]commerce.Region, error)
}

// Clock provides current time (for testability).
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Config configures a Resolver.
type Config struct {
	TTL            time.Duration
	DefaultCountry string
	Clock          Clock
}

// Status describes the current index.
type Status struct {
	Regions   int       `json:"regions"`
	Countries int       `json:"countries"`
	LoadedAt  time.Time `json:"loaded_at,omitzero"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
	Loads     uint64    `json:"loads"`
}

// snapshot is one loaded index. It is never mutated after publication.
type snapshot struct {
	byCountry map[string]*commerce.Region
	regions   []commerce.Region
	loadedAt  time.Time
	expiresAt time.Time
}

// Resolver maps country codes to regions. It is safe for concurrent use.
type Resolver struct {
	lister         Lister
	ttl            time.Duration
	defaultCountry string
	clock          Clock
	group          singleflight.Group

	mu    sync.RWMutex
	cur   *snapshot
	gen   uint64 // bumped by Invalidate; loads started earlier are discarded
	loads uint64
}

// New creates a Resolver backed by lister.
func New(lister Lister, cfg Config) *Resolver {
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}
	def := normalize(cfg.DefaultCountry)
	if def == "" {
		def = DefaultCountry
	}
	clock := cfg.Clock
	if clock == nil {
		clock = systemClock{}
	}
	return &Resolver{
		lister:         lister,
		ttl:            ttl,
		defaultCountry: def,
		clock:          clock,
	}
}

// Resolve returns the region covering countryCode. An empty code resolves
// the default country. Backend failures are logged and reported as
// ErrNotFound.
func (r *Resolver) Resolve(ctx context.Context, countryCode string) (*commerce.Region, error) {
	code := normalize(countryCode)
	if code == "" {
		code = r.defaultCountry
	}

	snap, err := r.index(ctx)
	if err != nil {
		slog.Error("region: listing regions failed", "country_code", code, "error", err)
		return nil, ErrNotFound
	}

	reg, ok := snap.byCountry[code]
	if !ok {
		slog.Warn("region: not found for country code", "country_code", code)
		return nil, ErrNotFound
	}
	return reg, nil
}

// Regions returns the cached region list, populating it if needed.
func (r *Resolver) Regions(ctx context.Context) ([]commerce.Region, error) {
	snap, err := r.index(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]commerce.Region, len(snap.regions))
	copy(out, snap.regions)
	return out, nil
}

// Invalidate drops the index; the next lookup refetches the region list. A
// load already in flight still answers its own callers but is not cached.
func (r *Resolver) Invalidate() {
	r.group.Forget(loadKey)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.cur = nil
	r.gen++
}

// Status reports the state of the index without populating it.
func (r *Resolver) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st := Status{Loads: r.loads}
	if r.cur != nil {
		st.Regions = len(r.cur.regions)
		st.Countries = len(r.cur.byCountry)
		st.LoadedAt = r.cur.loadedAt
		st.ExpiresAt = r.cur.expiresAt
	}
	return st
}

// index returns a fresh snapshot, loading it at most once across concurrent
// callers. A failed refresh keeps serving the previous snapshot.
func (r *Resolver) index(ctx context.Context) (*snapshot, error) {
	r.mu.RLock()
	cur, gen := r.cur, r.gen
	r.mu.RUnlock()

	if cur != nil && r.clock.Now().Before(cur.expiresAt) {
		return cur, nil
	}

	v, err, _ := r.group.Do(loadKey, func() (any, error) {
		return r.load(context.WithoutCancel(ctx), gen)
	})
	if err != nil {
		if cur != nil {
			slog.Warn("region: refresh failed, serving stale index", "error", err)
			return cur, nil
		}
		return nil, err
	}
	return v.(*snapshot), nil
}

// load fetches every region and indexes all of their countries. The result
// is published only if no Invalidate happened since gen was read.
func (r *Resolver) load(ctx context.Context, gen uint64) (*snapshot, error) {
	regions, err := r.lister.ListRegions(ctx)
	if err != nil {
		return nil, err
	}

	snap := &snapshot{
		byCountry: make(map[string]*commerce.Region),
		regions:   make([]commerce.Region, len(regions)),
	}
	copy(snap.regions, regions)
	for i := range snap.regions {
		reg := &snap.regions[i]
		for _, c := range reg.Countries {
			iso := normalize(c.ISO2)
			if iso == "" {
				continue
			}
			if existing, dup := snap.byCountry[iso]; dup && existing.ID != reg.ID {
				slog.Warn("region: country code claimed by multiple regions",
					"country_code", iso, "kept", existing.ID, "ignored", reg.ID)
				continue
			}
			snap.byCountry[iso] = reg
		}
	}
	snap.loadedAt = r.clock.Now()
	snap.expiresAt = snap.loadedAt.Add(r.ttl)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gen != gen {
		slog.Info("region: index invalidated during load, not cached", "regions", len(snap.regions))
		return snap, nil
	}
	r.cur = snap
	r.loads++
	slog.Info("region: index loaded", "regions", len(snap.regions), "countries", len(snap.byCountry))
	return snap, nil
}

func normalize(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}
