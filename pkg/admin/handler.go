// Package admin provides REST API endpoints for storefront operators.
package admin

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/txn2/storefront/pkg/audit"
	"github.com/txn2/storefront/pkg/cachetag"
	"github.com/txn2/storefront/pkg/commerce"
	"github.com/txn2/storefront/pkg/region"
	"github.com/txn2/storefront/pkg/session"
)

// RegionCache is the region index the admin API inspects and resets.
type RegionCache interface {
	Regions(ctx context.Context) ([]commerce.Region, error)
	Status() region.Status
	Invalidate()
}

// RegionFetcher reads a single region straight from the commerce backend.
type RegionFetcher interface {
	RetrieveRegion(ctx context.Context, id string) (*commerce.Region, error)
}

// TagRegistry is the cache tag registry the admin API inspects and bumps.
type TagRegistry interface {
	Key(t cachetag.Tag) string
	Snapshot() []cachetag.Entry
	Invalidate(ctx context.Context, tags ...cachetag.Tag)
}

// AuditQuerier reads recorded cart events.
type AuditQuerier interface {
	Query(ctx context.Context, filter audit.QueryFilter) ([]audit.Event, error)
	Count(ctx context.Context, filter audit.QueryFilter) (int, error)
}

// SessionStats counts server-side sessions.
type SessionStats interface {
	Stats(ctx context.Context) (session.Stats, error)
}

// Deps holds the components the admin API exposes. Nil components have
// their routes omitted.
type Deps struct {
	Regions             RegionCache
	Backend             RegionFetcher
	Tags                TagRegistry
	AuditQuerier        AuditQuerier
	AuditMetricsQuerier audit.MetricsQuerier

	// Sessions is set only when sessions are stored server-side.
	Sessions SessionStats
}

// Handler provides admin REST API endpoints.
type Handler struct {
	mux        *http.ServeMux
	deps       Deps
	authMiddle func(http.Handler) http.Handler
}

// NewHandler creates a new admin API handler.
func NewHandler(deps Deps, authMiddle func(http.Handler) http.Handler) *Handler {
	h := &Handler{
		mux:        http.NewServeMux(),
		deps:       deps,
		authMiddle: authMiddle,
	}
	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.authMiddle != nil {
		h.authMiddle(h.mux).ServeHTTP(w, r)
		return
	}
	h.mux.ServeHTTP(w, r)
}

// registerRoutes registers all admin API routes.
func (h *Handler) registerRoutes() {
	if h.deps.Regions != nil {
		h.mux.HandleFunc("GET /api/v1/admin/regions", h.listRegions)
		h.mux.HandleFunc("POST /api/v1/admin/regions/invalidate", h.invalidateRegions)
		if h.deps.Backend != nil {
			h.mux.HandleFunc("GET /api/v1/admin/regions/{id}/live", h.getLiveRegion)
		}
	}
	if h.deps.Tags != nil {
		h.mux.HandleFunc("GET /api/v1/admin/cache-tags", h.listCacheTags)
		h.mux.HandleFunc("POST /api/v1/admin/cache-tags/invalidate", h.invalidateCacheTags)
	}
	if h.deps.AuditQuerier != nil {
		h.mux.HandleFunc("GET /api/v1/admin/events", h.listAuditEvents)
		h.mux.HandleFunc("GET /api/v1/admin/events/{id}", h.getAuditEvent)
	}
	if h.deps.Sessions != nil {
		h.mux.HandleFunc("GET /api/v1/admin/sessions/stats", h.sessionStats)
	}
	h.registerAuditMetricsRoutes()
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorResponse is the body of every admin error.
type errorResponse struct {
	Error string `json:"error"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
