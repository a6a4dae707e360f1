// Package httpapi is the session boundary between the rendering layer and
// the cart engine. Every route opens the visitor's session, calls the engine,
// and renders the result as JSON.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/txn2/storefront/pkg/audit"
	"github.com/txn2/storefront/pkg/auth"
	"github.com/txn2/storefront/pkg/cart"
	"github.com/txn2/storefront/pkg/commerce"
	"github.com/txn2/storefront/pkg/session"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Engine is the cart engine surface exposed over HTTP.
type Engine interface {
	GetOrCreate(ctx context.Context, sess session.Identity, countryCode string) (*commerce.Cart, error)
	Retrieve(ctx context.Context, sess session.Identity) (*commerce.Cart, error)
	AddLineItem(ctx context.Context, sess session.Identity, countryCode, variantID string, quantity int) (*commerce.Cart, error)
	UpdateLineItem(ctx context.Context, sess session.Identity, lineID string, quantity int) (*commerce.Cart, error)
	DeleteLineItem(ctx context.Context, sess session.Identity, lineID string) (*commerce.Cart, error)
	SetShippingMethod(ctx context.Context, sess session.Identity, optionID string) (*commerce.Cart, error)
	ListShippingOptions(ctx context.Context, sess session.Identity) ([]commerce.ShippingOption, error)
	ApplyPromotions(ctx context.Context, sess session.Identity, codes []string) (*commerce.Cart, error)
	SetAddresses(ctx context.Context, sess session.Identity, in cart.AddressInput) (*cart.AddressOutcome, error)
	InitiatePaymentSession(ctx context.Context, sess session.Identity, in commerce.InitiatePaymentInput) (*commerce.PaymentCollection, error)
	CompleteOrder(ctx context.Context, sess session.Identity) (*cart.Completion, error)
	UpdateRegion(ctx context.Context, sess session.Identity, countryCode, currentPath string) (*cart.RegionSwitch, error)
}

// Sessions opens the visitor's session for a request.
type Sessions interface {
	Open(w http.ResponseWriter, r *http.Request) (session.Identity, error)
}

// AuthCleaner clears stale customer tokens.
type AuthCleaner interface {
	Cleanup(ctx context.Context, id session.Identity) auth.CleanupResult
}

// BackendProbe is the uncached backend view used by the health route.
type BackendProbe interface {
	ListRegions(ctx context.Context) ([]commerce.Region, error)
	BaseURL() string
	PublishableKeySet() bool
}

// Deps holds the handler's collaborators. Auth and Backend are optional;
// their routes are omitted when nil.
type Deps struct {
	Engine   Engine
	Sessions Sessions
	Auth     AuthCleaner
	Backend  BackendProbe

	// Audit records auth cleanups. Nil discards them.
	Audit audit.Logger

	// Environment is reported by the health route.
	Environment string
}

// Handler serves the storefront API.
type Handler struct {
	mux  *http.ServeMux
	deps Deps
}

// NewHandler creates a storefront API handler.
func NewHandler(deps Deps) *Handler {
	if deps.Audit == nil {
		deps.Audit = audit.NoopLogger{}
	}
	h := &Handler{
		mux:  http.NewServeMux(),
		deps: deps,
	}
	h.registerRoutes()
	return h
}

func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("GET /api/v1/{countryCode}/cart", h.withSession(h.getOrCreateCart))
	h.mux.HandleFunc("GET /api/v1/cart", h.withSession(h.retrieveCart))
	h.mux.HandleFunc("POST /api/v1/{countryCode}/cart/line-items", h.withSession(h.addLineItem))
	h.mux.HandleFunc("POST /api/v1/cart/line-items/{lineID}", h.withSession(h.updateLineItem))
	h.mux.HandleFunc("DELETE /api/v1/cart/line-items/{lineID}", h.withSession(h.deleteLineItem))
	h.mux.HandleFunc("POST /api/v1/cart/shipping-methods", h.withSession(h.setShippingMethod))
	h.mux.HandleFunc("GET /api/v1/cart/shipping-options", h.withSession(h.listShippingOptions))
	h.mux.HandleFunc("POST /api/v1/cart/promotions", h.withSession(h.applyPromotions))
	h.mux.HandleFunc("POST /api/v1/cart/addresses", h.withSession(h.setAddresses))
	h.mux.HandleFunc("POST /api/v1/cart/payment-sessions", h.withSession(h.initiatePayment))
	h.mux.HandleFunc("POST /api/v1/cart/complete", h.withSession(h.completeOrder))
	h.mux.HandleFunc("POST /api/v1/{countryCode}/region", h.withSession(h.updateRegion))

	if h.deps.Auth != nil {
		h.mux.HandleFunc("GET /api/customer-auth-cleanup", h.authCleanup)
		h.mux.HandleFunc("POST /api/customer-auth-cleanup", h.authCleanup)
	}
	if h.deps.Backend != nil {
		h.mux.HandleFunc("GET /api/health", h.health)
	}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess session.Identity)

// withSession opens the visitor's session before calling next.
func (h *Handler) withSession(next sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := h.deps.Sessions.Open(w, r)
		if err != nil {
			slog.Error("httpapi: opening session failed", "path", r.URL.Path, "error", err)
			writeError(w, http.StatusInternalServerError, "session unavailable")
			return
		}
		next(w, r, sess)
	}
}

// decodeBody decodes a JSON body into v and writes a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	return decode(w, r, v, false)
}

// decodeOptionalBody is decodeBody for endpoints whose body may be absent,
// including an empty chunked body with no Content-Length.
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, v any) bool {
	return decode(w, r, v, true)
}

func decode(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	if r.Body == nil || r.Body == http.NoBody {
		if optional {
			return true
		}
		writeJSON(w, http.StatusBadRequest, actionResponse{ActionResult: cart.Result(errInvalidBody)})
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(v)
	if optional && errors.Is(err, io.EOF) {
		return true
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, actionResponse{ActionResult: cart.Result(errInvalidBody)})
		return false
	}
	return true
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("httpapi: failed to encode response", "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
