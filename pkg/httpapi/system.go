package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/txn2/storefront/pkg/audit"
	"github.com/txn2/storefront/pkg/auth"
)

type cleanupResponse struct {
	Success   bool   `json:"success"`
	Cleaned   bool   `json:"cleaned"`
	Reason    string `json:"reason,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

// authCleanup clears a stale customer token from the session.
func (h *Handler) authCleanup(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC().Format(time.RFC3339)
	sess, err := h.deps.Sessions.Open(w, r)
	if err != nil {
		slog.Error("httpapi: opening session for auth cleanup failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, cleanupResponse{Error: "Cleanup failed", Timestamp: now})
		return
	}

	start := time.Now()
	customerID := auth.CustomerID(sess.AuthToken())
	res := h.deps.Auth.Cleanup(r.Context(), sess)
	slog.Debug("httpapi: customer auth cleanup", "method", r.Method, "cleaned", res.Cleaned, "reason", res.Reason)

	ev := audit.NewEvent(audit.OpCustomerAuthCleanup).
		WithSession(sess.SessionID(), customerID).
		WithRequestID(audit.RequestID(r.Context())).
		WithParameters(map[string]any{"cleaned": res.Cleaned, "reason": res.Reason}).
		WithResult(res.Reason != auth.ReasonCleanupError, "", time.Since(start).Milliseconds())
	if err := h.deps.Audit.Log(context.WithoutCancel(r.Context()), *ev); err != nil {
		slog.Warn("httpapi: failed to record auth cleanup", "error", err)
	}

	writeJSON(w, http.StatusOK, cleanupResponse{
		Success:   true,
		Cleaned:   res.Cleaned,
		Reason:    res.Reason,
		Timestamp: now,
	})
}

type healthResponse struct {
	Status         string `json:"status"`
	Timestamp      string `json:"timestamp"`
	Environment    string `json:"environment"`
	BackendURL     string `json:"backendUrl"`
	PublishableKey string `json:"publishableKey"`
	BackendStatus  string `json:"backendStatus"`
	RegionsCount   int    `json:"regionsCount"`
	BackendError   string `json:"backendError,omitempty"`
}

// health reports backend connectivity. It answers 200 even when the backend
// is unreachable; backendStatus carries the outcome.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:         "healthy",
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		Environment:    h.deps.Environment,
		BackendURL:     h.deps.Backend.BaseURL(),
		PublishableKey: "not_set",
	}
	if resp.Environment == "" {
		resp.Environment = "unknown"
	}
	if resp.BackendURL == "" {
		resp.BackendURL = "not_set"
	}
	if h.deps.Backend.PublishableKeySet() {
		resp.PublishableKey = "set"
	}

	regions, err := h.deps.Backend.ListRegions(r.Context())
	if err != nil {
		resp.BackendStatus = "error"
		resp.BackendError = err.Error()
	} else {
		resp.BackendStatus = "connected"
		resp.RegionsCount = len(regions)
	}
	writeJSON(w, http.StatusOK, resp)
}
