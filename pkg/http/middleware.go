// Package http provides HTTP middleware shared by the storefront API, the
// admin API and the operator MCP endpoint.
package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/txn2/storefront/pkg/audit"
	"github.com/txn2/storefront/pkg/auth"
)

const (
	// RequestIDHeader carries the request id in both directions.
	RequestIDHeader = "X-Request-ID"

	// maxRequestIDLength bounds an accepted inbound request id.
	maxRequestIDLength = 128
)

// RequestID assigns every request an id, reusing a well-formed inbound
// X-Request-ID. The id is echoed in the response and recorded on the cart
// events logged while serving the request.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if id == "" || len(id) > maxRequestIDLength {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(audit.WithRequestID(r.Context(), id)))
	})
}

// statusRecorder captures the response status for logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming responses working behind the recorder.
func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// AccessLog logs one line per request at debug level, or at warn level for
// server errors.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		level := slog.LevelDebug
		if rec.status >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		slog.Log(r.Context(), level, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", audit.RequestID(r.Context()),
		)
	})
}

// AuthMiddleware extracts the operator credential from HTTP headers and adds
// it to the request context for downstream authenticators.
func AuthMiddleware(requireAuth bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.ExtractAPIKey(r)

			if requireAuth && token == "" {
				http.Error(w, "Unauthorized: missing authentication token", http.StatusUnauthorized)
				return
			}

			if token != "" {
				r = r.WithContext(auth.WithToken(r.Context(), token))
			}

			next.ServeHTTP(w, r)
		})
	}
}

// MCPAuthGateway rejects MCP requests that carry no credential with 401 and
// a WWW-Authenticate challenge. It does not validate the credential; tool
// calls are authenticated by the MCP middleware.
func MCPAuthGateway(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hasBearer := strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ")
		hasAPIKey := r.Header.Get("X-API-Key") != ""

		if !hasBearer && !hasAPIKey {
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Chain applies middleware so that the first listed runs outermost.
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
