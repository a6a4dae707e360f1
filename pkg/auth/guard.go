// Package auth validates customer tokens held in a visitor session and
// authenticates operators of the admin and MCP surfaces.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/txn2/storefront/pkg/commerce"
	"github.com/txn2/storefront/pkg/session"
)

// ErrStaleAuth signals that the stored token refers to a customer the
// backend no longer knows.
var ErrStaleAuth = errors.New("auth: customer no longer exists")

// Cleanup reasons.
const (
	ReasonNoToken      = "No token found"
	ReasonTokenValid   = "Token is valid"
	ReasonCleared      = "Invalid customer token cleared"
	ReasonOtherError   = "Other error occurred"
	ReasonCleanupError = "Cleanup failed"
)

// CustomerProber fetches the customer a token belongs to.
type CustomerProber interface {
	RetrieveCustomer(ctx context.Context, headers http.Header) (*commerce.Customer, error)
}

// CleanupResult reports what Cleanup did.
type CleanupResult struct {
	Cleaned bool   `json:"cleaned"`
	Reason  string `json:"reason"`
}

// Guard checks whether a session's customer token is still usable.
//
// Only the backend's "customer not found" signature clears the session.
// Any other probe failure is treated as transient and leaves it untouched.
type Guard struct {
	prober CustomerProber
}

// NewGuard creates a Guard.
func NewGuard(prober CustomerProber) *Guard {
	return &Guard{prober: prober}
}

// IsAuthValid probes the backend with the session's token. A stale token is
// cleared together with the cart id.
func (g *Guard) IsAuthValid(ctx context.Context, id session.Identity) bool {
	if id.AuthToken() == "" {
		return false
	}

	err := g.probe(ctx, id)
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrStaleAuth):
		if cerr := g.clear(ctx, id); cerr != nil {
			slog.Error("auth: clearing stale customer token failed", "error", cerr)
		}
		return false
	default:
		slog.Debug("auth: customer probe failed", "error", err)
		return false
	}
}

// Cleanup clears a stale customer token and reports why it did or did not.
func (g *Guard) Cleanup(ctx context.Context, id session.Identity) CleanupResult {
	if id.AuthToken() == "" {
		return CleanupResult{Reason: ReasonNoToken}
	}

	err := g.probe(ctx, id)
	switch {
	case err == nil:
		return CleanupResult{Reason: ReasonTokenValid}
	case errors.Is(err, ErrStaleAuth):
		if cerr := g.clear(ctx, id); cerr != nil {
			slog.Error("auth: clearing stale customer token failed", "error", cerr)
			return CleanupResult{Reason: ReasonCleanupError}
		}
		return CleanupResult{Cleaned: true, Reason: ReasonCleared}
	default:
		slog.Debug("auth: customer probe failed", "error", err)
		return CleanupResult{Reason: ReasonOtherError}
	}
}

// probe returns nil for a valid token, an ErrStaleAuth wrap for the
// not-found signature, or the probe error.
func (g *Guard) probe(ctx context.Context, id session.Identity) error {
	_, err := g.prober.RetrieveCustomer(ctx, session.AuthHeaders(id))
	if err == nil {
		return nil
	}
	if commerce.IsCustomerNotFound(err) {
		return fmt.Errorf("%w: %w", ErrStaleAuth, err)
	}
	return err
}

// clear removes the token and the cart id bound to the missing customer.
func (*Guard) clear(ctx context.Context, id session.Identity) error {
	attrs := []any{"session_id", id.SessionID()}
	if claims, err := ParseCustomerToken(id.AuthToken()); err == nil {
		attrs = append(attrs, "actor_id", claims.ActorID)
	}

	if err := id.RemoveAuthToken(ctx); err != nil {
		return fmt.Errorf("removing auth token: %w", err)
	}
	if err := id.RemoveCartID(ctx); err != nil {
		return fmt.Errorf("removing cart id: %w", err)
	}

	slog.Info("auth: cleared stale customer token", attrs...)
	return nil
}
