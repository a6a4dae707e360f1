// Package cart reconciles a visitor session with its authoritative backend
// cart. It resolves the region for a country, creates or re-regions the cart
// as needed, forwards every mutation to the commerce backend, and marks the
// dependent cache tags stale.
package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/txn2/storefront/pkg/audit"
	"github.com/txn2/storefront/pkg/auth"
	"github.com/txn2/storefront/pkg/cachetag"
	"github.com/txn2/storefront/pkg/commerce"
	"github.com/txn2/storefront/pkg/region"
	"github.com/txn2/storefront/pkg/session"
)

// Backend is the subset of the commerce client the engine drives.
type Backend interface {
	RetrieveCart(ctx context.Context, id string, headers http.Header) (*commerce.Cart, error)
	CreateCart(ctx context.Context, in commerce.CreateCartInput, headers http.Header) (*commerce.Cart, error)
	UpdateCart(ctx context.Context, id string, in commerce.UpdateCartInput, headers http.Header) (*commerce.Cart, error)
	AddLineItem(ctx context.Context, cartID string, in commerce.AddLineItemInput, headers http.Header) (*commerce.Cart, error)
	UpdateLineItem(ctx context.Context, cartID, lineID string, quantity int, headers http.Header) (*commerce.Cart, error)
	DeleteLineItem(ctx context.Context, cartID, lineID string, headers http.Header) (*commerce.Cart, error)
	AddShippingMethod(ctx context.Context, cartID, optionID string, headers http.Header) (*commerce.Cart, error)
	ListShippingOptions(ctx context.Context, cartID string, headers http.Header) ([]commerce.ShippingOption, error)
	InitiatePaymentSession(ctx context.Context, cart *commerce.Cart, in commerce.InitiatePaymentInput, headers http.Header) (*commerce.PaymentCollection, error)
	CompleteCart(ctx context.Context, cartID string, headers http.Header) (*commerce.CompleteResult, error)
}

// RegionResolver maps a country code to its region.
type RegionResolver interface {
	Resolve(ctx context.Context, countryCode string) (*commerce.Region, error)
}

// Config configures an Engine.
type Config struct {
	Regions RegionResolver
	Backend Backend

	// Tags receives invalidations. Nil discards them.
	Tags cachetag.Invalidator

	// Audit records one event per operation. Nil discards events.
	Audit audit.Logger

	// DefaultCountry is used in the confirmation path when an order has no
	// shipping country. Defaults to region.DefaultCountry.
	DefaultCountry string
}

// Engine is the cart reconciliation engine. It holds no per-visitor state;
// the session is passed into every call.
type Engine struct {
	regions        RegionResolver
	backend        Backend
	tags           cachetag.Invalidator
	audit          audit.Logger
	defaultCountry string
}

// NewEngine creates an Engine.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Regions == nil {
		return nil, errors.New("cart: region resolver is required")
	}
	if cfg.Backend == nil {
		return nil, errors.New("cart: backend is required")
	}
	if cfg.Tags == nil {
		cfg.Tags = discardTags{}
	}
	if cfg.Audit == nil {
		cfg.Audit = audit.NoopLogger{}
	}
	if cfg.DefaultCountry == "" {
		cfg.DefaultCountry = region.DefaultCountry
	}
	return &Engine{
		regions:        cfg.Regions,
		backend:        cfg.Backend,
		tags:           cfg.Tags,
		audit:          cfg.Audit,
		defaultCountry: strings.ToLower(cfg.DefaultCountry),
	}, nil
}

// GetOrCreate returns the session's authoritative cart for countryCode. A
// cart the backend no longer serves is replaced by a new one in the resolved
// region, while transport and server failures are returned as BackendError;
// a cart in another region is moved to the resolved region under the same id.
// A failed region move is logged and the cart is returned in its old region.
func (e *Engine) GetOrCreate(ctx context.Context, sess session.Identity, countryCode string) (*commerce.Cart, error) {
	rec := e.begin(ctx, sess, audit.OpGetOrCreateCart)
	c, err := e.getOrCreate(ctx, sess, countryCode, rec)
	rec.finish(ctx, err)
	return c, err
}

func (e *Engine) getOrCreate(ctx context.Context, sess session.Identity, countryCode string, rec *record) (*commerce.Cart, error) {
	reg, err := e.resolve(ctx, countryCode, rec)
	if err != nil {
		return nil, err
	}

	headers := session.AuthHeaders(sess)

	var current *commerce.Cart
	if id := sess.CartID(); id != "" {
		current, err = e.backend.RetrieveCart(ctx, id, headers)
		switch {
		case err == nil:
		case cartGone(err):
			slog.Debug("cart no longer readable, creating a new cart",
				"cart_id", id, "error", err)
			current = nil
		default:
			// Keep the session's cart id so an outage does not orphan it.
			return nil, newBackendError("retrieve cart", err)
		}
	}

	if current == nil {
		created, err := e.backend.CreateCart(ctx, commerce.CreateCartInput{RegionID: reg.ID}, headers)
		if err != nil {
			return nil, newBackendError("create cart", err)
		}
		if err := sess.SetCartID(ctx, created.ID); err != nil {
			return nil, fmt.Errorf("persisting cart id: %w", err)
		}
		rec.cart(created.ID)
		rec.invalidate(ctx, cachetag.Carts)
		slog.Info("cart created", "cart_id", created.ID, "region_id", reg.ID)
		return created, nil
	}

	rec.cart(current.ID)
	if current.RegionID == reg.ID {
		return current, nil
	}

	updated, err := e.backend.UpdateCart(ctx, current.ID, commerce.UpdateCartInput{RegionID: reg.ID}, headers)
	if err != nil {
		slog.Warn("cart region update failed, continuing with stale region",
			"cart_id", current.ID,
			"cart_region_id", current.RegionID,
			"region_id", reg.ID,
			"error", err)
		return current, nil
	}
	rec.invalidate(ctx, cachetag.Carts)
	return updated, nil
}

// cartGone reports whether the backend refused the cart id itself: not found,
// or rejected for the current customer. Any other failure may be transient.
func cartGone(err error) bool {
	if commerce.IsNotFound(err) {
		return true
	}
	var ce *commerce.Error
	return errors.As(err, &ce) &&
		ce.Status >= http.StatusBadRequest && ce.Status < http.StatusInternalServerError
}

// Retrieve reads the session's cart bypassing any cache. It returns
// ErrNoActiveCart when the session has no cart id.
func (e *Engine) Retrieve(ctx context.Context, sess session.Identity) (*commerce.Cart, error) {
	id := sess.CartID()
	if id == "" {
		return nil, ErrNoActiveCart
	}
	c, err := e.backend.RetrieveCart(ctx, id, session.AuthHeaders(sess))
	if err != nil {
		return nil, newBackendError("retrieve cart", err)
	}
	return c, nil
}

// ListShippingOptions returns the shipping options for the session's cart.
// A session without a cart has no options.
func (e *Engine) ListShippingOptions(ctx context.Context, sess session.Identity) ([]commerce.ShippingOption, error) {
	id := sess.CartID()
	if id == "" {
		return []commerce.ShippingOption{}, nil
	}
	opts, err := e.backend.ListShippingOptions(ctx, id, session.AuthHeaders(sess))
	if err != nil {
		return nil, newBackendError("list shipping options", err)
	}
	if opts == nil {
		opts = []commerce.ShippingOption{}
	}
	return opts, nil
}

// resolve maps the country to a region and records both on the event.
func (e *Engine) resolve(ctx context.Context, countryCode string, rec *record) (*commerce.Region, error) {
	reg, err := e.regions.Resolve(ctx, countryCode)
	if err != nil {
		slog.Warn("region not found", "country_code", countryCode, "error", err)
		return nil, fmt.Errorf("%w: %q", ErrRegionNotFound, countryCode)
	}
	rec.event.WithRegion(strings.ToLower(countryCode), reg.ID)
	return reg, nil
}

// record accumulates the audit event of one engine operation.
type record struct {
	e     *Engine
	event *audit.Event
	start time.Time
}

func (e *Engine) begin(ctx context.Context, sess session.Identity, op audit.Operation) *record {
	ev := audit.NewEvent(op).
		WithSession(sess.SessionID(), auth.CustomerID(sess.AuthToken())).
		WithCart(sess.CartID()).
		WithRequestID(audit.RequestID(ctx))
	return &record{e: e, event: ev, start: time.Now()}
}

func (r *record) cart(id string) {
	r.event.WithCart(id)
}

func (r *record) params(p map[string]any) {
	r.event.WithParameters(audit.SanitizeParameters(p))
}

// invalidate marks tags stale in a single registry call.
func (r *record) invalidate(ctx context.Context, tags ...cachetag.Tag) {
	r.e.tags.Invalidate(ctx, tags...)
	for _, t := range tags {
		r.event.Tags = append(r.event.Tags, string(t))
	}
}

func (r *record) finish(ctx context.Context, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	r.event.WithResult(err == nil, msg, time.Since(r.start).Milliseconds())
	if logErr := r.e.audit.Log(context.WithoutCancel(ctx), *r.event); logErr != nil {
		slog.Warn("failed to record cart event",
			"operation", r.event.Operation, "error", logErr)
	}
}

type discardTags struct{}

func (discardTags) Invalidate(context.Context, ...cachetag.Tag) {}
