package cart

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/txn2/storefront/pkg/audit"
	"github.com/txn2/storefront/pkg/cachetag"
	"github.com/txn2/storefront/pkg/commerce"
	"github.com/txn2/storefront/pkg/session"
)

// Tags invalidated per resource class.
var (
	cartTags       = []cachetag.Tag{cachetag.Carts}
	lineItemTags   = []cachetag.Tag{cachetag.Carts, cachetag.Fulfillment}
	updateCartTags = []cachetag.Tag{cachetag.Carts, cachetag.Fulfillment}
	regionTags     = []cachetag.Tag{cachetag.Regions, cachetag.Products}
)

// mutation describes one cart-scoped backend call.
type mutation struct {
	op     audit.Operation
	name   string
	tags   []cachetag.Tag
	params map[string]any
	call   func(ctx context.Context, cartID string, sess session.Identity) (*commerce.Cart, error)
}

// mutate runs m against the session's cart: exactly one backend call, then
// one invalidation of m.tags, then the backend's cart verbatim.
func (e *Engine) mutate(ctx context.Context, sess session.Identity, m mutation) (*commerce.Cart, error) {
	rec := e.begin(ctx, sess, m.op)
	rec.params(m.params)

	c, err := e.mutateCart(ctx, sess, m, rec)
	rec.finish(ctx, err)
	return c, err
}

func (e *Engine) mutateCart(ctx context.Context, sess session.Identity, m mutation, rec *record) (*commerce.Cart, error) {
	id := sess.CartID()
	if id == "" {
		return nil, ErrNoActiveCart
	}
	c, err := m.call(ctx, id, sess)
	if err != nil {
		slog.Warn("cart mutation failed", "operation", m.op, "cart_id", id, "error", err)
		return nil, newBackendError(m.name, err)
	}
	rec.invalidate(ctx, m.tags...)
	return c, nil
}

// AddLineItem adds quantity of a variant to the session's cart, creating the
// cart in countryCode's region first when the session has none.
func (e *Engine) AddLineItem(ctx context.Context, sess session.Identity, countryCode, variantID string, quantity int) (*commerce.Cart, error) {
	if variantID == "" {
		return nil, fmt.Errorf("%w: missing variant id", ErrInvalidInput)
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	}

	if _, err := e.GetOrCreate(ctx, sess, countryCode); err != nil {
		return nil, err
	}

	return e.mutate(ctx, sess, mutation{
		op:     audit.OpAddLineItem,
		name:   "add line item",
		tags:   lineItemTags,
		params: map[string]any{"variant_id": variantID, "quantity": quantity, "country_code": countryCode},
		call: func(ctx context.Context, cartID string, sess session.Identity) (*commerce.Cart, error) {
			in := commerce.AddLineItemInput{VariantID: variantID, Quantity: quantity}
			return e.backend.AddLineItem(ctx, cartID, in, session.AuthHeaders(sess))
		},
	})
}

// UpdateLineItem sets the quantity of a line item.
func (e *Engine) UpdateLineItem(ctx context.Context, sess session.Identity, lineID string, quantity int) (*commerce.Cart, error) {
	if lineID == "" {
		return nil, fmt.Errorf("%w: missing line item id", ErrInvalidInput)
	}
	if quantity < 0 {
		return nil, fmt.Errorf("%w: quantity must not be negative", ErrInvalidInput)
	}
	return e.mutate(ctx, sess, mutation{
		op:     audit.OpUpdateLineItem,
		name:   "update line item",
		tags:   lineItemTags,
		params: map[string]any{"line_id": lineID, "quantity": quantity},
		call: func(ctx context.Context, cartID string, sess session.Identity) (*commerce.Cart, error) {
			return e.backend.UpdateLineItem(ctx, cartID, lineID, quantity, session.AuthHeaders(sess))
		},
	})
}

// DeleteLineItem removes a line item.
func (e *Engine) DeleteLineItem(ctx context.Context, sess session.Identity, lineID string) (*commerce.Cart, error) {
	if lineID == "" {
		return nil, fmt.Errorf("%w: missing line item id", ErrInvalidInput)
	}
	return e.mutate(ctx, sess, mutation{
		op:     audit.OpDeleteLineItem,
		name:   "delete line item",
		tags:   lineItemTags,
		params: map[string]any{"line_id": lineID},
		call: func(ctx context.Context, cartID string, sess session.Identity) (*commerce.Cart, error) {
			return e.backend.DeleteLineItem(ctx, cartID, lineID, session.AuthHeaders(sess))
		},
	})
}

// SetShippingMethod selects a shipping option for the cart.
func (e *Engine) SetShippingMethod(ctx context.Context, sess session.Identity, optionID string) (*commerce.Cart, error) {
	if optionID == "" {
		return nil, fmt.Errorf("%w: missing shipping option id", ErrInvalidInput)
	}
	return e.mutate(ctx, sess, mutation{
		op:     audit.OpSetShippingMethod,
		name:   "add shipping method",
		tags:   cartTags,
		params: map[string]any{"option_id": optionID},
		call: func(ctx context.Context, cartID string, sess session.Identity) (*commerce.Cart, error) {
			return e.backend.AddShippingMethod(ctx, cartID, optionID, session.AuthHeaders(sess))
		},
	})
}

// ApplyPromotions replaces the cart's promotion codes. An empty list removes
// every code.
func (e *Engine) ApplyPromotions(ctx context.Context, sess session.Identity, codes []string) (*commerce.Cart, error) {
	cleaned := make([]string, 0, len(codes))
	for _, c := range codes {
		if c = strings.TrimSpace(c); c != "" {
			cleaned = append(cleaned, c)
		}
	}
	return e.mutate(ctx, sess, mutation{
		op:     audit.OpApplyPromotions,
		name:   "apply promotions",
		tags:   lineItemTags,
		params: map[string]any{"promo_codes": cleaned},
		call: func(ctx context.Context, cartID string, sess session.Identity) (*commerce.Cart, error) {
			in := commerce.UpdateCartInput{PromoCodes: cleaned}
			return e.backend.UpdateCart(ctx, cartID, in, session.AuthHeaders(sess))
		},
	})
}

// UpdateCart applies a partial update to the cart.
func (e *Engine) UpdateCart(ctx context.Context, sess session.Identity, in commerce.UpdateCartInput) (*commerce.Cart, error) {
	return e.updateCart(ctx, sess, audit.OpUpdateCart, in, nil)
}

func (e *Engine) updateCart(ctx context.Context, sess session.Identity, op audit.Operation, in commerce.UpdateCartInput, params map[string]any) (*commerce.Cart, error) {
	if params == nil {
		params = map[string]any{"region_id": in.RegionID, "email": in.Email}
	}
	return e.mutate(ctx, sess, mutation{
		op:     op,
		name:   "update cart",
		tags:   updateCartTags,
		params: params,
		call: func(ctx context.Context, cartID string, sess session.Identity) (*commerce.Cart, error) {
			return e.backend.UpdateCart(ctx, cartID, in, session.AuthHeaders(sess))
		},
	})
}

// AddressInput is the checkout address step.
type AddressInput struct {
	Email           string
	ShippingAddress commerce.Address
	BillingAddress  commerce.Address
	// SameAsBilling copies the shipping address into the billing address.
	SameAsBilling bool
}

// AddressOutcome is the result of the address step: the updated cart and the
// path of the delivery step to continue with.
type AddressOutcome struct {
	Cart         *commerce.Cart `json:"cart"`
	RedirectPath string         `json:"redirect"`
}

// SetAddresses stores the email and the shipping and billing addresses.
// The second address line is always sent blank.
func (e *Engine) SetAddresses(ctx context.Context, sess session.Identity, in AddressInput) (*AddressOutcome, error) {
	shipping := in.ShippingAddress
	shipping.Address2 = ""
	billing := in.BillingAddress
	if in.SameAsBilling {
		billing = shipping
	}
	billing.Address2 = ""

	update := commerce.UpdateCartInput{
		Email:           in.Email,
		ShippingAddress: &shipping,
		BillingAddress:  &billing,
	}
	params := map[string]any{
		"email":            in.Email,
		"same_as_billing":  in.SameAsBilling,
		"shipping_country": shipping.CountryCode,
	}

	c, err := e.updateCart(ctx, sess, audit.OpSetAddresses, update, params)
	if err != nil {
		return nil, err
	}
	return &AddressOutcome{
		Cart:         c,
		RedirectPath: "/" + strings.ToLower(shipping.CountryCode) + "/checkout?step=delivery",
	}, nil
}

// InitiatePaymentSession starts a payment session with the given provider
// for the session's cart.
func (e *Engine) InitiatePaymentSession(ctx context.Context, sess session.Identity, in commerce.InitiatePaymentInput) (*commerce.PaymentCollection, error) {
	rec := e.begin(ctx, sess, audit.OpInitiatePayment)
	rec.params(map[string]any{"provider_id": in.ProviderID, "data": in.Data})

	pc, err := e.initiatePayment(ctx, sess, in, rec)
	rec.finish(ctx, err)
	return pc, err
}

func (e *Engine) initiatePayment(ctx context.Context, sess session.Identity, in commerce.InitiatePaymentInput, rec *record) (*commerce.PaymentCollection, error) {
	if in.ProviderID == "" {
		return nil, fmt.Errorf("%w: missing payment provider id", ErrInvalidInput)
	}
	id := sess.CartID()
	if id == "" {
		return nil, ErrNoActiveCart
	}
	headers := session.AuthHeaders(sess)

	c, err := e.backend.RetrieveCart(ctx, id, headers)
	if err != nil {
		return nil, newBackendError("retrieve cart", err)
	}
	pc, err := e.backend.InitiatePaymentSession(ctx, c, in, headers)
	if err != nil {
		slog.Warn("payment session initiation failed", "cart_id", id, "provider_id", in.ProviderID, "error", err)
		return nil, newBackendError("initiate payment session", err)
	}
	rec.invalidate(ctx, cartTags...)
	return pc, nil
}

// Completion is the result of CompleteOrder. Exactly one of Cart and Order is
// set. ConfirmationPath is set when an order was placed; Message carries the
// backend's reason when it was not.
type Completion struct {
	Type             commerce.CompletionType `json:"type"`
	Cart             *commerce.Cart          `json:"cart,omitempty"`
	Order            *commerce.Order         `json:"order,omitempty"`
	ConfirmationPath string                  `json:"redirect,omitempty"`
	Message          string                  `json:"message,omitempty"`
}

// CompleteOrder places an order for the session's cart. When the backend
// places the order the session's cart id is cleared and the orders tag is
// invalidated. When it returns the cart instead, the session is untouched.
func (e *Engine) CompleteOrder(ctx context.Context, sess session.Identity) (*Completion, error) {
	rec := e.begin(ctx, sess, audit.OpCompleteOrder)
	out, err := e.completeOrder(ctx, sess, rec)
	rec.finish(ctx, err)
	return out, err
}

func (e *Engine) completeOrder(ctx context.Context, sess session.Identity, rec *record) (*Completion, error) {
	id := sess.CartID()
	if id == "" {
		return nil, ErrNoActiveCart
	}

	res, err := e.backend.CompleteCart(ctx, id, session.AuthHeaders(sess))
	if err != nil {
		slog.Warn("order completion failed", "cart_id", id, "error", err)
		return nil, newBackendError("complete cart", err)
	}

	if !res.IsOrder() {
		rec.invalidate(ctx, cachetag.Carts)
		out := &Completion{Type: commerce.CompletionCart, Cart: res.Cart}
		if res.Error != nil {
			out.Message = res.Error.Message
		}
		return out, nil
	}

	if err := sess.RemoveCartID(ctx); err != nil {
		return nil, fmt.Errorf("clearing cart id: %w", err)
	}
	rec.invalidate(ctx, cachetag.Carts, cachetag.Orders)

	country := e.defaultCountry
	if a := res.Order.ShippingAddress; a != nil && a.CountryCode != "" {
		country = strings.ToLower(a.CountryCode)
	}
	rec.event.WithParameters(map[string]any{"order_id": res.Order.ID})
	slog.Info("order placed", "cart_id", id, "order_id", res.Order.ID)

	return &Completion{
		Type:             commerce.CompletionOrder,
		Order:            res.Order,
		ConfirmationPath: fmt.Sprintf("/%s/order/%s/confirmed", country, res.Order.ID),
	}, nil
}

// RegionSwitch is the result of UpdateRegion.
type RegionSwitch struct {
	Region *commerce.Region `json:"region"`
	// Cart is nil when the session has no cart.
	Cart         *commerce.Cart `json:"cart,omitempty"`
	RedirectPath string         `json:"redirect"`
}

// UpdateRegion switches the visitor to countryCode's region: the session's
// cart, if any, is moved to the region and the region, product and
// "regions-<id>" tags are invalidated. currentPath is the page to return to under the new country.
func (e *Engine) UpdateRegion(ctx context.Context, sess session.Identity, countryCode, currentPath string) (*RegionSwitch, error) {
	rec := e.begin(ctx, sess, audit.OpUpdateRegion)
	rec.params(map[string]any{"current_path": currentPath})
	out, err := e.updateRegion(ctx, sess, countryCode, currentPath, rec)
	rec.finish(ctx, err)
	return out, err
}

func (e *Engine) updateRegion(ctx context.Context, sess session.Identity, countryCode, currentPath string, rec *record) (*RegionSwitch, error) {
	if strings.TrimSpace(countryCode) == "" {
		return nil, fmt.Errorf("%w: missing country code", ErrInvalidInput)
	}
	reg, err := e.resolve(ctx, countryCode, rec)
	if err != nil {
		return nil, err
	}

	out := &RegionSwitch{
		Region:       reg,
		RedirectPath: "/" + strings.ToLower(strings.TrimSpace(countryCode)) + normalizePath(currentPath),
	}

	var tags []cachetag.Tag
	if id := sess.CartID(); id != "" {
		c, err := e.backend.UpdateCart(ctx, id, commerce.UpdateCartInput{RegionID: reg.ID}, session.AuthHeaders(sess))
		if err != nil {
			return nil, newBackendError("update cart", err)
		}
		out.Cart = c
		tags = append(tags, cachetag.Carts)
	}
	tags = append(tags, regionTags...)
	rec.invalidate(ctx, append(tags, cachetag.Regions.With(reg.ID))...)
	return out, nil
}

func normalizePath(p string) string {
	if p == "" || p == "/" {
		return ""
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}
