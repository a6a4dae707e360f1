package commerce

import (
	"fmt"

	"github.com/yosida95/uritemplate/v3"
)

// cartFields expands the relations the storefront renders from a cart.
const cartFields = "*items, *region, *items.product, *items.variant, *items.thumbnail, " +
	"*items.metadata, +items.total, *promotions, +shipping_methods.name"

var (
	routeRegions            = uritemplate.MustNew("/store/regions")
	routeRegion             = uritemplate.MustNew("/store/regions/{id}")
	routeCarts              = uritemplate.MustNew("/store/carts")
	routeCart               = uritemplate.MustNew("/store/carts/{id}{?fields}")
	routeLineItems          = uritemplate.MustNew("/store/carts/{id}/line-items")
	routeLineItem           = uritemplate.MustNew("/store/carts/{id}/line-items/{line_id}")
	routeShippingMethods    = uritemplate.MustNew("/store/carts/{id}/shipping-methods")
	routeShippingOptions    = uritemplate.MustNew("/store/shipping-options{?cart_id}")
	routeCompleteCart       = uritemplate.MustNew("/store/carts/{id}/complete")
	routePaymentCollections = uritemplate.MustNew("/store/payment-collections")
	routePaymentSessions    = uritemplate.MustNew("/store/payment-collections/{id}/payment-sessions")
	routeCustomerMe         = uritemplate.MustNew("/store/customers/me")
)

// expand renders a route template with string variables given as
// alternating name/value pairs.
func expand(tmpl *uritemplate.Template, kv ...string) (string, error) {
	vars := uritemplate.Values{}
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] == "" {
			continue
		}
		vars.Set(kv[i], uritemplate.String(kv[i+1]))
	}
	path, err := tmpl.Expand(vars)
	if err != nil {
		return "", fmt.Errorf("expanding route: %w", err)
	}
	return path, nil
}
