package commerce

import (
	"encoding/json"
	"strings"
)

// Country is a country served by a region.
type Country struct {
	ISO2        string `json:"iso_2"`
	ISO3        string `json:"iso_3,omitempty"`
	Name        string `json:"name,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

// Region is a sellable geography with its currency and tax configuration.
type Region struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	CurrencyCode   string         `json:"currency_code"`
	AutomaticTaxes bool           `json:"automatic_taxes"`
	Countries      []Country      `json:"countries,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// HasCountry reports whether the region covers the ISO-2 country code,
// ignoring case.
func (r *Region) HasCountry(iso2 string) bool {
	for _, c := range r.Countries {
		if strings.EqualFold(c.ISO2, iso2) {
			return true
		}
	}
	return false
}

// Address is a shipping or billing address.
type Address struct {
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	Address1    string `json:"address_1,omitempty"`
	Address2    string `json:"address_2"`
	Company     string `json:"company,omitempty"`
	PostalCode  string `json:"postal_code,omitempty"`
	City        string `json:"city,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
	Province    string `json:"province,omitempty"`
	Phone       string `json:"phone,omitempty"`
}

// LineItem is one product variant and quantity within a cart.
type LineItem struct {
	ID        string         `json:"id"`
	CartID    string         `json:"cart_id,omitempty"`
	Title     string         `json:"title,omitempty"`
	Thumbnail string         `json:"thumbnail,omitempty"`
	VariantID string         `json:"variant_id"`
	ProductID string         `json:"product_id,omitempty"`
	Quantity  int            `json:"quantity"`
	UnitPrice float64        `json:"unit_price"`
	Total     float64        `json:"total"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Promotion is a promotion applied to a cart.
type Promotion struct {
	ID          string `json:"id"`
	Code        string `json:"code,omitempty"`
	IsAutomatic bool   `json:"is_automatic"`
}

// ShippingMethod is a shipping method selected on a cart.
type ShippingMethod struct {
	ID               string  `json:"id"`
	Name             string  `json:"name,omitempty"`
	ShippingOptionID string  `json:"shipping_option_id,omitempty"`
	Amount           float64 `json:"amount"`
}

// ShippingOption is a shipping option available for a cart.
type ShippingOption struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	PriceType string  `json:"price_type,omitempty"`
	Amount    float64 `json:"amount"`
}

// PaymentSession is a provider-specific payment session.
type PaymentSession struct {
	ID         string         `json:"id"`
	ProviderID string         `json:"provider_id"`
	Status     string         `json:"status,omitempty"`
	Amount     float64        `json:"amount"`
	Data       map[string]any `json:"data,omitempty"`
}

// PaymentCollection groups the payment sessions of a cart.
type PaymentCollection struct {
	ID              string           `json:"id"`
	CurrencyCode    string           `json:"currency_code,omitempty"`
	Amount          float64          `json:"amount"`
	Status          string           `json:"status,omitempty"`
	PaymentSessions []PaymentSession `json:"payment_sessions,omitempty"`
}

// Cart is the backend's canonical shopping-session state.
type Cart struct {
	ID                string             `json:"id"`
	RegionID          string             `json:"region_id"`
	CustomerID        string             `json:"customer_id,omitempty"`
	Email             string             `json:"email,omitempty"`
	CurrencyCode      string             `json:"currency_code,omitempty"`
	Items             []LineItem         `json:"items"`
	Promotions        []Promotion        `json:"promotions,omitempty"`
	ShippingMethods   []ShippingMethod   `json:"shipping_methods,omitempty"`
	ShippingAddress   *Address           `json:"shipping_address,omitempty"`
	BillingAddress    *Address           `json:"billing_address,omitempty"`
	PaymentCollection *PaymentCollection `json:"payment_collection,omitempty"`
	Region            *Region            `json:"region,omitempty"`
	Subtotal          float64            `json:"subtotal"`
	TaxTotal          float64            `json:"tax_total"`
	ShippingTotal     float64            `json:"shipping_total"`
	Total             float64            `json:"total"`
}

// Order is a placed order.
type Order struct {
	ID              string   `json:"id"`
	DisplayID       int      `json:"display_id,omitempty"`
	Email           string   `json:"email,omitempty"`
	CurrencyCode    string   `json:"currency_code,omitempty"`
	ShippingAddress *Address `json:"shipping_address,omitempty"`
	Total           float64  `json:"total"`
}

// Customer is the authenticated customer.
type Customer struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// CompletionType discriminates the result of completing a cart.
type CompletionType string

const (
	// CompletionCart means the order was not placed and the cart is returned.
	CompletionCart CompletionType = "cart"

	// CompletionOrder means the order was placed.
	CompletionOrder CompletionType = "order"
)

// CompleteResult is the response of the cart completion endpoint.
type CompleteResult struct {
	Type  CompletionType `json:"type"`
	Cart  *Cart          `json:"cart,omitempty"`
	Order *Order         `json:"order,omitempty"`
	Error *ErrorBody     `json:"error,omitempty"`
}

// IsOrder reports whether the completion placed an order.
func (r *CompleteResult) IsOrder() bool {
	return r != nil && r.Type == CompletionOrder && r.Order != nil
}

// CreateCartInput is the body of a cart creation.
type CreateCartInput struct {
	RegionID string `json:"region_id"`
}

// UpdateCartInput is a partial cart update. Nil PromoCodes leaves promotions
// untouched; an empty non-nil slice removes them.
type UpdateCartInput struct {
	RegionID        string   `json:"region_id,omitempty"`
	Email           string   `json:"email,omitempty"`
	ShippingAddress *Address `json:"shipping_address,omitempty"`
	BillingAddress  *Address `json:"billing_address,omitempty"`
	PromoCodes      []string `json:"promo_codes,omitempty"`
}

// MarshalJSON keeps an empty, non-nil PromoCodes on the wire.
func (in UpdateCartInput) MarshalJSON() ([]byte, error) {
	type alias UpdateCartInput
	w := struct {
		alias
		PromoCodes *[]string `json:"promo_codes,omitempty"`
	}{alias: alias(in)}
	if in.PromoCodes != nil {
		w.PromoCodes = &in.PromoCodes
	}
	return json.Marshal(w)
}

// AddLineItemInput is the body of a line item creation.
type AddLineItemInput struct {
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
}

// InitiatePaymentInput selects the payment provider for a session.
type InitiatePaymentInput struct {
	ProviderID string         `json:"provider_id"`
	Data       map[string]any `json:"data,omitempty"`
}
