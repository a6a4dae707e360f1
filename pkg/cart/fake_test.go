package cart

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/txn2/storefront/pkg/cachetag"
	"github.com/txn2/storefront/pkg/commerce"
	"github.com/txn2/storefront/pkg/region"
)

const (
	testRegionUS = "reg_us"
	testRegionDE = "reg_de"
	testVariant  = "variant_01"
)

// fakeResolver maps lowercase country codes to regions.
type fakeResolver map[string]*commerce.Region

func newFakeResolver() fakeResolver {
	us := &commerce.Region{ID: testRegionUS, CurrencyCode: "usd", Countries: []commerce.Country{{ISO2: "us"}}}
	de := &commerce.Region{ID: testRegionDE, CurrencyCode: "eur", Countries: []commerce.Country{{ISO2: "de"}, {ISO2: "at"}}}
	return fakeResolver{"us": us, "de": de, "at": de}
}

func (f fakeResolver) Resolve(_ context.Context, countryCode string) (*commerce.Region, error) {
	cc := strings.ToLower(strings.TrimSpace(countryCode))
	if cc == "" {
		cc = region.DefaultCountry
	}
	if r, ok := f[cc]; ok {
		return r, nil
	}
	return nil, region.ErrNotFound
}

// fakeBackend is an in-memory commerce backend that records every call.
type fakeBackend struct {
	mu      sync.Mutex
	carts   map[string]*commerce.Cart
	nextID  int
	calls   []string
	headers []http.Header

	// fail maps an operation name to the error it returns.
	fail map[string]error

	complete *commerce.CompleteResult
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		carts: map[string]*commerce.Cart{},
		fail:  map[string]error{},
	}
}

func (b *fakeBackend) record(op string, h http.Header) error {
	b.calls = append(b.calls, op)
	b.headers = append(b.headers, h)
	return b.fail[op]
}

func (b *fakeBackend) seed(c *commerce.Cart) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.carts[c.ID] = clone(c)
}

func (b *fakeBackend) count(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		if c == op {
			n++
		}
	}
	return n
}

func (b *fakeBackend) callLog() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.calls)
}

func clone(c *commerce.Cart) *commerce.Cart {
	out := *c
	out.Items = slices.Clone(c.Items)
	out.Promotions = slices.Clone(c.Promotions)
	out.ShippingMethods = slices.Clone(c.ShippingMethods)
	return &out
}

func notFound(op string) error {
	return &commerce.Error{Op: op, Status: http.StatusNotFound, Type: "not_found", Message: "Cart not found"}
}

func (b *fakeBackend) RetrieveCart(_ context.Context, id string, h http.Header) (*commerce.Cart, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("retrieve", h); err != nil {
		return nil, err
	}
	c, ok := b.carts[id]
	if !ok {
		return nil, notFound("retrieve cart")
	}
	return clone(c), nil
}

func (b *fakeBackend) CreateCart(_ context.Context, in commerce.CreateCartInput, h http.Header) (*commerce.Cart, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("create", h); err != nil {
		return nil, err
	}
	b.nextID++
	c := &commerce.Cart{ID: fmt.Sprintf("cart_%02d", b.nextID), RegionID: in.RegionID, Items: []commerce.LineItem{}}
	b.carts[c.ID] = c
	return clone(c), nil
}

func (b *fakeBackend) UpdateCart(_ context.Context, id string, in commerce.UpdateCartInput, h http.Header) (*commerce.Cart, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("update", h); err != nil {
		return nil, err
	}
	c, ok := b.carts[id]
	if !ok {
		return nil, notFound("update cart")
	}
	if in.RegionID != "" {
		c.RegionID = in.RegionID
	}
	if in.Email != "" {
		c.Email = in.Email
	}
	if in.ShippingAddress != nil {
		a := *in.ShippingAddress
		c.ShippingAddress = &a
	}
	if in.BillingAddress != nil {
		a := *in.BillingAddress
		c.BillingAddress = &a
	}
	if in.PromoCodes != nil {
		c.Promotions = nil
		for _, code := range in.PromoCodes {
			c.Promotions = append(c.Promotions, commerce.Promotion{ID: "promo_" + code, Code: code})
		}
	}
	return clone(c), nil
}

func (b *fakeBackend) AddLineItem(_ context.Context, cartID string, in commerce.AddLineItemInput, h http.Header) (*commerce.Cart, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("add_line_item", h); err != nil {
		return nil, err
	}
	c, ok := b.carts[cartID]
	if !ok {
		return nil, notFound("add line item")
	}
	c.Items = append(c.Items, commerce.LineItem{
		ID:        fmt.Sprintf("item_%02d", len(c.Items)+1),
		CartID:    cartID,
		VariantID: in.VariantID,
		Quantity:  in.Quantity,
	})
	return clone(c), nil
}

func (b *fakeBackend) UpdateLineItem(_ context.Context, cartID, lineID string, quantity int, h http.Header) (*commerce.Cart, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("update_line_item", h); err != nil {
		return nil, err
	}
	c, ok := b.carts[cartID]
	if !ok {
		return nil, notFound("update line item")
	}
	for i := range c.Items {
		if c.Items[i].ID == lineID {
			c.Items[i].Quantity = quantity
		}
	}
	return clone(c), nil
}

func (b *fakeBackend) DeleteLineItem(_ context.Context, cartID, lineID string, h http.Header) (*commerce.Cart, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("delete_line_item", h); err != nil {
		return nil, err
	}
	c, ok := b.carts[cartID]
	if !ok {
		return nil, notFound("delete line item")
	}
	c.Items = slices.DeleteFunc(c.Items, func(li commerce.LineItem) bool { return li.ID == lineID })
	return clone(c), nil
}

func (b *fakeBackend) AddShippingMethod(_ context.Context, cartID, optionID string, h http.Header) (*commerce.Cart, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("add_shipping_method", h); err != nil {
		return nil, err
	}
	c, ok := b.carts[cartID]
	if !ok {
		return nil, notFound("add shipping method")
	}
	c.ShippingMethods = []commerce.ShippingMethod{{ID: "sm_01", ShippingOptionID: optionID}}
	return clone(c), nil
}

func (b *fakeBackend) ListShippingOptions(_ context.Context, _ string, h http.Header) ([]commerce.ShippingOption, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("list_shipping_options", h); err != nil {
		return nil, err
	}
	return []commerce.ShippingOption{{ID: "so_standard", Name: "Standard", Amount: 10}}, nil
}

func (b *fakeBackend) InitiatePaymentSession(_ context.Context, c *commerce.Cart, in commerce.InitiatePaymentInput, h http.Header) (*commerce.PaymentCollection, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("initiate_payment", h); err != nil {
		return nil, err
	}
	return &commerce.PaymentCollection{
		ID:              "paycol_" + c.ID,
		PaymentSessions: []commerce.PaymentSession{{ID: "payses_01", ProviderID: in.ProviderID}},
	}, nil
}

func (b *fakeBackend) CompleteCart(_ context.Context, cartID string, h http.Header) (*commerce.CompleteResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("complete", h); err != nil {
		return nil, err
	}
	if b.complete != nil {
		return b.complete, nil
	}
	c, ok := b.carts[cartID]
	if !ok {
		return nil, notFound("complete cart")
	}
	return &commerce.CompleteResult{Type: commerce.CompletionCart, Cart: clone(c)}, nil
}

// recordingTags records every Invalidate call.
type recordingTags struct {
	mu    sync.Mutex
	calls [][]cachetag.Tag
}

func (r *recordingTags) Invalidate(_ context.Context, tags ...cachetag.Tag) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, slices.Clone(tags))
}

func (r *recordingTags) Calls() [][]cachetag.Tag {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

// fakeIdentity is an in-memory session identity.
type fakeIdentity struct {
	sid     string
	cartID  string
	token   string
	setErr  error
	removes int
}

func (f *fakeIdentity) SessionID() string { return f.sid }
func (f *fakeIdentity) CartID() string    { return f.cartID }
func (f *fakeIdentity) AuthToken() string { return f.token }

func (f *fakeIdentity) SetCartID(_ context.Context, id string) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.cartID = id
	return nil
}

func (f *fakeIdentity) RemoveCartID(context.Context) error {
	f.removes++
	f.cartID = ""
	return nil
}

func (f *fakeIdentity) SetAuthToken(_ context.Context, token string) error {
	f.token = token
	return nil
}

func (f *fakeIdentity) RemoveAuthToken(context.Context) error {
	f.token = ""
	return nil
}
