package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/txn2/storefront/pkg/auth"
	"github.com/txn2/storefront/pkg/cart"
	"github.com/txn2/storefront/pkg/commerce"
	"github.com/txn2/storefront/pkg/session"
)

const (
	testCartID   = "cart_01"
	testRegionUS = "reg_us"
	testLineID   = "item_01"
)

var errBoom = errors.New("boom")

// --- Mock Engine ---

// mockEngine returns cart and err from every cart-returning call and records
// the arguments it was called with.
type mockEngine struct {
	cart *commerce.Cart
	err  error

	options    []commerce.ShippingOption
	address    *cart.AddressOutcome
	payment    *commerce.PaymentCollection
	completion *cart.Completion
	region     *cart.RegionSwitch

	calls       []string
	countryCode string
	variantID   string
	lineID      string
	quantity    int
	optionID    string
	codes       []string
	addressIn   cart.AddressInput
	paymentIn   commerce.InitiatePaymentInput
	currentPath string
}

func (m *mockEngine) GetOrCreate(_ context.Context, _ session.Identity, cc string) (*commerce.Cart, error) {
	m.calls = append(m.calls, "GetOrCreate")
	m.countryCode = cc
	return m.cart, m.err
}

func (m *mockEngine) Retrieve(context.Context, session.Identity) (*commerce.Cart, error) {
	m.calls = append(m.calls, "Retrieve")
	return m.cart, m.err
}

func (m *mockEngine) AddLineItem(_ context.Context, _ session.Identity, cc, variantID string, qty int) (*commerce.Cart, error) {
	m.calls = append(m.calls, "AddLineItem")
	m.countryCode, m.variantID, m.quantity = cc, variantID, qty
	return m.cart, m.err
}

func (m *mockEngine) UpdateLineItem(_ context.Context, _ session.Identity, lineID string, qty int) (*commerce.Cart, error) {
	m.calls = append(m.calls, "UpdateLineItem")
	m.lineID, m.quantity = lineID, qty
	return m.cart, m.err
}

func (m *mockEngine) DeleteLineItem(_ context.Context, _ session.Identity, lineID string) (*commerce.Cart, error) {
	m.calls = append(m.calls, "DeleteLineItem")
	m.lineID = lineID
	return m.cart, m.err
}

func (m *mockEngine) SetShippingMethod(_ context.Context, _ session.Identity, optionID string) (*commerce.Cart, error) {
	m.calls = append(m.calls, "SetShippingMethod")
	m.optionID = optionID
	return m.cart, m.err
}

func (m *mockEngine) ListShippingOptions(context.Context, session.Identity) ([]commerce.ShippingOption, error) {
	m.calls = append(m.calls, "ListShippingOptions")
	return m.options, m.err
}

func (m *mockEngine) ApplyPromotions(_ context.Context, _ session.Identity, codes []string) (*commerce.Cart, error) {
	m.calls = append(m.calls, "ApplyPromotions")
	m.codes = codes
	return m.cart, m.err
}

func (m *mockEngine) SetAddresses(_ context.Context, _ session.Identity, in cart.AddressInput) (*cart.AddressOutcome, error) {
	m.calls = append(m.calls, "SetAddresses")
	m.addressIn = in
	return m.address, m.err
}

func (m *mockEngine) InitiatePaymentSession(_ context.Context, _ session.Identity, in commerce.InitiatePaymentInput) (*commerce.PaymentCollection, error) {
	m.calls = append(m.calls, "InitiatePaymentSession")
	m.paymentIn = in
	return m.payment, m.err
}

func (m *mockEngine) CompleteOrder(context.Context, session.Identity) (*cart.Completion, error) {
	m.calls = append(m.calls, "CompleteOrder")
	return m.completion, m.err
}

func (m *mockEngine) UpdateRegion(_ context.Context, _ session.Identity, cc, currentPath string) (*cart.RegionSwitch, error) {
	m.calls = append(m.calls, "UpdateRegion")
	m.countryCode, m.currentPath = cc, currentPath
	return m.region, m.err
}

// Verify interface compliance.
var (
	_ Engine       = (*mockEngine)(nil)
	_ Engine       = (*cart.Engine)(nil)
	_ Sessions     = (*session.Manager)(nil)
	_ AuthCleaner  = (*auth.Guard)(nil)
	_ BackendProbe = (*commerce.Client)(nil)
)

// --- Mock Sessions ---

type mockSessions struct {
	err    error
	opened int
}

func (m *mockSessions) Open(http.ResponseWriter, *http.Request) (session.Identity, error) {
	m.opened++
	if m.err != nil {
		return nil, m.err
	}
	return session.NewStoredIdentity(session.NewMemoryStore(0), &session.Session{ID: "sess-1"}), nil
}

// --- Mock AuthCleaner ---

type mockCleaner struct {
	result auth.CleanupResult
}

func (m *mockCleaner) Cleanup(context.Context, session.Identity) auth.CleanupResult {
	return m.result
}

// --- Mock BackendProbe ---

type mockProbe struct {
	regions []commerce.Region
	err     error
	baseURL string
	keySet  bool
}

func (m *mockProbe) ListRegions(context.Context) ([]commerce.Region, error) {
	return m.regions, m.err
}

func (m *mockProbe) BaseURL() string { return m.baseURL }

func (m *mockProbe) PublishableKeySet() bool { return m.keySet }

func newTestHandler(e *mockEngine) *Handler {
	return NewHandler(Deps{Engine: e, Sessions: &mockSessions{}})
}

// serve sends a request to h and returns the recorder.
func serve(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}
