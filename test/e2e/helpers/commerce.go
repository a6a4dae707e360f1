//go:build integration

package helpers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"

	"github.com/txn2/storefront/pkg/commerce"
)

// Region ids served by the fake commerce backend.
const (
	RegionUS = "reg_us"
	RegionEU = "reg_eu"
)

// FakeCommerce is an in-memory commerce backend serving the store routes the
// storefront uses for carts and regions.
type FakeCommerce struct {
	*httptest.Server

	mu      sync.Mutex
	carts   map[string]*commerce.Cart
	nextID  int
	creates int
}

// StartFakeCommerce starts the backend; it is closed when the test completes.
func StartFakeCommerce(t *testing.T) *FakeCommerce {
	t.Helper()
	f := &FakeCommerce{carts: map[string]*commerce.Cart{}}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /store/regions", f.listRegions)
	mux.HandleFunc("POST /store/carts", f.createCart)
	mux.HandleFunc("GET /store/carts/{id}", f.retrieveCart)
	mux.HandleFunc("POST /store/carts/{id}", f.updateCart)
	mux.HandleFunc("POST /store/carts/{id}/line-items", f.addLineItem)
	mux.HandleFunc("POST /store/carts/{id}/line-items/{line}", f.updateLineItem)

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

// Creates reports how many carts were created.
func (f *FakeCommerce) Creates() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creates
}

// Cart returns a copy of a stored cart.
func (f *FakeCommerce) Cart(id string) (commerce.Cart, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.carts[id]
	if !ok {
		return commerce.Cart{}, false
	}
	out := *c
	out.Items = slices.Clone(c.Items)
	return out, true
}

func (*FakeCommerce) listRegions(w http.ResponseWriter, _ *http.Request) {
	writeBody(w, http.StatusOK, map[string]any{"regions": []commerce.Region{
		{ID: RegionUS, Name: "United States", CurrencyCode: "usd", Countries: []commerce.Country{{ISO2: "us"}}},
		{ID: RegionEU, Name: "Europe", CurrencyCode: "eur", Countries: []commerce.Country{{ISO2: "de"}, {ISO2: "fr"}}},
	}})
}

func (f *FakeCommerce) createCart(w http.ResponseWriter, r *http.Request) {
	var in commerce.CreateCartInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeBody(w, http.StatusBadRequest, map[string]string{"type": "invalid_data", "message": err.Error()})
		return
	}
	f.mu.Lock()
	f.nextID++
	f.creates++
	c := &commerce.Cart{ID: fmt.Sprintf("cart_%03d", f.nextID), RegionID: in.RegionID, Items: []commerce.LineItem{}}
	f.carts[c.ID] = c
	f.mu.Unlock()
	f.respondCart(w, c.ID)
}

func (f *FakeCommerce) retrieveCart(w http.ResponseWriter, r *http.Request) {
	f.respondCart(w, r.PathValue("id"))
}

func (f *FakeCommerce) updateCart(w http.ResponseWriter, r *http.Request) {
	var in commerce.UpdateCartInput
	_ = json.NewDecoder(r.Body).Decode(&in)
	f.mu.Lock()
	if c, ok := f.carts[r.PathValue("id")]; ok {
		if in.RegionID != "" {
			c.RegionID = in.RegionID
		}
		if in.Email != "" {
			c.Email = in.Email
		}
	}
	f.mu.Unlock()
	f.respondCart(w, r.PathValue("id"))
}

func (f *FakeCommerce) addLineItem(w http.ResponseWriter, r *http.Request) {
	var in commerce.AddLineItemInput
	_ = json.NewDecoder(r.Body).Decode(&in)
	id := r.PathValue("id")
	f.mu.Lock()
	if c, ok := f.carts[id]; ok {
		c.Items = append(c.Items, commerce.LineItem{
			ID:        fmt.Sprintf("item_%02d", len(c.Items)+1),
			CartID:    id,
			VariantID: in.VariantID,
			Quantity:  in.Quantity,
		})
	}
	f.mu.Unlock()
	f.respondCart(w, id)
}

func (f *FakeCommerce) updateLineItem(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Quantity int `json:"quantity"`
	}
	_ = json.NewDecoder(r.Body).Decode(&in)
	id := r.PathValue("id")
	f.mu.Lock()
	if c, ok := f.carts[id]; ok {
		for i := range c.Items {
			if c.Items[i].ID == r.PathValue("line") {
				c.Items[i].Quantity = in.Quantity
			}
		}
	}
	f.mu.Unlock()
	f.respondCart(w, id)
}

func (f *FakeCommerce) respondCart(w http.ResponseWriter, id string) {
	c, ok := f.Cart(id)
	if !ok {
		writeBody(w, http.StatusNotFound, map[string]string{"type": "not_found", "message": "Cart with id " + id + " was not found"})
		return
	}
	writeBody(w, http.StatusOK, map[string]any{"cart": c})
}

func writeBody(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
