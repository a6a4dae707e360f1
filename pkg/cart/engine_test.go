package cart

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/storefront/pkg/audit"
	"github.com/txn2/storefront/pkg/cachetag"
	"github.com/txn2/storefront/pkg/commerce"
	"github.com/txn2/storefront/pkg/region"
	"github.com/txn2/storefront/pkg/session"
)

type harness struct {
	engine  *Engine
	backend *fakeBackend
	tags    *recordingTags
	events  *audit.MemoryLogger
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		backend: newFakeBackend(),
		tags:    &recordingTags{},
		events:  audit.NewMemoryLogger(0),
	}
	e, err := NewEngine(Config{
		Regions: newFakeResolver(),
		Backend: h.backend,
		Tags:    h.tags,
		Audit:   h.events,
	})
	require.NoError(t, err)
	h.engine = e
	return h
}

func (h *harness) lastEvent(t *testing.T) audit.Event {
	t.Helper()
	events, err := h.events.Query(context.Background(), audit.QueryFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, events, 1)
	return events[0]
}

func TestNewEngine(t *testing.T) {
	_, err := NewEngine(Config{Backend: newFakeBackend()})
	assert.Error(t, err)

	_, err = NewEngine(Config{Regions: newFakeResolver()})
	assert.Error(t, err)

	e, err := NewEngine(Config{Regions: newFakeResolver(), Backend: newFakeBackend(), DefaultCountry: "DE"})
	require.NoError(t, err)
	assert.Equal(t, "de", e.defaultCountry)
}

func TestGetOrCreate_CreatesOnceAndReuses(t *testing.T) {
	h := newHarness(t)
	sess := &fakeIdentity{sid: "sess-1"}
	ctx := context.Background()

	first, err := h.engine.GetOrCreate(ctx, sess, "us")
	require.NoError(t, err)
	assert.Equal(t, testRegionUS, first.RegionID)
	assert.Equal(t, first.ID, sess.CartID(), "new cart id persisted to the session")
	assert.Equal(t, [][]cachetag.Tag{{cachetag.Carts}}, h.tags.Calls())

	second, err := h.engine.GetOrCreate(ctx, sess, "us")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, h.backend.count("create"), "second call reuses the persisted cart")
	assert.Len(t, h.tags.Calls(), 1, "reuse invalidates nothing")
}

func TestGetOrCreate_RegionMismatchUpdatesSameCart(t *testing.T) {
	h := newHarness(t)
	h.backend.seed(&commerce.Cart{ID: "cart_existing", RegionID: testRegionUS})
	sess := &fakeIdentity{cartID: "cart_existing"}

	got, err := h.engine.GetOrCreate(context.Background(), sess, "de")
	require.NoError(t, err)

	assert.Equal(t, "cart_existing", got.ID, "cart identity preserved")
	assert.Equal(t, testRegionDE, got.RegionID)
	assert.Equal(t, 1, h.backend.count("update"))
	assert.Zero(t, h.backend.count("create"))
	assert.Equal(t, [][]cachetag.Tag{{cachetag.Carts}}, h.tags.Calls())
}

func TestGetOrCreate_RegionUpdateFailureIsNonFatal(t *testing.T) {
	h := newHarness(t)
	h.backend.seed(&commerce.Cart{ID: "cart_existing", RegionID: testRegionUS})
	h.backend.fail["update"] = &commerce.Error{Op: "update cart", Status: http.StatusBadRequest, Message: "region not enabled"}
	sess := &fakeIdentity{cartID: "cart_existing"}

	got, err := h.engine.GetOrCreate(context.Background(), sess, "de")
	require.NoError(t, err)
	assert.Equal(t, "cart_existing", got.ID)
	assert.Equal(t, testRegionUS, got.RegionID, "cart returned in its stale region")
	assert.Empty(t, h.tags.Calls())
	assert.Equal(t, "cart_existing", sess.CartID())
}

func TestGetOrCreate_RegionNotFound(t *testing.T) {
	h := newHarness(t)
	sess := &fakeIdentity{}

	_, err := h.engine.GetOrCreate(context.Background(), sess, "zz")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRegionNotFound)
	assert.ErrorIs(t, err, region.ErrNotFound)
	assert.Empty(t, h.backend.callLog(), "no backend call without a region")

	ev := h.lastEvent(t)
	assert.Equal(t, audit.OpGetOrCreateCart, ev.Operation)
	assert.False(t, ev.Success)
}

func TestGetOrCreate_MissingCartIsReplaced(t *testing.T) {
	h := newHarness(t)
	sess := &fakeIdentity{cartID: "cart_deleted"}

	got, err := h.engine.GetOrCreate(context.Background(), sess, "us")
	require.NoError(t, err)
	assert.NotEqual(t, "cart_deleted", got.ID)
	assert.Equal(t, got.ID, sess.CartID())
	assert.Equal(t, []string{"retrieve", "create"}, h.backend.callLog())
}

func TestGetOrCreate_RetrieveFailure(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantReplace bool
	}{
		{
			name:        "cart of a deleted customer is replaced",
			err:         &commerce.Error{Op: "retrieve cart", Status: http.StatusForbidden, Message: "Forbidden"},
			wantReplace: true,
		},
		{
			name: "backend outage keeps the cart",
			err:  &commerce.Error{Op: "retrieve cart", Status: http.StatusServiceUnavailable},
		},
		{
			name: "transport failure keeps the cart",
			err:  &commerce.Error{Op: "retrieve cart", Err: errors.New("connection reset by peer")},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.backend.seed(&commerce.Cart{ID: "cart_01", RegionID: testRegionUS})
			h.backend.fail["retrieve"] = tt.err
			sess := &fakeIdentity{cartID: "cart_01"}

			got, err := h.engine.GetOrCreate(context.Background(), sess, "us")
			if tt.wantReplace {
				require.NoError(t, err)
				assert.NotEqual(t, "cart_01", got.ID)
				assert.Equal(t, got.ID, sess.CartID())
				assert.Equal(t, []string{"retrieve", "create"}, h.backend.callLog())
				return
			}

			var be *BackendError
			require.ErrorAs(t, err, &be)
			assert.Equal(t, unavailableMessage, err.Error())
			assert.Equal(t, "cart_01", sess.CartID(), "session keeps its cart")
			assert.Equal(t, []string{"retrieve"}, h.backend.callLog())
			assert.Empty(t, h.tags.Calls())
			assert.False(t, h.lastEvent(t).Success)
		})
	}
}

func TestGetOrCreate_CreateFailure(t *testing.T) {
	h := newHarness(t)
	h.backend.fail["create"] = &commerce.Error{Op: "create cart", Err: errors.New("dial tcp 10.0.0.1:9000: connection refused")}
	sess := &fakeIdentity{}

	_, err := h.engine.GetOrCreate(context.Background(), sess, "us")
	require.Error(t, err)

	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, unavailableMessage, err.Error())
	assert.NotContains(t, err.Error(), "10.0.0.1", "transport detail is not exposed")
	assert.Empty(t, sess.CartID())
	assert.Empty(t, h.tags.Calls())
}

func TestGetOrCreate_SessionWriteFailure(t *testing.T) {
	h := newHarness(t)
	sess := &fakeIdentity{setErr: errors.New("store down")}

	_, err := h.engine.GetOrCreate(context.Background(), sess, "us")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persisting cart id")
}

func TestGetOrCreate_ForwardsAuthHeaders(t *testing.T) {
	h := newHarness(t)
	sess := &fakeIdentity{token: "jwt-token"}

	_, err := h.engine.GetOrCreate(context.Background(), sess, "us")
	require.NoError(t, err)
	require.NotEmpty(t, h.backend.headers)
	assert.Equal(t, "Bearer jwt-token", h.backend.headers[0].Get("Authorization"))
}

func TestRetrieve(t *testing.T) {
	h := newHarness(t)

	_, err := h.engine.Retrieve(context.Background(), &fakeIdentity{})
	assert.ErrorIs(t, err, ErrNoActiveCart)

	_, err = h.engine.Retrieve(context.Background(), &fakeIdentity{cartID: "cart_missing"})
	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.True(t, commerce.IsNotFound(err))

	h.backend.seed(&commerce.Cart{ID: "cart_01", RegionID: testRegionUS})
	got, err := h.engine.Retrieve(context.Background(), &fakeIdentity{cartID: "cart_01"})
	require.NoError(t, err)
	assert.Equal(t, "cart_01", got.ID)
}

func TestListShippingOptions(t *testing.T) {
	h := newHarness(t)

	opts, err := h.engine.ListShippingOptions(context.Background(), &fakeIdentity{})
	require.NoError(t, err)
	assert.NotNil(t, opts)
	assert.Empty(t, opts)
	assert.Empty(t, h.backend.callLog())

	opts, err = h.engine.ListShippingOptions(context.Background(), &fakeIdentity{cartID: "cart_01"})
	require.NoError(t, err)
	require.Len(t, opts, 1)
	assert.Equal(t, "so_standard", opts[0].ID)

	h.backend.fail["list_shipping_options"] = &commerce.Error{Op: "list shipping options", Status: http.StatusInternalServerError}
	_, err = h.engine.ListShippingOptions(context.Background(), &fakeIdentity{cartID: "cart_01"})
	assert.Error(t, err)
}

func TestRegionSwitchScenario(t *testing.T) {
	store := session.NewMemoryStore(time.Hour)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	sess := &session.Session{ID: "sess-scenario", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, store.Create(ctx, sess))
	id := session.NewStoredIdentity(store, sess)

	h := newHarness(t)

	us, err := h.engine.AddLineItem(ctx, id, "us", testVariant, 2)
	require.NoError(t, err)
	assert.Equal(t, testRegionUS, us.RegionID)

	stored, err := store.Get(ctx, "sess-scenario")
	require.NoError(t, err)
	assert.Equal(t, us.ID, stored.CartID, "cart id persisted server-side")

	de, err := h.engine.GetOrCreate(ctx, id, "de")
	require.NoError(t, err)
	assert.Equal(t, us.ID, de.ID)
	assert.Equal(t, testRegionDE, de.RegionID)
	if diff := cmp.Diff(us.Items, de.Items); diff != "" {
		t.Errorf("items changed by region switch (-us +de):\n%s", diff)
	}
	assert.Equal(t, 1, h.backend.count("create"))
	assert.Equal(t, 1, h.backend.count("update"))
}
