package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNewManager(t *testing.T) {
	m, err := NewManager(ManagerConfig{})
	require.NoError(t, err)
	assert.Equal(t, ModeCookie, m.Mode())
	assert.Equal(t, DefaultTTL, m.ttl)

	_, err = NewManager(ManagerConfig{Mode: ModeStore})
	assert.Error(t, err)

	_, err = NewManager(ManagerConfig{Mode: "redis"})
	assert.Error(t, err)
}

func TestManager_OpenCookieMode(t *testing.T) {
	m, err := NewManager(ManagerConfig{Mode: ModeCookie})
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: CartCookie, Value: idTestCartID})

	id, err := m.Open(httptest.NewRecorder(), r)
	require.NoError(t, err)
	assert.IsType(t, &CookieIdentity{}, id)
	assert.Equal(t, idTestCartID, id.CartID())
}

func TestManager_OpenStoreModeCreatesSession(t *testing.T) {
	store := NewMemoryStore(memTestTTL)
	m, err := NewManager(ManagerConfig{Mode: ModeStore, Store: store, TTL: memTestTTL})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	id, err := m.Open(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.NotEmpty(t, id.SessionID())
	assert.Empty(t, id.CartID())

	c := cookieByName(rec, SessionCookie)
	require.NotNil(t, c)
	assert.Equal(t, id.SessionID(), c.Value)

	st, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, st.Active)
}

func TestManager_OpenStoreModeReusesSession(t *testing.T) {
	store := NewMemoryStore(memTestTTL)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, newTestSession(memTestSess1, time.Now(), memTestTTL)))

	m, err := NewManager(ManagerConfig{Mode: ModeStore, Store: store})
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: SessionCookie, Value: memTestSess1})
	rec := httptest.NewRecorder()

	id, err := m.Open(rec, r)
	require.NoError(t, err)
	assert.Equal(t, memTestSess1, id.SessionID())
	assert.Equal(t, "cart-sess-1", id.CartID())
	assert.Nil(t, cookieByName(rec, SessionCookie), "no new cookie for an existing session")
}

func TestManager_OpenStoreModeExpiredSessionReplaced(t *testing.T) {
	store := NewMemoryStore(memTestTTL)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, newTestSession("old", time.Now(), -memTestTTL)))

	m, err := NewManager(ManagerConfig{Mode: ModeStore, Store: store})
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: SessionCookie, Value: "old"})

	id, err := m.Open(httptest.NewRecorder(), r)
	require.NoError(t, err)
	assert.NotEqual(t, "old", id.SessionID())
	assert.Empty(t, id.CartID())
}

type errGetStore struct {
	*MemoryStore
}

func (errGetStore) Get(context.Context, string) (*Session, error) {
	return nil, errors.New("db down")
}

func (errGetStore) Create(context.Context, *Session) error {
	return errors.New("db down")
}

func TestManager_OpenStoreErrors(t *testing.T) {
	m, err := NewManager(ManagerConfig{Mode: ModeStore, Store: errGetStore{NewMemoryStore(memTestTTL)}})
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: SessionCookie, Value: "s1"})
	_, err = m.Open(httptest.NewRecorder(), r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading session")

	_, err = m.Open(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "creating session")
}
