package admin

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/storefront/pkg/session"
)

type stubSessionStats struct {
	stats session.Stats
	err   error
}

func (s stubSessionStats) Stats(context.Context) (session.Stats, error) { return s.stats, s.err }

// Verify interface compliance.
var (
	_ SessionStats = stubSessionStats{}
	_ SessionStats = (*session.MemoryStore)(nil)
)

func TestSessionStats(t *testing.T) {
	t.Run("counts", func(t *testing.T) {
		h := NewHandler(Deps{Sessions: stubSessionStats{stats: session.Stats{Active: 4, WithCart: 2, Customers: 1}}}, nil)

		rec := serve(t, h, http.MethodGet, "/api/v1/admin/sessions/stats", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"active":4,"with_cart":2,"customers":1}`, rec.Body.String())
	})

	t.Run("store failure", func(t *testing.T) {
		h := NewHandler(Deps{Sessions: stubSessionStats{err: errors.New("db down")}}, nil)

		rec := serve(t, h, http.MethodGet, "/api/v1/admin/sessions/stats", "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "db down")
	})

	t.Run("omitted without a store", func(t *testing.T) {
		h := NewHandler(Deps{}, nil)

		rec := serve(t, h, http.MethodGet, "/api/v1/admin/sessions/stats", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
