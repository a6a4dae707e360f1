package admin

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/txn2/storefront/pkg/audit"
	"github.com/txn2/storefront/pkg/auth"
	"github.com/txn2/storefront/pkg/cachetag"
	"github.com/txn2/storefront/pkg/commerce"
	"github.com/txn2/storefront/pkg/region"
)

const (
	testAPIKey    = "test-admin-key"
	testRegionUS  = "reg_us"
	testSessionID = "sess-1"
)

// --- Mock RegionCache ---

type mockRegionCache struct {
	regions     []commerce.Region
	err         error
	status      region.Status
	invalidated int
}

func (m *mockRegionCache) Regions(context.Context) ([]commerce.Region, error) {
	return m.regions, m.err
}

func (m *mockRegionCache) Status() region.Status { return m.status }

func (m *mockRegionCache) Invalidate() { m.invalidated++ }

// --- Mock RegionFetcher ---

type mockRegionFetcher struct {
	region *commerce.Region
	err    error
	ids    []string
}

func (m *mockRegionFetcher) RetrieveRegion(_ context.Context, id string) (*commerce.Region, error) {
	m.ids = append(m.ids, id)
	return m.region, m.err
}

// Verify interface compliance.
var (
	_ RegionCache   = (*mockRegionCache)(nil)
	_ RegionCache   = (*region.Resolver)(nil)
	_ RegionFetcher = (*mockRegionFetcher)(nil)
	_ RegionFetcher = (*commerce.Client)(nil)
	_ TagRegistry   = (*cachetag.Registry)(nil)
)

// --- Mock AuditQuerier ---

type mockAuditQuerier struct {
	queryResult []audit.Event
	queryErr    error
	countResult int
	countErr    error

	mu      sync.Mutex
	filters []audit.QueryFilter
}

func (m *mockAuditQuerier) Query(_ context.Context, f audit.QueryFilter) ([]audit.Event, error) {
	m.mu.Lock()
	m.filters = append(m.filters, f)
	m.mu.Unlock()
	return m.queryResult, m.queryErr
}

func (m *mockAuditQuerier) Count(_ context.Context, _ audit.QueryFilter) (int, error) {
	return m.countResult, m.countErr
}

// Verify interface compliance.
var (
	_ AuditQuerier = (*mockAuditQuerier)(nil)
	_ AuditQuerier = (*audit.MemoryLogger)(nil)
)

// --- Mock AuditMetricsQuerier ---

type mockAuditMetricsQuerier struct {
	timeseriesResult []audit.TimeseriesBucket
	timeseriesErr    error
	timeseriesFilter audit.TimeseriesFilter
	breakdownResult  []audit.BreakdownEntry
	breakdownErr     error
	breakdownFilter  audit.BreakdownFilter
	overviewResult   *audit.Overview
	overviewErr      error
	overviewWindow   audit.Window
}

func (m *mockAuditMetricsQuerier) Timeseries(_ context.Context, f audit.TimeseriesFilter) ([]audit.TimeseriesBucket, error) {
	m.timeseriesFilter = f
	return m.timeseriesResult, m.timeseriesErr
}

func (m *mockAuditMetricsQuerier) Breakdown(_ context.Context, f audit.BreakdownFilter) ([]audit.BreakdownEntry, error) {
	m.breakdownFilter = f
	return m.breakdownResult, m.breakdownErr
}

func (m *mockAuditMetricsQuerier) Overview(_ context.Context, w audit.Window) (*audit.Overview, error) {
	m.overviewWindow = w
	return m.overviewResult, m.overviewErr
}

// Verify interface compliance.
var _ audit.MetricsQuerier = (*mockAuditMetricsQuerier)(nil)

// --- Mock Authenticator ---

type mockAuthenticator struct {
	op  *auth.Operator
	err error
}

func (m *mockAuthenticator) AuthenticateRequest(*http.Request) (*auth.Operator, error) {
	return m.op, m.err
}

var (
	_ Authenticator = (*mockAuthenticator)(nil)
	_ Authenticator = (*auth.APIKeyAuthenticator)(nil)
)

var errBoom = errors.New("boom")

// serve runs a request through h and returns the recorder.
func serve(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}
