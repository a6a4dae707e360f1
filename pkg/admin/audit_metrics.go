package admin

import (
	"net/http"

	"github.com/txn2/storefront/pkg/audit"
)

// registerAuditMetricsRoutes registers the cart activity aggregations when
// the event logger can compute them.
func (h *Handler) registerAuditMetricsRoutes() {
	if h.deps.AuditMetricsQuerier == nil {
		return
	}
	h.mux.HandleFunc("GET /api/v1/admin/events/metrics/timeseries", h.getAuditTimeseries)
	h.mux.HandleFunc("GET /api/v1/admin/events/metrics/breakdown", h.getAuditBreakdown)
	h.mux.HandleFunc("GET /api/v1/admin/events/metrics/overview", h.getAuditOverview)
}

// getAuditTimeseries handles GET /api/v1/admin/events/metrics/timeseries.
//
// @Summary      Cart activity timeseries
// @Description  Returns event counts bucketed by minute, hour or day.
// @Tags         Events
// @Produce      json
// @Param        resolution  query  string  false  "Bucket size: minute, hour, day (default: hour)"
// @Param        operation   query  string  false  "Filter by operation"
// @Param        start_time  query  string  false  "Events after this time (RFC 3339)"
// @Param        end_time    query  string  false  "Events before this time (RFC 3339)"
// @Success      200  {array}   audit.TimeseriesBucket
// @Failure      400  {object}  errorResponse
// @Failure      500  {object}  errorResponse
// @Security     ApiKeyAuth
// @Security     BearerAuth
// @Router       /events/metrics/timeseries [get]
func (h *Handler) getAuditTimeseries(w http.ResponseWriter, r *http.Request) {
	p := newQueryParams(r.URL)
	filter := audit.TimeseriesFilter{
		Window:    p.window(),
		Operation: p.operation("operation"),
	}
	res, err := audit.ParseResolution(p.get("resolution"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := p.err(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter.Resolution = res

	buckets, err := h.deps.AuditMetricsQuerier.Timeseries(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to query timeseries")
		return
	}
	if buckets == nil {
		buckets = []audit.TimeseriesBucket{}
	}
	writeJSON(w, http.StatusOK, buckets)
}

// getAuditBreakdown handles GET /api/v1/admin/events/metrics/breakdown.
//
// @Summary      Cart activity breakdown
// @Description  Returns event counts grouped by one dimension.
// @Tags         Events
// @Produce      json
// @Param        group_by    query  string   false  "Dimension: operation, country_code, region_id, tag"
// @Param        limit       query  integer  false  "Maximum rows"
// @Param        start_time  query  string   false  "Events after this time (RFC 3339)"
// @Param        end_time    query  string   false  "Events before this time (RFC 3339)"
// @Success      200  {array}   audit.BreakdownEntry
// @Failure      400  {object}  errorResponse
// @Failure      500  {object}  errorResponse
// @Security     ApiKeyAuth
// @Security     BearerAuth
// @Router       /events/metrics/breakdown [get]
func (h *Handler) getAuditBreakdown(w http.ResponseWriter, r *http.Request) {
	p := newQueryParams(r.URL)
	dim, err := audit.ParseDimension(p.get("group_by"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter := audit.BreakdownFilter{
		Window:  p.window(),
		GroupBy: dim,
		Limit:   p.positive("limit"),
	}
	if err := p.err(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := h.deps.AuditMetricsQuerier.Breakdown(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to query breakdown")
		return
	}
	if entries == nil {
		entries = []audit.BreakdownEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// getAuditOverview handles GET /api/v1/admin/events/metrics/overview.
//
// @Summary      Cart activity overview
// @Description  Returns aggregate counts: events, orders placed, invalidations, unique sessions, carts and customers.
// @Tags         Events
// @Produce      json
// @Param        start_time  query  string  false  "Events after this time (RFC 3339)"
// @Param        end_time    query  string  false  "Events before this time (RFC 3339)"
// @Success      200  {object}  audit.Overview
// @Failure      400  {object}  errorResponse
// @Failure      500  {object}  errorResponse
// @Security     ApiKeyAuth
// @Security     BearerAuth
// @Router       /events/metrics/overview [get]
func (h *Handler) getAuditOverview(w http.ResponseWriter, r *http.Request) {
	p := newQueryParams(r.URL)
	window := p.window()
	if err := p.err(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	overview, err := h.deps.AuditMetricsQuerier.Overview(r.Context(), window)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to query overview")
		return
	}
	writeJSON(w, http.StatusOK, overview)
}
