package admin

import (
	"net/http"

	"github.com/txn2/storefront/pkg/audit"
)

// auditEventResponse wraps a paginated list of cart events.
type auditEventResponse struct {
	Data    []audit.Event `json:"data"`
	Total   int           `json:"total"`
	Page    int           `json:"page"`
	PerPage int           `json:"per_page"`
}

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// listAuditEvents handles GET /api/v1/admin/events.
//
// @Summary      List cart events
// @Description  Returns paginated cart events, newest first, with optional filtering.
// @Tags         Events
// @Produce      json
// @Param        session_id  query  string   false  "Filter by session ID"
// @Param        cart_id     query  string   false  "Filter by cart ID"
// @Param        operation   query  string   false  "Filter by operation, e.g. add_line_item"
// @Param        success     query  boolean  false  "Filter by success/failure"
// @Param        start_time  query  string   false  "Events after this time (RFC 3339)"
// @Param        end_time    query  string   false  "Events before this time (RFC 3339)"
// @Param        page        query  integer  false  "Page number, 1-based (default: 1)"
// @Param        per_page    query  integer  false  "Results per page (default: 50, max: 500)"
// @Success      200  {object}  auditEventResponse
// @Failure      400  {object}  errorResponse
// @Failure      500  {object}  errorResponse
// @Security     ApiKeyAuth
// @Security     BearerAuth
// @Router       /events [get]
func (h *Handler) listAuditEvents(w http.ResponseWriter, r *http.Request) {
	p := newQueryParams(r.URL)
	window := p.window()
	filter := audit.QueryFilter{
		SessionID: p.get("session_id"),
		CartID:    p.get("cart_id"),
		Operation: p.operation("operation"),
		Success:   p.boolean("success"),
		StartTime: window.Start,
		EndTime:   window.End,
	}
	perPage := p.positive("per_page")
	page := max(p.positive("page"), 1)
	if err := p.err(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if perPage == 0 {
		perPage = defaultAuditLimit
	}
	filter.Limit = min(perPage, maxAuditLimit)
	filter.Offset = (page - 1) * filter.Limit

	events, err := h.deps.AuditQuerier.Query(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to query cart events")
		return
	}

	countFilter := filter
	countFilter.Limit, countFilter.Offset = 0, 0
	total, err := h.deps.AuditQuerier.Count(r.Context(), countFilter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count cart events")
		return
	}

	if events == nil {
		events = []audit.Event{}
	}
	writeJSON(w, http.StatusOK, auditEventResponse{
		Data:    events,
		Total:   total,
		Page:    page,
		PerPage: filter.Limit,
	})
}

// getAuditEvent handles GET /api/v1/admin/events/{id}.
//
// @Summary      Get cart event
// @Description  Returns a single cart event by ID.
// @Tags         Events
// @Produce      json
// @Param        id  path  string  true  "Event ID"
// @Success      200  {object}  audit.Event
// @Failure      404  {object}  errorResponse
// @Failure      500  {object}  errorResponse
// @Security     ApiKeyAuth
// @Security     BearerAuth
// @Router       /events/{id} [get]
func (h *Handler) getAuditEvent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue(pathParamID)
	events, err := h.deps.AuditQuerier.Query(r.Context(), audit.QueryFilter{ID: id, Limit: 1})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to query cart event")
		return
	}
	if len(events) == 0 {
		writeError(w, http.StatusNotFound, "cart event not found")
		return
	}
	writeJSON(w, http.StatusOK, events[0])
}
