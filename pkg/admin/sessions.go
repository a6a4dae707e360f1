package admin

import (
	"log/slog"
	"net/http"
)

// sessionStats handles GET /api/v1/admin/sessions/stats.
//
// @Summary      Session statistics
// @Description  Counts live server-side sessions, those holding a cart and those signed in.
// @Tags         Sessions
// @Produce      json
// @Success      200  {object}  session.Stats
// @Failure      500  {object}  errorResponse
// @Security     ApiKeyAuth
// @Security     BearerAuth
// @Router       /sessions/stats [get]
func (h *Handler) sessionStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.deps.Sessions.Stats(r.Context())
	if err != nil {
		slog.Error("admin: session stats failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to count sessions")
		return
	}
	writeJSON(w, http.StatusOK, st)
}
