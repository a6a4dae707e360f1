package admin

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/txn2/storefront/pkg/cachetag"
)

// maxInvalidateTags bounds a single manual invalidation.
const maxInvalidateTags = 50

type cacheTagListResponse struct {
	Data []cachetag.Entry `json:"data"`
}

type cacheTagInvalidateRequest struct {
	Tags []string `json:"tags"`
}

type cacheTagInvalidateResponse struct {
	Invalidated []string `json:"invalidated"`
}

// listCacheTags handles GET /api/v1/admin/cache-tags.
//
// @Summary      List cache tags
// @Description  Returns every invalidated tag key with its version.
// @Tags         Cache
// @Produce      json
// @Success      200  {object}  cacheTagListResponse
// @Security     ApiKeyAuth
// @Security     BearerAuth
// @Router       /cache-tags [get]
func (h *Handler) listCacheTags(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, cacheTagListResponse{Data: h.deps.Tags.Snapshot()})
}

// invalidateCacheTags handles POST /api/v1/admin/cache-tags/invalidate.
//
// @Summary      Invalidate cache tags
// @Description  Bumps the given tags and forwards their keys to the revalidation notifier.
// @Tags         Cache
// @Accept       json
// @Produce      json
// @Param        body  body  cacheTagInvalidateRequest  true  "Tags to invalidate"
// @Success      200  {object}  cacheTagInvalidateResponse
// @Failure      400  {object}  errorResponse
// @Security     ApiKeyAuth
// @Security     BearerAuth
// @Router       /cache-tags/invalidate [post]
func (h *Handler) invalidateCacheTags(w http.ResponseWriter, r *http.Request) {
	var req cacheTagInvalidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tags := make([]cachetag.Tag, 0, len(req.Tags))
	for _, t := range req.Tags {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, cachetag.Tag(t))
		}
	}
	if len(tags) == 0 {
		writeError(w, http.StatusBadRequest, "at least one tag is required")
		return
	}
	if len(tags) > maxInvalidateTags {
		writeError(w, http.StatusBadRequest, "too many tags")
		return
	}

	h.deps.Tags.Invalidate(r.Context(), tags...)

	keys := make([]string, len(tags))
	for i, t := range tags {
		keys[i] = h.deps.Tags.Key(t)
	}
	slog.Info("admin: cache tags invalidated", "operator", operatorName(r), "keys", keys)
	writeJSON(w, http.StatusOK, cacheTagInvalidateResponse{Invalidated: keys})
}
