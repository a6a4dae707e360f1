package admin

import (
	"log/slog"
	"net/http"
	"slices"

	"github.com/txn2/storefront/pkg/commerce"
	"github.com/txn2/storefront/pkg/region"
)

// regionListResponse lists the cached regions and the index state.
type regionListResponse struct {
	Data   []commerce.Region `json:"data"`
	Status region.Status     `json:"status"`
}

// liveRegionResponse compares the backend's current copy of a region with
// the cached index. Missing lists live countries the cached copy lacks.
type liveRegionResponse struct {
	Data    *commerce.Region `json:"data"`
	Cached  bool             `json:"cached"`
	Missing []string         `json:"missing_countries"`
}

type statusResponse struct {
	Status string `json:"status"`
}

// listRegions handles GET /api/v1/admin/regions.
//
// @Summary      List regions
// @Description  Returns the cached region list and the index state, loading it if needed.
// @Tags         Regions
// @Produce      json
// @Success      200  {object}  regionListResponse
// @Failure      502  {object}  errorResponse
// @Security     ApiKeyAuth
// @Security     BearerAuth
// @Router       /regions [get]
func (h *Handler) listRegions(w http.ResponseWriter, r *http.Request) {
	regions, err := h.deps.Regions.Regions(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "failed to load regions")
		return
	}
	if regions == nil {
		regions = []commerce.Region{}
	}
	writeJSON(w, http.StatusOK, regionListResponse{
		Data:   regions,
		Status: h.deps.Regions.Status(),
	})
}

// invalidateRegions handles POST /api/v1/admin/regions/invalidate. The next
// lookup refetches the region list from the backend.
//
// @Summary      Invalidate region index
// @Tags         Regions
// @Produce      json
// @Success      200  {object}  statusResponse
// @Security     ApiKeyAuth
// @Security     BearerAuth
// @Router       /regions/invalidate [post]
func (h *Handler) invalidateRegions(w http.ResponseWriter, r *http.Request) {
	h.deps.Regions.Invalidate()
	slog.Info("admin: region cache invalidated", "operator", operatorName(r))
	writeJSON(w, http.StatusOK, statusResponse{Status: "invalidated"})
}

// getLiveRegion handles GET /api/v1/admin/regions/{id}/live. It bypasses the
// index so operators can see whether an invalidation is due.
//
// @Summary      Get live region
// @Description  Reads a region from the commerce backend and lists countries the cached copy lacks.
// @Tags         Regions
// @Produce      json
// @Param        id  path  string  true  "Region ID"
// @Success      200  {object}  liveRegionResponse
// @Failure      404  {object}  errorResponse
// @Failure      502  {object}  errorResponse
// @Security     ApiKeyAuth
// @Security     BearerAuth
// @Router       /regions/{id}/live [get]
func (h *Handler) getLiveRegion(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue(pathParamID)
	live, err := h.deps.Backend.RetrieveRegion(r.Context(), id)
	switch {
	case commerce.IsNotFound(err), err == nil && live == nil:
		writeError(w, http.StatusNotFound, "region not found")
		return
	case err != nil:
		slog.Warn("admin: live region lookup failed", "region_id", id, "error", err)
		writeError(w, http.StatusBadGateway, "failed to load region")
		return
	}

	cached, err := h.deps.Regions.Regions(r.Context())
	if err != nil {
		slog.Warn("admin: region index unavailable", "error", err)
	}
	out := liveRegionResponse{Data: live, Missing: []string{}}
	i := slices.IndexFunc(cached, func(c commerce.Region) bool { return c.ID == id })
	if i >= 0 {
		out.Cached = true
	}
	for _, c := range live.Countries {
		if i < 0 || !cached[i].HasCountry(c.ISO2) {
			out.Missing = append(out.Missing, c.ISO2)
		}
	}
	writeJSON(w, http.StatusOK, out)
}
