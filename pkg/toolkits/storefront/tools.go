package storefront

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/txn2/storefront/pkg/audit"
	"github.com/txn2/storefront/pkg/auth"
	"github.com/txn2/storefront/pkg/cachetag"
	"github.com/txn2/storefront/pkg/commerce"
	"github.com/txn2/storefront/pkg/region"
)

type resolveRegionInput struct {
	CountryCode string `json:"country_code" jsonschema:"two-letter ISO country code, case-insensitive"`
}

type emptyInput struct{}

type invalidateCacheTagsInput struct {
	Tags []string `json:"tags" jsonschema:"tags to mark stale"`
}

type queryCartEventsInput struct {
	SessionID string `json:"session_id,omitempty" jsonschema:"only events of this session"`
	CartID    string `json:"cart_id,omitempty" jsonschema:"only events of this cart"`
	Operation string `json:"operation,omitempty" jsonschema:"only events of this operation, e.g. add_line_item"`
	Success   *bool  `json:"success,omitempty" jsonschema:"only successful or only failed events"`
	Limit     int    `json:"limit,omitempty" jsonschema:"maximum number of events, default 20"`
}

type cartActivityInput struct {
	Hours   int    `json:"hours,omitempty" jsonschema:"lookback in hours, default 24, at most 720"`
	GroupBy string `json:"group_by,omitempty" jsonschema:"breakdown dimension: operation (default), country_code, region_id, or tag"`
}

type cartActivityOutput struct {
	Since     time.Time              `json:"since"`
	Overview  *audit.Overview        `json:"overview"`
	GroupBy   audit.Dimension        `json:"group_by"`
	Breakdown []audit.BreakdownEntry `json:"breakdown"`
}

type listRegionsOutput struct {
	Regions []commerce.Region `json:"regions"`
	Status  region.Status     `json:"status"`
}

func (t *Toolkit) handleResolveRegion(ctx context.Context, _ *mcp.CallToolRequest, input resolveRegionInput) (*mcp.CallToolResult, any, error) {
	reg, err := t.regions.Resolve(ctx, input.CountryCode)
	if errors.Is(err, region.ErrNotFound) {
		return errorResult(fmt.Sprintf("no region serves country %q", input.CountryCode)), nil, nil
	}
	if err != nil {
		return errorResult("failed to load regions: " + err.Error()), nil, nil
	}
	return jsonResult(reg)
}

func (t *Toolkit) handleListRegions(ctx context.Context, _ *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, any, error) {
	regions, err := t.regions.Regions(ctx)
	if err != nil {
		return errorResult("failed to load regions: " + err.Error()), nil, nil
	}
	if regions == nil {
		regions = []commerce.Region{}
	}
	return jsonResult(listRegionsOutput{Regions: regions, Status: t.regions.Status()})
}

func (t *Toolkit) handleInvalidateRegions(ctx context.Context, _ *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, any, error) {
	t.regions.Invalidate()
	slog.Info("region cache invalidated", "operator", operatorName(ctx), "source", "mcp")
	return jsonResult(map[string]string{"status": "invalidated"})
}

func (t *Toolkit) handleListCacheTags(_ context.Context, _ *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, any, error) {
	entries := t.tags.Snapshot()
	if entries == nil {
		entries = []cachetag.Entry{}
	}
	return jsonResult(map[string]any{"tags": entries})
}

func (t *Toolkit) handleInvalidateCacheTags(ctx context.Context, _ *mcp.CallToolRequest, input invalidateCacheTagsInput) (*mcp.CallToolResult, any, error) {
	tags := make([]cachetag.Tag, 0, len(input.Tags))
	for _, raw := range input.Tags {
		if s := strings.TrimSpace(raw); s != "" {
			tags = append(tags, cachetag.Tag(s))
		}
	}
	if len(tags) == 0 {
		return errorResult("at least one tag is required"), nil, nil
	}
	if len(tags) > maxInvalidateTags {
		return errorResult(fmt.Sprintf("at most %d tags may be invalidated at once", maxInvalidateTags)), nil, nil
	}

	t.tags.Invalidate(ctx, tags...)

	keys := make([]string, len(tags))
	for i, tag := range tags {
		keys[i] = t.tags.Key(tag)
	}
	slog.Info("cache tags invalidated", "operator", operatorName(ctx), "keys", keys, "source", "mcp")
	return jsonResult(map[string]any{"invalidated": keys})
}

func (t *Toolkit) handleQueryCartEvents(ctx context.Context, _ *mcp.CallToolRequest, input queryCartEventsInput) (*mcp.CallToolResult, any, error) {
	limit := input.Limit
	switch {
	case limit <= 0:
		limit = defaultEventLimit
	case limit > maxEventLimit:
		limit = maxEventLimit
	}

	events, err := t.events.Query(ctx, audit.QueryFilter{
		SessionID: input.SessionID,
		CartID:    input.CartID,
		Operation: audit.Operation(input.Operation),
		Success:   input.Success,
		Limit:     limit,
	})
	if err != nil {
		return errorResult("failed to query cart events: " + err.Error()), nil, nil
	}
	if events == nil {
		events = []audit.Event{}
	}
	return jsonResult(map[string]any{"events": events, "count": len(events)})
}

func (t *Toolkit) handleCartActivity(ctx context.Context, _ *mcp.CallToolRequest, input cartActivityInput) (*mcp.CallToolResult, any, error) {
	hours := input.Hours
	switch {
	case hours <= 0:
		hours = defaultActivityHours
	case hours > maxActivityHours:
		hours = maxActivityHours
	}
	groupBy := audit.DimensionOperation
	if input.GroupBy != "" {
		d, err := audit.ParseDimension(input.GroupBy)
		if err != nil {
			return errorResult(err.Error()), nil, nil
		}
		groupBy = d
	}

	now := time.Now()
	since := now.Add(-time.Duration(hours) * time.Hour)
	window := audit.Window{Start: &since, End: &now}

	overview, err := t.metrics.Overview(ctx, window)
	if err != nil {
		return errorResult("failed to summarize cart activity: " + err.Error()), nil, nil
	}
	breakdown, err := t.metrics.Breakdown(ctx, audit.BreakdownFilter{Window: window, GroupBy: groupBy})
	if err != nil {
		return errorResult("failed to break down cart activity: " + err.Error()), nil, nil
	}
	if breakdown == nil {
		breakdown = []audit.BreakdownEntry{}
	}
	return jsonResult(cartActivityOutput{Since: since, Overview: overview, GroupBy: groupBy, Breakdown: breakdown})
}

func (t *Toolkit) handleSessionStats(ctx context.Context, _ *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, any, error) {
	st, err := t.sessions.Stats(ctx)
	if err != nil {
		return errorResult("failed to count sessions: " + err.Error()), nil, nil
	}
	return jsonResult(st)
}

func operatorName(ctx context.Context) string {
	if op := auth.GetOperator(ctx); op != nil {
		return op.Name
	}
	return ""
}
