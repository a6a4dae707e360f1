// Package storefront provides the operator MCP toolkit: region lookups, cache
// tag inspection and invalidation, cart event queries and activity summaries.
package storefront

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/txn2/storefront/pkg/audit"
	"github.com/txn2/storefront/pkg/cachetag"
	"github.com/txn2/storefront/pkg/commerce"
	"github.com/txn2/storefront/pkg/region"
	"github.com/txn2/storefront/pkg/session"
)

// Tool names.
const (
	toolResolveRegion       = "resolve_region"
	toolListRegions         = "list_regions"
	toolInvalidateRegions   = "invalidate_regions"
	toolListCacheTags       = "list_cache_tags"
	toolInvalidateCacheTags = "invalidate_cache_tags"
	toolQueryCartEvents     = "query_cart_events"
	toolCartActivity        = "cart_activity"
	toolSessionStats        = "session_stats"
)

const (
	// maxInvalidateTags bounds one invalidate_cache_tags call.
	maxInvalidateTags = 50

	defaultEventLimit = 20
	maxEventLimit     = 200

	defaultActivityHours = 24
	maxActivityHours     = 24 * 30
)

// RegionService is the cached region index.
type RegionService interface {
	Resolve(ctx context.Context, countryCode string) (*commerce.Region, error)
	Regions(ctx context.Context) ([]commerce.Region, error)
	Status() region.Status
	Invalidate()
}

// TagRegistry is the cache tag registry.
type TagRegistry interface {
	Key(t cachetag.Tag) string
	Snapshot() []cachetag.Entry
	Invalidate(ctx context.Context, tags ...cachetag.Tag)
}

// EventQuerier reads recorded cart events.
type EventQuerier interface {
	Query(ctx context.Context, filter audit.QueryFilter) ([]audit.Event, error)
}

// SessionCounter counts server-side sessions.
type SessionCounter interface {
	Stats(ctx context.Context) (session.Stats, error)
}

// Config holds the toolkit's collaborators. Everything but Regions is
// optional; tools whose collaborator is nil are not registered.
type Config struct {
	Regions  RegionService
	Tags     TagRegistry
	Events   EventQuerier
	Metrics  audit.MetricsQuerier
	Sessions SessionCounter
}

// Toolkit implements the storefront operator toolkit.
type Toolkit struct {
	name     string
	regions  RegionService
	tags     TagRegistry
	events   EventQuerier
	metrics  audit.MetricsQuerier
	sessions SessionCounter
}

// New creates a new storefront toolkit.
func New(name string, cfg Config) (*Toolkit, error) {
	if cfg.Regions == nil {
		return nil, errors.New("storefront toolkit: region service is required")
	}
	return &Toolkit{
		name:     name,
		regions:  cfg.Regions,
		tags:     cfg.Tags,
		events:   cfg.Events,
		metrics:  cfg.Metrics,
		sessions: cfg.Sessions,
	}, nil
}

// Kind returns the toolkit kind.
func (*Toolkit) Kind() string {
	return "storefront"
}

// Name returns the toolkit instance name.
func (t *Toolkit) Name() string {
	return t.name
}

// Tools returns the names of the tools this toolkit registers.
func (t *Toolkit) Tools() []string {
	tools := []string{toolResolveRegion, toolListRegions, toolInvalidateRegions}
	if t.tags != nil {
		tools = append(tools, toolListCacheTags, toolInvalidateCacheTags)
	}
	if t.events != nil {
		tools = append(tools, toolQueryCartEvents)
	}
	if t.metrics != nil {
		tools = append(tools, toolCartActivity)
	}
	if t.sessions != nil {
		tools = append(tools, toolSessionStats)
	}
	return tools
}

// RegisterTools registers the toolkit's tools with the MCP server.
func (t *Toolkit) RegisterTools(s *mcp.Server) {
	mcp.AddTool(s, &mcp.Tool{
		Name:        toolResolveRegion,
		Description: "Resolves the commerce region that serves a two-letter country code. An empty code resolves the default country.",
	}, t.handleResolveRegion)

	mcp.AddTool(s, &mcp.Tool{
		Name:        toolListRegions,
		Description: "Lists the cached commerce regions with their countries and the state of the region cache.",
	}, t.handleListRegions)

	mcp.AddTool(s, &mcp.Tool{
		Name:        toolInvalidateRegions,
		Description: "Drops the cached region index so the next lookup reloads regions from the commerce backend.",
	}, t.handleInvalidateRegions)

	if t.tags != nil {
		mcp.AddTool(s, &mcp.Tool{
			Name:        toolListCacheTags,
			Description: "Lists every cache tag key with its version and last invalidation time.",
		}, t.handleListCacheTags)

		mcp.AddTool(s, &mcp.Tool{
			Name: toolInvalidateCacheTags,
			Description: "Marks cache tags stale, e.g. carts, products, regions, or a suffixed tag such as regions-reg_01. " +
				"Stale tags are pushed to the storefront's revalidation endpoint.",
		}, t.handleInvalidateCacheTags)
	}

	if t.events != nil {
		mcp.AddTool(s, &mcp.Tool{
			Name:        toolQueryCartEvents,
			Description: "Queries recorded cart operations by session, cart, operation, or outcome, newest first.",
		}, t.handleQueryCartEvents)
	}

	if t.metrics != nil {
		mcp.AddTool(s, &mcp.Tool{
			Name: toolCartActivity,
			Description: "Summarizes recent cart activity: totals, success rate, orders placed and cache invalidations, " +
				"plus a breakdown by operation, country_code, region_id, or tag.",
		}, t.handleCartActivity)
	}

	if t.sessions != nil {
		mcp.AddTool(s, &mcp.Tool{
			Name:        toolSessionStats,
			Description: "Counts live visitor sessions, those holding a cart, and those signed in as a customer.",
		}, t.handleSessionStats)
	}
}

// Close releases resources.
func (*Toolkit) Close() error {
	return nil
}

// errorResult creates an error CallToolResult.
func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf(`{"error": %q}`, msg)},
		},
		IsError: true,
	}
}

// jsonResult marshals v into a text CallToolResult.
func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return errorResult("internal error marshaling response"), nil, nil //nolint:nilerr // MCP protocol: tool errors are returned in CallToolResult.IsError
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
	}, nil, nil
}
