package platform

import (
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/txn2/storefront/pkg/admin"
	pkghttp "github.com/txn2/storefront/pkg/http"
	"github.com/txn2/storefront/pkg/httpapi"
)

const adminPrefix = "/api/v1/admin/"

// Handler returns the root HTTP handler: health probes, the storefront API,
// and, when enabled, the admin API and the MCP endpoint. Every request gets
// a request id and an access log line.
func (p *Platform) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", p.health.LivenessHandler())
	mux.HandleFunc("GET /readyz", p.health.ReadinessHandler())

	if p.config.Admin.Enabled {
		var auditQuerier admin.AuditQuerier
		if aq, ok := p.auditLogger.(admin.AuditQuerier); ok {
			auditQuerier = aq
		}
		mux.Handle(adminPrefix, admin.NewHandler(admin.Deps{
			Regions:             p.regions,
			Backend:             p.backend,
			Tags:                p.tags,
			AuditQuerier:        auditQuerier,
			AuditMetricsQuerier: p.auditMetrics,
			Sessions:            p.store,
		}, admin.RequireAdmin(p.operators)))
	}

	if p.mcpServer != nil {
		streamable := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
			return p.mcpServer
		}, nil)
		mux.Handle(p.config.MCP.Path, pkghttp.Chain(streamable,
			pkghttp.MCPAuthGateway,
			pkghttp.AuthMiddleware(true),
		))
	}

	mux.Handle("/", httpapi.NewHandler(httpapi.Deps{
		Engine:      p.engine,
		Sessions:    p.sessions,
		Auth:        p.guard,
		Backend:     p.backend,
		Audit:       p.auditLogger,
		Environment: p.config.Server.Environment,
	}))

	return pkghttp.Chain(mux, pkghttp.RequestID, pkghttp.AccessLog)
}
