package platform

import (
	"database/sql"
	"net/http"

	"github.com/txn2/storefront/pkg/audit"
	"github.com/txn2/storefront/pkg/cachetag"
	"github.com/txn2/storefront/pkg/region"
	"github.com/txn2/storefront/pkg/session"
)

// Options configures the platform.
type Options struct {
	// Config is the platform configuration.
	Config *Config

	// Version is reported by the MCP server.
	Version string

	// DB connection (optional, opened from config if not provided).
	DB *sql.DB

	// BackendHTTPClient overrides the commerce client's HTTP client.
	BackendHTTPClient *http.Client

	// SessionStore (optional, created from config if not provided).
	SessionStore session.Store

	// AuditLogger (optional, created from config if not provided).
	AuditLogger audit.Logger

	// TagNotifier (optional, created from config if not provided).
	TagNotifier cachetag.Notifier

	// RegionClock (optional) drives region cache expiry.
	RegionClock region.Clock
}

// Option is a functional option for configuring the platform.
type Option func(*Options)

// WithConfig sets the configuration.
func WithConfig(cfg *Config) Option {
	return func(o *Options) {
		o.Config = cfg
	}
}

// WithVersion sets the version reported by the MCP server.
func WithVersion(v string) Option {
	return func(o *Options) {
		o.Version = v
	}
}

// WithDB sets the database connection.
func WithDB(db *sql.DB) Option {
	return func(o *Options) {
		o.DB = db
	}
}

// WithBackendHTTPClient sets the HTTP client used for backend calls.
func WithBackendHTTPClient(c *http.Client) Option {
	return func(o *Options) {
		o.BackendHTTPClient = c
	}
}

// WithSessionStore sets the session store.
func WithSessionStore(store session.Store) Option {
	return func(o *Options) {
		o.SessionStore = store
	}
}

// WithAuditLogger sets the audit logger.
func WithAuditLogger(logger audit.Logger) Option {
	return func(o *Options) {
		o.AuditLogger = logger
	}
}

// WithTagNotifier sets the cache tag notifier.
func WithTagNotifier(n cachetag.Notifier) Option {
	return func(o *Options) {
		o.TagNotifier = n
	}
}

// WithRegionClock sets the clock of the region cache.
func WithRegionClock(c region.Clock) Option {
	return func(o *Options) {
		o.RegionClock = c
	}
}
