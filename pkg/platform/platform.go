package platform

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/txn2/storefront/pkg/audit"
	auditpostgres "github.com/txn2/storefront/pkg/audit/postgres"
	"github.com/txn2/storefront/pkg/auth"
	"github.com/txn2/storefront/pkg/cachetag"
	"github.com/txn2/storefront/pkg/cart"
	"github.com/txn2/storefront/pkg/commerce"
	"github.com/txn2/storefront/pkg/database/migrate"
	"github.com/txn2/storefront/pkg/health"
	"github.com/txn2/storefront/pkg/middleware"
	"github.com/txn2/storefront/pkg/region"
	"github.com/txn2/storefront/pkg/session"
	sessionpostgres "github.com/txn2/storefront/pkg/session/postgres"
	"github.com/txn2/storefront/pkg/toolkits/storefront"
)

// Platform is the main platform facade.
type Platform struct {
	config  *Config
	version string

	lifecycle *Lifecycle
	health    *health.Checker

	db      *sql.DB
	ownsDB  bool
	backend *commerce.Client

	regions  *region.Resolver
	tags     *cachetag.Registry
	sessions *session.Manager
	store    session.Store // nil in cookie mode

	auditLogger  audit.Logger
	auditMetrics audit.MetricsQuerier

	engine    *cart.Engine
	guard     *auth.Guard
	operators *auth.APIKeyAuthenticator

	mcpServer *mcp.Server
	toolkit   *storefront.Toolkit
}

// New creates a new platform instance.
func New(opts ...Option) (*Platform, error) {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}

	if options.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if options.Version == "" {
		options.Version = "dev"
	}

	p := &Platform{
		config:    options.Config,
		version:   options.Version,
		lifecycle: NewLifecycle(),
		health:    health.NewChecker(),
	}

	if err := p.initializeComponents(options); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("initializing components: %w", err)
	}

	return p, nil
}

// initializeComponents initializes all platform components.
func (p *Platform) initializeComponents(opts *Options) error {
	if err := p.initDatabase(opts); err != nil {
		return err
	}
	if err := p.initBackend(opts); err != nil {
		return err
	}
	p.initCache(opts)
	if err := p.initSessions(opts); err != nil {
		return err
	}
	p.initAudit(opts)
	if err := p.initEngine(); err != nil {
		return err
	}
	if err := p.initOperators(); err != nil {
		return err
	}
	p.initReadiness()
	return p.initMCP()
}

// initReadiness registers the dependency checks behind /readyz.
func (p *Platform) initReadiness() {
	if p.db != nil {
		p.health.AddCheck("database", p.db.PingContext)
	}
	p.health.AddCheck("regions", func(ctx context.Context) error {
		_, err := p.regions.Regions(ctx)
		return err
	})
}

// initDatabase opens the database when one is configured.
func (p *Platform) initDatabase(opts *Options) error {
	if opts.DB != nil {
		p.db = opts.DB
	} else if p.config.Database.DSN != "" {
		db, err := sql.Open("postgres", p.config.Database.DSN)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		db.SetMaxOpenConns(p.config.Database.MaxOpenConns)
		p.db = db
		p.ownsDB = true
	}
	if p.db == nil {
		return nil
	}

	p.lifecycle.OnStart("database", func(ctx context.Context) error {
		if err := p.db.PingContext(ctx); err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		return nil
	})
	if p.config.Database.AutoMigrate {
		p.lifecycle.OnStart("migrations", func(context.Context) error {
			if err := migrate.Run(p.db); err != nil {
				return fmt.Errorf("migrating database: %w", err)
			}
			return nil
		})
	}
	return nil
}

func (p *Platform) initBackend(opts *Options) error {
	client, err := commerce.New(commerce.Config{
		BaseURL:        p.config.Backend.URL,
		PublishableKey: p.config.Backend.PublishableKey,
		Timeout:        p.config.Backend.Timeout,
		HTTPClient:     opts.BackendHTTPClient,
	})
	if err != nil {
		return fmt.Errorf("creating backend client: %w", err)
	}
	p.backend = client
	return nil
}

// initCache creates the region cache and the cache tag registry.
func (p *Platform) initCache(opts *Options) {
	p.regions = region.New(p.backend, region.Config{
		TTL:            p.config.Regions.TTL,
		DefaultCountry: p.config.Regions.DefaultCountry,
		Clock:          opts.RegionClock,
	})

	notifier := opts.TagNotifier
	if notifier == nil && p.config.CacheTags.RevalidateURL != "" {
		hn := cachetag.NewHTTPNotifier(cachetag.HTTPNotifierConfig{
			URL:       p.config.CacheTags.RevalidateURL,
			Secret:    p.config.CacheTags.RevalidateSecret,
			Timeout:   p.config.CacheTags.Timeout,
			QueueSize: p.config.CacheTags.QueueSize,
		})
		p.lifecycle.RegisterWorker("revalidation notifier", hn.Start, hn)
		notifier = hn
	}

	p.tags = cachetag.NewRegistry(cachetag.Config{
		CacheID:  p.config.CacheTags.CacheID,
		Notifier: notifier,
	})

}

func (p *Platform) initSessions(opts *Options) error {
	cookie := session.CookieConfig{
		MaxAge: p.config.Session.TTL,
		Secure: p.config.Session.SecureCookies,
	}

	store := opts.SessionStore
	if store == nil {
		switch p.config.Session.Mode {
		case SessionModeMemory:
			var memOpts []session.MemoryOption
			if n := p.config.Session.MaxMemorySessions; n > 0 {
				memOpts = append(memOpts, session.WithMaxSessions(n))
			}
			ms := session.NewMemoryStore(p.config.Session.TTL, memOpts...)
			p.lifecycle.RegisterWorker("session cleanup", func() { ms.StartCleanupRoutine(p.config.Session.CleanupInterval) }, ms)
			store = ms
		case SessionModePostgres:
			if p.db == nil {
				return errors.New("session mode postgres requires a database")
			}
			ps := sessionpostgres.New(p.db, sessionpostgres.Config{TTL: p.config.Session.TTL})
			p.lifecycle.RegisterWorker("session cleanup", func() { ps.StartCleanupRoutine(p.config.Session.CleanupInterval) }, ps)
			store = ps
		}
	}

	p.store = store
	mode := session.ModeCookie
	if store != nil {
		mode = session.ModeStore
	}
	m, err := session.NewManager(session.ManagerConfig{
		Mode:   mode,
		Store:  store,
		TTL:    p.config.Session.TTL,
		Cookie: cookie,
	})
	if err != nil {
		return fmt.Errorf("creating session manager: %w", err)
	}
	p.sessions = m
	return nil
}

// initAudit selects the cart event logger: the postgres store when a
// database is available, an in-memory ring otherwise.
func (p *Platform) initAudit(opts *Options) {
	if opts.AuditLogger != nil {
		p.auditLogger = opts.AuditLogger
	} else {
		switch {
		case !p.config.Audit.Enabled:
			p.auditLogger = audit.NoopLogger{}
		case p.db != nil:
			store := auditpostgres.New(p.db, auditpostgres.Config{RetentionDays: p.config.Audit.RetentionDays})
			p.lifecycle.RegisterWorker("audit cleanup", func() { store.StartCleanupRoutine(p.config.Audit.CleanupInterval) }, store)
			p.auditLogger = store
		default:
			p.auditLogger = audit.NewMemoryLogger(p.config.Audit.MemoryCapacity)
		}
	}

	if mq, ok := p.auditLogger.(audit.MetricsQuerier); ok {
		p.auditMetrics = mq
	}
}

func (p *Platform) initEngine() error {
	engine, err := cart.NewEngine(cart.Config{
		Regions:        p.regions,
		Backend:        p.backend,
		Tags:           p.tags,
		Audit:          p.auditLogger,
		DefaultCountry: p.config.Regions.DefaultCountry,
	})
	if err != nil {
		return fmt.Errorf("creating cart engine: %w", err)
	}
	p.engine = engine
	p.guard = auth.NewGuard(p.backend)
	return nil
}

func (p *Platform) initOperators() error {
	a, err := auth.NewAPIKeyAuthenticator(auth.APIKeyConfig{Keys: p.config.Admin.APIKeys})
	if err != nil {
		return fmt.Errorf("creating operator authenticator: %w", err)
	}
	p.operators = a
	return nil
}

// initMCP creates the operator MCP server when enabled.
func (p *Platform) initMCP() error {
	if !p.config.MCP.Enabled {
		return nil
	}

	tk, err := storefront.New(p.config.Server.Name, storefront.Config{
		Regions:  p.regions,
		Tags:     p.tags,
		Events:   p.auditLogger,
		Metrics:  p.auditMetrics,
		Sessions: p.store,
	})
	if err != nil {
		return fmt.Errorf("creating storefront toolkit: %w", err)
	}
	p.toolkit = tk

	p.mcpServer = mcp.NewServer(&mcp.Implementation{
		Name:    p.config.Server.Name,
		Version: p.version,
	}, nil)
	tk.RegisterTools(p.mcpServer)
	p.mcpServer.AddReceivingMiddleware(
		middleware.MCPToolCallMiddleware(p.operators, auth.RoleAdmin),
		middleware.MCPLoggingMiddleware(),
	)
	p.lifecycle.RegisterCloser("storefront toolkit", tk)
	return nil
}

// Start starts the platform and marks it ready.
func (p *Platform) Start(ctx context.Context) error {
	if err := p.lifecycle.Start(ctx); err != nil {
		return err
	}
	p.health.SetReady()
	slog.Info("platform started",
		"backend", p.backend.BaseURL(),
		"session_mode", p.config.Session.Mode,
		"admin", p.config.Admin.Enabled,
		"mcp", p.config.MCP.Enabled)
	return nil
}

// Stop marks the platform draining and stops background components.
func (p *Platform) Stop(ctx context.Context) error {
	p.health.SetDraining()
	return p.lifecycle.Stop(ctx)
}

// Config returns the platform configuration.
func (p *Platform) Config() *Config {
	return p.config
}

// Engine returns the cart engine.
func (p *Platform) Engine() *cart.Engine {
	return p.engine
}

// Regions returns the region cache.
func (p *Platform) Regions() *region.Resolver {
	return p.regions
}

// Tags returns the cache tag registry.
func (p *Platform) Tags() *cachetag.Registry {
	return p.tags
}

// Sessions returns the session manager.
func (p *Platform) Sessions() *session.Manager {
	return p.sessions
}

// AuditLogger returns the cart event logger.
func (p *Platform) AuditLogger() audit.Logger {
	return p.auditLogger
}

// MCPServer returns the operator MCP server, or nil when disabled.
func (p *Platform) MCPServer() *mcp.Server {
	return p.mcpServer
}

// Health returns the readiness checker.
func (p *Platform) Health() *health.Checker {
	return p.health
}

// closeResource closes a resource and appends any error.
func closeResource(errs *[]error, closer Closer) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		*errs = append(*errs, err)
	}
}

// Close closes all platform resources. Background workers are stopped by
// Stop; Close releases what New acquired.
func (p *Platform) Close() error {
	var errs []error

	if p.auditLogger != nil {
		closeResource(&errs, p.auditLogger)
	}
	if p.ownsDB && p.db != nil {
		closeResource(&errs, p.db)
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing platform: %v", errs)
	}
	return nil
}
