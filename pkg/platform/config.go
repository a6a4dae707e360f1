// Package platform wires the storefront components together from
// configuration and manages their lifecycle.
package platform

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/txn2/storefront/pkg/auth"
)

// Session modes.
const (
	SessionModeCookie   = "cookie"
	SessionModeMemory   = "memory"
	SessionModePostgres = "postgres"
)

// Config holds the complete storefront configuration.
type Config struct {
	APIVersion string          `yaml:"apiVersion"`
	Server     ServerConfig    `yaml:"server"`
	Backend    BackendConfig   `yaml:"backend"`
	Session    SessionConfig   `yaml:"session"`
	Regions    RegionsConfig   `yaml:"regions"`
	CacheTags  CacheTagsConfig `yaml:"cache_tags"`
	Database   DatabaseConfig  `yaml:"database"`
	Audit      AuditConfig     `yaml:"audit"`
	Admin      AdminConfig     `yaml:"admin"`
	MCP        MCPConfig       `yaml:"mcp"`
	Logging    LoggingConfig   `yaml:"logging"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Name            string        `yaml:"name"`
	Address         string        `yaml:"address"`
	Environment     string        `yaml:"environment"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	TLS             TLSConfig     `yaml:"tls"`
}

// TLSConfig configures TLS.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// BackendConfig configures the commerce backend client.
type BackendConfig struct {
	URL            string        `yaml:"url"`
	PublishableKey string        `yaml:"publishable_key"`
	Timeout        time.Duration `yaml:"timeout"`
}

// SessionConfig configures where visitor sessions live.
type SessionConfig struct {
	// Mode is "cookie", "memory", or "postgres".
	Mode            string        `yaml:"mode"`
	TTL             time.Duration `yaml:"ttl"`
	SecureCookies   bool          `yaml:"secure_cookies"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`

	// MaxMemorySessions caps the memory store. Zero uses the store default.
	MaxMemorySessions int `yaml:"max_memory_sessions"`
}

// RegionsConfig configures the region cache.
type RegionsConfig struct {
	TTL            time.Duration `yaml:"ttl"`
	DefaultCountry string        `yaml:"default_country"`
}

// CacheTagsConfig configures cache tag namespacing and revalidation.
type CacheTagsConfig struct {
	CacheID          string        `yaml:"cache_id"`
	RevalidateURL    string        `yaml:"revalidate_url"`
	RevalidateSecret string        `yaml:"revalidate_secret"`
	Timeout          time.Duration `yaml:"timeout"`
	QueueSize        int           `yaml:"queue_size"`
}

// DatabaseConfig configures the database connection.
type DatabaseConfig struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	AutoMigrate  bool   `yaml:"auto_migrate"`
}

// AuditConfig configures cart event recording.
type AuditConfig struct {
	Enabled         bool          `yaml:"enabled"`
	RetentionDays   int           `yaml:"retention_days"`
	MemoryCapacity  int           `yaml:"memory_capacity"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// AdminConfig configures the admin REST API.
type AdminConfig struct {
	Enabled bool          `yaml:"enabled"`
	APIKeys []auth.APIKey `yaml:"api_keys"`
}

// MCPConfig configures the operator MCP endpoint.
type MCPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LoadConfig loads configuration from a file.
// The path is expected to come from command line arguments, controlled by the administrator.
func LoadConfig(path string) (*Config, error) {
	// #nosec G304 -- path is from CLI args, controlled by admin
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML configuration, expanding ${VAR} references and
// applying defaults.
func ParseConfig(data []byte) (*Config, error) {
	data = []byte(expandEnvVars(string(data)))

	if err := checkVersion(PeekVersion(data)); err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns in the string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
}

// applyDefaults applies default values to the config.
func applyDefaults(cfg *Config) {
	if cfg.APIVersion == "" {
		cfg.APIVersion = CurrentConfigVersion
	}
	applyServerDefaults(&cfg.Server)

	if cfg.Backend.Timeout == 0 {
		cfg.Backend.Timeout = 10 * time.Second
	}

	if cfg.Session.Mode == "" {
		cfg.Session.Mode = SessionModeCookie
	}
	if cfg.Session.TTL == 0 {
		cfg.Session.TTL = 7 * 24 * time.Hour
	}
	if cfg.Session.CleanupInterval == 0 {
		cfg.Session.CleanupInterval = 10 * time.Minute
	}

	if cfg.Regions.TTL == 0 {
		cfg.Regions.TTL = time.Hour
	}
	if cfg.Regions.DefaultCountry == "" {
		cfg.Regions.DefaultCountry = "us"
	}
	cfg.Regions.DefaultCountry = strings.ToLower(cfg.Regions.DefaultCountry)

	if cfg.CacheTags.Timeout == 0 {
		cfg.CacheTags.Timeout = 5 * time.Second
	}
	if cfg.CacheTags.QueueSize == 0 {
		cfg.CacheTags.QueueSize = 256
	}

	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}

	if cfg.Audit.RetentionDays == 0 {
		cfg.Audit.RetentionDays = 90
	}
	if cfg.Audit.MemoryCapacity == 0 {
		cfg.Audit.MemoryCapacity = 1000
	}
	if cfg.Audit.CleanupInterval == 0 {
		cfg.Audit.CleanupInterval = 24 * time.Hour
	}

	if cfg.MCP.Path == "" {
		cfg.MCP.Path = "/mcp"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyServerDefaults(s *ServerConfig) {
	if s.Name == "" {
		s.Name = "storefront"
	}
	if s.Address == "" {
		s.Address = ":8080"
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = 15 * time.Second
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = 30 * time.Second
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = 25 * time.Second
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	if err := validateHTTPURL(c.Backend.URL); err != nil {
		errs = append(errs, "backend.url "+err.Error())
	}

	switch c.Session.Mode {
	case SessionModeCookie, SessionModeMemory:
	case SessionModePostgres:
		if c.Database.DSN == "" {
			errs = append(errs, "database.dsn is required when session.mode is postgres")
		}
	default:
		errs = append(errs, fmt.Sprintf("session.mode %q is not one of cookie, memory, postgres", c.Session.Mode))
	}

	if c.Session.MaxMemorySessions < 0 {
		errs = append(errs, "session.max_memory_sessions must not be negative")
	}

	if len(c.Regions.DefaultCountry) != 2 {
		errs = append(errs, "regions.default_country must be a two-letter country code")
	}

	if c.CacheTags.RevalidateURL != "" {
		if err := validateHTTPURL(c.CacheTags.RevalidateURL); err != nil {
			errs = append(errs, "cache_tags.revalidate_url "+err.Error())
		}
	}

	if c.Database.AutoMigrate && c.Database.DSN == "" {
		errs = append(errs, "database.dsn is required when database.auto_migrate is enabled")
	}

	if (c.Admin.Enabled || c.MCP.Enabled) && len(c.Admin.APIKeys) == 0 {
		errs = append(errs, "admin.api_keys is required when the admin API or MCP endpoint is enabled")
	}
	for i, k := range c.Admin.APIKeys {
		if k.Name == "" || k.Hash == "" {
			errs = append(errs, fmt.Sprintf("admin.api_keys[%d] requires name and hash", i))
		}
	}

	if !strings.HasPrefix(c.MCP.Path, "/") {
		errs = append(errs, "mcp.path must start with /")
	}

	if c.Server.TLS.Enabled && (c.Server.TLS.CertFile == "" || c.Server.TLS.KeyFile == "") {
		errs = append(errs, "server.tls.cert_file and server.tls.key_file are required when TLS is enabled")
	}

	if _, err := ParseLogLevel(c.Logging.Level); err != nil {
		errs = append(errs, "logging.level "+err.Error())
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		errs = append(errs, fmt.Sprintf("logging.format %q is not one of json, text", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func validateHTTPURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("is required")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%q is not an absolute http(s) URL", raw)
	}
	return nil
}

// ParseLogLevel maps a configured level name to a slog level.
func ParseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("%q is not one of debug, info, warn, error", level)
	}
}
