//go:build integration

package helpers

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/txn2/storefront/pkg/auth"
	"github.com/txn2/storefront/pkg/platform"
)

// OperatorKey is the admin API key configured on every e2e platform.
const OperatorKey = "e2e-operator-key-secret-value"

// Storefront is a running platform behind an httptest server.
type Storefront struct {
	Platform *platform.Platform
	Server   *httptest.Server
}

// URL returns the server root.
func (s *Storefront) URL() string {
	return s.Server.URL
}

// StartStorefront starts a platform with postgres-backed sessions and cart
// events against backendURL. It is stopped when the test completes.
func StartStorefront(t *testing.T, dsn, backendURL string) *Storefront {
	t.Helper()

	hash, err := auth.HashAPIKey(OperatorKey)
	if err != nil {
		t.Fatalf("hashing operator key: %v", err)
	}

	cfg, err := platform.ParseConfig([]byte("apiVersion: v1\n"))
	if err != nil {
		t.Fatalf("parsing base config: %v", err)
	}
	cfg.Server.Environment = "e2e"
	cfg.Backend.URL = backendURL
	cfg.Backend.PublishableKey = "pk_e2e"
	cfg.Session.Mode = platform.SessionModePostgres
	cfg.Database.DSN = dsn
	cfg.Database.AutoMigrate = true
	cfg.Audit.Enabled = true
	cfg.Admin.Enabled = true
	cfg.Admin.APIKeys = []auth.APIKey{{Name: "e2e", Hash: hash, Roles: []string{auth.RoleAdmin}}}
	cfg.MCP.Enabled = true
	if err := cfg.Validate(); err != nil {
		t.Fatalf("invalid e2e config: %v", err)
	}

	p, err := platform.New(platform.WithConfig(cfg), platform.WithVersion("e2e"))
	if err != nil {
		t.Fatalf("creating platform: %v", err)
	}
	ctx := context.Background()
	if err := p.Start(ctx); err != nil {
		_ = p.Close()
		t.Fatalf("starting platform: %v", err)
	}

	srv := httptest.NewServer(p.Handler())
	t.Cleanup(func() {
		srv.Close()
		_ = p.Stop(ctx)
		_ = p.Close()
	})
	return &Storefront{Platform: p, Server: srv}
}
