//go:build integration

// Package helpers provides fixtures for the storefront end-to-end tests.
package helpers

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const defaultPostgresImage = "postgres:16-alpine"

// StartPostgres runs a disposable PostgreSQL container for the test and
// returns a DSN that has already accepted a connection. STOREFRONT_TEST_PG_IMAGE
// overrides the image.
func StartPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	image := os.Getenv("STOREFRONT_TEST_PG_IMAGE")
	if image == "" {
		image = defaultPostgresImage
	}

	ctr, err := postgres.Run(ctx, image,
		postgres.WithDatabase("storefront"),
		postgres.WithUsername("storefront"),
		postgres.WithPassword("storefront"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(2*time.Minute),
		),
	)
	if err != nil {
		t.Fatalf("postgres container: %v", err)
	}
	t.Cleanup(func() { _ = ctr.Terminate(ctx) })

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("postgres dsn: %v", err)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("opening %s: %v", image, err)
	}
	defer func() { _ = db.Close() }()
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		t.Fatalf("pinging %s: %v", image, err)
	}
	return dsn
}
