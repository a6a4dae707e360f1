package migrate

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	migrateTestFileCount    = 4
	migrateTestSuccess      = "success"
	migrateTestFactoryError = "factory error"
)

// mockMigrator implements the migrator interface for testing.
type mockMigrator struct {
	upErr      error
	downErr    error
	stepsErr   error
	versionVal uint
	dirty      bool
	versionErr error
}

func (m *mockMigrator) Up() error         { return m.upErr }
func (m *mockMigrator) Down() error       { return m.downErr }
func (m *mockMigrator) Steps(_ int) error { return m.stepsErr }
func (m *mockMigrator) Version() (version uint, dirty bool, err error) {
	return m.versionVal, m.dirty, m.versionErr
}

func withFactory(t *testing.T, m migrator, err error) {
	t.Helper()
	orig := migratorFactory
	t.Cleanup(func() { migratorFactory = orig })
	migratorFactory = func(_ *sql.DB) (migrator, error) {
		if err != nil {
			return nil, err
		}
		return m, nil
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrations.ReadDir("migrations")
	require.NoError(t, err)
	assert.Len(t, entries, migrateTestFileCount)

	names := make(map[string]bool)
	for _, e := range entries {
		names[e.Name()] = true
	}
	for _, expected := range []string{
		"000001_sessions.up.sql",
		"000001_sessions.down.sql",
		"000002_cart_events.up.sql",
		"000002_cart_events.down.sql",
	} {
		assert.True(t, names[expected], "expected migration file %s to exist", expected)
	}
}

func TestSessionsMigration(t *testing.T) {
	up, err := migrations.ReadFile("migrations/000001_sessions.up.sql")
	require.NoError(t, err)

	for _, col := range []string{"id", "cart_id", "auth_token", "created_at", "last_active_at", "expires_at"} {
		assert.Contains(t, string(up), col, "up migration should contain column %s", col)
	}
	assert.Contains(t, string(up), "idx_sessions_expires_at")

	down, err := migrations.ReadFile("migrations/000001_sessions.down.sql")
	require.NoError(t, err)
	assert.Contains(t, string(down), "DROP TABLE IF EXISTS sessions")
}

func TestCartEventsMigration(t *testing.T) {
	up, err := migrations.ReadFile("migrations/000002_cart_events.up.sql")
	require.NoError(t, err)
	migrationSQL := string(up)

	assert.Contains(t, migrationSQL, "CREATE TABLE IF NOT EXISTS cart_events")
	assert.Contains(t, migrationSQL, "tags            TEXT[]")
	assert.Contains(t, migrationSQL, "parameters      JSONB")
	for _, col := range []string{
		"session_id", "customer_id", "operation", "cart_id",
		"country_code", "region_id", "success", "error_message", "created_date",
	} {
		assert.Contains(t, migrationSQL, col, "up migration should contain column %s", col)
	}

	down, err := migrations.ReadFile("migrations/000002_cart_events.down.sql")
	require.NoError(t, err)
	assert.Contains(t, string(down), "DROP TABLE IF EXISTS cart_events")
}

func TestRun(t *testing.T) {
	tests := []struct {
		name       string
		migrator   *mockMigrator
		factoryErr error
		wantErr    string
	}{
		{name: migrateTestSuccess, migrator: &mockMigrator{versionVal: 2}},
		{name: "no change is not an error", migrator: &mockMigrator{upErr: migrate.ErrNoChange, versionVal: 2}},
		{name: "up error", migrator: &mockMigrator{upErr: errors.New("up failed")}, wantErr: "running migrations"},
		{name: migrateTestFactoryError, factoryErr: errors.New("factory failed"), wantErr: "factory failed"},
		{name: "version error", migrator: &mockMigrator{versionErr: errors.New("version failed")}, wantErr: "getting migration version"},
		{name: "nil version is not an error", migrator: &mockMigrator{versionErr: migrate.ErrNilVersion}},
		{name: "dirty state logs warning", migrator: &mockMigrator{versionVal: 2, dirty: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withFactory(t, tt.migrator, tt.factoryErr)

			err := Run(nil)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestVersion(t *testing.T) {
	t.Run(migrateTestSuccess, func(t *testing.T) {
		withFactory(t, &mockMigrator{versionVal: 2}, nil)

		version, dirty, err := Version(nil)
		require.NoError(t, err)
		assert.Equal(t, uint(2), version)
		assert.False(t, dirty)
	})

	t.Run("no migrations applied", func(t *testing.T) {
		withFactory(t, &mockMigrator{versionErr: migrate.ErrNilVersion}, nil)

		version, dirty, err := Version(nil)
		require.NoError(t, err)
		assert.Zero(t, version)
		assert.False(t, dirty)
	})

	t.Run(migrateTestFactoryError, func(t *testing.T) {
		withFactory(t, nil, errors.New("factory failed"))

		_, _, err := Version(nil)
		assert.Error(t, err)
	})
}

func TestDown(t *testing.T) {
	t.Run(migrateTestSuccess, func(t *testing.T) {
		withFactory(t, &mockMigrator{}, nil)
		assert.NoError(t, Down(nil))
	})

	t.Run("no change is not an error", func(t *testing.T) {
		withFactory(t, &mockMigrator{downErr: migrate.ErrNoChange}, nil)
		assert.NoError(t, Down(nil))
	})

	t.Run("down error", func(t *testing.T) {
		withFactory(t, &mockMigrator{downErr: errors.New("down failed")}, nil)
		err := Down(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rolling back migrations")
	})

	t.Run(migrateTestFactoryError, func(t *testing.T) {
		withFactory(t, nil, errors.New("factory failed"))
		assert.Error(t, Down(nil))
	})
}

func TestSteps(t *testing.T) {
	t.Run(migrateTestSuccess, func(t *testing.T) {
		withFactory(t, &mockMigrator{}, nil)
		assert.NoError(t, Steps(nil, 1))
	})

	t.Run("no change is not an error", func(t *testing.T) {
		withFactory(t, &mockMigrator{stepsErr: migrate.ErrNoChange}, nil)
		assert.NoError(t, Steps(nil, 1))
	})

	t.Run("steps error", func(t *testing.T) {
		withFactory(t, &mockMigrator{stepsErr: errors.New("steps failed")}, nil)
		err := Steps(nil, -1)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "stepping migrations")
	})

	t.Run(migrateTestFactoryError, func(t *testing.T) {
		withFactory(t, nil, errors.New("factory failed"))
		assert.Error(t, Steps(nil, 1))
	})
}
