package dbtest

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/frontdesk/internal/platform/db"
)

// EnvDatabaseURL names the database integration tests run against. Tests
// that need Postgres are skipped when it is unset.
const EnvDatabaseURL = "FRONTDESK_TEST_DATABASE_URL"

// Open connects to the integration database and applies migrations. Test
// packages run in parallel against the same database, so callers must not
// truncate shared tables; they isolate by unique dates and document numbers.
func Open(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv(EnvDatabaseURL)
	if url == "" {
		t.Skipf("%s not set", EnvDatabaseURL)
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, url, "UTC", 4, 1)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	if _, err := db.NewMigrator(pool, migrationsDir()).Up(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return pool
}

// migrationsDir resolves the repo's migrations directory from this file.
func migrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	// internal/platform/db/dbtest -> repo root
	return filepath.Join(filepath.Dir(filename), "..", "..", "..", "..", "migrations")
}
