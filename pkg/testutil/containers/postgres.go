//go:build integration

// Package containers starts throwaway infrastructure for integration tests.
package containers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// ledgerSchema mirrors the production migrations closely enough for the
// store suites. Migration tooling itself lives outside this repo.
const ledgerSchema = `
CREATE TABLE IF NOT EXISTS beneficiaries (
	id TEXT PRIMARY KEY,
	full_name TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS benefit_reports (
	id TEXT PRIMARY KEY,
	beneficiary_id TEXT NOT NULL,
	benefit_type TEXT NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	social_worker TEXT NOT NULL DEFAULT '',
	provided_at DATE NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	last_updated_at TIMESTAMPTZ NOT NULL,
	deleted_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS benefit_reports_pair_idx
	ON benefit_reports (beneficiary_id, benefit_type, provided_at DESC, created_at DESC);
`

// PostgresContainer wraps a testcontainers PostgreSQL instance with the
// ledger schema applied.
type PostgresContainer struct {
	Container testcontainers.Container
	DB        *sql.DB
}

// NewPostgresContainer starts PostgreSQL and applies the ledger schema.
// Cleanup is registered on the test.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("amparo_test"),
		tcpostgres.WithUsername("amparo"),
		tcpostgres.WithPassword("amparo"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("postgres connection string: %v", err)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("open postgres: %v", err)
	}
	if _, err := db.ExecContext(ctx, ledgerSchema); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("apply ledger schema: %v", err)
	}

	pc := &PostgresContainer{Container: container, DB: db}
	t.Cleanup(func() {
		_ = db.Close()
		_ = container.Terminate(context.Background())
	})
	return pc
}

// TruncateTables resets state between tests.
func (c *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	_, err := c.DB.ExecContext(ctx, fmt.Sprintf("TRUNCATE %s", strings.Join(tables, ", ")))
	return err
}
