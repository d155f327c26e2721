// Package testutil provides shared test helpers.
package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"civilsite-backend-go/internal/db"
	"civilsite-backend-go/internal/migrations"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const TxTimeout = 5 * time.Second

// TestDB opens a temporary SQLite database with all migrations applied.
// The database is closed when the test finishes.
func TestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "site-test.db")
	conn, err := db.Open(db.DriverSQLite, path)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	if err := migrations.Apply(context.Background(), conn); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return conn
}

// QuietLogs silences the global logger for the duration of the test.
func QuietLogs(t *testing.T) {
	t.Helper()
	prev := log.Logger
	log.Logger = zerolog.Nop()
	t.Cleanup(func() { log.Logger = prev })
}

func Ptr[T any](v T) *T {
	return &v
}
