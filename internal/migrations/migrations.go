package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"civilsite-backend-go/internal/db"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog/log"
)

//go:embed postgres/*.sql sqlite/*.sql
var files embed.FS

// Apply runs every pending migration for the connection's dialect.
func Apply(ctx context.Context, conn *sqlx.DB) error {
	dir := "sqlite"
	dialect := goose.DialectSQLite3
	if db.IsPostgres(conn) {
		dir = "postgres"
		dialect = goose.DialectPostgres
	}
	fsys, err := fs.Sub(files, dir)
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(dialect, conn.DB, fsys)
	if err != nil {
		return fmt.Errorf("migration provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	for _, res := range results {
		log.Info().Str("migration", res.Source.Path).Dur("took", res.Duration).Msg("migration applied")
	}
	return nil
}
