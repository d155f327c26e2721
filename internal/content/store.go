package content

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"civilsite-backend-go/internal/db"
	"civilsite-backend-go/internal/services"

	"github.com/jmoiron/sqlx"
)

// Store is the content access layer. All reads and writes of site content go through it.
type Store struct {
	db        *sqlx.DB
	txTimeout time.Duration
}

func NewStore(conn *sqlx.DB, txTimeout time.Duration) *Store {
	return &Store{db: conn, txTimeout: txTimeout}
}

func (s *Store) withTx(ctx context.Context, fn db.TxFunc) error {
	return db.WithTx(ctx, s.db, s.txTimeout, nil, fn)
}

// Queries are written with ? placeholders and rebound for the active driver.

func get(ctx context.Context, ext sqlx.ExtContext, dest any, query string, args ...any) error {
	return sqlx.GetContext(ctx, ext, dest, ext.Rebind(query), args...)
}

func list(ctx context.Context, ext sqlx.ExtContext, dest any, query string, args ...any) error {
	return sqlx.SelectContext(ctx, ext, dest, ext.Rebind(query), args...)
}

func exec(ctx context.Context, ext sqlx.ExtContext, query string, args ...any) (sql.Result, error) {
	return ext.ExecContext(ctx, ext.Rebind(query), args...)
}

func insert(ctx context.Context, ext sqlx.ExtContext, query string, args ...any) (int64, error) {
	var id int64
	err := ext.QueryRowxContext(ctx, ext.Rebind(query+" RETURNING id"), args...).Scan(&id)
	return id, err
}

// execOne runs a statement that must touch exactly one row.
func execOne(ctx context.Context, ext sqlx.ExtContext, notFound string, query string, args ...any) error {
	res, err := exec(ctx, ext, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return services.ErrNotFound(notFound)
	}
	return nil
}

func notFound(err error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return services.ErrNotFound(msg)
	}
	return err
}

// writeError maps constraint violations to client errors.
func writeError(err error, conflict, missingRef string) error {
	switch {
	case err == nil:
		return nil
	case conflict != "" && db.IsUniqueViolation(err):
		return services.ErrConflict(conflict)
	case missingRef != "" && db.IsForeignKeyViolation(err):
		return services.ErrBadRequest(missingRef)
	case db.IsCheckViolation(err):
		return services.ErrBadRequest("Invalid value")
	}
	return err
}

func requirePositive(id int64, label string) error {
	if id <= 0 {
		return services.ErrBadRequest(label + " must be a positive integer id")
	}
	return nil
}
