package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

const sqlitePragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Open connects to Postgres (pgx) or SQLite and verifies the connection.
func Open(driver, dsn string) (*sqlx.DB, error) {
	switch driver {
	case DriverPostgres:
	case DriverSQLite:
		dsn = sqliteDSN(dsn)
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(8)
		db.SetMaxIdleConns(4)
	} else {
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(5)
	}
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + sqlitePragmas
}

func IsPostgres(db *sqlx.DB) bool {
	return db.DriverName() == DriverPostgres
}

// Dialect returns the goose dialect name for the connection.
func Dialect(db *sqlx.DB) string {
	if IsPostgres(db) {
		return "postgres"
	}
	return "sqlite3"
}

// SnapshotOptions returns options for a consistent read-only transaction.
// SQLite transactions are serializable already and reject isolation hints.
func SnapshotOptions(db *sqlx.DB) *sql.TxOptions {
	if IsPostgres(db) {
		return &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	}
	return nil
}

type TxFunc func(tx *sqlx.Tx) error

// WithTx runs fn inside a transaction bounded by timeout.
// It rolls back on error or panic and commits otherwise.
func WithTx(ctx context.Context, db *sqlx.DB, timeout time.Duration, opts *sql.TxOptions, fn TxFunc) (err error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := db.BeginTxx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// WithTxResult is WithTx for functions that produce a value.
func WithTxResult[T any](ctx context.Context, db *sqlx.DB, timeout time.Duration, opts *sql.TxOptions, fn func(tx *sqlx.Tx) (T, error)) (T, error) {
	var result T
	err := WithTx(ctx, db, timeout, opts, func(tx *sqlx.Tx) error {
		var fnErr error
		result, fnErr = fn(tx)
		return fnErr
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

func IsUniqueViolation(err error) bool {
	return matchConstraint(err, "23505", sqlite3.SQLITE_CONSTRAINT_UNIQUE, "UNIQUE constraint failed") ||
		matchConstraint(err, "", sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, "")
}

func IsForeignKeyViolation(err error) bool {
	return matchConstraint(err, "23503", sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY, "FOREIGN KEY constraint failed")
}

func IsCheckViolation(err error) bool {
	return matchConstraint(err, "23514", sqlite3.SQLITE_CONSTRAINT_CHECK, "CHECK constraint failed")
}

func matchConstraint(err error, pgCode string, sqliteCode int, sqliteText string) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgCode != "" && pgErr.Code == pgCode
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		if liteErr.Code() == sqliteCode {
			return true
		}
		// Primary result code only: fall back to the message.
		if liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && sqliteText != "" {
			return strings.Contains(liteErr.Error(), sqliteText)
		}
	}
	return false
}
