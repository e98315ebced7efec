// Package sqlstore implements the driven storage ports on SQLite and MySQL.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// Dialect names the SQL backend a DB talks to.
type Dialect string

const (
	DialectSQLite Dialect = "sqlite"
	DialectMySQL  Dialect = "mysql"
)

// DB provides separate reader and writer connection pools. For SQLite the
// writer is limited to a single connection to avoid "database is locked"
// errors; MySQL gets small pools on both sides.
type DB struct {
	Writer  *sql.DB
	Reader  *sql.DB
	Dialect Dialect
}

// NewSQLiteDB opens a dual-connection SQLite database with WAL mode, busy
// timeout, synchronous NORMAL, foreign keys enabled, and a 64MB cache.
func NewSQLiteDB(ctx context.Context, dbPath string) (*DB, error) {
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=cache_size(-64000)",
		dbPath,
	)
	return open(ctx, DialectSQLite, "sqlite", dsn, 1, 4)
}

// NewMySQLDB opens a MySQL database. The DSN is normalized so that DATETIME
// columns scan as time.Time, migrations may contain several statements, and
// UPDATE reports matched rather than changed rows.
func NewMySQLDB(ctx context.Context, dsn string) (*DB, error) {
	normalized, err := normalizeMySQLDSN(dsn)
	if err != nil {
		return nil, err
	}
	return open(ctx, DialectMySQL, "mysql", normalized, 4, 8)
}

// Open opens the database for the named dialect: path is used for SQLite,
// dsn for MySQL.
func Open(ctx context.Context, dialect Dialect, path, dsn string) (*DB, error) {
	switch dialect {
	case DialectSQLite:
		return NewSQLiteDB(ctx, path)
	case DialectMySQL:
		return NewMySQLDB(ctx, dsn)
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}
}

func normalizeMySQLDSN(dsn string) (string, error) {
	cfg, err := mysqldriver.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	if cfg.DBName == "" {
		return "", fmt.Errorf("parse mysql dsn: database name is required")
	}

	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.MultiStatements = true
	cfg.ClientFoundRows = true

	return cfg.FormatDSN(), nil
}

func open(ctx context.Context, dialect Dialect, driver, dsn string, maxWriters, maxReaders int) (*DB, error) {
	writer, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open writer: %w", err)
	}
	writer.SetMaxOpenConns(maxWriters)

	if err := writer.PingContext(ctx); err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("ping writer: %w", err)
	}

	reader, err := sql.Open(driver, dsn)
	if err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("open reader: %w", err)
	}
	reader.SetMaxOpenConns(maxReaders)

	if err := reader.PingContext(ctx); err != nil {
		_ = reader.Close()
		_ = writer.Close()
		return nil, fmt.Errorf("ping reader: %w", err)
	}

	return &DB{
		Writer:  writer,
		Reader:  reader,
		Dialect: dialect,
	}, nil
}

// Close closes both reader and writer connections. Returns the first error encountered.
func (db *DB) Close() error {
	var firstErr error

	if err := db.Reader.Close(); err != nil {
		firstErr = fmt.Errorf("close reader: %w", err)
	}

	if err := db.Writer.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close writer: %w", err)
	}

	return firstErr
}

// withTx runs fn in a transaction on the writer pool. A failing fn rolls the
// transaction back; a rollback failure is reported alongside fn's error.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "unable to start transaction")
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return multierror.Append(err, errors.Wrap(rbErr, "failed to roll back transaction"))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}
	return nil
}
