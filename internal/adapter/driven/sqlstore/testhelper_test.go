package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"testing"

	"github.com/ericfisherdev/infrapanel/internal/domain/model"
)

// setupTestDB creates a named shared in-memory SQLite database for testing.
// Writer and reader connections share the same in-memory database via cache=shared.
// A unique name derived from t.Name() ensures isolation between parallel tests.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	// Percent-encode the test name so it's a safe SQLite URI filename component
	// and cannot be misinterpreted as query parameters in the "file:%s?..." DSN.
	safeName := url.PathEscape(t.Name())
	// WAL mode is not applicable to in-memory databases; omit journal_mode pragma.
	dsn := fmt.Sprintf(
		"file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=cache_size(-64000)",
		safeName,
	)

	writer, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("create test db writer: %v", err)
	}
	writer.SetMaxOpenConns(1)
	if err := writer.PingContext(context.Background()); err != nil {
		_ = writer.Close()
		t.Fatalf("ping test db writer: %v", err)
	}

	reader, err := sql.Open("sqlite", dsn)
	if err != nil {
		_ = writer.Close()
		t.Fatalf("create test db reader: %v", err)
	}
	reader.SetMaxOpenConns(4)
	if err := reader.PingContext(context.Background()); err != nil {
		_ = reader.Close()
		_ = writer.Close()
		t.Fatalf("ping test db reader: %v", err)
	}

	db := &DB{Writer: writer, Reader: reader, Dialect: DialectSQLite}

	if err := RunMigrations(db); err != nil {
		_ = db.Close()
		t.Fatalf("run migrations: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })

	return db
}

// seedRow inserts a minimal row of the given type and returns its id. A nil
// password stores NULL.
func seedRow(t *testing.T, db *DB, st model.SecretType, password any) int64 {
	t.Helper()
	ctx := context.Background()

	var (
		res sql.Result
		err error
	)
	switch st {
	case model.SecretTypeServer:
		res, err = db.Writer.ExecContext(ctx, `INSERT INTO servers (hostname, password) VALUES (?, ?)`, "web01", password)
	case model.SecretTypeCredential:
		res, err = db.Writer.ExecContext(ctx, `INSERT INTO credentials (service, password) VALUES (?, ?)`, "mysql", password)
	case model.SecretTypeHostingAccount:
		res, err = db.Writer.ExecContext(ctx, `INSERT INTO hosting_accounts (provider, password) VALUES (?, ?)`, "hetzner", password)
	case model.SecretTypeHostingFTPAccount:
		accountID := seedRow(t, db, model.SecretTypeHostingAccount, nil)
		res, err = db.Writer.ExecContext(ctx, `INSERT INTO hosting_ftp_accounts (hosting_account_id, username, password) VALUES (?, ?, ?)`, accountID, "ftpuser", password)
	case model.SecretTypeHostingEmail:
		accountID := seedRow(t, db, model.SecretTypeHostingAccount, nil)
		res, err = db.Writer.ExecContext(ctx, `INSERT INTO hosting_emails (hosting_account_id, email, password) VALUES (?, ?, ?)`, accountID, "ops@example.com", password)
	default:
		t.Fatalf("seedRow: unknown secret type %q", st)
	}
	if err != nil {
		t.Fatalf("seed %s: %v", st, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		t.Fatalf("seed %s id: %v", st, err)
	}
	return id
}
