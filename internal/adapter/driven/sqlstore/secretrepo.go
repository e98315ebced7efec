package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/infrapanel/internal/domain/model"
	"github.com/ericfisherdev/infrapanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.SecretStore = (*SecretRepo)(nil)
	_ driven.SecretTx    = (*secretTx)(nil)
)

// SecretRepo is the SQL implementation of the SecretStore port. It only ever
// sees encrypted values.
type SecretRepo struct {
	db *DB
}

// NewSecretRepo creates a new SecretRepo backed by the given DB.
func NewSecretRepo(db *DB) *SecretRepo {
	return &SecretRepo{db: db}
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// tableFor resolves the physical table through the closed SecretType mapping.
// No query in this file is built from anything else.
func tableFor(t model.SecretType) (string, error) {
	table := t.Table()
	if table == "" {
		return "", model.ErrInvalidSelector
	}
	return table, nil
}

// GetSecret returns the encrypted secret of one row, or ("", false, nil) when
// the row is missing or carries no secret.
func (r *SecretRepo) GetSecret(ctx context.Context, t model.SecretType, id int64) (string, bool, error) {
	table, err := tableFor(t)
	if err != nil {
		return "", false, err
	}

	query := `SELECT password FROM ` + table + ` WHERE id = ?`
	var secret sql.NullString
	err = r.db.Reader.QueryRowContext(ctx, query, id).Scan(&secret)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get secret %s#%d: %w", table, id, err)
	}

	if !secret.Valid || secret.String == "" {
		return "", false, nil
	}
	return secret.String, true, nil
}

// SetSecret replaces the encrypted secret of one row. An empty value stores NULL.
func (r *SecretRepo) SetSecret(ctx context.Context, t model.SecretType, id int64, encrypted string) error {
	return updateSecret(ctx, r.db.Writer, t, id, encrypted)
}

// WithinTx runs fn in a single writer transaction.
func (r *SecretRepo) WithinTx(ctx context.Context, fn func(tx driven.SecretTx) error) error {
	return r.db.withTx(ctx, func(tx *sql.Tx) error {
		return fn(&secretTx{tx: tx})
	})
}

type secretTx struct {
	tx *sql.Tx
}

// ListSecrets returns every row of type t holding a non-empty secret.
func (s *secretTx) ListSecrets(ctx context.Context, t model.SecretType) ([]model.SecretRecord, error) {
	table, err := tableFor(t)
	if err != nil {
		return nil, err
	}

	query := `SELECT id, password FROM ` + table + ` WHERE password IS NOT NULL AND password <> '' ORDER BY id`
	rows, err := s.tx.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list secrets in %s: %w", table, err)
	}
	defer rows.Close()

	var records []model.SecretRecord
	for rows.Next() {
		rec := model.SecretRecord{Type: t}
		if err := rows.Scan(&rec.ID, &rec.Secret); err != nil {
			return nil, fmt.Errorf("scan secret in %s: %w", table, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate secrets in %s: %w", table, err)
	}

	return records, nil
}

// UpdateSecret replaces the encrypted secret of one row inside the transaction.
func (s *secretTx) UpdateSecret(ctx context.Context, t model.SecretType, id int64, encrypted string) error {
	return updateSecret(ctx, s.tx, t, id, encrypted)
}

func updateSecret(ctx context.Context, q execer, t model.SecretType, id int64, encrypted string) error {
	table, err := tableFor(t)
	if err != nil {
		return err
	}

	var value sql.NullString
	if encrypted != "" {
		value = sql.NullString{String: encrypted, Valid: true}
	}

	query := `UPDATE ` + table + ` SET password = ?, updated_at = ? WHERE id = ?`
	result, err := q.ExecContext(ctx, query, value, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update secret %s#%d: %w", table, id, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update secret %s#%d: %w", table, id, driven.ErrRecordNotFound)
	}

	return nil
}
