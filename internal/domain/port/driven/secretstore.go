// Package driven defines secondary port interfaces for external adapters.
package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/infrapanel/internal/domain/model"
)

// ErrRecordNotFound is returned by SecretStore writes when the target row does
// not exist.
var ErrRecordNotFound = errors.New("record not found")

// SecretStore defines the driven port for the credential-bearing tables.
// Secrets cross this boundary in encrypted form only; the application layer
// owns encryption and decryption.
type SecretStore interface {
	// GetSecret returns the encrypted secret of one row. A missing row and a
	// row with an empty or NULL secret both return ("", false, nil).
	GetSecret(ctx context.Context, t model.SecretType, id int64) (string, bool, error)

	// SetSecret replaces the encrypted secret of one row. An empty value
	// clears it. Returns ErrRecordNotFound if the row does not exist.
	SetSecret(ctx context.Context, t model.SecretType, id int64, encrypted string) error

	// WithinTx runs fn inside one transaction. The transaction commits when fn
	// returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(tx SecretTx) error) error
}

// SecretTx is the transactional view of SecretStore used by key rotation.
type SecretTx interface {
	// ListSecrets returns every row of the given type with a non-empty secret,
	// ordered by id.
	ListSecrets(ctx context.Context, t model.SecretType) ([]model.SecretRecord, error)

	// UpdateSecret replaces the encrypted secret of one row.
	UpdateSecret(ctx context.Context, t model.SecretType, id int64, encrypted string) error
}
