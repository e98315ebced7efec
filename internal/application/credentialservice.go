package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ericfisherdev/infrapanel/internal/domain/model"
	"github.com/ericfisherdev/infrapanel/internal/domain/port/driven"
	"github.com/ericfisherdev/infrapanel/internal/encryption"
)

// CredentialService reveals and stores credential secrets. Plaintext only
// exists in memory for the duration of a call; it is never logged or cached.
type CredentialService struct {
	store   driven.SecretStore
	cipher  SecretCipher
	metrics driven.MetricsRecorder
	logger  *slog.Logger
}

// NewCredentialService creates a CredentialService. cipher may be nil when no
// encryption key is configured; every operation then fails with
// ErrServerConfiguration. metrics may be nil.
func NewCredentialService(store driven.SecretStore, cipher SecretCipher, metrics driven.MetricsRecorder, logger *slog.Logger) *CredentialService {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &CredentialService{
		store:   store,
		cipher:  cipher,
		metrics: metrics,
		logger:  logger,
	}
}

// Reveal decrypts the secret of one row. A missing row or empty secret yields
// ("", false, nil). Decryption problems of any kind are reported as
// encryption.ErrDecryptFailure; a missing or broken key as
// ErrServerConfiguration.
func (s *CredentialService) Reveal(ctx context.Context, t model.SecretType, id int64) (string, bool, error) {
	if t.Table() == "" {
		return "", false, model.ErrInvalidSelector
	}
	if id <= 0 {
		return "", false, model.ErrInvalidID
	}
	if s.cipher == nil {
		s.metrics.RecordReveal(t, driven.OutcomeMisconfigured)
		return "", false, ErrServerConfiguration
	}

	encrypted, found, err := s.store.GetSecret(ctx, t, id)
	if err != nil {
		s.metrics.RecordReveal(t, driven.OutcomeError)
		return "", false, fmt.Errorf("reveal %s: %w", t, err)
	}
	if !found {
		s.metrics.RecordReveal(t, driven.OutcomeNotFound)
		return "", false, nil
	}

	plaintext, err := s.cipher.Decrypt(encrypted)
	if err != nil {
		if errors.Is(err, encryption.ErrCipher) {
			s.metrics.RecordReveal(t, driven.OutcomeMisconfigured)
			s.logger.Error("cipher unavailable while revealing secret", "type", t, "id", id)
			return "", false, ErrServerConfiguration
		}
		s.metrics.RecordReveal(t, driven.OutcomeDecryptFailed)
		s.logger.Warn("could not decrypt stored secret", "type", t, "id", id)
		return "", false, fmt.Errorf("reveal %s#%d: %w", t, id, encryption.ErrDecryptFailure)
	}

	s.metrics.RecordReveal(t, driven.OutcomeRevealed)
	return plaintext, true, nil
}

// Store encrypts plaintext and saves it on an existing row. An empty plaintext
// clears the secret. Returns driven.ErrRecordNotFound if the row is missing.
func (s *CredentialService) Store(ctx context.Context, t model.SecretType, id int64, plaintext string) error {
	if t.Table() == "" {
		return model.ErrInvalidSelector
	}
	if id <= 0 {
		return model.ErrInvalidID
	}
	if s.cipher == nil {
		return ErrServerConfiguration
	}

	var encrypted string
	if plaintext != "" {
		var err error
		encrypted, err = s.cipher.Encrypt(plaintext)
		if err != nil {
			s.logger.Error("could not encrypt secret", "type", t, "id", id)
			return ErrServerConfiguration
		}
	}

	if err := s.store.SetSecret(ctx, t, id, encrypted); err != nil {
		return fmt.Errorf("store %s secret: %w", t, err)
	}
	return nil
}
