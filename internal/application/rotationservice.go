package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/ericfisherdev/infrapanel/internal/domain/model"
	"github.com/ericfisherdev/infrapanel/internal/domain/port/driven"
	"github.com/ericfisherdev/infrapanel/internal/encryption"
)

// ErrRotationInProgress is returned when a rotation is requested while another
// one is still running in this process.
var ErrRotationInProgress = errors.New("key rotation already in progress")

// Row-level reasons shown in rotation reports. They never include key
// material or plaintext.
const (
	reasonUndecryptable = "could not decrypt with old key: already migrated or wrong old key"
	reasonReencrypt     = "could not re-encrypt with new key"
	reasonSave          = "could not save re-encrypted secret"
)

// errDryRun aborts the transaction of a dry run after all work is reported.
var errDryRun = errors.New("dry run")

// RotateOptions tunes a rotation pass.
type RotateOptions struct {
	// DryRun performs every decrypt and re-encrypt but rolls back all writes.
	DryRun bool
}

// RotationService re-encrypts every stored secret from an old key to the
// active key.
type RotationService struct {
	store     driven.SecretStore
	newCipher SecretCipher
	metrics   driven.MetricsRecorder
	logger    *slog.Logger
	now       func() time.Time

	mu sync.Mutex
}

// NewRotationService creates a RotationService that re-encrypts under
// newCipher, the active key. newCipher may be nil when no key is configured;
// Rotate then fails with ErrServerConfiguration. metrics may be nil.
func NewRotationService(store driven.SecretStore, newCipher SecretCipher, metrics driven.MetricsRecorder, logger *slog.Logger) *RotationService {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &RotationService{
		store:     store,
		newCipher: newCipher,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// Rotate parses the base64 old key and runs a rotation pass with it.
func (s *RotationService) Rotate(ctx context.Context, oldKey string, opts RotateOptions) (*model.RotationReport, error) {
	oldCipher, err := encryption.NewCipherFromBase64(oldKey)
	if err != nil {
		return nil, fmt.Errorf("old key: %w", err)
	}
	return s.RotateWithCipher(ctx, oldCipher, opts)
}

// RotateWithCipher runs one rotation pass inside a single transaction.
//
// Rows that cannot be decrypted with oldCipher are reported as warnings and
// skipped, so a second run over already-migrated data changes nothing. Rows
// that decrypt but cannot be re-encrypted or saved are reported as errors and
// skipped. Only a failure to list a table or a cancelled context aborts the
// pass, in which case nothing is written.
func (s *RotationService) RotateWithCipher(ctx context.Context, oldCipher SecretCipher, opts RotateOptions) (*model.RotationReport, error) {
	if s.newCipher == nil {
		return nil, ErrServerConfiguration
	}
	if !s.mu.TryLock() {
		return nil, ErrRotationInProgress
	}
	defer s.mu.Unlock()

	report := &model.RotationReport{
		RunID:     uuid.NewString(),
		DryRun:    opts.DryRun,
		StartedAt: s.now().UTC(),
	}
	logger := s.logger.With("run_id", report.RunID, "dry_run", opts.DryRun)
	logger.Info("key rotation started")

	err := s.store.WithinTx(ctx, func(tx driven.SecretTx) error {
		for _, st := range model.SecretTypes() {
			result, err := s.rotateTable(ctx, tx, st, oldCipher, report, logger)
			if err != nil {
				return err
			}
			report.Tables = append(report.Tables, result)
		}
		if opts.DryRun {
			return errDryRun
		}
		return nil
	})

	report.FinishedAt = s.now().UTC()
	duration := report.FinishedAt.Sub(report.StartedAt)

	if err != nil && err != errDryRun { //nolint:errorlint // the store returns fn's error as-is when rollback succeeds
		s.metrics.RecordRotationRun(driven.OutcomeError, duration)
		logger.Error("key rotation aborted, no changes written", "error", err)
		return nil, fmt.Errorf("rotate secrets: %w", err)
	}

	outcome := driven.OutcomeCompleted
	if opts.DryRun {
		outcome = driven.OutcomeDryRun
	}
	s.metrics.RecordRotationRun(outcome, duration)
	logger.Info("key rotation finished",
		"updated", report.Total(),
		"warnings", len(report.Warnings()),
		"errors", len(report.Errors()),
		"duration", duration,
	)

	return report, nil
}

func (s *RotationService) rotateTable(
	ctx context.Context,
	tx driven.SecretTx,
	st model.SecretType,
	oldCipher SecretCipher,
	report *model.RotationReport,
	logger *slog.Logger,
) (model.TableResult, error) {
	records, err := tx.ListSecrets(ctx, st)
	if err != nil {
		return model.TableResult{}, err
	}

	result := model.TableResult{Type: st, Table: st.Table(), Scanned: len(records)}

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		// CBC has no MAC, so a wrong key occasionally yields valid padding.
		// Secrets are entered as text; non-UTF-8 output is treated as a failed decrypt.
		plaintext, err := oldCipher.Decrypt(rec.Secret)
		if err != nil || !utf8.ValidString(plaintext) {
			s.addIssue(report, logger, model.SeverityWarning, rec, reasonUndecryptable)
			continue
		}

		encrypted, err := s.newCipher.Encrypt(plaintext)
		if err != nil {
			s.addIssue(report, logger, model.SeverityError, rec, reasonReencrypt)
			continue
		}

		if err := tx.UpdateSecret(ctx, st, rec.ID, encrypted); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return result, ctxErr
			}
			s.addIssue(report, logger, model.SeverityError, rec, reasonSave)
			continue
		}

		result.Updated++
		s.metrics.RecordRotatedRow(st, driven.OutcomeUpdated)
	}

	return result, nil
}

func (s *RotationService) addIssue(
	report *model.RotationReport,
	logger *slog.Logger,
	severity model.IssueSeverity,
	rec model.SecretRecord,
	reason string,
) {
	report.Issues = append(report.Issues, model.RowIssue{
		Severity: severity,
		Type:     rec.Type,
		Table:    rec.Type.Table(),
		ID:       rec.ID,
		Reason:   reason,
	})

	outcome := driven.OutcomeWarning
	level := slog.LevelWarn
	if severity == model.SeverityError {
		outcome = driven.OutcomeError
		level = slog.LevelError
	}
	s.metrics.RecordRotatedRow(rec.Type, outcome)
	logger.Log(context.Background(), level, "key rotation skipped row",
		"table", rec.Type.Table(),
		"id", rec.ID,
		"reason", reason,
	)
}
