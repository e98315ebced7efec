package application

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/infrapanel/internal/domain/model"
	"github.com/ericfisherdev/infrapanel/internal/encryption"
)

// encryptForeign encrypts plaintext with c and retries until other cannot
// read the result, so tests never depend on an unlucky padding match.
func encryptForeign(t *testing.T, c, other SecretCipher, plaintext string) string {
	t.Helper()
	for range 100 {
		out := mustEncrypt(t, c, plaintext)
		if _, err := other.Decrypt(out); err != nil {
			return out
		}
	}
	t.Fatal("could not produce a ciphertext unreadable by the other key")
	return ""
}

func TestRotationService_MixedTable(t *testing.T) {
	oldC, newC := testCipher(t, 1), testCipher(t, 2)
	store := newFakeSecretStore()
	store.put(model.SecretTypeCredential, 1, mustEncrypt(t, oldC, "alpha"))
	store.put(model.SecretTypeCredential, 2, mustEncrypt(t, oldC, "bravo"))
	store.put(model.SecretTypeCredential, 3, encryptForeign(t, newC, oldC, "charlie"))
	store.put(model.SecretTypeCredential, 4, "")
	metrics := newRecordingMetrics()

	svc := NewRotationService(store, newC, metrics, discardLogger)
	report, err := svc.Rotate(context.Background(), testKeyB64(1), RotateOptions{})
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.False(t, report.DryRun)
	assert.Equal(t, 2, report.Updated(model.SecretTypeCredential))
	assert.Equal(t, 2, report.Total())
	require.Len(t, report.Warnings(), 1)
	assert.Equal(t, int64(3), report.Warnings()[0].ID)
	assert.Equal(t, "credentials", report.Warnings()[0].Table)
	assert.Empty(t, report.Errors())
	assert.NoError(t, report.Err())

	require.Len(t, report.Tables, len(model.SecretTypes()))
	for i, st := range model.SecretTypes() {
		assert.Equal(t, st, report.Tables[i].Type)
	}

	assert.Equal(t, "alpha", mustDecrypt(t, newC, store.get(model.SecretTypeCredential, 1)))
	assert.Equal(t, "bravo", mustDecrypt(t, newC, store.get(model.SecretTypeCredential, 2)))
	assert.Equal(t, "charlie", mustDecrypt(t, newC, store.get(model.SecretTypeCredential, 3)))
	assert.Empty(t, store.get(model.SecretTypeCredential, 4))

	assert.Equal(t, 1, store.commits)
	assert.Equal(t, 2, metrics.rows["updated"])
	assert.Equal(t, 1, metrics.rows["warning"])
	assert.Equal(t, 1, metrics.runs["completed"])
}

func TestRotationService_SecondRunChangesNothing(t *testing.T) {
	oldC, newC := testCipher(t, 1), testCipher(t, 2)
	store := newFakeSecretStore()
	store.put(model.SecretTypeServer, 1, mustEncrypt(t, oldC, "srv"))
	store.put(model.SecretTypeHostingEmail, 9, mustEncrypt(t, oldC, "mail"))

	svc := NewRotationService(store, newC, nil, discardLogger)
	first, err := svc.RotateWithCipher(context.Background(), oldC, RotateOptions{})
	require.NoError(t, err)
	require.Equal(t, 2, first.Total())

	// Make sure neither value happens to be readable by the old key.
	store.put(model.SecretTypeServer, 1, encryptForeign(t, newC, oldC, "srv"))
	store.put(model.SecretTypeHostingEmail, 9, encryptForeign(t, newC, oldC, "mail"))
	before := map[int64]string{1: store.get(model.SecretTypeServer, 1), 9: store.get(model.SecretTypeHostingEmail, 9)}

	second, err := svc.RotateWithCipher(context.Background(), oldC, RotateOptions{})
	require.NoError(t, err)
	assert.Zero(t, second.Total())
	assert.Len(t, second.Warnings(), 2)
	assert.Empty(t, second.Errors())
	assert.NotEqual(t, first.RunID, second.RunID)

	assert.Equal(t, before[1], store.get(model.SecretTypeServer, 1))
	assert.Equal(t, before[9], store.get(model.SecretTypeHostingEmail, 9))
	assert.Equal(t, "srv", mustDecrypt(t, newC, store.get(model.SecretTypeServer, 1)))
	assert.Equal(t, "mail", mustDecrypt(t, newC, store.get(model.SecretTypeHostingEmail, 9)))
}

func TestRotationService_RowErrorsDoNotStopThePass(t *testing.T) {
	oldC := testCipher(t, 1)
	store := newFakeSecretStore()
	store.put(model.SecretTypeHostingAccount, 1, mustEncrypt(t, oldC, "one"))
	store.put(model.SecretTypeHostingAccount, 2, mustEncrypt(t, oldC, "two"))
	store.put(model.SecretTypeHostingFTPAccount, 3, mustEncrypt(t, oldC, "three"))
	store.updateErrs = map[int64]error{2: errors.New("row locked")}

	svc := NewRotationService(store, testCipher(t, 2), nil, discardLogger)
	report, err := svc.RotateWithCipher(context.Background(), oldC, RotateOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Updated(model.SecretTypeHostingAccount))
	assert.Equal(t, 1, report.Updated(model.SecretTypeHostingFTPAccount))
	require.Len(t, report.Errors(), 1)
	assert.Equal(t, int64(2), report.Errors()[0].ID)
	assert.Equal(t, reasonSave, report.Errors()[0].Reason)
	assert.Error(t, report.Err())
	assert.Equal(t, 1, store.commits)
}

func TestRotationService_EncryptFailureIsRowError(t *testing.T) {
	oldC := testCipher(t, 1)
	store := newFakeSecretStore()
	original := mustEncrypt(t, oldC, "secret")
	store.put(model.SecretTypeServer, 1, original)

	svc := NewRotationService(store, stubCipher{encryptErr: encryption.ErrCipher}, nil, discardLogger)
	report, err := svc.RotateWithCipher(context.Background(), oldC, RotateOptions{})
	require.NoError(t, err)

	assert.Zero(t, report.Total())
	require.Len(t, report.Errors(), 1)
	assert.Equal(t, reasonReencrypt, report.Errors()[0].Reason)
	assert.Equal(t, original, store.get(model.SecretTypeServer, 1))
}

func TestRotationService_ListFailureAborts(t *testing.T) {
	oldC := testCipher(t, 1)
	store := newFakeSecretStore()
	original := mustEncrypt(t, oldC, "secret")
	store.put(model.SecretTypeServer, 1, original)
	store.listErrFor = model.SecretTypeHostingEmail
	store.listErr = errors.New("table missing")
	metrics := newRecordingMetrics()

	svc := NewRotationService(store, testCipher(t, 2), metrics, discardLogger)
	report, err := svc.RotateWithCipher(context.Background(), oldC, RotateOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, store.listErr)
	assert.Nil(t, report)

	assert.Equal(t, original, store.get(model.SecretTypeServer, 1), "earlier tables are rolled back")
	assert.Equal(t, 1, store.rollbacks)
	assert.Zero(t, store.commits)
	assert.Equal(t, 1, metrics.runs["error"])
}

func TestRotationService_CancelledContextAborts(t *testing.T) {
	oldC := testCipher(t, 1)
	store := newFakeSecretStore()
	original := mustEncrypt(t, oldC, "secret")
	store.put(model.SecretTypeCredential, 1, original)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := NewRotationService(store, testCipher(t, 2), nil, discardLogger)
	_, err := svc.RotateWithCipher(ctx, oldC, RotateOptions{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, original, store.get(model.SecretTypeCredential, 1))
	assert.Equal(t, 1, store.rollbacks)
}

func TestRotationService_DryRun(t *testing.T) {
	oldC := testCipher(t, 1)
	store := newFakeSecretStore()
	original := mustEncrypt(t, oldC, "secret")
	store.put(model.SecretTypeCredential, 1, original)
	metrics := newRecordingMetrics()

	svc := NewRotationService(store, testCipher(t, 2), metrics, discardLogger)
	report, err := svc.RotateWithCipher(context.Background(), oldC, RotateOptions{DryRun: true})
	require.NoError(t, err)

	assert.True(t, report.DryRun)
	assert.Equal(t, 1, report.Updated(model.SecretTypeCredential))
	assert.Equal(t, original, store.get(model.SecretTypeCredential, 1))
	assert.Zero(t, store.commits)
	assert.Equal(t, 1, store.rollbacks)
	assert.Equal(t, 1, metrics.runs["dry_run"])
}

func TestRotationService_Preconditions(t *testing.T) {
	store := newFakeSecretStore()
	store.put(model.SecretTypeServer, 1, "untouched")

	t.Run("invalid old key", func(t *testing.T) {
		svc := NewRotationService(store, testCipher(t, 2), nil, discardLogger)
		_, err := svc.Rotate(context.Background(), "c2hvcnQ=", RotateOptions{})
		require.ErrorIs(t, err, encryption.ErrInvalidKeyLength)

		_, err = svc.Rotate(context.Background(), "not base64!", RotateOptions{})
		require.ErrorIs(t, err, encryption.ErrInvalidKeyEncoding)
	})

	t.Run("no active key", func(t *testing.T) {
		svc := NewRotationService(store, nil, nil, discardLogger)
		_, err := svc.Rotate(context.Background(), testKeyB64(1), RotateOptions{})
		require.ErrorIs(t, err, ErrServerConfiguration)
	})

	t.Run("already running", func(t *testing.T) {
		svc := NewRotationService(store, testCipher(t, 2), nil, discardLogger)
		svc.mu.Lock()
		defer svc.mu.Unlock()
		_, err := svc.Rotate(context.Background(), testKeyB64(1), RotateOptions{})
		require.ErrorIs(t, err, ErrRotationInProgress)
	})

	assert.Equal(t, "untouched", store.get(model.SecretTypeServer, 1))
	assert.Zero(t, store.commits+store.rollbacks)
}
