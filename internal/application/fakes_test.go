package application

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/infrapanel/internal/domain/model"
	"github.com/ericfisherdev/infrapanel/internal/domain/port/driven"
	"github.com/ericfisherdev/infrapanel/internal/encryption"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeSecretStore keeps rows in memory. WithinTx works on a copy that is only
// swapped in when fn succeeds.
type fakeSecretStore struct {
	mu   sync.Mutex
	rows map[model.SecretType]map[int64]string

	getErr     error
	listErrFor model.SecretType
	listErr    error
	updateErrs map[int64]error

	getCalls  int
	commits   int
	rollbacks int
}

func newFakeSecretStore() *fakeSecretStore {
	return &fakeSecretStore{rows: map[model.SecretType]map[int64]string{}}
}

func (f *fakeSecretStore) put(t model.SecretType, id int64, secret string) {
	if f.rows[t] == nil {
		f.rows[t] = map[int64]string{}
	}
	f.rows[t][id] = secret
}

func (f *fakeSecretStore) get(t model.SecretType, id int64) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[t][id]
}

func (f *fakeSecretStore) GetSecret(_ context.Context, t model.SecretType, id int64) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.getErr != nil {
		return "", false, f.getErr
	}
	secret, ok := f.rows[t][id]
	if !ok || secret == "" {
		return "", false, nil
	}
	return secret, true, nil
}

func (f *fakeSecretStore) SetSecret(_ context.Context, t model.SecretType, id int64, encrypted string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[t][id]; !ok {
		return driven.ErrRecordNotFound
	}
	f.rows[t][id] = encrypted
	return nil
}

func (f *fakeSecretStore) WithinTx(_ context.Context, fn func(tx driven.SecretTx) error) error {
	f.mu.Lock()
	snapshot := make(map[model.SecretType]map[int64]string, len(f.rows))
	for t, rows := range f.rows {
		snapshot[t] = maps.Clone(rows)
	}
	f.mu.Unlock()

	tx := &fakeSecretTx{store: f, rows: snapshot}
	if err := fn(tx); err != nil {
		f.mu.Lock()
		f.rollbacks++
		f.mu.Unlock()
		return err
	}

	f.mu.Lock()
	f.rows = snapshot
	f.commits++
	f.mu.Unlock()
	return nil
}

type fakeSecretTx struct {
	store *fakeSecretStore
	rows  map[model.SecretType]map[int64]string
}

func (tx *fakeSecretTx) ListSecrets(_ context.Context, t model.SecretType) ([]model.SecretRecord, error) {
	if tx.store.listErr != nil && tx.store.listErrFor == t {
		return nil, tx.store.listErr
	}
	var out []model.SecretRecord
	for _, id := range slices.Sorted(maps.Keys(tx.rows[t])) {
		if secret := tx.rows[t][id]; secret != "" {
			out = append(out, model.SecretRecord{Type: t, ID: id, Secret: secret})
		}
	}
	return out, nil
}

func (tx *fakeSecretTx) UpdateSecret(_ context.Context, t model.SecretType, id int64, encrypted string) error {
	if err := tx.store.updateErrs[id]; err != nil {
		return err
	}
	if _, ok := tx.rows[t][id]; !ok {
		return driven.ErrRecordNotFound
	}
	tx.rows[t][id] = encrypted
	return nil
}

// stubCipher returns fixed errors, for paths a real cipher cannot reach on demand.
type stubCipher struct {
	encryptErr error
	decryptErr error
}

func (s stubCipher) Encrypt(plaintext string) (string, error) {
	if s.encryptErr != nil {
		return "", s.encryptErr
	}
	return "stub:" + plaintext, nil
}

func (s stubCipher) Decrypt(encoded string) (string, error) {
	if s.decryptErr != nil {
		return "", s.decryptErr
	}
	return encoded, nil
}

// recordingMetrics counts recorded outcomes by label.
type recordingMetrics struct {
	mu      sync.Mutex
	reveals map[string]int
	rows    map[string]int
	runs    map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{reveals: map[string]int{}, rows: map[string]int{}, runs: map[string]int{}}
}

func (m *recordingMetrics) RecordReveal(_ model.SecretType, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reveals[outcome]++
}

func (m *recordingMetrics) RecordRotatedRow(_ model.SecretType, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[outcome]++
}

func (m *recordingMetrics) RecordRotationRun(outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[outcome]++
}

func testKeyB64(fill byte) string {
	return base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{fill}, encryption.KeySize))
}

func testCipher(t *testing.T, fill byte) *encryption.Cipher {
	t.Helper()
	c, err := encryption.NewCipherFromBase64(testKeyB64(fill))
	require.NoError(t, err)
	return c
}

func mustEncrypt(t *testing.T, c SecretCipher, plaintext string) string {
	t.Helper()
	out, err := c.Encrypt(plaintext)
	require.NoError(t, err)
	return out
}

func mustDecrypt(t *testing.T, c SecretCipher, encoded string) string {
	t.Helper()
	out, err := c.Decrypt(encoded)
	require.NoError(t, err)
	return out
}
