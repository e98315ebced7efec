package application

import (
	"errors"
	"time"

	"github.com/ericfisherdev/infrapanel/internal/domain/model"
)

// ErrServerConfiguration is returned when the encryption key is missing or
// unusable. It is an operator problem, never a client one.
var ErrServerConfiguration = errors.New("server configuration error")

// SecretCipher encrypts and decrypts stored secrets. *encryption.Cipher
// satisfies it.
type SecretCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(encoded string) (string, error)
}

type nopMetrics struct{}

func (nopMetrics) RecordReveal(model.SecretType, string)     {}
func (nopMetrics) RecordRotatedRow(model.SecretType, string) {}
func (nopMetrics) RecordRotationRun(string, time.Duration)   {}
