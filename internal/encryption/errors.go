package encryption

import "errors"

// Sentinel errors returned by the cipher. Callers match them with errors.Is.
var (
	// ErrInvalidKeyLength indicates a key that is not exactly KeySize bytes.
	ErrInvalidKeyLength = errors.New("encryption key must be 32 bytes")

	// ErrInvalidKeyEncoding indicates a configured key that is not valid base64.
	ErrInvalidKeyEncoding = errors.New("encryption key is not valid base64")

	// ErrDecode indicates an encrypted secret that is not valid base64.
	ErrDecode = errors.New("encrypted secret is not valid base64")

	// ErrTruncatedInput indicates an encrypted secret shorter than one IV.
	ErrTruncatedInput = errors.New("encrypted secret is truncated")

	// ErrDecryptFailure covers wrong keys, bad padding and tampered ciphertext alike.
	ErrDecryptFailure = errors.New("decryption failed")

	// ErrCipher indicates the underlying primitive or random source failed during encryption.
	ErrCipher = errors.New("cipher failure")
)
