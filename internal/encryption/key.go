package encryption

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

// ParseKey decodes a base64 key as it appears in configuration and checks its
// length. It is the single place where configured key material is validated.
func ParseKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, ErrInvalidKeyEncoding
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidKeyLength, len(key))
	}
	return key, nil
}

// GenerateKey returns a fresh random key in the base64 form ParseKey accepts.
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("%w: read random key: %v", ErrCipher, err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}
