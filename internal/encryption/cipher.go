// Package encryption implements the AES-256-CBC cipher used to store
// credential secrets at rest.
//
// An encrypted secret is base64(iv || ciphertext) with a 16-byte random IV and
// PKCS#7 padding. The format carries no key identifier, so a secret can only be
// decrypted by a caller that already knows which key produced it.
package encryption

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/awnumar/memguard"
)

// Cipher encrypts and decrypts secrets under one fixed key. The key lives in a
// memguard enclave and is only unsealed for the duration of a single call.
// A Cipher is safe for concurrent use.
type Cipher struct {
	key *memguard.Enclave
}

// NewCipher binds a Cipher to key. It fails with ErrInvalidKeyLength unless key
// is exactly KeySize bytes. The caller's slice is not modified.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidKeyLength, len(key))
	}

	// NewEnclave wipes its argument, so hand it a copy.
	buf := make([]byte, KeySize)
	copy(buf, key)

	return &Cipher{key: memguard.NewEnclave(buf)}, nil
}

// NewCipherFromBase64 parses a configured base64 key and binds a Cipher to it.
func NewCipherFromBase64(encoded string) (*Cipher, error) {
	key, err := ParseKey(encoded)
	if err != nil {
		return nil, err
	}
	return NewCipher(key)
}

// Encrypt returns base64(iv || AES-256-CBC(plaintext)) using a fresh random IV.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	block, release, err := c.block()
	if err != nil {
		return "", err
	}
	defer release()

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, aes.BlockSize+len(padded))

	iv := out[:aes.BlockSize]
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("%w: read iv: %v", ErrCipher, err)
	}

	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[aes.BlockSize:], padded)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. Malformed base64 yields ErrDecode and input shorter
// than an IV yields ErrTruncatedInput. Every other failure, including a wrong
// key, is reported as ErrDecryptFailure.
func (c *Cipher) Decrypt(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrDecode
	}
	if len(data) < aes.BlockSize {
		return "", ErrTruncatedInput
	}

	iv, ciphertext := data[:aes.BlockSize], data[aes.BlockSize:]
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", ErrDecryptFailure
	}

	block, release, err := c.block()
	if err != nil {
		return "", err
	}
	defer release()

	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ciphertext)

	unpadded, ok := pkcs7Unpad(plain, aes.BlockSize)
	if !ok {
		return "", ErrDecryptFailure
	}
	return string(unpadded), nil
}

// block unseals the key and builds an AES block cipher. release must be called
// once the block is no longer needed.
func (c *Cipher) block() (cipher.Block, func(), error) {
	locked, err := c.key.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: open key enclave: %v", ErrCipher, err)
	}

	block, err := aes.NewCipher(locked.Bytes())
	if err != nil {
		locked.Destroy()
		return nil, nil, fmt.Errorf("%w: %v", ErrCipher, err)
	}
	return block, locked.Destroy, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(bytes.Clone(data), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, bool) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, false
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize {
		return nil, false
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, false
		}
	}
	return data[:len(data)-n], true
}
