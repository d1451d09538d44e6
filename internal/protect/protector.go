// Package protect encrypts tenant connection strings before they are stored
// on the tenant registry row. Plaintext connection strings never touch disk.
package protect

import (
	"crypto/rand"
	"encoding/base64"

	"golang.org/x/crypto/chacha20poly1305"

	dErrors "vendo/pkg/domain-errors"
)

// Protector seals and opens connection strings with an AEAD cipher.
// The ciphertext embeds the nonce so rows are self-contained.
type Protector struct {
	key []byte
}

// New builds a Protector from a base64-encoded 32-byte key.
func New(encodedKey string) (*Protector, error) {
	if encodedKey == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "protector key is required")
	}
	key, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "protector key must be base64")
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "protector key must be 32 bytes")
	}
	return &Protector{key: key}, nil
}

// GenerateKey produces a fresh base64-encoded key, used by dev tooling.
func GenerateKey() (string, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not generate protector key")
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// Protect encrypts a connection string and returns base64 ciphertext.
func (p *Protector) Protect(connectionString string) (string, error) {
	if connectionString == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "connection string is required")
	}
	aead, err := chacha20poly1305.NewX(p.key)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not initialize cipher")
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not generate nonce")
	}
	sealed := aead.Seal(nonce, nonce, []byte(connectionString), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Unprotect decrypts a previously protected connection string.
// Tampered or truncated input fails without revealing partial plaintext.
func (p *Protector) Unprotect(encrypted string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return "", dErrors.New(dErrors.CodeInvalidInput, "encrypted connection is not base64")
	}
	aead, err := chacha20poly1305.NewX(p.key)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not initialize cipher")
	}
	if len(raw) < aead.NonceSize() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "encrypted connection is truncated")
	}
	nonce, sealed := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", dErrors.New(dErrors.CodeInvalidInput, "encrypted connection failed authentication")
	}
	return string(plaintext), nil
}
