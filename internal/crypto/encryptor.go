// Package crypto implements the vault's symmetric encryption: AES-256-GCM
// with a per-call random nonce, packaged as a single opaque base64 blob
// (nonce ‖ ciphertext ‖ tag) so rows are self-describing at rest.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/engagekit/vaultd/internal/models"
)

const (
	// NonceSize is fixed by the blob format; GCM is constructed with this
	// size explicitly rather than the 12-byte default.
	NonceSize = 16
	// TagSize is GCM's standard 16-byte authentication tag.
	TagSize = 16
	keySize = 32
)

// devFallbackKey keeps local workflows unblocked when no key is configured.
// It is unsafe by definition and must never be used in production; the
// constructor refuses to fall back there.
const devFallbackKey = "vaultd-dev-only-insecure-key"

// Encryptor encrypts and decrypts strings under a single process-wide key.
// Safe for concurrent use; it holds only derived key material.
type Encryptor struct {
	aead cipher.AEAD
}

// NewEncryptor derives the AES-256 key as SHA-256 of the configured secret.
// The source secret is operator-supplied high-entropy material, so the
// digest stands in for a salted KDF. An empty secret is fatal in
// production and falls back to a fixed development key otherwise.
func NewEncryptor(secret string, production bool) (*Encryptor, error) {
	if secret == "" {
		if production {
			return nil, errors.New("encryption key is required in production")
		}
		secret = devFallbackKey
	}

	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("error creating cipher: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, NonceSize)
	if err != nil {
		return nil, fmt.Errorf("error creating GCM: %w", err)
	}

	return &Encryptor{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random nonce. Two calls with the
// same input produce different blobs; both decrypt back to the input.
func (e *Encryptor) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("error generating nonce: %w", err)
	}

	// Seal appends ciphertext and tag after the nonce, yielding
	// nonce ‖ ciphertext ‖ tag in one buffer.
	sealed := e.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a blob produced by Encrypt. Any failure, malformed
// encoding, truncation, or tag mismatch, surfaces as the same generic
// error so callers cannot distinguish where verification failed.
func (e *Encryptor) Decrypt(blob string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", models.ErrInvalidCiphertext
	}
	if len(raw) < NonceSize+TagSize {
		return "", models.ErrInvalidCiphertext
	}

	nonce, sealed := raw[:NonceSize], raw[NonceSize:]
	plaintext, err := e.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", models.ErrInvalidCiphertext
	}
	return string(plaintext), nil
}

// EncryptObject JSON-serializes v and encrypts the result.
func (e *Encryptor) EncryptObject(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("error marshaling object: %w", err)
	}
	return e.Encrypt(string(data))
}

// DecryptObject decrypts a blob written by EncryptObject and unmarshals
// it into out.
func (e *Encryptor) DecryptObject(blob string, out interface{}) error {
	plaintext, err := e.Decrypt(blob)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(plaintext), out); err != nil {
		return fmt.Errorf("error unmarshaling object: %w", err)
	}
	return nil
}

// GenerateKey returns a random 32-byte key, base64-encoded, for
// provisioning a new deployment. Not used on request paths.
func GenerateKey() (string, error) {
	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("error generating key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}
