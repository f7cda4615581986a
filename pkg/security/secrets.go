package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
)

// KeyProtector wraps AES-256-GCM encryption used to protect private key
// material at rest: the administrative CA's root key (see ca.go).
// certstore.FileStore does not use it; its identity key is stored
// unencrypted. The nonce is prepended to the ciphertext it returns.
type KeyProtector struct {
	key []byte // 32 bytes for AES-256
}

// NewKeyProtector builds a KeyProtector from a 32-byte AES-256 key.
func NewKeyProtector(key []byte) (*KeyProtector, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes for AES-256, got %d", len(key))
	}
	return &KeyProtector{key: key}, nil
}

// NewKeyProtectorFromPassphrase derives a 32-byte key from a passphrase
// via SHA-256. Intended for single-operator deployments where a managed
// KMS isn't available; production deployments should prefer NewKeyProtector
// with a key sourced from a real secrets manager.
func NewKeyProtectorFromPassphrase(passphrase string) (*KeyProtector, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("passphrase cannot be empty")
	}
	sum := sha256.Sum256([]byte(passphrase))
	return NewKeyProtector(sum[:])
}

// Seal encrypts plaintext, returning nonce||ciphertext.
func (p *KeyProtector) Seal(plaintext []byte) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("cannot seal empty data")
	}
	gcm, err := p.gcm()
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts data produced by Seal.
func (p *KeyProtector) Open(sealed []byte) ([]byte, error) {
	gcm, err := p.gcm()
	if err != nil {
		return nil, err
	}
	nonceSize := gcm.NonceSize()
	if len(sealed) < nonceSize {
		return nil, fmt.Errorf("sealed data too short")
	}
	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open sealed data: %w", err)
	}
	return plaintext, nil
}

func (p *KeyProtector) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(p.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}
