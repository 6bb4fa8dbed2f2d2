package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/hkdf"
)

const sealerInfo = "tokenrefresh/vault/v1"

// ErrOpen is returned when sealed data cannot be authenticated, either
// because it was tampered with or because a different master key sealed it.
var ErrOpen = errors.New("cryptox: unable to open sealed data")

// Sealer encrypts secrets at rest with AES-256-GCM. The AES key is derived
// from the master key material with HKDF-SHA256, so any length of master key
// is usable.
//
// Sealed format: [12-byte nonce][ciphertext][16-byte tag].
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives an AES-256 key from master.
func NewSealer(master []byte) (*Sealer, error) {
	if len(master) == 0 {
		return nil, errors.New("cryptox: empty master key")
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte(sealerInfo)), key); err != nil {
		return nil, fmt.Errorf("cryptox: derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cryptox: create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cryptox: create GCM: %w", err)
	}

	return &Sealer{aead: aead}, nil
}

// LoadSealer reads master key material from path. When path is empty a random
// master key is generated, which means sealed data will not survive a
// restart. Only use that for local development.
func LoadSealer(path string) (*Sealer, bool, error) {
	if path == "" {
		master := make([]byte, 32)
		if _, err := rand.Read(master); err != nil {
			return nil, false, fmt.Errorf("cryptox: generate ephemeral master key: %w", err)
		}
		s, err := NewSealer(master)
		return s, true, err
	}

	master, err := os.ReadFile(path)
	if err != nil {
		return nil, false, fmt.Errorf("cryptox: read master key file: %w", err)
	}
	s, err := NewSealer(master)
	return s, false, err
}

// Seal encrypts plaintext. aad binds the ciphertext to a context (the key
// alias, for vault entries) so sealed blobs cannot be swapped between names.
func (s *Sealer) Seal(plaintext, aad []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("cryptox: generate nonce: %w", err)
	}

	return s.aead.Seal(nonce, nonce, plaintext, aad), nil
}

// Open decrypts data produced by Seal with the same aad.
func (s *Sealer) Open(sealed, aad []byte) ([]byte, error) {
	n := s.aead.NonceSize()
	if len(sealed) < n+s.aead.Overhead() {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrOpen)
	}

	plaintext, err := s.aead.Open(nil, sealed[:n], sealed[n:], aad)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpen, err)
	}
	return plaintext, nil
}
