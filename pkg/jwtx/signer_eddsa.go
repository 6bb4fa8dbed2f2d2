package jwtx

import (
	"crypto"
	"crypto/ed25519"
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// EdDSASigner signs access tokens with an Ed25519 key loaded from the vault.
// The kid header names the DID URL verifiers resolve the public key from.
type EdDSASigner struct {
	kid string
	key ed25519.PrivateKey
	pub ed25519.PublicKey
	alg string
}

func newEdDSASigner(kid string, key ed25519.PrivateKey) (*EdDSASigner, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, errors.New("jwtx: invalid Ed25519 private key size")
	}

	return &EdDSASigner{
		kid: kid,
		key: key,
		pub: key.Public().(ed25519.PublicKey),
		alg: jwt.SigningMethodEdDSA.Alg(),
	}, nil
}

func (s *EdDSASigner) Alg() string              { return s.alg }
func (s *EdDSASigner) KID() string              { return s.kid }
func (s *EdDSASigner) Public() crypto.PublicKey { return s.pub }

// Sign encodes claims as a compact EdDSA JWS. Ed25519 is deterministic, so
// distinct tokens for one lineage rely on the nonce claim.
func (s *EdDSASigner) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	if s.kid != "" {
		t.Header["kid"] = s.kid
	}
	return t.SignedString(s.key)
}

// Validate rejects a signer whose vault entry yielded no usable key pair.
func (s *EdDSASigner) Validate() error {
	if s.key == nil || s.pub == nil {
		return errors.New("jwtx: nil Ed25519 key")
	}
	if len(s.pub) != ed25519.PublicKeySize {
		return errors.New("jwtx: invalid Ed25519 public key size")
	}
	return nil
}
