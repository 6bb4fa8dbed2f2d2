package jwtx

import (
	"crypto"
	"crypto/rsa"
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// RS256Signer implements the Signer interface using RSA PKCS#1 v1.5 with SHA-256.
type RS256Signer struct {
	kid string
	key *rsa.PrivateKey
	alg string
}

func newRS256Signer(kid string, key *rsa.PrivateKey) (*RS256Signer, error) {
	if key.N.BitLen() < 2048 {
		return nil, errors.New("jwtx: RSA key must be at least 2048 bits")
	}

	return &RS256Signer{
		kid: kid,
		key: key,
		alg: jwt.SigningMethodRS256.Alg(),
	}, nil
}

func (s *RS256Signer) Alg() string              { return s.alg }
func (s *RS256Signer) KID() string              { return s.kid }
func (s *RS256Signer) Public() crypto.PublicKey { return &s.key.PublicKey }

// Sign takes your claims and turns them into a signed JWT string.
func (s *RS256Signer) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if s.kid != "" {
		t.Header["kid"] = s.kid
	}
	return t.SignedString(s.key)
}

// Validate runs the RSA key consistency checks.
func (s *RS256Signer) Validate() error {
	if s.key == nil {
		return errors.New("jwtx: nil RSA key")
	}
	return s.key.Validate()
}
