package jwtx

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// ES256Signer implements the Signer interface using ECDSA P-256 with SHA-256.
type ES256Signer struct {
	kid string
	key *ecdsa.PrivateKey
	alg string
}

func newES256Signer(kid string, key *ecdsa.PrivateKey) (*ES256Signer, error) {
	// Only P-256 maps onto ES256; P-384/P-521 would need ES384/ES512.
	if key.Curve != elliptic.P256() {
		return nil, errors.New("jwtx: ECDSA key is not on P-256")
	}

	return &ES256Signer{
		kid: kid,
		key: key,
		alg: jwt.SigningMethodES256.Alg(),
	}, nil
}

func (s *ES256Signer) Alg() string              { return s.alg }
func (s *ES256Signer) KID() string              { return s.kid }
func (s *ES256Signer) Public() crypto.PublicKey { return &s.key.PublicKey }

// Sign takes your claims and turns them into a signed JWT string. ECDSA
// signatures are randomised, so two calls over equal claims differ.
func (s *ES256Signer) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	if s.kid != "" {
		t.Header["kid"] = s.kid
	}
	return t.SignedString(s.key)
}

// Validate does a quick sanity check to make sure we actually have keys.
func (s *ES256Signer) Validate() error {
	if s.key == nil || s.key.X == nil || s.key.Y == nil {
		return errors.New("jwtx: nil ECDSA key")
	}
	if !s.key.Curve.IsOnCurve(s.key.X, s.key.Y) {
		return errors.New("jwtx: ECDSA public point not on curve")
	}
	return nil
}
