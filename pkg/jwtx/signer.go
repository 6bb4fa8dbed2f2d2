package jwtx

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

// Signer is our interface for anything that can sign JWTs. A Signer is the
// private half of a signing identity and lives for one signing operation;
// callers resolve a fresh one from the vault each time.
type Signer interface {
	Alg() string
	KID() string
	Sign(Claims) (string, error)
	Public() crypto.PublicKey
	Validate() error
}

// ErrUnsupportedKey is returned for private keys we have no JWS algorithm for.
var ErrUnsupportedKey = errors.New("jwtx: unsupported private key type")

// NewSigner picks the JWS algorithm from the private key type:
// Ed25519 -> EdDSA, ECDSA P-256 -> ES256, RSA -> RS256.
func NewSigner(kid string, key crypto.PrivateKey) (Signer, error) {
	switch k := key.(type) {
	case ed25519.PrivateKey:
		return newEdDSASigner(kid, k)
	case *ed25519.PrivateKey:
		return newEdDSASigner(kid, *k)
	case *ecdsa.PrivateKey:
		return newES256Signer(kid, k)
	case *rsa.PrivateKey:
		return newRS256Signer(kid, k)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedKey, key)
	}
}

// NewSignerFromPEM parses a PEM private key and builds the matching Signer.
func NewSignerFromPEM(kid string, pemKey []byte) (Signer, error) {
	key, err := ParsePrivateKeyPEM(pemKey)
	if err != nil {
		return nil, err
	}
	return NewSigner(kid, key)
}

// ParsePrivateKeyPEM accepts PKCS8 ("PRIVATE KEY"), SEC1 ("EC PRIVATE KEY")
// and PKCS1 ("RSA PRIVATE KEY") encoded keys.
func ParsePrivateKeyPEM(pemKey []byte) (crypto.PrivateKey, error) {
	block, _ := pem.Decode(pemKey)
	if block == nil {
		return nil, errors.New("jwtx: invalid PEM for private key")
	}

	switch block.Type {
	case "PRIVATE KEY":
		priv, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("jwtx: parse PKCS8: %w", err)
		}
		return priv, nil
	case "EC PRIVATE KEY":
		priv, err := x509.ParseECPrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("jwtx: parse EC key: %w", err)
		}
		return priv, nil
	case "RSA PRIVATE KEY":
		priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("jwtx: parse PKCS1: %w", err)
		}
		return priv, nil
	default:
		return nil, fmt.Errorf("jwtx: unexpected PEM block %q", block.Type)
	}
}
