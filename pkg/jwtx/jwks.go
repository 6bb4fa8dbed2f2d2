package jwtx

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
)

// JWK represents a public key in JSON Web Key format (RFC 7517). DID
// documents publish verification keys this way under "publicKeyJwk".
type JWK struct {
	Kty string `json:"kty"`           // key type: "RSA", "OKP", "EC"
	Use string `json:"use,omitempty"` // what we use it for: "sig", "enc"
	Alg string `json:"alg,omitempty"` // algorithm: "RS256", "EdDSA", "ES256"
	Kid string `json:"kid,omitempty"` // key ID

	// RSA stuff
	N string `json:"n,omitempty"` // modulus (base64url)
	E string `json:"e,omitempty"` // exponent (base64url)

	// Ed25519 / OKP fields and ECDSA / EC fields
	Crv string `json:"crv,omitempty"` // curve: "Ed25519", "P-256"
	X   string `json:"x,omitempty"`   // base64url encoded public key or x-coordinate
	Y   string `json:"y,omitempty"`   // base64url encoded y-coordinate (ECDSA only)
}

// NewJWK builds a signing JWK for any public key we can verify with.
func NewJWK(kid string, pub crypto.PublicKey) (JWK, error) {
	switch k := pub.(type) {
	case ed25519.PublicKey:
		return JWK{
			Kty: "OKP",
			Use: "sig",
			Alg: "EdDSA",
			Kid: kid,
			Crv: "Ed25519",
			X:   base64.RawURLEncoding.EncodeToString(k),
		}, nil

	case *ecdsa.PublicKey:
		if k.Curve != elliptic.P256() {
			return JWK{}, errors.New("jwtx: only P-256 EC keys are supported")
		}
		// P-256 coordinates are padded to the 32 byte field size
		x := make([]byte, 32)
		y := make([]byte, 32)
		k.X.FillBytes(x)
		k.Y.FillBytes(y)
		return JWK{
			Kty: "EC",
			Use: "sig",
			Alg: "ES256",
			Kid: kid,
			Crv: "P-256",
			X:   base64.RawURLEncoding.EncodeToString(x),
			Y:   base64.RawURLEncoding.EncodeToString(y),
		}, nil

	case *rsa.PublicKey:
		return JWK{
			Kty: "RSA",
			Use: "sig",
			Alg: "RS256",
			Kid: kid,
			N:   base64.RawURLEncoding.EncodeToString(k.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(k.E)).Bytes()),
		}, nil

	default:
		return JWK{}, fmt.Errorf("jwtx: unsupported public key %T", pub)
	}
}

// PublicKey converts the JWK into a crypto public key.
// Supports RSA, Ed25519 (OKP), and ECDSA P-256 (EC) key types.
func (j JWK) PublicKey() (crypto.PublicKey, error) {
	switch j.Kty {
	case "RSA":
		nb, err := base64.RawURLEncoding.DecodeString(j.N)
		if err != nil {
			return nil, fmt.Errorf("jwtx: decode RSA modulus: %w", err)
		}
		eb, err := base64.RawURLEncoding.DecodeString(j.E)
		if err != nil {
			return nil, fmt.Errorf("jwtx: decode RSA exponent: %w", err)
		}
		e := new(big.Int).SetBytes(eb)
		if !e.IsInt64() || e.Int64() < 3 {
			return nil, errors.New("jwtx: invalid RSA exponent")
		}
		return &rsa.PublicKey{N: new(big.Int).SetBytes(nb), E: int(e.Int64())}, nil

	case "OKP":
		// Only Ed25519 is supported for now
		if j.Crv != "Ed25519" {
			return nil, errors.New("jwtx: unsupported OKP curve " + j.Crv)
		}
		xb, err := base64.RawURLEncoding.DecodeString(j.X)
		if err != nil {
			return nil, fmt.Errorf("jwtx: decode OKP x: %w", err)
		}
		if len(xb) != ed25519.PublicKeySize {
			return nil, errors.New("jwtx: invalid Ed25519 public key size")
		}
		return ed25519.PublicKey(xb), nil

	case "EC":
		// Only P-256 is supported for now
		if j.Crv != "P-256" {
			return nil, errors.New("jwtx: unsupported EC curve " + j.Crv)
		}
		xb, err := base64.RawURLEncoding.DecodeString(j.X)
		if err != nil {
			return nil, fmt.Errorf("jwtx: decode EC x: %w", err)
		}
		yb, err := base64.RawURLEncoding.DecodeString(j.Y)
		if err != nil {
			return nil, fmt.Errorf("jwtx: decode EC y: %w", err)
		}
		pub := &ecdsa.PublicKey{
			Curve: elliptic.P256(),
			X:     new(big.Int).SetBytes(xb),
			Y:     new(big.Int).SetBytes(yb),
		}
		if !pub.Curve.IsOnCurve(pub.X, pub.Y) {
			return nil, errors.New("jwtx: EC point not on P-256")
		}
		return pub, nil

	default:
		return nil, errors.New("jwtx: unsupported kty " + j.Kty)
	}
}

// PEM converts the JWK to a PKIX "PUBLIC KEY" block, handy for debugging
// keys pulled out of DID documents.
func (j JWK) PEM() (string, error) {
	publicKey, err := j.PublicKey()
	if err != nil {
		return "", err
	}

	derBytes, err := x509.MarshalPKIXPublicKey(publicKey)
	if err != nil {
		return "", err
	}

	return string(pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: derBytes,
	})), nil
}
