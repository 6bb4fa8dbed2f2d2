package cryptox

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"strings"
)

// Signing algorithms we can mint keys for. The names match the JOSE "alg"
// header the key will end up signing with.
const (
	AlgEdDSA = "EdDSA"
	AlgES256 = "ES256"
	AlgRS256 = "RS256"
)

// MinRSABits is the smallest RSA modulus we generate or accept.
const MinRSABits = 2048

// GenerateKey creates a fresh private key for alg and returns it as a PKCS8
// "PRIVATE KEY" PEM block, ready to be sealed into the vault.
func GenerateKey(alg string) ([]byte, error) {
	var (
		key crypto.Signer
		err error
	)

	switch strings.ToUpper(alg) {
	case "EDDSA", "ED25519":
		_, key, err = ed25519.GenerateKey(rand.Reader)
	case AlgES256:
		key, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	case AlgRS256:
		key, err = rsa.GenerateKey(rand.Reader, MinRSABits)
	default:
		return nil, fmt.Errorf("cryptox: unsupported key algorithm %q", alg)
	}
	if err != nil {
		return nil, fmt.Errorf("cryptox: generate %s key: %w", alg, err)
	}

	return MarshalPrivateKey(key)
}

// MarshalPrivateKey encodes any supported private key as PKCS8 PEM.
func MarshalPrivateKey(key crypto.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("cryptox: marshal PKCS8 key: %w", err)
	}

	return pem.EncodeToMemory(&pem.Block{
		Type:  "PRIVATE KEY",
		Bytes: der,
	}), nil
}
