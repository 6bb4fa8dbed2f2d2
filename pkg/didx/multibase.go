package didx

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

// Multicodec prefixes (unsigned varint encoded) for the key types we accept.
var (
	codecEd25519 = []byte{0xed, 0x01}
	codecP256    = []byte{0x80, 0x24}
)

const multibaseBase58BTC = 'z'

// DecodeMultibaseKey decodes a base58btc multibase multicodec public key, the
// encoding used by did:key and publicKeyMultibase.
func DecodeMultibaseKey(s string) (crypto.PublicKey, error) {
	if len(s) < 2 || s[0] != multibaseBase58BTC {
		return nil, errors.New("didx: only base58btc multibase keys are supported")
	}

	raw, err := base58.Decode(s[1:])
	if err != nil {
		return nil, fmt.Errorf("didx: decode base58: %w", err)
	}
	if len(raw) < 2 {
		return nil, errors.New("didx: multibase key too short")
	}

	codec, key := raw[:2], raw[2:]
	switch {
	case bytes.Equal(codec, codecEd25519):
		if len(key) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("didx: ed25519 key has %d bytes", len(key))
		}
		return ed25519.PublicKey(key), nil

	case bytes.Equal(codec, codecP256):
		x, y := elliptic.UnmarshalCompressed(elliptic.P256(), key)
		if x == nil {
			return nil, errors.New("didx: invalid compressed P-256 point")
		}
		return &ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y}, nil

	default:
		return nil, fmt.Errorf("didx: unsupported multicodec 0x%x", codec)
	}
}

// EncodeMultibaseKey is the inverse of DecodeMultibaseKey.
func EncodeMultibaseKey(pub crypto.PublicKey) (string, error) {
	var raw []byte
	switch k := pub.(type) {
	case ed25519.PublicKey:
		raw = append(append(raw, codecEd25519...), k...)
	case *ecdsa.PublicKey:
		if k.Curve != elliptic.P256() {
			return "", errors.New("didx: only P-256 EC keys are supported")
		}
		raw = append(append(raw, codecP256...), elliptic.MarshalCompressed(elliptic.P256(), k.X, k.Y)...)
	default:
		return "", fmt.Errorf("didx: unsupported public key %T", pub)
	}
	return string(multibaseBase58BTC) + base58.Encode(raw), nil
}

// KeyDID returns the did:key identifier for pub.
func KeyDID(pub crypto.PublicKey) (DID, error) {
	mb, err := EncodeMultibaseKey(pub)
	if err != nil {
		return DID{}, err
	}
	return DID{Method: "key", ID: mb}, nil
}
