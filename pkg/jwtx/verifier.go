package jwtx

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// Structural problems: wrong shape, bad encoding, unsupported or
	// mismatched algorithm. These are protocol errors, not forgeries.
	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrAlgMismatch = errors.New("jwtx: algorithm mismatch")

	// The token is well formed but the signature does not verify.
	ErrInvalidSig = errors.New("jwtx: invalid signature")

	ErrExpired      = errors.New("jwtx: token expired")
	ErrNotYetValid  = errors.New("jwtx: token not yet valid")
	ErrInvalidClaim = errors.New("jwtx: invalid claims")
)

// Header is the subset of the JOSE header we care about.
type Header struct {
	Alg string
	KID string
}

// Peek decodes a token without verifying it. It is only used to find out who
// claims to have signed the token so the right public key can be resolved;
// nothing returned by Peek is trustworthy. Decoding is lenient here so a
// token with a tampered segment still reaches Verify and is reported as a
// signature failure.
func Peek(token string) (*Claims, Header, error) {
	claims := &Claims{}
	t, _, err := jwt.NewParser().ParseUnverified(token, claims)
	if err != nil {
		return nil, Header{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	alg, _ := t.Header["alg"].(string)
	kid, _ := t.Header["kid"].(string)
	return claims, Header{Alg: alg, KID: kid}, nil
}

// Verify checks the token signature against pub and returns the decoded
// claims. Time-based claims are NOT checked here; callers apply their own
// clock and skew tolerance through Claims.ValidateTimes.
//
// The algorithm is pinned by the key type so a token can never pick a weaker
// algorithm than the key was published for.
func Verify(token string, pub crypto.PublicKey) (*Claims, error) {
	alg, err := algForKey(pub)
	if err != nil {
		return nil, err
	}

	_, hdr, err := Peek(token)
	if err != nil {
		return nil, err
	}
	if hdr.Alg != alg {
		return nil, fmt.Errorf("%w: token uses %q, key requires %q", ErrAlgMismatch, hdr.Alg, alg)
	}

	// Strict decoding rejects non-zero padding bits in the last base64url
	// character, which would otherwise let a signature be altered and
	// still verify.
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{alg}),
		jwt.WithoutClaimsValidation(),
		jwt.WithStrictDecoding(),
	)

	claims := &Claims{}
	t, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return pub, nil
	})
	if err != nil {
		return nil, classify(token, err)
	}
	if !t.Valid {
		return nil, ErrInvalidSig
	}

	return claims, nil
}

// classify maps golang-jwt errors onto our two failure classes. A token whose
// header and payload decode cleanly is a signature problem even when the
// signature segment itself is not valid base64: flipping a single character
// should never read as a protocol error.
func classify(token string, err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", ErrInvalidSig, err)
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrAlgMismatch, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		if signingInputDecodes(token) {
			return fmt.Errorf("%w: %v", ErrInvalidSig, err)
		}
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}

func signingInputDecodes(token string) bool {
	if strings.Count(token, ".") != 2 {
		return false
	}
	_, _, err := Peek(token)
	return err == nil
}

func algForKey(pub crypto.PublicKey) (string, error) {
	switch k := pub.(type) {
	case ed25519.PublicKey:
		return jwt.SigningMethodEdDSA.Alg(), nil
	case *ecdsa.PublicKey:
		if k.Curve.Params().Name != "P-256" {
			return "", fmt.Errorf("%w: unsupported curve %s", ErrAlgMismatch, k.Curve.Params().Name)
		}
		return jwt.SigningMethodES256.Alg(), nil
	case *rsa.PublicKey:
		return jwt.SigningMethodRS256.Alg(), nil
	default:
		return "", fmt.Errorf("%w: unsupported public key %T", ErrAlgMismatch, pub)
	}
}

// IsMalformed reports whether err is a structural (protocol) failure.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformed) || errors.Is(err, ErrAlgMismatch)
}
