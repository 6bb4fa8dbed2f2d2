package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
)

// TokenSize256 gives refresh secrets 256 bits of entropy (43 chars base64url).
const TokenSize256 = 32

// GenerateToken returns size random bytes encoded as unpadded base64url.
func GenerateToken(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("token size must be positive, got %d", size)
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// FingerprintToken returns the SHA-256 of token as base64url (43 chars).
// Stores keep fingerprints so a leaked row never yields a usable token.
func FingerprintToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// MatchFingerprint reports whether token hashes to fingerprint, in constant
// time with respect to the fingerprint contents.
func MatchFingerprint(token, fingerprint string) bool {
	got := FingerprintToken(token)
	return subtle.ConstantTimeCompare([]byte(got), []byte(fingerprint)) == 1
}
