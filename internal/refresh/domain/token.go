package domain

import (
	"time"

	"github.com/aussiebroadwan/tokenrefresh/pkg/jwtx"
)

// TokenTypeBearer is the only token type we issue.
const TokenTypeBearer = "Bearer"

// Token is what issue and refresh hand back to the consumer: a signed access
// token and the opaque refresh token for the next round.
type Token struct {
	ID               string
	AccessToken      string
	RefreshToken     string
	TokenType        string
	ExpiresAt        time.Time
	RefreshExpiresAt time.Time
}

// ExpiresIn is the remaining access token lifetime at now, in whole seconds.
func (t Token) ExpiresIn(now time.Time) int64 {
	secs := int64(t.ExpiresAt.Sub(now).Seconds())
	return max(secs, 0)
}

// SigningIdentity is the key pair used for a single signing operation.
// PublicKeyID is what verifiers resolve (a DID URL, or empty to fall back to
// the issuer DID); Signer holds the private key and is discarded after use.
type SigningIdentity struct {
	PublicKeyID string
	Signer      jwtx.Signer
}

// ValidationResult is the outcome of a successful validation.
type ValidationResult struct {
	// ID is the lineage id carried in "jti".
	ID        string
	Claims    jwtx.Claims
	ExpiresAt time.Time

	// KeyID is the identifier the verification key was resolved from.
	KeyID string

	// RefreshContext is only filled when the token was resolved against its
	// stored lineage.
	RefreshContext map[string]string
}
