package jwtx

import (
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Default token lifetimes for data-plane transfers. These can be overridden
// per deployment through configuration.
const (
	// DefaultAccessTokenTTL is the default lifetime for data-plane access
	// tokens. Transfers refresh well before this runs out.
	DefaultAccessTokenTTL = 5 * time.Minute

	// DefaultRefreshTokenTTL is how long a token lineage may keep being
	// refreshed. Zero disables the limit.
	DefaultRefreshTokenTTL = 24 * time.Hour
)

// Claims are the access-token claims carried by every data-plane token.
// Registered claims hold issuer (the signer's DID), subject, audience and the
// time window; jti identifies the token lineage.
type Claims struct {
	jwt.RegisteredClaims

	// Scope granted for the transfer, space delimited.
	Scope string `json:"scope,omitempty"`

	// Nonce is fresh for every signed token. jti is shared by the whole
	// lineage and the time claims have one-second precision, so without it
	// two tokens signed in the same second with a deterministic algorithm
	// would be identical.
	Nonce string `json:"nonce,omitempty"`
}

// NewAccessClaims builds minimally-correct claims valid from now for ttl.
func NewAccessClaims(
	issuer, subject string,
	audience []string,
	scope string,
	ttl time.Duration,
	now time.Time,
) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings(audience),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		Scope: scope,
		Nonce: newNonce(),
	}
}

// Reissue returns a copy of c stamped for a new validity window with a new
// nonce. Identity claims (iss, sub, aud, scope, jti) are preserved.
func (c Claims) Reissue(ttl time.Duration, now time.Time) Claims {
	out := c
	out.Audience = slices.Clone(c.Audience)
	out.IssuedAt = jwt.NewNumericDate(now)
	out.NotBefore = jwt.NewNumericDate(now)
	out.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	out.Nonce = newNonce()
	return out
}

// NewJTI returns a random identifier suitable for the "jti" claim.
func NewJTI() string {
	return uuid.NewString()
}

func newNonce() string {
	return uuid.NewString()
}

// ValidateTimes checks exp, nbf and iat against now, widening the
// expiry and not-before checks by leeway to absorb clock skew between the
// provider and consumer. A token is expired only once now is strictly after
// exp+leeway.
func (c *Claims) ValidateTimes(now time.Time, leeway time.Duration) error {
	if c.ExpiresAt == nil {
		return ErrInvalidClaim
	}

	if c.IssuedAt != nil && c.IssuedAt.After(c.ExpiresAt.Time) {
		return ErrInvalidClaim
	}

	if now.After(c.ExpiresAt.Add(leeway)) {
		return ErrExpired
	}

	// Check Before Leeway
	if c.NotBefore != nil && now.Before(c.NotBefore.Add(-leeway)) {
		return ErrNotYetValid
	}
	if c.IssuedAt != nil && now.Before(c.IssuedAt.Add(-leeway)) {
		return ErrNotYetValid
	}

	return nil
}
