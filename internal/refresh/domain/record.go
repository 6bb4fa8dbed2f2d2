package domain

import (
	"maps"
	"slices"
	"time"

	"github.com/aussiebroadwan/tokenrefresh/pkg/jwtx"
)

// AccessTokenRecord is the stored state of one token lineage. A lineage
// starts at issuance and is carried forward by every refresh; its ID is the
// "jti" of every access token it produces.
type AccessTokenRecord struct {
	ID string

	// Claims is the payload signed into the lineage's tokens. Time claims
	// hold the values of the current access token.
	Claims jwtx.Claims

	// RefreshContext is opaque data the issuer attached (transfer process id,
	// contract id and the like). It is carried across refreshes untouched.
	RefreshContext map[string]string

	// Fingerprints of the current refresh secret and access token. The
	// plaintext values are only ever held by the consumer.
	RefreshTokenHash string
	AccessTokenHash  string

	// ExpiresAt is the current access token expiry.
	ExpiresAt time.Time

	// RefreshExpiresAt ends the lineage. Zero means it can be refreshed
	// until revoked.
	RefreshExpiresAt time.Time

	// Version increases by one on every write. Zero means not yet stored.
	Version int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// RefreshExpired reports whether the lineage can no longer be refreshed.
func (r AccessTokenRecord) RefreshExpired(now time.Time) bool {
	return !r.RefreshExpiresAt.IsZero() && now.After(r.RefreshExpiresAt)
}

// Clone returns a deep copy so stores never share maps or slices with
// callers.
func (r AccessTokenRecord) Clone() AccessTokenRecord {
	out := r
	out.Claims.Audience = slices.Clone(r.Claims.Audience)
	out.RefreshContext = maps.Clone(r.RefreshContext)
	return out
}
