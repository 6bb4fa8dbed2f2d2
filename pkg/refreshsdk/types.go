package refreshsdk

// ErrorResponse is the RFC 6749 error body.
type ErrorResponse struct {
	Error            string `json:"error" example:"invalid_grant"`
	ErrorDescription string `json:"error_description" example:"the refresh token is invalid, expired or revoked"`
}

// TokenResponse is returned by the refresh grant.
type TokenResponse struct {
	// AccessToken is the signed JWT to present to the data plane.
	AccessToken string `json:"access_token"`

	// RefreshToken replaces the one just used, which is now spent.
	RefreshToken string `json:"refresh_token"`

	// TokenType is always "Bearer".
	TokenType string `json:"token_type" example:"Bearer"`

	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int64 `json:"expires_in" example:"300"`

	// RefreshExpiresIn is how many seconds the lineage may still be
	// refreshed. Absent when refreshing is not time limited.
	RefreshExpiresIn int64 `json:"refresh_expires_in,omitempty" example:"86400"`

	Scope string `json:"scope,omitempty"`
}

// IntrospectionResponse is the RFC 7662 introspection body. Inactive tokens
// only carry Active=false.
type IntrospectionResponse struct {
	Active bool `json:"active"`

	Scope     string   `json:"scope,omitempty"`
	TokenType string   `json:"token_type,omitempty"`
	Exp       int64    `json:"exp,omitempty"`
	Iat       int64    `json:"iat,omitempty"`
	Nbf       int64    `json:"nbf,omitempty"`
	Sub       string   `json:"sub,omitempty"`
	Aud       []string `json:"aud,omitempty"`
	Iss       string   `json:"iss,omitempty"`
	Jti       string   `json:"jti,omitempty"`
}

// ClaimsResponse describes the caller's own access token, including the
// context the provider attached when the transfer started.
type ClaimsResponse struct {
	Sub            string            `json:"sub"`
	Iss            string            `json:"iss"`
	Aud            []string          `json:"aud,omitempty"`
	Scope          string            `json:"scope,omitempty"`
	Jti            string            `json:"jti"`
	Exp            int64             `json:"exp"`
	RefreshContext map[string]string `json:"refresh_context,omitempty"`
}

// HealthResponse is served by /livez and /readyz. Only /readyz fills Checks.
type HealthResponse struct {
	Status  string        `json:"status" example:"ok"`
	Uptime  string        `json:"uptime,omitempty" example:"1h23m45s"`
	Version string        `json:"version,omitempty"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports the state of the service's critical dependencies.
type HealthChecks struct {
	// Store is the token record store.
	Store string `json:"store" example:"ok"`

	// Signer is whether the signing key can be resolved from the vault.
	Signer string `json:"signer" example:"ok"`
}
