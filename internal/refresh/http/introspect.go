package http

import (
	"net/http"

	"github.com/aussiebroadwan/tokenrefresh/internal/refresh/domain"
	"github.com/aussiebroadwan/tokenrefresh/pkg/httpx"
	"github.com/aussiebroadwan/tokenrefresh/pkg/refreshsdk"
	"github.com/aussiebroadwan/tokenrefresh/pkg/slogx"
)

// IntrospectHandler serves POST /v1/token/introspect (RFC 7662). Data-plane
// proxies call it to decide whether to let a request through.
type IntrospectHandler struct {
	Tokens TokenService
}

// ServeHTTP godoc
//
//	@Summary		Introspect an access token
//	@Description	Reports whether an access token is the current token of a live transfer (RFC 7662).
//	@Description	Tokens that are expired, superseded by a refresh, revoked or otherwise invalid return only active=false.
//	@Tags			Token
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			token			formData	string								true	"The access token to introspect"
//	@Param			token_type_hint	formData	string								false	"Hint about token type"	Enums(access_token)
//	@Success		200				{object}	refreshsdk.IntrospectionResponse	"Token introspection result"
//	@Failure		400				{object}	refreshsdk.ErrorResponse			"error, error_description"
//	@Header			200				{string}	Cache-Control						"no-store"
//	@Header			200				{string}	Pragma								"no-cache"
//	@Router			/v1/token/introspect [post].
func (h *IntrospectHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}

	token := r.PostForm.Get("token")
	if token == "" {
		refreshsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	// Only access tokens can be introspected. Refresh tokens are opaque to
	// everyone but the consumer holding them.
	if hint := r.PostForm.Get("token_type_hint"); hint != "" && hint != "access_token" {
		writeInactive(w)
		return
	}

	ctx := r.Context()
	res, err := h.Tokens.Resolve(ctx, token)
	if err != nil {
		slogx.FromContext(ctx).Debug("token inactive", "err", err)
		writeInactive(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, introspection(res))
}

func introspection(res *domain.ValidationResult) refreshsdk.IntrospectionResponse {
	c := res.Claims
	out := refreshsdk.IntrospectionResponse{
		Active:    true,
		Scope:     c.Scope,
		TokenType: domain.TokenTypeBearer,
		Sub:       c.Subject,
		Aud:       c.Audience,
		Iss:       c.Issuer,
		Jti:       c.ID,
	}
	if c.ExpiresAt != nil {
		out.Exp = c.ExpiresAt.Unix()
	}
	if c.IssuedAt != nil {
		out.Iat = c.IssuedAt.Unix()
	}
	if c.NotBefore != nil {
		out.Nbf = c.NotBefore.Unix()
	}
	return out
}

// writeInactive is the RFC 7662 answer for any token that is not active.
// It never says why.
func writeInactive(w http.ResponseWriter) {
	httpx.WriteJSON(w, http.StatusOK, refreshsdk.IntrospectionResponse{Active: false})
}
