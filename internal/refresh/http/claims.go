package http

import (
	"net/http"

	"github.com/aussiebroadwan/tokenrefresh/pkg/httpx"
	"github.com/aussiebroadwan/tokenrefresh/pkg/refreshsdk"
	"github.com/aussiebroadwan/tokenrefresh/pkg/slogx"
)

// ClaimsHandler serves GET /v1/token/claims: what the caller's own access
// token grants, plus the context the provider attached at issue time.
type ClaimsHandler struct {
	Tokens TokenService
}

// ServeHTTP godoc
//
//	@Summary		Describe the caller's access token
//	@Description	Returns the claims of the presented access token and the refresh context stored with its lineage.
//	@Tags			Token
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	refreshsdk.ClaimsResponse	"claims and refresh context"
//	@Failure		401	{string}	string						"missing, invalid, superseded or revoked token"
//	@Router			/v1/token/claims [get].
func (h *ClaimsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claims, ok := httpx.ClaimsFromContext(ctx)
	if !ok {
		refreshsdk.ErrInvalidToken.WriteError(w)
		return
	}

	// The lineage may have been revoked since the bearer check.
	refreshContext, err := h.Tokens.RefreshContext(ctx, claims.ID)
	if err != nil {
		slogx.FromContext(ctx).Debug("lineage gone after bearer check", "err", err)
		refreshsdk.ErrInvalidToken.WriteError(w)
		return
	}

	out := refreshsdk.ClaimsResponse{
		Sub:            claims.Subject,
		Iss:            claims.Issuer,
		Aud:            claims.Audience,
		Scope:          claims.Scope,
		Jti:            claims.ID,
		RefreshContext: refreshContext,
	}
	if claims.ExpiresAt != nil {
		out.Exp = claims.ExpiresAt.Unix()
	}

	httpx.WriteJSON(w, http.StatusOK, out)
}
