package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/tokenrefresh/internal/refresh/service"

	"github.com/aussiebroadwan/tokenrefresh/pkg/httpx"
	"github.com/aussiebroadwan/tokenrefresh/pkg/refreshsdk"
	"github.com/aussiebroadwan/tokenrefresh/pkg/slogx"
)

// RevokeHandler serves POST /v1/token/revoke (RFC 7009). Consumers call it
// when a transfer is done to end the lineage. Unknown tokens succeed too, so
// the endpoint cannot be used to probe for live refresh tokens.
type RevokeHandler struct {
	Tokens TokenService
}

// ServeHTTP godoc
//
//	@Summary		Revoke a refresh token
//	@Description	Ends the token lineage behind a refresh token (RFC 7009). The current access token stops resolving immediately.
//	@Description	Returns 200 OK for unknown or already revoked tokens.
//	@Tags			Token
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			token			formData	string	true	"The refresh token to revoke"
//	@Param			token_type_hint	formData	string	false	"Hint about token type"	Enums(refresh_token)
//	@Success		200				"Lineage revoked (or was already gone)"
//	@Failure		400				{object}	refreshsdk.ErrorResponse	"error, error_description"
//	@Header			200				{string}	Cache-Control				"no-store"
//	@Header			200				{string}	Pragma						"no-cache"
//	@Router			/v1/token/revoke [post].
func (h *RevokeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}

	token := r.PostForm.Get("token")
	if token == "" {
		refreshsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	ctx := r.Context()
	if hint := r.PostForm.Get("token_type_hint"); hint == "" || hint == "refresh_token" {
		err := h.Tokens.RevokeRefreshToken(ctx, token)
		switch {
		case err == nil, errors.Is(err, service.ErrRefreshTokenNotFound):
			// Unknown tokens answer like revoked ones.
		default:
			slogx.FromContext(ctx).Warn("revoke refresh token failed", "err", err)
		}
	}

	httpx.WriteJSON(w, http.StatusOK, struct{}{})
}
