package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/tokenrefresh/internal/refresh/service"
	"github.com/aussiebroadwan/tokenrefresh/pkg/httpx"
	"github.com/aussiebroadwan/tokenrefresh/pkg/refreshsdk"
	"github.com/aussiebroadwan/tokenrefresh/pkg/slogx"
)

// TokenHandler serves POST /v1/token. Only the refresh_token grant exists;
// the first token pair is handed out by the control plane when the transfer
// starts.
type TokenHandler struct {
	Tokens TokenService
	Clock  service.Clock
}

// ServeHTTP godoc
//
//	@Summary		Refresh an access token
//	@Description	Exchanges a refresh token for a new access token and a new refresh token.
//	@Description	The presented refresh token is spent on success. Unknown, spent, revoked and expired refresh tokens are indistinguishable.
//	@Tags			Token
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			grant_type		formData	string						true	"Grant type"	Enums(refresh_token)
//	@Param			refresh_token	formData	string						true	"Refresh token from the previous issue or refresh"
//	@Success		200				{object}	refreshsdk.TokenResponse	"access_token, refresh_token, token_type, expires_in"
//	@Failure		400				{object}	refreshsdk.ErrorResponse	"error, error_description"
//	@Failure		429				{string}	string						"rate limited"
//	@Failure		500				{object}	refreshsdk.ErrorResponse	"error, error_description"
//	@Failure		503				{object}	refreshsdk.ErrorResponse	"temporarily unavailable, retry later"
//	@Header			200				{string}	Cache-Control				"no-store"
//	@Header			200				{string}	Pragma						"no-cache"
//	@Router			/v1/token [post].
func (h *TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}

	if r.PostForm.Get("grant_type") != "refresh_token" {
		refreshsdk.ErrUnsupportedGrantType.WriteError(w)
		return
	}

	refresh := r.PostForm.Get("refresh_token")
	if refresh == "" {
		refreshsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	ctx := r.Context()
	tok, err := h.Tokens.Refresh(ctx, refresh)
	if err != nil {
		oerr := refreshError(err)
		if oerr == refreshsdk.ErrServerError {
			slogx.FromContext(ctx).Error("refresh grant failed", "err", err)
		}
		oerr.WriteError(w)
		return
	}

	now := h.Clock.Now()
	response := refreshsdk.TokenResponse{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		ExpiresIn:    tok.ExpiresIn(now),
	}
	if !tok.RefreshExpiresAt.IsZero() {
		response.RefreshExpiresIn = max(int64(tok.RefreshExpiresAt.Sub(now).Seconds()), 0)
	}

	httpx.WriteJSON(w, http.StatusOK, response)
}

// refreshError maps the service taxonomy onto OAuth2 errors. Causes are
// never echoed.
func refreshError(err error) *refreshsdk.OAuth2Error {
	switch {
	case errors.Is(err, service.ErrRefreshTokenNotFound),
		errors.Is(err, service.ErrExpired):
		return refreshsdk.ErrInvalidGrant
	case service.IsRetryable(err):
		return refreshsdk.ErrTemporarilyUnavailable
	default:
		return refreshsdk.ErrServerError
	}
}
