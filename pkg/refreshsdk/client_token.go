package refreshsdk

import (
	"context"
	"net/http"
	"net/url"
)

// Refresh exchanges refreshToken for a new token pair. The old refresh token
// is spent once this returns successfully.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	resp, err := c.postForm(ctx, "/v1/token", url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	})
	if err != nil {
		return nil, err
	}

	var tokenResp TokenResponse
	if err := decodeJSON(resp, &tokenResp, http.StatusOK); err != nil {
		return nil, err
	}
	return &tokenResp, nil
}

// Introspect asks whether accessToken is currently usable.
func (c *Client) Introspect(ctx context.Context, accessToken string) (*IntrospectionResponse, error) {
	resp, err := c.postForm(ctx, "/v1/token/introspect", url.Values{
		"token": {accessToken},
	})
	if err != nil {
		return nil, err
	}

	var ir IntrospectionResponse
	if err := decodeJSON(resp, &ir, http.StatusOK); err != nil {
		return nil, err
	}
	return &ir, nil
}

// Revoke ends the lineage behind refreshToken. Revoking an unknown token
// succeeds.
func (c *Client) Revoke(ctx context.Context, refreshToken string) error {
	resp, err := c.postForm(ctx, "/v1/token/revoke", url.Values{
		"token":           {refreshToken},
		"token_type_hint": {"refresh_token"},
	})
	if err != nil {
		return err
	}
	return decodeJSON(resp, nil, http.StatusOK)
}

// Claims returns what the service knows about accessToken.
func (c *Client) Claims(ctx context.Context, accessToken string) (*ClaimsResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/v1/token/claims", nil, map[string]string{
		"Authorization": "Bearer " + accessToken,
	})
	if err != nil {
		return nil, err
	}

	var cr ClaimsResponse
	if err := decodeJSON(resp, &cr, http.StatusOK); err != nil {
		return nil, err
	}
	return &cr, nil
}
