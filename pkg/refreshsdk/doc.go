/*
Package refreshsdk is the consumer side of the token refresh service.

A data consumer receives an access token and a refresh token when a transfer
starts. Client wraps the service endpoints; Session holds a token pair and
renews it shortly before the access token runs out.

	client := refreshsdk.NewClient("https://provider.example.com")

	session := client.NewSession(accessToken, refreshToken, expiresIn)

	// Always returns a usable access token, refreshing when needed.
	token, err := session.Token(ctx)

	// Ask the provider what the current token grants.
	claims, err := session.Claims(ctx)

	// End the lineage when the transfer is done.
	err = session.Revoke(ctx)

# Errors

Failed calls return *OAuth2Error. Use errors.As to inspect the code:

	var oerr *refreshsdk.OAuth2Error
	if errors.As(err, &oerr) && oerr.Code == refreshsdk.ErrorCodeInvalidGrant {
		// lineage is gone; the transfer has to be renegotiated
	}

Temporary failures (key resolution outages, lost refresh races) use
ErrorCodeTemporarilyUnavailable and are safe to retry with the same refresh
token only if the failed call did not consume it, which the service
guarantees for these codes.
*/
package refreshsdk
