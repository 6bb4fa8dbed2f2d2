//go:build e2e

package refresh_test

import (
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/tokenrefresh/pkg/refreshsdk"
)

// TestIssueRefreshRotate covers a full lineage: issue, refresh, and the
// single use of each refresh token.
func TestIssueRefreshRotate(t *testing.T) {
	svc := setupServiceContainer(t, nil)
	client := refreshsdk.NewClient(svc.BaseURL)

	issued := svc.issue(t, "transfer:read", map[string]string{"transferProcessId": "tp-1"})

	refreshed, err := client.Refresh(t.Context(), issued.RefreshToken)
	require.NoError(t, err)
	assertTokenResponse(t, refreshed)
	require.NotEqual(t, issued.AccessToken, refreshed.AccessToken, "Access token should be rotated")
	require.NotEqual(t, issued.RefreshToken, refreshed.RefreshToken, "Refresh token should be rotated")

	_, err = client.Refresh(t.Context(), issued.RefreshToken)
	assertOAuth2Error(t, err, refreshsdk.ErrorCodeInvalidGrant)

	// The replacement still works after the replay attempt.
	again, err := client.Refresh(t.Context(), refreshed.RefreshToken)
	require.NoError(t, err)
	assertTokenResponse(t, again)
}

func TestConcurrentRefreshSingleWinner(t *testing.T) {
	svc := setupServiceContainer(t, nil)
	client := refreshsdk.NewClient(svc.BaseURL)

	issued := svc.issue(t, "", nil)

	const callers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := client.Refresh(t.Context(), issued.RefreshToken); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, wins, "exactly one concurrent refresh should succeed")
}

func TestIntrospectAndClaims(t *testing.T) {
	svc := setupServiceContainer(t, nil)
	client := refreshsdk.NewClient(svc.BaseURL)

	issued := svc.issue(t, "transfer:read", map[string]string{"transferProcessId": "tp-7"})

	info, err := client.Introspect(t.Context(), issued.AccessToken)
	require.NoError(t, err)
	require.True(t, info.Active)
	require.Equal(t, consumerDID, info.Sub)
	require.Equal(t, "transfer:read", info.Scope)

	claims, err := client.Claims(t.Context(), issued.AccessToken)
	require.NoError(t, err)
	require.Equal(t, consumerDID, claims.Sub)
	require.Equal(t, "tp-7", claims.RefreshContext["transferProcessId"])

	garbage, err := client.Introspect(t.Context(), "not-a-token")
	require.NoError(t, err)
	require.False(t, garbage.Active)
}

func TestRevokeEndsLineage(t *testing.T) {
	svc := setupServiceContainer(t, nil)
	client := refreshsdk.NewClient(svc.BaseURL)

	issued := svc.issue(t, "", nil)

	require.NoError(t, client.Revoke(t.Context(), issued.RefreshToken))
	// Revocation is idempotent.
	require.NoError(t, client.Revoke(t.Context(), issued.RefreshToken))

	_, err := client.Refresh(t.Context(), issued.RefreshToken)
	assertOAuth2Error(t, err, refreshsdk.ErrorCodeInvalidGrant)
}

func TestSessionKeepsTokenFresh(t *testing.T) {
	svc := setupServiceContainer(t, nil)
	client := refreshsdk.NewClient(svc.BaseURL)

	issued := svc.issue(t, "", nil)
	// A buffer longer than the access TTL forces a refresh on every call.
	client.RefreshBuffer = 2 * time.Duration(issued.ExpiresIn) * time.Second
	session := client.NewSession(issued.AccessToken, issued.RefreshToken, issued.ExpiresIn)

	tok, err := session.Token(t.Context())
	require.NoError(t, err)
	require.NotEqual(t, issued.AccessToken, tok)

	require.NoError(t, session.Revoke(t.Context()))
	_, err = session.Token(t.Context())
	require.ErrorIs(t, err, refreshsdk.ErrSessionEnded)
}

func TestHealth(t *testing.T) {
	svc := setupServiceContainer(t, nil)
	client := refreshsdk.NewClient(svc.BaseURL)

	live, err := client.GetLiveness(t.Context())
	require.NoError(t, err)
	require.Equal(t, "ok", live.Status)

	ready, err := client.GetReadiness(t.Context())
	require.NoError(t, err)
	require.Equal(t, "ok", ready.Status)
	require.NotNil(t, ready.Checks)
	require.Equal(t, "ok", ready.Checks.Store)
	require.Equal(t, "ok", ready.Checks.Signer)
}

// TestRefreshRateLimited runs with a tight refresh limit.
func TestRefreshRateLimited(t *testing.T) {
	svc := setupServiceContainer(t, map[string]string{
		"RATELIMIT_REFRESH_REQUESTS": "2",
		"RATELIMIT_REFRESH_BURST":    "2",
	})
	client := refreshsdk.NewClient(svc.BaseURL)

	var limited bool
	for range 10 {
		_, err := client.Refresh(t.Context(), "unknown-refresh-token")
		var oerr *refreshsdk.OAuth2Error
		require.True(t, errors.As(err, &oerr), "unexpected error: %v", err)
		if oerr.StatusCode == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	require.True(t, limited, "refresh endpoint should rate limit")
}
