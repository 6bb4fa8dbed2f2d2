package refreshsdk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrSessionEnded is returned once the session's lineage was revoked or can
// no longer be refreshed.
var ErrSessionEnded = errors.New("refreshsdk: session ended")

// Session holds a consumer's token pair and refreshes it before the access
// token expires. It is safe for concurrent use; concurrent callers share a
// single refresh.
type Session struct {
	client *Client
	now    func() time.Time

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	refreshAt    time.Time
	ended        bool
}

// NewSession starts a session from the tokens handed out when the transfer
// started. expiresIn is the access token lifetime in seconds.
func (c *Client) NewSession(accessToken, refreshToken string, expiresIn int64) *Session {
	s := &Session{
		client:       c,
		now:          time.Now,
		accessToken:  accessToken,
		refreshToken: refreshToken,
	}
	s.refreshAt = s.deadline(expiresIn)
	return s
}

func (s *Session) deadline(expiresIn int64) time.Time {
	return s.now().Add(time.Duration(expiresIn)*time.Second - s.client.RefreshBuffer)
}

// Token returns a usable access token, refreshing first when the current one
// is about to expire.
func (s *Session) Token(ctx context.Context) (string, error) {
	s.mu.RLock()
	if s.ended {
		s.mu.RUnlock()
		return "", ErrSessionEnded
	}
	if s.now().Before(s.refreshAt) {
		token := s.accessToken
		s.mu.RUnlock()
		return token, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another caller may have refreshed while we waited.
	if s.ended {
		return "", ErrSessionEnded
	}
	if s.now().Before(s.refreshAt) {
		return s.accessToken, nil
	}

	if err := s.refreshLocked(ctx); err != nil {
		return "", err
	}
	return s.accessToken, nil
}

// Refresh renews the token pair now, regardless of expiry.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return ErrSessionEnded
	}
	return s.refreshLocked(ctx)
}

func (s *Session) refreshLocked(ctx context.Context) error {
	tokenResp, err := s.client.Refresh(ctx, s.refreshToken)
	if err != nil {
		var oerr *OAuth2Error
		if errors.As(err, &oerr) && oerr.Code == ErrorCodeInvalidGrant {
			s.ended = true
			return fmt.Errorf("%w: %w", ErrSessionEnded, err)
		}
		return fmt.Errorf("failed to refresh token: %w", err)
	}

	s.accessToken = tokenResp.AccessToken
	s.refreshToken = tokenResp.RefreshToken
	s.refreshAt = s.deadline(tokenResp.ExpiresIn)
	return nil
}

// Claims fetches the claims of the current access token from the service.
func (s *Session) Claims(ctx context.Context) (*ClaimsResponse, error) {
	token, err := s.Token(ctx)
	if err != nil {
		return nil, err
	}
	return s.client.Claims(ctx, token)
}

// Revoke ends the lineage. The session is unusable afterwards.
func (s *Session) Revoke(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return nil
	}
	if err := s.client.Revoke(ctx, s.refreshToken); err != nil {
		return err
	}
	s.ended = true
	s.accessToken = ""
	s.refreshToken = ""
	return nil
}

// AccessToken returns the current access token without checking expiry.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// RefreshToken returns the current refresh token.
func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}
