package service

import (
	"errors"
	"fmt"

	"github.com/aussiebroadwan/tokenrefresh/pkg/didx"
	"github.com/aussiebroadwan/tokenrefresh/pkg/vault"
)

// The taxonomy callers see. Causal detail is logged, never returned.
var (
	ErrMalformed            = errors.New("malformed_token")
	ErrInvalidSignature     = errors.New("invalid_signature")
	ErrExpired              = errors.New("token_expired")
	ErrNotYetValid          = errors.New("token_not_yet_valid")
	ErrKeyResolutionFailed  = errors.New("key_resolution_failed")
	ErrRefreshTokenNotFound = errors.New("refresh_token_not_found")
	ErrRevoked              = errors.New("token_revoked")
	ErrConcurrentRefresh    = errors.New("concurrent_refresh")
)

// Key resolution failures carry one of these next to ErrKeyResolutionFailed.
var (
	ErrKeyNotFound    = errors.New("key_not_found")
	ErrKeyUnavailable = errors.New("key_resolution_unavailable")
)

// IsRetryable reports whether the same call may succeed if tried again
// later. Only transient conditions qualify.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrKeyUnavailable) || errors.Is(err, ErrConcurrentRefresh)
}

// keyResolutionError reduces a resolver error to NotFound or Unavailable.
// Anything not positively known to be missing is treated as unavailable.
func keyResolutionError(cause error) error {
	switch {
	case errors.Is(cause, didx.ErrUnavailable):
		return fmt.Errorf("%w: %w", ErrKeyResolutionFailed, ErrKeyUnavailable)
	case errors.Is(cause, didx.ErrNotFound),
		errors.Is(cause, vault.ErrNotFound),
		errors.Is(cause, vault.ErrInvalidAlias):
		return fmt.Errorf("%w: %w", ErrKeyResolutionFailed, ErrKeyNotFound)
	default:
		return fmt.Errorf("%w: %w", ErrKeyResolutionFailed, ErrKeyUnavailable)
	}
}
