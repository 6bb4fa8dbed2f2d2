package service

import (
	"context"

	"github.com/aussiebroadwan/tokenrefresh/internal/refresh/domain"
	"github.com/aussiebroadwan/tokenrefresh/pkg/jwtx"
)

// AccessTokenService is the issuer/validator role handed to the control
// plane when a transfer starts.
type AccessTokenService interface {
	Issue(ctx context.Context, claims jwtx.Claims, refreshContext map[string]string) (*domain.Token, error)
	Validate(ctx context.Context, token string) (*domain.ValidationResult, error)
}

// RefreshService is the refresh-only role exposed to consumers.
type RefreshService interface {
	Refresh(ctx context.Context, refreshToken string) (*domain.Token, error)
}

// Both roles are served by one Service so they share the per-id locks.
var (
	_ AccessTokenService = (*Service)(nil)
	_ RefreshService     = (*Service)(nil)
)
