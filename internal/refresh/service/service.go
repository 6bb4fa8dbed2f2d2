// Package service issues, validates and refreshes data-plane access tokens.
//
// Access tokens are JWTs signed with a private key resolved from the vault by
// alias and verified with a public key resolved from the issuer's DID. Every
// issued token starts a lineage stored in an AccessTokenStore; the consumer
// keeps the lineage alive with an opaque refresh token of the form
// "<id>.<secret>" whose secret rotates on every refresh.
package service

import (
	"context"
	"crypto"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/tokenrefresh/internal/refresh/domain"
	"github.com/aussiebroadwan/tokenrefresh/internal/refresh/store"
	"github.com/aussiebroadwan/tokenrefresh/pkg/cryptox"
	"github.com/aussiebroadwan/tokenrefresh/pkg/didx"
	"github.com/aussiebroadwan/tokenrefresh/pkg/idx"
	"github.com/aussiebroadwan/tokenrefresh/pkg/jwtx"
	"github.com/aussiebroadwan/tokenrefresh/pkg/slogx"
)

const (
	// DefaultTolerance absorbs clock skew between provider and consumer.
	DefaultTolerance = 5 * time.Second

	// DefaultMaxRefreshAttempts bounds retries after a lost compare-and-swap.
	DefaultMaxRefreshAttempts = 3
)

// PublicKeyResolver looks up a verification key from a DID or DID URL.
// Failures wrap didx.ErrNotFound or didx.ErrUnavailable.
type PublicKeyResolver interface {
	ResolvePublicKey(ctx context.Context, identifier string) (crypto.PublicKey, error)
}

// RefreshingPublicKeyResolver can bypass its document cache once, so a key
// the issuer rotated in is found before the cached document expires.
type RefreshingPublicKeyResolver interface {
	PublicKeyResolver
	RefreshPublicKey(ctx context.Context, identifier string) (pub crypto.PublicKey, refreshed bool, err error)
}

var _ RefreshingPublicKeyResolver = (*didx.KeyResolver)(nil)

// PrivateKeyResolver looks up a signing key by vault alias.
type PrivateKeyResolver interface {
	ResolvePrivateKey(ctx context.Context, alias string) (crypto.PrivateKey, error)
}

// Options configures a Service. Store and both key resolvers are required.
type Options struct {
	Store       store.AccessTokenStore
	PublicKeys  PublicKeyResolver
	PrivateKeys PrivateKeyResolver
	Clock       Clock
	Logger      *slog.Logger

	// SigningKeyAlias names the private key in the vault. Required for
	// Issue and Refresh.
	SigningKeyAlias string

	// Issuer is our participant DID. When set it overrides "iss" on every
	// token we sign.
	Issuer string

	// KeyID is the DID URL verifiers should resolve, written to the "kid"
	// header. Empty leaves verifiers to resolve the issuer DID.
	KeyID string

	// Tolerance widens the expiry and not-before checks. Zero disables it;
	// negative values are rejected.
	Tolerance time.Duration

	AccessTTL  time.Duration
	RefreshTTL time.Duration

	MaxRefreshAttempts int
}

// Service is the token refresh core. A single instance serves both the
// issuer/validator and the refresher role.
type Service struct {
	store       store.AccessTokenStore
	publicKeys  PublicKeyResolver
	privateKeys PrivateKeyResolver
	clock       Clock
	logger      *slog.Logger

	alias       string
	issuer      string
	keyID       string
	tolerance   time.Duration
	accessTTL   time.Duration
	refreshTTL  time.Duration
	maxAttempts int

	locks *keyedMutex
}

// New validates opts, fills in defaults and returns a ready Service.
func New(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, errors.New("service: store is required")
	}
	if opts.PublicKeys == nil {
		return nil, errors.New("service: public key resolver is required")
	}
	if opts.PrivateKeys == nil {
		return nil, errors.New("service: private key resolver is required")
	}
	if opts.Tolerance < 0 {
		return nil, fmt.Errorf("service: tolerance must not be negative, got %s", opts.Tolerance)
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = jwtx.DefaultAccessTokenTTL
	}
	if opts.RefreshTTL < 0 {
		opts.RefreshTTL = 0
	}
	if opts.MaxRefreshAttempts <= 0 {
		opts.MaxRefreshAttempts = DefaultMaxRefreshAttempts
	}

	return &Service{
		store:       opts.Store,
		publicKeys:  opts.PublicKeys,
		privateKeys: opts.PrivateKeys,
		clock:       opts.Clock,
		logger:      opts.Logger,
		alias:       opts.SigningKeyAlias,
		issuer:      opts.Issuer,
		keyID:       opts.KeyID,
		tolerance:   opts.Tolerance,
		accessTTL:   opts.AccessTTL,
		refreshTTL:  opts.RefreshTTL,
		maxAttempts: opts.MaxRefreshAttempts,
		locks:       newKeyedMutex(),
	}, nil
}

// Issue starts a new lineage for claims and returns its first token pair.
//
// The time claims and "jti" are always stamped here; the lineage id becomes
// the jti. refreshContext is stored with the lineage and handed back
// untouched by Resolve. If the signing key cannot be resolved nothing is
// stored.
func (s *Service) Issue(
	ctx context.Context,
	claims jwtx.Claims,
	refreshContext map[string]string,
) (*domain.Token, error) {
	ident, err := s.signingIdentity(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	id := idx.NewAt(now).String()

	c := claims.Reissue(s.accessTTL, now)
	c.ID = id
	if s.issuer != "" {
		c.Issuer = s.issuer
	}
	if _, err := didx.Parse(c.Issuer); err != nil {
		return nil, fmt.Errorf("%w: issuer must be a DID: %v", ErrMalformed, err)
	}

	access, err := ident.Signer.Sign(c)
	if err != nil {
		return nil, fmt.Errorf("service: sign access token: %w", err)
	}
	secret, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, err
	}

	rec := domain.AccessTokenRecord{
		ID:               id,
		Claims:           c,
		RefreshContext:   refreshContext,
		RefreshTokenHash: cryptox.FingerprintToken(secret),
		AccessTokenHash:  cryptox.FingerprintToken(access),
		ExpiresAt:        c.ExpiresAt.Time,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if s.refreshTTL > 0 {
		rec.RefreshExpiresAt = now.Add(s.refreshTTL)
	}

	saved, err := s.store.Put(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("service: store lineage: %w", err)
	}

	s.log(ctx).Debug("access token issued",
		slog.String("id", id),
		slog.String("sub", c.Subject),
	)
	return tokenFor(saved, access, secret), nil
}

// Validate verifies token and returns its claims. It checks the signature
// against the key published by the token's issuer and the time claims
// against the configured tolerance. It does not consult the store; see
// Resolve for that.
func (s *Service) Validate(ctx context.Context, token string) (*domain.ValidationResult, error) {
	l := s.log(ctx)

	peeked, hdr, err := jwtx.Peek(token)
	if err != nil {
		l.Info("malformed token", slog.Any("error", err))
		return nil, ErrMalformed
	}

	keyID, err := verificationKeyID(peeked.Issuer, hdr.KID)
	if err != nil {
		l.Info("malformed token", slog.Any("error", err))
		return nil, ErrMalformed
	}

	pub, err := s.publicKeys.ResolvePublicKey(ctx, keyID)
	if errors.Is(err, didx.ErrNotFound) {
		// The fragment may name a key added after the document was cached.
		pub, err = s.refreshPublicKey(ctx, keyID, err)
	}
	if err != nil {
		l.Warn("public key resolution failed",
			slog.String("key_id", keyID),
			slog.Any("error", err),
		)
		return nil, keyResolutionError(err)
	}

	claims, err := jwtx.Verify(token, pub)
	if errors.Is(err, jwtx.ErrInvalidSig) {
		// The cached key may have been rotated out under the same id.
		if fresh, ferr := s.refreshPublicKey(ctx, keyID, nil); ferr == nil && fresh != nil {
			claims, err = jwtx.Verify(token, fresh)
		}
	}
	if err != nil {
		if jwtx.IsMalformed(err) {
			l.Info("malformed token", slog.String("key_id", keyID), slog.Any("error", err))
			return nil, ErrMalformed
		}
		l.Warn("token signature rejected", slog.String("key_id", keyID), slog.Any("error", err))
		return nil, ErrInvalidSignature
	}

	if err := claims.ValidateTimes(s.clock.Now(), s.tolerance); err != nil {
		switch {
		case errors.Is(err, jwtx.ErrExpired):
			l.Debug("token expired", slog.String("jti", claims.ID))
			return nil, ErrExpired
		case errors.Is(err, jwtx.ErrNotYetValid):
			l.Debug("token not yet valid", slog.String("jti", claims.ID))
			return nil, ErrNotYetValid
		default:
			l.Info("malformed token", slog.String("jti", claims.ID), slog.Any("error", err))
			return nil, ErrMalformed
		}
	}

	return &domain.ValidationResult{
		ID:        claims.ID,
		Claims:    *claims,
		ExpiresAt: claims.ExpiresAt.Time,
		KeyID:     keyID,
	}, nil
}

// Refresh exchanges a refresh token for a new token pair.
//
// The presented secret is consumed: the stored fingerprint is replaced, so
// of several concurrent calls with the same refresh token exactly one wins
// and the rest see ErrRefreshTokenNotFound. Unknown, revoked and already
// used refresh tokens are indistinguishable.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*domain.Token, error) {
	l := s.log(ctx)

	id, secret, ok := parseRefreshToken(refreshToken)
	if !ok {
		return nil, ErrRefreshTokenNotFound
	}

	// Key resolution may be slow; never hold the lineage lock across it.
	ident, err := s.signingIdentity(ctx)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		rec, err := s.store.Get(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			l.Info("refresh for unknown lineage", slog.String("id", id))
			return nil, ErrRefreshTokenNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("service: load lineage: %w", err)
		}

		if !cryptox.MatchFingerprint(secret, rec.RefreshTokenHash) {
			l.Info("refresh secret mismatch", slog.String("id", id))
			return nil, ErrRefreshTokenNotFound
		}

		now := s.clock.Now()
		if rec.RefreshExpired(now) {
			l.Debug("refresh lifetime ended", slog.String("id", id))
			return nil, ErrExpired
		}

		next := rec.Clone()
		next.Claims = rec.Claims.Reissue(s.accessTTL, now)
		if s.issuer != "" {
			next.Claims.Issuer = s.issuer
		}

		access, err := ident.Signer.Sign(next.Claims)
		if err != nil {
			return nil, fmt.Errorf("service: sign access token: %w", err)
		}
		newSecret, err := cryptox.GenerateToken(cryptox.TokenSize256)
		if err != nil {
			return nil, err
		}

		next.RefreshTokenHash = cryptox.FingerprintToken(newSecret)
		next.AccessTokenHash = cryptox.FingerprintToken(access)
		next.ExpiresAt = next.Claims.ExpiresAt.Time
		next.UpdatedAt = now

		saved, err := s.store.Put(ctx, next)
		switch {
		case err == nil:
			l.Debug("access token refreshed", slog.String("id", id), slog.Int64("version", saved.Version))
			return tokenFor(saved, access, newSecret), nil
		case errors.Is(err, store.ErrConflict):
			// Another replica wrote first. Re-read; its rotation will
			// normally turn this into a secret mismatch.
			l.Debug("refresh lost compare-and-swap", slog.String("id", id), slog.Int("attempt", attempt))
			continue
		case errors.Is(err, store.ErrNotFound):
			return nil, ErrRefreshTokenNotFound
		default:
			return nil, fmt.Errorf("service: store lineage: %w", err)
		}
	}

	l.Warn("refresh gave up after repeated conflicts", slog.String("id", id), slog.Int("attempts", s.maxAttempts))
	return nil, ErrConcurrentRefresh
}

// Resolve validates token and checks it is the current token of a live
// lineage. Tokens superseded by a refresh and tokens of revoked lineages
// fail with ErrRevoked even while their signature and expiry still hold.
func (s *Service) Resolve(ctx context.Context, token string) (*domain.ValidationResult, error) {
	res, err := s.Validate(ctx, token)
	if err != nil {
		return nil, err
	}

	rec, err := s.store.Get(ctx, res.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrRevoked
	}
	if err != nil {
		return nil, fmt.Errorf("service: load lineage: %w", err)
	}
	if !cryptox.MatchFingerprint(token, rec.AccessTokenHash) {
		return nil, ErrRevoked
	}

	res.RefreshContext = rec.RefreshContext
	return res, nil
}

// RefreshContext returns the context stored with lineage id when it was
// issued. A lineage that no longer exists is ErrRevoked.
func (s *Service) RefreshContext(ctx context.Context, id string) (map[string]string, error) {
	rec, err := s.store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrRevoked
	}
	if err != nil {
		return nil, fmt.Errorf("service: load lineage: %w", err)
	}
	return rec.RefreshContext, nil
}

// Revoke ends the lineage id. Revoking an unknown lineage is not an error.
func (s *Service) Revoke(ctx context.Context, id string) error {
	err := s.store.Delete(ctx, id)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("service: revoke lineage: %w", err)
	}
	s.log(ctx).Info("lineage revoked", slog.String("id", id))
	return nil
}

// RevokeRefreshToken ends the lineage the refresh token belongs to. A token
// that does not match a live lineage, including a known id with the wrong
// secret, fails with ErrRefreshTokenNotFound and revokes nothing.
func (s *Service) RevokeRefreshToken(ctx context.Context, refreshToken string) error {
	id, secret, ok := parseRefreshToken(refreshToken)
	if !ok {
		return ErrRefreshTokenNotFound
	}

	rec, err := s.store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrRefreshTokenNotFound
	}
	if err != nil {
		return fmt.Errorf("service: load lineage: %w", err)
	}
	if !cryptox.MatchFingerprint(secret, rec.RefreshTokenHash) {
		return ErrRefreshTokenNotFound
	}
	return s.Revoke(ctx, id)
}

// refreshPublicKey re-resolves keyID past the resolver's cache. When the
// resolver has nothing to bypass it returns prevErr unchanged.
func (s *Service) refreshPublicKey(ctx context.Context, keyID string, prevErr error) (crypto.PublicKey, error) {
	r, ok := s.publicKeys.(RefreshingPublicKeyResolver)
	if !ok {
		return nil, prevErr
	}
	pub, refreshed, err := r.RefreshPublicKey(ctx, keyID)
	if !refreshed {
		return nil, prevErr
	}
	if err == nil {
		s.log(ctx).Debug("verification key re-resolved past cache", slog.String("key_id", keyID))
	}
	return pub, err
}

// CheckSigner reports whether the signing key currently resolves and can
// sign. Readiness probes use it; the key is dropped straight away.
func (s *Service) CheckSigner(ctx context.Context) error {
	_, err := s.signingIdentity(ctx)
	return err
}

// signingIdentity resolves the private key for a single signing operation.
func (s *Service) signingIdentity(ctx context.Context) (domain.SigningIdentity, error) {
	l := s.log(ctx)

	if s.alias == "" {
		l.Warn("no signing key alias configured")
		return domain.SigningIdentity{}, fmt.Errorf("%w: %w", ErrKeyResolutionFailed, ErrKeyNotFound)
	}

	key, err := s.privateKeys.ResolvePrivateKey(ctx, s.alias)
	if err != nil {
		l.Warn("private key resolution failed",
			slog.String("alias", s.alias),
			slog.Any("error", err),
		)
		return domain.SigningIdentity{}, keyResolutionError(err)
	}

	signer, err := jwtx.NewSigner(s.keyID, key)
	if err != nil {
		l.Warn("private key unusable for signing",
			slog.String("alias", s.alias),
			slog.Any("error", err),
		)
		return domain.SigningIdentity{}, fmt.Errorf("%w: %w", ErrKeyResolutionFailed, ErrKeyNotFound)
	}

	return domain.SigningIdentity{PublicKeyID: s.keyID, Signer: signer}, nil
}

// verificationKeyID decides which identifier to resolve the verification key
// from. The kid may narrow the issuer's DID to one of its keys but never
// point at another DID.
func verificationKeyID(issuer, kid string) (string, error) {
	iss, err := didx.Parse(issuer)
	if err != nil {
		return "", fmt.Errorf("issuer: %w", err)
	}

	switch {
	case kid == "":
		return iss.String(), nil
	case strings.HasPrefix(kid, "#"):
		kid = iss.String() + kid
	}

	u, err := didx.ParseURL(kid)
	if err != nil {
		return "", fmt.Errorf("kid: %w", err)
	}
	if u.DID != iss {
		return "", fmt.Errorf("kid %q does not belong to issuer %q", kid, issuer)
	}
	return u.String(), nil
}

// parseRefreshToken splits "<id>.<secret>".
func parseRefreshToken(token string) (id, secret string, ok bool) {
	id, secret, ok = strings.Cut(token, ".")
	if !ok || id == "" || secret == "" {
		return "", "", false
	}
	if _, err := idx.Parse(id); err != nil {
		return "", "", false
	}
	return id, secret, true
}

func tokenFor(rec domain.AccessTokenRecord, access, secret string) *domain.Token {
	return &domain.Token{
		ID:               rec.ID,
		AccessToken:      access,
		RefreshToken:     rec.ID + "." + secret,
		TokenType:        domain.TokenTypeBearer,
		ExpiresAt:        rec.ExpiresAt,
		RefreshExpiresAt: rec.RefreshExpiresAt,
	}
}

// log prefers the request-scoped logger so entries carry the request id.
func (s *Service) log(ctx context.Context) *slog.Logger {
	return slogx.FromContextOr(ctx, s.logger)
}
