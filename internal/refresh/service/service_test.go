package service_test

import (
	"context"
	"crypto"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/tokenrefresh/internal/refresh/domain"
	"github.com/aussiebroadwan/tokenrefresh/internal/refresh/service"
	"github.com/aussiebroadwan/tokenrefresh/internal/refresh/store"
	"github.com/aussiebroadwan/tokenrefresh/internal/refresh/store/memory"
	"github.com/aussiebroadwan/tokenrefresh/pkg/cryptox"
	"github.com/aussiebroadwan/tokenrefresh/pkg/didx"
	"github.com/aussiebroadwan/tokenrefresh/pkg/idx"
	"github.com/aussiebroadwan/tokenrefresh/pkg/jwtx"
	"github.com/aussiebroadwan/tokenrefresh/pkg/slogx"
	"github.com/aussiebroadwan/tokenrefresh/pkg/vault"
)

const signingAlias = "signing-key"

var start = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// countingStore records writes on top of a real store.
type countingStore struct {
	store.AccessTokenStore
	puts atomic.Int32
}

func (c *countingStore) Put(ctx context.Context, rec domain.AccessTokenRecord) (domain.AccessTokenRecord, error) {
	c.puts.Add(1)
	return c.AccessTokenStore.Put(ctx, rec)
}

// countingKeys counts private key resolutions.
type countingKeys struct {
	service.PrivateKeyResolver
	calls atomic.Int32
}

func (c *countingKeys) ResolvePrivateKey(ctx context.Context, alias string) (crypto.PrivateKey, error) {
	c.calls.Add(1)
	return c.PrivateKeyResolver.ResolvePrivateKey(ctx, alias)
}

type failingPublicKeys struct{ err error }

func (f failingPublicKeys) ResolvePublicKey(context.Context, string) (crypto.PublicKey, error) {
	return nil, f.err
}

type harness struct {
	svc    *service.Service
	opts   service.Options
	clock  *fakeClock
	store  *countingStore
	vault  *vault.Memory
	keys   *countingKeys
	pemKey []byte
	did    string
	kid    string
}

func newHarness(t *testing.T, mutate ...func(*service.Options)) *harness {
	t.Helper()

	pemKey, err := cryptox.GenerateKey(cryptox.AlgEdDSA)
	require.NoError(t, err)
	key, err := jwtx.ParsePrivateKeyPEM(pemKey)
	require.NoError(t, err)

	did, err := didx.KeyDID(key.(crypto.Signer).Public())
	require.NoError(t, err)

	v := vault.NewMemory()
	require.NoError(t, v.Put(context.Background(), signingAlias, pemKey))

	h := &harness{
		clock:  &fakeClock{now: start},
		store:  &countingStore{AccessTokenStore: memory.NewStore()},
		vault:  v,
		keys:   &countingKeys{PrivateKeyResolver: vault.NewKeyResolver(v)},
		pemKey: pemKey,
		did:    did.String(),
		kid:    did.String() + "#" + did.ID,
	}

	h.opts = service.Options{
		Store:           h.store,
		PublicKeys:      didx.NewKeyResolver(didx.NewRegistry(nil)),
		PrivateKeys:     h.keys,
		Clock:           h.clock,
		Logger:          slogx.Discard(),
		SigningKeyAlias: signingAlias,
		Issuer:          h.did,
		KeyID:           h.kid,
		Tolerance:       5 * time.Second,
		AccessTTL:       time.Hour,
		RefreshTTL:      24 * time.Hour,
	}
	for _, m := range mutate {
		m(&h.opts)
	}

	h.svc, err = service.New(h.opts)
	require.NoError(t, err)
	return h
}

func transferClaims() jwtx.Claims {
	return jwtx.NewAccessClaims("", "consumer-1", []string{"provider-1"}, "transfer:read", 0, start)
}

var transferContext = map[string]string{"transferProcessId": "tp-1", "contractId": "c-1"}

func (h *harness) issue(t *testing.T) *domain.Token {
	t.Helper()
	tok, err := h.svc.Issue(context.Background(), transferClaims(), transferContext)
	require.NoError(t, err)
	return tok
}

func TestNew(t *testing.T) {
	h := newHarness(t)

	_, err := service.New(service.Options{})
	require.Error(t, err)

	opts := h.opts
	opts.Tolerance = -time.Second
	_, err = service.New(opts)
	require.Error(t, err)
}

func TestIssueValidateRoundTrip(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	tok := h.issue(t)
	require.Equal(t, domain.TokenTypeBearer, tok.TokenType)
	require.True(t, start.Add(time.Hour).Equal(tok.ExpiresAt))
	require.True(t, start.Add(24*time.Hour).Equal(tok.RefreshExpiresAt))
	require.True(t, strings.HasPrefix(tok.RefreshToken, tok.ID+"."))

	res, err := h.svc.Validate(ctx, tok.AccessToken)
	require.NoError(t, err)
	require.Equal(t, tok.ID, res.ID)
	require.Equal(t, "consumer-1", res.Claims.Subject)
	require.Equal(t, []string{"provider-1"}, []string(res.Claims.Audience))
	require.Equal(t, "transfer:read", res.Claims.Scope)
	require.Equal(t, h.did, res.Claims.Issuer)
	require.Equal(t, h.kid, res.KeyID)
	require.True(t, tok.ExpiresAt.Equal(res.ExpiresAt))

	rec, err := h.store.Get(ctx, tok.ID)
	require.NoError(t, err)
	require.Equal(t, transferContext, rec.RefreshContext)
	require.NotContains(t, rec.RefreshTokenHash, strings.TrimPrefix(tok.RefreshToken, tok.ID+"."))
}

func TestIssueWithoutKeyIDResolvesIssuer(t *testing.T) {
	h := newHarness(t, func(o *service.Options) { o.KeyID = "" })

	res, err := h.svc.Validate(context.Background(), h.issue(t).AccessToken)
	require.NoError(t, err)
	require.Equal(t, h.did, res.KeyID)
}

func TestIssueRequiresDIDIssuer(t *testing.T) {
	h := newHarness(t, func(o *service.Options) { o.Issuer = "" })

	_, err := h.svc.Issue(context.Background(), transferClaims(), nil)
	require.ErrorIs(t, err, service.ErrMalformed)
	require.Zero(t, h.store.puts.Load())
}

func TestIssueMissingKey(t *testing.T) {
	h := newHarness(t, func(o *service.Options) { o.SigningKeyAlias = "missing-key" })

	tok, err := h.svc.Issue(context.Background(), transferClaims(), transferContext)
	require.Nil(t, tok)
	require.ErrorIs(t, err, service.ErrKeyResolutionFailed)
	require.ErrorIs(t, err, service.ErrKeyNotFound)
	require.False(t, service.IsRetryable(err))
	require.Zero(t, h.store.puts.Load(), "no lineage may be stored")
}

func TestIssueUnusableKey(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.vault.Put(context.Background(), signingAlias, []byte("not a key")))

	_, err := h.svc.Issue(context.Background(), transferClaims(), nil)
	require.ErrorIs(t, err, service.ErrKeyResolutionFailed)
	require.Zero(t, h.store.puts.Load())
}

func TestValidateExpiryTolerance(t *testing.T) {
	tests := []struct {
		name      string
		tolerance time.Duration
		advance   time.Duration
		wantErr   error
	}{
		{"fresh", 5 * time.Second, 0, nil},
		{"at expiry", 5 * time.Second, time.Hour, nil},
		{"within tolerance", 5 * time.Second, time.Hour + 3*time.Second, nil},
		{"at tolerance edge", 5 * time.Second, time.Hour + 5*time.Second, nil},
		{"past tolerance", 5 * time.Second, time.Hour + 6*time.Second, service.ErrExpired},
		{"no tolerance", 0, time.Hour + time.Second, service.ErrExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, func(o *service.Options) { o.Tolerance = tt.tolerance })
			tok := h.issue(t)

			h.clock.Advance(tt.advance)
			_, err := h.svc.Validate(context.Background(), tok.AccessToken)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

// Lifetime 3600s with 5s tolerance: valid right away and 3s past expiry,
// expired once more than the tolerance has passed.
func TestScenarioExpiryWithTolerance(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	tok := h.issue(t)

	res, err := h.svc.Validate(ctx, tok.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "consumer-1", res.Claims.Subject)

	h.clock.Advance(time.Hour + 3*time.Second)
	_, err = h.svc.Validate(ctx, tok.AccessToken)
	require.NoError(t, err)

	h.clock.Advance(3 * time.Second)
	_, err = h.svc.Validate(ctx, tok.AccessToken)
	require.ErrorIs(t, err, service.ErrExpired)
}

func TestValidateNotYetValid(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	tok := h.issue(t)

	h.clock.Advance(-5 * time.Second)
	_, err := h.svc.Validate(ctx, tok.AccessToken)
	require.NoError(t, err)

	h.clock.Advance(-time.Second)
	_, err = h.svc.Validate(ctx, tok.AccessToken)
	require.ErrorIs(t, err, service.ErrNotYetValid)
}

func TestValidateTamperedSignature(t *testing.T) {
	h := newHarness(t)
	tok := h.issue(t)

	sigStart := strings.LastIndex(tok.AccessToken, ".") + 1
	for _, pos := range []int{sigStart, sigStart + 5, sigStart + 20} {
		b := []byte(tok.AccessToken)
		if b[pos] == 'A' {
			b[pos] = 'B'
		} else {
			b[pos] = 'A'
		}

		_, err := h.svc.Validate(context.Background(), string(b))
		require.ErrorIs(t, err, service.ErrInvalidSignature, "position %d", pos)
		require.NotErrorIs(t, err, service.ErrMalformed)
	}

	// Bit 0 of the final character is padding in base64url; a lenient
	// decoder would ignore the change.
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"
	last := len(tok.AccessToken) - 1
	i := strings.IndexByte(alphabet, tok.AccessToken[last])
	tampered := tok.AccessToken[:last] + string(alphabet[i^1])

	_, err := h.svc.Validate(context.Background(), tampered)
	require.ErrorIs(t, err, service.ErrInvalidSignature)
	require.NotErrorIs(t, err, service.ErrMalformed)
}

func TestValidateForeignSigner(t *testing.T) {
	h := newHarness(t)

	// Same issuer and kid, different private key.
	pemKey, err := cryptox.GenerateKey(cryptox.AlgEdDSA)
	require.NoError(t, err)
	signer, err := jwtx.NewSignerFromPEM(h.kid, pemKey)
	require.NoError(t, err)

	c := jwtx.NewAccessClaims(h.did, "consumer-1", []string{"provider-1"}, "", time.Hour, start)
	forged, err := signer.Sign(c)
	require.NoError(t, err)

	_, err = h.svc.Validate(context.Background(), forged)
	require.ErrorIs(t, err, service.ErrInvalidSignature)
}

func TestValidateMalformed(t *testing.T) {
	h := newHarness(t)
	tok := h.issue(t)

	otherKey, err := cryptox.GenerateKey(cryptox.AlgEdDSA)
	require.NoError(t, err)
	parsed, err := jwtx.ParsePrivateKeyPEM(otherKey)
	require.NoError(t, err)
	otherDID, err := didx.KeyDID(parsed.(crypto.Signer).Public())
	require.NoError(t, err)

	signWith := func(issuer, kid string) string {
		signer, err := jwtx.NewSignerFromPEM(kid, h.pemKey)
		require.NoError(t, err)
		c := jwtx.NewAccessClaims(issuer, "consumer-1", nil, "", time.Hour, start)
		out, err := signer.Sign(c)
		require.NoError(t, err)
		return out
	}

	tests := map[string]string{
		"empty":             "",
		"garbage":           "not-a-token",
		"bad segments":      "a.b.c",
		"alg none":          unsignedToken(h.did),
		"issuer not a DID":  signWith("https://provider.example", ""),
		"kid of other DID":  signWith(h.did, otherDID.String()+"#"+otherDID.ID),
		"kid not a DID URL": signWith(h.did, "key-1"),
		"truncated":         tok.AccessToken[:strings.LastIndex(tok.AccessToken, ".")],
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := h.svc.Validate(context.Background(), token)
			require.ErrorIs(t, err, service.ErrMalformed)
		})
	}
}

// unsignedToken builds an alg=none token naming issuer.
func unsignedToken(issuer string) string {
	enc := base64.RawURLEncoding
	header := enc.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	payload := enc.EncodeToString([]byte(`{"iss":"` + issuer + `","exp":4102444800}`))
	return header + "." + payload + "."
}

func TestValidateRelativeKeyID(t *testing.T) {
	h := newHarness(t)
	did, _ := didx.Parse(h.did)

	signer, err := jwtx.NewSignerFromPEM("#"+did.ID, h.pemKey)
	require.NoError(t, err)
	token, err := signer.Sign(jwtx.NewAccessClaims(h.did, "consumer-1", nil, "", time.Hour, start))
	require.NoError(t, err)

	res, err := h.svc.Validate(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, h.kid, res.KeyID)
}

func TestValidateKeyResolutionFailed(t *testing.T) {
	t.Run("unavailable is retryable", func(t *testing.T) {
		h := newHarness(t, func(o *service.Options) {
			o.PublicKeys = failingPublicKeys{err: didx.ErrUnavailable}
		})
		_, err := h.svc.Validate(context.Background(), h.issue(t).AccessToken)
		require.ErrorIs(t, err, service.ErrKeyResolutionFailed)
		require.ErrorIs(t, err, service.ErrKeyUnavailable)
		require.True(t, service.IsRetryable(err))
	})

	t.Run("not found is final", func(t *testing.T) {
		h := newHarness(t, func(o *service.Options) {
			o.PublicKeys = failingPublicKeys{err: didx.ErrNotFound}
		})
		_, err := h.svc.Validate(context.Background(), h.issue(t).AccessToken)
		require.ErrorIs(t, err, service.ErrKeyResolutionFailed)
		require.ErrorIs(t, err, service.ErrKeyNotFound)
		require.False(t, service.IsRetryable(err))
	})

	t.Run("unsupported method", func(t *testing.T) {
		h := newHarness(t, func(o *service.Options) {
			o.Issuer = "did:web:provider.example"
			o.KeyID = ""
		})
		_, err := h.svc.Validate(context.Background(), h.issue(t).AccessToken)
		require.ErrorIs(t, err, service.ErrKeyResolutionFailed)
		require.ErrorIs(t, err, service.ErrKeyNotFound)
	})
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	first := h.issue(t)

	h.clock.Advance(30 * time.Minute)
	next, err := h.svc.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)

	require.Equal(t, first.ID, next.ID)
	require.NotEqual(t, first.AccessToken, next.AccessToken)
	require.NotEqual(t, first.RefreshToken, next.RefreshToken)
	require.True(t, start.Add(90*time.Minute).Equal(next.ExpiresAt))
	require.True(t, first.RefreshExpiresAt.Equal(next.RefreshExpiresAt), "refresh lifetime is not extended")

	res, err := h.svc.Resolve(ctx, next.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "consumer-1", res.Claims.Subject)
	require.Equal(t, transferContext, res.RefreshContext)

	// The old pair is dead.
	_, err = h.svc.Refresh(ctx, first.RefreshToken)
	require.ErrorIs(t, err, service.ErrRefreshTokenNotFound)
	_, err = h.svc.Resolve(ctx, first.AccessToken)
	require.ErrorIs(t, err, service.ErrRevoked)

	// The new refresh token keeps the lineage going.
	_, err = h.svc.Refresh(ctx, next.RefreshToken)
	require.NoError(t, err)

	rec, err := h.store.Get(ctx, first.ID)
	require.NoError(t, err)
	require.EqualValues(t, 3, rec.Version)
}

func TestRefreshInSameSecondSupersedesToken(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	first := h.issue(t)

	// No clock movement: iat, nbf and exp all match the first token.
	next, err := h.svc.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, first.AccessToken, next.AccessToken)

	_, err = h.svc.Resolve(ctx, first.AccessToken)
	require.ErrorIs(t, err, service.ErrRevoked)

	res, err := h.svc.Resolve(ctx, next.AccessToken)
	require.NoError(t, err)
	require.Equal(t, first.ID, res.ID)

	third, err := h.svc.Refresh(ctx, next.RefreshToken)
	require.NoError(t, err)
	_, err = h.svc.Resolve(ctx, next.AccessToken)
	require.ErrorIs(t, err, service.ErrRevoked)
	_, err = h.svc.Resolve(ctx, third.AccessToken)
	require.NoError(t, err)
}

func TestRefreshResolvesKeyEveryTime(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	tok := h.issue(t)
	for range 2 {
		var err error
		tok, err = h.svc.Refresh(ctx, tok.RefreshToken)
		require.NoError(t, err)
	}
	require.EqualValues(t, 3, h.keys.calls.Load())
}

func TestRefreshUnknownIsIndistinguishableFromRevoked(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	revoked := h.issue(t)
	require.NoError(t, h.svc.Revoke(ctx, revoked.ID))
	_, errRevoked := h.svc.Refresh(ctx, revoked.RefreshToken)

	unknown := idx.New().String() + ".c2VjcmV0"
	_, errUnknown := h.svc.Refresh(ctx, unknown)

	live := h.issue(t)
	_, errWrongSecret := h.svc.Refresh(ctx, live.ID+".wrong")

	for _, err := range []error{errRevoked, errUnknown, errWrongSecret} {
		require.ErrorIs(t, err, service.ErrRefreshTokenNotFound)
		require.Equal(t, errRevoked, err)
	}

	for _, garbage := range []string{"", "no-dot", ".secret", "id.", "not-a-ulid.secret"} {
		_, err := h.svc.Refresh(ctx, garbage)
		require.Equal(t, errRevoked, err, "input %q", garbage)
	}
}

func TestRefreshLifetimeEnded(t *testing.T) {
	h := newHarness(t)
	tok := h.issue(t)

	h.clock.Advance(24*time.Hour + time.Second)
	_, err := h.svc.Refresh(context.Background(), tok.RefreshToken)
	require.ErrorIs(t, err, service.ErrExpired)
}

func TestRefreshUnboundedLifetime(t *testing.T) {
	h := newHarness(t, func(o *service.Options) { o.RefreshTTL = 0 })
	tok := h.issue(t)
	require.True(t, tok.RefreshExpiresAt.IsZero())

	h.clock.Advance(30 * 24 * time.Hour)
	_, err := h.svc.Refresh(context.Background(), tok.RefreshToken)
	require.NoError(t, err)
}

func TestRefreshKeyResolutionFailedLeavesLineage(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	tok := h.issue(t)

	require.NoError(t, h.vault.Delete(ctx, signingAlias))
	_, err := h.svc.Refresh(ctx, tok.RefreshToken)
	require.ErrorIs(t, err, service.ErrKeyResolutionFailed)

	require.NoError(t, h.vault.Put(ctx, signingAlias, h.pemKey))
	_, err = h.svc.Refresh(ctx, tok.RefreshToken)
	require.NoError(t, err, "the refresh token must survive a failed attempt")
}

func TestConcurrentRefreshHasOneWinner(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	tok := h.issue(t)

	// A second instance over the same store stands in for another replica;
	// it shares no locks with the first.
	replica, err := service.New(h.opts)
	require.NoError(t, err)
	instances := []*service.Service{h.svc, replica}

	const n = 16
	var wg sync.WaitGroup
	results := make([]*domain.Token, n)
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = instances[i%2].Refresh(ctx, tok.RefreshToken)
		}(i)
	}
	wg.Wait()

	var winners []*domain.Token
	for i, err := range errs {
		if err == nil {
			winners = append(winners, results[i])
			continue
		}
		require.ErrorIs(t, err, service.ErrRefreshTokenNotFound)
	}
	require.Len(t, winners, 1)

	rec, err := h.store.Get(ctx, tok.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2, rec.Version)
	require.True(t, cryptox.MatchFingerprint(winners[0].AccessToken, rec.AccessTokenHash))

	res, err := h.svc.Resolve(ctx, winners[0].AccessToken)
	require.NoError(t, err)
	require.Equal(t, rec.Claims.Subject, res.Claims.Subject)
	require.Equal(t, rec.Claims.ExpiresAt.Unix(), res.Claims.ExpiresAt.Unix())
}

// conflictingStore makes every replace lose its compare-and-swap.
type conflictingStore struct {
	store.AccessTokenStore
	replaces atomic.Int32
}

func (c *conflictingStore) Put(ctx context.Context, rec domain.AccessTokenRecord) (domain.AccessTokenRecord, error) {
	if rec.Version == 0 {
		return c.AccessTokenStore.Put(ctx, rec)
	}
	c.replaces.Add(1)
	return domain.AccessTokenRecord{}, store.ErrConflict
}

func TestRefreshGivesUpAfterRepeatedConflicts(t *testing.T) {
	cs := &conflictingStore{AccessTokenStore: memory.NewStore()}
	h := newHarness(t, func(o *service.Options) {
		o.MaxRefreshAttempts = 4
	})
	opts := h.opts
	opts.Store = cs
	svc, err := service.New(opts)
	require.NoError(t, err)

	tok, err := svc.Issue(context.Background(), transferClaims(), nil)
	require.NoError(t, err)

	_, err = svc.Refresh(context.Background(), tok.RefreshToken)
	require.ErrorIs(t, err, service.ErrConcurrentRefresh)
	require.True(t, service.IsRetryable(err))
	require.EqualValues(t, 4, cs.replaces.Load())
}

func TestRevoke(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	tok := h.issue(t)

	require.NoError(t, h.svc.Revoke(ctx, tok.ID))
	require.NoError(t, h.svc.Revoke(ctx, tok.ID), "revoking twice is fine")

	// Signature and expiry still hold, but the lineage is gone.
	_, err := h.svc.Validate(ctx, tok.AccessToken)
	require.NoError(t, err)
	_, err = h.svc.Resolve(ctx, tok.AccessToken)
	require.ErrorIs(t, err, service.ErrRevoked)
}

func TestRevokeRefreshToken(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	tok := h.issue(t)

	err := h.svc.RevokeRefreshToken(ctx, tok.ID+".wrong")
	require.ErrorIs(t, err, service.ErrRefreshTokenNotFound)
	_, err = h.store.Get(ctx, tok.ID)
	require.NoError(t, err, "a wrong secret must not revoke")

	require.ErrorIs(t, h.svc.RevokeRefreshToken(ctx, "garbage"), service.ErrRefreshTokenNotFound)
	require.ErrorIs(t, h.svc.RevokeRefreshToken(ctx, idx.New().String()+".secret"), service.ErrRefreshTokenNotFound)

	require.NoError(t, h.svc.RevokeRefreshToken(ctx, tok.RefreshToken))
	require.ErrorIs(t, h.svc.RevokeRefreshToken(ctx, tok.RefreshToken), service.ErrRefreshTokenNotFound,
		"a revoked token reads as unknown")

	_, err = h.svc.Refresh(ctx, tok.RefreshToken)
	require.ErrorIs(t, err, service.ErrRefreshTokenNotFound)
}

func TestDIDWebIssuer(t *testing.T) {
	ctx := context.Background()

	pemKey, err := cryptox.GenerateKey(cryptox.AlgES256)
	require.NoError(t, err)
	key, err := jwtx.ParsePrivateKeyPEM(pemKey)
	require.NoError(t, err)

	var (
		mu  sync.Mutex
		doc *didx.Document
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if r.URL.Path != "/.well-known/did.json" || doc == nil {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(doc)
	}))
	t.Cleanup(srv.Close)

	u, _ := url.Parse(srv.URL)
	did := "did:web:" + strings.ReplaceAll(u.Host, ":", "%3A")
	kid := did + "#key-1"

	jwk, err := jwtx.NewJWK(kid, key.(crypto.Signer).Public())
	require.NoError(t, err)
	mu.Lock()
	doc = &didx.Document{
		ID: did,
		VerificationMethod: []didx.VerificationMethod{{
			ID: kid, Type: "JsonWebKey2020", Controller: did, PublicKeyJwk: &jwk,
		}},
		AssertionMethod: []didx.VerificationRef{{Ref: kid}},
	}
	mu.Unlock()

	v := vault.NewMemory()
	require.NoError(t, v.Put(ctx, signingAlias, pemKey))

	svc, err := service.New(service.Options{
		Store:           memory.NewStore(),
		PublicKeys:      didx.NewKeyResolver(didx.NewRegistry(didx.NewWebMethod(5*time.Second, true))),
		PrivateKeys:     vault.NewKeyResolver(v),
		Clock:           &fakeClock{now: time.Now()},
		Logger:          slogx.Discard(),
		SigningKeyAlias: signingAlias,
		Issuer:          did,
		KeyID:           kid,
		Tolerance:       service.DefaultTolerance,
		AccessTTL:       time.Minute,
	})
	require.NoError(t, err)

	tok, err := svc.Issue(ctx, transferClaims(), nil)
	require.NoError(t, err)
	res, err := svc.Validate(ctx, tok.AccessToken)
	require.NoError(t, err)
	require.Equal(t, kid, res.KeyID)

	// The provider withdraws its DID document.
	mu.Lock()
	doc = nil
	mu.Unlock()
	_, err = svc.Validate(ctx, tok.AccessToken)
	require.ErrorIs(t, err, service.ErrKeyResolutionFailed)
	require.ErrorIs(t, err, service.ErrKeyNotFound)

	// The server goes away entirely.
	srv.Close()
	_, err = svc.Validate(ctx, tok.AccessToken)
	require.ErrorIs(t, err, service.ErrKeyUnavailable)
	require.True(t, errors.Is(err, service.ErrKeyResolutionFailed))
}

func TestValidatePicksUpRotatedKey(t *testing.T) {
	ctx := context.Background()

	var (
		mu      sync.Mutex
		doc     *didx.Document
		fetches atomic.Int32
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		mu.Lock()
		defer mu.Unlock()
		_ = json.NewEncoder(w).Encode(doc)
	}))
	t.Cleanup(srv.Close)

	u, _ := url.Parse(srv.URL)
	did := "did:web:" + strings.ReplaceAll(u.Host, ":", "%3A")

	publish := func(methods map[string][]byte) {
		t.Helper()
		d := &didx.Document{ID: did}
		for kid, pemKey := range methods {
			key, err := jwtx.ParsePrivateKeyPEM(pemKey)
			require.NoError(t, err)
			jwk, err := jwtx.NewJWK(kid, key.(crypto.Signer).Public())
			require.NoError(t, err)
			d.VerificationMethod = append(d.VerificationMethod, didx.VerificationMethod{
				ID: kid, Type: "JsonWebKey2020", Controller: did, PublicKeyJwk: &jwk,
			})
		}
		mu.Lock()
		doc = d
		mu.Unlock()
	}
	sign := func(kid string, pemKey []byte) string {
		t.Helper()
		signer, err := jwtx.NewSignerFromPEM(kid, pemKey)
		require.NoError(t, err)
		token, err := signer.Sign(jwtx.NewAccessClaims(did, "consumer-1", nil, "", time.Hour, start))
		require.NoError(t, err)
		return token
	}

	key1, err := cryptox.GenerateKey(cryptox.AlgES256)
	require.NoError(t, err)
	key2, err := cryptox.GenerateKey(cryptox.AlgES256)
	require.NoError(t, err)
	kid1, kid2 := did+"#key-1", did+"#key-2"
	publish(map[string][]byte{kid1: key1})

	cache, err := didx.NewCachingResolver(didx.NewRegistry(didx.NewWebMethod(5*time.Second, true)), time.Hour)
	require.NoError(t, err)
	t.Cleanup(cache.Close)

	h := newHarness(t, func(o *service.Options) {
		o.PublicKeys = didx.NewKeyResolver(cache)
	})

	_, err = h.svc.Validate(ctx, sign(kid1, key1))
	require.NoError(t, err)
	require.EqualValues(t, 1, fetches.Load())

	t.Run("new key id", func(t *testing.T) {
		publish(map[string][]byte{kid1: key1, kid2: key2})
		_, err := h.svc.Validate(ctx, sign(kid2, key2))
		require.NoError(t, err)
	})

	t.Run("key replaced under the same id", func(t *testing.T) {
		publish(map[string][]byte{kid1: key2})
		_, err := h.svc.Validate(ctx, sign(kid1, key2))
		require.NoError(t, err)

		// The retired key is rejected once the new document is cached.
		_, err = h.svc.Validate(ctx, sign(kid1, key1))
		require.ErrorIs(t, err, service.ErrInvalidSignature)
	})
}
