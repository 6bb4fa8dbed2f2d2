package didx_test

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/tokenrefresh/pkg/didx"
	"github.com/aussiebroadwan/tokenrefresh/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

// countingResolver serves fixed documents and counts lookups.
type countingResolver struct {
	docs  map[string]*didx.Document
	err   error
	calls atomic.Int32
}

func (c *countingResolver) Resolve(_ context.Context, d didx.DID) (*didx.Document, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	doc, ok := c.docs[d.String()]
	if !ok {
		return nil, didx.ErrNotFound
	}
	return doc, nil
}

func twoKeyDocument(t *testing.T, id string) (*didx.Document, ed25519.PublicKey, ed25519.PublicKey) {
	t.Helper()
	pub1, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	pub2, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	mb1, err := didx.EncodeMultibaseKey(pub1)
	require.NoError(t, err)
	jwk2, err := jwtx.NewJWK(id+"#signing", pub2)
	require.NoError(t, err)

	return &didx.Document{
		ID: id,
		VerificationMethod: []didx.VerificationMethod{
			{ID: id + "#auth", Type: "Multikey", Controller: id, PublicKeyMultibase: mb1},
			{ID: "#signing", Type: "JsonWebKey2020", Controller: id, PublicKeyJwk: &jwk2},
		},
		AssertionMethod: []didx.VerificationRef{{Ref: id + "#signing"}},
	}, pub1, pub2
}

func TestKeyResolver(t *testing.T) {
	ctx := context.Background()
	const id = "did:web:provider.example"
	doc, authKey, signingKey := twoKeyDocument(t, id)

	docs := &countingResolver{docs: map[string]*didx.Document{id: doc}}
	reg := didx.NewRegistry(nil)
	reg.Register("web", docs)
	r := didx.NewKeyResolver(reg)

	t.Run("bare DID uses assertion method", func(t *testing.T) {
		pub, err := r.ResolvePublicKey(ctx, id)
		require.NoError(t, err)
		require.True(t, signingKey.Equal(pub))
	})

	t.Run("fragment selects method", func(t *testing.T) {
		pub, err := r.ResolvePublicKey(ctx, id+"#auth")
		require.NoError(t, err)
		require.True(t, authKey.Equal(pub))
	})

	t.Run("unknown fragment", func(t *testing.T) {
		_, err := r.ResolvePublicKey(ctx, id+"#missing")
		require.ErrorIs(t, err, didx.ErrNotFound)
	})

	t.Run("unknown DID", func(t *testing.T) {
		_, err := r.ResolvePublicKey(ctx, "did:web:nobody.example")
		require.ErrorIs(t, err, didx.ErrNotFound)
	})

	t.Run("unsupported method is not found", func(t *testing.T) {
		_, err := r.ResolvePublicKey(ctx, "did:ion:abc")
		require.ErrorIs(t, err, didx.ErrNotFound)
		require.ErrorIs(t, err, didx.ErrUnsupportedMethod)
	})

	t.Run("not a DID", func(t *testing.T) {
		_, err := r.ResolvePublicKey(ctx, "https://provider.example")
		require.ErrorIs(t, err, didx.ErrNotFound)
	})

	t.Run("did:key through registry", func(t *testing.T) {
		pub, _, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)
		d, err := didx.KeyDID(pub)
		require.NoError(t, err)

		got, err := r.ResolvePublicKey(ctx, d.String())
		require.NoError(t, err)
		require.True(t, pub.Equal(got))
	})

	t.Run("unavailable passes through", func(t *testing.T) {
		down := didx.NewKeyResolver(&countingResolver{err: errors.Join(didx.ErrUnavailable, errors.New("dial tcp: refused"))})
		_, err := down.ResolvePublicKey(ctx, id)
		require.ErrorIs(t, err, didx.ErrUnavailable)
		require.NotErrorIs(t, err, didx.ErrNotFound)
	})
}

func TestDocumentFallsBackToFirstMethod(t *testing.T) {
	const id = "did:web:provider.example"
	doc, authKey, _ := twoKeyDocument(t, id)
	doc.AssertionMethod = nil

	vm, ok := doc.SigningMethod()
	require.True(t, ok)
	pub, err := vm.PublicKey()
	require.NoError(t, err)
	require.True(t, authKey.Equal(pub))

	_, ok = (&didx.Document{ID: id}).SigningMethod()
	require.False(t, ok)
}

func TestVerificationRefJSON(t *testing.T) {
	raw := `{
		"id": "did:web:provider.example",
		"assertionMethod": [
			"#key-1",
			{"id": "#key-2", "type": "Multikey", "controller": "did:web:provider.example",
			 "publicKeyMultibase": "z6MkhaXgBZDvotDkL5257faiztiGiC2QtKLGpbnnEGta2doK"}
		]
	}`

	var doc didx.Document
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	require.Len(t, doc.AssertionMethod, 2)
	require.Equal(t, "#key-1", doc.AssertionMethod[0].Ref)
	require.NotNil(t, doc.AssertionMethod[1].Embedded)

	vm, ok := doc.Method("did:web:provider.example#key-2")
	require.True(t, ok)
	_, err := vm.PublicKey()
	require.NoError(t, err)
}

func TestCachingResolver(t *testing.T) {
	ctx := context.Background()
	const id = "did:web:provider.example"
	doc, _, _ := twoKeyDocument(t, id)
	src := &countingResolver{docs: map[string]*didx.Document{id: doc}}

	cache, err := didx.NewCachingResolver(src, time.Minute)
	require.NoError(t, err)
	t.Cleanup(cache.Close)

	d, err := didx.Parse(id)
	require.NoError(t, err)

	for range 3 {
		got, err := cache.Resolve(ctx, d)
		require.NoError(t, err)
		require.Equal(t, id, got.ID)
	}
	require.EqualValues(t, 1, src.calls.Load())

	cache.Invalidate(d)
	_, err = cache.Resolve(ctx, d)
	require.NoError(t, err)
	require.EqualValues(t, 2, src.calls.Load())

	t.Run("failures are not cached", func(t *testing.T) {
		missing, err := didx.Parse("did:web:nobody.example")
		require.NoError(t, err)

		before := src.calls.Load()
		for range 2 {
			_, err := cache.Resolve(ctx, missing)
			require.ErrorIs(t, err, didx.ErrNotFound)
		}
		require.Equal(t, before+2, src.calls.Load())
	})
}

func TestKeyResolverRefreshPublicKey(t *testing.T) {
	ctx := context.Background()
	const id = "did:web:provider.example"
	doc, _, oldKey := twoKeyDocument(t, id)
	rotated, _, newKey := twoKeyDocument(t, id)

	src := &countingResolver{docs: map[string]*didx.Document{id: doc}}
	reg := didx.NewRegistry(nil)
	reg.Register("web", src)
	cache, err := didx.NewCachingResolver(reg, time.Hour)
	require.NoError(t, err)
	t.Cleanup(cache.Close)
	r := didx.NewKeyResolver(cache)

	pub, err := r.ResolvePublicKey(ctx, id+"#signing")
	require.NoError(t, err)
	require.True(t, oldKey.Equal(pub))

	// The provider rotates; the cached document still has the old key.
	src.docs[id] = rotated
	pub, err = r.ResolvePublicKey(ctx, id+"#signing")
	require.NoError(t, err)
	require.True(t, oldKey.Equal(pub))

	pub, refreshed, err := r.RefreshPublicKey(ctx, id+"#signing")
	require.NoError(t, err)
	require.True(t, refreshed)
	require.True(t, newKey.Equal(pub))
	require.EqualValues(t, 2, src.calls.Load())

	t.Run("did:key cannot rotate", func(t *testing.T) {
		edPub, _, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)
		d, err := didx.KeyDID(edPub)
		require.NoError(t, err)

		_, refreshed, err := r.RefreshPublicKey(ctx, d.String())
		require.NoError(t, err)
		require.False(t, refreshed)
	})

	t.Run("nothing to bypass without a cache", func(t *testing.T) {
		_, refreshed, err := didx.NewKeyResolver(reg).RefreshPublicKey(ctx, id)
		require.NoError(t, err)
		require.False(t, refreshed)
	})
}
