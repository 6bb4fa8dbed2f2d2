// Package storetest holds the contract every AccessTokenStore driver must
// satisfy. Drivers call Run from their own tests.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/tokenrefresh/internal/refresh/domain"
	"github.com/aussiebroadwan/tokenrefresh/internal/refresh/store"
	"github.com/aussiebroadwan/tokenrefresh/pkg/idx"
	"github.com/aussiebroadwan/tokenrefresh/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty store. Cleanup is the factory's job.
type Factory func(t *testing.T) store.AccessTokenStore

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// NewRecord builds an unsaved record with every field populated.
func NewRecord() domain.AccessTokenRecord {
	id := idx.New().String()
	claims := jwtx.NewAccessClaims(
		"did:web:provider.example",
		"consumer-1",
		[]string{"provider-1"},
		"transfer:read",
		time.Hour,
		base,
	)
	claims.ID = id

	return domain.AccessTokenRecord{
		ID:               id,
		Claims:           claims,
		RefreshContext:   map[string]string{"transferProcessId": "tp-1", "contractId": "c-1"},
		RefreshTokenHash: "refresh-hash",
		AccessTokenHash:  "access-hash",
		ExpiresAt:        base.Add(time.Hour),
		RefreshExpiresAt: base.Add(24 * time.Hour),
		CreatedAt:        base,
		UpdatedAt:        base,
	}
}

// Run exercises the AccessTokenStore contract against stores from newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("PutThenGet", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		rec := NewRecord()

		saved, err := s.Put(ctx, rec)
		require.NoError(t, err)
		require.EqualValues(t, 1, saved.Version)

		got, err := s.Get(ctx, rec.ID)
		require.NoError(t, err)
		require.EqualValues(t, 1, got.Version)
		requireSameRecord(t, rec, got)
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := newStore(t).Get(context.Background(), "missing")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("InsertTwice", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		rec := NewRecord()

		_, err := s.Put(ctx, rec)
		require.NoError(t, err)
		_, err = s.Put(ctx, rec)
		require.ErrorIs(t, err, store.ErrAlreadyExists)
	})

	t.Run("ReplaceBumpsVersion", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		saved, err := s.Put(ctx, NewRecord())
		require.NoError(t, err)

		saved.RefreshTokenHash = "rotated"
		saved.RefreshContext = map[string]string{"transferProcessId": "tp-2"}
		saved.Claims = saved.Claims.Reissue(time.Hour, base.Add(time.Minute))
		saved.ExpiresAt = base.Add(time.Minute + time.Hour)

		updated, err := s.Put(ctx, saved)
		require.NoError(t, err)
		require.EqualValues(t, 2, updated.Version)

		got, err := s.Get(ctx, saved.ID)
		require.NoError(t, err)
		require.EqualValues(t, 2, got.Version)
		requireSameRecord(t, saved, got)
	})

	t.Run("StaleVersionConflicts", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		v1, err := s.Put(ctx, NewRecord())
		require.NoError(t, err)

		a := v1
		a.RefreshTokenHash = "a"
		_, err = s.Put(ctx, a)
		require.NoError(t, err)

		b := v1
		b.RefreshTokenHash = "b"
		_, err = s.Put(ctx, b)
		require.ErrorIs(t, err, store.ErrConflict)

		got, err := s.Get(ctx, v1.ID)
		require.NoError(t, err)
		require.Equal(t, "a", got.RefreshTokenHash)
	})

	t.Run("ReplaceMissing", func(t *testing.T) {
		rec := NewRecord()
		rec.Version = 3
		_, err := newStore(t).Put(context.Background(), rec)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("ConcurrentReplaceHasOneWinner", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		v1, err := s.Put(ctx, NewRecord())
		require.NoError(t, err)

		const n = 8
		var wg sync.WaitGroup
		hashes := make([]string, n)
		errs := make([]error, n)
		for i := range n {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				next := v1.Clone()
				next.RefreshTokenHash = string(rune('a' + i))
				hashes[i] = next.RefreshTokenHash
				_, errs[i] = s.Put(ctx, next)
			}(i)
		}
		wg.Wait()

		var winners []string
		for i, err := range errs {
			if err == nil {
				winners = append(winners, hashes[i])
				continue
			}
			require.ErrorIs(t, err, store.ErrConflict)
		}
		require.Len(t, winners, 1)

		got, err := s.Get(ctx, v1.ID)
		require.NoError(t, err)
		require.Equal(t, winners[0], got.RefreshTokenHash)
		require.EqualValues(t, 2, got.Version)
	})

	t.Run("Delete", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		saved, err := s.Put(ctx, NewRecord())
		require.NoError(t, err)

		require.NoError(t, s.Delete(ctx, saved.ID))
		_, err = s.Get(ctx, saved.ID)
		require.ErrorIs(t, err, store.ErrNotFound)
		require.ErrorIs(t, s.Delete(ctx, saved.ID), store.ErrNotFound)

		// A deleted lineage cannot be resurrected by a stale writer.
		_, err = s.Put(ctx, saved)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("DeleteExpired", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		expired := NewRecord()
		expired.RefreshExpiresAt = base.Add(time.Minute)
		live := NewRecord()
		live.RefreshExpiresAt = base.Add(time.Hour)
		unbounded := NewRecord()
		unbounded.RefreshExpiresAt = time.Time{}

		for _, r := range []domain.AccessTokenRecord{expired, live, unbounded} {
			_, err := s.Put(ctx, r)
			require.NoError(t, err)
		}

		n, err := s.DeleteExpired(ctx, base.Add(30*time.Minute))
		require.NoError(t, err)
		require.Equal(t, 1, n)

		_, err = s.Get(ctx, expired.ID)
		require.ErrorIs(t, err, store.ErrNotFound)
		for _, id := range []string{live.ID, unbounded.ID} {
			_, err = s.Get(ctx, id)
			require.NoError(t, err)
		}
	})

	t.Run("Ping", func(t *testing.T) {
		require.NoError(t, newStore(t).Ping(context.Background()))
	})
}

func requireSameRecord(t *testing.T, want, got domain.AccessTokenRecord) {
	t.Helper()

	require.Equal(t, want.ID, got.ID)
	require.Equal(t, want.Claims.Issuer, got.Claims.Issuer)
	require.Equal(t, want.Claims.Subject, got.Claims.Subject)
	require.ElementsMatch(t, want.Claims.Audience, got.Claims.Audience)
	require.Equal(t, want.Claims.Scope, got.Claims.Scope)
	require.Equal(t, want.Claims.ID, got.Claims.ID)
	require.Equal(t, want.Claims.ExpiresAt.Unix(), got.Claims.ExpiresAt.Unix())
	require.Equal(t, want.Claims.IssuedAt.Unix(), got.Claims.IssuedAt.Unix())
	require.Equal(t, want.RefreshContext, got.RefreshContext)
	require.Equal(t, want.RefreshTokenHash, got.RefreshTokenHash)
	require.Equal(t, want.AccessTokenHash, got.AccessTokenHash)
	require.True(t, want.ExpiresAt.Equal(got.ExpiresAt), "expires_at %s != %s", want.ExpiresAt, got.ExpiresAt)
	require.True(t, want.RefreshExpiresAt.Equal(got.RefreshExpiresAt), "refresh_expires_at %s != %s", want.RefreshExpiresAt, got.RefreshExpiresAt)
	require.True(t, want.CreatedAt.Equal(got.CreatedAt))
}
