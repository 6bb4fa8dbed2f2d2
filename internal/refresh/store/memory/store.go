// Package memory is an in-process AccessTokenStore. It is the default for
// tests and single-replica development; state is lost on restart.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aussiebroadwan/tokenrefresh/internal/refresh/domain"
	"github.com/aussiebroadwan/tokenrefresh/internal/refresh/store"
)

type Store struct {
	mu      sync.RWMutex
	records map[string]domain.AccessTokenRecord
}

var _ store.AccessTokenStore = (*Store)(nil)

func NewStore() *Store {
	return &Store{records: map[string]domain.AccessTokenRecord{}}
}

func (s *Store) Get(_ context.Context, id string) (domain.AccessTokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return domain.AccessTokenRecord{}, store.ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *Store) Put(_ context.Context, rec domain.AccessTokenRecord) (domain.AccessTokenRecord, error) {
	if rec.ID == "" {
		return domain.AccessTokenRecord{}, fmt.Errorf("store: record without id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, exists := s.records[rec.ID]
	switch {
	case rec.Version == 0 && exists:
		return domain.AccessTokenRecord{}, store.ErrAlreadyExists
	case rec.Version != 0 && !exists:
		return domain.AccessTokenRecord{}, store.ErrNotFound
	case rec.Version != 0 && cur.Version != rec.Version:
		return domain.AccessTokenRecord{}, store.ErrConflict
	}

	next := rec.Clone()
	next.Version = rec.Version + 1
	s.records[rec.ID] = next
	return next.Clone(), nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.records, id)
	return nil
}

func (s *Store) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, rec := range s.records {
		if rec.RefreshExpired(now) {
			delete(s.records, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }
