package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/tokenrefresh/internal/refresh/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrConflict means the record changed since it was read.
	ErrConflict = errors.New("store: version conflict")
)

// AccessTokenStore persists token lineages by id. Records are only ever
// written whole; Put is a compare-and-swap on Version so concurrent
// read-modify-write cycles cannot overwrite each other, even across
// replicas sharing the store.
type AccessTokenStore interface {
	// Get returns the record for id or ErrNotFound.
	Get(ctx context.Context, id string) (domain.AccessTokenRecord, error)

	// Put writes rec and returns it with its new Version.
	//
	// Version 0 inserts and fails with ErrAlreadyExists if the id is taken.
	// Any other Version replaces the stored record only if the stored
	// Version still matches, otherwise ErrConflict; a missing record is
	// ErrNotFound.
	Put(ctx context.Context, rec domain.AccessTokenRecord) (domain.AccessTokenRecord, error)

	// Delete removes the record for id or returns ErrNotFound.
	Delete(ctx context.Context, id string) error

	// DeleteExpired removes lineages whose refresh lifetime ended before now
	// and reports how many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any underlying resources.
	Close() error
}
