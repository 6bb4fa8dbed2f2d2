// Package sqlite persists token lineages in a single sqlite file. It suits a
// single replica that must survive restarts; use the redis driver to share
// state between replicas.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/aussiebroadwan/tokenrefresh/internal/refresh/domain"
	"github.com/aussiebroadwan/tokenrefresh/internal/refresh/store"
	"github.com/aussiebroadwan/tokenrefresh/pkg/jwtx"
)

type Store struct {
	db  *sql.DB
	dsn string
}

var _ store.AccessTokenStore = (*Store)(nil)

// NewStore opens the database at dsn. Migrations are not applied; call
// ApplyMigrations before first use.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// sqlite allows one writer; a single connection turns lock contention
	// into queueing instead of SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(), `PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, dsn: dsn}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const selectRecord = `
SELECT id, claims, refresh_context, refresh_token_hash, access_token_hash,
       expires_at, refresh_expires_at, version, created_at, updated_at
FROM access_token_records
WHERE id = ?`

func (s *Store) Get(ctx context.Context, id string) (domain.AccessTokenRecord, error) {
	var (
		row            recordRow
		claims, refCtx string
	)
	err := s.db.QueryRowContext(ctx, selectRecord, id).Scan(
		&row.ID, &claims, &refCtx, &row.RefreshTokenHash, &row.AccessTokenHash,
		&row.ExpiresAt, &row.RefreshExpiresAt, &row.Version, &row.CreatedAt, &row.UpdatedAt,
	)
	if err != nil {
		return domain.AccessTokenRecord{}, mapNotFound(err)
	}
	row.Claims = claims
	row.RefreshContext = refCtx
	return row.toDomain()
}

const insertRecord = `
INSERT INTO access_token_records (
    id, claims, refresh_context, refresh_token_hash, access_token_hash,
    expires_at, refresh_expires_at, version, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO NOTHING`

const updateRecord = `
UPDATE access_token_records
SET claims = ?, refresh_context = ?, refresh_token_hash = ?, access_token_hash = ?,
    expires_at = ?, refresh_expires_at = ?, version = ?, updated_at = ?
WHERE id = ? AND version = ?`

// Put is a single conditional statement, so the version check and the write
// are atomic without an explicit transaction.
func (s *Store) Put(ctx context.Context, rec domain.AccessTokenRecord) (domain.AccessTokenRecord, error) {
	if rec.ID == "" {
		return domain.AccessTokenRecord{}, fmt.Errorf("store: record without id")
	}

	next := rec.Clone()
	next.Version = rec.Version + 1

	row, err := fromDomain(next)
	if err != nil {
		return domain.AccessTokenRecord{}, err
	}

	var res sql.Result
	if rec.Version == 0 {
		res, err = s.db.ExecContext(ctx, insertRecord,
			row.ID, row.Claims, row.RefreshContext, row.RefreshTokenHash, row.AccessTokenHash,
			row.ExpiresAt, row.RefreshExpiresAt, row.Version, row.CreatedAt, row.UpdatedAt,
		)
	} else {
		res, err = s.db.ExecContext(ctx, updateRecord,
			row.Claims, row.RefreshContext, row.RefreshTokenHash, row.AccessTokenHash,
			row.ExpiresAt, row.RefreshExpiresAt, row.Version, row.UpdatedAt,
			row.ID, rec.Version,
		)
	}
	if err != nil {
		return domain.AccessTokenRecord{}, fmt.Errorf("store: sqlite put: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return domain.AccessTokenRecord{}, err
	}
	if n == 1 {
		return next, nil
	}

	if rec.Version == 0 {
		return domain.AccessTokenRecord{}, store.ErrAlreadyExists
	}
	return domain.AccessTokenRecord{}, s.missOrConflict(ctx, rec.ID)
}

// missOrConflict explains why a conditional update touched no rows.
func (s *Store) missOrConflict(ctx context.Context, id string) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM access_token_records WHERE id = ?`, id).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return store.ErrNotFound
	case err != nil:
		return err
	default:
		return store.ErrConflict
	}
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM access_token_records WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
DELETE FROM access_token_records
WHERE refresh_expires_at IS NOT NULL AND refresh_expires_at < ?`, now.UnixNano())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

// recordRow mirrors a table row. Times are unix nanoseconds; a lineage
// without a refresh deadline stores NULL.
type recordRow struct {
	ID               string
	Claims           string
	RefreshContext   string
	RefreshTokenHash string
	AccessTokenHash  string
	ExpiresAt        int64
	RefreshExpiresAt sql.NullInt64
	Version          int64
	CreatedAt        int64
	UpdatedAt        int64
}

func fromDomain(r domain.AccessTokenRecord) (recordRow, error) {
	claims, err := json.Marshal(r.Claims)
	if err != nil {
		return recordRow{}, fmt.Errorf("store: encode claims: %w", err)
	}

	refCtx := r.RefreshContext
	if refCtx == nil {
		refCtx = map[string]string{}
	}
	refCtxJSON, err := json.Marshal(refCtx)
	if err != nil {
		return recordRow{}, fmt.Errorf("store: encode refresh context: %w", err)
	}

	row := recordRow{
		ID:               r.ID,
		Claims:           string(claims),
		RefreshContext:   string(refCtxJSON),
		RefreshTokenHash: r.RefreshTokenHash,
		AccessTokenHash:  r.AccessTokenHash,
		ExpiresAt:        r.ExpiresAt.UnixNano(),
		Version:          r.Version,
		CreatedAt:        r.CreatedAt.UnixNano(),
		UpdatedAt:        r.UpdatedAt.UnixNano(),
	}
	if !r.RefreshExpiresAt.IsZero() {
		row.RefreshExpiresAt = sql.NullInt64{Int64: r.RefreshExpiresAt.UnixNano(), Valid: true}
	}
	return row, nil
}

func (row recordRow) toDomain() (domain.AccessTokenRecord, error) {
	var claims jwtx.Claims
	if err := json.Unmarshal([]byte(row.Claims), &claims); err != nil {
		return domain.AccessTokenRecord{}, fmt.Errorf("store: decode claims: %w", err)
	}

	var refCtx map[string]string
	if err := json.Unmarshal([]byte(row.RefreshContext), &refCtx); err != nil {
		return domain.AccessTokenRecord{}, fmt.Errorf("store: decode refresh context: %w", err)
	}
	if len(refCtx) == 0 {
		refCtx = nil
	}

	rec := domain.AccessTokenRecord{
		ID:               row.ID,
		Claims:           claims,
		RefreshContext:   refCtx,
		RefreshTokenHash: row.RefreshTokenHash,
		AccessTokenHash:  row.AccessTokenHash,
		ExpiresAt:        fromNanos(row.ExpiresAt),
		Version:          row.Version,
		CreatedAt:        fromNanos(row.CreatedAt),
		UpdatedAt:        fromNanos(row.UpdatedAt),
	}
	if row.RefreshExpiresAt.Valid {
		rec.RefreshExpiresAt = fromNanos(row.RefreshExpiresAt.Int64)
	}
	return rec, nil
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
