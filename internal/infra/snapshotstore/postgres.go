package snapshotstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tborlee/points-verts-web/internal/domain/walks"
	"github.com/tborlee/points-verts-web/pkg/util"
)

// pgQuerier is the subset of *pgxpool.Pool the store needs.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists snapshots as JSONB rows.
type PostgresStore struct {
	pool pgQuerier
	now  func() time.Time
}

// NewPostgresStore constructs the store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return newPostgresStore(pool)
}

func newPostgresStore(db pgQuerier) *PostgresStore {
	return &PostgresStore{pool: db, now: util.NowUTC}
}

// EnsureSchema creates the snapshot table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS walk_snapshots (
			date       TEXT PRIMARY KEY,
			fetched_at TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ,
			payload    JSONB NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create walk_snapshots: %w", err)
	}
	return nil
}

// Load implements walks.SnapshotStore.
func (s *PostgresStore) Load(ctx context.Context, date string) (walks.CachedSnapshot, bool, error) {
	var (
		payload   []byte
		expiresAt *time.Time
	)
	err := s.pool.QueryRow(ctx, `
		SELECT payload, expires_at
		FROM walk_snapshots
		WHERE date = $1
	`, date).Scan(&payload, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return walks.CachedSnapshot{}, false, nil
	}
	if err != nil {
		return walks.CachedSnapshot{}, false, err
	}
	if expiresAt != nil && hasExpired(*expiresAt, s.now()) {
		return walks.CachedSnapshot{}, false, nil
	}
	env, err := decode(payload)
	if err != nil {
		return walks.CachedSnapshot{}, false, err
	}
	return env.Snapshot, true, nil
}

// Save implements walks.SnapshotStore.
func (s *PostgresStore) Save(ctx context.Context, snapshot walks.CachedSnapshot, retention time.Duration) error {
	now := s.now()
	deadline := expiry(now, retention)
	payload, err := encode(snapshot, deadline)
	if err != nil {
		return err
	}
	var expiresAt *time.Time
	if !deadline.IsZero() {
		expiresAt = &deadline
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO walk_snapshots (date, fetched_at, expires_at, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (date) DO UPDATE SET
			fetched_at = EXCLUDED.fetched_at,
			expires_at = EXCLUDED.expires_at,
			payload = EXCLUDED.payload
	`, snapshot.Date, snapshot.FetchedAt, expiresAt, payload)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `DELETE FROM walk_snapshots WHERE expires_at IS NOT NULL AND expires_at <= $1`, now)
	return err
}

var _ walks.SnapshotStore = (*PostgresStore)(nil)
