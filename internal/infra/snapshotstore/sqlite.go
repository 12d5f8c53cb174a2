package snapshotstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tborlee/points-verts-web/internal/domain/walks"
	"github.com/tborlee/points-verts-web/pkg/util"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS walk_snapshots (
	date       TEXT PRIMARY KEY,
	fetched_at TEXT NOT NULL,
	expires_at INTEGER NOT NULL DEFAULT 0,
	payload    TEXT NOT NULL
)`

// SQLiteStore persists snapshots in a local SQLite file. It is the default
// durable backend when no server-backed store is configured.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLiteStore opens (creating if needed) the database at path and applies
// the schema.
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps the pragmas below in effect for every statement.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db, now: util.NowUTC}
	if err := store.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) init(ctx context.Context) error {
	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := s.db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("create sqlite schema: %w", err)
	}
	return nil
}

// Load implements walks.SnapshotStore.
func (s *SQLiteStore) Load(ctx context.Context, date string) (walks.CachedSnapshot, bool, error) {
	var (
		payload   string
		expiresAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, expires_at FROM walk_snapshots WHERE date = ?`, date,
	).Scan(&payload, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return walks.CachedSnapshot{}, false, nil
	}
	if err != nil {
		return walks.CachedSnapshot{}, false, fmt.Errorf("load snapshot %s: %w", date, err)
	}
	if expiresAt > 0 && hasExpired(time.Unix(0, expiresAt), s.now()) {
		return walks.CachedSnapshot{}, false, nil
	}
	env, err := decode([]byte(payload))
	if err != nil {
		return walks.CachedSnapshot{}, false, err
	}
	return env.Snapshot, true, nil
}

// Save implements walks.SnapshotStore. Expired rows are pruned on every write.
func (s *SQLiteStore) Save(ctx context.Context, snapshot walks.CachedSnapshot, retention time.Duration) error {
	now := s.now()
	deadline := expiry(now, retention)
	payload, err := encode(snapshot, deadline)
	if err != nil {
		return err
	}
	var expiresAt int64
	if !deadline.IsZero() {
		expiresAt = deadline.UnixNano()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO walk_snapshots (date, fetched_at, expires_at, payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			fetched_at = excluded.fetched_at,
			expires_at = excluded.expires_at,
			payload = excluded.payload
	`, snapshot.Date, snapshot.FetchedAt.UTC().Format(time.RFC3339Nano), expiresAt, string(payload))
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", snapshot.Date, err)
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM walk_snapshots WHERE expires_at > 0 AND expires_at <= ?`, now.UnixNano(),
	); err != nil {
		return fmt.Errorf("prune snapshots: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ walks.SnapshotStore = (*SQLiteStore)(nil)
