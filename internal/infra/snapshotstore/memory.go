package snapshotstore

import (
	"context"
	"sync"
	"time"

	"github.com/tborlee/points-verts-web/internal/domain/walks"
	"github.com/tborlee/points-verts-web/pkg/util"
)

type memoryEntry struct {
	snapshot  walks.CachedSnapshot
	expiresAt time.Time
}

// MemoryStore keeps snapshots in process memory. Used for tests and when no
// durable backend is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     util.NowUTC,
	}
}

// Load implements walks.SnapshotStore.
func (s *MemoryStore) Load(_ context.Context, date string) (walks.CachedSnapshot, bool, error) {
	s.mu.RLock()
	entry, ok := s.entries[date]
	s.mu.RUnlock()
	if !ok {
		return walks.CachedSnapshot{}, false, nil
	}
	if hasExpired(entry.expiresAt, s.now()) {
		s.mu.Lock()
		delete(s.entries, date)
		s.mu.Unlock()
		return walks.CachedSnapshot{}, false, nil
	}
	snapshot := entry.snapshot
	snapshot.Records = walks.CloneRecords(entry.snapshot.Records)
	return snapshot, true, nil
}

// Save implements walks.SnapshotStore.
func (s *MemoryStore) Save(_ context.Context, snapshot walks.CachedSnapshot, retention time.Duration) error {
	stored := snapshot
	stored.Records = walks.CloneRecords(snapshot.Records)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[snapshot.Date] = memoryEntry{
		snapshot:  stored,
		expiresAt: expiry(s.now(), retention),
	}
	return nil
}

// Len reports the number of entries, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

var _ walks.SnapshotStore = (*MemoryStore)(nil)
