package walks

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func km(v int) *int {
	return &v
}

func walk(id string, status Status, lat, lon float64) WalkRecord {
	return WalkRecord{
		ID:       id,
		Locality: "Locality " + id,
		Province: "Namur",
		Location: Coordinate{Latitude: lat, Longitude: lon},
		Status:   status,
		Activity: ActivityWalk,
	}
}

func ids(records []WalkRecord) []string {
	out := make([]string, len(records))
	for i, rec := range records {
		out[i] = rec.ID
	}
	return out
}

type fakeClock struct {
	mu      sync.Mutex
	current time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.current = c.current.Add(d)
	c.mu.Unlock()
}

type stubSource struct {
	mu         sync.Mutex
	dates      []EventDate
	datesErr   error
	walks      map[string][]WalkRecord
	walksErr   error
	dateCalls  int
	walkCalls  int
	lastDate   time.Time
	beforeWalk func(date time.Time)
}

func (s *stubSource) FetchDates(ctx context.Context) ([]EventDate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dateCalls++
	if s.datesErr != nil {
		return nil, s.datesErr
	}
	return append([]EventDate(nil), s.dates...), nil
}

func (s *stubSource) FetchWalks(ctx context.Context, date time.Time) ([]WalkRecord, error) {
	if s.beforeWalk != nil {
		s.beforeWalk(date)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.walkCalls++
	s.lastDate = date
	if s.walksErr != nil {
		return nil, s.walksErr
	}
	return CloneRecords(s.walks[date.Format("2006-01-02")]), nil
}

func (s *stubSource) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.walkCalls
}

type memStore struct {
	mu        sync.Mutex
	snapshots map[string]CachedSnapshot
	loadErr   error
	saveErr   error
	saves     int
}

func newMemStore() *memStore {
	return &memStore{snapshots: make(map[string]CachedSnapshot)}
}

func (m *memStore) Load(_ context.Context, date string) (CachedSnapshot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return CachedSnapshot{}, false, m.loadErr
	}
	snap, ok := m.snapshots[date]
	return snap, ok, nil
}

func (m *memStore) Save(_ context.Context, snapshot CachedSnapshot, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.snapshots[snapshot.Date] = snapshot
	return nil
}

func nanValue() float64 {
	return math.NaN()
}
