package walks

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	apperrors "github.com/tborlee/points-verts-web/pkg/errors"
	"github.com/tborlee/points-verts-web/pkg/metrics"
	"github.com/tborlee/points-verts-web/pkg/util"
)

// Source is the upstream open-data API.
type Source interface {
	FetchDates(ctx context.Context) ([]EventDate, error)
	FetchWalks(ctx context.Context, date time.Time) ([]WalkRecord, error)
}

// SnapshotStore persists fetched walk lists so they survive a restart.
type SnapshotStore interface {
	Load(ctx context.Context, date string) (CachedSnapshot, bool, error)
	Save(ctx context.Context, snapshot CachedSnapshot, retention time.Duration) error
}

// CachedFetcher serves walk lists from a freshness-bounded cache and refreshes
// them from the upstream source when stale.
type CachedFetcher struct {
	source  Source
	store   SnapshotStore
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger
	metrics *metrics.CacheCounters

	mu      sync.Mutex
	entries map[string]CachedSnapshot
	group   singleflight.Group
}

// NewCachedFetcher wires the fetcher. A non-positive CacheTTL falls back to
// DefaultCacheTTL.
func NewCachedFetcher(cfg Config, source Source, store SnapshotStore, counters *metrics.CacheCounters, logger *slog.Logger) *CachedFetcher {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if counters == nil {
		counters = &metrics.CacheCounters{}
	}
	return &CachedFetcher{
		source:  source,
		store:   store,
		ttl:     ttl,
		now:     util.NowUTC,
		logger:  logger.With("component", "walks.fetcher"),
		metrics: counters,
		entries: make(map[string]CachedSnapshot),
	}
}

// Dates lists the known event dates. They are not cached.
func (f *CachedFetcher) Dates(ctx context.Context) ([]EventDate, error) {
	dates, err := f.source.FetchDates(ctx)
	if err != nil {
		f.metrics.Failure()
		return nil, apperrors.Wrap(CodeDataUnavailable, "failed to fetch event dates", err)
	}
	return dates, nil
}

// Walks returns the walks scheduled on date's calendar day. The returned slice
// is a private copy.
func (f *CachedFetcher) Walks(ctx context.Context, date time.Time) ([]WalkRecord, error) {
	key := util.DayKey(date)
	if snap, ok := f.lookup(ctx, key); ok {
		f.metrics.Hit()
		return CloneRecords(snap.Records), nil
	}
	f.metrics.Miss()

	// The shared fetch outlives any single caller; the upstream client
	// timeout bounds it.
	fetchCtx := context.WithoutCancel(ctx)
	results := f.group.DoChan(key, func() (any, error) {
		return f.refresh(fetchCtx, key, date)
	})
	select {
	case <-ctx.Done():
		return nil, apperrors.Wrap(CodeDataUnavailable, "walk fetch abandoned", ctx.Err())
	case res := <-results:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			f.logger.Debug("walk fetch coalesced", "date", key)
		}
		return CloneRecords(res.Val.(CachedSnapshot).Records), nil
	}
}

// Stats reports cache counters.
func (f *CachedFetcher) Stats() metrics.CacheStats {
	return f.metrics.Snapshot()
}

func (f *CachedFetcher) lookup(ctx context.Context, key string) (CachedSnapshot, bool) {
	f.mu.Lock()
	snap, ok := f.entries[key]
	f.mu.Unlock()
	if ok && f.fresh(snap) {
		return snap, true
	}
	if f.store == nil {
		return CachedSnapshot{}, false
	}

	stored, found, err := f.store.Load(ctx, key)
	if err != nil {
		f.logger.Warn("snapshot load failed, treating as cache miss", "date", key, "error", err)
		return CachedSnapshot{}, false
	}
	if !found || !f.fresh(stored) {
		return CachedSnapshot{}, false
	}

	f.mu.Lock()
	if current, ok := f.entries[key]; !ok || current.FetchedAt.Before(stored.FetchedAt) {
		f.entries[key] = stored
	}
	f.mu.Unlock()
	return stored, true
}

func (f *CachedFetcher) refresh(ctx context.Context, key string, date time.Time) (CachedSnapshot, error) {
	f.metrics.Fetch()
	records, err := f.source.FetchWalks(ctx, date)
	if err != nil {
		f.metrics.Failure()
		return CachedSnapshot{}, apperrors.Wrap(CodeDataUnavailable, "failed to fetch walks", err)
	}
	if records == nil {
		records = []WalkRecord{}
	}
	snap := CachedSnapshot{
		Date:      key,
		FetchedAt: f.now(),
		Records:   CloneRecords(records),
	}

	f.mu.Lock()
	f.entries[key] = snap
	f.mu.Unlock()

	if f.store != nil {
		if err := f.store.Save(ctx, snap, f.ttl); err != nil {
			f.logger.Warn("snapshot persist failed", "date", key, "error", err)
		}
	}
	f.logger.Info("walks fetched", "date", key, "records", len(records))
	return snap, nil
}

func (f *CachedFetcher) fresh(snap CachedSnapshot) bool {
	age := f.now().Sub(snap.FetchedAt)
	return age >= 0 && age < f.ttl
}
