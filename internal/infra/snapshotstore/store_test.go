package snapshotstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tborlee/points-verts-web/internal/domain/walks"
)

var baseTime = time.Date(2024, 5, 8, 7, 30, 0, 0, time.UTC)

func sampleSnapshot() walks.CachedSnapshot {
	km := 17
	return walks.CachedSnapshot{
		Date:      "2024-05-08",
		FetchedAt: baseTime,
		Records: []walks.WalkRecord{
			{
				ID:       "2714",
				Date:     "2024-05-08",
				Locality: "Waterloo",
				Status:   walks.StatusActive,
				Activity: walks.ActivityWalk,
				Location: walks.Coordinate{Latitude: 50.7148, Longitude: 4.3991},
				Contact:  &walks.Contact{FirstName: "Anne", Phone: "0470"},
				Amenities: walks.Amenities{
					ExtraTenKm: true,
					Bike:       true,
				},
				DistanceKm: &km,
			},
			{
				ID:       "2715",
				Date:     "2024-05-08",
				Locality: "Bruxelles",
				Status:   walks.StatusCancelled,
				Activity: walks.ActivityOrientation,
			},
		},
	}
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func TestCodecRejectsCorruptPayloads(t *testing.T) {
	payload, err := encode(sampleSnapshot(), baseTime.Add(time.Hour))
	require.NoError(t, err)
	env, err := decode(payload)
	require.NoError(t, err)
	require.Equal(t, sampleSnapshot(), env.Snapshot)
	require.True(t, env.ExpiresAt.Equal(baseTime.Add(time.Hour)))

	cases := map[string]string{
		"truncated":       `{"version":1,"snapshot":{`,
		"unknown version": `{"version":7,"snapshot":{"date":"2024-05-08","fetchedAt":"2024-05-08T07:30:00Z"}}`,
		"missing date":    `{"version":1,"snapshot":{"fetchedAt":"2024-05-08T07:30:00Z"}}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := decode([]byte(raw))
			require.ErrorIs(t, err, walks.ErrCorruptSnapshot)
		})
	}
}

func TestCodecDefaultsMissingRecords(t *testing.T) {
	env, err := decode([]byte(`{"version":1,"snapshot":{"date":"2024-05-08","fetchedAt":"2024-05-08T07:30:00Z"}}`))
	require.NoError(t, err)
	require.NotNil(t, env.Snapshot.Records)
	require.Empty(t, env.Snapshot.Records)
}

func TestMemoryStoreRoundTripAndExpiry(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: baseTime}
	store := NewMemoryStore()
	store.now = clk.Now

	_, found, err := store.Load(ctx, "2024-05-08")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, store.Save(ctx, sampleSnapshot(), time.Hour))
	got, found, err := store.Load(ctx, "2024-05-08")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, sampleSnapshot(), got)

	got.Records[0].Locality = "mutated"
	*got.Records[0].DistanceKm = 999
	again, _, err := store.Load(ctx, "2024-05-08")
	require.NoError(t, err)
	require.Equal(t, "Waterloo", again.Records[0].Locality)
	require.Equal(t, 17, *again.Records[0].DistanceKm)

	clk.now = baseTime.Add(time.Hour)
	_, found, err = store.Load(ctx, "2024-05-08")
	require.NoError(t, err)
	require.False(t, found)
	require.Zero(t, store.Len())
}

func TestMemoryStoreWithoutRetentionKeepsEntries(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: baseTime}
	store := NewMemoryStore()
	store.now = clk.Now

	require.NoError(t, store.Save(ctx, sampleSnapshot(), 0))
	clk.now = baseTime.Add(365 * 24 * time.Hour)
	_, found, err := store.Load(ctx, "2024-05-08")
	require.NoError(t, err)
	require.True(t, found)
}

func openTestSQLite(t *testing.T) (*SQLiteStore, *clock) {
	t.Helper()
	store, err := OpenSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "cache", "walks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	clk := &clock{now: baseTime}
	store.now = clk.Now
	return store, clk
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, _ := openTestSQLite(t)

	_, found, err := store.Load(ctx, "2024-05-08")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, store.Save(ctx, sampleSnapshot(), time.Hour))
	got, found, err := store.Load(ctx, "2024-05-08")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "2024-05-08", got.Date)
	require.True(t, got.FetchedAt.Equal(baseTime))
	require.Equal(t, sampleSnapshot().Records, got.Records)
}

func TestSQLiteStoreOverwritesAndExpires(t *testing.T) {
	ctx := context.Background()
	store, clk := openTestSQLite(t)

	require.NoError(t, store.Save(ctx, sampleSnapshot(), time.Hour))

	updated := sampleSnapshot()
	updated.FetchedAt = baseTime.Add(10 * time.Minute)
	updated.Records = updated.Records[:1]
	clk.now = updated.FetchedAt
	require.NoError(t, store.Save(ctx, updated, time.Hour))

	got, found, err := store.Load(ctx, "2024-05-08")
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, got.Records, 1)
	require.True(t, got.FetchedAt.Equal(updated.FetchedAt))

	clk.now = updated.FetchedAt.Add(time.Hour)
	_, found, err = store.Load(ctx, "2024-05-08")
	require.NoError(t, err)
	require.False(t, found)
}

func TestSQLiteStoreReportsCorruptRows(t *testing.T) {
	ctx := context.Background()
	store, _ := openTestSQLite(t)

	_, err := store.db.ExecContext(ctx,
		`INSERT INTO walk_snapshots (date, fetched_at, expires_at, payload) VALUES (?, ?, 0, ?)`,
		"2024-05-08", baseTime.Format(time.RFC3339), "not json",
	)
	require.NoError(t, err)

	_, found, err := store.Load(ctx, "2024-05-08")
	require.False(t, found)
	require.True(t, errors.Is(err, walks.ErrCorruptSnapshot))
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "walks.db")

	first, err := OpenSQLiteStore(ctx, path)
	require.NoError(t, err)
	require.NoError(t, first.Save(ctx, sampleSnapshot(), 0))
	require.NoError(t, first.Close())

	second, err := OpenSQLiteStore(ctx, path)
	require.NoError(t, err)
	defer second.Close()
	got, found, err := second.Load(ctx, "2024-05-08")
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, got.Records, 2)
}

func TestSanitizeEndpoint(t *testing.T) {
	require.Equal(t, "acct.r2.cloudflarestorage.com", sanitizeEndpoint("https://acct.r2.cloudflarestorage.com/bucket"))
	require.Equal(t, "localhost:9000", sanitizeEndpoint(" http://localhost:9000 "))
	require.Equal(t, "minio:9000", sanitizeEndpoint("minio:9000"))
}
