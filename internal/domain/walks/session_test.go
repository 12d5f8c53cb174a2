package walks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "github.com/tborlee/points-verts-web/pkg/errors"
)

func scenarioSource() *stubSource {
	return &stubSource{
		dates: []EventDate{
			{Date: day(2024, time.May, 1), WalkCount: 12},
			{Date: day(2024, time.May, 8), WalkCount: 4},
		},
		walks: map[string][]WalkRecord{
			"2024-05-01": {walk("old", StatusActive, 50.5, 4.5)},
			"2024-05-08": {
				walk("namur", StatusActive, 50.4669, 4.8675),
				walk("brussels", StatusCancelled, 50.85, 4.36),
				walk("liege", StatusModified, 50.6326, 5.5797),
				walk("waterloo", StatusActive, 50.7, 4.4),
			},
		},
	}
}

func newSessionUnderTest(provider WalkProvider, now time.Time) *Session {
	s := NewSession(provider, newTestLogger())
	s.now = func() time.Time { return now }
	return s
}

func TestSessionEndToEnd(t *testing.T) {
	source := scenarioSource()
	clock := &fakeClock{current: day(2024, time.May, 3)}
	fetcher := newFetcherUnderTest(source, newMemStore(), clock)
	session := newSessionUnderTest(fetcher, clock.Now())

	require.NoError(t, session.Start(context.Background(), nil))

	model := session.Snapshot()
	require.Equal(t, StateWaitingForLocation, model.State)
	require.NotNil(t, model.SelectedDate)
	require.Equal(t, day(2024, time.May, 8), *model.SelectedDate)
	require.Equal(t, 1, model.SelectedIndex)
	require.True(t, model.HasPrevious)
	require.False(t, model.HasNext)
	require.False(t, model.Loading)
	require.False(t, model.Empty)
	require.Equal(t, []string{"namur", "liege", "waterloo", "brussels"}, ids(model.Walks))
	for _, w := range model.Walks {
		require.Nil(t, w.DistanceKm)
	}

	require.NoError(t, session.SetLocation(Coordinate{Latitude: 50.85, Longitude: 4.35}))
	model = session.Snapshot()
	require.Equal(t, StateReady, model.State)
	require.Equal(t, []string{"waterloo", "namur", "liege", "brussels"}, ids(model.Walks))
	for _, w := range model.Walks {
		require.NotNil(t, w.DistanceKm)
		require.GreaterOrEqual(t, *w.DistanceKm, 0)
	}
	require.Equal(t, 17, *model.Walks[0].DistanceKm)
	require.Equal(t, 56, *model.Walks[1].DistanceKm)
	require.Equal(t, 90, *model.Walks[2].DistanceKm)
	require.Equal(t, 1, *model.Walks[3].DistanceKm)

	require.NoError(t, session.SetLocation(Coordinate{Latitude: 50.85, Longitude: 4.35}))
	require.Equal(t, ids(model.Walks), ids(session.Snapshot().Walks))
}

func TestSessionLocationConflict(t *testing.T) {
	fetcher := newFetcherUnderTest(scenarioSource(), nil, &fakeClock{current: day(2024, time.May, 3)})
	session := newSessionUnderTest(fetcher, day(2024, time.May, 3))
	require.NoError(t, session.Start(context.Background(), nil))
	require.NoError(t, session.SetLocation(Coordinate{Latitude: 50.85, Longitude: 4.35}))

	err := session.SetLocation(Coordinate{Latitude: 51, Longitude: 4})
	require.True(t, apperrors.IsCode(err, CodeLocationConflict))
	require.Equal(t, 50.85, session.Snapshot().Location.Latitude)
}

func TestSessionRejectsInvalidLocation(t *testing.T) {
	session := newSessionUnderTest(nil, day(2024, time.May, 3))
	err := session.SetLocation(Coordinate{Latitude: nanValue(), Longitude: 4})
	require.True(t, apperrors.IsCode(err, CodeInvalidCoordinate))
	require.Nil(t, session.Snapshot().Location)
}

func TestSessionDatesUnavailable(t *testing.T) {
	source := &stubSource{datesErr: errors.New("connection refused")}
	fetcher := newFetcherUnderTest(source, nil, &fakeClock{})
	session := newSessionUnderTest(fetcher, day(2024, time.May, 3))

	err := session.Start(context.Background(), nil)
	require.True(t, apperrors.IsCode(err, CodeDataUnavailable))

	model := session.Snapshot()
	require.Equal(t, StateFailed, model.State)
	require.True(t, model.DataUnavailable)
	require.False(t, model.Loading)
	require.False(t, model.Empty)
	require.Empty(t, model.Walks)
}

func TestSessionWalksUnavailable(t *testing.T) {
	source := scenarioSource()
	source.walksErr = errors.New("bad gateway")
	fetcher := newFetcherUnderTest(source, nil, &fakeClock{current: day(2024, time.May, 3)})
	session := newSessionUnderTest(fetcher, day(2024, time.May, 3))

	err := session.Start(context.Background(), nil)
	require.Error(t, err)

	model := session.Snapshot()
	require.Equal(t, StateFailed, model.State)
	require.True(t, model.DataUnavailable)
	require.Equal(t, 1, model.SelectedIndex)

	source.mu.Lock()
	source.walksErr = nil
	source.mu.Unlock()
	require.NoError(t, session.Select(context.Background(), model.SelectedIndex))
	require.False(t, session.Snapshot().DataUnavailable)
	require.Len(t, session.Snapshot().Walks, 4)
}

func TestSessionRequestedDateNotFound(t *testing.T) {
	source := scenarioSource()
	fetcher := newFetcherUnderTest(source, nil, &fakeClock{current: day(2024, time.May, 3)})
	session := newSessionUnderTest(fetcher, day(2024, time.May, 3))

	requested := day(2024, time.May, 4)
	require.NoError(t, session.Start(context.Background(), &requested))

	model := session.Snapshot()
	require.Equal(t, NoSelection, model.SelectedIndex)
	require.Nil(t, model.SelectedDate)
	require.True(t, model.Empty)
	require.False(t, model.DataUnavailable)
	require.Zero(t, source.calls())
}

func TestSessionRequestedPastDate(t *testing.T) {
	source := scenarioSource()
	fetcher := newFetcherUnderTest(source, nil, &fakeClock{current: day(2024, time.May, 3)})
	session := newSessionUnderTest(fetcher, day(2024, time.May, 3))

	requested := day(2024, time.May, 1)
	require.NoError(t, session.Start(context.Background(), &requested))
	require.Equal(t, []string{"old"}, ids(session.Snapshot().Walks))
}

func TestSessionEmptyListIsNotAnError(t *testing.T) {
	source := scenarioSource()
	source.walks["2024-05-08"] = nil
	fetcher := newFetcherUnderTest(source, nil, &fakeClock{current: day(2024, time.May, 3)})
	session := newSessionUnderTest(fetcher, day(2024, time.May, 3))

	require.NoError(t, session.Start(context.Background(), nil))
	model := session.Snapshot()
	require.True(t, model.Empty)
	require.False(t, model.DataUnavailable)
	require.NotNil(t, model.Walks)
}

func TestSessionNavigate(t *testing.T) {
	source := scenarioSource()
	fetcher := newFetcherUnderTest(source, nil, &fakeClock{current: day(2024, time.May, 3)})
	session := newSessionUnderTest(fetcher, day(2024, time.May, 3))
	require.NoError(t, session.Start(context.Background(), nil))
	require.NoError(t, session.SetLocation(Coordinate{Latitude: 50.85, Longitude: 4.35}))

	require.NoError(t, session.Navigate(context.Background(), -1))
	model := session.Snapshot()
	require.Equal(t, 0, model.SelectedIndex)
	require.False(t, model.HasPrevious)
	require.True(t, model.HasNext)
	require.Equal(t, []string{"old"}, ids(model.Walks))
	require.NotNil(t, model.Walks[0].DistanceKm)
	require.Equal(t, StateReady, model.State)

	err := session.Navigate(context.Background(), -1)
	require.True(t, apperrors.IsCode(err, CodeInvalidInput))
	require.Equal(t, 0, session.Snapshot().SelectedIndex)

	require.NoError(t, session.Navigate(context.Background(), 1))
	require.Equal(t, 1, session.Snapshot().SelectedIndex)
	// Second visit to the same date is served from cache.
	require.Equal(t, 2, source.calls())
	require.NoError(t, session.Navigate(context.Background(), -1))
	require.Equal(t, 2, source.calls())
}

func TestSessionDiscardsSupersededFetch(t *testing.T) {
	provider := newGatedProvider([]EventDate{
		{Date: day(2024, time.May, 1)},
		{Date: day(2024, time.May, 8)},
	})
	session := newSessionUnderTest(provider, day(2024, time.May, 3))
	session.dates = provider.dates

	slowDone := make(chan error, 1)
	go func() {
		slowDone <- session.Select(context.Background(), 0)
	}()
	provider.waitStarted("2024-05-01")

	fastDone := make(chan error, 1)
	go func() {
		fastDone <- session.Select(context.Background(), 1)
	}()
	provider.waitStarted("2024-05-08")
	provider.release("2024-05-08", []WalkRecord{walk("new", StatusActive, 50, 4)})
	require.NoError(t, <-fastDone)

	provider.release("2024-05-01", []WalkRecord{walk("stale", StatusActive, 50, 4)})
	require.NoError(t, <-slowDone)

	model := session.Snapshot()
	require.Equal(t, 1, model.SelectedIndex)
	require.Equal(t, []string{"new"}, ids(model.Walks))
}

func TestSessionLocationBeforeWalksArrive(t *testing.T) {
	provider := newGatedProvider([]EventDate{{Date: day(2024, time.May, 8)}})
	session := newSessionUnderTest(provider, day(2024, time.May, 3))

	done := make(chan error, 1)
	go func() {
		done <- session.Start(context.Background(), nil)
	}()
	provider.waitStarted("2024-05-08")
	require.True(t, session.Snapshot().Loading)
	require.Equal(t, StateResolvingWalks, session.Snapshot().State)

	require.NoError(t, session.SetLocation(Coordinate{Latitude: 50.85, Longitude: 4.35}))
	require.Equal(t, StateResolvingWalks, session.Snapshot().State)

	provider.release("2024-05-08", []WalkRecord{
		walk("far", StatusActive, 50.4669, 4.8675),
		walk("near", StatusActive, 50.7, 4.4),
	})
	require.NoError(t, <-done)

	model := session.Snapshot()
	require.Equal(t, StateReady, model.State)
	require.Equal(t, []string{"near", "far"}, ids(model.Walks))
}

func TestSessionRequestLocationOutcomes(t *testing.T) {
	newStarted := func(t *testing.T) *Session {
		fetcher := newFetcherUnderTest(scenarioSource(), nil, &fakeClock{current: day(2024, time.May, 3)})
		session := newSessionUnderTest(fetcher, day(2024, time.May, 3))
		require.NoError(t, session.Start(context.Background(), nil))
		return session
	}

	t.Run("denied is silent", func(t *testing.T) {
		session := newStarted(t)
		err := session.RequestLocation(context.Background(), LocatorFunc(func(context.Context) (Coordinate, error) {
			return Coordinate{}, ErrPermissionDenied
		}))
		require.NoError(t, err)
		model := session.Snapshot()
		require.True(t, model.LocationDenied)
		require.False(t, model.LocationUnavailable)
		require.Equal(t, StateReady, model.State)
		require.Nil(t, model.Walks[0].DistanceKm)
	})

	t.Run("failure is advisory", func(t *testing.T) {
		session := newStarted(t)
		err := session.RequestLocation(context.Background(), LocatorFunc(func(context.Context) (Coordinate, error) {
			return Coordinate{}, errors.New("position timeout")
		}))
		require.True(t, apperrors.IsCode(err, CodeLocationUnavailable))
		model := session.Snapshot()
		require.True(t, model.LocationUnavailable)
		require.False(t, model.DataUnavailable)
		require.Len(t, model.Walks, 4)
	})

	t.Run("requested once", func(t *testing.T) {
		session := newStarted(t)
		calls := 0
		locator := LocatorFunc(func(context.Context) (Coordinate, error) {
			calls++
			return Coordinate{Latitude: 50.85, Longitude: 4.35}, nil
		})
		require.NoError(t, session.RequestLocation(context.Background(), locator))
		require.NoError(t, session.RequestLocation(context.Background(), locator))
		require.Equal(t, 1, calls)
		require.Equal(t, "waterloo", session.Snapshot().Walks[0].ID)
	})

	t.Run("grant after denial", func(t *testing.T) {
		session := newStarted(t)
		require.NoError(t, session.RequestLocation(context.Background(), LocatorFunc(func(context.Context) (Coordinate, error) {
			return Coordinate{}, ErrPermissionDenied
		})))
		require.NoError(t, session.RequestLocation(context.Background(), LocatorFunc(func(context.Context) (Coordinate, error) {
			return Coordinate{Latitude: 50.85, Longitude: 4.35}, nil
		})))
		model := session.Snapshot()
		require.False(t, model.LocationDenied)
		require.NotNil(t, model.Location)
	})
}

func TestSessionSnapshotIsACopy(t *testing.T) {
	fetcher := newFetcherUnderTest(scenarioSource(), nil, &fakeClock{current: day(2024, time.May, 3)})
	session := newSessionUnderTest(fetcher, day(2024, time.May, 3))
	require.NoError(t, session.Start(context.Background(), nil))

	model := session.Snapshot()
	model.Walks[0].Locality = "mutated"
	model.Walks[0].DistanceKm = km(3)

	again := session.Snapshot()
	require.Equal(t, "Locality namur", again.Walks[0].Locality)
	require.Nil(t, again.Walks[0].DistanceKm)
}

type gatedProvider struct {
	dates []EventDate

	mu      sync.Mutex
	started map[string]chan struct{}
	results map[string]chan []WalkRecord
}

func newGatedProvider(dates []EventDate) *gatedProvider {
	p := &gatedProvider{
		dates:   dates,
		started: make(map[string]chan struct{}),
		results: make(map[string]chan []WalkRecord),
	}
	for _, d := range dates {
		key := d.Date.Format("2006-01-02")
		p.started[key] = make(chan struct{})
		p.results[key] = make(chan []WalkRecord, 1)
	}
	return p
}

func (p *gatedProvider) Dates(context.Context) ([]EventDate, error) {
	return append([]EventDate(nil), p.dates...), nil
}

func (p *gatedProvider) Walks(_ context.Context, date time.Time) ([]WalkRecord, error) {
	key := date.Format("2006-01-02")
	p.mu.Lock()
	started, results := p.started[key], p.results[key]
	p.mu.Unlock()
	close(started)
	return <-results, nil
}

func (p *gatedProvider) waitStarted(key string) {
	p.mu.Lock()
	started := p.started[key]
	p.mu.Unlock()
	<-started
}

func (p *gatedProvider) release(key string, records []WalkRecord) {
	p.mu.Lock()
	results := p.results[key]
	p.mu.Unlock()
	results <- records
}
