package walks

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	apperrors "github.com/tborlee/points-verts-web/pkg/errors"
	"github.com/tborlee/points-verts-web/pkg/util"
)

// State is a step of the ranking session lifecycle.
type State string

const (
	StateIdle               State = "idle"
	StateResolvingDates     State = "resolving_dates"
	StateResolvingWalks     State = "resolving_walks"
	StateWaitingForLocation State = "waiting_for_location"
	StateReady              State = "ready"
	StateFailed             State = "failed"
)

// WalkProvider supplies event dates and walk lists, typically a CachedFetcher.
type WalkProvider interface {
	Dates(ctx context.Context) ([]EventDate, error)
	Walks(ctx context.Context, date time.Time) ([]WalkRecord, error)
}

// Locator obtains the device position.
type Locator interface {
	Locate(ctx context.Context) (Coordinate, error)
}

// LocatorFunc adapts a function to Locator.
type LocatorFunc func(ctx context.Context) (Coordinate, error)

func (f LocatorFunc) Locate(ctx context.Context) (Coordinate, error) { return f(ctx) }

// ReadModel is what the presentation layer renders. It is always a copy.
type ReadModel struct {
	State               State        `json:"state"`
	Dates               []EventDate  `json:"dates"`
	SelectedIndex       int          `json:"selectedIndex"`
	SelectedDate        *time.Time   `json:"selectedDate,omitempty"`
	HasPrevious         bool         `json:"hasPrevious"`
	HasNext             bool         `json:"hasNext"`
	Walks               []WalkRecord `json:"walks"`
	Location            *Coordinate  `json:"location,omitempty"`
	Loading             bool         `json:"loading"`
	Empty               bool         `json:"empty"`
	LocationDenied      bool         `json:"locationDenied"`
	LocationUnavailable bool         `json:"locationUnavailable"`
	DataUnavailable     bool         `json:"dataUnavailable"`
}

// Session resolves, fetches and ranks walks for one visitor. Fetches are
// tagged with a generation so results for a superseded selection are dropped.
type Session struct {
	provider WalkProvider
	logger   *slog.Logger
	now      func() time.Time

	mu                  sync.Mutex
	state               State
	dates               []EventDate
	index               int
	walks               []WalkRecord
	location            *Coordinate
	locating            bool
	locationDenied      bool
	locationUnavailable bool
	dataUnavailable     bool
	generation          uint64
}

// NewSession creates an idle session.
func NewSession(provider WalkProvider, logger *slog.Logger) *Session {
	return &Session{
		provider: provider,
		logger:   logger.With("component", "walks.session"),
		now:      util.NowUTC,
		state:    StateIdle,
		index:    NoSelection,
	}
}

// Start loads the event dates, resolves the current one and loads its walks.
// A nil requested date selects the nearest upcoming date.
func (s *Session) Start(ctx context.Context, requested *time.Time) error {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.state = StateResolvingDates
	s.dataUnavailable = false
	s.walks = nil
	s.mu.Unlock()

	dates, err := s.provider.Dates(ctx)

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		s.logger.Debug("discarding superseded date list")
		return nil
	}
	if err != nil {
		s.failLocked()
		s.mu.Unlock()
		s.logger.Error("event dates unavailable", "error", err)
		return err
	}
	s.dates = dates
	idx := ResolveDateIndex(dates, requested, s.now())
	if idx == NoSelection {
		s.index = NoSelection
		s.walks = []WalkRecord{}
		s.state = StateReady
		s.mu.Unlock()
		s.logger.Info("no event date selected", "dates", len(dates), "requested", requested != nil)
		return nil
	}
	s.mu.Unlock()

	return s.Select(ctx, idx)
}

// Select switches to the date at idx, discarding the current list.
func (s *Session) Select(ctx context.Context, idx int) error {
	s.mu.Lock()
	if idx < 0 || idx >= len(s.dates) {
		s.mu.Unlock()
		return apperrors.Wrap(CodeInvalidInput, "date index out of range", nil)
	}
	s.generation++
	gen := s.generation
	s.index = idx
	s.walks = nil
	s.dataUnavailable = false
	s.state = StateResolvingWalks
	date := s.dates[idx].Date
	s.mu.Unlock()

	records, err := s.provider.Walks(ctx, date)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		s.logger.Debug("discarding superseded walk list", "date", util.DayKey(date))
		return nil
	}
	if err != nil {
		s.failLocked()
		s.logger.Error("walks unavailable", "date", util.DayKey(date), "error", err)
		return err
	}
	if s.location != nil {
		if err := AnnotateDistances(*s.location, records); err != nil {
			s.failLocked()
			return err
		}
	}
	Sort(records)
	s.walks = records
	s.settleLocked()
	return nil
}

// Navigate moves to an adjacent date; delta is -1 or +1.
func (s *Session) Navigate(ctx context.Context, delta int) error {
	s.mu.Lock()
	idx := s.index
	s.mu.Unlock()
	if idx == NoSelection {
		return apperrors.Wrap(CodeInvalidInput, "no date selected", nil)
	}
	return s.Select(ctx, idx+delta)
}

// SetLocation records the user position and re-ranks the current list. The
// position is immutable once set; repeating the same value is a no-op.
func (s *Session) SetLocation(loc Coordinate) error {
	if err := loc.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyLocationLocked(loc)
}

// RequestLocation asks locator for the position unless one is known or a
// request is already in flight. Permission refusal is recorded silently.
func (s *Session) RequestLocation(ctx context.Context, locator Locator) error {
	s.mu.Lock()
	if s.location != nil || s.locating {
		s.mu.Unlock()
		return nil
	}
	s.locating = true
	s.mu.Unlock()

	loc, err := locator.Locate(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.locating = false
	switch {
	case errors.Is(err, ErrPermissionDenied):
		s.locationDenied = true
		s.settleLocked()
		return nil
	case err != nil:
		s.locationUnavailable = true
		s.settleLocked()
		s.logger.Warn("location unavailable", "error", err)
		return apperrors.Wrap(CodeLocationUnavailable, "unable to determine the current position", err)
	}
	if err := loc.Validate(); err != nil {
		s.locationUnavailable = true
		s.settleLocked()
		return err
	}
	return s.applyLocationLocked(loc)
}

// Snapshot returns a copy of the current read model.
func (s *Session) Snapshot() ReadModel {
	s.mu.Lock()
	defer s.mu.Unlock()

	model := ReadModel{
		State:               s.state,
		Dates:               append([]EventDate{}, s.dates...),
		SelectedIndex:       s.index,
		Walks:               CloneRecords(s.walks),
		Loading:             s.state == StateResolvingDates || s.state == StateResolvingWalks,
		LocationDenied:      s.locationDenied,
		LocationUnavailable: s.locationUnavailable,
		DataUnavailable:     s.dataUnavailable,
	}
	if s.index != NoSelection && s.index < len(s.dates) {
		date := s.dates[s.index].Date
		model.SelectedDate = &date
		model.HasPrevious = s.index > 0
		model.HasNext = s.index+1 < len(s.dates)
	}
	if s.location != nil {
		loc := *s.location
		model.Location = &loc
	}
	model.Empty = !model.Loading && !s.dataUnavailable && len(s.walks) == 0 && s.state != StateIdle
	return model
}

func (s *Session) applyLocationLocked(loc Coordinate) error {
	if s.location != nil {
		if *s.location == loc {
			return nil
		}
		return apperrors.Wrap(CodeLocationConflict, "location already set for this session", nil)
	}
	s.location = &loc
	s.locationDenied = false
	s.locationUnavailable = false

	if s.walks != nil && (s.state == StateWaitingForLocation || s.state == StateReady) {
		ranked := CloneRecords(s.walks)
		if err := AnnotateDistances(loc, ranked); err != nil {
			return err
		}
		Sort(ranked)
		s.walks = ranked
	}
	s.settleLocked()
	return nil
}

// settleLocked moves a session with a loaded list to its resting state.
func (s *Session) settleLocked() {
	if s.state != StateWaitingForLocation && s.state != StateReady && s.state != StateResolvingWalks {
		return
	}
	if s.state == StateResolvingWalks && s.walks == nil {
		return
	}
	if s.location == nil && !s.locationDenied && !s.locationUnavailable {
		s.state = StateWaitingForLocation
		return
	}
	s.state = StateReady
}

func (s *Session) failLocked() {
	s.state = StateFailed
	s.dataUnavailable = true
	s.walks = []WalkRecord{}
}
