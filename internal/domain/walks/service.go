package walks

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/tborlee/points-verts-web/pkg/errors"
	"github.com/tborlee/points-verts-web/pkg/metrics"
	"github.com/tborlee/points-verts-web/pkg/util"
)

// Direction names an adjacent date.
type Direction string

const (
	DirectionPrevious Direction = "previous"
	DirectionNext     Direction = "next"
)

// RankRequest is the one-shot ranking query.
type RankRequest struct {
	Date      string
	Latitude  *float64
	Longitude *float64
}

// OpenRequest starts a session, optionally on a given date.
type OpenRequest struct {
	Date string `json:"date"`
}

// NavigateRequest moves a session to an adjacent date.
type NavigateRequest struct {
	Direction Direction `json:"direction"`
}

// LocationRequest reports the outcome of the device location prompt.
type LocationRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Denied    bool     `json:"denied"`
	Error     string   `json:"error"`
}

// SessionView is a session id with its read model.
type SessionView struct {
	ID string `json:"id"`
	ReadModel
}

// Service exposes the walk listing capabilities to transports.
type Service interface {
	Dates(ctx context.Context) ([]EventDate, error)
	Rank(ctx context.Context, req RankRequest) (ReadModel, error)
	OpenSession(ctx context.Context, req OpenRequest) (SessionView, error)
	GetSession(ctx context.Context, id string) (SessionView, error)
	Navigate(ctx context.Context, id string, req NavigateRequest) (SessionView, error)
	ProvideLocation(ctx context.Context, id string, req LocationRequest) (SessionView, error)
	CloseSession(ctx context.Context, id string) error
	SweepIdle(now time.Time) int
	CacheStats() metrics.CacheStats
}

// Fetcher is the caching data access used by the service.
type Fetcher interface {
	WalkProvider
	Stats() metrics.CacheStats
}

type sessionEntry struct {
	session  *Session
	lastSeen time.Time
}

type service struct {
	cfg     Config
	fetcher Fetcher
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

// NewService wires up the walks domain.
func NewService(cfg Config, fetcher Fetcher, logger *slog.Logger) Service {
	if cfg.SessionIdleTimeout <= 0 {
		cfg.SessionIdleTimeout = DefaultSessionIdleTimeout
	}
	return &service{
		cfg:      cfg,
		fetcher:  fetcher,
		logger:   logger.With("component", "walks.service"),
		now:      util.NowUTC,
		newID:    func() string { return uuid.NewString() },
		sessions: make(map[string]*sessionEntry),
	}
}

func (s *service) Dates(ctx context.Context) ([]EventDate, error) {
	return s.fetcher.Dates(ctx)
}

func (s *service) Rank(ctx context.Context, req RankRequest) (ReadModel, error) {
	loc, err := coordinateFrom(req.Latitude, req.Longitude)
	if err != nil {
		return ReadModel{}, err
	}
	session := s.newSession()
	if err := session.Start(ctx, requestedDate(req.Date)); err != nil {
		return session.Snapshot(), err
	}
	if loc != nil {
		if err := session.SetLocation(*loc); err != nil {
			return ReadModel{}, err
		}
	}
	return session.Snapshot(), nil
}

func (s *service) OpenSession(ctx context.Context, req OpenRequest) (SessionView, error) {
	session := s.newSession()
	id := s.newID()

	s.mu.Lock()
	s.sessions[id] = &sessionEntry{session: session, lastSeen: s.now()}
	s.mu.Unlock()

	// Data failures are surfaced through the read model flags.
	if err := session.Start(ctx, requestedDate(req.Date)); err != nil {
		s.logger.Warn("session start failed", "session", id, "error", err)
	}
	s.logger.Info("session opened", "session", id)
	return SessionView{ID: id, ReadModel: session.Snapshot()}, nil
}

func (s *service) GetSession(_ context.Context, id string) (SessionView, error) {
	session, err := s.lookup(id)
	if err != nil {
		return SessionView{}, err
	}
	return SessionView{ID: id, ReadModel: session.Snapshot()}, nil
}

func (s *service) Navigate(ctx context.Context, id string, req NavigateRequest) (SessionView, error) {
	session, err := s.lookup(id)
	if err != nil {
		return SessionView{}, err
	}
	var delta int
	switch Direction(strings.ToLower(strings.TrimSpace(string(req.Direction)))) {
	case DirectionPrevious:
		delta = -1
	case DirectionNext:
		delta = 1
	default:
		return SessionView{}, apperrors.Wrap(CodeInvalidInput, "direction must be previous or next", nil)
	}
	if err := session.Navigate(ctx, delta); err != nil && !apperrors.IsCode(err, CodeDataUnavailable) {
		return SessionView{}, err
	}
	return SessionView{ID: id, ReadModel: session.Snapshot()}, nil
}

func (s *service) ProvideLocation(ctx context.Context, id string, req LocationRequest) (SessionView, error) {
	session, err := s.lookup(id)
	if err != nil {
		return SessionView{}, err
	}
	if !req.Denied && strings.TrimSpace(req.Error) == "" {
		loc, err := coordinateFrom(req.Latitude, req.Longitude)
		if err != nil {
			return SessionView{}, err
		}
		if loc == nil {
			return SessionView{}, apperrors.Wrap(CodeInvalidInput, "latitude and longitude are required", nil)
		}
		if err := session.SetLocation(*loc); err != nil {
			return SessionView{}, err
		}
		return SessionView{ID: id, ReadModel: session.Snapshot()}, nil
	}
	if err := session.RequestLocation(ctx, failedLocator(req)); err != nil && !apperrors.IsCode(err, CodeLocationUnavailable) {
		return SessionView{}, err
	}
	return SessionView{ID: id, ReadModel: session.Snapshot()}, nil
}

func (s *service) CloseSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return apperrors.Wrap(CodeSessionNotFound, "session not found", nil)
	}
	delete(s.sessions, id)
	s.logger.Info("session closed", "session", id)
	return nil
}

// SweepIdle drops sessions not used within the idle timeout.
func (s *service) SweepIdle(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, entry := range s.sessions {
		if now.Sub(entry.lastSeen) > s.cfg.SessionIdleTimeout {
			delete(s.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Info("idle sessions swept", "removed", removed, "remaining", len(s.sessions))
	}
	return removed
}

func (s *service) CacheStats() metrics.CacheStats {
	return s.fetcher.Stats()
}

func (s *service) newSession() *Session {
	session := NewSession(s.fetcher, s.logger)
	session.now = s.now
	return session
}

func (s *service) lookup(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[id]
	if !ok || s.now().Sub(entry.lastSeen) > s.cfg.SessionIdleTimeout {
		delete(s.sessions, id)
		return nil, apperrors.Wrap(CodeSessionNotFound, "session not found", nil)
	}
	entry.lastSeen = s.now()
	return entry.session, nil
}

func requestedDate(raw string) *time.Time {
	if ts, ok := ParseRequestedDate(raw); ok {
		return &ts
	}
	return nil
}

func coordinateFrom(lat, lon *float64) (*Coordinate, error) {
	if lat == nil && lon == nil {
		return nil, nil
	}
	if lat == nil || lon == nil {
		return nil, apperrors.Wrap(CodeInvalidInput, "latitude and longitude must be provided together", nil)
	}
	loc := Coordinate{Latitude: *lat, Longitude: *lon}
	if err := loc.Validate(); err != nil {
		return nil, err
	}
	return &loc, nil
}

// failedLocator replays a location prompt outcome reported by the client.
func failedLocator(req LocationRequest) Locator {
	if req.Denied {
		return LocatorFunc(func(context.Context) (Coordinate, error) {
			return Coordinate{}, ErrPermissionDenied
		})
	}
	reason := strings.TrimSpace(req.Error)
	return LocatorFunc(func(context.Context) (Coordinate, error) {
		return Coordinate{}, errors.New(reason)
	})
}
