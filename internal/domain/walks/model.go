package walks

import (
	"time"
)

// Status is the lifecycle state of a walk relative to the paper calendar.
type Status string

const (
	StatusActive    Status = "active"
	StatusModified  Status = "modified"
	StatusCancelled Status = "cancelled"
)

// Activity distinguishes regular walks from orientation events.
type Activity string

const (
	ActivityWalk        Activity = "walk"
	ActivityOrientation Activity = "orientation"
)

// Coordinate is a WGS84 position in decimal degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Amenities are the independent optional features of a walk.
type Amenities struct {
	ExtraTenKm      bool `json:"extraTenKm"`
	ExtraFifteenKm  bool `json:"extraFifteenKm"`
	Bike            bool `json:"bike"`
	MountainBike    bool `json:"mountainBike"`
	Orientation     bool `json:"orientation"`
	GuidedTour      bool `json:"guidedTour"`
	ReducedMobility bool `json:"reducedMobility"`
	Strollers       bool `json:"strollers"`
	Refreshments    bool `json:"refreshments"`
	Bewapp          bool `json:"bewapp"`
}

// Contact is the organiser's contact person.
type Contact struct {
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// WalkRecord is one scheduled event. DistanceKm stays nil until a user
// location is known.
type WalkRecord struct {
	ID           string     `json:"id"`
	Number       string     `json:"number,omitempty"`
	Date         string     `json:"date"`
	Activity     Activity   `json:"activity"`
	Locality     string     `json:"locality"`
	Entity       string     `json:"entity,omitempty"`
	Province     string     `json:"province"`
	Location     Coordinate `json:"location"`
	MeetingPoint string     `json:"meetingPoint"`
	MeetingInfo  string     `json:"meetingInfo,omitempty"`
	Station      string     `json:"station,omitempty"`
	MapSheet     string     `json:"mapSheet,omitempty"`
	Status       Status     `json:"status"`
	Amenities    Amenities  `json:"amenities"`
	Group        string     `json:"group"`
	Contact      *Contact   `json:"contact,omitempty"`
	DistanceKm   *int       `json:"distanceKm,omitempty"`
}

// Cancelled reports whether the walk will not take place.
func (w WalkRecord) Cancelled() bool {
	return w.Status == StatusCancelled
}

// Clone returns a deep copy so callers may annotate distances freely.
func (w WalkRecord) Clone() WalkRecord {
	out := w
	if w.Contact != nil {
		contact := *w.Contact
		out.Contact = &contact
	}
	if w.DistanceKm != nil {
		km := *w.DistanceKm
		out.DistanceKm = &km
	}
	return out
}

// CloneRecords deep copies a record list. A nil input yields an empty slice.
func CloneRecords(records []WalkRecord) []WalkRecord {
	out := make([]WalkRecord, len(records))
	for i, rec := range records {
		out[i] = rec.Clone()
	}
	return out
}

// EventDate is a calendar day with at least one scheduled walk.
type EventDate struct {
	Date      time.Time `json:"date"`
	WalkCount int       `json:"walkCount"`
}

// CachedSnapshot is the persisted result of one upstream fetch.
type CachedSnapshot struct {
	Date      string       `json:"date"`
	FetchedAt time.Time    `json:"fetchedAt"`
	Records   []WalkRecord `json:"records"`
}

// Config wires runtime knobs for the walks domain.
type Config struct {
	CacheTTL           time.Duration
	SessionIdleTimeout time.Duration
}

const (
	DefaultCacheTTL           = time.Hour
	DefaultSessionIdleTimeout = 30 * time.Minute
)
