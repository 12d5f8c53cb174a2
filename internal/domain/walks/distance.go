package walks

import (
	"fmt"
	"math"

	"github.com/jftuga/geodist"

	apperrors "github.com/tborlee/points-verts-web/pkg/errors"
)

// Validate rejects NaN and infinite components.
func (c Coordinate) Validate() error {
	if !finite(c.Latitude) || !finite(c.Longitude) {
		return apperrors.Wrap(CodeInvalidCoordinate, fmt.Sprintf("coordinate (%v, %v) is not finite", c.Latitude, c.Longitude), nil)
	}
	return nil
}

// Distance returns the great-circle surface distance between a and b in meters.
func Distance(a, b Coordinate) (float64, error) {
	if err := a.Validate(); err != nil {
		return 0, err
	}
	if err := b.Validate(); err != nil {
		return 0, err
	}
	if a == b {
		return 0, nil
	}
	_, km := geodist.HaversineDistance(
		geodist.Coord{Lat: a.Latitude, Lon: a.Longitude},
		geodist.Coord{Lat: b.Latitude, Lon: b.Longitude},
	)
	return km * 1000, nil
}

// RoundKilometers converts meters to whole kilometers, rounding half up.
func RoundKilometers(meters float64) int {
	return int(math.Floor(meters/1000 + 0.5))
}

// AnnotateDistances sets DistanceKm on every record relative to origin.
// Records are left untouched when any coordinate is malformed.
func AnnotateDistances(origin Coordinate, records []WalkRecord) error {
	km := make([]int, len(records))
	for i, rec := range records {
		meters, err := Distance(origin, rec.Location)
		if err != nil {
			return err
		}
		km[i] = RoundKilometers(meters)
	}
	for i := range records {
		d := km[i]
		records[i].DistanceKm = &d
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
