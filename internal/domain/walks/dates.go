package walks

import (
	"strings"
	"time"

	"github.com/tborlee/points-verts-web/pkg/util"
)

// NoSelection is returned by ResolveDateIndex when no date can be selected.
const NoSelection = -1

var requestedDateLayouts = []string{
	util.DayLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-1-2",
}

// ParseRequestedDate reads the optional date from the navigation context.
// Unparseable input is reported as absent.
func ParseRequestedDate(raw string) (time.Time, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, false
	}
	for _, layout := range requestedDateLayouts {
		if ts, err := time.Parse(layout, trimmed); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// ResolveDateIndex picks the date to display from chronologically ordered
// dates. An explicit request must match a known calendar day; otherwise the
// first date strictly after now wins, falling back to the last known date
// when all of them are in the past.
func ResolveDateIndex(dates []EventDate, requested *time.Time, now time.Time) int {
	if len(dates) == 0 {
		return NoSelection
	}
	if requested != nil {
		for i, d := range dates {
			if util.SameDay(d.Date, *requested) {
				return i
			}
		}
		return NoSelection
	}
	for i, d := range dates {
		if d.Date.After(now) {
			return i
		}
	}
	return len(dates) - 1
}
