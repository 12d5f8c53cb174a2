package walks

import (
	"cmp"
	"slices"
)

// Compare orders walks for display: cancelled walks after everything else,
// then by ascending distance when both distances are known. It reports 0 when
// it has no basis to separate two records so a stable sort keeps input order.
func Compare(a, b WalkRecord) int {
	ac, bc := a.Cancelled(), b.Cancelled()
	if ac != bc {
		if ac {
			return 1
		}
		return -1
	}
	if a.DistanceKm != nil && b.DistanceKm != nil {
		return cmp.Compare(*a.DistanceKm, *b.DistanceKm)
	}
	return 0
}

// Sort orders records in place with Compare using a stable algorithm.
func Sort(records []WalkRecord) {
	slices.SortStableFunc(records, Compare)
}
