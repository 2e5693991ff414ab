package replay

import (
	"sort"
)

// SortEvents orders events by (at ASC, line ASC). Decode gives every event a
// non-decreasing time in file order, so sorting only matters for scripts
// assembled from several sources.
func SortEvents(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return compareEvents(&events[i], &events[j]) < 0
	})
}

// CheckOrdering returns ErrInvalidOrdering if events are not sorted.
func CheckOrdering(events []Event) error {
	for i := 1; i < len(events); i++ {
		if compareEvents(&events[i-1], &events[i]) > 0 {
			return ErrInvalidOrdering
		}
	}
	return nil
}

// compareEvents returns:
//   - negative if a < b
//   - zero if a == b
//   - positive if a > b
func compareEvents(a, b *Event) int {
	if !a.At.Equal(b.At) {
		if a.At.Before(b.At) {
			return -1
		}
		return 1
	}
	if a.Line != b.Line {
		if a.Line < b.Line {
			return -1
		}
		return 1
	}
	return 0
}
