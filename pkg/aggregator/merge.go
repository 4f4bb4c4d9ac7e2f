package aggregator

import (
	"sort"
	"time"

	"github.com/Sternrassler/event-aggregator/pkg/event"
)

// Merge concatenates groups in order and stable-sorts the result by start
// time ascending. Events without a start time sort first; ties keep their
// concatenation order.
func Merge(groups ...[]event.Event) []event.Event {
	n := 0
	for _, g := range groups {
		n += len(g)
	}

	merged := make([]event.Event, 0, n)
	for _, g := range groups {
		merged = append(merged, g...)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return startsBefore(merged[i].Start, merged[j].Start)
	})
	return merged
}

// startsBefore orders nil before any time.
func startsBefore(a, b *time.Time) bool {
	switch {
	case a == nil:
		return b != nil
	case b == nil:
		return false
	default:
		return a.Before(*b)
	}
}
