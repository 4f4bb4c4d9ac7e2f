package pagination

import (
	"fmt"

	"github.com/Sternrassler/event-aggregator/pkg/event"
)

// SourceTotal is one source's (possibly capped) total for the current query.
type SourceTotal struct {
	Source event.SourceID
	Total  int
}

// Plan is the per-source split of one requested page.
type Plan struct {
	// PerSource holds the window for every source passed to NewPlan.
	PerSource map[event.SourceID]Slice

	// Order preserves the source order the plan was computed with.
	Order []event.SourceID

	// Empty is true when the page lies past the end of every source.
	Empty bool
}

// Take returns the total number of items the plan requests.
func (p Plan) Take() int {
	total := 0
	for _, s := range p.PerSource {
		total += s.Take
	}
	return total
}

// Active returns the sources with a non-zero take, in plan order.
func (p Plan) Active() []event.SourceID {
	active := make([]event.SourceID, 0, len(p.Order))
	for _, id := range p.Order {
		if p.PerSource[id].Take > 0 {
			active = append(active, id)
		}
	}
	return active
}

// NewPlan splits the requested page across the given sources. Source order
// matters: earlier sources are offered their share first and win shortfall
// ties. For two sources the result equals Compute.
func NewPlan(limit, page int, totals []SourceTotal) (Plan, error) {
	if err := Validate(limit, page); err != nil {
		return Plan{}, err
	}
	if len(totals) == 0 {
		return Plan{}, fmt.Errorf("%w: no sources", ErrInvalidInput)
	}

	counts := make([]int, len(totals))
	order := make([]event.SourceID, len(totals))
	seen := make(map[event.SourceID]struct{}, len(totals))
	for i, t := range totals {
		if t.Total < 0 {
			return Plan{}, fmt.Errorf("%w: negative total %d for source %s", ErrInvalidInput, t.Total, t.Source)
		}
		if _, dup := seen[t.Source]; dup {
			return Plan{}, fmt.Errorf("%w: duplicate source %s", ErrInvalidInput, t.Source)
		}
		seen[t.Source] = struct{}{}
		counts[i] = t.Total
		order[i] = t.Source
	}

	res := walk(limit, page, counts, func(rests []int) []int {
		return distributeN(limit, rests)
	})

	perSource := make(map[event.SourceID]Slice, len(order))
	for i, id := range order {
		perSource[id] = Slice{Skip: res.skips[i], Take: res.takes[i]}
	}

	return Plan{PerSource: perSource, Order: order, Empty: res.empty}, nil
}
