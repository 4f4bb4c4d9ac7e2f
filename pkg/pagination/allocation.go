package pagination

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidInput is returned when limit or page is not positive.
var ErrInvalidInput = errors.New("invalid allocation input")

// Slice is the window requested from one source.
type Slice struct {
	Skip int `json:"skip"`
	Take int `json:"take"`
}

// Allocation is the two-source split of one page.
type Allocation struct {
	A     Slice `json:"a"`
	B     Slice `json:"b"`
	Empty bool  `json:"empty"`
}

// Validate rejects non-positive limit or page values.
func Validate(limit, page int) error {
	if limit <= 0 {
		return fmt.Errorf("%w: limit must be > 0 (got %d)", ErrInvalidInput, limit)
	}
	if page <= 0 {
		return fmt.Errorf("%w: page must be > 0 (got %d)", ErrInvalidInput, page)
	}
	return nil
}

// Half returns ceil(limit/2), the first source's share of a page.
func Half(limit int) int {
	return (limit + 1) / 2
}

// Distribute splits one chunk of size limit between two sources with rest1
// and rest2 items remaining. The first source is offered half, the second the
// remainder; any shortfall is pulled from the first source when it has spare
// items, otherwise from the second.
func Distribute(limit, half, rest1, rest2 int) (take1, take2 int) {
	take1 = min(half, rest1)
	need := limit - take1

	take2 = min(need, rest2)
	need -= take2

	if need > 0 && rest1-take1 > 0 {
		take1 += min(need, rest1-take1)
	} else if need > 0 && rest2-take2 > 0 {
		take2 += min(need, rest2-take2)
	}

	return take1, take2
}

// Compute returns the two-source allocation for the given page. Callers must
// Validate limit and page first.
func Compute(limit, page, totalA, totalB int) Allocation {
	half := Half(limit)
	res := walk(limit, page, []int{totalA, totalB}, func(rests []int) []int {
		a, b := Distribute(limit, half, rests[0], rests[1])
		return []int{a, b}
	})

	return Allocation{
		A:     Slice{Skip: res.skips[0], Take: res.takes[0]},
		B:     Slice{Skip: res.skips[1], Take: res.takes[1]},
		Empty: res.empty,
	}
}

// SinglePage returns the window for a single-source listing, where page n
// simply starts at (n-1)*limit.
func SinglePage(limit, page, total int) Slice {
	skip := offset(limit, page)
	take := 0
	if skip < total {
		take = min(limit, total-skip)
	}
	return Slice{Skip: skip, Take: take}
}

// distributeN splits one chunk across any number of sources. Each source in
// order is offered ceil(need/sourcesLeft); a shortfall is then pulled from the
// first sources with spare items. With two sources it matches Distribute.
func distributeN(limit int, rests []int) []int {
	takes := make([]int, len(rests))
	need := limit

	for i, rest := range rests {
		left := len(rests) - i
		quota := (need + left - 1) / left
		takes[i] = min(quota, rest)
		need -= takes[i]
	}

	for i, rest := range rests {
		if need == 0 {
			break
		}
		if spare := rest - takes[i]; spare > 0 {
			extra := min(need, spare)
			takes[i] += extra
			need -= extra
		}
	}

	return takes
}

type walkResult struct {
	skips []int
	takes []int
	empty bool
}

// walk simulates pages 1..page-1 to find each source's skip, then splits the
// requested page. The simulation is sequential: each chunk depends on the
// remainders left by the previous one.
func walk(limit, page int, totals []int, distribute func(rests []int) []int) walkResult {
	rests := append([]int(nil), totals...)
	skips := make([]int, len(totals))
	before := offset(limit, page)
	skipped := 0

	for skipped < before && anyLeft(rests) {
		takes := distribute(rests)
		chunk := sum(takes)
		if chunk == 0 {
			break
		}

		// Once every remainder is zero or at least limit, the split is fixed
		// until some remainder drops below limit, so repeat it in one step.
		repeat := 1
		if steady(rests, limit) && chunk == limit {
			repeat = (before - skipped) / limit
			for i, take := range takes {
				if take > 0 {
					repeat = min(repeat, (rests[i]-limit)/take+1)
				}
			}
			repeat = max(repeat, 1)
		}

		for i, take := range takes {
			skips[i] += take * repeat
			rests[i] -= take * repeat
		}
		skipped += chunk * repeat
	}

	if !anyLeft(rests) {
		return walkResult{skips: skips, takes: make([]int, len(totals)), empty: true}
	}

	return walkResult{skips: skips, takes: distribute(rests)}
}

// offset returns (page-1)*limit, saturated at math.MaxInt.
func offset(limit, page int) int {
	if limit <= 0 || page <= 1 {
		return 0
	}
	if page-1 > math.MaxInt/limit {
		return math.MaxInt
	}
	return (page - 1) * limit
}

func steady(rests []int, limit int) bool {
	for _, r := range rests {
		if r != 0 && r < limit {
			return false
		}
	}
	return true
}

func anyLeft(rests []int) bool {
	for _, r := range rests {
		if r > 0 {
			return true
		}
	}
	return false
}

func sum(values []int) int {
	total := 0
	for _, v := range values {
		total += v
	}
	return total
}
