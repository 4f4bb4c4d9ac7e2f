// Package pagination splits one logical page of a combined listing into
// per-source (skip, take) requests.
//
// Each upstream paginates on its own and reports its own total. To present a
// single page-stable list, the planner simulates how every previous page was
// split between the sources and then splits the requested page the same way.
// Walking pages 1..N therefore covers every item of every source exactly once,
// provided the upstream data does not change between calls.
//
// Example usage:
//
//	alloc := pagination.Compute(10, 2, 23, 7)
//	// alloc.A == Slice{Skip: 5, Take: 8}
//	// alloc.B == Slice{Skip: 5, Take: 2}
//
// A page is split by giving the first source ceil(limit/2) items, the second
// source the rest, and pulling any shortfall from whichever source still has
// items (the first source wins when both could). NewPlan generalizes the same
// rule to any number of sources keyed by event.SourceID.
//
// Deep pages are resolved by fast-forwarding runs of identical chunks instead
// of stepping one page at a time; the result is identical to the step loop.
package pagination
