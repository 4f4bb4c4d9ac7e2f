// Package ratelimit tracks each upstream's advertised request budget and
// gates outbound requests. It reads X-RateLimit-Remaining / X-RateLimit-Reset
// style headers (names configurable per source) and keeps the state in Redis
// so that every gateway instance sees the same budget.
package ratelimit

import (
	"fmt"
	"time"

	"github.com/Sternrassler/event-aggregator/pkg/event"
)

// Default header names.
const (
	DefaultRemainingHeader = "X-RateLimit-Remaining"
	DefaultResetHeader     = "X-RateLimit-Reset"
)

// Redis key suffixes for rate limit state storage.
const (
	keyRemaining  = "remaining"
	keyResetAt    = "reset_at"
	keyLastUpdate = "last_update"
)

// Thresholds for rate limit decisions.
type Thresholds struct {
	// Critical blocks requests while remaining is below this value and the
	// window has not reset yet.
	Critical int

	// Warning throttles requests while remaining is below this value.
	Warning int

	// ThrottleDelay is the pause applied in the warning band.
	ThrottleDelay time.Duration
}

// DefaultThresholds returns conservative thresholds for public event APIs.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Critical:      1,
		Warning:       5,
		ThrottleDelay: 500 * time.Millisecond,
	}
}

// redisKey builds the per-source state key.
// Format: events:ratelimit:<source>:<field>
func redisKey(source event.SourceID, field string) string {
	return fmt.Sprintf("events:ratelimit:%s:%s", source, field)
}

// State represents one upstream's current request budget.
type State struct {
	// Remaining is the number of requests left in the current window.
	Remaining int `json:"remaining"`

	// ResetAt is when the window resets.
	ResetAt time.Time `json:"reset_at"`

	// LastUpdate is when this state was last refreshed from headers.
	LastUpdate time.Time `json:"last_update"`
}

// IsStale returns true if the state data is older than the given duration.
func (s *State) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// WindowReset returns true once the reset time has passed.
func (s *State) WindowReset() bool {
	return !s.ResetAt.After(time.Now())
}

// NeedsBlock returns true if requests must wait for the window to reset.
func (s *State) NeedsBlock(t Thresholds) bool {
	return !s.WindowReset() && s.Remaining < t.Critical
}

// NeedsThrottling returns true if requests should be slowed down.
func (s *State) NeedsThrottling(t Thresholds) bool {
	return !s.WindowReset() && s.Remaining < t.Warning && !s.NeedsBlock(t)
}

// TimeUntilReset returns the duration until the window resets.
// Returns 0 if the reset time has already passed.
func (s *State) TimeUntilReset() time.Duration {
	d := time.Until(s.ResetAt)
	if d < 0 {
		return 0
	}
	return d
}
