package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/event-aggregator/pkg/event"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrBudgetExhausted is returned when an upstream's budget is used up.
var ErrBudgetExhausted = errors.New("upstream rate limit budget exhausted")

// Prometheus metrics for rate limit tracking.
var (
	budgetRemaining = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "events_upstream_budget_remaining",
		Help: "Requests remaining in the current upstream rate limit window",
	}, []string{"source"})

	budgetBlocksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "events_upstream_budget_blocks_total",
		Help: "Total number of requests blocked because the upstream budget was exhausted",
	}, []string{"source"})

	budgetThrottlesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "events_upstream_budget_throttles_total",
		Help: "Total number of requests throttled because the upstream budget was low",
	}, []string{"source"})
)

// Headers names the response headers carrying the budget.
type Headers struct {
	Remaining string
	Reset     string // seconds until the window resets
}

// DefaultHeaders returns the common X-RateLimit-* header names.
func DefaultHeaders() Headers {
	return Headers{Remaining: DefaultRemainingHeader, Reset: DefaultResetHeader}
}

// Tracker monitors one upstream's rate limit budget and gates requests.
type Tracker struct {
	redis      *redis.Client
	source     event.SourceID
	headers    Headers
	thresholds Thresholds
	logger     zerolog.Logger
}

// NewTracker creates a new rate limit tracker for source.
func NewTracker(redisClient *redis.Client, source event.SourceID, headers Headers, thresholds Thresholds, logger zerolog.Logger) *Tracker {
	if headers.Remaining == "" {
		headers.Remaining = DefaultRemainingHeader
	}
	if headers.Reset == "" {
		headers.Reset = DefaultResetHeader
	}
	return &Tracker{
		redis:      redisClient,
		source:     source,
		headers:    headers,
		thresholds: thresholds,
		logger:     logger.With().Str("source", string(source)).Logger(),
	}
}

// GetState retrieves the current budget from Redis.
// Returns nil, nil when no state has been recorded yet.
func (t *Tracker) GetState(ctx context.Context) (*State, error) {
	vals, err := t.redis.MGet(ctx,
		redisKey(t.source, keyRemaining),
		redisKey(t.source, keyResetAt),
		redisKey(t.source, keyLastUpdate),
	).Result()
	if err != nil {
		return nil, fmt.Errorf("get rate limit state: %w", err)
	}
	if vals[0] == nil || vals[1] == nil {
		return nil, nil
	}

	remaining, err := strconv.Atoi(fmt.Sprint(vals[0]))
	if err != nil {
		return nil, fmt.Errorf("parse remaining: %w", err)
	}
	resetUnix, err := strconv.ParseInt(fmt.Sprint(vals[1]), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse reset timestamp: %w", err)
	}

	state := &State{
		Remaining: remaining,
		ResetAt:   time.Unix(resetUnix, 0),
	}
	if vals[2] != nil {
		if lastUnix, err := strconv.ParseInt(fmt.Sprint(vals[2]), 10, 64); err == nil {
			state.LastUpdate = time.Unix(lastUnix, 0)
		}
	}

	return state, nil
}

// ParseHeaders extracts the budget from response headers.
// ok is false when the upstream does not advertise a budget.
func ParseHeaders(h http.Header, names Headers) (remaining, resetSeconds int, ok bool, err error) {
	remainStr := h.Get(names.Remaining)
	if remainStr == "" {
		return 0, 0, false, nil
	}

	remaining, err = strconv.Atoi(remainStr)
	if err != nil {
		return 0, 0, false, fmt.Errorf("parse %s header: %w", names.Remaining, err)
	}

	resetStr := h.Get(names.Reset)
	if resetStr == "" {
		return 0, 0, false, fmt.Errorf("%s header missing", names.Reset)
	}

	resetSeconds, err = strconv.Atoi(resetStr)
	if err != nil {
		return 0, 0, false, fmt.Errorf("parse %s header: %w", names.Reset, err)
	}

	return remaining, resetSeconds, true, nil
}

// UpdateFromHeaders parses the budget headers and stores the state in Redis.
func (t *Tracker) UpdateFromHeaders(ctx context.Context, h http.Header) error {
	remaining, resetSeconds, ok, err := ParseHeaders(h, t.headers)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	now := time.Now()
	state := &State{
		Remaining:  remaining,
		ResetAt:    now.Add(time.Duration(resetSeconds) * time.Second),
		LastUpdate: now,
	}

	// Keep the keys a little longer than the window itself.
	ttl := time.Duration(resetSeconds)*time.Second + time.Minute

	pipe := t.redis.Pipeline()
	pipe.Set(ctx, redisKey(t.source, keyRemaining), remaining, ttl)
	pipe.Set(ctx, redisKey(t.source, keyResetAt), state.ResetAt.Unix(), ttl)
	pipe.Set(ctx, redisKey(t.source, keyLastUpdate), now.Unix(), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store rate limit state in redis: %w", err)
	}

	budgetRemaining.WithLabelValues(string(t.source)).Set(float64(remaining))

	switch {
	case state.NeedsBlock(t.thresholds):
		t.logger.Error().Int("remaining", remaining).Time("reset_at", state.ResetAt).
			Msg("Upstream budget exhausted - requests will be blocked")
	case state.NeedsThrottling(t.thresholds):
		t.logger.Warn().Int("remaining", remaining).Time("reset_at", state.ResetAt).
			Msg("Upstream budget low - requests will be throttled")
	default:
		t.logger.Debug().Int("remaining", remaining).Time("reset_at", state.ResetAt).
			Msg("Upstream budget updated")
	}

	return nil
}

// Wait blocks the caller according to the current budget. It returns
// ErrBudgetExhausted when the window has not reset and no requests are left,
// and sleeps for the throttle delay in the warning band.
func (t *Tracker) Wait(ctx context.Context) error {
	state, err := t.GetState(ctx)
	if err != nil {
		return err
	}
	if state == nil {
		return nil
	}

	if state.NeedsBlock(t.thresholds) {
		t.logger.Warn().
			Int("remaining", state.Remaining).
			Dur("wait_duration", state.TimeUntilReset()).
			Msg("Upstream budget exhausted - blocking request")
		budgetBlocksTotal.WithLabelValues(string(t.source)).Inc()
		return fmt.Errorf("%w: source %s resets in %s", ErrBudgetExhausted, t.source, state.TimeUntilReset().Round(time.Second))
	}

	if state.NeedsThrottling(t.thresholds) && t.thresholds.ThrottleDelay > 0 {
		budgetThrottlesTotal.WithLabelValues(string(t.source)).Inc()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(t.thresholds.ThrottleDelay):
		}
	}

	return nil
}
