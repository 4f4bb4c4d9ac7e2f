package aggregator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/event-aggregator/pkg/cache"
	"github.com/Sternrassler/event-aggregator/pkg/event"
	"github.com/rs/zerolog"
)

// Prober answers "how many items match this query" for one binding,
// reading through and writing through the count cache.
type Prober struct {
	cache  Cache
	ttl    time.Duration
	logger zerolog.Logger
}

// NewProber creates a prober. A nil cache or non-positive ttl disables caching.
func NewProber(c Cache, ttl time.Duration, logger zerolog.Logger) *Prober {
	return &Prober{cache: c, ttl: ttl, logger: logger}
}

// Count returns the total for b under q, capped at b.MaxTotal when set.
// Cache failures are logged and treated as a miss.
func (p *Prober) Count(ctx context.Context, b Binding, q event.Query) (int, error) {
	id := b.Source.ID()
	key := cache.CountKey(id, q)

	if p.cacheEnabled() {
		var total int
		err := p.cache.Get(ctx, key, &total)
		switch {
		case err == nil:
			p.logger.Debug().Str("source", string(id)).Int("total", total).Bool("cache_hit", true).Msg("Count probe")
			return b.capTotal(total), nil
		case !errors.Is(err, cache.ErrCacheMiss):
			p.logger.Warn().Err(err).Str("source", string(id)).Msg("Count cache read failed")
		}
	}

	total, err := b.Source.Count(ctx, q)
	if err != nil {
		return 0, sourceError(id, OpCount, err)
	}
	if total < 0 {
		return 0, sourceError(id, OpCount, fmt.Errorf("negative total %d", total))
	}

	if p.cacheEnabled() {
		if err := p.cache.Set(ctx, key, total, p.ttl); err != nil {
			p.logger.Warn().Err(err).Str("source", string(id)).Msg("Count cache write failed")
		}
	}

	p.logger.Debug().Str("source", string(id)).Int("total", total).Bool("cache_hit", false).Msg("Count probe")
	return b.capTotal(total), nil
}

func (p *Prober) cacheEnabled() bool {
	return p.cache != nil && p.ttl > 0
}
