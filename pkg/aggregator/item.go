package aggregator

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sternrassler/event-aggregator/pkg/cache"
	"github.com/Sternrassler/event-aggregator/pkg/event"
)

// lookup returns the raw item id of source, reading through the item cache
// when ItemCacheTTL is set. Misses are never cached.
func (s *Service) lookup(ctx context.Context, source event.SourceID, getter ItemGetter, id string) (event.RawItem, error) {
	key := cache.ItemKey(source, id)
	cached := s.cache != nil && s.cfg.ItemCacheTTL > 0

	if cached {
		var raw event.RawItem
		err := s.cache.Get(ctx, key, &raw)
		switch {
		case err == nil && len(raw) > 0:
			s.logger.Debug().Str("source", string(source)).Str("id", id).Bool("cache_hit", true).Msg("Item lookup")
			return raw, nil
		case err != nil && !errors.Is(err, cache.ErrCacheMiss):
			s.logger.Warn().Err(err).Str("source", string(source)).Msg("Item cache read failed")
		}
	}

	raw, err := getter.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		sourceFailuresTotal.WithLabelValues(string(source), OpGet).Inc()
		return nil, sourceError(source, OpGet, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, source, id)
	}

	if cached {
		if err := s.cache.Set(ctx, key, raw, s.cfg.ItemCacheTTL); err != nil {
			s.logger.Warn().Err(err).Str("source", string(source)).Msg("Item cache write failed")
		}
	}
	return raw, nil
}
