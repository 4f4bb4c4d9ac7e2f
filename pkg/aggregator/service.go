// Package aggregator serves one unified, paginated event listing over
// several independent upstream sources. Per request it probes each source's
// total, plans how many items every source contributes to the page, fetches
// those windows concurrently, normalizes and merges them by start time.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/event-aggregator/pkg/cache"
	"github.com/Sternrassler/event-aggregator/pkg/event"
	"github.com/Sternrassler/event-aggregator/pkg/pagination"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Source is an upstream event provider with offset pagination.
type Source interface {
	ID() event.SourceID
	Count(ctx context.Context, q event.Query) (int, error)
	Fetch(ctx context.Context, q event.Query, skip, take int) ([]event.RawItem, error)
}

// ItemGetter is implemented by sources that can look up one item by id.
type ItemGetter interface {
	Get(ctx context.Context, id string) (event.RawItem, error)
}

// Normalizer converts raw items of one source into unified events.
type Normalizer interface {
	Source() event.SourceID
	Normalize(ctx context.Context, items []event.RawItem) ([]event.Event, error)
	NormalizeOne(ctx context.Context, item event.RawItem) (event.Event, error)
}

// Cache stores count probe results and looked-up items. Get returns cache.ErrCacheMiss for
// absent keys.
type Cache interface {
	Get(ctx context.Context, key cache.CacheKey, dest any) error
	Set(ctx context.Context, key cache.CacheKey, value any, ttl time.Duration) error
}

// Binding pairs a source with its normalizer.
type Binding struct {
	Source     Source
	Normalizer Normalizer

	// MaxTotal caps the source's reported total; 0 means no cap.
	MaxTotal int
}

func (b Binding) capTotal(total int) int {
	if b.MaxTotal > 0 && total > b.MaxTotal {
		return b.MaxTotal
	}
	return total
}

// Config holds service settings.
type Config struct {
	// CountCacheTTL is how long count probe results are cached.
	CountCacheTTL time.Duration

	// ItemCacheTTL is how long raw items returned by GetEvent are cached.
	// Zero disables item caching.
	ItemCacheTTL time.Duration

	// FetchTimeout bounds every individual probe and fetch. Zero disables it.
	FetchTimeout time.Duration

	// AllowPartial serves pages from the healthy sources when some fail,
	// flagging them in PageMeta. Default is to fail the whole request.
	AllowPartial bool
}

// Service aggregates the registered sources.
type Service struct {
	bindings []Binding
	index    map[event.SourceID]int
	prober   *Prober
	cache    Cache
	cfg      Config
	logger   zerolog.Logger
}

// New creates a service over bindings, in that order. c may be nil.
func New(bindings []Binding, c Cache, cfg Config) (*Service, error) {
	if len(bindings) == 0 {
		return nil, fmt.Errorf("at least one source is required")
	}

	index := make(map[event.SourceID]int, len(bindings))
	for i, b := range bindings {
		if b.Source == nil || b.Normalizer == nil {
			return nil, fmt.Errorf("binding %d: source and normalizer are required", i)
		}
		id := b.Source.ID()
		if _, dup := index[id]; dup {
			return nil, fmt.Errorf("duplicate source %q", id)
		}
		if nid := b.Normalizer.Source(); nid != id {
			return nil, fmt.Errorf("source %q: normalizer is configured for %q", id, nid)
		}
		if b.MaxTotal < 0 {
			return nil, fmt.Errorf("source %q: max total must be >= 0", id)
		}
		index[id] = i
	}

	logger := log.With().Str("component", "aggregator").Logger()

	return &Service{
		bindings: bindings,
		index:    index,
		prober:   NewProber(c, cfg.CountCacheTTL, logger),
		cache:    c,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// Sources returns the registered source ids in registration order.
func (s *Service) Sources() []event.SourceID {
	ids := make([]event.SourceID, len(s.bindings))
	for i, b := range s.bindings {
		ids[i] = b.Source.ID()
	}
	return ids
}

// outcome of one source within a request.
type outcome struct {
	total  int
	events []event.Event
	err    error
}

// ListUnifiedPage returns page (1-based) of the merged listing of all
// sources, each page holding at most limit events.
func (s *Service) ListUnifiedPage(ctx context.Context, q event.Query, limit, page int) (event.Page, error) {
	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues(opUnified).Observe(time.Since(start).Seconds())
	}()

	result, err := s.listUnified(ctx, q, limit, page)
	if err != nil {
		requestsTotal.WithLabelValues(opUnified, outcomeError).Inc()
		s.logger.Error().Err(err).Int("page", page).Int("limit", limit).Msg("Unified page failed")
		return event.Page{}, err
	}

	out := outcomeOK
	if result.Meta.Partial {
		out = outcomePartial
		partialPagesTotal.Inc()
	}
	requestsTotal.WithLabelValues(opUnified, out).Inc()

	s.logger.Info().
		Int("page", page).
		Int("limit", limit).
		Int("items", len(result.Data)).
		Int("total_items", result.Meta.TotalItems).
		Bool("partial", result.Meta.Partial).
		Dur("duration", time.Since(start)).
		Msg("Unified page served")

	return result, nil
}

func (s *Service) listUnified(ctx context.Context, q event.Query, limit, page int) (event.Page, error) {
	if err := pagination.Validate(limit, page); err != nil {
		return event.Page{}, err
	}

	outcomes := make([]outcome, len(s.bindings))

	err := s.each(ctx, len(s.bindings), func(ctx context.Context, i int) error {
		total, err := s.probe(ctx, s.bindings[i], q)
		outcomes[i].total, outcomes[i].err = total, err
		return err
	})
	if err != nil {
		return event.Page{}, err
	}

	healthy := make([]pagination.SourceTotal, 0, len(s.bindings))
	for i, o := range outcomes {
		if o.err == nil {
			healthy = append(healthy, pagination.SourceTotal{Source: s.bindings[i].Source.ID(), Total: o.total})
		}
	}
	if len(healthy) == 0 {
		return event.Page{}, firstError(outcomes)
	}

	plan, err := pagination.NewPlan(limit, page, healthy)
	if err != nil {
		return event.Page{}, err
	}

	s.logger.Debug().
		Int("page", page).
		Int("limit", limit).
		Interface("plan", plan.PerSource).
		Bool("empty", plan.Empty).
		Msg("Allocation planned")

	if !plan.Empty {
		err = s.each(ctx, len(s.bindings), func(ctx context.Context, i int) error {
			if outcomes[i].err != nil {
				return nil
			}
			b := s.bindings[i]
			slice := plan.PerSource[b.Source.ID()]
			if slice.Take == 0 {
				return nil
			}
			events, err := s.fetch(ctx, b, q, slice)
			outcomes[i].events, outcomes[i].err = events, err
			return err
		})
		if err != nil {
			return event.Page{}, err
		}
	}

	totalItems := 0
	groups := make([][]event.Event, 0, len(outcomes))
	var failed []event.SourceID
	for i, o := range outcomes {
		if o.err != nil {
			failed = append(failed, s.bindings[i].Source.ID())
			continue
		}
		totalItems += o.total
		groups = append(groups, o.events)
	}
	if len(groups) == 0 {
		return event.Page{}, firstError(outcomes)
	}

	result := Assemble(Merge(groups...), totalItems, limit, page)
	if len(failed) > 0 {
		result.Meta.Partial = true
		result.Meta.FailedSources = failed
	}
	return result, nil
}

// ListSinglePage returns page of one source's listing, without allocation.
func (s *Service) ListSinglePage(ctx context.Context, source event.SourceID, q event.Query, limit, page int) (event.Page, error) {
	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues(opSingle).Observe(time.Since(start).Seconds())
	}()

	result, err := s.listSingle(ctx, source, q, limit, page)
	if err != nil {
		requestsTotal.WithLabelValues(opSingle, outcomeError).Inc()
		s.logger.Error().Err(err).Str("source", string(source)).Int("page", page).Int("limit", limit).Msg("Single-source page failed")
		return event.Page{}, err
	}
	requestsTotal.WithLabelValues(opSingle, outcomeOK).Inc()

	s.logger.Info().
		Str("source", string(source)).
		Int("page", page).
		Int("limit", limit).
		Int("items", len(result.Data)).
		Dur("duration", time.Since(start)).
		Msg("Single-source page served")

	return result, nil
}

func (s *Service) listSingle(ctx context.Context, source event.SourceID, q event.Query, limit, page int) (event.Page, error) {
	if err := pagination.Validate(limit, page); err != nil {
		return event.Page{}, err
	}
	b, err := s.binding(source)
	if err != nil {
		return event.Page{}, err
	}

	total, err := s.probe(ctx, b, q)
	if err != nil {
		return event.Page{}, err
	}

	slice := pagination.SinglePage(limit, page, total)
	var events []event.Event
	if slice.Take > 0 {
		if events, err = s.fetch(ctx, b, q, slice); err != nil {
			return event.Page{}, err
		}
	}

	return Assemble(events, total, limit, page), nil
}

// GetEvent looks up one event of source by its upstream id.
func (s *Service) GetEvent(ctx context.Context, source event.SourceID, id string) (event.Event, error) {
	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues(opGet).Observe(time.Since(start).Seconds())
	}()

	ev, err := s.getEvent(ctx, source, id)
	if err != nil {
		requestsTotal.WithLabelValues(opGet, outcomeError).Inc()
		if errors.Is(err, ErrNotFound) {
			s.logger.Debug().Str("source", string(source)).Str("id", id).Msg("Event not found")
		} else {
			s.logger.Error().Err(err).Str("source", string(source)).Str("id", id).Msg("Event lookup failed")
		}
		return event.Event{}, err
	}
	requestsTotal.WithLabelValues(opGet, outcomeOK).Inc()
	return ev, nil
}

func (s *Service) getEvent(ctx context.Context, source event.SourceID, id string) (event.Event, error) {
	b, err := s.binding(source)
	if err != nil {
		return event.Event{}, err
	}
	getter, ok := b.Source.(ItemGetter)
	if !ok {
		return event.Event{}, fmt.Errorf("%w: %s has no item lookup", ErrNotFound, source)
	}
	if id == "" {
		return event.Event{}, fmt.Errorf("%w: empty id", ErrNotFound)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	raw, err := s.lookup(ctx, source, getter, id)
	if err != nil {
		return event.Event{}, err
	}

	ev, err := b.Normalizer.NormalizeOne(ctx, raw)
	if err != nil {
		sourceFailuresTotal.WithLabelValues(string(source), OpNormalize).Inc()
		return event.Event{}, sourceError(source, OpNormalize, err)
	}
	return ev, nil
}

// probe runs one count probe under the fetch timeout.
func (s *Service) probe(ctx context.Context, b Binding, q event.Query) (int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	total, err := s.prober.Count(ctx, b, q)
	if err != nil {
		sourceFailuresTotal.WithLabelValues(string(b.Source.ID()), OpCount).Inc()
		return 0, err
	}
	return total, nil
}

// fetch retrieves and normalizes one source window under the fetch timeout.
func (s *Service) fetch(ctx context.Context, b Binding, q event.Query, slice pagination.Slice) ([]event.Event, error) {
	id := b.Source.ID()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	items, err := b.Source.Fetch(ctx, q, slice.Skip, slice.Take)
	if err != nil {
		sourceFailuresTotal.WithLabelValues(string(id), OpFetch).Inc()
		return nil, sourceError(id, OpFetch, err)
	}
	if len(items) > slice.Take {
		items = items[:slice.Take]
	}

	events, err := b.Normalizer.Normalize(ctx, items)
	if err != nil {
		sourceFailuresTotal.WithLabelValues(string(id), OpNormalize).Inc()
		return nil, sourceError(id, OpNormalize, err)
	}

	sourceItemsTotal.WithLabelValues(string(id)).Add(float64(len(events)))
	s.logger.Debug().
		Str("source", string(id)).
		Int("skip", slice.Skip).
		Int("take", slice.Take).
		Int("received", len(events)).
		Msg("Fetched source window")

	return events, nil
}

// each runs fn for indexes [0, n) concurrently and joins them. In fail-fast
// mode the first error cancels the others and is returned; in partial mode
// every call runs to completion, nil is returned and fn records its own error.
func (s *Service) each(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	if s.cfg.AllowPartial {
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := fn(ctx, i); err != nil {
					s.logger.Warn().Err(err).Msg("Source failed, continuing with partial page")
				}
			}()
		}
		wg.Wait()
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			return fn(gctx, i)
		})
	}
	return g.Wait()
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.FetchTimeout > 0 {
		return context.WithTimeout(ctx, s.cfg.FetchTimeout)
	}
	return context.WithCancel(ctx)
}

func (s *Service) binding(source event.SourceID) (Binding, error) {
	i, ok := s.index[source]
	if !ok {
		return Binding{}, fmt.Errorf("%w: %q", ErrUnknownSource, source)
	}
	return s.bindings[i], nil
}

func firstError(outcomes []outcome) error {
	for _, o := range outcomes {
		if o.err != nil {
			return o.err
		}
	}
	return ErrUpstreamUnavailable
}
