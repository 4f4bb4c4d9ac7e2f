// Package gateway assembles the aggregation service from configuration:
// one upstream client, source and normalizer per configured source, the
// shared theme dictionary and the Redis-backed count cache.
package gateway

import (
	"fmt"
	"os"
	"time"

	"github.com/Sternrassler/event-aggregator/internal/config"
	"github.com/Sternrassler/event-aggregator/pkg/aggregator"
	"github.com/Sternrassler/event-aggregator/pkg/cache"
	"github.com/Sternrassler/event-aggregator/pkg/event"
	"github.com/Sternrassler/event-aggregator/pkg/normalize"
	"github.com/Sternrassler/event-aggregator/pkg/ratelimit"
	"github.com/Sternrassler/event-aggregator/pkg/themes"
	"github.com/Sternrassler/event-aggregator/pkg/upstream"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Gateway holds the wired components.
type Gateway struct {
	Service *aggregator.Service
	Themes  *themes.Dictionary

	// Cache is nil when no Redis client was supplied.
	Cache *cache.Manager
}

// Build wires a Gateway. rdb may be nil, which disables the count cache
// and rejects sources with rate limit tracking.
func Build(cfg *config.Config, sources *config.SourcesFile, rdb *redis.Client) (*Gateway, error) {
	dict, err := sources.Dictionary()
	if err != nil {
		return nil, fmt.Errorf("build theme dictionary: %w", err)
	}

	bindings := make([]aggregator.Binding, 0, len(sources.Sources))
	for _, spec := range sources.Sources {
		b, err := NewBinding(spec, cfg.UserAgent, dict, rdb)
		if err != nil {
			return nil, fmt.Errorf("source %q: %w", spec.ID, err)
		}
		bindings = append(bindings, b)
	}

	g := &Gateway{Themes: dict}

	var c aggregator.Cache
	if rdb != nil {
		g.Cache = cache.NewManager(rdb)
		c = g.Cache
	}

	g.Service, err = aggregator.New(bindings, c, aggregator.Config{
		CountCacheTTL: cfg.CountCacheTTL,
		ItemCacheTTL:  cfg.ItemCacheTTL,
		FetchTimeout:  cfg.FetchTimeout,
		AllowPartial:  cfg.AllowPartial,
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Int("sources", len(bindings)).
		Int("themes", len(dict.Themes())).
		Bool("count_cache", g.Cache != nil).
		Bool("allow_partial", cfg.AllowPartial).
		Msg("Gateway assembled")

	return g, nil
}

// NewBinding builds the client, source and normalizer for one spec.
func NewBinding(spec config.SourceSpec, userAgent string, dict *themes.Dictionary, rdb *redis.Client) (aggregator.Binding, error) {
	if spec.RateLimit.Enabled && rdb == nil {
		return aggregator.Binding{}, fmt.Errorf("rate limit tracking requires redis")
	}
	client, err := upstream.NewClient(clientConfig(spec, userAgent, rdb))
	if err != nil {
		return aggregator.Binding{}, err
	}

	srcCfg := sourceConfig(spec)
	if spec.TranslateThemes && dict != nil {
		srcCfg.Themes = dict
	}
	source, err := upstream.NewSource(client, srcCfg)
	if err != nil {
		return aggregator.Binding{}, err
	}

	rules, err := rulesFor(spec)
	if err != nil {
		return aggregator.Binding{}, err
	}
	var lookup normalize.ThemeLookup
	if rules.LookupThemes && dict != nil {
		lookup = dict
	}
	norm, err := normalize.New(rules, lookup)
	if err != nil {
		return aggregator.Binding{}, err
	}

	return aggregator.Binding{
		Source:     source,
		Normalizer: norm,
		MaxTotal:   spec.MaxTotal,
	}, nil
}

func clientConfig(spec config.SourceSpec, userAgent string, rdb *redis.Client) upstream.ClientConfig {
	headers := make(map[string]string, len(spec.Headers)+1)
	for k, v := range spec.Headers {
		headers[k] = v
	}
	if spec.AuthTokenEnv != "" {
		headers["Authorization"] = "Bearer " + os.Getenv(spec.AuthTokenEnv)
	}

	retry := upstream.DefaultRetryConfig()
	if spec.Retries > 0 {
		retry.MaxAttempts = spec.Retries + 1
	}

	cfg := upstream.ClientConfig{
		Source:    event.SourceID(spec.ID),
		BaseURL:   spec.BaseURL,
		UserAgent: userAgent,
		Headers:   headers,
		Timeout:   spec.Timeout,
		Retry:     retry,
	}

	if spec.RateLimit.Enabled {
		cfg.RateLimiter = ratelimit.NewTracker(rdb, cfg.Source, ratelimit.Headers{
			Remaining: spec.RateLimit.RemainingHeader,
			Reset:     spec.RateLimit.ResetHeader,
		}, ratelimit.DefaultThresholds(), log.Logger)
	}
	return cfg
}

func sourceConfig(spec config.SourceSpec) upstream.SourceConfig {
	return upstream.SourceConfig{
		ListPath:       spec.ListPath,
		ItemPath:       spec.ItemPath,
		ItemResultPath: spec.ItemResultPath,
		SkipParam:      spec.SkipParam,
		LimitParam:     spec.LimitParam,
		PageSize:       spec.PageSize,
		CountLimit:     spec.CountLimit,
		ItemsPath:      spec.ItemsPath,
		TotalPath:      spec.TotalPath,
		Query: upstream.QueryParams{
			Search:     spec.Query.Search,
			Themes:     spec.Query.Themes,
			City:       spec.Query.City,
			DateFrom:   spec.Query.DateFrom,
			DateTo:     spec.Query.DateTo,
			DateFormat: spec.Query.DateFormat,
		},
		StaticParams: spec.Params,
	}
}

func rulesFor(spec config.SourceSpec) (normalize.Rules, error) {
	n := spec.Normalize

	var zone *time.Location
	if n.TimeZone != "" {
		loc, err := time.LoadLocation(n.TimeZone)
		if err != nil {
			return normalize.Rules{}, fmt.Errorf("time zone: %w", err)
		}
		zone = loc
	}

	return normalize.Rules{
		Source: event.SourceID(spec.ID),
		Fields: normalize.Fields{
			ID:                n.ID,
			Title:             n.Title,
			Description:       n.Description,
			Start:             n.Start,
			End:               n.End,
			RegistrationStart: n.RegistrationStart,
			RegistrationEnd:   n.RegistrationEnd,
			Country:           n.Country,
			City:              n.City,
			Address:           n.Address,
			URL:               n.URL,
			Poster:            n.Poster,
			Organizer:         n.Organizer,
			Themes:            n.Themes,
			ThemeID:           n.ThemeID,
			ThemeName:         n.ThemeName,
		},
		DescriptionFormat: normalize.TextFormat(n.DescriptionFormat),
		Time: normalize.TimeRules{
			Layout: n.TimeLayout,
			Zone:   zone,
			Unix:   n.Unix,
		},
		Payload:      n.Payload,
		LookupThemes: n.LookupThemes,
	}, nil
}
