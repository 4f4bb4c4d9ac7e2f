package upstream

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/event-aggregator/pkg/aggregator"
	"github.com/Sternrassler/event-aggregator/pkg/event"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// Defaults applied by NewSource.
const (
	DefaultSkipParam  = "offset"
	DefaultLimitParam = "limit"
	DefaultCountLimit = 1
)

// DateFormatUnix selects unix seconds for date filter parameters.
const DateFormatUnix = "unix"

// QueryParams names the upstream parameters the unified filters translate to.
// An empty name means the upstream cannot filter on that field.
type QueryParams struct {
	Search   string
	Themes   string
	City     string
	DateFrom string
	DateTo   string

	// DateFormat is a time layout, DateFormatUnix, or empty for RFC3339.
	DateFormat string
}

// ThemeTranslator maps a unified theme id to the upstream's own ids.
type ThemeTranslator interface {
	ExternalIDs(source event.SourceID, theme string) []string
}

// SourceConfig describes an offset-paginated list endpoint.
type SourceConfig struct {
	// ListPath is the collection endpoint, relative to the client's base URL.
	ListPath string

	// ItemPath is the single-item endpoint with an {id} placeholder. Optional.
	ItemPath string

	// ItemResultPath is a gjson path to the item inside the item response.
	// Empty means the whole body.
	ItemResultPath string

	// SkipParam and LimitParam name the offset pagination parameters.
	SkipParam  string
	LimitParam string

	// PageSize is the largest page the upstream serves. Larger takes are
	// fetched in consecutive chunks. Zero means unbounded.
	PageSize int

	// CountLimit is the page size sent with count probes.
	CountLimit int

	// ItemsPath is a gjson path to the items array. Empty means the body is the array.
	ItemsPath string

	// TotalPath is a gjson path to the total matching item count.
	TotalPath string

	Query        QueryParams
	StaticParams map[string]string

	// Themes translates theme filters. Nil sends unified ids unchanged.
	Themes ThemeTranslator
}

// Source is one upstream exposed through the aggregator's Source contract.
type Source struct {
	client *Client
	cfg    SourceConfig
	logger zerolog.Logger
}

// NewSource binds cfg to client.
func NewSource(client *Client, cfg SourceConfig) (*Source, error) {
	if client == nil {
		return nil, fmt.Errorf("client is required")
	}
	if cfg.TotalPath == "" {
		return nil, fmt.Errorf("source %s: total path is required", client.Source())
	}
	if cfg.PageSize < 0 {
		return nil, fmt.Errorf("source %s: page size must be >= 0 (got %d)", client.Source(), cfg.PageSize)
	}
	if cfg.ItemPath != "" && !strings.Contains(cfg.ItemPath, "{id}") {
		return nil, fmt.Errorf("source %s: item path %q lacks {id} placeholder", client.Source(), cfg.ItemPath)
	}
	if cfg.SkipParam == "" {
		cfg.SkipParam = DefaultSkipParam
	}
	if cfg.LimitParam == "" {
		cfg.LimitParam = DefaultLimitParam
	}
	if cfg.CountLimit <= 0 {
		cfg.CountLimit = DefaultCountLimit
	}

	return &Source{
		client: client,
		cfg:    cfg,
		logger: client.logger.With().Str("component", "upstream-source").Logger(),
	}, nil
}

// ID returns the source identifier.
func (s *Source) ID() event.SourceID {
	return s.client.Source()
}

// Count returns the number of items matching q, as reported by the upstream.
func (s *Source) Count(ctx context.Context, q event.Query) (int, error) {
	if s.unmatchable(q) {
		return 0, nil
	}

	params := s.params(q)
	params.Set(s.cfg.SkipParam, "0")
	params.Set(s.cfg.LimitParam, strconv.Itoa(s.cfg.CountLimit))

	body, err := s.client.GetJSON(ctx, s.cfg.ListPath, params)
	if err != nil {
		return 0, err
	}

	total := gjson.GetBytes(body, s.cfg.TotalPath)
	if !total.Exists() || total.Type != gjson.Number {
		return 0, fmt.Errorf("%w: total %q not a number", ErrUnexpectedPayload, s.cfg.TotalPath)
	}
	if total.Int() < 0 {
		return 0, fmt.Errorf("%w: negative total %d", ErrUnexpectedPayload, total.Int())
	}

	return int(total.Int()), nil
}

// Fetch returns up to take raw items starting at offset skip.
func (s *Source) Fetch(ctx context.Context, q event.Query, skip, take int) ([]event.RawItem, error) {
	if take <= 0 || s.unmatchable(q) {
		return nil, nil
	}

	chunk := take
	if s.cfg.PageSize > 0 && chunk > s.cfg.PageSize {
		chunk = s.cfg.PageSize
	}

	items := make([]event.RawItem, 0, take)
	for len(items) < take {
		n := min(chunk, take-len(items))
		batch, err := s.fetchChunk(ctx, q, skip+len(items), n)
		if err != nil {
			return nil, err
		}
		items = append(items, batch...)
		if len(batch) < n {
			break
		}
	}

	s.logger.Debug().
		Int("skip", skip).
		Int("take", take).
		Int("received", len(items)).
		Msg("Fetched page")

	return items, nil
}

func (s *Source) fetchChunk(ctx context.Context, q event.Query, skip, take int) ([]event.RawItem, error) {
	params := s.params(q)
	params.Set(s.cfg.SkipParam, strconv.Itoa(skip))
	params.Set(s.cfg.LimitParam, strconv.Itoa(take))

	body, err := s.client.GetJSON(ctx, s.cfg.ListPath, params)
	if err != nil {
		return nil, err
	}

	list := gjson.ParseBytes(body)
	if s.cfg.ItemsPath != "" {
		list = gjson.GetBytes(body, s.cfg.ItemsPath)
	}
	if !list.IsArray() {
		return nil, fmt.Errorf("%w: items %q not an array", ErrUnexpectedPayload, s.cfg.ItemsPath)
	}

	results := list.Array()
	if len(results) > take {
		results = results[:take]
	}
	items := make([]event.RawItem, len(results))
	for i, r := range results {
		items[i] = event.RawItem(r.Raw)
	}
	return items, nil
}

// Get returns a single raw item by upstream id. A 404 or an empty result
// yields aggregator.ErrNotFound.
func (s *Source) Get(ctx context.Context, id string) (event.RawItem, error) {
	if s.cfg.ItemPath == "" {
		return nil, fmt.Errorf("source %s: %w", s.ID(), ErrNoItemEndpoint)
	}

	path := strings.ReplaceAll(s.cfg.ItemPath, "{id}", id)
	params := url.Values{}
	for k, v := range s.cfg.StaticParams {
		params.Set(k, v)
	}

	body, err := s.client.GetJSON(ctx, path, params)
	if err != nil {
		if IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s/%s", aggregator.ErrNotFound, s.ID(), id)
		}
		return nil, err
	}

	result := gjson.ParseBytes(body)
	if s.cfg.ItemResultPath != "" {
		result = gjson.GetBytes(body, s.cfg.ItemResultPath)
	}
	if !result.IsObject() {
		return nil, fmt.Errorf("%w: %s/%s", aggregator.ErrNotFound, s.ID(), id)
	}
	return event.RawItem(result.Raw), nil
}

// params translates q into upstream query parameters.
func (s *Source) params(q event.Query) url.Values {
	params := url.Values{}
	for k, v := range s.cfg.StaticParams {
		params.Set(k, v)
	}

	qp := s.cfg.Query
	set := func(name, field, value string) {
		if value == "" {
			return
		}
		if name == "" {
			s.logger.Debug().Str("filter", field).Msg("Filter not supported by source, ignored")
			return
		}
		params.Set(name, value)
	}

	set(qp.Search, "q", q.Search)
	set(qp.Themes, "themes", strings.Join(s.themeFilter(q), ","))
	set(qp.City, "city", q.City)
	if q.DateFrom != nil {
		set(qp.DateFrom, "date_from", formatDate(*q.DateFrom, qp.DateFormat))
	}
	if q.DateTo != nil {
		set(qp.DateTo, "date_to", formatDate(*q.DateTo, qp.DateFormat))
	}

	return params
}

// unmatchable reports whether q filters on themes this source has no ids for.
func (s *Source) unmatchable(q event.Query) bool {
	return s.cfg.Themes != nil && len(q.SortedThemes()) > 0 && len(s.themeFilter(q)) == 0
}

// themeFilter returns the upstream ids for the query's themes.
func (s *Source) themeFilter(q event.Query) []string {
	themes := q.SortedThemes()
	if s.cfg.Themes == nil || len(themes) == 0 {
		return themes
	}

	seen := make(map[string]bool)
	var ids []string
	for _, theme := range themes {
		for _, id := range s.cfg.Themes.ExternalIDs(s.ID(), theme) {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	sort.Strings(ids)
	return ids
}

func formatDate(t time.Time, layout string) string {
	switch layout {
	case DateFormatUnix:
		return strconv.FormatInt(t.Unix(), 10)
	case "":
		return t.UTC().Format(time.RFC3339)
	default:
		return t.UTC().Format(layout)
	}
}
