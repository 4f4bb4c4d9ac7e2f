// Package normalize maps raw upstream items onto the unified event schema.
// One Normalizer serves every source; the per-source differences live in
// Rules (field paths, text format, time handling, theme lookup).
package normalize

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/Sternrassler/event-aggregator/pkg/event"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"
)

// ErrMalformedItem is returned for items that are not JSON objects or lack an id.
var ErrMalformedItem = errors.New("malformed upstream item")

// ThemeLookup resolves source-specific theme ids into the shared taxonomy.
// Unknown ids are omitted from the result; each returned ref carries the
// ExternalID it was resolved from.
type ThemeLookup interface {
	LookupThemes(ctx context.Context, ids []string, source event.SourceID) ([]event.ThemeRef, error)
}

// Normalizer converts raw items of one source into unified events.
type Normalizer struct {
	rules  Rules
	themes ThemeLookup
	logger zerolog.Logger
}

// New creates a normalizer. themes may be nil unless rules.LookupThemes is set.
func New(rules Rules, themes ThemeLookup) (*Normalizer, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	if rules.LookupThemes && themes == nil {
		return nil, fmt.Errorf("rules %s: theme lookup required", rules.Source)
	}
	if rules.DescriptionFormat == "" {
		rules.DescriptionFormat = FormatPlain
	}
	return &Normalizer{
		rules:  rules,
		themes: themes,
		logger: log.With().
			Str("component", "normalizer").
			Str("source", string(rules.Source)).
			Logger(),
	}, nil
}

// Source returns the source these rules apply to.
func (n *Normalizer) Source() event.SourceID {
	return n.rules.Source
}

// Normalize maps items in order. Theme ids of the whole batch are resolved
// with a single lookup call.
func (n *Normalizer) Normalize(ctx context.Context, items []event.RawItem) ([]event.Event, error) {
	if len(items) == 0 {
		return []event.Event{}, nil
	}

	parsed := make([]gjson.Result, len(items))
	for i, raw := range items {
		if !gjson.ValidBytes(raw) {
			return nil, fmt.Errorf("%w: item %d is not valid JSON", ErrMalformedItem, i)
		}
		parsed[i] = gjson.ParseBytes(raw)
		if !parsed[i].IsObject() {
			return nil, fmt.Errorf("%w: item %d is not an object", ErrMalformedItem, i)
		}
	}

	resolved, err := n.resolveThemes(ctx, parsed)
	if err != nil {
		return nil, err
	}

	out := make([]event.Event, len(parsed))
	g := new(errgroup.Group)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range parsed {
		g.Go(func() error {
			ev, err := n.mapItem(parsed[i], resolved)
			if err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
			out[i] = ev
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return out, nil
}

// NormalizeOne maps a single item.
func (n *Normalizer) NormalizeOne(ctx context.Context, item event.RawItem) (event.Event, error) {
	events, err := n.Normalize(ctx, []event.RawItem{item})
	if err != nil {
		return event.Event{}, err
	}
	return events[0], nil
}

// resolveThemes performs the batch lookup. The result maps external ids to
// unified refs; it is nil when the rules use theme ids verbatim.
func (n *Normalizer) resolveThemes(ctx context.Context, items []gjson.Result) (map[string]event.ThemeRef, error) {
	if !n.rules.LookupThemes {
		return nil, nil
	}

	seen := make(map[string]bool)
	var ids []string
	for _, item := range items {
		for _, ref := range n.rawThemes(item) {
			if !seen[ref.ExternalID] {
				seen[ref.ExternalID] = true
				ids = append(ids, ref.ExternalID)
			}
		}
	}
	if len(ids) == 0 {
		return map[string]event.ThemeRef{}, nil
	}
	sort.Strings(ids)

	refs, err := n.themes.LookupThemes(ctx, ids, n.rules.Source)
	if err != nil {
		return nil, fmt.Errorf("lookup themes: %w", err)
	}

	resolved := make(map[string]event.ThemeRef, len(refs))
	for _, ref := range refs {
		if _, dup := resolved[ref.ExternalID]; !dup {
			resolved[ref.ExternalID] = ref
		}
	}

	n.logger.Debug().
		Int("requested", len(ids)).
		Int("resolved", len(resolved)).
		Msg("Resolved themes")

	return resolved, nil
}

// rawThemes reads theme ids (and names, when present) from item.
func (n *Normalizer) rawThemes(item gjson.Result) []event.ThemeRef {
	f := n.rules.Fields
	if f.Themes == "" {
		return nil
	}

	var refs []event.ThemeRef
	item.Get(f.Themes).ForEach(func(_, el gjson.Result) bool {
		id, name := el, gjson.Result{}
		if el.IsObject() {
			if f.ThemeID != "" {
				id = el.Get(f.ThemeID)
			}
			if f.ThemeName != "" {
				name = el.Get(f.ThemeName)
			}
		}
		ext := strings.TrimSpace(id.String())
		if ext == "" || id.IsObject() || id.IsArray() {
			return true
		}
		ref := event.ThemeRef{ID: ext, Name: ext, ExternalID: ext}
		if s := strings.TrimSpace(name.String()); s != "" {
			ref.Name = s
		}
		refs = append(refs, ref)
		return true
	})
	return refs
}

// mapItem builds one event. resolved is nil when theme ids are used verbatim.
func (n *Normalizer) mapItem(item gjson.Result, resolved map[string]event.ThemeRef) (event.Event, error) {
	f := n.rules.Fields

	id := strings.TrimSpace(item.Get(f.ID).String())
	if id == "" {
		return event.Event{}, fmt.Errorf("%w: missing id at %q", ErrMalformedItem, f.ID)
	}

	ev := event.Event{
		ID:                id,
		Title:             n.title(item),
		Description:       n.description(item),
		Start:             n.timestamp(item, f.Start),
		End:               n.timestamp(item, f.End),
		RegistrationStart: n.timestamp(item, f.RegistrationStart),
		RegistrationEnd:   n.timestamp(item, f.RegistrationEnd),
		Location: event.Location{
			Country: optString(item, f.Country),
			City:    optString(item, f.City),
			Address: optString(item, f.Address),
		},
		URL:       optString(item, f.URL),
		PosterURL: optString(item, f.Poster),
		Themes:    n.themesOf(item, resolved),
		Organizer: optString(item, f.Organizer),
		Source:    n.rules.Source,
		Payload:   n.payload(item),
	}

	return ev, nil
}

func (n *Normalizer) title(item gjson.Result) string {
	if n.rules.Fields.Title == "" {
		return ""
	}
	return collapse(item.Get(n.rules.Fields.Title).String())
}

func (n *Normalizer) description(item gjson.Result) *string {
	path := n.rules.Fields.Description
	if path == "" {
		return nil
	}
	v := item.Get(path)
	if !v.Exists() || v.Type == gjson.Null {
		return nil
	}
	text := renderText(v, n.rules.DescriptionFormat)
	if text == "" {
		return nil
	}
	return &text
}

func (n *Normalizer) timestamp(item gjson.Result, path string) *time.Time {
	if path == "" {
		return nil
	}
	v := item.Get(path)
	t, ok := parseTime(v, n.rules.Time)
	if !ok {
		if v.Exists() && v.Type != gjson.Null {
			n.logger.Debug().Str("path", path).Str("value", v.String()).Msg("Unparseable timestamp treated as absent")
		}
		return nil
	}
	return &t
}

func (n *Normalizer) themesOf(item gjson.Result, resolved map[string]event.ThemeRef) []event.ThemeRef {
	raw := n.rawThemes(item)
	themes := make([]event.ThemeRef, 0, len(raw))
	for _, ref := range raw {
		if resolved != nil {
			var ok bool
			if ref, ok = resolved[ref.ExternalID]; !ok {
				continue
			}
		}
		themes = append(themes, ref)
	}
	return themes
}

func (n *Normalizer) payload(item gjson.Result) event.Payload {
	p := event.Payload{Source: n.rules.Source}
	for name, path := range n.rules.Payload {
		v := item.Get(path)
		if !v.Exists() || v.Type == gjson.Null {
			continue
		}
		if p.Fields == nil {
			p.Fields = make(map[string]any, len(n.rules.Payload))
		}
		p.Fields[name] = v.Value()
	}
	return p
}

// optString returns the trimmed string at path, or nil when absent or empty.
func optString(item gjson.Result, path string) *string {
	if path == "" {
		return nil
	}
	v := item.Get(path)
	if !v.Exists() || v.Type == gjson.Null || v.IsObject() || v.IsArray() {
		return nil
	}
	s := strings.TrimSpace(v.String())
	if s == "" {
		return nil
	}
	return &s
}
