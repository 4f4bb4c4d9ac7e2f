// Package themes holds the shared theme taxonomy and maps each source's
// category ids onto it.
package themes

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/Sternrassler/event-aggregator/pkg/event"
	"gopkg.in/yaml.v3"
)

// Theme is one entry of the shared taxonomy.
type Theme struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`

	// Sources lists, per source id, the upstream category ids that mean this theme.
	Sources map[string][]string `yaml:"sources"`
}

// Dictionary resolves source-specific ids. It is immutable and safe for
// concurrent use.
type Dictionary struct {
	themes []event.ThemeRef
	index  map[event.SourceID]map[string]event.ThemeRef
}

// New builds a dictionary from themes.
func New(themes []Theme) (*Dictionary, error) {
	d := &Dictionary{
		themes: make([]event.ThemeRef, 0, len(themes)),
		index:  make(map[event.SourceID]map[string]event.ThemeRef),
	}

	seen := make(map[string]bool, len(themes))
	for i, t := range themes {
		if t.ID == "" {
			return nil, fmt.Errorf("theme %d: id is required", i)
		}
		if seen[t.ID] {
			return nil, fmt.Errorf("theme %q: duplicate id", t.ID)
		}
		seen[t.ID] = true

		name := t.Name
		if name == "" {
			name = t.ID
		}
		d.themes = append(d.themes, event.ThemeRef{ID: t.ID, Name: name})

		for source, ids := range t.Sources {
			src := event.SourceID(source)
			if d.index[src] == nil {
				d.index[src] = make(map[string]event.ThemeRef)
			}
			for _, ext := range ids {
				if prev, dup := d.index[src][ext]; dup {
					return nil, fmt.Errorf("source %s id %q maps to both %q and %q", source, ext, prev.ID, t.ID)
				}
				d.index[src][ext] = event.ThemeRef{ID: t.ID, Name: name, ExternalID: ext}
			}
		}
	}

	return d, nil
}

// Parse decodes a YAML list of themes.
func Parse(data []byte) (*Dictionary, error) {
	var themes []Theme
	if err := yaml.Unmarshal(data, &themes); err != nil {
		return nil, fmt.Errorf("parse themes: %w", err)
	}
	return New(themes)
}

// Load reads a YAML theme list from path.
func Load(path string) (*Dictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read themes: %w", err)
	}
	return Parse(data)
}

// LookupThemes maps ids of source onto the taxonomy in input order.
// Unknown ids are dropped.
func (d *Dictionary) LookupThemes(_ context.Context, ids []string, source event.SourceID) ([]event.ThemeRef, error) {
	bySource := d.index[source]
	refs := make([]event.ThemeRef, 0, len(ids))
	for _, id := range ids {
		if ref, ok := bySource[id]; ok {
			refs = append(refs, ref)
		}
	}
	return refs, nil
}

// Themes returns the taxonomy in definition order.
func (d *Dictionary) Themes() []event.ThemeRef {
	out := make([]event.ThemeRef, len(d.themes))
	copy(out, d.themes)
	return out
}

// ExternalIDs returns the ids of source that map to theme, for translating
// a unified theme filter into upstream parameters.
func (d *Dictionary) ExternalIDs(source event.SourceID, theme string) []string {
	var ids []string
	for ext, ref := range d.index[source] {
		if ref.ID == theme {
			ids = append(ids, ext)
		}
	}
	sort.Strings(ids)
	return ids
}
