package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/Sternrassler/event-aggregator/pkg/event"
)

// Key namespaces.
const (
	NamespaceCount = "count"
	NamespaceItem  = "item"
)

// CacheKey represents a unique identifier for a cached value.
type CacheKey struct {
	// Namespace separates value kinds (e.g., "count")
	Namespace string

	// Source is the upstream the value belongs to
	Source event.SourceID

	// Params are the canonical request parameters (e.g., {"city": "msk"})
	Params url.Values
}

// CountKey returns the key under which a source's total for q is cached.
// Themes are kept as separate values so a theme id containing a comma stays
// distinct from two ids.
func CountKey(source event.SourceID, q event.Query) CacheKey {
	params := q.Values()
	if themes := q.SortedThemes(); len(themes) > 0 {
		params["themes"] = themes
	}
	return CacheKey{
		Namespace: NamespaceCount,
		Source:    source,
		Params:    params,
	}
}

// ItemKey returns the key for a single upstream item.
func ItemKey(source event.SourceID, id string) CacheKey {
	return CacheKey{
		Namespace: NamespaceItem,
		Source:    source,
		Params:    url.Values{"id": []string{id}},
	}
}

// String generates a deterministic cache key string. Param names and values
// are query-escaped so delimiters inside values cannot merge two filters.
// Format: events:namespace:source:param1=val1:param2=val2
//
// Example:
//
//	events:count:kudago:city=msk:themes=art,music
func (k CacheKey) String() string {
	parts := []string{"events"}

	if k.Namespace != "" {
		parts = append(parts, k.Namespace)
	}
	if k.Source != "" {
		parts = append(parts, string(k.Source))
	}

	// Add params (sorted for determinism)
	if len(k.Params) > 0 {
		keys := make([]string, 0, len(k.Params))
		for key := range k.Params {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			values := make([]string, len(k.Params[key]))
			for i, v := range k.Params[key] {
				values[i] = url.QueryEscape(v)
			}
			parts = append(parts, fmt.Sprintf("%s=%s", url.QueryEscape(key), strings.Join(values, ",")))
		}
	}

	return strings.Join(parts, ":")
}
