package event

import (
	"net/url"
	"sort"
	"strings"
	"time"
)

// Query holds the caller's filter criteria. Each source translates it into
// its own wire parameters.
type Query struct {
	Search   string
	Themes   []string
	City     string
	DateFrom *time.Time
	DateTo   *time.Time
}

// Values returns a canonical encoding of the query. Identical filter sets
// produce identical values regardless of theme order or time zone.
func (q Query) Values() url.Values {
	v := url.Values{}
	if s := strings.TrimSpace(q.Search); s != "" {
		v.Set("q", s)
	}
	if themes := q.SortedThemes(); len(themes) > 0 {
		v.Set("themes", strings.Join(themes, ","))
	}
	if c := strings.TrimSpace(q.City); c != "" {
		v.Set("city", c)
	}
	if q.DateFrom != nil {
		v.Set("date_from", q.DateFrom.UTC().Format(time.RFC3339))
	}
	if q.DateTo != nil {
		v.Set("date_to", q.DateTo.UTC().Format(time.RFC3339))
	}
	return v
}

// SortedThemes returns the non-empty theme ids, deduplicated and sorted.
func (q Query) SortedThemes() []string {
	if len(q.Themes) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(q.Themes))
	out := make([]string, 0, len(q.Themes))
	for _, t := range q.Themes {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
