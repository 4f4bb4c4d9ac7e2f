package normalize

import (
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// offsetLayouts carry their own offset.
var offsetLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05-0700",
	"2006-01-02 15:04:05Z07:00",
}

// zonelessLayouts are tried when a timestamp has no offset.
var zonelessLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// parseTime converts an upstream timestamp to UTC. ok is false when the
// value is absent, null or unparseable.
func parseTime(v gjson.Result, rules TimeRules) (time.Time, bool) {
	switch v.Type {
	case gjson.Number:
		return time.Unix(v.Int(), 0).UTC(), true
	case gjson.String:
	default:
		return time.Time{}, false
	}

	s := strings.TrimSpace(v.Str)
	if s == "" {
		return time.Time{}, false
	}

	if rules.Unix {
		if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.Unix(secs, 0).UTC(), true
		}
	}

	zone := rules.Zone
	if zone == nil {
		zone = time.UTC
	}

	if rules.Layout != "" {
		if t, err := time.ParseInLocation(rules.Layout, s, zone); err == nil {
			return t.UTC(), true
		}
	}

	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}

	for _, layout := range zonelessLayouts {
		if t, err := time.ParseInLocation(layout, s, zone); err == nil {
			return t.UTC(), true
		}
	}

	return time.Time{}, false
}
