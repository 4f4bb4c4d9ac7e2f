package normalize

import (
	"fmt"
	"time"

	"github.com/Sternrassler/event-aggregator/pkg/event"
)

// TextFormat describes how an upstream encodes rich text.
type TextFormat string

const (
	// FormatPlain is text as-is (whitespace trimmed).
	FormatPlain TextFormat = "plain"

	// FormatHTML is HTML markup; tags are stripped and entities decoded.
	FormatHTML TextFormat = "html"

	// FormatBlocks is a block document ({"blocks":[{"data":{"text":...}}]}),
	// either embedded as an object or as a JSON string.
	FormatBlocks TextFormat = "blocks"
)

// Fields maps unified fields to gjson paths in the upstream item.
// An empty path means the upstream never provides the field.
type Fields struct {
	ID                string
	Title             string
	Description       string
	Start             string
	End               string
	RegistrationStart string
	RegistrationEnd   string
	Country           string
	City              string
	Address           string
	URL               string
	Poster            string
	Organizer         string

	// Themes points at an array of theme ids, or of objects holding them.
	Themes string

	// ThemeID and ThemeName are paths inside each Themes element when the
	// elements are objects.
	ThemeID   string
	ThemeName string
}

// TimeRules controls timestamp parsing.
type TimeRules struct {
	// Layout is tried before the built-in layouts. Optional.
	Layout string

	// Zone interprets timestamps that carry no offset. Nil means UTC.
	Zone *time.Location

	// Unix treats numeric strings as unix seconds.
	Unix bool
}

// Rules is the per-source normalization strategy.
type Rules struct {
	Source            event.SourceID
	Fields            Fields
	DescriptionFormat TextFormat
	Time              TimeRules

	// Payload copies source-specific values into Event.Payload.Fields,
	// keyed by name.
	Payload map[string]string

	// LookupThemes cross-references theme ids through a ThemeLookup instead
	// of using them verbatim.
	LookupThemes bool
}

// Validate reports configuration errors.
func (r Rules) Validate() error {
	if r.Source == "" {
		return fmt.Errorf("rules: source is required")
	}
	if r.Fields.ID == "" {
		return fmt.Errorf("rules %s: id path is required", r.Source)
	}
	switch r.DescriptionFormat {
	case "", FormatPlain, FormatHTML, FormatBlocks:
	default:
		return fmt.Errorf("rules %s: unknown description format %q", r.Source, r.DescriptionFormat)
	}
	if r.LookupThemes && r.Fields.Themes == "" {
		return fmt.Errorf("rules %s: lookup_themes requires a themes path", r.Source)
	}
	return nil
}
