package config

import (
	"fmt"
	"os"
	"time"

	"github.com/Sternrassler/event-aggregator/pkg/themes"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// SourcesFile is the YAML document describing the theme taxonomy and every
// upstream source, in registration order.
type SourcesFile struct {
	Themes  []themes.Theme `yaml:"themes"`
	Sources []SourceSpec   `yaml:"sources" validate:"required,min=1,dive"`
}

// SourceSpec describes one upstream source.
type SourceSpec struct {
	ID      string `yaml:"id" validate:"required,lowercase,excludesall=/?#"`
	BaseURL string `yaml:"base_url" validate:"required,url"`

	ListPath       string `yaml:"list_path" validate:"required"`
	ItemPath       string `yaml:"item_path" validate:"omitempty,contains={id}"`
	ItemResultPath string `yaml:"item_result_path"`
	SkipParam      string `yaml:"skip_param"`
	LimitParam     string `yaml:"limit_param"`
	PageSize       int    `yaml:"page_size" validate:"gte=0"`
	CountLimit     int    `yaml:"count_limit" validate:"gte=0"`
	ItemsPath      string `yaml:"items_path"`
	TotalPath      string `yaml:"total_path" validate:"required"`

	// MaxTotal caps the total the source reports. Zero means no cap.
	MaxTotal int `yaml:"max_total" validate:"gte=0"`

	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
	Retries int           `yaml:"retries" validate:"gte=0,lte=10"`

	Query           QuerySpec         `yaml:"query"`
	TranslateThemes bool              `yaml:"translate_themes"`
	Params          map[string]string `yaml:"params"`
	Headers         map[string]string `yaml:"headers"`

	// AuthTokenEnv names an environment variable holding a bearer token.
	AuthTokenEnv string `yaml:"auth_token_env"`

	RateLimit RateLimitSpec `yaml:"ratelimit"`
	Normalize NormalizeSpec `yaml:"normalize"`
}

// QuerySpec names the upstream's filter parameters.
type QuerySpec struct {
	Search     string `yaml:"search"`
	Themes     string `yaml:"themes"`
	City       string `yaml:"city"`
	DateFrom   string `yaml:"date_from"`
	DateTo     string `yaml:"date_to"`
	DateFormat string `yaml:"date_format"`
}

// RateLimitSpec enables budget tracking for a source.
type RateLimitSpec struct {
	Enabled         bool   `yaml:"enabled"`
	RemainingHeader string `yaml:"remaining_header"`
	ResetHeader     string `yaml:"reset_header"`
}

// NormalizeSpec holds gjson paths and parsing rules for a source's items.
type NormalizeSpec struct {
	ID                string `yaml:"id" validate:"required"`
	Title             string `yaml:"title"`
	Description       string `yaml:"description"`
	DescriptionFormat string `yaml:"description_format" validate:"omitempty,oneof=plain html blocks"`
	Start             string `yaml:"start"`
	End               string `yaml:"end"`
	RegistrationStart string `yaml:"registration_start"`
	RegistrationEnd   string `yaml:"registration_end"`
	Country           string `yaml:"country"`
	City              string `yaml:"city"`
	Address           string `yaml:"address"`
	URL               string `yaml:"url"`
	Poster            string `yaml:"poster"`
	Organizer         string `yaml:"organizer"`
	Themes            string `yaml:"themes"`
	ThemeID           string `yaml:"theme_id"`
	ThemeName         string `yaml:"theme_name"`
	LookupThemes      bool   `yaml:"lookup_themes"`

	TimeLayout string `yaml:"time_layout"`
	TimeZone   string `yaml:"time_zone"`
	Unix       bool   `yaml:"unix"`

	Payload map[string]string `yaml:"payload"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ParseSources decodes and validates a sources document.
func ParseSources(data []byte) (*SourcesFile, error) {
	var f SourcesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse sources: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// LoadSources reads and validates the sources document at path.
func LoadSources(path string) (*SourcesFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}
	return ParseSources(data)
}

// Validate checks field constraints and cross-source rules.
func (f *SourcesFile) Validate() error {
	if err := validate.Struct(f); err != nil {
		return fmt.Errorf("invalid sources: %w", err)
	}

	seen := make(map[string]bool, len(f.Sources))
	for _, s := range f.Sources {
		if seen[s.ID] {
			return fmt.Errorf("source %q: duplicate id", s.ID)
		}
		seen[s.ID] = true

		if s.Normalize.LookupThemes && s.Normalize.Themes == "" {
			return fmt.Errorf("source %q: lookup_themes requires a themes path", s.ID)
		}
		if s.Normalize.TimeZone != "" {
			if _, err := time.LoadLocation(s.Normalize.TimeZone); err != nil {
				return fmt.Errorf("source %q: time zone: %w", s.ID, err)
			}
		}
		if s.AuthTokenEnv != "" && os.Getenv(s.AuthTokenEnv) == "" {
			return fmt.Errorf("source %q: environment variable %s is empty", s.ID, s.AuthTokenEnv)
		}
	}
	return nil
}

// Dictionary builds the theme dictionary declared in the file.
func (f *SourcesFile) Dictionary() (*themes.Dictionary, error) {
	return themes.New(f.Themes)
}
