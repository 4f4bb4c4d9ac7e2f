package config

import (
	"strings"
	"testing"
)

const minimalSources = `
themes:
  - id: music
    name: Music
    sources:
      alpha: [concert]
sources:
  - id: alpha
    base_url: http://alpha.example
    list_path: /events/
    item_path: /events/{id}/
    total_path: count
    items_path: results
    normalize:
      id: id
      title: title
`

func TestParseSources(t *testing.T) {
	f, err := ParseSources([]byte(minimalSources))
	if err != nil {
		t.Fatalf("ParseSources() error = %v", err)
	}
	if len(f.Sources) != 1 {
		t.Fatalf("len(Sources) = %d, want 1", len(f.Sources))
	}

	s := f.Sources[0]
	if s.ID != "alpha" || s.TotalPath != "count" || s.Normalize.Title != "title" {
		t.Errorf("source = %+v", s)
	}

	dict, err := f.Dictionary()
	if err != nil {
		t.Fatalf("Dictionary() error = %v", err)
	}
	if got := dict.ExternalIDs("alpha", "music"); len(got) != 1 || got[0] != "concert" {
		t.Errorf("ExternalIDs() = %v, want [concert]", got)
	}
}

func TestLoadSources_Example(t *testing.T) {
	t.Setenv("TIMEPAD_TOKEN", "secret")

	f, err := LoadSources("../../configs/sources.example.yaml")
	if err != nil {
		t.Fatalf("LoadSources() error = %v", err)
	}

	ids := make([]string, len(f.Sources))
	for i, s := range f.Sources {
		ids[i] = s.ID
	}
	if got := strings.Join(ids, ","); got != "kudago,timepad" {
		t.Errorf("source ids = %s, want kudago,timepad", got)
	}
	if _, err := f.Dictionary(); err != nil {
		t.Errorf("Dictionary() error = %v", err)
	}
}

func TestParseSources_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		replace [2]string
		wantErr string
	}{
		{"missing total path", [2]string{"total_path: count", ""}, "TotalPath"},
		{"bad base url", [2]string{"http://alpha.example", "alpha"}, "BaseURL"},
		{"item path without id", [2]string{"/events/{id}/", "/events/"}, "ItemPath"},
		{"missing id path", [2]string{"      id: id\n", ""}, "Normalize.ID"},
		{"unknown description format", [2]string{"      title: title", "      title: title\n      description_format: markdown"}, "DescriptionFormat"},
		{"uppercase id", [2]string{"id: alpha", "id: Alpha"}, "ID"},
		{"lookup without themes", [2]string{"      title: title", "      title: title\n      lookup_themes: true"}, "lookup_themes"},
		{"unknown zone", [2]string{"      title: title", "      title: title\n      time_zone: Mars/Olympus"}, "time zone"},
		{"missing token", [2]string{"    total_path: count", "    total_path: count\n    auth_token_env: EVENTS_TEST_UNSET_TOKEN"}, "EVENTS_TEST_UNSET_TOKEN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := strings.Replace(minimalSources, tt.replace[0], tt.replace[1], 1)
			_, err := ParseSources([]byte(doc))
			if err == nil {
				t.Fatal("ParseSources() should fail")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseSources_DuplicateID(t *testing.T) {
	doc := minimalSources + `
  - id: alpha
    base_url: http://other.example
    list_path: /events/
    total_path: count
    normalize:
      id: id
`
	_, err := ParseSources([]byte(doc))
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("ParseSources() error = %v, want duplicate id error", err)
	}
}

func TestParseSources_NoSources(t *testing.T) {
	if _, err := ParseSources([]byte("themes: []\n")); err == nil {
		t.Error("ParseSources() without sources should fail")
	}
}
