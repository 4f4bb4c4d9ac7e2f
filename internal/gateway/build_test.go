package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Sternrassler/event-aggregator/internal/config"
	"github.com/Sternrassler/event-aggregator/internal/testutil"
	"github.com/Sternrassler/event-aggregator/pkg/aggregator"
	"github.com/Sternrassler/event-aggregator/pkg/event"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:          8080,
		Redis:         config.RedisConfig{Addr: "localhost:6379"},
		Log:           config.LogConfig{Level: "info"},
		FetchTimeout:  5 * time.Second,
		DefaultLimit:  20,
		MaxLimit:      100,
		SourcesFile:   "sources.yaml",
		UserAgent:     "event-aggregator-test/1.0",
		CountCacheTTL: time.Minute,
	}
}

func mockSpec(id, baseURL string) config.SourceSpec {
	return config.SourceSpec{
		ID:         id,
		BaseURL:    baseURL,
		ListPath:   testutil.ListPath,
		ItemPath:   testutil.ItemPrefix + "{id}",
		SkipParam:  testutil.SkipParam,
		LimitParam: testutil.LimitParam,
		ItemsPath:  "results",
		TotalPath:  "count",
		Retries:    1,
		Query:      config.QuerySpec{Search: "q", Themes: "categories"},
		Normalize: config.NormalizeSpec{
			ID:    "id",
			Title: "title",
			Start: "start",
		},
	}
}

func TestBuild_EndToEnd(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	alpha := testutil.NewMockUpstream(testutil.NewEvents("a", 23, base))
	defer alpha.Close()
	beta := testutil.NewMockUpstream(testutil.NewEvents("b", 7, base.Add(30*time.Minute)))
	defer beta.Close()

	sources := &config.SourcesFile{
		Sources: []config.SourceSpec{mockSpec("alpha", alpha.URL()), mockSpec("beta", beta.URL())},
	}

	g, err := Build(testConfig(), sources, nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if g.Cache != nil {
		t.Error("Cache should be nil without redis")
	}

	ids := g.Service.Sources()
	if len(ids) != 2 || ids[0] != "alpha" || ids[1] != "beta" {
		t.Fatalf("Sources() = %v, want [alpha beta]", ids)
	}

	page, err := g.Service.ListUnifiedPage(context.Background(), event.Query{}, 10, 1)
	if err != nil {
		t.Fatalf("ListUnifiedPage() error = %v", err)
	}
	if len(page.Data) != 10 {
		t.Errorf("len(Data) = %d, want 10", len(page.Data))
	}
	if page.Meta.TotalItems != 30 || page.Meta.TotalPages != 3 {
		t.Errorf("Meta = %+v, want 30 items over 3 pages", page.Meta)
	}
	for i := 1; i < len(page.Data); i++ {
		if page.Data[i].Start.Before(*page.Data[i-1].Start) {
			t.Errorf("Data[%d] starts before Data[%d]", i, i-1)
		}
	}

	ev, err := g.Service.GetEvent(context.Background(), "beta", "b-3")
	if err != nil {
		t.Fatalf("GetEvent() error = %v", err)
	}
	if ev.Title != "b event 3" || ev.Source != "beta" {
		t.Errorf("GetEvent() = %+v", ev)
	}

	_, err = g.Service.GetEvent(context.Background(), "beta", "b-99")
	if !errors.Is(err, aggregator.ErrNotFound) {
		t.Errorf("GetEvent(missing) error = %v, want ErrNotFound", err)
	}
}

func TestBuild_ThemeTranslation(t *testing.T) {
	mock := testutil.NewMockUpstream(testutil.NewEvents("a", 3, time.Now()))
	defer mock.Close()

	spec := mockSpec("alpha", mock.URL())
	spec.TranslateThemes = true
	sources, err := config.ParseSources([]byte(`
themes:
  - id: music
    sources:
      alpha: [concert, festival]
sources:
  - id: placeholder
    base_url: http://placeholder.example
    list_path: /
    total_path: count
    normalize:
      id: id
`))
	if err != nil {
		t.Fatalf("ParseSources() error = %v", err)
	}
	sources.Sources = []config.SourceSpec{spec}

	g, err := Build(testConfig(), sources, nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if _, err := g.Service.ListUnifiedPage(context.Background(), event.Query{Themes: []string{"music"}}, 5, 1); err != nil {
		t.Fatalf("ListUnifiedPage() error = %v", err)
	}

	queries := mock.GetListQueries()
	if len(queries) == 0 {
		t.Fatal("no list requests recorded")
	}
	if got := queries[0].Get("categories"); got != "concert,festival" {
		t.Errorf("categories = %q, want concert,festival", got)
	}
}

func TestNewBinding_AuthHeader(t *testing.T) {
	mock := testutil.NewMockUpstream(testutil.NewEvents("a", 1, time.Now()))
	defer mock.Close()

	t.Setenv("EVENTS_TEST_TOKEN", "s3cret")
	spec := mockSpec("alpha", mock.URL())
	spec.AuthTokenEnv = "EVENTS_TEST_TOKEN"
	spec.Headers = map[string]string{"X-Api-Version": "2"}

	b, err := NewBinding(spec, "ua/1.0", nil, nil)
	if err != nil {
		t.Fatalf("NewBinding() error = %v", err)
	}
	if _, err := b.Source.Count(context.Background(), event.Query{}); err != nil {
		t.Fatalf("Count() error = %v", err)
	}

	if got := mock.LastHeader.Get("Authorization"); got != "Bearer s3cret" {
		t.Errorf("Authorization = %q, want Bearer s3cret", got)
	}
	if got := mock.LastHeader.Get("X-Api-Version"); got != "2" {
		t.Errorf("X-Api-Version = %q, want 2", got)
	}
	if got := mock.LastHeader.Get("User-Agent"); got != "ua/1.0" {
		t.Errorf("User-Agent = %q, want ua/1.0", got)
	}
}

func TestNewBinding_Errors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*config.SourceSpec)
	}{
		{"rate limit without redis", func(s *config.SourceSpec) { s.RateLimit.Enabled = true }},
		{"bad scheme", func(s *config.SourceSpec) { s.BaseURL = "ftp://example.com" }},
		{"missing total path", func(s *config.SourceSpec) { s.TotalPath = "" }},
		{"lookup without dictionary themes path", func(s *config.SourceSpec) { s.Normalize.LookupThemes = true }},
		{"unknown zone", func(s *config.SourceSpec) { s.Normalize.TimeZone = "Nowhere/City" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := mockSpec("alpha", "http://localhost:1")
			tt.modify(&spec)
			if _, err := NewBinding(spec, "ua/1.0", nil, nil); err == nil {
				t.Error("NewBinding() should fail")
			}
		})
	}
}

func TestRulesFor_TimeZone(t *testing.T) {
	spec := mockSpec("alpha", "http://localhost:1")
	spec.Normalize.TimeZone = "Europe/Moscow"
	spec.Normalize.DescriptionFormat = "html"

	rules, err := rulesFor(spec)
	if err != nil {
		t.Fatalf("rulesFor() error = %v", err)
	}
	if rules.Time.Zone == nil || rules.Time.Zone.String() != "Europe/Moscow" {
		t.Errorf("Zone = %v, want Europe/Moscow", rules.Time.Zone)
	}
	if rules.DescriptionFormat != "html" {
		t.Errorf("DescriptionFormat = %q, want html", rules.DescriptionFormat)
	}
	if rules.Source != "alpha" {
		t.Errorf("Source = %q, want alpha", rules.Source)
	}
}
