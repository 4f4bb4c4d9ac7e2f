package aggregator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/event-aggregator/pkg/cache"
	"github.com/Sternrassler/event-aggregator/pkg/event"
	"github.com/Sternrassler/event-aggregator/pkg/normalize"
)

var baseTime = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

// fakeSource serves an in-memory list and records calls.
type fakeSource struct {
	id       event.SourceID
	items    []event.RawItem
	countErr error
	fetchErr error
	block    bool

	mu         sync.Mutex
	countCalls int
	fetches    [][2]int
}

// newFakeSource creates n items whose start times are step apart from offset.
func newFakeSource(id string, n int, offset, step time.Duration) *fakeSource {
	items := make([]event.RawItem, n)
	for i := range items {
		start := baseTime.Add(offset + time.Duration(i)*step).Format(time.RFC3339)
		items[i] = event.RawItem(fmt.Sprintf(`{"id":"%s-%d","title":"%s %d","start":"%s"}`, id, i+1, id, i+1, start))
	}
	return &fakeSource{id: event.SourceID(id), items: items}
}

func (f *fakeSource) ID() event.SourceID { return f.id }

func (f *fakeSource) Count(ctx context.Context, _ event.Query) (int, error) {
	f.mu.Lock()
	f.countCalls++
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	if f.countErr != nil {
		return 0, f.countErr
	}
	return len(f.items), nil
}

func (f *fakeSource) Fetch(ctx context.Context, _ event.Query, skip, take int) ([]event.RawItem, error) {
	f.mu.Lock()
	f.fetches = append(f.fetches, [2]int{skip, take})
	f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if skip >= len(f.items) {
		return nil, nil
	}
	return f.items[skip:min(skip+take, len(f.items))], nil
}

func (f *fakeSource) Get(_ context.Context, id string) (event.RawItem, error) {
	for _, raw := range f.items {
		var v struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(raw, &v); err == nil && v.ID == id {
			return raw, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (f *fakeSource) counts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.countCalls
}

func (f *fakeSource) fetchCalls() [][2]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][2]int(nil), f.fetches...)
}

// listOnly exposes a fakeSource without its ItemGetter.
type listOnly struct{ f *fakeSource }

func (l listOnly) ID() event.SourceID { return l.f.ID() }

func (l listOnly) Count(ctx context.Context, q event.Query) (int, error) {
	return l.f.Count(ctx, q)
}

func (l listOnly) Fetch(ctx context.Context, q event.Query, skip, take int) ([]event.RawItem, error) {
	return l.f.Fetch(ctx, q, skip, take)
}

// fakeCache is an in-memory Cache.
type fakeCache struct {
	mu     sync.Mutex
	data   map[string][]byte
	getErr error
	setErr error
	sets   int
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte)}
}

func (c *fakeCache) Get(_ context.Context, key cache.CacheKey, dest any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return c.getErr
	}
	b, ok := c.data[key.String()]
	if !ok {
		return cache.ErrCacheMiss
	}
	return json.Unmarshal(b, dest)
}

func (c *fakeCache) Set(_ context.Context, key cache.CacheKey, value any, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	if c.setErr != nil {
		return c.setErr
	}
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key.String()] = b
	return nil
}

func testNormalizer(t *testing.T, id event.SourceID) *normalize.Normalizer {
	t.Helper()
	n, err := normalize.New(normalize.Rules{
		Source: id,
		Fields: normalize.Fields{ID: "id", Title: "title", Start: "start"},
	}, nil)
	if err != nil {
		t.Fatalf("normalize.New() error = %v", err)
	}
	return n
}

func bind(t *testing.T, sources ...Source) []Binding {
	t.Helper()
	bindings := make([]Binding, len(sources))
	for i, s := range sources {
		bindings[i] = Binding{Source: s, Normalizer: testNormalizer(t, s.ID())}
	}
	return bindings
}

func newService(t *testing.T, bindings []Binding, c Cache, cfg Config) *Service {
	t.Helper()
	svc, err := New(bindings, c, cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return svc
}

func ids(events []event.Event) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.ID
	}
	return out
}

var errBoom = errors.New("boom")
