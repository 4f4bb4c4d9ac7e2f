package aggregator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Sternrassler/event-aggregator/pkg/event"
)

// countingGetter counts item lookups of the wrapped fakeSource.
type countingGetter struct {
	*fakeSource
	gets int
}

func (c *countingGetter) Get(ctx context.Context, id string) (event.RawItem, error) {
	c.gets++
	return c.fakeSource.Get(ctx, id)
}

func TestGetEvent_ItemCache(t *testing.T) {
	tests := []struct {
		name     string
		ttl      time.Duration
		wantGets int
	}{
		{"enabled", time.Minute, 1},
		{"disabled", 0, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &countingGetter{fakeSource: newFakeSource("a", 3, 0, time.Hour)}
			svc := newService(t, bind(t, src), newFakeCache(), Config{ItemCacheTTL: tt.ttl})

			for range 3 {
				ev, err := svc.GetEvent(context.Background(), "a", "a-2")
				if err != nil {
					t.Fatalf("GetEvent() error = %v", err)
				}
				if ev.ID != "a-2" || ev.Title != "a 2" {
					t.Errorf("GetEvent() = %s %q, want a-2 \"a 2\"", ev.ID, ev.Title)
				}
			}
			if src.gets != tt.wantGets {
				t.Errorf("upstream lookups = %d, want %d", src.gets, tt.wantGets)
			}
		})
	}
}

func TestGetEvent_ItemCacheSkipsMisses(t *testing.T) {
	src := &countingGetter{fakeSource: newFakeSource("a", 1, 0, time.Hour)}
	c := newFakeCache()
	svc := newService(t, bind(t, src), c, Config{ItemCacheTTL: time.Minute})

	for range 2 {
		if _, err := svc.GetEvent(context.Background(), "a", "a-9"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("GetEvent() error = %v, want ErrNotFound", err)
		}
	}
	if src.gets != 2 {
		t.Errorf("upstream lookups = %d, want 2", src.gets)
	}
	if c.sets != 0 {
		t.Errorf("cache writes = %d, want 0", c.sets)
	}
}

func TestGetEvent_ItemCacheFailureFallsThrough(t *testing.T) {
	src := &countingGetter{fakeSource: newFakeSource("a", 1, 0, time.Hour)}
	c := newFakeCache()
	c.getErr = errBoom
	c.setErr = errBoom
	svc := newService(t, bind(t, src), c, Config{ItemCacheTTL: time.Minute})

	if _, err := svc.GetEvent(context.Background(), "a", "a-1"); err != nil {
		t.Fatalf("GetEvent() error = %v", err)
	}
	if src.gets != 1 {
		t.Errorf("upstream lookups = %d, want 1", src.gets)
	}
}
