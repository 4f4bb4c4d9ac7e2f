//go:build integration

package upstream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Sternrassler/event-aggregator/internal/testutil"
	"github.com/Sternrassler/event-aggregator/pkg/event"
	"github.com/Sternrassler/event-aggregator/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedisContainer creates a Redis container for integration testing.
func setupRedisContainer(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := redisContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := redisContainer.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

func TestIntegration_RateLimitBudget(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	mock := testutil.NewMockUpstream(testutil.NewEvents("a", 5, time.Now()))
	defer mock.Close()
	mock.SetHeader(ratelimit.DefaultRemainingHeader, "0")
	mock.SetHeader(ratelimit.DefaultResetHeader, "60")

	tracker := ratelimit.NewTracker(redisClient, "test", ratelimit.DefaultHeaders(), ratelimit.DefaultThresholds(), zerolog.Nop())

	client, err := NewClient(ClientConfig{
		Source:      "test",
		BaseURL:     mock.URL(),
		UserAgent:   "TestApp/1.0.0 (integration@test.com)",
		Retry:       fastRetry(),
		RateLimiter: tracker,
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	ctx := context.Background()

	// Request 1 goes through and records an exhausted budget.
	if _, err := client.GetJSON(ctx, testutil.ListPath, nil); err != nil {
		t.Fatalf("Request 1 failed: %v", err)
	}

	state, err := tracker.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state == nil || state.Remaining != 0 {
		t.Fatalf("state = %+v, want remaining 0", state)
	}

	// Request 2 is blocked locally without reaching the upstream.
	_, err = client.GetJSON(ctx, testutil.ListPath, nil)
	if !errors.Is(err, ratelimit.ErrBudgetExhausted) {
		t.Fatalf("Request 2 error = %v, want ErrBudgetExhausted", err)
	}
	if got := mock.GetRequestCount(); got != 1 {
		t.Errorf("request count = %d, want 1", got)
	}
}

func TestIntegration_SourceEndToEnd(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	mock := testutil.NewMockUpstream(testutil.NewEvents("a", 12, time.Now()))
	defer mock.Close()
	mock.SetHeader(ratelimit.DefaultRemainingHeader, "100")
	mock.SetHeader(ratelimit.DefaultResetHeader, "60")

	tracker := ratelimit.NewTracker(redisClient, "test", ratelimit.DefaultHeaders(), ratelimit.DefaultThresholds(), zerolog.Nop())
	client, err := NewClient(ClientConfig{
		Source:      "test",
		BaseURL:     mock.URL(),
		UserAgent:   "TestApp/1.0.0 (integration@test.com)",
		Retry:       fastRetry(),
		RateLimiter: tracker,
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	source, err := NewSource(client, mockSourceConfig())
	if err != nil {
		t.Fatalf("NewSource() error = %v", err)
	}

	ctx := context.Background()
	total, err := source.Count(ctx, event.Query{})
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if total != 12 {
		t.Errorf("Count() = %d, want 12", total)
	}

	items, err := source.Fetch(ctx, event.Query{}, 10, 5)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(items) != 2 {
		t.Errorf("Fetch() returned %d items, want 2", len(items))
	}
}
