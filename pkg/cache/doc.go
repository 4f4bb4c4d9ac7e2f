// Package cache provides the short-TTL Redis cache used to memoize upstream
// count probes and other idempotent lookups.
//
// Values are stored as JSON inside an Entry envelope that records when the
// value was cached and when it expires. Redis expires the key on its own; the
// envelope lets readers double-check staleness and report cache age.
//
// # Basic Usage
//
//	// Create Redis client
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	// Create cache manager
//	manager := cache.NewManager(redisClient)
//
//	// Build a key for a source's count under a query
//	key := cache.CountKey("kudago", event.Query{City: "msk"})
//
//	var total int
//	err := manager.Get(ctx, key, &total)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// probe the upstream, then
//		_ = manager.Set(ctx, key, total, 5*time.Minute)
//	}
//
// # Keys
//
// Keys are deterministic: identical filter sets always map to the same key and
// different filter sets never collide. Query parameters are sorted and theme
// lists are canonicalised before the key is built.
//
//	events:count:kudago:city=msk:themes=art,music
//
// # Metrics
//
//   - events_cache_hits_total{namespace} - Cache hits
//   - events_cache_misses_total{namespace} - Cache misses
//   - events_cache_errors_total{operation} - Cache operation errors
//
// Entries are idempotent: recomputing one only costs an upstream round trip,
// so no locking is done around read-through/write-through.
package cache
