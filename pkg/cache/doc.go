// Package cache stores fetched listing pages in Redis so that repeated runs
// within the cache lifetime do not refetch unchanged pages.
//
// Entries are keyed by host, profile path and page query (tab, after) and
// carry the response validators. A cached entry with an ETag or
// Last-Modified is revalidated with a conditional request; a 304 Not
// Modified answer is served from the cache and extends its lifetime.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	manager := cache.NewManager(redisClient).WithTTL(10 * time.Minute)
//
//	key := cache.KeyFor(u)
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch the page
//	}
//
// # Metrics
//
//   - star_export_cache_hits_total
//   - star_export_cache_misses_total
//   - star_export_cache_written_bytes_total
//   - star_export_304_responses_total
//   - star_export_conditional_requests_total
//   - star_export_cache_errors_total{operation}
package cache
