package cache

import (
	"net/http"
	"time"
)

// CacheEntry is a cached listing page.
type CacheEntry struct {
	// Body is the page markup.
	Body []byte `json:"body"`

	// StatusCode is the HTTP status code of the cached response.
	StatusCode int `json:"status_code"`

	// ETag and LastModified are the validators used for conditional requests.
	ETag         string    `json:"etag,omitempty"`
	LastModified time.Time `json:"last_modified,omitempty"`

	// Expires is when the entry becomes stale.
	Expires time.Time `json:"expires"`

	// Headers are the response headers.
	Headers http.Header `json:"headers,omitempty"`

	// CachedAt is when the page was stored.
	CachedAt time.Time `json:"cached_at"`
}

// IsExpired returns true if the cache entry has expired.
func (e *CacheEntry) IsExpired() bool {
	return !time.Now().Before(e.Expires)
}

// TTL returns the time until expiration, or 0 if already expired.
func (e *CacheEntry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// HasValidators reports whether a conditional request can revalidate the entry.
func (e *CacheEntry) HasValidators() bool {
	return e.ETag != "" || !e.LastModified.IsZero()
}
