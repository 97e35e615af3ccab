package cache

import (
	"net/http"
	"time"
)

const (
	// DefaultTTL is the fallback TTL when no expires header is present.
	DefaultTTL = 5 * time.Minute
)

// NewEntry builds a cache entry from a fetched page. Entries without an
// Expires header live for fallbackTTL (DefaultTTL when zero).
func NewEntry(statusCode int, header http.Header, body []byte, fallbackTTL time.Duration) *CacheEntry {
	if fallbackTTL <= 0 {
		fallbackTTL = DefaultTTL
	}

	entry := &CacheEntry{
		Body:       append([]byte(nil), body...),
		StatusCode: statusCode,
		ETag:       header.Get("ETag"),
		Headers:    header.Clone(),
		CachedAt:   time.Now(),
		Expires:    parseExpires(header, fallbackTTL),
	}

	if lastModStr := header.Get("Last-Modified"); lastModStr != "" {
		if lastMod, err := http.ParseTime(lastModStr); err == nil {
			entry.LastModified = lastMod
		}
	}

	return entry
}

// parseExpires returns the Expires header as a time, or now + fallbackTTL if
// the header is absent or unparsable. A past Expires yields now.
func parseExpires(headers http.Header, fallbackTTL time.Duration) time.Time {
	expiresStr := headers.Get("Expires")
	if expiresStr == "" {
		return time.Now().Add(fallbackTTL)
	}

	expires, err := http.ParseTime(expiresStr)
	if err != nil {
		return time.Now().Add(fallbackTTL)
	}

	if expires.Before(time.Now()) {
		return time.Now()
	}

	return expires
}

// ShouldMakeConditionalRequest reports whether entry can be revalidated with
// If-None-Match or If-Modified-Since.
func ShouldMakeConditionalRequest(entry *CacheEntry) bool {
	return entry != nil && entry.HasValidators()
}

// AddConditionalHeaders adds If-None-Match (preferred) or If-Modified-Since
// to req.
func AddConditionalHeaders(req *http.Request, entry *CacheEntry) {
	if entry == nil || req == nil {
		return
	}

	if entry.ETag != "" {
		req.Header.Set("If-None-Match", entry.ETag)
	} else if !entry.LastModified.IsZero() {
		req.Header.Set("If-Modified-Since", entry.LastModified.UTC().Format(http.TimeFormat))
	}
}
