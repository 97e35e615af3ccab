package cache

import (
	"net/url"
	"sort"
	"strings"
)

// KeyPrefix namespaces every key written by the cache manager.
const KeyPrefix = "stars"

// CacheKey identifies one listing page.
type CacheKey struct {
	// Host is the listing host, e.g. "github.com".
	Host string

	// Path is the profile path, e.g. "/octocat".
	Path string

	// Query holds the page selector parameters (tab, after).
	Query url.Values
}

// KeyFor builds the key for a request URL.
func KeyFor(u *url.URL) CacheKey {
	return CacheKey{
		Host:  strings.ToLower(u.Host),
		Path:  u.Path,
		Query: u.Query(),
	}
}

// String generates a deterministic key.
// Format: stars:host/path:param1=val1:param2=val2
//
// Example:
//
//	stars:github.com/octocat:after=Y3Vyc29yOjMw:tab=stars
func (k CacheKey) String() string {
	parts := []string{KeyPrefix}

	target := k.Host + "/" + strings.Trim(k.Path, "/")
	if target != "/" {
		parts = append(parts, strings.TrimSuffix(target, "/"))
	}

	if len(k.Query) > 0 {
		keys := make([]string, 0, len(k.Query))
		for key := range k.Query {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			parts = append(parts, key+"="+k.Query.Get(key))
		}
	}

	return strings.Join(parts, ":")
}
