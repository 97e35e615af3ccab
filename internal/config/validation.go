package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/Sternrassler/github-star-export/pkg/export"
	"github.com/Sternrassler/github-star-export/pkg/logging"
	"github.com/Sternrassler/github-star-export/pkg/pagination"
)

// ValidationErrors collects every problem found by Validate. It matches
// pagination.ErrConfiguration with errors.Is.
type ValidationErrors []*pagination.ConfigError

func (e ValidationErrors) Error() string {
	if len(e) == 1 {
		return e[0].Error()
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid configuration:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (e ValidationErrors) Unwrap() []error {
	errs := make([]error, len(e))
	for i, err := range e {
		errs[i] = err
	}
	return errs
}

// Validate checks the configuration for required fields and valid values.
func (c *Config) Validate() error {
	var errs ValidationErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, &pagination.ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(c.Name) == "" {
		add("name", "GitHub user name is required")
	}

	if u, err := url.Parse(c.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		add("base_url", "must be an absolute http(s) URL (got %q)", c.BaseURL)
	}

	if c.HTTP.Proxy != "" {
		if u, err := url.Parse(c.HTTP.Proxy); err != nil || u.Scheme == "" || u.Host == "" {
			add("http.proxy", "must include scheme and host (got %q)", c.HTTP.Proxy)
		}
	}
	if c.HTTP.UserAgent == "" {
		add("http.user_agent", "must not be empty")
	}
	if c.HTTP.Timeout <= 0 {
		add("http.timeout", "must be positive (got %v)", c.HTTP.Timeout)
	}
	if c.HTTP.MaxRetries < 1 {
		add("http.max_retries", "must be >= 1 (got %d)", c.HTTP.MaxRetries)
	}
	if c.HTTP.BackoffBase < 0 {
		add("http.backoff_base", "must not be negative (got %v)", c.HTTP.BackoffBase)
	}
	if c.HTTP.MaxPages < 0 {
		add("http.max_pages", "must not be negative (got %d)", c.HTTP.MaxPages)
	}

	switch strings.ToLower(c.Output.Format) {
	case export.FormatXLSX, export.FormatCSV:
	default:
		add("output.format", "must be %s or %s (got %q)", export.FormatXLSX, export.FormatCSV, c.Output.Format)
	}
	if c.Output.Dir == "" {
		add("output.dir", "must not be empty")
	}

	if c.Redis.URL != "" && c.Redis.TTL <= 0 {
		add("redis.ttl", "must be positive when the cache is enabled (got %v)", c.Redis.TTL)
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		add("logging.level", "%v", err)
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}
