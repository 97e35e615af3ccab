// Package config loads exporter settings from defaults, an optional YAML
// file, STAR_EXPORT_* environment variables and command-line flags.
package config

import (
	"time"

	"github.com/Sternrassler/github-star-export/pkg/client"
	"github.com/Sternrassler/github-star-export/pkg/export"
	"github.com/Sternrassler/github-star-export/pkg/pagination"
)

// Config is the complete exporter configuration.
type Config struct {
	// Name is the GitHub user whose stars are exported.
	Name string `mapstructure:"name"`

	BaseURL string `mapstructure:"base_url"`

	// Quiet suppresses printing records to stdout.
	Quiet bool `mapstructure:"quiet"`

	// MetricsFile, when set, receives a Prometheus textfile after the run.
	MetricsFile string `mapstructure:"metrics_file"`

	HTTP    HTTPConfig    `mapstructure:"http"`
	Output  OutputConfig  `mapstructure:"output"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// HTTPConfig configures the fetcher.
type HTTPConfig struct {
	Proxy       string        `mapstructure:"proxy"`
	UserAgent   string        `mapstructure:"user_agent"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
	BackoffBase time.Duration `mapstructure:"backoff_base"`
	MaxBackoff  time.Duration `mapstructure:"max_backoff"`
	MaxPages    int           `mapstructure:"max_pages"`
}

// OutputConfig configures the snapshot file.
type OutputConfig struct {
	Dir    string `mapstructure:"dir"`
	Format string `mapstructure:"format"`
}

// RedisConfig configures the optional page cache. An empty URL disables it.
type RedisConfig struct {
	URL string        `mapstructure:"url"`
	TTL time.Duration `mapstructure:"ttl"`
}

// LoggingConfig configures zerolog.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	retry := client.DefaultRetryPolicy()
	fetch := client.DefaultConfig()

	return &Config{
		BaseURL: pagination.DefaultBaseURL,
		HTTP: HTTPConfig{
			UserAgent:   fetch.UserAgent,
			Timeout:     fetch.Timeout,
			MaxRetries:  retry.MaxRetries,
			BackoffBase: retry.BackoffBase,
			MaxBackoff:  retry.MaxBackoff,
		},
		Output: OutputConfig{
			Dir:    export.DefaultDir,
			Format: export.FormatXLSX,
		},
		Redis: RedisConfig{
			TTL: 5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// ClientConfig maps the HTTP settings onto a fetcher configuration.
func (c *Config) ClientConfig() client.Config {
	cfg := client.DefaultConfig()
	cfg.UserAgent = c.HTTP.UserAgent
	cfg.ProxyURL = c.HTTP.Proxy
	cfg.Timeout = c.HTTP.Timeout
	cfg.Retry.MaxRetries = c.HTTP.MaxRetries
	cfg.Retry.BackoffBase = c.HTTP.BackoffBase
	cfg.Retry.MaxBackoff = c.HTTP.MaxBackoff
	return cfg
}

// ExportConfig maps the output settings onto a writer configuration.
func (c *Config) ExportConfig() export.Config {
	return export.Config{Dir: c.Output.Dir, Format: c.Output.Format}
}
