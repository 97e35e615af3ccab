package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. STAR_EXPORT_NAME or
// STAR_EXPORT_HTTP_PROXY for http.proxy.
const EnvPrefix = "STAR_EXPORT"

// SetDefaults registers every key with its default value. Keys unknown to
// viper are not read from the environment, so this runs before Unmarshal.
func SetDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("name", d.Name)
	v.SetDefault("base_url", d.BaseURL)
	v.SetDefault("quiet", d.Quiet)
	v.SetDefault("metrics_file", d.MetricsFile)

	v.SetDefault("http.proxy", d.HTTP.Proxy)
	v.SetDefault("http.user_agent", d.HTTP.UserAgent)
	v.SetDefault("http.timeout", d.HTTP.Timeout)
	v.SetDefault("http.max_retries", d.HTTP.MaxRetries)
	v.SetDefault("http.backoff_base", d.HTTP.BackoffBase)
	v.SetDefault("http.max_backoff", d.HTTP.MaxBackoff)
	v.SetDefault("http.max_pages", d.HTTP.MaxPages)

	v.SetDefault("output.dir", d.Output.Dir)
	v.SetDefault("output.format", d.Output.Format)

	v.SetDefault("redis.url", d.Redis.URL)
	v.SetDefault("redis.ttl", d.Redis.TTL)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.pretty", d.Logging.Pretty)
}

// Load builds a Config from v. When configPath is set the YAML file is read
// first; environment variables and any flags bound to v take precedence
// over it. A nil v uses a fresh viper instance.
func Load(v *viper.Viper, configPath string) (*Config, error) {
	if v == nil {
		v = viper.New()
	}

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Name = strings.TrimSpace(cfg.Name)
	cfg.Output.Format = strings.ToLower(strings.TrimSpace(cfg.Output.Format))

	return cfg, nil
}
