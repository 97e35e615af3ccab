package main

import (
	"io"

	"github.com/Sternrassler/github-star-export/internal/config"
	"github.com/Sternrassler/github-star-export/pkg/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"name":         "name",
	"base-url":     "base_url",
	"quiet":        "quiet",
	"metrics-file": "metrics_file",
	"proxy":        "http.proxy",
	"user-agent":   "http.user_agent",
	"timeout":      "http.timeout",
	"retries":      "http.max_retries",
	"max-pages":    "http.max_pages",
	"output-dir":   "output.dir",
	"format":       "output.format",
	"redis-url":    "redis.url",
	"cache-ttl":    "redis.ttl",
	"log-level":    "logging.level",
	"log-pretty":   "logging.pretty",
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	v := viper.New()
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "star-export",
		Short: "Export a GitHub user's starred repositories",
		Long: `star-export walks the stars tab of a GitHub profile page by page and
saves every starred repository (title, language, url, description) to
<output-dir>/<YYYY-MM-DD>.xlsx.

Failed requests are retried with exponential backoff. If any page still
fails, nothing is written.

Every flag can also be set in the YAML file given by --config or through
STAR_EXPORT_* environment variables (STAR_EXPORT_NAME, STAR_EXPORT_HTTP_PROXY, ...).

Example:
  star-export --name octocat
  star-export --name octocat --proxy http://127.0.0.1:7890 --format csv`,
		Version:       Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v, cfgFile)
			if err != nil {
				return err
			}

			logging.Setup(logging.Config{
				Level:  logging.LogLevel(cfg.Logging.Level),
				Pretty: cfg.Logging.Pretty,
				Output: stderr,
			})

			if err := cfg.Validate(); err != nil {
				return err
			}

			_, err = run(cmd.Context(), cfg, stdout)
			return err
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	d := config.DefaultConfig()
	flags := cmd.Flags()

	flags.StringVarP(&cfgFile, "config", "c", "", "Path to a YAML configuration file")

	flags.StringP("name", "n", "", "GitHub user name (required)")
	flags.String("base-url", d.BaseURL, "Site root the profile lives under")
	flags.BoolP("quiet", "q", false, "Do not print records as they are collected")
	flags.String("metrics-file", "", "Write Prometheus metrics to this textfile after the run")

	flags.String("proxy", "", "Proxy for all requests, e.g. http://127.0.0.1:7890")
	flags.String("user-agent", d.HTTP.UserAgent, "User-Agent header")
	flags.Duration("timeout", d.HTTP.Timeout, "Timeout of a single request")
	flags.Int("retries", d.HTTP.MaxRetries, "Retries after the first attempt of each page")
	flags.Int("max-pages", 0, "Abort when the listing has more pages (0 = unbounded)")

	flags.StringP("output-dir", "o", d.Output.Dir, "Directory for the snapshot file")
	flags.StringP("format", "f", d.Output.Format, "Snapshot format (xlsx, csv)")

	flags.String("redis-url", "", "Redis URL for the page cache, e.g. redis://localhost:6379/0 (empty disables)")
	flags.Duration("cache-ttl", d.Redis.TTL, "Lifetime of cached pages without Expires")

	flags.String("log-level", d.Logging.Level, "Log level (debug, info, warn, error)")
	flags.Bool("log-pretty", false, "Human-readable console logs instead of JSON")

	for flag, key := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}

	return cmd
}
