package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/Sternrassler/github-star-export/internal/config"
	"github.com/Sternrassler/github-star-export/pkg/cache"
	"github.com/Sternrassler/github-star-export/pkg/client"
	"github.com/Sternrassler/github-star-export/pkg/export"
	"github.com/Sternrassler/github-star-export/pkg/extract"
	"github.com/Sternrassler/github-star-export/pkg/logging"
	"github.com/Sternrassler/github-star-export/pkg/metrics"
	"github.com/Sternrassler/github-star-export/pkg/pagination"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const redisPingTimeout = 2 * time.Second

// run collects the listing and writes the snapshot. It returns the path of
// the file written. No file is written when collection fails.
func run(ctx context.Context, cfg *config.Config, stdout io.Writer) (string, error) {
	logger := logging.NewLogger("cli").With().Str("user", cfg.Name).Logger()

	if cfg.MetricsFile != "" {
		defer func() {
			if err := metrics.WriteTextfile(cfg.MetricsFile, nil); err != nil {
				logger.Warn().Err(err).Msg("Failed to write metrics")
			}
		}()
	}

	writer, err := export.New(cfg.ExportConfig())
	if err != nil {
		return "", err
	}

	clientCfg := cfg.ClientConfig()
	if cfg.Redis.URL != "" {
		rdb, err := openRedis(ctx, logger, cfg.Redis.URL)
		if err != nil {
			return "", err
		}
		if rdb != nil {
			defer rdb.Close()
			clientCfg.Cache = cache.NewManager(rdb).WithTTL(cfg.Redis.TTL)
		}
	}

	fetcher, err := client.New(clientCfg)
	if err != nil {
		return "", fmt.Errorf("create fetcher: %w", err)
	}

	extractor, err := extract.New(cfg.BaseURL, extract.DefaultSchema())
	if err != nil {
		return "", fmt.Errorf("create extractor: %w", err)
	}

	driverCfg := pagination.Config{
		BaseURL:  cfg.BaseURL,
		MaxPages: cfg.HTTP.MaxPages,
	}
	if !cfg.Quiet {
		driverCfg.OnPage = func(_ int, repos []extract.Repo) {
			for _, r := range repos {
				printRepo(stdout, r)
			}
		}
	}

	repos, err := pagination.NewDriver(fetcher, extractor, driverCfg).CollectAll(ctx, cfg.Name)
	if err != nil {
		return "", err
	}

	path, err := writer.Write(repos)
	if err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}

	logger.Info().Str("path", path).Int("repos", len(repos)).Msg("Export complete")
	return path, nil
}

// openRedis connects to the page cache. An unreachable server disables the
// cache rather than failing the run; a malformed URL is an error.
func openRedis(ctx context.Context, logger zerolog.Logger, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, &pagination.ConfigError{Field: "redis.url", Reason: err.Error()}
	}

	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", opts.Addr).Msg("Redis unavailable, continuing without page cache")
		rdb.Close()
		return nil, nil
	}

	logger.Debug().Str("addr", opts.Addr).Int("db", opts.DB).Msg("Page cache enabled")
	return rdb, nil
}

func printRepo(w io.Writer, r extract.Repo) {
	fmt.Fprintf(w, "Title: %s\nLink: %s\nDescription: %s\nLanguage: %s\n\n",
		r.Title, r.URL, r.Description, r.Language)
}
