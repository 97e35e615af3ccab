package pagination

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Sternrassler/github-star-export/pkg/client"
	"github.com/Sternrassler/github-star-export/pkg/extract"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for collection runs.
var (
	pagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "star_export_pages_total",
		Help: "Total listing pages processed by outcome",
	}, []string{"outcome"})

	recordsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "star_export_records_total",
		Help: "Total starred repositories extracted",
	})

	collectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "star_export_collections_total",
		Help: "Total collection runs by result",
	}, []string{"result"})

	collectionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "star_export_collection_duration_seconds",
		Help:    "Duration of complete collection runs",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
	})
)

// Tab is the profile tab holding the starred repositories.
const Tab = "stars"

// DefaultBaseURL is the site root the listing lives under.
const DefaultBaseURL = "https://github.com"

// Config holds driver configuration.
type Config struct {
	// BaseURL is the site root, the profile is BaseURL/<name>.
	BaseURL string

	// MaxPages stops collection with ErrPageLimit once exceeded.
	// Zero means unbounded.
	MaxPages int

	// OnPage, when set, observes every page's records as soon as they are
	// extracted. Page numbers start at 1.
	OnPage func(page int, repos []extract.Repo)
}

// DefaultConfig returns the default driver configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL: DefaultBaseURL,
	}
}

// PageFetcher fetches one page of the listing.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string, query url.Values) (*client.Response, error)
}

// PageExtractor extracts records and the next cursor from a page.
type PageExtractor interface {
	Extract(markup []byte) (extract.Page, error)
}

// Driver collects the complete listing for a user.
type Driver struct {
	fetcher   PageFetcher
	extractor PageExtractor
	config    Config
	logger    zerolog.Logger
}

// NewDriver creates a new driver.
func NewDriver(fetcher PageFetcher, extractor PageExtractor, config Config) *Driver {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.MaxPages < 0 {
		config.MaxPages = 0
	}

	return &Driver{
		fetcher:   fetcher,
		extractor: extractor,
		config:    config,
		logger:    log.With().Str("component", "pagination").Logger(),
	}
}

// CollectAll fetches every page of name's starred repositories and returns
// the records in listing order. On any failure it returns no records.
func (d *Driver) CollectAll(ctx context.Context, name string) ([]extract.Repo, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		collectionsTotal.WithLabelValues("config_error").Inc()
		return nil, &ConfigError{Field: "name", Reason: "GitHub user name is required"}
	}

	start := time.Now()
	logger := d.logger.With().Str("user", name).Logger()
	profile := strings.TrimRight(d.config.BaseURL, "/") + "/" + url.PathEscape(name)

	repos, pages, err := d.collect(ctx, logger, profile)
	if err != nil {
		collectionsTotal.WithLabelValues("failed").Inc()
		logger.Error().
			Err(err).
			Int("pages", pages).
			Msg("Collection failed, discarding partial results")
		return nil, err
	}

	collectionsTotal.WithLabelValues("complete").Inc()
	collectionDuration.Observe(time.Since(start).Seconds())
	logger.Info().
		Int("pages", pages).
		Int("repos", len(repos)).
		Dur("duration", time.Since(start)).
		Msg("Collection complete")

	return repos, nil
}

// collect runs the fetch/extract loop. It returns the number of pages
// processed so far alongside any error.
func (d *Driver) collect(ctx context.Context, logger zerolog.Logger, profile string) ([]extract.Repo, int, error) {
	var (
		repos     []extract.Repo
		cursor    string
		hasCursor bool
		seen      = make(map[string]struct{})
	)

	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return nil, page - 1, err
		}
		if d.config.MaxPages > 0 && page > d.config.MaxPages {
			return nil, page - 1, fmt.Errorf("%w: more than %d pages", ErrPageLimit, d.config.MaxPages)
		}

		query := url.Values{"tab": {Tab}}
		if hasCursor {
			query.Set("after", cursor)
		}

		resp, err := d.fetcher.Fetch(ctx, profile, query)
		if err != nil {
			pagesTotal.WithLabelValues("fetch_failed").Inc()
			return nil, page - 1, fmt.Errorf("fetch page %d: %w", page, err)
		}
		if resp.StatusCode != http.StatusOK {
			pagesTotal.WithLabelValues("fetch_failed").Inc()
			return nil, page - 1, fmt.Errorf("fetch page %d: %w %d", page, ErrUnexpectedStatus, resp.StatusCode)
		}

		result, err := d.extractor.Extract(resp.Body)
		if err != nil {
			pagesTotal.WithLabelValues("extract_failed").Inc()
			return nil, page - 1, fmt.Errorf("extract page %d: %w", page, err)
		}

		repos = append(repos, result.Repos...)
		pagesTotal.WithLabelValues("ok").Inc()
		recordsTotal.Add(float64(len(result.Repos)))

		logger.Info().
			Int("page", page).
			Str("cursor", cursor).
			Int("page_repos", len(result.Repos)).
			Int("total_repos", len(repos)).
			Bool("from_cache", resp.FromCache).
			Msg("Page collected")

		if d.config.OnPage != nil {
			d.config.OnPage(page, result.Repos)
		}

		if !result.HasNext {
			return repos, page, nil
		}
		if _, dup := seen[result.Next]; dup {
			return nil, page, fmt.Errorf("%w: %q on page %d", ErrCursorCycle, result.Next, page)
		}
		seen[result.Next] = struct{}{}
		cursor, hasCursor = result.Next, true
	}
}
