package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"github.com/hyperifyio/goscrape/internal/browser"
	"github.com/hyperifyio/goscrape/internal/cache"
	"github.com/hyperifyio/goscrape/internal/llm"
	"github.com/hyperifyio/goscrape/internal/page"
	"github.com/hyperifyio/goscrape/internal/pipeline"
	"github.com/hyperifyio/goscrape/internal/search"
)

// ErrNoURLs is returned when neither arguments nor a URL source produced any
// URL to work on.
var ErrNoURLs = errors.New("no urls to process")

// App wires configuration to the pipeline for the CLI.
type App struct {
	cfg      Config
	fs       afero.Fs
	hc       *http.Client
	store    *cache.Store
	pipeline *pipeline.Pipeline
}

// Option customizes New.
type Option func(*App)

// WithFs replaces the OS filesystem for the cache and URL files.
func WithFs(fs afero.Fs) Option { return func(a *App) { a.fs = fs } }

// WithExtractor replaces the browser engine.
func WithExtractor(e pipeline.Extractor) Option {
	return func(a *App) { a.pipeline.Engine = e }
}

// WithProviders replaces the provider registry.
func WithProviders(p pipeline.Providers) Option {
	return func(a *App) { a.pipeline.Providers = p }
}

// WithHTTPClient replaces the shared HTTP client.
func WithHTTPClient(hc *http.Client) Option { return func(a *App) { a.hc = hc } }

func New(ctx context.Context, cfg Config, opts ...Option) (*App, error) {
	if err := cfg.Settings.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.CacheDir) == "" {
		cfg.CacheDir = DefaultCacheDir()
	}
	a := &App{cfg: cfg, fs: afero.NewOsFs(), pipeline: &pipeline.Pipeline{}}
	for _, o := range opts {
		o(a)
	}
	if a.hc == nil {
		a.hc = newHighThroughputHTTPClient()
	}
	a.store = &cache.Store{Dir: cfg.CacheDir, Fs: a.fs, StrictPerms: cfg.CacheStrictPerms}
	a.pipeline.Cache = a.store
	if a.pipeline.Engine == nil {
		a.pipeline.Engine = browser.NewEngine(cfg.Settings.Scraping.BrowserOptions(), nil)
	}
	if a.pipeline.Providers == nil {
		a.pipeline.Providers = BuildRegistry(ctx, cfg, a.hc)
	}
	log.Debug().Str("cache_dir", cfg.CacheDir).Bool("headless", cfg.Settings.Scraping.Headless).Msg("app ready")
	return a, nil
}

func (a *App) options() pipeline.Options {
	return a.cfg.Settings.Scraping.PipelineOptions(a.cfg.Workers, a.cfg.Refresh)
}

// Extract runs an extraction batch.
func (a *App) Extract(ctx context.Context, urls []string) (map[string]page.Content, error) {
	return a.pipeline.ExtractURLs(ctx, urls, a.options())
}

// Process runs an extraction and processing batch with the named provider.
func (a *App) Process(ctx context.Context, urls []string, prompt, provider string) (map[string]page.Processed, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, errors.New("prompt is required")
	}
	return a.pipeline.ProcessURLs(ctx, urls, prompt, provider, a.options())
}

// Status partitions urls by cache freshness under the configured TTL.
func (a *App) Status(ctx context.Context, urls []string) (cached, uncached []string) {
	return a.pipeline.CheckCacheStatus(ctx, urls, a.options().TTL)
}

// Prune removes cache records older than maxAge, or everything when all is
// set. It returns the number of files removed, or -1 after a full clear.
func (a *App) Prune(maxAge time.Duration, all bool) (int, error) {
	if all {
		return -1, a.store.Clear()
	}
	if maxAge <= 0 {
		maxAge = a.options().TTL
	}
	return cache.PruneByAge(a.fs, a.cfg.CacheDir, maxAge, time.Now())
}

// ResolveURLs merges explicit arguments with the configured URL sources,
// keeping first-seen order and dropping duplicates.
func (a *App) ResolveURLs(ctx context.Context, args []string) ([]string, error) {
	policy := search.DomainPolicy{Allowlist: a.cfg.DomainsAllow, Denylist: a.cfg.DomainsDeny}
	var urls []string
	for _, u := range args {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	if a.cfg.URLsFile != "" {
		got, err := search.URLs(ctx, &search.FileSource{Path: a.cfg.URLsFile, Fs: a.fs}, "", 0, policy)
		if err != nil {
			return nil, err
		}
		urls = append(urls, got...)
	}
	if a.cfg.Query != "" {
		if a.cfg.SearxURL == "" {
			return nil, errors.New("--query needs a SearxNG url (--searx-url or SEARX_URL)")
		}
		sx := &search.SearxNG{BaseURL: a.cfg.SearxURL, APIKey: a.cfg.SearxKey, HTTPClient: a.hc, UserAgent: "goscrape/1.0"}
		got, err := search.URLs(ctx, sx, a.cfg.Query, a.cfg.SearchLimit, policy)
		if err != nil {
			return nil, err
		}
		log.Info().Str("query", a.cfg.Query).Int("urls", len(got)).Msg("search produced urls")
		urls = append(urls, got...)
	}
	urls = dedupe(urls)
	if len(urls) == 0 {
		return nil, ErrNoURLs
	}
	return urls, nil
}

// Providers lists the registered provider keys.
func (a *App) Providers() []string {
	if r, ok := a.pipeline.Providers.(*llm.Registry); ok {
		return r.Keys()
	}
	return nil
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// BatchError reports how many results in a batch failed.
type BatchError struct {
	Failed int
	Total  int
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("%d of %d urls failed", e.Failed, e.Total)
}
