package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/hyperifyio/goscrape/internal/dispatch"
	"github.com/hyperifyio/goscrape/internal/llm"
	"github.com/hyperifyio/goscrape/internal/page"
)

// Extractor loads a page. A returned error means no per-URL outcome was
// possible (the browser could not start); everything else is a failure
// record.
type Extractor interface {
	Extract(ctx context.Context, url string) (page.Content, error)
}

// Cache is the content store consulted before extraction.
type Cache interface {
	Get(ctx context.Context, url string, ttl time.Duration) (page.Content, bool)
	Put(ctx context.Context, url string, content page.Content) bool
}

// Providers resolves a provider key.
type Providers interface {
	Lookup(key string) (llm.Provider, error)
}

// ErrNoEngine is returned for cache misses when no extractor is configured.
var ErrNoEngine = errors.New("no extraction engine configured")

// Options are read once per call.
type Options struct {
	TTL        time.Duration
	MaxWorkers int
	// ForceRefresh skips the cache read; successful extractions are still
	// written back.
	ForceRefresh bool
}

// DefaultOptions returns a 24 hour TTL and three workers.
func DefaultOptions() Options {
	return Options{TTL: 24 * time.Hour, MaxWorkers: 3}
}

// Pipeline composes the cache, the extraction engine and the providers.
type Pipeline struct {
	Cache     Cache
	Engine    Extractor
	Providers Providers
	// Observer, when set, receives every per-URL state transition. It may be
	// called from several goroutines at once.
	Observer func(url string, s State)
	Now      func() time.Time

	flights singleflight.Group
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Pipeline) emit(batch, url string, s State) {
	log.Debug().Str("batch", batch).Str("url", url).Str("state", string(s)).Msg("transition")
	if p.Observer != nil {
		p.Observer(url, s)
	}
}

// launchErrors collects fatal engine errors from concurrent workers.
type launchErrors struct {
	mu   sync.Mutex
	errs []error
}

func (l *launchErrors) add(err error) {
	l.mu.Lock()
	l.errs = append(l.errs, err)
	l.mu.Unlock()
}

func (l *launchErrors) err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.errs) == 0 {
		return nil
	}
	return fmt.Errorf("%d url(s) could not start a browser: %w", len(l.errs), errors.Join(l.errs...))
}

// resolve returns cached content when fresh, else extracts and writes back a
// successful result. Concurrent misses for one URL share a single extraction.
func (p *Pipeline) resolve(ctx context.Context, batch, url string, opts Options) (page.Content, error) {
	if !opts.ForceRefresh && p.Cache != nil {
		if c, ok := p.Cache.Get(ctx, url, opts.TTL); ok {
			p.emit(batch, url, StateCacheHit)
			return c, nil
		}
	}
	p.emit(batch, url, StateExtracting)
	// A refresh must not join a flight that may answer from the cache.
	key := url
	if opts.ForceRefresh {
		key = "refresh:" + url
	}
	v, err, shared := p.flights.Do(key, func() (any, error) {
		if !opts.ForceRefresh && p.Cache != nil {
			if c, ok := p.Cache.Get(ctx, url, opts.TTL); ok {
				return c, nil
			}
		}
		if p.Engine == nil {
			return page.Content{}, ErrNoEngine
		}
		c, err := p.Engine.Extract(ctx, url)
		if err != nil {
			return page.Content{}, err
		}
		if !c.Failed() && p.Cache != nil {
			p.Cache.Put(ctx, url, c)
		}
		return c, nil
	})
	if shared {
		log.Debug().Str("batch", batch).Str("url", url).Msg("joined in-flight extraction")
	}
	if err != nil {
		p.emit(batch, url, StateExtractFailed)
		return page.Failure(url, err), err
	}
	c := v.(page.Content)
	if c.Failed() {
		p.emit(batch, url, StateExtractFailed)
	} else {
		p.emit(batch, url, StateExtracted)
	}
	return c, nil
}

// ExtractURLs returns content for every distinct URL. Cache hits never reach
// the engine; failures are returned but never cached. The error is non-nil
// only when the browser could not be started for some URLs, and the map still
// holds every URL's result.
func (p *Pipeline) ExtractURLs(ctx context.Context, urls []string, opts Options) (map[string]page.Content, error) {
	batch := uuid.NewString()
	logger := log.With().Str("batch", batch).Int("urls", len(urls)).Int("workers", opts.MaxWorkers).Logger()
	logger.Info().Msg("extract batch started")
	var fatal launchErrors

	out := dispatch.Run(ctx, urls, opts.MaxWorkers,
		func(ctx context.Context, url string) (page.Content, error) {
			p.emit(batch, url, StateNew)
			c, err := p.resolve(ctx, batch, url, opts)
			if err != nil {
				fatal.add(err)
			}
			return c, nil
		},
		func(url string, err error) page.Content {
			p.emit(batch, url, StateExtractFailed)
			return page.Failure(url, err)
		})

	logger.Info().Int("failed", countFailed(out)).Msg("extract batch finished")
	return out, fatal.err()
}

// ProcessURLs resolves content for each URL inside that URL's own worker and
// runs the selected provider on it. An unknown provider key yields a failure
// for every URL with no extraction and no provider call.
func (p *Pipeline) ProcessURLs(ctx context.Context, urls []string, prompt, providerKey string, opts Options) (map[string]page.Processed, error) {
	batch := uuid.NewString()
	logger := log.With().Str("batch", batch).Str("provider", providerKey).Int("urls", len(urls)).Int("workers", opts.MaxWorkers).Logger()

	var provider llm.Provider
	var lookupErr error
	if p.Providers == nil {
		lookupErr = fmt.Errorf("%w: %s", llm.ErrUnknownProvider, providerKey)
	} else {
		provider, lookupErr = p.Providers.Lookup(providerKey)
	}
	if lookupErr != nil {
		logger.Error().Err(lookupErr).Msg("provider lookup failed")
		out := make(map[string]page.Processed, len(urls))
		at := p.now()
		for _, url := range urls {
			out[url] = page.ProcessFailure(url, lookupErr, at)
		}
		return out, nil
	}

	logger.Info().Str("model", provider.Model()).Msg("process batch started")
	var fatal launchErrors
	out := dispatch.Run(ctx, urls, opts.MaxWorkers,
		func(ctx context.Context, url string) (page.Processed, error) {
			p.emit(batch, url, StateNew)
			c, err := p.resolve(ctx, batch, url, opts)
			if err != nil {
				fatal.add(err)
				return page.ProcessFailure(url, err, p.now()), nil
			}
			if c.Failed() {
				return llm.Process(ctx, provider, prompt, c, p.now), nil
			}
			p.emit(batch, url, StateProcessing)
			res := llm.Process(ctx, provider, prompt, c, p.now)
			if res.Failed() {
				p.emit(batch, url, StateProcessFailed)
			} else {
				p.emit(batch, url, StateProcessed)
			}
			return res, nil
		},
		func(url string, err error) page.Processed {
			p.emit(batch, url, StateProcessFailed)
			return page.ProcessFailure(url, err, p.now())
		})

	failed := 0
	for _, r := range out {
		if r.Failed() {
			failed++
		}
	}
	logger.Info().Int("failed", failed).Msg("process batch finished")
	return out, fatal.err()
}

// CheckCacheStatus partitions the distinct URLs, in input order, into those
// with a fresh cache record and those without. It has no side effects.
func (p *Pipeline) CheckCacheStatus(ctx context.Context, urls []string, ttl time.Duration) (cached, uncached []string) {
	cached, uncached = []string{}, []string{}
	seen := make(map[string]struct{}, len(urls))
	for _, url := range urls {
		if _, dup := seen[url]; dup {
			continue
		}
		seen[url] = struct{}{}
		if p.Cache != nil {
			if _, ok := p.Cache.Get(ctx, url, ttl); ok {
				cached = append(cached, url)
				continue
			}
		}
		uncached = append(uncached, url)
	}
	return cached, uncached
}

func countFailed(m map[string]page.Content) int {
	n := 0
	for _, c := range m {
		if c.Failed() {
			n++
		}
	}
	return n
}
