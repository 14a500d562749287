package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/goscrape/internal/extract"
	"github.com/hyperifyio/goscrape/internal/page"
)

var (
	// ErrLaunch means a browser session could not be created at all.
	ErrLaunch = errors.New("browser launch failed")
	// ErrNavigationTimeout means the document never reached readyState
	// "complete" within the page-load timeout.
	ErrNavigationTimeout = errors.New("page load timed out")
)

// Options configures an Engine. A zero PageLoadTimeout means 30s.
type Options struct {
	Headless  bool
	UserAgent string
	// Proxy is "host:port:username:password"; malformed values are ignored.
	Proxy         string
	RotateProxies bool
	ProxyList     []string
	// PageLoadTimeout bounds navigation plus the readyState wait, and
	// separately the best-effort wait for rendered text.
	PageLoadTimeout time.Duration
	// SettleLatency is the pause after load for deferred scripts to run.
	SettleLatency time.Duration
	ExecPath      string
	// Stealth defaults to DefaultStealth when its Version is empty.
	Stealth Stealth
}

const (
	defaultPageLoadTimeout = 30 * time.Second
	readyPollInterval      = 100 * time.Millisecond
)

// Engine extracts pages with one fresh browser session per call.
type Engine struct {
	opts     Options
	launcher Launcher
	fallback extract.Extractor
	proxy    *Proxy
	rotator  *Rotator
	now      func() time.Time
	sleep    func(context.Context, time.Duration) error
	randIntn func(int) int
}

// NewEngine validates opts once. A malformed proxy is logged and dropped, so
// extraction proceeds without one.
func NewEngine(opts Options, launcher Launcher) *Engine {
	if launcher == nil {
		launcher = ChromeLauncher{}
	}
	if opts.PageLoadTimeout <= 0 {
		opts.PageLoadTimeout = defaultPageLoadTimeout
	}
	if opts.SettleLatency < 0 {
		opts.SettleLatency = 0
	}
	if opts.Stealth.Version == "" {
		opts.Stealth = DefaultStealth
	}
	e := &Engine{
		opts:     opts,
		launcher: launcher,
		fallback: extract.SourceExtractor{},
		now:      time.Now,
		sleep:    sleepCtx,
	}
	if opts.RotateProxies && len(opts.ProxyList) > 0 {
		e.rotator = NewRotator(opts.ProxyList)
	}
	if e.rotator == nil && strings.TrimSpace(opts.Proxy) != "" {
		p, err := ParseProxy(opts.Proxy)
		if err != nil {
			log.Warn().Err(err).Msg("ignoring malformed proxy; extracting without proxy")
		} else {
			e.proxy = &p
		}
	}
	return e
}

func (e *Engine) sessionConfig() SessionConfig {
	cfg := SessionConfig{
		Headless:  e.opts.Headless,
		UserAgent: pickUserAgent(e.opts.UserAgent, e.randIntn),
		Stealth:   e.opts.Stealth,
		ExecPath:  e.opts.ExecPath,
	}
	if e.rotator != nil {
		p := e.rotator.Next()
		cfg.Proxy = &p
	} else if e.proxy != nil {
		p := *e.proxy
		cfg.Proxy = &p
	}
	return cfg
}

// Extract loads url in a new session and returns its content. Failures while
// navigating, waiting or extracting come back as a failure record; only a
// launch failure is returned as an error.
func (e *Engine) Extract(ctx context.Context, rawURL string) (page.Content, error) {
	if err := checkURL(rawURL); err != nil {
		return page.Failure(rawURL, err), nil
	}
	cfg := e.sessionConfig()
	logger := log.With().Str("url", rawURL).Bool("proxy", cfg.Proxy != nil).Logger()
	logger.Info().Msg("extracting")

	if err := ctx.Err(); err != nil {
		return page.Failure(rawURL, err), nil
	}
	sess, err := e.launcher.Launch(ctx, cfg)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			logger.Debug().Err(err).Msg("launch abandoned")
			return page.Failure(rawURL, cerr), nil
		}
		if !errors.Is(err, ErrLaunch) {
			err = fmt.Errorf("%w: %v", ErrLaunch, err)
		}
		return page.Content{}, err
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			logger.Debug().Err(cerr).Msg("session close")
		}
	}()

	content, err := e.extract(ctx, sess, rawURL)
	if err != nil {
		logger.Warn().Err(err).Msg("extraction failed")
		return page.Failure(rawURL, err), nil
	}
	logger.Debug().Int("text_len", len(content.TextContent)).Int("links", len(content.Links)).Msg("extracted")
	return content, nil
}

func (e *Engine) extract(ctx context.Context, sess Session, rawURL string) (page.Content, error) {
	if err := e.load(ctx, sess, rawURL); err != nil {
		return page.Content{}, err
	}
	if err := e.sleep(ctx, e.opts.SettleLatency); err != nil {
		return page.Content{}, err
	}
	e.waitForText(ctx, sess)

	title, err := sess.Title(ctx)
	if err != nil {
		return page.Content{}, fmt.Errorf("read title: %w", err)
	}
	var source string
	if err := sess.Evaluate(ctx, "document.documentElement.outerHTML", &source); err != nil {
		return page.Content{}, fmt.Errorf("read page source: %w", err)
	}
	var doc *extract.Document
	fromSource := func() extract.Document {
		if doc == nil {
			d := e.fallback.Extract([]byte(source), rawURL)
			doc = &d
		}
		return *doc
	}

	text, err := e.text(ctx, sess)
	if err != nil {
		log.Debug().Err(err).Str("url", rawURL).Msg("text script failed; using page source")
		text = fromSource().Text
	}
	var links []page.Link
	if err := sess.Evaluate(ctx, linksScript, &links); err != nil {
		log.Debug().Err(err).Str("url", rawURL).Msg("links script failed; using page source")
		links = fromSource().Links
	}
	if links == nil {
		links = []page.Link{}
	}
	return page.Content{
		URL:         rawURL,
		Title:       title,
		HTML:        source,
		TextContent: text,
		Links:       links,
		ExtractedAt: e.now(),
	}, nil
}

// load navigates and blocks until readyState is "complete".
func (e *Engine) load(ctx context.Context, sess Session, rawURL string) error {
	loadCtx, cancel := context.WithTimeout(ctx, e.opts.PageLoadTimeout)
	defer cancel()
	if err := sess.Navigate(loadCtx, rawURL); err != nil {
		if loadCtx.Err() != nil && ctx.Err() == nil {
			return ErrNavigationTimeout
		}
		return fmt.Errorf("navigate: %w", err)
	}
	for {
		var state string
		if err := sess.Evaluate(loadCtx, "document.readyState", &state); err == nil && state == "complete" {
			return nil
		}
		if err := e.sleep(loadCtx, readyPollInterval); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return ErrNavigationTimeout
		}
	}
}

// waitForText waits, without failing, for the body to render some text.
func (e *Engine) waitForText(ctx context.Context, sess Session) {
	waitCtx, cancel := context.WithTimeout(ctx, e.opts.PageLoadTimeout)
	defer cancel()
	for {
		var n int
		if err := sess.Evaluate(waitCtx, "document.body ? document.body.textContent.length : 0", &n); err == nil && n > 0 {
			return
		}
		if e.sleep(waitCtx, readyPollInterval) != nil {
			return
		}
	}
}

// text runs the direct-text script, falling back to the body's innerText.
func (e *Engine) text(ctx context.Context, sess Session) (string, error) {
	var text string
	if err := sess.Evaluate(ctx, textScript, &text); err == nil {
		return extract.Normalize(text), nil
	}
	if err := sess.Evaluate(ctx, "document.body.innerText", &text); err != nil {
		return "", err
	}
	return extract.Normalize(text), nil
}

func checkURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return fmt.Errorf("unsupported URL scheme: %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("invalid url: missing host")
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
