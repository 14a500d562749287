package browser

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"
)

// ChromeLauncher starts a fresh headless Chrome process for every session
// through chromedp. Nothing is shared between sessions.
type ChromeLauncher struct{}

func (ChromeLauncher) Launch(ctx context.Context, cfg SessionConfig) (Session, error) {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", "new"))
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	opts = append(opts,
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(cfg.UserAgent),
	)
	for name, value := range cfg.Stealth.Flags {
		opts = append(opts, chromedp.Flag(name, value))
	}
	if cfg.Proxy != nil {
		opts = append(opts, chromedp.ProxyServer(cfg.Proxy.Server()))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...any) {
		log.Debug().Msgf(format, args...)
	}))
	s := &chromeSession{ctx: tabCtx, cancelTab: cancelTab, cancelAlloc: cancelAlloc}

	actions := []chromedp.Action{}
	if cfg.Proxy != nil {
		listenProxyAuth(tabCtx, *cfg.Proxy)
		actions = append(actions, fetch.Enable().WithHandleAuthRequests(true))
	}
	script := cfg.Stealth.Script
	actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
		if script == "" {
			return nil
		}
		_, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx)
		return err
	}))
	// The first Run allocates the browser process.
	if err := chromedp.Run(tabCtx, actions...); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("%w: %v", ErrLaunch, err)
	}
	return s, nil
}

// listenProxyAuth answers proxy auth challenges with the configured
// credentials and resumes every request paused by the Fetch domain.
func listenProxyAuth(tabCtx context.Context, p Proxy) {
	chromedp.ListenTarget(tabCtx, func(ev any) {
		switch ev := ev.(type) {
		case *fetch.EventAuthRequired:
			go func() {
				err := chromedp.Run(tabCtx, fetch.ContinueWithAuth(ev.RequestID, &fetch.AuthChallengeResponse{
					Response: fetch.AuthChallengeResponseResponseProvideCredentials,
					Username: p.Username,
					Password: p.Password,
				}))
				if err != nil {
					log.Debug().Err(err).Msg("proxy auth reply failed")
				}
			}()
		case *fetch.EventRequestPaused:
			go func() {
				_ = chromedp.Run(tabCtx, fetch.ContinueRequest(ev.RequestID))
			}()
		}
	})
}

type chromeSession struct {
	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	closeOnce   sync.Once
}

// run executes actions on the tab while honoring the caller's deadline and
// cancellation. Cancelling the derived context aborts the actions only; the
// tab stays alive until Close.
func (s *chromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, chromedp.Navigate(url))
}

func (s *chromeSession) Evaluate(ctx context.Context, expr string, out any) error {
	return s.run(ctx, chromedp.Evaluate(expr, out))
}

func (s *chromeSession) Title(ctx context.Context) (string, error) {
	var title string
	err := s.run(ctx, chromedp.Title(&title))
	return title, err
}

func (s *chromeSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		// Cancel closes the browser gracefully; the allocator cancel reaps the
		// process if that fails.
		err = chromedp.Cancel(s.ctx)
		s.cancelTab()
		s.cancelAlloc()
	})
	return err
}
