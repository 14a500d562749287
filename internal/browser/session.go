package browser

import (
	"context"
)

// SessionConfig describes one isolated browser session.
type SessionConfig struct {
	Headless  bool
	UserAgent string
	// Proxy is nil when the session connects directly.
	Proxy   *Proxy
	Stealth Stealth
	// ExecPath overrides Chrome discovery when set.
	ExecPath string
}

// Session is a single live browser tab. Close must be safe to call once on
// every exit path and must release the underlying browser process.
type Session interface {
	Navigate(ctx context.Context, url string) error
	// Evaluate runs a JavaScript expression and decodes its result into out.
	Evaluate(ctx context.Context, expr string, out any) error
	Title(ctx context.Context) (string, error)
	Close() error
}

// Launcher creates sessions. A Launch error means no per-URL outcome is
// possible, typically because the browser binary is missing.
type Launcher interface {
	Launch(ctx context.Context, cfg SessionConfig) (Session, error)
}
