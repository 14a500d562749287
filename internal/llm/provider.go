package llm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hyperifyio/goscrape/internal/page"
)

// DefaultRequestTimeout bounds a single Generate call when Config.Timeout is
// zero.
const DefaultRequestTimeout = 2 * time.Minute

// ErrUnknownProvider is returned by Registry.Lookup for keys that were never
// registered.
var ErrUnknownProvider = errors.New("invalid provider")

// Config is fixed when a provider is constructed.
type Config struct {
	Model       string  `json:"model" yaml:"model"`
	Temperature float32 `json:"temperature" yaml:"temperature"`
	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens"`
	// Timeout bounds each request; zero means DefaultRequestTimeout.
	Timeout time.Duration `json:"-" yaml:"-"`
}

func (c Config) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultRequestTimeout
}

// Provider is one LLM backend behind a uniform contract. Generate receives the
// extraction instructions and the page to run them against and returns the
// model's text.
type Provider interface {
	Name() string
	Model() string
	Generate(ctx context.Context, instructions string, content page.Content) (string, error)
}

// ConfigurationError reports a provider that cannot be used because a
// credential or setting is missing. It fails the item, never the batch.
type ConfigurationError struct {
	Provider string
	Missing  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s API key not found (set %s)", e.Provider, e.Missing)
}

// Unconfigured stands in for a provider whose credentials are absent.
type Unconfigured struct {
	Key     string
	EnvVar  string
	ModelID string
}

func (u Unconfigured) Name() string  { return u.Key }
func (u Unconfigured) Model() string { return u.ModelID }

func (u Unconfigured) Generate(context.Context, string, page.Content) (string, error) {
	return "", &ConfigurationError{Provider: u.Key, Missing: u.EnvVar}
}

// Registry maps case-insensitive provider keys to providers.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: map[string]Provider{}}
}

// Register adds or replaces the provider under key.
func (r *Registry) Register(key string, p Provider) {
	r.providers[normalizeKey(key)] = p
}

// Lookup resolves key without touching any client.
func (r *Registry) Lookup(key string) (Provider, error) {
	if r != nil {
		if p, ok := r.providers[normalizeKey(key)]; ok {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, key)
}

// Keys lists registered keys in sorted order.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.providers))
	for k := range r.providers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func normalizeKey(k string) string { return strings.ToLower(strings.TrimSpace(k)) }
