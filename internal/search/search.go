package search

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Source yields candidate page URLs for a query. Sources only ever feed the
// URL list a batch runs over.
type Source interface {
	Name() string
	Collect(ctx context.Context, query string, limit int) ([]string, error)
}

// DomainPolicy filters URLs by host. Denylist takes precedence over
// Allowlist; an empty Allowlist allows every host. Entries match the host
// itself and its subdomains.
type DomainPolicy struct {
	Allowlist []string
	Denylist  []string
}

// Allows reports whether rawURL is an http(s) URL the policy admits.
func (p DomainPolicy) Allows(rawURL string) bool {
	u, ok := webURL(rawURL)
	if !ok {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, d := range p.Denylist {
		if hostMatches(host, d) {
			return false
		}
	}
	if len(p.Allowlist) == 0 {
		return true
	}
	for _, a := range p.Allowlist {
		if hostMatches(host, a) {
			return true
		}
	}
	return false
}

func webURL(raw string) (*url.URL, bool) {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return nil, false
	}
	return u, true
}

func hostMatches(host, domain string) bool {
	domain = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(domain), "."))
	if domain == "" {
		return false
	}
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// URLs collects from src and returns the distinct URLs the policy admits, in
// source order. A positive limit caps the result.
func URLs(ctx context.Context, src Source, query string, limit int, policy DomainPolicy) ([]string, error) {
	got, err := src.Collect(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("%s search: %w", src.Name(), err)
	}
	seen := make(map[string]struct{}, len(got))
	out := make([]string, 0, len(got))
	for _, u := range got {
		u = strings.TrimSpace(u)
		if !policy.Allows(u) {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
