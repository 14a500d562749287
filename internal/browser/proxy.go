package browser

import (
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// Proxy is an authenticated HTTP proxy.
type Proxy struct {
	Host     string
	Port     string
	Username string
	Password string
}

// ParseProxy parses "host:port:username:password". Exactly four
// colon-separated fields are required; any of them may be empty.
func ParseProxy(s string) (Proxy, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 4 {
		return Proxy{}, fmt.Errorf("proxy %q: want host:port:username:password", redact(s))
	}
	return Proxy{Host: parts[0], Port: parts[1], Username: parts[2], Password: parts[3]}, nil
}

// URL renders the proxy with embedded credentials, e.g.
// http://bob:pw@1.2.3.4:8080.
func (p Proxy) URL() string {
	u := url.URL{Scheme: "http", User: url.UserPassword(p.Username, p.Password), Host: p.Host + ":" + p.Port}
	return u.String()
}

// Server renders the proxy without credentials, the form Chrome accepts for
// --proxy-server. Credentials are answered through the auth challenge.
func (p Proxy) Server() string {
	return "http://" + p.Host + ":" + p.Port
}

// redact hides everything from the password field on for logging.
func redact(s string) string {
	parts := strings.Split(s, ":")
	if len(parts) >= 4 {
		parts = append(parts[:3], "***")
	}
	return strings.Join(parts, ":")
}

// Rotator hands out proxies round-robin. Malformed entries are dropped with a
// warning when the rotator is built.
type Rotator struct {
	proxies []Proxy
	next    atomic.Uint64
}

// NewRotator parses list. It returns nil when no entry is usable.
func NewRotator(list []string) *Rotator {
	r := &Rotator{}
	for _, s := range list {
		p, err := ParseProxy(s)
		if err != nil {
			log.Warn().Err(err).Msg("ignoring malformed proxy in rotation list")
			continue
		}
		r.proxies = append(r.proxies, p)
	}
	if len(r.proxies) == 0 {
		return nil
	}
	return r
}

// Next returns the next proxy in rotation.
func (r *Rotator) Next() Proxy {
	n := r.next.Add(1) - 1
	return r.proxies[n%uint64(len(r.proxies))]
}

// Len returns the number of usable proxies.
func (r *Rotator) Len() int {
	if r == nil {
		return 0
	}
	return len(r.proxies)
}
