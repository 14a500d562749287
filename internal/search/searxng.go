package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	defaultSearxLimit = 10
	defaultSearxPages = 3
)

// SearxNG collects result URLs from a SearxNG instance's JSON endpoint,
// following pageno until limit URLs are gathered or a page adds nothing new.
type SearxNG struct {
	BaseURL    string
	APIKey     string // optional
	HTTPClient *http.Client
	UserAgent  string
	// MaxPages bounds paging; zero means 3.
	MaxPages int
}

func (s *SearxNG) Name() string { return "searxng" }

func (s *SearxNG) Collect(ctx context.Context, query string, limit int) ([]string, error) {
	endpoint, err := s.endpoint()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultSearxLimit
	}
	pages := s.MaxPages
	if pages <= 0 {
		pages = defaultSearxPages
	}

	seen := make(map[string]struct{})
	out := make([]string, 0, limit)
	for pageno := 1; pageno <= pages && len(out) < limit; pageno++ {
		hits, err := s.fetchPage(ctx, endpoint, query, pageno)
		if err != nil {
			if len(out) > 0 {
				log.Warn().Err(err).Int("page", pageno).Msg("searxng paging stopped")
				break
			}
			return nil, err
		}
		added := 0
		for _, h := range hits {
			h = strings.TrimSpace(h)
			if _, ok := webURL(h); !ok {
				continue
			}
			if _, dup := seen[h]; dup {
				continue
			}
			seen[h] = struct{}{}
			out = append(out, h)
			added++
			if len(out) >= limit {
				break
			}
		}
		if added == 0 {
			break
		}
	}
	log.Debug().Str("query", query).Int("urls", len(out)).Msg("searxng collected")
	return out, nil
}

func (s *SearxNG) endpoint() (url.URL, error) {
	if strings.TrimSpace(s.BaseURL) == "" {
		return url.URL{}, errors.New("missing searxng base url")
	}
	u, err := url.Parse(s.BaseURL)
	if err != nil {
		return url.URL{}, fmt.Errorf("searxng base url: %w", err)
	}
	if !strings.HasSuffix(u.Path, "/search") {
		u.Path = strings.TrimRight(u.Path, "/") + "/search"
	}
	return *u, nil
}

func (s *SearxNG) fetchPage(ctx context.Context, endpoint url.URL, query string, pageno int) ([]string, error) {
	q := endpoint.Query()
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("categories", "general")
	q.Set("pageno", strconv.Itoa(pageno))
	if s.APIKey != "" {
		q.Set("apikey", s.APIKey)
	}
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	if s.UserAgent != "" {
		req.Header.Set("User-Agent", s.UserAgent)
	}
	hc := s.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("searxng status: %d", resp.StatusCode)
	}
	var body struct {
		Results []struct {
			URL string `json:"url"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode searxng response: %w", err)
	}
	urls := make([]string, 0, len(body.Results))
	for _, r := range body.Results {
		urls = append(urls, r.URL)
	}
	return urls, nil
}
