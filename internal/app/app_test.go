package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperifyio/goscrape/internal/llm"
	"github.com/hyperifyio/goscrape/internal/page"
)

type stubEngine struct {
	mu    sync.Mutex
	calls int
}

func (s *stubEngine) Extract(_ context.Context, url string) (page.Content, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if strings.Contains(url, "broken") {
		return page.Failure(url, errors.New("page load timed out")), nil
	}
	return page.Content{URL: url, Title: "T " + url, TextContent: "body", Links: []page.Link{}, ExtractedAt: time.Now()}, nil
}

type echoProvider struct{}

func (echoProvider) Name() string  { return "echo" }
func (echoProvider) Model() string { return "echo-1" }
func (echoProvider) Generate(_ context.Context, instructions string, c page.Content) (string, error) {
	return instructions + ": " + c.Title, nil
}

func newTestApp(t *testing.T, cfg Config) (*App, *stubEngine, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	eng := &stubEngine{}
	reg := llm.NewRegistry()
	reg.Register("echo", echoProvider{})
	if cfg.CacheDir == "" {
		cfg.CacheDir = "/cache"
	}
	if cfg.Settings.LLM.OpenAI.Model == "" {
		cfg.Settings = DefaultSettings()
	}
	a, err := New(context.Background(), cfg, WithFs(fs), WithExtractor(eng), WithProviders(reg))
	require.NoError(t, err)
	return a, eng, fs
}

func TestApp_ExtractStatusProcess(t *testing.T) {
	a, eng, _ := newTestApp(t, Config{})
	ctx := context.Background()
	urls := []string{"https://a.example/", "https://broken.example/"}

	cached, uncached := a.Status(ctx, urls)
	assert.Empty(t, cached)
	assert.Equal(t, urls, uncached)

	out, err := a.Extract(ctx, urls)
	require.NoError(t, err)
	assert.False(t, out[urls[0]].Failed())
	assert.True(t, out[urls[1]].Failed())

	cached, uncached = a.Status(ctx, urls)
	assert.Equal(t, []string{urls[0]}, cached)
	assert.Equal(t, []string{urls[1]}, uncached)

	res, err := a.Process(ctx, urls, "Summarize", "ECHO")
	require.NoError(t, err)
	assert.Equal(t, "Summarize: T https://a.example/", res[urls[0]].Response)
	assert.True(t, res[urls[1]].Failed())
	assert.Equal(t, 3, eng.calls, "cached page is not re-extracted; the failed one is retried")

	_, err = a.Process(ctx, urls, "  ", "echo")
	require.Error(t, err)
}

func TestApp_RefreshBypassesCache(t *testing.T) {
	a, eng, _ := newTestApp(t, Config{Refresh: true})
	ctx := context.Background()
	_, _ = a.Extract(ctx, []string{"https://a.example/"})
	_, _ = a.Extract(ctx, []string{"https://a.example/"})
	assert.Equal(t, 2, eng.calls)
}

func TestApp_Prune(t *testing.T) {
	a, _, fs := newTestApp(t, Config{})
	ctx := context.Background()
	_, err := a.Extract(ctx, []string{"https://a.example/", "https://b.example/"})
	require.NoError(t, err)

	n, err := a.Prune(time.Hour, false)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = a.Prune(0, true)
	require.NoError(t, err)
	entries, err := afero.ReadDir(fs, "/cache")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestApp_ResolveURLs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"results": []map[string]string{
			{"title": "A", "url": "https://a.example/"},
			{"title": "S", "url": "https://search.example/"},
			{"title": "D", "url": "https://denied.example/"},
		}})
	}))
	defer srv.Close()

	a, _, fs := newTestApp(t, Config{
		URLsFile:    "/urls.txt",
		SearxURL:    srv.URL,
		Query:       "widgets",
		DomainsDeny: []string{"denied.example"},
	})
	require.NoError(t, afero.WriteFile(fs, "/urls.txt", []byte("https://file.example/\nhttps://a.example/\n"), 0o644))

	got, err := a.ResolveURLs(context.Background(), []string{"https://a.example/", " "})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example/", "https://file.example/", "https://search.example/"}, got)
}

func TestApp_ResolveURLs_Errors(t *testing.T) {
	a, _, _ := newTestApp(t, Config{})
	_, err := a.ResolveURLs(context.Background(), nil)
	require.ErrorIs(t, err, ErrNoURLs)

	a, _, _ = newTestApp(t, Config{Query: "x"})
	_, err = a.ResolveURLs(context.Background(), nil)
	require.Error(t, err)
}

func TestApp_InvalidSettings(t *testing.T) {
	s := DefaultSettings()
	s.Scraping.MaxConcurrentTasks = -1
	_, err := New(context.Background(), Config{Settings: s, CacheDir: "/c"}, WithFs(afero.NewMemMapFs()))
	require.Error(t, err)
}

func TestBuildRegistry_MissingKeysArePerItemErrors(t *testing.T) {
	reg := BuildRegistry(context.Background(), Config{Settings: DefaultSettings()}, http.DefaultClient)
	assert.Equal(t, []string{"google", "openai"}, reg.Keys())
	for _, key := range []string{"openai", "Google"} {
		p, err := reg.Lookup(key)
		require.NoError(t, err)
		_, err = p.Generate(context.Background(), "x", page.Content{URL: "u"})
		var ce *llm.ConfigurationError
		require.ErrorAs(t, err, &ce, key)
	}
}

func TestOutput_Formats(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	results := map[string]page.Processed{
		"https://a.example/": {URL: "https://a.example/", Title: "A", Model: "gpt-4", Response: "answer", ProcessedAt: at},
		"https://b.example/": page.ProcessFailure("https://b.example/", errors.New("boom"), at),
	}
	order := []string{"https://a.example/", "https://b.example/"}

	var buf bytes.Buffer
	require.NoError(t, Output{Format: FormatJSON, W: &buf}.WriteProcessed(order, results))
	var decoded map[string]map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "answer", decoded["https://a.example/"]["response"])
	assert.Equal(t, "boom", decoded["https://b.example/"]["error"])
	_, hasResponse := decoded["https://b.example/"]["response"]
	assert.False(t, hasResponse)

	buf.Reset()
	require.NoError(t, Output{Format: FormatMarkdown, W: &buf}.WriteProcessed(order, results))
	md := buf.String()
	assert.Less(t, strings.Index(md, "## A"), strings.Index(md, "## https://b.example/"))
	assert.Contains(t, md, "Error: boom")

	fs := afero.NewMemMapFs()
	require.NoError(t, Output{Format: FormatJSON, Path: "/out.json", Fs: fs}.WriteStatus([]string{"x"}, []string{}))
	b, err := afero.ReadFile(fs, "/out.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"cached":["x"],"uncached":[]}`, string(b))

	require.Error(t, Output{Format: FormatPDF, W: &buf}.WriteProcessed(order, results))
}

func TestOutput_PDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.pdf")
	content := map[string]page.Content{
		"https://a.example/": {URL: "https://a.example/", Title: "Café menu", TextContent: "Prix: 5 €", Links: []page.Link{}},
	}
	require.NoError(t, Output{Format: FormatPDF, Path: path}.WriteContent([]string{"https://a.example/"}, content))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(b, []byte("%PDF-")))
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatJSON, "JSON": FormatJSON, "md": FormatMarkdown, "markdown": FormatMarkdown, "pdf": FormatPDF} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("xml")
	require.Error(t, err)
}

func TestDefaultCacheDir(t *testing.T) {
	assert.True(t, strings.HasSuffix(DefaultCacheDir(), filepath.Join("goscrape", "pages")))
}
