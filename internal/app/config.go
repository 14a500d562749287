package app

import (
	"errors"
	"strings"
	"time"

	"github.com/hyperifyio/goscrape/internal/browser"
	"github.com/hyperifyio/goscrape/internal/llm"
	"github.com/hyperifyio/goscrape/internal/pipeline"
)

// ScrapingSettings controls extraction and caching.
type ScrapingSettings struct {
	LatencySeconds     float64  `yaml:"latency_seconds" json:"latency_seconds"`
	TimeoutSeconds     float64  `yaml:"timeout_seconds" json:"timeout_seconds"`
	MaxConcurrentTasks int      `yaml:"max_concurrent_tasks" json:"max_concurrent_tasks"`
	CacheTimeoutHours  float64  `yaml:"cache_timeout_hours" json:"cache_timeout_hours"`
	UserAgent          string   `yaml:"user_agent" json:"user_agent"`
	Headless           bool     `yaml:"headless" json:"headless"`
	Proxy              string   `yaml:"proxy" json:"proxy"`
	RotateProxies      bool     `yaml:"rotate_proxies" json:"rotate_proxies"`
	ProxyList          []string `yaml:"proxy_list" json:"proxy_list"`
	ChromePath         string   `yaml:"chrome_path,omitempty" json:"chrome_path,omitempty"`
}

// LLMSettings holds one configuration per provider key.
type LLMSettings struct {
	OpenAI llm.Config `yaml:"openai" json:"openai"`
	Google llm.Config `yaml:"google" json:"google"`
	// RequestTimeoutSeconds bounds every provider call.
	RequestTimeoutSeconds float64 `yaml:"request_timeout_seconds,omitempty" json:"request_timeout_seconds,omitempty"`
}

// Settings is the settings file schema.
type Settings struct {
	Scraping ScrapingSettings `yaml:"scraping" json:"scraping"`
	LLM      LLMSettings      `yaml:"llm" json:"llm"`
}

// DefaultSettings returns the values used for anything a settings file omits.
func DefaultSettings() Settings {
	return Settings{
		Scraping: ScrapingSettings{
			LatencySeconds:     2,
			TimeoutSeconds:     30,
			MaxConcurrentTasks: 3,
			CacheTimeoutHours:  24,
			Headless:           true,
			ProxyList:          []string{},
		},
		LLM: LLMSettings{
			OpenAI: llm.Config{Model: "gpt-4", Temperature: 0, MaxTokens: 1000},
			Google: llm.Config{Model: "gemini-2.0-flash", Temperature: 0, MaxTokens: 1000},
		},
	}
}

// Validate rejects settings no batch could run with.
func (s Settings) Validate() error {
	sc := s.Scraping
	if sc.LatencySeconds < 0 || sc.TimeoutSeconds < 0 || sc.CacheTimeoutHours < 0 {
		return errors.New("settings: negative durations are not allowed")
	}
	if sc.MaxConcurrentTasks < 0 {
		return errors.New("settings: max_concurrent_tasks must not be negative")
	}
	for key, c := range map[string]llm.Config{"openai": s.LLM.OpenAI, "google": s.LLM.Google} {
		if strings.TrimSpace(c.Model) == "" {
			return errors.New("settings: llm." + key + ".model is required")
		}
		if c.MaxTokens < 0 || c.Temperature < 0 {
			return errors.New("settings: llm." + key + " has negative limits")
		}
	}
	return nil
}

func seconds(f float64) time.Duration { return time.Duration(f * float64(time.Second)) }

// BrowserOptions maps scraping settings onto the extraction engine.
func (s ScrapingSettings) BrowserOptions() browser.Options {
	return browser.Options{
		Headless:        s.Headless,
		UserAgent:       s.UserAgent,
		Proxy:           s.Proxy,
		RotateProxies:   s.RotateProxies,
		ProxyList:       append([]string(nil), s.ProxyList...),
		PageLoadTimeout: seconds(s.TimeoutSeconds),
		SettleLatency:   seconds(s.LatencySeconds),
		ExecPath:        s.ChromePath,
	}
}

// PipelineOptions maps scraping settings onto one batch call. workers > 0
// overrides max_concurrent_tasks.
func (s ScrapingSettings) PipelineOptions(workers int, refresh bool) pipeline.Options {
	if workers <= 0 {
		workers = s.MaxConcurrentTasks
	}
	return pipeline.Options{
		TTL:          time.Duration(s.CacheTimeoutHours * float64(time.Hour)),
		MaxWorkers:   workers,
		ForceRefresh: refresh,
	}
}

// Config is the resolved runtime configuration: flags over environment over
// settings file over defaults.
type Config struct {
	SettingsPath string
	Settings     Settings

	CacheDir         string
	CacheStrictPerms bool

	OpenAIKey     string
	OpenAIBaseURL string
	GoogleKey     string

	// URL sources
	URLsFile     string
	SearxURL     string
	SearxKey     string
	Query        string
	SearchLimit  int
	DomainsAllow []string
	DomainsDeny  []string

	Workers int
	Refresh bool
	Verbose bool
}
