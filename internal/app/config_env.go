package app

import (
	"os"
	"strconv"
	"strings"
)

// ApplyEnvToConfig fills unset fields of cfg from the environment. Values
// already set (from flags) win.
func ApplyEnvToConfig(cfg *Config) {
	if cfg == nil {
		return
	}
	setString := func(dst *string, keys ...string) {
		if *dst != "" {
			return
		}
		for _, k := range keys {
			if v := strings.TrimSpace(os.Getenv(k)); v != "" {
				*dst = v
				return
			}
		}
	}
	setString(&cfg.OpenAIKey, "OPENAI_API_KEY")
	setString(&cfg.OpenAIBaseURL, "OPENAI_BASE_URL")
	setString(&cfg.GoogleKey, "GOOGLE_API_KEY", "GEMINI_API_KEY")
	setString(&cfg.CacheDir, "GOSCRAPE_CACHE_DIR")
	setString(&cfg.SettingsPath, "GOSCRAPE_CONFIG")
	setString(&cfg.SearxURL, "SEARX_URL", "SEARXNG_URL")
	setString(&cfg.SearxKey, "SEARX_KEY", "SEARXNG_KEY")

	if cfg.Workers == 0 {
		if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv("GOSCRAPE_MAX_WORKERS"))); err == nil && n > 0 {
			cfg.Workers = n
		}
	}
	if !cfg.CacheStrictPerms {
		cfg.CacheStrictPerms = truthy(os.Getenv("GOSCRAPE_CACHE_STRICT_PERMS"))
	}
	if !cfg.Verbose {
		cfg.Verbose = truthy(os.Getenv("VERBOSE"))
	}
}

// ApplyEnvOverrides overrides scraping settings from GOSCRAPE_* variables so
// the environment takes precedence over the settings file.
func ApplyEnvOverrides(s *Settings) {
	if s == nil {
		return
	}
	sc := &s.Scraping
	if v, ok := lookup("GOSCRAPE_PROXY"); ok {
		sc.Proxy = v
	}
	if v, ok := lookup("GOSCRAPE_PROXY_LIST"); ok {
		sc.ProxyList = splitList(v)
	}
	if v, ok := lookup("GOSCRAPE_USER_AGENT"); ok {
		sc.UserAgent = v
	}
	if v, ok := lookup("GOSCRAPE_CHROME_PATH"); ok {
		sc.ChromePath = v
	}
	setFloat := func(dst *float64, key string) {
		if v, ok := lookup(key); ok {
			if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
				*dst = f
			}
		}
	}
	setFloat(&sc.LatencySeconds, "GOSCRAPE_LATENCY_SECONDS")
	setFloat(&sc.TimeoutSeconds, "GOSCRAPE_TIMEOUT_SECONDS")
	setFloat(&sc.CacheTimeoutHours, "GOSCRAPE_CACHE_TTL_HOURS")
	setBool := func(dst *bool, key string) {
		v, ok := lookup(key)
		if !ok {
			return
		}
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			*dst = true
		case "0", "false", "no", "off":
			*dst = false
		}
	}
	setBool(&sc.Headless, "GOSCRAPE_HEADLESS")
	setBool(&sc.RotateProxies, "GOSCRAPE_ROTATE_PROXIES")
	if v, ok := lookup("OPENAI_MODEL"); ok {
		s.LLM.OpenAI.Model = v
	}
	if v, ok := lookup("GOOGLE_MODEL"); ok {
		s.LLM.Google.Model = v
	}
}

func lookup(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func splitList(s string) []string {
	out := []string{}
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
