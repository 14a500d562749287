package browser

import (
	"math/rand/v2"
	"strings"
)

// UserAgents is the pool a session draws from when no user agent is configured.
var UserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
}

func pickUserAgent(configured string, intn func(int) int) string {
	if ua := strings.TrimSpace(configured); ua != "" {
		return ua
	}
	if intn == nil {
		intn = rand.IntN
	}
	return UserAgents[intn(len(UserAgents))]
}
