package app

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/goscrape/internal/llm"
)

// BuildRegistry registers the openai and google providers. A provider with no
// credential is registered as llm.Unconfigured so selecting it fails per URL.
func BuildRegistry(ctx context.Context, cfg Config, hc *http.Client) *llm.Registry {
	reg := llm.NewRegistry()
	timeout := seconds(cfg.Settings.LLM.RequestTimeoutSeconds)

	oc := cfg.Settings.LLM.OpenAI
	oc.Timeout = timeout
	if cfg.OpenAIKey != "" || cfg.OpenAIBaseURL != "" {
		reg.Register("openai", llm.NewOpenAI(cfg.OpenAIKey, cfg.OpenAIBaseURL, hc, oc))
	} else {
		log.Warn().Str("provider", "openai").Msg("OpenAI API key not found; openai processing unavailable")
		reg.Register("openai", llm.Unconfigured{Key: "openai", EnvVar: "OPENAI_API_KEY", ModelID: oc.Model})
	}

	gc := cfg.Settings.LLM.Google
	gc.Timeout = timeout
	var google llm.Provider = llm.Unconfigured{Key: "google", EnvVar: "GOOGLE_API_KEY", ModelID: gc.Model}
	if cfg.GoogleKey == "" {
		log.Warn().Str("provider", "google").Msg("Google API key not found; Gemini processing unavailable")
	} else if p, err := llm.NewGemini(ctx, cfg.GoogleKey, hc, gc); err != nil {
		log.Warn().Err(err).Str("provider", "google").Msg("Gemini client unavailable")
	} else {
		google = p
	}
	reg.Register("google", google)
	return reg
}
