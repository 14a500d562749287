package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/goscrape/internal/page"
)

// Process runs p against content and normalizes the outcome. Provider errors
// and panics come back as a failure record carrying the message.
func Process(ctx context.Context, p Provider, prompt string, content page.Content, now func() time.Time) (res page.Processed) {
	if now == nil {
		now = time.Now
	}
	logger := log.With().Str("url", content.URL).Logger()
	if p == nil {
		return page.ProcessFailure(content.URL, ErrUnknownProvider, now())
	}
	logger = logger.With().Str("provider", p.Name()).Str("model", p.Model()).Logger()
	if content.Failed() {
		return page.ProcessFailure(content.URL, fmt.Errorf("content extraction failed: %s", content.Error), now())
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("provider panicked")
			res = page.ProcessFailure(content.URL, fmt.Errorf("provider panic: %v", r), now())
		}
	}()

	start := now()
	out, err := p.Generate(ctx, prompt, content)
	if err != nil {
		logger.Error().Err(err).Msg("processing failed")
		return page.ProcessFailure(content.URL, err, now())
	}
	logger.Debug().Dur("elapsed", now().Sub(start)).Int("response_len", len(out)).Msg("processed")
	return page.Processed{
		URL:         content.URL,
		Title:       content.Title,
		Model:       p.Model(),
		Response:    out,
		ProcessedAt: now(),
	}
}
