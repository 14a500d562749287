package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/hyperifyio/goscrape/internal/budget"
	"github.com/hyperifyio/goscrape/internal/page"
)

// ContentGenerator is the subset of *genai.Models used by PromptProvider.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// PromptProvider sends instructions and page as one concatenated prompt with
// a generation config.
type PromptProvider struct {
	Key       string
	Generator ContentGenerator
	Config    Config
}

// NewGemini builds a single-prompt provider on the Gemini API.
func NewGemini(ctx context.Context, apiKey string, hc *http.Client, cfg Config) (*PromptProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: hc,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &PromptProvider{Key: "google", Generator: client.Models, Config: cfg}, nil
}

func (p *PromptProvider) Name() string  { return p.Key }
func (p *PromptProvider) Model() string { return p.Config.Model }

func (p *PromptProvider) Generate(ctx context.Context, instructions string, content page.Content) (string, error) {
	if p.Generator == nil {
		return "", errors.New("content generator not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, p.Config.timeout())
	defer cancel()

	prompt := instructions + "\n\n" + userMessage(p.Config, instructions, content)
	gc := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(p.Config.Temperature),
		MaxOutputTokens: int32(p.Config.MaxTokens),
	}
	resp, err := p.Generator.GenerateContent(ctx, p.Config.Model, genai.Text(prompt), gc)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if resp == nil {
		return "", errors.New("generate content: empty response")
	}
	return resp.Text(), nil
}

// userMessage renders the page for the model, clipping the text so the
// request fits the model context.
func userMessage(cfg Config, instructions string, c page.Content) string {
	title := c.Title
	if strings.TrimSpace(title) == "" {
		title = "Unknown"
	}
	head := fmt.Sprintf("URL: %s\nTitle: %s\n\nContent:\n", c.URL, title)
	text, clipped := budget.ClipToContext(cfg.Model, cfg.MaxTokens, instructions+head, c.TextContent)
	if clipped {
		text += "\n[content truncated]"
	}
	return head + text
}
