package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/hyperifyio/goscrape/internal/page"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

type fakeChat struct {
	calls []openai.ChatCompletionRequest
	resp  openai.ChatCompletionResponse
	err   error
	wait  bool
}

func (f *fakeChat) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.calls = append(f.calls, req)
	if f.wait {
		<-ctx.Done()
		return openai.ChatCompletionResponse{}, ctx.Err()
	}
	return f.resp, f.err
}

type fakeGenerator struct {
	model  string
	prompt string
	config *genai.GenerateContentConfig
	text   string
	err    error
}

func (f *fakeGenerator) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.config = config
	for _, c := range contents {
		for _, p := range c.Parts {
			f.prompt += p.Text
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Role: "model", Parts: []*genai.Part{{Text: f.text}}}}},
	}, nil
}

func samplePage() page.Content {
	return page.Content{
		URL:         "https://example.com/p",
		Title:       "Product",
		TextContent: "Widget costs $10",
		Links:       []page.Link{},
		ExtractedAt: fixedNow,
	}
}

func chatResponse(s string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: s}}}}
}

func TestChatProvider_MessagesAndConfig(t *testing.T) {
	fc := &fakeChat{resp: chatResponse(`{"price":"$10"}`)}
	p := &ChatProvider{Key: "openai", Client: fc, Config: Config{Model: "gpt-4", Temperature: 0.2, MaxTokens: 500}}

	res := Process(context.Background(), p, "Extract the price", samplePage(), clock)

	require.False(t, res.Failed(), res.Error)
	assert.Equal(t, `{"price":"$10"}`, res.Response)
	assert.Equal(t, "gpt-4", res.Model)
	assert.Equal(t, "Product", res.Title)
	assert.Equal(t, fixedNow, res.ProcessedAt)

	require.Len(t, fc.calls, 1)
	req := fc.calls[0]
	assert.Equal(t, "gpt-4", req.Model)
	assert.Equal(t, float32(0.2), req.Temperature)
	assert.Equal(t, 500, req.MaxTokens)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)
	assert.Equal(t, "Extract the price", req.Messages[0].Content)
	assert.Equal(t, openai.ChatMessageRoleUser, req.Messages[1].Role)
	assert.Equal(t, "URL: https://example.com/p\nTitle: Product\n\nContent:\nWidget costs $10", req.Messages[1].Content)
}

func TestChatProvider_ZeroTemperatureIsSent(t *testing.T) {
	fc := &fakeChat{resp: chatResponse("ok")}
	p := &ChatProvider{Key: "openai", Client: fc, Config: Config{Model: "gpt-4", Temperature: 0, MaxTokens: 1000}}

	res := Process(context.Background(), p, "x", samplePage(), clock)
	require.False(t, res.Failed(), res.Error)
	require.Len(t, fc.calls, 1)

	body, err := json.Marshal(fc.calls[0])
	require.NoError(t, err)
	var wire map[string]any
	require.NoError(t, json.Unmarshal(body, &wire))
	temp, ok := wire["temperature"]
	require.True(t, ok, "temperature missing from request: %s", body)
	assert.InDelta(t, 0, temp, 1e-6)
}

func TestChatProvider_ErrorBecomesFailure(t *testing.T) {
	fc := &fakeChat{err: errors.New("401 invalid api key")}
	p := &ChatProvider{Key: "openai", Client: fc, Config: Config{Model: "gpt-4"}}
	res := Process(context.Background(), p, "x", samplePage(), clock)
	require.True(t, res.Failed())
	assert.Contains(t, res.Error, "invalid api key")
	assert.Equal(t, "https://example.com/p", res.URL)
	assert.Equal(t, fixedNow, res.ProcessedAt)
	assert.Empty(t, res.Response)
}

func TestChatProvider_NoChoices(t *testing.T) {
	p := &ChatProvider{Key: "openai", Client: &fakeChat{}, Config: Config{Model: "gpt-4"}}
	res := Process(context.Background(), p, "x", samplePage(), clock)
	require.True(t, res.Failed())
	assert.Contains(t, res.Error, "no choices")
}

func TestChatProvider_RequestTimeout(t *testing.T) {
	p := &ChatProvider{Key: "openai", Client: &fakeChat{wait: true}, Config: Config{Model: "gpt-4", Timeout: 20 * time.Millisecond}}
	res := Process(context.Background(), p, "x", samplePage(), clock)
	require.True(t, res.Failed())
	assert.Contains(t, res.Error, context.DeadlineExceeded.Error())
}

func TestPromptProvider_SinglePrompt(t *testing.T) {
	fg := &fakeGenerator{text: "ten dollars"}
	p := &PromptProvider{Key: "google", Generator: fg, Config: Config{Model: "gemini-2.0-flash", Temperature: 0, MaxTokens: 1000}}

	res := Process(context.Background(), p, "Extract the price", samplePage(), clock)

	require.False(t, res.Failed(), res.Error)
	assert.Equal(t, "ten dollars", res.Response)
	assert.Equal(t, "gemini-2.0-flash", res.Model)
	assert.Equal(t, "gemini-2.0-flash", fg.model)
	assert.True(t, strings.HasPrefix(fg.prompt, "Extract the price\n\nURL: https://example.com/p\nTitle: Product"))
	assert.True(t, strings.HasSuffix(fg.prompt, "Content:\nWidget costs $10"))
	require.NotNil(t, fg.config)
	require.NotNil(t, fg.config.Temperature)
	assert.Equal(t, float32(0), *fg.config.Temperature)
	assert.Equal(t, int32(1000), fg.config.MaxOutputTokens)
}

func TestPromptProvider_ErrorBecomesFailure(t *testing.T) {
	fg := &fakeGenerator{err: errors.New("quota exceeded")}
	p := &PromptProvider{Key: "google", Generator: fg, Config: Config{Model: "gemini-2.0-flash"}}
	res := Process(context.Background(), p, "x", samplePage(), clock)
	require.True(t, res.Failed())
	assert.Contains(t, res.Error, "quota exceeded")
}

type panicProvider struct{}

func (panicProvider) Name() string  { return "boom" }
func (panicProvider) Model() string { return "m" }
func (panicProvider) Generate(context.Context, string, page.Content) (string, error) {
	panic("unexpected nil")
}

func TestProcess_PanicContained(t *testing.T) {
	res := Process(context.Background(), panicProvider{}, "x", samplePage(), clock)
	require.True(t, res.Failed())
	assert.Contains(t, res.Error, "unexpected nil")
}

func TestProcess_FailedContentShortCircuits(t *testing.T) {
	fc := &fakeChat{resp: chatResponse("never")}
	p := &ChatProvider{Key: "openai", Client: fc, Config: Config{Model: "gpt-4"}}
	res := Process(context.Background(), p, "x", page.Failure("https://bad.example", errors.New("timeout")), clock)
	require.True(t, res.Failed())
	assert.Contains(t, res.Error, "timeout")
	assert.Empty(t, fc.calls)
}

func TestUnconfigured(t *testing.T) {
	u := Unconfigured{Key: "google", EnvVar: "GOOGLE_API_KEY", ModelID: "gemini-2.0-flash"}
	res := Process(context.Background(), u, "x", samplePage(), clock)
	require.True(t, res.Failed())
	assert.Contains(t, res.Error, "GOOGLE_API_KEY")

	_, err := u.Generate(context.Background(), "x", samplePage())
	var ce *ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "google", ce.Provider)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	p := &ChatProvider{Key: "openai", Config: Config{Model: "gpt-4"}}
	r.Register("OpenAI", p)

	got, err := r.Lookup("  openai ")
	require.NoError(t, err)
	assert.Same(t, p, got)

	_, err = r.Lookup("anthropic")
	require.ErrorIs(t, err, ErrUnknownProvider)
	assert.Contains(t, err.Error(), "anthropic")
	assert.Equal(t, []string{"openai"}, r.Keys())
}

func TestUserMessage_ClipsLongContent(t *testing.T) {
	c := samplePage()
	c.Title = ""
	c.TextContent = strings.Repeat("lorem ipsum\n", 10_000)
	msg := userMessage(Config{Model: "gpt-4", MaxTokens: 1000}, "instructions", c)
	assert.Contains(t, msg, "Title: Unknown")
	assert.True(t, strings.HasSuffix(msg, "[content truncated]"))
	assert.Less(t, len(msg), len(c.TextContent))
}
