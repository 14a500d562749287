package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/goscrape/internal/page"
)

// Client is the minimal interface needed to call a chat model. It mirrors
// go-openai's CreateChatCompletion so any OpenAI-compatible backend can be
// adapted.
type Client interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ChatProvider sends the instructions as the system message and the page as
// the user message.
type ChatProvider struct {
	Key    string
	Client Client
	Config Config
}

// NewOpenAI builds a chat provider for an OpenAI-compatible endpoint. An
// empty baseURL targets the public API.
func NewOpenAI(apiKey, baseURL string, hc *http.Client, cfg Config) *ChatProvider {
	oc := openai.DefaultConfig(apiKey)
	if strings.TrimSpace(baseURL) != "" {
		oc.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if hc != nil {
		oc.HTTPClient = hc
	}
	return &ChatProvider{Key: "openai", Client: openai.NewClientWithConfig(oc), Config: cfg}
}

func (p *ChatProvider) Name() string  { return p.Key }
func (p *ChatProvider) Model() string { return p.Config.Model }

func (p *ChatProvider) Generate(ctx context.Context, instructions string, content page.Content) (string, error) {
	if p.Client == nil {
		return "", errors.New("chat client not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, p.Config.timeout())
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model: p.Config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: instructions},
			{Role: openai.ChatMessageRoleUser, Content: userMessage(p.Config, instructions, content)},
		},
		Temperature: wireTemperature(p.Config.Temperature),
		MaxTokens:   p.Config.MaxTokens,
	}
	resp, err := p.Client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// wireTemperature keeps a configured 0 on the wire. go-openai omits a zero
// temperature, which the API would then read as its default of 1.
func wireTemperature(t float32) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}
