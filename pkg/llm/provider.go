package llm

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/verist/marketbrief/pkg/config"
)

// Provider is a single logical completion backend. Implementations return the
// raw free-text response; callers own the parsing.
type Provider interface {
	Name() string
	Complete(ctx context.Context, prompt string, temperature float64) (string, error)
}

// OpenAIProvider talks to any OpenAI-compatible chat completion endpoint
// (OpenAI, GLM, Mistral, local llama servers).
type OpenAIProvider struct {
	name      string
	client    *openai.Client
	model     string
	maxTokens int
}

// NewOpenAIProvider creates a provider from its config entry
func NewOpenAIProvider(cfg config.ProviderConfig) *OpenAIProvider {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = cfg.Endpoint
	}

	return &OpenAIProvider{
		name:      cfg.Name,
		client:    openai.NewClientWithConfig(clientConfig),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}
}

// Name returns the configured provider name
func (p *OpenAIProvider) Name() string { return p.name }

// Complete sends a single user prompt and returns the raw response text
func (p *OpenAIProvider) Complete(ctx context.Context, prompt string, temperature float64) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       p.model,
		Temperature: float32(temperature),
		MaxTokens:   p.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("llm request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from llm")
	}

	return resp.Choices[0].Message.Content, nil
}
