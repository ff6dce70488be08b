package llmclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// GroqBaseURL is Groq's OpenAI-compatible endpoint.
const GroqBaseURL = "https://api.groq.com/openai/v1"

// OpenAIConfig configures an OpenAI-compatible chat completion backend.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	Model        string
	SystemPrompt string
}

// OpenAIClient calls an OpenAI-compatible Chat Completions API.
type OpenAIClient struct {
	client *openai.Client
	model  string
	system string
	label  string
}

func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("openai: api key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = openai.GPT4oMini
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	label := "OpenAI"
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		oc.BaseURL = base
		if base == GroqBaseURL {
			label = "Groq"
		}
	}
	system := cfg.SystemPrompt
	if system == "" {
		system = "You are an expert in digital hardware design and verification."
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(oc),
		model:  model,
		system: system,
		label:  label,
	}, nil
}

func (o *OpenAIClient) Name() string { return o.label + ":" + o.model }
func (o *OpenAIClient) Close() error { return nil }

func (o *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: o.system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		// Bad requests (context length, invalid model) never succeed on retry.
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && (apiErr.HTTPStatusCode == http.StatusBadRequest || apiErr.HTTPStatusCode == http.StatusUnauthorized) {
			return "", NewPermanentError(fmt.Errorf("%s: %w", o.label, err))
		}
		return "", fmt.Errorf("%s: %w", o.label, err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}
