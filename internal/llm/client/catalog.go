package llmclient

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Provider names accepted by New.
const (
	ProviderGemini = "gemini"
	ProviderVertex = "vertex"
	ProviderOpenAI = "openai"
	ProviderGroq   = "groq"
	ProviderFake   = "fake"
)

// ProviderConfig carries everything needed to build any supported backend.
type ProviderConfig struct {
	Provider string
	Model    string

	GeminiAPIKey string
	Project      string
	Location     string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	GroqAPIKey    string
}

// New builds the client for cfg.Provider. The caller owns the returned
// client and must Close it.
func New(ctx context.Context, cfg ProviderConfig) (LLMClient, error) {
	switch normalizeProvider(cfg.Provider) {
	case ProviderGemini:
		key := cfg.GeminiAPIKey
		if key == "" {
			key = os.Getenv("GEMINI_API_KEY")
		}
		if key == "" {
			return nil, fmt.Errorf("llmclient: GEMINI_API_KEY is not set")
		}
		return build(NewGeminiClient(ctx, GeminiConfig{APIKey: key, Model: cfg.Model}))
	case ProviderVertex:
		if strings.TrimSpace(cfg.Project) == "" {
			return nil, fmt.Errorf("llmclient: vertex provider requires a project")
		}
		return build(NewGeminiClient(ctx, GeminiConfig{Project: cfg.Project, Location: cfg.Location, Model: cfg.Model}))
	case ProviderOpenAI:
		return build(NewOpenAIClient(OpenAIConfig{APIKey: cfg.OpenAIAPIKey, BaseURL: cfg.OpenAIBaseURL, Model: cfg.Model}))
	case ProviderGroq:
		model := cfg.Model
		if model == "" {
			model = "llama-3.3-70b-versatile"
		}
		return build(NewOpenAIClient(OpenAIConfig{APIKey: cfg.GroqAPIKey, BaseURL: GroqBaseURL, Model: model}))
	case ProviderFake:
		return NewScriptedClient(), nil
	default:
		return nil, fmt.Errorf("llmclient: unknown provider %q", cfg.Provider)
	}
}

// build keeps a failed constructor from yielding a non-nil interface.
func build[C LLMClient](c C, err error) (LLMClient, error) {
	if err != nil {
		return nil, err
	}
	return c, nil
}

func normalizeProvider(p string) string {
	p = strings.ToLower(strings.TrimSpace(p))
	if p == "" {
		return ProviderGemini
	}
	return p
}
