package llm

import (
	"context"
	"strings"

	llmclient "tbsynth/internal/llm/client"
)

// Middleware decorates an LLMClient to inject cross-cutting concerns
// (rate limiting, retries, logging, hooks, etc.).
type Middleware func(llmclient.LLMClient) llmclient.LLMClient

// Wrap applies middlewares in left-to-right order.
// Example: Wrap(inner, A, B) => A(B(inner))
func Wrap(inner llmclient.LLMClient, mws ...Middleware) llmclient.LLMClient {
	out := inner
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] == nil {
			continue
		}
		out = mws[i](out)
	}
	return out
}

// RequireText turns blank responses into a permanent ErrEmptyResponse so an
// empty header or testbench never flows into later prompts.
func RequireText() Middleware {
	return func(next llmclient.LLMClient) llmclient.LLMClient {
		return &requireText{next: next}
	}
}

type requireText struct{ next llmclient.LLMClient }

func (r *requireText) Name() string { return r.next.Name() }
func (r *requireText) Close() error { return r.next.Close() }
func (r *requireText) Complete(ctx context.Context, prompt string) (string, error) {
	out, err := r.next.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		return "", llmclient.NewPermanentError(llmclient.ErrEmptyResponse)
	}
	return out, nil
}
