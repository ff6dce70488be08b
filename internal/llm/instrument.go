package llm

import (
	"context"

	llmclient "tbsynth/internal/llm/client"
	"tbsynth/internal/metrics"
)

// WithMetrics counts oracle requests per worker and status.
func WithMetrics(m *metrics.Metrics) Middleware {
	return func(next llmclient.LLMClient) llmclient.LLMClient {
		if m == nil {
			return next
		}
		return &instrumented{next: next, m: m}
	}
}

type instrumented struct {
	next llmclient.LLMClient
	m    *metrics.Metrics
}

func (i *instrumented) Name() string { return i.next.Name() }
func (i *instrumented) Close() error { return i.next.Close() }
func (i *instrumented) Complete(ctx context.Context, prompt string) (string, error) {
	out, err := i.next.Complete(ctx, prompt)
	i.m.ObserveOracle(WorkerFrom(ctx), err)
	return out, err
}
