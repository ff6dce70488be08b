package llm

import (
	"context"
	"log"

	llmclient "tbsynth/internal/llm/client"
)

// WithLogging logs request size and errors. Provide a custom logger or nil
// to use log.Default().
func WithLogging(logger *log.Logger) Middleware {
	if logger == nil {
		logger = log.Default()
	}
	return func(next llmclient.LLMClient) llmclient.LLMClient {
		return &logging{next: next, log: logger}
	}
}

// WithBodyLogging is WithLogging that also logs prompt and response text.
func WithBodyLogging(logger *log.Logger) Middleware {
	if logger == nil {
		logger = log.Default()
	}
	return func(next llmclient.LLMClient) llmclient.LLMClient {
		return &logging{next: next, log: logger, bodies: true}
	}
}

type logging struct {
	next   llmclient.LLMClient
	log    *log.Logger
	bodies bool
}

func (l *logging) Name() string { return l.next.Name() }
func (l *logging) Close() error { return l.next.Close() }

func (l *logging) Complete(ctx context.Context, prompt string) (string, error) {
	worker := WorkerFrom(ctx)
	l.log.Printf("LLM request (%s via %s): %d bytes, ~%d tokens", worker, l.next.Name(), len(prompt), llmclient.CountTokens(prompt))
	if l.bodies {
		l.log.Printf("LLM prompt (%s):\n%s", worker, prompt)
	}
	out, err := l.next.Complete(ctx, prompt)
	if err != nil {
		l.log.Printf("LLM error (%s): %v", worker, err)
		return out, err
	}
	l.log.Printf("LLM response (%s): %d bytes", worker, len(out))
	if l.bodies {
		l.log.Printf("LLM response text (%s):\n%s", worker, out)
	}
	return out, nil
}
