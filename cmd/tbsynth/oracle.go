package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"tbsynth/internal/llm"
	llmclient "tbsynth/internal/llm/client"
)

// newClient is swapped out by tests.
var newClient = llmclient.New

// buildOracle returns the provider client behind the middleware chain.
// The limiter sits inside Retry so every attempt is paced.
func (a *app) buildOracle(ctx context.Context) (llmclient.LLMClient, error) {
	cli, err := newClient(ctx, a.cfg.Provider())
	if err != nil {
		return nil, err
	}
	logging := llm.WithLogging(a.logger)
	if a.cfg.LLM.LogPrompts {
		logging = llm.WithBodyLogging(a.logger)
	}
	return llm.Wrap(cli,
		llm.WithHooks(),
		logging,
		llm.WithMetrics(a.metrics),
		llm.Retry(a.cfg.LLM.Retries, a.cfg.LLM.RetryBase),
		llm.RateLimit(a.cfg.LLM.RPS, a.cfg.LLM.Burst),
		llm.RequireText(),
	), nil
}

// transcript records every oracle exchange of one run.
type transcript struct {
	mu  sync.Mutex
	buf strings.Builder
	n   int
}

func (t *transcript) Before(_ context.Context, worker, prompt string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.n++
	fmt.Fprintf(&t.buf, "## %d. %s\n\n### prompt\n\n%s\n\n", t.n, worker, strings.TrimRight(prompt, "\n"))
}

func (t *transcript) After(_ context.Context, _ string, response string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		fmt.Fprintf(&t.buf, "### error\n\n%v\n\n", err)
		return
	}
	fmt.Fprintf(&t.buf, "### response\n\n%s\n\n", strings.TrimRight(response, "\n"))
}

func (t *transcript) Bytes() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return []byte(t.buf.String())
}
