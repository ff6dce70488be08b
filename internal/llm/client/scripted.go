package llmclient

import (
	"context"
	"errors"
	"sync"
)

// ErrScriptExhausted is returned when a ScriptedClient has no responses left.
var ErrScriptExhausted = errors.New("llmclient: scripted responses exhausted")

// Reply is one queued ScriptedClient answer.
type Reply struct {
	Text string
	Err  error
}

// ScriptedClient returns queued replies in order for offline runs and tests.
// Every prompt it receives is recorded.
type ScriptedClient struct {
	mu      sync.Mutex
	replies []Reply
	prompts []string
	// Fallback, when set, answers prompts once the queue is empty.
	Fallback func(prompt string) (string, error)
}

func NewScriptedClient(texts ...string) *ScriptedClient {
	s := &ScriptedClient{}
	for _, t := range texts {
		s.replies = append(s.replies, Reply{Text: t})
	}
	return s
}

// Push appends replies to the queue.
func (s *ScriptedClient) Push(replies ...Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, replies...)
}

func (s *ScriptedClient) Name() string { return "Scripted" }
func (s *ScriptedClient) Close() error { return nil }

func (s *ScriptedClient) Complete(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	if len(s.replies) == 0 {
		fb := s.Fallback
		s.mu.Unlock()
		if fb != nil {
			return fb(prompt)
		}
		return "", ErrScriptExhausted
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	s.mu.Unlock()
	return r.Text, r.Err
}

// Prompts returns a copy of every prompt received so far.
func (s *ScriptedClient) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}
