package completion

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MockCompleter answers without any network call. Reply, when set, overrides
// the canned behaviour; Prompts records every prompt it received.
type MockCompleter struct {
	Reply func(prompt string) (string, error)

	mu      sync.Mutex
	prompts []string
}

func NewMockCompleter() *MockCompleter {
	return &MockCompleter{}
}

func (m *MockCompleter) Complete(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.Reply != nil {
		return m.Reply(prompt)
	}
	if strings.Contains(prompt, "score|emotion|reason") {
		return "5|neutral|mock classifier", nil
	}
	return fmt.Sprintf("I hear you. Thank you for sharing that. Can you tell me a little more about how it feels? (%d chars received)", len(prompt)), nil
}

func (m *MockCompleter) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prompts))
	copy(out, m.prompts)
	return out
}

func (m *MockCompleter) Close() error { return nil }
