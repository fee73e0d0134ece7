package core

import (
	"context"
	"fmt"
	"strings"

	"mindmate.io/companion/internal/apperr"
	"mindmate.io/companion/internal/observability"
)

// Completer is the text-completion backend. Implementations return the raw
// model text; LLMService maps their failures onto the error taxonomy.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Close() error
}

type LLMService struct {
	completer Completer
}

func NewLLMService(c Completer) *LLMService {
	return &LLMService{completer: c}
}

func (s *LLMService) Close() {
	if s.completer == nil {
		return
	}
	if err := s.completer.Close(); err != nil {
		observability.Logger().Warn("error closing completion client", "error", err)
	}
}

// Respond sends prompt to the completion backend once. It never retries and
// never substitutes a canned reply.
func (s *LLMService) Respond(ctx context.Context, prompt string) (string, error) {
	text, err := s.completer.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: %w", apperr.ErrUpstreamUnavailable, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperr.ErrEmptyResponse
	}
	return text, nil
}
