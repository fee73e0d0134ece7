package completion

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

type ArkConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// ArkCompleter talks to a Volcengine Ark chat model through eino.
type ArkCompleter struct {
	chatModel model.ChatModel
}

func NewArkCompleter(ctx context.Context, cfg ArkConfig) (*ArkCompleter, error) {
	if cfg.APIKey == "" || cfg.Model == "" {
		return nil, fmt.Errorf("ark api key and model are required")
	}
	temperature := float32(0.7)
	chatModel, err := ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		Temperature: &temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ark chat model: %w", err)
	}
	return &ArkCompleter{chatModel: chatModel}, nil
}

func (a *ArkCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := a.chatModel.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		return "", fmt.Errorf("ark generate: %w", err)
	}
	if resp == nil {
		return "", nil
	}
	return resp.Content, nil
}

func (a *ArkCompleter) Close() error { return nil }
