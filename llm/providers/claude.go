package providers

import (
	"context"
	"time"

	einoclaude "github.com/cloudwego/eino-ext/components/model/claude"

	"github.com/silfenpath/adk/llm"
)

// ClaudeConfig configures the Anthropic Claude provider.
type ClaudeConfig struct {
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int
	Timeout   time.Duration
}

// NewClaude builds an llm.Provider backed by eino-ext's Claude chat model,
// registered under the "claude-" prefix.
func NewClaude(ctx context.Context, cfg ClaudeConfig) (llm.Provider, error) {
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}
	chat, err := einoclaude.NewChatModel(ctx, &einoclaude.Config{
		APIKey:    cfg.APIKey,
		Model:     cfg.Model,
		BaseURL:   stringPtrOrNil(cfg.BaseURL),
		MaxTokens: maxTokens,
	})
	if err != nil {
		return nil, err
	}
	return NewAdapter("claude", chat, llm.Features{Tools: true, StructuredOut: true, Streaming: true, Multimodal: true}), nil
}

func stringPtrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
