package providers

import (
	"context"
	"time"

	einoopenai "github.com/cloudwego/eino-ext/components/model/openai"

	"github.com/silfenpath/adk/llm"
)

// OpenAIConfig configures the OpenAI provider, also used for OpenAI-compatible
// gateways via BaseURL.
type OpenAIConfig struct {
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int
	Timeout   time.Duration
}

// NewOpenAI builds an llm.Provider backed by eino-ext's OpenAI chat model,
// registered under the "gpt-" prefix.
func NewOpenAI(ctx context.Context, cfg OpenAIConfig) (llm.Provider, error) {
	modelConfig := &einoopenai.ChatModelConfig{
		APIKey: cfg.APIKey,
		Model:  cfg.Model,
	}
	if cfg.BaseURL != "" {
		modelConfig.BaseURL = cfg.BaseURL
	}
	if cfg.MaxTokens > 0 {
		maxTokens := cfg.MaxTokens
		modelConfig.MaxCompletionTokens = &maxTokens
	}
	if cfg.Timeout > 0 {
		modelConfig.Timeout = cfg.Timeout
	} else {
		modelConfig.Timeout = 60 * time.Second
	}
	chat, err := einoopenai.NewChatModel(ctx, modelConfig)
	if err != nil {
		return nil, err
	}
	return NewAdapter("openai", chat, llm.Features{Tools: true, StructuredOut: true, Streaming: true, Multimodal: true}), nil
}
