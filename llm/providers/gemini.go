package providers

import (
	"context"

	einogemini "github.com/cloudwego/eino-ext/components/model/gemini"
	"google.golang.org/genai"

	"github.com/silfenpath/adk/llm"
)

// GeminiConfig configures the Google Gemini provider.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// NewGemini builds an llm.Provider backed by eino-ext's Gemini chat model,
// registered under the "gemini-" prefix.
func NewGemini(ctx context.Context, cfg GeminiConfig) (llm.Provider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, err
	}
	chat, err := einogemini.NewChatModel(ctx, &einogemini.Config{
		Client: client,
		Model:  cfg.Model,
	})
	if err != nil {
		return nil, err
	}
	return NewAdapter("gemini", chat, llm.Features{Tools: true, StructuredOut: true, Streaming: true, Multimodal: true}), nil
}
