// Package providers adapts eino-ext chat-model components to the llm.Provider
// contract, selected by model-name prefix per spec §4.5.
package providers

import (
	"context"
	"errors"
	"io"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/silfenpath/adk/llm"
)

// Adapter wraps any eino model.ToolCallingChatModel as an llm.Provider. The
// four concrete provider constructors in this package (NewClaude, NewGemini,
// NewOpenAI, NewOllama) all return one of these, configured for their
// backend.
type Adapter struct {
	name     string
	chat     model.ToolCallingChatModel
	features llm.Features
}

// NewAdapter wraps chat as a named Provider with the given self-declared
// Features.
func NewAdapter(name string, chat model.ToolCallingChatModel, features llm.Features) *Adapter {
	return &Adapter{name: name, chat: chat, features: features}
}

func (a *Adapter) Features() llm.Features { return a.features }

// Generate binds req.Tools (if any), then streams the model's response as
// llm.Response chunks, aggregating into a final non-partial chunk the way
// spec §4.5 requires.
func (a *Adapter) Generate(ctx context.Context, req llm.Request) (<-chan llm.Response, error) {
	chat := a.chat
	if len(req.Tools) > 0 {
		bound, err := chat.WithTools(llm.ToSchemaTools(req.Tools))
		if err != nil {
			return nil, err
		}
		chat = bound
	}

	messages := buildMessages(req)
	opts := genOptions(req.GenerationConfig)

	ch := make(chan llm.Response, 4)
	go func() {
		defer close(ch)
		stream, err := chat.Stream(ctx, messages, opts...)
		if err != nil {
			ch <- llm.Response{TurnComplete: true, FinishReason: llm.FinishError, ErrorCode: "LlmTransport", ErrorMessage: err.Error()}
			return
		}
		defer stream.Close()

		var aggregated *schema.Message
		for {
			select {
			case <-ctx.Done():
				ch <- llm.Response{TurnComplete: true, FinishReason: llm.FinishError, ErrorCode: "Cancelled", ErrorMessage: ctx.Err().Error()}
				return
			default:
			}
			chunk, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				ch <- llm.Response{TurnComplete: true, FinishReason: llm.FinishError, ErrorCode: "LlmTransport", ErrorMessage: err.Error()}
				return
			}
			aggregated = mergeChunk(aggregated, chunk)
			content := llm.FromSchemaMessage(chunk)
			ch <- llm.Response{Content: &content, Partial: true}
		}
		final := llm.FromSchemaMessage(aggregated)
		ch <- llm.Response{
			Content:      &final,
			TurnComplete: true,
			FinishReason: finishReasonFor(aggregated),
		}
	}()
	return ch, nil
}

func buildMessages(req llm.Request) []*schema.Message {
	var messages []*schema.Message
	if req.SystemInstruction != "" {
		messages = append(messages, &schema.Message{Role: schema.System, Content: req.SystemInstruction})
	}
	messages = append(messages, llm.ToSchemaMessages(req.Contents)...)
	return messages
}

func genOptions(cfg *llm.GenerationConfig) []model.Option {
	if cfg == nil {
		return nil
	}
	var opts []model.Option
	if cfg.Temperature != nil {
		t := float32(*cfg.Temperature)
		opts = append(opts, model.WithTemperature(t))
	}
	if cfg.MaxOutputTokens != nil {
		opts = append(opts, model.WithMaxTokens(*cfg.MaxOutputTokens))
	}
	if cfg.TopP != nil {
		p := float32(*cfg.TopP)
		opts = append(opts, model.WithTopP(p))
	}
	if len(cfg.StopSequences) > 0 {
		opts = append(opts, model.WithStop(cfg.StopSequences))
	}
	return opts
}

func mergeChunk(aggregated *schema.Message, chunk *schema.Message) *schema.Message {
	if aggregated == nil {
		return chunk
	}
	aggregated.Content += chunk.Content
	aggregated.ToolCalls = append(aggregated.ToolCalls, chunk.ToolCalls...)
	return aggregated
}

func finishReasonFor(msg *schema.Message) llm.FinishReason {
	if msg == nil {
		return llm.FinishStop
	}
	if len(msg.ToolCalls) > 0 {
		return llm.FinishTool
	}
	return llm.FinishStop
}
