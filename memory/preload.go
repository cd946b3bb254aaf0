package memory

import (
	"context"
	"strings"

	"github.com/silfenpath/adk/event"
	"github.com/silfenpath/adk/llm"
	"github.com/silfenpath/adk/tool"
)

const preloadMemoryName = "preload_memory"

// PreloadMemoryTool is spec §4.9's PreloadMemoryTool: it has no callable
// Run (the model never invokes it directly), but its ProcessLlmRequest
// hook injects the top-k memory search results for the turn's latest user
// message into the system instruction before every model call.
type PreloadMemoryTool struct {
	svc  *Service
	topK int
}

// NewPreloadMemoryTool builds a PreloadMemoryTool backed by svc, recalling
// up to topK memories per turn (default 3).
func NewPreloadMemoryTool(svc *Service, topK int) *PreloadMemoryTool {
	if topK <= 0 {
		topK = 3
	}
	return &PreloadMemoryTool{svc: svc, topK: topK}
}

func (t *PreloadMemoryTool) Name() string { return preloadMemoryName }
func (t *PreloadMemoryTool) Description() string {
	return "Injects relevant cross-session memory into context before each turn."
}
func (t *PreloadMemoryTool) Parameters() map[string]llm.Parameter { return nil }

// Run is a no-op: this tool is never dispatched by the model, only driven
// through ProcessLlmRequest.
func (t *PreloadMemoryTool) Run(ctx context.Context, args map[string]any, tc *tool.Context) tool.Result {
	return tool.OKResult(map[string]any{"preloaded": true})
}

// ProcessLlmRequest appends a "Relevant memory" block to req's system
// instruction, built from the most recent user content in req.Contents.
func (t *PreloadMemoryTool) ProcessLlmRequest(ctx context.Context, tc *tool.Context, req *llm.Request) error {
	query := lastUserText(req)
	if query == "" {
		return nil
	}
	hits, err := t.svc.Search(ctx, tc.AppName, tc.UserID, query, t.topK)
	if err != nil || len(hits) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString("\n\nRelevant memory:\n")
	for _, h := range hits {
		sb.WriteString("- ")
		sb.WriteString(h.Summary)
		sb.WriteString("\n")
	}
	req.SystemInstruction += sb.String()
	return nil
}

func lastUserText(req *llm.Request) string {
	for i := len(req.Contents) - 1; i >= 0; i-- {
		c := req.Contents[i]
		if c.Role == event.RoleUser {
			if text := c.Text(); text != "" {
				return text
			}
		}
	}
	return ""
}
