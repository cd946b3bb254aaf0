package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silfenpath/adk/event"
	"github.com/silfenpath/adk/llm"
	"github.com/silfenpath/adk/tool"
)

func TestPreloadMemoryToolInjectsTopHits(t *testing.T) {
	storage := NewKeywordStorage()
	svc := New(Config{Storage: storage})
	ctx := context.Background()
	require.NoError(t, storage.Store(ctx, MemoryRecord{AppName: "app", UserID: "u1", Content: "allergic to peanuts", KeyFacts: []string{"peanuts"}}))

	preload := NewPreloadMemoryTool(svc, 3)
	req := &llm.Request{
		SystemInstruction: "You are a helpful assistant.",
		Contents: []event.Content{
			{Role: event.RoleUser, Parts: []event.Part{{Text: "what snacks should I avoid, any peanuts?"}}},
		},
	}
	tc := &tool.Context{AppName: "app", UserID: "u1"}

	require.NoError(t, preload.ProcessLlmRequest(ctx, tc, req))
	assert.Contains(t, req.SystemInstruction, "allergic to peanuts")
}

func TestPreloadMemoryToolNoopWithoutUserText(t *testing.T) {
	svc := New(Config{Storage: NewKeywordStorage()})
	preload := NewPreloadMemoryTool(svc, 3)
	req := &llm.Request{SystemInstruction: "base"}
	tc := &tool.Context{AppName: "app", UserID: "u1"}

	require.NoError(t, preload.ProcessLlmRequest(context.Background(), tc, req))
	assert.Equal(t, "base", req.SystemInstruction)
}

func TestPreloadMemoryToolDefaultsTopK(t *testing.T) {
	preload := NewPreloadMemoryTool(New(Config{Storage: NewKeywordStorage()}), 0)
	assert.Equal(t, 3, preload.topK)
}
