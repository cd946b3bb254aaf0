package runner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silfenpath/adk/agent"
	"github.com/silfenpath/adk/event"
	"github.com/silfenpath/adk/llm"
	"github.com/silfenpath/adk/session"
	"github.com/silfenpath/adk/tool"
)

// scriptedProvider replies with a fixed sequence of Responses per call,
// advancing one entry per Generate invocation so a test can script a
// multi-turn function-call exchange.
type scriptedProvider struct {
	turns [][]llm.Response
	calls int
}

func (p *scriptedProvider) Generate(ctx context.Context, req llm.Request) (<-chan llm.Response, error) {
	i := p.calls
	p.calls++
	ch := make(chan llm.Response, len(p.turns[i]))
	for _, r := range p.turns[i] {
		ch <- r
	}
	close(ch)
	return ch, nil
}

func (p *scriptedProvider) Features() llm.Features { return llm.Features{Streaming: true, Tools: true} }

func modelText(text string) llm.Response {
	return llm.Response{
		Content:      &event.Content{Role: event.RoleModel, Parts: []event.Part{event.TextPart(text)}},
		TurnComplete: true,
		FinishReason: llm.FinishStop,
	}
}

func newTestRunner(t *testing.T, root agent.Agent, provider llm.Provider) *Runner {
	t.Helper()
	reg := llm.NewRegistry()
	reg.Register("echo-", provider)
	r, err := New(Config{
		Root:           root,
		SessionService: session.NewInMemoryService(),
		Providers:      reg,
	})
	require.NoError(t, err)
	return r
}

func TestAskSingleTurnEcho(t *testing.T) {
	a := agent.NewLlmAgent("greeter", "replies with a fixed greeting")
	a.Model = "echo-1"

	provider := &scriptedProvider{turns: [][]llm.Response{{modelText("hello there")}}}
	r := newTestRunner(t, a, provider)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	out, err := r.Ask(ctx, "app", "user-1", "sess-1", "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello there", out)
}

// echoTool returns its "value" argument back as the result, letting a test
// assert the functionResponse round-trip without a real backend.
type echoTool struct{}

func (echoTool) Name() string        { return "echo" }
func (echoTool) Description() string { return "returns the given value" }
func (echoTool) Parameters() map[string]llm.Parameter {
	return map[string]llm.Parameter{"value": {Type: "string"}}
}
func (echoTool) Run(ctx context.Context, args map[string]any, tc *tool.Context) tool.Result {
	return tool.OKResult(args["value"])
}

func TestFunctionCallRoundTrip(t *testing.T) {
	reg := tool.NewRegistry()
	require.NoError(t, reg.Add(echoTool{}))

	a := agent.NewLlmAgent("caller", "calls the echo tool then answers")
	a.Model = "echo-1"
	a.Tools = reg

	callEvent := llm.Response{
		Content: &event.Content{Role: event.RoleModel, Parts: []event.Part{{
			FunctionCall: &event.FunctionCall{ID: "c1", Name: "echo", Args: map[string]any{"value": "ping"}},
		}}},
		TurnComplete: true,
		FinishReason: llm.FinishTool,
	}
	provider := &scriptedProvider{turns: [][]llm.Response{
		{callEvent},
		{modelText("got: ping")},
	}}
	r := newTestRunner(t, a, provider)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	out, err := r.Ask(ctx, "app", "user-1", "sess-1", "echo ping")
	require.NoError(t, err)
	assert.Equal(t, "got: ping", out)
	assert.Equal(t, 2, provider.calls)
}

func TestTransferBetweenAgents(t *testing.T) {
	specialist := agent.NewLlmAgent("specialist", "handles the transferred request")
	specialist.Model = "echo-1"

	router := agent.NewLlmAgent("router", "routes to the specialist", specialist)
	router.Model = "echo-1"

	transferCall := llm.Response{
		Content: &event.Content{Role: event.RoleModel, Parts: []event.Part{{
			FunctionCall: &event.FunctionCall{ID: "t1", Name: tool.TransferToAgentName, Args: map[string]any{"agentName": "specialist"}},
		}}},
		TurnComplete: true,
		FinishReason: llm.FinishTool,
	}
	provider := &scriptedProvider{turns: [][]llm.Response{
		{transferCall},
		{modelText("handled by specialist")},
	}}
	r := newTestRunner(t, router, provider)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	out, err := r.Ask(ctx, "app", "user-1", "sess-1", "route me")
	require.NoError(t, err)
	assert.Equal(t, "handled by specialist", out)
}

func TestSequentialAgentRunsChildrenInOrder(t *testing.T) {
	first := agent.NewLlmAgent("first", "")
	first.Model = "echo-1"
	second := agent.NewLlmAgent("second", "")
	second.Model = "echo-1"

	seq := agent.NewSequentialAgent("pipeline", "", first, second)

	// first agent's turn ends normally (no function calls), so the
	// sequence should advance past it to second.
	provider := &scriptedProvider{turns: [][]llm.Response{
		{modelText("from first")},
		{modelText("from second")},
	}}
	reg := llm.NewRegistry()
	reg.Register("echo-", provider)
	r, err := New(Config{Root: seq, SessionService: session.NewInMemoryService(), Providers: reg})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	out, err := r.Ask(ctx, "app", "user-1", "sess-1", "go")
	require.NoError(t, err)
	assert.Equal(t, "from second", out)
	assert.Equal(t, 2, provider.calls)
}

func TestParallelAgentFansOutAndIn(t *testing.T) {
	left := agent.NewLlmAgent("left", "")
	left.Model = "echo-1"
	right := agent.NewLlmAgent("right", "")
	right.Model = "echo-1"

	par := agent.NewParallelAgent("both", "", left, right)

	provider := &scriptedProvider{turns: [][]llm.Response{
		{modelText("left done")},
		{modelText("right done")},
	}}
	reg := llm.NewRegistry()
	reg.Register("echo-", provider)
	r, err := New(Config{Root: par, SessionService: session.NewInMemoryService(), Providers: reg})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	sess, err := r.sessions.CreateSession(ctx, "app", "user-1", nil)
	require.NoError(t, err)
	ch, err := r.RunAsync(ctx, sess, event.Content{Role: event.RoleUser, Parts: []event.Part{event.TextPart("go")}})
	require.NoError(t, err)

	var finals int
	for ev := range ch {
		require.Empty(t, ev.ErrorCode)
		if ev.TurnComplete && ev.Content != nil && !ev.IsUser() {
			finals++
		}
	}
	assert.Equal(t, 2, finals)
}

func TestLoopAgentExitsViaExitLoopTool(t *testing.T) {
	body := agent.NewLlmAgent("body", "")
	body.Model = "echo-1"

	loop := agent.NewLoopAgent("looper", "", 5, body)

	exitCall := llm.Response{
		Content: &event.Content{Role: event.RoleModel, Parts: []event.Part{{
			FunctionCall: &event.FunctionCall{ID: "e1", Name: tool.ExitLoopName},
		}}},
		TurnComplete: true,
		FinishReason: llm.FinishTool,
	}
	provider := &scriptedProvider{turns: [][]llm.Response{
		{modelText("iteration one")},
		{exitCall},
	}}
	reg := llm.NewRegistry()
	reg.Register("echo-", provider)
	r, err := New(Config{Root: loop, SessionService: session.NewInMemoryService(), Providers: reg})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = r.Ask(ctx, "app", "user-1", "sess-1", "loop")
	require.NoError(t, err)
	assert.Equal(t, 2, provider.calls, "loop should run body twice: once to reply, once to exit")
}

// hangingTool never returns within the test's short timeout, exercising
// invokeWithTimeout's synthesized timeout Result.
type hangingTool struct{}

func (hangingTool) Name() string                         { return "hang" }
func (hangingTool) Description() string                  { return "never returns" }
func (hangingTool) Parameters() map[string]llm.Parameter { return nil }
func (hangingTool) Run(ctx context.Context, args map[string]any, tc *tool.Context) tool.Result {
	<-ctx.Done()
	return tool.ErrorResult("cancelled")
}

func TestToolCallTimeoutSynthesizesErrorResult(t *testing.T) {
	orig := ToolCallTimeout
	ToolCallTimeout = 20 * time.Millisecond
	defer func() { ToolCallTimeout = orig }()

	reg := tool.NewRegistry()
	require.NoError(t, reg.Add(hangingTool{}))

	a := agent.NewLlmAgent("caller", "")
	a.Model = "echo-1"
	a.Tools = reg

	callEvent := llm.Response{
		Content: &event.Content{Role: event.RoleModel, Parts: []event.Part{{
			FunctionCall: &event.FunctionCall{ID: "h1", Name: "hang"},
		}}},
		TurnComplete: true,
		FinishReason: llm.FinishTool,
	}
	provider := &scriptedProvider{turns: [][]llm.Response{
		{callEvent},
		{modelText("after timeout")},
	}}
	r := newTestRunner(t, a, provider)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	out, err := r.Ask(ctx, "app", "user-1", "sess-1", "hang please")
	require.NoError(t, err)
	assert.Equal(t, "after timeout", out)
}

func TestTransferToUnknownAgentIsDenied(t *testing.T) {
	a := agent.NewLlmAgent("solo", "")
	a.Model = "echo-1"

	transferCall := llm.Response{
		Content: &event.Content{Role: event.RoleModel, Parts: []event.Part{{
			FunctionCall: &event.FunctionCall{ID: "t1", Name: tool.TransferToAgentName, Args: map[string]any{"agentName": "nowhere"}},
		}}},
		TurnComplete: true,
		FinishReason: llm.FinishTool,
	}
	provider := &scriptedProvider{turns: [][]llm.Response{
		{transferCall},
		{modelText("stayed put")},
	}}
	r := newTestRunner(t, a, provider)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	out, err := r.Ask(ctx, "app", "user-1", "sess-1", "go elsewhere")
	require.NoError(t, err)
	assert.Equal(t, "stayed put", out)
}

func TestRewindDelegatesToSessionService(t *testing.T) {
	a := agent.NewLlmAgent("solo", "")
	a.Model = "echo-1"
	provider := &scriptedProvider{turns: [][]llm.Response{{modelText("one")}, {modelText("two")}}}
	r := newTestRunner(t, a, provider)

	ctx := context.Background()
	sess, err := r.sessions.CreateSession(ctx, "app", "user-1", nil)
	require.NoError(t, err)

	ch, err := r.RunAsync(ctx, sess, event.Content{Role: event.RoleUser, Parts: []event.Part{event.TextPart("first")}})
	require.NoError(t, err)
	for range ch {
	}
	firstInvocation := sess.Events[0].InvocationID

	ch, err = r.RunAsync(ctx, sess, event.Content{Role: event.RoleUser, Parts: []event.Part{event.TextPart("second")}})
	require.NoError(t, err)
	for range ch {
	}
	require.Len(t, sess.Events, 4)

	require.NoError(t, r.Rewind(ctx, sess, firstInvocation))
	assert.Empty(t, sess.Events)
}

func TestCancelStopsInvocationWithoutHanging(t *testing.T) {
	block := make(chan struct{})
	a := agent.NewLlmAgent("solo", "")
	a.Model = "echo-1"

	reg := llm.NewRegistry()
	reg.Register("echo-", &blockingProvider{unblock: block})
	r, err := New(Config{Root: a, SessionService: session.NewInMemoryService(), Providers: reg})
	require.NoError(t, err)

	sess, err := r.sessions.CreateSession(context.Background(), "app", "user-1", nil)
	require.NoError(t, err)

	ctx := context.Background()
	ch, err := r.RunAsync(ctx, sess, event.Content{Role: event.RoleUser, Parts: []event.Part{event.TextPart("go")}})
	require.NoError(t, err)

	var invocationID string
	r.mu.Lock()
	for id := range r.invocations {
		invocationID = id
	}
	r.mu.Unlock()
	require.NotEmpty(t, invocationID)

	r.Cancel(invocationID)
	close(block)

	done := make(chan struct{})
	go func() {
		for range ch {
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("invocation did not unwind after cancel")
	}
}

// blockingProvider waits on unblock before returning, simulating an
// in-flight model call during cancellation.
type blockingProvider struct{ unblock chan struct{} }

func (p *blockingProvider) Generate(ctx context.Context, req llm.Request) (<-chan llm.Response, error) {
	<-p.unblock
	ch := make(chan llm.Response, 1)
	ch <- modelText("too late")
	close(ch)
	return ch, nil
}

func (p *blockingProvider) Features() llm.Features { return llm.Features{Streaming: true} }
