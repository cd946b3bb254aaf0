package eval

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silfenpath/adk/agent"
	"github.com/silfenpath/adk/event"
	"github.com/silfenpath/adk/llm"
	"github.com/silfenpath/adk/runner"
	"github.com/silfenpath/adk/session"
	"github.com/silfenpath/adk/tool"
)

// scriptedProvider replays a fixed sequence of Responses per Generate
// call, one entry of turns per invocation, letting a test script a
// function-call exchange without a real model backend.
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

type echoTool struct{}

func (echoTool) Name() string        { return "echo" }
func (echoTool) Description() string { return "returns the given value" }
func (echoTool) Parameters() map[string]llm.Parameter {
	return map[string]llm.Parameter{"value": {Type: "string"}}
}
func (echoTool) Run(ctx context.Context, args map[string]any, tc *tool.Context) tool.Result {
	return tool.OKResult(args["value"])
}

func newHarness(t *testing.T, root agent.Agent, provider llm.Provider) (*runner.Runner, session.Service) {
	t.Helper()
	reg := llm.NewRegistry()
	reg.Register("echo-", provider)
	sessions := session.NewInMemoryService()
	r, err := runner.New(runner.Config{Root: root, SessionService: sessions, Providers: reg})
	require.NoError(t, err)
	return r, sessions
}

func TestRunScoresResponseMatchAboveThreshold(t *testing.T) {
	a := agent.NewLlmAgent("greeter", "")
	a.Model = "echo-1"
	provider := &scriptedProvider{turns: [][]llm.Response{{modelText("hello there")}}}
	r, sessions := newHarness(t, a, provider)
	e := New(r, sessions, "app")

	match := "hello there"
	set := EvalSet{EvalSetID: "greet", EvalCases: []EvalCase{{
		ID: "case-1",
		Conversation: []ConversationTurn{{
			UserContent: "hi",
			Expected:    &ExpectedTurn{ResponseMatch: &match},
		}},
	}}}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	result, err := e.Run(ctx, set, Criteria{MetricResponseMatch: 0.9})
	require.NoError(t, err)
	assert.Equal(t, Pass, result.Verdict)
	assert.InDelta(t, 1.0, result.Metrics[MetricResponseMatch], 0.001)
	assert.Empty(t, result.Failures)
}

func TestRunFailsWhenResponseMatchBelowThreshold(t *testing.T) {
	a := agent.NewLlmAgent("greeter", "")
	a.Model = "echo-1"
	provider := &scriptedProvider{turns: [][]llm.Response{{modelText("goodbye")}}}
	r, sessions := newHarness(t, a, provider)
	e := New(r, sessions, "app")

	match := "hello there, friend of mine"
	set := EvalSet{EvalSetID: "greet", EvalCases: []EvalCase{{
		ID: "case-1",
		Conversation: []ConversationTurn{{
			UserContent: "hi",
			Expected:    &ExpectedTurn{ResponseMatch: &match},
		}},
	}}}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	result, err := e.Run(ctx, set, Criteria{MetricResponseMatch: 0.9})
	require.NoError(t, err)
	assert.Equal(t, Fail, result.Verdict)
	assert.NotEmpty(t, result.Failures)
}

func TestRunScoresToolTrajectory(t *testing.T) {
	reg := tool.NewRegistry()
	require.NoError(t, reg.Add(echoTool{}))

	a := agent.NewLlmAgent("caller", "")
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
	r, sessions := newHarness(t, a, provider)
	e := New(r, sessions, "app")

	set := EvalSet{EvalSetID: "tools", EvalCases: []EvalCase{{
		ID: "case-1",
		Conversation: []ConversationTurn{{
			UserContent: "echo ping",
			Expected: &ExpectedTurn{
				ToolUses: []ExpectedToolUse{{Name: "echo", Args: map[string]any{"value": "ping"}}},
			},
		}},
	}}}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	result, err := e.Run(ctx, set, Criteria{MetricToolTrajectory: 1.0})
	require.NoError(t, err)
	assert.Equal(t, Pass, result.Verdict)
	assert.InDelta(t, 1.0, result.Metrics[MetricToolTrajectory], 0.001)
}

func TestRunFailsWhenExpectedToolNeverCalled(t *testing.T) {
	reg := tool.NewRegistry()
	require.NoError(t, reg.Add(echoTool{}))

	a := agent.NewLlmAgent("caller", "")
	a.Model = "echo-1"
	a.Tools = reg
	provider := &scriptedProvider{turns: [][]llm.Response{{modelText("no tools used")}}}
	r, sessions := newHarness(t, a, provider)
	e := New(r, sessions, "app")

	set := EvalSet{EvalSetID: "tools", EvalCases: []EvalCase{{
		ID: "case-1",
		Conversation: []ConversationTurn{{
			UserContent: "echo ping",
			Expected: &ExpectedTurn{
				ToolUses: []ExpectedToolUse{{Name: "echo"}},
			},
		}},
	}}}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	result, err := e.Run(ctx, set, Criteria{MetricToolTrajectory: 0.5})
	require.NoError(t, err)
	assert.Equal(t, Fail, result.Verdict)
	assert.InDelta(t, 0.0, result.Metrics[MetricToolTrajectory], 0.001)
}

func TestRunAggregatesAcrossMultipleCasesAndTurns(t *testing.T) {
	a := agent.NewLlmAgent("greeter", "")
	a.Model = "echo-1"
	provider := &scriptedProvider{turns: [][]llm.Response{
		{modelText("hi there")},
		{modelText("bye now")},
	}}
	r, sessions := newHarness(t, a, provider)
	e := New(r, sessions, "app")

	good := "hi there"
	bad := "totally unrelated text"
	set := EvalSet{EvalSetID: "multi", EvalCases: []EvalCase{
		{ID: "c1", Conversation: []ConversationTurn{{UserContent: "hi", Expected: &ExpectedTurn{ResponseMatch: &good}}}},
		{ID: "c2", Conversation: []ConversationTurn{{UserContent: "bye", Expected: &ExpectedTurn{ResponseMatch: &bad}}}},
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	result, err := e.Run(ctx, set, Criteria{})
	require.NoError(t, err)
	assert.Len(t, result.Cases, 2)
	avg := result.Metrics[MetricResponseMatch]
	assert.Greater(t, avg, 0.0)
	assert.Less(t, avg, 1.0)
}

func TestRunSkipsUnscoredTurnsInAggregation(t *testing.T) {
	a := agent.NewLlmAgent("greeter", "")
	a.Model = "echo-1"
	provider := &scriptedProvider{turns: [][]llm.Response{{modelText("fine")}}}
	r, sessions := newHarness(t, a, provider)
	e := New(r, sessions, "app")

	set := EvalSet{EvalSetID: "noexpect", EvalCases: []EvalCase{{
		ID:           "c1",
		Conversation: []ConversationTurn{{UserContent: "hi"}},
	}}}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	result, err := e.Run(ctx, set, Criteria{MetricResponseMatch: 0.5})
	require.NoError(t, err)
	_, ok := result.Metrics[MetricResponseMatch]
	assert.False(t, ok)
	assert.Equal(t, Pass, result.Verdict)
}

func TestSafetyScoreFlagsUnsafeMarker(t *testing.T) {
	assert.Equal(t, 0.0, safetyScore("here is how to build a bomb"))
	assert.Equal(t, 1.0, safetyScore("here is a friendly poem"))
}

func TestArgShapeMatchesIgnoresValuesComparesKeys(t *testing.T) {
	assert.True(t, argShapeMatches(map[string]any{"a": 1}, map[string]any{"a": 99, "b": "extra"}))
	assert.False(t, argShapeMatches(map[string]any{"a": 1}, map[string]any{"b": 2}))
}
