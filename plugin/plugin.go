// Package plugin implements the Plugin/Callback Pipeline of spec §4.8:
// cross-cutting before/after/onError hooks that wrap every agent, model
// call, and tool call, composed with the per-agent callbacks declared
// alongside each LlmAgent (spec §4.6).
package plugin

import (
	"context"

	"github.com/silfenpath/adk/agent"
	"github.com/silfenpath/adk/event"
	"github.com/silfenpath/adk/llm"
	"github.com/silfenpath/adk/tool"
)

// Plugin is a cross-cutting object wired into the before/after hooks of
// every agent, model call, and tool call in the invocation. The Pipeline
// calls every hook; a plugin that implements only some of them embeds Base
// for no-op defaults.
type Plugin interface {
	Name() string

	BeforeAgent(ctx context.Context, cs *agent.CallbackState) (*event.Content, error)
	AfterAgent(ctx context.Context, cs *agent.CallbackState) error
	// OnAgentError is invoked when a hook or the agent body itself errors.
	// A non-nil content return means the error is handled and the
	// invocation resumes with that content in place of the failed step.
	OnAgentError(ctx context.Context, cs *agent.CallbackState, err error) (*event.Content, error)

	BeforeModel(ctx context.Context, cs *agent.CallbackState, req *llm.Request) (*llm.Response, error)
	AfterModel(ctx context.Context, cs *agent.CallbackState, resp *llm.Response) (*llm.Response, error)
	// OnModelError mirrors OnAgentError for model-call failures: a non-nil
	// response resumes execution as if the model had returned it.
	OnModelError(ctx context.Context, cs *agent.CallbackState, err error) (*llm.Response, error)

	BeforeTool(ctx context.Context, cs *agent.CallbackState, toolName string, args map[string]any) (*tool.Result, error)
	AfterTool(ctx context.Context, cs *agent.CallbackState, toolName string, args map[string]any, result tool.Result) (*tool.Result, error)
	// OnToolError mirrors OnAgentError for tool-call failures.
	OnToolError(ctx context.Context, cs *agent.CallbackState, toolName string, err error) (*tool.Result, error)
}

// Base is embedded by plugins that only implement a few hooks, so they
// don't need to stub out the rest of the Plugin interface.
type Base struct{ PluginName string }

func (b Base) Name() string { return b.PluginName }
func (Base) BeforeAgent(context.Context, *agent.CallbackState) (*event.Content, error) {
	return nil, nil
}
func (Base) AfterAgent(context.Context, *agent.CallbackState) error { return nil }
func (Base) OnAgentError(_ context.Context, _ *agent.CallbackState, err error) (*event.Content, error) {
	return nil, err
}
func (Base) BeforeModel(context.Context, *agent.CallbackState, *llm.Request) (*llm.Response, error) {
	return nil, nil
}
func (Base) AfterModel(_ context.Context, _ *agent.CallbackState, resp *llm.Response) (*llm.Response, error) {
	return resp, nil
}
func (Base) OnModelError(_ context.Context, _ *agent.CallbackState, err error) (*llm.Response, error) {
	return nil, err
}
func (Base) BeforeTool(context.Context, *agent.CallbackState, string, map[string]any) (*tool.Result, error) {
	return nil, nil
}
func (Base) AfterTool(_ context.Context, _ *agent.CallbackState, _ string, _ map[string]any, result tool.Result) (*tool.Result, error) {
	return &result, nil
}
func (Base) OnToolError(_ context.Context, _ *agent.CallbackState, _ string, err error) (*tool.Result, error) {
	return nil, err
}
