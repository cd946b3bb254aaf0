package plugin

import (
	"context"

	"github.com/silfenpath/adk/agent"
	"github.com/silfenpath/adk/event"
	"github.com/silfenpath/adk/llm"
	"github.com/silfenpath/adk/tool"
)

// Pipeline composes the Plugins registered at Runner construction with the
// per-agent Callbacks of the agent currently executing, per spec §4.8's
// composition order: plugin before-hooks run outer→inner, the agent's own
// callback runs innermost, and after-hooks unwind in the opposite order.
type Pipeline struct {
	plugins []Plugin
}

// New builds a Pipeline from the given plugins, applied in registration
// order (plugins[0] is outermost).
func New(plugins ...Plugin) *Pipeline {
	return &Pipeline{plugins: plugins}
}

// RunBeforeAgent runs plugin BeforeAgent hooks outer→inner, then the
// agent's own BeforeAgent. The first hook to return non-nil content
// short-circuits the rest of the chain and the agent body itself.
func (p *Pipeline) RunBeforeAgent(ctx context.Context, cs *agent.CallbackState, own func(ctx context.Context, cs *agent.CallbackState) (*event.Content, error)) (*event.Content, error) {
	for _, pl := range p.plugins {
		content, err := pl.BeforeAgent(ctx, cs)
		if err != nil {
			return p.handleAgentError(ctx, cs, err)
		}
		if content != nil {
			return content, nil
		}
	}
	if own != nil {
		content, err := own(ctx, cs)
		if err != nil {
			return p.handleAgentError(ctx, cs, err)
		}
		if content != nil {
			return content, nil
		}
	}
	return nil, nil
}

// RunAfterAgent runs the agent's own AfterAgent first (innermost), then
// plugin AfterAgent hooks inner→outer.
func (p *Pipeline) RunAfterAgent(ctx context.Context, cs *agent.CallbackState, own func(ctx context.Context, cs *agent.CallbackState) error) error {
	if own != nil {
		if err := own(ctx, cs); err != nil {
			if _, err2 := p.handleAgentError(ctx, cs, err); err2 != nil {
				return err2
			}
		}
	}
	for i := len(p.plugins) - 1; i >= 0; i-- {
		if err := p.plugins[i].AfterAgent(ctx, cs); err != nil {
			if _, err2 := p.handleAgentError(ctx, cs, err); err2 != nil {
				return err2
			}
		}
	}
	return nil
}

func (p *Pipeline) handleAgentError(ctx context.Context, cs *agent.CallbackState, err error) (*event.Content, error) {
	for _, pl := range p.plugins {
		content, handled := pl.OnAgentError(ctx, cs, err)
		if handled == nil {
			return content, nil
		}
		err = handled
	}
	return nil, err
}

// RunBeforeModel is RunBeforeAgent's analogue for the model-call hook.
func (p *Pipeline) RunBeforeModel(ctx context.Context, cs *agent.CallbackState, req *llm.Request, own func(ctx context.Context, cs *agent.CallbackState, req *llm.Request) (*llm.Response, error)) (*llm.Response, error) {
	for _, pl := range p.plugins {
		resp, err := pl.BeforeModel(ctx, cs, req)
		if err != nil {
			return p.handleModelError(ctx, cs, err)
		}
		if resp != nil {
			return resp, nil
		}
	}
	if own != nil {
		resp, err := own(ctx, cs, req)
		if err != nil {
			return p.handleModelError(ctx, cs, err)
		}
		if resp != nil {
			return resp, nil
		}
	}
	return nil, nil
}

// RunAfterModel runs the agent's own AfterModel first, then plugin
// AfterModel hooks inner→outer, each free to transform the response in
// place.
func (p *Pipeline) RunAfterModel(ctx context.Context, cs *agent.CallbackState, resp *llm.Response, own func(ctx context.Context, cs *agent.CallbackState, resp *llm.Response) (*llm.Response, error)) (*llm.Response, error) {
	var err error
	if own != nil {
		resp, err = own(ctx, cs, resp)
		if err != nil {
			return p.handleModelError(ctx, cs, err)
		}
	}
	for i := len(p.plugins) - 1; i >= 0; i-- {
		resp, err = p.plugins[i].AfterModel(ctx, cs, resp)
		if err != nil {
			return p.handleModelError(ctx, cs, err)
		}
	}
	return resp, nil
}

func (p *Pipeline) handleModelError(ctx context.Context, cs *agent.CallbackState, err error) (*llm.Response, error) {
	for _, pl := range p.plugins {
		resp, handled := pl.OnModelError(ctx, cs, err)
		if handled == nil {
			return resp, nil
		}
		err = handled
	}
	return nil, err
}

// RunBeforeTool is RunBeforeAgent's analogue for the tool-call hook.
func (p *Pipeline) RunBeforeTool(ctx context.Context, cs *agent.CallbackState, toolName string, args map[string]any, own func(ctx context.Context, cs *agent.CallbackState, toolName string, args map[string]any) (*tool.Result, error)) (*tool.Result, error) {
	for _, pl := range p.plugins {
		result, err := pl.BeforeTool(ctx, cs, toolName, args)
		if err != nil {
			return p.handleToolError(ctx, cs, toolName, err)
		}
		if result != nil {
			return result, nil
		}
	}
	if own != nil {
		result, err := own(ctx, cs, toolName, args)
		if err != nil {
			return p.handleToolError(ctx, cs, toolName, err)
		}
		if result != nil {
			return result, nil
		}
	}
	return nil, nil
}

// RunAfterTool runs the agent's own AfterTool first, then plugin
// AfterTool hooks inner→outer.
func (p *Pipeline) RunAfterTool(ctx context.Context, cs *agent.CallbackState, toolName string, args map[string]any, result tool.Result, own func(ctx context.Context, cs *agent.CallbackState, toolName string, args map[string]any, result tool.Result) (*tool.Result, error)) (tool.Result, error) {
	out := result
	if own != nil {
		r, err := own(ctx, cs, toolName, args, out)
		if err != nil {
			resolved, err2 := p.handleToolError(ctx, cs, toolName, err)
			if err2 != nil {
				return out, err2
			}
			if resolved != nil {
				out = *resolved
			}
		} else if r != nil {
			out = *r
		}
	}
	for i := len(p.plugins) - 1; i >= 0; i-- {
		r, err := p.plugins[i].AfterTool(ctx, cs, toolName, args, out)
		if err != nil {
			resolved, err2 := p.handleToolError(ctx, cs, toolName, err)
			if err2 != nil {
				return out, err2
			}
			if resolved != nil {
				out = *resolved
			}
			continue
		}
		if r != nil {
			out = *r
		}
	}
	return out, nil
}

func (p *Pipeline) handleToolError(ctx context.Context, cs *agent.CallbackState, toolName string, err error) (*tool.Result, error) {
	for _, pl := range p.plugins {
		result, handled := pl.OnToolError(ctx, cs, toolName, err)
		if handled == nil {
			return result, nil
		}
		err = handled
	}
	return nil, err
}
