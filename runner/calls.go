package runner

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/silfenpath/adk/agent"
	"github.com/silfenpath/adk/event"
	"github.com/silfenpath/adk/session"
	"github.com/silfenpath/adk/telemetry"
	"github.com/silfenpath/adk/tool"
)

// resolveFunctionCalls implements spec §4.7f: each call is resolved
// sequentially (tool calls within one invocation run sequentially by
// default, per spec §5), under a per-call timeout, with before/afterTool
// hooks and a synthesized functionResponse appended per call. A
// transfer_to_agent or exit_loop call is intercepted by name rather than
// dispatched to the registry. Tool-driven state writes accumulate on
// state and are attached as a stateDelta on the last call's event.
func (r *Runner) resolveFunctionCalls(ctx context.Context, inv *Invocation, a *agent.LlmAgent, cs *agent.CallbackState, state *session.State, calls []event.FunctionCall, out chan<- event.Event) (transferred, escalated bool, err error) {
	for i, call := range calls {
		result, handledTransfer, transferErr := r.resolveOneCall(ctx, inv, a, cs, state, call)
		if transferErr != nil {
			return false, false, transferErr
		}

		ev := event.Event{
			InvocationID: inv.ID,
			EventID:      uuid.NewString(),
			Author:       a.Name(),
			Timestamp:    time.Now(),
			Content: &event.Content{
				Role:  event.RoleFunction,
				Parts: []event.Part{tool.NewFunctionResponsePart(call.ID, call.Name, result)},
			},
		}
		if handledTransfer {
			ev.Actions = &event.Actions{TransferToAgent: inv.ActiveAgent()}
		}
		if i == len(calls)-1 {
			if delta := session.PersistableDelta(state.Delta()); len(delta) > 0 {
				if ev.Actions == nil {
					ev.Actions = &event.Actions{}
				}
				ev.Actions.StateDelta = delta
			}
		}
		if _, err := r.persist(ctx, inv, ev, out); err != nil {
			return false, false, err
		}

		if handledTransfer {
			transferred = true
		}
	}
	return transferred, false, nil
}

// resolveOneCall runs a single function call and returns its Result. For
// transfer_to_agent it attempts the switch itself (via inv.transferTo)
// rather than invoking a registry tool.
func (r *Runner) resolveOneCall(ctx context.Context, inv *Invocation, a *agent.LlmAgent, cs *agent.CallbackState, state *session.State, call event.FunctionCall) (tool.Result, bool, error) {
	if call.Name == tool.TransferToAgentName {
		target, _ := call.Args["agentName"].(string)
		if err := inv.transferTo(target); err != nil {
			return tool.ErrorResult(err.Error()), false, nil
		}
		return tool.OKResult(map[string]any{"transferred": target}), true, nil
	}
	if call.Name == tool.ExitLoopName {
		inv.requestLoopExit()
		return tool.OKResult(map[string]any{"exited": true}), false, nil
	}

	tc := r.toolContext(inv, a, state)

	var span *telemetry.Span
	if r.telemetry != nil {
		ctx, span = r.telemetry.StartTool(ctx, call.Name, inv.Session.ID, inv.UserID, a.Name()+"-"+inv.Session.ID)
	}
	final, callErr := r.dispatchTool(ctx, inv, a, cs, tc, call)
	if span != nil {
		span.End(callErr)
	}
	return final, false, nil
}

func (r *Runner) dispatchTool(ctx context.Context, inv *Invocation, a *agent.LlmAgent, cs *agent.CallbackState, tc *tool.Context, call event.FunctionCall) (tool.Result, error) {
	result, err := r.pipeline.RunBeforeTool(ctx, cs, call.Name, call.Args, a.Callbacks.BeforeTool)
	if err != nil {
		return tool.ErrorResult(err.Error()), err
	}
	if result == nil {
		result, err = r.invokeWithTimeout(ctx, a, tc, call.Name, call.Args)
		if err != nil {
			return tool.ErrorResult(err.Error()), err
		}
	}

	final, err := r.pipeline.RunAfterTool(ctx, cs, call.Name, call.Args, *result, a.Callbacks.AfterTool)
	if err != nil {
		return tool.ErrorResult(err.Error()), err
	}
	return final, nil
}

// invokeWithTimeout runs the tool under ToolCallTimeout, synthesizing a
// timeout Result (not a Go error) if it doesn't return in time, so
// invariant I2 holds for abandoned calls (spec §5/§7).
func (r *Runner) invokeWithTimeout(ctx context.Context, a *agent.LlmAgent, tc *tool.Context, name string, args map[string]any) (*tool.Result, error) {
	if a.Tools == nil {
		res := tool.ErrorResult("no tools registered on agent " + a.Name())
		return &res, nil
	}
	tctx, cancel := context.WithTimeout(ctx, ToolCallTimeout)
	defer cancel()

	done := make(chan tool.Result, 1)
	go func() {
		done <- a.Tools.Invoke(tctx, name, args, tc)
	}()

	select {
	case res := <-done:
		return &res, nil
	case <-tctx.Done():
		res := tool.ErrorResult("timeout")
		return &res, nil
	}
}
