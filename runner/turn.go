package runner

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/silfenpath/adk/agent"
	"github.com/silfenpath/adk/errs"
	"github.com/silfenpath/adk/event"
	"github.com/silfenpath/adk/session"
	"github.com/silfenpath/adk/telemetry"
	"github.com/silfenpath/adk/tool"
)

// runNode dispatches a.Kind() to the matching discipline, per spec §4.6
// step 3. It reports whether execution transferred to a different agent
// elsewhere in the tree (the caller re-dispatches at inv.ActiveAgent())
// and whether the node's last action was an escalate.
func (r *Runner) runNode(ctx context.Context, inv *Invocation, a agent.Agent, out chan<- event.Event) (transferred, escalated bool, err error) {
	switch a.Kind() {
	case agent.KindLlm:
		return r.runLlmAgent(ctx, inv, a.(*agent.LlmAgent), out)
	case agent.KindSequential:
		return r.runSequence(ctx, inv, a.SubAgents(), out)
	case agent.KindParallel:
		return r.runParallel(ctx, inv, a.(*agent.ParallelAgent), out)
	case agent.KindLoop:
		return r.runLoop(ctx, inv, a.(*agent.LoopAgent), out)
	default:
		return false, false, errs.New(errs.KindInternal, inv.ID, "unknown agent kind")
	}
}

func (r *Runner) runSequence(ctx context.Context, inv *Invocation, children []agent.Agent, out chan<- event.Event) (bool, bool, error) {
	for _, child := range children {
		transferred, escalated, err := r.runNode(ctx, inv, child, out)
		if err != nil {
			return false, false, err
		}
		if transferred {
			return true, false, nil
		}
		if escalated {
			return false, true, nil
		}
	}
	return false, false, nil
}

// parallelResult is one child's outcome, tagged so the merge loop can tell
// them apart after collection.
type parallelResult struct {
	transferred bool
	escalated   bool
	err         error
}

func (r *Runner) runParallel(ctx context.Context, inv *Invocation, a *agent.ParallelAgent, out chan<- event.Event) (bool, bool, error) {
	children := a.SubAgents()
	cctx, cancel := context.WithCancel(ctx)
	defer cancel()

	resultCh := make(chan parallelResult, len(children))
	for _, child := range children {
		go func(child agent.Agent) {
			transferred, escalated, err := r.runNode(cctx, inv, child, out)
			resultCh <- parallelResult{transferred: transferred, escalated: escalated, err: err}
		}(child)
	}

	var firstErr error
	var anyTransferred bool
	for i := 0; i < len(children); i++ {
		res := <-resultCh
		if res.err != nil && firstErr == nil {
			firstErr = res.err
			if a.CancelPolicy == agent.CancelSiblingsOnFailure {
				cancel()
			}
		}
		if res.transferred {
			anyTransferred = true
			if a.CancelPolicy == agent.CancelSiblingsOnFailure {
				cancel()
			}
		}
	}
	if firstErr != nil {
		return false, false, firstErr
	}
	return anyTransferred, false, nil
}

func (r *Runner) runLoop(ctx context.Context, inv *Invocation, a *agent.LoopAgent, out chan<- event.Event) (bool, bool, error) {
	for i := 0; a.MaxIterations <= 0 || i < a.MaxIterations; i++ {
		if inv.loopExitRequested() {
			inv.clearLoopExit()
			return false, false, nil
		}
		transferred, escalated, err := r.runSequence(ctx, inv, a.SubAgents(), out)
		if err != nil {
			return false, false, err
		}
		if transferred {
			return true, false, nil
		}
		if escalated {
			return false, false, nil
		}
		if inv.loopExitRequested() {
			inv.clearLoopExit()
			return false, false, nil
		}
	}
	return false, false, nil
}

// runLlmAgent implements spec §4.7 steps (a)-(g) for one LlmAgent,
// including the internal function-call resolution loop: it rebuilds the
// request and repeats (b)-(f) as long as the model keeps issuing function
// calls, stopping when a turn produces none, a transfer is resolved,
// exit_loop is called, or an error terminates the invocation.
func (r *Runner) runLlmAgent(ctx context.Context, inv *Invocation, a *agent.LlmAgent, out chan<- event.Event) (transferred, escalated bool, err error) {
	var span *telemetry.Span
	if r.telemetry != nil {
		ctx, span = r.telemetry.StartAgent(ctx, a.Name(), inv.Session.ID, inv.UserID)
	}
	transferred, escalated, err = r.runLlmAgentInner(ctx, inv, a, out)
	if span != nil {
		span.End(err)
	}
	return transferred, escalated, err
}

func (r *Runner) runLlmAgentInner(ctx context.Context, inv *Invocation, a *agent.LlmAgent, out chan<- event.Event) (transferred, escalated bool, err error) {
	snapshot := session.NewState(inv.Session.State)
	cs := &agent.CallbackState{InvocationID: inv.ID, AppName: inv.AppName, UserID: inv.UserID, Session: inv.Session, State: snapshot}

	// (a) beforeAgent.
	shortCircuit, err := r.pipeline.RunBeforeAgent(ctx, cs, a.Callbacks.BeforeAgent)
	if err != nil {
		return false, false, err
	}
	if shortCircuit != nil {
		ev := event.Event{
			InvocationID: inv.ID, EventID: uuid.NewString(), Author: a.Name(),
			Timestamp: time.Now(), Content: shortCircuit, TurnComplete: true,
		}
		if _, err := r.persist(ctx, inv, ev, out); err != nil {
			return false, false, err
		}
		return false, false, nil
	}

	for {
		select {
		case <-ctx.Done():
			return false, false, errs.Wrap(errs.KindCancelled, inv.ID, ctx.Err())
		default:
		}

		state := session.NewState(inv.Session.State)
		tc := r.toolContext(inv, a, state)

		req, err := buildRequest(ctx, a, a.Tools, state, inv.Session, tc)
		if err != nil {
			return false, false, err
		}

		resp, err := r.pipeline.RunBeforeModel(ctx, cs, req, a.Callbacks.BeforeModel)
		if err != nil {
			return false, false, err
		}
		if resp == nil {
			resp, err = r.callModel(ctx, inv, a, req, out)
			if err != nil {
				return false, false, err
			}
		}

		resp, err = r.pipeline.RunAfterModel(ctx, cs, resp, a.Callbacks.AfterModel)
		if err != nil {
			return false, false, err
		}

		modelEvent := event.Event{
			InvocationID: inv.ID,
			EventID:      uuid.NewString(),
			Author:       a.Name(),
			Timestamp:    time.Now(),
			Content:      resp.Content,
			TurnComplete: resp.TurnComplete,
			ErrorCode:    resp.ErrorCode,
		}
		if delta := session.PersistableDelta(state.Delta()); len(delta) > 0 {
			modelEvent.Actions = &event.Actions{StateDelta: delta}
		}
		if resp.ErrorCode != "" {
			if _, err := r.persist(ctx, inv, modelEvent, out); err != nil {
				return false, false, err
			}
			return false, false, errs.New(errs.KindLlmTransport, inv.ID, resp.ErrorMessage)
		}

		var calls []event.FunctionCall
		if resp.Content != nil {
			calls = resp.Content.FunctionCalls()
		}
		if len(calls) == 0 {
			if _, err := r.persist(ctx, inv, modelEvent, out); err != nil {
				return false, false, err
			}
			if err := r.pipeline.RunAfterAgent(ctx, cs, a.Callbacks.AfterAgent); err != nil {
				return false, false, err
			}
			if a.OutputKey != "" && resp.Content != nil {
				r.writeOutputKey(ctx, inv, a.OutputKey, resp.Content.Text())
			}
			r.maybeCompact(ctx, inv, a)
			return false, false, nil
		}

		if _, err := r.persist(ctx, inv, modelEvent, out); err != nil {
			return false, false, err
		}

		transferredNow, escalatedNow, err := r.resolveFunctionCalls(ctx, inv, a, cs, state, calls, out)
		if err != nil {
			return false, false, err
		}
		if transferredNow {
			return true, false, nil
		}
		if escalatedNow {
			return false, true, nil
		}
		if inv.loopExitRequested() {
			return false, false, nil
		}
		// otherwise loop back to (b) with the function responses now
		// appended to the session.
	}
}

func (r *Runner) toolContext(inv *Invocation, a *agent.LlmAgent, state *session.State) *tool.Context {
	return &tool.Context{
		AppName:      inv.AppName,
		UserID:       inv.UserID,
		InvocationID: inv.ID,
		Session:      inv.Session,
		State:        state,
		Artifacts:    r.artifacts,
		SessionSvc:   r.sessions,
		SearchMemory: func(ctx context.Context, query string, limit int) ([]tool.MemoryHit, error) {
			if r.searchMemory == nil {
				return nil, nil
			}
			return r.searchMemory(ctx, inv.AppName, inv.UserID, query, limit)
		},
	}
}

// persist appends ev to the session and forwards it to out, unless it is
// partial (forwarded only, never persisted, per spec §4.7d/P5).
func (r *Runner) persist(ctx context.Context, inv *Invocation, ev event.Event, out chan<- event.Event) (event.Event, error) {
	if ev.Partial {
		select {
		case out <- ev:
		case <-ctx.Done():
		}
		return ev, nil
	}
	persisted, err := r.sessions.AppendEvent(ctx, inv.Session, ev)
	if err != nil {
		return event.Event{}, errs.Wrap(errs.KindStorageUnavailable, inv.ID, err)
	}
	select {
	case out <- persisted:
	case <-ctx.Done():
	}
	return persisted, nil
}

// maybeCompact runs a's configured Compaction Engine pass, if any. A
// compaction failure is logged rather than propagated: losing context
// headroom is not worth failing an otherwise-successful turn.
func (r *Runner) maybeCompact(ctx context.Context, inv *Invocation, a *agent.LlmAgent) {
	if r.compactor == nil || a.Compaction == nil {
		return
	}
	if _, err := r.compactor.MaybeCompact(ctx, r.sessions, inv.Session, a.Name(), a.Model, a.Compaction); err != nil {
		slog.Error("compaction pass failed", "agent", a.Name(), "error", err)
	}
}

func (r *Runner) writeOutputKey(ctx context.Context, inv *Invocation, key, text string) {
	ev := event.Event{
		InvocationID: inv.ID,
		EventID:      uuid.NewString(),
		Author:       "system",
		Timestamp:    time.Now(),
		Actions:      &event.Actions{StateDelta: map[string]any{key: text}},
	}
	_, _ = r.sessions.AppendEvent(ctx, inv.Session, ev)
}
