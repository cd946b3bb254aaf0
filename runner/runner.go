// Package runner implements the Invocation Runner of spec §4.7: the
// central loop that builds LLM requests, streams responses, resolves
// function calls, and drives hierarchical agent transfer and delegation.
package runner

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/silfenpath/adk/agent"
	"github.com/silfenpath/adk/artifact"
	"github.com/silfenpath/adk/compaction"
	"github.com/silfenpath/adk/errs"
	"github.com/silfenpath/adk/event"
	"github.com/silfenpath/adk/llm"
	"github.com/silfenpath/adk/plugin"
	"github.com/silfenpath/adk/session"
	"github.com/silfenpath/adk/telemetry"
	"github.com/silfenpath/adk/tool"
)

// ToolCallTimeout bounds how long a single tool call may run before it is
// abandoned and synthesized as a timeout functionResponse (spec §5).
var ToolCallTimeout = 30 * time.Second

// Config configures a Runner, mirroring spec §6's Runner.create.
type Config struct {
	Root            agent.Agent
	SessionService  session.Service
	ArtifactService artifact.Service
	Providers       *llm.Registry
	Plugins         []plugin.Plugin
	SearchMemory    func(ctx context.Context, appName, userID, query string, limit int) ([]tool.MemoryHit, error)
	Compaction      *compaction.Engine
	Telemetry       *telemetry.Bus
}

// Runner is the central invocation loop bound to one agent tree.
type Runner struct {
	tree         *agent.Tree
	sessions     session.Service
	artifacts    artifact.Service
	providers    *llm.Registry
	pipeline     *plugin.Pipeline
	searchMemory func(ctx context.Context, appName, userID, query string, limit int) ([]tool.MemoryHit, error)
	compactor    *compaction.Engine
	telemetry    *telemetry.Bus

	mu          sync.Mutex
	locks       map[string]*sync.Mutex
	invocations map[string]*Invocation
}

// New builds a Runner from cfg, indexing cfg.Root's agent tree.
func New(cfg Config) (*Runner, error) {
	tree, err := agent.BuildTree(cfg.Root)
	if err != nil {
		return nil, err
	}
	return &Runner{
		tree:         tree,
		sessions:     cfg.SessionService,
		artifacts:    cfg.ArtifactService,
		providers:    cfg.Providers,
		pipeline:     plugin.New(cfg.Plugins...),
		searchMemory: cfg.SearchMemory,
		compactor:    cfg.Compaction,
		telemetry:    cfg.Telemetry,
		locks:        map[string]*sync.Mutex{},
		invocations:  map[string]*Invocation{},
	}, nil
}

func (r *Runner) sessionLock(sessionID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[sessionID] = l
	}
	return l
}

// Ask is the single-turn convenience form of spec §6's Runner.ask: it
// opens a session if none exists, runs one invocation to completion, and
// returns the final text.
func (r *Runner) Ask(ctx context.Context, appName, userID, sessionID, input string) (string, error) {
	sess, err := r.sessions.GetSession(ctx, appName, userID, sessionID, nil)
	if err != nil {
		sess, err = r.sessions.CreateSession(ctx, appName, userID, nil)
		if err != nil {
			return "", err
		}
	}
	content := event.Content{Role: event.RoleUser, Parts: []event.Part{event.TextPart(input)}}
	ch, err := r.RunAsync(ctx, sess, content)
	if err != nil {
		return "", err
	}
	var final string
	for ev := range ch {
		if ev.ErrorCode != "" {
			return "", errs.New(errs.Kind(ev.ErrorCode), ev.InvocationID, "invocation failed")
		}
		if ev.TurnComplete && ev.Content != nil && !ev.IsUser() {
			final = ev.Content.Text()
		}
	}
	return final, nil
}

// RunAsync is spec §6's Runner.runAsync: it persists newMessage, drives the
// invocation, and returns the event stream. The channel closes when the
// invocation completes, is cancelled, or fails.
func (r *Runner) RunAsync(ctx context.Context, sess *session.Session, newMessage event.Content) (<-chan event.Event, error) {
	lock := r.sessionLock(sess.ID)
	lock.Lock()

	userEvent := event.Event{
		InvocationID: uuid.NewString(),
		EventID:      uuid.NewString(),
		Author:       "user",
		Timestamp:    time.Now(),
		Content:      &newMessage,
	}
	if _, err := r.sessions.AppendEvent(ctx, sess, userEvent); err != nil {
		lock.Unlock()
		return nil, err
	}

	inv := newInvocation(ctx, userEvent.InvocationID, sess.AppName, sess.UserID, sess, r.tree, newMessage)
	r.mu.Lock()
	r.invocations[inv.ID] = inv
	r.mu.Unlock()

	out := make(chan event.Event, 8)
	go func() {
		defer close(out)
		defer lock.Unlock()
		defer func() {
			r.mu.Lock()
			delete(r.invocations, inv.ID)
			r.mu.Unlock()
		}()

		runCtx := inv.Context()
		var span *telemetry.Span
		if r.telemetry != nil {
			runCtx, span = r.telemetry.StartInvocation(runCtx, sess.ID, sess.UserID, inv.ID)
		}
		var runErr error
		defer func() {
			if span != nil {
				span.End(runErr)
			}
		}()

		active := r.tree.Root()
		for {
			transferred, _, err := r.runNode(runCtx, inv, active, out)
			if err != nil {
				runErr = err
				out <- r.errorEvent(inv, err)
				return
			}
			if !transferred {
				return
			}
			next, ok := r.tree.Find(inv.ActiveAgent())
			if !ok {
				runErr = errs.New(errs.KindInternal, inv.ID, "transfer target not found in tree")
				out <- r.errorEvent(inv, runErr)
				return
			}
			active = next
		}
	}()
	return out, nil
}

// Cancel flips invocationID's cancellation scope, per spec §5.
func (r *Runner) Cancel(invocationID string) {
	r.mu.Lock()
	inv, ok := r.invocations[invocationID]
	r.mu.Unlock()
	if ok {
		inv.Cancel()
	}
}

// Rewind delegates to the bound SessionService's rewind, per spec §4.7.
func (r *Runner) Rewind(ctx context.Context, sess *session.Session, beforeInvocationID string) error {
	return r.sessions.Rewind(ctx, sess, beforeInvocationID)
}

func (r *Runner) errorEvent(inv *Invocation, err error) event.Event {
	return event.Event{
		InvocationID: inv.ID,
		EventID:      uuid.NewString(),
		Author:       "system",
		Timestamp:    time.Now(),
		TurnComplete: true,
		ErrorCode:    string(errs.KindOf(err)),
	}
}
