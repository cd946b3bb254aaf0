package runner

import (
	"context"
	"sync"

	"github.com/silfenpath/adk/agent"
	"github.com/silfenpath/adk/event"
	"github.com/silfenpath/adk/session"
)

// Invocation is the transient object spec §3 describes: it lives for one
// call to Runner.ask/runAsync and carries the ids, session, active agent
// tree, and cancellation scope that the turn loop threads through.
type Invocation struct {
	ID          string
	AppName     string
	UserID      string
	Session     *session.Session
	Tree        *agent.Tree
	UserContent event.Content

	ctx    context.Context
	cancel context.CancelCauseFunc

	mu          sync.Mutex
	activeAgent string
	cycle       *agent.CycleGuard
	loopExit    bool
}

// ErrCancelled is the cause set on an Invocation's context when
// Runner.cancel is called.
var ErrCancelled = context.Canceled

func newInvocation(ctx context.Context, id, appName, userID string, sess *session.Session, tree *agent.Tree, userContent event.Content) *Invocation {
	ictx, cancel := context.WithCancelCause(ctx)
	return &Invocation{
		ID:          id,
		AppName:     appName,
		UserID:      userID,
		Session:     sess,
		Tree:        tree,
		UserContent: userContent,
		ctx:         ictx,
		cancel:      cancel,
		activeAgent: tree.Root().Name(),
		cycle:       agent.NewCycleGuard(8),
	}
}

// Context returns the invocation's cancellable context.
func (inv *Invocation) Context() context.Context { return inv.ctx }

// Cancel flips the invocation's cancellation scope; the in-flight
// LLM/tool call is allowed to resolve and the loop exits at the next
// suspension point, per spec §5.
func (inv *Invocation) Cancel() { inv.cancel(ErrCancelled) }

// ActiveAgent returns the name of the agent currently running this
// invocation's turn loop.
func (inv *Invocation) ActiveAgent() string {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.activeAgent
}

// requestLoopExit flags the innermost LoopAgent to stop after the current
// iteration, set by the built-in exit_loop tool.
func (inv *Invocation) requestLoopExit() {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.loopExit = true
}

func (inv *Invocation) loopExitRequested() bool {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.loopExit
}

func (inv *Invocation) clearLoopExit() {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.loopExit = false
}

// transferTo switches the active agent, recording the visit for cycle
// detection. It reports an error if the transfer is not permitted by the
// tree's disallow flags, or if it would exceed the cycle guard's limit.
func (inv *Invocation) transferTo(name string) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if !inv.Tree.IsTransferable(inv.activeAgent, name) {
		return errTransferDenied(inv.activeAgent, name)
	}
	if inv.cycle.Enter(name) {
		return errTransferLoop(name)
	}
	inv.activeAgent = name
	return nil
}
