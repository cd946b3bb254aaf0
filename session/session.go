// Package session implements the Event & Session Store and the scoped
// State Container layered over it.
package session

import (
	"context"
	"time"

	"github.com/silfenpath/adk/event"
)

// Lifecycle is a session's coarse status.
type Lifecycle string

const (
	LifecycleActive Lifecycle = "ACTIVE"
	LifecycleEnded  Lifecycle = "ENDED"
)

// Session is the full, materialized (app,user,session) triple: its scoped
// state and its ordered event log.
type Session struct {
	AppName        string
	UserID         string
	ID             string
	State          map[string]any
	Events         []event.Event
	LastUpdateTime time.Time
	Lifecycle      Lifecycle
}

// Summary is a Session without its event array, returned by ListSessions.
type Summary struct {
	AppName        string
	UserID         string
	ID             string
	LastUpdateTime time.Time
	Lifecycle      Lifecycle
}

// GetConfig bounds how much of a session's event log GetSession returns.
type GetConfig struct {
	NumRecentEvents int
	AfterTimestamp  time.Time
}

// Service is the Event & Session Store contract of spec §4.1/§6.
type Service interface {
	CreateSession(ctx context.Context, appName, userID string, initialState map[string]any) (*Session, error)
	GetSession(ctx context.Context, appName, userID, sessionID string, cfg *GetConfig) (*Session, error)
	ListSessions(ctx context.Context, appName, userID string) ([]Summary, error)
	DeleteSession(ctx context.Context, appName, userID, sessionID string) error
	AppendEvent(ctx context.Context, sess *Session, ev event.Event) (event.Event, error)
	EndSession(ctx context.Context, sess *Session) error
	Rewind(ctx context.Context, sess *Session, beforeInvocationID string) error
}

// applyEventToState folds a non-partial event's stateDelta into a
// snapshot, the shared replay step used by every backend's AppendEvent and
// by Rewind to recompute state from surviving deltas.
func applyEventToState(state map[string]any, ev event.Event) map[string]any {
	if ev.Actions == nil || len(ev.Actions.StateDelta) == 0 {
		if state == nil {
			return map[string]any{}
		}
		return state
	}
	return ApplyDelta(state, ev.Actions.StateDelta)
}

// replayState rebuilds state from scratch by replaying every event's
// stateDelta in order, the mechanism invariant I1 and property P1 require.
func replayState(initial map[string]any, events []event.Event) map[string]any {
	state := map[string]any{}
	for k, v := range initial {
		state[k] = v
	}
	for _, ev := range events {
		state = applyEventToState(state, ev)
	}
	return state
}

// rewindIndex finds the position of the first event whose InvocationID
// equals target; events from that position on are dropped by Rewind.
func rewindIndex(events []event.Event, targetInvocationID string) int {
	for i, ev := range events {
		if ev.InvocationID == targetInvocationID {
			return i
		}
	}
	return len(events)
}
