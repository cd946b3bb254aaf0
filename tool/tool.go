// Package tool implements the Tool Registry & Tool Context of spec §4.4: a
// declarative tool contract, per-call context, and argument validation.
package tool

import (
	"context"

	"github.com/silfenpath/adk/artifact"
	"github.com/silfenpath/adk/event"
	"github.com/silfenpath/adk/llm"
	"github.com/silfenpath/adk/session"
)

// Status values a Result carries, mirroring spec §4.4's functionResponse
// contract.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Result is the serializable value a Tool run produces, wrapped into a
// functionResponse part by the caller.
type Result struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
	Value        any    `json:"value,omitempty"`
}

// ErrorResult builds a {status:"error"} Result, used both for validation
// failures (tool never runs) and for caught run-time errors.
func ErrorResult(message string) Result { return Result{Status: StatusError, ErrorMessage: message} }

// OKResult wraps a successful return value.
func OKResult(value any) Result { return Result{Status: StatusOK, Value: value} }

// Context is what a Tool's Run receives: per-invocation state, artifact and
// memory access, and a cancellation signal, per spec §4.4.
type Context struct {
	AppName      string
	UserID       string
	InvocationID string
	Session      *session.Session
	State        *session.State
	Artifacts    artifact.Service
	SessionSvc   session.Service
	SearchMemory func(ctx context.Context, query string, limit int) ([]MemoryHit, error)
	Progress     func(note string)
}

// MemoryHit is the shape a ToolContext.SearchMemory call returns; kept here
// rather than importing the memory package to avoid a dependency cycle
// (memory's built-in tools depend on this package, not the reverse).
type MemoryHit struct {
	Summary string
	Score   float64
}

func (tc *Context) emit(note string) {
	if tc.Progress != nil {
		tc.Progress(note)
	}
}

// SaveArtifact namespaces ref to tc's session/user and delegates to the
// bound artifact.Service.
func (tc *Context) SaveArtifact(ctx context.Context, key string, a artifact.Artifact) (int, error) {
	ref := artifact.Ref{AppName: tc.AppName, UserID: tc.UserID, SessionID: tc.Session.ID}
	return tc.Artifacts.Save(ctx, ref, key, a)
}

// LoadArtifact namespaces ref to tc's session/user and delegates to the
// bound artifact.Service.
func (tc *Context) LoadArtifact(ctx context.Context, key string, version *int) (*artifact.Artifact, error) {
	ref := artifact.Ref{AppName: tc.AppName, UserID: tc.UserID, SessionID: tc.Session.ID}
	return tc.Artifacts.Load(ctx, ref, key, version)
}

// RequestProcessor is implemented by tools that need to run before every
// LLM call (e.g. preload_memory injecting recall results into the system
// instruction), per spec §4.4's processLlmRequest hook.
type RequestProcessor interface {
	ProcessLlmRequest(ctx context.Context, tc *Context, req *llm.Request) error
}

// Tool is the declarative contract of spec §4.4: a unique name, an LLM
// function declaration, and a validated, context-bearing Run.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]llm.Parameter
	Run(ctx context.Context, args map[string]any, tc *Context) Result
}

// Declaration converts a Tool into its llm.ToolDeclaration for binding onto
// an LlmRequest.
func Declaration(t Tool) llm.ToolDeclaration {
	return llm.ToolDeclaration{Name: t.Name(), Description: t.Description(), Parameters: t.Parameters()}
}

// newFunctionResponsePart wraps a Result into the functionResponse part
// the Runner appends for a resolved tool call (invariant I2).
func newFunctionResponsePart(callID, name string, result Result) event.Part {
	response := map[string]any{"status": result.Status}
	if result.ErrorMessage != "" {
		response["error_message"] = result.ErrorMessage
	}
	if result.Value != nil {
		response["value"] = result.Value
	}
	return event.Part{FunctionResponse: &event.FunctionResponse{ID: callID, Name: name, Response: response}}
}

// NewFunctionResponsePart is the exported form of newFunctionResponsePart,
// used by the runner package to build the functionResponse event.
func NewFunctionResponsePart(callID, name string, result Result) event.Part {
	return newFunctionResponsePart(callID, name, result)
}
