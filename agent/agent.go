// Package agent implements the Agent Model of spec §4.6: the declarative
// LlmAgent/SequentialAgent/ParallelAgent/LoopAgent tree and the transfer
// resolution helpers the Invocation Runner drives. Execution itself (the
// turn loop) lives in the runner package, which imports this one.
package agent

import (
	"context"

	"github.com/silfenpath/adk/event"
	"github.com/silfenpath/adk/llm"
	"github.com/silfenpath/adk/session"
	"github.com/silfenpath/adk/tool"
)

// CallbackState is the slice of invocation context a per-agent callback
// needs: which invocation, whose session, and the live state view.
type CallbackState struct {
	InvocationID string
	AppName      string
	UserID       string
	Session      *session.Session
	State        *session.State
}

// Callbacks are the optional before/after hooks spec §4.6 allows an
// LlmAgent to declare. A before-hook returning a non-nil value
// short-circuits the corresponding operation, per §4.8.
type Callbacks struct {
	BeforeAgent func(ctx context.Context, cs *CallbackState) (*event.Content, error)
	AfterAgent  func(ctx context.Context, cs *CallbackState) error
	BeforeModel func(ctx context.Context, cs *CallbackState, req *llm.Request) (*llm.Response, error)
	AfterModel  func(ctx context.Context, cs *CallbackState, resp *llm.Response) (*llm.Response, error)
	BeforeTool  func(ctx context.Context, cs *CallbackState, toolName string, args map[string]any) (*tool.Result, error)
	AfterTool   func(ctx context.Context, cs *CallbackState, toolName string, args map[string]any, result tool.Result) (*tool.Result, error)
}

// Kind discriminates the four Agent variants of spec §4.6.
type Kind int

const (
	KindLlm Kind = iota
	KindSequential
	KindParallel
	KindLoop
)

// Agent is the common shape every variant satisfies: a name unique within
// its tree, a kind discriminator, and (for composites) children.
type Agent interface {
	Name() string
	Description() string
	Kind() Kind
	SubAgents() []Agent
}

// base holds the fields every variant shares.
type base struct {
	name        string
	description string
	subAgents   []Agent
}

func (b *base) Name() string        { return b.name }
func (b *base) Description() string { return b.description }
func (b *base) SubAgents() []Agent  { return b.subAgents }

// LlmAgent orchestrates a single model across turns, per spec §4.6/§4.7.
type LlmAgent struct {
	base
	Model                    string
	Instruction              string
	Tools                    *tool.Registry
	OutputSchema             map[string]any
	OutputKey                string
	Planner                  string
	CodeExecutor             string
	DisallowTransferToParent bool
	DisallowTransferToPeers  bool
	Callbacks                Callbacks
	Compaction               *CompactionConfig
	GenerationConfig         *llm.GenerationConfig
}

// CompactionConfig configures the Compaction Engine (spec §4.10) for one
// agent.
type CompactionConfig struct {
	Interval    int
	OverlapSize int
}

func (a *LlmAgent) Kind() Kind { return KindLlm }

// NewLlmAgent constructs an LlmAgent with the given name/description and
// sub-agents; callers set the remaining fields directly, matching the
// teacher's habit of building config structs field-by-field rather than
// through a long constructor.
func NewLlmAgent(name, description string, subAgents ...Agent) *LlmAgent {
	return &LlmAgent{base: base{name: name, description: description, subAgents: subAgents}}
}

// SequentialAgent runs its children in declared order, stopping early on
// escalate (spec §4.6).
type SequentialAgent struct{ base }

func (a *SequentialAgent) Kind() Kind { return KindSequential }

func NewSequentialAgent(name, description string, subAgents ...Agent) *SequentialAgent {
	return &SequentialAgent{base{name: name, description: description, subAgents: subAgents}}
}

// ParallelCancelPolicy governs what happens to sibling children when one
// fails, resolving spec §9's open question.
type ParallelCancelPolicy int

const (
	// CancelSiblingsOnFailure cancels every other running child as soon as
	// one fails. This is the default: it matches the runtime's general
	// fail-fast posture for invocation-level errors (spec §7).
	CancelSiblingsOnFailure ParallelCancelPolicy = iota
	// LetSiblingsComplete lets other children run to completion even after
	// one fails; their results are still merged, with the failure recorded
	// alongside them.
	LetSiblingsComplete
)

// ParallelAgent runs its children concurrently, merging their event
// streams preserving per-child order but not cross-child order (spec
// §4.6/§5).
type ParallelAgent struct {
	base
	CancelPolicy ParallelCancelPolicy
}

func (a *ParallelAgent) Kind() Kind { return KindParallel }

func NewParallelAgent(name, description string, subAgents ...Agent) *ParallelAgent {
	return &ParallelAgent{base: base{name: name, description: description, subAgents: subAgents}}
}

// LoopAgent repeatedly runs its child (or sequence) until exit_loop,
// maxIterations, or an escalate action (spec §4.6).
type LoopAgent struct {
	base
	MaxIterations int
}

func (a *LoopAgent) Kind() Kind { return KindLoop }

func NewLoopAgent(name, description string, maxIterations int, subAgents ...Agent) *LoopAgent {
	return &LoopAgent{base: base{name: name, description: description, subAgents: subAgents}, MaxIterations: maxIterations}
}
