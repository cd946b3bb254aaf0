// Package eval implements the Evaluator of spec §4.13: it replays an eval
// set of conversations against a bound Runner, scoring response match,
// tool trajectory, and safety per turn, and aggregates each metric's
// average against a caller-supplied criteria map.
package eval

// EvalSet is a named collection of eval cases, the unit a caller submits
// to Run.
type EvalSet struct {
	EvalSetID string     `json:"evalSetId" yaml:"evalSetId"`
	EvalCases []EvalCase `json:"evalCases" yaml:"evalCases"`
}

// EvalCase is one multi-turn conversation. Each case is replayed in its
// own fresh session so cases never leak state into one another.
type EvalCase struct {
	ID           string             `json:"id" yaml:"id"`
	Conversation []ConversationTurn `json:"conversation" yaml:"conversation"`
}

// ConversationTurn is one user message and, optionally, what the agent
// was expected to do in response. A turn with no Expected still drives
// the conversation forward but contributes no score.
type ConversationTurn struct {
	UserContent string        `json:"userContent" yaml:"userContent"`
	Expected    *ExpectedTurn `json:"expected,omitempty" yaml:"expected,omitempty"`
}

// ExpectedTurn names what the replayed turn should have produced.
// ResponseMatch, when set, is scored against the turn's final text.
// ToolUses, when non-empty, is scored against the functionCalls the
// model issued before producing that final text.
type ExpectedTurn struct {
	ResponseMatch *string           `json:"responseMatch,omitempty" yaml:"responseMatch,omitempty"`
	ToolUses      []ExpectedToolUse `json:"toolUses,omitempty" yaml:"toolUses,omitempty"`
}

// ExpectedToolUse names a tool call and the argument shape (key set) it
// should have been issued with; argument values are not compared, only
// their presence, since two correct calls can legitimately differ in the
// exact values produced by the model.
type ExpectedToolUse struct {
	Name string         `json:"name" yaml:"name"`
	Args map[string]any `json:"args,omitempty" yaml:"args,omitempty"`
}

// Metric names, matching spec §4.13's criteria map keys verbatim.
const (
	MetricResponseMatch  = "response_match_score"
	MetricToolTrajectory = "tool_trajectory_avg_score"
	MetricSafety         = "safety_v1"
)

// Criteria maps a metric name to the minimum average score it must clear.
type Criteria map[string]float64

// Verdict is the overall pass/fail outcome of a Run.
type Verdict string

const (
	Pass Verdict = "pass"
	Fail Verdict = "fail"
)

// TurnResult holds the per-turn scores and the raw agent output they were
// computed from, kept for inspection even when a turn carries no
// Expected (in which case the score fields are zero and Scored is false).
type TurnResult struct {
	Expected       *ExpectedTurn
	Scored         bool
	ResponseMatch  float64
	ToolTrajectory float64
	Safety         float64
	ActualText     string
	ActualCalls    []ExpectedToolUse
}

// CaseResult is one EvalCase's replay outcome.
type CaseResult struct {
	CaseID string
	Turns  []TurnResult
	Err    error
}

// SetResult is the full outcome of replaying an EvalSet: per-case detail
// plus the metric averages and verdict the caller asked for.
type SetResult struct {
	EvalSetID string
	Cases     []CaseResult
	Metrics   map[string]float64
	Verdict   Verdict
	Failures  []string
}
