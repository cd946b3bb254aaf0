// Package event defines the atomic data model the runtime streams and
// persists: Content/Part payloads and the immutable Event envelope.
package event

import "time"

// Role identifies who produced a Content value.
type Role string

const (
	RoleUser     Role = "user"
	RoleModel    Role = "model"
	RoleFunction Role = "function"
)

// InlineData is a raw binary part with a declared MIME type.
type InlineData struct {
	MIMEType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

// FunctionCall is a model-issued invocation request for a named tool.
type FunctionCall struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// FunctionResponse pairs with a FunctionCall of the same ID (invariant I2).
type FunctionResponse struct {
	ID       string         `json:"id,omitempty"`
	Name     string         `json:"name"`
	Response map[string]any `json:"response,omitempty"`
}

// Part is exactly one of the payload kinds below; callers must only set one.
type Part struct {
	Text                string            `json:"text,omitempty"`
	InlineData          *InlineData       `json:"inlineData,omitempty"`
	FunctionCall        *FunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse    *FunctionResponse `json:"functionResponse,omitempty"`
	ExecutableCode      string            `json:"executableCode,omitempty"`
	CodeExecutionResult string            `json:"codeExecutionResult,omitempty"`
}

// TextPart is a convenience constructor for a text-only Part.
func TextPart(text string) Part { return Part{Text: text} }

// Content is a role-tagged sequence of parts.
type Content struct {
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

// Text concatenates all text parts of Content, in order.
func (c Content) Text() string {
	var out string
	for _, p := range c.Parts {
		out += p.Text
	}
	return out
}

// FunctionCalls returns every FunctionCall part in Content, in order.
func (c Content) FunctionCalls() []FunctionCall {
	var calls []FunctionCall
	for _, p := range c.Parts {
		if p.FunctionCall != nil {
			calls = append(calls, *p.FunctionCall)
		}
	}
	return calls
}

// CompactionInfo records a synthetic compaction applied to a range of events.
type CompactionInfo struct {
	CompactedContent Content `json:"compactedContent"`
	StartEventIndex  int     `json:"startEventIndex"`
	EndEventIndex    int     `json:"endEventIndex"`
}

// ArtifactDelta records the new version of an artifact key written during
// an invocation.
type ArtifactDelta map[string]int

// Actions are side effects attached to an Event.
type Actions struct {
	StateDelta      map[string]any  `json:"stateDelta,omitempty"`
	ArtifactDelta   ArtifactDelta   `json:"artifactDelta,omitempty"`
	TransferToAgent string          `json:"transferToAgent,omitempty"`
	Escalate        bool            `json:"escalate,omitempty"`
	Compaction      *CompactionInfo `json:"compaction,omitempty"`
}

// Event is the atomic, immutable unit of a session's history.
type Event struct {
	InvocationID string    `json:"invocationId"`
	EventID      string    `json:"eventId"`
	Author       string    `json:"author"`
	Timestamp    time.Time `json:"timestamp"`
	Content      *Content  `json:"content,omitempty"`
	Actions      *Actions  `json:"actions,omitempty"`
	Partial      bool      `json:"partial,omitempty"`
	TurnComplete bool      `json:"turnComplete,omitempty"`
	ErrorCode    string    `json:"errorCode,omitempty"`
}

// IsUser reports whether the event was authored by the user boundary.
func (e Event) IsUser() bool { return e.Author == "user" }
