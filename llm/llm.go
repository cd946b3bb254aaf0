// Package llm defines the provider-agnostic request/response types of the
// LLM Abstraction and the streaming Provider contract pluggable backends
// implement.
package llm

import (
	"context"
	"sort"
	"strings"

	"github.com/silfenpath/adk/event"
)

// Parameter describes one tool parameter in a JSON-Schema-equivalent shape,
// used both for LLM function declarations and for argument validation.
type Parameter struct {
	Type        string
	Description string
	Required    bool
	Enum        []string
	Default     any
	Items       *Parameter
	Properties  map[string]Parameter
}

// ToolDeclaration is the LLM-facing shape of a tool: name, description, and
// its named parameters.
type ToolDeclaration struct {
	Name        string
	Description string
	Parameters  map[string]Parameter
}

// GenerationConfig tunes a single LLM call.
type GenerationConfig struct {
	Temperature      *float64
	TopK             *int
	TopP             *float64
	MaxOutputTokens  *int
	StopSequences    []string
	Seed             *int64
	ResponseMimeType string
	ResponseSchema   map[string]any
}

// Request is the provider-agnostic LlmRequest of spec §4.5.
type Request struct {
	Model             string
	Contents          []event.Content
	SystemInstruction string
	Tools             []ToolDeclaration
	GenerationConfig  *GenerationConfig
}

// FinishReason mirrors the closed set spec §4.5 names.
type FinishReason string

const (
	FinishStop   FinishReason = "STOP"
	FinishLength FinishReason = "LENGTH"
	FinishSafety FinishReason = "SAFETY"
	FinishTool   FinishReason = "TOOL"
	FinishError  FinishReason = "ERROR"
)

// Usage reports token accounting for one call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Response is the provider-agnostic LlmResponse of spec §4.5. A streamed
// call yields zero or more Partial responses followed by exactly one
// final (non-partial) response with TurnComplete set.
type Response struct {
	Content      *event.Content
	Partial      bool
	TurnComplete bool
	FinishReason FinishReason
	Usage        *Usage
	ErrorCode    string
	ErrorMessage string
}

// Provider is the contract a concrete LLM backend implements: generate
// streams Response chunks onto ch and closes it, honoring ctx
// cancellation. Streaming errors are reported as a final Response with
// ErrorCode/ErrorMessage set rather than a Go error, so the Runner's
// event-stream invariants (I2, I3) hold uniformly for provider failures.
type Provider interface {
	Generate(ctx context.Context, req Request) (<-chan Response, error)
	// Features self-declares what this provider supports, per spec §6.
	Features() Features
}

// Features is a provider's self-declared capability set.
type Features struct {
	Tools         bool
	StructuredOut bool
	Streaming     bool
	Multimodal    bool
}

// Registry selects a Provider by matching a model name's prefix, the way
// spec §4.5 specifies ("gpt-", "claude-", "gemini-", …).
type Registry struct {
	entries []registryEntry
}

type registryEntry struct {
	prefix   string
	provider Provider
}

// NewRegistry builds an empty provider Registry.
func NewRegistry() *Registry { return &Registry{} }

// Register binds a model-name prefix to a Provider. Longer prefixes take
// priority over shorter ones that also match, so "claude-3-" can be
// registered alongside a catch-all "claude-".
func (r *Registry) Register(prefix string, provider Provider) {
	r.entries = append(r.entries, registryEntry{prefix: prefix, provider: provider})
	sort.Slice(r.entries, func(i, j int) bool {
		return len(r.entries[i].prefix) > len(r.entries[j].prefix)
	})
}

// Resolve finds the Provider registered for model, or ok=false if none
// matches.
func (r *Registry) Resolve(model string) (Provider, bool) {
	for _, e := range r.entries {
		if strings.HasPrefix(model, e.prefix) {
			return e.provider, true
		}
	}
	return nil, false
}
