package runner

import (
	"context"
	"encoding/json"
	"regexp"

	"github.com/silfenpath/adk/agent"
	"github.com/silfenpath/adk/event"
	"github.com/silfenpath/adk/llm"
	"github.com/silfenpath/adk/session"
	"github.com/silfenpath/adk/tool"
)

var placeholderPattern = regexp.MustCompile(`\{([a-zA-Z0-9_:.]+)\}`)

// interpolate substitutes `{key}` placeholders in instruction from state
// (any scope); missing keys render as empty strings, per spec §4.7.
func interpolate(instruction string, state *session.State) string {
	return placeholderPattern.ReplaceAllStringFunc(instruction, func(match string) string {
		key := match[1 : len(match)-1]
		v, ok := state.Get(key)
		if !ok {
			return ""
		}
		if s, ok := v.(string); ok {
			return s
		}
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	})
}

// contentsForTurn maps a session's events to the Content list an LlmRequest
// carries: partial events are dropped, transfer-marking actions are
// preserved through the content they annotate (spec §4.7b), and any event
// range a compaction has summarized is collapsed to its synthetic summary
// content rather than replayed in full (spec §4.10).
func contentsForTurn(events []event.Event) []event.Content {
	compacted := lastCompactionRange(events)
	out := make([]event.Content, 0, len(events))
	for i, ev := range events {
		if compacted != nil && i >= compacted.StartEventIndex && i <= compacted.EndEventIndex {
			continue
		}
		if ev.Partial || ev.Content == nil {
			continue
		}
		out = append(out, *ev.Content)
	}
	return out
}

// lastCompactionRange returns the most recent compaction's range, if events
// has ever been compacted. Events inside that range are dropped by
// contentsForTurn; the synthetic compaction event itself sits past the
// range's end and is kept like any ordinary event.
func lastCompactionRange(events []event.Event) *event.CompactionInfo {
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Actions != nil && events[i].Actions.Compaction != nil {
			return events[i].Actions.Compaction
		}
	}
	return nil
}

// buildRequest assembles the LlmRequest for one turn of a.
func buildRequest(ctx context.Context, a *agent.LlmAgent, reg *tool.Registry, state *session.State, sess *session.Session, tc *tool.Context) (*llm.Request, error) {
	req := &llm.Request{
		Model:             a.Model,
		Contents:          contentsForTurn(sess.Events),
		SystemInstruction: interpolate(a.Instruction, state),
		GenerationConfig:  a.GenerationConfig,
	}

	if reg != nil {
		for _, t := range reg.All() {
			req.Tools = append(req.Tools, tool.Declaration(t))
		}
	}
	if !a.DisallowTransferToParent || !a.DisallowTransferToPeers || len(a.SubAgents()) > 0 {
		req.Tools = append(req.Tools, llm.ToolDeclaration{
			Name:        tool.TransferToAgentName,
			Description: "Transfer the conversation to a named sub-agent.",
			Parameters: map[string]llm.Parameter{
				"agentName": {Type: "string", Required: true},
			},
		})
	}

	if reg != nil {
		for _, t := range reg.All() {
			if rp, ok := t.(tool.RequestProcessor); ok {
				if err := rp.ProcessLlmRequest(ctx, tc, req); err != nil {
					return nil, err
				}
			}
		}
	}

	return req, nil
}
