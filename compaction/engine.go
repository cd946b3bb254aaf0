// Package compaction implements the Compaction Engine of spec §4.10:
// periodic summarization of an event window to relieve context pressure,
// grounded on the teacher's internal/agent/compressor.go.
package compaction

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/silfenpath/adk/agent"
	"github.com/silfenpath/adk/event"
	"github.com/silfenpath/adk/llm"
	"github.com/silfenpath/adk/session"
)

// Engine drives compaction for any number of agents sharing one Providers
// registry; per-agent behavior comes entirely from the agent.CompactionConfig
// passed to MaybeCompact.
type Engine struct {
	providers *llm.Registry
	prompt    string
}

// New builds an Engine resolving summarization calls through providers.
func New(providers *llm.Registry) *Engine {
	return &Engine{providers: providers, prompt: defaultSummaryInstruction}
}

// WithPrompt overrides the default summarization instruction.
func (e *Engine) WithPrompt(prompt string) *Engine {
	if prompt != "" {
		e.prompt = prompt
	}
	return e
}

const defaultSummaryInstruction = "Summarize the conversation above into a structured continuation summary. Preserve key decisions, technical details, task state, and user preferences. Do not comment on the summarization itself."

// MaybeCompact implements spec §4.10: once the event count since the last
// compaction (or session start) reaches cfg.Interval, it summarizes the
// window [lastEnd-cfg.OverlapSize, now] via model and appends a synthetic
// event carrying actions.compaction. It reports whether a compaction ran.
func (e *Engine) MaybeCompact(ctx context.Context, svc session.Service, sess *session.Session, author, model string, cfg *agent.CompactionConfig) (bool, error) {
	if cfg == nil || cfg.Interval <= 0 {
		return false, nil
	}

	lastEnd := lastCompactionEnd(sess.Events)
	total := len(sess.Events)
	if total-lastEnd < cfg.Interval {
		return false, nil
	}

	windowStart := lastEnd - cfg.OverlapSize
	if windowStart < 0 {
		windowStart = 0
	}
	windowEnd := total - 1
	window := sess.Events[windowStart : windowEnd+1]

	contents := windowContents(window)
	if len(contents) == 0 {
		return false, nil
	}

	slog.Info("compaction triggered",
		"agent", author, "window_start", windowStart, "window_end", windowEnd, "events", len(contents))

	provider, ok := e.providers.Resolve(model)
	if !ok {
		return false, fmt.Errorf("compaction: no provider registered for model %q", model)
	}

	summary, err := e.summarize(ctx, provider, model, contents)
	if err != nil {
		slog.Error("compaction summarization failed", "agent", author, "error", err)
		return false, fmt.Errorf("compaction: summarize window: %w", err)
	}

	ev := event.Event{
		InvocationID: "compaction-" + uuid.NewString()[:8],
		EventID:      uuid.NewString(),
		Author:       author,
		Timestamp:    time.Now(),
		Content:      summary,
		Actions: &event.Actions{
			Compaction: &event.CompactionInfo{
				CompactedContent: *summary,
				StartEventIndex:  windowStart,
				EndEventIndex:    windowEnd,
			},
		},
	}
	if _, err := svc.AppendEvent(ctx, sess, ev); err != nil {
		return false, fmt.Errorf("compaction: append synthetic event: %w", err)
	}

	slog.Info("compaction complete", "agent", author, "compacted_events", len(contents))
	return true, nil
}

func (e *Engine) summarize(ctx context.Context, provider llm.Provider, model string, contents []event.Content) (*event.Content, error) {
	req := llm.Request{
		Model:             model,
		Contents:          contents,
		SystemInstruction: e.prompt,
	}
	ch, err := provider.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	var final *llm.Response
	for resp := range ch {
		if resp.Partial {
			continue
		}
		resp := resp
		final = &resp
	}
	if final == nil {
		return nil, fmt.Errorf("provider closed stream without a final response")
	}
	if final.ErrorCode != "" {
		return nil, fmt.Errorf("%s: %s", final.ErrorCode, final.ErrorMessage)
	}
	if final.Content == nil || final.Content.Text() == "" {
		return nil, fmt.Errorf("empty summary")
	}
	return final.Content, nil
}

// windowContents flattens a range of events into plain Content, dropping
// partial chunks the way contentsForTurn does elsewhere.
func windowContents(events []event.Event) []event.Content {
	out := make([]event.Content, 0, len(events))
	for _, ev := range events {
		if ev.Partial || ev.Content == nil {
			continue
		}
		out = append(out, *ev.Content)
	}
	return out
}

// lastCompactionEnd returns the index just past the most recent
// compaction's end, or 0 if sess has never been compacted.
func lastCompactionEnd(events []event.Event) int {
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Actions != nil && events[i].Actions.Compaction != nil {
			return events[i].Actions.Compaction.EndEventIndex + 1
		}
	}
	return 0
}
