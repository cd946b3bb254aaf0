package memory

import (
	"context"
	"strings"

	"github.com/silfenpath/adk/event"
	"github.com/silfenpath/adk/session"
	"github.com/silfenpath/adk/tool"
)

// TriggerMode selects when a session is summarized into memory, per spec
// §4.9.
type TriggerMode string

const (
	TriggerSessionEnd   TriggerMode = "session_end"
	TriggerMessageCount TriggerMode = "message_count"
	TriggerManual       TriggerMode = "manual"
)

// Config wires a Service's collaborators.
type Config struct {
	Storage         StorageProvider
	Summarizer      SummaryProvider
	Trigger         TriggerMode
	MessageInterval int // used when Trigger == TriggerMessageCount
	SearchThreshold float64
}

// Service implements spec §4.9's memory lifecycle: summarizing sessions on
// trigger, storing the result, and serving search() to the built-in tools
// and the Runner's SearchMemory hook. It satisfies tool.MemoryWriter.
type Service struct {
	storage    StorageProvider
	summarizer SummaryProvider
	trigger    TriggerMode
	interval   int
	threshold  float64
}

// New builds a Service from cfg.
func New(cfg Config) *Service {
	interval := cfg.MessageInterval
	if interval <= 0 {
		interval = 20
	}
	trigger := cfg.Trigger
	if trigger == "" {
		trigger = TriggerSessionEnd
	}
	return &Service{
		storage:    cfg.Storage,
		summarizer: cfg.Summarizer,
		trigger:    trigger,
		interval:   interval,
		threshold:  cfg.SearchThreshold,
	}
}

// Search satisfies the shape the Runner's SearchMemory hook and the
// built-in recall_memory/preload_memory tools need.
func (s *Service) Search(ctx context.Context, appName, userID, query string, limit int) ([]tool.MemoryHit, error) {
	hits, err := s.storage.Search(ctx, SearchQuery{Query: query, AppName: appName, UserID: userID, Limit: limit, Threshold: s.threshold})
	if err != nil {
		return nil, err
	}
	out := make([]tool.MemoryHit, len(hits))
	for i, h := range hits {
		out[i] = tool.MemoryHit{Summary: h.Record.Content, Score: h.Score}
	}
	return out, nil
}

// WriteMemory satisfies tool.MemoryWriter for the built-in write_memory
// tool: it stores content verbatim without going through the summarizer,
// since the caller (the model) has already composed what it wants kept.
func (s *Service) WriteMemory(ctx context.Context, appName, userID, sessionID, content, category string, keyFacts []string) error {
	return s.storage.Store(ctx, MemoryRecord{
		AppName:   appName,
		UserID:    userID,
		SessionID: sessionID,
		Content:   content,
		KeyFacts:  keyFacts,
		Category:  Category(category),
	})
}

// Forget satisfies tool.MemoryWriter for the built-in forget tool.
func (s *Service) Forget(ctx context.Context, appName, userID, query string, ids []string) (int, error) {
	if len(ids) > 0 {
		return s.storage.Delete(ctx, appName, userID, ids)
	}
	hits, err := s.storage.Search(ctx, SearchQuery{Query: query, AppName: appName, UserID: userID, Limit: 50})
	if err != nil {
		return 0, err
	}
	matchIDs := make([]string, len(hits))
	for i, h := range hits {
		matchIDs[i] = h.Record.ID
	}
	return s.storage.Delete(ctx, appName, userID, matchIDs)
}

// Summarize runs the manual/explicit summarization path: it condenses
// sess's events with the Summarizer and stores the result. Callers drive
// session_end and message_count triggers through MaybeTriggerOnEvent and
// EndSession below; Summarize itself is mode-agnostic and safe to call
// directly for TriggerManual.
func (s *Service) Summarize(ctx context.Context, sess *session.Session) error {
	if s.summarizer == nil {
		return nil
	}
	lines := eventLines(sess.Events)
	if len(lines) == 0 {
		return nil
	}
	content, err := s.summarizer.Summarize(ctx, lines)
	if err != nil {
		return err
	}
	if content.Summary == "" {
		return nil
	}
	return s.storage.Store(ctx, MemoryRecord{
		AppName:   sess.AppName,
		UserID:    sess.UserID,
		SessionID: sess.ID,
		Content:   content.Summary,
		KeyFacts:  content.KeyFacts,
		Category:  content.Category,
	})
}

// MaybeTriggerOnEvent implements the message_count trigger: called after
// each persisted event, it summarizes once sess's event count crosses a
// multiple of the configured interval.
func (s *Service) MaybeTriggerOnEvent(ctx context.Context, sess *session.Session) error {
	if s.trigger != TriggerMessageCount {
		return nil
	}
	n := len(sess.Events)
	if n == 0 || n%s.interval != 0 {
		return nil
	}
	return s.Summarize(ctx, sess)
}

// EndSession implements the session_end trigger: summarize then end the
// session via svc, in that order so the summary still sees the final
// events.
func (s *Service) EndSession(ctx context.Context, svc session.Service, sess *session.Session) error {
	if s.trigger == TriggerSessionEnd {
		if err := s.Summarize(ctx, sess); err != nil {
			return err
		}
	}
	return svc.EndSession(ctx, sess)
}

func eventLines(events []event.Event) []string {
	var lines []string
	for _, ev := range events {
		if ev.Content == nil {
			continue
		}
		text := ev.Content.Text()
		if text == "" {
			continue
		}
		lines = append(lines, strings.TrimSpace(ev.Author+": "+text))
	}
	return lines
}
