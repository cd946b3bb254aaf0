// Package telemetry implements the Telemetry Bus of spec §4.12: structured
// spans keyed by GenAI semantic conventions, with session-scoped trace
// retrieval and an opt-in content-capture flag.
package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// SpanKind names the span shapes spec §4.12 enumerates.
type SpanKind string

const (
	SpanInvocation   SpanKind = "invocation"
	SpanAgent        SpanKind = "agent"
	SpanLLMChat      SpanKind = "llm.chat"
	SpanTool         SpanKind = "tool"
	SpanMemorySearch SpanKind = "memory.search"
)

// Attributes is a flat attribute bag attached to a span record.
type Attributes map[string]any

// Record is one finished span as retained for session-scoped querying.
// It mirrors the attributes an OTel span carries, kept independently so
// getTracesForSession works without a configured OTel backend.
type Record struct {
	Name          string
	Kind          SpanKind
	SessionID     string
	UserID        string
	AgentID       string
	Model         string
	Provider      string
	OperationName string
	InputTokens   int
	OutputTokens  int
	StartTime     time.Time
	EndTime       time.Time
	Err           error
	Attributes    Attributes
}

// Bus emits spans via an OTel tracer and retains a bounded, session-scoped
// history so traces can be queried back out by session id, per spec §6.
type Bus struct {
	tracer        trace.Tracer
	meter         metric.Meter
	spanCount     metric.Int64Counter
	spanDuration  metric.Float64Histogram
	capture       bool
	historyPerKey int

	mu      sync.RWMutex
	history map[string][]Record
}

// Option configures a Bus at construction.
type Option func(*Bus)

// WithCaptureContent enables recording input/output content attributes.
// Off by default, per spec §4.12 ("no content is recorded by default").
func WithCaptureContent(capture bool) Option {
	return func(b *Bus) { b.capture = capture }
}

// WithHistoryPerSession bounds how many finished spans are retained per
// session id before the oldest are evicted. Default 256.
func WithHistoryPerSession(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.historyPerKey = n
		}
	}
}

// NewBus constructs a Bus using the global OTel TracerProvider and
// MeterProvider under the given instrumentation name (typically the module
// path). Configure the providers via otel.SetTracerProvider/SetMeterProvider
// (or an OTEL_EXPORTER_OTLP_ENDPOINT-driven SDK setup) before spans are
// started; absent that, both fall back to OTel's no-op implementations.
func NewBus(tracerName string, opts ...Option) *Bus {
	meter := otel.Meter(tracerName)
	spanCount, _ := meter.Int64Counter("gen_ai.span.count")
	spanDuration, _ := meter.Float64Histogram("gen_ai.span.duration")
	b := &Bus{
		tracer:        otel.Tracer(tracerName),
		meter:         meter,
		spanCount:     spanCount,
		spanDuration:  spanDuration,
		historyPerKey: 256,
		history:       make(map[string][]Record),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Span is an in-flight span started by the Bus; callers must call End
// exactly once.
type Span struct {
	bus    *Bus
	otel   trace.Span
	record Record
}

// StartSpan opens a span of the given kind and name, tagging it with
// sessionID/userID/agentID and any extra attrs. agentID follows spec
// §4.12's `name-sessionId` convention; callers that don't have an agent in
// scope (e.g. the invocation-level span) may pass "".
func (b *Bus) StartSpan(ctx context.Context, kind SpanKind, name, sessionID, userID, agentID string, attrs Attributes) (context.Context, *Span) {
	ctx, otelSpan := b.tracer.Start(ctx, name)
	otelSpan.SetAttributes(
		attribute.String("gen_ai.conversation.id", sessionID),
		attribute.String("user.id", userID),
	)
	if agentID != "" {
		otelSpan.SetAttributes(attribute.String("gen_ai.agent.id", agentID))
	}
	for k, v := range attrs {
		setAttr(otelSpan, k, v)
	}

	return ctx, &Span{
		bus:  b,
		otel: otelSpan,
		record: Record{
			Name:       name,
			Kind:       kind,
			SessionID:  sessionID,
			UserID:     userID,
			AgentID:    agentID,
			StartTime:  time.Now(),
			Attributes: attrs,
		},
	}
}

// StartInvocation opens the top-level `invocation` span for one Runner
// turn-loop.
func (b *Bus) StartInvocation(ctx context.Context, sessionID, userID, invocationID string) (context.Context, *Span) {
	return b.StartSpan(ctx, SpanInvocation, SpanInvocation.string(), sessionID, userID, "", Attributes{
		"gen_ai.invocation.id": invocationID,
	})
}

// StartAgent opens an `agent.<name>` span. agentID is `name-sessionId` per
// spec §4.12.
func (b *Bus) StartAgent(ctx context.Context, agentName, sessionID, userID string) (context.Context, *Span) {
	return b.StartSpan(ctx, SpanAgent, "agent."+agentName, sessionID, userID, agentName+"-"+sessionID, nil)
}

// StartLLMChat opens an `llm.chat` span, auto-detecting the provider from
// model's registry prefix.
func (b *Bus) StartLLMChat(ctx context.Context, model, sessionID, userID, agentID string) (context.Context, *Span) {
	ctx, sp := b.StartSpan(ctx, SpanLLMChat, SpanLLMChat.string(), sessionID, userID, agentID, Attributes{
		"gen_ai.request.model": model,
		"gen_ai.provider.name": DetectProvider(model),
	})
	sp.record.Model = model
	sp.record.Provider = DetectProvider(model)
	sp.otel.SetAttributes(attribute.String("gen_ai.operation.name", "chat"))
	sp.record.OperationName = "chat"
	return ctx, sp
}

// StartTool opens a `tool.<name>` span.
func (b *Bus) StartTool(ctx context.Context, toolName, sessionID, userID, agentID string) (context.Context, *Span) {
	ctx, sp := b.StartSpan(ctx, SpanTool, "tool."+toolName, sessionID, userID, agentID, nil)
	sp.otel.SetAttributes(attribute.String("gen_ai.operation.name", "execute_tool"))
	sp.record.OperationName = "execute_tool"
	return ctx, sp
}

// StartMemorySearch opens a `memory.search` span.
func (b *Bus) StartMemorySearch(ctx context.Context, sessionID, userID string) (context.Context, *Span) {
	ctx, sp := b.StartSpan(ctx, SpanMemorySearch, SpanMemorySearch.string(), sessionID, userID, "", nil)
	sp.otel.SetAttributes(attribute.String("gen_ai.operation.name", "memory_search"))
	sp.record.OperationName = "memory_search"
	return ctx, sp
}

// SetTokens records input/output token counts on an in-flight span.
func (s *Span) SetTokens(input, output int) {
	s.record.InputTokens = input
	s.record.OutputTokens = output
	s.otel.SetAttributes(
		attribute.Int("gen_ai.usage.input_tokens", input),
		attribute.Int("gen_ai.usage.output_tokens", output),
	)
}

// SetContent records input/output content attributes, but only if the bus
// was constructed with WithCaptureContent(true); otherwise it is a no-op,
// per spec §4.12's default-off content capture.
func (s *Span) SetContent(input, output string) {
	if !s.bus.capture {
		return
	}
	s.otel.SetAttributes(
		attribute.String("gen_ai.input.messages", input),
		attribute.String("gen_ai.output.messages", output),
	)
	if s.record.Attributes == nil {
		s.record.Attributes = Attributes{}
	}
	s.record.Attributes["gen_ai.input.messages"] = input
	s.record.Attributes["gen_ai.output.messages"] = output
}

// End closes the span, recording err (if any) as its status, and appends
// the finished Record to the bus's per-session history.
func (s *Span) End(err error) {
	s.record.EndTime = time.Now()
	s.record.Err = err
	status := "ok"
	if err != nil {
		s.otel.RecordError(err)
		s.otel.SetStatus(codes.Error, err.Error())
		status = "error"
	} else {
		s.otel.SetStatus(codes.Ok, "")
	}
	s.otel.End()

	attrs := metric.WithAttributes(
		attribute.String("gen_ai.span.kind", s.record.Kind.string()),
		attribute.String("status", status),
	)
	s.bus.spanCount.Add(context.Background(), 1, attrs)
	s.bus.spanDuration.Record(context.Background(), s.record.EndTime.Sub(s.record.StartTime).Seconds(), attrs)

	s.bus.append(s.record)
}

func (b *Bus) append(r Record) {
	if r.SessionID == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	list := append(b.history[r.SessionID], r)
	if len(list) > b.historyPerKey {
		list = list[len(list)-b.historyPerKey:]
	}
	b.history[r.SessionID] = list
}

// GetTracesForSession returns the retained finished spans for sessionID, in
// the order they completed.
func (b *Bus) GetTracesForSession(sessionID string) []Record {
	b.mu.RLock()
	defer b.mu.RUnlock()
	src := b.history[sessionID]
	out := make([]Record, len(src))
	copy(out, src)
	return out
}

func (k SpanKind) string() string { return string(k) }

func setAttr(span trace.Span, key string, v any) {
	switch val := v.(type) {
	case string:
		span.SetAttributes(attribute.String(key, val))
	case int:
		span.SetAttributes(attribute.Int(key, val))
	case int64:
		span.SetAttributes(attribute.Int64(key, val))
	case float64:
		span.SetAttributes(attribute.Float64(key, val))
	case bool:
		span.SetAttributes(attribute.Bool(key, val))
	}
}
