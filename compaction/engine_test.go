package compaction

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silfenpath/adk/agent"
	"github.com/silfenpath/adk/event"
	"github.com/silfenpath/adk/llm"
	"github.com/silfenpath/adk/session"
)

type fakeProvider struct {
	reply string
	err   error
}

func (p *fakeProvider) Generate(ctx context.Context, req llm.Request) (<-chan llm.Response, error) {
	ch := make(chan llm.Response, 1)
	if p.err != nil {
		ch <- llm.Response{TurnComplete: true, ErrorCode: "llm_transport", ErrorMessage: p.err.Error()}
	} else {
		ch <- llm.Response{
			Content:      &event.Content{Role: event.RoleModel, Parts: []event.Part{event.TextPart(p.reply)}},
			TurnComplete: true,
			FinishReason: llm.FinishStop,
		}
	}
	close(ch)
	return ch, nil
}

func (p *fakeProvider) Features() llm.Features { return llm.Features{} }

func newRegistry(provider llm.Provider) *llm.Registry {
	reg := llm.NewRegistry()
	reg.Register("echo-", provider)
	return reg
}

func sessionWithEvents(n int) *session.Session {
	sess := &session.Session{AppName: "app", UserID: "u1", ID: "sess-1"}
	for i := 0; i < n; i++ {
		sess.Events = append(sess.Events, event.Event{
			Author:    "user",
			Timestamp: time.Now(),
			Content:   &event.Content{Role: event.RoleUser, Parts: []event.Part{event.TextPart("message")}},
		})
	}
	return sess
}

func TestMaybeCompactNoopBelowInterval(t *testing.T) {
	engine := New(newRegistry(&fakeProvider{reply: "summary"}))
	svc := session.NewInMemoryService()
	ctx := context.Background()
	sess, err := svc.CreateSession(ctx, "app", "u1", nil)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := svc.AppendEvent(ctx, sess, event.Event{Author: "user", Content: &event.Content{Role: event.RoleUser, Parts: []event.Part{event.TextPart("hi")}}})
		require.NoError(t, err)
	}

	compacted, err := engine.MaybeCompact(ctx, svc, sess, "agent", "echo-model", &agent.CompactionConfig{Interval: 10, OverlapSize: 1})
	require.NoError(t, err)
	assert.False(t, compacted)
}

func TestMaybeCompactFiresAtIntervalAndAppendsSyntheticEvent(t *testing.T) {
	engine := New(newRegistry(&fakeProvider{reply: "condensed summary"}))
	svc := session.NewInMemoryService()
	ctx := context.Background()
	sess, err := svc.CreateSession(ctx, "app", "u1", nil)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := svc.AppendEvent(ctx, sess, event.Event{Author: "user", Content: &event.Content{Role: event.RoleUser, Parts: []event.Part{event.TextPart("hi")}}})
		require.NoError(t, err)
	}

	compacted, err := engine.MaybeCompact(ctx, svc, sess, "agent", "echo-model", &agent.CompactionConfig{Interval: 5, OverlapSize: 1})
	require.NoError(t, err)
	require.True(t, compacted)

	require.Len(t, sess.Events, 6)
	last := sess.Events[5]
	require.NotNil(t, last.Actions)
	require.NotNil(t, last.Actions.Compaction)
	assert.Equal(t, 0, last.Actions.Compaction.StartEventIndex)
	assert.Equal(t, 4, last.Actions.Compaction.EndEventIndex)
	assert.Equal(t, "condensed summary", last.Content.Text())
}

func TestMaybeCompactUsesOverlapOnSecondPass(t *testing.T) {
	engine := New(newRegistry(&fakeProvider{reply: "summary"}))
	svc := session.NewInMemoryService()
	ctx := context.Background()
	sess, err := svc.CreateSession(ctx, "app", "u1", nil)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := svc.AppendEvent(ctx, sess, event.Event{Author: "user", Content: &event.Content{Role: event.RoleUser, Parts: []event.Part{event.TextPart("hi")}}})
		require.NoError(t, err)
	}
	cfg := &agent.CompactionConfig{Interval: 5, OverlapSize: 2}
	compacted, err := engine.MaybeCompact(ctx, svc, sess, "agent", "echo-model", cfg)
	require.NoError(t, err)
	require.True(t, compacted)
	firstEnd := sess.Events[len(sess.Events)-1].Actions.Compaction.EndEventIndex

	for i := 0; i < 5; i++ {
		_, err := svc.AppendEvent(ctx, sess, event.Event{Author: "user", Content: &event.Content{Role: event.RoleUser, Parts: []event.Part{event.TextPart("more")}}})
		require.NoError(t, err)
	}
	compacted, err = engine.MaybeCompact(ctx, svc, sess, "agent", "echo-model", cfg)
	require.NoError(t, err)
	require.True(t, compacted)

	second := sess.Events[len(sess.Events)-1]
	assert.Equal(t, firstEnd+1-cfg.OverlapSize, second.Actions.Compaction.StartEventIndex, "window start preserves overlap before the prior compaction's end")
}

func TestMaybeCompactPropagatesSummarizationFailure(t *testing.T) {
	engine := New(newRegistry(&fakeProvider{err: errors.New("backend down")}))
	svc := session.NewInMemoryService()
	ctx := context.Background()
	sess, err := svc.CreateSession(ctx, "app", "u1", nil)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := svc.AppendEvent(ctx, sess, event.Event{Author: "user", Content: &event.Content{Role: event.RoleUser, Parts: []event.Part{event.TextPart("hi")}}})
		require.NoError(t, err)
	}

	_, err = engine.MaybeCompact(ctx, svc, sess, "agent", "echo-model", &agent.CompactionConfig{Interval: 5})
	assert.Error(t, err)
	assert.Len(t, sess.Events, 5, "a failed summarization must not append a synthetic event")
}

func TestMaybeCompactNilConfigIsNoop(t *testing.T) {
	engine := New(newRegistry(&fakeProvider{reply: "x"}))
	svc := session.NewInMemoryService()
	sess := sessionWithEvents(10)

	compacted, err := engine.MaybeCompact(context.Background(), svc, sess, "agent", "echo-model", nil)
	require.NoError(t, err)
	assert.False(t, compacted)
}
