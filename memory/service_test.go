package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silfenpath/adk/event"
	"github.com/silfenpath/adk/session"
)

type stubSummarizer struct {
	content MemoryContent
	err     error
	calls   int
}

func (s *stubSummarizer) Summarize(ctx context.Context, events []string) (MemoryContent, error) {
	s.calls++
	return s.content, s.err
}

func TestServiceWriteMemoryAndSearchRoundTrip(t *testing.T) {
	svc := New(Config{Storage: NewKeywordStorage()})
	ctx := context.Background()

	err := svc.WriteMemory(ctx, "app", "u1", "sess-1", "user prefers concise answers", "preference", []string{"concise"})
	require.NoError(t, err)

	hits, err := svc.Search(ctx, "app", "u1", "concise", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "user prefers concise answers", hits[0].Summary)
}

func TestServiceForgetByExplicitIDs(t *testing.T) {
	storage := NewKeywordStorage()
	svc := New(Config{Storage: storage})
	ctx := context.Background()
	require.NoError(t, storage.Store(ctx, MemoryRecord{ID: "mem_1", AppName: "app", UserID: "u1", Content: "x"}))

	n, err := svc.Forget(ctx, "app", "u1", "", []string{"mem_1"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestServiceForgetByQuery(t *testing.T) {
	storage := NewKeywordStorage()
	svc := New(Config{Storage: storage})
	ctx := context.Background()
	require.NoError(t, storage.Store(ctx, MemoryRecord{AppName: "app", UserID: "u1", Content: "old login credentials note"}))

	n, err := svc.Forget(ctx, "app", "u1", "credentials", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestServiceSummarizeStoresSummarizerOutput(t *testing.T) {
	summarizer := &stubSummarizer{content: MemoryContent{
		Summary:  "user is planning a trip to Japan",
		KeyFacts: []string{"trip to Japan"},
		Category: CategoryFact,
	}}
	storage := NewKeywordStorage()
	svc := New(Config{Storage: storage, Summarizer: summarizer})
	ctx := context.Background()

	sess := &session.Session{
		AppName: "app", UserID: "u1", ID: "sess-1",
		Events: []event.Event{
			{Author: "user", Content: &event.Content{Role: event.RoleUser, Parts: []event.Part{{Text: "I'm going to Japan next month"}}}},
		},
	}

	require.NoError(t, svc.Summarize(ctx, sess))
	assert.Equal(t, 1, summarizer.calls)

	hits, err := svc.Search(ctx, "app", "u1", "Japan", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "user is planning a trip to Japan", hits[0].Summary)
}

func TestServiceSummarizeSkipsEmptySessions(t *testing.T) {
	summarizer := &stubSummarizer{content: MemoryContent{Summary: "should not be called"}}
	svc := New(Config{Storage: NewKeywordStorage(), Summarizer: summarizer})
	sess := &session.Session{AppName: "app", UserID: "u1", ID: "sess-1"}

	require.NoError(t, svc.Summarize(context.Background(), sess))
	assert.Equal(t, 0, summarizer.calls, "no events means nothing to summarize")
}

func TestMaybeTriggerOnEventOnlyFiresForMessageCountMode(t *testing.T) {
	summarizer := &stubSummarizer{content: MemoryContent{Summary: "periodic summary"}}
	svc := New(Config{Storage: NewKeywordStorage(), Summarizer: summarizer, Trigger: TriggerSessionEnd})

	sess := &session.Session{AppName: "app", UserID: "u1", ID: "sess-1", Events: make([]event.Event, 20)}
	require.NoError(t, svc.MaybeTriggerOnEvent(context.Background(), sess))
	assert.Equal(t, 0, summarizer.calls, "session_end mode must not fire on message count")
}

func TestMaybeTriggerOnEventFiresEveryInterval(t *testing.T) {
	summarizer := &stubSummarizer{content: MemoryContent{Summary: "periodic summary"}}
	svc := New(Config{Storage: NewKeywordStorage(), Summarizer: summarizer, Trigger: TriggerMessageCount, MessageInterval: 5})

	sess := &session.Session{AppName: "app", UserID: "u1", ID: "sess-1"}
	for _, content := range []*event.Content{
		{Role: event.RoleUser, Parts: []event.Part{{Text: "one"}}},
	} {
		sess.Events = append(sess.Events, event.Event{Author: "user", Content: content})
	}
	// pad up to exactly 5 events
	for len(sess.Events) < 5 {
		sess.Events = append(sess.Events, event.Event{Author: "model", Content: &event.Content{Role: event.RoleModel, Parts: []event.Part{{Text: "reply"}}}})
	}

	require.NoError(t, svc.MaybeTriggerOnEvent(context.Background(), sess))
	assert.Equal(t, 1, summarizer.calls)

	// one more event (6 total) should not re-trigger until the next multiple of 5
	sess.Events = append(sess.Events, event.Event{Author: "model", Content: &event.Content{Role: event.RoleModel, Parts: []event.Part{{Text: "extra"}}}})
	require.NoError(t, svc.MaybeTriggerOnEvent(context.Background(), sess))
	assert.Equal(t, 1, summarizer.calls)
}

type stubSessionService struct {
	ended *session.Session
}

func (s *stubSessionService) CreateSession(ctx context.Context, appName, userID string, initialState map[string]any) (*session.Session, error) {
	return &session.Session{AppName: appName, UserID: userID}, nil
}
func (s *stubSessionService) GetSession(ctx context.Context, appName, userID, id string, cfg *session.GetConfig) (*session.Session, error) {
	return nil, nil
}
func (s *stubSessionService) ListSessions(ctx context.Context, appName, userID string) ([]session.Summary, error) {
	return nil, nil
}
func (s *stubSessionService) DeleteSession(ctx context.Context, appName, userID, id string) error {
	return nil
}
func (s *stubSessionService) AppendEvent(ctx context.Context, sess *session.Session, ev event.Event) (event.Event, error) {
	return ev, nil
}
func (s *stubSessionService) EndSession(ctx context.Context, sess *session.Session) error {
	s.ended = sess
	return nil
}
func (s *stubSessionService) Rewind(ctx context.Context, sess *session.Session, invocationID string) error {
	return nil
}

func TestServiceEndSessionSummarizesThenDelegates(t *testing.T) {
	summarizer := &stubSummarizer{content: MemoryContent{Summary: "final summary"}}
	svc := New(Config{Storage: NewKeywordStorage(), Summarizer: summarizer, Trigger: TriggerSessionEnd})
	sessSvc := &stubSessionService{}

	sess := &session.Session{
		AppName: "app", UserID: "u1", ID: "sess-1",
		Events: []event.Event{{Author: "user", Content: &event.Content{Role: event.RoleUser, Parts: []event.Part{{Text: "hello"}}}}},
	}

	require.NoError(t, svc.EndSession(context.Background(), sessSvc, sess))
	assert.Equal(t, 1, summarizer.calls)
	assert.Same(t, sess, sessSvc.ended)
}

func TestServiceEndSessionSkipsSummaryWhenNotSessionEndMode(t *testing.T) {
	summarizer := &stubSummarizer{content: MemoryContent{Summary: "should not run"}}
	svc := New(Config{Storage: NewKeywordStorage(), Summarizer: summarizer, Trigger: TriggerManual})
	sessSvc := &stubSessionService{}
	sess := &session.Session{AppName: "app", UserID: "u1", ID: "sess-1"}

	require.NoError(t, svc.EndSession(context.Background(), sessSvc, sess))
	assert.Equal(t, 0, summarizer.calls)
	assert.Same(t, sess, sessSvc.ended)
}
