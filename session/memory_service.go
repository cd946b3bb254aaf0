package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/silfenpath/adk/errs"
	"github.com/silfenpath/adk/event"
)

// InMemoryService is a process-local Service backend. Safe for concurrent
// use; a per-session mutex serializes AppendEvent the way spec §4.1 and §5
// require.
type InMemoryService struct {
	mu       sync.RWMutex
	sessions map[string]*storedSession
	appState map[string]map[string]any
}

type storedSession struct {
	mu   sync.Mutex
	sess Session
}

// NewInMemoryService constructs an empty InMemoryService.
func NewInMemoryService() *InMemoryService {
	return &InMemoryService{
		sessions: map[string]*storedSession{},
		appState: map[string]map[string]any{},
	}
}

func sessionKey(appName, userID, sessionID string) string {
	return appName + "/" + userID + "/" + sessionID
}

func (s *InMemoryService) CreateSession(ctx context.Context, appName, userID string, initialState map[string]any) (*Session, error) {
	id := uuid.NewString()
	state := map[string]any{}
	for k, v := range initialState {
		state[k] = v
	}
	sess := Session{
		AppName:        appName,
		UserID:         userID,
		ID:             id,
		State:          state,
		Events:         nil,
		LastUpdateTime: time.Now(),
		Lifecycle:      LifecycleActive,
	}
	s.mu.Lock()
	s.sessions[sessionKey(appName, userID, id)] = &storedSession{sess: sess}
	s.mu.Unlock()
	return s.cloneSession(&sess), nil
}

func (s *InMemoryService) lookup(appName, userID, sessionID string) (*storedSession, error) {
	s.mu.RLock()
	st, ok := s.sessions[sessionKey(appName, userID, sessionID)]
	s.mu.RUnlock()
	if !ok {
		return nil, errs.New(errs.KindNotFound, "", "session not found: "+sessionID)
	}
	return st, nil
}

func (s *InMemoryService) GetSession(ctx context.Context, appName, userID, sessionID string, cfg *GetConfig) (*Session, error) {
	st, err := s.lookup(appName, userID, sessionID)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	out := s.cloneSession(&st.sess)
	if cfg == nil {
		return out, nil
	}
	events := out.Events
	if !cfg.AfterTimestamp.IsZero() {
		filtered := events[:0:0]
		for _, ev := range events {
			if ev.Timestamp.After(cfg.AfterTimestamp) {
				filtered = append(filtered, ev)
			}
		}
		events = filtered
	}
	if cfg.NumRecentEvents > 0 && len(events) > cfg.NumRecentEvents {
		events = events[len(events)-cfg.NumRecentEvents:]
	}
	out.Events = events
	return out, nil
}

func (s *InMemoryService) ListSessions(ctx context.Context, appName, userID string) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Summary
	for _, st := range s.sessions {
		st.mu.Lock()
		if st.sess.AppName == appName && st.sess.UserID == userID {
			out = append(out, Summary{
				AppName:        st.sess.AppName,
				UserID:         st.sess.UserID,
				ID:             st.sess.ID,
				LastUpdateTime: st.sess.LastUpdateTime,
				Lifecycle:      st.sess.Lifecycle,
			})
		}
		st.mu.Unlock()
	}
	return out, nil
}

func (s *InMemoryService) DeleteSession(ctx context.Context, appName, userID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sessionKey(appName, userID, sessionID)
	if _, ok := s.sessions[key]; !ok {
		return errs.New(errs.KindNotFound, "", "session not found: "+sessionID)
	}
	delete(s.sessions, key)
	return nil
}

// AppendEvent applies the contract of spec §4.1: partial events are a
// no-op returned unchanged; otherwise the stateDelta is folded in and the
// event appended under the session's lock.
func (s *InMemoryService) AppendEvent(ctx context.Context, sess *Session, ev event.Event) (event.Event, error) {
	if ev.Partial {
		return ev, nil
	}
	st, err := s.lookup(sess.AppName, sess.UserID, sess.ID)
	if err != nil {
		return event.Event{}, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sess.State = applyEventToState(st.sess.State, ev)
	st.sess.Events = append(st.sess.Events, ev)
	st.sess.LastUpdateTime = time.Now()
	sess.State = st.sess.State
	sess.Events = st.sess.Events
	sess.LastUpdateTime = st.sess.LastUpdateTime
	return ev, nil
}

func (s *InMemoryService) EndSession(ctx context.Context, sess *Session) error {
	st, err := s.lookup(sess.AppName, sess.UserID, sess.ID)
	if err != nil {
		return err
	}
	st.mu.Lock()
	st.sess.Lifecycle = LifecycleEnded
	st.mu.Unlock()
	sess.Lifecycle = LifecycleEnded
	return nil
}

// Rewind drops every event from the first one matching beforeInvocationID
// onward and recomputes state by replaying the survivors, per I4/P3.
func (s *InMemoryService) Rewind(ctx context.Context, sess *Session, beforeInvocationID string) error {
	st, err := s.lookup(sess.AppName, sess.UserID, sess.ID)
	if err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	idx := rewindIndex(st.sess.Events, beforeInvocationID)
	st.sess.Events = st.sess.Events[:idx]
	st.sess.State = replayState(nil, st.sess.Events)
	st.sess.LastUpdateTime = time.Now()
	sess.Events = st.sess.Events
	sess.State = st.sess.State
	sess.LastUpdateTime = st.sess.LastUpdateTime
	return nil
}

func (s *InMemoryService) cloneSession(src *Session) *Session {
	state := make(map[string]any, len(src.State))
	for k, v := range src.State {
		state[k] = v
	}
	events := make([]event.Event, len(src.Events))
	copy(events, src.Events)
	return &Session{
		AppName:        src.AppName,
		UserID:         src.UserID,
		ID:             src.ID,
		State:          state,
		Events:         events,
		LastUpdateTime: src.LastUpdateTime,
		Lifecycle:      src.Lifecycle,
	}
}
