package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/silfenpath/adk/errs"
	"github.com/silfenpath/adk/event"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	app_name TEXT NOT NULL,
	user_id TEXT NOT NULL,
	state_jsonb TEXT NOT NULL DEFAULT '{}',
	lifecycle TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_app_user ON sessions(app_name, user_id);

CREATE TABLE IF NOT EXISTS events (
	session_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	invocation_id TEXT NOT NULL,
	author TEXT NOT NULL,
	content_jsonb TEXT,
	actions_jsonb TEXT,
	ts DATETIME NOT NULL,
	PRIMARY KEY (session_id, seq)
);
CREATE INDEX IF NOT EXISTS idx_events_invocation ON events(session_id, invocation_id);

CREATE TABLE IF NOT EXISTS app_state (
	app_name TEXT NOT NULL,
	key TEXT NOT NULL,
	value_jsonb TEXT NOT NULL,
	PRIMARY KEY (app_name, key)
);

CREATE TABLE IF NOT EXISTS user_state (
	app_name TEXT NOT NULL,
	user_id TEXT NOT NULL,
	key TEXT NOT NULL,
	value_jsonb TEXT NOT NULL,
	PRIMARY KEY (app_name, user_id, key)
);
`

// SQLService is a relational Service backend over database/sql, driven by
// modernc.org/sqlite. The schema follows spec §6 exactly: sessions hold
// session-local state, app: and user: scoped deltas live in their own
// tables so they are shared across sessions the way spec §3 requires.
type SQLService struct {
	db *sql.DB
	mu sync.Mutex
}

// OpenSQLService opens (creating if absent) a sqlite database at dsn, e.g.
// "file:/path/to.db?_pragma=busy_timeout(5000)", and ensures the schema.
func OpenSQLService(ctx context.Context, dsn string) (*SQLService, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageUnavailable, "", err)
	}
	db.SetMaxOpenConns(1) // sqlite writer serialization
	if err := db.PingContext(ctx); err != nil {
		return nil, errs.Wrap(errs.KindStorageUnavailable, "", err)
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return nil, errs.Wrap(errs.KindStorageUnavailable, "", fmt.Errorf("create schema: %w", err))
	}
	return &SQLService{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *SQLService) Close() error { return s.db.Close() }

func (s *SQLService) CreateSession(ctx context.Context, appName, userID string, initialState map[string]any) (*Session, error) {
	id := uuid.NewString()
	now := time.Now()
	local := map[string]any{}
	for k, v := range initialState {
		if ScopeOf(k) == ScopeSession {
			local[k] = v
		}
	}
	blob, err := json.Marshal(local)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageUnavailable, "", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (id, app_name, user_id, state_jsonb, lifecycle, created_at, updated_at) VALUES (?,?,?,?,?,?,?)`,
		id, appName, userID, string(blob), string(LifecycleActive), now, now,
	); err != nil {
		return nil, errs.Wrap(errs.KindStorageUnavailable, "", err)
	}
	if err := upsertScopedState(ctx, tx, appName, userID, initialState); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, errs.Wrap(errs.KindStorageUnavailable, "", err)
	}
	return s.GetSession(ctx, appName, userID, id, nil)
}

func (s *SQLService) GetSession(ctx context.Context, appName, userID, sessionID string, cfg *GetConfig) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT state_jsonb, lifecycle, updated_at FROM sessions WHERE id = ? AND app_name = ? AND user_id = ?`,
		sessionID, appName, userID)
	var stateBlob, lifecycle string
	var updatedAt time.Time
	if err := row.Scan(&stateBlob, &lifecycle, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, errs.New(errs.KindNotFound, "", "session not found: "+sessionID)
		}
		return nil, errs.Wrap(errs.KindStorageUnavailable, "", err)
	}
	state := map[string]any{}
	if err := json.Unmarshal([]byte(stateBlob), &state); err != nil {
		return nil, errs.Wrap(errs.KindInternal, "", err)
	}
	if err := mergeScopedState(ctx, s.db, appName, userID, state); err != nil {
		return nil, err
	}
	query := `SELECT invocation_id, author, content_jsonb, actions_jsonb, ts FROM events WHERE session_id = ?`
	args := []any{sessionID}
	if cfg != nil && !cfg.AfterTimestamp.IsZero() {
		query += ` AND ts > ?`
		args = append(args, cfg.AfterTimestamp)
	}
	query += ` ORDER BY seq ASC`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageUnavailable, "", err)
	}
	defer rows.Close()
	var events []event.Event
	for rows.Next() {
		ev, err := scanEventRow(rows)
		if err != nil {
			return nil, errs.Wrap(errs.KindInternal, "", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.KindStorageUnavailable, "", err)
	}
	if cfg != nil && cfg.NumRecentEvents > 0 && len(events) > cfg.NumRecentEvents {
		events = events[len(events)-cfg.NumRecentEvents:]
	}
	return &Session{
		AppName:        appName,
		UserID:         userID,
		ID:             sessionID,
		State:          state,
		Events:         events,
		LastUpdateTime: updatedAt,
		Lifecycle:      Lifecycle(lifecycle),
	}, nil
}

func (s *SQLService) ListSessions(ctx context.Context, appName, userID string) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, lifecycle, updated_at FROM sessions WHERE app_name = ? AND user_id = ? ORDER BY updated_at DESC`,
		appName, userID)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageUnavailable, "", err)
	}
	defer rows.Close()
	var out []Summary
	for rows.Next() {
		var id, lifecycle string
		var updatedAt time.Time
		if err := rows.Scan(&id, &lifecycle, &updatedAt); err != nil {
			return nil, errs.Wrap(errs.KindInternal, "", err)
		}
		out = append(out, Summary{AppName: appName, UserID: userID, ID: id, LastUpdateTime: updatedAt, Lifecycle: Lifecycle(lifecycle)})
	}
	return out, rows.Err()
}

func (s *SQLService) DeleteSession(ctx context.Context, appName, userID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Wrap(errs.KindStorageUnavailable, "", err)
	}
	defer tx.Rollback()
	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ? AND app_name = ? AND user_id = ?`, sessionID, appName, userID)
	if err != nil {
		return errs.Wrap(errs.KindStorageUnavailable, "", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.New(errs.KindNotFound, "", "session not found: "+sessionID)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE session_id = ?`, sessionID); err != nil {
		return errs.Wrap(errs.KindStorageUnavailable, "", err)
	}
	return errs.Wrap(errs.KindStorageUnavailable, "", tx.Commit())
}

// AppendEvent covers the event insert and the three state-table upserts in
// one transaction, as spec §4.1 requires for relational backends.
func (s *SQLService) AppendEvent(ctx context.Context, sess *Session, ev event.Event) (event.Event, error) {
	if ev.Partial {
		return ev, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return event.Event{}, errs.Wrap(errs.KindStorageUnavailable, "", err)
	}
	defer tx.Rollback()

	var seq int
	row := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), -1) + 1 FROM events WHERE session_id = ?`, sess.ID)
	if err := row.Scan(&seq); err != nil {
		return event.Event{}, errs.Wrap(errs.KindStorageUnavailable, "", err)
	}
	contentBlob, err := json.Marshal(ev.Content)
	if err != nil {
		return event.Event{}, errs.Wrap(errs.KindInternal, "", err)
	}
	actionsBlob, err := json.Marshal(ev.Actions)
	if err != nil {
		return event.Event{}, errs.Wrap(errs.KindInternal, "", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO events (session_id, seq, invocation_id, author, content_jsonb, actions_jsonb, ts) VALUES (?,?,?,?,?,?,?)`,
		sess.ID, seq, ev.InvocationID, ev.Author, string(contentBlob), string(actionsBlob), ev.Timestamp,
	); err != nil {
		return event.Event{}, errs.Wrap(errs.KindStorageUnavailable, "", err)
	}

	var localDelta map[string]any
	if ev.Actions != nil && len(ev.Actions.StateDelta) > 0 {
		localDelta = map[string]any{}
		for k, v := range ev.Actions.StateDelta {
			if ScopeOf(k) == ScopeSession {
				localDelta[k] = v
			}
		}
		if err := upsertScopedState(ctx, tx, sess.AppName, sess.UserID, ev.Actions.StateDelta); err != nil {
			return event.Event{}, err
		}
	}
	if len(localDelta) > 0 {
		var stateBlob string
		if err := tx.QueryRowContext(ctx, `SELECT state_jsonb FROM sessions WHERE id = ?`, sess.ID).Scan(&stateBlob); err != nil {
			return event.Event{}, errs.Wrap(errs.KindStorageUnavailable, "", err)
		}
		local := map[string]any{}
		_ = json.Unmarshal([]byte(stateBlob), &local)
		for k, v := range localDelta {
			local[k] = v
		}
		merged, err := json.Marshal(local)
		if err != nil {
			return event.Event{}, errs.Wrap(errs.KindInternal, "", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE sessions SET state_jsonb = ?, updated_at = ? WHERE id = ?`, string(merged), time.Now(), sess.ID); err != nil {
			return event.Event{}, errs.Wrap(errs.KindStorageUnavailable, "", err)
		}
	} else {
		if _, err := tx.ExecContext(ctx, `UPDATE sessions SET updated_at = ? WHERE id = ?`, time.Now(), sess.ID); err != nil {
			return event.Event{}, errs.Wrap(errs.KindStorageUnavailable, "", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return event.Event{}, errs.Wrap(errs.KindStorageUnavailable, "", err)
	}
	refreshed, err := s.GetSession(ctx, sess.AppName, sess.UserID, sess.ID, nil)
	if err != nil {
		return event.Event{}, err
	}
	sess.State, sess.Events, sess.LastUpdateTime = refreshed.State, refreshed.Events, refreshed.LastUpdateTime
	return ev, nil
}

func (s *SQLService) EndSession(ctx context.Context, sess *Session) error {
	_, err := s.db.ExecContext(ctx, `UPDATE sessions SET lifecycle = ?, updated_at = ? WHERE id = ?`, string(LifecycleEnded), time.Now(), sess.ID)
	if err != nil {
		return errs.Wrap(errs.KindStorageUnavailable, "", err)
	}
	sess.Lifecycle = LifecycleEnded
	return nil
}

// Rewind drops every event row from the first one matching
// beforeInvocationID onward and recomputes session-local state by
// replaying the survivors, matching the in-memory backend's semantics.
func (s *SQLService) Rewind(ctx context.Context, sess *Session, beforeInvocationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	full, err := s.GetSession(ctx, sess.AppName, sess.UserID, sess.ID, nil)
	if err != nil {
		return err
	}
	idx := rewindIndex(full.Events, beforeInvocationID)
	survivors := full.Events[:idx]

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Wrap(errs.KindStorageUnavailable, "", err)
	}
	defer tx.Rollback()
	var cutoffSeq int
	if idx < len(full.Events) {
		row := tx.QueryRowContext(ctx,
			`SELECT seq FROM events WHERE session_id = ? AND invocation_id = ? ORDER BY seq ASC LIMIT 1`,
			sess.ID, beforeInvocationID)
		if err := row.Scan(&cutoffSeq); err != nil && err != sql.ErrNoRows {
			return errs.Wrap(errs.KindStorageUnavailable, "", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE session_id = ? AND seq >= ?`, sess.ID, cutoffSeq); err != nil {
			return errs.Wrap(errs.KindStorageUnavailable, "", err)
		}
	}
	localState := replayState(nil, survivors)
	local := map[string]any{}
	for k, v := range localState {
		if ScopeOf(k) == ScopeSession {
			local[k] = v
		}
	}
	blob, err := json.Marshal(local)
	if err != nil {
		return errs.Wrap(errs.KindInternal, "", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE sessions SET state_jsonb = ?, updated_at = ? WHERE id = ?`, string(blob), time.Now(), sess.ID); err != nil {
		return errs.Wrap(errs.KindStorageUnavailable, "", err)
	}
	if err := tx.Commit(); err != nil {
		return errs.Wrap(errs.KindStorageUnavailable, "", err)
	}
	refreshed, err := s.GetSession(ctx, sess.AppName, sess.UserID, sess.ID, nil)
	if err != nil {
		return err
	}
	sess.State, sess.Events, sess.LastUpdateTime = refreshed.State, refreshed.Events, refreshed.LastUpdateTime
	return nil
}

func upsertScopedState(ctx context.Context, tx *sql.Tx, appName, userID string, delta map[string]any) error {
	for k, v := range delta {
		blob, err := json.Marshal(v)
		if err != nil {
			return errs.Wrap(errs.KindInternal, "", err)
		}
		switch ScopeOf(k) {
		case ScopeApp:
			key := strings.TrimPrefix(k, ScopeAppPrefix)
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO app_state (app_name, key, value_jsonb) VALUES (?,?,?)
				 ON CONFLICT(app_name, key) DO UPDATE SET value_jsonb = excluded.value_jsonb`,
				appName, key, string(blob)); err != nil {
				return errs.Wrap(errs.KindStorageUnavailable, "", err)
			}
		case ScopeUser:
			key := strings.TrimPrefix(k, ScopeUserPrefix)
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO user_state (app_name, user_id, key, value_jsonb) VALUES (?,?,?,?)
				 ON CONFLICT(app_name, user_id, key) DO UPDATE SET value_jsonb = excluded.value_jsonb`,
				appName, userID, key, string(blob)); err != nil {
				return errs.Wrap(errs.KindStorageUnavailable, "", err)
			}
		case ScopeTemp:
			// never persisted
		}
	}
	return nil
}

func mergeScopedState(ctx context.Context, db *sql.DB, appName, userID string, into map[string]any) error {
	rows, err := db.QueryContext(ctx, `SELECT key, value_jsonb FROM app_state WHERE app_name = ?`, appName)
	if err != nil {
		return errs.Wrap(errs.KindStorageUnavailable, "", err)
	}
	defer rows.Close()
	for rows.Next() {
		var key, blob string
		if err := rows.Scan(&key, &blob); err != nil {
			return errs.Wrap(errs.KindInternal, "", err)
		}
		var v any
		_ = json.Unmarshal([]byte(blob), &v)
		into[ScopeAppPrefix+key] = v
	}
	if err := rows.Err(); err != nil {
		return errs.Wrap(errs.KindStorageUnavailable, "", err)
	}
	urows, err := db.QueryContext(ctx, `SELECT key, value_jsonb FROM user_state WHERE app_name = ? AND user_id = ?`, appName, userID)
	if err != nil {
		return errs.Wrap(errs.KindStorageUnavailable, "", err)
	}
	defer urows.Close()
	for urows.Next() {
		var key, blob string
		if err := urows.Scan(&key, &blob); err != nil {
			return errs.Wrap(errs.KindInternal, "", err)
		}
		var v any
		_ = json.Unmarshal([]byte(blob), &v)
		into[ScopeUserPrefix+key] = v
	}
	return urows.Err()
}

func scanEventRow(rows *sql.Rows) (event.Event, error) {
	var invocationID, author, contentBlob, actionsBlob string
	var ts time.Time
	if err := rows.Scan(&invocationID, &author, &contentBlob, &actionsBlob, &ts); err != nil {
		return event.Event{}, err
	}
	ev := event.Event{InvocationID: invocationID, Author: author, Timestamp: ts}
	if contentBlob != "" && contentBlob != "null" {
		var c event.Content
		if err := json.Unmarshal([]byte(contentBlob), &c); err != nil {
			return event.Event{}, err
		}
		ev.Content = &c
	}
	if actionsBlob != "" && actionsBlob != "null" {
		var a event.Actions
		if err := json.Unmarshal([]byte(actionsBlob), &a); err != nil {
			return event.Event{}, err
		}
		ev.Actions = &a
	}
	return ev, nil
}
