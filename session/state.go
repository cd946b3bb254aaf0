package session

import "strings"

const (
	ScopeAppPrefix  = "app:"
	ScopeUserPrefix = "user:"
	ScopeTempPrefix = "temp:"
)

// Scope classifies a state key by its prefix.
type Scope int

const (
	ScopeSession Scope = iota
	ScopeApp
	ScopeUser
	ScopeTemp
)

// ScopeOf returns the Scope a key belongs to based on its prefix.
func ScopeOf(key string) Scope {
	switch {
	case strings.HasPrefix(key, ScopeAppPrefix):
		return ScopeApp
	case strings.HasPrefix(key, ScopeUserPrefix):
		return ScopeUser
	case strings.HasPrefix(key, ScopeTempPrefix):
		return ScopeTemp
	default:
		return ScopeSession
	}
}

// State is a scoped key/value view with a mutation buffer layered over a
// persisted snapshot. Reads consult the delta first, then the snapshot.
// temp: keys never touch the snapshot and are dropped when the delta is
// filtered through PersistableDelta.
type State struct {
	snapshot map[string]any
	delta    map[string]any
}

// NewState wraps a persisted snapshot (app/user/session merged, by the
// caller) in a fresh State with an empty delta.
func NewState(snapshot map[string]any) *State {
	if snapshot == nil {
		snapshot = map[string]any{}
	}
	return &State{snapshot: snapshot, delta: map[string]any{}}
}

// Get reads a key, preferring an uncommitted write over the snapshot.
func (s *State) Get(key string) (any, bool) {
	if v, ok := s.delta[key]; ok {
		return v, true
	}
	v, ok := s.snapshot[key]
	return v, ok
}

// GetString is a convenience accessor returning "" for a missing or
// non-string value.
func (s *State) GetString(key string) string {
	v, ok := s.Get(key)
	if !ok {
		return ""
	}
	str, _ := v.(string)
	return str
}

// Set buffers a write; it is not visible in the snapshot until the caller
// persists Delta on an event and rebuilds the State from the result.
func (s *State) Set(key string, value any) {
	s.delta[key] = value
}

// Keys returns every key visible in the merged view, deduplicated.
func (s *State) Keys() []string {
	seen := map[string]struct{}{}
	var out []string
	for k := range s.snapshot {
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	for k := range s.delta {
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	return out
}

// Delta returns the buffered writes made since construction, including
// temp: keys. Callers persisting the delta to an event must filter temp:
// keys out first with PersistableDelta.
func (s *State) Delta() map[string]any {
	out := make(map[string]any, len(s.delta))
	for k, v := range s.delta {
		out[k] = v
	}
	return out
}

// PersistableDelta returns the buffered writes with temp: keys removed, the
// form that belongs on an event's stateDelta per the store's append
// contract.
func PersistableDelta(delta map[string]any) map[string]any {
	out := make(map[string]any, len(delta))
	for k, v := range delta {
		if ScopeOf(k) == ScopeTemp {
			continue
		}
		out[k] = v
	}
	return out
}

// ApplyDelta folds a delta into a snapshot in place, skipping temp: keys,
// and returns the snapshot for chaining. This is the replay primitive
// invariant I1 depends on: replaying every stateDelta in event order from
// an empty map must reproduce the stored state.
func ApplyDelta(snapshot map[string]any, delta map[string]any) map[string]any {
	if snapshot == nil {
		snapshot = map[string]any{}
	}
	for k, v := range delta {
		if ScopeOf(k) == ScopeTemp {
			continue
		}
		snapshot[k] = v
	}
	return snapshot
}
