// Package artifact implements the Artifact Store: versioned, per-key binary
// or text blobs namespaced to either a session or, for "user:"-prefixed
// keys, a user.
package artifact

import (
	"context"
	"strings"
)

const userPrefix = "user:"

// Artifact is a single versioned blob.
type Artifact struct {
	Filename string
	MimeType string
	Data     []byte
}

// Ref identifies the (app,user,session) triple an artifact call is scoped
// to; namespaceKey resolves which of user or session a key actually lives
// under.
type Ref struct {
	AppName   string
	UserID    string
	SessionID string
}

// IsUserScoped reports whether key is namespaced to the user rather than
// the session.
func IsUserScoped(key string) bool { return strings.HasPrefix(key, userPrefix) }

// namespaceKey returns the storage partition (either the session id or, for
// user:-prefixed keys, the user id) and the bare key within it.
func (r Ref) namespaceKey(key string) (partition, bareKey string) {
	if IsUserScoped(key) {
		return "user:" + r.UserID, strings.TrimPrefix(key, userPrefix)
	}
	return "session:" + r.SessionID, key
}

// Service is the Artifact Store contract of spec §4.3/§6. Versions for a
// key are 0-indexed, gap-free, and never individually deleted (I5/P4);
// Delete removes every version of a key at once.
type Service interface {
	Save(ctx context.Context, ref Ref, key string, content Artifact) (version int, err error)
	Load(ctx context.Context, ref Ref, key string, version *int) (*Artifact, error)
	ListKeys(ctx context.Context, ref Ref) ([]string, error)
	ListVersions(ctx context.Context, ref Ref, key string) ([]int, error)
	Delete(ctx context.Context, ref Ref, key string) error
}
