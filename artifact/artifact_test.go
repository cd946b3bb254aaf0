package artifact

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInMemoryServiceVersionsAreDense(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryService()
	ref := Ref{AppName: "app", UserID: "u1", SessionID: "s1"}

	for i := 0; i < 3; i++ {
		v, err := svc.Save(ctx, ref, "report.txt", Artifact{MimeType: "text/plain", Data: []byte("v")})
		require.NoError(t, err)
		require.Equal(t, i, v)
	}
	versions, err := svc.ListVersions(ctx, ref, "report.txt")
	require.NoError(t, err)
	require.Equal(t, []int{0, 1, 2}, versions)
}

func TestInMemoryServiceListKeysMergesUserAndSessionScopes(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryService()
	ref := Ref{AppName: "app", UserID: "u1", SessionID: "s1"}

	_, err := svc.Save(ctx, ref, "session-only.txt", Artifact{MimeType: "text/plain", Data: []byte("a")})
	require.NoError(t, err)
	_, err = svc.Save(ctx, ref, "user:profile.json", Artifact{MimeType: "application/json", Data: []byte("{}")})
	require.NoError(t, err)

	keys, err := svc.ListKeys(ctx, ref)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"session-only.txt", "user:profile.json"}, keys)
}

func TestInMemoryServiceDeleteRemovesAllVersions(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryService()
	ref := Ref{AppName: "app", UserID: "u1", SessionID: "s1"}

	_, err := svc.Save(ctx, ref, "k", Artifact{Data: []byte("1")})
	require.NoError(t, err)
	_, err = svc.Save(ctx, ref, "k", Artifact{Data: []byte("2")})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, ref, "k"))

	_, err = svc.Load(ctx, ref, "k", nil)
	require.Error(t, err)
}

func TestFileServiceRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc, err := NewFileService(t.TempDir())
	require.NoError(t, err)
	ref := Ref{AppName: "app", UserID: "u1", SessionID: "s1"}

	v0, err := svc.Save(ctx, ref, "notes.txt", Artifact{MimeType: "text/plain", Data: []byte("first")})
	require.NoError(t, err)
	require.Equal(t, 0, v0)
	v1, err := svc.Save(ctx, ref, "notes.txt", Artifact{MimeType: "text/plain", Data: []byte("second")})
	require.NoError(t, err)
	require.Equal(t, 1, v1)

	latest, err := svc.Load(ctx, ref, "notes.txt", nil)
	require.NoError(t, err)
	require.Equal(t, "second", string(latest.Data))

	first := 0
	old, err := svc.Load(ctx, ref, "notes.txt", &first)
	require.NoError(t, err)
	require.Equal(t, "first", string(old.Data))
}
