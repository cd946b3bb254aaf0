package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/silfenpath/adk/event"
)

func TestInMemoryServiceAppendEventSkipsPartial(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryService()
	sess, err := svc.CreateSession(ctx, "app", "user1", nil)
	require.NoError(t, err)

	partial := event.Event{InvocationID: "inv1", Author: "model", Partial: true}
	_, err = svc.AppendEvent(ctx, sess, partial)
	require.NoError(t, err)

	got, err := svc.GetSession(ctx, "app", "user1", sess.ID, nil)
	require.NoError(t, err)
	require.Empty(t, got.Events)
}

func TestInMemoryServiceStateReplay(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryService()
	sess, err := svc.CreateSession(ctx, "app", "user1", nil)
	require.NoError(t, err)

	ev1 := event.Event{InvocationID: "i1", Author: "model", Timestamp: time.Now(),
		Actions: &event.Actions{StateDelta: map[string]any{"topic": "parrots"}}}
	_, err = svc.AppendEvent(ctx, sess, ev1)
	require.NoError(t, err)

	got, err := svc.GetSession(ctx, "app", "user1", sess.ID, nil)
	require.NoError(t, err)
	require.Equal(t, "parrots", got.State["topic"])
}

func TestInMemoryServiceRewindMonotonic(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryService()
	sess, err := svc.CreateSession(ctx, "app", "user1", nil)
	require.NoError(t, err)

	for i, inv := range []string{"i1", "i2", "i3"} {
		ev := event.Event{InvocationID: inv, Author: "model", Timestamp: time.Now(),
			Actions: &event.Actions{StateDelta: map[string]any{"last": i}}}
		_, err := svc.AppendEvent(ctx, sess, ev)
		require.NoError(t, err)
	}
	before := len(sess.Events)
	require.NoError(t, svc.Rewind(ctx, sess, "i2"))
	require.Less(t, len(sess.Events), before)
	require.Equal(t, 1, len(sess.Events))
	require.Equal(t, 0, sess.State["last"])
}
