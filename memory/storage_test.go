package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeywordStorageStoreDefaultsFields(t *testing.T) {
	s := NewKeywordStorage()
	err := s.Store(context.Background(), MemoryRecord{AppName: "app", UserID: "u1", Content: "likes dark roast coffee"})
	require.NoError(t, err)

	var id string
	for recID := range s.records {
		id = recID
	}
	rec, ok := s.Get(id)
	require.True(t, ok)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, 0.8, rec.Confidence)
	assert.False(t, rec.CreatedAt.IsZero())
	assert.False(t, rec.LastUsedAt.IsZero())
}

func TestKeywordStorageSearchScopesByAppAndUser(t *testing.T) {
	s := NewKeywordStorage()
	ctx := context.Background()
	require.NoError(t, s.Store(ctx, MemoryRecord{AppName: "app", UserID: "u1", Content: "prefers tea over coffee"}))
	require.NoError(t, s.Store(ctx, MemoryRecord{AppName: "app", UserID: "u2", Content: "prefers tea over coffee"}))

	hits, err := s.Search(ctx, SearchQuery{Query: "tea", AppName: "app", UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "u1", hits[0].Record.UserID)
}

func TestKeywordStorageScoresContentMatches(t *testing.T) {
	s := NewKeywordStorage()
	ctx := context.Background()
	require.NoError(t, s.Store(ctx, MemoryRecord{
		AppName: "app", UserID: "u1",
		Content:  "a note mentioning python in passing",
		KeyFacts: []string{"allergic to shellfish"},
	}))
	require.NoError(t, s.Store(ctx, MemoryRecord{
		AppName: "app", UserID: "u1",
		Content: "favorite language is python",
	}))

	hits, err := s.Search(ctx, SearchQuery{Query: "python", AppName: "app", UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	// both mention "python" only in content (neither key fact matches), so
	// each scores on content overlap alone; assert both score above zero.
	for _, h := range hits {
		assert.Greater(t, h.Score, 0.0)
	}
}

func TestKeywordStorageSearchAppliesThreshold(t *testing.T) {
	s := NewKeywordStorage()
	ctx := context.Background()
	require.NoError(t, s.Store(ctx, MemoryRecord{AppName: "app", UserID: "u1", Content: "unrelated note about gardening"}))

	hits, err := s.Search(ctx, SearchQuery{Query: "rockets", AppName: "app", UserID: "u1", Threshold: 0.1})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestKeywordStorageDeleteByIDsScoped(t *testing.T) {
	s := NewKeywordStorage()
	ctx := context.Background()
	require.NoError(t, s.Store(ctx, MemoryRecord{ID: "mem_1", AppName: "app", UserID: "u1", Content: "x"}))
	require.NoError(t, s.Store(ctx, MemoryRecord{ID: "mem_2", AppName: "app", UserID: "u2", Content: "x"}))

	n, err := s.Delete(ctx, "app", "u1", []string{"mem_1", "mem_2"})
	require.NoError(t, err)
	assert.Equal(t, 1, n, "mem_2 belongs to a different user and must not be deleted")
	_, ok := s.Get("mem_2")
	assert.True(t, ok)
}

func TestKeywordStorageDeleteAllInScope(t *testing.T) {
	s := NewKeywordStorage()
	ctx := context.Background()
	require.NoError(t, s.Store(ctx, MemoryRecord{AppName: "app", UserID: "u1", Content: "a"}))
	require.NoError(t, s.Store(ctx, MemoryRecord{AppName: "app", UserID: "u1", Content: "b"}))
	require.NoError(t, s.Store(ctx, MemoryRecord{AppName: "app", UserID: "u2", Content: "c"}))

	n, err := s.Delete(ctx, "app", "u1", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRecencyBonusTiers(t *testing.T) {
	now := time.Now()
	assert.Equal(t, 1.0, recencyBonus(now.Add(-1*24*time.Hour)))
	assert.Equal(t, 0.5, recencyBonus(now.Add(-10*24*time.Hour)))
	assert.Equal(t, 0.1, recencyBonus(now.Add(-40*24*time.Hour)))
}

func TestTokenizeLowercasesStripsPunctuationAndShortWords(t *testing.T) {
	got := tokenize("Hello, World! A b c.")
	assert.Equal(t, []string{"hello", "world"}, got)
}
