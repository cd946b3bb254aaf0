package memory

import (
	"context"
	"sort"
	"time"
)

const (
	keywordWeight  = 0.3
	semanticWeight = 0.7
)

// HybridStorage composes a KeywordStorage and a VectorStorage, merging
// their hits with the teacher's fixed 0.3/0.7 weighting
// (hybrid_retriever.go's mergeResults). Both sub-stores persist the same
// record, so keyword hits alone answer Search if the vector search errors;
// a keyword search error is returned to the caller.
type HybridStorage struct {
	keyword *KeywordStorage
	vector  *VectorStorage
}

// NewHybridStorage builds a HybridStorage over the given sub-providers. If
// vector is nil, Search falls back to keyword-only scoring.
func NewHybridStorage(keyword *KeywordStorage, vector *VectorStorage) *HybridStorage {
	return &HybridStorage{keyword: keyword, vector: vector}
}

func (h *HybridStorage) Store(ctx context.Context, record MemoryRecord) error {
	if record.ID == "" {
		record.ID = newRecordID()
	}
	if err := h.keyword.Store(ctx, record); err != nil {
		return err
	}
	if h.vector != nil {
		return h.vector.Store(ctx, record)
	}
	return nil
}

func (h *HybridStorage) Search(ctx context.Context, q SearchQuery) ([]SearchHit, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 5
	}

	if h.vector == nil {
		hits, err := h.keyword.Search(ctx, withFetchLimit(q, limit))
		if err != nil {
			return nil, err
		}
		return h.reinforceAndTrim(hits, limit), nil
	}

	fetchQ := withFetchLimit(q, limit*2)
	keywordHits, err := h.keyword.Search(ctx, fetchQ)
	if err != nil {
		return nil, err
	}
	vectorHits, err := h.vector.Search(ctx, fetchQ)
	if err != nil {
		// graceful degradation: reuse keyword results already fetched
		return h.reinforceAndTrim(keywordHits, limit), nil
	}

	merged := mergeHits(keywordHits, vectorHits, limit, q.Threshold)
	return h.reinforceAndTrim(merged, limit), nil
}

func withFetchLimit(q SearchQuery, limit int) SearchQuery {
	q.Limit = limit
	return q
}

// mergeHits normalizes keyword scores to [0,1] (vector scores already are)
// and combines them with the fixed weighting, keeping the keyword side's
// record value when a hit appears in both sets.
func mergeHits(keywordHits, vectorHits []SearchHit, limit int, threshold float64) []SearchHit {
	type scored struct {
		record        MemoryRecord
		keywordScore  float64
		semanticScore float64
	}
	merged := map[string]*scored{}

	var maxKeyword float64
	for _, h := range keywordHits {
		if h.Score > maxKeyword {
			maxKeyword = h.Score
		}
	}
	for _, h := range keywordHits {
		norm := 0.0
		if maxKeyword > 0 {
			norm = h.Score / maxKeyword
		}
		merged[h.Record.ID] = &scored{record: h.Record, keywordScore: norm}
	}
	for _, h := range vectorHits {
		if s, ok := merged[h.Record.ID]; ok {
			s.semanticScore = h.Score
		} else {
			merged[h.Record.ID] = &scored{record: h.Record, semanticScore: h.Score}
		}
	}

	var out []SearchHit
	for _, s := range merged {
		score := keywordWeight*s.keywordScore + semanticWeight*s.semanticScore
		if threshold > 0 && score < threshold {
			continue
		}
		out = append(out, SearchHit{Record: s.record, Score: score})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// reinforceAndTrim applies decay then a reinforcement bump to every
// returned hit's backing record, per the teacher's reinforceResults, and
// caps the result at limit.
func (h *HybridStorage) reinforceAndTrim(hits []SearchHit, limit int) []SearchHit {
	now := time.Now()
	for i := range hits {
		rec := hits[i].Record
		rec.Confidence = Reinforce(rec.Confidence, rec.LastUsedAt, now)
		rec.LastUsedAt = now
		h.keyword.Update(rec)
		if h.vector != nil {
			h.vector.update(rec)
		}
		hits[i].Record = rec
	}
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

func (h *HybridStorage) Delete(ctx context.Context, appName, userID string, ids []string) (int, error) {
	n, err := h.keyword.Delete(ctx, appName, userID, ids)
	if err != nil {
		return n, err
	}
	if h.vector != nil {
		_, _ = h.vector.Delete(ctx, appName, userID, ids)
	}
	return n, nil
}
