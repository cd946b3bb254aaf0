package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

var errEmptyEmbedding = errors.New("memory: embedding provider returned no vector")

// SearchQuery is the argument shape spec §4.9's StorageProvider.search
// takes.
type SearchQuery struct {
	Query     string
	AppName   string
	UserID    string
	Limit     int
	Threshold float64
}

// SearchHit pairs a stored record with its match score.
type SearchHit struct {
	Record MemoryRecord
	Score  float64
}

// StorageProvider is spec §4.9's storage contract: store a record, search
// by the scoped query above, and delete by id list scoped to a user.
type StorageProvider interface {
	Store(ctx context.Context, record MemoryRecord) error
	Search(ctx context.Context, q SearchQuery) ([]SearchHit, error)
	Delete(ctx context.Context, appName, userID string, ids []string) (int, error)
}

// KeywordStorage is an in-process StorageProvider scoring records by a
// simple TF-IDF-flavored overlap between query and content/key-fact
// tokens, grounded on the teacher's Retriever.scoreEntry. It is also the
// keyword half of HybridStorage.
type KeywordStorage struct {
	mu      sync.RWMutex
	records map[string]*MemoryRecord
}

// NewKeywordStorage builds an empty in-memory keyword StorageProvider.
func NewKeywordStorage() *KeywordStorage {
	return &KeywordStorage{records: map[string]*MemoryRecord{}}
}

func (s *KeywordStorage) Store(ctx context.Context, record MemoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.ID == "" {
		record.ID = newRecordID()
	}
	now := time.Now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.LastUsedAt.IsZero() {
		record.LastUsedAt = now
	}
	if record.Confidence == 0 {
		record.Confidence = 0.8
	}
	record.UpdatedAt = now
	rec := record
	s.records[record.ID] = &rec
	return nil
}

func (s *KeywordStorage) Get(id string) (*MemoryRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	return r, ok
}

// Update overwrites an existing record in place, used by reinforcement.
func (s *KeywordStorage) Update(record MemoryRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := record
	s.records[record.ID] = &rec
}

func (s *KeywordStorage) Search(ctx context.Context, q SearchQuery) ([]SearchHit, error) {
	s.mu.RLock()
	candidates := make([]*MemoryRecord, 0, len(s.records))
	for _, r := range s.records {
		if r.AppName == q.AppName && r.UserID == q.UserID {
			candidates = append(candidates, r)
		}
	}
	s.mu.RUnlock()

	limit := q.Limit
	if limit <= 0 {
		limit = 5
	}
	queryWords := tokenize(q.Query)

	var hits []SearchHit
	for _, r := range candidates {
		score := scoreRecord(r, queryWords)
		if score <= 0 {
			continue
		}
		if q.Threshold > 0 && score < q.Threshold {
			continue
		}
		hits = append(hits, SearchHit{Record: *r, Score: score})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (s *KeywordStorage) Delete(ctx context.Context, appName, userID string, ids []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	if len(ids) > 0 {
		for _, id := range ids {
			r, ok := s.records[id]
			if ok && r.AppName == appName && r.UserID == userID {
				delete(s.records, id)
				n++
			}
		}
		return n, nil
	}
	for id, r := range s.records {
		if r.AppName == appName && r.UserID == userID {
			delete(s.records, id)
			n++
		}
	}
	return n, nil
}

// scoreRecord scores a record against query words: key-fact match weighted
// highest, content word overlap next, with a recency bonus and a
// confidence multiplier, the way the teacher's scoreEntry does for
// tags/title. A record with no key-fact or content match scores 0.
func scoreRecord(r *MemoryRecord, queryWords []string) float64 {
	var score float64
	for _, fact := range r.KeyFacts {
		factWords := tokenize(fact)
		for _, fw := range factWords {
			for _, qw := range queryWords {
				if fw == qw {
					score += 3.0
				}
			}
		}
	}
	contentWords := tokenize(r.Content)
	contentSet := make(map[string]bool, len(contentWords))
	for _, w := range contentWords {
		contentSet[w] = true
	}
	for _, qw := range queryWords {
		if contentSet[qw] {
			score += 1.0
		}
	}
	if score == 0 {
		return 0
	}
	score += recencyBonus(r.LastUsedAt)
	conf := r.Confidence
	if conf <= 0 {
		conf = 0.1
	}
	score *= conf
	return score
}

func recencyBonus(lastUsed time.Time) float64 {
	days := time.Since(lastUsed).Hours() / 24
	switch {
	case days < 7:
		return 1.0
	case days < 30:
		return 0.5
	default:
		return 0.1
	}
}

func tokenize(s string) []string {
	words := strings.Fields(strings.ToLower(s))
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.Trim(w, ".,;:!?\"'()[]{}")
		if len(w) > 1 {
			out = append(out, w)
		}
	}
	return out
}
