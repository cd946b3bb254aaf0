package memory

import (
	"context"
	"fmt"
	"sync"

	chromem "github.com/philippgille/chromem-go"
)

const collectionName = "adk_memories"

// VectorStorage is a StorageProvider backed by chromem-go, grounded on the
// teacher's VectorStore. It keeps the full MemoryRecord alongside the
// embedding so Search can return complete hits without a second lookup.
type VectorStorage struct {
	embedder EmbeddingProvider

	mu         sync.RWMutex
	db         *chromem.DB
	collection *chromem.Collection
	records    map[string]*MemoryRecord
}

// NewVectorStorage opens a persistent chromem-go collection at dir (or an
// in-memory one if dir is empty), bridging embedder into chromem-go's
// EmbeddingFunc shape the way vectorstore.go does for Eino.
func NewVectorStorage(dir string, embedder EmbeddingProvider) (*VectorStorage, error) {
	var db *chromem.DB
	var err error
	if dir == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(dir, false)
		if err != nil {
			return nil, fmt.Errorf("memory: open vector store: %w", err)
		}
	}

	vs := &VectorStorage{embedder: embedder, db: db, records: map[string]*MemoryRecord{}}
	ef := func(ctx context.Context, text string) ([]float32, error) {
		return vs.embedder.Embed(ctx, text)
	}
	col, err := db.GetOrCreateCollection(collectionName, nil, ef)
	if err != nil {
		return nil, fmt.Errorf("memory: get or create collection: %w", err)
	}
	vs.collection = col
	return vs, nil
}

func (vs *VectorStorage) Store(ctx context.Context, record MemoryRecord) error {
	if record.ID == "" {
		record.ID = newRecordID()
	}
	vs.mu.Lock()
	if record.Confidence == 0 {
		record.Confidence = 0.8
	}
	rec := record
	vs.records[record.ID] = &rec
	vs.mu.Unlock()

	meta := map[string]string{"appName": record.AppName, "userID": record.UserID, "category": string(record.Category)}
	return vs.collection.Add(ctx, []string{record.ID}, nil, []map[string]string{meta}, []string{record.Content})
}

func (vs *VectorStorage) Search(ctx context.Context, q SearchQuery) ([]SearchHit, error) {
	if vs.collection.Count() == 0 {
		return nil, nil
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 5
	}
	n := limit * 2 // over-fetch, then filter by appName/userID below
	if n > vs.collection.Count() {
		n = vs.collection.Count()
	}

	results, err := vs.collection.Query(ctx, q.Query, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("memory: vector query: %w", err)
	}

	vs.mu.RLock()
	defer vs.mu.RUnlock()
	var hits []SearchHit
	for _, r := range results {
		rec, ok := vs.records[r.ID]
		if !ok || rec.AppName != q.AppName || rec.UserID != q.UserID {
			continue
		}
		score := (float64(r.Similarity) + 1) / 2 // cosine [-1,1] -> [0,1]
		if q.Threshold > 0 && score < q.Threshold {
			continue
		}
		hits = append(hits, SearchHit{Record: *rec, Score: score})
		if len(hits) >= limit {
			break
		}
	}
	return hits, nil
}

func (vs *VectorStorage) Delete(ctx context.Context, appName, userID string, ids []string) (int, error) {
	vs.mu.Lock()
	if len(ids) == 0 {
		for id, rec := range vs.records {
			if rec.AppName == appName && rec.UserID == userID {
				ids = append(ids, id)
			}
		}
	}
	var toDelete []string
	for _, id := range ids {
		rec, ok := vs.records[id]
		if ok && rec.AppName == appName && rec.UserID == userID {
			toDelete = append(toDelete, id)
			delete(vs.records, id)
		}
	}
	vs.mu.Unlock()

	for _, id := range toDelete {
		if err := vs.collection.Delete(ctx, nil, nil, id); err != nil {
			return len(toDelete), err
		}
	}
	return len(toDelete), nil
}

// get returns the stored record for id.
func (vs *VectorStorage) get(id string) (*MemoryRecord, bool) {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	r, ok := vs.records[id]
	return r, ok
}

// update overwrites a stored record's metadata (confidence/lastUsedAt)
// without re-embedding, used by reinforcement.
func (vs *VectorStorage) update(record MemoryRecord) {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	rec := record
	vs.records[record.ID] = &rec
}
