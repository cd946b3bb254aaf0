package artifact

import (
	"context"
	"sort"
	"sync"

	"github.com/silfenpath/adk/errs"
)

// InMemoryService is a process-local Service backend.
type InMemoryService struct {
	mu   sync.RWMutex
	data map[string]map[string][]Artifact // partition -> bareKey -> versions
}

// NewInMemoryService constructs an empty InMemoryService.
func NewInMemoryService() *InMemoryService {
	return &InMemoryService{data: map[string]map[string][]Artifact{}}
}

func (s *InMemoryService) Save(ctx context.Context, ref Ref, key string, content Artifact) (int, error) {
	partition, bareKey := ref.namespaceKey(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.data[partition]
	if !ok {
		bucket = map[string][]Artifact{}
		s.data[partition] = bucket
	}
	versions := bucket[bareKey]
	versions = append(versions, content)
	bucket[bareKey] = versions
	return len(versions) - 1, nil
}

func (s *InMemoryService) Load(ctx context.Context, ref Ref, key string, version *int) (*Artifact, error) {
	partition, bareKey := ref.namespaceKey(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions, ok := s.data[partition][bareKey]
	if !ok || len(versions) == 0 {
		return nil, errs.New(errs.KindNotFound, "", "artifact not found: "+key)
	}
	idx := len(versions) - 1
	if version != nil {
		idx = *version
		if idx < 0 || idx >= len(versions) {
			return nil, errs.New(errs.KindNotFound, "", "artifact version not found")
		}
	}
	out := versions[idx]
	return &out, nil
}

// ListKeys returns the session-scoped keys for ref.SessionID plus the
// user-scoped keys for ref.UserID, merged: §4.3 specifies listKeys(session)
// surfaces both scopes for the calling user.
func (s *InMemoryService) ListKeys(ctx context.Context, ref Ref) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for bareKey := range s.data["session:"+ref.SessionID] {
		out = append(out, bareKey)
	}
	for bareKey := range s.data["user:"+ref.UserID] {
		out = append(out, userPrefix+bareKey)
	}
	sort.Strings(out)
	return out, nil
}

func (s *InMemoryService) ListVersions(ctx context.Context, ref Ref, key string) ([]int, error) {
	partition, bareKey := ref.namespaceKey(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions, ok := s.data[partition][bareKey]
	if !ok {
		return nil, nil
	}
	out := make([]int, len(versions))
	for i := range versions {
		out[i] = i
	}
	return out, nil
}

func (s *InMemoryService) Delete(ctx context.Context, ref Ref, key string) error {
	partition, bareKey := ref.namespaceKey(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if bucket, ok := s.data[partition]; ok {
		delete(bucket, bareKey)
	}
	return nil
}
