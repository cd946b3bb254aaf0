package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/silfenpath/adk/errs"
)

// FileService is a filesystem-backed Service. Each (partition, bareKey)
// gets its own directory holding one meta.json (mimeType per version,
// appended) plus one data file per version, written via a temp-file-then-
// rename so a crash mid-write never corrupts an existing version.
type FileService struct {
	mu      sync.Mutex
	baseDir string
}

// NewFileService roots a FileService at baseDir, creating it if absent.
func NewFileService(baseDir string) (*FileService, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, errs.Wrap(errs.KindStorageUnavailable, "", err)
	}
	return &FileService{baseDir: baseDir}, nil
}

type keyMeta struct {
	MimeTypes []string `json:"mimeTypes"`
}

func (s *FileService) keyDir(partition, bareKey string) string {
	return filepath.Join(s.baseDir, sanitize(partition), sanitize(bareKey))
}

func sanitize(s string) string {
	return filepath.Clean("/" + s)[1:]
}

func (s *FileService) readMeta(dir string) (keyMeta, error) {
	var m keyMeta
	data, err := os.ReadFile(filepath.Join(dir, "meta.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return m, err
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, err
	}
	return m, nil
}

func (s *FileService) writeMetaAtomic(dir string, m keyMeta) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(dir, "meta.json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *FileService) Save(ctx context.Context, ref Ref, key string, content Artifact) (int, error) {
	partition, bareKey := ref.namespaceKey(key)
	dir := s.keyDir(partition, bareKey)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, errs.Wrap(errs.KindStorageUnavailable, "", err)
	}
	meta, err := s.readMeta(dir)
	if err != nil {
		return 0, errs.Wrap(errs.KindStorageUnavailable, "", err)
	}
	version := len(meta.MimeTypes)
	dataPath := filepath.Join(dir, fmt.Sprintf("v%d.bin", version))
	tmp := dataPath + ".tmp"
	if err := os.WriteFile(tmp, content.Data, 0o644); err != nil {
		return 0, errs.Wrap(errs.KindStorageUnavailable, "", err)
	}
	if err := os.Rename(tmp, dataPath); err != nil {
		return 0, errs.Wrap(errs.KindStorageUnavailable, "", err)
	}
	meta.MimeTypes = append(meta.MimeTypes, content.MimeType)
	if err := s.writeMetaAtomic(dir, meta); err != nil {
		return 0, errs.Wrap(errs.KindStorageUnavailable, "", err)
	}
	return version, nil
}

func (s *FileService) Load(ctx context.Context, ref Ref, key string, version *int) (*Artifact, error) {
	partition, bareKey := ref.namespaceKey(key)
	dir := s.keyDir(partition, bareKey)
	s.mu.Lock()
	defer s.mu.Unlock()
	meta, err := s.readMeta(dir)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageUnavailable, "", err)
	}
	if len(meta.MimeTypes) == 0 {
		return nil, errs.New(errs.KindNotFound, "", "artifact not found: "+key)
	}
	idx := len(meta.MimeTypes) - 1
	if version != nil {
		idx = *version
		if idx < 0 || idx >= len(meta.MimeTypes) {
			return nil, errs.New(errs.KindNotFound, "", "artifact version not found")
		}
	}
	data, err := os.ReadFile(filepath.Join(dir, fmt.Sprintf("v%d.bin", idx)))
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageUnavailable, "", err)
	}
	return &Artifact{Filename: key, MimeType: meta.MimeTypes[idx], Data: data}, nil
}

func (s *FileService) ListKeys(ctx context.Context, ref Ref) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	sessDir := filepath.Join(s.baseDir, sanitize("session:"+ref.SessionID))
	out = append(out, listSubdirs(sessDir)...)
	userDir := filepath.Join(s.baseDir, sanitize("user:"+ref.UserID))
	for _, k := range listSubdirs(userDir) {
		out = append(out, userPrefix+k)
	}
	sort.Strings(out)
	return out, nil
}

func listSubdirs(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	return out
}

func (s *FileService) ListVersions(ctx context.Context, ref Ref, key string) ([]int, error) {
	partition, bareKey := ref.namespaceKey(key)
	dir := s.keyDir(partition, bareKey)
	s.mu.Lock()
	defer s.mu.Unlock()
	meta, err := s.readMeta(dir)
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageUnavailable, "", err)
	}
	out := make([]int, len(meta.MimeTypes))
	for i := range meta.MimeTypes {
		out[i] = i
	}
	return out, nil
}

func (s *FileService) Delete(ctx context.Context, ref Ref, key string) error {
	partition, bareKey := ref.namespaceKey(key)
	dir := s.keyDir(partition, bareKey)
	s.mu.Lock()
	defer s.mu.Unlock()
	return os.RemoveAll(dir)
}
