package modulestore

import (
	"context"
	"sync"

	"edurag/internal/domain"
)

// MemoryStore is an in-process Store used by tests and local experiments.
// Contents are fixed at construction; reads never mutate.
type MemoryStore struct {
	mu          sync.RWMutex
	versions    []domain.CourseVersion
	trees       map[string]domain.StructureTree
	definitions map[string]domain.Definition
	transcripts map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		trees:       map[string]domain.StructureTree{},
		definitions: map[string]domain.Definition{},
		transcripts: map[string]string{},
	}
}

// AddCourse registers a course version pointer and its structure tree.
func (s *MemoryStore) AddCourse(v domain.CourseVersion, tree domain.StructureTree) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.versions = append(s.versions, v)
	if v.TreeID != "" {
		s.trees[v.TreeID] = tree
	}
}

func (s *MemoryStore) AddDefinition(def domain.Definition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.definitions[def.ID] = def
}

func (s *MemoryStore) AddTranscript(filename, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcripts[filename] = content
}

func (s *MemoryStore) ActiveVersions(_ context.Context, filter []domain.CourseKey) ([]domain.CourseVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(filter) == 0 {
		return append([]domain.CourseVersion(nil), s.versions...), nil
	}
	want := make(map[domain.CourseKey]struct{}, len(filter))
	for _, k := range filter {
		want[k] = struct{}{}
	}
	var out []domain.CourseVersion
	for _, v := range s.versions {
		if _, ok := want[v.Key]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *MemoryStore) Structure(_ context.Context, treeID string) (*domain.StructureTree, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tree, ok := s.trees[treeID]
	if !ok {
		return nil, ErrNotFound
	}
	return &tree, nil
}

func (s *MemoryStore) Definitions(_ context.Context, ids []string) (map[string]domain.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.Definition, len(ids))
	for _, id := range ids {
		if def, ok := s.definitions[id]; ok {
			out[id] = def
		}
	}
	return out, nil
}

func (s *MemoryStore) Transcript(_ context.Context, filename string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	content, ok := s.transcripts[filename]
	if !ok {
		return "", ErrNotFound
	}
	return content, nil
}

func (s *MemoryStore) Close(context.Context) error { return nil }
