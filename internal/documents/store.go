package documents

import (
	"context"
	"sync"
)

// ArtifactStore persists artifact metadata and content. ByApplication is the
// idempotence lookup: one application maps to at most one artifact.
type ArtifactStore interface {
	Save(ctx context.Context, artifact *Artifact, content []byte) error
	ByID(ctx context.Context, id string) (*Artifact, error)
	ByApplication(ctx context.Context, applicationID string) (*Artifact, error)
	Content(ctx context.Context, id string) ([]byte, error)
	IncrementDownloads(ctx context.Context, id string) (int64, error)
}

// MemoryArtifactStore keeps artifacts in process memory.
type MemoryArtifactStore struct {
	mu            sync.RWMutex
	byID          map[string]*Artifact
	byApplication map[string]string
	content       map[string][]byte
}

// NewMemoryArtifactStore returns an empty in-memory artifact store.
func NewMemoryArtifactStore() *MemoryArtifactStore {
	return &MemoryArtifactStore{
		byID:          make(map[string]*Artifact),
		byApplication: make(map[string]string),
		content:       make(map[string][]byte),
	}
}

var _ ArtifactStore = (*MemoryArtifactStore)(nil)

func (s *MemoryArtifactStore) Save(_ context.Context, artifact *Artifact, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *artifact
	s.byID[cp.ID] = &cp
	s.byApplication[cp.ApplicationID] = cp.ID
	s.content[cp.ID] = append([]byte(nil), content...)
	return nil
}

func (s *MemoryArtifactStore) ByID(_ context.Context, id string) (*Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.byID[id]
	if !ok {
		return nil, ErrArtifactNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryArtifactStore) ByApplication(_ context.Context, applicationID string) (*Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byApplication[applicationID]
	if !ok {
		return nil, ErrArtifactNotFound
	}
	cp := *s.byID[id]
	return &cp, nil
}

func (s *MemoryArtifactStore) Content(_ context.Context, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	body, ok := s.content[id]
	if !ok {
		return nil, ErrArtifactNotFound
	}
	return append([]byte(nil), body...), nil
}

func (s *MemoryArtifactStore) IncrementDownloads(_ context.Context, id string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return 0, ErrArtifactNotFound
	}
	a.Downloads++
	return a.Downloads, nil
}
