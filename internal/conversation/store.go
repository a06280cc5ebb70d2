package conversation

import (
	"context"
	"sort"
	"sync"
	"time"
)

// SessionSummary is the operational view of one session, for dashboards.
type SessionSummary struct {
	SessionID    string    `json:"sessionId"`
	Stage        Stage     `json:"stage"`
	CustomerName string    `json:"customerName,omitempty"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// SessionStore persists conversation contexts. Commit is optimistic: the
// caller passes the generation it loaded, and the store rejects the write
// with ErrStaleCommit if the context has moved on since. Reset bumps the
// generation without waiting for in-flight work, which is what invalidates
// slow commits racing a reset.
type SessionStore interface {
	// LoadOrCreate returns the context for sessionID, creating a fresh one
	// at the initiation stage when none exists.
	LoadOrCreate(ctx context.Context, sessionID string) (*Context, error)

	// Get returns the context for sessionID or ErrSessionNotFound.
	Get(ctx context.Context, sessionID string) (*Context, error)

	// Commit applies patch to the stored context if its generation still
	// equals expectedGen, returning the updated context. Returns
	// ErrStaleCommit when the context changed underneath the caller and
	// ErrSessionNotFound when the session vanished.
	Commit(ctx context.Context, sessionID string, expectedGen uint64, patch Patch) (*Context, error)

	// Reset wipes collected data and returns the session to initiation,
	// creating the session if it does not exist.
	Reset(ctx context.Context, sessionID string) (*Context, error)

	// Sessions lists summaries of all known sessions, most recently
	// updated first.
	Sessions(ctx context.Context) ([]SessionSummary, error)
}

// MemoryStore is an in-memory SessionStore for tests and single-node runs.
// All returned contexts are deep copies; callers never share state with the
// store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Context
}

// NewMemoryStore returns an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Context)}
}

var _ SessionStore = (*MemoryStore)(nil)

func (s *MemoryStore) LoadOrCreate(_ context.Context, sessionID string) (*Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.sessions[sessionID]; ok {
		return cur.Clone(), nil
	}
	fresh := newContext(sessionID)
	s.sessions[sessionID] = fresh
	return fresh.Clone(), nil
}

func (s *MemoryStore) Get(_ context.Context, sessionID string) (*Context, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cur, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return cur.Clone(), nil
}

func (s *MemoryStore) Commit(_ context.Context, sessionID string, expectedGen uint64, patch Patch) (*Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if cur.Generation != expectedGen {
		return nil, ErrStaleCommit
	}
	next := applyPatch(cur, patch)
	s.sessions[sessionID] = next
	return next.Clone(), nil
}

func (s *MemoryStore) Reset(_ context.Context, sessionID string) (*Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.sessions[sessionID]
	if !ok {
		fresh := newContext(sessionID)
		s.sessions[sessionID] = fresh
		return fresh.Clone(), nil
	}
	next := resetContext(cur)
	s.sessions[sessionID] = next
	return next.Clone(), nil
}

func (s *MemoryStore) Sessions(_ context.Context) ([]SessionSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]SessionSummary, 0, len(s.sessions))
	for _, c := range s.sessions {
		out = append(out, SessionSummary{
			SessionID:    c.SessionID,
			Stage:        c.Stage,
			CustomerName: c.Collected.CustomerName,
			UpdatedAt:    c.UpdatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].SessionID < out[j].SessionID
	})
	return out, nil
}
