package loan

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for loan application storage
type Repository interface {
	Create(ctx context.Context, app *Application) error
	GetByID(ctx context.Context, id string) (*Application, error)
	LatestBySession(ctx context.Context, sessionID string) (*Application, error)
	// Finalize applies the single allowed terminal-status write to an
	// application created in a non-terminal state.
	Finalize(ctx context.Context, id string, status Status, reason string, conditions []string, decidedAt time.Time) error
}

// InMemoryRepository keeps applications in process memory. It is the
// default backend when no database is configured and the fixture backend
// in tests.
type InMemoryRepository struct {
	mu   sync.RWMutex
	apps map[string]*Application
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		apps: make(map[string]*Application),
	}
}

// Create stores a new application, assigning an ID and timestamps when the
// caller left them zero.
func (r *InMemoryRepository) Create(ctx context.Context, app *Application) error {
	if app.ID == "" {
		app.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if app.CreatedAt.IsZero() {
		app.CreatedAt = now
	}
	if app.DecidedAt.IsZero() {
		app.DecidedAt = now
	}

	stored := *app
	r.mu.Lock()
	r.apps[app.ID] = &stored
	r.mu.Unlock()
	return nil
}

// GetByID retrieves an application by ID
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Application, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	app, ok := r.apps[id]
	if !ok {
		return nil, ErrApplicationNotFound
	}
	copied := *app
	return &copied, nil
}

// Finalize moves an application to approved or rejected exactly once.
func (r *InMemoryRepository) Finalize(ctx context.Context, id string, status Status, reason string, conditions []string, decidedAt time.Time) error {
	if status != StatusApproved && status != StatusRejected {
		return fmt.Errorf("loan: %q is not a terminal status", status)
	}
	if decidedAt.IsZero() {
		decidedAt = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	app, ok := r.apps[id]
	if !ok {
		return ErrApplicationNotFound
	}
	if app.Status == StatusApproved || app.Status == StatusRejected {
		return ErrAlreadyDecided
	}
	app.Status = status
	app.RejectionReason = reason
	app.Conditions = conditions
	app.DecidedAt = decidedAt
	return nil
}

// LatestBySession returns the most recently decided application for a
// session, or ErrApplicationNotFound.
func (r *InMemoryRepository) LatestBySession(ctx context.Context, sessionID string) (*Application, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matches := make([]*Application, 0, 1)
	for _, app := range r.apps {
		if app.SessionID == sessionID {
			matches = append(matches, app)
		}
	}
	if len(matches) == 0 {
		return nil, ErrApplicationNotFound
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].DecidedAt.After(matches[j].DecidedAt)
	})
	copied := *matches[0]
	return &copied, nil
}
