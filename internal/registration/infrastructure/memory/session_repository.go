package memory

import (
	"context"
	"sync"

	registration "xrgi-portal/internal/registration/domain"
)

// SessionRepository is an in-memory repository for registration sessions.
type SessionRepository struct {
	mu   sync.RWMutex
	data map[string]*registration.Session
}

// NewSessionRepository constructs a repository.
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{data: make(map[string]*registration.Session)}
}

// Create stores a new session.
func (r *SessionRepository) Create(ctx context.Context, session *registration.Session) error {
	_ = ctx
	if session == nil || session.ID == "" {
		return registration.ErrNilSession
	}
	r.mu.Lock()
	r.data[session.ID] = session.Clone()
	r.mu.Unlock()
	return nil
}

// Get loads a session by id.
func (r *SessionRepository) Get(ctx context.Context, id string) (*registration.Session, error) {
	_ = ctx
	r.mu.RLock()
	session := r.data[id]
	r.mu.RUnlock()
	if session == nil {
		return nil, nil
	}
	return session.Clone(), nil
}

// Save overwrites an existing session.
func (r *SessionRepository) Save(ctx context.Context, session *registration.Session) error {
	_ = ctx
	if session == nil || session.ID == "" {
		return registration.ErrNilSession
	}
	r.mu.Lock()
	r.data[session.ID] = session.Clone()
	r.mu.Unlock()
	return nil
}

// Delete removes a session.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	_ = ctx
	r.mu.Lock()
	delete(r.data, id)
	r.mu.Unlock()
	return nil
}

// ListByUser returns the user's sessions.
func (r *SessionRepository) ListByUser(ctx context.Context, userID string) ([]*registration.Session, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []*registration.Session
	for _, session := range r.data {
		if session.UserID == userID {
			result = append(result, session.Clone())
		}
	}
	return result, nil
}
