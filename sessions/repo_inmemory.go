package sessions

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/findaly/findaly/internal/errors"
)

var _ Repo = (*InMemoryRepo)(nil)

// InMemoryRepo is an in-memory implementation of Repo for tests and single
// process development servers.
type InMemoryRepo struct {
	mu       sync.RWMutex
	sessions map[string]Session // token -> session
}

// NewInMemoryRepo creates a new in-memory session repository
func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		sessions: make(map[string]Session),
	}
}

func (r *InMemoryRepo) Create(_ context.Context, s Session) error {
	if s.Token == "" {
		return fmt.Errorf("token is required")
	}
	if s.UserID == "" {
		return fmt.Errorf("userID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.Token] = s
	return nil
}

func (r *InMemoryRepo) Get(_ context.Context, token string) (Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[token]
	if !ok {
		return Session{}, apperrors.ErrSessionNotFound
	}
	return s, nil
}

func (r *InMemoryRepo) Delete(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, token) // Already doesn't exist, no error
	return nil
}

func (r *InMemoryRepo) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for token, s := range r.sessions {
		if s.ExpiredAt(now) {
			delete(r.sessions, token)
			count++
		}
	}
	return count, nil
}

// Len returns the number of stored sessions, expired ones included.
func (r *InMemoryRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
