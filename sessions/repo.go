package sessions

import (
	"context"
	"time"
)

// Repo defines the interface for session storage operations.
type Repo interface {
	// Create stores a new session
	Create(ctx context.Context, s Session) error

	// Get retrieves a session by token; errors.ErrSessionNotFound when absent
	Get(ctx context.Context, token string) (Session, error)

	// Delete removes a session. Deleting an absent session is not an error.
	Delete(ctx context.Context, token string) error

	// DeleteExpired removes sessions that expired at or before now
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
