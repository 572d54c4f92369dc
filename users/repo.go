package users

import (
	"context"
	"time"
)

// Repo persists user accounts. Lookups return errors.ErrUserNotFound when no
// account matches.
type Repo interface {
	Create(ctx context.Context, user *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	SetLastLogin(ctx context.Context, id string, at time.Time) error
}
