package fakeuserrepo

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/findaly/findaly/internal/errors"
	"github.com/findaly/findaly/users"
)

var _ users.Repo = (*FakeUserRepo)(nil)

type FakeUserRepo struct {
	users    map[string]*users.User
	emailIds map[string]string // email to user id
	lock     sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users:    make(map[string]*users.User),
		emailIds: make(map[string]string),
	}
}

func (ur *FakeUserRepo) Create(_ context.Context, user *users.User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if _, ok := ur.emailIds[user.Email]; ok {
		return apperrors.ErrEmailTaken
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	stored := *user
	ur.users[user.ID] = &stored
	ur.emailIds[user.Email] = user.ID
	return nil
}

func (ur *FakeUserRepo) GetByEmail(_ context.Context, email string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	id, ok := ur.emailIds[email]
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	u := *ur.users[id]
	return &u, nil
}

func (ur *FakeUserRepo) GetByID(_ context.Context, id string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	stored, ok := ur.users[id]
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	u := *stored
	return &u, nil
}

func (ur *FakeUserRepo) SetLastLogin(_ context.Context, id string, at time.Time) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	stored, ok := ur.users[id]
	if !ok {
		return apperrors.ErrUserNotFound
	}
	stored.LastLogin = at
	return nil
}
