package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	apperrors "github.com/findaly/findaly/internal/errors"
	"github.com/findaly/findaly/users"
)

var _ users.Repo = (*UserRepository)(nil)

// UserRepository stores accounts in the users table.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, email, name, password_hash, provider, created_at, last_login`

func (r *UserRepository) Create(ctx context.Context, u *users.User) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	if u.Provider == "" {
		u.Provider = users.ProviderPassword
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Name, u.PasswordHash, string(u.Provider), u.CreatedAt.UnixNano(), nullableTime(u.LastLogin),
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return apperrors.ErrEmailTaken
		}
		return fmt.Errorf("[UserRepository Create] %w", err)
	}
	return nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*users.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (r *UserRepository) SetLastLogin(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET last_login = ? WHERE id = ?`, at.UnixNano(), id)
	if err != nil {
		return fmt.Errorf("[UserRepository SetLastLogin] %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg string) (*users.User, error) {
	var (
		u         users.User
		provider  string
		createdAt int64
		lastLogin sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Email, &u.Name, &u.PasswordHash, &provider, &createdAt, &lastLogin,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("[UserRepository get] %w", err)
	}
	u.Provider = users.Provider(provider)
	u.CreatedAt = fromUnixNano(createdAt)
	if lastLogin.Valid {
		u.LastLogin = fromUnixNano(lastLogin.Int64)
	}
	return &u, nil
}

func nullableTime(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func fromUnixNano(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
