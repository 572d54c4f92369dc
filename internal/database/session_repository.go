package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/findaly/findaly/internal/errors"
	"github.com/findaly/findaly/sessions"
)

var _ sessions.Repo = (*SessionRepository)(nil)

// SessionRepository stores user sessions in the sessions table.
type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, s sessions.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (token, user_id, remember, created_at, expires_at) VALUES (?, ?, ?, ?, ?)`,
		s.Token, s.UserID, s.Remember, s.CreatedAt.UnixNano(), s.ExpiresAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("[SessionRepository Create] %w", err)
	}
	return nil
}

func (r *SessionRepository) Get(ctx context.Context, token string) (sessions.Session, error) {
	var (
		s                    sessions.Session
		createdAt, expiresAt int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT token, user_id, remember, created_at, expires_at FROM sessions WHERE token = ?`, token,
	).Scan(&s.Token, &s.UserID, &s.Remember, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return sessions.Session{}, apperrors.ErrSessionNotFound
	}
	if err != nil {
		return sessions.Session{}, fmt.Errorf("[SessionRepository Get] %w", err)
	}
	s.CreatedAt = fromUnixNano(createdAt)
	s.ExpiresAt = fromUnixNano(expiresAt)
	return s, nil
}

func (r *SessionRepository) Delete(ctx context.Context, token string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("[SessionRepository Delete] %w", err)
	}
	return nil
}

func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("[SessionRepository DeleteExpired] %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("[SessionRepository DeleteExpired] %w", err)
	}
	return int(n), nil
}
