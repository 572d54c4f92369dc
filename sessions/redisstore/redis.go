package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/findaly/findaly/internal/errors"
	"github.com/findaly/findaly/sessions"
)

var _ sessions.Repo = (*Store)(nil)

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Store keeps sessions as JSON values whose Redis TTL matches the session
// expiry, so Redis itself drops expired records.
type Store struct {
	client *redis.Client
	prefix string
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, opts Options) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("[redisstore New] ping %s: %w", opts.Addr, err)
	}
	return NewWithClient(client, opts.Prefix), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

func (s *Store) key(token string) string {
	return s.prefix + "session:" + token
}

func (s *Store) Create(ctx context.Context, session sessions.Session) error {
	if session.Token == "" || session.UserID == "" {
		return fmt.Errorf("[redisstore Create] missing token or user id")
	}
	ttl := keyTTL(session)
	if ttl <= 0 {
		return fmt.Errorf("[redisstore Create] expires_at must be in the future")
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("[redisstore Create] marshal: %w", err)
	}
	return s.client.Set(ctx, s.key(session.Token), data, ttl).Err()
}

// keyTTL is the session lifetime measured from its creation, so it follows
// the clock that stamped the session rather than the wall clock here.
func keyTTL(session sessions.Session) time.Duration {
	if session.CreatedAt.IsZero() {
		return time.Until(session.ExpiresAt)
	}
	return session.ExpiresAt.Sub(session.CreatedAt)
}

func (s *Store) Get(ctx context.Context, token string) (sessions.Session, error) {
	data, err := s.client.Get(ctx, s.key(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return sessions.Session{}, apperrors.ErrSessionNotFound
	}
	if err != nil {
		return sessions.Session{}, fmt.Errorf("[redisstore Get] %w", err)
	}

	var session sessions.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return sessions.Session{}, fmt.Errorf("[redisstore Get] unmarshal: %w", err)
	}
	return session, nil
}

func (s *Store) Delete(ctx context.Context, token string) error {
	return s.client.Del(ctx, s.key(token)).Err()
}

// DeleteExpired is a no-op: keys carry their own TTL.
func (s *Store) DeleteExpired(context.Context, time.Time) (int, error) {
	return 0, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
