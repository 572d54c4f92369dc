package sessions

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/findaly/findaly/internal/errors"
	"github.com/findaly/findaly/internal/metrics"
)

// TokenLength is the number of random bytes in a session token (256 bits).
const TokenLength = 32

// Lifetimes configures how long new sessions live.
type Lifetimes interface {
	GetSessionTTL() time.Duration
	GetRememberSessionTTL() time.Duration
}

// Service creates, resolves and clears user sessions on top of a Repo.
type Service struct {
	repo        Repo
	ttl         time.Duration
	rememberTTL time.Duration
	now         func() time.Time
}

func NewService(repo Repo, lt Lifetimes) *Service {
	return &Service{
		repo:        repo,
		ttl:         lt.GetSessionTTL(),
		rememberTTL: lt.GetRememberSessionTTL(),
		now:         time.Now,
	}
}

// WithClock returns a copy of the service reading time from now.
func (s *Service) WithClock(now func() time.Time) *Service {
	c := *s
	c.now = now
	return &c
}

// CreateSession allocates a token for userID and persists it. remember picks
// the longer lifetime.
func (s *Service) CreateSession(ctx context.Context, userID string, remember bool) (Session, error) {
	if userID == "" {
		return Session{}, fmt.Errorf("[sessions CreateSession] userID is required")
	}
	token, err := GenerateToken()
	if err != nil {
		return Session{}, err
	}

	ttl := s.ttl
	if remember {
		ttl = s.rememberTTL
	}
	now := s.now().UTC()
	session := Session{
		Token:     token,
		UserID:    userID,
		Remember:  remember,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := s.repo.Create(ctx, session); err != nil {
		metrics.SessionStoreErrors.WithLabelValues("create").Inc()
		return Session{}, fmt.Errorf("[sessions CreateSession] store: %w", err)
	}
	metrics.SessionsCreated.Inc()
	return session, nil
}

// Current returns the live session for token. Expired sessions are removed
// and reported as errors.ErrSessionExpired.
func (s *Service) Current(ctx context.Context, token string) (Session, error) {
	if token == "" {
		return Session{}, apperrors.ErrSessionNotFound
	}
	session, err := s.repo.Get(ctx, token)
	if err != nil {
		return Session{}, err
	}
	if session.ExpiredAt(s.now()) {
		if err := s.repo.Delete(ctx, token); err != nil {
			log.Warn().Err(err).Msg("failed to delete expired session")
		}
		return Session{}, apperrors.ErrSessionExpired
	}
	return session, nil
}

// ResolveCurrentUser maps a session token to its user. Any failure, store
// errors included, resolves to no user.
func (s *Service) ResolveCurrentUser(ctx context.Context, token string) (string, bool) {
	session, err := s.Current(ctx, token)
	if err != nil {
		if !apperrors.Is(err, apperrors.ErrSessionNotFound) && !apperrors.Is(err, apperrors.ErrSessionExpired) {
			metrics.SessionStoreErrors.WithLabelValues("get").Inc()
			log.Warn().Err(err).Msg("session lookup failed")
		}
		return "", false
	}
	return session.UserID, true
}

// ClearSession deletes the session. Clearing an unknown token succeeds.
func (s *Service) ClearSession(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.repo.Delete(ctx, token); err != nil {
		metrics.SessionStoreErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("[sessions ClearSession] store: %w", err)
	}
	metrics.SessionsCleared.Inc()
	return nil
}

// Sweep removes every expired session from the store.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	return s.repo.DeleteExpired(ctx, s.now())
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("session sweep failed")
				continue
			}
			if n > 0 {
				log.Debug().Int("removed", n).Msg("expired sessions swept")
			}
		}
	}
}

// GenerateToken returns a cryptographically random base64url token.
func GenerateToken() (string, error) {
	b := make([]byte, TokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("[sessions GenerateToken] failed to generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
