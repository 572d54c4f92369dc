package sessions_test

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	apperrors "github.com/findaly/findaly/internal/errors"
	"github.com/findaly/findaly/internal/metrics"
	"github.com/findaly/findaly/sessions"
)

type lifetimes struct{}

func (lifetimes) GetSessionTTL() time.Duration         { return time.Hour }
func (lifetimes) GetRememberSessionTTL() time.Duration { return 30 * 24 * time.Hour }

var errStoreDown = errors.New("store unavailable")

// failingRepo simulates an unreachable store.
type failingRepo struct{}

func (failingRepo) Create(context.Context, sessions.Session) error { return errStoreDown }
func (failingRepo) Get(context.Context, string) (sessions.Session, error) {
	return sessions.Session{}, errStoreDown
}
func (failingRepo) Delete(context.Context, string) error { return errStoreDown }
func (failingRepo) DeleteExpired(context.Context, time.Time) (int, error) {
	return 0, errStoreDown
}

func newService(repo sessions.Repo, now *time.Time) *sessions.Service {
	return sessions.NewService(repo, lifetimes{}).WithClock(func() time.Time { return *now })
}

func TestCreateSession(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := sessions.NewInMemoryRepo()
	svc := newService(repo, &now)

	before := testutil.ToFloat64(metrics.SessionsCreated)

	t.Run("default lifetime", func(t *testing.T) {
		s, err := svc.CreateSession(ctx, "user-1", false)
		require.NoError(t, err)
		require.Equal(t, "user-1", s.UserID)
		require.Equal(t, now.Add(time.Hour), s.ExpiresAt)
		require.False(t, s.Remember)

		raw, err := base64.RawURLEncoding.DecodeString(s.Token)
		require.NoError(t, err)
		require.Len(t, raw, sessions.TokenLength)

		stored, err := repo.Get(ctx, s.Token)
		require.NoError(t, err)
		require.Equal(t, s, stored)
	})

	t.Run("remember lifetime", func(t *testing.T) {
		s, err := svc.CreateSession(ctx, "user-1", true)
		require.NoError(t, err)
		require.Equal(t, now.Add(30*24*time.Hour), s.ExpiresAt)
		require.True(t, s.Remember)
	})

	t.Run("tokens are unique", func(t *testing.T) {
		a, err := svc.CreateSession(ctx, "user-2", false)
		require.NoError(t, err)
		b, err := svc.CreateSession(ctx, "user-2", false)
		require.NoError(t, err)
		require.NotEqual(t, a.Token, b.Token)
	})

	t.Run("user required", func(t *testing.T) {
		_, err := svc.CreateSession(ctx, "", false)
		require.Error(t, err)
	})

	require.Equal(t, before+4, testutil.ToFloat64(metrics.SessionsCreated))
}

func TestResolveCurrentUser(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := sessions.NewInMemoryRepo()
	svc := newService(repo, &now)

	s, err := svc.CreateSession(ctx, "user-1", false)
	require.NoError(t, err)

	userID, ok := svc.ResolveCurrentUser(ctx, s.Token)
	require.True(t, ok)
	require.Equal(t, "user-1", userID)

	_, ok = svc.ResolveCurrentUser(ctx, "")
	require.False(t, ok)

	_, ok = svc.ResolveCurrentUser(ctx, "unknown-token")
	require.False(t, ok)

	// Exactly at expiry the session is gone.
	now = s.ExpiresAt
	_, ok = svc.ResolveCurrentUser(ctx, s.Token)
	require.False(t, ok)
	require.Equal(t, 0, repo.Len(), "expired session is deleted on lookup")
}

func TestCurrent_Errors(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	repo := sessions.NewInMemoryRepo()
	svc := newService(repo, &now)

	_, err := svc.Current(ctx, "nope")
	require.ErrorIs(t, err, apperrors.ErrSessionNotFound)

	s, err := svc.CreateSession(ctx, "user-1", false)
	require.NoError(t, err)
	now = now.Add(2 * time.Hour)
	_, err = svc.Current(ctx, s.Token)
	require.ErrorIs(t, err, apperrors.ErrSessionExpired)
}

func TestClearSession(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	repo := sessions.NewInMemoryRepo()
	svc := newService(repo, &now)

	s, err := svc.CreateSession(ctx, "user-1", true)
	require.NoError(t, err)

	require.NoError(t, svc.ClearSession(ctx, s.Token))
	_, ok := svc.ResolveCurrentUser(ctx, s.Token)
	require.False(t, ok)

	// Idempotent.
	require.NoError(t, svc.ClearSession(ctx, s.Token))
	require.NoError(t, svc.ClearSession(ctx, ""))
}

func TestStoreFailureFailsClosed(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	svc := newService(failingRepo{}, &now)

	before := testutil.ToFloat64(metrics.SessionStoreErrors.WithLabelValues("get"))

	_, ok := svc.ResolveCurrentUser(ctx, "some-token")
	require.False(t, ok)
	require.Equal(t, before+1, testutil.ToFloat64(metrics.SessionStoreErrors.WithLabelValues("get")))

	_, err := svc.CreateSession(ctx, "user-1", false)
	require.ErrorIs(t, err, errStoreDown)

	require.ErrorIs(t, svc.ClearSession(ctx, "some-token"), errStoreDown)
}

func TestSweep(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	repo := sessions.NewInMemoryRepo()
	svc := newService(repo, &now)

	_, err := svc.CreateSession(ctx, "short", false)
	require.NoError(t, err)
	long, err := svc.CreateSession(ctx, "long", true)
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	n, err := svc.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, 1, repo.Len())

	_, err = repo.Get(ctx, long.Token)
	require.NoError(t, err)
}

func TestSessionMaxAge(t *testing.T) {
	now := time.Now()
	s := sessions.Session{ExpiresAt: now.Add(90 * time.Second)}
	require.Equal(t, 90, s.MaxAge(now))
	require.Equal(t, -1, s.MaxAge(now.Add(2*time.Minute)))
}
