package admintoken

import (
	"time"

	"github.com/rs/zerolog/log"
)

// Service binds the process-wide admin secret and token lifetime. It holds no
// mutable state and is safe for concurrent use.
type Service struct {
	secret string
	ttl    time.Duration
	now    func() time.Time
}

// NewService creates a service for the given secret. An empty secret yields a
// service that issues nothing and verifies nothing.
func NewService(secret string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{secret: secret, ttl: ttl, now: time.Now}
}

// WithClock returns a copy of the service reading time from now.
func (s *Service) WithClock(now func() time.Time) *Service {
	c := *s
	c.now = now
	return &c
}

// Configured reports whether an admin secret is present.
func (s *Service) Configured() bool {
	return s != nil && s.secret != ""
}

// TTL is the lifetime of newly issued tokens.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

func (s *Service) Issue() (string, error) {
	return IssueAt(s.secret, s.ttl, s.now())
}

// Verify fails closed when the service is unconfigured.
func (s *Service) Verify(token string) bool {
	if !s.Configured() {
		return false
	}
	if _, err := Parse(token, s.secret, s.now()); err != nil {
		log.Debug().Err(err).Msg("admin token rejected")
		return false
	}
	return true
}
