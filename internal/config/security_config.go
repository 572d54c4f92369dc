package config

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/findaly/findaly/internal/errors"
)

const (
	adminSecretVar       = "ADMIN_SECRET"
	adminPasswordHashVar = "ADMIN_PASSWORD_HASH"
	adminTokenTTLVar     = "ADMIN_TOKEN_TTL"
	sessionTTLVar        = "SESSION_TTL"
	rememberTTLVar       = "SESSION_REMEMBER_TTL"
	sameSiteVar          = "COOKIE_SAMESITE"
)

type SecurityConfig interface {
	// GetAdminSecret returns the HMAC key for admin tokens. Empty means admin
	// routes are closed.
	GetAdminSecret() string
	GetAdminPasswordHash() string
	GetAdminTokenTTL() time.Duration
	GetAdminCookieName() string
	GetSessionCookieName() string
	GetSessionTTL() time.Duration
	GetRememberSessionTTL() time.Duration
	GetCookieSameSite() http.SameSite
	GetSecureCookies() bool
}

type Security struct {
	AdminSecret        string        `yaml:"admin_secret"`
	AdminPasswordHash  string        `yaml:"admin_password_hash"`
	AdminTokenTTL      time.Duration `yaml:"admin_token_ttl"`
	AdminCookieName    string        `yaml:"admin_cookie_name"`
	SessionCookieName  string        `yaml:"session_cookie_name"`
	SessionTTL         time.Duration `yaml:"session_ttl"`
	RememberSessionTTL time.Duration `yaml:"remember_session_ttl"`
	SameSite           string        `yaml:"same_site"`
}

func defaultSecurity() Security {
	return Security{
		AdminTokenTTL:      14 * 24 * time.Hour,
		AdminCookieName:    "findaly_admin",
		SessionCookieName:  "findaly_session",
		SessionTTL:         24 * time.Hour,
		RememberSessionTTL: 30 * 24 * time.Hour,
		SameSite:           "lax",
	}
}

func (s *Security) applyEnv(lookup func(string) (string, bool)) error {
	setString(lookup, adminSecretVar, &s.AdminSecret)
	setString(lookup, adminPasswordHashVar, &s.AdminPasswordHash)
	setString(lookup, sameSiteVar, &s.SameSite)
	for name, dst := range map[string]*time.Duration{
		adminTokenTTLVar: &s.AdminTokenTTL,
		sessionTTLVar:    &s.SessionTTL,
		rememberTTLVar:   &s.RememberSessionTTL,
	} {
		if err := setDuration(lookup, name, dst); err != nil {
			return err
		}
	}
	if s.AdminTokenTTL <= 0 || s.SessionTTL <= 0 || s.RememberSessionTTL <= 0 {
		return fmt.Errorf("[config Load] token and session lifetimes must be positive: %w", apperrors.ErrInvalidConfig)
	}
	return nil
}

func (s Security) GetAdminSecret() string {
	return s.AdminSecret
}

func (s Security) GetAdminPasswordHash() string {
	return s.AdminPasswordHash
}

func (s Security) GetAdminTokenTTL() time.Duration {
	return s.AdminTokenTTL
}

func (s Security) GetAdminCookieName() string {
	return s.AdminCookieName
}

func (s Security) GetSessionCookieName() string {
	return s.SessionCookieName
}

func (s Security) GetSessionTTL() time.Duration {
	return s.SessionTTL
}

// GetRememberSessionTTL is used when the user ticks "remember me".
func (s Security) GetRememberSessionTTL() time.Duration {
	return s.RememberSessionTTL
}

func (s Security) GetCookieSameSite() http.SameSite {
	switch strings.ToLower(s.SameSite) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

func setDuration(lookup func(string) (string, bool), name string, dst *time.Duration) error {
	v, ok := lookup(name)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("[config Load] %s: %w: %w", name, apperrors.ErrInvalidConfig, err)
	}
	*dst = d
	return nil
}
