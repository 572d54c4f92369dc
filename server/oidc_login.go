package server

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/findaly/findaly/internal/config"
	apperrors "github.com/findaly/findaly/internal/errors"
	"github.com/findaly/findaly/internal/metrics"
	"github.com/findaly/findaly/server/authflowrepo"
	"github.com/findaly/findaly/sessions"
	"github.com/findaly/findaly/users"
)

const msgSSOFailed = "Single sign-on failed, please try again"

type OidcConfig struct {
	OidcProvider *oidc.Provider
	OAuth2Config *oauth2.Config
	OidcVerifier *oidc.IDTokenVerifier
}

// oidcLogin signs users in through an external OpenID Connect provider.
// Discovery runs on first use and is retried until it succeeds.
type oidcLogin struct {
	enabled      bool
	issuer       string
	clientID     string
	clientSecret string
	redirectURL  string
	flows        authflowrepo.Repo

	mu  sync.Mutex
	cfg *OidcConfig
}

func newOIDCLogin(c config.Config) *oidcLogin {
	return &oidcLogin{
		enabled:      c.OIDCEnabled(),
		issuer:       c.GetOIDCIssuer(),
		clientID:     c.GetOIDCClientID(),
		clientSecret: c.GetOIDCClientSecret(),
		redirectURL:  strings.TrimRight(c.GetBaseURL(), "/") + RouteOIDCCallback,
		flows:        authflowrepo.NewInMemoryRepo(),
	}
}

func (o *oidcLogin) client(ctx context.Context) (*OidcConfig, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cfg != nil {
		return o.cfg, nil
	}

	provider, err := oidc.NewProvider(ctx, o.issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}
	o.cfg = &OidcConfig{
		OidcProvider: provider,
		OAuth2Config: &oauth2.Config{
			ClientID:     o.clientID,
			ClientSecret: o.clientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  o.redirectURL,
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
		OidcVerifier: provider.Verifier(&oidc.Config{ClientID: o.clientID}),
	}
	return o.cfg, nil
}

// setStateCookie binds the flow to the browser that started it. It is always
// Lax so it survives the top level redirect back from the provider.
func (s *Server) setStateCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     oidcStateCookieName,
		Value:    value,
		Path:     "/auth/oidc",
		HttpOnly: true,
		Secure:   s.config.GetSecureCookies(),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

// OIDCStartHandler redirects to the provider's authorization endpoint.
func (s *Server) OIDCStartHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.oidc.enabled {
			http.NotFound(w, r)
			return
		}
		next := safeNext(r.URL.Query().Get("next"), RouteSettings)

		cfg, err := s.oidc.client(r.Context())
		if err != nil {
			log.Error().Err(err).Str("issuer", s.oidc.issuer).Msg("OIDC discovery failed")
			redirectWithError(w, r, RouteLogin, "Single sign-on is unavailable", next)
			return
		}

		state, err := sessions.GenerateToken()
		if err != nil {
			http.Error(w, "500 - Internal Server Error", http.StatusInternalServerError)
			return
		}
		nonce, err := sessions.GenerateToken()
		if err != nil {
			http.Error(w, "500 - Internal Server Error", http.StatusInternalServerError)
			return
		}
		verifier := oauth2.GenerateVerifier()

		s.oidc.flows.Prune(s.now())
		if err := s.oidc.flows.Put(state, authflowrepo.FlowState{
			CodeVerifier: verifier,
			Nonce:        nonce,
			ReturnURL:    next,
			CreatedAt:    s.now(),
		}); err != nil {
			log.Error().Err(err).Msg("failed to store auth flow state")
			http.Error(w, "500 - Internal Server Error", http.StatusInternalServerError)
			return
		}
		s.setStateCookie(w, state, int(authflowrepo.MaxAge.Seconds()))

		authURL := cfg.OAuth2Config.AuthCodeURL(state, oidc.Nonce(nonce), oauth2.S256ChallengeOption(verifier))
		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

// OIDCCallbackHandler completes the code flow, finds or creates the account
// for the verified email and starts a remembered session.
func (s *Server) OIDCCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.oidc.enabled {
			http.NotFound(w, r)
			return
		}

		state := r.URL.Query().Get("state")
		code := r.URL.Query().Get("code")
		cookie, cookieErr := r.Cookie(oidcStateCookieName)
		s.setStateCookie(w, "", -1)

		if errParam := r.URL.Query().Get("error"); errParam != "" {
			s.oidcFail(w, r, "provider returned an error", fmt.Errorf("%s", errParam))
			return
		}
		if state == "" || code == "" || cookieErr != nil ||
			subtle.ConstantTimeCompare([]byte(state), []byte(cookie.Value)) != 1 {
			s.oidcFail(w, r, "state mismatch", nil)
			return
		}
		flow, err := s.oidc.flows.Take(state)
		if err != nil {
			s.oidcFail(w, r, "unknown or expired state", err)
			return
		}

		cfg, err := s.oidc.client(r.Context())
		if err != nil {
			s.oidcFail(w, r, "discovery failed", err)
			return
		}

		oauth2Token, err := cfg.OAuth2Config.Exchange(r.Context(), code, oauth2.VerifierOption(flow.CodeVerifier))
		if err != nil {
			s.oidcFail(w, r, "token exchange failed", err)
			return
		}
		rawIDToken, ok := oauth2Token.Extra("id_token").(string)
		if !ok {
			s.oidcFail(w, r, "no id_token in response", nil)
			return
		}
		idToken, err := cfg.OidcVerifier.Verify(r.Context(), rawIDToken)
		if err != nil {
			s.oidcFail(w, r, "id token verification failed", err)
			return
		}
		if subtle.ConstantTimeCompare([]byte(idToken.Nonce), []byte(flow.Nonce)) != 1 {
			s.oidcFail(w, r, "nonce mismatch", nil)
			return
		}

		var claims struct {
			Email         string `json:"email"`
			EmailVerified bool   `json:"email_verified"`
			Name          string `json:"name"`
		}
		if err := idToken.Claims(&claims); err != nil {
			s.oidcFail(w, r, "failed to read claims", err)
			return
		}
		if !claims.EmailVerified {
			s.oidcFail(w, r, "email not verified", nil)
			return
		}

		u, err := s.findOrCreateOIDCUser(r.Context(), claims.Email, claims.Name)
		if err != nil {
			s.oidcFail(w, r, "account lookup failed", err)
			return
		}
		if !s.startSession(w, r, u, true, "oidc") {
			http.Error(w, "500 - Internal Server Error", http.StatusInternalServerError)
			return
		}
		redirectSuccess(w, r, safeNext(flow.ReturnURL, RouteSettings))
	}
}

func (s *Server) findOrCreateOIDCUser(ctx context.Context, rawEmail, name string) (*users.User, error) {
	email, err := users.NormalizeEmail(rawEmail)
	if err != nil {
		return nil, err
	}
	u, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return u, nil
	}
	if !apperrors.Is(err, apperrors.ErrUserNotFound) {
		return nil, err
	}

	u = &users.User{Email: email, Name: strings.TrimSpace(name), Provider: users.ProviderOIDC}
	if err := s.users.Create(ctx, u); err != nil {
		if apperrors.Is(err, apperrors.ErrEmailTaken) {
			// Lost a race with a concurrent sign in.
			return s.users.GetByEmail(ctx, email)
		}
		return nil, err
	}
	log.Info().Str("user_id", u.ID).Msg("account created through single sign-on")
	return u, nil
}

func (s *Server) oidcFail(w http.ResponseWriter, r *http.Request, reason string, err error) {
	metrics.UserLogins.WithLabelValues("oidc", metrics.ResultFailure).Inc()
	log.Warn().Err(err).Str("reason", reason).Msg("single sign-on failed")
	redirectWithError(w, r, RouteLogin, msgSSOFailed, "")
}
