package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	apperrors "github.com/findaly/findaly/internal/errors"
	"github.com/findaly/findaly/internal/metrics"
	"github.com/findaly/findaly/users"
)

const (
	maxBodyBytes          = 1 << 20
	msgInvalidCredentials = "invalid email or password"
	msgNotAuthenticated   = "not authenticated"
	msgInternal           = "internal error"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Remember bool   `json:"remember"`
}

type userResponse struct {
	User *users.User `json:"user"`
}

// decodeCredentials reads a JSON body. Anything else is refused so that a
// cross-site form cannot reach the API without a CORS preflight.
func decodeCredentials(w http.ResponseWriter, r *http.Request) (credentialsRequest, bool) {
	var req credentialsRequest
	if !strings.HasPrefix(r.Header.Get("Content-Type"), contentTypeJSON) {
		writeJSONError(w, http.StatusUnsupportedMediaType, "expected application/json")
		return req, false
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return req, false
	}
	return req, true
}

// RegisterHandler creates a password account and signs it in.
func (s *Server) RegisterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeCredentials(w, r)
		if !ok {
			return
		}

		email, err := users.NormalizeEmail(req.Email)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid email address")
			return
		}
		if err := users.ValidatePasswordStrength(req.Password); err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}

		hash, err := users.HashPassword(req.Password)
		if err != nil {
			log.Error().Err(err).Msg("failed to hash password")
			writeJSONError(w, http.StatusInternalServerError, msgInternal)
			return
		}

		u := &users.User{
			Email:        email,
			Name:         strings.TrimSpace(req.Name),
			PasswordHash: hash,
			Provider:     users.ProviderPassword,
		}
		if err := s.users.Create(r.Context(), u); err != nil {
			if apperrors.Is(err, apperrors.ErrEmailTaken) {
				writeJSONError(w, http.StatusConflict, "email already registered")
				return
			}
			log.Error().Err(err).Msg("failed to create user")
			writeJSONError(w, http.StatusInternalServerError, msgInternal)
			return
		}

		if !s.startSession(w, r, u, req.Remember, "password") {
			writeJSONError(w, http.StatusInternalServerError, msgInternal)
			return
		}
		writeJSON(w, http.StatusCreated, userResponse{User: u})
	}
}

// LoginHandler checks email and password and starts a session. Every
// credential failure gets the same response.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeCredentials(w, r)
		if !ok {
			return
		}

		u, err := s.authenticate(r.Context(), req.Email, req.Password)
		if err != nil {
			metrics.UserLogins.WithLabelValues("password", metrics.ResultFailure).Inc()
			writeJSONError(w, http.StatusUnauthorized, msgInvalidCredentials)
			return
		}

		if !s.startSession(w, r, u, req.Remember, "password") {
			writeJSONError(w, http.StatusInternalServerError, msgInternal)
			return
		}
		writeJSON(w, http.StatusOK, userResponse{User: u})
	}
}

// LogoutHandler deletes the session and clears the cookie. It succeeds even
// without a session.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.sessions.ClearSession(r.Context(), s.sessionToken(r)); err != nil {
			log.Warn().Err(err).Msg("failed to clear session")
		}
		s.ClearSessionCookie(w)
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}

// MeHandler returns the signed in user.
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := s.currentUser(r)
		if !ok {
			writeJSONError(w, http.StatusUnauthorized, msgNotAuthenticated)
			return
		}
		writeJSON(w, http.StatusOK, userResponse{User: u})
	}
}

// authenticate returns ErrInvalidCredentials for every failure. Unknown
// emails and accounts without a password are checked against a dummy hash so
// they take as long as a wrong password.
func (s *Server) authenticate(ctx context.Context, rawEmail, password string) (*users.User, error) {
	email, err := users.NormalizeEmail(rawEmail)
	if err != nil || password == "" {
		return nil, apperrors.ErrInvalidCredentials
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil && !apperrors.Is(err, apperrors.ErrUserNotFound) {
		log.Error().Err(err).Msg("user lookup failed")
	}

	hash := users.DummyPasswordHash()
	if err == nil && u.PasswordHash != "" {
		hash = u.PasswordHash
	}
	match := s.checkPassword(password, hash)

	if err != nil || u.PasswordHash == "" || !match {
		return nil, apperrors.ErrInvalidCredentials
	}
	return u, nil
}

// startSession creates a session for u, sets the cookie and records the login.
func (s *Server) startSession(w http.ResponseWriter, r *http.Request, u *users.User, remember bool, method string) bool {
	sess, err := s.sessions.CreateSession(r.Context(), u.ID, remember)
	if err != nil {
		log.Error().Err(err).Str("user_id", u.ID).Msg("failed to create session")
		metrics.UserLogins.WithLabelValues(method, metrics.ResultFailure).Inc()
		return false
	}
	s.SetSessionCookie(w, sess)

	now := s.now().UTC()
	if err := s.users.SetLastLogin(r.Context(), u.ID, now); err != nil {
		log.Warn().Err(err).Str("user_id", u.ID).Msg("failed to record last login")
	} else {
		u.LastLogin = now
	}
	metrics.UserLogins.WithLabelValues(method, metrics.ResultSuccess).Inc()
	return true
}

// currentUser resolves the session cookie to a user. Failures resolve to no
// user.
func (s *Server) currentUser(r *http.Request) (*users.User, bool) {
	userID, ok := s.sessions.ResolveCurrentUser(r.Context(), s.sessionToken(r))
	if !ok {
		return nil, false
	}
	u, err := s.users.GetByID(r.Context(), userID)
	if err != nil {
		if !apperrors.Is(err, apperrors.ErrUserNotFound) {
			log.Error().Err(err).Msg("user lookup failed")
		}
		return nil, false
	}
	return u, true
}
