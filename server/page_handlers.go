package server

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/findaly/findaly/internal/metrics"
)

const msgLoginFailed = "Invalid email or password"

// IndexHandler renders the home page
func (s *Server) IndexHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("index.html")

	return func(w http.ResponseWriter, r *http.Request) {
		s.renderPage(w, tmpl, http.StatusOK, pageData{Title: "Home"})
	}
}

// LoginPageHandler renders the user sign in page.
func (s *Server) LoginPageHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("login.html")

	return func(w http.ResponseWriter, r *http.Request) {
		s.renderPage(w, tmpl, http.StatusOK, pageData{
			Title:       "Sign in",
			Error:       r.URL.Query().Get("error"),
			Next:        safeNext(r.URL.Query().Get("next"), RouteSettings),
			OIDCEnabled: s.config.OIDCEnabled(),
		})
	}
}

// LoginSubmitHandler signs a user in from the login form and redirects to
// next. Posts from other sites are refused.
func (s *Server) LoginSubmitHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.isSameOrigin(r) {
			log.Warn().Str("origin", r.Header.Get("Origin")).Msg("cross-site login form rejected")
			http.Error(w, "403 - Forbidden", http.StatusForbidden)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			http.Error(w, "400 - Bad Request", http.StatusBadRequest)
			return
		}
		next := safeNext(r.PostFormValue("next"), RouteSettings)

		u, err := s.authenticate(r.Context(), r.PostFormValue("email"), r.PostFormValue("password"))
		if err != nil {
			metrics.UserLogins.WithLabelValues("password", metrics.ResultFailure).Inc()
			redirectWithError(w, r, RouteLogin, msgLoginFailed, next)
			return
		}

		remember := false
		switch r.PostFormValue("remember") {
		case "on", "true", "1":
			remember = true
		}
		if !s.startSession(w, r, u, remember, "password") {
			http.Error(w, "500 - Internal Server Error", http.StatusInternalServerError)
			return
		}
		redirectSuccess(w, r, next)
	}
}

// SettingsHandler renders account settings for the signed in user. The guard
// only checks that a cookie exists; a cookie that no longer resolves is
// cleared and the visitor is sent to sign in.
func (s *Server) SettingsHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("settings.html")

	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := s.currentUser(r)
		if !ok {
			s.ClearSessionCookie(w)
			http.Redirect(w, r, loginRedirectURL(RouteLogin, r.URL.Path), http.StatusTemporaryRedirect)
			return
		}
		s.renderPage(w, tmpl, http.StatusOK, pageData{
			Title:   "Settings",
			Section: r.PathValue("section"),
			User:    u,
		})
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
