package server

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/findaly/findaly/internal/metrics"
	"github.com/findaly/findaly/users"
)

const msgAdminLoginUnavailable = "admin login is not configured"

// AdminLoginPageHandler renders the admin password form. A visitor who
// already holds a valid token goes straight to next.
func (s *Server) AdminLoginPageHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("admin_login.html")

	return func(w http.ResponseWriter, r *http.Request) {
		next := safeNext(r.URL.Query().Get("next"), RouteAdmin)
		if s.guard.AdminAuthorized(r) {
			http.Redirect(w, r, next, http.StatusSeeOther)
			return
		}
		s.renderPage(w, tmpl, http.StatusOK, pageData{
			Title: "Admin sign in",
			Error: r.URL.Query().Get("error"),
			Next:  next,
		})
	}
}

// AdminLoginSubmitHandler checks the admin password and issues the admin
// token cookie.
func (s *Server) AdminLoginSubmitHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hash := s.config.GetAdminPasswordHash()
		if !s.admin.Configured() || hash == "" {
			http.Error(w, msgAdminLoginUnavailable, http.StatusServiceUnavailable)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			http.Error(w, "400 - Bad Request", http.StatusBadRequest)
			return
		}
		next := safeNext(r.PostFormValue("next"), RouteAdmin)

		if !users.CheckPasswordHash(r.PostFormValue("password"), hash) {
			metrics.AdminLogins.WithLabelValues(metrics.ResultFailure).Inc()
			log.Warn().Str("remote", r.RemoteAddr).Msg("admin login failed")
			redirectWithError(w, r, RouteAdminLogin, "Invalid password", next)
			return
		}

		token, err := s.admin.Issue()
		if err != nil {
			log.Error().Err(err).Msg("failed to issue admin token")
			http.Error(w, "500 - Internal Server Error", http.StatusInternalServerError)
			return
		}
		s.SetAdminCookie(w, token)
		metrics.AdminLogins.WithLabelValues(metrics.ResultSuccess).Inc()
		log.Info().Str("remote", r.RemoteAddr).Msg("admin signed in")
		redirectSuccess(w, r, next)
	}
}

// AdminLogoutHandler clears the admin cookie. The token itself stays valid
// until it expires.
func (s *Server) AdminLogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.ClearAdminCookie(w)
		redirectSuccess(w, r, RouteAdminLogin)
	}
}

// AdminDashboardHandler renders the admin area placeholder. It re-checks the
// token since paths under /admin/logout skip the guard.
func (s *Server) AdminDashboardHandler() http.HandlerFunc {
	tmpl := mustParseTemplate("admin.html")

	return func(w http.ResponseWriter, r *http.Request) {
		if !s.guard.AdminAuthorized(r) {
			http.Redirect(w, r, loginRedirectURL(RouteAdminLogin, r.URL.Path), http.StatusTemporaryRedirect)
			return
		}
		s.renderPage(w, tmpl, http.StatusOK, pageData{
			Title:   "Admin",
			Section: r.PathValue("section"),
		})
	}
}
