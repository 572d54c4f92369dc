package server

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/findaly/findaly/sessions"
)

const (
	contentTypeHTML = "text/html; charset=utf-8"
	contentTypeJSON = "application/json"

	oidcStateCookieName = "findaly_oidc_state"
)

// setCookie writes an auth cookie. Set and clear share every attribute so the
// browser matches them to the same cookie.
func (s *Server) setCookie(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.config.GetSecureCookies(),
		SameSite: s.config.GetCookieSameSite(),
		MaxAge:   maxAge,
	})
}

// clearCookie expires a cookie immediately. Go emits Max-Age=0 for any
// negative MaxAge.
func (s *Server) clearCookie(w http.ResponseWriter, name string) {
	s.setCookie(w, name, "", -1)
}

func (s *Server) SetSessionCookie(w http.ResponseWriter, sess sessions.Session) {
	s.setCookie(w, s.config.GetSessionCookieName(), sess.Token, sess.MaxAge(s.now()))
}

func (s *Server) ClearSessionCookie(w http.ResponseWriter) {
	s.clearCookie(w, s.config.GetSessionCookieName())
}

func (s *Server) SetAdminCookie(w http.ResponseWriter, token string) {
	s.setCookie(w, s.config.GetAdminCookieName(), token, int(s.admin.TTL().Seconds()))
}

func (s *Server) ClearAdminCookie(w http.ResponseWriter) {
	s.clearCookie(w, s.config.GetAdminCookieName())
}

func (s *Server) sessionToken(r *http.Request) string {
	c, err := r.Cookie(s.config.GetSessionCookieName())
	if err != nil {
		return ""
	}
	return c.Value
}

// safeNext returns next when it is a local absolute path, otherwise fallback.
// Protocol-relative and backslash forms are rejected since browsers treat
// them as another host.
func safeNext(next, fallback string) string {
	if next == "" || next[0] != '/' {
		return fallback
	}
	if len(next) > 1 && (next[1] == '/' || next[1] == '\\') {
		return fallback
	}
	if strings.ContainsAny(next, "\r\n") {
		return fallback
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return fallback
	}
	return next
}

// redirectSuccess helper for htmx-aware success redirects
func redirectSuccess(w http.ResponseWriter, r *http.Request, path string) {
	if isHTMXRequest(r) {
		w.Header().Set("HX-Redirect", path)
		w.WriteHeader(http.StatusNoContent) // 204 - no content, just redirect instruction
		return
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}

// redirectWithError helper for htmx-aware error redirects. next is carried
// along when set.
func redirectWithError(w http.ResponseWriter, r *http.Request, path, errorMsg, next string) {
	q := url.Values{}
	q.Set("error", errorMsg)
	if next != "" {
		q.Set("next", next)
	}
	redirectSuccess(w, r, path+"?"+q.Encode())
}

// isSameOrigin reports whether a form post came from this site or from one of
// the configured origins. Requests that carry neither Sec-Fetch-Site nor
// Origin are not from a browser and pass.
func (s *Server) isSameOrigin(r *http.Request) bool {
	if site := r.Header.Get("Sec-Fetch-Site"); site != "" && site != "same-origin" && site != "none" {
		return false
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	return strings.EqualFold(u.Host, r.Host) || s.config.GetAllowedOrigins().IsAllowedOrigin(origin)
}

// isHTMXRequest checks if the request was initiated by HTMX
func isHTMXRequest(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
