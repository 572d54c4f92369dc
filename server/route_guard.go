package server

import (
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/findaly/findaly/admintoken"
	"github.com/findaly/findaly/internal/metrics"
)

// GuardConfig is the slice of configuration the route guard reads.
type GuardConfig interface {
	IsProduction() bool
	GetSessionCookieName() string
	GetAdminCookieName() string
}

// RouteGuard runs before routing. It canonicalizes the host in production and
// keeps unauthenticated requests out of /settings and /admin. Every denial is
// a redirect; malformed credentials count as missing ones.
type RouteGuard struct {
	production        bool
	sessionCookieName string
	adminCookieName   string
	admin             *admintoken.Service
}

func NewRouteGuard(c GuardConfig, admin *admintoken.Service) *RouteGuard {
	return &RouteGuard{
		production:        c.IsProduction(),
		sessionCookieName: c.GetSessionCookieName(),
		adminCookieName:   c.GetAdminCookieName(),
		admin:             admin,
	}
}

// Middleware wraps next with the guard.
func (g *RouteGuard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if target, ok := g.canonicalURL(r); ok {
			metrics.GuardDecisions.WithLabelValues(metrics.DecisionCanonicalRedirect).Inc()
			http.Redirect(w, r, target, http.StatusPermanentRedirect)
			return
		}

		p := cleanPath(r.URL.Path)
		switch {
		case underPrefix(p, RouteSettings):
			if !g.HasSessionCookie(r) {
				g.deny(w, r, RouteLogin, metrics.DecisionLoginRedirect)
				return
			}
		case underPrefix(p, RouteAdmin):
			if !isAdminExempt(p) && !g.AdminAuthorized(r) {
				g.deny(w, r, RouteAdminLogin, metrics.DecisionAdminRedirect)
				return
			}
		default:
			next.ServeHTTP(w, r)
			return
		}

		metrics.GuardDecisions.WithLabelValues(metrics.DecisionPass).Inc()
		next.ServeHTTP(w, r)
	})
}

// HasSessionCookie only checks presence; handlers resolve the session.
func (g *RouteGuard) HasSessionCookie(r *http.Request) bool {
	c, err := r.Cookie(g.sessionCookieName)
	return err == nil && c.Value != ""
}

// AdminAuthorized reports whether the request carries a valid admin token.
// Without a configured secret nobody is authorized.
func (g *RouteGuard) AdminAuthorized(r *http.Request) bool {
	if !g.admin.Configured() {
		log.Debug().Str("path", r.URL.Path).Msg("admin secret not configured, denying")
		return false
	}
	c, err := r.Cookie(g.adminCookieName)
	if err != nil || c.Value == "" {
		return false
	}
	return g.admin.Verify(c.Value)
}

func (g *RouteGuard) deny(w http.ResponseWriter, r *http.Request, loginPath, decision string) {
	metrics.GuardDecisions.WithLabelValues(decision).Inc()
	http.Redirect(w, r, loginRedirectURL(loginPath, r.URL.Path), http.StatusTemporaryRedirect)
}

// canonicalURL returns the bare-host URL for www. requests in production.
func (g *RouteGuard) canonicalURL(r *http.Request) (string, bool) {
	if !g.production {
		return "", false
	}
	host := r.Host
	if len(host) < 4 || !strings.EqualFold(host[:4], "www.") {
		return "", false
	}
	// "www." alone, or with only a port, has no bare host to go to.
	bare := host[4:]
	if bare == "" || bare[0] == ':' {
		return "", false
	}
	return "https://" + bare + r.URL.RequestURI(), true
}

func loginRedirectURL(loginPath, next string) string {
	return loginPath + "?next=" + url.QueryEscape(next)
}

func isAdminExempt(p string) bool {
	return p == RouteAdminLogin || strings.HasPrefix(p, RouteAdminLogout)
}

func underPrefix(p, prefix string) bool {
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}

// cleanPath resolves dot segments so /admin/logout/../x is classified as /x.
func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}
	return path.Clean(p)
}
