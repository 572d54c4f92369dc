package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/findaly/findaly/admintoken"
	"github.com/findaly/findaly/internal/config"
	"github.com/findaly/findaly/sessions"
	"github.com/findaly/findaly/users"
)

type Server struct {
	env      string // Environment (e.g., "DEV", "PROD")
	mux      *http.ServeMux
	handler  http.Handler
	routes   []string
	config   config.Config
	guard    *RouteGuard
	admin    *admintoken.Service
	sessions *sessions.Service
	users    users.Repo
	oidc     *oidcLogin
	now      func() time.Time

	checkPassword func(password, hash string) bool
}

func New(c config.Config, userRepo users.Repo, sessionRepo sessions.Repo) (*Server, error) {
	if userRepo == nil || sessionRepo == nil {
		return nil, fmt.Errorf("[Server New] user and session repositories are required")
	}

	admin := admintoken.NewService(c.GetAdminSecret(), c.GetAdminTokenTTL())
	if !admin.Configured() {
		log.Warn().Msg("ADMIN_SECRET is not set, /admin is locked")
	}

	s := &Server{
		env:      c.GetEnv(),
		mux:      http.NewServeMux(),
		config:   c,
		admin:    admin,
		sessions: sessions.NewService(sessionRepo, c),
		users:    userRepo,
		oidc:     newOIDCLogin(c),
		now:      time.Now,

		checkPassword: users.CheckPasswordHash,
	}
	s.guard = NewRouteGuard(c, admin)

	s.initRoutes()
	s.logRoutes()

	// Request -> Logging -> Recover -> RouteGuard -> mux
	s.handler = s.LoggingMiddleware(s.RecoverMiddleware(s.guard.Middleware(s.mux)))
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Sessions exposes the session service so the caller can run the sweeper.
func (s *Server) Sessions() *sessions.Service {
	return s.sessions
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Debug().Msgf("[%-19s] %s", displayMethod, path)
}
