package server

import (
	"github.com/findaly/findaly/internal/metrics"
)

func (s *Server) initRoutes() {
	s.RegisterRouteHandler("GET /{$}", ChainMiddleware(s.IndexHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteLogin, ChainMiddleware(s.LoginPageHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+RouteLogin, ChainMiddleware(s.LoginSubmitHandler(), s.HTMLMiddleWare()...))

	// Settings (guarded by session cookie presence, resolved here)
	s.RegisterRouteHandler("GET "+RouteSettings, ChainMiddleware(s.SettingsHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteSettings+"/{section...}", ChainMiddleware(s.SettingsHandler(), s.HTMLMiddleWare()...))

	// Admin login and logout are exempt from the guard
	s.RegisterRouteHandler("GET "+RouteAdminLogin, ChainMiddleware(s.AdminLoginPageHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+RouteAdminLogin, ChainMiddleware(s.AdminLoginSubmitHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteAdminLogout, ChainMiddleware(s.AdminLogoutHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+RouteAdminLogout, ChainMiddleware(s.AdminLogoutHandler(), s.HTMLMiddleWare()...))

	// Admin area (guarded by admin token)
	s.RegisterRouteHandler("GET "+RouteAdmin, ChainMiddleware(s.AdminDashboardHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteAdmin+"/{section...}", ChainMiddleware(s.AdminDashboardHandler(), s.HTMLMiddleWare()...))

	// Auth API
	s.RegisterRouteHandler("POST "+RouteAPIRegister, ChainMiddleware(s.RegisterHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAPILogin, ChainMiddleware(s.LoginHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAPILogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAPIMe, ChainMiddleware(s.MeHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("OPTIONS /api/{path...}", ChainMiddleware(preflightHandler(), s.APIMiddleware()...))

	// Social login
	s.RegisterRouteHandler("GET "+RouteOIDCStart, ChainMiddleware(s.OIDCStartHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteOIDCCallback, ChainMiddleware(s.OIDCCallbackHandler(), s.HTMLMiddleWare()...))

	s.RegisterRouteHandler("GET "+RouteHealth, s.HealthHandler())
	s.RegisterRouteHandler("GET "+RouteMetrics, metrics.Handler())
}
