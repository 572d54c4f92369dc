package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	RouteIndex = "/"

	// User pages
	RouteLogin    = "/login"
	RouteSettings = "/settings"

	// Admin pages
	RouteAdmin       = "/admin"
	RouteAdminLogin  = "/admin/login"
	RouteAdminLogout = "/admin/logout"

	// Auth API
	RouteAPIRegister = "/api/auth/register"
	RouteAPILogin    = "/api/auth/login"
	RouteAPILogout   = "/api/auth/logout"
	RouteAPIMe       = "/api/auth/me"

	// Social login
	RouteOIDCStart    = "/auth/oidc/start"
	RouteOIDCCallback = "/auth/oidc/callback"

	// Operations
	RouteMetrics = "/metrics"
	RouteHealth  = "/healthz"
)
