package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "findaly"

// Route guard decisions.
const (
	DecisionPass              = "pass"
	DecisionCanonicalRedirect = "canonical_redirect"
	DecisionLoginRedirect     = "login_redirect"
	DecisionAdminRedirect     = "admin_redirect"
)

// Registry holds every Findaly collector plus the Go runtime and process
// collectors.
var Registry = prometheus.NewRegistry()

var (
	GuardDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "route_guard_decisions_total",
		Help:      "Route guard outcomes by decision.",
	}, []string{"decision"})

	SessionsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_created_total",
		Help:      "User sessions created.",
	})

	SessionsCleared = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_cleared_total",
		Help:      "User sessions cleared by logout.",
	})

	SessionStoreErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_store_errors_total",
		Help:      "Session store failures by operation.",
	}, []string{"op"})

	AdminLogins = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "admin_logins_total",
		Help:      "Admin login attempts by result.",
	}, []string{"result"})

	UserLogins = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "user_logins_total",
		Help:      "User login attempts by method and result.",
	}, []string{"method", "result"})
)

// Login results.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		GuardDecisions,
		SessionsCreated,
		SessionsCleared,
		SessionStoreErrors,
		AdminLogins,
		UserLogins,
	)
}

// Handler exposes the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
