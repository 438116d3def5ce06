package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/potooio/herald/internal/types"
)

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// RouterOptions wires the handlers served by NewRouter.
type RouterOptions struct {
	Notifier     Notifier
	Preferences  types.PreferenceStore
	Digests      types.DigestQueue
	Drainer      DigestDrainer
	Capabilities CapabilitiesHandlerOptions
	// Health checks run on /healthz, keyed by dependency name.
	Health map[string]HealthCheck
	// RequestTimeout bounds each request. Default: 30s.
	RequestTimeout time.Duration
}

// NewRouter builds the HTTP API:
//
//	GET  /healthz
//	GET  /metrics
//	GET  /api/v1/capabilities
//	GET  /api/v1/event-types
//	POST /api/v1/updates
//	GET  /api/v1/users/{id}/preferences
//	PUT  /api/v1/users/{id}/preferences
//	GET  /api/v1/users/{id}/digest
//	POST /api/v1/users/{id}/digest/drain
func NewRouter(logger *zap.Logger, opts RouterOptions) chi.Router {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(opts.RequestTimeout))

	r.Get("/healthz", healthHandler(logger.Named("health"), opts.Health))
	r.Handle("/metrics", promhttp.Handler())

	users := NewUsersHandler(logger, opts.Preferences, opts.Digests, opts.Drainer)
	r.Route("/api/v1", func(r chi.Router) {
		r.Method(http.MethodGet, "/capabilities", NewCapabilitiesHandler(logger, opts.Capabilities))
		r.Method(http.MethodGet, "/event-types", NewEventTypesHandler(logger))
		r.Method(http.MethodPost, "/updates", NewUpdatesHandler(logger, opts.Notifier, opts.Capabilities.Kinds))
		users.Routes(r)
	})
	return r
}

// HealthResponse is the response for GET /healthz.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(logger *zap.Logger, checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		resp := HealthResponse{Status: "ok"}
		status := http.StatusOK
		if len(checks) > 0 {
			resp.Checks = make(map[string]string, len(checks))
		}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				logger.Warn("Health check failed", zap.String("check", name), zap.Error(err))
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		writeJSON(w, logger, status, resp)
	}
}
