// Package http assembles the service router: domain handlers, health and
// metrics endpoints, and the shared middleware stack.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"privid/internal/transport/httpx"
)

// HealthChecker reports backend liveness.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Registrar mounts a domain handler's routes.
type Registrar interface {
	Register(r chi.Router)
}

// Options configures the router.
type Options struct {
	Handlers []Registrar
	// Checks maps a backend name to its health check. Nil checkers are
	// skipped, so optional backends can be passed unconditionally.
	Checks   map[string]HealthChecker
	Registry *prometheus.Registry
}

// New builds the service router.
func New(opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", healthHandler(opts.Checks))
	if opts.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		for _, h := range opts.Handlers {
			h.Register(r)
		}
	})
	return r
}

func healthHandler(checks map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		detail := make(map[string]string, len(checks))
		for name, check := range checks {
			if check == nil {
				continue
			}
			if err := check.Health(r.Context()); err != nil {
				status = http.StatusServiceUnavailable
				detail[name] = err.Error()
				continue
			}
			detail[name] = "ok"
		}
		httpx.WriteJSON(w, status, map[string]any{
			"status":   http.StatusText(status),
			"backends": detail,
		})
	}
}
