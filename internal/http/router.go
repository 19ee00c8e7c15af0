// Package httpapi assembles the HTTP surface: webhook intake, contact
// intake, health, and metrics. Handlers own their routes; this package owns
// ordering and admission control.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	rlmodels "paydesk/internal/ratelimit/models"
	"paydesk/pkg/httputil"
)

// Registrar mounts a handler's routes on a router.
type Registrar interface {
	Register(r chi.Router)
}

// RateLimiter produces admission middleware per preset.
type RateLimiter interface {
	RateLimit(preset rlmodels.Preset) func(http.Handler) http.Handler
}

// Deps carries everything the router wires together.
type Deps struct {
	RateLimit RateLimiter

	// Webhook terminates provider deliveries; limited by the api preset.
	Webhook Registrar
	// Intake terminates the public contact form; limited by the intake preset.
	Intake Registrar

	// HealthChecks are probed by /healthz, keyed by dependency name.
	HealthChecks map[string]func(ctx context.Context) error
}

// NewRouter builds the chi router.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))

	if deps.Webhook != nil {
		r.Group(func(g chi.Router) {
			g.Use(deps.RateLimit.RateLimit(rlmodels.PresetAPI))
			deps.Webhook.Register(g)
		})
	}

	if deps.Intake != nil {
		r.Group(func(g chi.Router) {
			g.Use(deps.RateLimit.RateLimit(rlmodels.PresetIntake))
			deps.Intake.Register(g)
		})
	}

	r.Get("/healthz", healthHandler(deps.HealthChecks))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

// healthHandler probes each dependency with a short deadline. Any failure
// degrades the response to 503 with per-dependency detail.
func healthHandler(checks map[string]func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		detail := make(map[string]string, len(checks)+1)
		detail["status"] = "ok"
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				detail["status"] = "degraded"
				detail[name] = err.Error()
				continue
			}
			detail[name] = "ok"
		}
		httputil.WriteJSON(w, status, detail)
	}
}
