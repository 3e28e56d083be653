// Package httptransport assembles the public HTTP surface: health and
// metrics endpoints, session minting, and the form engine routes.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	formhandler "entrypass/internal/form/handler"
	"entrypass/internal/transport/http/shared"
)

// HealthChecker reports the health of one backing dependency.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// NamedChecker pairs a checker with its report name.
type NamedChecker struct {
	Name    string
	Checker HealthChecker
}

// NewRouter wires the full route tree.
func NewRouter(
	logger *slog.Logger,
	form *formhandler.Handler,
	sessions *SessionHandler,
	checks []NamedChecker,
) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", handleHealth(logger, checks))
	r.Handle("/metrics", promhttp.Handler())

	sessions.Register(r)
	form.Register(r)
	return r
}

// handleHealth pings every configured dependency. Missing optional backends
// are simply absent from the report; a failing one flips the status to 503.
func handleHealth(logger *slog.Logger, checks []NamedChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		report := map[string]string{"status": "ok"}
		for _, c := range checks {
			if err := c.Checker.Health(ctx); err != nil {
				logger.WarnContext(ctx, "health check failed",
					"dependency", c.Name,
					"error", err,
				)
				report[c.Name] = "unhealthy"
				report["status"] = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			report[c.Name] = "ok"
		}
		shared.WriteJSON(w, status, report)
	}
}
