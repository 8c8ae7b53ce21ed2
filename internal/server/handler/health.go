package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// HealthCheck is a named readiness probe such as a Redis or Postgres ping.
type HealthCheck func(ctx context.Context) error

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	checks map[string]HealthCheck
	wallet string
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler. wallet is reported so operators
// can see which maker the service signs for.
func NewHealthHandler(checks map[string]HealthCheck, wallet string, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{checks: checks, wallet: wallet, logger: logHandler(logger, "health")}
}

// HealthCheck runs every probe with a short timeout and reports 200 when all
// pass, 503 otherwise.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, code := "ok", http.StatusOK
	components := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.WarnContext(ctx, "health check failed",
				slog.String("component", name),
				slog.String("error", err.Error()),
			)
			components[name] = err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		components[name] = "ok"
	}

	writeJSON(w, code, map[string]any{
		"status":     status,
		"wallet":     h.wallet,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}
