package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/ydethe/quizzy/internal/observability/logger"
)

// Pinger es cualquier dependencia con chequeo de salud (store, cache).
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthController struct {
	Checks  map[string]Pinger
	Version string
}

// Health GET /healthz: 200 si todas las dependencias responden, 503 si no.
func (c *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(c.Checks))
	for name, p := range c.Checks {
		if err := p.Ping(ctx); err != nil {
			logger.From(r.Context()).Warn("health check failed", logger.Component(name), logger.Err(err))
			checks[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	writeJSON(w, status, map[string]any{"status": overall, "version": c.Version, "checks": checks})
}
