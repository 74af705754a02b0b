package rest

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler provides HTTP health check endpoints.
type HealthHandler struct {
	serviceName  string
	startedAt    time.Time
	database     Pinger
	probeTimeout time.Duration
	logger       *slog.Logger
}

// NewHealthHandler creates a new HealthHandler. database backs the readiness probe.
func NewHealthHandler(serviceName string, database Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		serviceName:  serviceName,
		startedAt:    time.Now(),
		database:     database,
		probeTimeout: 2 * time.Second,
		logger:       logger,
	}
}

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Uptime  string `json:"uptime"`
}

type readinessResponse struct {
	Status  string            `json:"status"`
	Service string            `json:"service"`
	Checks  map[string]string `json:"checks"`
}

// Liveness handles GET /healthz.
func (h *HealthHandler) Liveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Service: h.serviceName,
		Uptime:  time.Since(h.startedAt).Round(time.Second).String(),
	})
}

// Readiness handles GET /readyz. It answers 503 while the database is unreachable.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.probeTimeout)
	defer cancel()

	resp := readinessResponse{
		Status:  "ok",
		Service: h.serviceName,
		Checks:  map[string]string{"database": "ok"},
	}
	code := http.StatusOK

	if err := h.database.Ping(ctx); err != nil {
		h.logger.Warn("readiness check failed", "check", "database", "error", err)
		resp.Status = "unavailable"
		resp.Checks["database"] = err.Error()
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, resp)
}

// NewRouter mounts the probes and, when metrics is non-nil, GET /metrics.
func NewRouter(h *HealthHandler, metrics http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", h.Liveness)
	r.Get("/readyz", h.Readiness)
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}
	return r
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
