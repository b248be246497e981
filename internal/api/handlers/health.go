package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/textly/backend/internal/api/response"
)

// checkTimeout bounds each dependency probe
const checkTimeout = 3 * time.Second

// DBHealth is the postgres connectivity probe
type DBHealth interface {
	Ping(ctx context.Context) error
}

// CacheHealth is the redis connectivity probe
type CacheHealth interface {
	Health(ctx context.Context) error
}

// HealthChecker reports liveness and dependency readiness
type HealthChecker struct {
	db    DBHealth
	cache CacheHealth
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(db DBHealth, cache CacheHealth) *HealthChecker {
	return &HealthChecker{db: db, cache: cache}
}

// HealthStatus is the body of GET /health
type HealthStatus struct {
	Status   string `json:"status"`
	Postgres string `json:"postgres"`
	Redis    string `json:"redis"`
	Time     string `json:"time"`
}

// Health reports the service and its two dependencies. A degraded answer
// carries 503 so load balancers rotate the instance out.
// GET /health
func (h *HealthChecker) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	st := HealthStatus{
		Status:   "ok",
		Postgres: "up",
		Redis:    "up",
		Time:     time.Now().UTC().Format(time.RFC3339),
	}
	code := http.StatusOK

	if err := h.db.Ping(ctx); err != nil {
		st.Postgres = "down"
		st.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	if err := h.cache.Health(ctx); err != nil {
		st.Redis = "down"
		st.Status = "degraded"
		code = http.StatusServiceUnavailable
	}

	response.JSON(w, code, st)
}

// LivenessProbe answers as long as the process serves requests
// GET /health/live
func LivenessProbe(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ReadinessProbe gates traffic on both dependencies being reachable
// GET /health/ready
func (h *HealthChecker) ReadinessProbe(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		response.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "postgres unavailable"})
		return
	}
	if err := h.cache.Health(ctx); err != nil {
		response.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "redis unavailable"})
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
