package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/api/response"
)

type HealthCheck func(ctx context.Context) error

type HealthHandler struct {
	checks  map[string]HealthCheck
	timeout time.Duration
}

// NewHealthHandler checks 為 nil 時只回報 process 存活
func NewHealthHandler(checks map[string]HealthCheck) *HealthHandler {
	if checks == nil {
		checks = map[string]HealthCheck{}
	}
	return &HealthHandler{checks: checks, timeout: 2 * time.Second}
}

type healthStatus struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Healthz GET /healthz, 任一依賴失敗回 503
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	result := healthStatus{Status: "ok", Checks: map[string]string{}}
	status := http.StatusOK
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			result.Checks[name] = err.Error()
			result.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		result.Checks[name] = "ok"
	}
	response.SuccessJSON(w, status, result)
}
