package handler

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// HealthHandler handles liveness and readiness probes.
type HealthHandler struct {
	startTime time.Time
	version   string

	mu     sync.RWMutex
	ready  bool
	checks map[string]func() error
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{
		startTime: time.Now(),
		version:   version,
		checks:    make(map[string]func() error),
	}
}

// SetReady marks the service as ready.
func (h *HealthHandler) SetReady(ready bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ready = ready
}

// IsReady returns the ready status.
func (h *HealthHandler) IsReady() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ready
}

// AddCheck registers a named readiness check.
func (h *HealthHandler) AddCheck(name string, check func() error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// HealthResponse represents a health check response.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Version   string            `json:"version,omitempty"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HandleHealth handles the /health endpoint (liveness probe).
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Version:   h.version,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

// HandleReady handles the /ready endpoint (readiness probe).
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	healthy := true

	if !h.IsReady() {
		checks["startup"] = "not ready"
		healthy = false
	} else {
		checks["startup"] = "ok"
	}

	h.mu.RLock()
	for name, check := range h.checks {
		if err := check(); err != nil {
			checks[name] = "failed"
			healthy = false
		} else {
			checks[name] = "ok"
		}
	}
	h.mu.RUnlock()

	response := HealthResponse{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Checks:    checks,
	}

	w.Header().Set("Content-Type", "application/json")
	if healthy {
		response.Status = "ready"
		w.WriteHeader(http.StatusOK)
	} else {
		response.Status = "not ready"
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(response)
}
