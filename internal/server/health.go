package server

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/hostward/device-agent/internal/agent"
)

// HealthSource reports the current agent state.
type HealthSource interface {
	Health() agent.HealthReport
}

// HealthRegistrar handles health check endpoints
type HealthRegistrar struct {
	source HealthSource
}

// NewHealthRegistrar creates a new health check registrar
func NewHealthRegistrar(source HealthSource) *HealthRegistrar {
	return &HealthRegistrar{source: source}
}

// RegisterRoutes registers the health check endpoint
func (h *HealthRegistrar) RegisterRoutes(router Router) {
	router.HandleFunc("GET /health", h.healthHandler)
}

func (h *HealthRegistrar) healthHandler(w http.ResponseWriter, r *http.Request) {
	response := h.source.Health()

	// Encode to buffer first to catch any encoding errors before writing headers
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if response.Status == agent.StatusHealthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_, _ = w.Write(buf.Bytes())
}
