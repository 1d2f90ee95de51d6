package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"thoughtweb/application/services"
)

// StoreState reports the snapshot store's circuit breaker state.
type StoreState interface {
	State() string
}

// HealthHandler reports liveness and the state of the snapshot store
type HealthHandler struct {
	store       StoreState
	memories    *services.MemoryStore
	connections *services.ConnectionService
	logger      *zap.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(store StoreState, memories *services.MemoryStore, connections *services.ConnectionService, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{store: store, memories: memories, connections: connections, logger: logger}
}

// Health handles GET /health. An open breaker reports the service as
// degraded with 503.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	state := h.store.State()
	status, code := "healthy", http.StatusOK
	if state == "open" {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	respondJSON(w, h.logger, code, map[string]any{
		"status":      status,
		"store":       state,
		"discovering": h.connections.IsDiscovering(),
		"memories":    h.memories.Count(),
	})
}
