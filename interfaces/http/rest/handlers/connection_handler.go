package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"thoughtweb/application/ports"
	"thoughtweb/application/services"
	"thoughtweb/domain/core/entities"
	pkgerrors "thoughtweb/pkg/errors"
)

// ConnectionHandler handles connection discovery and review
type ConnectionHandler struct {
	connections *services.ConnectionService
	items       ports.ItemSource
	logger      *zap.Logger
}

// NewConnectionHandler creates a new connection handler
func NewConnectionHandler(connections *services.ConnectionService, items ports.ItemSource, logger *zap.Logger) *ConnectionHandler {
	return &ConnectionHandler{connections: connections, items: items, logger: logger}
}

// DiscoverResponse reports a discovery run over the pending items.
type DiscoverResponse struct {
	Connections []*entities.Connection `json:"connections"`
	Ran         bool                   `json:"ran"`
	Pending     int                    `json:"pending"`
}

// Discover handles POST /connections/discover
func (h *ConnectionHandler) Discover(w http.ResponseWriter, r *http.Request) {
	conns, ran, err := h.connections.DiscoverPending(r.Context(), h.items)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	pending, err := h.items.PendingItems(r.Context())
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	status := http.StatusOK
	if !ran && len(pending) > 0 {
		status = http.StatusAccepted
	}
	respondJSON(w, h.logger, status, DiscoverResponse{Connections: conns, Ran: ran, Pending: len(pending)})
}

// ListConnections handles GET /connections. ?item= narrows to the outgoing
// edges of one item, ?type= to one connection type; dismissed edges are
// hidden unless ?includeDismissed=true.
func (h *ConnectionHandler) ListConnections(w http.ResponseWriter, r *http.Request) {
	includeDismissed, err := queryBool(r, "includeDismissed")
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	var conns []*entities.Connection
	if item := r.URL.Query().Get("item"); item != "" {
		conns = h.connections.ConnectionsFor(item)
	} else {
		conns = h.connections.Connections()
	}

	connType := entities.ConnectionType(r.URL.Query().Get("type"))
	conns = lo.Filter(conns, func(c *entities.Connection, _ int) bool {
		return (includeDismissed || !c.Dismissed) && (connType == "" || c.Type == connType)
	})
	respondJSON(w, h.logger, http.StatusOK, map[string]any{
		"connections": conns,
		"count":       len(conns),
	})
}

// GetConnection handles GET /connections/{connectionID}
func (h *ConnectionHandler) GetConnection(w http.ResponseWriter, r *http.Request) {
	h.respondConnection(w, r, h.connections.GetConnection)
}

// ConfirmConnection handles POST /connections/{connectionID}/confirm
func (h *ConnectionHandler) ConfirmConnection(w http.ResponseWriter, r *http.Request) {
	h.respondConnection(w, r, h.connections.ConfirmConnection)
}

// DismissConnection handles POST /connections/{connectionID}/dismiss
func (h *ConnectionHandler) DismissConnection(w http.ResponseWriter, r *http.Request) {
	h.respondConnection(w, r, h.connections.DismissConnection)
}

// RecordView handles POST /connections/{connectionID}/view
func (h *ConnectionHandler) RecordView(w http.ResponseWriter, r *http.Request) {
	h.respondConnection(w, r, h.connections.RecordView)
}

func (h *ConnectionHandler) respondConnection(w http.ResponseWriter, r *http.Request, fn func(string) (*entities.Connection, bool)) {
	id := chi.URLParam(r, "connectionID")
	c, ok := fn(id)
	if !ok {
		respondError(w, r, h.logger, pkgerrors.NewNotFoundError("connection").WithDetails(map[string]any{"id": id}))
		return
	}
	respondJSON(w, h.logger, http.StatusOK, c)
}
