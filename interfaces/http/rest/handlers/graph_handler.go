package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"thoughtweb/application/services"
	"thoughtweb/domain/core/aggregates"
	pkgerrors "thoughtweb/pkg/errors"
)

// GraphHandler handles graph queries
type GraphHandler struct {
	connections *services.ConnectionService
	logger      *zap.Logger
}

// NewGraphHandler creates a new graph handler
func NewGraphHandler(connections *services.ConnectionService, logger *zap.Logger) *GraphHandler {
	return &GraphHandler{connections: connections, logger: logger}
}

// GetGraph handles GET /graph
func (h *GraphHandler) GetGraph(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, h.logger, http.StatusOK, h.connections.Graph())
}

// GetStats handles GET /graph/stats
func (h *GraphHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, h.logger, http.StatusOK, h.connections.Stats())
}

// FindPath handles GET /graph/path?from=&to=&maxDepth=
func (h *GraphHandler) FindPath(w http.ResponseWriter, r *http.Request) {
	from, to := r.URL.Query().Get("from"), r.URL.Query().Get("to")
	if from == "" || to == "" {
		respondError(w, r, h.logger, pkgerrors.NewValidationError("from and to are required"))
		return
	}
	maxDepth, err := queryInt(r, "maxDepth", aggregates.DefaultMaxPathDepth)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	path, ok := h.connections.FindPath(from, to, maxDepth)
	if !ok {
		respondError(w, r, h.logger, pkgerrors.NewNotFoundError("path").WithDetails(map[string]any{
			"from": from, "to": to, "maxDepth": maxDepth,
		}))
		return
	}
	respondJSON(w, h.logger, http.StatusOK, path)
}

// ListClusters handles GET /graph/clusters
func (h *GraphHandler) ListClusters(w http.ResponseWriter, r *http.Request) {
	clusters := h.connections.Clusters()
	respondJSON(w, h.logger, http.StatusOK, map[string]any{"clusters": clusters, "count": len(clusters)})
}

// DetectClusters handles POST /graph/clusters
func (h *GraphHandler) DetectClusters(w http.ResponseWriter, r *http.Request) {
	clusters := h.connections.DetectClusters(r.Context())
	respondJSON(w, h.logger, http.StatusOK, map[string]any{"clusters": clusters, "count": len(clusters)})
}

// AnalyzeItem handles GET /items/{itemID}/analysis
func (h *GraphHandler) AnalyzeItem(w http.ResponseWriter, r *http.Request) {
	analysis, err := h.connections.AnalyzeItem(chi.URLParam(r, "itemID"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, analysis)
}
