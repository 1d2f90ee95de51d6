package handlers

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"thoughtweb/application/services"
	"thoughtweb/domain/core/entities"
	pkgerrors "thoughtweb/pkg/errors"
)

// MemoryHandler handles memory storage and search
type MemoryHandler struct {
	memories *services.MemoryStore
	logger   *zap.Logger
}

// NewMemoryHandler creates a new memory handler
func NewMemoryHandler(memories *services.MemoryStore, logger *zap.Logger) *MemoryHandler {
	return &MemoryHandler{memories: memories, logger: logger}
}

// AddMemoryRequest is the body of POST /memories.
type AddMemoryRequest struct {
	Content   string                  `json:"content" validate:"required"`
	ThoughtID string                  `json:"thoughtId,omitempty"`
	Metadata  entities.MemoryMetadata `json:"metadata"`
}

// AddMemory handles POST /memories
func (h *MemoryHandler) AddMemory(w http.ResponseWriter, r *http.Request) {
	var req AddMemoryRequest
	if err := bindJSON(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	m, err := h.memories.AddMemory(r.Context(), req.Content, req.ThoughtID, req.Metadata)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusCreated, m)
}

// GetMemory handles GET /memories/{memoryID}
func (h *MemoryHandler) GetMemory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "memoryID")
	m, ok := h.memories.GetMemory(id)
	if !ok {
		respondError(w, r, h.logger, pkgerrors.NewNotFoundError("memory").WithDetails(map[string]any{"id": id}))
		return
	}
	respondJSON(w, h.logger, http.StatusOK, m)
}

// GetRelated handles GET /memories/{memoryID}/related?limit=
func (h *MemoryHandler) GetRelated(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	id := chi.URLParam(r, "memoryID")
	related, ok := h.memories.GetRelatedMemories(id, limit)
	if !ok {
		respondError(w, r, h.logger, pkgerrors.NewNotFoundError("memory").WithDetails(map[string]any{"id": id}))
		return
	}
	respondJSON(w, h.logger, http.StatusOK, map[string]any{"memories": related, "count": len(related)})
}

// Search handles POST /memories/search
func (h *MemoryHandler) Search(w http.ResponseWriter, r *http.Request) {
	var q entities.MemoryQuery
	if err := bindJSON(r, &q); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	results, err := h.memories.SearchMemories(r.Context(), q)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, map[string]any{"results": results, "count": len(results)})
}

// Stats handles GET /memories/stats
func (h *MemoryHandler) Stats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, h.logger, http.StatusOK, h.memories.GetStats())
}

// Export handles GET /memories/export
func (h *MemoryHandler) Export(w http.ResponseWriter, r *http.Request) {
	data, err := h.memories.ExportMemories()
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="memories-%s.json"`, time.Now().UTC().Format("20060102-150405")))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Warn("Failed to write export", zap.Error(err))
	}
}

// Import handles POST /memories/import. The body is an export document; it
// replaces every stored memory or nothing.
func (h *MemoryHandler) Import(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, r, h.logger, pkgerrors.NewValidationError("failed to read request body").WithCause(err))
		return
	}
	if err := h.memories.ImportMemories(data); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, map[string]any{"imported": h.memories.Count()})
}
