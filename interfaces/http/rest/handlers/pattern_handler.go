package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"thoughtweb/application/services"
	domainservices "thoughtweb/domain/services"
	pkgerrors "thoughtweb/pkg/errors"
)

// PatternHandler handles pattern detection
type PatternHandler struct {
	processor *services.ThoughtProcessor
	engine    *domainservices.PatternEngine
	logger    *zap.Logger
}

// NewPatternHandler creates a new pattern handler
func NewPatternHandler(processor *services.ThoughtProcessor, engine *domainservices.PatternEngine, logger *zap.Logger) *PatternHandler {
	return &PatternHandler{processor: processor, engine: engine, logger: logger}
}

// Detect handles POST /patterns/detect
func (h *PatternHandler) Detect(w http.ResponseWriter, r *http.Request) {
	patterns, err := h.processor.DetectPatterns(r.Context())
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, map[string]any{"patterns": patterns, "count": len(patterns)})
}

// ListPatterns handles GET /patterns
func (h *PatternHandler) ListPatterns(w http.ResponseWriter, r *http.Request) {
	patterns := h.engine.Patterns()
	respondJSON(w, h.logger, http.StatusOK, map[string]any{"patterns": patterns, "count": len(patterns)})
}

// GetPattern handles GET /patterns/{patternID}
func (h *PatternHandler) GetPattern(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "patternID")
	p, ok := h.engine.GetPattern(id)
	if !ok {
		respondError(w, r, h.logger, pkgerrors.NewNotFoundError("pattern").WithDetails(map[string]any{"id": id}))
		return
	}
	respondJSON(w, h.logger, http.StatusOK, p)
}
