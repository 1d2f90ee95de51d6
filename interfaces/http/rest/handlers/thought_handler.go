package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"thoughtweb/application/services"
)

// ThoughtHandler handles thought capture
type ThoughtHandler struct {
	processor *services.ThoughtProcessor
	logger    *zap.Logger
}

// NewThoughtHandler creates a new thought handler
func NewThoughtHandler(processor *services.ThoughtProcessor, logger *zap.Logger) *ThoughtHandler {
	return &ThoughtHandler{processor: processor, logger: logger}
}

// ProcessThoughtsRequest is either one thought or a batch under "thoughts".
type ProcessThoughtsRequest struct {
	services.ThoughtInput
	Thoughts []services.ThoughtInput `json:"thoughts,omitempty"`
}

// ProcessThoughts handles POST /thoughts
func (h *ThoughtHandler) ProcessThoughts(w http.ResponseWriter, r *http.Request) {
	var req ProcessThoughtsRequest
	// The processor validates every thought.
	if err := decodeJSON(r, &req, false); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	inputs := req.Thoughts
	if len(inputs) == 0 {
		inputs = []services.ThoughtInput{req.ThoughtInput}
	}

	result, err := h.processor.ProcessThoughts(r.Context(), inputs)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusCreated, result)
}
