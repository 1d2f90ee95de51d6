package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"thoughtweb/application/services"
	"thoughtweb/domain/core/entities"
	pkgerrors "thoughtweb/pkg/errors"
)

// InsightHandler handles insight generation and review
type InsightHandler struct {
	insights *services.InsightService
	logger   *zap.Logger
}

// NewInsightHandler creates a new insight handler
func NewInsightHandler(insights *services.InsightService, logger *zap.Logger) *InsightHandler {
	return &InsightHandler{insights: insights, logger: logger}
}

// Generate handles POST /insights. An empty body uses the default window.
func (h *InsightHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req services.InsightRequest
	if err := decodeJSON(r, &req, true); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	created, err := h.insights.GenerateInsights(r.Context(), req)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusCreated, map[string]any{"insights": created, "count": len(created)})
}

// ListInsights handles GET /insights?includeDismissed=
func (h *InsightHandler) ListInsights(w http.ResponseWriter, r *http.Request) {
	includeDismissed, err := queryBool(r, "includeDismissed")
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	insights := h.insights.GetInsights(includeDismissed)
	respondJSON(w, h.logger, http.StatusOK, map[string]any{"insights": insights, "count": len(insights)})
}

// Dismiss handles POST /insights/{insightID}/dismiss
func (h *InsightHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	h.respondInsight(w, r, h.insights.DismissInsight)
}

// MarkShown handles POST /insights/{insightID}/shown
func (h *InsightHandler) MarkShown(w http.ResponseWriter, r *http.Request) {
	h.respondInsight(w, r, h.insights.MarkShown)
}

func (h *InsightHandler) respondInsight(w http.ResponseWriter, r *http.Request, fn func(string) (*entities.MemoryInsight, bool)) {
	id := chi.URLParam(r, "insightID")
	in, ok := fn(id)
	if !ok {
		respondError(w, r, h.logger, pkgerrors.NewNotFoundError("insight").WithDetails(map[string]any{"id": id}))
		return
	}
	respondJSON(w, h.logger, http.StatusOK, in)
}
