package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/notifyhub/tipcast/internal/domain"
	"github.com/notifyhub/tipcast/internal/service"
)

// RecommendationHandler exposes the recommendation queue.
type RecommendationHandler struct {
	svc    *service.QueueService
	logger *zap.Logger
}

func NewRecommendationHandler(svc *service.QueueService, logger *zap.Logger) *RecommendationHandler {
	return &RecommendationHandler{svc: svc, logger: logger}
}

// Enqueue handles POST /api/v1/recommendations
func (h *RecommendationHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	var req domain.EnqueueRequest
	if err := decodeJSON(r, &req); err != nil {
		mapError(w, err)
		return
	}

	c, err := h.svc.Enqueue(r.Context(), req)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"message":     "Added to recommendation queue",
		"healthTipId": c.ID,
		"priority":    c.Priority,
		"queuedAt":    c.QueuedAt,
	})
}

// List handles GET /api/v1/recommendations and returns pending candidates in
// dispatch order.
func (h *RecommendationHandler) List(w http.ResponseWriter, r *http.Request) {
	pending, err := h.svc.ListPending(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}
	if pending == nil {
		pending = []*domain.Candidate{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"data":  pending,
		"total": len(pending),
	})
}

// GetByID handles GET /api/v1/recommendations/{id}
func (h *RecommendationHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}
