package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/tipcast/internal/domain"
	"github.com/notifyhub/tipcast/internal/service"
)

// DispatchHandler lets an external scheduler trigger the daily run.
type DispatchHandler struct {
	svc    *service.DispatchService
	logger *zap.Logger
}

func NewDispatchHandler(svc *service.DispatchService, logger *zap.Logger) *DispatchHandler {
	return &DispatchHandler{svc: svc, logger: logger}
}

// Dispatch handles POST /api/v1/recommendations/dispatch?max=N. The route is
// guarded by the bearer-secret middleware.
func (h *DispatchHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("max"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			mapError(w, fmt.Errorf("%w: max must be a non-negative integer", domain.ErrMissingField))
			return
		}
		limit = n
	}

	// A caller that disconnects mid-run must not leave a half-sent batch pending.
	res, err := h.svc.RunDaily(context.WithoutCancel(r.Context()), limit)
	if err != nil {
		h.logger.Error("dispatch request failed", zap.Error(err))
		mapError(w, err)
		return
	}

	msg := "Daily recommendations sent"
	if res.BatchSize == 0 {
		msg = "No recommendations to send"
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   msg,
		"result":    res,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
