package handler

import (
	"net/http"

	"github.com/notifyhub/tipcast/internal/service"
)

// MetricsHandler serves a human-readable JSON snapshot of the queue and the
// most recent dispatch. Raw Prometheus metrics are served at /metrics.
type MetricsHandler struct {
	queue    *service.QueueService
	dispatch *service.DispatchService
}

func NewMetricsHandler(queue *service.QueueService, dispatch *service.DispatchService) *MetricsHandler {
	return &MetricsHandler{queue: queue, dispatch: dispatch}
}

// GetMetrics handles GET /api/v1/metrics
func (h *MetricsHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	pending, err := h.queue.ListPending(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}

	byCategory := make(map[string]int)
	for _, c := range pending {
		byCategory[c.Category]++
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"pending": map[string]any{
			"total":      len(pending),
			"byCategory": byCategory,
		},
		"lastDispatch": h.dispatch.LastRun(),
	})
}
