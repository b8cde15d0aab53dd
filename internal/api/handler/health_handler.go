package handler

import (
	"context"
	"net/http"
	"time"
)

// Pinger is satisfied by store.Store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the liveness probe. It reports the store connection
// and which delivery path is configured, never secret values.
type HealthHandler struct {
	store         Pinger
	gateway       string
	cronSecretSet bool
}

func NewHealthHandler(store Pinger, gateway string, cronSecretSet bool) *HealthHandler {
	return &HealthHandler{store: store, gateway: gateway, cronSecretSet: cronSecretSet}
}

// Health handles GET /health. A failed store ping answers 503.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	body := map[string]any{
		"status":        "ok",
		"store":         "ok",
		"gateway":       h.gateway,
		"cronSecretSet": h.cronSecretSet,
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
	}
	status := http.StatusOK
	if err := h.store.Ping(ctx); err != nil {
		body["status"] = "degraded"
		body["store"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, body)
}
