package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/notifyhub/tipcast/internal/domain"
	"github.com/notifyhub/tipcast/internal/service"
)

// NotifyHandler exposes the event-driven notifications.
type NotifyHandler struct {
	svc    *service.NotifierService
	logger *zap.Logger
}

func NewNotifyHandler(svc *service.NotifierService, logger *zap.Logger) *NotifyHandler {
	return &NotifyHandler{svc: svc, logger: logger}
}

// CommentReply handles POST /api/v1/notifications/comment-reply.
// A skipped notification (self-comment, no token) is still a 200.
func (h *NotifyHandler) CommentReply(w http.ResponseWriter, r *http.Request) {
	var req domain.CommentReplyRequest
	if err := decodeJSON(r, &req); err != nil {
		mapError(w, err)
		return
	}

	res, err := h.svc.NotifyCommentReply(r.Context(), req)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"delivered": res.Delivered,
		"reason":    res.Reason,
		"messageId": res.MessageID,
	})
}

// NewTip handles POST /api/v1/notifications/new-tip
func (h *NotifyHandler) NewTip(w http.ResponseWriter, r *http.Request) {
	var req domain.NewContentRequest
	if err := decodeJSON(r, &req); err != nil {
		mapError(w, err)
		return
	}

	res, err := h.svc.NotifyNewContent(r.Context(), req)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"successCount": res.SuccessCount,
		"failureCount": res.FailureCount,
		"totalTargets": res.TotalTargets,
	})
}
