package domain

// NotificationType labels every push payload and selects the rate limiter
// bucket and metric label for the send.
type NotificationType string

const (
	TypeDailyRecommendation NotificationType = "daily_recommendation"
	TypeCommentReply        NotificationType = "comment_reply"
	TypeNewHealthTip        NotificationType = "new_health_tip"
)

// AllTypes lists every notification type the service emits.
var AllTypes = []NotificationType{TypeDailyRecommendation, TypeCommentReply, TypeNewHealthTip}

// CommentReplyRequest is the inbound payload for a comment notification.
type CommentReplyRequest struct {
	HealthTipID    string `json:"healthTipId"`
	HealthTipTitle string `json:"healthTipTitle"`
	CommentID      string `json:"commentId"`
	CommentUserID  string `json:"commentUserId"`
	AuthorID       string `json:"healthTipAuthorId"`
	Content        string `json:"commentContent"`
}

func (r *CommentReplyRequest) Validate() error {
	if err := requireFields(
		"healthTipId", r.HealthTipID,
		"commentId", r.CommentID,
		"commentUserId", r.CommentUserID,
		"healthTipAuthorId", r.AuthorID,
		"commentContent", r.Content,
	); err != nil {
		return err
	}
	return requireIDs(
		"commentUserId", r.CommentUserID,
		"healthTipAuthorId", r.AuthorID,
	)
}

// NewContentRequest is the inbound payload for a new-tip broadcast.
type NewContentRequest struct {
	HealthTipID string `json:"healthTipId"`
	Title       string `json:"title"`
	Category    string `json:"category"`
	AuthorID    string `json:"authorId"`
}

func (r *NewContentRequest) Validate() error {
	return requireFields(
		"healthTipId", r.HealthTipID,
		"title", r.Title,
		"category", r.Category,
	)
}

// Reasons reported when a comment notification is not delivered.
const (
	ReasonSelfComment = "self-comment"
	ReasonNoToken     = "no-token"
)

// DispatchResult summarises one daily dispatch run. Counts are explicit so an
// empty queue, subscribers without a matching interest and partial gateway
// failures are distinguishable outcomes.
type DispatchResult struct {
	RunID        string   `json:"runId,omitempty"`
	SentCount    int      `json:"sentCount"`
	FailedCount  int      `json:"failedCount"`
	BatchSize    int      `json:"batchSize"`
	SkippedCount int      `json:"skippedCount"`
	InertCount   int      `json:"inertCount"`
	CandidateIDs []string `json:"candidateIds,omitempty"`
}

// CommentReplyResult reports the outcome of a single-recipient notification.
type CommentReplyResult struct {
	Delivered bool   `json:"delivered"`
	Reason    string `json:"reason,omitempty"`
	MessageID string `json:"messageId,omitempty"`
}

// BroadcastResult reports the outcome of a new-content fan-out.
type BroadcastResult struct {
	SuccessCount int `json:"successCount"`
	FailureCount int `json:"failureCount"`
	TotalTargets int `json:"totalTargets"`
}
