package domain

import (
	"fmt"
	"strings"
	"time"
)

// CandidateStatus tracks the lifecycle of a queued recommendation.
// The only transition is pending -> sent.
type CandidateStatus string

const (
	CandidatePending CandidateStatus = "pending"
	CandidateSent    CandidateStatus = "sent"
)

// Candidate is a health tip waiting in the recommendation queue.
// JSON field names match the documents stored under recommendationQueue/<id>.
type Candidate struct {
	ID       string          `json:"healthTipId"`
	Title    string          `json:"title"`
	Category string          `json:"category"`
	Priority int             `json:"priority"`
	Status   CandidateStatus `json:"status"`
	QueuedAt time.Time       `json:"queuedAt"`
	SentAt   *time.Time      `json:"sentAt,omitempty"`
}

// HealthTip is the content item a candidate points at. Only the fields the
// dispatcher needs are decoded; likes is the popularity signal.
type HealthTip struct {
	ID       string `json:"-"`
	Title    string `json:"title"`
	Category string `json:"category"`
	AuthorID string `json:"authorId"`
	Likes    int    `json:"likes"`
}

// Priority returns the queue priority derived from the tip's like count.
func (t *HealthTip) Priority() int {
	if t.Likes < 0 {
		return 0
	}
	return t.Likes
}

// EnqueueRequest is the inbound payload for queueing a recommendation.
type EnqueueRequest struct {
	HealthTipID string `json:"healthTipId"`
	Title       string `json:"title"`
	Category    string `json:"category"`
}

func (r *EnqueueRequest) Validate() error {
	if err := requireFields(
		"healthTipId", r.HealthTipID,
		"title", r.Title,
		"category", r.Category,
	); err != nil {
		return err
	}
	return requireIDs("healthTipId", r.HealthTipID)
}

// requireFields takes name/value pairs and reports the first blank value.
func requireFields(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			return fmt.Errorf("%w: %s", ErrMissingField, pairs[i])
		}
	}
	return nil
}

// requireIDs takes name/value pairs of ids that become store path segments
// and rejects any containing a path separator.
func requireIDs(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.Contains(pairs[i+1], "/") {
			return fmt.Errorf("%w: %s must not contain '/'", ErrInvalidID, pairs[i])
		}
	}
	return nil
}
