package repository

import (
	"context"
	"time"

	"github.com/notifyhub/tipcast/internal/domain"
)

// Store collections.
const (
	CandidatesPath  = "recommendationQueue"
	SubscribersPath = "users"
	HealthTipsPath  = "healthTips"
)

// CandidateRepository defines persistence for the recommendation queue.
// The implementation in candidate_repo.go works against any store.Store;
// tests run it over store.MemoryStore.
type CandidateRepository interface {
	Upsert(ctx context.Context, c *domain.Candidate) error
	GetByID(ctx context.Context, id string) (*domain.Candidate, error)
	ListPending(ctx context.Context) ([]*domain.Candidate, error)
	// MarkSent flips every id to sent in one atomic multi-path update.
	MarkSent(ctx context.Context, ids []string, sentAt time.Time) error
}

// SubscriberRepository is read-only: profiles are owned by the app backend.
type SubscriberRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Subscriber, error)
	List(ctx context.Context) ([]*domain.Subscriber, error)
}

// HealthTipRepository reads the content items candidates point at.
type HealthTipRepository interface {
	GetByID(ctx context.Context, id string) (*domain.HealthTip, error)
}
