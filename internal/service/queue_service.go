package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/tipcast/internal/domain"
	"github.com/notifyhub/tipcast/internal/queue"
	"github.com/notifyhub/tipcast/internal/repository"
)

// QueueService manages the recommendation queue. It is the only writer of
// pending candidates; the dispatcher only flips them to sent.
type QueueService struct {
	candidates repository.CandidateRepository
	tips       repository.HealthTipRepository
	logger     *zap.Logger
	now        func() time.Time
}

func NewQueueService(
	candidates repository.CandidateRepository,
	tips repository.HealthTipRepository,
	logger *zap.Logger,
) *QueueService {
	return &QueueService{candidates: candidates, tips: tips, logger: logger, now: time.Now}
}

// Enqueue inserts or replaces the pending candidate for a health tip. The
// priority is the tip's current like count. Re-enqueuing an id, including one
// already sent, starts it over as a fresh pending candidate.
func (s *QueueService) Enqueue(ctx context.Context, req domain.EnqueueRequest) (*domain.Candidate, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	tip, err := s.tips.GetByID(ctx, req.HealthTipID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: health tip %s", domain.ErrNotFound, req.HealthTipID)
	}
	if err != nil {
		return nil, storeErr("read health tip", err)
	}

	c := &domain.Candidate{
		ID:       req.HealthTipID,
		Title:    req.Title,
		Category: req.Category,
		Priority: tip.Priority(),
		Status:   domain.CandidatePending,
		QueuedAt: s.now().UTC(),
	}
	if err := s.candidates.Upsert(ctx, c); err != nil {
		return nil, storeErr("persist candidate", err)
	}

	s.logger.Info("recommendation queued",
		zap.String("health_tip_id", c.ID),
		zap.String("category", c.Category),
		zap.Int("priority", c.Priority),
	)
	return c, nil
}

func (s *QueueService) Get(ctx context.Context, id string) (*domain.Candidate, error) {
	c, err := s.candidates.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr("read candidate", err)
	}
	return c, nil
}

// ListPending returns every pending candidate in dispatch order.
func (s *QueueService) ListPending(ctx context.Context) ([]*domain.Candidate, error) {
	pending, err := s.candidates.ListPending(ctx)
	if err != nil {
		return nil, storeErr("list pending candidates", err)
	}
	return queue.Rank(pending, len(pending)), nil
}
