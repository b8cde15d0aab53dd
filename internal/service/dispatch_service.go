package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/notifyhub/tipcast/internal/domain"
	"github.com/notifyhub/tipcast/internal/gateway"
	"github.com/notifyhub/tipcast/internal/queue"
	"github.com/notifyhub/tipcast/internal/ratelimiter"
	"github.com/notifyhub/tipcast/internal/repository"
)

// RunRecord describes the most recent dispatch run for the metrics endpoint.
type RunRecord struct {
	StartedAt time.Time              `json:"startedAt"`
	Duration  string                 `json:"duration"`
	Outcome   string                 `json:"outcome"`
	Result    *domain.DispatchResult `json:"result,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

// DispatchService runs the daily personalized fan-out: rank the pending
// queue into a batch, pick one candidate per subscriber, send, then mark
// the whole batch sent in a single atomic update.
type DispatchService struct {
	candidates  repository.CandidateRepository
	subscribers repository.SubscriberRepository
	gw          gateway.Gateway
	limiter     *ratelimiter.TypeLimiters
	hooks       MetricHooks
	opts        Options
	logger      *zap.Logger
	now         func() time.Time

	// running serializes runs within the process.
	running sync.Mutex

	mu   sync.RWMutex
	last *RunRecord
}

func NewDispatchService(
	candidates repository.CandidateRepository,
	subscribers repository.SubscriberRepository,
	gw gateway.Gateway,
	limiter *ratelimiter.TypeLimiters,
	hooks MetricHooks,
	opts Options,
	logger *zap.Logger,
) *DispatchService {
	return &DispatchService{
		candidates:  candidates,
		subscribers: subscribers,
		gw:          gw,
		limiter:     limiter,
		hooks:       hooks,
		opts:        opts.withDefaults(),
		logger:      logger,
		now:         time.Now,
	}
}

// RunDaily dispatches up to maxBatchSize candidates; maxBatchSize <= 0 uses
// the configured default.
//
// Gateway failures for individual subscribers are counted, never fatal. A
// store failure before the commit aborts the run with nothing written. If the
// context is cancelled no further messages are sent; the batch stays pending
// only when nothing was attempted yet, otherwise it is still committed and the
// context error is returned. A failed commit returns domain.ErrCommitFailed: the messages
// went out but the candidates are still pending and a retry will re-send them.
func (s *DispatchService) RunDaily(ctx context.Context, maxBatchSize int) (*domain.DispatchResult, error) {
	if !s.running.TryLock() {
		return nil, domain.ErrDispatchInProgress
	}
	defer s.running.Unlock()

	if maxBatchSize <= 0 {
		maxBatchSize = s.opts.MaxBatchSize
	}

	startedAt := s.now()
	res, outcome, err := s.run(ctx, maxBatchSize)
	took := time.Since(startedAt)

	batchSize := 0
	if res != nil {
		batchSize = res.BatchSize
	}
	s.hooks.run(outcome, took, batchSize)

	rec := &RunRecord{StartedAt: startedAt.UTC(), Duration: took.String(), Outcome: outcome, Result: res}
	if err != nil {
		rec.Error = err.Error()
	}
	s.mu.Lock()
	s.last = rec
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *DispatchService) run(ctx context.Context, limit int) (*domain.DispatchResult, string, error) {
	res := &domain.DispatchResult{RunID: uuid.NewString()}
	log := s.logger.With(zap.String("run_id", res.RunID))

	pending, err := s.candidates.ListPending(ctx)
	if err != nil {
		log.Error("load pending candidates", zap.Error(err))
		return nil, OutcomeError, storeErr("list pending candidates", err)
	}
	if len(pending) == 0 {
		log.Info("no pending recommendations")
		return res, OutcomeEmpty, nil
	}

	batch := queue.Rank(pending, limit)
	res.BatchSize = len(batch)
	res.CandidateIDs = make([]string, len(batch))
	for i, c := range batch {
		res.CandidateIDs[i] = c.ID
	}

	subs, err := s.subscribers.List(ctx)
	if err != nil {
		log.Error("load subscribers", zap.Error(err))
		return nil, OutcomeError, storeErr("list subscribers", err)
	}

	log.Info("dispatch started",
		zap.Int("pending", len(pending)),
		zap.Strings("batch", res.CandidateIDs),
		zap.Int("subscribers", len(subs)),
	)

	var cancelled error
	for _, sub := range subs {
		if !sub.HasToken() {
			res.InertCount++
			continue
		}
		pick := queue.Pick(sub, batch)
		if pick == nil {
			res.SkippedCount++
			continue
		}

		if err := s.limiter.Wait(ctx, domain.TypeDailyRecommendation, 1); err != nil {
			cancelled = err
			break
		}
		if _, err := s.gw.Send(ctx, dailyMessage(s.opts, sub.DeliveryToken, pick)); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				cancelled = ctxErr
				break
			}
			res.FailedCount++
			s.hooks.failed(domain.TypeDailyRecommendation, 1)
			log.Warn("daily recommendation failed",
				zap.String("subscriber_id", sub.ID),
				zap.String("health_tip_id", pick.ID),
				zap.Error(err),
			)
			continue
		}
		res.SentCount++
		s.hooks.sent(domain.TypeDailyRecommendation, 1)
	}

	attempted := res.SentCount + res.FailedCount
	if cancelled != nil && attempted == 0 {
		log.Warn("dispatch cancelled before any send; batch left pending", zap.Error(cancelled))
		return res, OutcomeCancelled, cancelled
	}
	if cancelled != nil {
		log.Warn("dispatch cancelled; committing the attempted batch",
			zap.Int("sent", res.SentCount),
			zap.Int("failed", res.FailedCount),
			zap.Error(cancelled),
		)
	}

	// Messages are already out: commit even if the caller gave up meanwhile.
	commitCtx := context.WithoutCancel(ctx)
	if err := s.candidates.MarkSent(commitCtx, res.CandidateIDs, s.now().UTC()); err != nil {
		log.Error("commit of sent state failed; batch will be re-sent on retry",
			zap.Strings("candidate_ids", res.CandidateIDs),
			zap.Int("sent", res.SentCount),
			zap.Error(err),
		)
		return res, OutcomeCommitFailed, fmt.Errorf("%w: %v", domain.ErrCommitFailed, err)
	}
	if cancelled != nil {
		return res, OutcomeCancelled, cancelled
	}

	log.Info("dispatch complete",
		zap.Int("sent", res.SentCount),
		zap.Int("failed", res.FailedCount),
		zap.Int("skipped", res.SkippedCount),
		zap.Int("inert", res.InertCount),
	)
	return res, OutcomeSent, nil
}

// LastRun returns the record of the most recent run, or nil before the first.
func (s *DispatchService) LastRun() *RunRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return nil
	}
	rec := *s.last
	return &rec
}
