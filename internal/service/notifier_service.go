package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/notifyhub/tipcast/internal/domain"
	"github.com/notifyhub/tipcast/internal/gateway"
	"github.com/notifyhub/tipcast/internal/queue"
	"github.com/notifyhub/tipcast/internal/ratelimiter"
	"github.com/notifyhub/tipcast/internal/repository"
)

// NotifierService sends the event-driven pushes: a reply notice to a tip's
// author and the new-tip broadcast to interested subscribers.
type NotifierService struct {
	subscribers repository.SubscriberRepository
	gw          gateway.Gateway
	limiter     *ratelimiter.TypeLimiters
	hooks       MetricHooks
	opts        Options
	logger      *zap.Logger
}

func NewNotifierService(
	subscribers repository.SubscriberRepository,
	gw gateway.Gateway,
	limiter *ratelimiter.TypeLimiters,
	hooks MetricHooks,
	opts Options,
	logger *zap.Logger,
) *NotifierService {
	return &NotifierService{
		subscribers: subscribers,
		gw:          gw,
		limiter:     limiter,
		hooks:       hooks,
		opts:        opts.withDefaults(),
		logger:      logger,
	}
}

// NotifyCommentReply tells a tip's author that someone commented. Authors
// commenting on their own tip and authors without a delivery token are
// reported as not delivered, not as errors.
func (s *NotifierService) NotifyCommentReply(ctx context.Context, req domain.CommentReplyRequest) (*domain.CommentReplyResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.CommentUserID == req.AuthorID {
		s.logger.Debug("skipping self-comment", zap.String("health_tip_id", req.HealthTipID))
		return &domain.CommentReplyResult{Reason: domain.ReasonSelfComment}, nil
	}

	commenter, err := s.optionalSubscriber(ctx, req.CommentUserID)
	if err != nil {
		return nil, err
	}
	author, err := s.optionalSubscriber(ctx, req.AuthorID)
	if err != nil {
		return nil, err
	}
	if author == nil || !author.HasToken() {
		s.logger.Info("author has no delivery token", zap.String("author_id", req.AuthorID))
		return &domain.CommentReplyResult{Reason: domain.ReasonNoToken}, nil
	}

	if err := s.limiter.Wait(ctx, domain.TypeCommentReply, 1); err != nil {
		return nil, err
	}
	msg := commentReplyMessage(s.opts, author.DeliveryToken, commenter.DisplayName(anonymousCommenter), &req)
	id, err := s.gw.Send(ctx, msg)
	if err != nil {
		s.hooks.failed(domain.TypeCommentReply, 1)
		s.logger.Error("comment reply notification failed",
			zap.String("health_tip_id", req.HealthTipID),
			zap.String("comment_id", req.CommentID),
			zap.Error(err),
		)
		return nil, gatewayErr(err)
	}
	s.hooks.sent(domain.TypeCommentReply, 1)

	s.logger.Info("comment reply notification sent",
		zap.String("health_tip_id", req.HealthTipID),
		zap.String("message_id", id),
	)
	return &domain.CommentReplyResult{Delivered: true, MessageID: id}, nil
}

// NotifyNewContent broadcasts a new tip to every subscriber interested in its
// category except the publisher. Targets go out in multicast chunks; a chunk
// the gateway rejects outright counts as failures for all its tokens.
func (s *NotifierService) NotifyNewContent(ctx context.Context, req domain.NewContentRequest) (*domain.BroadcastResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	subs, err := s.subscribers.List(ctx)
	if err != nil {
		return nil, storeErr("list subscribers", err)
	}

	tokens := queue.BroadcastTargets(subs, req.Category, req.AuthorID)
	res := &domain.BroadcastResult{TotalTargets: len(tokens)}
	if len(tokens) == 0 {
		s.logger.Info("no subscribers interested in category", zap.String("category", req.Category))
		return res, nil
	}

	publisher := publisherName(subs, req.AuthorID)
	for _, chunk := range queue.Chunk(tokens, gateway.MaxMulticastTokens) {
		if err := s.limiter.Wait(ctx, domain.TypeNewHealthTip, len(chunk)); err != nil {
			return nil, err
		}

		resp, err := s.gw.SendMulticast(ctx, newTipMessage(s.opts, chunk, publisher, &req))
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			res.FailureCount += len(chunk)
			s.hooks.failed(domain.TypeNewHealthTip, len(chunk))
			s.logger.Error("multicast chunk failed", zap.Int("tokens", len(chunk)), zap.Error(err))
			continue
		}

		res.SuccessCount += resp.SuccessCount
		res.FailureCount += resp.FailureCount
		s.hooks.sent(domain.TypeNewHealthTip, resp.SuccessCount)
		s.hooks.failed(domain.TypeNewHealthTip, resp.FailureCount)
		for i, r := range resp.Responses {
			if !r.Success {
				s.logger.Warn("new tip delivery failed", zap.String("token", chunk[i]), zap.Error(r.Error))
			}
		}
	}

	s.logger.Info("new tip broadcast complete",
		zap.String("health_tip_id", req.HealthTipID),
		zap.Int("targets", res.TotalTargets),
		zap.Int("success", res.SuccessCount),
		zap.Int("failure", res.FailureCount),
	)
	return res, nil
}

// optionalSubscriber reads a profile, treating a missing one as nil.
func (s *NotifierService) optionalSubscriber(ctx context.Context, id string) (*domain.Subscriber, error) {
	sub, err := s.subscribers.GetByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("read subscriber", err)
	}
	return sub, nil
}

// publisherName resolves the publisher's display name from the already
// loaded profiles.
func publisherName(subs []*domain.Subscriber, authorID string) string {
	if authorID == "" {
		return anonymousPublisher
	}
	for _, sub := range subs {
		if sub.ID == authorID {
			return sub.DisplayName(anonymousPublisher)
		}
	}
	return anonymousPublisher
}
