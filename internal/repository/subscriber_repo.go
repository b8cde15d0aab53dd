package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/notifyhub/tipcast/internal/domain"
	"github.com/notifyhub/tipcast/internal/store"
)

type storeSubscriberRepository struct {
	st     store.Store
	logger *zap.Logger
}

func NewSubscriberRepository(st store.Store, logger *zap.Logger) SubscriberRepository {
	return &storeSubscriberRepository{st: st, logger: logger}
}

func (r *storeSubscriberRepository) GetByID(ctx context.Context, id string) (*domain.Subscriber, error) {
	raw, err := r.st.Get(ctx, SubscribersPath+"/"+id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read subscriber %s: %w", id, err)
	}
	return decodeSubscriber(id, raw)
}

// List performs the single bulk read of every profile, ordered by id.
// Profiles that cannot be decoded are logged and left out.
func (r *storeSubscriberRepository) List(ctx context.Context) ([]*domain.Subscriber, error) {
	entries, err := r.st.List(ctx, SubscribersPath)
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	out := make([]*domain.Subscriber, 0, len(entries))
	for _, e := range entries {
		s, err := decodeSubscriber(e.Key, e.Value)
		if err != nil {
			r.logger.Warn("skipping undecodable subscriber profile",
				zap.String("subscriber_id", e.Key),
				zap.Error(err),
			)
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func decodeSubscriber(id string, raw json.RawMessage) (*domain.Subscriber, error) {
	var s domain.Subscriber
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode subscriber %s: %w", id, err)
	}
	s.ID = id
	return &s, nil
}
