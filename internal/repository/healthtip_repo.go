package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/notifyhub/tipcast/internal/domain"
	"github.com/notifyhub/tipcast/internal/store"
)

type storeHealthTipRepository struct {
	st store.Store
}

func NewHealthTipRepository(st store.Store) HealthTipRepository {
	return &storeHealthTipRepository{st: st}
}

func (r *storeHealthTipRepository) GetByID(ctx context.Context, id string) (*domain.HealthTip, error) {
	raw, err := r.st.Get(ctx, HealthTipsPath+"/"+id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read health tip %s: %w", id, err)
	}
	var t domain.HealthTip
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("decode health tip %s: %w", id, err)
	}
	t.ID = id
	return &t, nil
}
