package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/notifyhub/tipcast/internal/domain"
	"github.com/notifyhub/tipcast/internal/store"
)

type storeCandidateRepository struct {
	st store.Store
}

// NewCandidateRepository returns a CandidateRepository backed by st.
func NewCandidateRepository(st store.Store) CandidateRepository {
	return &storeCandidateRepository{st: st}
}

func (r *storeCandidateRepository) Upsert(ctx context.Context, c *domain.Candidate) error {
	if err := r.st.Set(ctx, candidatePath(c.ID), c); err != nil {
		return fmt.Errorf("write candidate %s: %w", c.ID, err)
	}
	return nil
}

func (r *storeCandidateRepository) GetByID(ctx context.Context, id string) (*domain.Candidate, error) {
	raw, err := r.st.Get(ctx, candidatePath(id))
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read candidate %s: %w", id, err)
	}
	return decodeCandidate(id, raw)
}

func (r *storeCandidateRepository) ListPending(ctx context.Context) ([]*domain.Candidate, error) {
	entries, err := r.st.Query(ctx, CandidatesPath, "status", string(domain.CandidatePending))
	if err != nil {
		return nil, fmt.Errorf("query pending candidates: %w", err)
	}
	out := make([]*domain.Candidate, 0, len(entries))
	for _, e := range entries {
		c, err := decodeCandidate(e.Key, e.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *storeCandidateRepository) MarkSent(ctx context.Context, ids []string, sentAt time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	updates := make(map[string]any, 2*len(ids))
	for _, id := range ids {
		updates[candidatePath(id)+"/status"] = domain.CandidateSent
		updates[candidatePath(id)+"/sentAt"] = sentAt
	}
	return r.st.Update(ctx, updates)
}

func candidatePath(id string) string { return CandidatesPath + "/" + id }

// decodeCandidate reads a stored document; the key wins over a missing or
// stale healthTipId field.
func decodeCandidate(id string, raw json.RawMessage) (*domain.Candidate, error) {
	var c domain.Candidate
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode candidate %s: %w", id, err)
	}
	c.ID = id
	return &c, nil
}
