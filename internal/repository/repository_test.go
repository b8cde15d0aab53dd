package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/tipcast/internal/domain"
	"github.com/notifyhub/tipcast/internal/repository"
	"github.com/notifyhub/tipcast/internal/store"
)

func TestCandidateRepository_UpsertAndMarkSent(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	repo := repository.NewCandidateRepository(st)

	queuedAt := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	for _, id := range []string{"a", "b"} {
		if err := repo.Upsert(ctx, &domain.Candidate{
			ID: id, Title: "t-" + id, Category: "sleep", Status: domain.CandidatePending, QueuedAt: queuedAt,
		}); err != nil {
			t.Fatalf("upsert %s: %v", id, err)
		}
	}

	pending, err := repo.ListPending(ctx)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != "a" || !pending[0].QueuedAt.Equal(queuedAt) {
		t.Fatalf("unexpected pending list: %+v", pending)
	}

	sentAt := queuedAt.Add(time.Hour)
	if err := repo.MarkSent(ctx, []string{"a"}, sentAt); err != nil {
		t.Fatalf("mark sent: %v", err)
	}

	a, err := repo.GetByID(ctx, "a")
	if err != nil {
		t.Fatalf("get a: %v", err)
	}
	if a.Status != domain.CandidateSent || a.SentAt == nil || !a.SentAt.Equal(sentAt) {
		t.Fatalf("expected a to be sent at %v, got %+v", sentAt, a)
	}
	if a.Title != "t-a" {
		t.Fatalf("mark sent must not touch other fields, got title %q", a.Title)
	}

	pending, _ = repo.ListPending(ctx)
	if len(pending) != 1 || pending[0].ID != "b" {
		t.Fatalf("expected only b pending, got %+v", pending)
	}
}

func TestCandidateRepository_MarkSentEmptyIsNoop(t *testing.T) {
	st := store.NewMemoryStore()
	repo := repository.NewCandidateRepository(st)
	if err := repo.MarkSent(context.Background(), nil, time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Writes() != 0 {
		t.Fatalf("expected no writes, got %d", st.Writes())
	}
}

func TestCandidateRepository_GetByID_NotFound(t *testing.T) {
	repo := repository.NewCandidateRepository(store.NewMemoryStore())
	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSubscriberRepository(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	_ = st.Set(ctx, "users/u2", map[string]any{"username": "bao"})
	_ = st.Set(ctx, "users/u1", map[string]any{
		"fcmToken":    "tok-1",
		"fullName":    "An Nguyen",
		"preferences": map[string]any{"categories": map[string]any{"nutrition": true}},
	})
	repo := repository.NewSubscriberRepository(st, zap.NewNop())

	all, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 || all[0].ID != "u1" || all[1].ID != "u2" {
		t.Fatalf("unexpected subscribers: %+v", all)
	}
	if !all[0].HasToken() || !all[0].InterestedIn("nutrition") {
		t.Fatalf("u1 decoded incorrectly: %+v", all[0])
	}
	if all[1].HasToken() {
		t.Fatal("u2 has no token")
	}

	if _, err := repo.GetByID(ctx, "nobody"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSubscriberRepository_ListSkipsUndecodableProfiles(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	_ = st.Set(ctx, "users/u1", map[string]any{
		"fcmToken":    "tok-1",
		"preferences": map[string]any{"categories": map[string]any{"sleep": true}},
	})
	_ = st.Set(ctx, "users/u2", map[string]any{"fcmToken": 42})
	_ = st.Set(ctx, "users/u3", map[string]any{
		"fcmToken":    "tok-3",
		"preferences": map[string]any{"categories": []any{"sleep"}},
	})
	repo := repository.NewSubscriberRepository(st, zap.NewNop())

	all, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 || all[0].ID != "u1" || all[1].ID != "u3" {
		t.Fatalf("expected u1 and u3, got %+v", all)
	}
	if all[1].InterestedIn("sleep") {
		t.Fatal("array-shaped categories must not count as interest")
	}
}

func TestHealthTipRepository(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	_ = st.Set(ctx, "healthTips/tip-1", map[string]any{"title": "Walk", "likes": 42, "authorId": "u1"})
	repo := repository.NewHealthTipRepository(st)

	tip, err := repo.GetByID(ctx, "tip-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if tip.ID != "tip-1" || tip.Priority() != 42 || tip.AuthorID != "u1" {
		t.Fatalf("unexpected tip: %+v", tip)
	}

	st.GetErr = errors.New("connection reset")
	if _, err := repo.GetByID(ctx, "tip-1"); err == nil || errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected a store error, got %v", err)
	}
}
