package service_test

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/tipcast/internal/domain"
	"github.com/notifyhub/tipcast/internal/gateway"
	"github.com/notifyhub/tipcast/internal/ratelimiter"
	"github.com/notifyhub/tipcast/internal/repository"
	"github.com/notifyhub/tipcast/internal/service"
	"github.com/notifyhub/tipcast/internal/store"
)

type fixture struct {
	st       *store.MemoryStore
	gw       *gateway.MockGateway
	queue    *service.QueueService
	dispatch *service.DispatchService
	notifier *service.NotifierService
	counts   *hookCounts
}

type hookCounts struct {
	sent     map[domain.NotificationType]int
	failed   map[domain.NotificationType]int
	outcomes []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.NewMemoryStore()
	gw := gateway.NewMockGateway()
	logger := zap.NewNop()
	candidates := repository.NewCandidateRepository(st)
	subscribers := repository.NewSubscriberRepository(st, logger)
	tips := repository.NewHealthTipRepository(st)

	counts := &hookCounts{
		sent:   map[domain.NotificationType]int{},
		failed: map[domain.NotificationType]int{},
	}
	hooks := service.MetricHooks{
		OnSent:   func(tp domain.NotificationType, n int) { counts.sent[tp] += n },
		OnFailed: func(tp domain.NotificationType, n int) { counts.failed[tp] += n },
		OnRun:    func(outcome string, _ time.Duration, _ int) { counts.outcomes = append(counts.outcomes, outcome) },
	}
	opts := service.Options{}

	return &fixture{
		st:       st,
		gw:       gw,
		queue:    service.NewQueueService(candidates, tips, logger),
		dispatch: service.NewDispatchService(candidates, subscribers, gw, ratelimiter.Unlimited(), hooks, opts, logger),
		notifier: service.NewNotifierService(subscribers, gw, ratelimiter.Unlimited(), hooks, opts, logger),
		counts:   counts,
	}
}

var baseTime = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

func (f *fixture) addCandidate(t *testing.T, id, category string, priority int, queuedAt time.Time) {
	t.Helper()
	err := f.st.Set(context.Background(), "recommendationQueue/"+id, &domain.Candidate{
		ID:       id,
		Title:    "Tip " + id,
		Category: category,
		Priority: priority,
		Status:   domain.CandidatePending,
		QueuedAt: queuedAt,
	})
	if err != nil {
		t.Fatalf("seed candidate %s: %v", id, err)
	}
}

// addSubscriber stores a profile; an empty token makes it inert.
func (f *fixture) addSubscriber(t *testing.T, id, token, fullName string, categories ...string) {
	t.Helper()
	flags := map[string]any{}
	for _, c := range categories {
		flags[c] = true
	}
	profile := map[string]any{
		"preferences": map[string]any{"categories": flags},
	}
	if token != "" {
		profile["fcmToken"] = token
	}
	if fullName != "" {
		profile["fullName"] = fullName
	}
	if err := f.st.Set(context.Background(), "users/"+id, profile); err != nil {
		t.Fatalf("seed subscriber %s: %v", id, err)
	}
}

func (f *fixture) addTip(t *testing.T, id string, likes int) {
	t.Helper()
	err := f.st.Set(context.Background(), "healthTips/"+id, map[string]any{
		"title": "Tip " + id, "likes": likes, "category": "nutrition", "authorId": "author",
	})
	if err != nil {
		t.Fatalf("seed tip %s: %v", id, err)
	}
}

func (f *fixture) candidate(t *testing.T, id string) *domain.Candidate {
	t.Helper()
	c, err := f.queue.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get candidate %s: %v", id, err)
	}
	return c
}
