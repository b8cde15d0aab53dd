package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/notifyhub/tipcast/internal/domain"
	"github.com/notifyhub/tipcast/internal/gateway"
	"github.com/notifyhub/tipcast/internal/service"
)

func TestDispatch_EmptyQueue(t *testing.T) {
	f := newFixture(t)
	f.addSubscriber(t, "u1", "tok-1", "", "nutrition")
	before := f.st.Writes()

	res, err := f.dispatch.RunDaily(context.Background(), 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.SentCount != 0 || res.BatchSize != 0 || res.FailedCount != 0 {
		t.Fatalf("expected zero result, got %+v", res)
	}
	if f.st.Writes() != before {
		t.Fatal("empty run must not write to the store")
	}
	if f.gw.Calls() != 0 {
		t.Fatalf("expected no gateway calls, got %d", f.gw.Calls())
	}
	if len(f.counts.outcomes) != 1 || f.counts.outcomes[0] != service.OutcomeEmpty {
		t.Fatalf("expected one empty outcome, got %v", f.counts.outcomes)
	}
}

func TestDispatch_PersonalizedFanOut(t *testing.T) {
	f := newFixture(t)
	f.addCandidate(t, "a", "nutrition", 30, baseTime)
	f.addCandidate(t, "b", "fitness", 30, baseTime.Add(time.Minute))
	f.addCandidate(t, "c", "sleep", 10, baseTime)
	f.addCandidate(t, "d", "fitness", 20, baseTime)

	f.addSubscriber(t, "u1", "tok-1", "", "fitness", "nutrition")
	f.addSubscriber(t, "u2", "tok-2", "", "fitness")
	f.addSubscriber(t, "u3", "tok-3", "", "sleep")
	f.addSubscriber(t, "u4", "", "", "nutrition")

	res, err := f.dispatch.RunDaily(context.Background(), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.BatchSize != 2 || res.SentCount != 2 || res.SkippedCount != 1 || res.InertCount != 1 || res.FailedCount != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if fmt.Sprint(res.CandidateIDs) != "[a b]" {
		t.Fatalf("expected batch [a b], got %v", res.CandidateIDs)
	}
	if res.RunID == "" {
		t.Fatal("expected a run id")
	}

	sent := f.gw.Sent()
	if len(sent) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(sent))
	}
	// Subscribers are visited in id order; u1 gets the top-ranked match.
	if sent[0].Token != "tok-1" || sent[0].Data["healthTipId"] != "a" {
		t.Fatalf("u1: unexpected message %+v", sent[0])
	}
	if sent[1].Token != "tok-2" || sent[1].Data["healthTipId"] != "b" {
		t.Fatalf("u2: unexpected message %+v", sent[1])
	}

	msg := sent[0]
	if msg.Title != service.DefaultDailyTitle || msg.Body != "Tip a" {
		t.Fatalf("unexpected title/body: %q / %q", msg.Title, msg.Body)
	}
	if msg.Data["type"] != "daily_recommendation" || msg.Data["deepLink"] != "healthtips://tip/a" ||
		msg.Data["click_action"] != "FLUTTER_NOTIFICATION_CLICK" || msg.Data["category"] != "nutrition" {
		t.Fatalf("unexpected data: %v", msg.Data)
	}
	if msg.Android.ChannelID != "recommendations" || msg.Android.Priority != gateway.PriorityNormal {
		t.Fatalf("unexpected android config: %+v", msg.Android)
	}

	for _, id := range []string{"a", "b"} {
		c := f.candidate(t, id)
		if c.Status != domain.CandidateSent || c.SentAt == nil {
			t.Fatalf("%s: expected sent with sentAt, got %+v", id, c)
		}
	}
	for _, id := range []string{"c", "d"} {
		if c := f.candidate(t, id); c.Status != domain.CandidatePending || c.SentAt != nil {
			t.Fatalf("%s: expected untouched pending, got %+v", id, c)
		}
	}
	if f.counts.sent[domain.TypeDailyRecommendation] != 2 {
		t.Fatalf("expected 2 sent in metrics, got %d", f.counts.sent[domain.TypeDailyRecommendation])
	}
}

func TestDispatch_BatchCommittedEvenWithoutMatches(t *testing.T) {
	f := newFixture(t)
	f.addCandidate(t, "a", "nutrition", 1, baseTime)
	f.addSubscriber(t, "u1", "tok-1", "", "sleep")

	res, err := f.dispatch.RunDaily(context.Background(), 5)
	if err != nil {
		t.Fatal(err)
	}
	if res.SentCount != 0 || res.SkippedCount != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if c := f.candidate(t, "a"); c.Status != domain.CandidateSent {
		t.Fatalf("every batch candidate is committed, got %s", c.Status)
	}
}

func TestDispatch_ZeroPriorityCandidateIsSelected(t *testing.T) {
	f := newFixture(t)
	f.addCandidate(t, "only", "sleep", 0, baseTime)
	f.addSubscriber(t, "u1", "tok-1", "", "sleep")

	res, err := f.dispatch.RunDaily(context.Background(), 5)
	if err != nil {
		t.Fatal(err)
	}
	if res.BatchSize != 1 || res.SentCount != 1 {
		t.Fatalf("expected the zero-priority candidate to be dispatched, got %+v", res)
	}
}

func TestDispatch_DefaultBatchSize(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 7; i++ {
		f.addCandidate(t, fmt.Sprintf("tip-%d", i), "x", i, baseTime)
	}

	res, err := f.dispatch.RunDaily(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.BatchSize != service.DefaultBatchSize {
		t.Fatalf("expected default batch of %d, got %d", service.DefaultBatchSize, res.BatchSize)
	}
	// lowest two priorities stay queued
	for _, id := range []string{"tip-0", "tip-1"} {
		if c := f.candidate(t, id); c.Status != domain.CandidatePending {
			t.Fatalf("%s: expected pending, got %s", id, c.Status)
		}
	}
}

func TestDispatch_GatewayFailureIsCounted(t *testing.T) {
	f := newFixture(t)
	f.addCandidate(t, "a", "sleep", 1, baseTime)
	f.addSubscriber(t, "u1", "tok-1", "", "sleep")
	f.addSubscriber(t, "u2", "tok-2", "", "sleep")
	f.addSubscriber(t, "u3", "tok-3", "", "sleep")
	f.gw.FailTokens["tok-2"] = true

	res, err := f.dispatch.RunDaily(context.Background(), 5)
	if err != nil {
		t.Fatalf("gateway failures must not fail the run: %v", err)
	}
	if res.SentCount != 2 || res.FailedCount != 1 {
		t.Fatalf("expected sent=2 failed=1, got %+v", res)
	}
	if len(f.gw.Sent()) != 3 {
		t.Fatal("fan-out must continue past a failed send")
	}
	if c := f.candidate(t, "a"); c.Status != domain.CandidateSent {
		t.Fatalf("expected committed, got %s", c.Status)
	}
	if f.counts.failed[domain.TypeDailyRecommendation] != 1 {
		t.Fatal("expected failure recorded in metrics")
	}
}

func TestDispatch_CommitFailure(t *testing.T) {
	f := newFixture(t)
	f.addCandidate(t, "a", "sleep", 1, baseTime)
	f.addSubscriber(t, "u1", "tok-1", "", "sleep")
	f.st.UpdateErr = errors.New("connection reset")

	_, err := f.dispatch.RunDaily(context.Background(), 5)
	if !errors.Is(err, domain.ErrCommitFailed) {
		t.Fatalf("expected ErrCommitFailed, got %v", err)
	}
	if errors.Is(err, domain.ErrStore) {
		t.Fatal("commit failure must be distinguishable from a plain store error")
	}
	if len(f.gw.Sent()) != 1 {
		t.Fatal("messages are sent before the commit")
	}
	if c := f.candidate(t, "a"); c.Status != domain.CandidatePending {
		t.Fatalf("expected candidate still pending, got %s", c.Status)
	}

	last := f.dispatch.LastRun()
	if last == nil || last.Outcome != service.OutcomeCommitFailed || last.Error == "" {
		t.Fatalf("expected commit_failed record, got %+v", last)
	}
}

func TestDispatch_StoreFailureBeforeCommit(t *testing.T) {
	f := newFixture(t)
	f.addCandidate(t, "a", "sleep", 1, baseTime)
	f.addSubscriber(t, "u1", "tok-1", "", "sleep")
	f.st.ListErr = errors.New("timeout")
	before := f.st.Writes()

	_, err := f.dispatch.RunDaily(context.Background(), 5)
	if !errors.Is(err, domain.ErrStore) {
		t.Fatalf("expected ErrStore, got %v", err)
	}
	if f.gw.Calls() != 0 || f.st.Writes() != before {
		t.Fatal("a failed profile read must abort with no sends and no writes")
	}
	if c := f.candidate(t, "a"); c.Status != domain.CandidatePending {
		t.Fatalf("expected pending, got %s", c.Status)
	}
}

func TestDispatch_QueryFailure(t *testing.T) {
	f := newFixture(t)
	f.st.QueryErr = errors.New("timeout")

	if _, err := f.dispatch.RunDaily(context.Background(), 5); !errors.Is(err, domain.ErrStore) {
		t.Fatalf("expected ErrStore, got %v", err)
	}
	if f.counts.outcomes[0] != service.OutcomeError {
		t.Fatalf("expected error outcome, got %v", f.counts.outcomes)
	}
}

func TestDispatch_CancelledMidRunLeavesBatchPending(t *testing.T) {
	f := newFixture(t)
	f.addCandidate(t, "a", "sleep", 1, baseTime)
	f.addSubscriber(t, "u1", "tok-1", "", "sleep")
	f.addSubscriber(t, "u2", "tok-2", "", "sleep")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.gw.BeforeSend = func(*gateway.Message) { cancel() }

	_, err := f.dispatch.RunDaily(ctx, 5)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(f.gw.Sent()) != 0 {
		t.Fatal("no message may go out after cancellation")
	}
	if c := f.candidate(t, "a"); c.Status != domain.CandidatePending {
		t.Fatalf("expected pending after cancelled run, got %s", c.Status)
	}
}

func TestDispatch_CancelledAfterFirstSendCommitsBatch(t *testing.T) {
	f := newFixture(t)
	f.addCandidate(t, "a", "sleep", 1, baseTime)
	f.addSubscriber(t, "u1", "tok-1", "", "sleep")
	f.addSubscriber(t, "u2", "tok-2", "", "sleep")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	calls := 0
	f.gw.BeforeSend = func(*gateway.Message) {
		calls++
		if calls == 2 {
			cancel()
		}
	}

	_, err := f.dispatch.RunDaily(ctx, 5)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if sent := f.gw.Sent(); len(sent) != 1 || sent[0].Token != "tok-1" {
		t.Fatalf("expected only tok-1 delivered, got %+v", sent)
	}
	if c := f.candidate(t, "a"); c.Status != domain.CandidateSent {
		t.Fatalf("attempted batch must be committed, got %s", c.Status)
	}

	// the next run must not re-send the same tip to u1
	f.gw.BeforeSend = nil
	res, err := f.dispatch.RunDaily(context.Background(), 5)
	if err != nil || res.BatchSize != 0 {
		t.Fatalf("expected empty follow-up run, got %+v, %v", res, err)
	}
	if len(f.gw.Sent()) != 1 {
		t.Fatalf("expected no further messages, got %d", len(f.gw.Sent()))
	}
}

func TestDispatch_MalformedProfileDoesNotBlockOthers(t *testing.T) {
	f := newFixture(t)
	f.addCandidate(t, "a", "sleep", 1, baseTime)
	f.addSubscriber(t, "u1", "tok-1", "", "sleep")
	err := f.st.Set(context.Background(), "users/u2", map[string]any{
		"fcmToken":    "tok-2",
		"preferences": map[string]any{"categories": []any{"sleep"}},
	})
	if err != nil {
		t.Fatalf("seed u2: %v", err)
	}
	if err := f.st.Set(context.Background(), "users/u3", map[string]any{"fcmToken": 7}); err != nil {
		t.Fatalf("seed u3: %v", err)
	}

	res, err := f.dispatch.RunDaily(context.Background(), 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.SentCount != 1 || res.SkippedCount != 1 {
		t.Fatalf("expected 1 sent and 1 skipped, got %+v", res)
	}
	if c := f.candidate(t, "a"); c.Status != domain.CandidateSent {
		t.Fatalf("expected sent, got %s", c.Status)
	}
}

func TestDispatch_ConcurrentRunRejected(t *testing.T) {
	f := newFixture(t)
	f.addCandidate(t, "a", "sleep", 1, baseTime)
	f.addSubscriber(t, "u1", "tok-1", "", "sleep")

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	f.gw.BeforeSend = func(*gateway.Message) {
		once.Do(func() { close(entered) })
		<-release
	}

	done := make(chan error, 1)
	go func() {
		_, err := f.dispatch.RunDaily(context.Background(), 5)
		done <- err
	}()

	<-entered
	if _, err := f.dispatch.RunDaily(context.Background(), 5); !errors.Is(err, domain.ErrDispatchInProgress) {
		t.Fatalf("expected ErrDispatchInProgress, got %v", err)
	}
	close(release)

	if err := <-done; err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	// once the first run finished the queue is empty and a new run is allowed
	res, err := f.dispatch.RunDaily(context.Background(), 5)
	if err != nil || res.BatchSize != 0 {
		t.Fatalf("expected empty follow-up run, got %+v, %v", res, err)
	}
}

func TestDispatch_LastRun(t *testing.T) {
	f := newFixture(t)
	if f.dispatch.LastRun() != nil {
		t.Fatal("expected no record before the first run")
	}
	f.addCandidate(t, "a", "sleep", 1, baseTime)

	res, err := f.dispatch.RunDaily(context.Background(), 5)
	if err != nil {
		t.Fatal(err)
	}
	last := f.dispatch.LastRun()
	if last.Outcome != service.OutcomeSent || last.Result.RunID != res.RunID {
		t.Fatalf("unexpected record: %+v", last)
	}
}
