package service

import (
	"time"

	"github.com/notifyhub/tipcast/internal/domain"
)

// Dispatch run outcomes reported to MetricHooks.OnRun.
const (
	OutcomeSent         = "sent"
	OutcomeEmpty        = "empty"
	OutcomeCommitFailed = "commit_failed"
	OutcomeError        = "error"
	OutcomeCancelled    = "cancelled"
)

// MetricHooks decouples the services from Prometheus. Any nil hook is skipped.
type MetricHooks struct {
	OnSent   func(t domain.NotificationType, n int)
	OnFailed func(t domain.NotificationType, n int)
	OnRun    func(outcome string, took time.Duration, batchSize int)
}

func (h MetricHooks) sent(t domain.NotificationType, n int) {
	if h.OnSent != nil && n > 0 {
		h.OnSent(t, n)
	}
}

func (h MetricHooks) failed(t domain.NotificationType, n int) {
	if h.OnFailed != nil && n > 0 {
		h.OnFailed(t, n)
	}
}

func (h MetricHooks) run(outcome string, took time.Duration, batchSize int) {
	if h.OnRun != nil {
		h.OnRun(outcome, took, batchSize)
	}
}
