package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/notifyhub/tipcast/internal/domain"
)

// Dispatcher is the part of service.DispatchService the worker drives.
type Dispatcher interface {
	RunDaily(ctx context.Context, maxBatchSize int) (*domain.DispatchResult, error)
}

// DailyWorker triggers the daily dispatch on a cron schedule. It is the
// in-process alternative to an external scheduler calling the dispatch
// endpoint; deployments use one or the other.
type DailyWorker struct {
	dispatcher Dispatcher
	spec       string
	schedule   cron.Schedule
	loc        *time.Location
	maxBatch   int
	parser     cron.Parser
	logger     *zap.Logger
}

// NewDailyWorker validates spec ("0 9 * * *", "@daily", optional leading
// seconds field) and evaluates it in loc.
func NewDailyWorker(
	dispatcher Dispatcher,
	spec string,
	loc *time.Location,
	maxBatch int,
	logger *zap.Logger,
) (*DailyWorker, error) {
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("parse daily schedule %q: %w", spec, err)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &DailyWorker{
		dispatcher: dispatcher,
		spec:       spec,
		schedule:   schedule,
		loc:        loc,
		maxBatch:   maxBatch,
		parser:     parser,
		logger:     logger,
	}, nil
}

// Next returns the first scheduled run after t.
func (w *DailyWorker) Next(t time.Time) time.Time {
	return w.schedule.Next(t.In(w.loc))
}

// Run starts the cron scheduler and blocks until ctx is cancelled, then waits
// for an in-flight dispatch to finish.
func (w *DailyWorker) Run(ctx context.Context) {
	c := cron.New(
		cron.WithParser(w.parser),
		cron.WithLocation(w.loc),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{w.logger.Sugar()})),
	)
	c.Schedule(w.schedule, cron.FuncJob(func() { w.RunOnce(ctx) }))
	c.Start()

	w.logger.Info("daily worker started",
		zap.String("schedule", w.spec),
		zap.String("timezone", w.loc.String()),
		zap.Time("next_run", w.Next(time.Now())),
	)

	<-ctx.Done()
	w.logger.Info("daily worker stopping")
	<-c.Stop().Done()
}

// RunOnce performs a single dispatch and logs its outcome.
func (w *DailyWorker) RunOnce(ctx context.Context) {
	res, err := w.dispatcher.RunDaily(ctx, w.maxBatch)
	switch {
	case errors.Is(err, domain.ErrDispatchInProgress):
		w.logger.Warn("daily dispatch skipped: previous run still in progress")
	case err != nil:
		w.logger.Error("daily dispatch failed", zap.Error(err))
	default:
		w.logger.Info("daily dispatch finished",
			zap.String("run_id", res.RunID),
			zap.Int("batch_size", res.BatchSize),
			zap.Int("sent", res.SentCount),
			zap.Int("failed", res.FailedCount),
		)
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
