// Package app is the composition root shared by the HTTP server and the
// tipctl CLI: it turns a config.Config into wired services.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/notifyhub/tipcast/internal/api"
	"github.com/notifyhub/tipcast/internal/config"
	"github.com/notifyhub/tipcast/internal/db"
	"github.com/notifyhub/tipcast/internal/gateway"
	"github.com/notifyhub/tipcast/internal/metrics"
	"github.com/notifyhub/tipcast/internal/ratelimiter"
	"github.com/notifyhub/tipcast/internal/repository"
	"github.com/notifyhub/tipcast/internal/service"
	"github.com/notifyhub/tipcast/internal/store"
	"github.com/notifyhub/tipcast/internal/worker"
)

// App holds the process-wide clients and services.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Store    store.Store
	Registry *prometheus.Registry
	Queue    *service.QueueService
	Dispatch *service.DispatchService
	Notifier *service.NotifierService
}

// NewLogger builds the production zap logger at the given level.
func NewLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse LOG_LEVEL: %w", err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}

// New opens the store (running migrations for postgres), builds the gateway
// and wires the services. Close releases the store.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	st, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	gw, err := NewGateway(cfg, logger)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	onSent, onFailed, onRun := metrics.New(reg).ServiceHooks()
	hooks := service.MetricHooks{OnSent: onSent, OnFailed: onFailed, OnRun: onRun}

	candidates := repository.NewCandidateRepository(st)
	subscribers := repository.NewSubscriberRepository(st, logger)
	tips := repository.NewHealthTipRepository(st)
	limiter := ratelimiter.New(cfg.RateLimit)
	opts := service.Options{
		MaxBatchSize:   cfg.MaxBatchSize,
		DailyTitle:     cfg.DailyTitle,
		DeepLinkScheme: cfg.DeepLinkScheme,
	}

	return &App{
		Config:   cfg,
		Logger:   logger,
		Store:    st,
		Registry: reg,
		Queue:    service.NewQueueService(candidates, tips, logger),
		Dispatch: service.NewDispatchService(candidates, subscribers, gw, limiter, hooks, opts, logger),
		Notifier: service.NewNotifierService(subscribers, gw, limiter, hooks, opts, logger),
	}, nil
}

// OpenStore connects the configured backend.
func OpenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		pool, err := db.Connect(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := db.Migrate(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info("database migrations applied")
		return store.NewPgStore(pool), nil
	case config.StoreBolt:
		st, err := store.NewBoltStore(cfg.BoltPath)
		if err != nil {
			return nil, fmt.Errorf("open bolt store: %w", err)
		}
		logger.Info("bolt store opened", zap.String("path", cfg.BoltPath))
		return st, nil
	case config.StoreMemory:
		logger.Warn("using in-memory store; data is lost on exit")
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// NewGateway builds the configured delivery gateway.
func NewGateway(cfg *config.Config, logger *zap.Logger) (gateway.Gateway, error) {
	switch cfg.Gateway {
	case config.GatewayFCM:
		return gateway.NewFCMGateway(gateway.FCMConfig{
			ProjectID:   cfg.FirebaseProjectID,
			ClientEmail: cfg.FirebaseClientEmail,
			PrivateKey:  cfg.FirebasePrivateKey,
			Endpoint:    cfg.FCMEndpoint,
			TokenURL:    cfg.FCMTokenURL,
			Timeout:     cfg.GatewayTimeout,
			Concurrency: cfg.GatewayConcurrency,
		}, logger)
	case config.GatewayWebhook:
		return gateway.NewWebhookGateway(cfg.WebhookURL, cfg.GatewayTimeout, cfg.GatewayConcurrency), nil
	case config.GatewayLog:
		return gateway.NewLogGateway(logger), nil
	default:
		return nil, fmt.Errorf("unknown gateway %q", cfg.Gateway)
	}
}

func (a *App) Router() http.Handler {
	return api.NewRouter(api.Deps{
		Queue:          a.Queue,
		Dispatch:       a.Dispatch,
		Notifier:       a.Notifier,
		Store:          a.Store,
		Gatherer:       a.Registry,
		GatewayName:    a.Config.Gateway,
		CronSecret:     a.Config.CronSecret,
		AllowedOrigins: a.Config.CORSAllowedOrigins,
		Logger:         a.Logger,
	})
}

// DailyWorker returns the cron trigger for the configured schedule.
func (a *App) DailyWorker() (*worker.DailyWorker, error) {
	return worker.NewDailyWorker(a.Dispatch, a.Config.DailySchedule, a.Config.Location(), a.Config.MaxBatchSize, a.Logger)
}

func (a *App) Close() error {
	return a.Store.Close()
}
