package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/notifyhub/tipcast/internal/api/handler"
	apimw "github.com/notifyhub/tipcast/internal/api/middleware"
	"github.com/notifyhub/tipcast/internal/service"
)

// Deps is everything the HTTP surface needs.
type Deps struct {
	Queue          *service.QueueService
	Dispatch       *service.DispatchService
	Notifier       *service.NotifierService
	Store          handler.Pinger
	Gatherer       prometheus.Gatherer
	GatewayName    string
	CronSecret     string
	AllowedOrigins []string
	Logger         *zap.Logger
}

// NewRouter wires the chi router, attaches all middleware, and registers
// every route. It is the single source of truth for the HTTP surface area.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	// --- global middleware (applied to every route) ---
	r.Use(chimw.Recoverer)          // recover panics, return 500
	r.Use(chimw.RealIP)             // trust X-Forwarded-For / X-Real-IP
	r.Use(chimw.RequestSize(1<<20)) // 1 MB max request body
	r.Use(apimw.CORS(d.AllowedOrigins))
	r.Use(apimw.CorrelationID)
	r.Use(apimw.RequestLogger(d.Logger))

	// --- handler instances ---
	rh := handler.NewRecommendationHandler(d.Queue, d.Logger)
	dh := handler.NewDispatchHandler(d.Dispatch, d.Logger)
	nh := handler.NewNotifyHandler(d.Notifier, d.Logger)
	mh := handler.NewMetricsHandler(d.Queue, d.Dispatch)
	hh := handler.NewHealthHandler(d.Store, d.GatewayName, d.CronSecret != "")

	// --- routes ---
	r.Get("/health", hh.Health)

	// Raw Prometheus scrape endpoint
	r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		// /dispatch is registered before /{id} so the literal is never read as an id.
		r.With(apimw.BearerSecret(d.CronSecret)).Post("/recommendations/dispatch", dh.Dispatch)
		r.Post("/recommendations", rh.Enqueue)
		r.Get("/recommendations", rh.List)
		r.Get("/recommendations/{id}", rh.GetByID)

		r.Post("/notifications/comment-reply", nh.CommentReply)
		r.Post("/notifications/new-tip", nh.NewTip)

		// JSON metrics snapshot
		r.Get("/metrics", mh.GetMetrics)
	})

	return r
}
