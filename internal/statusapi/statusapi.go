// Package statusapi serves the local read-mostly HTTP API of the client agent:
// sync status, streak, today's intakes, rule checks and Prometheus metrics.
package statusapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/and161185/medizone/internal/connectivity"
	"github.com/and161185/medizone/internal/errs"
	"github.com/and161185/medizone/internal/model"
	"github.com/and161185/medizone/internal/reconcile"
)

// Tracker answers the read queries.
type Tracker interface {
	Streak(now time.Time) int
	TodayIntakes(now time.Time) []model.Intake
	CheckRules(medicationID string, dose float64, now time.Time) (model.RuleCheckResult, error)
}

// Syncer is the reconciler surface the API needs.
type Syncer interface {
	Run(ctx context.Context) (reconcile.Result, error)
	Status() reconcile.Status
}

// Config wires the handler.
type Config struct {
	Tracker Tracker
	Sync    Syncer
	Signal  connectivity.Signal
	// Gatherer backs /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
	Version  string
	Now      func() time.Time
	Log      *zap.Logger
}

type healthBody struct {
	Status string `json:"status"`
	Online bool   `json:"online"`
}

type statusBody struct {
	reconcile.Status
	Online bool `json:"online"`
}

type streakBody struct {
	Days int `json:"days"`
}

type intakesBody struct {
	Intakes []model.Intake `json:"intakes"`
}

type checkInput struct {
	ID   string  `path:"id"`
	Dose float64 `query:"dose" minimum:"0" doc:"proposed dose; 0 means the standard dose"`
}

// New returns the API handler.
func New(cfg Config) http.Handler {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(requestLog(cfg.Log))
	if cfg.Gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	hcfg := huma.DefaultConfig("medizone agent", cfg.Version)
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, "/v1")

	registerHealth(group, cfg)
	registerStatus(group, cfg)
	registerStreak(group, cfg)
	registerToday(group, cfg)
	registerCheck(group, cfg)
	registerSync(group, cfg)
	return router
}

func requestLog(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("http",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("dur", time.Since(start)),
			)
		})
	}
}

func registerHealth(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Liveness and connectivity",
	}, func(context.Context, *struct{}) (*struct{ Body healthBody }, error) {
		return &struct{ Body healthBody }{Body: healthBody{Status: "ok", Online: online(cfg)}}, nil
	})
}

func registerStatus(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "sync-status",
		Method:      http.MethodGet,
		Path:        "/status",
		Summary:     "Reconciliation status",
	}, func(context.Context, *struct{}) (*struct{ Body statusBody }, error) {
		return &struct{ Body statusBody }{Body: statusBody{Status: cfg.Sync.Status(), Online: online(cfg)}}, nil
	})
}

func registerStreak(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "streak",
		Method:      http.MethodGet,
		Path:        "/streak",
		Summary:     "Consecutive days with at least one intake",
	}, func(context.Context, *struct{}) (*struct{ Body streakBody }, error) {
		return &struct{ Body streakBody }{Body: streakBody{Days: cfg.Tracker.Streak(cfg.Now())}}, nil
	})
}

func registerToday(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "intakes-today",
		Method:      http.MethodGet,
		Path:        "/intakes/today",
		Summary:     "Intakes of the current calendar day",
	}, func(context.Context, *struct{}) (*struct{ Body intakesBody }, error) {
		in := cfg.Tracker.TodayIntakes(cfg.Now())
		if in == nil {
			in = []model.Intake{}
		}
		return &struct{ Body intakesBody }{Body: intakesBody{Intakes: in}}, nil
	})
}

func registerCheck(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "check-rules",
		Method:      http.MethodGet,
		Path:        "/medications/{id}/check",
		Summary:     "Evaluate dosing rules for a proposed intake",
		Errors:      []int{http.StatusNotFound},
	}, func(_ context.Context, in *checkInput) (*struct{ Body model.RuleCheckResult }, error) {
		res, err := cfg.Tracker.CheckRules(in.ID, in.Dose, cfg.Now())
		if errors.Is(err, errs.ErrNotFound) {
			return nil, huma.Error404NotFound("unknown medication", err)
		}
		if err != nil {
			return nil, huma.Error500InternalServerError("check rules", err)
		}
		return &struct{ Body model.RuleCheckResult }{Body: res}, nil
	})
}

func registerSync(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "sync",
		Method:      http.MethodPost,
		Path:        "/sync",
		Summary:     "Run a reconciliation pass now",
		Errors:      []int{http.StatusConflict, http.StatusServiceUnavailable},
	}, func(ctx context.Context, _ *struct{}) (*struct{ Body reconcile.Result }, error) {
		res, err := cfg.Sync.Run(ctx)
		switch {
		case err == nil:
			return &struct{ Body reconcile.Result }{Body: res}, nil
		case errors.Is(err, errs.ErrSyncInProgress):
			return nil, huma.Error409Conflict("sync already running")
		case errors.Is(err, errs.ErrRemoteUnavailable), errors.Is(err, errs.ErrQueueUnavailable):
			return nil, huma.Error503ServiceUnavailable(err.Error())
		default:
			return nil, huma.Error500InternalServerError("sync", err)
		}
	})
}

func online(cfg Config) bool {
	return cfg.Signal != nil && cfg.Signal.Online()
}
