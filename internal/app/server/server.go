// Package server wires configuration, stores, services, and routes into a
// runnable application. With DATABASE_URL unset it runs entirely in memory,
// which is what local development and the workflow tests use.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vivektakcode/leave-tracker/internal/domain/auth"
	"github.com/vivektakcode/leave-tracker/internal/domain/balance"
	"github.com/vivektakcode/leave-tracker/internal/domain/calendar"
	"github.com/vivektakcode/leave-tracker/internal/domain/core"
	"github.com/vivektakcode/leave-tracker/internal/domain/leave"
	"github.com/vivektakcode/leave-tracker/internal/domain/notify"
	"github.com/vivektakcode/leave-tracker/internal/platform/config"
	"github.com/vivektakcode/leave-tracker/internal/platform/db"
	"github.com/vivektakcode/leave-tracker/internal/platform/email"
	"github.com/vivektakcode/leave-tracker/internal/platform/jobs"
	"github.com/vivektakcode/leave-tracker/internal/platform/metrics"
	"github.com/vivektakcode/leave-tracker/internal/store/memory"
	"github.com/vivektakcode/leave-tracker/internal/transport/http/api"
	authhandler "github.com/vivektakcode/leave-tracker/internal/transport/http/handlers/auth"
	leavehandler "github.com/vivektakcode/leave-tracker/internal/transport/http/handlers/leave"
	notificationshandler "github.com/vivektakcode/leave-tracker/internal/transport/http/handlers/notifications"
	reportshandler "github.com/vivektakcode/leave-tracker/internal/transport/http/handlers/reports"
	workershandler "github.com/vivektakcode/leave-tracker/internal/transport/http/handlers/workers"
	"github.com/vivektakcode/leave-tracker/internal/transport/http/middleware"
)

type App struct {
	Config     config.Config
	Router     http.Handler
	Pool       *pgxpool.Pool
	Dispatcher *notify.Dispatcher
	Jobs       *jobs.Service
	Leave      *leave.Service
	Metrics    *metrics.Collector
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	var (
		pool     *pgxpool.Pool
		workers  core.Directory
		balances balance.Store
		requests leave.Store
		holidays calendar.HolidaySource
	)

	if cfg.DatabaseURL == "" {
		slog.Info("no DATABASE_URL configured, running with in-memory stores")
		mem := memory.NewStore()
		seedMemory(ctx, mem)
		workers, balances, requests, holidays = mem, mem, mem, mem
	} else {
		var err error
		pool, err = db.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if cfg.RunMigrations {
			if err := db.Migrate(ctx, pool, cfg.MigrationsDir); err != nil {
				pool.Close()
				return nil, err
			}
		}
		if cfg.RunSeed {
			if err := db.Seed(ctx, pool, cfg); err != nil {
				pool.Close()
				return nil, err
			}
		}
		workers = core.NewStore(pool)
		balances = balance.NewPostgres(pool)
		requests = leave.NewPostgresStore(pool)
		holidays = calendar.NewStore(pool)
	}

	collector := metrics.New()
	dispatcher := notify.New(email.New(cfg))
	calendarSvc := calendar.NewService(calendar.NewCachedSource(holidays, cfg.HolidayRefreshInterval))
	leaveSvc := leave.NewService(requests, workers, balances, calendarSvc, dispatcher)
	jobsSvc := jobs.New(leaveSvc, collector, cfg)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(collector))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Auth(cfg.JWTSecret))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if pool != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := pool.Ping(ctx); err != nil {
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled {
		router.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			api.Success(w, collector.Snapshot(), middleware.GetRequestID(r.Context()))
		})
	}

	router.Route("/api/v1", func(r chi.Router) {
		authhandler.NewHandler(workers, dispatcher, cfg.JWTSecret).RegisterRoutes(r)
		workershandler.NewHandler(workers, balances, leaveSvc).RegisterRoutes(r)
		leavehandler.NewHandler(leaveSvc, requests).RegisterRoutes(r)
		notificationshandler.NewHandler(dispatcher, jobsSvc).RegisterRoutes(r)
		reportshandler.NewHandler(requests).RegisterRoutes(r)
	})

	return &App{
		Config:     cfg,
		Router:     router,
		Pool:       pool,
		Dispatcher: dispatcher,
		Jobs:       jobsSvc,
		Leave:      leaveSvc,
		Metrics:    collector,
	}, nil
}

// Start launches the dispatcher pump and the sweep schedulers.
func (a *App) Start(ctx context.Context) {
	a.Dispatcher.Start(ctx)
	a.Jobs.Start(ctx)
}

func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
	}
}

func Run() error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	app.Start(ctx)

	slog.Info("leave tracker listening", "addr", cfg.Addr, "env", cfg.Environment)
	return http.ListenAndServe(cfg.Addr, app.Router)
}

// seedMemory provisions the same demo dataset the database seed does.
func seedMemory(ctx context.Context, mem *memory.Store) {
	adminHash, _ := auth.HashPassword("admin123")
	adminID, _ := mem.CreateWorker(ctx, core.Worker{
		Name: "Admin", Email: "admin@example.com", Jurisdiction: "IN",
		Role: auth.RoleAdmin, PasswordHash: adminHash,
	})

	approverHash, _ := auth.HashPassword("approver123")
	approverID, _ := mem.CreateWorker(ctx, core.Worker{
		Name: "Maya Krishnan", Email: "maya@example.com", Jurisdiction: "IN",
		Role: auth.RoleApprover, ApproverID: &adminID, PasswordHash: approverHash,
	})

	workerHash, _ := auth.HashPassword("worker123")
	for _, w := range []core.Worker{
		{Name: "Arjun Rao", Email: "arjun@example.com"},
		{Name: "Priya Nair", Email: "priya@example.com"},
	} {
		w.Jurisdiction = "IN"
		w.Role = auth.RoleWorker
		w.ApproverID = &approverID
		w.PasswordHash = workerHash
		_, _ = mem.CreateWorker(ctx, w)
	}

	year := time.Now().Year()
	for _, y := range []int{year, year + 1} {
		mem.AddHoliday("IN", time.Date(y, time.January, 26, 0, 0, 0, 0, time.UTC))
		mem.AddHoliday("IN", time.Date(y, time.August, 15, 0, 0, 0, 0, time.UTC))
		mem.AddHoliday("IN", time.Date(y, time.October, 2, 0, 0, 0, 0, time.UTC))
	}
}
