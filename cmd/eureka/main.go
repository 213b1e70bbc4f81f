package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/eureka-corp/eureka/internal/app"
	"github.com/eureka-corp/eureka/internal/auth"
	"github.com/eureka-corp/eureka/internal/employees"
	jobmetrics "github.com/eureka-corp/eureka/internal/jobs"
	"github.com/eureka-corp/eureka/internal/observability"
	"github.com/eureka-corp/eureka/internal/platform/cache"
	"github.com/eureka-corp/eureka/internal/platform/db"
	"github.com/eureka-corp/eureka/internal/rbac"
	"github.com/eureka-corp/eureka/internal/reviews"
	"github.com/eureka-corp/eureka/internal/roles"
	"github.com/eureka-corp/eureka/internal/shared"
	"github.com/eureka-corp/eureka/internal/view"
	"github.com/eureka-corp/eureka/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "eureka_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	jobMetrics := jobmetrics.NewMetrics(metrics.Registerer())

	rbacService := rbac.NewService(dbpool)
	rbacMiddleware := rbac.Middleware{
		Loader:    rbacService,
		Logger:    logger,
		LoginPath: "/login",
		Forbidden: app.ForbiddenRenderer(logger, templates, csrfManager, metrics),
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
	jobClient := jobs.NewClient(redisOpts, jobMetrics, logger)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(dbpool)

	authService := auth.NewService(auth.NewRepository(dbpool))
	authHandler := auth.NewHandler(logger, authService, templates, sessionManager, csrfManager, rbacMiddleware)

	employeesService := employees.NewService(employees.NewRepository(dbpool), authService, auditLogger)
	employeesHandler := employees.NewHandler(logger, employeesService, templates, csrfManager, rbacMiddleware)

	reviewsService := reviews.NewService(reviews.NewRepository(dbpool), jobClient, auditLogger, logger)
	reviewsHandler := reviews.NewHandler(logger, reviewsService, templates, csrfManager, rbacMiddleware)

	rolesHandler := roles.NewHandler(logger, roles.NewService(rbacService), templates, csrfManager, rbacMiddleware)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Templates:        templates,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		RBACMiddleware:   rbacMiddleware,
		AuthHandler:      authHandler,
		EmployeesHandler: employeesHandler,
		ReviewsHandler:   reviewsHandler,
		RolesHandler:     rolesHandler,
		JobHandler:       jobs.NewHandler(inspector, logger),
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
