package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/aegis-portal/aegis-portal/internal/access"
	"github.com/aegis-portal/aegis-portal/internal/app"
	"github.com/aegis-portal/aegis-portal/internal/auth"
	"github.com/aegis-portal/aegis-portal/internal/background"
	"github.com/aegis-portal/aegis-portal/internal/devices"
	"github.com/aegis-portal/aegis-portal/internal/identity"
	"github.com/aegis-portal/aegis-portal/internal/nav"
	"github.com/aegis-portal/aegis-portal/internal/observability"
	"github.com/aegis-portal/aegis-portal/internal/platform/cache"
	"github.com/aegis-portal/aegis-portal/internal/platform/db"
	"github.com/aegis-portal/aegis-portal/internal/reports"
	"github.com/aegis-portal/aegis-portal/internal/requests"
	"github.com/aegis-portal/aegis-portal/internal/session"
	"github.com/aegis-portal/aegis-portal/internal/shared"
	"github.com/aegis-portal/aegis-portal/internal/users"
	"github.com/aegis-portal/aegis-portal/internal/view"
	"github.com/aegis-portal/aegis-portal/jobs"
	"github.com/aegis-portal/aegis-portal/report"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "aegis_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	activity := shared.NewActivityRecorder(pool)
	identityStore := identity.NewPGStore(pool)
	sessions := session.NewManager(identityStore, activity, logger, cfg.AccessResolveTimeout)

	poller := devices.NewPoller(cfg.DeviceEndpoints, redisClient, logger)

	accessRepo := access.NewPGRepository(pool)
	resolver := access.NewResolver(accessRepo, logger, cfg.AccessResolveTimeout)
	metrics := observability.NewMetrics()
	gates := access.Gates{Resolver: resolver, Templates: templates, Logger: logger, Metrics: metrics}
	projector := nav.NewProjector(resolver, logger)

	authHandler := auth.NewHandler(logger, sessions, sessionManager, templates, csrfManager)
	permissionsHandler := access.NewHandler(logger, resolver, accessRepo, templates, csrfManager)

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo, activity, logger)
	usersHandler := users.NewHandler(logger, usersService, templates, csrfManager)

	requestsRepo := requests.NewRepository(pool)
	requestsService := requests.NewService(requestsRepo, activity, logger)
	requestsHandler := requests.NewHandler(logger, requestsService, templates, csrfManager)

	backgroundRepo := background.NewRepository(pool)
	backgroundService := background.NewService(backgroundRepo, activity, logger)
	backgroundHandler := background.NewHandler(logger, backgroundService, templates, csrfManager)

	reportsRepo := reports.NewRepository(pool)
	reportsService := reports.NewService(reportsRepo)
	pdfClient := report.NewClient(cfg.GotenbergURL)
	reportsHandler := reports.NewHandler(logger, reportsService, pdfClient, templates, csrfManager)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	queueClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init queue client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Warn("queue client close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, queueClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Templates:          templates,
		SessionManager:     sessionManager,
		Sessions:           sessions,
		CSRFManager:        csrfManager,
		Gates:              gates,
		Projector:          projector,
		Devices:            poller,
		AuthHandler:        authHandler,
		UsersHandler:       usersHandler,
		RequestsHandler:    requestsHandler,
		BackgroundHandler:  backgroundHandler,
		ReportsHandler:     reportsHandler,
		PermissionsHandler: permissionsHandler,
		JobHandler:         jobHandler,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
