package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/aegis-portal/aegis-portal/internal/app"
	"github.com/aegis-portal/aegis-portal/internal/background"
	"github.com/aegis-portal/aegis-portal/internal/devices"
	"github.com/aegis-portal/aegis-portal/internal/platform/cache"
	"github.com/aegis-portal/aegis-portal/internal/platform/db"
	"github.com/aegis-portal/aegis-portal/internal/shared"
	"github.com/aegis-portal/aegis-portal/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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
		logger.Error("connect database", slog.Any("error", err))
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

	activity := shared.NewActivityRecorder(pool)
	backgroundRepo := background.NewRepository(pool)
	backgroundService := background.NewService(backgroundRepo, activity, logger)
	poller := devices.NewPoller(cfg.DeviceEndpoints, redisClient, logger)

	sweepTask, err := jobs.NewBackgroundSweepTask(jobs.BackgroundSweepPayload{MaxAgeDays: cfg.BackgroundSweepMaxAgeDays})
	if err != nil {
		logger.Error("build sweep task", slog.Any("error", err))
		os.Exit(1)
	}

	cron := []jobs.CronRegistration{
		{Spec: "@every " + cfg.BackgroundSweepInterval.String(), Task: sweepTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
	}
	if len(cfg.DeviceEndpoints) > 0 {
		cron = append(cron, jobs.CronRegistration{
			Spec: "@every " + cfg.DevicePollInterval.String(),
			Task: jobs.NewDevicePollTask(),
		})
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskDevicePoll, Handler: jobs.NewDevicePollHandler(poller, logger)},
			{Type: jobs.TaskBackgroundSweep, Handler: jobs.NewBackgroundSweepHandler(backgroundService, logger)},
		},
		Cron: cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
