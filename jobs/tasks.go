// Package jobs carries the asynq task definitions and the worker that runs
// them.
package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/aegis-portal/aegis-portal/internal/background"
	"github.com/aegis-portal/aegis-portal/internal/devices"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskDevicePoll probes every configured device endpoint.
	TaskDevicePoll = "devices:poll"
	// TaskBackgroundSweep expires stale pending background checks.
	TaskBackgroundSweep = "background:sweep"
)

// BackgroundSweepPayload carries the sweep cutoff.
type BackgroundSweepPayload struct {
	MaxAgeDays int `json:"max_age_days"`
}

// NewDevicePollTask constructs the device poll task.
func NewDevicePollTask() *asynq.Task {
	return asynq.NewTask(TaskDevicePoll, nil)
}

// NewBackgroundSweepTask constructs the sweep task.
func NewBackgroundSweepTask(payload BackgroundSweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBackgroundSweep, data), nil
}

// NewDevicePollHandler returns the handler for TaskDevicePoll.
func NewDevicePollHandler(poller *devices.Poller, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		if err := poller.PollAll(ctx); err != nil {
			logger.Warn("device poll", slog.Any("error", err))
			return err
		}
		return nil
	}
}

// NewBackgroundSweepHandler returns the handler for TaskBackgroundSweep.
func NewBackgroundSweepHandler(service *background.Service, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload BackgroundSweepPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if payload.MaxAgeDays <= 0 {
			payload.MaxAgeDays = 30
		}
		count, err := service.ExpireStale(ctx, time.Duration(payload.MaxAgeDays)*24*time.Hour)
		if err != nil {
			logger.Warn("background sweep", slog.Any("error", err))
			return err
		}
		if count > 0 {
			logger.Info("background sweep expired checks", slog.Int64("count", count))
		}
		return nil
	}
}
