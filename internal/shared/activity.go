package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ActivityEntry represents a record stored in activity_logs. The log is
// best-effort bookkeeping, never an authorization input.
type ActivityEntry struct {
	ActorID int64
	Action  string
	Entity  string
	Meta    map[string]any
	At      time.Time
}

// ActivityRecorder writes records into activity_logs.
type ActivityRecorder struct {
	pool *pgxpool.Pool
}

// NewActivityRecorder returns a new ActivityRecorder.
func NewActivityRecorder(pool *pgxpool.Pool) *ActivityRecorder {
	return &ActivityRecorder{pool: pool}
}

// Record persists the log entry.
func (l *ActivityRecorder) Record(ctx context.Context, entry ActivityEntry) error {
	if l == nil {
		return errors.New("activity recorder not initialised")
	}
	if entry.Action == "" || entry.Entity == "" {
		return errors.New("activity entry requires action/entity")
	}
	metaJSON, err := json.Marshal(entry.Meta)
	if err != nil {
		return err
	}
	var at any
	if !entry.At.IsZero() {
		at = entry.At
	}
	_, err = l.pool.Exec(ctx, `INSERT INTO activity_logs (actor_id, action, entity, meta, occurred_at) VALUES ($1, $2, $3, $4, COALESCE($5, NOW()))`, entry.ActorID, entry.Action, entry.Entity, metaJSON, at)
	return err
}
