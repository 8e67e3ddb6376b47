package background

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aegis-portal/aegis-portal/internal/shared"
)

// ErrCheckFinalized rejects status changes on checks no longer pending.
var ErrCheckFinalized = errors.New("background: check already finalized")

// Service handles background-check business logic.
type Service struct {
	repo     RepositoryPort
	activity *shared.ActivityRecorder
	logger   *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, activity *shared.ActivityRecorder, logger *slog.Logger) *Service {
	return &Service{repo: repo, activity: activity, logger: logger}
}

// List returns all checks.
func (s *Service) List(ctx context.Context) ([]BackgroundCheck, error) {
	return s.repo.List(ctx)
}

// ListPending returns checks awaiting review.
func (s *Service) ListPending(ctx context.Context) ([]BackgroundCheck, error) {
	return s.repo.ListPending(ctx)
}

// Create registers a new pending check.
func (s *Service) Create(ctx context.Context, actorID int64, input CreateInput) (int64, error) {
	now := time.Now().UTC()
	check := BackgroundCheck{
		SubjectName: input.SubjectName,
		DocumentNo:  input.DocumentNo,
		Status:      StatusPending,
		RequestedBy: actorID,
		CreatedAt:   now,
	}
	id, err := s.repo.Create(ctx, check)
	if err != nil {
		return 0, err
	}
	s.record(ctx, actorID, "check.create", map[string]any{"check_id": id, "document_no": input.DocumentNo})
	return id, nil
}

// Review resolves a pending check to clear or flagged. Any other outcome or
// a non-pending current state is rejected.
func (s *Service) Review(ctx context.Context, actorID, id int64, status CheckStatus) error {
	if status != StatusClear && status != StatusFlagged {
		return errors.New("background: review outcome must be clear or flagged")
	}
	current, err := s.repo.Find(ctx, id)
	if err != nil {
		return err
	}
	if current.Status != StatusPending {
		return ErrCheckFinalized
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return err
	}
	s.record(ctx, actorID, "check.review", map[string]any{"check_id": id, "outcome": string(status)})
	return nil
}

// ExpireStale expires pending checks older than maxAge and returns the
// number affected. Runs from the background sweep task.
func (s *Service) ExpireStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	count, err := s.repo.ExpirePendingBefore(ctx, time.Now().UTC().Add(-maxAge))
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.record(ctx, 0, "check.expire_sweep", map[string]any{"expired": count})
	}
	return count, nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, meta map[string]any) {
	if s.activity == nil {
		return
	}
	if err := s.activity.Record(ctx, shared.ActivityEntry{ActorID: actorID, Action: action, Entity: "background_checks", Meta: meta, At: time.Now().UTC()}); err != nil && s.logger != nil {
		s.logger.Warn("record activity", slog.Any("error", err))
	}
}
