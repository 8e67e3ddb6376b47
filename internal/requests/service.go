package requests

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aegis-portal/aegis-portal/internal/shared"
)

// ErrRequestFinalized rejects status changes on closed or rejected requests.
var ErrRequestFinalized = errors.New("requests: request already finalized")

// Service handles service-request business logic.
type Service struct {
	repo     RepositoryPort
	activity *shared.ActivityRecorder
	logger   *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, activity *shared.ActivityRecorder, logger *slog.Logger) *Service {
	return &Service{repo: repo, activity: activity, logger: logger}
}

// List returns all requests.
func (s *Service) List(ctx context.Context) ([]ServiceRequest, error) {
	return s.repo.List(ctx)
}

// Create registers a new open request with a generated number.
func (s *Service) Create(ctx context.Context, actorID int64, input CreateInput) (int64, error) {
	now := time.Now().UTC()
	req := ServiceRequest{
		Number:        newRequestNumber(now),
		RequesterName: input.RequesterName,
		Category:      input.Category,
		Description:   input.Description,
		Status:        StatusOpen,
		CreatedBy:     actorID,
		CreatedAt:     now,
	}
	id, err := s.repo.Create(ctx, req)
	if err != nil {
		return 0, err
	}
	s.record(ctx, actorID, "request.create", map[string]any{"request_id": id, "number": req.Number, "category": req.Category})
	return id, nil
}

// UpdateStatus moves a request through its lifecycle. Closed and rejected
// are terminal.
func (s *Service) UpdateStatus(ctx context.Context, actorID, id int64, status RequestStatus) error {
	if !status.Valid() {
		return errors.New("requests: unknown status")
	}
	current, err := s.repo.Find(ctx, id)
	if err != nil {
		return err
	}
	if current.Status == StatusClosed || current.Status == StatusRejected {
		return ErrRequestFinalized
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return err
	}
	s.record(ctx, actorID, "request.status", map[string]any{"request_id": id, "from": string(current.Status), "to": string(status)})
	return nil
}

func newRequestNumber(now time.Time) string {
	return "SR-" + now.Format("20060102") + "-" + strings.ToUpper(uuid.NewString()[:8])
}

func (s *Service) record(ctx context.Context, actorID int64, action string, meta map[string]any) {
	if s.activity == nil {
		return
	}
	if err := s.activity.Record(ctx, shared.ActivityEntry{ActorID: actorID, Action: action, Entity: "service_requests", Meta: meta, At: time.Now().UTC()}); err != nil && s.logger != nil {
		s.logger.Warn("record activity", slog.Any("error", err))
	}
}
