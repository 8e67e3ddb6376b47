package users

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/aegis-portal/aegis-portal/internal/identity"
	"github.com/aegis-portal/aegis-portal/internal/shared"
)

// ErrSelfDeactivate rejects an admin disabling their own account.
var ErrSelfDeactivate = errors.New("users: cannot deactivate own account")

// Service handles account management logic.
type Service struct {
	repo     RepositoryPort
	activity *shared.ActivityRecorder
	logger   *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, activity *shared.ActivityRecorder, logger *slog.Logger) *Service {
	return &Service{repo: repo, activity: activity, logger: logger}
}

// ListAccounts returns all accounts.
func (s *Service) ListAccounts(ctx context.Context) ([]Account, error) {
	return s.repo.ListAccounts(ctx)
}

// Create hashes the secret and inserts a new active account. The new user
// picks up page grants on their next request; nothing is cached ahead.
func (s *Service) Create(ctx context.Context, actorID int64, input CreateInput) (int64, error) {
	role := input.Role
	if !role.Valid() {
		role = identity.RoleUser
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Secret), bcrypt.DefaultCost)
	if err != nil {
		return 0, err
	}
	id, err := s.repo.CreateAccount(ctx, input.Username, input.FullName, string(hashed), role)
	if err != nil {
		return 0, err
	}
	s.record(ctx, actorID, "user.create", map[string]any{"user_id": id, "username": input.Username, "role": string(role)})
	return id, nil
}

// SetStatus activates or deactivates an account. Deactivation takes effect on
// the target's next request, when their session fails revalidation.
func (s *Service) SetStatus(ctx context.Context, actorID, id int64, status identity.Status) error {
	if status == identity.StatusInactive && actorID == id {
		return ErrSelfDeactivate
	}
	if err := s.repo.SetStatus(ctx, id, status); err != nil {
		return err
	}
	s.record(ctx, actorID, "user.status", map[string]any{"user_id": id, "status": string(status)})
	return nil
}

// ResetPassword replaces an account's password with a fresh hash.
func (s *Service) ResetPassword(ctx context.Context, actorID, id int64, secret string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePassword(ctx, id, string(hashed)); err != nil {
		return err
	}
	s.record(ctx, actorID, "user.password_reset", map[string]any{"user_id": id})
	return nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, meta map[string]any) {
	if s.activity == nil {
		return
	}
	if err := s.activity.Record(ctx, shared.ActivityEntry{ActorID: actorID, Action: action, Entity: "users", Meta: meta, At: time.Now().UTC()}); err != nil && s.logger != nil {
		s.logger.Warn("record activity", slog.Any("error", err))
	}
}
