// Package session owns the lifecycle of the current authenticated subject.
// It is the only writer of the durable subject slot inside the shared
// session payload.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/aegis-portal/aegis-portal/internal/identity"
	"github.com/aegis-portal/aegis-portal/internal/shared"
)

// State describes where subject resolution currently stands.
type State int

// Resolution states. Consumers must render nothing privileged until the
// state is terminal (Authenticated or Anonymous).
const (
	StateUnresolved State = iota
	StateResolving
	StateAuthenticated
	StateAnonymous
)

// Terminal reports whether the state allows downstream rendering.
func (s State) Terminal() bool {
	return s == StateAuthenticated || s == StateAnonymous
}

// Resolution is the outcome of resolving the session subject. Subject is
// non-nil only when State is StateAuthenticated.
type Resolution struct {
	State   State
	Subject *identity.Subject
	// Err carries the store failure behind an Anonymous downgrade so
	// operators can tell an outage from a plain logged-out session. The
	// rendered outcome is identical either way.
	Err error
}

// Manager resolves, establishes and tears down the authenticated subject.
type Manager struct {
	store    identity.Store
	activity *shared.ActivityRecorder
	logger   *slog.Logger
	timeout  time.Duration
}

// NewManager constructs a Manager. The activity recorder may be nil; its
// writes are best-effort bookkeeping and never gate a transition.
func NewManager(store identity.Store, activity *shared.ActivityRecorder, logger *slog.Logger, timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Manager{store: store, activity: activity, logger: logger, timeout: timeout}
}

// Resolve reconciles the durable subject slot against the identity store.
// The cached snapshot is trusted only for its ID: role and status are always
// re-derived from the store, so a deactivated account can never ride a stale
// cache back in.
func (m *Manager) Resolve(ctx context.Context, sess *shared.Session) Resolution {
	if sess == nil {
		return Resolution{State: StateAnonymous}
	}
	snapshot := sess.Subject()
	if snapshot == "" {
		return Resolution{State: StateAnonymous}
	}

	cached, err := decodeSnapshot(snapshot)
	if err != nil {
		sess.ClearSubject()
		return Resolution{State: StateAnonymous}
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	subject, err := m.store.FindActiveByID(ctx, cached.ID)
	if err != nil {
		sess.ClearSubject()
		if errors.Is(err, shared.ErrNotFound) {
			// Session expired: a normal flow, not an alarming error.
			return Resolution{State: StateAnonymous}
		}
		if m.logger != nil {
			m.logger.Warn("session resolve store failure", slog.Any("error", err))
		}
		return Resolution{State: StateAnonymous, Err: err}
	}

	sess.SetSubject(encodeSnapshot(subject))
	m.touchLastLogin(ctx, subject.ID)
	return Resolution{State: StateAuthenticated, Subject: subject}
}

// Login authenticates credentials and establishes the subject. All failure
// modes surface as shared.ErrInvalidCredentials; the durable slot is left
// untouched on failure.
func (m *Manager) Login(ctx context.Context, sess *shared.Session, username, secret string) (*identity.Subject, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	subject, err := m.store.Authenticate(ctx, username, secret)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidCredentials) || errors.Is(err, identity.ErrInactiveAccount) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}

	if sess != nil {
		sess.SetSubject(encodeSnapshot(subject))
	}
	m.touchLastLogin(ctx, subject.ID)
	m.recordActivity(ctx, subject.ID, "login")
	return subject, nil
}

// Logout clears the durable slot unconditionally. Bookkeeping writes never
// block or fail the transition.
func (m *Manager) Logout(ctx context.Context, sess *shared.Session) {
	var actorID int64
	if sess != nil {
		if cached, err := decodeSnapshot(sess.Subject()); err == nil && cached != nil {
			actorID = cached.ID
		}
		sess.ClearSubject()
	}
	m.recordActivity(ctx, actorID, "logout")
}

// Refresh re-fetches the current subject and rewrites the slot. Any failure
// behaves like a failed revalidation and forces Anonymous.
func (m *Manager) Refresh(ctx context.Context, sess *shared.Session) Resolution {
	return m.Resolve(ctx, sess)
}

func (m *Manager) touchLastLogin(ctx context.Context, id int64) {
	if err := m.store.TouchLastLogin(ctx, id); err != nil && m.logger != nil {
		m.logger.Warn("touch last login", slog.Any("error", err), slog.Int64("subject_id", id))
	}
}

func (m *Manager) recordActivity(ctx context.Context, actorID int64, action string) {
	if m.activity == nil || actorID == 0 {
		return
	}
	entry := shared.ActivityEntry{ActorID: actorID, Action: action, Entity: "session"}
	if err := m.activity.Record(ctx, entry); err != nil && m.logger != nil {
		m.logger.Warn("record session activity", slog.Any("error", err))
	}
}

// snapshot is the JSON shape stored in the durable subject slot. It omits
// the password hash and is never trusted for role or status.
type snapshot struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

func encodeSnapshot(subject *identity.Subject) string {
	data, _ := json.Marshal(snapshot{
		ID:       subject.ID,
		Username: subject.Username,
		FullName: subject.FullName,
		Role:     string(subject.Role),
	})
	return string(data)
}

func decodeSnapshot(raw string) (*snapshot, error) {
	if raw == "" {
		return nil, errors.New("session: empty snapshot")
	}
	var snap snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, err
	}
	if snap.ID == 0 {
		return nil, errors.New("session: snapshot missing id")
	}
	return &snap, nil
}
