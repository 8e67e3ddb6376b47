package session_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/aegis-portal/aegis-portal/internal/identity"
	"github.com/aegis-portal/aegis-portal/internal/session"
	"github.com/aegis-portal/aegis-portal/internal/shared"
	_ "github.com/aegis-portal/aegis-portal/testing"
)

type fakeStore struct {
	subjects map[int64]*identity.Subject
	byName   map[string]*identity.Subject
	touched  []int64
	findErr  error
}

func newFakeStore(subjects ...*identity.Subject) *fakeStore {
	s := &fakeStore{
		subjects: make(map[int64]*identity.Subject),
		byName:   make(map[string]*identity.Subject),
	}
	for _, subject := range subjects {
		s.subjects[subject.ID] = subject
		s.byName[subject.Username] = subject
	}
	return s
}

func (s *fakeStore) FindActiveByID(ctx context.Context, id int64) (*identity.Subject, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	subject, ok := s.subjects[id]
	if !ok || !subject.IsActive() {
		return nil, shared.ErrNotFound
	}
	clone := *subject
	return &clone, nil
}

func (s *fakeStore) Authenticate(ctx context.Context, username, secret string) (*identity.Subject, error) {
	subject, ok := s.byName[username]
	if !ok || subject.PasswordHash != secret {
		return nil, shared.ErrInvalidCredentials
	}
	if !subject.IsActive() {
		return nil, identity.ErrInactiveAccount
	}
	clone := *subject
	return &clone, nil
}

func (s *fakeStore) TouchLastLogin(ctx context.Context, id int64) error {
	s.touched = append(s.touched, id)
	return nil
}

func newTestSession(t *testing.T) *shared.Session {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	manager := shared.NewSessionManager(client, "test_session", "secret", time.Hour, false)
	sess, err := manager.Load(context.Background(), httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	return sess
}

func activeUser() *identity.Subject {
	return &identity.Subject{ID: 7, Username: "udin", PasswordHash: "rahasia", FullName: "Udin Saputra", Role: identity.RoleUser, Status: identity.StatusActive}
}

func TestResolveEmptySlotIsAnonymous(t *testing.T) {
	manager := session.NewManager(newFakeStore(), nil, nil, time.Second)
	sess := newTestSession(t)

	res := manager.Resolve(context.Background(), sess)
	require.Equal(t, session.StateAnonymous, res.State)
	require.Nil(t, res.Subject)
}

func TestLoginEstablishesSubject(t *testing.T) {
	store := newFakeStore(activeUser())
	manager := session.NewManager(store, nil, nil, time.Second)
	sess := newTestSession(t)

	subject, err := manager.Login(context.Background(), sess, "udin", "rahasia")
	require.NoError(t, err)
	require.Equal(t, int64(7), subject.ID)
	require.NotEmpty(t, sess.Subject())
	require.Contains(t, store.touched, int64(7))

	res := manager.Resolve(context.Background(), sess)
	require.Equal(t, session.StateAuthenticated, res.State)
	require.Equal(t, "udin", res.Subject.Username)
}

func TestLoginFailuresCollapseToInvalidCredentials(t *testing.T) {
	inactive := activeUser()
	inactive.Status = identity.StatusInactive
	store := newFakeStore(inactive)
	manager := session.NewManager(store, nil, nil, time.Second)
	sess := newTestSession(t)

	_, err := manager.Login(context.Background(), sess, "udin", "salah")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = manager.Login(context.Background(), sess, "udin", "rahasia")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = manager.Login(context.Background(), sess, "nobody", "rahasia")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	require.Empty(t, sess.Subject())
}

func TestResolveLocksOutDeactivatedSubject(t *testing.T) {
	user := activeUser()
	store := newFakeStore(user)
	manager := session.NewManager(store, nil, nil, time.Second)
	sess := newTestSession(t)

	_, err := manager.Login(context.Background(), sess, "udin", "rahasia")
	require.NoError(t, err)

	// Deactivation in the store wins over whatever the cache says.
	user.Status = identity.StatusInactive

	res := manager.Resolve(context.Background(), sess)
	require.Equal(t, session.StateAnonymous, res.State)
	require.Empty(t, sess.Subject(), "slot must be cleared on failed revalidation")
}

func TestResolveRederivesRoleFromStore(t *testing.T) {
	user := activeUser()
	store := newFakeStore(user)
	manager := session.NewManager(store, nil, nil, time.Second)
	sess := newTestSession(t)

	_, err := manager.Login(context.Background(), sess, "udin", "rahasia")
	require.NoError(t, err)

	// A role change mid-session must be visible on the next resolution.
	user.Role = identity.RoleSupervisor

	res := manager.Resolve(context.Background(), sess)
	require.Equal(t, session.StateAuthenticated, res.State)
	require.Equal(t, identity.RoleSupervisor, res.Subject.Role)
}

func TestResolveStoreFailureDowngradesWithErr(t *testing.T) {
	user := activeUser()
	store := newFakeStore(user)
	manager := session.NewManager(store, nil, nil, time.Second)
	sess := newTestSession(t)

	_, err := manager.Login(context.Background(), sess, "udin", "rahasia")
	require.NoError(t, err)

	store.findErr = errors.New("store unreachable")
	res := manager.Resolve(context.Background(), sess)
	require.Equal(t, session.StateAnonymous, res.State)
	require.Error(t, res.Err)
}

func TestLogoutClearsSlotUnconditionally(t *testing.T) {
	store := newFakeStore(activeUser())
	manager := session.NewManager(store, nil, nil, time.Second)
	sess := newTestSession(t)

	_, err := manager.Login(context.Background(), sess, "udin", "rahasia")
	require.NoError(t, err)
	require.NotEmpty(t, sess.Subject())

	manager.Logout(context.Background(), sess)
	require.Empty(t, sess.Subject())

	res := manager.Resolve(context.Background(), sess)
	require.Equal(t, session.StateAnonymous, res.State)
}
