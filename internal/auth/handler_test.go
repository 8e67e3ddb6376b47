package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/aegis-portal/aegis-portal/internal/access"
	"github.com/aegis-portal/aegis-portal/internal/auth"
	"github.com/aegis-portal/aegis-portal/internal/identity"
	"github.com/aegis-portal/aegis-portal/internal/session"
	"github.com/aegis-portal/aegis-portal/internal/shared"
	"github.com/aegis-portal/aegis-portal/internal/view"
	_ "github.com/aegis-portal/aegis-portal/testing"
)

type stubStore struct {
	subject *identity.Subject
}

func (s *stubStore) FindActiveByID(ctx context.Context, id int64) (*identity.Subject, error) {
	if s.subject == nil || s.subject.ID != id || !s.subject.IsActive() {
		return nil, shared.ErrNotFound
	}
	return s.subject, nil
}

func (s *stubStore) Authenticate(ctx context.Context, username, secret string) (*identity.Subject, error) {
	if s.subject == nil || s.subject.Username != username {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.subject.PasswordHash), []byte(secret)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !s.subject.IsActive() {
		return nil, identity.ErrInactiveAccount
	}
	return s.subject, nil
}

func (s *stubStore) TouchLastLogin(ctx context.Context, id int64) error {
	return nil
}

func newAuthHandler(t *testing.T, store identity.Store) (http.Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	csrfManager := shared.NewCSRFManager("csrfsecret")
	templates, err := view.NewEngine()
	if err != nil {
		t.Fatalf("templates: %v", err)
	}
	manager := session.NewManager(store, nil, nil, time.Second)
	handler := auth.NewHandler(nil, manager, sessionManager, templates, csrfManager)
	mux := chi.NewRouter()
	mux.Route("/auth", handler.MountRoutes)
	return mux, sessionManager
}

func hashedUser(t *testing.T, password string) *identity.Subject {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return &identity.Subject{
		ID:           1,
		Username:     "udin",
		PasswordHash: string(hashed),
		FullName:     "Udin Saputra",
		Role:         identity.RoleUser,
		Status:       identity.StatusActive,
	}
}

func TestLoginPage(t *testing.T) {
	handler, sessionManager := newAuthHandler(t, &stubStore{})

	req := httptest.NewRequest(http.MethodGet, "/auth/login", nil)
	sess, err := sessionManager.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	ctx := shared.ContextWithSession(req.Context(), sess)
	ctx = session.ContextWithResolution(ctx, session.Resolution{State: session.StateAnonymous})
	req = req.WithContext(ctx)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if err := sessionManager.Commit(ctx, res, req, sess); err != nil {
		t.Fatalf("commit session: %v", err)
	}

	if res.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "<form") {
		t.Fatalf("expected login form in body")
	}
}

func postLogin(t *testing.T, handler http.Handler, sessionManager *shared.SessionManager, sess *shared.Session, username, password string) *httptest.ResponseRecorder {
	t.Helper()
	postData := url.Values{}
	postData.Set("username", username)
	postData.Set("password", password)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(postData.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: sessionManager.CookieName(), Value: sess.ID})

	ctx := shared.ContextWithSession(req.Context(), sess)
	ctx = session.ContextWithResolution(ctx, session.Resolution{State: session.StateAnonymous})
	req = req.WithContext(ctx)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if err := sessionManager.Commit(ctx, res, req, sess); err != nil {
		t.Fatalf("commit session: %v", err)
	}
	return res
}

func TestLoginInvalidCredentials(t *testing.T) {
	handler, sessionManager := newAuthHandler(t, &stubStore{subject: hashedUser(t, "correctpass")})

	sess, err := sessionManager.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	if err != nil {
		t.Fatalf("load session: %v", err)
	}

	res := postLogin(t, handler, sessionManager, sess, "udin", "wrongpass1")
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "Invalid username or password") {
		t.Fatalf("expected generic error message in response")
	}
	if sess.Subject() != "" {
		t.Fatalf("failed login must not touch the subject slot")
	}
}

func TestLoginInactiveAccountSameMessage(t *testing.T) {
	user := hashedUser(t, "correctpass")
	user.Status = identity.StatusInactive
	handler, sessionManager := newAuthHandler(t, &stubStore{subject: user})

	sess, err := sessionManager.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	if err != nil {
		t.Fatalf("load session: %v", err)
	}

	res := postLogin(t, handler, sessionManager, sess, "udin", "correctpass")
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "Invalid username or password") {
		t.Fatalf("inactive account must surface the same generic message")
	}
}

func TestLoginRedirectsToLandingPage(t *testing.T) {
	handler, sessionManager := newAuthHandler(t, &stubStore{subject: hashedUser(t, "correctpass")})

	sess, err := sessionManager.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	if err != nil {
		t.Fatalf("load session: %v", err)
	}

	res := postLogin(t, handler, sessionManager, sess, "udin", "correctpass")
	if res.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", res.Code)
	}
	if got := res.Header().Get("Location"); got != "/dashboard" {
		t.Fatalf("expected redirect to /dashboard, got %s", got)
	}
	if sess.Subject() == "" {
		t.Fatalf("successful login must write the subject slot")
	}
}

func TestLoginReturnsToRequestedPath(t *testing.T) {
	handler, sessionManager := newAuthHandler(t, &stubStore{subject: hashedUser(t, "correctpass")})

	sess, err := sessionManager.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	sess.Set(access.ReturnToSessionKey, "/requests?page=2")

	res := postLogin(t, handler, sessionManager, sess, "udin", "correctpass")
	if got := res.Header().Get("Location"); got != "/requests?page=2" {
		t.Fatalf("expected redirect to remembered path, got %s", got)
	}
	if sess.Get(access.ReturnToSessionKey) != "" {
		t.Fatalf("return-to must be consumed after use")
	}
}
