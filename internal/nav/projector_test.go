package nav_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aegis-portal/aegis-portal/internal/access"
	"github.com/aegis-portal/aegis-portal/internal/identity"
	"github.com/aegis-portal/aegis-portal/internal/nav"
	"github.com/aegis-portal/aegis-portal/internal/shared"
	"github.com/aegis-portal/aegis-portal/internal/view"
	_ "github.com/aegis-portal/aegis-portal/testing"
)

type stubRepo struct {
	mu      sync.Mutex
	pages   map[string]*access.Page
	grants  map[[2]int64]*access.Grant
	nextID  int64
	queries int
}

func newStubRepo() *stubRepo {
	return &stubRepo{pages: make(map[string]*access.Page), grants: make(map[[2]int64]*access.Grant)}
}

func (r *stubRepo) allow(subjectID int64, path string, canExport bool) {
	page, ok := r.pages[path]
	if !ok {
		r.nextID++
		page = &access.Page{ID: r.nextID, Path: path, Name: path, IsActive: true}
		r.pages[path] = page
	}
	r.grants[[2]int64{subjectID, page.ID}] = &access.Grant{SubjectID: subjectID, PageID: page.ID, CanAccess: true, CanExport: canExport}
}

func (r *stubRepo) FindActivePageByPath(ctx context.Context, path string) (*access.Page, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries++
	page, ok := r.pages[path]
	if !ok || !page.IsActive {
		return nil, shared.ErrNotFound
	}
	return page, nil
}

func (r *stubRepo) FindPageByPath(ctx context.Context, path string) (*access.Page, error) {
	return r.FindActivePageByPath(ctx, path)
}

func (r *stubRepo) FindGrant(ctx context.Context, subjectID, pageID int64) (*access.Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries++
	grant, ok := r.grants[[2]int64{subjectID, pageID}]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return grant, nil
}

func (r *stubRepo) UpsertGrant(ctx context.Context, subjectID, pageID, actorID int64, changes access.GrantChanges) error {
	return nil
}

func (r *stubRepo) ListActivePages(ctx context.Context) ([]access.Page, error) {
	return nil, nil
}

func (r *stubRepo) ListGrantsForSubject(ctx context.Context, subjectID int64) ([]access.Grant, error) {
	return nil, nil
}

func collectPaths(items []view.MenuItem) []string {
	var paths []string
	for _, item := range items {
		if item.Path != "" {
			paths = append(paths, item.Path)
		}
		paths = append(paths, collectPaths(item.Children)...)
	}
	return paths
}

func TestProjectAnonymousHasNoMenu(t *testing.T) {
	projector := nav.NewProjector(access.NewResolver(newStubRepo(), nil, time.Second), nil)
	require.Nil(t, projector.Project(context.Background(), nil))
}

func TestProjectAdminSkipsResolver(t *testing.T) {
	repo := newStubRepo()
	projector := nav.NewProjector(access.NewResolver(repo, nil, time.Second), nil)
	admin := &identity.Subject{ID: 1, Role: identity.RoleAdmin, Status: identity.StatusActive}

	menu := projector.Project(context.Background(), admin)
	require.NotEmpty(t, menu)
	require.Zero(t, repo.queries)
	require.Contains(t, collectPaths(menu), "/admin/permissions")
}

func TestProjectPrunesUngrantedLeavesAndEmptyGroups(t *testing.T) {
	repo := newStubRepo()
	repo.allow(2, "/requests", false)
	projector := nav.NewProjector(access.NewResolver(repo, nil, time.Second), nil)
	user := &identity.Subject{ID: 2, Role: identity.RoleUser, Status: identity.StatusActive}

	menu := projector.Project(context.Background(), user)
	paths := collectPaths(menu)

	require.Contains(t, paths, "/dashboard", "landing page stays pinned")
	require.Contains(t, paths, "/requests")
	require.NotContains(t, paths, "/requests/new")
	require.NotContains(t, paths, "/background/pending")
	require.NotContains(t, paths, "/reports")

	// The emptied background-checks group disappears with its children.
	for _, item := range menu {
		require.NotEqual(t, "Background Checks", item.Label)
	}
}

// Every clickable item must independently pass the resolver; the menu can
// never be wider than authorization.
func TestVisibilityIsSubsetOfAuthorization(t *testing.T) {
	repo := newStubRepo()
	repo.allow(2, "/requests", false)
	repo.allow(2, "/background", true)
	resolver := access.NewResolver(repo, nil, time.Second)
	projector := nav.NewProjector(resolver, nil)
	user := &identity.Subject{ID: 2, Role: identity.RoleUser, Status: identity.StatusActive}

	for _, path := range collectPaths(projector.Project(context.Background(), user)) {
		if path == "/dashboard" {
			continue
		}
		decision, err := resolver.Resolve(context.Background(), user, path)
		require.NoError(t, err)
		require.True(t, decision.CanAccess, "menu leaked unauthorized path %s", path)
	}
}

func TestProjectDiscardsResultAfterTeardown(t *testing.T) {
	repo := newStubRepo()
	repo.allow(2, "/requests", false)
	projector := nav.NewProjector(access.NewResolver(repo, nil, time.Second), nil)
	user := &identity.Subject{ID: 2, Role: identity.RoleUser, Status: identity.StatusActive}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Nil(t, projector.Project(ctx, user))
}
