package access

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aegis-portal/aegis-portal/internal/shared"
)

// Repository defines persistence operations for pages and grants.
type Repository interface {
	FindActivePageByPath(ctx context.Context, path string) (*Page, error)
	FindPageByPath(ctx context.Context, path string) (*Page, error)
	FindGrant(ctx context.Context, subjectID, pageID int64) (*Grant, error)
	UpsertGrant(ctx context.Context, subjectID, pageID, actorID int64, changes GrantChanges) error
	ListActivePages(ctx context.Context) ([]Page, error)
	ListGrantsForSubject(ctx context.Context, subjectID int64) ([]Grant, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository constructs a PostgreSQL repository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const pageColumns = `id, path, category, name, COALESCE(description, ''), is_active`

// FindActivePageByPath resolves a canonical route path to its active page.
func (r *PGRepository) FindActivePageByPath(ctx context.Context, path string) (*Page, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+pageColumns+` FROM pages WHERE path = $1 AND is_active`, path)
	return scanPage(row)
}

// FindPageByPath resolves a path regardless of active status. Used by grant
// management, which may edit grants on temporarily disabled pages.
func (r *PGRepository) FindPageByPath(ctx context.Context, path string) (*Page, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+pageColumns+` FROM pages WHERE path = $1`, path)
	return scanPage(row)
}

// FindGrant fetches the single grant for a (subject, page) pair.
func (r *PGRepository) FindGrant(ctx context.Context, subjectID, pageID int64) (*Grant, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, subject_id, page_id, can_access, can_export, created_by, created_at, updated_at FROM page_permissions WHERE subject_id = $1 AND page_id = $2`, subjectID, pageID)
	var grant Grant
	if err := row.Scan(&grant.ID, &grant.SubjectID, &grant.PageID, &grant.CanAccess, &grant.CanExport, &grant.CreatedBy, &grant.CreatedAt, &grant.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &grant, nil
}

// UpsertGrant creates or updates the grant for a (subject, page) pair. The
// unique constraint on (subject_id, page_id) plus ON CONFLICT keeps the pair
// single-rowed even under concurrent writes.
func (r *PGRepository) UpsertGrant(ctx context.Context, subjectID, pageID, actorID int64, changes GrantChanges) error {
	canAccess := changes.CanAccess != nil && *changes.CanAccess
	canExport := changes.CanExport != nil && *changes.CanExport
	_, err := r.pool.Exec(ctx, `
		INSERT INTO page_permissions (subject_id, page_id, can_access, can_export, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (subject_id, page_id) DO UPDATE SET
			can_access = CASE WHEN $6 THEN EXCLUDED.can_access ELSE page_permissions.can_access END,
			can_export = CASE WHEN $7 THEN EXCLUDED.can_export ELSE page_permissions.can_export END,
			updated_at = NOW()`,
		subjectID, pageID, canAccess, canExport, actorID,
		changes.CanAccess != nil, changes.CanExport != nil)
	return err
}

// ListActivePages returns all active pages ordered by category then name.
func (r *PGRepository) ListActivePages(ctx context.Context) ([]Page, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+pageColumns+` FROM pages WHERE is_active ORDER BY category, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var pages []Page
	for rows.Next() {
		var page Page
		if err := rows.Scan(&page.ID, &page.Path, &page.Category, &page.Name, &page.Description, &page.IsActive); err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	return pages, rows.Err()
}

// ListGrantsForSubject returns every grant row held by a subject.
func (r *PGRepository) ListGrantsForSubject(ctx context.Context, subjectID int64) ([]Grant, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, subject_id, page_id, can_access, can_export, created_by, created_at, updated_at FROM page_permissions WHERE subject_id = $1`, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var grants []Grant
	for rows.Next() {
		var grant Grant
		if err := rows.Scan(&grant.ID, &grant.SubjectID, &grant.PageID, &grant.CanAccess, &grant.CanExport, &grant.CreatedBy, &grant.CreatedAt, &grant.UpdatedAt); err != nil {
			return nil, err
		}
		grants = append(grants, grant)
	}
	return grants, rows.Err()
}

func scanPage(row pgx.Row) (*Page, error) {
	var page Page
	if err := row.Scan(&page.ID, &page.Path, &page.Category, &page.Name, &page.Description, &page.IsActive); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &page, nil
}

var _ Repository = (*PGRepository)(nil)
