package background

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aegis-portal/aegis-portal/internal/platform/db"
	"github.com/aegis-portal/aegis-portal/internal/shared"
)

// RepositoryPort defines data access methods for background checks.
type RepositoryPort interface {
	List(ctx context.Context) ([]BackgroundCheck, error)
	ListPending(ctx context.Context) ([]BackgroundCheck, error)
	Find(ctx context.Context, id int64) (*BackgroundCheck, error)
	Create(ctx context.Context, check BackgroundCheck) (int64, error)
	UpdateStatus(ctx context.Context, id int64, status CheckStatus) error
	ExpirePendingBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const checkColumns = `id, subject_name, document_no, status, requested_by, created_at, updated_at`

// List returns all checks, newest first.
func (r *Repository) List(ctx context.Context) ([]BackgroundCheck, error) {
	return r.query(ctx, `SELECT `+checkColumns+` FROM background_checks ORDER BY created_at DESC`)
}

// ListPending returns checks still awaiting review, oldest first.
func (r *Repository) ListPending(ctx context.Context) ([]BackgroundCheck, error) {
	return r.query(ctx, `SELECT `+checkColumns+` FROM background_checks WHERE status = 'pending' ORDER BY created_at`)
}

func (r *Repository) query(ctx context.Context, sql string) ([]BackgroundCheck, error) {
	rows, err := r.pool.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var checks []BackgroundCheck
	for rows.Next() {
		check, err := scanCheck(rows)
		if err != nil {
			return nil, err
		}
		checks = append(checks, *check)
	}
	return checks, rows.Err()
}

// Find returns one check by primary key.
func (r *Repository) Find(ctx context.Context, id int64) (*BackgroundCheck, error) {
	check, err := scanCheck(r.pool.QueryRow(ctx, `SELECT `+checkColumns+` FROM background_checks WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return check, nil
}

// Create inserts a new check and returns its id.
func (r *Repository) Create(ctx context.Context, check BackgroundCheck) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO background_checks (subject_name, document_no, status, requested_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $5) RETURNING id`,
		check.SubjectName, check.DocumentNo, check.Status, check.RequestedBy, check.CreatedAt).Scan(&id)
	return id, err
}

// UpdateStatus moves a check out of pending. The row is locked so two
// concurrent reviews cannot both land on the same check.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, status CheckStatus) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var current CheckStatus
		if err := tx.QueryRow(ctx, `SELECT status FROM background_checks WHERE id = $1 FOR UPDATE`, id).Scan(&current); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return shared.ErrNotFound
			}
			return err
		}
		if current != StatusPending {
			return ErrCheckFinalized
		}
		_, err := tx.Exec(ctx, `UPDATE background_checks SET status = $1, updated_at = $2 WHERE id = $3`, status, time.Now().UTC(), id)
		return err
	})
}

// ExpirePendingBefore marks pending checks created before the cutoff as
// expired and returns how many rows changed.
func (r *Repository) ExpirePendingBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE background_checks SET status = 'expired', updated_at = $1 WHERE status = 'pending' AND created_at < $2`,
		time.Now().UTC(), cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanCheck(row pgx.Row) (*BackgroundCheck, error) {
	var check BackgroundCheck
	if err := row.Scan(&check.ID, &check.SubjectName, &check.DocumentNo, &check.Status, &check.RequestedBy, &check.CreatedAt, &check.UpdatedAt); err != nil {
		return nil, err
	}
	return &check, nil
}

var _ RepositoryPort = (*Repository)(nil)
