package requests

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aegis-portal/aegis-portal/internal/platform/db"
	"github.com/aegis-portal/aegis-portal/internal/shared"
)

// RepositoryPort defines data access methods for service requests.
type RepositoryPort interface {
	List(ctx context.Context) ([]ServiceRequest, error)
	Find(ctx context.Context, id int64) (*ServiceRequest, error)
	Create(ctx context.Context, req ServiceRequest) (int64, error)
	UpdateStatus(ctx context.Context, id int64, status RequestStatus) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const requestColumns = `id, number, requester_name, category, description, status, created_by, created_at, updated_at`

// List returns all requests, newest first.
func (r *Repository) List(ctx context.Context) ([]ServiceRequest, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+requestColumns+` FROM service_requests ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []ServiceRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *req)
	}
	return requests, rows.Err()
}

// Find returns one request by primary key.
func (r *Repository) Find(ctx context.Context, id int64) (*ServiceRequest, error) {
	req, err := scanRequest(r.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM service_requests WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return req, nil
}

// Create inserts a new request and returns its id.
func (r *Repository) Create(ctx context.Context, req ServiceRequest) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO service_requests (number, requester_name, category, description, status, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $7) RETURNING id`,
		req.Number, req.RequesterName, req.Category, req.Description, req.Status, req.CreatedBy, req.CreatedAt).Scan(&id)
	return id, err
}

// UpdateStatus moves a request to a new lifecycle state. The row is locked
// for the duration so concurrent updates cannot resurrect a finalized request.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, status RequestStatus) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var current RequestStatus
		if err := tx.QueryRow(ctx, `SELECT status FROM service_requests WHERE id = $1 FOR UPDATE`, id).Scan(&current); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return shared.ErrNotFound
			}
			return err
		}
		if current == StatusClosed || current == StatusRejected {
			return ErrRequestFinalized
		}
		_, err := tx.Exec(ctx, `UPDATE service_requests SET status = $1, updated_at = $2 WHERE id = $3`, status, time.Now().UTC(), id)
		return err
	})
}

func scanRequest(row pgx.Row) (*ServiceRequest, error) {
	var req ServiceRequest
	if err := row.Scan(&req.ID, &req.Number, &req.RequesterName, &req.Category, &req.Description, &req.Status, &req.CreatedBy, &req.CreatedAt, &req.UpdatedAt); err != nil {
		return nil, err
	}
	return &req, nil
}

var _ RepositoryPort = (*Repository)(nil)
