package reports

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryPort defines the aggregate queries behind the report.
type RepositoryPort interface {
	CountRequestsByStatus(ctx context.Context) (map[string]int64, error)
	CountRequestsByCategory(ctx context.Context) (map[string]int64, error)
	CountChecksByStatus(ctx context.Context) (map[string]int64, error)
}

// Repository provides PostgreSQL backed aggregates.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CountRequestsByStatus groups service requests by status.
func (r *Repository) CountRequestsByStatus(ctx context.Context) (map[string]int64, error) {
	return r.countGrouped(ctx, `SELECT status, COUNT(*) FROM service_requests GROUP BY status`)
}

// CountRequestsByCategory groups service requests by category.
func (r *Repository) CountRequestsByCategory(ctx context.Context) (map[string]int64, error) {
	return r.countGrouped(ctx, `SELECT category, COUNT(*) FROM service_requests GROUP BY category`)
}

// CountChecksByStatus groups background checks by status.
func (r *Repository) CountChecksByStatus(ctx context.Context) (map[string]int64, error) {
	return r.countGrouped(ctx, `SELECT status, COUNT(*) FROM background_checks GROUP BY status`)
}

func (r *Repository) countGrouped(ctx context.Context, sql string) (map[string]int64, error) {
	rows, err := r.pool.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return nil, err
		}
		counts[key] = count
	}
	return counts, rows.Err()
}

var _ RepositoryPort = (*Repository)(nil)
