package users

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aegis-portal/aegis-portal/internal/identity"
	"github.com/aegis-portal/aegis-portal/internal/shared"
)

// RepositoryPort defines data access methods for user accounts.
type RepositoryPort interface {
	ListAccounts(ctx context.Context) ([]Account, error)
	FindAccount(ctx context.Context, id int64) (*Account, error)
	CreateAccount(ctx context.Context, username, fullName, passwordHash string, role identity.Role) (int64, error)
	SetStatus(ctx context.Context, id int64, status identity.Status) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const accountColumns = `id, username, full_name, role, status, COALESCE(last_login_at, 'epoch'::timestamptz), created_at`

// ListAccounts returns all accounts ordered by username.
func (r *Repository) ListAccounts(ctx context.Context) ([]Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+accountColumns+` FROM users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		var acct Account
		if err := rows.Scan(&acct.ID, &acct.Username, &acct.FullName, &acct.Role, &acct.Status, &acct.LastLoginAt, &acct.CreatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, acct)
	}
	return accounts, rows.Err()
}

// FindAccount returns one account by primary key.
func (r *Repository) FindAccount(ctx context.Context, id int64) (*Account, error) {
	var acct Account
	err := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM users WHERE id = $1`, id).
		Scan(&acct.ID, &acct.Username, &acct.FullName, &acct.Role, &acct.Status, &acct.LastLoginAt, &acct.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &acct, nil
}

// CreateAccount inserts a new active account and returns its id.
func (r *Repository) CreateAccount(ctx context.Context, username, fullName, passwordHash string, role identity.Role) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (username, full_name, password_hash, role, status, created_at)
		 VALUES ($1, $2, $3, $4, 'active', $5) RETURNING id`,
		username, fullName, passwordHash, role, time.Now().UTC()).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrUsernameTaken
		}
		return 0, err
	}
	return id, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// SetStatus flips an account between active and inactive.
func (r *Repository) SetStatus(ctx context.Context, id int64, status identity.Status) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// UpdatePassword replaces the stored hash for an account.
func (r *Repository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, passwordHash, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ RepositoryPort = (*Repository)(nil)
