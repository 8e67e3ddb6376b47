package identity

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/aegis-portal/aegis-portal/internal/shared"
)

// ErrInactiveAccount distinguishes a disabled account from bad credentials
// inside the core. Callers facing users must collapse it into the generic
// invalid-credentials message.
var ErrInactiveAccount = errors.New("identity: account inactive")

// Store is the read/write boundary to the external user table. It performs
// no caching; every call hits the backing store.
type Store interface {
	// FindActiveByID returns the subject only when it exists and is active.
	// Inactive accounts yield shared.ErrNotFound, same as missing rows.
	FindActiveByID(ctx context.Context, id int64) (*Subject, error)
	// Authenticate verifies username/secret against the stored hash.
	Authenticate(ctx context.Context, username, secret string) (*Subject, error)
	// TouchLastLogin stamps the last login time. Best-effort: failures must
	// not block an otherwise successful authentication.
	TouchLastLogin(ctx context.Context, id int64) error
}

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore constructs a PostgreSQL backed store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const subjectColumns = `id, username, password_hash, full_name, role, status, COALESCE(last_login_at, 'epoch'::timestamptz)`

// FindActiveByID fetches an active subject by primary key.
func (s *PGStore) FindActiveByID(ctx context.Context, id int64) (*Subject, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+subjectColumns+` FROM users WHERE id = $1 AND status = 'active'`, id)
	subject, err := scanSubject(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return subject, nil
}

// Authenticate verifies credentials with a salted-hash comparison at the
// store boundary. Plaintext secrets never leave this function.
func (s *PGStore) Authenticate(ctx context.Context, username, secret string) (*Subject, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+subjectColumns+` FROM users WHERE username = $1`, username)
	subject, err := scanSubject(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(subject.PasswordHash), []byte(secret)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !subject.IsActive() {
		return nil, ErrInactiveAccount
	}
	return subject, nil
}

// TouchLastLogin stamps last_login_at for the subject.
func (s *PGStore) TouchLastLogin(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `UPDATE users SET last_login_at = $1 WHERE id = $2`, time.Now().UTC(), id)
	return err
}

func scanSubject(row pgx.Row) (*Subject, error) {
	var subject Subject
	if err := row.Scan(&subject.ID, &subject.Username, &subject.PasswordHash, &subject.FullName, &subject.Role, &subject.Status, &subject.LastLoginAt); err != nil {
		return nil, err
	}
	return &subject, nil
}

var _ Store = (*PGStore)(nil)
