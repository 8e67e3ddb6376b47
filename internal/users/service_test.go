package users_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/aegis-portal/aegis-portal/internal/identity"
	"github.com/aegis-portal/aegis-portal/internal/shared"
	"github.com/aegis-portal/aegis-portal/internal/users"
	_ "github.com/aegis-portal/aegis-portal/testing"
)

type memoryRepo struct {
	accounts map[int64]*users.Account
	hashes   map[int64]string
	nextID   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{accounts: make(map[int64]*users.Account), hashes: make(map[int64]string)}
}

func (r *memoryRepo) ListAccounts(ctx context.Context) ([]users.Account, error) {
	var out []users.Account
	for _, acct := range r.accounts {
		out = append(out, *acct)
	}
	return out, nil
}

func (r *memoryRepo) FindAccount(ctx context.Context, id int64) (*users.Account, error) {
	acct, ok := r.accounts[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return acct, nil
}

func (r *memoryRepo) CreateAccount(ctx context.Context, username, fullName, passwordHash string, role identity.Role) (int64, error) {
	for _, acct := range r.accounts {
		if acct.Username == username {
			return 0, users.ErrUsernameTaken
		}
	}
	r.nextID++
	r.accounts[r.nextID] = &users.Account{ID: r.nextID, Username: username, FullName: fullName, Role: role, Status: identity.StatusActive}
	r.hashes[r.nextID] = passwordHash
	return r.nextID, nil
}

func (r *memoryRepo) SetStatus(ctx context.Context, id int64, status identity.Status) error {
	acct, ok := r.accounts[id]
	if !ok {
		return shared.ErrNotFound
	}
	acct.Status = status
	return nil
}

func (r *memoryRepo) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	if _, ok := r.accounts[id]; !ok {
		return shared.ErrNotFound
	}
	r.hashes[id] = passwordHash
	return nil
}

func TestCreateHashesSecret(t *testing.T) {
	repo := newMemoryRepo()
	service := users.NewService(repo, nil, nil)

	id, err := service.Create(context.Background(), 1, users.CreateInput{
		Username: "udin",
		FullName: "Udin Saputra",
		Secret:   "correctpass",
		Role:     identity.RoleUser,
	})
	require.NoError(t, err)

	hash := repo.hashes[id]
	require.NotEqual(t, "correctpass", hash, "secret must never be stored verbatim")
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("correctpass")))
}

func TestCreateRejectsDuplicateUsername(t *testing.T) {
	repo := newMemoryRepo()
	service := users.NewService(repo, nil, nil)

	_, err := service.Create(context.Background(), 1, users.CreateInput{Username: "udin", FullName: "Udin Saputra", Secret: "correctpass"})
	require.NoError(t, err)

	_, err = service.Create(context.Background(), 1, users.CreateInput{Username: "udin", FullName: "Other Udin", Secret: "otherpass1"})
	require.ErrorIs(t, err, users.ErrUsernameTaken)
}

func TestCreateDefaultsUnknownRoleToUser(t *testing.T) {
	repo := newMemoryRepo()
	service := users.NewService(repo, nil, nil)

	id, err := service.Create(context.Background(), 1, users.CreateInput{Username: "udin", FullName: "Udin Saputra", Secret: "correctpass", Role: "superadmin"})
	require.NoError(t, err)
	require.Equal(t, identity.RoleUser, repo.accounts[id].Role)
}

func TestSetStatusRejectsSelfDeactivation(t *testing.T) {
	repo := newMemoryRepo()
	service := users.NewService(repo, nil, nil)

	id, err := service.Create(context.Background(), 1, users.CreateInput{Username: "admin", FullName: "The Admin", Secret: "correctpass", Role: identity.RoleAdmin})
	require.NoError(t, err)

	err = service.SetStatus(context.Background(), id, id, identity.StatusInactive)
	require.ErrorIs(t, err, users.ErrSelfDeactivate)
	require.Equal(t, identity.StatusActive, repo.accounts[id].Status)
}

func TestSetStatusDeactivatesOtherAccount(t *testing.T) {
	repo := newMemoryRepo()
	service := users.NewService(repo, nil, nil)

	id, err := service.Create(context.Background(), 1, users.CreateInput{Username: "udin", FullName: "Udin Saputra", Secret: "correctpass"})
	require.NoError(t, err)

	require.NoError(t, service.SetStatus(context.Background(), 99, id, identity.StatusInactive))
	require.Equal(t, identity.StatusInactive, repo.accounts[id].Status)
}

func TestResetPasswordReplacesHash(t *testing.T) {
	repo := newMemoryRepo()
	service := users.NewService(repo, nil, nil)

	id, err := service.Create(context.Background(), 1, users.CreateInput{Username: "udin", FullName: "Udin Saputra", Secret: "correctpass"})
	require.NoError(t, err)
	oldHash := repo.hashes[id]

	require.NoError(t, service.ResetPassword(context.Background(), 1, id, "freshpass1"))
	require.NotEqual(t, oldHash, repo.hashes[id])
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.hashes[id]), []byte("freshpass1")))
}
