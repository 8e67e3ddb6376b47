// Package users manages the user accounts behind the identity store: admins
// create accounts, flip their status and reset passwords here. Authorization
// for the pages themselves lives in the access package.
package users

import (
	"errors"
	"time"

	"github.com/aegis-portal/aegis-portal/internal/identity"
)

// ErrUsernameTaken indicates a create collided with an existing username.
var ErrUsernameTaken = errors.New("users: username taken")

// Account is a user row as shown on the management pages. The password hash
// never travels with it.
type Account struct {
	ID          int64
	Username    string
	FullName    string
	Role        identity.Role
	Status      identity.Status
	LastLoginAt time.Time
	CreatedAt   time.Time
}

// CreateInput carries the fields for a new account. Secret is the plaintext
// password; it is hashed before it reaches the repository.
type CreateInput struct {
	Username string `validate:"required,min=3,max=64"`
	FullName string `validate:"required,min=2,max=128"`
	Secret   string `validate:"required,min=8"`
	Role     identity.Role
}
