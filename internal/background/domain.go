// Package background tracks background checks on customer subjects. Stale
// pending checks are expired by a periodic sweep.
package background

import "time"

// CheckStatus is the lifecycle state of a background check.
type CheckStatus string

// Known statuses.
const (
	StatusPending CheckStatus = "pending"
	StatusClear   CheckStatus = "clear"
	StatusFlagged CheckStatus = "flagged"
	StatusExpired CheckStatus = "expired"
)

// Valid reports whether the status is a known value.
func (s CheckStatus) Valid() bool {
	switch s {
	case StatusPending, StatusClear, StatusFlagged, StatusExpired:
		return true
	}
	return false
}

// BackgroundCheck is one tracked check.
type BackgroundCheck struct {
	ID          int64
	SubjectName string
	DocumentNo  string
	Status      CheckStatus
	RequestedBy int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreateInput carries the fields for a new check.
type CreateInput struct {
	SubjectName string `validate:"required,min=2,max=128"`
	DocumentNo  string `validate:"required,min=4,max=64"`
}
