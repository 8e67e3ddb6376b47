// Package requests tracks customer service requests. It carries no
// authorization logic; the access gates in front of its routes decide who
// sees or exports anything.
package requests

import "time"

// RequestStatus is the lifecycle state of a service request.
type RequestStatus string

// Known statuses.
const (
	StatusOpen       RequestStatus = "open"
	StatusInProgress RequestStatus = "in_progress"
	StatusClosed     RequestStatus = "closed"
	StatusRejected   RequestStatus = "rejected"
)

// Valid reports whether the status is a known value.
func (s RequestStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusClosed, StatusRejected:
		return true
	}
	return false
}

// ServiceRequest is one intake record.
type ServiceRequest struct {
	ID            int64
	Number        string
	RequesterName string
	Category      string
	Description   string
	Status        RequestStatus
	CreatedBy     int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CreateInput carries the fields for a new request.
type CreateInput struct {
	RequesterName string `validate:"required,min=2,max=128"`
	Category      string `validate:"required,oneof=installation maintenance complaint"`
	Description   string `validate:"max=2000"`
}
