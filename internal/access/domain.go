// Package access computes and enforces page-level access decisions. It is
// the single authority for allow/deny: route guards, inline gates, export
// checks and menu pruning all consume Resolver output and carry no policy
// of their own.
package access

import (
	"errors"
	"time"
)

// Page is a registered, addressable destination identified by its canonical
// route path. Paths are unique among active pages.
type Page struct {
	ID          int64
	Path        string
	Category    string
	Name        string
	Description string
	IsActive    bool
}

// Grant is the per-subject, per-page permission record. At most one grant
// exists per (subject, page) pair. A missing grant means deny.
type Grant struct {
	ID        int64
	SubjectID int64
	PageID    int64
	CanAccess bool
	CanExport bool
	CreatedBy int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Decision is the access outcome for one (subject, path) pair. CanExport is
// independent of CanAccess; neither implies the other.
type Decision struct {
	CanAccess bool
	CanExport bool
}

// Deny is the default-deny decision.
var Deny = Decision{}

// GrantChanges describes a partial grant update. Nil fields are left
// unchanged on an existing grant and default to false on a new one.
type GrantChanges struct {
	CanAccess *bool
	CanExport *bool
}

var (
	// ErrResolverUnavailable flags a lookup that failed for operational
	// reasons. Callers must render the same denial as a confirmed deny.
	ErrResolverUnavailable = errors.New("access: resolver unavailable")
	// ErrNotAuthorized rejects grant management by a non-privileged actor.
	ErrNotAuthorized = errors.New("access: actor not authorized to manage grants")
	// ErrUnknownPage rejects grant writes against unregistered paths.
	ErrUnknownPage = errors.New("access: unknown page")
)
