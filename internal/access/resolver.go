package access

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aegis-portal/aegis-portal/internal/identity"
	"github.com/aegis-portal/aegis-portal/internal/shared"
)

// Resolver computes access decisions. Resolve is idempotent and free of
// side effects; Grant is the only mutating operation.
type Resolver struct {
	repo    Repository
	logger  *slog.Logger
	timeout time.Duration
}

// NewResolver constructs a Resolver.
func NewResolver(repo Repository, logger *slog.Logger, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Resolver{repo: repo, logger: logger, timeout: timeout}
}

// Resolve returns the decision for one (subject, path) pair.
//
// Order matters: the admin bypass is evaluated before any store call, both
// to avoid the I/O and because admin accounts carry no grant rows at all.
// Unknown or inactive pages, missing grants, store failures and timeouts all
// deny; only a store failure additionally returns ErrResolverUnavailable so
// operators can tell an outage from a confirmed denial.
func (r *Resolver) Resolve(ctx context.Context, subject *identity.Subject, path string) (Decision, error) {
	if subject == nil {
		return Deny, nil
	}
	if subject.IsAdmin() {
		return Decision{CanAccess: true, CanExport: true}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	page, err := r.repo.FindActivePageByPath(ctx, path)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Deny, nil
		}
		return Deny, r.unavailable("resolve page", path, err)
	}

	grant, err := r.repo.FindGrant(ctx, subject.ID, page.ID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Deny, nil
		}
		return Deny, r.unavailable("resolve grant", path, err)
	}

	// Grant flags are returned verbatim; CanExport never implies CanAccess.
	return Decision{CanAccess: grant.CanAccess, CanExport: grant.CanExport}, nil
}

// ResolveAll resolves many paths concurrently for one subject. Results are
// keyed by path; a lookup failure denies that path only. The returned error
// is ErrResolverUnavailable when at least one lookup failed operationally.
func (r *Resolver) ResolveAll(ctx context.Context, subject *identity.Subject, paths []string) (map[string]Decision, error) {
	decisions := make(map[string]Decision, len(paths))
	if subject == nil {
		for _, path := range paths {
			decisions[path] = Deny
		}
		return decisions, nil
	}
	if subject.IsAdmin() {
		for _, path := range paths {
			decisions[path] = Decision{CanAccess: true, CanExport: true}
		}
		return decisions, nil
	}

	var (
		mu          sync.Mutex
		unavailable bool
	)
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(8)
	for _, path := range paths {
		group.Go(func() error {
			decision, err := r.Resolve(ctx, subject, path)
			if ctx.Err() != nil {
				// Caller torn down mid-flight: the result is discarded,
				// never applied.
				return ctx.Err()
			}
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				unavailable = true
				decisions[path] = Deny
				return nil
			}
			decisions[path] = decision
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return decisions, err
	}
	if unavailable {
		return decisions, ErrResolverUnavailable
	}
	return decisions, nil
}

// Grant upserts the grant for (subjectID, path). Only an admin actor may
// manage grants; anyone else is rejected before any write happens.
func (r *Resolver) Grant(ctx context.Context, actor *identity.Subject, subjectID int64, path string, changes GrantChanges) error {
	if !actor.IsAdmin() {
		return ErrNotAuthorized
	}
	if changes.CanAccess == nil && changes.CanExport == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	page, err := r.repo.FindPageByPath(ctx, path)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return ErrUnknownPage
		}
		return err
	}
	return r.repo.UpsertGrant(ctx, subjectID, page.ID, actor.ID, changes)
}

func (r *Resolver) unavailable(op, path string, err error) error {
	if r.logger != nil {
		r.logger.Error("permission lookup failed", slog.String("op", op), slog.String("path", path), slog.Any("error", err))
	}
	return errors.Join(ErrResolverUnavailable, err)
}
