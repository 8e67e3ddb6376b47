package nav

import (
	"context"
	"log/slog"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/aegis-portal/aegis-portal/internal/access"
	"github.com/aegis-portal/aegis-portal/internal/identity"
	"github.com/aegis-portal/aegis-portal/internal/view"
)

var titleCaser = cases.Title(language.English)

// Projector prunes the menu tree through the access resolver. It holds no
// allow/deny logic of its own.
type Projector struct {
	resolver *access.Resolver
	logger   *slog.Logger
}

// NewProjector constructs a Projector.
func NewProjector(resolver *access.Resolver, logger *slog.Logger) *Projector {
	return &Projector{resolver: resolver, logger: logger}
}

// Project builds the pruned menu for the subject. An anonymous subject gets
// no menu; an admin gets the full tree without any lookups. When the caller
// is torn down mid-flight the late result is dropped, never applied.
func (p *Projector) Project(ctx context.Context, subject *identity.Subject) []view.MenuItem {
	if subject == nil {
		return nil
	}

	tree := MenuForRole(subject.Role)
	if subject.IsAdmin() {
		return render(tree)
	}

	decisions, err := p.resolver.ResolveAll(ctx, subject, leafPaths(tree))
	if ctx.Err() != nil {
		return nil
	}
	if err != nil && p.logger != nil {
		// Degraded lookups already denied their paths; the menu just ends
		// up smaller.
		p.logger.Warn("menu projection degraded", slog.Any("error", err))
	}
	return render(prune(tree, decisions))
}

// prune keeps a leaf only when the resolver allowed it and a parent only
// when at least one child survives.
func prune(items []Item, decisions map[string]access.Decision) []Item {
	var kept []Item
	for _, item := range items {
		if len(item.Children) > 0 {
			children := prune(item.Children, decisions)
			if len(children) == 0 {
				continue
			}
			item.Children = children
			kept = append(kept, item)
			continue
		}
		if item.Pinned || decisions[item.Path].CanAccess {
			kept = append(kept, item)
		}
	}
	return kept
}

func render(items []Item) []view.MenuItem {
	rendered := make([]view.MenuItem, 0, len(items))
	for _, item := range items {
		rendered = append(rendered, view.MenuItem{
			Label:    titleCaser.String(item.Label),
			Path:     item.Path,
			Icon:     item.Icon,
			Children: render(item.Children),
		})
	}
	return rendered
}
