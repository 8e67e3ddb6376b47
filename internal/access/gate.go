package access

import (
	"log/slog"
	"net/http"

	"github.com/aegis-portal/aegis-portal/internal/identity"
	"github.com/aegis-portal/aegis-portal/internal/session"
	"github.com/aegis-portal/aegis-portal/internal/shared"
	"github.com/aegis-portal/aegis-portal/internal/view"
)

// ReturnToSessionKey remembers the originally requested path across a login
// redirect. Best-effort: login falls back to the landing page without it.
const ReturnToSessionKey = "return_to"

// LandingPath is the canonical role-appropriate landing page. Every denial
// redirect routes through here; no gate picks its own target.
func LandingPath(role identity.Role) string {
	if role == identity.RoleAdmin {
		return "/admin/dashboard"
	}
	return "/dashboard"
}

// Gates wires the three enforcement call sites around the Resolver. Each
// gate is a stateless consumer: the decision always comes from Resolve, so
// the redirecting guard, the inline gate and the export check can never
// disagree for the same (subject, path).
type Gates struct {
	Resolver  *Resolver
	Templates *view.Engine
	Logger    *slog.Logger
	Metrics   DenialCounter
}

// DenialCounter counts gate denials for monitoring. May be nil.
type DenialCounter interface {
	CountDenial(gate string)
}

// RequireView guards a route subtree identified by its canonical page path.
// Anonymous visitors are sent to login with the requested path remembered;
// denied subjects are sent to their landing page.
func (g Gates) RequireView(path string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := session.ResolutionFromContext(r.Context())
			if !res.State.Terminal() {
				g.neutral(w)
				return
			}
			if res.State == session.StateAnonymous {
				g.redirectToLogin(w, r)
				return
			}
			decision, err := g.Resolver.Resolve(r.Context(), res.Subject, path)
			if err != nil {
				g.logUnavailable(path, err)
			}
			if !decision.CanAccess {
				g.countDenial("view")
				http.Redirect(w, r, LandingPath(res.Subject.Role), http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// InlineView reaches the same decision as RequireView but renders an
// access-denied view in place instead of redirecting. Used for destinations
// reached from inside the authenticated area.
func (g Gates) InlineView(path string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := session.ResolutionFromContext(r.Context())
			if !res.State.Terminal() {
				g.neutral(w)
				return
			}
			if res.State == session.StateAnonymous {
				g.redirectToLogin(w, r)
				return
			}
			decision, err := g.Resolver.Resolve(r.Context(), res.Subject, path)
			if err != nil {
				g.logUnavailable(path, err)
			}
			if !decision.CanAccess {
				g.countDenial("inline")
				g.renderDenied(w, r, res.Subject)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireExport gates data-export actions on CanExport alone. A subject may
// view a page without being allowed to export from it.
func (g Gates) RequireExport(path string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := session.ResolutionFromContext(r.Context())
			if !res.State.Terminal() {
				g.neutral(w)
				return
			}
			if res.State == session.StateAnonymous {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			decision, err := g.Resolver.Resolve(r.Context(), res.Subject, path)
			if err != nil {
				g.logUnavailable(path, err)
			}
			if !decision.CanExport {
				g.countDenial("export")
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// neutral answers a request whose session has not reached a terminal state.
// Never a permit.
func (g Gates) neutral(w http.ResponseWriter) {
	w.Header().Set("Retry-After", "1")
	http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
}

func (g Gates) redirectToLogin(w http.ResponseWriter, r *http.Request) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.Set(ReturnToSessionKey, r.URL.RequestURI())
	}
	http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
}

func (g Gates) renderDenied(w http.ResponseWriter, r *http.Request, subject *identity.Subject) {
	w.WriteHeader(http.StatusForbidden)
	data := view.TemplateData{
		Title:       "Access denied",
		CurrentPath: r.URL.Path,
		Data:        map[string]any{"BackPath": LandingPath(subject.Role)},
	}
	if err := g.Templates.Render(w, "pages/denied.html", data); err != nil {
		if g.Logger != nil {
			g.Logger.Error("render denied", slog.Any("error", err))
		}
	}
}

func (g Gates) countDenial(gate string) {
	if g.Metrics != nil {
		g.Metrics.CountDenial(gate)
	}
}

func (g Gates) logUnavailable(path string, err error) {
	if g.Logger != nil {
		g.Logger.Error("access decision degraded to deny", slog.String("path", path), slog.Any("error", err))
	}
}
