package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/aegis-portal/aegis-portal/internal/access"
	"github.com/aegis-portal/aegis-portal/internal/auth"
	"github.com/aegis-portal/aegis-portal/internal/background"
	"github.com/aegis-portal/aegis-portal/internal/devices"
	"github.com/aegis-portal/aegis-portal/internal/nav"
	"github.com/aegis-portal/aegis-portal/internal/observability"
	"github.com/aegis-portal/aegis-portal/internal/platform/httpx"
	"github.com/aegis-portal/aegis-portal/internal/reports"
	"github.com/aegis-portal/aegis-portal/internal/requests"
	"github.com/aegis-portal/aegis-portal/internal/session"
	"github.com/aegis-portal/aegis-portal/internal/shared"
	"github.com/aegis-portal/aegis-portal/internal/users"
	"github.com/aegis-portal/aegis-portal/internal/view"
	"github.com/aegis-portal/aegis-portal/jobs"
	"github.com/aegis-portal/aegis-portal/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	Templates      *view.Engine
	SessionManager *shared.SessionManager
	Sessions       *session.Manager
	CSRFManager    *shared.CSRFManager
	Gates          access.Gates
	Projector      *nav.Projector
	Devices        *devices.Poller

	AuthHandler        *auth.Handler
	UsersHandler       *users.Handler
	RequestsHandler    *requests.Handler
	BackgroundHandler  *background.Handler
	ReportsHandler     *reports.Handler
	PermissionsHandler *access.Handler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router. Every gated subtree names its
// canonical page path once; the gates decide everything else.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		Sessions:       params.Sessions,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Landing page for unauthenticated visitors.
	r.Get("/welcome", func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		csrfToken, _ := params.CSRFManager.EnsureToken(r.Context(), sess)
		var flash *shared.FlashMessage
		if sess != nil {
			flash = sess.PopFlash()
		}
		data := view.TemplateData{
			Title:     "Aegis Portal",
			CSRFToken: csrfToken,
			Flash:     flash,
		}
		if err := params.Templates.Render(w, "pages/landing.html", data); err != nil {
			params.Logger.Error("render landing", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		res := session.ResolutionFromContext(r.Context())
		if res.State != session.StateAuthenticated {
			http.Redirect(w, r, "/welcome", http.StatusSeeOther)
			return
		}
		http.Redirect(w, r, access.LandingPath(res.Subject.Role), http.StatusSeeOther)
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)

	dashboard := func(w http.ResponseWriter, r *http.Request) {
		res := session.ResolutionFromContext(r.Context())
		if !res.State.Terminal() {
			w.Header().Set("Retry-After", "1")
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}
		if res.State != session.StateAuthenticated {
			http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
			return
		}
		sess := shared.SessionFromContext(r.Context())
		csrfToken, _ := params.CSRFManager.EnsureToken(r.Context(), sess)
		var flash *shared.FlashMessage
		if sess != nil {
			flash = sess.PopFlash()
		}
		pageData := map[string]any{"FullName": res.Subject.FullName}
		if params.Devices != nil {
			statuses, err := params.Devices.Statuses(r.Context())
			if err != nil {
				params.Logger.Warn("load device statuses", slog.Any("error", err))
			} else {
				pageData["Devices"] = statuses
			}
		}
		data := view.TemplateData{
			Title:       "Dashboard",
			CSRFToken:   csrfToken,
			Flash:       flash,
			CurrentPath: r.URL.Path,
			Menu:        params.Projector.Project(r.Context(), res.Subject),
			Data:        pageData,
		}
		if err := params.Templates.Render(w, "pages/dashboard.html", data); err != nil {
			params.Logger.Error("render dashboard", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	}
	r.Get("/dashboard", dashboard)
	r.Get("/admin/dashboard", dashboard)

	r.Route("/requests", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(params.Gates.RequireView("/requests"))
			params.RequestsHandler.MountRoutes(r)
		})
		r.Group(func(r chi.Router) {
			r.Use(params.Gates.RequireExport("/requests"))
			r.Get("/export", params.RequestsHandler.ExportCSV)
		})
	})

	r.Route("/background", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(params.Gates.RequireView("/background"))
			params.BackgroundHandler.MountRoutes(r)
		})
		r.Group(func(r chi.Router) {
			r.Use(params.Gates.RequireExport("/background"))
			r.Get("/export", params.BackgroundHandler.ExportCSV)
		})
	})

	r.Route("/reports", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(params.Gates.InlineView("/reports"))
			params.ReportsHandler.MountRoutes(r)
		})
		r.Group(func(r chi.Router) {
			r.Use(params.Gates.RequireExport("/reports"))
			r.Get("/export", params.ReportsHandler.ExportCSV)
			r.Get("/export/pdf", params.ReportsHandler.ExportPDF)
		})
	})

	r.Route("/users", func(r chi.Router) {
		r.Use(params.Gates.RequireView("/users"))
		params.UsersHandler.MountRoutes(r)
	})

	r.Route("/admin/permissions", func(r chi.Router) {
		r.Use(params.Gates.RequireView("/admin/permissions"))
		params.PermissionsHandler.MountRoutes(r)
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

// staticCacheHandler wraps a file server with Cache-Control headers.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
