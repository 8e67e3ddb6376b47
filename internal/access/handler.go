package access

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/aegis-portal/aegis-portal/internal/session"
	"github.com/aegis-portal/aegis-portal/internal/shared"
	"github.com/aegis-portal/aegis-portal/internal/view"
)

// Handler exposes the admin-only grant management surface.
type Handler struct {
	logger    *slog.Logger
	resolver  *Resolver
	repo      Repository
	templates *view.Engine
	csrf      *shared.CSRFManager
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, resolver *Resolver, repo Repository, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	return &Handler{
		logger:    logger,
		resolver:  resolver,
		repo:      repo,
		templates: templates,
		csrf:      csrf,
		validator: validator.New(),
	}
}

// MountRoutes registers grant management routes. The caller wraps them in
// the view gate for the admin permissions page.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listGrants)
	r.Post("/grant", h.upsertGrant)
}

type grantForm struct {
	SubjectID int64  `validate:"required,gt=0"`
	Path      string `validate:"required,startswith=/"`
	CanAccess bool
	CanExport bool
}

func (h *Handler) listGrants(w http.ResponseWriter, r *http.Request) {
	pages, err := h.repo.ListActivePages(r.Context())
	if err != nil {
		h.logger.Error("list pages", slog.Any("error", err))
		h.render(w, r, map[string]any{"SubjectID": int64(0), "Errors": map[string]string{"general": shared.UserSafeMessage(err)}}, http.StatusInternalServerError)
		return
	}

	data := map[string]any{"Pages": pages, "SubjectID": int64(0)}
	if raw := r.URL.Query().Get("subject_id"); raw != "" {
		subjectID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || subjectID <= 0 {
			h.render(w, r, map[string]any{"Pages": pages, "SubjectID": int64(0), "Errors": map[string]string{"general": "Invalid subject id"}}, http.StatusBadRequest)
			return
		}
		grants, err := h.repo.ListGrantsForSubject(r.Context(), subjectID)
		if err != nil {
			h.logger.Error("list grants", slog.Any("error", err), slog.Int64("subject_id", subjectID))
			h.render(w, r, map[string]any{"Pages": pages, "SubjectID": subjectID, "Errors": map[string]string{"general": shared.UserSafeMessage(err)}}, http.StatusInternalServerError)
			return
		}
		byPage := make(map[int64]Grant, len(grants))
		for _, grant := range grants {
			byPage[grant.PageID] = grant
		}
		data["SubjectID"] = subjectID
		data["Grants"] = byPage
	}
	h.render(w, r, data, http.StatusOK)
}

func (h *Handler) upsertGrant(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	res := session.ResolutionFromContext(r.Context())
	if res.State != session.StateAuthenticated {
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}

	subjectID, _ := strconv.ParseInt(r.PostFormValue("subject_id"), 10, 64)
	form := grantForm{
		SubjectID: subjectID,
		Path:      r.PostFormValue("path"),
		CanAccess: r.PostFormValue("can_access") == "on",
		CanExport: r.PostFormValue("can_export") == "on",
	}
	if err := h.validator.Struct(form); err != nil {
		h.redirectWithFlash(w, r, "/admin/permissions", "error", "Invalid grant input")
		return
	}

	changes := GrantChanges{CanAccess: &form.CanAccess, CanExport: &form.CanExport}
	if err := h.resolver.Grant(r.Context(), res.Subject, form.SubjectID, form.Path, changes); err != nil {
		h.logger.Warn("upsert grant", slog.Any("error", err), slog.Int64("subject_id", form.SubjectID), slog.String("path", form.Path))
		h.redirectWithFlash(w, r, "/admin/permissions", "error", shared.UserSafeMessage(err))
		return
	}
	h.redirectWithFlash(w, r, "/admin/permissions?subject_id="+strconv.FormatInt(form.SubjectID, 10), "success", "Grant saved")
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, data map[string]any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{Title: "Page permissions", CSRFToken: csrfToken, Flash: flash, CurrentPath: r.URL.Path, Data: data}
	w.WriteHeader(status)
	if err := h.templates.Render(w, "pages/permissions/list.html", viewData); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}
