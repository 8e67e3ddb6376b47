package background

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/aegis-portal/aegis-portal/internal/session"
	"github.com/aegis-portal/aegis-portal/internal/shared"
	"github.com/aegis-portal/aegis-portal/internal/view"
)

// Handler manages background-check endpoints. ExportCSV is mounted
// separately so the router can wrap it in the export gate.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf, validator: validator.New()}
}

// MountRoutes registers the view routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/pending", h.listPending)
	r.Get("/new", h.showCreateForm)
	r.Post("/", h.create)
	r.Post("/{id}/review", h.review)
}

type formErrors map[string]string

type checkForm struct {
	SubjectName string
	DocumentNo  string
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	checks, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list checks failed", slog.Any("error", err))
		h.render(w, r, map[string]any{"Errors": formErrors{"general": shared.UserSafeMessage(err)}}, http.StatusInternalServerError)
		return
	}
	h.render(w, r, map[string]any{"Checks": checks}, http.StatusOK)
}

func (h *Handler) listPending(w http.ResponseWriter, r *http.Request) {
	checks, err := h.service.ListPending(r.Context())
	if err != nil {
		h.logger.Error("list pending checks failed", slog.Any("error", err))
		h.render(w, r, map[string]any{"Errors": formErrors{"general": shared.UserSafeMessage(err)}}, http.StatusInternalServerError)
		return
	}
	h.render(w, r, map[string]any{"Checks": checks}, http.StatusOK)
}

func (h *Handler) showCreateForm(w http.ResponseWriter, r *http.Request) {
	h.renderTemplate(w, r, "pages/background/form.html", map[string]any{"Form": checkForm{}, "Errors": formErrors{}}, http.StatusOK)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	input := CreateInput{
		SubjectName: strings.TrimSpace(r.PostFormValue("subject_name")),
		DocumentNo:  strings.TrimSpace(r.PostFormValue("document_no")),
	}
	form := checkForm{SubjectName: input.SubjectName, DocumentNo: input.DocumentNo}

	errs := formErrors{}
	if err := h.validator.Struct(input); err != nil {
		for _, fieldErr := range err.(validator.ValidationErrors) {
			errs[fieldErr.Field()] = fieldErr.Error()
		}
	}
	if len(errs) > 0 {
		h.renderTemplate(w, r, "pages/background/form.html", map[string]any{"Form": form, "Errors": errs}, http.StatusBadRequest)
		return
	}

	if _, err := h.service.Create(r.Context(), actorID(r), input); err != nil {
		h.logger.Error("create check failed", slog.Any("error", err))
		h.renderTemplate(w, r, "pages/background/form.html", map[string]any{"Form": form, "Errors": formErrors{"general": shared.UserSafeMessage(err)}}, http.StatusInternalServerError)
		return
	}
	h.redirectWithFlash(w, r, "/background", "success", "Check submitted")
}

func (h *Handler) review(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	outcome := CheckStatus(r.PostFormValue("outcome"))

	if err := h.service.Review(r.Context(), actorID(r), id, outcome); err != nil {
		switch {
		case errors.Is(err, ErrCheckFinalized):
			h.redirectWithFlash(w, r, "/background", "error", "Check is already reviewed")
		case errors.Is(err, shared.ErrNotFound):
			h.redirectWithFlash(w, r, "/background", "error", shared.UserSafeMessage(err))
		default:
			h.logger.Error("review check failed", slog.Any("error", err), slog.Int64("check_id", id))
			h.redirectWithFlash(w, r, "/background", "error", shared.UserSafeMessage(err))
		}
		return
	}
	h.redirectWithFlash(w, r, "/background", "success", "Check reviewed")
}

// ExportCSV streams all checks as a CSV download.
func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	checks, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("export checks failed", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+CSVFilename(time.Now())+`"`)
	if err := WriteCSV(w, checks); err != nil {
		h.logger.Error("write checks csv", slog.Any("error", err))
	}
}

func actorID(r *http.Request) int64 {
	res := session.ResolutionFromContext(r.Context())
	if res.Subject == nil {
		return 0
	}
	return res.Subject.ID
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, data map[string]any, status int) {
	h.renderTemplate(w, r, "pages/background/list.html", data, status)
}

func (h *Handler) renderTemplate(w http.ResponseWriter, r *http.Request, template string, data map[string]any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{Title: "Background checks", CSRFToken: csrfToken, Flash: flash, CurrentPath: r.URL.Path, Data: data}
	w.WriteHeader(status)
	if err := h.templates.Render(w, template, viewData); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}
