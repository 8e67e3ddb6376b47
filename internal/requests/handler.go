package requests

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

// Handler manages service-request endpoints. The export route must sit
// behind the export gate; the caller wires that when mounting.
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

// MountRoutes registers the view routes. ExportCSV is mounted separately so
// the router can wrap it in the export gate.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/new", h.showCreateForm)
	r.Post("/", h.create)
	r.Post("/{id}/status", h.updateStatus)
}

type formErrors map[string]string

type requestForm struct {
	RequesterName string
	Category      string
	Description   string
}

const listPerPage = 20

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list requests failed", slog.Any("error", err))
		h.render(w, r, "pages/requests/list.html", map[string]any{"Errors": formErrors{"general": shared.UserSafeMessage(err)}}, http.StatusInternalServerError)
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pg := shared.NewPagination(page, listPerPage, len(items))
	start := (pg.Page - 1) * pg.PerPage
	if start > len(items) {
		start = len(items)
	}
	end := start + pg.PerPage
	if end > len(items) {
		end = len(items)
	}

	h.render(w, r, "pages/requests/list.html", map[string]any{"Requests": items[start:end], "Pagination": pg}, http.StatusOK)
}

func (h *Handler) showCreateForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/requests/form.html", map[string]any{"Form": requestForm{}, "Errors": formErrors{}}, http.StatusOK)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	input := CreateInput{
		RequesterName: strings.TrimSpace(r.PostFormValue("requester_name")),
		Category:      r.PostFormValue("category"),
		Description:   strings.TrimSpace(r.PostFormValue("description")),
	}
	form := requestForm{RequesterName: input.RequesterName, Category: input.Category, Description: input.Description}

	errs := formErrors{}
	if err := h.validator.Struct(input); err != nil {
		for _, fieldErr := range err.(validator.ValidationErrors) {
			errs[fieldErr.Field()] = fieldErr.Error()
		}
	}
	if len(errs) > 0 {
		h.render(w, r, "pages/requests/form.html", map[string]any{"Form": form, "Errors": errs}, http.StatusBadRequest)
		return
	}

	if _, err := h.service.Create(r.Context(), actorID(r), input); err != nil {
		h.logger.Error("create request failed", slog.Any("error", err))
		h.render(w, r, "pages/requests/form.html", map[string]any{"Form": form, "Errors": formErrors{"general": shared.UserSafeMessage(err)}}, http.StatusInternalServerError)
		return
	}
	h.redirectWithFlash(w, r, "/requests", "success", "Request submitted")
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	status := RequestStatus(r.PostFormValue("status"))

	if err := h.service.UpdateStatus(r.Context(), actorID(r), id, status); err != nil {
		switch {
		case errors.Is(err, ErrRequestFinalized):
			h.redirectWithFlash(w, r, "/requests", "error", "Request is already finalized")
		case errors.Is(err, shared.ErrNotFound):
			h.redirectWithFlash(w, r, "/requests", "error", shared.UserSafeMessage(err))
		default:
			h.logger.Error("update request status failed", slog.Any("error", err), slog.Int64("request_id", id))
			h.redirectWithFlash(w, r, "/requests", "error", shared.UserSafeMessage(err))
		}
		return
	}
	h.redirectWithFlash(w, r, "/requests", "success", "Status updated")
}

// ExportCSV streams all requests as a CSV download.
func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("export requests failed", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+CSVFilename(time.Now())+`"`)
	if err := WriteCSV(w, items); err != nil {
		h.logger.Error("write requests csv", slog.Any("error", err))
	}
}

func actorID(r *http.Request) int64 {
	res := session.ResolutionFromContext(r.Context())
	if res.Subject == nil {
		return 0
	}
	return res.Subject.ID
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template string, data map[string]any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{Title: "Service requests", CSRFToken: csrfToken, Flash: flash, CurrentPath: r.URL.Path, Data: data}
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
