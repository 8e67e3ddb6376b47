package users

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/aegis-portal/aegis-portal/internal/identity"
	"github.com/aegis-portal/aegis-portal/internal/session"
	"github.com/aegis-portal/aegis-portal/internal/shared"
	"github.com/aegis-portal/aegis-portal/internal/view"
)

// Handler manages user management endpoints.
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

// MountRoutes registers user management routes. The caller wraps them in the
// view gate for the users page.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listAccounts)
	r.Get("/new", h.showCreateForm)
	r.Post("/", h.createAccount)
	r.Post("/{id}/status", h.setStatus)
	r.Post("/{id}/password", h.resetPassword)
}

type formErrors map[string]string

type createForm struct {
	Username string
	FullName string
	Role     string
}

func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.ListAccounts(r.Context())
	if err != nil {
		h.logger.Error("list accounts failed", slog.Any("error", err))
		h.render(w, r, "pages/users/list.html", map[string]any{"Errors": formErrors{"general": shared.UserSafeMessage(err)}}, http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/users/list.html", map[string]any{"Users": accounts}, http.StatusOK)
}

func (h *Handler) showCreateForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/users/form.html", map[string]any{"Form": createForm{}, "Errors": formErrors{}}, http.StatusOK)
}

func (h *Handler) createAccount(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	input := CreateInput{
		Username: strings.TrimSpace(r.PostFormValue("username")),
		FullName: strings.TrimSpace(r.PostFormValue("full_name")),
		Secret:   r.PostFormValue("password"),
		Role:     identity.Role(r.PostFormValue("role")),
	}
	form := createForm{Username: input.Username, FullName: input.FullName, Role: string(input.Role)}

	errs := formErrors{}
	if err := h.validator.Struct(input); err != nil {
		for _, fieldErr := range err.(validator.ValidationErrors) {
			errs[fieldErr.Field()] = fieldErr.Error()
		}
	}
	if len(errs) > 0 {
		h.render(w, r, "pages/users/form.html", map[string]any{"Form": form, "Errors": errs}, http.StatusBadRequest)
		return
	}

	if _, err := h.service.Create(r.Context(), actorID(r), input); err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			h.render(w, r, "pages/users/form.html", map[string]any{"Form": form, "Errors": formErrors{"general": "Username is already taken"}}, http.StatusConflict)
			return
		}
		h.logger.Error("create account failed", slog.Any("error", err))
		h.render(w, r, "pages/users/form.html", map[string]any{"Form": form, "Errors": formErrors{"general": shared.UserSafeMessage(err)}}, http.StatusInternalServerError)
		return
	}
	h.redirectWithFlash(w, r, "/users", "success", "User created")
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	status := identity.Status(r.PostFormValue("status"))
	if status != identity.StatusActive && status != identity.StatusInactive {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.SetStatus(r.Context(), actorID(r), id, status); err != nil {
		switch {
		case errors.Is(err, ErrSelfDeactivate):
			h.redirectWithFlash(w, r, "/users", "error", "You cannot deactivate your own account")
		case errors.Is(err, shared.ErrNotFound):
			h.redirectWithFlash(w, r, "/users", "error", shared.UserSafeMessage(err))
		default:
			h.logger.Error("set account status failed", slog.Any("error", err), slog.Int64("user_id", id))
			h.redirectWithFlash(w, r, "/users", "error", shared.UserSafeMessage(err))
		}
		return
	}
	h.redirectWithFlash(w, r, "/users", "success", "Status updated")
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	secret := r.PostFormValue("password")
	if len(secret) < 8 {
		h.redirectWithFlash(w, r, "/users", "error", "Password must be at least 8 characters")
		return
	}

	if err := h.service.ResetPassword(r.Context(), actorID(r), id, secret); err != nil {
		h.logger.Error("reset password failed", slog.Any("error", err), slog.Int64("user_id", id))
		h.redirectWithFlash(w, r, "/users", "error", shared.UserSafeMessage(err))
		return
	}
	h.redirectWithFlash(w, r, "/users", "success", "Password reset")
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
	viewData := view.TemplateData{Title: "Users", CSRFToken: csrfToken, Flash: flash, CurrentPath: r.URL.Path, Data: data}
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
