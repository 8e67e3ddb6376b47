package reports

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aegis-portal/aegis-portal/internal/shared"
	"github.com/aegis-portal/aegis-portal/internal/view"
	"github.com/aegis-portal/aegis-portal/report"
)

// Handler manages the reporting page and its exports. Both exports must be
// mounted behind the export gate by the caller.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	pdf       *report.Client
	templates *view.Engine
	csrf      *shared.CSRFManager
}

// NewHandler builds Handler instance. pdf may be nil when no Gotenberg
// endpoint is configured; the PDF export then reports unavailable.
func NewHandler(logger *slog.Logger, service *Service, pdf *report.Client, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	return &Handler{logger: logger, service: service, pdf: pdf, templates: templates, csrf: csrf}
}

// MountRoutes registers the view route.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.index)
}

func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.BuildSummary(r.Context())
	if err != nil {
		h.logger.Error("build report failed", slog.Any("error", err))
		h.render(w, r, map[string]any{"Errors": map[string]string{"general": shared.UserSafeMessage(err)}}, http.StatusInternalServerError)
		return
	}
	h.render(w, r, map[string]any{"Rows": summary.Rows}, http.StatusOK)
}

// ExportCSV streams the summary as a CSV download.
func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.BuildSummary(r.Context())
	if err != nil {
		h.logger.Error("export report failed", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+CSVFilename(time.Now())+`"`)
	if err := WriteCSV(w, summary); err != nil {
		h.logger.Error("write report csv", slog.Any("error", err))
	}
}

// ExportPDF renders the summary through Gotenberg.
func (h *Handler) ExportPDF(w http.ResponseWriter, r *http.Request) {
	if h.pdf == nil {
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	summary, err := h.service.BuildSummary(r.Context())
	if err != nil {
		h.logger.Error("export report failed", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	html, err := RenderHTML(summary, time.Now())
	if err != nil {
		h.logger.Error("render report html", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	pdf, err := h.pdf.RenderHTML(r.Context(), html)
	if err != nil {
		h.logger.Error("render report pdf", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "inline; filename=operations-report.pdf")
	_, _ = w.Write(pdf)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, data map[string]any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{Title: "Reports", CSRFToken: csrfToken, Flash: flash, CurrentPath: r.URL.Path, Data: data}
	w.WriteHeader(status)
	if err := h.templates.Render(w, "pages/reports/index.html", viewData); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
	}
}
