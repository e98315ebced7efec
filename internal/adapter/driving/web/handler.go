// Package web implements the HTML admin driving adapter using html/template.
package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	vm "github.com/ericfisherdev/infrapanel/internal/adapter/driving/web/viewmodel"
	"github.com/ericfisherdev/infrapanel/internal/application"
	"github.com/ericfisherdev/infrapanel/internal/domain/model"
	"github.com/ericfisherdev/infrapanel/internal/encryption"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

const maxFormBody = 16 << 10

// KeyRotator runs a key rotation pass. *application.RotationService satisfies it.
type KeyRotator interface {
	Rotate(ctx context.Context, oldKey string, opts application.RotateOptions) (*model.RotationReport, error)
}

// Handler is the web GUI driving adapter that serves the admin pages.
type Handler struct {
	rotator       KeyRotator
	secureCookies bool
	logger        *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(rotator KeyRotator, secureCookies bool, logger *slog.Logger) *Handler {
	return &Handler{
		rotator:       rotator,
		secureCookies: secureCookies,
		logger:        logger,
	}
}

// RotateKeyForm renders the key rotation form.
func (h *Handler) RotateKeyForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, vm.RotationPageViewModel{})
}

// RotateKey re-encrypts every stored secret from the submitted old key to the
// active key and renders the resulting report.
func (h *Handler) RotateKey(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBody)
	if err := r.ParseForm(); err != nil {
		h.render(w, r, http.StatusBadRequest, vm.RotationPageViewModel{Error: "Invalid form submission."})
		return
	}
	if !validateCSRF(r) {
		h.render(w, r, http.StatusForbidden, vm.RotationPageViewModel{Error: "Your session expired. Reload the page and try again."})
		return
	}

	oldKey := r.PostFormValue("old_key")
	if oldKey == "" {
		h.render(w, r, http.StatusBadRequest, vm.RotationPageViewModel{Error: "The old key is required."})
		return
	}
	opts := application.RotateOptions{DryRun: r.PostFormValue("dry_run") != ""}

	principal, _ := application.PrincipalFromContext(r.Context())
	h.logger.Info("key rotation requested", "by", principal.Username, "dry_run", opts.DryRun)

	report, err := h.rotator.Rotate(r.Context(), oldKey, opts)
	if err != nil {
		status, message := rotationFailure(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("key rotation failed", "error", err)
		}
		h.render(w, r, status, vm.RotationPageViewModel{Error: message})
		return
	}

	h.render(w, r, http.StatusOK, vm.RotationPageViewModel{Report: toRotationReportViewModel(report)})
}

// rotationFailure maps a rotation error to a status code and a message that
// is safe to show.
func rotationFailure(err error) (int, string) {
	switch {
	case errors.Is(err, encryption.ErrInvalidKeyLength), errors.Is(err, encryption.ErrInvalidKeyEncoding):
		return http.StatusBadRequest, "The old key must be a base64-encoded 32-byte key."
	case errors.Is(err, application.ErrRotationInProgress):
		return http.StatusConflict, "Another key rotation is already running."
	case errors.Is(err, application.ErrServerConfiguration):
		return http.StatusInternalServerError, "No active encryption key is configured."
	default:
		return http.StatusInternalServerError, "Key rotation was aborted. No changes were written."
	}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, page vm.RotationPageViewModel) {
	page.CSRFToken = h.csrfToken(w, r)
	if principal, ok := application.PrincipalFromContext(r.Context()); ok {
		page.Username = principal.Username
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pages.ExecuteTemplate(w, "rotate.html", page); err != nil {
		h.logger.Error("failed to render rotation page", "error", err)
	}
}
