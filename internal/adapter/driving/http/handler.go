// Package httphandler implements the JSON API driving adapter.
package httphandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/ericfisherdev/infrapanel/internal/application"
	"github.com/ericfisherdev/infrapanel/internal/domain/model"
	"github.com/ericfisherdev/infrapanel/internal/domain/port/driven"
)

const maxSetPasswordBody = 64 << 10

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	creds   *application.CredentialService
	auth    Authenticator
	metrics http.Handler
	logger  *slog.Logger
}

// NewHandler creates a Handler with all required dependencies. metrics may be
// nil, in which case /metrics is not served.
func NewHandler(
	creds *application.CredentialService,
	auth Authenticator,
	metrics http.Handler,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		creds:   creds,
		auth:    auth,
		metrics: metrics,
		logger:  logger,
	}
}

// RegisterAPIRoutes registers all API routes on the provided mux.
func RegisterAPIRoutes(mux *http.ServeMux, h *Handler) {
	authed := RequireAuth(h.auth, h.logger)

	reveal := noStore(authed(http.HandlerFunc(h.GetPassword)))
	mux.Handle("GET /api/get_password", reveal)
	mux.Handle("POST /api/get_password", reveal)
	mux.Handle("PUT /api/v1/passwords/{type}/{id}", noStore(authed(RequireAdmin(http.HandlerFunc(h.SetPassword)))))

	mux.HandleFunc("GET /api/v1/health", h.Health)
	if h.metrics != nil {
		mux.Handle("GET /metrics", h.metrics)
	}
}

// GetPassword decrypts and returns the secret of one row. The selector and
// id come from the query string or a form body.
func (h *Handler) GetPassword(w http.ResponseWriter, r *http.Request) {
	t, err := model.ParseSecretType(r.FormValue("type"))
	if err != nil {
		writePasswordFailure(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}
	id, err := model.ParseRecordID(r.FormValue("id"))
	if err != nil {
		writePasswordFailure(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}
	if !h.allowed(r, t) {
		writePasswordFailure(w, http.StatusForbidden, msgForbidden)
		return
	}

	password, found, err := h.creds.Reveal(r.Context(), t, id)
	switch {
	case errors.Is(err, application.ErrServerConfiguration):
		writePasswordFailure(w, http.StatusInternalServerError, msgServerConfig)
	case errors.Is(err, model.ErrInvalidSelector), errors.Is(err, model.ErrInvalidID):
		writePasswordFailure(w, http.StatusBadRequest, msgInvalidRequest)
	case err != nil:
		h.logger.Error("failed to reveal credential", "type", t, "id", id, "error", err)
		writePasswordFailure(w, http.StatusInternalServerError, msgRetrieveFailed)
	case !found:
		writePasswordFailure(w, http.StatusNotFound, msgNoPassword)
	default:
		writeJSON(w, http.StatusOK, PasswordResponse{Success: true, Password: password})
	}
}

// SetPassword encrypts and stores a new secret on an existing row.
func (h *Handler) SetPassword(w http.ResponseWriter, r *http.Request) {
	if mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err != nil || mediaType != "application/json" {
		writeError(w, http.StatusUnsupportedMediaType, "content type must be application/json")
		return
	}

	t, err := model.ParseSecretType(r.PathValue("type"))
	if err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}
	id, err := model.ParseRecordID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	var req SetPasswordRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSetPasswordBody)).Decode(&req); err != nil || req.Password == nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err = h.creds.Store(r.Context(), t, id, *req.Password)
	switch {
	case errors.Is(err, driven.ErrRecordNotFound):
		writeError(w, http.StatusNotFound, "record not found")
		return
	case errors.Is(err, application.ErrServerConfiguration):
		writeError(w, http.StatusInternalServerError, msgServerConfig)
		return
	case err != nil:
		h.logger.Error("failed to store credential", "type", t, "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	principal, _ := application.PrincipalFromContext(r.Context())
	h.logger.Info("credential updated", "type", t, "id", id, "by", principal.Username)
	w.WriteHeader(http.StatusNoContent)
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// allowed reports whether the request principal may reveal secrets of type t.
func (h *Handler) allowed(r *http.Request, t model.SecretType) bool {
	if !t.AdminOnly() {
		return true
	}
	principal, ok := application.PrincipalFromContext(r.Context())
	return ok && principal.IsAdmin()
}
