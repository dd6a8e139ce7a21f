// Package httphandler is the JSON driving adapter that exposes an unlocked
// vault to local tools over HTTP.
package httphandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ericfisherdev/lockbox/internal/application"
	"github.com/ericfisherdev/lockbox/internal/crypto"
	"github.com/ericfisherdev/lockbox/internal/domain/model"
)

// maxBodyBytes caps request bodies; a password document is tiny.
const maxBodyBytes = 64 << 10

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	vault   *application.Vault
	syncSvc *application.SyncService
	logger  *slog.Logger
}

// NewHandler creates a Handler over an unlocked vault. syncSvc may be nil.
func NewHandler(vault *application.Vault, syncSvc *application.SyncService, logger *slog.Logger) *Handler {
	return &Handler{
		vault:   vault,
		syncSvc: syncSvc,
		logger:  logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging, recovery and bearer token middleware. The health endpoint is
// the only route reachable without the token.
func NewServeMux(h *Handler, apiToken string, logger *slog.Logger) http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("GET /api/v1/services", h.ListServices)
	api.HandleFunc("GET /api/v1/services/{service}", h.GetPassword)
	api.HandleFunc("PUT /api/v1/services/{service}", h.PutPassword)
	api.HandleFunc("DELETE /api/v1/services/{service}", h.DeleteService)
	api.HandleFunc("POST /api/v1/passwords/generate", h.GeneratePassword)
	api.HandleFunc("POST /api/v1/sync/push", h.Push)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/health", h.Health)
	mux.Handle("/api/v1/", bearerAuthMiddleware(apiToken, api))

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// ListServices returns every stored service name in lexicographic order.
func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.vault.ListServices(r.Context())
	if err != nil {
		h.writeVaultError(w, "failed to list services", "", err)
		return
	}

	writeJSON(w, http.StatusOK, ServiceListResponse{Services: services})
}

// GetPassword decrypts and returns the password stored for a service.
func (h *Handler) GetPassword(w http.ResponseWriter, r *http.Request) {
	service := r.PathValue("service")

	password, err := h.vault.Retrieve(r.Context(), service)
	if err != nil {
		h.writeVaultError(w, "failed to retrieve password", service, err)
		return
	}

	writeJSON(w, http.StatusOK, PasswordResponse{Service: service, Password: password})
}

// PutPassword encrypts and stores a password, replacing any existing one.
func (h *Handler) PutPassword(w http.ResponseWriter, r *http.Request) {
	service := r.PathValue("service")

	var req PutPasswordRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.vault.StorePassword(r.Context(), service, req.Password); err != nil {
		h.writeVaultError(w, "failed to store password", service, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteService removes a service. Deleting an absent service succeeds.
func (h *Handler) DeleteService(w http.ResponseWriter, r *http.Request) {
	service := r.PathValue("service")

	if err := h.vault.DeleteService(r.Context(), service); err != nil {
		h.writeVaultError(w, "failed to delete service", service, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GeneratePassword returns a random password without storing it. The length
// query parameter defaults to crypto.DefaultPasswordLength.
func (h *Handler) GeneratePassword(w http.ResponseWriter, r *http.Request) {
	length := crypto.DefaultPasswordLength
	if raw := r.URL.Query().Get("length"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > maxGeneratedLength {
			writeError(w, http.StatusBadRequest, "invalid length")
			return
		}
		length = n
	}

	password, err := h.vault.Generate(length)
	if err != nil {
		h.writeVaultError(w, "failed to generate password", "", err)
		return
	}

	writeJSON(w, http.StatusOK, GeneratedPasswordResponse{Password: password, Length: length})
}

// maxGeneratedLength bounds the generate endpoint.
const maxGeneratedLength = 4096

// Push uploads a snapshot of the vault to the configured remote.
func (h *Handler) Push(w http.ResponseWriter, r *http.Request) {
	if err := h.syncSvc.Push(r.Context(), h.vault); err != nil {
		h.writeVaultError(w, "failed to push vault", "", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Health returns a simple health check response including the vault state.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Vault:  h.vault.State().String(),
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// writeVaultError maps domain errors to status codes. Unexpected errors are
// logged; the response never echoes the underlying cause.
func (h *Handler) writeVaultError(w http.ResponseWriter, msg, service string, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidService):
		writeError(w, http.StatusBadRequest, "invalid service name")
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, "service not found")
	case errors.Is(err, model.ErrAuthentication):
		writeError(w, http.StatusUnprocessableEntity, "unable to decrypt password")
	case errors.Is(err, model.ErrVaultLocked), errors.Is(err, model.ErrVaultClosed):
		writeError(w, http.StatusServiceUnavailable, "vault is not unlocked")
	case errors.Is(err, model.ErrSyncNotConfigured):
		writeError(w, http.StatusNotImplemented, "remote sync is not configured")
	default:
		h.logger.Error(msg, "service", service, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
