// Package httphandler is the HTTP driving adapter that serves the REST API.
package httphandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/tmorling/credvault/internal/application"
	"github.com/tmorling/credvault/internal/domain/model"
	"github.com/tmorling/credvault/internal/domain/port/driven"
)

// Handler holds the dependencies of the REST API endpoints.
type Handler struct {
	repo     *application.Repository
	settings driven.SettingsStore
	prober   driven.PackageProber
	logger   *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(repo *application.Repository, settings driven.SettingsStore, prober driven.PackageProber, logger *slog.Logger) *Handler {
	return &Handler{
		repo:     repo,
		settings: settings,
		prober:   prober,
		logger:   logger,
	}
}

// RegisterAPIRoutes registers all API routes on the given mux.
func RegisterAPIRoutes(mux *http.ServeMux, h *Handler) {
	mux.HandleFunc("GET /api/v1/credentials", h.ListCredentials)
	mux.HandleFunc("POST /api/v1/credentials", h.CreateCredential)
	mux.HandleFunc("GET /api/v1/credentials/{id}", h.GetCredential)
	mux.HandleFunc("PUT /api/v1/credentials/{id}", h.UpdateCredential)
	mux.HandleFunc("DELETE /api/v1/credentials/{id}", h.DeleteCredential)
	mux.HandleFunc("GET /api/v1/options", h.ListOptions)
	mux.HandleFunc("GET /api/v1/theme", h.GetTheme)
	mux.HandleFunc("PUT /api/v1/theme", h.SetTheme)
	mux.HandleFunc("GET /api/v1/package/availability", h.PackageAvailability)
	mux.HandleFunc("GET /api/v1/package/integrity", h.PackageIntegrity)
	mux.HandleFunc("POST /api/v1/package/checksum", h.PackageChecksum)
	mux.HandleFunc("GET /api/v1/health", h.Health)
}

// ApplyMiddleware wraps the handler with logging and recovery middleware.
// Recovery sits innermost so panics are caught before logging.
func ApplyMiddleware(next http.Handler, logger *slog.Logger) http.Handler {
	wrapped := recoveryMiddleware(logger, next)
	wrapped = loggingMiddleware(logger, wrapped)
	return wrapped
}

// ListCredentials runs the query pipeline over the collection: search and
// categorical filters first, then the page window.
func (h *Handler) ListCredentials(w http.ResponseWriter, r *http.Request) {
	q := application.Query{
		Search:   r.URL.Query().Get("search"),
		Category: r.URL.Query().Get("category"),
		Range:    r.URL.Query().Get("range"),
		Branch:   r.URL.Query().Get("branch"),
	}

	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "page_size", application.DefaultPageSize)

	filtered := application.Filter(h.repo.List(), q)
	window := application.Paginate(filtered, page, pageSize)

	writeJSON(w, http.StatusOK, toPageResponse(window))
}

// GetCredential returns a single credential by id.
func (h *Handler) GetCredential(w http.ResponseWriter, r *http.Request) {
	cred, ok := h.repo.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "credential not found")
		return
	}

	writeJSON(w, http.StatusOK, toCredentialResponse(cred))
}

// CreateCredential validates the submitted form and appends a new record.
func (h *Handler) CreateCredential(w http.ResponseWriter, r *http.Request) {
	var form model.CredentialForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := validateForm(form); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cred := h.repo.Create(r.Context(), form)
	writeJSON(w, http.StatusCreated, toCredentialResponse(cred))
}

// UpdateCredential replaces the editable fields of an existing record.
func (h *Handler) UpdateCredential(w http.ResponseWriter, r *http.Request) {
	var form model.CredentialForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := validateForm(form); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cred, ok := h.repo.Update(r.Context(), r.PathValue("id"), form)
	if !ok {
		writeError(w, http.StatusNotFound, "credential not found")
		return
	}

	writeJSON(w, http.StatusOK, toCredentialResponse(cred))
}

// DeleteCredential removes a record by id.
func (h *Handler) DeleteCredential(w http.ResponseWriter, r *http.Request) {
	if !h.repo.Delete(r.Context(), r.PathValue("id")) {
		writeError(w, http.StatusNotFound, "credential not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListOptions returns the fixed option lists the form layer renders.
func (h *Handler) ListOptions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, OptionsResponse{
		Categories: model.CategoryOptions,
		Ranges:     model.RangesOptions,
		Branches:   model.BranchOptions,
		PageSizes:  application.PageSizeOptions,
	})
}

// GetTheme returns the persisted theme flag.
func (h *Handler) GetTheme(w http.ResponseWriter, r *http.Request) {
	theme, err := h.settings.Theme(r.Context())
	if err != nil {
		// Theme already fell back to light; the read error is background noise.
		h.logger.Warn("failed to read theme", "error", err)
	}

	writeJSON(w, http.StatusOK, ThemeResponse{Theme: string(theme)})
}

// SetTheme persists the theme flag.
func (h *Handler) SetTheme(w http.ResponseWriter, r *http.Request) {
	var req ThemeResponse
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	theme := model.ParseTheme(req.Theme)
	if err := h.settings.SetTheme(r.Context(), theme); err != nil {
		h.logger.Error("failed to persist theme", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, ThemeResponse{Theme: string(theme)})
}

// PackageAvailability runs the availability probe. Cancellation (the client
// going away mid-probe) discards the result instead of reporting it.
func (h *Handler) PackageAvailability(w http.ResponseWriter, r *http.Request) {
	availability, err := h.prober.CheckAvailability(r.Context())
	if err != nil {
		// Context cancelled; the triggering caller is gone.
		h.logger.Debug("availability probe cancelled", "error", err)
		return
	}

	writeJSON(w, http.StatusOK, toAvailabilityResponse(availability))
}

// PackageIntegrity runs the lightweight metadata probe.
func (h *Handler) PackageIntegrity(w http.ResponseWriter, r *http.Request) {
	meta, err := h.prober.FetchMetadata(r.Context())
	if err != nil {
		if errors.Is(err, r.Context().Err()) && r.Context().Err() != nil {
			return
		}
		writeJSON(w, http.StatusOK, IntegrityResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, toIntegrityResponse(meta))
}

// PackageChecksum downloads the full package and returns its SHA-256 digest.
// Explicitly user-triggered, hence POST.
func (h *Handler) PackageChecksum(w http.ResponseWriter, r *http.Request) {
	sum, err := h.prober.Checksum(r.Context())
	if err != nil {
		if errors.Is(err, r.Context().Err()) && r.Context().Err() != nil {
			return
		}
		writeJSON(w, http.StatusOK, ChecksumResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, ChecksumResponse{SHA256: sum})
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// validateForm enforces the form-layer contract: required fields non-empty,
// multi-value fields non-empty and drawn from the fixed option lists. The
// repository itself deliberately does not enforce this.
func validateForm(form model.CredentialForm) error {
	switch {
	case strings.TrimSpace(form.Category) == "":
		return errors.New("category is required")
	case strings.TrimSpace(form.Name) == "":
		return errors.New("name is required")
	case strings.TrimSpace(form.Designation) == "":
		return errors.New("designation is required")
	case form.LoginID == "":
		return errors.New("loginId is required")
	case form.Password == "":
		return errors.New("password is required")
	case len(form.Ranges) == 0:
		return errors.New("at least one range is required")
	case len(form.Branch) == 0:
		return errors.New("at least one branch is required")
	}

	for _, v := range form.Ranges {
		if !inOptions(model.RangesOptions, v) {
			return errors.New("unknown range option: " + v)
		}
	}
	for _, v := range form.Branch {
		if !inOptions(model.BranchOptions, v) {
			return errors.New("unknown branch option: " + v)
		}
	}

	return nil
}

func inOptions(options []string, value string) bool {
	for _, o := range options {
		if o == value {
			return true
		}
	}
	return false
}

func queryInt(r *http.Request, name string, fallback int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
