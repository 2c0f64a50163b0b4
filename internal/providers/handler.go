package providers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/tracelight/tracelight/internal/domain"
	"github.com/tracelight/tracelight/internal/pkg/httputil"
)

// Handler handles HTTP requests for provider health.
type Handler struct {
	tracker   *Tracker
	validator *validator.Validate
}

// NewHandler creates a new providers handler.
func NewHandler(tracker *Tracker) *Handler {
	return &Handler{
		tracker:   tracker,
		validator: validator.New(),
	}
}

// RegisterRoutes registers all HTTP routes for the providers module.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/providers", h.ListStatuses)
	r.Get("/providers/{provider}", h.GetStatus)
	r.Put("/providers/{provider}", h.SetStatus)
}

// SetStatusRequest represents the request body for setting provider health.
type SetStatusRequest struct {
	Status  string `json:"status" validate:"required,oneof=operational degraded outage"`
	Details string `json:"details" validate:"max=1024"`
}

// ListStatuses handles GET /providers request.
func (h *Handler) ListStatuses(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.tracker.Statuses(r.Context())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, nil)
		return
	}

	httputil.Success(w, http.StatusOK, statuses)
}

// GetStatus handles GET /providers/{provider} request.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	status, err := h.tracker.Get(r.Context(), provider)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, []httputil.ErrorMapping{
			{Error: ErrProviderNotFound, Status: http.StatusNotFound},
		})
		return
	}

	httputil.Success(w, http.StatusOK, status)
}

// SetStatus handles PUT /providers/{provider} request.
func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	var req SetStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	status, err := h.tracker.Set(r.Context(), provider, domain.ProviderState(req.Status), req.Details)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, nil)
		return
	}

	httputil.Success(w, http.StatusOK, status)
}
