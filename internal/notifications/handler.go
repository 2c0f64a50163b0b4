package notifications

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/tracelight/tracelight/internal/domain"
	"github.com/tracelight/tracelight/internal/pkg/httputil"
)

// Handler handles HTTP requests for notification channels.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new notifications handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers all HTTP routes for the notifications module.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/channels", func(r chi.Router) {
		r.Get("/", h.ListChannels)
		r.Post("/", h.CreateChannel)
		r.Get("/{id}", h.GetChannel)
		r.Post("/{id}/toggle", h.ToggleChannel)
		r.Delete("/{id}", h.DeleteChannel)
		r.Post("/{id}/test", h.TestChannel)
	})
}

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrChannelNotFound, Status: http.StatusNotFound},
	{Error: ErrUnsupportedChannelType, Status: http.StatusBadRequest},
}

// CreateChannelRequest represents the request body for creating a channel.
type CreateChannelRequest struct {
	ProjectID  string `json:"project_id" validate:"required"`
	Type       string `json:"type" validate:"required"`
	WebhookURL string `json:"webhook_url" validate:"required,url,startswith=https://"`
	Enabled    *bool  `json:"enabled"`
}

// ToggleChannelRequest represents the request body for toggling a channel.
type ToggleChannelRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// CreateChannel handles POST /channels request.
func (h *Handler) CreateChannel(w http.ResponseWriter, r *http.Request) {
	var req CreateChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	channel := &domain.NotificationChannel{
		ProjectID:  req.ProjectID,
		Type:       domain.ChannelType(req.Type),
		WebhookURL: req.WebhookURL,
		Enabled:    enabled,
	}

	if err := h.service.CreateChannel(r.Context(), channel); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, channel)
}

// ListChannels handles GET /channels request.
func (h *Handler) ListChannels(w http.ResponseWriter, r *http.Request) {
	projectID := r.URL.Query().Get("project_id")
	if projectID == "" {
		httputil.Error(w, http.StatusBadRequest, "project_id is required")
		return
	}

	channels, err := h.service.ListChannels(r.Context(), projectID)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, channels)
}

// GetChannel handles GET /channels/{id} request.
func (h *Handler) GetChannel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	channel, err := h.service.GetChannel(r.Context(), id)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, channel)
}

// ToggleChannel handles POST /channels/{id}/toggle request.
func (h *Handler) ToggleChannel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req ToggleChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	channel, err := h.service.ToggleChannel(r.Context(), id, *req.Enabled)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, channel)
}

// DeleteChannel handles DELETE /channels/{id} request.
func (h *Handler) DeleteChannel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.DeleteChannel(r.Context(), id); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// TestChannel handles POST /channels/{id}/test request.
func (h *Handler) TestChannel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.TestChannel(r.Context(), id); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, map[string]string{"status": "sent"})
}
