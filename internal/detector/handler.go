package detector

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/tracelight/tracelight/internal/domain"
	"github.com/tracelight/tracelight/internal/pkg/httputil"
)

// Escalator runs the escalation pipeline for an anomalous event.
type Escalator interface {
	ProcessEscalation(ctx context.Context, event *domain.Event, reason string) (*domain.Incident, error)
}

// Handler handles HTTP requests for event ingestion and analysis.
type Handler struct {
	service   *Service
	escalator Escalator
	validator *validator.Validate
}

// NewHandler creates a new detector handler.
func NewHandler(service *Service, escalator Escalator) *Handler {
	return &Handler{
		service:   service,
		escalator: escalator,
		validator: validator.New(),
	}
}

// RegisterRoutes registers all HTTP routes for the detector module.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/events", func(r chi.Router) {
		r.Post("/", h.IngestEvent)
		r.Get("/{id}", h.GetEvent)
		r.Post("/{id}/analyze", h.AnalyzeEvent)
	})
}

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrEventNotFound, Status: http.StatusNotFound},
}

// IngestEventRequest represents the request body for ingesting an event.
type IngestEventRequest struct {
	ProjectID string         `json:"project_id" validate:"required"`
	MonitorID *string        `json:"monitor_id"`
	Type      string         `json:"type" validate:"required"`
	Source    string         `json:"source" validate:"required"`
	Message   string         `json:"message" validate:"required"`
	RawData   map[string]any `json:"raw_data"`
	Severity  string         `json:"severity" validate:"omitempty,oneof=low medium high critical"`
}

// IngestEventResponse carries the stored event, the detector's verdict and,
// when the event escalated, the incident it landed in.
type IngestEventResponse struct {
	Event    *domain.Event    `json:"event"`
	Analysis Result           `json:"analysis"`
	Incident *domain.Incident `json:"incident,omitempty"`
}

// IngestEvent handles POST /events request. It stores the event, classifies
// it, and runs the escalation pipeline when the detector says so.
func (h *Handler) IngestEvent(w http.ResponseWriter, r *http.Request) {
	var req IngestEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	event := &domain.Event{
		ProjectID: req.ProjectID,
		MonitorID: req.MonitorID,
		Type:      domain.EventType(req.Type),
		Source:    domain.EventSource(req.Source),
		Message:   req.Message,
		RawData:   req.RawData,
		Severity:  domain.Severity(req.Severity),
	}
	if !event.Type.IsValid() {
		httputil.Error(w, http.StatusBadRequest, "invalid event type")
		return
	}

	if err := h.service.Ingest(r.Context(), event); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	result, err := h.service.Analyze(r.Context(), event)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	resp := IngestEventResponse{Event: event, Analysis: result}
	if result.ShouldEscalate {
		h.service.MarkForDiagnosis(r.Context(), event, result.Reason)

		incident, err := h.escalator.ProcessEscalation(r.Context(), event, result.Reason)
		if err != nil {
			httputil.HandleError(r.Context(), w, err, errorMappings)
			return
		}
		resp.Incident = incident
	}

	httputil.Success(w, http.StatusCreated, resp)
}

// GetEvent handles GET /events/{id} request.
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	event, err := h.service.GetEvent(r.Context(), id)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, event)
}

// AnalyzeEvent handles POST /events/{id}/analyze request. It re-runs the
// detector on a stored event without side effects.
func (h *Handler) AnalyzeEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	event, err := h.service.GetEvent(r.Context(), id)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	result, err := h.service.Analyze(r.Context(), event)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, result)
}
