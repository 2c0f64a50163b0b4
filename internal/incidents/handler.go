package incidents

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/tracelight/tracelight/internal/domain"
	"github.com/tracelight/tracelight/internal/pkg/httputil"
)

// Handler handles HTTP requests for the incidents module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new incidents handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers all HTTP routes for the incidents module.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/incidents", func(r chi.Router) {
		r.Get("/", h.ListIncidents)
		r.Post("/", h.CreateIncident)
		r.Get("/{id}", h.GetIncident)
		r.Post("/{id}/resolve", h.ResolveIncident)
		r.Post("/{id}/diagnosis", h.AttachDiagnosis)
	})
}

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrIncidentNotFound, Status: http.StatusNotFound},
}

// CreateIncidentRequest represents the request body for creating an incident.
type CreateIncidentRequest struct {
	ProjectID        string   `json:"project_id" validate:"required"`
	EventIDs         []string `json:"event_ids" validate:"required,min=1"`
	CorrelationGroup string   `json:"correlation_group"`
	Severity         string   `json:"severity" validate:"omitempty,oneof=low medium high critical"`
}

// AttachDiagnosisRequest represents the request body for attaching a diagnosis.
type AttachDiagnosisRequest struct {
	RootCause    string `json:"root_cause" validate:"required"`
	Severity     string `json:"severity" validate:"required,oneof=low medium high critical"`
	SuggestedFix string `json:"suggested_fix"`
	FixPrompt    string `json:"fix_prompt"`
}

// ListIncidents handles GET /incidents request.
func (h *Handler) ListIncidents(w http.ResponseWriter, r *http.Request) {
	projectID := r.URL.Query().Get("project_id")
	if projectID == "" {
		httputil.Error(w, http.StatusBadRequest, "project_id is required")
		return
	}

	filter := ListFilter{
		ProjectID: projectID,
		Status:    domain.IncidentStatus(r.URL.Query().Get("status")),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			httputil.Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = limit
	}

	list, err := h.service.ListIncidents(r.Context(), filter)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, list)
}

// GetIncident handles GET /incidents/{id} request.
func (h *Handler) GetIncident(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	incident, err := h.service.GetIncident(r.Context(), id)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, incident)
}

// CreateIncident handles POST /incidents request.
func (h *Handler) CreateIncident(w http.ResponseWriter, r *http.Request) {
	var req CreateIncidentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	severity := domain.Severity(req.Severity)
	if severity == "" {
		severity = domain.SeverityMedium
	}

	incident, err := h.service.CreateIncident(r.Context(), req.ProjectID, req.EventIDs, req.CorrelationGroup, severity)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, incident)
}

// ResolveIncident handles POST /incidents/{id}/resolve request.
func (h *Handler) ResolveIncident(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	incident, err := h.service.Resolve(r.Context(), id)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, incident)
}

// AttachDiagnosis handles POST /incidents/{id}/diagnosis request.
func (h *Handler) AttachDiagnosis(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req AttachDiagnosisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	d := &domain.Diagnosis{
		RootCause:    req.RootCause,
		Severity:     domain.Severity(req.Severity),
		SuggestedFix: req.SuggestedFix,
		FixPrompt:    req.FixPrompt,
	}
	if err := h.service.AttachDiagnosis(r.Context(), id, d); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	incident, err := h.service.GetIncident(r.Context(), id)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, incident)
}
