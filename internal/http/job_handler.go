package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/fieldservice-scheduler/internal/application"
	"github.com/example/fieldservice-scheduler/internal/persistence"
)

type jobService interface {
	CreateJob(ctx context.Context, params application.CreateJobParams) (persistence.Job, error)
	UpdateJob(ctx context.Context, params application.UpdateJobParams) (persistence.Job, error)
	GetJob(ctx context.Context, id string) (persistence.Job, error)
	ListJobs(ctx context.Context) ([]persistence.Job, error)
	ListBacklog(ctx context.Context, technicianID string) ([]persistence.Job, error)
}

type JobHandler struct {
	service   jobService
	responder responder
}

func NewJobHandler(service jobService, logger *slog.Logger) *JobHandler {
	return &JobHandler{service: service, responder: newResponder(logger)}
}

func (h *JobHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req jobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	job, err := h.service.CreateJob(r.Context(), application.CreateJobParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toJobDTO(job))
}

func (h *JobHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	jobID, ok := JobIDFromContext(r.Context())
	if !ok || strings.TrimSpace(jobID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidJobID)
		return
	}

	var req jobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	job, err := h.service.UpdateJob(r.Context(), application.UpdateJobParams{
		Principal: principal,
		JobID:     jobID,
		Input:     req.toInput(),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toJobDTO(job))
}

func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	jobID, ok := JobIDFromContext(r.Context())
	if !ok || strings.TrimSpace(jobID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidJobID)
		return
	}

	job, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toJobDTO(job))
}

func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	jobs, err := h.service.ListJobs(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listJobsResponse{Jobs: toJobDTOs(jobs)})
}

// Backlog lists jobs still waiting for a slot, optionally narrowed to one
// technician's assignments.
func (h *JobHandler) Backlog(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	technicianID := strings.TrimSpace(r.URL.Query().Get("technician_id"))

	jobs, err := h.service.ListBacklog(r.Context(), technicianID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listJobsResponse{Jobs: toJobDTOs(jobs)})
}

type jobRequest struct {
	CustomerName   string  `json:"customer_name"`
	CustomerEmail  string  `json:"customer_email"`
	CustomerPhone  *string `json:"customer_phone"`
	Summary        string  `json:"summary"`
	EstimatedHours string  `json:"estimated_hours"`
	AssignedTo     *string `json:"assigned_to"`
}

func (r jobRequest) toInput() application.JobInput {
	return application.JobInput{
		CustomerName:   strings.TrimSpace(r.CustomerName),
		CustomerEmail:  strings.TrimSpace(r.CustomerEmail),
		CustomerPhone:  r.CustomerPhone,
		Summary:        strings.TrimSpace(r.Summary),
		EstimatedHours: strings.TrimSpace(r.EstimatedHours),
		AssignedTo:     r.AssignedTo,
	}
}

type listJobsResponse struct {
	Jobs []jobDTO `json:"jobs"`
}

type jobDTO struct {
	ID             string  `json:"id"`
	CustomerName   string  `json:"customer_name"`
	CustomerEmail  string  `json:"customer_email"`
	CustomerPhone  *string `json:"customer_phone,omitempty"`
	Summary        string  `json:"summary"`
	EstimatedHours string  `json:"estimated_hours"`
	AssignedTo     *string `json:"assigned_to,omitempty"`
	Status         string  `json:"status"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

func toJobDTO(job persistence.Job) jobDTO {
	return jobDTO{
		ID:             job.ID,
		CustomerName:   job.CustomerName,
		CustomerEmail:  job.CustomerEmail,
		CustomerPhone:  job.CustomerPhone,
		Summary:        job.Summary,
		EstimatedHours: job.EstimatedHours,
		AssignedTo:     job.AssignedTo,
		Status:         job.Status,
		CreatedAt:      job.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:      job.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toJobDTOs(jobs []persistence.Job) []jobDTO {
	if len(jobs) == 0 {
		return nil
	}
	out := make([]jobDTO, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, toJobDTO(job))
	}
	return out
}
