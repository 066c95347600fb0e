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

type technicianService interface {
	CreateTechnician(ctx context.Context, params application.CreateTechnicianParams) (persistence.Technician, error)
	UpdateTechnician(ctx context.Context, params application.UpdateTechnicianParams) (persistence.Technician, error)
	GetTechnician(ctx context.Context, id string) (persistence.Technician, error)
	ListTechnicians(ctx context.Context, activeOnly bool) ([]persistence.Technician, error)
}

type TechnicianHandler struct {
	service   technicianService
	responder responder
}

func NewTechnicianHandler(service technicianService, logger *slog.Logger) *TechnicianHandler {
	return &TechnicianHandler{service: service, responder: newResponder(logger)}
}

func (h *TechnicianHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req technicianRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	technician, err := h.service.CreateTechnician(r.Context(), application.CreateTechnicianParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toTechnicianDTO(technician))
}

func (h *TechnicianHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	technicianID, ok := TechnicianIDFromContext(r.Context())
	if !ok || strings.TrimSpace(technicianID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidTechnicianID)
		return
	}

	var req technicianRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	technician, err := h.service.UpdateTechnician(r.Context(), application.UpdateTechnicianParams{
		Principal:    principal,
		TechnicianID: technicianID,
		Input:        req.toInput(),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toTechnicianDTO(technician))
}

func (h *TechnicianHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	technicianID, ok := TechnicianIDFromContext(r.Context())
	if !ok || strings.TrimSpace(technicianID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidTechnicianID)
		return
	}

	technician, err := h.service.GetTechnician(r.Context(), technicianID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toTechnicianDTO(technician))
}

func (h *TechnicianHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	activeOnly := strings.EqualFold(r.URL.Query().Get("active"), "true")

	technicians, err := h.service.ListTechnicians(r.Context(), activeOnly)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listTechniciansResponse{
		Technicians: toTechnicianDTOs(technicians),
	})
}

type technicianRequest struct {
	Email           string  `json:"email"`
	FullName        string  `json:"full_name"`
	Active          *bool   `json:"active"`
	BusyCalendarURL *string `json:"busy_calendar_url"`
}

func (r technicianRequest) toInput() application.TechnicianInput {
	active := true
	if r.Active != nil {
		active = *r.Active
	}
	return application.TechnicianInput{
		Email:           strings.TrimSpace(r.Email),
		FullName:        strings.TrimSpace(r.FullName),
		Active:          active,
		BusyCalendarURL: r.BusyCalendarURL,
	}
}

type listTechniciansResponse struct {
	Technicians []technicianDTO `json:"technicians"`
}

type technicianDTO struct {
	ID              string  `json:"id"`
	Email           string  `json:"email"`
	FullName        string  `json:"full_name"`
	Active          bool    `json:"active"`
	BusyCalendarURL *string `json:"busy_calendar_url,omitempty"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

func toTechnicianDTO(technician persistence.Technician) technicianDTO {
	return technicianDTO{
		ID:              technician.ID,
		Email:           technician.Email,
		FullName:        technician.FullName,
		Active:          technician.Active,
		BusyCalendarURL: technician.BusyCalendarURL,
		CreatedAt:       technician.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:       technician.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toTechnicianDTOs(technicians []persistence.Technician) []technicianDTO {
	if len(technicians) == 0 {
		return nil
	}
	out := make([]technicianDTO, 0, len(technicians))
	for _, technician := range technicians {
		out = append(out, toTechnicianDTO(technician))
	}
	return out
}
