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
	"github.com/example/fieldservice-scheduler/internal/scheduler"
	"github.com/example/fieldservice-scheduler/internal/timeutil"
)

type appointmentService interface {
	ScheduleJob(ctx context.Context, params application.ScheduleJobParams) ([]persistence.Appointment, error)
	CheckConflicts(ctx context.Context, params application.CheckConflictsParams) ([]scheduler.Conflict, error)
	Commit(ctx context.Context, principal application.Principal, appointmentID string) (persistence.Appointment, error)
	SendCustomerInvite(ctx context.Context, principal application.Principal, appointmentID string) (persistence.Appointment, error)
	MarkConfirmed(ctx context.Context, principal application.Principal, appointmentID string) (persistence.Appointment, error)
	ApplyResponses(ctx context.Context, responses []application.InboundResponse) (application.ApplyResponsesResult, error)
	ResetToDraft(ctx context.Context, principal application.Principal, appointmentID string) (persistence.Appointment, []application.Warning, error)
	Move(ctx context.Context, params application.MoveAppointmentParams) (persistence.Appointment, error)
	Delete(ctx context.Context, principal application.Principal, appointmentID string) ([]application.Warning, error)
	GetAppointment(ctx context.Context, id string) (persistence.Appointment, error)
	ListSchedule(ctx context.Context, params application.ListScheduleParams) ([]persistence.ScheduleEntry, error)
}

type AppointmentHandler struct {
	service   appointmentService
	responder responder
}

func NewAppointmentHandler(service appointmentService, logger *slog.Logger) *AppointmentHandler {
	return &AppointmentHandler{service: service, responder: newResponder(logger)}
}

func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req scheduleJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	appointments, err := h.service.ScheduleJob(r.Context(), application.ScheduleJobParams{
		Principal:        principal,
		JobID:            strings.TrimSpace(req.JobID),
		TechnicianID:     strings.TrimSpace(req.TechnicianID),
		Date:             parseDate(req.Date),
		Start:            parseClock(req.Start),
		Notes:            req.Notes,
		OverrideConflict: req.OverrideConflict,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, appointmentsResponse{
		Appointments: toAppointmentDTOs(appointments),
	})
}

func (h *AppointmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	appointmentID, ok := AppointmentIDFromContext(r.Context())
	if !ok || strings.TrimSpace(appointmentID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidAppointmentID)
		return
	}

	appointment, err := h.service.GetAppointment(r.Context(), appointmentID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, appointmentResponse{
		Appointment: toAppointmentDTO(appointment),
	})
}

func (h *AppointmentHandler) Move(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	appointmentID, ok := AppointmentIDFromContext(r.Context())
	if !ok || strings.TrimSpace(appointmentID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidAppointmentID)
		return
	}

	var req moveAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	appointment, err := h.service.Move(r.Context(), application.MoveAppointmentParams{
		Principal:        principal,
		AppointmentID:    appointmentID,
		Date:             parseDate(req.Date),
		Start:            parseClock(req.Start),
		End:              parseClock(req.End),
		OverrideConflict: req.OverrideConflict,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, appointmentResponse{
		Appointment: toAppointmentDTO(appointment),
	})
}

func (h *AppointmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	appointmentID, ok := AppointmentIDFromContext(r.Context())
	if !ok || strings.TrimSpace(appointmentID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidAppointmentID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	warnings, err := h.service.Delete(r.Context(), principal, appointmentID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	if len(warnings) == 0 {
		h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, warningsResponse{Warnings: toWarningDTOs(warnings)})
}

// Commit locks the slot and sends the technician invite.
func (h *AppointmentHandler) Commit(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, func(ctx context.Context, principal application.Principal, id string) (persistence.Appointment, []application.Warning, error) {
		appointment, err := h.service.Commit(ctx, principal, id)
		return appointment, nil, err
	})
}

// CustomerInvite forwards the accepted slot to the customer.
func (h *AppointmentHandler) CustomerInvite(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, func(ctx context.Context, principal application.Principal, id string) (persistence.Appointment, []application.Warning, error) {
		appointment, err := h.service.SendCustomerInvite(ctx, principal, id)
		return appointment, nil, err
	})
}

// Confirm marks the appointment confirmed without waiting for the customer's
// calendar response. Managers only.
func (h *AppointmentHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, func(ctx context.Context, principal application.Principal, id string) (persistence.Appointment, []application.Warning, error) {
		appointment, err := h.service.MarkConfirmed(ctx, principal, id)
		return appointment, nil, err
	})
}

// Reset returns the appointment to draft, cancelling any outstanding invite.
func (h *AppointmentHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, func(ctx context.Context, principal application.Principal, id string) (persistence.Appointment, []application.Warning, error) {
		return h.service.ResetToDraft(ctx, principal, id)
	})
}

func (h *AppointmentHandler) runTransition(w http.ResponseWriter, r *http.Request, fn func(context.Context, application.Principal, string) (persistence.Appointment, []application.Warning, error)) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	appointmentID, ok := AppointmentIDFromContext(r.Context())
	if !ok || strings.TrimSpace(appointmentID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidAppointmentID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	appointment, warnings, err := fn(r.Context(), principal, appointmentID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, appointmentResponse{
		Appointment: toAppointmentDTO(appointment),
		Warnings:    toWarningDTOs(warnings),
	})
}

// CheckConflicts probes a candidate slot without mutating anything.
func (h *AppointmentHandler) CheckConflicts(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req checkConflictsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	conflicts, err := h.service.CheckConflicts(r.Context(), application.CheckConflictsParams{
		TechnicianID:         strings.TrimSpace(req.TechnicianID),
		Date:                 parseDate(req.Date),
		Start:                parseClock(req.Start),
		End:                  parseClock(req.End),
		ExcludeAppointmentID: strings.TrimSpace(req.ExcludeAppointmentID),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, checkConflictsResponse{
		Conflicts: toConflictDTOs(conflicts),
	})
}

// ListSchedule renders the calendar grid rows for a date range.
func (h *AppointmentHandler) ListSchedule(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	query := r.URL.Query()
	params := application.ListScheduleParams{
		TechnicianID:     strings.TrimSpace(query.Get("technician_id")),
		IncludeCancelled: strings.EqualFold(query.Get("include_cancelled"), "true"),
	}
	if from := strings.TrimSpace(query.Get("from")); from != "" {
		if date, err := timeutil.ParseDate(from); err == nil {
			params.From = &date
		}
	}
	if to := strings.TrimSpace(query.Get("to")); to != "" {
		if date, err := timeutil.ParseDate(to); err == nil {
			params.To = &date
		}
	}

	entries, err := h.service.ListSchedule(r.Context(), params)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, scheduleResponse{
		Entries: toScheduleEntryDTOs(entries),
	})
}

// ApplyResponses ingests a batch of accept/decline signals pushed by the
// calendar gateway.
func (h *AppointmentHandler) ApplyResponses(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req applyResponsesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	result, err := h.service.ApplyResponses(r.Context(), req.Responses)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, applyResponsesResponse{
		Changed:  result.Changed,
		Warnings: toWarningDTOs(result.Warnings),
	})
}

func parseDate(value string) timeutil.Date {
	date, err := timeutil.ParseDate(value)
	if err != nil {
		return timeutil.Date{}
	}
	return date
}

func parseClock(value string) timeutil.Clock {
	clock, err := timeutil.ParseClock(value)
	if err != nil {
		return timeutil.Clock(-1)
	}
	return clock
}

type scheduleJobRequest struct {
	JobID            string `json:"job_id"`
	TechnicianID     string `json:"technician_id"`
	Date             string `json:"date"`
	Start            string `json:"start"`
	Notes            string `json:"notes"`
	OverrideConflict bool   `json:"override_conflict"`
}

type moveAppointmentRequest struct {
	Date             string `json:"date"`
	Start            string `json:"start"`
	End              string `json:"end"`
	OverrideConflict bool   `json:"override_conflict"`
}

type checkConflictsRequest struct {
	TechnicianID         string `json:"technician_id"`
	Date                 string `json:"date"`
	Start                string `json:"start"`
	End                  string `json:"end"`
	ExcludeAppointmentID string `json:"exclude_appointment_id"`
}

type checkConflictsResponse struct {
	Conflicts []conflictDTO `json:"conflicts"`
}

type applyResponsesRequest struct {
	Responses []application.InboundResponse `json:"responses"`
}

type applyResponsesResponse struct {
	Changed  []string     `json:"changed"`
	Warnings []warningDTO `json:"warnings,omitempty"`
}

type appointmentResponse struct {
	Appointment appointmentDTO `json:"appointment"`
	Warnings    []warningDTO   `json:"warnings,omitempty"`
}

type appointmentsResponse struct {
	Appointments []appointmentDTO `json:"appointments"`
}

type warningsResponse struct {
	Warnings []warningDTO `json:"warnings"`
}

type scheduleResponse struct {
	Entries []scheduleEntryDTO `json:"entries"`
}

type appointmentDTO struct {
	ID              string  `json:"id"`
	JobID           string  `json:"job_id"`
	TechnicianID    string  `json:"technician_id"`
	Date            string  `json:"date"`
	Start           string  `json:"start"`
	End             string  `json:"end"`
	Status          string  `json:"status"`
	CalendarEventID *string `json:"calendar_event_id,omitempty"`
	DeclinedBy      *string `json:"declined_by,omitempty"`
	SegmentGroup    *string `json:"segment_group,omitempty"`
	PartNumber      int     `json:"part_number"`
	PartTotal       int     `json:"part_total"`
	PartHours       float64 `json:"part_hours"`
	Notes           string  `json:"notes,omitempty"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

func toAppointmentDTO(appointment persistence.Appointment) appointmentDTO {
	return appointmentDTO{
		ID:              appointment.ID,
		JobID:           appointment.JobID,
		TechnicianID:    appointment.TechnicianID,
		Date:            appointment.Date.String(),
		Start:           appointment.Start.String(),
		End:             appointment.End.String(),
		Status:          appointment.Status,
		CalendarEventID: appointment.CalendarEventID,
		DeclinedBy:      appointment.DeclinedBy,
		SegmentGroup:    appointment.SegmentGroup,
		PartNumber:      appointment.PartNumber,
		PartTotal:       appointment.PartTotal,
		PartHours:       appointment.PartHours,
		Notes:           appointment.Notes,
		CreatedAt:       appointment.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:       appointment.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toAppointmentDTOs(appointments []persistence.Appointment) []appointmentDTO {
	if len(appointments) == 0 {
		return nil
	}
	out := make([]appointmentDTO, 0, len(appointments))
	for _, appointment := range appointments {
		out = append(out, toAppointmentDTO(appointment))
	}
	return out
}

type scheduleEntryDTO struct {
	appointmentDTO
	TechnicianName  string `json:"technician_name"`
	TechnicianEmail string `json:"technician_email"`
	CustomerName    string `json:"customer_name"`
	JobSummary      string `json:"job_summary"`
}

func toScheduleEntryDTOs(entries []persistence.ScheduleEntry) []scheduleEntryDTO {
	if len(entries) == 0 {
		return nil
	}
	out := make([]scheduleEntryDTO, 0, len(entries))
	for _, entry := range entries {
		out = append(out, scheduleEntryDTO{
			appointmentDTO:  toAppointmentDTO(entry.Appointment),
			TechnicianName:  entry.TechnicianName,
			TechnicianEmail: entry.TechnicianEmail,
			CustomerName:    entry.CustomerName,
			JobSummary:      entry.JobSummary,
		})
	}
	return out
}

type warningDTO struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func toWarningDTOs(warnings []application.Warning) []warningDTO {
	if len(warnings) == 0 {
		return nil
	}
	out := make([]warningDTO, 0, len(warnings))
	for _, warning := range warnings {
		out = append(out, warningDTO{Code: warning.Code, Message: warning.Message})
	}
	return out
}
