package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/fieldservice-scheduler/internal/calendar"
	"github.com/example/fieldservice-scheduler/internal/persistence"
	"github.com/example/fieldservice-scheduler/internal/scheduler"
	"github.com/example/fieldservice-scheduler/internal/timeutil"
)

// BusyFeed supplies a technician's external busy blocks for one date.
// Implementations read the technician's ICS subscription; the feed is
// advisory, so a read failure degrades to "no external blocks".
type BusyFeed interface {
	BusyBlocks(ctx context.Context, technician persistence.Technician, date timeutil.Date) ([]scheduler.BusyBlock, error)
}

// AppointmentService owns the appointment lifecycle: placement, the
// commit/confirm handshake, inbound response handling, and teardown.
type AppointmentService struct {
	appointments persistence.AppointmentRepository
	jobs         persistence.JobRepository
	technicians  persistence.TechnicianRepository
	messenger    calendar.Messenger
	busyFeed     BusyFeed
	commits      *commitGuard
	cache        *conflictCache
	callTimeout  time.Duration
	idGenerator  func() string
	now          func() time.Time
	logger       *slog.Logger
}

// AppointmentServiceConfig bundles the dependencies of AppointmentService.
type AppointmentServiceConfig struct {
	Appointments persistence.AppointmentRepository
	Jobs         persistence.JobRepository
	Technicians  persistence.TechnicianRepository
	Messenger    calendar.Messenger
	BusyFeed     BusyFeed
	CallTimeout  time.Duration
	IDGenerator  func() string
	Now          func() time.Time
	Logger       *slog.Logger
}

// NewAppointmentService wires dependencies for appointment operations.
func NewAppointmentService(cfg AppointmentServiceConfig) *AppointmentService {
	if cfg.IDGenerator == nil {
		cfg.IDGenerator = func() string { return "" }
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	return &AppointmentService{
		appointments: cfg.Appointments,
		jobs:         cfg.Jobs,
		technicians:  cfg.Technicians,
		messenger:    cfg.Messenger,
		busyFeed:     cfg.BusyFeed,
		commits:      newCommitGuard(),
		cache:        newConflictCache(0, 0, cfg.Now),
		callTimeout:  cfg.CallTimeout,
		idGenerator:  cfg.IDGenerator,
		now:          cfg.Now,
		logger:       defaultLogger(cfg.Logger),
	}
}

func (s *AppointmentService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AppointmentService", operation, attrs...)
}

// ScheduleJob places a job on the calendar. Jobs longer than one workday
// are decomposed into per-day draft segments; every segment is conflict
// checked before anything is persisted. All segments enter the draft state
// and none triggers a calendar invite.
func (s *AppointmentService) ScheduleJob(ctx context.Context, params ScheduleJobParams) ([]persistence.Appointment, error) {
	if s == nil {
		return nil, fmt.Errorf("AppointmentService is nil")
	}

	logger := s.loggerWith(ctx, "ScheduleJob",
		"job_id", params.JobID,
		"technician_id", params.TechnicianID,
		"date", params.Date.String(),
	)

	job, err := s.jobs.GetJob(ctx, params.JobID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	technician, err := s.technicians.GetTechnician(ctx, params.TechnicianID)
	if err != nil {
		return nil, mapRepoError(err)
	}

	vErr := &ValidationError{}
	if !technician.Active {
		vErr.add("technician_id", "technician is not active")
	}
	if params.Date.IsZero() {
		vErr.add("date", "date is required")
	}
	if vErr.HasErrors() {
		return nil, vErr
	}

	active, err := s.activeAppointmentsForJob(ctx, job.ID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if len(active) > 0 {
		// A surviving partial split may be completed; anything else is a
		// duplicate placement.
		return s.completeSplit(ctx, logger, job, technician, active, params)
	}

	segments, err := scheduler.SplitJob(scheduler.SplitRequest{
		TotalHours: ParseEstimatedHours(job.EstimatedHours),
		StartDate:  params.Date,
		StartClock: params.Start,
	})
	if err != nil {
		vErr := &ValidationError{}
		vErr.add("time", err.Error())
		return nil, vErr
	}

	if !params.OverrideConflict {
		for _, segment := range segments {
			conflicts, err := s.detectConflicts(ctx, technician, segment.Date, segment.Start, segment.End, "")
			if err != nil {
				return nil, err
			}
			if len(conflicts) > 0 {
				return nil, &ConflictError{Conflicts: conflicts}
			}
		}
	}

	var segmentGroup *string
	if len(segments) > 1 {
		group := s.idGenerator()
		segmentGroup = &group
	}

	now := s.now()
	created := make([]persistence.Appointment, 0, len(segments))
	for _, segment := range segments {
		appointment := persistence.Appointment{
			ID:           s.idGenerator(),
			JobID:        job.ID,
			TechnicianID: technician.ID,
			Date:         segment.Date,
			Start:        segment.Start,
			End:          segment.End,
			Status:       StatusDraft,
			SegmentGroup: segmentGroup,
			PartNumber:   segment.Ordinal,
			PartTotal:    segment.Total,
			PartHours:    segment.Hours,
			Notes:        params.Notes,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.appointments.CreateAppointment(ctx, appointment); err != nil {
			s.cache.Invalidate()
			ids := make([]string, 0, len(created))
			for _, c := range created {
				ids = append(ids, c.ID)
			}
			// Surviving segments are active drafts, so the job is no
			// longer backlog even though the split is incomplete.
			if len(created) > 0 {
				if statusErr := s.jobs.UpdateJobStatus(ctx, job.ID, persistence.JobStatusScheduled); statusErr != nil {
					logger.ErrorContext(ctx, "failed to mark partially split job scheduled", "error", statusErr)
				}
			}
			logger.ErrorContext(ctx, "split stopped partway",
				"created", len(created), "total", len(segments), "error", err)
			return created, &SplitIncompleteError{Created: ids, Total: len(segments), Err: mapRepoError(err)}
		}
		created = append(created, appointment)
	}

	if err := s.jobs.UpdateJobStatus(ctx, job.ID, persistence.JobStatusScheduled); err != nil {
		logger.ErrorContext(ctx, "failed to mark job scheduled", "error", err)
	}

	s.cache.Invalidate()
	logger.InfoContext(ctx, "job scheduled", "segments", len(created))
	return created, nil
}

// completeSplit appends the segments missing from an interrupted multi-day
// split. A retry of ScheduleJob for the same job lands here when segments
// survived: the stored first segment fixes the original start, the split is
// recomputed from it, and only the absent ordinals are created — in the
// existing segment group. Any other shape of existing active appointment is
// a duplicate placement.
func (s *AppointmentService) completeSplit(ctx context.Context, logger *slog.Logger, job persistence.Job, technician persistence.Technician, active []persistence.Appointment, params ScheduleJobParams) ([]persistence.Appointment, error) {
	group := active[0].SegmentGroup
	if group == nil {
		return nil, ErrAlreadyExists
	}
	total := active[0].PartTotal
	present := make(map[int]bool, len(active))
	var first *persistence.Appointment
	for i := range active {
		segment := &active[i]
		if segment.SegmentGroup == nil || *segment.SegmentGroup != *group || segment.PartTotal != total {
			return nil, ErrAlreadyExists
		}
		present[segment.PartNumber] = true
		if segment.PartNumber == 1 {
			first = segment
		}
	}
	if len(active) >= total || first == nil {
		return nil, ErrAlreadyExists
	}

	segments, err := scheduler.SplitJob(scheduler.SplitRequest{
		TotalHours: ParseEstimatedHours(job.EstimatedHours),
		StartDate:  first.Date,
		StartClock: first.Start,
	})
	if err != nil || len(segments) != total {
		vErr := &ValidationError{}
		vErr.add("segment_group", "remaining segments cannot be derived from the surviving ones; delete them and reschedule")
		return nil, vErr
	}

	missing := make([]scheduler.Segment, 0, total-len(active))
	for _, segment := range segments {
		if !present[segment.Ordinal] {
			missing = append(missing, segment)
		}
	}

	if !params.OverrideConflict {
		for _, segment := range missing {
			conflicts, err := s.detectConflicts(ctx, technician, segment.Date, segment.Start, segment.End, "")
			if err != nil {
				return nil, err
			}
			if len(conflicts) > 0 {
				return nil, &ConflictError{Conflicts: conflicts}
			}
		}
	}

	now := s.now()
	created := make([]persistence.Appointment, 0, len(missing))
	for _, segment := range missing {
		appointment := persistence.Appointment{
			ID:           s.idGenerator(),
			JobID:        job.ID,
			TechnicianID: technician.ID,
			Date:         segment.Date,
			Start:        segment.Start,
			End:          segment.End,
			Status:       StatusDraft,
			SegmentGroup: group,
			PartNumber:   segment.Ordinal,
			PartTotal:    total,
			PartHours:    segment.Hours,
			Notes:        params.Notes,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.appointments.CreateAppointment(ctx, appointment); err != nil {
			s.cache.Invalidate()
			ids := make([]string, 0, len(created))
			for _, c := range created {
				ids = append(ids, c.ID)
			}
			logger.ErrorContext(ctx, "split completion stopped partway",
				"created", len(created), "total", len(missing), "error", err)
			return created, &SplitIncompleteError{Created: ids, Total: len(missing), Err: mapRepoError(err)}
		}
		created = append(created, appointment)
	}

	if err := s.jobs.UpdateJobStatus(ctx, job.ID, persistence.JobStatusScheduled); err != nil {
		logger.ErrorContext(ctx, "failed to mark job scheduled", "error", err)
	}

	s.cache.Invalidate()
	logger.InfoContext(ctx, "split completed", "appended", len(created), "total", total)
	return created, nil
}

// CheckConflicts runs the detector for a candidate slot without mutating
// anything. Callers use it for drag feedback and override prompts.
func (s *AppointmentService) CheckConflicts(ctx context.Context, params CheckConflictsParams) ([]scheduler.Conflict, error) {
	if s == nil {
		return nil, fmt.Errorf("AppointmentService is nil")
	}
	if err := scheduler.ValidateWindow(params.Start, params.End); err != nil {
		vErr := &ValidationError{}
		vErr.add("time", err.Error())
		return nil, vErr
	}

	technician, err := s.technicians.GetTechnician(ctx, params.TechnicianID)
	if err != nil {
		return nil, mapRepoError(err)
	}

	key := buildConflictCacheKey(params.TechnicianID, params.Date, params.Start, params.End, params.ExcludeAppointmentID)
	if cached, ok := s.cache.Get(key); ok {
		return cached, nil
	}

	conflicts, err := s.detectConflicts(ctx, technician, params.Date, params.Start, params.End, params.ExcludeAppointmentID)
	if err != nil {
		return nil, err
	}

	s.cache.Store(key, conflicts)
	return conflicts, nil
}

// Commit locks a draft's slot and sends the technician-facing invite.
// Local state advances only after the invite send is acknowledged; a send
// failure leaves the appointment in draft. Concurrent commits for the same
// appointment are rejected with ErrConcurrentCommit.
func (s *AppointmentService) Commit(ctx context.Context, principal Principal, appointmentID string) (persistence.Appointment, error) {
	if s == nil {
		return persistence.Appointment{}, fmt.Errorf("AppointmentService is nil")
	}

	logger := s.loggerWith(ctx, "Commit", "appointment_id", appointmentID)

	if !s.commits.acquire(appointmentID) {
		logger.WarnContext(ctx, "commit rejected, already in flight")
		return persistence.Appointment{}, ErrConcurrentCommit
	}
	defer s.commits.release(appointmentID)

	appointment, err := s.appointments.GetAppointment(ctx, appointmentID)
	if err != nil {
		return persistence.Appointment{}, mapRepoError(err)
	}
	if appointment.Status != StatusDraft {
		vErr := &ValidationError{}
		vErr.add("status", fmt.Sprintf("only draft appointments can be committed, current status is %s", appointment.Status))
		return persistence.Appointment{}, vErr
	}

	job, err := s.jobs.GetJob(ctx, appointment.JobID)
	if err != nil {
		return persistence.Appointment{}, mapRepoError(err)
	}
	technician, err := s.technicians.GetTechnician(ctx, appointment.TechnicianID)
	if err != nil {
		return persistence.Appointment{}, mapRepoError(err)
	}
	if technician.Email == "" {
		vErr := &ValidationError{}
		vErr.add("technician_email", "technician email is required to send an invite")
		return persistence.Appointment{}, vErr
	}

	invite := calendar.Invite{
		RecipientEmail: technician.Email,
		Subject:        inviteSubject(calendar.SubjectPrefixPendingTech, job, appointment),
		Date:           appointment.Date,
		Start:          appointment.Start,
		End:            appointment.End,
		Metadata: map[string]string{
			"appointment_id": appointment.ID,
			"job_id":         job.ID,
			"role":           string(calendar.RoleTechnician),
		},
	}

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	eventID, err := s.messenger.SendInvite(callCtx, invite)
	if err != nil {
		external := &ExternalError{Op: "invite", Timeout: errors.Is(err, calendar.ErrTimeout), Err: err}
		logger.ErrorContext(ctx, "invite send failed", "error", err, "error_kind", ErrorKind(external))
		return persistence.Appointment{}, external
	}

	appointment.Status = StatusPendingTech
	appointment.CalendarEventID = &eventID
	appointment.DeclinedBy = nil
	appointment.UpdatedAt = s.now()

	if err := s.appointments.UpdateAppointment(ctx, appointment); err != nil {
		return persistence.Appointment{}, mapRepoError(err)
	}

	s.cache.Invalidate()
	logger.InfoContext(ctx, "appointment committed", "event_id", eventID)
	return appointment, nil
}

// SendCustomerInvite sends the customer-facing invite for an appointment
// the technician has received or accepted. The invite references the
// event created at commit time rather than creating a second event id.
func (s *AppointmentService) SendCustomerInvite(ctx context.Context, principal Principal, appointmentID string) (persistence.Appointment, error) {
	if s == nil {
		return persistence.Appointment{}, fmt.Errorf("AppointmentService is nil")
	}

	logger := s.loggerWith(ctx, "SendCustomerInvite", "appointment_id", appointmentID)

	appointment, err := s.appointments.GetAppointment(ctx, appointmentID)
	if err != nil {
		return persistence.Appointment{}, mapRepoError(err)
	}
	if appointment.Status != StatusPendingTech && appointment.Status != StatusTechAccepted {
		vErr := &ValidationError{}
		vErr.add("status", fmt.Sprintf("customer invite requires pending_tech or tech_accepted, current status is %s", appointment.Status))
		return persistence.Appointment{}, vErr
	}
	if appointment.CalendarEventID == nil {
		vErr := &ValidationError{}
		vErr.add("calendar_event_id", "appointment has no calendar event")
		return persistence.Appointment{}, vErr
	}

	job, err := s.jobs.GetJob(ctx, appointment.JobID)
	if err != nil {
		return persistence.Appointment{}, mapRepoError(err)
	}
	if job.CustomerEmail == "" {
		vErr := &ValidationError{}
		vErr.add("customer_email", "customer email is required to send an invite")
		return persistence.Appointment{}, vErr
	}

	invite := calendar.Invite{
		RecipientEmail: job.CustomerEmail,
		Subject:        inviteSubject(calendar.SubjectPrefixAwaitingCustomer, job, appointment),
		Date:           appointment.Date,
		Start:          appointment.Start,
		End:            appointment.End,
		Metadata: map[string]string{
			"appointment_id": appointment.ID,
			"job_id":         job.ID,
			"role":           string(calendar.RoleCustomer),
			"event_id":       *appointment.CalendarEventID,
		},
	}

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	if _, err := s.messenger.SendInvite(callCtx, invite); err != nil {
		external := &ExternalError{Op: "invite", Timeout: errors.Is(err, calendar.ErrTimeout), Err: err}
		logger.ErrorContext(ctx, "customer invite send failed", "error", err, "error_kind", ErrorKind(external))
		return persistence.Appointment{}, external
	}

	appointment.Status = StatusPendingCustomer
	appointment.UpdatedAt = s.now()
	if err := s.appointments.UpdateAppointment(ctx, appointment); err != nil {
		return persistence.Appointment{}, mapRepoError(err)
	}

	s.cache.Invalidate()
	logger.InfoContext(ctx, "customer invite sent")
	return appointment, nil
}

// MarkConfirmed is the manager override that confirms an appointment
// without waiting for the customer's own acceptance.
func (s *AppointmentService) MarkConfirmed(ctx context.Context, principal Principal, appointmentID string) (persistence.Appointment, error) {
	if s == nil {
		return persistence.Appointment{}, fmt.Errorf("AppointmentService is nil")
	}
	if !principal.IsManager {
		return persistence.Appointment{}, ErrUnauthorized
	}

	appointment, err := s.appointments.GetAppointment(ctx, appointmentID)
	if err != nil {
		return persistence.Appointment{}, mapRepoError(err)
	}
	if appointment.Status != StatusTechAccepted && appointment.Status != StatusPendingCustomer {
		vErr := &ValidationError{}
		vErr.add("status", fmt.Sprintf("manual confirmation requires tech_accepted or pending_customer, current status is %s", appointment.Status))
		return persistence.Appointment{}, vErr
	}

	appointment.Status = StatusConfirmed
	appointment.UpdatedAt = s.now()
	if err := s.appointments.UpdateAppointment(ctx, appointment); err != nil {
		return persistence.Appointment{}, mapRepoError(err)
	}

	s.cache.Invalidate()
	s.loggerWith(ctx, "MarkConfirmed", "appointment_id", appointmentID).
		InfoContext(ctx, "appointment confirmed by manager override")
	return appointment, nil
}

// ApplyResponses maps one inbound batch of calendar accept/decline signals
// onto lifecycle transitions. Replayed signals for appointments already in
// the target state are no-ops. The returned Changed list tells consumers
// which appointments to re-fetch; the payload itself is never authoritative.
func (s *AppointmentService) ApplyResponses(ctx context.Context, responses []InboundResponse) (ApplyResponsesResult, error) {
	if s == nil {
		return ApplyResponsesResult{}, fmt.Errorf("AppointmentService is nil")
	}

	logger := s.loggerWith(ctx, "ApplyResponses", "batch_size", len(responses))
	result := ApplyResponsesResult{}

	for _, response := range responses {
		if !response.Valid() {
			result.Warnings = append(result.Warnings, Warning{
				Code:    "malformed_response",
				Message: fmt.Sprintf("skipped malformed response for appointment %q", response.AppointmentID),
			})
			continue
		}

		changed, warnings, err := s.applyResponse(ctx, response)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				result.Warnings = append(result.Warnings, Warning{
					Code:    "unknown_appointment",
					Message: fmt.Sprintf("response for unknown appointment %s", response.AppointmentID),
				})
				continue
			}
			return result, err
		}
		result.Warnings = append(result.Warnings, warnings...)
		if changed {
			result.Changed = append(result.Changed, response.AppointmentID)
		}
	}

	if len(result.Changed) > 0 {
		s.cache.Invalidate()
	}
	logger.InfoContext(ctx, "inbound batch applied", "changed", len(result.Changed), "warnings", len(result.Warnings))
	return result, nil
}

func (s *AppointmentService) applyResponse(ctx context.Context, response InboundResponse) (bool, []Warning, error) {
	appointment, err := s.appointments.GetAppointment(ctx, response.AppointmentID)
	if err != nil {
		return false, nil, mapRepoError(err)
	}

	if response.Decision == calendar.DecisionDeclined {
		return s.applyDecline(ctx, appointment, response.Role)
	}

	target := ""
	switch response.Role {
	case calendar.RoleTechnician:
		if appointment.Status == StatusPendingTech {
			target = StatusTechAccepted
		}
	case calendar.RoleCustomer:
		if appointment.Status == StatusPendingCustomer {
			target = StatusConfirmed
		}
	}
	if target == "" {
		// Already past this point in the handshake, or the signal does not
		// apply to the current state. Replays land here.
		return false, nil, nil
	}

	appointment.Status = target
	appointment.UpdatedAt = s.now()
	if err := s.appointments.UpdateAppointment(ctx, appointment); err != nil {
		return false, nil, mapRepoError(err)
	}
	return true, nil, nil
}

// applyDecline returns a declined appointment to draft with the declining
// role flagged, cancelling the outstanding invite best-effort. The slot
// still has to be refilled, so decline is not a terminal state.
func (s *AppointmentService) applyDecline(ctx context.Context, appointment persistence.Appointment, role calendar.RecipientRole) (bool, []Warning, error) {
	declinedBy := string(role)
	if appointment.Status == StatusDraft && appointment.DeclinedBy != nil && *appointment.DeclinedBy == declinedBy {
		return false, nil, nil
	}
	if !isActiveStatus(appointment.Status) {
		return false, nil, nil
	}

	var warnings []Warning
	if appointment.CalendarEventID != nil {
		if warning := s.cancelEvent(ctx, *appointment.CalendarEventID, appointment.ID); warning != nil {
			warnings = append(warnings, *warning)
		}
	}

	appointment.Status = StatusDraft
	appointment.DeclinedBy = &declinedBy
	appointment.CalendarEventID = nil
	appointment.UpdatedAt = s.now()
	if err := s.appointments.UpdateAppointment(ctx, appointment); err != nil {
		return false, warnings, mapRepoError(err)
	}
	return true, warnings, nil
}

// ResetToDraft cancels the outstanding invite and returns the appointment
// to draft. Cancellation is best-effort: a remote failure is reported as a
// warning but never blocks the local cleanup.
func (s *AppointmentService) ResetToDraft(ctx context.Context, principal Principal, appointmentID string) (persistence.Appointment, []Warning, error) {
	if s == nil {
		return persistence.Appointment{}, nil, fmt.Errorf("AppointmentService is nil")
	}

	logger := s.loggerWith(ctx, "ResetToDraft", "appointment_id", appointmentID)

	appointment, err := s.appointments.GetAppointment(ctx, appointmentID)
	if err != nil {
		return persistence.Appointment{}, nil, mapRepoError(err)
	}
	if !isActiveStatus(appointment.Status) {
		vErr := &ValidationError{}
		vErr.add("status", "cancelled appointments cannot be reset")
		return persistence.Appointment{}, nil, vErr
	}
	if appointment.Status == StatusDraft && appointment.CalendarEventID == nil {
		return appointment, nil, nil
	}

	var warnings []Warning
	if appointment.CalendarEventID != nil {
		if warning := s.cancelEvent(ctx, *appointment.CalendarEventID, appointment.ID); warning != nil {
			warnings = append(warnings, *warning)
		}
	}

	appointment.Status = StatusDraft
	appointment.CalendarEventID = nil
	appointment.DeclinedBy = nil
	appointment.UpdatedAt = s.now()
	if err := s.appointments.UpdateAppointment(ctx, appointment); err != nil {
		return persistence.Appointment{}, warnings, mapRepoError(err)
	}

	s.cache.Invalidate()
	logger.InfoContext(ctx, "appointment reset to draft", "warnings", len(warnings))
	return appointment, warnings, nil
}

// Move reschedules a draft to a new slot. Appointments that already carry
// a calendar event must be reset first so the stale invite never outlives
// its slot. The moved appointment is excluded from its own conflict check.
func (s *AppointmentService) Move(ctx context.Context, params MoveAppointmentParams) (persistence.Appointment, error) {
	if s == nil {
		return persistence.Appointment{}, fmt.Errorf("AppointmentService is nil")
	}

	appointment, err := s.appointments.GetAppointment(ctx, params.AppointmentID)
	if err != nil {
		return persistence.Appointment{}, mapRepoError(err)
	}
	if appointment.Status != StatusDraft {
		vErr := &ValidationError{}
		vErr.add("status", "only draft appointments can be moved; reset the appointment first")
		return persistence.Appointment{}, vErr
	}
	if err := scheduler.ValidateWindow(params.Start, params.End); err != nil {
		vErr := &ValidationError{}
		vErr.add("time", err.Error())
		return persistence.Appointment{}, vErr
	}

	if !params.OverrideConflict {
		technician, err := s.technicians.GetTechnician(ctx, appointment.TechnicianID)
		if err != nil {
			return persistence.Appointment{}, mapRepoError(err)
		}
		conflicts, err := s.detectConflicts(ctx, technician, params.Date, params.Start, params.End, appointment.ID)
		if err != nil {
			return persistence.Appointment{}, err
		}
		if len(conflicts) > 0 {
			return persistence.Appointment{}, &ConflictError{Conflicts: conflicts}
		}
	}

	appointment.Date = params.Date
	appointment.Start = params.Start
	appointment.End = params.End
	appointment.UpdatedAt = s.now()
	if err := s.appointments.UpdateAppointment(ctx, appointment); err != nil {
		return persistence.Appointment{}, mapRepoError(err)
	}

	s.cache.Invalidate()
	s.loggerWith(ctx, "Move", "appointment_id", appointment.ID, "date", params.Date.String()).
		InfoContext(ctx, "appointment moved")
	return appointment, nil
}

// Delete removes an appointment entirely. An outstanding calendar event is
// cancelled best-effort first. When the parent job has no other active
// appointment afterwards, its status reverts to triaged; sibling segments
// of a multi-day split are unaffected.
func (s *AppointmentService) Delete(ctx context.Context, principal Principal, appointmentID string) ([]Warning, error) {
	if s == nil {
		return nil, fmt.Errorf("AppointmentService is nil")
	}

	logger := s.loggerWith(ctx, "Delete", "appointment_id", appointmentID)

	appointment, err := s.appointments.GetAppointment(ctx, appointmentID)
	if err != nil {
		return nil, mapRepoError(err)
	}

	var warnings []Warning
	if appointment.CalendarEventID != nil {
		if warning := s.cancelEvent(ctx, *appointment.CalendarEventID, appointment.ID); warning != nil {
			warnings = append(warnings, *warning)
		}
	}

	if err := s.appointments.DeleteAppointment(ctx, appointmentID); err != nil {
		return warnings, mapRepoError(err)
	}

	remaining, err := s.activeAppointmentsForJob(ctx, appointment.JobID)
	if err != nil {
		return warnings, mapRepoError(err)
	}
	if len(remaining) == 0 {
		if err := s.jobs.UpdateJobStatus(ctx, appointment.JobID, persistence.JobStatusTriaged); err != nil {
			logger.ErrorContext(ctx, "failed to revert job status", "error", err)
		}
	}

	s.cache.Invalidate()
	logger.InfoContext(ctx, "appointment deleted", "warnings", len(warnings))
	return warnings, nil
}

// GetAppointment fetches a single appointment.
func (s *AppointmentService) GetAppointment(ctx context.Context, id string) (persistence.Appointment, error) {
	if s == nil {
		return persistence.Appointment{}, fmt.Errorf("AppointmentService is nil")
	}
	appointment, err := s.appointments.GetAppointment(ctx, id)
	if err != nil {
		return persistence.Appointment{}, mapRepoError(err)
	}
	return appointment, nil
}

// ListSchedule runs the denormalized range query backing the calendar grid.
func (s *AppointmentService) ListSchedule(ctx context.Context, params ListScheduleParams) ([]persistence.ScheduleEntry, error) {
	if s == nil {
		return nil, fmt.Errorf("AppointmentService is nil")
	}
	entries, err := s.appointments.ListScheduleEntries(ctx, persistence.AppointmentFilter{
		From:             params.From,
		To:               params.To,
		TechnicianID:     params.TechnicianID,
		ExcludeCancelled: !params.IncludeCancelled,
	})
	if err != nil {
		return nil, mapRepoError(err)
	}
	return entries, nil
}

// cancelEvent issues a best-effort remote cancellation and converts any
// failure into a warning. Teardown never blocks on the calendar system.
func (s *AppointmentService) cancelEvent(ctx context.Context, eventID, appointmentID string) *Warning {
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	err := s.messenger.SendCancellation(callCtx, eventID, map[string]string{"appointment_id": appointmentID})
	if err == nil {
		return nil
	}
	s.loggerWith(ctx, "cancelEvent", "appointment_id", appointmentID, "event_id", eventID).
		ErrorContext(ctx, "cancellation failed, proceeding with local cleanup", "error", err)
	return &Warning{
		Code:    "cancellation_failed",
		Message: fmt.Sprintf("calendar cancellation for event %s failed: %v", eventID, err),
	}
}

func (s *AppointmentService) detectConflicts(ctx context.Context, technician persistence.Technician, date timeutil.Date, start, end timeutil.Clock, excludeID string) ([]scheduler.Conflict, error) {
	if err := scheduler.ValidateWindow(start, end); err != nil {
		vErr := &ValidationError{}
		vErr.add("time", err.Error())
		return nil, vErr
	}

	from := date
	stored, err := s.appointments.ListAppointments(ctx, persistence.AppointmentFilter{
		From:             &from,
		To:               &from,
		TechnicianID:     technician.ID,
		ExcludeCancelled: true,
	})
	if err != nil {
		return nil, mapRepoError(err)
	}

	existing := make([]scheduler.Appointment, 0, len(stored))
	for _, appointment := range stored {
		existing = append(existing, scheduler.Appointment{
			ID:           appointment.ID,
			TechnicianID: appointment.TechnicianID,
			Date:         appointment.Date,
			Start:        appointment.Start,
			End:          appointment.End,
			Status:       appointment.Status,
		})
	}

	var busy []scheduler.BusyBlock
	if s.busyFeed != nil {
		blocks, err := s.busyFeed.BusyBlocks(ctx, technician, date)
		if err != nil {
			// The busy feed is advisory input; a read failure must not block
			// scheduling.
			s.loggerWith(ctx, "detectConflicts", "technician_id", technician.ID).
				WarnContext(ctx, "busy feed unavailable", "error", err)
		} else {
			busy = blocks
		}
	}

	return scheduler.DetectConflicts(existing, busy, scheduler.Proposal{
		TechnicianID: technician.ID,
		Date:         date,
		Start:        start,
		End:          end,
		ExcludeID:    excludeID,
	}), nil
}

func (s *AppointmentService) activeAppointmentsForJob(ctx context.Context, jobID string) ([]persistence.Appointment, error) {
	return s.appointments.ListAppointments(ctx, persistence.AppointmentFilter{
		JobID:            jobID,
		ExcludeCancelled: true,
	})
}

func inviteSubject(prefix string, job persistence.Job, appointment persistence.Appointment) string {
	subject := fmt.Sprintf("%s %s %s", prefix, calendar.SubjectPrefixService, job.Summary)
	if appointment.PartTotal > 1 {
		subject = fmt.Sprintf("%s (Part %d of %d)", subject, appointment.PartNumber, appointment.PartTotal)
	}
	return subject
}
