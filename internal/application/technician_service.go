package application

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/example/fieldservice-scheduler/internal/persistence"
)

// TechnicianService orchestrates validation and persistence for the
// technician roster projection.
type TechnicianService struct {
	technicians persistence.TechnicianRepository
	idGenerator func() string
	now         func() time.Time
}

// NewTechnicianService wires dependencies for technician operations.
func NewTechnicianService(technicians persistence.TechnicianRepository, idGenerator func() string, now func() time.Time) *TechnicianService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &TechnicianService{technicians: technicians, idGenerator: idGenerator, now: now}
}

// CreateTechnician validates input and persists a new roster entry.
func (s *TechnicianService) CreateTechnician(ctx context.Context, params CreateTechnicianParams) (persistence.Technician, error) {
	if s == nil {
		return persistence.Technician{}, fmt.Errorf("TechnicianService is nil")
	}
	if !params.Principal.IsManager {
		return persistence.Technician{}, ErrUnauthorized
	}

	normalized := normalizeTechnicianInput(params.Input)
	if vErr := validateTechnicianInput(normalized); vErr.HasErrors() {
		return persistence.Technician{}, vErr
	}

	now := s.now()
	technician := persistence.Technician{
		ID:              s.idGenerator(),
		Email:           normalized.Email,
		FullName:        normalized.FullName,
		Active:          normalized.Active,
		BusyCalendarURL: normalized.BusyCalendarURL,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if s.technicians == nil {
		return technician, nil
	}
	if err := s.technicians.CreateTechnician(ctx, technician); err != nil {
		return persistence.Technician{}, mapRepoError(err)
	}
	return technician, nil
}

// UpdateTechnician validates input and updates an existing roster entry.
func (s *TechnicianService) UpdateTechnician(ctx context.Context, params UpdateTechnicianParams) (persistence.Technician, error) {
	if s == nil {
		return persistence.Technician{}, fmt.Errorf("TechnicianService is nil")
	}
	if !params.Principal.IsManager {
		return persistence.Technician{}, ErrUnauthorized
	}
	if s.technicians == nil {
		return persistence.Technician{}, fmt.Errorf("technician repository not configured")
	}

	existing, err := s.technicians.GetTechnician(ctx, params.TechnicianID)
	if err != nil {
		return persistence.Technician{}, mapRepoError(err)
	}

	normalized := normalizeTechnicianInput(params.Input)
	if vErr := validateTechnicianInput(normalized); vErr.HasErrors() {
		return persistence.Technician{}, vErr
	}

	updated := existing
	updated.Email = normalized.Email
	updated.FullName = normalized.FullName
	updated.Active = normalized.Active
	updated.BusyCalendarURL = normalized.BusyCalendarURL
	updated.UpdatedAt = s.now()

	if err := s.technicians.UpdateTechnician(ctx, updated); err != nil {
		return persistence.Technician{}, mapRepoError(err)
	}
	return updated, nil
}

// GetTechnician fetches a single roster entry.
func (s *TechnicianService) GetTechnician(ctx context.Context, id string) (persistence.Technician, error) {
	if s == nil || s.technicians == nil {
		return persistence.Technician{}, fmt.Errorf("technician repository not configured")
	}
	technician, err := s.technicians.GetTechnician(ctx, id)
	if err != nil {
		return persistence.Technician{}, mapRepoError(err)
	}
	return technician, nil
}

// ListTechnicians enumerates the roster, optionally limited to active entries.
func (s *TechnicianService) ListTechnicians(ctx context.Context, activeOnly bool) ([]persistence.Technician, error) {
	if s == nil || s.technicians == nil {
		return nil, fmt.Errorf("technician repository not configured")
	}
	technicians, err := s.technicians.ListTechnicians(ctx, activeOnly)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return technicians, nil
}

func normalizeTechnicianInput(input TechnicianInput) TechnicianInput {
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))
	input.FullName = strings.TrimSpace(input.FullName)
	if input.BusyCalendarURL != nil {
		trimmed := strings.TrimSpace(*input.BusyCalendarURL)
		if trimmed == "" {
			input.BusyCalendarURL = nil
		} else {
			input.BusyCalendarURL = &trimmed
		}
	}
	return input
}

func validateTechnicianInput(input TechnicianInput) *ValidationError {
	vErr := &ValidationError{}

	if input.Email == "" {
		vErr.add("email", "email is required")
	} else if _, err := mail.ParseAddress(input.Email); err != nil {
		vErr.add("email", "must be a valid email address")
	}

	if input.FullName == "" {
		vErr.add("full_name", "full name is required")
	}

	if input.BusyCalendarURL != nil {
		if _, err := url.ParseRequestURI(*input.BusyCalendarURL); err != nil {
			vErr.add("busy_calendar_url", "must be a valid URL")
		}
	}

	return vErr
}

// mapRepoError converts persistence sentinels to application sentinels.
func mapRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		return ErrAlreadyExists
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		vErr := &ValidationError{}
		vErr.add("time", "start must be before end")
		return vErr
	}
	if errors.Is(err, persistence.ErrForeignKeyViolation) {
		vErr := &ValidationError{}
		vErr.add("reference", "related records are missing")
		return vErr
	}
	return err
}
