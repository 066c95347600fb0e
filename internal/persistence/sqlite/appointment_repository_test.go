package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/fieldservice-scheduler/internal/persistence"
	"github.com/example/fieldservice-scheduler/internal/persistence/sqlite/migration"
	"github.com/example/fieldservice-scheduler/internal/timeutil"
)

func setupPool(t *testing.T) *ConnectionPool {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	pool, err := NewConnectionPool(migration.TempFileTestSQLiteConfig(dbPath))
	if err != nil {
		t.Fatalf("Failed to create connection pool: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	if err := pool.Migrate(context.Background()); err != nil {
		t.Fatalf("Failed to apply schema: %v", err)
	}
	return pool
}

func seedTechnician(t *testing.T, pool *ConnectionPool, id, email string) {
	t.Helper()
	repo := NewTechnicianRepository(pool)
	err := repo.CreateTechnician(context.Background(), persistence.Technician{
		ID:       id,
		Email:    email,
		FullName: "Test Technician",
		Active:   true,
	})
	if err != nil {
		t.Fatalf("Failed to seed technician %s: %v", id, err)
	}
}

func seedJob(t *testing.T, pool *ConnectionPool, id string) {
	t.Helper()
	repo := NewJobRepository(pool)
	err := repo.CreateJob(context.Background(), persistence.Job{
		ID:             id,
		CustomerName:   "Acme Warehouse",
		CustomerEmail:  "facilities@acme.example",
		Summary:        "Replace UPS batteries",
		EstimatedHours: "4",
		Status:         persistence.JobStatusTriaged,
	})
	if err != nil {
		t.Fatalf("Failed to seed job %s: %v", id, err)
	}
}

func mustDate(t *testing.T, value string) timeutil.Date {
	t.Helper()
	d, err := timeutil.ParseDate(value)
	if err != nil {
		t.Fatalf("ParseDate(%q) failed: %v", value, err)
	}
	return d
}

func TestAppointmentRepository_CreateAndGet(t *testing.T) {
	pool := setupPool(t)
	seedTechnician(t, pool, "tech1", "tech1@example.com")
	seedJob(t, pool, "job1")

	repo := NewAppointmentRepository(pool)
	ctx := context.Background()

	eventID := "evt-42"
	appointment := persistence.Appointment{
		ID:              "appt1",
		JobID:           "job1",
		TechnicianID:    "tech1",
		Date:            mustDate(t, "2025-06-04"),
		Start:           timeutil.NewClock(9, 0),
		End:             timeutil.NewClock(11, 0),
		Status:          "draft",
		CalendarEventID: &eventID,
		PartNumber:      1,
		PartTotal:       1,
		PartHours:       2,
		Notes:           "gate code 4711",
	}

	if err := repo.CreateAppointment(ctx, appointment); err != nil {
		t.Fatalf("CreateAppointment failed: %v", err)
	}

	retrieved, err := repo.GetAppointment(ctx, "appt1")
	if err != nil {
		t.Fatalf("GetAppointment failed: %v", err)
	}

	if retrieved.Date.String() != "2025-06-04" {
		t.Errorf("Expected date 2025-06-04, got %s", retrieved.Date)
	}
	if retrieved.Start.String() != "09:00" || retrieved.End.String() != "11:00" {
		t.Errorf("Expected window 09:00-11:00, got %s-%s", retrieved.Start, retrieved.End)
	}
	if retrieved.CalendarEventID == nil || *retrieved.CalendarEventID != "evt-42" {
		t.Errorf("Expected calendar_event_id evt-42, got %v", retrieved.CalendarEventID)
	}
	if retrieved.Notes != "gate code 4711" {
		t.Errorf("Expected notes to round-trip, got %q", retrieved.Notes)
	}
}

func TestAppointmentRepository_HonorsCallerTimestamps(t *testing.T) {
	pool := setupPool(t)
	seedTechnician(t, pool, "tech1", "tech1@example.com")
	seedJob(t, pool, "job1")

	repo := NewAppointmentRepository(pool)
	ctx := context.Background()

	stamped := time.Date(2025, time.June, 2, 12, 0, 0, 0, time.UTC)
	if err := repo.CreateAppointment(ctx, persistence.Appointment{
		ID:           "appt1",
		JobID:        "job1",
		TechnicianID: "tech1",
		Date:         mustDate(t, "2025-06-04"),
		Start:        timeutil.NewClock(9, 0),
		End:          timeutil.NewClock(11, 0),
		Status:       "draft",
		PartNumber:   1,
		PartTotal:    1,
		CreatedAt:    stamped,
		UpdatedAt:    stamped,
	}); err != nil {
		t.Fatalf("CreateAppointment failed: %v", err)
	}

	retrieved, err := repo.GetAppointment(ctx, "appt1")
	if err != nil {
		t.Fatalf("GetAppointment failed: %v", err)
	}
	if !retrieved.CreatedAt.Equal(stamped) || !retrieved.UpdatedAt.Equal(stamped) {
		t.Errorf("Expected stored timestamps %v, got created %v updated %v",
			stamped, retrieved.CreatedAt, retrieved.UpdatedAt)
	}

	later := stamped.Add(time.Hour)
	retrieved.Notes = "rescheduled gate access"
	retrieved.UpdatedAt = later
	if err := repo.UpdateAppointment(ctx, retrieved); err != nil {
		t.Fatalf("UpdateAppointment failed: %v", err)
	}

	updated, err := repo.GetAppointment(ctx, "appt1")
	if err != nil {
		t.Fatalf("GetAppointment after update failed: %v", err)
	}
	if !updated.UpdatedAt.Equal(later) {
		t.Errorf("Expected updated_at %v, got %v", later, updated.UpdatedAt)
	}
	if !updated.CreatedAt.Equal(stamped) {
		t.Errorf("Expected created_at to be preserved, got %v", updated.CreatedAt)
	}
}

func TestAppointmentRepository_EndOfDayWindowRoundTrips(t *testing.T) {
	pool := setupPool(t)
	seedTechnician(t, pool, "tech1", "tech1@example.com")
	seedJob(t, pool, "job1")

	repo := NewAppointmentRepository(pool)
	ctx := context.Background()

	// A late-afternoon 8-hour segment ends exactly at midnight.
	if err := repo.CreateAppointment(ctx, persistence.Appointment{
		ID:           "appt1",
		JobID:        "job1",
		TechnicianID: "tech1",
		Date:         mustDate(t, "2025-06-04"),
		Start:        timeutil.NewClock(16, 0),
		End:          timeutil.Clock(timeutil.MinutesPerDay),
		Status:       "draft",
		PartNumber:   1,
		PartTotal:    1,
		PartHours:    8,
	}); err != nil {
		t.Fatalf("CreateAppointment failed: %v", err)
	}

	retrieved, err := repo.GetAppointment(ctx, "appt1")
	if err != nil {
		t.Fatalf("GetAppointment failed: %v", err)
	}
	if retrieved.End != timeutil.MinutesPerDay || retrieved.End.String() != "24:00" {
		t.Errorf("Expected end 24:00, got %s", retrieved.End)
	}

	day := mustDate(t, "2025-06-04")
	listed, err := repo.ListAppointments(ctx, persistence.AppointmentFilter{From: &day, To: &day})
	if err != nil {
		t.Fatalf("ListAppointments failed: %v", err)
	}
	if len(listed) != 1 || listed[0].End != timeutil.MinutesPerDay {
		t.Errorf("Expected the midnight-bounded appointment in the range query, got %+v", listed)
	}
}

func TestAppointmentRepository_RejectsInvertedWindow(t *testing.T) {
	pool := setupPool(t)
	seedTechnician(t, pool, "tech1", "tech1@example.com")
	seedJob(t, pool, "job1")

	repo := NewAppointmentRepository(pool)
	err := repo.CreateAppointment(context.Background(), persistence.Appointment{
		ID:           "appt1",
		JobID:        "job1",
		TechnicianID: "tech1",
		Date:         mustDate(t, "2025-06-04"),
		Start:        timeutil.NewClock(11, 0),
		End:          timeutil.NewClock(9, 0),
		Status:       "draft",
		PartNumber:   1,
		PartTotal:    1,
	})
	if err == nil {
		t.Fatal("Expected inverted window to violate the check constraint")
	}
}

func TestAppointmentRepository_MoveShowsOnlyNewSlot(t *testing.T) {
	pool := setupPool(t)
	seedTechnician(t, pool, "tech1", "tech1@example.com")
	seedJob(t, pool, "job1")

	repo := NewAppointmentRepository(pool)
	ctx := context.Background()

	appointment := persistence.Appointment{
		ID:           "appt1",
		JobID:        "job1",
		TechnicianID: "tech1",
		Date:         mustDate(t, "2025-06-04"),
		Start:        timeutil.NewClock(9, 0),
		End:          timeutil.NewClock(11, 0),
		Status:       "draft",
		PartNumber:   1,
		PartTotal:    1,
	}
	if err := repo.CreateAppointment(ctx, appointment); err != nil {
		t.Fatalf("CreateAppointment failed: %v", err)
	}

	appointment.Date = mustDate(t, "2025-06-05")
	appointment.Start = timeutil.NewClock(13, 0)
	appointment.End = timeutil.NewClock(15, 0)
	if err := repo.UpdateAppointment(ctx, appointment); err != nil {
		t.Fatalf("UpdateAppointment failed: %v", err)
	}

	oldDay := mustDate(t, "2025-06-04")
	oldDayList, err := repo.ListAppointments(ctx, persistence.AppointmentFilter{From: &oldDay, To: &oldDay})
	if err != nil {
		t.Fatalf("ListAppointments (old day) failed: %v", err)
	}
	if len(oldDayList) != 0 {
		t.Errorf("Expected old slot to be empty, found %d appointments", len(oldDayList))
	}

	newDay := mustDate(t, "2025-06-05")
	newDayList, err := repo.ListAppointments(ctx, persistence.AppointmentFilter{From: &newDay, To: &newDay})
	if err != nil {
		t.Fatalf("ListAppointments (new day) failed: %v", err)
	}
	if len(newDayList) != 1 || newDayList[0].Start.String() != "13:00" {
		t.Errorf("Expected appointment at 13:00 on new day, got %+v", newDayList)
	}
}

func TestAppointmentRepository_ScheduleEntriesJoinDisplayFields(t *testing.T) {
	pool := setupPool(t)
	seedTechnician(t, pool, "tech1", "tech1@example.com")
	seedJob(t, pool, "job1")

	repo := NewAppointmentRepository(pool)
	ctx := context.Background()

	if err := repo.CreateAppointment(ctx, persistence.Appointment{
		ID:           "appt1",
		JobID:        "job1",
		TechnicianID: "tech1",
		Date:         mustDate(t, "2025-06-04"),
		Start:        timeutil.NewClock(9, 0),
		End:          timeutil.NewClock(11, 0),
		Status:       "draft",
		PartNumber:   1,
		PartTotal:    1,
	}); err != nil {
		t.Fatalf("CreateAppointment failed: %v", err)
	}

	entries, err := repo.ListScheduleEntries(ctx, persistence.AppointmentFilter{TechnicianID: "tech1"})
	if err != nil {
		t.Fatalf("ListScheduleEntries failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.TechnicianName != "Test Technician" {
		t.Errorf("Expected technician name to be joined, got %q", entry.TechnicianName)
	}
	if entry.CustomerName != "Acme Warehouse" || entry.JobSummary != "Replace UPS batteries" {
		t.Errorf("Expected job fields to be joined, got %q / %q", entry.CustomerName, entry.JobSummary)
	}
}

func TestJobRepository_BacklogExcludesActivelyScheduledJobs(t *testing.T) {
	pool := setupPool(t)
	seedTechnician(t, pool, "tech1", "tech1@example.com")
	seedJob(t, pool, "job-scheduled")
	seedJob(t, pool, "job-waiting")
	seedJob(t, pool, "job-cancelled-appt")

	appointments := NewAppointmentRepository(pool)
	ctx := context.Background()

	if err := appointments.CreateAppointment(ctx, persistence.Appointment{
		ID: "appt1", JobID: "job-scheduled", TechnicianID: "tech1",
		Date: mustDate(t, "2025-06-04"), Start: timeutil.NewClock(9, 0), End: timeutil.NewClock(11, 0),
		Status: "pending_tech", PartNumber: 1, PartTotal: 1,
	}); err != nil {
		t.Fatalf("CreateAppointment failed: %v", err)
	}
	if err := appointments.CreateAppointment(ctx, persistence.Appointment{
		ID: "appt2", JobID: "job-cancelled-appt", TechnicianID: "tech1",
		Date: mustDate(t, "2025-06-04"), Start: timeutil.NewClock(13, 0), End: timeutil.NewClock(15, 0),
		Status: "cancelled", PartNumber: 1, PartTotal: 1,
	}); err != nil {
		t.Fatalf("CreateAppointment failed: %v", err)
	}

	jobs := NewJobRepository(pool)
	backlog, err := jobs.ListUnscheduledJobs(ctx, "")
	if err != nil {
		t.Fatalf("ListUnscheduledJobs failed: %v", err)
	}

	ids := make(map[string]bool, len(backlog))
	for _, job := range backlog {
		ids[job.ID] = true
	}
	if ids["job-scheduled"] {
		t.Error("Job with an active appointment must not appear in the backlog")
	}
	if !ids["job-waiting"] {
		t.Error("Job without appointments must appear in the backlog")
	}
	if !ids["job-cancelled-appt"] {
		t.Error("Job whose only appointment is cancelled must appear in the backlog")
	}
}

func TestSessionRepository_ExpiredSessionsAreDeleted(t *testing.T) {
	pool := setupPool(t)
	operators := NewOperatorRepository(pool)
	sessions := NewSessionRepository(pool)
	ctx := context.Background()

	if err := operators.CreateOperator(ctx, persistence.Operator{
		ID:           "op1",
		Email:        "dispatch@example.com",
		DisplayName:  "Dispatch",
		PasswordHash: "hash",
	}); err != nil {
		t.Fatalf("CreateOperator failed: %v", err)
	}

	now := time.Now().UTC()
	if _, err := sessions.CreateSession(ctx, persistence.Session{
		ID: "sess1", OperatorID: "op1", Token: "tok1", ExpiresAt: now.Add(-time.Hour),
	}); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if _, err := sessions.CreateSession(ctx, persistence.Session{
		ID: "sess2", OperatorID: "op1", Token: "tok2", ExpiresAt: now.Add(time.Hour),
	}); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	if err := sessions.DeleteExpiredSessions(ctx, now); err != nil {
		t.Fatalf("DeleteExpiredSessions failed: %v", err)
	}

	if _, err := sessions.GetSession(ctx, "tok1"); err == nil {
		t.Error("Expected expired session to be deleted")
	}
	if _, err := sessions.GetSession(ctx, "tok2"); err != nil {
		t.Errorf("Expected live session to survive, got %v", err)
	}
}
