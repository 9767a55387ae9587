package availability

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ScheduleRepository interface {
	// Get returns ErrNoSchedule when no row exists for (doctorID, date).
	Get(ctx context.Context, doctorID int64, date time.Time) (*DoctorDailySchedule, error)
	// CreateIfAbsent inserts s unless a row for its key exists, and returns
	// whichever row is stored afterwards.
	CreateIfAbsent(ctx context.Context, s *DoctorDailySchedule) (*DoctorDailySchedule, error)
}

type AppointmentRepository interface {
	// Create returns ErrUniqueConstraintViolation when the doctor already has
	// an appointment at a.DateTime.
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// UpdateStatus moves the appointment from one status to another and fails
	// with ErrInvalidStatusTransition if it is no longer in status from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)
	ListByDoctorDate(ctx context.Context, doctorID int64, date time.Time) ([]*Appointment, error)
	ListByPatient(ctx context.Context, patientID int64, limit, offset int) ([]*Appointment, int, error)
	// CompletePast marks Scheduled appointments before the cutoff as Completed.
	CompletePast(ctx context.Context, before time.Time) (int64, error)
}
