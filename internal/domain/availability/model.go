package availability

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DoctorDailySchedule is a doctor's working window and lunch break for one date.
// MinWorkTime and MaxWorkTime record the bounds used at generation time only.
type DoctorDailySchedule struct {
	DoctorID    int64     `db:"doctor_id" json:"doctor_id"`
	Date        time.Time `db:"date" json:"-"`
	StartTime   TimeOfDay `db:"start_time" json:"start_time"`
	EndTime     TimeOfDay `db:"end_time" json:"end_time"`
	LunchStart  TimeOfDay `db:"lunch_start" json:"lunch_start"`
	LunchEnd    TimeOfDay `db:"lunch_end" json:"lunch_end"`
	Location    string    `db:"location" json:"location"`
	MinWorkTime TimeOfDay `db:"min_work_time" json:"min_work_time"`
	MaxWorkTime TimeOfDay `db:"max_work_time" json:"max_work_time"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

func (s *DoctorDailySchedule) Working() TimeWindow {
	return TimeWindow{Start: s.StartTime, End: s.EndTime}
}

func (s *DoctorDailySchedule) Lunch() TimeWindow {
	return TimeWindow{Start: s.LunchStart, End: s.LunchEnd}
}

// Validate checks start < end and start <= lunchStart <= lunchEnd <= end,
// all within the day.
func (s *DoctorDailySchedule) Validate() error {
	for _, t := range []TimeOfDay{s.StartTime, s.EndTime, s.LunchStart, s.LunchEnd} {
		if !t.Valid() {
			return fmt.Errorf("%w: %s is outside the day", ErrInvalidWindow, t)
		}
	}
	if s.StartTime >= s.EndTime {
		return fmt.Errorf("%w: working hours %s", ErrInvalidWindow, s.Working())
	}
	if s.LunchStart < s.StartTime || s.LunchEnd < s.LunchStart || s.LunchEnd > s.EndTime {
		return fmt.Errorf("%w: lunch %s outside working hours %s", ErrInvalidWindow, s.Lunch(), s.Working())
	}
	return nil
}

type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "Scheduled"
	StatusCompleted AppointmentStatus = "Completed"
	StatusCancelled AppointmentStatus = "Cancelled"
)

var validStatusTransitions = map[AppointmentStatus]map[AppointmentStatus]bool{
	StatusScheduled: {StatusCompleted: true, StatusCancelled: true},
}

func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether an appointment in status s may move to next.
func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	return validStatusTransitions[s][next]
}

type Appointment struct {
	ID        uuid.UUID         `db:"id" json:"id"`
	DoctorID  int64             `db:"doctor_id" json:"doctor_id"`
	PatientID int64             `db:"patient_id" json:"patient_id"`
	DateTime  time.Time         `db:"date_time" json:"date_time"`
	Status    AppointmentStatus `db:"status" json:"status"`
	Reason    string            `db:"reason" json:"reason,omitempty"`
	Location  string            `db:"location" json:"location,omitempty"`
	CreatedAt time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt time.Time         `db:"updated_at" json:"updated_at"`
}

// BookingRequest asks for an appointment at Time on Date with DoctorID.
type BookingRequest struct {
	DoctorID  int64
	PatientID int64
	Date      time.Time
	Time      TimeOfDay
	Reason    string
}

// DateTime is the combined UTC timestamp the appointment would be stored under.
func (r BookingRequest) DateTime() time.Time {
	return r.Time.On(DateOf(r.Date))
}
