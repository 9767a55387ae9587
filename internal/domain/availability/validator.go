package availability

import (
	"fmt"
	"time"
)

// BookingValidator decides whether a proposed booking may proceed. It does not
// persist anything; the store's unique index remains the final authority.
type BookingValidator struct {
	Now func() time.Time
}

func NewBookingValidator(now func() time.Time) *BookingValidator {
	if now == nil {
		now = time.Now
	}
	return &BookingValidator{Now: now}
}

// Validate runs the checks in order and returns the first failure:
// past date, missing schedule, outside working hours, exact-time collision.
// existing holds the date_time of every appointment the doctor has that day.
func (v *BookingValidator) Validate(date time.Time, at TimeOfDay, schedule *DoctorDailySchedule, existing []time.Time) error {
	day := DateOf(date)
	if day.Before(DateOf(v.Now().UTC())) {
		return fmt.Errorf("%w: %s", ErrPastDate, day.Format(DateLayout))
	}
	if schedule == nil {
		return fmt.Errorf("%w: %s", ErrNoSchedule, day.Format(DateLayout))
	}
	if !schedule.Working().Contains(at) {
		return fmt.Errorf("%w: %s not in %s", ErrOutsideWorkingHours, at, schedule.Working())
	}
	want := at.On(day)
	for _, t := range existing {
		if t.Equal(want) {
			return fmt.Errorf("%w: %s", ErrSlotTaken, want.Format("2006-01-02 15:04"))
		}
	}
	return nil
}
