package availability

import "errors"

var (
	// ErrInvalidWindow signals a broken internal invariant and should never reach a caller.
	ErrInvalidWindow = errors.New("invalid time window")

	ErrPastDate                  = errors.New("date is in the past")
	ErrNoSchedule                = errors.New("doctor has no schedule for this date")
	ErrOutsideWorkingHours       = errors.New("requested time is outside working hours")
	ErrSlotTaken                 = errors.New("slot is already taken")
	ErrUniqueConstraintViolation = errors.New("slot was just taken by another booking")

	ErrForbidden               = errors.New("not permitted for this user")
	ErrInvalidStatusTransition = errors.New("invalid appointment status transition")
	ErrAppointmentNotFound     = errors.New("appointment not found")
	ErrInvalidRequest          = errors.New("invalid request")
)
