package availability

import (
	"github.com/hospital/hms/internal/platform/auth"
)

// Booking authorization. Admins may do anything; doctors act on their own
// doctor id; patients book and cancel only for themselves.

func authorizeDoctorView(a auth.AuthContext, doctorID int64) error {
	switch {
	case a.IsAdmin(), a.IsDoctor(doctorID):
		return nil
	case a.Role == auth.RolePatient && a.PatientID != nil:
		return nil
	}
	return ErrForbidden
}

func authorizeValidate(a auth.AuthContext, doctorID int64) error {
	return authorizeDoctorView(a, doctorID)
}

func authorizeBook(a auth.AuthContext, req BookingRequest) error {
	if a.IsAdmin() || a.IsDoctor(req.DoctorID) || a.IsPatient(req.PatientID) {
		return nil
	}
	return ErrForbidden
}

func authorizeRead(a auth.AuthContext, appt *Appointment) error {
	if a.IsAdmin() || a.IsDoctor(appt.DoctorID) || a.IsPatient(appt.PatientID) {
		return nil
	}
	return ErrForbidden
}

func authorizeTransition(a auth.AuthContext, appt *Appointment, next AppointmentStatus) error {
	switch {
	case a.IsAdmin(), a.IsDoctor(appt.DoctorID):
		return nil
	case a.IsPatient(appt.PatientID) && next == StatusCancelled:
		return nil
	}
	return ErrForbidden
}

func authorizeDoctorAppointments(a auth.AuthContext, doctorID int64) error {
	if a.IsAdmin() || a.IsDoctor(doctorID) {
		return nil
	}
	return ErrForbidden
}

func authorizePatientAppointments(a auth.AuthContext, patientID int64) error {
	if a.IsAdmin() || a.IsPatient(patientID) {
		return nil
	}
	return ErrForbidden
}
