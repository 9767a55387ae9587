package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hospital/hms/internal/platform/auth"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidUser        = errors.New("invalid user")
)

// User is a login account. Doctors carry a DoctorID and patients a PatientID.
type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"`
	DoctorID     *int64    `db:"doctor_id" json:"doctor_id,omitempty"`
	PatientID    *int64    `db:"patient_id" json:"patient_id,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

func (u *User) Validate() error {
	if u.Username == "" {
		return fmt.Errorf("%w: username is required", ErrInvalidUser)
	}
	switch u.Role {
	case auth.RoleAdmin:
	case auth.RoleDoctor:
		if u.DoctorID == nil || *u.DoctorID <= 0 {
			return fmt.Errorf("%w: doctor accounts need a doctor_id", ErrInvalidUser)
		}
	case auth.RolePatient:
		if u.PatientID == nil || *u.PatientID <= 0 {
			return fmt.Errorf("%w: patient accounts need a patient_id", ErrInvalidUser)
		}
	default:
		return fmt.Errorf("%w: unknown role %q", ErrInvalidUser, u.Role)
	}
	return nil
}

// AuthContext is the identity a token for u carries.
func (u *User) AuthContext() auth.AuthContext {
	return auth.AuthContext{
		UserID:    u.ID.String(),
		Role:      u.Role,
		DoctorID:  u.DoctorID,
		PatientID: u.PatientID,
	}
}
