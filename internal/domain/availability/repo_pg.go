package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hospital/hms/internal/platform/db"
)

const appointmentSlotConstraint = "appointment_doctor_slot_key"

func pgTime(t TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: int64(t) * int64(time.Minute/time.Microsecond), Valid: true}
}

func fromPGTime(t pgtype.Time) TimeOfDay {
	return TimeOfDay(t.Microseconds / int64(time.Minute/time.Microsecond))
}

// =========== Schedule Repository ===========

type scheduleRepoPG struct{ pool *pgxpool.Pool }

func NewScheduleRepoPG(pool *pgxpool.Pool) ScheduleRepository { return &scheduleRepoPG{pool: pool} }

func (r *scheduleRepoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const scheduleCols = `doctor_id, date, start_time, end_time, lunch_start, lunch_end,
	location, min_work_time, max_work_time, created_at`

func (r *scheduleRepoPG) scanSchedule(row pgx.Row) (*DoctorDailySchedule, error) {
	var s DoctorDailySchedule
	var start, end, lunchStart, lunchEnd, minWork, maxWork pgtype.Time
	err := row.Scan(&s.DoctorID, &s.Date, &start, &end, &lunchStart, &lunchEnd,
		&s.Location, &minWork, &maxWork, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	s.StartTime, s.EndTime = fromPGTime(start), fromPGTime(end)
	s.LunchStart, s.LunchEnd = fromPGTime(lunchStart), fromPGTime(lunchEnd)
	s.MinWorkTime, s.MaxWorkTime = fromPGTime(minWork), fromPGTime(maxWork)
	return &s, nil
}

func (r *scheduleRepoPG) Get(ctx context.Context, doctorID int64, date time.Time) (*DoctorDailySchedule, error) {
	s, err := r.scanSchedule(r.conn(ctx).QueryRow(ctx,
		`SELECT `+scheduleCols+` FROM doctor_daily_schedule WHERE doctor_id = $1 AND date = $2`,
		doctorID, DateOf(date)))
	if db.IsNotFound(err) {
		return nil, ErrNoSchedule
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	return s, nil
}

func (r *scheduleRepoPG) CreateIfAbsent(ctx context.Context, s *DoctorDailySchedule) (*DoctorDailySchedule, error) {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO doctor_daily_schedule (doctor_id, date, start_time, end_time,
			lunch_start, lunch_end, location, min_work_time, max_work_time)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (doctor_id, date) DO NOTHING`,
		s.DoctorID, DateOf(s.Date), pgTime(s.StartTime), pgTime(s.EndTime),
		pgTime(s.LunchStart), pgTime(s.LunchEnd), s.Location,
		pgTime(s.MinWorkTime), pgTime(s.MaxWorkTime))
	if err != nil {
		return nil, fmt.Errorf("insert schedule: %w", err)
	}
	return r.Get(ctx, s.DoctorID, s.Date)
}

// =========== Appointment Repository ===========

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

func (r *appointmentRepoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const apptCols = `id, doctor_id, patient_id, date_time, status, reason, location, created_at, updated_at`

func (r *appointmentRepoPG) scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.DoctorID, &a.PatientID, &a.DateTime, &a.Status,
		&a.Reason, &a.Location, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	if a.Status == "" {
		a.Status = StatusScheduled
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointment (id, doctor_id, patient_id, date_time, status, reason, location)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at`,
		a.ID, a.DoctorID, a.PatientID, a.DateTime, a.Status, a.Reason, a.Location,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if db.IsUniqueViolation(err, appointmentSlotConstraint) {
		return fmt.Errorf("%w: doctor %d at %s", ErrUniqueConstraintViolation, a.DoctorID, a.DateTime.Format("2006-01-02 15:04"))
	}
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := r.scanAppointment(r.conn(ctx).QueryRow(ctx, `SELECT `+apptCols+` FROM appointment WHERE id = $1`, id))
	if db.IsNotFound(err) {
		return nil, ErrAppointmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return a, nil
}

func (r *appointmentRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	a, err := r.scanAppointment(r.conn(ctx).QueryRow(ctx, `
		UPDATE appointment SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING `+apptCols, id, from, to))
	if db.IsNotFound(err) {
		return nil, fmt.Errorf("%w: appointment %s is no longer %s", ErrInvalidStatusTransition, id, from)
	}
	if err != nil {
		return nil, fmt.Errorf("update appointment status: %w", err)
	}
	return a, nil
}

func (r *appointmentRepoPG) ListByDoctorDate(ctx context.Context, doctorID int64, date time.Time) ([]*Appointment, error) {
	day := DateOf(date)
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+apptCols+` FROM appointment
		WHERE doctor_id = $1 AND date_time >= $2 AND date_time < $3
		ORDER BY date_time`, doctorID, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := r.scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *appointmentRepoPG) ListByPatient(ctx context.Context, patientID int64, limit, offset int) ([]*Appointment, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM appointment WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+apptCols+` FROM appointment
		WHERE patient_id = $1 ORDER BY date_time DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := r.scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func (r *appointmentRepoPG) CompletePast(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointment SET status = $1, updated_at = NOW()
		WHERE status = $2 AND date_time < $3`,
		StatusCompleted, StatusScheduled, before)
	if err != nil {
		return 0, fmt.Errorf("complete past appointments: %w", err)
	}
	return tag.RowsAffected(), nil
}
