package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hospital/hms/internal/platform/auth"
)

// TxFunc runs fn inside a store transaction.
type TxFunc func(ctx context.Context, fn func(ctx context.Context) error) error

func noTx(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

type Service struct {
	schedules    ScheduleRepository
	appointments AppointmentRepository
	generator    *ScheduleGenerator
	planner      *ActivityPlanner
	validator    *BookingValidator
	events       EventPublisher
	newRand      func() Rand
	tx           TxFunc
	now          func() time.Time
	logger       zerolog.Logger
	tracer       trace.Tracer
}

type Option func(*Service)

// WithRand sets the per-call random source factory.
func WithRand(fn func() Rand) Option { return func(s *Service) { s.newRand = fn } }

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
		s.validator = NewBookingValidator(now)
	}
}

func WithEvents(p EventPublisher) Option { return func(s *Service) { s.events = p } }

func WithTx(tx TxFunc) Option { return func(s *Service) { s.tx = tx } }

func WithLogger(l zerolog.Logger) Option { return func(s *Service) { s.logger = l } }

func WithGenerator(g *ScheduleGenerator) Option { return func(s *Service) { s.generator = g } }

func WithPlanner(p *ActivityPlanner) Option { return func(s *Service) { s.planner = p } }

func NewService(sched ScheduleRepository, appt AppointmentRepository, opts ...Option) *Service {
	s := &Service{
		schedules:    sched,
		appointments: appt,
		generator:    NewScheduleGenerator(),
		planner:      NewActivityPlanner(),
		validator:    NewBookingValidator(time.Now),
		events:       NopPublisher{},
		newRand:      TimeSeededRand,
		tx:           noTx,
		now:          time.Now,
		logger:       zerolog.Nop(),
		tracer:       otel.Tracer("github.com/hospital/hms/internal/domain/availability"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// -- Schedule --

// GetOrGenerateSchedule returns the stored schedule for (doctorID, date),
// generating and persisting one first if none exists. Concurrent callers
// converge on whichever row the store kept.
func (s *Service) GetOrGenerateSchedule(ctx context.Context, doctorID int64, date time.Time) (sched *DoctorDailySchedule, err error) {
	ctx, span := s.startSpan(ctx, "availability.GetOrGenerateSchedule",
		attribute.Int64("doctor.id", doctorID), attribute.String("date", DateOf(date).Format(DateLayout)))
	defer func() { endSpan(span, err) }()

	sched, err = s.schedules.Get(ctx, doctorID, date)
	if err == nil {
		return sched, nil
	}
	if !errors.Is(err, ErrNoSchedule) {
		return nil, err
	}

	generated := s.generator.Generate(doctorID, date, s.newRand())
	if err := generated.Validate(); err != nil {
		return nil, fmt.Errorf("generated schedule for doctor %d: %w", doctorID, err)
	}
	sched, err = s.schedules.CreateIfAbsent(ctx, generated)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("doctor_id", doctorID).
		Str("date", DateOf(date).Format(DateLayout)).
		Str("working", sched.Working().String()).
		Str("lunch", sched.Lunch().String()).
		Msg("schedule generated")
	return sched, nil
}

// DaySchedule returns the (possibly just generated) schedule and its activities.
func (s *Service) DaySchedule(ctx context.Context, a auth.AuthContext, doctorID int64, date time.Time) (*DoctorDailySchedule, []string, error) {
	if err := authorizeDoctorView(a, doctorID); err != nil {
		return nil, nil, err
	}
	sched, err := s.GetOrGenerateSchedule(ctx, doctorID, date)
	if err != nil {
		return nil, nil, err
	}
	return sched, s.DailyActivities(sched), nil
}

// DailyActivities renders the filler activity list for a schedule.
func (s *Service) DailyActivities(sched *DoctorDailySchedule) []string {
	return FormatActivities(s.planner.Plan(sched, s.newRand()))
}

// -- Availability --

func (s *Service) AvailableSlots(ctx context.Context, a auth.AuthContext, doctorID int64, date time.Time) (slots []TimeOfDay, err error) {
	if err := authorizeDoctorView(a, doctorID); err != nil {
		return nil, err
	}
	ctx, span := s.startSpan(ctx, "availability.AvailableSlots",
		attribute.Int64("doctor.id", doctorID), attribute.String("date", DateOf(date).Format(DateLayout)))
	defer func() { endSpan(span, err) }()

	sched, err := s.GetOrGenerateSchedule(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	booked, err := s.bookedTimes(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	slots = AvailableSlots(sched, BookedTimes(date, booked))
	span.SetAttributes(attribute.Int("slots.count", len(slots)))
	return slots, nil
}

func (s *Service) bookedTimes(ctx context.Context, doctorID int64, date time.Time) ([]time.Time, error) {
	appts, err := s.appointments.ListByDoctorDate(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	times := make([]time.Time, 0, len(appts))
	for _, ap := range appts {
		times = append(times, ap.DateTime)
	}
	return times, nil
}

// ValidateBooking checks a proposed booking without persisting it.
func (s *Service) ValidateBooking(ctx context.Context, a auth.AuthContext, doctorID int64, date time.Time, at TimeOfDay) (err error) {
	if err := authorizeValidate(a, doctorID); err != nil {
		return err
	}
	ctx, span := s.startSpan(ctx, "availability.ValidateBooking",
		attribute.Int64("doctor.id", doctorID), attribute.String("date", DateOf(date).Format(DateLayout)),
		attribute.String("time", at.String()))
	defer func() { endSpan(span, err) }()

	return s.validate(ctx, doctorID, date, at)
}

func (s *Service) validate(ctx context.Context, doctorID int64, date time.Time, at TimeOfDay) error {
	sched, err := s.schedules.Get(ctx, doctorID, date)
	if err != nil && !errors.Is(err, ErrNoSchedule) {
		return err
	}
	booked, err := s.bookedTimes(ctx, doctorID, date)
	if err != nil {
		return err
	}
	return s.validator.Validate(date, at, sched, booked)
}

// -- Appointment --

// Book validates req and stores a Scheduled appointment. It does not generate
// a missing schedule; callers that want that call GetOrGenerateSchedule first.
func (s *Service) Book(ctx context.Context, a auth.AuthContext, req BookingRequest) (appt *Appointment, err error) {
	if req.DoctorID <= 0 {
		return nil, fmt.Errorf("%w: doctor_id is required", ErrInvalidRequest)
	}
	if req.PatientID <= 0 {
		return nil, fmt.Errorf("%w: patient_id is required", ErrInvalidRequest)
	}
	if err := authorizeBook(a, req); err != nil {
		return nil, err
	}
	ctx, span := s.startSpan(ctx, "availability.Book",
		attribute.Int64("doctor.id", req.DoctorID), attribute.Int64("patient.id", req.PatientID),
		attribute.String("date_time", req.DateTime().Format(time.RFC3339)))
	defer func() { endSpan(span, err) }()

	err = s.tx(ctx, func(ctx context.Context) error {
		if err := s.validate(ctx, req.DoctorID, req.Date, req.Time); err != nil {
			return err
		}
		sched, err := s.schedules.Get(ctx, req.DoctorID, req.Date)
		if err != nil {
			return err
		}
		appt = &Appointment{
			DoctorID:  req.DoctorID,
			PatientID: req.PatientID,
			DateTime:  req.DateTime(),
			Status:    StatusScheduled,
			Reason:    req.Reason,
			Location:  sched.Location,
		}
		return s.appointments.Create(ctx, appt)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("appointment_id", appt.ID.String()).
		Int64("doctor_id", appt.DoctorID).
		Int64("patient_id", appt.PatientID).
		Time("date_time", appt.DateTime).
		Msg("appointment booked")
	s.publish(ctx, NewEvent(EventAppointmentBooked, appt, s.now()))
	return appt, nil
}

func (s *Service) GetAppointment(ctx context.Context, a auth.AuthContext, id uuid.UUID) (*Appointment, error) {
	appt, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeRead(a, appt); err != nil {
		return nil, err
	}
	return appt, nil
}

// UpdateStatus applies Scheduled->Completed or Scheduled->Cancelled.
func (s *Service) UpdateStatus(ctx context.Context, a auth.AuthContext, id uuid.UUID, next AppointmentStatus) (appt *Appointment, err error) {
	if !next.Valid() {
		return nil, fmt.Errorf("%w: invalid appointment status: %s", ErrInvalidRequest, next)
	}
	ctx, span := s.startSpan(ctx, "availability.UpdateStatus",
		attribute.String("appointment.id", id.String()), attribute.String("status", string(next)))
	defer func() { endSpan(span, err) }()

	current, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeTransition(a, current, next); err != nil {
		return nil, err
	}
	if !current.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, current.Status, next)
	}
	appt, err = s.appointments.UpdateStatus(ctx, id, current.Status, next)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("appointment_id", id.String()).
		Str("from", string(current.Status)).
		Str("to", string(next)).
		Msg("appointment status changed")
	evt := NewEvent(EventAppointmentStatusChanged, appt, s.now())
	evt.PreviousStatus = current.Status
	s.publish(ctx, evt)
	return appt, nil
}

func (s *Service) ListDoctorAppointments(ctx context.Context, a auth.AuthContext, doctorID int64, date time.Time) ([]*Appointment, error) {
	if err := authorizeDoctorAppointments(a, doctorID); err != nil {
		return nil, err
	}
	return s.appointments.ListByDoctorDate(ctx, doctorID, date)
}

func (s *Service) ListPatientAppointments(ctx context.Context, a auth.AuthContext, patientID int64, limit, offset int) ([]*Appointment, int, error) {
	if err := authorizePatientAppointments(a, patientID); err != nil {
		return nil, 0, err
	}
	return s.appointments.ListByPatient(ctx, patientID, limit, offset)
}

// CompletePastAppointments marks every Scheduled appointment already in the past as Completed.
func (s *Service) CompletePastAppointments(ctx context.Context) (int64, error) {
	return s.appointments.CompletePast(ctx, s.now().UTC())
}

// publish never fails the caller; the appointment is already committed.
func (s *Service) publish(ctx context.Context, evt Event) {
	if err := s.events.Publish(ctx, evt); err != nil {
		s.logger.Error().Err(err).
			Str("event_id", evt.ID.String()).
			Str("event_type", evt.Type).
			Msg("publish appointment event")
	}
}
