package availability

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hospital/hms/internal/platform/auth"
	"github.com/hospital/hms/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Per-record ownership is enforced by the service against the caller's AuthContext.
	g := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RolePatient))
	g.GET("/doctors/:doctorId/schedules/:date", h.GetSchedule)
	g.GET("/doctors/:doctorId/slots", h.GetSlots)
	g.POST("/appointments/validate", h.ValidateBooking)
	g.POST("/appointments", h.CreateAppointment)
	g.GET("/appointments", h.ListAppointments)
	g.GET("/appointments/:id", h.GetAppointment)
	g.PATCH("/appointments/:id/status", h.UpdateAppointmentStatus)
}

// httpError maps service errors onto HTTP status codes.
func httpError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrNoSchedule), errors.Is(err, ErrAppointmentNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrSlotTaken), errors.Is(err, ErrUniqueConstraintViolation),
		errors.Is(err, ErrInvalidStatusTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrPastDate), errors.Is(err, ErrOutsideWorkingHours):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
}

func authContext(c echo.Context) (auth.AuthContext, error) {
	a, ok := auth.FromContext(c.Request().Context())
	if !ok {
		return a, echo.NewHTTPError(http.StatusUnauthorized, "missing credentials")
	}
	return a, nil
}

func parseID(s, name string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// -- Schedule Handlers --

type scheduleResponse struct {
	DoctorID   int64     `json:"doctor_id"`
	Date       string    `json:"date"`
	StartTime  TimeOfDay `json:"start_time"`
	EndTime    TimeOfDay `json:"end_time"`
	LunchStart TimeOfDay `json:"lunch_start"`
	LunchEnd   TimeOfDay `json:"lunch_end"`
	Location   string    `json:"location"`
	Activities []string  `json:"activities"`
}

func (h *Handler) GetSchedule(c echo.Context) error {
	a, err := authContext(c)
	if err != nil {
		return err
	}
	doctorID, err := parseID(c.Param("doctorId"), "doctor id")
	if err != nil {
		return err
	}
	date, err := ParseDate(c.Param("date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sched, acts, err := h.svc.DaySchedule(c.Request().Context(), a, doctorID, date)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, scheduleResponse{
		DoctorID:   sched.DoctorID,
		Date:       sched.Date.Format(DateLayout),
		StartTime:  sched.StartTime,
		EndTime:    sched.EndTime,
		LunchStart: sched.LunchStart,
		LunchEnd:   sched.LunchEnd,
		Location:   sched.Location,
		Activities: acts,
	})
}

type slotsResponse struct {
	DoctorID int64       `json:"doctor_id"`
	Date     string      `json:"date"`
	Slots    []TimeOfDay `json:"slots"`
}

func (h *Handler) GetSlots(c echo.Context) error {
	a, err := authContext(c)
	if err != nil {
		return err
	}
	doctorID, err := parseID(c.Param("doctorId"), "doctor id")
	if err != nil {
		return err
	}
	date, err := ParseDate(c.QueryParam("date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	slots, err := h.svc.AvailableSlots(c.Request().Context(), a, doctorID, date)
	if err != nil {
		return httpError(err)
	}
	if slots == nil {
		slots = []TimeOfDay{}
	}
	return c.JSON(http.StatusOK, slotsResponse{DoctorID: doctorID, Date: date.Format(DateLayout), Slots: slots})
}

// -- Appointment Handlers --

type bookingBody struct {
	DoctorID       int64  `json:"doctor_id"`
	PatientID      int64  `json:"patient_id"`
	Date           string `json:"date"`
	Time           string `json:"time"`
	Reason         string `json:"reason"`
	EnsureSchedule bool   `json:"ensure_schedule"`
}

func (b bookingBody) request() (BookingRequest, error) {
	date, err := ParseDate(b.Date)
	if err != nil {
		return BookingRequest{}, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	at, err := ParseTimeOfDay(b.Time)
	if err != nil {
		return BookingRequest{}, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return BookingRequest{
		DoctorID:  b.DoctorID,
		PatientID: b.PatientID,
		Date:      date,
		Time:      at,
		Reason:    b.Reason,
	}, nil
}

func (h *Handler) ValidateBooking(c echo.Context) error {
	a, err := authContext(c)
	if err != nil {
		return err
	}
	var body bookingBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req, err := body.request()
	if err != nil {
		return err
	}
	if req.DoctorID <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "doctor_id is required")
	}
	if err := h.svc.ValidateBooking(c.Request().Context(), a, req.DoctorID, req.Date, req.Time); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) CreateAppointment(c echo.Context) error {
	a, err := authContext(c)
	if err != nil {
		return err
	}
	var body bookingBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req, err := body.request()
	if err != nil {
		return err
	}
	if req.PatientID == 0 && a.PatientID != nil {
		req.PatientID = *a.PatientID
	}

	ctx := c.Request().Context()
	if body.EnsureSchedule && req.DoctorID > 0 {
		if _, _, err := h.svc.DaySchedule(ctx, a, req.DoctorID, req.Date); err != nil {
			return httpError(err)
		}
	}
	appt, err := h.svc.Book(ctx, a, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, appt)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	a, err := authContext(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	appt, err := h.svc.GetAppointment(c.Request().Context(), a, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) ListAppointments(c echo.Context) error {
	a, err := authContext(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	ctx := c.Request().Context()

	if pid := c.QueryParam("patient_id"); pid != "" {
		patientID, err := parseID(pid, "patient_id")
		if err != nil {
			return err
		}
		items, total, err := h.svc.ListPatientAppointments(ctx, a, patientID, pg.Limit, pg.Offset)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
	}

	doctorID, err := parseID(c.QueryParam("doctor_id"), "doctor_id")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "doctor_id and date, or patient_id, are required")
	}
	date, err := ParseDate(c.QueryParam("date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	items, err := h.svc.ListDoctorAppointments(ctx, a, doctorID, date)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(pagination.Page(items, pg), len(items), pg.Limit, pg.Offset))
}

type statusBody struct {
	Status AppointmentStatus `json:"status"`
}

func (h *Handler) UpdateAppointmentStatus(c echo.Context) error {
	a, err := authContext(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body statusBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	appt, err := h.svc.UpdateStatus(c.Request().Context(), a, id, body.Status)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, appt)
}
