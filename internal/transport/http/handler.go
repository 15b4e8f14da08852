package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"psychbook/backend/internal/domain"
	"psychbook/backend/internal/service/availability"
	"psychbook/backend/internal/service/booking"
	"psychbook/backend/internal/store"
)

// ActingUserHeader carries the authenticated user id. Authentication itself
// belongs to the host application; the engine trusts the header and enforces
// authorization from it.
const ActingUserHeader = "X-Acting-User"

type availabilityService interface {
	Create(ctx context.Context, in availability.CreateInput) (domain.AvailabilityRule, error)
	Update(ctx context.Context, in availability.UpdateInput) (domain.AvailabilityRule, error)
	Delete(ctx context.Context, actorID, ruleID uuid.UUID) error
	List(ctx context.Context, providerID uuid.UUID) ([]domain.AvailabilityRule, error)
}

type slotResolver interface {
	GetAvailableSlots(ctx context.Context, providerID uuid.UUID, date time.Time, duration time.Duration) ([]domain.Slot, error)
	CheckSlotAvailability(ctx context.Context, providerID uuid.UUID, date time.Time, start, end domain.TimeOfDay) (bool, error)
}

type bookingService interface {
	Book(ctx context.Context, in booking.BookInput) (domain.Appointment, error)
	Cancel(ctx context.Context, actorID, appointmentID uuid.UUID, reason string) (domain.Appointment, error)
	Reschedule(ctx context.Context, in booking.RescheduleInput) (domain.Appointment, error)
	Complete(ctx context.Context, actorID, appointmentID uuid.UUID) (domain.Appointment, error)
	UpdateNotes(ctx context.Context, in booking.NotesInput) (domain.Appointment, error)
	Get(ctx context.Context, actorID, appointmentID uuid.UUID) (domain.Appointment, error)
	ListForSubject(ctx context.Context, actorID, subjectID uuid.UUID) ([]domain.Appointment, error)
	ListForProvider(ctx context.Context, actorID, providerID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Appointment, error)
}

type sessionTypeCatalog interface {
	ListSessionTypes(ctx context.Context) ([]domain.SessionType, error)
}

type Handler struct {
	rules           availabilityService
	slots           slotResolver
	bookings        bookingService
	catalog         sessionTypeCatalog
	defaultDuration time.Duration
	log             *slog.Logger
}

func NewHandler(rules availabilityService, slots slotResolver, bookings bookingService, catalog sessionTypeCatalog, defaultDuration time.Duration, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	if defaultDuration <= 0 {
		defaultDuration = time.Hour
	}
	return &Handler{
		rules:           rules,
		slots:           slots,
		bookings:        bookings,
		catalog:         catalog,
		defaultDuration: defaultDuration,
		log:             log.With(slog.String("component", "http")),
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/providers/:provider_id/availability", h.createAvailability)
	e.GET("/providers/:provider_id/availability", h.listAvailability)
	e.PATCH("/availability/:rule_id", h.updateAvailability)
	e.DELETE("/availability/:rule_id", h.deleteAvailability)

	e.GET("/providers/:provider_id/slots", h.listSlots)
	e.GET("/providers/:provider_id/slots/check", h.checkSlot)

	e.POST("/appointments", h.book)
	e.GET("/appointments/:appointment_id", h.getAppointment)
	e.POST("/appointments/:appointment_id/cancel", h.cancel)
	e.POST("/appointments/:appointment_id/reschedule", h.reschedule)
	e.POST("/appointments/:appointment_id/complete", h.complete)
	e.PATCH("/appointments/:appointment_id/notes", h.updateNotes)

	e.GET("/subjects/:subject_id/appointments", h.listForSubject)
	e.GET("/providers/:provider_id/appointments", h.listForProvider)

	e.GET("/session-types", h.listSessionTypes)
}

func actingUser(c echo.Context) (uuid.UUID, error) {
	raw := c.Request().Header.Get(ActingUserHeader)
	if raw == "" {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "X-Acting-User header is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "X-Acting-User must be a UUID")
	}
	return id, nil
}

func pathUUID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, name+" must be a UUID")
	}
	return id, nil
}

// mapError is the single translation point from service errors to HTTP
// statuses.
func (h *Handler) mapError(c echo.Context, op string, err error) error {
	log := h.log.With(slog.String("op", op))
	var echoErr *echo.HTTPError
	if errors.As(err, &echoErr) {
		return err
	}

	switch {
	case errors.Is(err, store.ErrNotFound):
		log.Info("not found", slog.Any("err", err))
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, booking.ErrForbidden), errors.Is(err, availability.ErrForbidden):
		log.Info("forbidden", slog.Any("err", err))
		return echo.NewHTTPError(http.StatusForbidden, "forbidden")
	case errors.Is(err, booking.ErrSlotUnavailable):
		log.Info("slot unavailable", slog.Any("err", err))
		return echo.NewHTTPError(http.StatusConflict, "The requested slot is not available. Pick a different slot.")
	case errors.Is(err, booking.ErrNoticeTooShort):
		log.Info("notice too short", slog.Any("err", err))
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "Appointments must be canceled or moved at least 24 hours in advance.")
	case errors.Is(err, domain.ErrInvalidInterval):
		log.Warn("invalid request", slog.Any("err", err))
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, booking.ErrCaseCreationFailed):
		log.Error("case creation failed", slog.Any("err", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "could not create a case for the booking")
	}

	var bookingVErr *booking.ValidationError
	var ruleVErr *availability.ValidationError
	if errors.As(err, &bookingVErr) || errors.As(err, &ruleVErr) {
		log.Warn("invalid request", slog.Any("err", err))
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	log.Error("request failed", slog.Any("err", err))
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
}

type availabilityRequest struct {
	DayOfWeek     domain.Weekday       `json:"day_of_week"`
	StartTime     domain.TimeOfDay     `json:"start_time"`
	EndTime       domain.TimeOfDay     `json:"end_time"`
	IsAvailable   *bool                `json:"is_available"`
	BreakPeriods  []domain.BreakPeriod `json:"break_periods"`
	EffectiveFrom *string              `json:"effective_from"`
	EffectiveTo   *string              `json:"effective_to"`
	Notes         string               `json:"notes"`
}

func (h *Handler) createAvailability(c echo.Context) error {
	actorID, err := actingUser(c)
	if err != nil {
		return err
	}
	providerID, err := pathUUID(c, "provider_id")
	if err != nil {
		return err
	}

	var req availabilityRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}

	isAvailable := true
	if req.IsAvailable != nil {
		isAvailable = *req.IsAvailable
	}

	rule, err := h.rules.Create(c.Request().Context(), availability.CreateInput{
		ActorID:       actorID,
		ProviderID:    providerID,
		DayOfWeek:     req.DayOfWeek,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		IsAvailable:   isAvailable,
		BreakPeriods:  req.BreakPeriods,
		EffectiveFrom: req.EffectiveFrom,
		EffectiveTo:   req.EffectiveTo,
		Notes:         req.Notes,
	})
	if err != nil {
		return h.mapError(c, "create_availability", err)
	}

	h.log.Info("availability rule created",
		slog.String("rule_id", rule.ID.String()),
		slog.String("provider_id", providerID.String()),
		slog.String("day", rule.DayOfWeek.String()),
	)
	return c.JSON(http.StatusCreated, rule)
}

func (h *Handler) listAvailability(c echo.Context) error {
	providerID, err := pathUUID(c, "provider_id")
	if err != nil {
		return err
	}
	rules, err := h.rules.List(c.Request().Context(), providerID)
	if err != nil {
		return h.mapError(c, "list_availability", err)
	}
	if rules == nil {
		rules = []domain.AvailabilityRule{}
	}
	return c.JSON(http.StatusOK, rules)
}

type availabilityPatch struct {
	DayOfWeek     *domain.Weekday      `json:"day_of_week"`
	StartTime     *domain.TimeOfDay    `json:"start_time"`
	EndTime       *domain.TimeOfDay    `json:"end_time"`
	IsAvailable   *bool                `json:"is_available"`
	BreakPeriods  []domain.BreakPeriod `json:"break_periods"`
	EffectiveFrom *string              `json:"effective_from"`
	EffectiveTo   *string              `json:"effective_to"`
	Notes         *string              `json:"notes"`
}

func (h *Handler) updateAvailability(c echo.Context) error {
	actorID, err := actingUser(c)
	if err != nil {
		return err
	}
	ruleID, err := pathUUID(c, "rule_id")
	if err != nil {
		return err
	}

	var req availabilityPatch
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}

	rule, err := h.rules.Update(c.Request().Context(), availability.UpdateInput{
		ActorID:       actorID,
		RuleID:        ruleID,
		DayOfWeek:     req.DayOfWeek,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		IsAvailable:   req.IsAvailable,
		BreakPeriods:  req.BreakPeriods,
		EffectiveFrom: req.EffectiveFrom,
		EffectiveTo:   req.EffectiveTo,
		Notes:         req.Notes,
	})
	if err != nil {
		return h.mapError(c, "update_availability", err)
	}
	return c.JSON(http.StatusOK, rule)
}

func (h *Handler) deleteAvailability(c echo.Context) error {
	actorID, err := actingUser(c)
	if err != nil {
		return err
	}
	ruleID, err := pathUUID(c, "rule_id")
	if err != nil {
		return err
	}
	if err := h.rules.Delete(c.Request().Context(), actorID, ruleID); err != nil {
		return h.mapError(c, "delete_availability", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) slotQuery(c echo.Context) (time.Time, time.Duration, error) {
	date, err := domain.ParseDate(c.QueryParam("date"))
	if err != nil {
		return time.Time{}, 0, echo.NewHTTPError(http.StatusBadRequest, "date must be YYYY-MM-DD")
	}
	duration := h.defaultDuration
	if raw := c.QueryParam("duration_minutes"); raw != "" {
		var minutes int
		if err := echo.QueryParamsBinder(c).Int("duration_minutes", &minutes).BindError(); err != nil || minutes <= 0 {
			return time.Time{}, 0, echo.NewHTTPError(http.StatusBadRequest, "duration_minutes must be a positive integer")
		}
		duration = time.Duration(minutes) * time.Minute
	}
	return date, duration, nil
}

func (h *Handler) listSlots(c echo.Context) error {
	providerID, err := pathUUID(c, "provider_id")
	if err != nil {
		return err
	}
	date, duration, err := h.slotQuery(c)
	if err != nil {
		return err
	}

	slots, err := h.slots.GetAvailableSlots(c.Request().Context(), providerID, date, duration)
	if err != nil {
		return h.mapError(c, "list_slots", err)
	}
	if slots == nil {
		slots = []domain.Slot{}
	}

	h.log.Debug("slots listed",
		slog.String("provider_id", providerID.String()),
		slog.Time("date", date),
		slog.Int("count", len(slots)),
	)
	return c.JSON(http.StatusOK, slots)
}

func (h *Handler) checkSlot(c echo.Context) error {
	providerID, err := pathUUID(c, "provider_id")
	if err != nil {
		return err
	}
	date, err := domain.ParseDate(c.QueryParam("date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "date must be YYYY-MM-DD")
	}
	start, err := domain.ParseTimeOfDay(c.QueryParam("start"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "start must be HH:MM")
	}
	end, err := domain.ParseTimeOfDay(c.QueryParam("end"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "end must be HH:MM")
	}

	available, err := h.slots.CheckSlotAvailability(c.Request().Context(), providerID, date, start, end)
	if err != nil {
		return h.mapError(c, "check_slot", err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"available": available})
}

type bookRequest struct {
	ProviderID      uuid.UUID        `json:"provider_id"`
	SubjectID       *uuid.UUID       `json:"subject_id"`
	SessionTypeID   *uuid.UUID       `json:"session_type_id"`
	CaseID          *uuid.UUID       `json:"case_id"`
	Date            string           `json:"date"`
	StartTime       domain.TimeOfDay `json:"start_time"`
	DurationMinutes int              `json:"duration_minutes"`
	SubjectNotes    string           `json:"subject_notes"`
}

func (h *Handler) book(c echo.Context) error {
	actorID, err := actingUser(c)
	if err != nil {
		return err
	}

	var req bookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	date, err := domain.ParseDate(req.Date)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "date must be YYYY-MM-DD")
	}

	in := booking.BookInput{
		ActorID:         actorID,
		ProviderID:      req.ProviderID,
		SessionTypeID:   req.SessionTypeID,
		CaseID:          req.CaseID,
		Date:            date,
		StartTime:       req.StartTime,
		DurationMinutes: req.DurationMinutes,
		SubjectNotes:    req.SubjectNotes,
	}
	if req.SubjectID != nil {
		in.SubjectID = *req.SubjectID
	}

	appt, err := h.bookings.Book(c.Request().Context(), in)
	if err != nil {
		return h.mapError(c, "book", err)
	}

	h.log.Info("appointment booked",
		slog.String("appointment_id", appt.ID.String()),
		slog.String("provider_id", appt.ProviderID.String()),
		slog.String("subject_id", appt.SubjectID.String()),
		slog.Time("start_time", appt.StartTime),
	)
	return c.JSON(http.StatusCreated, appt)
}

func (h *Handler) getAppointment(c echo.Context) error {
	actorID, err := actingUser(c)
	if err != nil {
		return err
	}
	appointmentID, err := pathUUID(c, "appointment_id")
	if err != nil {
		return err
	}
	appt, err := h.bookings.Get(c.Request().Context(), actorID, appointmentID)
	if err != nil {
		return h.mapError(c, "get_appointment", err)
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) cancel(c echo.Context) error {
	actorID, err := actingUser(c)
	if err != nil {
		return err
	}
	appointmentID, err := pathUUID(c, "appointment_id")
	if err != nil {
		return err
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}

	appt, err := h.bookings.Cancel(c.Request().Context(), actorID, appointmentID, req.Reason)
	if err != nil {
		return h.mapError(c, "cancel", err)
	}

	h.log.Info("appointment canceled",
		slog.String("appointment_id", appt.ID.String()),
		slog.String("actor_id", actorID.String()),
	)
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) reschedule(c echo.Context) error {
	actorID, err := actingUser(c)
	if err != nil {
		return err
	}
	appointmentID, err := pathUUID(c, "appointment_id")
	if err != nil {
		return err
	}

	var req struct {
		Date      string           `json:"date"`
		StartTime domain.TimeOfDay `json:"start_time"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	date, err := domain.ParseDate(req.Date)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "date must be YYYY-MM-DD")
	}

	appt, err := h.bookings.Reschedule(c.Request().Context(), booking.RescheduleInput{
		ActorID:       actorID,
		AppointmentID: appointmentID,
		Date:          date,
		StartTime:     req.StartTime,
	})
	if err != nil {
		return h.mapError(c, "reschedule", err)
	}

	h.log.Info("appointment rescheduled",
		slog.String("appointment_id", appt.ID.String()),
		slog.Time("start_time", appt.StartTime),
	)
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) complete(c echo.Context) error {
	actorID, err := actingUser(c)
	if err != nil {
		return err
	}
	appointmentID, err := pathUUID(c, "appointment_id")
	if err != nil {
		return err
	}
	appt, err := h.bookings.Complete(c.Request().Context(), actorID, appointmentID)
	if err != nil {
		return h.mapError(c, "complete", err)
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) updateNotes(c echo.Context) error {
	actorID, err := actingUser(c)
	if err != nil {
		return err
	}
	appointmentID, err := pathUUID(c, "appointment_id")
	if err != nil {
		return err
	}

	var req struct {
		ProviderNotes *string `json:"provider_notes"`
		SubjectNotes  *string `json:"subject_notes"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}

	appt, err := h.bookings.UpdateNotes(c.Request().Context(), booking.NotesInput{
		ActorID:       actorID,
		AppointmentID: appointmentID,
		ProviderNotes: req.ProviderNotes,
		SubjectNotes:  req.SubjectNotes,
	})
	if err != nil {
		return h.mapError(c, "update_notes", err)
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) listForSubject(c echo.Context) error {
	actorID, err := actingUser(c)
	if err != nil {
		return err
	}
	subjectID, err := pathUUID(c, "subject_id")
	if err != nil {
		return err
	}
	appts, err := h.bookings.ListForSubject(c.Request().Context(), actorID, subjectID)
	if err != nil {
		return h.mapError(c, "list_for_subject", err)
	}
	if appts == nil {
		appts = []domain.Appointment{}
	}
	return c.JSON(http.StatusOK, appts)
}

func (h *Handler) listForProvider(c echo.Context) error {
	actorID, err := actingUser(c)
	if err != nil {
		return err
	}
	providerID, err := pathUUID(c, "provider_id")
	if err != nil {
		return err
	}

	var windowStart, windowEnd time.Time
	if raw := c.QueryParam("from"); raw != "" {
		if windowStart, err = domain.ParseDate(raw); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "from must be YYYY-MM-DD")
		}
	}
	if raw := c.QueryParam("to"); raw != "" {
		if windowEnd, err = domain.ParseDate(raw); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "to must be YYYY-MM-DD")
		}
		windowEnd = windowEnd.AddDate(0, 0, 1)
	}

	appts, err := h.bookings.ListForProvider(c.Request().Context(), actorID, providerID, windowStart, windowEnd)
	if err != nil {
		return h.mapError(c, "list_for_provider", err)
	}
	if appts == nil {
		appts = []domain.Appointment{}
	}
	return c.JSON(http.StatusOK, appts)
}

func (h *Handler) listSessionTypes(c echo.Context) error {
	types, err := h.catalog.ListSessionTypes(c.Request().Context())
	if err != nil {
		return h.mapError(c, "list_session_types", err)
	}
	if types == nil {
		types = []domain.SessionType{}
	}
	return c.JSON(http.StatusOK, types)
}
