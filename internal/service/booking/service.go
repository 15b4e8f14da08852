package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"psychbook/backend/internal/domain"
	"psychbook/backend/internal/service/slots"
	"psychbook/backend/internal/store"
)

var (
	ErrSlotUnavailable    = errors.New("slot unavailable")
	ErrNoticeTooShort     = errors.New("cancellation notice too short")
	ErrForbidden          = errors.New("forbidden")
	ErrCaseCreationFailed = errors.New("case creation failed")
)

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

// Clock supplies the current time so notice checks are testable.
type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

func SystemClock() Clock {
	return ClockFunc(time.Now)
}

type Policy struct {
	CancelNotice         time.Duration
	DefaultSessionLength time.Duration
	MeetingLinkBase      string
}

// Service orchestrates the appointment lifecycle. All writes that could race
// with another booking run inside the provider's serialized transaction; the
// availability check, the occupancy check and the insert therefore see one
// consistent calendar.
type Service struct {
	appts     store.AppointmentRepository
	rules     store.AvailabilityRepository
	sessions  store.SessionTypeCatalog
	directory store.ProviderDirectory
	clock     Clock
	policy    Policy
}

func NewService(
	appts store.AppointmentRepository,
	rules store.AvailabilityRepository,
	sessions store.SessionTypeCatalog,
	directory store.ProviderDirectory,
	clock Clock,
	policy Policy,
) *Service {
	if clock == nil {
		clock = SystemClock()
	}
	if policy.CancelNotice <= 0 {
		policy.CancelNotice = 24 * time.Hour
	}
	if policy.DefaultSessionLength <= 0 {
		policy.DefaultSessionLength = time.Hour
	}
	return &Service{
		appts:     appts,
		rules:     rules,
		sessions:  sessions,
		directory: directory,
		clock:     clock,
		policy:    policy,
	}
}

// Actor is the caller's capability set, resolved once per operation.
type Actor struct {
	ID         uuid.UUID
	IsProvider bool
	IsAdmin    bool
}

func (s *Service) resolveActor(ctx context.Context, actorID uuid.UUID) (Actor, error) {
	if actorID == uuid.Nil {
		return Actor{}, validationError("actor_id is required")
	}
	provider, err := s.directory.IsProvider(ctx, actorID)
	if err != nil {
		return Actor{}, err
	}
	admin, err := s.directory.IsAdministrator(ctx, actorID)
	if err != nil {
		return Actor{}, err
	}
	return Actor{ID: actorID, IsProvider: provider, IsAdmin: admin}, nil
}

type BookInput struct {
	ActorID         uuid.UUID
	ProviderID      uuid.UUID
	SubjectID       uuid.UUID
	SessionTypeID   *uuid.UUID
	CaseID          *uuid.UUID
	Date            time.Time
	StartTime       domain.TimeOfDay
	DurationMinutes int
	SubjectNotes    string
}

// Book schedules a new appointment. The subject defaults to the actor; only
// the subject themselves, the provider or an administrator may book for a
// subject. Without a case reference a placeholder case is created inside the
// same transaction as the appointment.
func (s *Service) Book(ctx context.Context, in BookInput) (domain.Appointment, error) {
	actor, err := s.resolveActor(ctx, in.ActorID)
	if err != nil {
		return domain.Appointment{}, err
	}
	if in.ProviderID == uuid.Nil {
		return domain.Appointment{}, validationError("provider_id is required")
	}

	subjectID := in.SubjectID
	if subjectID == uuid.Nil {
		subjectID = actor.ID
	}
	if subjectID != actor.ID && !actor.IsAdmin && actor.ID != in.ProviderID {
		return domain.Appointment{}, ErrForbidden
	}

	isProvider, err := s.directory.IsProvider(ctx, in.ProviderID)
	if err != nil {
		return domain.Appointment{}, err
	}
	if !isProvider {
		return domain.Appointment{}, fmt.Errorf("provider %s: %w", in.ProviderID, store.ErrNotFound)
	}

	duration := time.Duration(in.DurationMinutes) * time.Minute
	var priceCents int64
	if in.SessionTypeID != nil {
		st, err := s.sessions.GetSessionType(ctx, *in.SessionTypeID)
		if err != nil {
			return domain.Appointment{}, fmt.Errorf("session type: %w", err)
		}
		duration = time.Duration(st.DurationMinutes) * time.Minute
		priceCents = st.PriceCents
	}
	if duration <= 0 {
		duration = s.policy.DefaultSessionLength
	}

	day := domain.MidnightUTC(in.Date)
	start := in.StartTime.At(day)
	end := start.Add(duration)
	if !start.After(s.clock.Now()) {
		return domain.Appointment{}, validationError("start_time must be in the future")
	}

	id, err := uuid.NewV7()
	if err != nil {
		return domain.Appointment{}, err
	}

	appt := domain.Appointment{
		ID:            id,
		ProviderID:    in.ProviderID,
		SubjectID:     subjectID,
		SessionTypeID: in.SessionTypeID,
		CaseID:        in.CaseID,
		StartTime:     start,
		EndTime:       end,
		Status:        domain.AppointmentStatusScheduled,
		PriceCents:    priceCents,
		SubjectNotes:  strings.TrimSpace(in.SubjectNotes),
		MeetingLink:   s.meetingLink(id),
	}
	appt.AuditLog = auditLine(s.clock.Now(), fmt.Sprintf("booked by %s", actor.ID))

	var out domain.Appointment
	err = s.appts.InProviderTransaction(ctx, in.ProviderID, func(ctx context.Context, tx store.ProviderTx) error {
		bookable, err := s.windowBookable(ctx, tx, in.ProviderID, day, in.StartTime, duration, uuid.Nil)
		if err != nil {
			return err
		}
		if !bookable {
			return ErrSlotUnavailable
		}

		if appt.CaseID == nil {
			caseID, err := tx.CreatePlaceholderCase(ctx, subjectID)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrCaseCreationFailed, err)
			}
			appt.CaseID = &caseID
		}

		created, err := tx.CreateAppointment(ctx, appt)
		if err != nil {
			return err
		}
		out = created
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.Appointment{}, ErrSlotUnavailable
		}
		return domain.Appointment{}, err
	}
	return out, nil
}

// Cancel moves a scheduled appointment to canceled, freeing the slot. The
// notice policy binds subjects; the appointment's provider and administrators
// may cancel at any time.
func (s *Service) Cancel(ctx context.Context, actorID, appointmentID uuid.UUID, reason string) (domain.Appointment, error) {
	actor, err := s.resolveActor(ctx, actorID)
	if err != nil {
		return domain.Appointment{}, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.Appointment{}, validationError("cancellation reason is required")
	}

	appt, err := s.appts.Get(ctx, appointmentID)
	if err != nil {
		return domain.Appointment{}, err
	}
	if err := relationship(actor, appt); err != nil {
		return domain.Appointment{}, err
	}
	if appt.Status != domain.AppointmentStatusScheduled {
		return domain.Appointment{}, validationError(fmt.Sprintf("cannot cancel a %s appointment", appt.Status))
	}

	now := s.clock.Now()
	if !privileged(actor, appt) && appt.StartTime.Sub(now) < s.policy.CancelNotice {
		return domain.Appointment{}, ErrNoticeTooShort
	}

	canceledAt := now
	appt.Status = domain.AppointmentStatusCanceled
	appt.CanceledAt = &canceledAt
	appt.CancellationReason = &reason
	appt.AuditLog = appendAudit(appt.AuditLog, now, fmt.Sprintf("canceled by %s: %s", actor.ID, reason))

	return s.appts.Update(ctx, appt)
}

type RescheduleInput struct {
	ActorID       uuid.UUID
	AppointmentID uuid.UUID
	Date          time.Time
	StartTime     domain.TimeOfDay
}

// Reschedule moves a scheduled appointment to a new slot of the same
// duration. The notice policy is checked against the current start time, so a
// subject cannot sidestep it by rescheduling instead of canceling.
func (s *Service) Reschedule(ctx context.Context, in RescheduleInput) (domain.Appointment, error) {
	actor, err := s.resolveActor(ctx, in.ActorID)
	if err != nil {
		return domain.Appointment{}, err
	}

	appt, err := s.appts.Get(ctx, in.AppointmentID)
	if err != nil {
		return domain.Appointment{}, err
	}
	if err := relationship(actor, appt); err != nil {
		return domain.Appointment{}, err
	}
	if appt.Status != domain.AppointmentStatusScheduled {
		return domain.Appointment{}, validationError(fmt.Sprintf("cannot reschedule a %s appointment", appt.Status))
	}

	now := s.clock.Now()
	if !privileged(actor, appt) && appt.StartTime.Sub(now) < s.policy.CancelNotice {
		return domain.Appointment{}, ErrNoticeTooShort
	}

	duration := appt.EndTime.Sub(appt.StartTime)
	day := domain.MidnightUTC(in.Date)
	newStart := in.StartTime.At(day)
	if !newStart.After(now) {
		return domain.Appointment{}, validationError("start_time must be in the future")
	}

	var out domain.Appointment
	err = s.appts.InProviderTransaction(ctx, appt.ProviderID, func(ctx context.Context, tx store.ProviderTx) error {
		current, err := tx.GetAppointment(ctx, appt.ID)
		if err != nil {
			return err
		}
		if current.Status != domain.AppointmentStatusScheduled {
			return validationError(fmt.Sprintf("cannot reschedule a %s appointment", current.Status))
		}

		bookable, err := s.windowBookable(ctx, tx, current.ProviderID, day, in.StartTime, duration, current.ID)
		if err != nil {
			return err
		}
		if !bookable {
			return ErrSlotUnavailable
		}

		current.StartTime = newStart
		current.EndTime = newStart.Add(duration)
		current.MeetingLink = s.meetingLink(current.ID)
		current.AuditLog = appendAudit(current.AuditLog, now,
			fmt.Sprintf("rescheduled by %s to %s", actor.ID, newStart.Format(time.RFC3339)))

		updated, err := tx.UpdateAppointment(ctx, current)
		if err != nil {
			return err
		}
		out = updated
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.Appointment{}, ErrSlotUnavailable
		}
		return domain.Appointment{}, err
	}
	return out, nil
}

// Complete marks a scheduled appointment as held. Subjects cannot complete
// their own appointments.
func (s *Service) Complete(ctx context.Context, actorID, appointmentID uuid.UUID) (domain.Appointment, error) {
	actor, err := s.resolveActor(ctx, actorID)
	if err != nil {
		return domain.Appointment{}, err
	}

	appt, err := s.appts.Get(ctx, appointmentID)
	if err != nil {
		return domain.Appointment{}, err
	}
	if !privileged(actor, appt) {
		return domain.Appointment{}, ErrForbidden
	}
	if appt.Status != domain.AppointmentStatusScheduled {
		return domain.Appointment{}, validationError(fmt.Sprintf("cannot complete a %s appointment", appt.Status))
	}

	appt.Status = domain.AppointmentStatusCompleted
	appt.AuditLog = appendAudit(appt.AuditLog, s.clock.Now(), fmt.Sprintf("completed by %s", actor.ID))
	return s.appts.Update(ctx, appt)
}

type NotesInput struct {
	ActorID       uuid.UUID
	AppointmentID uuid.UUID
	ProviderNotes *string
	SubjectNotes  *string
}

// UpdateNotes edits the two note fields independently. Provider notes belong
// to the provider, subject notes to the subject; administrators may edit
// either. Notes stay editable after completion.
func (s *Service) UpdateNotes(ctx context.Context, in NotesInput) (domain.Appointment, error) {
	actor, err := s.resolveActor(ctx, in.ActorID)
	if err != nil {
		return domain.Appointment{}, err
	}
	if in.ProviderNotes == nil && in.SubjectNotes == nil {
		return domain.Appointment{}, validationError("no note fields to update")
	}

	appt, err := s.appts.Get(ctx, in.AppointmentID)
	if err != nil {
		return domain.Appointment{}, err
	}
	if err := relationship(actor, appt); err != nil {
		return domain.Appointment{}, err
	}

	if in.ProviderNotes != nil {
		if !privileged(actor, appt) {
			return domain.Appointment{}, ErrForbidden
		}
		appt.ProviderNotes = strings.TrimSpace(*in.ProviderNotes)
	}
	if in.SubjectNotes != nil {
		if actor.ID != appt.SubjectID && !actor.IsAdmin {
			return domain.Appointment{}, ErrForbidden
		}
		appt.SubjectNotes = strings.TrimSpace(*in.SubjectNotes)
	}

	return s.appts.Update(ctx, appt)
}

func (s *Service) Get(ctx context.Context, actorID, appointmentID uuid.UUID) (domain.Appointment, error) {
	actor, err := s.resolveActor(ctx, actorID)
	if err != nil {
		return domain.Appointment{}, err
	}
	appt, err := s.appts.Get(ctx, appointmentID)
	if err != nil {
		return domain.Appointment{}, err
	}
	if err := relationship(actor, appt); err != nil {
		return domain.Appointment{}, err
	}
	return appt, nil
}

func (s *Service) ListForSubject(ctx context.Context, actorID, subjectID uuid.UUID) ([]domain.Appointment, error) {
	actor, err := s.resolveActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor.ID != subjectID && !actor.IsAdmin {
		return nil, ErrForbidden
	}
	return s.appts.ListBySubject(ctx, subjectID)
}

func (s *Service) ListForProvider(ctx context.Context, actorID, providerID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	actor, err := s.resolveActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor.ID != providerID && !actor.IsAdmin {
		return nil, ErrForbidden
	}
	return s.appts.ListByProvider(ctx, providerID, windowStart, windowEnd)
}

// windowBookable checks the requested window against active rules and
// current occupancy as seen inside the transaction. exclude drops one
// appointment from occupancy so a reschedule does not collide with itself.
func (s *Service) windowBookable(ctx context.Context, tx store.ProviderTx, providerID uuid.UUID, day time.Time, start domain.TimeOfDay, duration time.Duration, exclude uuid.UUID) (bool, error) {
	rules, err := s.rules.ListActiveForDate(ctx, providerID, domain.WeekdayOf(day), day)
	if err != nil {
		return false, err
	}
	occupying, err := tx.ListOccupyingOnDate(ctx, providerID, day)
	if err != nil {
		return false, err
	}
	if exclude != uuid.Nil {
		kept := occupying[:0]
		for _, a := range occupying {
			if a.ID != exclude {
				kept = append(kept, a)
			}
		}
		occupying = kept
	}
	end := start + domain.TimeOfDay(duration/time.Minute)
	return slots.WindowBookable(rules, occupying, day, start, end), nil
}

func (s *Service) meetingLink(id uuid.UUID) string {
	base := strings.TrimRight(s.policy.MeetingLinkBase, "/")
	if base == "" {
		return ""
	}
	return base + "/" + id.String()
}

// relationship gates read and lifecycle access to an appointment.
func relationship(actor Actor, appt domain.Appointment) error {
	if actor.ID == appt.SubjectID || actor.ID == appt.ProviderID || actor.IsAdmin {
		return nil
	}
	return ErrForbidden
}

// privileged reports whether the actor is exempt from the notice policy for
// this appointment.
func privileged(actor Actor, appt domain.Appointment) bool {
	return actor.IsAdmin || actor.ID == appt.ProviderID
}

func auditLine(at time.Time, event string) string {
	return at.UTC().Format(time.RFC3339) + " " + event
}

func appendAudit(log string, at time.Time, event string) string {
	line := auditLine(at, event)
	if log == "" {
		return line
	}
	return log + "\n" + line
}
