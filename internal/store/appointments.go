package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"psychbook/backend/internal/domain"
)

// ProviderTx is the view of the appointment store inside a per-provider
// serialized transaction. Everything observed through it is stable for the
// duration of the transaction with respect to other bookings for the same
// provider.
type ProviderTx interface {
	GetAppointment(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error)
	CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	UpdateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)

	// ListOccupyingOnDate returns the scheduled and completed appointments
	// intersecting the provider's calendar day starting at date (UTC midnight).
	ListOccupyingOnDate(ctx context.Context, providerID uuid.UUID, date time.Time) ([]domain.Appointment, error)

	// CreatePlaceholderCase inserts a minimal open case for the subject. It
	// rides the booking transaction, so a failed booking leaves no case row.
	CreatePlaceholderCase(ctx context.Context, subjectID uuid.UUID) (uuid.UUID, error)
}

type AppointmentRepository interface {
	Get(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error)
	Update(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)

	ListOccupyingOnDate(ctx context.Context, providerID uuid.UUID, date time.Time) ([]domain.Appointment, error)
	ListBySubject(ctx context.Context, subjectID uuid.UUID) ([]domain.Appointment, error)
	ListByProvider(ctx context.Context, providerID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Appointment, error)

	// InProviderTransaction runs fn while holding the provider's booking
	// serialization lock; concurrent calls for the same provider execute one
	// at a time, different providers proceed in parallel.
	InProviderTransaction(ctx context.Context, providerID uuid.UUID, fn func(ctx context.Context, tx ProviderTx) error) error
}
