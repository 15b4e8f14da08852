package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"psychbook/backend/internal/domain"
	"psychbook/backend/internal/store"
)

type AppointmentRepo struct {
	db *bun.DB
}

func NewAppointmentRepo(db *bun.DB) *AppointmentRepo {
	return &AppointmentRepo{db: db}
}

type providerTx struct {
	tx bun.Tx
}

func (r *AppointmentRepo) Get(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error) {
	return getAppointment(ctx, r.db, appointmentID)
}

func (r *AppointmentRepo) Update(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	return updateAppointment(ctx, r.db, appt)
}

func (r *AppointmentRepo) ListOccupyingOnDate(ctx context.Context, providerID uuid.UUID, date time.Time) ([]domain.Appointment, error) {
	return listOccupyingOnDate(ctx, r.db, providerID, date)
}

func (r *AppointmentRepo) ListBySubject(ctx context.Context, subjectID uuid.UUID) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	err := r.db.NewSelect().
		Model(&rows).
		Where("subject_id = ?", subjectID).
		OrderExpr("start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *AppointmentRepo) ListByProvider(ctx context.Context, providerID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	q := r.db.NewSelect().
		Model(&rows).
		Where("provider_id = ?", providerID)
	if !windowStart.IsZero() {
		q = q.Where("end_time > ?", windowStart)
	}
	if !windowEnd.IsZero() {
		q = q.Where("start_time < ?", windowEnd)
	}
	if err := q.OrderExpr("start_time ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return rows, nil
}

// InProviderTransaction serializes booking work per provider with a
// transaction-scoped advisory lock keyed on the provider id. Held locks
// release with the transaction, commit or rollback alike.
func (r *AppointmentRepo) InProviderTransaction(ctx context.Context, providerID uuid.UUID, fn func(ctx context.Context, tx store.ProviderTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockProviderCalendar(ctx, tx, providerID); err != nil {
			return err
		}
		return fn(ctx, providerTx{tx: tx})
	})
}

func lockProviderCalendar(ctx context.Context, tx bun.Tx, providerID uuid.UUID) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", providerID.String()).Exec(ctx)
	return err
}

func (r providerTx) GetAppointment(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error) {
	return getAppointment(ctx, r.tx, appointmentID)
}

func (r providerTx) CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	_, err := r.tx.NewInsert().Model(&appt).Exec(ctx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23P01" && pgErr.ConstraintName == "appointments_no_double_book" {
			return domain.Appointment{}, store.ErrConflict
		}
		return domain.Appointment{}, err
	}
	return appt, nil
}

func (r providerTx) UpdateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	out, err := updateAppointment(ctx, r.tx, appt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23P01" && pgErr.ConstraintName == "appointments_no_double_book" {
			return domain.Appointment{}, store.ErrConflict
		}
		return domain.Appointment{}, err
	}
	return out, nil
}

func (r providerTx) ListOccupyingOnDate(ctx context.Context, providerID uuid.UUID, date time.Time) ([]domain.Appointment, error) {
	return listOccupyingOnDate(ctx, r.tx, providerID, date)
}

func (r providerTx) CreatePlaceholderCase(ctx context.Context, subjectID uuid.UUID) (uuid.UUID, error) {
	c := domain.Case{
		SubjectID: subjectID,
		Status:    domain.CaseStatusOpen,
		Summary:   "created automatically for appointment booking",
	}
	if _, err := r.tx.NewInsert().Model(&c).Exec(ctx); err != nil {
		return uuid.Nil, err
	}
	return c.ID, nil
}

func getAppointment(ctx context.Context, db bun.IDB, appointmentID uuid.UUID) (domain.Appointment, error) {
	var appt domain.Appointment
	err := db.NewSelect().
		Model(&appt).
		Where("id = ?", appointmentID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Appointment{}, store.ErrNotFound
		}
		return domain.Appointment{}, err
	}
	return appt, nil
}

func updateAppointment(ctx context.Context, db bun.IDB, appt domain.Appointment) (domain.Appointment, error) {
	res, err := db.NewUpdate().
		Model(&appt).
		WherePK().
		Exec(ctx)
	if err != nil {
		return domain.Appointment{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Appointment{}, err
	}
	if affected == 0 {
		return domain.Appointment{}, store.ErrNotFound
	}
	return appt, nil
}

func listOccupyingOnDate(ctx context.Context, db bun.IDB, providerID uuid.UUID, date time.Time) ([]domain.Appointment, error) {
	dayStart := domain.MidnightUTC(date)
	dayEnd := dayStart.Add(24 * time.Hour)

	var rows []domain.Appointment
	err := db.NewSelect().
		Model(&rows).
		Where("provider_id = ?", providerID).
		Where("status IN (?)", bun.In([]domain.AppointmentStatus{
			domain.AppointmentStatusScheduled,
			domain.AppointmentStatusCompleted,
		})).
		Where("start_time < ?", dayEnd).
		Where("end_time > ?", dayStart).
		OrderExpr("start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
