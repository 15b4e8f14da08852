package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCanceled  AppointmentStatus = "canceled"
)

// Occupies reports whether an appointment in this status blocks its time
// range. Cancellation frees the slot; nothing else does.
func (s AppointmentStatus) Occupies() bool {
	return s == AppointmentStatusScheduled || s == AppointmentStatusCompleted
}

// Terminal reports whether no further transitions exist from this status.
func (s AppointmentStatus) Terminal() bool {
	return s == AppointmentStatusCompleted || s == AppointmentStatusCanceled
}

type Appointment struct {
	bun.BaseModel `bun:"table:appointments"`

	ID                 uuid.UUID         `bun:"id,pk,type:uuid" json:"id"`
	ProviderID         uuid.UUID         `bun:"provider_id,notnull,type:uuid" json:"provider_id"`
	SubjectID          uuid.UUID         `bun:"subject_id,notnull,type:uuid" json:"subject_id"`
	SessionTypeID      *uuid.UUID        `bun:"session_type_id,type:uuid" json:"session_type_id,omitempty"`
	CaseID             *uuid.UUID        `bun:"case_id,type:uuid" json:"case_id,omitempty"`
	StartTime          time.Time         `bun:"start_time,notnull" json:"start_time"`
	EndTime            time.Time         `bun:"end_time,notnull" json:"end_time"`
	Status             AppointmentStatus `bun:"status,notnull" json:"status"`
	PriceCents         int64             `bun:"price_cents,notnull" json:"price_cents"`
	ProviderNotes      string            `bun:"provider_notes" json:"provider_notes,omitempty"`
	SubjectNotes       string            `bun:"subject_notes" json:"subject_notes,omitempty"`
	CancellationReason *string           `bun:"cancellation_reason" json:"cancellation_reason,omitempty"`
	MeetingLink        string            `bun:"meeting_link" json:"meeting_link,omitempty"`
	AuditLog           string            `bun:"audit_log" json:"audit_log,omitempty"`
	CanceledAt         *time.Time        `bun:"canceled_at" json:"canceled_at,omitempty"`
	ReminderSentAt     *time.Time        `bun:"reminder_sent_at" json:"reminder_sent_at,omitempty"`
	CreatedAt          time.Time         `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt          time.Time         `bun:"updated_at,notnull" json:"updated_at"`
}

func (a *Appointment) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if a.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			a.ID = id
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		a.UpdatedAt = now
	}
	return nil
}

// SessionType is a duration and price template for an appointment.
type SessionType struct {
	bun.BaseModel `bun:"table:session_types"`

	ID              uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	Name            string    `bun:"name,notnull" json:"name"`
	DurationMinutes int       `bun:"duration_minutes,notnull" json:"duration_minutes"`
	PriceCents      int64     `bun:"price_cents,notnull" json:"price_cents"`
	CreatedAt       time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt       time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

func (t *SessionType) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if t.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			t.ID = id
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		if t.UpdatedAt.IsZero() {
			t.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		t.UpdatedAt = now
	}
	return nil
}

const CaseStatusOpen = "open"

// Case is the minimal complaint/case record a booking attaches to. The
// engine only ever creates placeholder rows; the rest of the case lifecycle
// belongs to the host application.
type Case struct {
	bun.BaseModel `bun:"table:cases"`

	ID        uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	SubjectID uuid.UUID `bun:"subject_id,notnull,type:uuid" json:"subject_id"`
	Status    string    `bun:"status,notnull" json:"status"`
	Summary   string    `bun:"summary" json:"summary,omitempty"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

func (c *Case) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if c.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			c.ID = id
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		if c.UpdatedAt.IsZero() {
			c.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		c.UpdatedAt = now
	}
	return nil
}

const (
	RolePsychologist = "psychologist"
	RoleAdmin        = "admin"
	RoleClient       = "client"
)

// User is the slice of the host's user record the engine needs for role
// resolution.
type User struct {
	bun.BaseModel `bun:"table:users"`

	ID   uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	Role string    `bun:"role,notnull" json:"role"`
}
