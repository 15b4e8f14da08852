package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"psychbook/backend/internal/domain"
	"psychbook/backend/internal/service/availability"
	"psychbook/backend/internal/service/booking"
	"psychbook/backend/internal/store"
)

type fakeAvailability struct {
	create func(ctx context.Context, in availability.CreateInput) (domain.AvailabilityRule, error)
	update func(ctx context.Context, in availability.UpdateInput) (domain.AvailabilityRule, error)
	delete func(ctx context.Context, actorID, ruleID uuid.UUID) error
	list   func(ctx context.Context, providerID uuid.UUID) ([]domain.AvailabilityRule, error)
}

func (f *fakeAvailability) Create(ctx context.Context, in availability.CreateInput) (domain.AvailabilityRule, error) {
	if f.create == nil {
		panic("not configured")
	}
	return f.create(ctx, in)
}

func (f *fakeAvailability) Update(ctx context.Context, in availability.UpdateInput) (domain.AvailabilityRule, error) {
	if f.update == nil {
		panic("not configured")
	}
	return f.update(ctx, in)
}

func (f *fakeAvailability) Delete(ctx context.Context, actorID, ruleID uuid.UUID) error {
	if f.delete == nil {
		panic("not configured")
	}
	return f.delete(ctx, actorID, ruleID)
}

func (f *fakeAvailability) List(ctx context.Context, providerID uuid.UUID) ([]domain.AvailabilityRule, error) {
	if f.list == nil {
		panic("not configured")
	}
	return f.list(ctx, providerID)
}

type fakeSlots struct {
	getAvailableSlots     func(ctx context.Context, providerID uuid.UUID, date time.Time, duration time.Duration) ([]domain.Slot, error)
	checkSlotAvailability func(ctx context.Context, providerID uuid.UUID, date time.Time, start, end domain.TimeOfDay) (bool, error)
}

func (f *fakeSlots) GetAvailableSlots(ctx context.Context, providerID uuid.UUID, date time.Time, duration time.Duration) ([]domain.Slot, error) {
	if f.getAvailableSlots == nil {
		panic("not configured")
	}
	return f.getAvailableSlots(ctx, providerID, date, duration)
}

func (f *fakeSlots) CheckSlotAvailability(ctx context.Context, providerID uuid.UUID, date time.Time, start, end domain.TimeOfDay) (bool, error) {
	if f.checkSlotAvailability == nil {
		panic("not configured")
	}
	return f.checkSlotAvailability(ctx, providerID, date, start, end)
}

type fakeBooking struct {
	book            func(ctx context.Context, in booking.BookInput) (domain.Appointment, error)
	cancel          func(ctx context.Context, actorID, appointmentID uuid.UUID, reason string) (domain.Appointment, error)
	reschedule      func(ctx context.Context, in booking.RescheduleInput) (domain.Appointment, error)
	complete        func(ctx context.Context, actorID, appointmentID uuid.UUID) (domain.Appointment, error)
	updateNotes     func(ctx context.Context, in booking.NotesInput) (domain.Appointment, error)
	get             func(ctx context.Context, actorID, appointmentID uuid.UUID) (domain.Appointment, error)
	listForSubject  func(ctx context.Context, actorID, subjectID uuid.UUID) ([]domain.Appointment, error)
	listForProvider func(ctx context.Context, actorID, providerID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Appointment, error)
}

func (f *fakeBooking) Book(ctx context.Context, in booking.BookInput) (domain.Appointment, error) {
	if f.book == nil {
		panic("not configured")
	}
	return f.book(ctx, in)
}

func (f *fakeBooking) Cancel(ctx context.Context, actorID, appointmentID uuid.UUID, reason string) (domain.Appointment, error) {
	if f.cancel == nil {
		panic("not configured")
	}
	return f.cancel(ctx, actorID, appointmentID, reason)
}

func (f *fakeBooking) Reschedule(ctx context.Context, in booking.RescheduleInput) (domain.Appointment, error) {
	if f.reschedule == nil {
		panic("not configured")
	}
	return f.reschedule(ctx, in)
}

func (f *fakeBooking) Complete(ctx context.Context, actorID, appointmentID uuid.UUID) (domain.Appointment, error) {
	if f.complete == nil {
		panic("not configured")
	}
	return f.complete(ctx, actorID, appointmentID)
}

func (f *fakeBooking) UpdateNotes(ctx context.Context, in booking.NotesInput) (domain.Appointment, error) {
	if f.updateNotes == nil {
		panic("not configured")
	}
	return f.updateNotes(ctx, in)
}

func (f *fakeBooking) Get(ctx context.Context, actorID, appointmentID uuid.UUID) (domain.Appointment, error) {
	if f.get == nil {
		panic("not configured")
	}
	return f.get(ctx, actorID, appointmentID)
}

func (f *fakeBooking) ListForSubject(ctx context.Context, actorID, subjectID uuid.UUID) ([]domain.Appointment, error) {
	if f.listForSubject == nil {
		panic("not configured")
	}
	return f.listForSubject(ctx, actorID, subjectID)
}

func (f *fakeBooking) ListForProvider(ctx context.Context, actorID, providerID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	if f.listForProvider == nil {
		panic("not configured")
	}
	return f.listForProvider(ctx, actorID, providerID, windowStart, windowEnd)
}

type fakeCatalog struct {
	list func(ctx context.Context) ([]domain.SessionType, error)
}

func (f *fakeCatalog) ListSessionTypes(ctx context.Context) ([]domain.SessionType, error) {
	if f.list == nil {
		return nil, nil
	}
	return f.list(ctx)
}

func newEcho(h *Handler) *echo.Echo {
	e := echo.New()
	h.RegisterRoutes(e)
	return e
}

func doJSON(e *echo.Echo, method, path, actor, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if actor != "" {
		req.Header.Set(ActingUserHeader, actor)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestListSlots(t *testing.T) {
	providerID := uuid.New()
	slots := &fakeSlots{
		getAvailableSlots: func(_ context.Context, pid uuid.UUID, date time.Time, duration time.Duration) ([]domain.Slot, error) {
			if pid != providerID {
				t.Errorf("provider = %v, want %v", pid, providerID)
			}
			if duration != time.Hour {
				t.Errorf("duration = %v, want 1h", duration)
			}
			return []domain.Slot{{Start: 9 * 60, End: 10 * 60, Available: true}}, nil
		},
	}
	h := NewHandler(&fakeAvailability{}, slots, &fakeBooking{}, &fakeCatalog{}, time.Hour, nil)
	e := newEcho(h)

	rec := doJSON(e, http.MethodGet, "/providers/"+providerID.String()+"/slots?date=2026-03-02&duration_minutes=60", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}

	var got []domain.Slot
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].Start != 9*60 {
		t.Errorf("slots = %+v", got)
	}

	t.Run("bad date", func(t *testing.T) {
		rec := doJSON(e, http.MethodGet, "/providers/"+providerID.String()+"/slots?date=tomorrow", "", "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestCheckSlot(t *testing.T) {
	providerID := uuid.New()
	slots := &fakeSlots{
		checkSlotAvailability: func(_ context.Context, _ uuid.UUID, _ time.Time, start, end domain.TimeOfDay) (bool, error) {
			return start == 10*60 && end == 11*60, nil
		},
	}
	h := NewHandler(&fakeAvailability{}, slots, &fakeBooking{}, &fakeCatalog{}, time.Hour, nil)
	e := newEcho(h)

	rec := doJSON(e, http.MethodGet, "/providers/"+providerID.String()+"/slots/check?date=2026-03-02&start=10:00&end=11:00", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var got map[string]bool
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got["available"] {
		t.Error("available = false, want true")
	}

	t.Run("missing end", func(t *testing.T) {
		rec := doJSON(e, http.MethodGet, "/providers/"+providerID.String()+"/slots/check?date=2026-03-02&start=10:00", "", "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestBookEndpoint(t *testing.T) {
	actorID := uuid.New()
	providerID := uuid.New()

	t.Run("created", func(t *testing.T) {
		bookings := &fakeBooking{
			book: func(_ context.Context, in booking.BookInput) (domain.Appointment, error) {
				if in.ActorID != actorID {
					t.Errorf("actor = %v, want %v", in.ActorID, actorID)
				}
				if in.StartTime != 10*60 {
					t.Errorf("start = %s, want 10:00", in.StartTime)
				}
				return domain.Appointment{ID: uuid.New(), ProviderID: in.ProviderID, SubjectID: in.ActorID, Status: domain.AppointmentStatusScheduled}, nil
			},
		}
		h := NewHandler(&fakeAvailability{}, &fakeSlots{}, bookings, &fakeCatalog{}, time.Hour, nil)
		e := newEcho(h)

		body := `{"provider_id":"` + providerID.String() + `","date":"2026-03-02","start_time":"10:00"}`
		rec := doJSON(e, http.MethodPost, "/appointments", actorID.String(), body)
		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("missing acting user", func(t *testing.T) {
		h := NewHandler(&fakeAvailability{}, &fakeSlots{}, &fakeBooking{}, &fakeCatalog{}, time.Hour, nil)
		e := newEcho(h)
		rec := doJSON(e, http.MethodPost, "/appointments", "", `{}`)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("slot unavailable maps to conflict", func(t *testing.T) {
		bookings := &fakeBooking{
			book: func(context.Context, booking.BookInput) (domain.Appointment, error) {
				return domain.Appointment{}, booking.ErrSlotUnavailable
			},
		}
		h := NewHandler(&fakeAvailability{}, &fakeSlots{}, bookings, &fakeCatalog{}, time.Hour, nil)
		e := newEcho(h)

		body := `{"provider_id":"` + providerID.String() + `","date":"2026-03-02","start_time":"10:00"}`
		rec := doJSON(e, http.MethodPost, "/appointments", actorID.String(), body)
		if rec.Code != http.StatusConflict {
			t.Errorf("status = %d, want 409", rec.Code)
		}
	})
}

func TestErrorMapping(t *testing.T) {
	actorID := uuid.New()
	apptID := uuid.New()

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", store.ErrNotFound, http.StatusNotFound},
		{"forbidden", booking.ErrForbidden, http.StatusForbidden},
		{"slot unavailable", booking.ErrSlotUnavailable, http.StatusConflict},
		{"notice too short", booking.ErrNoticeTooShort, http.StatusUnprocessableEntity},
		{"invalid interval", domain.ErrInvalidInterval, http.StatusBadRequest},
		{"case creation failed", booking.ErrCaseCreationFailed, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			bookings := &fakeBooking{
				cancel: func(context.Context, uuid.UUID, uuid.UUID, string) (domain.Appointment, error) {
					return domain.Appointment{}, tc.err
				},
			}
			h := NewHandler(&fakeAvailability{}, &fakeSlots{}, bookings, &fakeCatalog{}, time.Hour, nil)
			e := newEcho(h)

			rec := doJSON(e, http.MethodPost, "/appointments/"+apptID.String()+"/cancel", actorID.String(), `{"reason":"x"}`)
			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestAvailabilityEndpoints(t *testing.T) {
	actorID := uuid.New()
	providerID := uuid.New()
	ruleID := uuid.New()

	t.Run("create", func(t *testing.T) {
		rules := &fakeAvailability{
			create: func(_ context.Context, in availability.CreateInput) (domain.AvailabilityRule, error) {
				if in.DayOfWeek != domain.Monday {
					t.Errorf("day = %v, want monday", in.DayOfWeek)
				}
				if len(in.BreakPeriods) != 1 {
					t.Errorf("breaks = %+v", in.BreakPeriods)
				}
				return domain.AvailabilityRule{ID: ruleID, ProviderID: in.ProviderID, DayOfWeek: in.DayOfWeek}, nil
			},
		}
		h := NewHandler(rules, &fakeSlots{}, &fakeBooking{}, &fakeCatalog{}, time.Hour, nil)
		e := newEcho(h)

		body := `{"day_of_week":"monday","start_time":"09:00","end_time":"17:00","break_periods":[{"start":"12:00","end":"13:00"}]}`
		rec := doJSON(e, http.MethodPost, "/providers/"+providerID.String()+"/availability", actorID.String(), body)
		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("list without auth", func(t *testing.T) {
		rules := &fakeAvailability{
			list: func(context.Context, uuid.UUID) ([]domain.AvailabilityRule, error) {
				return nil, nil
			},
		}
		h := NewHandler(rules, &fakeSlots{}, &fakeBooking{}, &fakeCatalog{}, time.Hour, nil)
		e := newEcho(h)

		rec := doJSON(e, http.MethodGet, "/providers/"+providerID.String()+"/availability", "", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
			t.Errorf("body = %q, want empty array", body)
		}
	})

	t.Run("delete", func(t *testing.T) {
		rules := &fakeAvailability{
			delete: func(_ context.Context, aid, rid uuid.UUID) error {
				if aid != actorID || rid != ruleID {
					t.Errorf("delete(%v, %v)", aid, rid)
				}
				return nil
			},
		}
		h := NewHandler(rules, &fakeSlots{}, &fakeBooking{}, &fakeCatalog{}, time.Hour, nil)
		e := newEcho(h)

		rec := doJSON(e, http.MethodDelete, "/availability/"+ruleID.String(), actorID.String(), "")
		if rec.Code != http.StatusNoContent {
			t.Errorf("status = %d, want 204", rec.Code)
		}
	})

	t.Run("invalid rule id", func(t *testing.T) {
		h := NewHandler(&fakeAvailability{}, &fakeSlots{}, &fakeBooking{}, &fakeCatalog{}, time.Hour, nil)
		e := newEcho(h)

		rec := doJSON(e, http.MethodDelete, "/availability/not-a-uuid", actorID.String(), "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestListSessionTypes(t *testing.T) {
	catalog := &fakeCatalog{
		list: func(context.Context) ([]domain.SessionType, error) {
			return []domain.SessionType{{ID: uuid.New(), Name: "intake", DurationMinutes: 90}}, nil
		},
	}
	h := NewHandler(&fakeAvailability{}, &fakeSlots{}, &fakeBooking{}, catalog, time.Hour, nil)
	e := newEcho(h)

	rec := doJSON(e, http.MethodGet, "/session-types", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got []domain.SessionType
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].Name != "intake" {
		t.Errorf("types = %+v", got)
	}
}
