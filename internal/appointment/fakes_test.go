package appointment

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/hackgods/doctor-appointment-booking/internal/availability"
	"github.com/hackgods/doctor-appointment-booking/internal/doctor"
	redisclient "github.com/hackgods/doctor-appointment-booking/internal/redis"
)

// memRepo behaves like the Postgres schema: one active appointment per slot
// and compare-and-set status writes.
type memRepo struct {
	mu     sync.Mutex
	appts  map[uuid.UUID]*Appointment
	events []EventLog

	// beforeUpdate runs outside the lock ahead of each status write.
	beforeUpdate func()
}

func newMemRepo() *memRepo {
	return &memRepo{appts: make(map[uuid.UUID]*Appointment)}
}

func (r *memRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *memRepo) GetActiveAppointmentForSlot(_ context.Context, doctorID uuid.UUID, date time.Time, at availability.Clock) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a := r.activeLocked(doctorID, CalendarDate(date), at, uuid.Nil); a != nil {
		cp := *a
		return &cp, nil
	}
	return nil, ErrAppointmentNotFound
}

func (r *memRepo) ListActiveTimes(_ context.Context, doctorID uuid.UUID, date time.Time) ([]availability.Clock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []availability.Clock
	for _, a := range r.appts {
		if a.DoctorID == doctorID && a.Date.Equal(CalendarDate(date)) && a.IsActive() {
			out = append(out, a.Time)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (r *memRepo) ListAppointments(_ context.Context, f ListFilter) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Appointment
	for _, a := range r.appts {
		if f.PatientID != nil && a.PatientID != *f.PatientID {
			continue
		}
		if f.DoctorID != nil && a.DoctorID != *f.DoctorID {
			continue
		}
		if f.Status != nil && a.Status != *f.Status {
			continue
		}
		if f.Date != nil && !a.Date.Equal(*f.Date) {
			continue
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Time < out[j].Time
	})
	if f.Offset >= len(out) {
		return []Appointment{}, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *memRepo) CreatePendingAppointment(_ context.Context, in NewAppointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	date := CalendarDate(in.Date)
	if r.activeLocked(in.DoctorID, date, in.Time, uuid.Nil) != nil {
		return nil, ErrSlotTaken
	}
	now := time.Now()
	a := &Appointment{
		ID:        uuid.New(),
		PatientID: in.PatientID,
		DoctorID:  in.DoctorID,
		Date:      date,
		Time:      in.Time,
		Status:    StatusPending,
		Reason:    in.Reason,
		Notes:     in.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.appts[a.ID] = a
	cp := *a
	return &cp, nil
}

func (r *memRepo) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, upd StatusUpdate) (*Appointment, error) {
	if r.beforeUpdate != nil {
		r.beforeUpdate()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appts[id]
	if !ok || a.Status != upd.From {
		return nil, ErrAppointmentNotFound
	}
	a.Status = upd.To
	if upd.CancelledBy != nil {
		a.CancelledBy = upd.CancelledBy
	}
	if upd.CancelReason != nil {
		a.CancelReason = upd.CancelReason
	}
	a.UpdatedAt = time.Now()
	cp := *a
	return &cp, nil
}

func (r *memRepo) RescheduleAppointment(_ context.Context, id uuid.UUID, from AppointmentStatus, date time.Time, at availability.Clock) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appts[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	date = CalendarDate(date)
	if r.activeLocked(a.DoctorID, date, at, id) != nil {
		return nil, ErrSlotTaken
	}
	a.Date, a.Time, a.UpdatedAt = date, at, time.Now()
	cp := *a
	return &cp, nil
}

func (r *memRepo) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *memRepo) eventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.EventType
	}
	return out
}

// put stores a fixture directly, bypassing the uniqueness check.
func (r *memRepo) put(a Appointment) *Appointment {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.Date = CalendarDate(a.Date)
	r.appts[a.ID] = &a
	cp := a
	return &cp
}

func (r *memRepo) activeLocked(doctorID uuid.UUID, date time.Time, at availability.Clock, except uuid.UUID) *Appointment {
	for _, a := range r.appts {
		if a.ID != except && a.DoctorID == doctorID && a.Date.Equal(date) && a.Time == at && a.IsActive() {
			return a
		}
	}
	return nil
}

type memProfiles struct {
	doctors map[uuid.UUID]*doctor.Doctor
	err     error
}

func (p *memProfiles) GetDoctorByID(_ context.Context, id uuid.UUID) (*doctor.Doctor, error) {
	if p.err != nil {
		return nil, p.err
	}
	d, ok := p.doctors[id]
	if !ok {
		return nil, doctor.ErrDoctorNotFound
	}
	cp := *d
	return &cp, nil
}

// mutexLocker is an in-process stand-in for the Redis slot lock.
type mutexLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func (l *mutexLocker) WithSlotLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	if l.held == nil {
		l.held = make(map[string]bool)
	}
	if l.held[key] {
		l.mu.Unlock()
		return redisclient.ErrLockNotAcquired
	}
	l.held[key] = true
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
	}()
	return fn(ctx)
}

type busyLocker struct{}

func (busyLocker) WithSlotLock(context.Context, string, func(context.Context) error) error {
	return redisclient.ErrLockNotAcquired
}

type brokenLocker struct{ err error }

func (b brokenLocker) WithSlotLock(context.Context, string, func(context.Context) error) error {
	return b.err
}

type mockMetrics struct {
	mock.Mock
}

func (m *mockMetrics) BookingAttempt(outcome string) {
	m.Called(outcome)
}

func (m *mockMetrics) Transition(action Action, err error) {
	m.Called(action, err)
}

var errStoreDown = errors.New("connection refused")
