package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/doctor-appointment-booking/internal/availability"
	"github.com/hackgods/doctor-appointment-booking/internal/doctor"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	// ErrSlotTaken is returned by the store when the active-slot unique index rejects a write.
	ErrSlotTaken = errors.New("active appointment already exists for doctor, date and time")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// For conflict checks
	GetActiveAppointmentForSlot(ctx context.Context, doctorID uuid.UUID, date time.Time, at availability.Clock) (*Appointment, error)
	ListActiveTimes(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]availability.Clock, error)

	ListAppointments(ctx context.Context, filter ListFilter) ([]Appointment, error)

	// Creation and updates. Writes that would leave two active appointments
	// on one slot fail with ErrSlotTaken; a stale From status yields ErrAppointmentNotFound.
	CreatePendingAppointment(ctx context.Context, in NewAppointment) (*Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, upd StatusUpdate) (*Appointment, error)
	RescheduleAppointment(ctx context.Context, id uuid.UUID, from AppointmentStatus, date time.Time, at availability.Clock) (*Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}

// ProfileStore supplies the doctor's schedule and active flag. Read only.
type ProfileStore interface {
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*doctor.Doctor, error)
}
