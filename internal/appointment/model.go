package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/doctor-appointment-booking/internal/availability"
)

const (
	MaxReasonLength       = 200
	MaxNotesLength        = 500
	MaxCancelReasonLength = 200
)

// Appointment.Date is a calendar date stored as midnight UTC; the clinic
// location is applied only when comparing against the current instant.
type Appointment struct {
	ID           uuid.UUID
	PatientID    uuid.UUID
	DoctorID     uuid.UUID
	Date         time.Time
	Time         availability.Clock
	Status       AppointmentStatus
	Reason       string
	Notes        *string
	CancelledBy  *uuid.UUID
	CancelReason *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// StartsAt is the wall-clock start of the visit in loc.
func (a *Appointment) StartsAt(loc *time.Location) time.Time {
	return startsAt(a.Date, a.Time, loc)
}

func (a *Appointment) IsActive() bool {
	return a.Status.IsActive()
}

// NewAppointment is what the coordinator hands to the repository on creation.
type NewAppointment struct {
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	Date      time.Time
	Time      availability.Clock
	Reason    string
	Notes     *string
}

// StatusUpdate is a compare-and-set move from From to To.
type StatusUpdate struct {
	From         AppointmentStatus
	To           AppointmentStatus
	CancelledBy  *uuid.UUID
	CancelReason *string
}

// ListFilter narrows appointment listings. Nil fields are ignored.
type ListFilter struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
	Status    *AppointmentStatus
	Date      *time.Time
	Limit     int
	Offset    int
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// DaySlots is the slot menu for one doctor and date split by occupancy.
type DaySlots struct {
	DoctorID uuid.UUID
	Date     time.Time
	All      []string
	Booked   []string
	Bookable []string
}

// CalendarDate drops the clock and location of t, keeping its year, month and day.
func CalendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func startsAt(date time.Time, at availability.Clock, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := date.Date()
	return time.Date(y, m, d, at.Hour(), at.Minute(), 0, 0, loc)
}
