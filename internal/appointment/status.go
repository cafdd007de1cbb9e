package appointment

import "fmt"

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusCompleted AppointmentStatus = "completed"
)

// Action is a lifecycle event applied to an appointment.
type Action string

const (
	ActionConfirm  Action = "confirm"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
)

func ParseStatus(s string) (AppointmentStatus, error) {
	switch st := AppointmentStatus(s); st {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return st, nil
	}
	return "", &ValidationError{Field: "status", Message: fmt.Sprintf("%q is not a valid status", s)}
}

func (s AppointmentStatus) IsTerminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// IsActive reports whether the appointment still holds its slot.
func (s AppointmentStatus) IsActive() bool {
	return s != StatusCancelled
}

// CanReschedule reports whether date and time may still change.
func (s AppointmentStatus) CanReschedule() bool {
	return s == StatusPending || s == StatusConfirmed
}

// Transition is the only place that decides lifecycle moves:
//
//	pending   -> confirmed | cancelled
//	confirmed -> completed | cancelled
//
// Nothing re-enters pending and nothing leaves cancelled or completed.
func (s AppointmentStatus) Transition(a Action) (AppointmentStatus, error) {
	switch a {
	case ActionCancel:
		switch s {
		case StatusCancelled:
			return s, ErrAlreadyCancelled
		case StatusCompleted:
			return s, ErrTerminalState
		case StatusPending, StatusConfirmed:
			return StatusCancelled, nil
		}
	case ActionConfirm:
		if s == StatusPending {
			return StatusConfirmed, nil
		}
	case ActionComplete:
		if s == StatusConfirmed {
			return StatusCompleted, nil
		}
	}
	return s, fmt.Errorf("%w: cannot %s a %s appointment", ErrInvalidTransition, a, s)
}
