package appointment

import (
	"errors"
	"fmt"
)

var (
	ErrValidation             = errors.New("validation failed")
	ErrDoctorNotFound         = errors.New("doctor not found")
	ErrDoctorUnavailable      = errors.New("doctor is not available for appointments")
	ErrSlotNotInSchedule      = errors.New("selected time is outside the doctor's schedule")
	ErrSlotAlreadyBooked      = errors.New("slot already has an active appointment")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrAlreadyCancelled       = errors.New("appointment is already cancelled")
	ErrTerminalState          = errors.New("appointment is completed and can no longer change")
	ErrFutureAppointment      = errors.New("cannot complete an appointment that has not happened yet")
	ErrConcurrentModification = errors.New("appointment was modified concurrently, please retry")
)

// ValidationError describes malformed input. It matches ErrValidation with errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
