package api

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/hackgods/doctor-appointment-booking/internal/appointment"
	"github.com/hackgods/doctor-appointment-booking/internal/availability"
	"github.com/hackgods/doctor-appointment-booking/internal/doctor"
)

var errForbidden = errors.New("not a participant of this appointment")

// handleError maps domain failures onto status codes. Anything unrecognised
// is an infrastructure failure: logged in full, reported generically.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *appointment.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, "validation_error", verr.Error())
	case errors.Is(err, availability.ErrInvalidSchedule):
		writeError(w, http.StatusBadRequest, "invalid_availability", err.Error())
	case errors.Is(err, appointment.ErrSlotNotInSchedule):
		writeError(w, http.StatusBadRequest, "slot_not_in_schedule", err.Error())
	case errors.Is(err, appointment.ErrDoctorUnavailable):
		writeError(w, http.StatusBadRequest, "doctor_unavailable", err.Error())

	case errors.Is(err, appointment.ErrDoctorNotFound), errors.Is(err, doctor.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())

	case errors.Is(err, errForbidden), errors.Is(err, doctor.ErrNotOwner):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())

	case errors.Is(err, appointment.ErrSlotAlreadyBooked):
		writeError(w, http.StatusConflict, "slot_already_booked", err.Error())
	case errors.Is(err, appointment.ErrAlreadyCancelled):
		writeError(w, http.StatusConflict, "already_cancelled", err.Error())
	case errors.Is(err, appointment.ErrTerminalState):
		writeError(w, http.StatusConflict, "terminal_state", err.Error())
	case errors.Is(err, appointment.ErrFutureAppointment):
		writeError(w, http.StatusConflict, "future_appointment", err.Error())
	case errors.Is(err, appointment.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, appointment.ErrConcurrentModification):
		writeError(w, http.StatusConflict, "concurrent_modification", err.Error())

	default:
		zerolog.Ctx(r.Context()).Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "something went wrong")
	}
}
