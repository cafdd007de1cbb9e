package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/doctor-appointment-booking/internal/appointment"
	"github.com/hackgods/doctor-appointment-booking/internal/availability"
	"github.com/hackgods/doctor-appointment-booking/internal/doctor"
)

type CreateAppointmentRequest struct {
	DoctorID string  `json:"doctor_id"`
	Date     string  `json:"date"`
	Time     string  `json:"time"`
	Reason   string  `json:"reason"`
	Notes    *string `json:"notes,omitempty"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type RescheduleRequest struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

type CancelRequest struct {
	Reason string `json:"reason"`
}

type UpdateAvailabilityRequest struct {
	Availability availability.WeeklyAvailability `json:"availability"`
}

type AppointmentResponse struct {
	ID           uuid.UUID  `json:"id"`
	PatientID    uuid.UUID  `json:"patient_id"`
	DoctorID     uuid.UUID  `json:"doctor_id"`
	Date         string     `json:"date"`
	Time         string     `json:"time"`
	Status       string     `json:"status"`
	Reason       string     `json:"reason"`
	Notes        *string    `json:"notes,omitempty"`
	CancelledBy  *uuid.UUID `json:"cancelled_by,omitempty"`
	CancelReason *string    `json:"cancel_reason,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:           a.ID,
		PatientID:    a.PatientID,
		DoctorID:     a.DoctorID,
		Date:         a.Date.Format(availability.DateFormat),
		Time:         a.Time.String(),
		Status:       string(a.Status),
		Reason:       a.Reason,
		Notes:        a.Notes,
		CancelledBy:  a.CancelledBy,
		CancelReason: a.CancelReason,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

type ListAppointmentsResponse struct {
	Appointments []AppointmentResponse `json:"appointments"`
	Count        int                   `json:"count"`
}

func toListResponse(in []appointment.Appointment) ListAppointmentsResponse {
	out := make([]AppointmentResponse, len(in))
	for i := range in {
		out[i] = toAppointmentResponse(&in[i])
	}
	return ListAppointmentsResponse{Appointments: out, Count: len(out)}
}

// SlotsResponse lists bookable times under "slots"; "all" is the unfiltered menu.
type SlotsResponse struct {
	DoctorID uuid.UUID `json:"doctor_id"`
	Date     string    `json:"date"`
	Slots    []string  `json:"slots"`
	All      []string  `json:"all"`
	Booked   []string  `json:"booked"`
}

type DoctorResponse struct {
	ID           uuid.UUID                       `json:"id"`
	Name         string                          `json:"name"`
	Specialty    *string                         `json:"specialty,omitempty"`
	Active       bool                            `json:"active"`
	Availability availability.WeeklyAvailability `json:"availability"`
}

func toDoctorResponse(d *doctor.Doctor) DoctorResponse {
	w := d.Availability
	if w == nil {
		w = availability.WeeklyAvailability{}
	}
	return DoctorResponse{
		ID:           d.ID,
		Name:         d.Name,
		Specialty:    d.Specialty,
		Active:       d.Active,
		Availability: w,
	}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
