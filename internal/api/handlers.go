package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/doctor-appointment-booking/internal/appointment"
	"github.com/hackgods/doctor-appointment-booking/internal/auth"
	"github.com/hackgods/doctor-appointment-booking/internal/availability"
	"github.com/hackgods/doctor-appointment-booking/internal/doctor"
)

type AppointmentService interface {
	RequestBooking(ctx context.Context, req appointment.BookingRequest) (*appointment.Appointment, error)
	Confirm(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	Complete(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	Cancel(ctx context.Context, id, actorID uuid.UUID, reason string) (*appointment.Appointment, error)
	Reschedule(ctx context.Context, id uuid.UUID, req appointment.RescheduleRequest) (*appointment.Appointment, error)
	BookableSlots(ctx context.Context, doctorID uuid.UUID, date string) (*appointment.DaySlots, error)
	Get(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	ListForPatient(ctx context.Context, patientID uuid.UUID, filter appointment.ListFilter) ([]appointment.Appointment, error)
	ListForDoctor(ctx context.Context, doctorID uuid.UUID, filter appointment.ListFilter) ([]appointment.Appointment, error)
}

type DoctorService interface {
	Get(ctx context.Context, id uuid.UUID) (*doctor.Doctor, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*doctor.Doctor, error)
	List(ctx context.Context, filter doctor.ListFilter) ([]doctor.Doctor, error)
	UpdateAvailability(ctx context.Context, doctorID, actorUserID uuid.UUID, w availability.WeeklyAvailability) (*doctor.Doctor, error)
}

type handlers struct {
	appointments AppointmentService
	doctors      DoctorService
}

func (h *handlers) createAppointment(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())

	var req CreateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	doctorID, err := uuid.Parse(req.DoctorID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
		return
	}

	appt, err := h.appointments.RequestBooking(r.Context(), appointment.BookingRequest{
		DoctorID:  doctorID,
		PatientID: p.UserID,
		Date:      req.Date,
		Time:      req.Time,
		Reason:    req.Reason,
		Notes:     req.Notes,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
}

func (h *handlers) doctorSlots(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := pathID(w, r, "id", "invalid_doctor_id")
	if !ok {
		return
	}

	date := r.URL.Query().Get("date")
	if date == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "date: is required")
		return
	}

	slots, err := h.appointments.BookableSlots(r.Context(), doctorID, date)
	if err != nil {
		handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, SlotsResponse{
		DoctorID: slots.DoctorID,
		Date:     slots.Date.Format(availability.DateFormat),
		Slots:    slots.Bookable,
		All:      slots.All,
		Booked:   slots.Booked,
	})
}

// updateStatus handles the doctor-driven moves. Cancellation has its own route.
func (h *handlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "invalid_appointment_id")
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	status, err := appointment.ParseStatus(req.Status)
	if err != nil {
		handleError(w, r, err)
		return
	}

	if _, err := h.loadForParticipant(r.Context(), id); err != nil {
		handleError(w, r, err)
		return
	}

	var appt *appointment.Appointment
	switch status {
	case appointment.StatusConfirmed:
		appt, err = h.appointments.Confirm(r.Context(), id)
	case appointment.StatusCompleted:
		appt, err = h.appointments.Complete(r.Context(), id)
	case appointment.StatusCancelled:
		writeError(w, http.StatusBadRequest, "validation_error", "status: use DELETE /appointments/{id} to cancel")
		return
	default:
		writeError(w, http.StatusBadRequest, "validation_error", fmt.Sprintf("status: cannot set %s", status))
		return
	}
	if err != nil {
		handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *handlers) reschedule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "invalid_appointment_id")
	if !ok {
		return
	}

	var req RescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	if _, err := h.loadForParticipant(r.Context(), id); err != nil {
		handleError(w, r, err)
		return
	}

	appt, err := h.appointments.Reschedule(r.Context(), id, appointment.RescheduleRequest{Date: req.Date, Time: req.Time})
	if err != nil {
		handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *handlers) cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "invalid_appointment_id")
	if !ok {
		return
	}

	// the body is optional
	var req CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	if _, err := h.loadForParticipant(r.Context(), id); err != nil {
		handleError(w, r, err)
		return
	}

	p, _ := auth.FromContext(r.Context())
	appt, err := h.appointments.Cancel(r.Context(), id, p.UserID, req.Reason)
	if err != nil {
		handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *handlers) getAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "invalid_appointment_id")
	if !ok {
		return
	}

	appt, err := h.loadForParticipant(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *handlers) patientAppointments(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())

	filter, err := parseListFilter(r)
	if err != nil {
		handleError(w, r, err)
		return
	}

	list, err := h.appointments.ListForPatient(r.Context(), p.UserID, filter)
	if err != nil {
		handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toListResponse(list))
}

func (h *handlers) doctorAppointments(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())

	filter, err := parseListFilter(r)
	if err != nil {
		handleError(w, r, err)
		return
	}

	doc, err := h.doctors.GetByUserID(r.Context(), p.UserID)
	if err != nil {
		handleError(w, r, err)
		return
	}

	list, err := h.appointments.ListForDoctor(r.Context(), doc.ID, filter)
	if err != nil {
		handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toListResponse(list))
}

func (h *handlers) listDoctors(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := doctor.ListFilter{ActiveOnly: q.Get("include_inactive") != "true"}
	if s := q.Get("specialty"); s != "" {
		filter.Specialty = &s
	}
	var err error
	if filter.Limit, filter.Offset, err = parsePage(r); err != nil {
		handleError(w, r, err)
		return
	}

	doctors, err := h.doctors.List(r.Context(), filter)
	if err != nil {
		handleError(w, r, err)
		return
	}

	out := make([]DoctorResponse, len(doctors))
	for i := range doctors {
		out[i] = toDoctorResponse(&doctors[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{"doctors": out, "count": len(out)})
}

func (h *handlers) getDoctor(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "invalid_doctor_id")
	if !ok {
		return
	}

	d, err := h.doctors.Get(r.Context(), id)
	if err != nil {
		handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toDoctorResponse(d))
}

func (h *handlers) updateAvailability(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "invalid_doctor_id")
	if !ok {
		return
	}

	var req UpdateAvailabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
		return
	}

	p, _ := auth.FromContext(r.Context())
	d, err := h.doctors.UpdateAvailability(r.Context(), id, p.UserID, req.Availability)
	if err != nil {
		handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toDoctorResponse(d))
}

// loadForParticipant returns the appointment if the principal is its patient
// or its doctor.
func (h *handlers) loadForParticipant(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	p, ok := auth.FromContext(ctx)
	if !ok {
		return nil, errForbidden
	}

	appt, err := h.appointments.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	switch p.Role {
	case auth.RolePatient:
		if appt.PatientID == p.UserID {
			return appt, nil
		}
	case auth.RoleDoctor:
		doc, err := h.doctors.GetByUserID(ctx, p.UserID)
		if err != nil {
			if errors.Is(err, doctor.ErrDoctorNotFound) {
				return nil, errForbidden
			}
			return nil, err
		}
		if doc.ID == appt.DoctorID {
			return appt, nil
		}
	}
	return nil, errForbidden
}

func pathID(w http.ResponseWriter, r *http.Request, param, code string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		writeError(w, http.StatusBadRequest, code, param+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func parseListFilter(r *http.Request) (appointment.ListFilter, error) {
	q := r.URL.Query()
	var f appointment.ListFilter

	if s := q.Get("status"); s != "" {
		st, err := appointment.ParseStatus(s)
		if err != nil {
			return f, err
		}
		f.Status = &st
	}
	if s := q.Get("date"); s != "" {
		d, err := time.Parse(availability.DateFormat, s)
		if err != nil {
			return f, &appointment.ValidationError{Field: "date", Message: "must be a calendar date (YYYY-MM-DD)"}
		}
		f.Date = &d
	}

	var err error
	f.Limit, f.Offset, err = parsePage(r)
	return f, err
}

func parsePage(r *http.Request) (limit, offset int, err error) {
	q := r.URL.Query()
	if s := q.Get("limit"); s != "" {
		if limit, err = strconv.Atoi(s); err != nil {
			return 0, 0, &appointment.ValidationError{Field: "limit", Message: "must be an integer"}
		}
	}
	if s := q.Get("offset"); s != "" {
		if offset, err = strconv.Atoi(s); err != nil {
			return 0, 0, &appointment.ValidationError{Field: "offset", Message: "must be an integer"}
		}
	}
	return limit, offset, nil
}
