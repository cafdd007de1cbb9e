package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/doctor-appointment-booking/internal/availability"
	"github.com/hackgods/doctor-appointment-booking/internal/config"
	"github.com/hackgods/doctor-appointment-booking/internal/doctor"
	redisclient "github.com/hackgods/doctor-appointment-booking/internal/redis"
)

const (
	EventAppointmentRequested   = "APPOINTMENT_REQUESTED"
	EventAppointmentConfirmed   = "APPOINTMENT_CONFIRMED"
	EventAppointmentCompleted   = "APPOINTMENT_COMPLETED"
	EventAppointmentCancelled   = "APPOINTMENT_CANCELLED"
	EventAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
)

// Booking outcomes reported to Metrics.
const (
	OutcomeBooked        = "booked"
	OutcomeConflict      = "conflict"
	OutcomeNotInSchedule = "not_in_schedule"
	OutcomeInvalid       = "invalid"
	OutcomeError         = "error"
)

// Metrics receives booking and lifecycle outcomes.
type Metrics interface {
	BookingAttempt(outcome string)
	Transition(action Action, err error)
}

type noopMetrics struct{}

func (noopMetrics) BookingAttempt(string)     {}
func (noopMetrics) Transition(Action, error) {}

type Option func(*Service)

// WithClock overrides the source of the current instant.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithMetrics(m Metrics) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// Service is the booking coordinator. A nil locker is allowed; the store's
// unique index on active (doctor, date, time) is what prevents double booking.
type Service struct {
	repo     Repository
	profiles ProfileStore
	locker   redisclient.Locker
	loc      *time.Location
	now      func() time.Time
	metrics  Metrics
	log      zerolog.Logger
}

func NewService(repo Repository, profiles ProfileStore, locker redisclient.Locker, cfg config.Config, logger zerolog.Logger, opts ...Option) *Service {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	s := &Service{
		repo:     repo,
		profiles: profiles,
		locker:   locker,
		loc:      loc,
		now:      time.Now,
		metrics:  noopMetrics{},
		log:      logger.With().Str("component", "appointment").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type BookingRequest struct {
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	Date      string // YYYY-MM-DD
	Time      string // HH:MM
	Reason    string
	Notes     *string
}

// RequestBooking creates a pending appointment for a slot inside the doctor's
// schedule that no other active appointment holds.
func (s *Service) RequestBooking(ctx context.Context, req BookingRequest) (*Appointment, error) {
	appt, err := s.requestBooking(ctx, req)
	s.metrics.BookingAttempt(bookingOutcome(err))
	return appt, err
}

func (s *Service) requestBooking(ctx context.Context, req BookingRequest) (*Appointment, error) {
	if req.DoctorID == uuid.Nil {
		return nil, invalid("doctor_id", "is required")
	}
	if req.PatientID == uuid.Nil {
		return nil, invalid("patient_id", "is required")
	}

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, invalid("reason", "is required")
	}
	if utf8.RuneCountInString(reason) > MaxReasonLength {
		return nil, invalid("reason", "cannot be more than %d characters", MaxReasonLength)
	}

	notes, err := trimOptional("notes", req.Notes, MaxNotesLength)
	if err != nil {
		return nil, err
	}

	date, at, err := s.parseSlot(req.Date, req.Time)
	if err != nil {
		return nil, err
	}

	// one read of the profile serves both the schedule check and the booking
	doc, err := s.loadBookableDoctor(ctx, req.DoctorID)
	if err != nil {
		return nil, err
	}
	schedule := doc.Availability.Clone()

	if !availability.IsSlotAvailable(schedule, date, at) {
		return nil, fmt.Errorf("%w: %s %s", ErrSlotNotInSchedule, date.Format(availability.DateFormat), at)
	}

	var created *Appointment

	err = s.withSlot(ctx, req.DoctorID, date, at, func(lockCtx context.Context) error {
		// Inside the critical section re-check for an active appointment for this slot
		existing, err := s.repo.GetActiveAppointmentForSlot(lockCtx, req.DoctorID, date, at)
		if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
			return fmt.Errorf("check active appointment: %w", err)
		}
		if existing != nil {
			return ErrSlotAlreadyBooked
		}

		appt, err := s.repo.CreatePendingAppointment(lockCtx, NewAppointment{
			PatientID: req.PatientID,
			DoctorID:  req.DoctorID,
			Date:      date,
			Time:      at,
			Reason:    reason,
			Notes:     notes,
		})
		if err != nil {
			if errors.Is(err, ErrSlotTaken) {
				return ErrSlotAlreadyBooked
			}
			return fmt.Errorf("create pending appointment: %w", err)
		}

		created = appt

		s.logEvent(lockCtx, appt.ID, EventAppointmentRequested, map[string]any{
			"doctor_id":  req.DoctorID.String(),
			"patient_id": req.PatientID.String(),
			"date":       date.Format(availability.DateFormat),
			"time":       at.String(),
		})

		return nil
	})
	if err != nil {
		if errors.Is(err, ErrSlotAlreadyBooked) {
			s.log.Info().
				Str("doctor_id", req.DoctorID.String()).
				Str("date", date.Format(availability.DateFormat)).
				Str("time", at.String()).
				Msg("booking rejected, slot already booked")
		}
		return nil, err
	}

	s.log.Info().
		Str("appointment_id", created.ID.String()).
		Str("doctor_id", created.DoctorID.String()).
		Str("date", date.Format(availability.DateFormat)).
		Str("time", at.String()).
		Msg("appointment requested")

	return created, nil
}

// Confirm moves a pending appointment to confirmed.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, ActionConfirm, nil)
}

// Complete moves a confirmed appointment to completed once its calendar day
// has arrived in the clinic timezone. The time of day is not checked.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, ActionComplete, func(appt *Appointment, upd *StatusUpdate) error {
		if CalendarDate(appt.Date).After(CalendarDate(s.now().In(s.loc))) {
			return ErrFutureAppointment
		}
		return nil
	})
}

// Cancel marks a pending or confirmed appointment cancelled, freeing its slot.
func (s *Service) Cancel(ctx context.Context, id, actorID uuid.UUID, reason string) (*Appointment, error) {
	if actorID == uuid.Nil {
		return nil, invalid("cancelled_by", "is required")
	}
	cancelReason, err := trimOptional("reason", &reason, MaxCancelReasonLength)
	if err != nil {
		return nil, err
	}

	return s.transition(ctx, id, ActionCancel, func(_ *Appointment, upd *StatusUpdate) error {
		upd.CancelledBy = &actorID
		upd.CancelReason = cancelReason
		return nil
	})
}

// transition applies action through the state machine and persists it with a
// compare-and-set on the current status. A lost race re-reads the record once,
// so the loser sees the state the winner left behind.
func (s *Service) transition(ctx context.Context, id uuid.UUID, action Action, prepare func(*Appointment, *StatusUpdate) error) (*Appointment, error) {
	updated, err := s.doTransition(ctx, id, action, prepare)
	s.metrics.Transition(action, err)
	return updated, err
}

func (s *Service) doTransition(ctx context.Context, id uuid.UUID, action Action, prepare func(*Appointment, *StatusUpdate) error) (*Appointment, error) {
	for attempt := 0; attempt < 2; attempt++ {
		appt, err := s.repo.GetAppointmentByID(ctx, id)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				return nil, err
			}
			return nil, fmt.Errorf("load appointment: %w", err)
		}

		next, err := appt.Status.Transition(action)
		if err != nil {
			return nil, err
		}

		upd := StatusUpdate{From: appt.Status, To: next}
		if prepare != nil {
			if err := prepare(appt, &upd); err != nil {
				return nil, err
			}
		}

		updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, upd)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				s.log.Debug().
					Str("appointment_id", id.String()).
					Str("action", string(action)).
					Msg("status changed underneath, re-reading")
				continue
			}
			return nil, fmt.Errorf("%s appointment: %w", action, err)
		}

		payload := map[string]any{"from": string(upd.From), "to": string(upd.To)}
		if upd.CancelledBy != nil {
			payload["cancelled_by"] = upd.CancelledBy.String()
		}
		s.logEvent(ctx, updated.ID, transitionEvent(action), payload)

		s.log.Info().
			Str("appointment_id", updated.ID.String()).
			Str("from", string(upd.From)).
			Str("to", string(upd.To)).
			Msg("appointment status changed")

		return updated, nil
	}

	return nil, ErrConcurrentModification
}

type RescheduleRequest struct {
	Date string // YYYY-MM-DD
	Time string // HH:MM
}

// Reschedule moves a pending or confirmed appointment to another slot of the
// same doctor. The status is kept.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, req RescheduleRequest) (*Appointment, error) {
	date, at, err := s.parseSlot(req.Date, req.Time)
	if err != nil {
		return nil, err
	}

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if !appt.Status.CanReschedule() {
		return nil, fmt.Errorf("%w: cannot reschedule a %s appointment", ErrInvalidTransition, appt.Status)
	}
	if appt.Date.Equal(date) && appt.Time == at {
		return appt, nil
	}

	doc, err := s.loadBookableDoctor(ctx, appt.DoctorID)
	if err != nil {
		return nil, err
	}
	if !availability.IsSlotAvailable(doc.Availability.Clone(), date, at) {
		return nil, fmt.Errorf("%w: %s %s", ErrSlotNotInSchedule, date.Format(availability.DateFormat), at)
	}

	var moved *Appointment

	err = s.withSlot(ctx, appt.DoctorID, date, at, func(lockCtx context.Context) error {
		existing, err := s.repo.GetActiveAppointmentForSlot(lockCtx, appt.DoctorID, date, at)
		if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
			return fmt.Errorf("check active appointment: %w", err)
		}
		if existing != nil {
			return ErrSlotAlreadyBooked
		}

		updated, err := s.repo.RescheduleAppointment(lockCtx, appt.ID, appt.Status, date, at)
		switch {
		case errors.Is(err, ErrSlotTaken):
			return ErrSlotAlreadyBooked
		case errors.Is(err, ErrAppointmentNotFound):
			return ErrConcurrentModification
		case err != nil:
			return fmt.Errorf("reschedule appointment: %w", err)
		}
		moved = updated

		s.logEvent(lockCtx, appt.ID, EventAppointmentRescheduled, map[string]any{
			"from_date": appt.Date.Format(availability.DateFormat),
			"from_time": appt.Time.String(),
			"to_date":   date.Format(availability.DateFormat),
			"to_time":   at.String(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("appointment_id", moved.ID.String()).
		Str("date", date.Format(availability.DateFormat)).
		Str("time", at.String()).
		Msg("appointment rescheduled")

	return moved, nil
}

// BookableSlots returns the doctor's slot menu for date with the times held by
// active appointments removed. On the current day, slots already started are
// not bookable either.
func (s *Service) BookableSlots(ctx context.Context, doctorID uuid.UUID, dateStr string) (*DaySlots, error) {
	date, err := parseDate(dateStr)
	if err != nil {
		return nil, err
	}

	doc, err := s.profiles.GetDoctorByID(ctx, doctorID)
	if err != nil {
		if errors.Is(err, doctor.ErrDoctorNotFound) {
			return nil, ErrDoctorNotFound
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	all := availability.Slots(doc.Availability.Clone(), date)
	out := &DaySlots{
		DoctorID: doctorID,
		Date:     date,
		All:      formatClocks(all),
		Booked:   []string{},
		Bookable: []string{},
	}
	if len(all) == 0 {
		return out, nil
	}

	taken, err := s.repo.ListActiveTimes(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("list booked times: %w", err)
	}
	booked := make(map[availability.Clock]bool, len(taken))
	for _, t := range taken {
		booked[t] = true
	}
	out.Booked = formatClocks(taken)

	if !doc.Active {
		return out, nil
	}

	now := s.now()
	for _, t := range all {
		if booked[t] || !startsAt(date, t, s.loc).After(now) {
			continue
		}
		out.Bookable = append(out.Bookable, t.String())
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

// ListForPatient lists a patient's appointments ordered by date and time.
func (s *Service) ListForPatient(ctx context.Context, patientID uuid.UUID, filter ListFilter) ([]Appointment, error) {
	filter.PatientID = &patientID
	filter.DoctorID = nil
	return s.list(ctx, filter)
}

// ListForDoctor lists a doctor's appointments ordered by date and time.
func (s *Service) ListForDoctor(ctx context.Context, doctorID uuid.UUID, filter ListFilter) ([]Appointment, error) {
	filter.DoctorID = &doctorID
	filter.PatientID = nil
	return s.list(ctx, filter)
}

func (s *Service) list(ctx context.Context, filter ListFilter) ([]Appointment, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20 // default
	}
	if filter.Limit > 100 {
		filter.Limit = 100 // max
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if filter.Date != nil {
		d := CalendarDate(*filter.Date)
		filter.Date = &d
	}

	appointments, err := s.repo.ListAppointments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appointments, nil
}

func (s *Service) loadBookableDoctor(ctx context.Context, id uuid.UUID) (*doctor.Doctor, error) {
	doc, err := s.profiles.GetDoctorByID(ctx, id)
	if err != nil {
		if errors.Is(err, doctor.ErrDoctorNotFound) {
			return nil, ErrDoctorNotFound
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	if !doc.Active {
		return nil, ErrDoctorUnavailable
	}
	return doc, nil
}

// parseSlot validates a requested date and time and requires the slot to
// start strictly after now in the clinic location.
func (s *Service) parseSlot(dateStr, timeStr string) (time.Time, availability.Clock, error) {
	date, err := parseDate(dateStr)
	if err != nil {
		return time.Time{}, 0, err
	}
	at, err := availability.ParseClock(timeStr)
	if err != nil {
		return time.Time{}, 0, invalid("time", "please enter a valid time (HH:MM)")
	}
	if !startsAt(date, at, s.loc).After(s.now()) {
		return time.Time{}, 0, invalid("date", "appointment must be in the future")
	}
	return date, at, nil
}

// withSlot runs fn under the slot lock when one is configured. A lock that
// cannot be obtained in time is not fatal: fn then runs unguarded and the
// unique index settles the race.
func (s *Service) withSlot(ctx context.Context, doctorID uuid.UUID, date time.Time, at availability.Clock, fn func(ctx context.Context) error) error {
	if s.locker == nil {
		return fn(ctx)
	}

	key := SlotKey(doctorID, date, at)
	err := s.locker.WithSlotLock(ctx, key, fn)
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		s.log.Warn().Str("slot", key).Msg("slot lock contended, relying on unique index")
		return fn(ctx)
	}
	return err
}

// SlotKey identifies one (doctor, date, time) slot.
func SlotKey(doctorID uuid.UUID, date time.Time, at availability.Clock) string {
	return fmt.Sprintf("%s:%s:%s", doctorID, date.Format(availability.DateFormat), at)
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Str("event", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Error().Err(err).
			Str("event", eventType).
			Str("appointment_id", appointmentID.String()).
			Msg("failed to insert event log")
	}
}

func parseDate(s string) (time.Time, error) {
	d, err := time.Parse(availability.DateFormat, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, invalid("date", "must be a calendar date (YYYY-MM-DD)")
	}
	return d, nil
}

func trimOptional(field string, v *string, max int) (*string, error) {
	if v == nil {
		return nil, nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(t) > max {
		return nil, invalid(field, "cannot be more than %d characters", max)
	}
	return &t, nil
}

func formatClocks(cs []availability.Clock) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.String()
	}
	return out
}

func transitionEvent(a Action) string {
	switch a {
	case ActionConfirm:
		return EventAppointmentConfirmed
	case ActionComplete:
		return EventAppointmentCompleted
	default:
		return EventAppointmentCancelled
	}
}

func bookingOutcome(err error) string {
	switch {
	case err == nil:
		return OutcomeBooked
	case errors.Is(err, ErrSlotAlreadyBooked):
		return OutcomeConflict
	case errors.Is(err, ErrSlotNotInSchedule):
		return OutcomeNotInSchedule
	case errors.Is(err, ErrValidation), errors.Is(err, ErrDoctorNotFound), errors.Is(err, ErrDoctorUnavailable):
		return OutcomeInvalid
	default:
		return OutcomeError
	}
}
