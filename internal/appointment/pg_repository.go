package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/doctor-appointment-booking/internal/availability"
)

const (
	appointmentColumns = "id, patient_id, doctor_id, slot_date, slot_time, status, reason, notes, cancelled_by, cancel_reason, created_at, updated_at"

	// partial unique index over (doctor_id, slot_date, slot_time) WHERE status <> 'cancelled'
	activeSlotIndex = "appointments_active_slot_key"
	uniqueViolation = "23505"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var at string

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.Date,
		&at,
		&a.Status,
		&a.Reason,
		&a.Notes,
		&a.CancelledBy,
		&a.CancelReason,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	clock, err := availability.ParseClock(at)
	if err != nil {
		return nil, fmt.Errorf("appointment %s has stored time %q: %w", a.ID, at, err)
	}
	a.Time = clock
	a.Date = CalendarDate(a.Date)
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	result := []Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// translateWriteErr maps a violation of the active-slot index to ErrSlotTaken.
func translateWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == activeSlotIndex {
		return ErrSlotTaken
	}
	return err
}

// Interface methods

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetActiveAppointmentForSlot(ctx context.Context, doctorID uuid.UUID, date time.Time, at availability.Clock) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
		  AND slot_date = $2
		  AND slot_time = $3
		  AND status <> 'cancelled'
	`, doctorID, CalendarDate(date), at.String())
	return scanAppointment(row)
}

func (r *PgRepository) ListActiveTimes(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]availability.Clock, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT slot_time
		FROM appointments
		WHERE doctor_id = $1
		  AND slot_date = $2
		  AND status <> 'cancelled'
		ORDER BY slot_time
	`, doctorID, CalendarDate(date))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []availability.Clock{}
	for rows.Next() {
		var at string
		if err := rows.Scan(&at); err != nil {
			return nil, err
		}
		c, err := availability.ParseClock(at)
		if err != nil {
			return nil, fmt.Errorf("stored time %q: %w", at, err)
		}
		result = append(result, c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) ListAppointments(ctx context.Context, filter ListFilter) ([]Appointment, error) {
	q := psql.Select(appointmentColumns).
		From("appointments").
		OrderBy("slot_date", "slot_time", "created_at")

	if filter.PatientID != nil {
		q = q.Where(sq.Eq{"patient_id": *filter.PatientID})
	}
	if filter.DoctorID != nil {
		q = q.Where(sq.Eq{"doctor_id": *filter.DoctorID})
	}
	if filter.Status != nil {
		q = q.Where(sq.Eq{"status": string(*filter.Status)})
	}
	if filter.Date != nil {
		q = q.Where(sq.Eq{"slot_date": CalendarDate(*filter.Date)})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list appointments query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) CreatePendingAppointment(ctx context.Context, in NewAppointment) (*Appointment, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, slot_date, slot_time, status, reason, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'pending', $6, $7, now(), now())
		RETURNING `+appointmentColumns+`
	`, id, in.PatientID, in.DoctorID, CalendarDate(in.Date), in.Time.String(), in.Reason, in.Notes)

	appt, err := scanAppointment(row)
	if err != nil {
		return nil, translateWriteErr(err)
	}
	return appt, nil
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, upd StatusUpdate) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    cancelled_by = COALESCE($4, cancelled_by),
		    cancel_reason = COALESCE($5, cancel_reason),
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, string(upd.To), string(upd.From), upd.CancelledBy, upd.CancelReason)

	return scanAppointment(row)
}

func (r *PgRepository) RescheduleAppointment(ctx context.Context, id uuid.UUID, from AppointmentStatus, date time.Time, at availability.Clock) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET slot_date = $2,
		    slot_time = $3,
		    updated_at = now()
		WHERE id = $1
		  AND status = $4
		RETURNING `+appointmentColumns+`
	`, id, CalendarDate(date), at.String(), string(from))

	appt, err := scanAppointment(row)
	if err != nil {
		return nil, translateWriteErr(err)
	}
	return appt, nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	var appID *uuid.UUID
	if ev.AppointmentID != nil {
		appID = ev.AppointmentID
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, appID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
