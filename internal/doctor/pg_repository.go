package doctor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/doctor-appointment-booking/internal/availability"
)

const doctorColumns = "id, user_id, name, specialty, active, availability, created_at, updated_at"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	var raw []byte

	err := row.Scan(
		&d.ID,
		&d.UserID,
		&d.Name,
		&d.Specialty,
		&d.Active,
		&raw,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &d.Availability); err != nil {
			return nil, fmt.Errorf("decode availability of doctor %s: %w", d.ID, err)
		}
	}
	return &d, nil
}

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+doctorColumns+`
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) GetDoctorByUserID(ctx context.Context, userID uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+doctorColumns+`
		FROM doctors
		WHERE user_id = $1
	`, userID)
	return scanDoctor(row)
}

func (r *PgRepository) ListDoctors(ctx context.Context, filter ListFilter) ([]Doctor, error) {
	q := psql.Select(doctorColumns).From("doctors").OrderBy("name", "id")
	if filter.Specialty != nil {
		q = q.Where(sq.ILike{"specialty": *filter.Specialty})
	}
	if filter.ActiveOnly {
		q = q.Where(sq.Eq{"active": true})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list doctors query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []Doctor{}
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) UpdateAvailability(ctx context.Context, id uuid.UUID, w availability.WeeklyAvailability) (*Doctor, error) {
	if w == nil {
		w = availability.WeeklyAvailability{}
	}
	raw, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("encode availability: %w", err)
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE doctors
		SET availability = $2,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+doctorColumns+`
	`, id, raw)
	return scanDoctor(row)
}
