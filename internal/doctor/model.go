package doctor

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/doctor-appointment-booking/internal/availability"
)

var (
	ErrDoctorNotFound = errors.New("doctor not found")
	ErrNotOwner       = errors.New("only the doctor can change this profile")
)

// Doctor is the slice of a doctor profile the booking flow depends on.
// UserID links the profile to the identity that owns it.
type Doctor struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	Name         string
	Specialty    *string
	Active       bool
	Availability availability.WeeklyAvailability
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type ListFilter struct {
	Specialty  *string
	ActiveOnly bool
	Limit      int
	Offset     int
}

type Repository interface {
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetDoctorByUserID(ctx context.Context, userID uuid.UUID) (*Doctor, error)
	ListDoctors(ctx context.Context, filter ListFilter) ([]Doctor, error)
	UpdateAvailability(ctx context.Context, id uuid.UUID, w availability.WeeklyAvailability) (*Doctor, error)
}
