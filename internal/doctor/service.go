package doctor

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/doctor-appointment-booking/internal/availability"
)

type Service struct {
	repo Repository
	log  zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  logger.With().Str("component", "doctor").Logger(),
	}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	d, err := s.repo.GetDoctorByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	return d, nil
}

// GetByUserID resolves the profile owned by an identity.
func (s *Service) GetByUserID(ctx context.Context, userID uuid.UUID) (*Doctor, error) {
	d, err := s.repo.GetDoctorByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor by user: %w", err)
	}
	return d, nil
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]Doctor, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	doctors, err := s.repo.ListDoctors(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	return doctors, nil
}

// UpdateAvailability replaces the weekly schedule. Only the identity that
// owns the profile may do this. Repeated weekdays are stored as given.
func (s *Service) UpdateAvailability(ctx context.Context, doctorID, actorUserID uuid.UUID, w availability.WeeklyAvailability) (*Doctor, error) {
	if err := availability.Validate(w); err != nil {
		return nil, err
	}

	current, err := s.Get(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if current.UserID != actorUserID {
		return nil, ErrNotOwner
	}

	if dup, ok := duplicateDay(w); ok {
		s.log.Warn().
			Str("doctor_id", doctorID.String()).
			Str("day", dup.String()).
			Msg("schedule has more than one available window for a day, the first one is used")
	}

	updated, err := s.repo.UpdateAvailability(ctx, doctorID, w)
	if err != nil {
		return nil, fmt.Errorf("update availability: %w", err)
	}

	s.log.Info().
		Str("doctor_id", doctorID.String()).
		Int("entries", len(w)).
		Msg("availability updated")

	return updated, nil
}

func duplicateDay(w availability.WeeklyAvailability) (availability.Weekday, bool) {
	seen := make(map[availability.Weekday]bool, len(w))
	for _, e := range w {
		if !e.Available {
			continue
		}
		if seen[e.Day] {
			return e.Day, true
		}
		seen[e.Day] = true
	}
	return 0, false
}
