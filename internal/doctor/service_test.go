package doctor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/doctor-appointment-booking/internal/availability"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Doctor), args.Error(1)
}

func (m *MockRepository) GetDoctorByUserID(ctx context.Context, userID uuid.UUID) (*Doctor, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Doctor), args.Error(1)
}

func (m *MockRepository) ListDoctors(ctx context.Context, filter ListFilter) ([]Doctor, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Doctor), args.Error(1)
}

func (m *MockRepository) UpdateAvailability(ctx context.Context, id uuid.UUID, w availability.WeeklyAvailability) (*Doctor, error) {
	args := m.Called(ctx, id, w)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Doctor), args.Error(1)
}

func mondayMorning() availability.WeeklyAvailability {
	return availability.WeeklyAvailability{{
		Day:                 availability.Weekday(time.Monday),
		Start:               availability.MustClock("09:00"),
		End:                 availability.MustClock("12:00"),
		SlotDurationMinutes: 30,
		Available:           true,
	}}
}

func TestService_UpdateAvailability(t *testing.T) {
	ctx := context.Background()

	t.Run("owner replaces the schedule", func(t *testing.T) {
		repo := new(MockRepository)
		svc := NewService(repo, zerolog.Nop())
		d := &Doctor{ID: uuid.New(), UserID: uuid.New(), Active: true}
		w := mondayMorning()

		repo.On("GetDoctorByID", mock.Anything, d.ID).Return(d, nil)
		repo.On("UpdateAvailability", mock.Anything, d.ID, w).Return(&Doctor{ID: d.ID, UserID: d.UserID, Availability: w}, nil)

		updated, err := svc.UpdateAvailability(ctx, d.ID, d.UserID, w)
		require.NoError(t, err)
		assert.Equal(t, w, updated.Availability)
		repo.AssertExpectations(t)
	})

	t.Run("someone else is refused", func(t *testing.T) {
		repo := new(MockRepository)
		svc := NewService(repo, zerolog.Nop())
		d := &Doctor{ID: uuid.New(), UserID: uuid.New()}

		repo.On("GetDoctorByID", mock.Anything, d.ID).Return(d, nil)

		_, err := svc.UpdateAvailability(ctx, d.ID, uuid.New(), mondayMorning())
		assert.ErrorIs(t, err, ErrNotOwner)
		repo.AssertNotCalled(t, "UpdateAvailability", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("invalid schedule never reaches the store", func(t *testing.T) {
		repo := new(MockRepository)
		svc := NewService(repo, zerolog.Nop())
		w := mondayMorning()
		w[0].Start, w[0].End = w[0].End, w[0].Start

		_, err := svc.UpdateAvailability(ctx, uuid.New(), uuid.New(), w)
		assert.ErrorIs(t, err, availability.ErrInvalidSchedule)
		repo.AssertExpectations(t)
	})

	t.Run("duplicate weekdays are kept as given", func(t *testing.T) {
		repo := new(MockRepository)
		svc := NewService(repo, zerolog.Nop())
		d := &Doctor{ID: uuid.New(), UserID: uuid.New()}
		w := append(mondayMorning(), availability.Entry{
			Day:                 availability.Weekday(time.Monday),
			Start:               availability.MustClock("14:00"),
			End:                 availability.MustClock("16:00"),
			SlotDurationMinutes: 20,
			Available:           true,
		})

		repo.On("GetDoctorByID", mock.Anything, d.ID).Return(d, nil)
		repo.On("UpdateAvailability", mock.Anything, d.ID, w).Return(&Doctor{ID: d.ID, Availability: w}, nil)

		updated, err := svc.UpdateAvailability(ctx, d.ID, d.UserID, w)
		require.NoError(t, err)
		assert.Len(t, updated.Availability, 2)
	})

	t.Run("unknown doctor", func(t *testing.T) {
		repo := new(MockRepository)
		svc := NewService(repo, zerolog.Nop())
		id := uuid.New()

		repo.On("GetDoctorByID", mock.Anything, id).Return(nil, ErrDoctorNotFound)

		_, err := svc.UpdateAvailability(ctx, id, uuid.New(), mondayMorning())
		assert.ErrorIs(t, err, ErrDoctorNotFound)
	})
}

func TestService_List(t *testing.T) {
	repo := new(MockRepository)
	svc := NewService(repo, zerolog.Nop())

	repo.On("ListDoctors", mock.Anything, mock.MatchedBy(func(f ListFilter) bool {
		return f.Limit == 20 && f.Offset == 0
	})).Return([]Doctor{{Name: "Dr. Okafor"}}, nil).Once()
	repo.On("ListDoctors", mock.Anything, mock.MatchedBy(func(f ListFilter) bool {
		return f.Limit == 100
	})).Return([]Doctor{}, nil).Once()

	got, err := svc.List(context.Background(), ListFilter{Offset: -3})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = svc.List(context.Background(), ListFilter{Limit: 1000})
	require.NoError(t, err)

	repo.AssertExpectations(t)
}

func TestService_GetWrapsStoreErrors(t *testing.T) {
	repo := new(MockRepository)
	svc := NewService(repo, zerolog.Nop())
	down := errors.New("connection reset")
	id := uuid.New()

	repo.On("GetDoctorByID", mock.Anything, id).Return(nil, down)

	_, err := svc.Get(context.Background(), id)
	assert.ErrorIs(t, err, down)
	assert.NotErrorIs(t, err, ErrDoctorNotFound)
}
