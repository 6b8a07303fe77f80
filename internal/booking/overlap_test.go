package booking_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/showtime-booking/internal/booking"
	"github.com/iliyamo/showtime-booking/internal/booking/bookingtest"
	"github.com/iliyamo/showtime-booking/internal/model"
)

type mockSchedule struct {
	mock.Mock
}

func (m *mockSchedule) FindOverlapping(ctx context.Context, auditoriumID uint64, startsAt, endsAt time.Time, excludeID *uint64) ([]uint64, error) {
	args := m.Called(ctx, auditoriumID, startsAt, endsAt, excludeID)
	ids, _ := args.Get(0).([]uint64)
	return ids, args.Error(1)
}

func at(hour, min int) time.Time {
	return time.Date(2026, 7, 4, hour, min, 0, 0, time.UTC)
}

func TestOverlaps(t *testing.T) {
	base := booking.Interval{Start: at(11, 0), End: at(13, 0)}
	tests := []struct {
		name  string
		other booking.Interval
		want  bool
	}{
		{"inside", booking.Interval{Start: at(11, 30), End: at(12, 30)}, true},
		{"straddles start", booking.Interval{Start: at(10, 0), End: at(11, 1)}, true},
		{"straddles end", booking.Interval{Start: at(12, 59), End: at(14, 0)}, true},
		{"covers", booking.Interval{Start: at(10, 0), End: at(14, 0)}, true},
		{"touches before", booking.Interval{Start: at(9, 0), End: at(11, 0)}, false},
		{"touches after", booking.Interval{Start: at(13, 0), End: at(15, 0)}, false},
		{"disjoint", booking.Interval{Start: at(15, 0), End: at(16, 0)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, booking.Overlaps(base, tt.other))
			assert.Equal(t, tt.want, booking.Overlaps(tt.other, base))
		})
	}
}

func TestValidateNoOverlap_Catalog(t *testing.T) {
	cat := bookingtest.NewCatalog()
	cat.AddShowtime(model.Showtime{ID: 1, AuditoriumID: 7, StartsAt: at(11, 0), EndsAt: at(13, 0)})
	cat.AddShowtime(model.Showtime{ID: 2, AuditoriumID: 7, StartsAt: at(15, 0), EndsAt: at(17, 0), Cancelled: true})
	cat.AddShowtime(model.Showtime{ID: 3, AuditoriumID: 8, StartsAt: at(12, 0), EndsAt: at(14, 0)})
	v := booking.NewOverlapValidator(cat)
	ctx := context.Background()

	err := v.ValidateNoOverlap(ctx, 7, at(12, 0), at(14, 0), nil)
	require.ErrorIs(t, err, booking.ErrConflict)
	var oe *booking.OverlapError
	require.True(t, errors.As(err, &oe))
	assert.Equal(t, []uint64{1}, oe.ShowtimeIDs)

	assert.NoError(t, v.ValidateNoOverlap(ctx, 7, at(13, 0), at(15, 0), nil), "touching is allowed")
	assert.NoError(t, v.ValidateNoOverlap(ctx, 7, at(15, 30), at(16, 30), nil), "cancelled showtimes are ignored")

	self := uint64(1)
	assert.NoError(t, v.ValidateNoOverlap(ctx, 7, at(11, 30), at(13, 30), &self), "rescheduling a showtime ignores itself")
}

func TestValidateNoOverlap_RejectsBadInput(t *testing.T) {
	sched := &mockSchedule{}
	v := booking.NewOverlapValidator(sched)
	ctx := context.Background()

	assert.ErrorIs(t, v.ValidateNoOverlap(ctx, 0, at(11, 0), at(12, 0), nil), booking.ErrValidation)
	assert.ErrorIs(t, v.ValidateNoOverlap(ctx, 7, time.Time{}, at(12, 0), nil), booking.ErrValidation)
	assert.ErrorIs(t, v.ValidateNoOverlap(ctx, 7, at(12, 0), at(12, 0), nil), booking.ErrValidation)
	assert.ErrorIs(t, v.ValidateNoOverlap(ctx, 7, at(13, 0), at(12, 0), nil), booking.ErrValidation)

	sched.AssertNotCalled(t, "FindOverlapping", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestValidateNoOverlap_ScheduleError(t *testing.T) {
	sched := &mockSchedule{}
	boom := errors.New("db down")
	sched.On("FindOverlapping", mock.Anything, uint64(7), at(11, 0), at(12, 0), (*uint64)(nil)).Return(nil, boom).Once()

	err := booking.NewOverlapValidator(sched).ValidateNoOverlap(context.Background(), 7, at(11, 0), at(12, 0), nil)
	assert.ErrorIs(t, err, boom)
	sched.AssertExpectations(t)
}
