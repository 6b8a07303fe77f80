package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusHeld, StatusConfirmed, true},
		{StatusHeld, StatusCancelled, true},
		{StatusHeld, StatusExpired, true},
		{StatusHeld, StatusCompleted, false},
		{StatusConfirmed, StatusCancelled, true},
		{StatusConfirmed, StatusCompleted, true},
		{StatusConfirmed, StatusExpired, false},
		{StatusConfirmed, StatusConfirmed, false},
		{StatusCancelled, StatusHeld, false},
		{StatusExpired, StatusConfirmed, false},
		{StatusCompleted, StatusCancelled, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestStatus_Terminal(t *testing.T) {
	assert.False(t, StatusHeld.Terminal())
	assert.False(t, StatusConfirmed.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.True(t, StatusExpired.Terminal())
	assert.True(t, StatusCompleted.Terminal())
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus("CONFIRMED")
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, st)

	_, err = ParseStatus("PENDING")
	assert.Error(t, err)
}

func TestReservation_EffectiveStatus(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	exp := t0.Add(10 * time.Minute)
	r := &Reservation{Status: StatusHeld, HoldExpiresAt: &exp}

	assert.Equal(t, StatusHeld, r.EffectiveStatus(t0))
	assert.True(t, r.Active(t0))

	// expiry instant itself is already lapsed
	assert.Equal(t, StatusExpired, r.EffectiveStatus(exp))
	assert.False(t, r.Active(exp.Add(time.Second)))

	confirmed := &Reservation{Status: StatusConfirmed}
	assert.Equal(t, StatusConfirmed, confirmed.EffectiveStatus(exp.Add(time.Hour)))
	assert.True(t, confirmed.Active(exp.Add(time.Hour)))

	cancelled := &Reservation{Status: StatusCancelled}
	assert.False(t, cancelled.Active(t0))
}

func TestShowtime_Bookable(t *testing.T) {
	now := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	s := &Showtime{StartsAt: now.Add(time.Hour), EndsAt: now.Add(3 * time.Hour)}
	assert.True(t, s.Bookable(now))
	assert.False(t, s.Bookable(now.Add(time.Hour)))

	s.Cancelled = true
	assert.False(t, s.Bookable(now))
}
