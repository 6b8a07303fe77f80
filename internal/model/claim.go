package model

import "time"

// SeatClaim is a reservation line joined with the state of its reservation.
// It is what the store returns when asked who holds a seat.
type SeatClaim struct {
	SeatID        uint64
	ReservationID uint64
	Status        Status
	HoldExpiresAt *time.Time
}

// Active reports whether the claim still blocks the seat at now.
func (c SeatClaim) Active(now time.Time) bool {
	r := Reservation{Status: c.Status, HoldExpiresAt: c.HoldExpiresAt}
	return r.Active(now)
}

// StateOf folds every claim on one seat into its availability.  A
// confirmed claim wins over a held one; lapsed holds count as nothing.
func StateOf(claims []SeatClaim, now time.Time) SeatState {
	state := SeatAvailable
	for _, c := range claims {
		if !c.Active(now) {
			continue
		}
		if c.Status == StatusConfirmed {
			return SeatBooked
		}
		state = SeatHeld
	}
	return state
}
