package model

import "time"

// Reservation records a user's claim on one or more seats of a showtime.
// Rows are never deleted; terminal reservations stay for audit.
//
// Fields:
//  ID              – primary key identifier.
//  UserID          – caller who created the hold (the owner).
//  ShowtimeID      – showtime being reserved.
//  Status          – lifecycle state, see Status.
//  TotalPriceCents – sum of the frozen line prices.
//  HoldExpiresAt   – end of the hold; nil once confirmed or terminal.
//  ConfirmedAt     – set when the hold is confirmed.
//  CreatedAt       – creation timestamp.
//  UpdatedAt       – last update timestamp.
type Reservation struct {
	ID              uint64     // reservations.id
	UserID          uint64     // reservations.user_id
	ShowtimeID      uint64     // reservations.showtime_id
	Status          Status     // reservations.status
	TotalPriceCents int64      // reservations.total_price_cents
	HoldExpiresAt   *time.Time // reservations.hold_expires_at (nullable)
	ConfirmedAt     *time.Time // reservations.confirmed_at (nullable)
	CreatedAt       time.Time  // reservations.created_at
	UpdatedAt       time.Time  // reservations.updated_at
}

// HoldLapsed reports whether r is HELD and its hold expiry is not after now.
func (r *Reservation) HoldLapsed(now time.Time) bool {
	return r.Status == StatusHeld && (r.HoldExpiresAt == nil || !now.Before(*r.HoldExpiresAt))
}

// EffectiveStatus is the status as seen at now.  A HELD row whose hold has
// lapsed reads as EXPIRED even when no sweep has relabelled it yet.
func (r *Reservation) EffectiveStatus(now time.Time) Status {
	if r.HoldLapsed(now) {
		return StatusExpired
	}
	return r.Status
}

// Active reports whether r still claims its seats at now.
func (r *Reservation) Active(now time.Time) bool {
	switch r.EffectiveStatus(now) {
	case StatusHeld, StatusConfirmed:
		return true
	}
	return false
}

// ReservationSeat is one seat line of a reservation.  The price is frozen
// when the hold is placed and never recalculated.
//
// Fields:
//  ID                  – primary key identifier.
//  ReservationID       – owning reservation.
//  ShowtimeID          – showtime of the owning reservation.
//  SeatID              – seat being claimed.
//  PriceAtBookingCents – line price at hold time.
type ReservationSeat struct {
	ID                  uint64 // reservation_seats.id
	ReservationID       uint64 // reservation_seats.reservation_id
	ShowtimeID          uint64 // reservation_seats.showtime_id
	SeatID              uint64 // reservation_seats.seat_id
	PriceAtBookingCents int64  // reservation_seats.price_at_booking_cents
}
