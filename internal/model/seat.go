package model

// Seat describes a physical seat in an auditorium.  Seats are owned by the
// catalog and are read-only here; only IsActive ever changes after creation.
//
// Fields:
//  ID                 – primary key identifier.
//  AuditoriumID       – auditorium to which this seat belongs.
//  RowLabel           – letter or string designating the row.
//  SeatNumber         – number of the seat within the row.
//  SeatType           – STANDARD, VIP or ACCESSIBLE.
//  PriceModifierCents – added to the showtime base price; may be negative.
//  IsActive           – inactive seats cannot be held.
type Seat struct {
	ID                 uint64 // seats.id
	AuditoriumID       uint64 // seats.auditorium_id
	RowLabel           string // seats.row_label
	SeatNumber         uint32 // seats.seat_number
	SeatType           string // seats.seat_type
	PriceModifierCents int64  // seats.price_modifier_cents
	IsActive           bool   // seats.is_active
}

// SeatState is the availability of a seat for one showtime.
type SeatState string

const (
	SeatAvailable SeatState = "available"
	SeatHeld      SeatState = "held"
	SeatBooked    SeatState = "booked"
)
