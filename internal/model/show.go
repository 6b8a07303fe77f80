package model

import "time"

// Showtime is a scheduled screening of a movie in an auditorium.  It is
// owned by the catalog; the booking core only reads it.
//
// Fields:
//  ID             – primary key identifier.
//  MovieID        – movie being screened.
//  AuditoriumID   – auditorium where the screening takes place.
//  StartsAt       – when the showtime begins.
//  EndsAt         – when the showtime ends (after StartsAt).
//  BasePriceCents – price of a seat before its modifier.
//  Cancelled      – cancelled showtimes accept no holds.
type Showtime struct {
	ID             uint64    // showtimes.id
	MovieID        uint64    // showtimes.movie_id
	AuditoriumID   uint64    // showtimes.auditorium_id
	StartsAt       time.Time // showtimes.starts_at
	EndsAt         time.Time // showtimes.ends_at
	BasePriceCents int64     // showtimes.base_price_cents
	Cancelled      bool      // showtimes.cancelled
}

// Bookable reports whether seats of s may be held at now.
func (s *Showtime) Bookable(now time.Time) bool {
	return !s.Cancelled && now.Before(s.StartsAt)
}
