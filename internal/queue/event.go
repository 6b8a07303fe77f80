// Package queue defines the reservation lifecycle messages exchanged over
// RabbitMQ together with their publisher and the audit consumer.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a lifecycle transition.  It doubles as the routing key
// suffix on the reservations exchange.
type EventType string

const (
	EventHeld      EventType = "held"
	EventConfirmed EventType = "confirmed"
	EventCancelled EventType = "cancelled"
	EventExpired   EventType = "expired"
)

// RoutingKey returns the topic routing key for t, e.g. "reservation.held".
func (t EventType) RoutingKey() string { return "reservation." + string(t) }

// ReservationEvent is published after a reservation changes state.  It
// carries enough for downstream consumers (audit log, payment refunds,
// notifications) to act without reading the primary database.
type ReservationEvent struct {
	EventID         string    `json:"event_id"`
	Type            EventType `json:"type"`
	ReservationID   uint64    `json:"reservation_id"`
	UserID          uint64    `json:"user_id"`
	ShowtimeID      uint64    `json:"showtime_id"`
	SeatIDs         []uint64  `json:"seat_ids"`
	TotalPriceCents int64     `json:"total_price_cents"`
	RefundDueCents  int64     `json:"refund_due_cents"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// NewReservationEvent stamps a fresh event id on a lifecycle event.
func NewReservationEvent(t EventType, reservationID, userID, showtimeID uint64, seatIDs []uint64, at time.Time) ReservationEvent {
	return ReservationEvent{
		EventID:       uuid.NewString(),
		Type:          t,
		ReservationID: reservationID,
		UserID:        userID,
		ShowtimeID:    showtimeID,
		SeatIDs:       seatIDs,
		OccurredAt:    at.UTC(),
	}
}
