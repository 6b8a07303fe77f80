package booking

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/iliyamo/showtime-booking/internal/model"
	"github.com/iliyamo/showtime-booking/internal/queue"
)

// ConfirmResult is returned by a successful Confirm.
type ConfirmResult struct {
	ReservationID   uint64       `json:"reservation_id"`
	Status          model.Status `json:"status"`
	TotalPriceCents int64        `json:"total_price_cents"`
}

// CancelResult is returned by a successful Cancel.  RefundDueCents is the
// amount the payment side owes back: the total for a confirmed booking,
// zero for a hold.
type CancelResult struct {
	ReservationID  uint64       `json:"reservation_id"`
	Status         model.Status `json:"status"`
	RefundDueCents int64        `json:"refund_due_cents"`
}

// SeatLine is one priced seat of a reservation as shown to its owner.
type SeatLine struct {
	SeatID     uint64 `json:"seat_id"`
	PriceCents int64  `json:"price_cents"`
}

// ReservationView is a reservation as seen at a point in time: a lapsed
// hold reads as EXPIRED.
type ReservationView struct {
	ID              uint64       `json:"id"`
	UserID          uint64       `json:"user_id"`
	ShowtimeID      uint64       `json:"showtime_id"`
	Status          model.Status `json:"status"`
	TotalPriceCents int64        `json:"total_price_cents"`
	HoldExpiresAt   *time.Time   `json:"hold_expires_at,omitempty"`
	ConfirmedAt     *time.Time   `json:"confirmed_at,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	Seats           []SeatLine   `json:"seats"`
}

// Lifecycle confirms and cancels reservations.  Every state change goes
// through model.Status.CanTransition under the store's row lock.
type Lifecycle struct {
	store Store
	opts  options
}

func NewLifecycle(store Store, opts ...Option) *Lifecycle {
	return &Lifecycle{store: store, opts: buildOptions(opts)}
}

// Confirm makes caller's hold final.  It succeeds only while the hold is
// HELD and unexpired; on failure nothing is written.
func (l *Lifecycle) Confirm(ctx context.Context, caller Caller, reservationID uint64) (_ *ConfirmResult, err error) {
	ctx, span := l.opts.tracer.Start(ctx, "booking.Confirm", trace.WithAttributes(
		attribute.Int64("reservation_id", int64(reservationID))))
	defer func() { endSpan(span, err) }()

	// Read under the row lock so a concurrent reclaim is not outrun.
	var now time.Time
	res, seatIDs, err := l.store.UpdateReservation(ctx, reservationID, func(r *model.Reservation) error {
		now = l.opts.clock()
		if r.UserID != caller.ID {
			return fmt.Errorf("%w: reservation %d belongs to another user", ErrForbidden, r.ID)
		}
		// A sweep may already have relabelled the hold; both forms read as expired.
		if r.EffectiveStatus(now) == model.StatusExpired {
			return fmt.Errorf("%w: hold of reservation %d has lapsed", ErrExpired, r.ID)
		}
		if !r.Status.CanTransition(model.StatusConfirmed) {
			return fmt.Errorf("%w: cannot confirm a %s reservation", ErrInvalidState, r.Status)
		}
		r.Status = model.StatusConfirmed
		r.ConfirmedAt = &now
		r.HoldExpiresAt = nil
		r.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.opts.releaseMarkers(ctx, res.ShowtimeID, seatIDs, res.ID)
	ev := queue.NewReservationEvent(queue.EventConfirmed, res.ID, res.UserID, res.ShowtimeID, seatIDs, now)
	ev.TotalPriceCents = res.TotalPriceCents
	l.opts.publish(ctx, ev)

	l.opts.log.Info("reservation confirmed",
		zap.Uint64("reservation_id", res.ID), zap.Uint64("user_id", res.UserID))
	return &ConfirmResult{ReservationID: res.ID, Status: res.Status, TotalPriceCents: res.TotalPriceCents}, nil
}

// Cancel releases caller's reservation.  Its seats are free for new holds
// as soon as Cancel returns.
func (l *Lifecycle) Cancel(ctx context.Context, caller Caller, reservationID uint64) (_ *CancelResult, err error) {
	ctx, span := l.opts.tracer.Start(ctx, "booking.Cancel", trace.WithAttributes(
		attribute.Int64("reservation_id", int64(reservationID))))
	defer func() { endSpan(span, err) }()

	var (
		now   time.Time
		prior model.Status
	)
	res, seatIDs, err := l.store.UpdateReservation(ctx, reservationID, func(r *model.Reservation) error {
		now = l.opts.clock()
		if r.UserID != caller.ID {
			return fmt.Errorf("%w: reservation %d belongs to another user", ErrForbidden, r.ID)
		}
		prior = r.EffectiveStatus(now)
		if !prior.CanTransition(model.StatusCancelled) {
			return fmt.Errorf("%w: cannot cancel a %s reservation", ErrInvalidState, prior)
		}
		r.Status = model.StatusCancelled
		r.HoldExpiresAt = nil
		r.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	var refund int64
	if prior == model.StatusConfirmed {
		refund = res.TotalPriceCents
	}

	l.opts.releaseMarkers(ctx, res.ShowtimeID, seatIDs, res.ID)
	ev := queue.NewReservationEvent(queue.EventCancelled, res.ID, res.UserID, res.ShowtimeID, seatIDs, now)
	ev.TotalPriceCents = res.TotalPriceCents
	ev.RefundDueCents = refund
	l.opts.publish(ctx, ev)

	l.opts.log.Info("reservation cancelled",
		zap.Uint64("reservation_id", res.ID),
		zap.String("prior_status", prior.String()),
		zap.Int64("refund_due_cents", refund))
	return &CancelResult{ReservationID: res.ID, Status: res.Status, RefundDueCents: refund}, nil
}

// Get returns caller's reservation with its seat lines.
func (l *Lifecycle) Get(ctx context.Context, caller Caller, reservationID uint64) (_ *ReservationView, err error) {
	ctx, span := l.opts.tracer.Start(ctx, "booking.Get", trace.WithAttributes(
		attribute.Int64("reservation_id", int64(reservationID))))
	defer func() { endSpan(span, err) }()

	res, lines, err := l.store.GetReservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if res.UserID != caller.ID {
		return nil, fmt.Errorf("%w: reservation %d belongs to another user", ErrForbidden, res.ID)
	}
	now := l.opts.clock()
	view := &ReservationView{
		ID:              res.ID,
		UserID:          res.UserID,
		ShowtimeID:      res.ShowtimeID,
		Status:          res.EffectiveStatus(now),
		TotalPriceCents: res.TotalPriceCents,
		HoldExpiresAt:   res.HoldExpiresAt,
		ConfirmedAt:     res.ConfirmedAt,
		CreatedAt:       res.CreatedAt,
		Seats:           make([]SeatLine, 0, len(lines)),
	}
	for _, ln := range lines {
		view.Seats = append(view.Seats, SeatLine{SeatID: ln.SeatID, PriceCents: ln.PriceAtBookingCents})
	}
	return view, nil
}
