package booking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/iliyamo/showtime-booking/internal/model"
	"github.com/iliyamo/showtime-booking/internal/pricing"
	"github.com/iliyamo/showtime-booking/internal/queue"
)

// HoldResult is returned by a successful HoldSeats.
type HoldResult struct {
	ReservationID   uint64    `json:"reservation_id"`
	ExpiresAt       time.Time `json:"expires_at"`
	TotalPriceCents int64     `json:"total_price_cents"`
	SeatIDs         []uint64  `json:"seat_ids"`
}

// HoldManager turns a seat selection into a time-bounded exclusive claim.
type HoldManager struct {
	catalog Catalog
	store   Store
	opts    options
}

// NewHoldManager wires a HoldManager.  Without WithHoldIndex the ephemeral
// mirror is skipped and every check goes straight to the store.
func NewHoldManager(catalog Catalog, store Store, opts ...Option) *HoldManager {
	return &HoldManager{catalog: catalog, store: store, opts: buildOptions(opts)}
}

// HoldSeats claims every seat in seatIDs for showtimeID on behalf of
// caller.  Either all seats are held or none are.
func (m *HoldManager) HoldSeats(ctx context.Context, caller Caller, showtimeID uint64, seatIDs []uint64) (_ *HoldResult, err error) {
	ctx, span := m.opts.tracer.Start(ctx, "booking.HoldSeats", trace.WithAttributes(
		attribute.Int64("showtime_id", int64(showtimeID)),
		attribute.Int("seat_count", len(seatIDs)),
	))
	defer func() { endSpan(span, err) }()

	if caller.ID == 0 {
		return nil, fmt.Errorf("%w: missing caller identity", ErrForbidden)
	}
	if err := m.validateSelection(showtimeID, seatIDs); err != nil {
		return nil, err
	}

	now := m.opts.clock()

	// Catalog reads stay outside the store transaction.
	st, err := m.catalog.GetShowtime(ctx, showtimeID)
	if err != nil {
		return nil, err
	}
	if !st.Bookable(now) {
		return nil, fmt.Errorf("%w: showtime %d is not open for booking", ErrNotFound, showtimeID)
	}
	seats, err := m.catalog.GetSeatsByIDs(ctx, seatIDs)
	if err != nil {
		return nil, err
	}
	lines, err := priceSeats(st, seatIDs, seats)
	if err != nil {
		return nil, err
	}

	if err := m.precheck(ctx, showtimeID, seatIDs, now); err != nil {
		return nil, err
	}

	expires := now.Add(m.opts.holdTTL)
	res := &model.Reservation{
		UserID:          caller.ID,
		ShowtimeID:      showtimeID,
		Status:          model.StatusHeld,
		TotalPriceCents: pricing.Total(lines),
		HoldExpiresAt:   &expires,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	rows := make([]model.ReservationSeat, len(lines))
	for i, l := range lines {
		rows[i] = model.ReservationSeat{ShowtimeID: showtimeID, SeatID: l.SeatID, PriceAtBookingCents: l.PriceCents}
	}
	if err := m.store.CreateHold(ctx, res, rows, now); err != nil {
		return nil, err
	}

	// The hold is committed; the mirror and the event are best effort.
	if err := m.opts.index.Hold(ctx, showtimeID, seatIDs, res.ID, m.opts.holdTTL); err != nil {
		m.opts.log.Warn("hold index populate failed",
			zap.Uint64("reservation_id", res.ID), zap.Error(err))
	}
	ev := queue.NewReservationEvent(queue.EventHeld, res.ID, caller.ID, showtimeID, seatIDs, now)
	ev.TotalPriceCents = res.TotalPriceCents
	m.opts.publish(ctx, ev)

	m.opts.log.Info("seats held",
		zap.Uint64("reservation_id", res.ID),
		zap.Uint64("user_id", caller.ID),
		zap.Uint64("showtime_id", showtimeID),
		zap.Uint64s("seat_ids", seatIDs),
		zap.Time("expires_at", expires))

	return &HoldResult{
		ReservationID:   res.ID,
		ExpiresAt:       expires,
		TotalPriceCents: res.TotalPriceCents,
		SeatIDs:         append([]uint64(nil), seatIDs...),
	}, nil
}

func (m *HoldManager) validateSelection(showtimeID uint64, seatIDs []uint64) error {
	if showtimeID == 0 {
		return validationf("showtime id is required")
	}
	if len(seatIDs) == 0 {
		return validationf("seat_ids must not be empty")
	}
	if len(seatIDs) > m.opts.maxSeats {
		return validationf("at most %d seats per hold", m.opts.maxSeats)
	}
	seen := make(map[uint64]struct{}, len(seatIDs))
	for _, id := range seatIDs {
		if id == 0 {
			return validationf("seat id must be positive")
		}
		if _, dup := seen[id]; dup {
			return validationf("duplicate seat id %d", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// priceSeats checks every requested seat against the catalog and prices it.
// Lines come back in request order.
func priceSeats(st *model.Showtime, seatIDs []uint64, seats []model.Seat) ([]pricing.Line, error) {
	byID := make(map[uint64]model.Seat, len(seats))
	for _, s := range seats {
		byID[s.ID] = s
	}
	lines := make([]pricing.Line, 0, len(seatIDs))
	for _, id := range seatIDs {
		s, ok := byID[id]
		if !ok || !s.IsActive || s.AuditoriumID != st.AuditoriumID {
			return nil, fmt.Errorf("%w: seat %d is not available in showtime %d", ErrNotFound, id, st.ID)
		}
		p, err := pricing.LinePrice(st.BasePriceCents, s.PriceModifierCents)
		if err != nil {
			return nil, fmt.Errorf("%w: seat %d: %v", ErrValidation, id, err)
		}
		lines = append(lines, pricing.Line{SeatID: id, PriceCents: p})
	}
	return lines, nil
}

// precheck consults the ephemeral index and, for any marker found, asks the
// store whether the claim behind it is still active.  A stale marker never
// blocks a hold; a failing index is ignored.
func (m *HoldManager) precheck(ctx context.Context, showtimeID uint64, seatIDs []uint64, now time.Time) error {
	marked, err := m.opts.index.Lookup(ctx, showtimeID, seatIDs)
	if err != nil {
		m.opts.log.Debug("hold index lookup failed", zap.Error(err))
		return nil
	}
	if len(marked) == 0 {
		return nil
	}
	suspect := make([]uint64, 0, len(marked))
	for seatID := range marked {
		suspect = append(suspect, seatID)
	}
	sort.Slice(suspect, func(i, j int) bool { return suspect[i] < suspect[j] })

	claims, err := m.store.SeatClaims(ctx, showtimeID, suspect)
	if err != nil {
		return err
	}
	if taken := activeSeats(claims, now); len(taken) > 0 {
		return &SeatConflictError{ShowtimeID: showtimeID, SeatIDs: taken}
	}
	return nil
}

func activeSeats(claims []model.SeatClaim, now time.Time) []uint64 {
	var taken []uint64
	seen := map[uint64]bool{}
	for _, c := range claims {
		if c.Active(now) && !seen[c.SeatID] {
			seen[c.SeatID] = true
			taken = append(taken, c.SeatID)
		}
	}
	sort.Slice(taken, func(i, j int) bool { return taken[i] < taken[j] })
	return taken
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		var sc *SeatConflictError
		if errors.As(err, &sc) {
			span.SetAttributes(attribute.Int("conflicting_seats", len(sc.SeatIDs)))
		}
	}
	span.End()
}
