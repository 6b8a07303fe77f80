package booking

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/iliyamo/showtime-booking/internal/model"
	"github.com/iliyamo/showtime-booking/internal/queue"
)

// Roles carried by a verified caller identity.
const (
	RoleCustomer = "CUSTOMER"
	RoleAdmin    = "ADMIN"
)

// Caller is the verified identity of whoever invokes an operation.  It is
// always passed explicitly; nothing in this package reads request-scoped
// globals.
type Caller struct {
	ID   uint64
	Role string
}

// Catalog is the read-only view of showtimes and seats.  Missing rows are
// reported as ErrNotFound.
type Catalog interface {
	GetShowtime(ctx context.Context, id uint64) (*model.Showtime, error)
	GetSeatsByIDs(ctx context.Context, ids []uint64) ([]model.Seat, error)
	ListSeats(ctx context.Context, auditoriumID uint64) ([]model.Seat, error)
}

// ShowtimeSchedule answers overlap queries for the schedule validator.
type ShowtimeSchedule interface {
	FindOverlapping(ctx context.Context, auditoriumID uint64, startsAt, endsAt time.Time, excludeID *uint64) ([]uint64, error)
}

// Store is the authoritative reservation record.
type Store interface {
	// CreateHold atomically checks that no seat in lines has an active
	// claim at now and inserts res with its lines.  On success res.ID is
	// set.  A lost race is reported as ErrConflict.
	CreateHold(ctx context.Context, res *model.Reservation, lines []model.ReservationSeat, now time.Time) error

	// UpdateReservation locks reservation id, lets fn mutate it and
	// persists the result.  If fn returns an error nothing is written.
	// The seat ids of the reservation are returned alongside.
	UpdateReservation(ctx context.Context, id uint64, fn func(r *model.Reservation) error) (*model.Reservation, []uint64, error)

	GetReservation(ctx context.Context, id uint64) (*model.Reservation, []model.ReservationSeat, error)

	// SeatClaims returns the HELD and CONFIRMED claims on the given seats.
	// Expiry is left to the caller.
	SeatClaims(ctx context.Context, showtimeID uint64, seatIDs []uint64) ([]model.SeatClaim, error)

	// ListLapsedHolds returns up to limit ids of HELD reservations whose
	// hold expired at or before now.
	ListLapsedHolds(ctx context.Context, now time.Time, limit int) ([]uint64, error)
}

// HoldIndex is the ephemeral, TTL-expiring mirror of active holds.  It is
// never authoritative; every implementation error is tolerated.
type HoldIndex interface {
	Hold(ctx context.Context, showtimeID uint64, seatIDs []uint64, reservationID uint64, ttl time.Duration) error
	Release(ctx context.Context, showtimeID uint64, seatIDs []uint64, reservationID uint64) error
	Lookup(ctx context.Context, showtimeID uint64, seatIDs []uint64) (map[uint64]uint64, error)
}

// EventPublisher ships lifecycle events to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.ReservationEvent) error
}

const (
	DefaultHoldTTL         = 10 * time.Minute
	DefaultMaxSeatsPerHold = 20
)

type options struct {
	now      func() time.Time
	log      *zap.Logger
	index    HoldIndex
	events   EventPublisher
	holdTTL  time.Duration
	maxSeats int
	tracer   trace.Tracer
}

// Option customises the components of this package.
type Option func(*options)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets the logger used for best-effort failures.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithHoldIndex enables the ephemeral hold mirror.
func WithHoldIndex(idx HoldIndex) Option {
	return func(o *options) {
		if idx != nil {
			o.index = idx
		}
	}
}

// WithPublisher enables lifecycle events.
func WithPublisher(p EventPublisher) Option {
	return func(o *options) {
		if p != nil {
			o.events = p
		}
	}
}

// WithHoldTTL overrides the default hold duration.
func WithHoldTTL(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.holdTTL = d
		}
	}
}

// WithMaxSeatsPerHold bounds the number of seats in one hold.
func WithMaxSeatsPerHold(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxSeats = n
		}
	}
}

// WithTracer replaces the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) {
		if t != nil {
			o.tracer = t
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		now:      time.Now,
		log:      zap.NewNop(),
		index:    nopIndex{},
		events:   nopPublisher{},
		holdTTL:  DefaultHoldTTL,
		maxSeats: DefaultMaxSeatsPerHold,
		tracer:   otel.Tracer("showtime-booking/booking"),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) clock() time.Time { return o.now().UTC() }

// releaseMarkers drops index entries of a reservation and logs failures.
func (o options) releaseMarkers(ctx context.Context, showtimeID uint64, seatIDs []uint64, reservationID uint64) {
	if len(seatIDs) == 0 {
		return
	}
	if err := o.index.Release(ctx, showtimeID, seatIDs, reservationID); err != nil {
		o.log.Warn("hold index release failed",
			zap.Uint64("reservation_id", reservationID), zap.Error(err))
	}
}

func (o options) publish(ctx context.Context, ev queue.ReservationEvent) {
	if err := o.events.Publish(ctx, ev); err != nil {
		o.log.Warn("publish reservation event failed",
			zap.String("type", string(ev.Type)),
			zap.Uint64("reservation_id", ev.ReservationID),
			zap.Error(err))
	}
}

type nopIndex struct{}

func (nopIndex) Hold(context.Context, uint64, []uint64, uint64, time.Duration) error { return nil }
func (nopIndex) Release(context.Context, uint64, []uint64, uint64) error             { return nil }
func (nopIndex) Lookup(context.Context, uint64, []uint64) (map[uint64]uint64, error) {
	return nil, nil
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, queue.ReservationEvent) error { return nil }
