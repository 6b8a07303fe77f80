// Package bookingtest provides in-memory implementations of the booking
// ports for tests.
package bookingtest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/showtime-booking/internal/booking"
	"github.com/iliyamo/showtime-booking/internal/model"
	"github.com/iliyamo/showtime-booking/internal/queue"
)

// Catalog is an in-memory showtime and seat catalog.  It also answers
// schedule overlap queries.
type Catalog struct {
	mu        sync.RWMutex
	showtimes map[uint64]model.Showtime
	seats     map[uint64]model.Seat
}

func NewCatalog() *Catalog {
	return &Catalog{showtimes: map[uint64]model.Showtime{}, seats: map[uint64]model.Seat{}}
}

func (c *Catalog) AddShowtime(s model.Showtime) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.showtimes[s.ID] = s
}

func (c *Catalog) AddSeats(seats ...model.Seat) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range seats {
		c.seats[s.ID] = s
	}
}

func (c *Catalog) GetShowtime(_ context.Context, id uint64) (*model.Showtime, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.showtimes[id]
	if !ok {
		return nil, fmt.Errorf("%w: showtime %d", booking.ErrNotFound, id)
	}
	return &s, nil
}

// GetSeatsByIDs omits unknown ids, like an IN query would.
func (c *Catalog) GetSeatsByIDs(_ context.Context, ids []uint64) ([]model.Seat, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.Seat, 0, len(ids))
	for _, id := range ids {
		if s, ok := c.seats[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (c *Catalog) ListSeats(_ context.Context, auditoriumID uint64) ([]model.Seat, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []model.Seat
	for _, s := range c.seats {
		if s.AuditoriumID == auditoriumID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *Catalog) FindOverlapping(_ context.Context, auditoriumID uint64, startsAt, endsAt time.Time, excludeID *uint64) ([]uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	want := booking.Interval{Start: startsAt, End: endsAt}
	var ids []uint64
	for _, s := range c.showtimes {
		if s.AuditoriumID != auditoriumID || s.Cancelled {
			continue
		}
		if excludeID != nil && s.ID == *excludeID {
			continue
		}
		if booking.Overlaps(want, booking.Interval{Start: s.StartsAt, End: s.EndsAt}) {
			ids = append(ids, s.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Store is an in-memory reservation store.  A single mutex serialises the
// check and insert of CreateHold.
type Store struct {
	mu           sync.Mutex
	nextID       uint64
	reservations map[uint64]model.Reservation
	lines        map[uint64][]model.ReservationSeat

	// CreateErr, when set, is returned by the next CreateHold calls
	// without writing anything.
	CreateErr error
}

func NewStore() *Store {
	return &Store{reservations: map[uint64]model.Reservation{}, lines: map[uint64][]model.ReservationSeat{}}
}

func (s *Store) CreateHold(_ context.Context, res *model.Reservation, lines []model.ReservationSeat, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CreateErr != nil {
		return s.CreateErr
	}

	var taken []uint64
	for _, ln := range lines {
		if s.activeClaimLocked(res.ShowtimeID, ln.SeatID, now) {
			taken = append(taken, ln.SeatID)
		}
	}
	if len(taken) > 0 {
		return &booking.SeatConflictError{ShowtimeID: res.ShowtimeID, SeatIDs: taken}
	}

	s.nextID++
	res.ID = s.nextID
	stored := make([]model.ReservationSeat, len(lines))
	for i, ln := range lines {
		ln.ID = uint64(i + 1)
		ln.ReservationID = res.ID
		ln.ShowtimeID = res.ShowtimeID
		stored[i] = ln
	}
	s.reservations[res.ID] = *res
	s.lines[res.ID] = stored
	return nil
}

func (s *Store) activeClaimLocked(showtimeID, seatID uint64, now time.Time) bool {
	for id, r := range s.reservations {
		if r.ShowtimeID != showtimeID || !r.Active(now) {
			continue
		}
		for _, ln := range s.lines[id] {
			if ln.SeatID == seatID {
				return true
			}
		}
	}
	return false
}

// UpdateReservation enforces the same transition and claim ownership rules
// as the MySQL repository.
func (s *Store) UpdateReservation(_ context.Context, id uint64, fn func(r *model.Reservation) error) (*model.Reservation, []uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[id]
	if !ok {
		return nil, nil, fmt.Errorf("%w: reservation %d", booking.ErrNotFound, id)
	}
	before := r.Status
	if err := fn(&r); err != nil {
		return nil, nil, err
	}
	if r.Status != before && !before.CanTransition(r.Status) {
		return nil, nil, fmt.Errorf("%w: %s -> %s", booking.ErrInvalidState, before, r.Status)
	}
	if r.Status != before && r.Status == model.StatusConfirmed {
		for _, ln := range s.lines[id] {
			if s.claimedByOtherLocked(id, r.ShowtimeID, ln.SeatID, r.UpdatedAt) {
				return nil, nil, fmt.Errorf("%w: seat %d of reservation %d was taken by another hold", booking.ErrExpired, ln.SeatID, id)
			}
		}
	}
	s.reservations[id] = r
	return &r, s.seatIDsLocked(id), nil
}

func (s *Store) claimedByOtherLocked(self, showtimeID, seatID uint64, now time.Time) bool {
	for id, r := range s.reservations {
		if id == self || r.ShowtimeID != showtimeID || !r.Active(now) {
			continue
		}
		for _, ln := range s.lines[id] {
			if ln.SeatID == seatID {
				return true
			}
		}
	}
	return false
}

func (s *Store) GetReservation(_ context.Context, id uint64) (*model.Reservation, []model.ReservationSeat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[id]
	if !ok {
		return nil, nil, fmt.Errorf("%w: reservation %d", booking.ErrNotFound, id)
	}
	return &r, append([]model.ReservationSeat(nil), s.lines[id]...), nil
}

func (s *Store) SeatClaims(_ context.Context, showtimeID uint64, seatIDs []uint64) ([]model.SeatClaim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := make(map[uint64]bool, len(seatIDs))
	for _, id := range seatIDs {
		want[id] = true
	}
	var out []model.SeatClaim
	for id, r := range s.reservations {
		if r.ShowtimeID != showtimeID {
			continue
		}
		if r.Status != model.StatusHeld && r.Status != model.StatusConfirmed {
			continue
		}
		for _, ln := range s.lines[id] {
			if want[ln.SeatID] {
				out = append(out, model.SeatClaim{
					SeatID: ln.SeatID, ReservationID: id, Status: r.Status, HoldExpiresAt: r.HoldExpiresAt,
				})
			}
		}
	}
	return out, nil
}

func (s *Store) ListLapsedHolds(_ context.Context, now time.Time, limit int) ([]uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uint64
	for id, r := range s.reservations {
		if r.HoldLapsed(now) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// Reservation returns a copy of the stored row, bypassing any lazy expiry.
func (s *Store) Reservation(id uint64) (model.Reservation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[id]
	return r, ok
}

// ActiveSeats counts active seat lines of a showtime at now.
func (s *Store) ActiveSeats(showtimeID uint64, now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, r := range s.reservations {
		if r.ShowtimeID == showtimeID && r.Active(now) {
			n += len(s.lines[id])
		}
	}
	return n
}

func (s *Store) seatIDsLocked(id uint64) []uint64 {
	ids := make([]uint64, 0, len(s.lines[id]))
	for _, ln := range s.lines[id] {
		ids = append(ids, ln.SeatID)
	}
	return ids
}

// Publisher records published events.
type Publisher struct {
	mu     sync.Mutex
	events []queue.ReservationEvent
	Err    error
}

func (p *Publisher) Publish(_ context.Context, ev queue.ReservationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *Publisher) Events() []queue.ReservationEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]queue.ReservationEvent(nil), p.events...)
}

// Clock is a settable clock for tests.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(t time.Time) *Clock { return &Clock{now: t} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
