package booking

import (
	"context"
	"fmt"

	"github.com/iliyamo/showtime-booking/internal/model"
	"github.com/iliyamo/showtime-booking/internal/pricing"
)

// SeatStatus is the availability of one seat in a showtime.
type SeatStatus struct {
	SeatID     uint64          `json:"seat_id"`
	RowLabel   string          `json:"row_label,omitempty"`
	SeatNumber uint32          `json:"seat_number,omitempty"`
	SeatType   string          `json:"seat_type,omitempty"`
	PriceCents int64           `json:"price_cents,omitempty"`
	Status     model.SeatState `json:"status"`
}

// StatusReader answers availability questions from the store.  Lapsed
// holds are treated as released whether or not a sweep has run.
type StatusReader struct {
	catalog Catalog
	store   Store
	opts    options
}

func NewStatusReader(catalog Catalog, store Store, opts ...Option) *StatusReader {
	return &StatusReader{catalog: catalog, store: store, opts: buildOptions(opts)}
}

// GetSeatStatus reports whether seatID is available, held or booked for
// showtimeID.
func (s *StatusReader) GetSeatStatus(ctx context.Context, showtimeID, seatID uint64) (model.SeatState, error) {
	st, err := s.catalog.GetShowtime(ctx, showtimeID)
	if err != nil {
		return "", err
	}
	seats, err := s.catalog.GetSeatsByIDs(ctx, []uint64{seatID})
	if err != nil {
		return "", err
	}
	if len(seats) != 1 || seats[0].AuditoriumID != st.AuditoriumID {
		return "", fmt.Errorf("%w: seat %d is not part of showtime %d", ErrNotFound, seatID, showtimeID)
	}
	claims, err := s.store.SeatClaims(ctx, showtimeID, []uint64{seatID})
	if err != nil {
		return "", err
	}
	return model.StateOf(claims, s.opts.clock()), nil
}

// SeatMap lists every active seat of the showtime's auditorium with its
// current availability and line price.
func (s *StatusReader) SeatMap(ctx context.Context, showtimeID uint64) ([]SeatStatus, error) {
	st, err := s.catalog.GetShowtime(ctx, showtimeID)
	if err != nil {
		return nil, err
	}
	seats, err := s.catalog.ListSeats(ctx, st.AuditoriumID)
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(seats))
	for _, seat := range seats {
		if seat.IsActive {
			ids = append(ids, seat.ID)
		}
	}
	var claims []model.SeatClaim
	if len(ids) > 0 {
		if claims, err = s.store.SeatClaims(ctx, showtimeID, ids); err != nil {
			return nil, err
		}
	}
	bySeat := make(map[uint64][]model.SeatClaim, len(claims))
	for _, c := range claims {
		bySeat[c.SeatID] = append(bySeat[c.SeatID], c)
	}

	now := s.opts.clock()
	out := make([]SeatStatus, 0, len(ids))
	for _, seat := range seats {
		if !seat.IsActive {
			continue
		}
		// Seats the pricing rules reject are still listed, without a price.
		price, perr := pricing.LinePrice(st.BasePriceCents, seat.PriceModifierCents)
		if perr != nil {
			price = 0
		}
		out = append(out, SeatStatus{
			SeatID:     seat.ID,
			RowLabel:   seat.RowLabel,
			SeatNumber: seat.SeatNumber,
			SeatType:   seat.SeatType,
			PriceCents: price,
			Status:     model.StateOf(bySeat[seat.ID], now),
		})
	}
	return out, nil
}
