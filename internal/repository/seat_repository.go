package repository // repository defines data access for seats

import (
	"context"      // context allows query cancellation and timeouts
	"database/sql" // sql provides DB primitives

	"github.com/iliyamo/showtime-booking/internal/model"
)

// SeatRepo reads the seats table.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo constructs a SeatRepo with the given DB handle.
func NewSeatRepo(db *sql.DB) *SeatRepo {
	return &SeatRepo{db: db}
}

const seatColumns = `id, auditorium_id, row_label, seat_number, seat_type, price_modifier_cents, is_active`

// GetSeatsByIDs returns the seats that exist among ids.  Unknown ids are
// simply absent from the result; callers compare lengths.
func (r *SeatRepo) GetSeatsByIDs(ctx context.Context, ids []uint64) ([]model.Seat, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := `SELECT ` + seatColumns + ` FROM seats WHERE id IN (` + placeholders(len(ids)) + `)`
	return r.query(ctx, q, uint64Args(ids)...)
}

// ListSeats returns every seat of an auditorium ordered by row then number.
func (r *SeatRepo) ListSeats(ctx context.Context, auditoriumID uint64) ([]model.Seat, error) {
	const q = `SELECT ` + seatColumns + ` FROM seats WHERE auditorium_id = ? ORDER BY row_label, seat_number`
	return r.query(ctx, q, auditoriumID)
}

func (r *SeatRepo) query(ctx context.Context, q string, args ...interface{}) ([]model.Seat, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var seats []model.Seat
	for rows.Next() {
		var s model.Seat
		if err := rows.Scan(&s.ID, &s.AuditoriumID, &s.RowLabel, &s.SeatNumber, &s.SeatType, &s.PriceModifierCents, &s.IsActive); err != nil {
			return nil, err
		}
		seats = append(seats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return seats, nil
}

// Catalog joins the showtime and seat readers into the read-only catalog
// view used by the booking core.
type Catalog struct {
	*ShowtimeRepo
	*SeatRepo
}

func NewCatalog(db *sql.DB) *Catalog {
	return &Catalog{ShowtimeRepo: NewShowtimeRepo(db), SeatRepo: NewSeatRepo(db)}
}
