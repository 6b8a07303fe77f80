package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/showtime-booking/internal/booking"
	"github.com/iliyamo/showtime-booking/internal/model"
)

// ShowtimeRepo reads the showtimes table.  Writes belong to the catalog.
type ShowtimeRepo struct {
	db *sql.DB
}

// NewShowtimeRepo returns a ShowtimeRepo bound to the given database.
func NewShowtimeRepo(db *sql.DB) *ShowtimeRepo { return &ShowtimeRepo{db: db} }

// GetShowtime loads one showtime.  Missing rows yield booking.ErrNotFound.
func (r *ShowtimeRepo) GetShowtime(ctx context.Context, id uint64) (*model.Showtime, error) {
	const q = `SELECT id, movie_id, auditorium_id, starts_at, ends_at, base_price_cents, cancelled
               FROM showtimes WHERE id = ?`
	var s model.Showtime
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&s.ID, &s.MovieID, &s.AuditoriumID, &s.StartsAt, &s.EndsAt, &s.BasePriceCents, &s.Cancelled,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: showtime %d", booking.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// FindOverlapping returns the ids of non-cancelled showtimes in the
// auditorium whose [starts_at, ends_at) intersects [start, end).  Touching
// ranges are not returned.  excludeID skips the showtime being updated.
func (r *ShowtimeRepo) FindOverlapping(ctx context.Context, auditoriumID uint64, start, end time.Time, excludeID *uint64) ([]uint64, error) {
	q := `SELECT id FROM showtimes
          WHERE auditorium_id = ? AND cancelled = 0 AND starts_at < ? AND ends_at > ?`
	args := []interface{}{auditoriumID, end, start}
	if excludeID != nil {
		q += ` AND id <> ?`
		args = append(args, *excludeID)
	}
	q += ` ORDER BY starts_at`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}
