package booking

import (
	"context"
	"time"
)

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether a and b share any instant.  Touching ranges
// (a.End == b.Start) do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// OverlapValidator rejects showtimes that collide with another showtime in
// the same auditorium.  The catalog calls it before writing a showtime.
type OverlapValidator struct {
	schedule ShowtimeSchedule
}

func NewOverlapValidator(schedule ShowtimeSchedule) *OverlapValidator {
	return &OverlapValidator{schedule: schedule}
}

// ValidateNoOverlap returns nil when [startsAt, endsAt) is free in the
// auditorium, ignoring excludeShowtimeID (the showtime being updated) and
// cancelled showtimes.
func (v *OverlapValidator) ValidateNoOverlap(ctx context.Context, auditoriumID uint64, startsAt, endsAt time.Time, excludeShowtimeID *uint64) error {
	if auditoriumID == 0 {
		return validationf("auditorium id is required")
	}
	if startsAt.IsZero() || endsAt.IsZero() {
		return validationf("starts_at and ends_at are required")
	}
	if !endsAt.After(startsAt) {
		return validationf("ends_at must be after starts_at")
	}
	ids, err := v.schedule.FindOverlapping(ctx, auditoriumID, startsAt.UTC(), endsAt.UTC(), excludeShowtimeID)
	if err != nil {
		return err
	}
	if len(ids) > 0 {
		return &OverlapError{AuditoriumID: auditoriumID, ShowtimeIDs: ids}
	}
	return nil
}
