// Package booking holds the seat reservation core: placing holds, reading
// seat availability, confirming or cancelling reservations, sweeping lapsed
// holds and validating showtime schedules.
package booking

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Sentinel errors returned by every operation of the package.  Callers
// match them with errors.Is; the HTTP layer maps each one to a status code.
var (
	// ErrNotFound means a showtime, seat or reservation does not exist or
	// is not usable (cancelled showtime, inactive seat).
	ErrNotFound = errors.New("not found")

	// ErrConflict means a seat is already claimed by an active reservation
	// or a showtime overlaps another one in the same auditorium.
	ErrConflict = errors.New("conflict")

	// ErrExpired means the hold lapsed before it was confirmed.
	ErrExpired = errors.New("hold expired")

	// ErrForbidden means the caller does not own the reservation.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidState means the operation is not allowed from the
	// reservation's current status.
	ErrInvalidState = errors.New("invalid state")

	// ErrValidation means the input was malformed.
	ErrValidation = errors.New("validation failed")
)

// SeatConflictError lists the seats that could not be held.  It matches
// ErrConflict.
type SeatConflictError struct {
	ShowtimeID uint64
	SeatIDs    []uint64
}

func (e *SeatConflictError) Error() string {
	return fmt.Sprintf("conflict: seats %s of showtime %d are not available", joinIDs(e.SeatIDs), e.ShowtimeID)
}

func (e *SeatConflictError) Is(target error) bool { return target == ErrConflict }

// OverlapError lists the showtimes a proposed schedule collides with.  It
// matches ErrConflict.
type OverlapError struct {
	AuditoriumID uint64
	ShowtimeIDs  []uint64
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("conflict: auditorium %d already has showtimes %s in that window", e.AuditoriumID, joinIDs(e.ShowtimeIDs))
}

func (e *OverlapError) Is(target error) bool { return target == ErrConflict }

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func joinIDs(ids []uint64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatUint(id, 10)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
