// Package pricing computes seat line prices and reservation totals.  All
// amounts are integer cents.
package pricing

import (
	"errors"
	"fmt"
)

// ErrNonPositivePrice is returned when a seat would be sold for zero or less.
var ErrNonPositivePrice = errors.New("non-positive price")

// Line is the priced form of one seat.
type Line struct {
	SeatID     uint64
	PriceCents int64
}

// LinePrice returns base + modifier.  A modifier may be negative as long as
// the resulting price stays above zero.
func LinePrice(baseCents, modifierCents int64) (int64, error) {
	p := baseCents + modifierCents
	if p <= 0 {
		return 0, fmt.Errorf("%w: base %d modifier %d", ErrNonPositivePrice, baseCents, modifierCents)
	}
	return p, nil
}

// Total sums the line prices.
func Total(lines []Line) int64 {
	var sum int64
	for _, l := range lines {
		sum += l.PriceCents
	}
	return sum
}
