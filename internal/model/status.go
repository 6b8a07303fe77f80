package model

import "fmt"

// Status is the lifecycle state of a reservation.  The set is closed: a
// value outside the constants below is rejected by ParseStatus and never
// written to the database.
type Status string

const (
	StatusHeld      Status = "HELD"      // seats are claimed until hold_expires_at
	StatusConfirmed Status = "CONFIRMED" // booking is final
	StatusCancelled Status = "CANCELLED" // released by the owner
	StatusExpired   Status = "EXPIRED"   // hold lapsed without confirmation
	StatusCompleted Status = "COMPLETED" // showtime has been played
)

// transitions lists the allowed next states for every non-terminal status.
// Statuses missing from the map are terminal.
var transitions = map[Status][]Status{
	StatusHeld:      {StatusConfirmed, StatusCancelled, StatusExpired},
	StatusConfirmed: {StatusCancelled, StatusCompleted},
}

// ParseStatus converts the stored ENUM value into a Status.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusHeld, StatusConfirmed, StatusCancelled, StatusExpired, StatusCompleted:
		return st, nil
	}
	return "", fmt.Errorf("unknown reservation status %q", s)
}

// CanTransition reports whether a reservation in status s may move to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible from s.
func (s Status) Terminal() bool { return len(transitions[s]) == 0 }

func (s Status) String() string { return string(s) }
