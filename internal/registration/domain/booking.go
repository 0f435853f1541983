package domain

import "time"

// Booking is the relational fact that a registrant holds a seat in a
// session. The (RegistrantID, SessionID) pair is unique; the set of
// bookings for a registrant is the source of truth for their selections.
type Booking struct {
	RegistrantID string
	SessionID    string
	SelectedAt   time.Time
}
