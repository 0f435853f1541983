package domain

import (
	"errors"
	"strings"
)

var (
	// ErrEmptySessionID indicates a missing session ID.
	ErrEmptySessionID = errors.New("session id is required")
	// ErrEmptySchedule indicates a session without a date or start time.
	ErrEmptySchedule = errors.New("session date and time are required")
	// ErrInvalidCapacity indicates a non-positive seating capacity.
	ErrInvalidCapacity = errors.New("session capacity must be greater than zero")
)

// Slot is the (date, time) pair that defines mutual exclusivity across
// sessions for one registrant. Two sessions sharing a slot cannot both be
// held by the same attendee, regardless of room.
type Slot struct {
	Date string
	Time string
}

// String renders the slot for rejection details and log lines.
func (s Slot) String() string {
	return s.Date + " " + s.Time
}

// Session is one bookable, time-slotted talk with fixed seating capacity.
// Occupied is mutated only through the seat ledger's conditional update.
type Session struct {
	ID        string
	Date      string
	Time      string
	Room      string
	Title     string
	Speaker   string
	Country   string
	Capacity  int
	Occupied  int
	Available bool
}

// Slot returns the session's mutual-exclusion key.
func (s Session) Slot() Slot {
	return Slot{Date: s.Date, Time: s.Time}
}

// SeatsLeft returns the number of unreserved seats, floored at zero.
func (s Session) SeatsLeft() int {
	left := s.Capacity - s.Occupied
	if left < 0 {
		return 0
	}
	return left
}

// NormalizeSession trims catalog fields and validates the invariants a
// seeded session must satisfy.
func NormalizeSession(s Session) (Session, error) {
	s.ID = strings.TrimSpace(s.ID)
	s.Date = strings.TrimSpace(s.Date)
	s.Time = strings.TrimSpace(s.Time)
	s.Room = strings.TrimSpace(s.Room)
	s.Title = strings.TrimSpace(s.Title)
	s.Speaker = strings.TrimSpace(s.Speaker)
	s.Country = strings.TrimSpace(s.Country)

	if s.ID == "" {
		return Session{}, ErrEmptySessionID
	}
	if s.Date == "" || s.Time == "" {
		return Session{}, ErrEmptySchedule
	}
	if s.Capacity <= 0 {
		return Session{}, ErrInvalidCapacity
	}
	if s.Occupied < 0 {
		s.Occupied = 0
	}
	return s, nil
}
