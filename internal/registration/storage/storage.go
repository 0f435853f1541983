// Package storage defines persistence contracts for registration state.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/andeanconf/registration/internal/registration/domain"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness-constrained record already exists.
var ErrAlreadyExists = errors.New("record already exists")

// PersistResult reports the outcome of one committed registration write.
type PersistResult struct {
	// Registrant is the post-commit row, with SelectedSessions rewritten
	// from the booking truth table inside the same transaction.
	Registrant domain.Registrant
	// Created reports whether this call inserted the registrant row. A
	// concurrent first registration under the same email loses the insert
	// race and commits as an update instead.
	Created bool
	// Duplicates lists the accepted session ids whose booking row already
	// existed, so this call wrote no new booking for them. The caller holds
	// a reserved seat for each and must release it.
	Duplicates []string
}

// RegistrantStore reads attendee identity records.
type RegistrantStore interface {
	GetRegistrantByEmail(ctx context.Context, email string) (domain.Registrant, error)
	GetRegistrant(ctx context.Context, registrantID string) (domain.Registrant, error)
}

// SessionStore maintains the session catalog.
type SessionStore interface {
	// PutSession inserts or updates a catalog row. The occupied counter of
	// an existing row is preserved; only the seat ledger mutates it.
	PutSession(ctx context.Context, session domain.Session) error
	GetSession(ctx context.Context, sessionID string) (domain.Session, error)
	// GetSessionsByIDs returns the catalog rows for the ids that exist.
	// The result is fully materialized; missing ids are simply absent.
	GetSessionsByIDs(ctx context.Context, sessionIDs []string) ([]domain.Session, error)
	// GetSessionOccupancies returns live occupied counters for the given ids.
	GetSessionOccupancies(ctx context.Context, sessionIDs []string) (map[string]int, error)
	ListSessions(ctx context.Context) ([]domain.Session, error)
	SetSessionAvailability(ctx context.Context, sessionID string, available bool) error
}

// SeatLedger enforces occupied <= capacity per session under concurrency.
type SeatLedger interface {
	// ReserveSeat atomically increments occupied if a seat is free. It
	// returns false, without error, when the session is at capacity.
	ReserveSeat(ctx context.Context, sessionID string) (bool, error)
	// ReleaseSeat decrements occupied, floored at zero. It compensates
	// reservations made by an attempt that subsequently failed.
	ReleaseSeat(ctx context.Context, sessionID string) error
}

// BookingStore reads the relational source of truth for selections.
type BookingStore interface {
	ListBookingsByRegistrant(ctx context.Context, registrantID string) ([]domain.Booking, error)
}

// RegistrationStore commits one registration attempt in a single
// transaction: registrant upsert, idempotent booking inserts, and the
// selected-sessions cache rewrite from the booking set.
type RegistrationStore interface {
	PersistRegistration(ctx context.Context, registrant domain.Registrant, accepted []string, selectedAt time.Time) (PersistResult, error)
}

// AuditStore exposes the aggregate reads and corrective writes the
// reconciliation auditor needs.
type AuditStore interface {
	ListRegistrants(ctx context.Context) ([]domain.Registrant, error)
	// ListBookingSessionIDs returns, per registrant, the session ids held
	// in the booking table.
	ListBookingSessionIDs(ctx context.Context) (map[string][]string, error)
	// ListBookingCounts returns, per session, the number of booking rows.
	ListBookingCounts(ctx context.Context) (map[string]int, error)
	RewriteSelectedSessions(ctx context.Context, registrantID string, sessionIDs []string) error
	SetSessionOccupied(ctx context.Context, sessionID string, occupied int) error
}

// Store aggregates every persistence contract the engine needs.
type Store interface {
	RegistrantStore
	SessionStore
	SeatLedger
	BookingStore
	RegistrationStore
	AuditStore
	Close() error
}
