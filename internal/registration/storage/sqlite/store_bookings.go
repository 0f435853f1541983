package sqlite

import (
	"context"
	"fmt"

	"github.com/andeanconf/registration/internal/registration/domain"
	"github.com/andeanconf/registration/internal/registration/storage"
)

// ListBookingsByRegistrant returns the booking truth for one registrant.
func (s *Store) ListBookingsByRegistrant(ctx context.Context, registrantID string) ([]domain.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT registrant_id, session_id, selected_at
		   FROM bookings
		  WHERE registrant_id = ?
		  ORDER BY session_id`,
		registrantID,
	)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		var booking domain.Booking
		var selectedAt int64
		if err := rows.Scan(&booking.RegistrantID, &booking.SessionID, &selectedAt); err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		booking.SelectedAt = fromMillis(selectedAt)
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bookings: %w", err)
	}
	return bookings, nil
}

// ListRegistrants returns every registrant row. The auditor walks this to
// reconcile the selection cache against booking truth.
func (s *Store) ListRegistrants(ctx context.Context) ([]domain.Registrant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT `+registrantColumns+` FROM registrants ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list registrants: %w", err)
	}
	defer rows.Close()

	var registrants []domain.Registrant
	for rows.Next() {
		registrant, err := scanRegistrant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registrant: %w", err)
		}
		registrants = append(registrants, registrant)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate registrants: %w", err)
	}
	return registrants, nil
}

// ListBookingSessionIDs returns, per registrant, the session ids held in
// the booking table.
func (s *Store) ListBookingSessionIDs(ctx context.Context) (map[string][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT registrant_id, session_id FROM bookings ORDER BY registrant_id, session_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list booking session ids: %w", err)
	}
	defer rows.Close()

	held := make(map[string][]string)
	for rows.Next() {
		var registrantID, sessionID string
		if err := rows.Scan(&registrantID, &sessionID); err != nil {
			return nil, fmt.Errorf("scan booking pair: %w", err)
		}
		held[registrantID] = append(held[registrantID], sessionID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate booking pairs: %w", err)
	}
	return held, nil
}

// ListBookingCounts returns, per session, the number of booking rows.
func (s *Store) ListBookingCounts(ctx context.Context) (map[string]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT session_id, COUNT(*) FROM bookings GROUP BY session_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list booking counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var sessionID string
		var count int
		if err := rows.Scan(&sessionID, &count); err != nil {
			return nil, fmt.Errorf("scan booking count: %w", err)
		}
		counts[sessionID] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate booking counts: %w", err)
	}
	return counts, nil
}

// RewriteSelectedSessions replaces one registrant's selection cache.
// Only the auditor uses this; registration itself rewrites the cache
// inside the persist transaction.
func (s *Store) RewriteSelectedSessions(ctx context.Context, registrantID string, sessionIDs []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	selections, err := encodeSelections(sessionIDs)
	if err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE registrants SET selected_sessions = ? WHERE id = ?`,
		selections,
		registrantID,
	)
	if err != nil {
		return fmt.Errorf("rewrite selected sessions: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rewrite selected sessions rows: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}
