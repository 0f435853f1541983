package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/andeanconf/registration/internal/registration/domain"
	"github.com/andeanconf/registration/internal/registration/storage"
)

const sessionColumns = `id, session_date, start_time, room, title, speaker, country,
	       capacity, occupied, available`

// PutSession inserts or updates one catalog row. The occupied counter of an
// existing row is preserved; only the seat ledger mutates it.
func (s *Store) PutSession(ctx context.Context, session domain.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	normalized, err := domain.NormalizeSession(session)
	if err != nil {
		return err
	}

	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO sessions (
		   id, session_date, start_time, room, title, speaker, country,
		   capacity, occupied, available
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   session_date = excluded.session_date,
		   start_time = excluded.start_time,
		   room = excluded.room,
		   title = excluded.title,
		   speaker = excluded.speaker,
		   country = excluded.country,
		   capacity = excluded.capacity,
		   available = excluded.available`,
		normalized.ID,
		normalized.Date,
		normalized.Time,
		normalized.Room,
		normalized.Title,
		normalized.Speaker,
		normalized.Country,
		normalized.Capacity,
		normalized.Occupied,
		boolToInt(normalized.Available),
	)
	if err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

// GetSession returns one catalog row by id.
func (s *Store) GetSession(ctx context.Context, sessionID string) (domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return domain.Session{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Session{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`,
		sessionID,
	)
	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Session{}, storage.ErrNotFound
		}
		return domain.Session{}, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// GetSessionsByIDs returns the catalog rows for the ids that exist. The
// result is fully materialized before returning; missing ids are absent.
func (s *Store) GetSessionsByIDs(ctx context.Context, sessionIDs []string) ([]domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if len(sessionIDs) == 0 {
		return []domain.Session{}, nil
	}

	args := make([]any, 0, len(sessionIDs))
	for _, sessionID := range sessionIDs {
		args = append(args, sessionID)
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id IN (`+placeholders(len(sessionIDs))+`)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("get sessions by ids: %w", err)
	}
	defer rows.Close()

	sessions := make([]domain.Session, 0, len(sessionIDs))
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// GetSessionOccupancies returns live occupied counters for the given ids.
func (s *Store) GetSessionOccupancies(ctx context.Context, sessionIDs []string) (map[string]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if len(sessionIDs) == 0 {
		return map[string]int{}, nil
	}

	args := make([]any, 0, len(sessionIDs))
	for _, sessionID := range sessionIDs {
		args = append(args, sessionID)
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, occupied FROM sessions WHERE id IN (`+placeholders(len(sessionIDs))+`)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("get session occupancies: %w", err)
	}
	defer rows.Close()

	occupancies := make(map[string]int, len(sessionIDs))
	for rows.Next() {
		var sessionID string
		var occupied int
		if err := rows.Scan(&sessionID, &occupied); err != nil {
			return nil, fmt.Errorf("scan occupancy: %w", err)
		}
		occupancies[sessionID] = occupied
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate occupancies: %w", err)
	}
	return occupancies, nil
}

// ListSessions returns the whole catalog ordered by schedule.
func (s *Store) ListSessions(ctx context.Context) ([]domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT `+sessionColumns+` FROM sessions ORDER BY session_date, start_time, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// SetSessionAvailability toggles whether a session accepts new bookings.
func (s *Store) SetSessionAvailability(ctx context.Context, sessionID string, available bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE sessions SET available = ? WHERE id = ?`,
		boolToInt(available),
		sessionID,
	)
	if err != nil {
		return fmt.Errorf("set session availability: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set session availability rows: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ReserveSeat atomically increments occupied while a seat is free. The
// conditional update is the single authority for capacity; the advisory
// check during validation can be stale by the time this runs.
func (s *Store) ReserveSeat(ctx context.Context, sessionID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if s == nil || s.sqlDB == nil {
		return false, fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE sessions
		    SET occupied = occupied + 1
		  WHERE id = ? AND available = 1 AND occupied < capacity`,
		sessionID,
	)
	if err != nil {
		return false, fmt.Errorf("reserve seat: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reserve seat rows: %w", err)
	}
	return affected == 1, nil
}

// ReleaseSeat decrements occupied, floored at zero. It compensates seats
// reserved by an attempt that subsequently failed.
func (s *Store) ReleaseSeat(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE sessions SET occupied = occupied - 1 WHERE id = ? AND occupied > 0`,
		sessionID,
	)
	if err != nil {
		return fmt.Errorf("release seat: %w", err)
	}
	return nil
}

// SetSessionOccupied rewrites a session's occupied counter. Only the
// auditor uses this, to reconcile counters against the booking table.
func (s *Store) SetSessionOccupied(ctx context.Context, sessionID string, occupied int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if occupied < 0 {
		return fmt.Errorf("occupied must not be negative")
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE sessions SET occupied = ? WHERE id = ?`,
		occupied,
		sessionID,
	)
	if err != nil {
		return fmt.Errorf("set session occupied: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set session occupied rows: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (domain.Session, error) {
	var session domain.Session
	var available int
	err := row.Scan(
		&session.ID,
		&session.Date,
		&session.Time,
		&session.Room,
		&session.Title,
		&session.Speaker,
		&session.Country,
		&session.Capacity,
		&session.Occupied,
		&available,
	)
	if err != nil {
		return domain.Session{}, err
	}
	session.Available = available != 0
	return session, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
