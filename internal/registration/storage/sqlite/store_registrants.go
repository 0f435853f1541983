package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/andeanconf/registration/internal/registration/domain"
	"github.com/andeanconf/registration/internal/registration/storage"
)

const registrantColumns = `id, full_name, email, phone, company, role, expectations,
	       token, confirmed, attendance_confirmed, selected_sessions, created_at, updated_at`

// GetRegistrantByEmail returns one registrant by exact email match.
func (s *Store) GetRegistrantByEmail(ctx context.Context, email string) (domain.Registrant, error) {
	if err := ctx.Err(); err != nil {
		return domain.Registrant{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Registrant{}, fmt.Errorf("storage is not configured")
	}
	email = domain.NormalizeEmail(email)
	if email == "" {
		return domain.Registrant{}, fmt.Errorf("email is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+registrantColumns+` FROM registrants WHERE email = ?`,
		email,
	)
	registrant, err := scanRegistrant(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Registrant{}, storage.ErrNotFound
		}
		return domain.Registrant{}, fmt.Errorf("get registrant by email: %w", err)
	}
	return registrant, nil
}

// GetRegistrant returns one registrant by id.
func (s *Store) GetRegistrant(ctx context.Context, registrantID string) (domain.Registrant, error) {
	if err := ctx.Err(); err != nil {
		return domain.Registrant{}, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Registrant{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+registrantColumns+` FROM registrants WHERE id = ?`,
		registrantID,
	)
	registrant, err := scanRegistrant(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Registrant{}, storage.ErrNotFound
		}
		return domain.Registrant{}, fmt.Errorf("get registrant: %w", err)
	}
	return registrant, nil
}

// PersistRegistration commits one registration attempt in a single
// transaction: registrant upsert, idempotent booking inserts for the
// accepted ids, and the selected-sessions cache rewrite from the booking
// table so the cache and the truth commit together.
func (s *Store) PersistRegistration(ctx context.Context, registrant domain.Registrant, accepted []string, selectedAt time.Time) (storage.PersistResult, error) {
	if err := ctx.Err(); err != nil {
		return storage.PersistResult{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.PersistResult{}, fmt.Errorf("storage is not configured")
	}
	if registrant.ID == "" {
		return storage.PersistResult{}, fmt.Errorf("registrant id is required")
	}
	email := domain.NormalizeEmail(registrant.Email)
	if email == "" {
		return storage.PersistResult{}, fmt.Errorf("registrant email is required")
	}
	if selectedAt.IsZero() {
		selectedAt = time.Now()
	}
	selectedAt = selectedAt.UTC()

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.PersistResult{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	canonicalID, created, err := upsertRegistrantTx(ctx, tx, registrant, email, selectedAt)
	if err != nil {
		return storage.PersistResult{}, err
	}

	var duplicates []string
	for _, sessionID := range accepted {
		res, err := tx.ExecContext(
			ctx,
			`INSERT OR IGNORE INTO bookings (registrant_id, session_id, selected_at)
			 VALUES (?, ?, ?)`,
			canonicalID,
			sessionID,
			toMillis(selectedAt),
		)
		if err != nil {
			return storage.PersistResult{}, fmt.Errorf("insert booking %s: %w", sessionID, err)
		}
		inserted, err := res.RowsAffected()
		if err != nil {
			return storage.PersistResult{}, fmt.Errorf("insert booking %s: %w", sessionID, err)
		}
		// The canonical row may already hold this booking, typically when
		// an insert-race loser resubmits sessions the winner committed.
		// The ignored insert leaves the caller with a reserved seat no
		// booking accounts for, so it is reported back for release.
		if inserted == 0 {
			duplicates = append(duplicates, sessionID)
		}
	}

	// Rewrite the cache column from the booking truth table. The read is
	// fully materialized before the update runs.
	truth, err := bookingSessionIDsTx(ctx, tx, canonicalID)
	if err != nil {
		return storage.PersistResult{}, err
	}
	selections, err := encodeSelections(truth)
	if err != nil {
		return storage.PersistResult{}, err
	}
	if _, err := tx.ExecContext(
		ctx,
		`UPDATE registrants SET selected_sessions = ?, updated_at = ? WHERE id = ?`,
		selections,
		toMillis(selectedAt),
		canonicalID,
	); err != nil {
		return storage.PersistResult{}, fmt.Errorf("update selected sessions: %w", err)
	}

	row := tx.QueryRowContext(
		ctx,
		`SELECT `+registrantColumns+` FROM registrants WHERE id = ?`,
		canonicalID,
	)
	final, err := scanRegistrant(row)
	if err != nil {
		return storage.PersistResult{}, fmt.Errorf("reload registrant: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return storage.PersistResult{}, fmt.Errorf("commit registration: %w", err)
	}
	return storage.PersistResult{Registrant: final, Created: created, Duplicates: duplicates}, nil
}

// upsertRegistrantTx inserts the registrant row or refreshes the contact
// fields of the row that already owns the email. It returns the canonical
// registrant id: a concurrent first registration under the same email loses
// the insert race and continues as an update of the winner's row.
func upsertRegistrantTx(ctx context.Context, tx *sql.Tx, registrant domain.Registrant, email string, now time.Time) (string, bool, error) {
	var existingID string
	err := tx.QueryRowContext(
		ctx,
		`SELECT id FROM registrants WHERE email = ?`,
		email,
	).Scan(&existingID)
	switch {
	case err == nil:
		if err := refreshContactTx(ctx, tx, existingID, registrant, now); err != nil {
			return "", false, err
		}
		return existingID, false, nil
	case errors.Is(err, sql.ErrNoRows):
		// fall through to insert
	default:
		return "", false, fmt.Errorf("find registrant by email: %w", err)
	}

	createdAt := registrant.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO registrants (
		   id, full_name, email, phone, company, role, expectations,
		   token, confirmed, attendance_confirmed, selected_sessions, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '[]', ?, ?)`,
		registrant.ID,
		registrant.FullName,
		email,
		registrant.Phone,
		registrant.Company,
		registrant.Role,
		registrant.Expectations,
		registrant.Token,
		boolToInt(registrant.Confirmed),
		boolToInt(registrant.AttendanceConfirmed),
		toMillis(createdAt),
		toMillis(now),
	)
	if err == nil {
		return registrant.ID, true, nil
	}
	if !isUniqueViolation(err) {
		return "", false, fmt.Errorf("insert registrant: %w", err)
	}

	// Lost the insert race: another request created this email first.
	if err := tx.QueryRowContext(
		ctx,
		`SELECT id FROM registrants WHERE email = ?`,
		email,
	).Scan(&existingID); err != nil {
		return "", false, fmt.Errorf("reload registrant after insert race: %w", err)
	}
	if err := refreshContactTx(ctx, tx, existingID, registrant, now); err != nil {
		return "", false, err
	}
	return existingID, false, nil
}

// refreshContactTx overwrites contact fields with incoming non-empty
// values. Blank incoming fields keep whatever the row already holds, and a
// row that already carries a token keeps it.
func refreshContactTx(ctx context.Context, tx *sql.Tx, registrantID string, registrant domain.Registrant, now time.Time) error {
	_, err := tx.ExecContext(
		ctx,
		`UPDATE registrants SET
		   full_name = CASE WHEN ? != '' THEN ? ELSE full_name END,
		   phone = CASE WHEN ? != '' THEN ? ELSE phone END,
		   company = CASE WHEN ? != '' THEN ? ELSE company END,
		   role = CASE WHEN ? != '' THEN ? ELSE role END,
		   expectations = CASE WHEN ? != '' THEN ? ELSE expectations END,
		   token = CASE WHEN token = '' THEN ? ELSE token END,
		   updated_at = ?
		 WHERE id = ?`,
		registrant.FullName, registrant.FullName,
		registrant.Phone, registrant.Phone,
		registrant.Company, registrant.Company,
		registrant.Role, registrant.Role,
		registrant.Expectations, registrant.Expectations,
		registrant.Token,
		toMillis(now),
		registrantID,
	)
	if err != nil {
		return fmt.Errorf("refresh registrant contact: %w", err)
	}
	return nil
}

// bookingSessionIDsTx materializes the booking truth for one registrant.
func bookingSessionIDsTx(ctx context.Context, tx *sql.Tx, registrantID string) ([]string, error) {
	rows, err := tx.QueryContext(
		ctx,
		`SELECT session_id FROM bookings WHERE registrant_id = ? ORDER BY session_id`,
		registrantID,
	)
	if err != nil {
		return nil, fmt.Errorf("list booking session ids: %w", err)
	}
	defer rows.Close()

	var sessionIDs []string
	for rows.Next() {
		var sessionID string
		if err := rows.Scan(&sessionID); err != nil {
			return nil, fmt.Errorf("scan booking session id: %w", err)
		}
		sessionIDs = append(sessionIDs, sessionID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate booking session ids: %w", err)
	}
	return sessionIDs, nil
}

func scanRegistrant(row rowScanner) (domain.Registrant, error) {
	var registrant domain.Registrant
	var confirmed, attendanceConfirmed int
	var selections string
	var createdAt, updatedAt int64
	err := row.Scan(
		&registrant.ID,
		&registrant.FullName,
		&registrant.Email,
		&registrant.Phone,
		&registrant.Company,
		&registrant.Role,
		&registrant.Expectations,
		&registrant.Token,
		&confirmed,
		&attendanceConfirmed,
		&selections,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return domain.Registrant{}, err
	}
	registrant.Confirmed = confirmed != 0
	registrant.AttendanceConfirmed = attendanceConfirmed != 0
	registrant.CreatedAt = fromMillis(createdAt)
	registrant.UpdatedAt = fromMillis(updatedAt)
	registrant.SelectedSessions, err = decodeSelections(selections)
	if err != nil {
		return domain.Registrant{}, err
	}
	return registrant, nil
}
