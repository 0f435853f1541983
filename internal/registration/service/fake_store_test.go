package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/andeanconf/registration/internal/registration/domain"
	"github.com/andeanconf/registration/internal/registration/storage"
)

// fakeStore is an in-memory storage.Store. Seat reservation uses the same
// compare-and-set semantics as the sqlite ledger so concurrency tests are
// meaningful. Error hooks inject failures per phase.
type fakeStore struct {
	mu          sync.Mutex
	registrants map[string]domain.Registrant
	emails      map[string]string
	sessions    map[string]domain.Session
	bookings    map[string]map[string]time.Time

	reserveErr    error
	persistErr    error
	reserveDenied map[string]bool
	released      []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		registrants: make(map[string]domain.Registrant),
		emails:      make(map[string]string),
		sessions:    make(map[string]domain.Session),
		bookings:    make(map[string]map[string]time.Time),
	}
}

func (f *fakeStore) seedSession(s domain.Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[s.ID] = s
}

func (f *fakeStore) session(id string) domain.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions[id]
}

func (f *fakeStore) registrantByEmail(email string) (domain.Registrant, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.emails[email]
	if !ok {
		return domain.Registrant{}, false
	}
	return f.registrants[id], true
}

func (f *fakeStore) GetRegistrantByEmail(ctx context.Context, email string) (domain.Registrant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.emails[domain.NormalizeEmail(email)]
	if !ok {
		return domain.Registrant{}, storage.ErrNotFound
	}
	return f.registrants[id], nil
}

func (f *fakeStore) GetRegistrant(ctx context.Context, registrantID string) (domain.Registrant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	registrant, ok := f.registrants[registrantID]
	if !ok {
		return domain.Registrant{}, storage.ErrNotFound
	}
	return registrant, nil
}

func (f *fakeStore) PutSession(ctx context.Context, session domain.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.sessions[session.ID]; ok {
		session.Occupied = existing.Occupied
	}
	f.sessions[session.ID] = session
	return nil
}

func (f *fakeStore) GetSession(ctx context.Context, sessionID string) (domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[sessionID]
	if !ok {
		return domain.Session{}, storage.ErrNotFound
	}
	return session, nil
}

func (f *fakeStore) GetSessionsByIDs(ctx context.Context, sessionIDs []string) ([]domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Session, 0, len(sessionIDs))
	for _, id := range sessionIDs {
		if session, ok := f.sessions[id]; ok {
			out = append(out, session)
		}
	}
	return out, nil
}

func (f *fakeStore) GetSessionOccupancies(ctx context.Context, sessionIDs []string) (map[string]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]int, len(sessionIDs))
	for _, id := range sessionIDs {
		if session, ok := f.sessions[id]; ok {
			out[id] = session.Occupied
		}
	}
	return out, nil
}

func (f *fakeStore) ListSessions(ctx context.Context) ([]domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Session, 0, len(f.sessions))
	for _, session := range f.sessions {
		out = append(out, session)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) SetSessionAvailability(ctx context.Context, sessionID string, available bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[sessionID]
	if !ok {
		return storage.ErrNotFound
	}
	session.Available = available
	f.sessions[sessionID] = session
	return nil
}

func (f *fakeStore) ReserveSeat(ctx context.Context, sessionID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reserveErr != nil {
		return false, f.reserveErr
	}
	if f.reserveDenied[sessionID] {
		return false, nil
	}
	session, ok := f.sessions[sessionID]
	if !ok || !session.Available || session.Occupied >= session.Capacity {
		return false, nil
	}
	session.Occupied++
	f.sessions[sessionID] = session
	return true, nil
}

func (f *fakeStore) ReleaseSeat(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, sessionID)
	session, ok := f.sessions[sessionID]
	if !ok {
		return storage.ErrNotFound
	}
	if session.Occupied > 0 {
		session.Occupied--
	}
	f.sessions[sessionID] = session
	return nil
}

func (f *fakeStore) ListBookingsByRegistrant(ctx context.Context, registrantID string) ([]domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	held := f.bookings[registrantID]
	out := make([]domain.Booking, 0, len(held))
	for sessionID, selectedAt := range held {
		out = append(out, domain.Booking{
			RegistrantID: registrantID,
			SessionID:    sessionID,
			SelectedAt:   selectedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out, nil
}

func (f *fakeStore) PersistRegistration(ctx context.Context, registrant domain.Registrant, accepted []string, selectedAt time.Time) (storage.PersistResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.persistErr != nil {
		return storage.PersistResult{}, f.persistErr
	}

	created := false
	if winnerID, ok := f.emails[registrant.Email]; ok {
		row := f.registrants[winnerID]
		row.FullName = registrant.FullName
		if registrant.Phone != "" {
			row.Phone = registrant.Phone
		}
		if registrant.Company != "" {
			row.Company = registrant.Company
		}
		if registrant.Role != "" {
			row.Role = registrant.Role
		}
		if registrant.Expectations != "" {
			row.Expectations = registrant.Expectations
		}
		if row.Token == "" {
			row.Token = registrant.Token
		}
		row.UpdatedAt = selectedAt
		registrant = row
	} else {
		created = true
		f.emails[registrant.Email] = registrant.ID
	}

	held := f.bookings[registrant.ID]
	if held == nil {
		held = make(map[string]time.Time)
		f.bookings[registrant.ID] = held
	}
	var duplicates []string
	for _, sessionID := range accepted {
		if _, ok := held[sessionID]; ok {
			duplicates = append(duplicates, sessionID)
			continue
		}
		held[sessionID] = selectedAt
	}

	selections := make([]string, 0, len(held))
	for sessionID := range held {
		selections = append(selections, sessionID)
	}
	sort.Strings(selections)
	registrant.SelectedSessions = selections

	f.registrants[registrant.ID] = registrant
	return storage.PersistResult{Registrant: registrant, Created: created, Duplicates: duplicates}, nil
}

func (f *fakeStore) ListRegistrants(ctx context.Context) ([]domain.Registrant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Registrant, 0, len(f.registrants))
	for _, registrant := range f.registrants {
		out = append(out, registrant)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) ListBookingSessionIDs(ctx context.Context) (map[string][]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string][]string, len(f.bookings))
	for registrantID, held := range f.bookings {
		ids := make([]string, 0, len(held))
		for sessionID := range held {
			ids = append(ids, sessionID)
		}
		sort.Strings(ids)
		out[registrantID] = ids
	}
	return out, nil
}

func (f *fakeStore) ListBookingCounts(ctx context.Context) (map[string]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]int)
	for _, held := range f.bookings {
		for sessionID := range held {
			out[sessionID]++
		}
	}
	return out, nil
}

func (f *fakeStore) RewriteSelectedSessions(ctx context.Context, registrantID string, sessionIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	registrant, ok := f.registrants[registrantID]
	if !ok {
		return storage.ErrNotFound
	}
	registrant.SelectedSessions = append([]string(nil), sessionIDs...)
	f.registrants[registrantID] = registrant
	return nil
}

func (f *fakeStore) SetSessionOccupied(ctx context.Context, sessionID string, occupied int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[sessionID]
	if !ok {
		return storage.ErrNotFound
	}
	session.Occupied = occupied
	f.sessions[sessionID] = session
	return nil
}

func (f *fakeStore) Close() error { return nil }

var _ storage.Store = (*fakeStore)(nil)
