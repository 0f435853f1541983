package auditor

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/andeanconf/registration/internal/registration/domain"
)

type fakeAuditStore struct {
	registrants []domain.Registrant
	sessions    []domain.Session
	bookings    map[string][]string
	counts      map[string]int

	rewritten map[string][]string
	occupied  map[string]int
}

func newFakeAuditStore() *fakeAuditStore {
	return &fakeAuditStore{
		bookings:  make(map[string][]string),
		counts:    make(map[string]int),
		rewritten: make(map[string][]string),
		occupied:  make(map[string]int),
	}
}

func (f *fakeAuditStore) ListRegistrants(ctx context.Context) ([]domain.Registrant, error) {
	return f.registrants, nil
}

func (f *fakeAuditStore) ListBookingSessionIDs(ctx context.Context) (map[string][]string, error) {
	return f.bookings, nil
}

func (f *fakeAuditStore) ListBookingCounts(ctx context.Context) (map[string]int, error) {
	return f.counts, nil
}

func (f *fakeAuditStore) RewriteSelectedSessions(ctx context.Context, registrantID string, sessionIDs []string) error {
	f.rewritten[registrantID] = append([]string(nil), sessionIDs...)
	return nil
}

func (f *fakeAuditStore) SetSessionOccupied(ctx context.Context, sessionID string, occupied int) error {
	f.occupied[sessionID] = occupied
	return nil
}

func (f *fakeAuditStore) ListSessions(ctx context.Context) ([]domain.Session, error) {
	return f.sessions, nil
}

func fixedClock() time.Time {
	return time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)
}

func TestAuditCleanState(t *testing.T) {
	store := newFakeAuditStore()
	store.registrants = []domain.Registrant{
		{ID: "reg-1", Phone: "111", SelectedSessions: []string{"s1", "s2"}},
	}
	store.bookings["reg-1"] = []string{"s2", "s1"}
	store.sessions = []domain.Session{
		{ID: "s1", Occupied: 1, Capacity: 10},
		{ID: "s2", Occupied: 1, Capacity: 10},
	}
	store.counts = map[string]int{"s1": 1, "s2": 1}

	report, err := New(store, fixedClock).Audit(context.Background())
	if err != nil {
		t.Fatalf("Audit() error = %v", err)
	}
	if !report.Clean() {
		t.Fatalf("Clean() = false, report = %+v", report)
	}
	if report.CheckedRegistrants != 1 || report.CheckedSessions != 2 {
		t.Fatalf("checked = %d registrants, %d sessions, want 1, 2",
			report.CheckedRegistrants, report.CheckedSessions)
	}
}

func TestAuditDetectsCacheDrift(t *testing.T) {
	store := newFakeAuditStore()
	store.registrants = []domain.Registrant{
		{ID: "reg-1", SelectedSessions: []string{"s1", "s9"}},
	}
	store.bookings["reg-1"] = []string{"s1"}

	report, err := New(store, fixedClock).Audit(context.Background())
	if err != nil {
		t.Fatalf("Audit() error = %v", err)
	}
	if len(report.CacheDrift) != 1 {
		t.Fatalf("CacheDrift = %v, want one entry", report.CacheDrift)
	}
	drift := report.CacheDrift[0]
	if drift.RegistrantID != "reg-1" {
		t.Fatalf("RegistrantID = %q, want reg-1", drift.RegistrantID)
	}
	if want := []string{"s1"}; !reflect.DeepEqual(drift.Truth, want) {
		t.Fatalf("Truth = %v, want %v", drift.Truth, want)
	}
}

func TestAuditTreatsEmptyCacheAndNoBookingsAsEqual(t *testing.T) {
	store := newFakeAuditStore()
	store.registrants = []domain.Registrant{{ID: "reg-1"}}

	report, err := New(store, fixedClock).Audit(context.Background())
	if err != nil {
		t.Fatalf("Audit() error = %v", err)
	}
	if len(report.CacheDrift) != 0 {
		t.Fatalf("CacheDrift = %v, want none", report.CacheDrift)
	}
}

func TestAuditDetectsOccupancyDrift(t *testing.T) {
	store := newFakeAuditStore()
	store.sessions = []domain.Session{{ID: "s1", Occupied: 3, Capacity: 10}}
	store.counts = map[string]int{"s1": 1}

	report, err := New(store, fixedClock).Audit(context.Background())
	if err != nil {
		t.Fatalf("Audit() error = %v", err)
	}
	if len(report.OccupancyDrift) != 1 {
		t.Fatalf("OccupancyDrift = %v, want one entry", report.OccupancyDrift)
	}
	drift := report.OccupancyDrift[0]
	if drift.Occupied != 3 || drift.Booked != 1 {
		t.Fatalf("drift = %+v, want occupied 3 booked 1", drift)
	}
}

func TestAuditReportsDuplicatePhones(t *testing.T) {
	store := newFakeAuditStore()
	store.registrants = []domain.Registrant{
		{ID: "reg-2", Phone: "999"},
		{ID: "reg-1", Phone: "999"},
		{ID: "reg-3", Phone: "111"},
		{ID: "reg-4"},
		{ID: "reg-5"},
	}

	report, err := New(store, fixedClock).Audit(context.Background())
	if err != nil {
		t.Fatalf("Audit() error = %v", err)
	}
	if len(report.DuplicatePhones) != 1 {
		t.Fatalf("DuplicatePhones = %v, want one entry", report.DuplicatePhones)
	}
	duplicate := report.DuplicatePhones[0]
	if duplicate.Phone != "999" {
		t.Fatalf("Phone = %q, want 999", duplicate.Phone)
	}
	if want := []string{"reg-1", "reg-2"}; !reflect.DeepEqual(duplicate.RegistrantIDs, want) {
		t.Fatalf("RegistrantIDs = %v, want %v", duplicate.RegistrantIDs, want)
	}
	if !report.Clean() {
		t.Fatal("duplicate phones alone must not mark the report dirty")
	}
}

func TestRepairWritesDerivedValues(t *testing.T) {
	store := newFakeAuditStore()
	auditor := New(store, fixedClock)

	report := Report{
		CacheDrift: []CacheDrift{
			{RegistrantID: "reg-1", Cached: []string{"s9"}, Truth: []string{"s1"}},
		},
		OccupancyDrift: []OccupancyDrift{
			{SessionID: "s1", Occupied: 3, Booked: 1},
		},
	}
	if err := auditor.Repair(context.Background(), report); err != nil {
		t.Fatalf("Repair() error = %v", err)
	}
	if want := []string{"s1"}; !reflect.DeepEqual(store.rewritten["reg-1"], want) {
		t.Fatalf("rewritten = %v, want %v", store.rewritten["reg-1"], want)
	}
	if store.occupied["s1"] != 1 {
		t.Fatalf("occupied = %d, want 1", store.occupied["s1"])
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := New(newFakeAuditStore(), fixedClock).Run(ctx, time.Minute, false)
	if err == nil {
		t.Fatal("Run() should return the context error")
	}
}
