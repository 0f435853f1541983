package service

import (
	"context"
	"sync"
	"testing"

	"github.com/andeanconf/registration/internal/registration/domain"
	"github.com/andeanconf/registration/internal/registration/storage"
)

// countingSessionStore wraps the fake store and counts metadata loads so
// the read-through behavior is observable.
type countingSessionStore struct {
	storage.SessionStore
	mu    sync.Mutex
	loads int
}

func (c *countingSessionStore) GetSessionsByIDs(ctx context.Context, sessionIDs []string) ([]domain.Session, error) {
	c.mu.Lock()
	c.loads++
	c.mu.Unlock()
	return c.SessionStore.GetSessionsByIDs(ctx, sessionIDs)
}

func TestCatalogCachesMetadata(t *testing.T) {
	store := newFakeStore()
	store.seedSession(talk("s1", "2026-09-10", "09:00", 30))
	counting := &countingSessionStore{SessionStore: store}
	catalog := newSessionCatalog(counting)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		found, err := catalog.lookup(ctx, []string{"s1"})
		if err != nil {
			t.Fatalf("lookup() error = %v", err)
		}
		if _, ok := found["s1"]; !ok {
			t.Fatal("lookup() missing s1")
		}
	}
	if counting.loads != 1 {
		t.Fatalf("metadata loads = %d, want 1", counting.loads)
	}
}

func TestCatalogOverlaysLiveOccupancy(t *testing.T) {
	store := newFakeStore()
	store.seedSession(talk("s1", "2026-09-10", "09:00", 30))
	catalog := newSessionCatalog(store)
	ctx := context.Background()

	if _, err := catalog.lookup(ctx, []string{"s1"}); err != nil {
		t.Fatalf("lookup() error = %v", err)
	}
	if ok, err := store.ReserveSeat(ctx, "s1"); err != nil || !ok {
		t.Fatalf("ReserveSeat() = %v, %v", ok, err)
	}

	found, err := catalog.lookup(ctx, []string{"s1"})
	if err != nil {
		t.Fatalf("lookup() error = %v", err)
	}
	if got := found["s1"].Occupied; got != 1 {
		t.Fatalf("Occupied = %d, want live counter 1", got)
	}
}

func TestCatalogSkipsMissingIDs(t *testing.T) {
	store := newFakeStore()
	store.seedSession(talk("s1", "2026-09-10", "09:00", 30))
	catalog := newSessionCatalog(store)

	found, err := catalog.lookup(context.Background(), []string{"s1", "ghost"})
	if err != nil {
		t.Fatalf("lookup() error = %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("found = %d sessions, want 1", len(found))
	}
	if _, ok := found["ghost"]; ok {
		t.Fatal("lookup() returned a session for an unknown id")
	}
}

func TestCatalogInvalidate(t *testing.T) {
	store := newFakeStore()
	store.seedSession(talk("s1", "2026-09-10", "09:00", 30))
	counting := &countingSessionStore{SessionStore: store}
	catalog := newSessionCatalog(counting)
	ctx := context.Background()

	if _, err := catalog.lookup(ctx, []string{"s1"}); err != nil {
		t.Fatalf("lookup() error = %v", err)
	}
	catalog.invalidate("s1")
	if _, err := catalog.lookup(ctx, []string{"s1"}); err != nil {
		t.Fatalf("lookup() error = %v", err)
	}
	if counting.loads != 2 {
		t.Fatalf("metadata loads = %d, want 2 after invalidate", counting.loads)
	}
}
