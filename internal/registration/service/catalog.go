package service

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/andeanconf/registration/internal/registration/domain"
	"github.com/andeanconf/registration/internal/registration/storage"
)

const (
	catalogTTL             = 5 * time.Minute
	catalogCleanupInterval = 15 * time.Minute
)

// sessionCatalog is a read-through cache of catalog metadata. Schedule,
// room, and capacity never change after seeding, so they cache well; the
// occupied counter is always overlaid live because it is the advisory
// input to conflict validation. A toggled availability flag can be stale
// for at most the TTL, and the seat ledger's conditional update re-checks
// it authoritatively.
type sessionCatalog struct {
	sessions storage.SessionStore
	cache    *gocache.Cache
}

func newSessionCatalog(sessions storage.SessionStore) *sessionCatalog {
	return &sessionCatalog{
		sessions: sessions,
		cache:    gocache.New(catalogTTL, catalogCleanupInterval),
	}
}

// lookup returns the catalog rows for the requested ids that exist, with
// live occupancy. Missing ids are simply absent from the result.
func (c *sessionCatalog) lookup(ctx context.Context, sessionIDs []string) (map[string]domain.Session, error) {
	if c == nil || c.sessions == nil {
		return nil, fmt.Errorf("session store is not configured")
	}

	found := make(map[string]domain.Session, len(sessionIDs))
	var missing []string
	for _, sessionID := range sessionIDs {
		if _, ok := found[sessionID]; ok {
			continue
		}
		if cached, ok := c.cache.Get(sessionID); ok {
			if session, ok := cached.(domain.Session); ok {
				found[sessionID] = session
				continue
			}
		}
		missing = append(missing, sessionID)
	}

	if len(missing) > 0 {
		loaded, err := c.sessions.GetSessionsByIDs(ctx, missing)
		if err != nil {
			return nil, fmt.Errorf("load sessions: %w", err)
		}
		for _, session := range loaded {
			c.cache.Set(session.ID, session, catalogTTL)
			found[session.ID] = session
		}
	}

	if len(found) == 0 {
		return found, nil
	}

	ids := make([]string, 0, len(found))
	for sessionID := range found {
		ids = append(ids, sessionID)
	}
	occupancies, err := c.sessions.GetSessionOccupancies(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load occupancies: %w", err)
	}
	for sessionID, occupied := range occupancies {
		session := found[sessionID]
		session.Occupied = occupied
		found[sessionID] = session
	}
	return found, nil
}

// invalidate drops cached metadata, e.g. after an availability toggle.
func (c *sessionCatalog) invalidate(sessionIDs ...string) {
	if c == nil {
		return
	}
	for _, sessionID := range sessionIDs {
		c.cache.Delete(sessionID)
	}
}
