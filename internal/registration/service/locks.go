package service

import "sync"

// registrantLocks serializes registration attempts per correlation key.
// Entries are reference-counted and removed when the last holder releases,
// so the map does not grow with the number of distinct attendees.
type registrantLocks struct {
	mu    sync.Mutex
	locks map[string]*registrantLock
}

type registrantLock struct {
	mu   sync.Mutex
	refs int
}

// acquire blocks until the key's lock is held and returns its release func.
func (l *registrantLocks) acquire(key string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*registrantLock)
	}
	entry, ok := l.locks[key]
	if !ok {
		entry = &registrantLock{}
		l.locks[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}
