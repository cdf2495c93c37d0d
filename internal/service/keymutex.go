package service

import "sync"

// keyMutex provides per-key mutual exclusion for in-process callers.
// The reservation manager locks the reservation id around its
// check-then-act sequences so two goroutines in the same process
// cannot interleave a confirm and an expiry on one hold; across
// processes the guarded UPDATEs in the store give the same guarantee.
// Entries are reference counted and removed when the last holder
// unlocks, so the map does not grow with the id space.
type keyMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyMutex() *keyMutex {
	return &keyMutex{locks: make(map[string]*keyLock)}
}

// Lock acquires the mutex for key, creating it on first use.
func (m *keyMutex) Lock(key string) {
	m.mu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &keyLock{}
		m.locks[key] = l
	}
	l.refs++
	m.mu.Unlock()
	l.mu.Lock()
}

// Unlock releases the mutex for key and drops the entry when nobody
// else is waiting on it.
func (m *keyMutex) Unlock(key string) {
	m.mu.Lock()
	l, ok := m.locks[key]
	if ok {
		l.refs--
		if l.refs == 0 {
			delete(m.locks, key)
		}
	}
	m.mu.Unlock()
	if ok {
		l.mu.Unlock()
	}
}
