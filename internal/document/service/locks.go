package service

import (
	"sync"
	"time"
)

// docLocks hands out one mutex per document id. Entries are reference counted
// and dropped when nobody holds or waits for them. No caller ever holds two
// document locks at once.
type docLocks struct {
	mu    sync.Mutex
	locks map[string]*docLock
}

type docLock struct {
	sync.Mutex
	refs int
}

func newDocLocks() *docLocks {
	return &docLocks{locks: make(map[string]*docLock)}
}

func (l *docLocks) lock(id string) func() {
	l.mu.Lock()
	dl, ok := l.locks[id]
	if !ok {
		dl = &docLock{}
		l.locks[id] = dl
	}
	dl.refs++
	l.mu.Unlock()

	dl.Lock()
	return func() {
		dl.Unlock()
		l.mu.Lock()
		dl.refs--
		if dl.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

func (l *docLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

// monoClock issues strictly increasing timestamps at microsecond resolution,
// the precision Postgres keeps, so chat order survives a round trip.
type monoClock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

func (c *monoClock) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().UTC().Truncate(time.Microsecond)
	if !t.After(c.last) {
		t = c.last.Add(time.Microsecond)
	}
	c.last = t
	return t
}
