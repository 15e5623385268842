package gate

import (
	"sync"

	id "dealkernel/pkg/domain"
)

// dealLocks serializes check-then-append per deal so two concurrent requests
// cannot both pass the gate on the same stale projection. Postgres appends
// additionally take an advisory lock; this keeps the memory wiring just as
// safe.
type dealLocks struct {
	mu    sync.Mutex
	locks map[id.DealID]*sync.Mutex
}

func newDealLocks() *dealLocks {
	return &dealLocks{locks: make(map[id.DealID]*sync.Mutex)}
}

// acquire locks the deal and returns the unlock func.
func (l *dealLocks) acquire(dealID id.DealID) func() {
	l.mu.Lock()
	lock, ok := l.locks[dealID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[dealID] = lock
	}
	l.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
