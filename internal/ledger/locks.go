package ledger

import "sync"

// idLocks hands out one mutex per record id, created on first use and
// dropped once the last holder releases it, so flips on different ids
// never contend.
type idLocks struct {
	mu   sync.Mutex
	held map[uint64]*idLock
}

type idLock struct {
	mu   sync.Mutex
	refs int
}

func newIDLocks() *idLocks {
	return &idLocks{held: make(map[uint64]*idLock)}
}

func (l *idLocks) lock(id uint64) {
	l.mu.Lock()
	e, ok := l.held[id]
	if !ok {
		e = &idLock{}
		l.held[id] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
}

func (l *idLocks) unlock(id uint64) {
	l.mu.Lock()
	e := l.held[id]
	e.refs--
	if e.refs == 0 {
		delete(l.held, id)
	}
	l.mu.Unlock()

	e.mu.Unlock()
}
