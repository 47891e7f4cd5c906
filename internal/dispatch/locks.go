package dispatch

import "sync"

type itemLock struct {
	mu   sync.Mutex
	refs int
}

// itemLocks hands out one mutex per item id and forgets it once unused.
type itemLocks struct {
	mu    sync.Mutex
	locks map[int64]*itemLock
}

func newItemLocks() *itemLocks {
	return &itemLocks{locks: make(map[int64]*itemLock)}
}

// Lock blocks until the caller owns id and returns the release func.
func (l *itemLocks) Lock(id int64) func() {
	l.mu.Lock()
	lock, ok := l.locks[id]
	if !ok {
		lock = &itemLock{}
		l.locks[id] = lock
	}
	lock.refs++
	l.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		l.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

func (l *itemLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
