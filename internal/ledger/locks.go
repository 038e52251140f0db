package ledger

import "sync"

// symbolLocks hands out one mutex per symbol and forgets it once nobody
// holds or waits on it.
type symbolLocks struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newSymbolLocks() *symbolLocks {
	return &symbolLocks{locks: map[string]*refMutex{}}
}

func (l *symbolLocks) lock(symbol string) func() {
	l.mu.Lock()
	m, ok := l.locks[symbol]
	if !ok {
		m = &refMutex{}
		l.locks[symbol] = m
	}
	m.refs++
	l.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		l.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(l.locks, symbol)
		}
		l.mu.Unlock()
	}
}
