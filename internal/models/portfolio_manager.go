package models

import (
	"sync"
)

// PositionLocks serializes updates to a single (portfolio, symbol) position.
// Uses per-position locks instead of a global lock; entries are dropped once
// nobody holds or waits on them.
type PositionLocks struct {
	mapMutex sync.Mutex
	locks    map[string]*positionLock
}

type positionLock struct {
	mu   sync.Mutex
	refs int
}

// NewPositionLocks creates an empty lock table
func NewPositionLocks() *PositionLocks {
	return &PositionLocks{
		locks: make(map[string]*positionLock),
	}
}

// Lock blocks until the position is free and returns the matching unlock.
func (pl *PositionLocks) Lock(portfolioID, symbol string) (unlock func()) {
	key := portfolioID + "/" + symbol

	pl.mapMutex.Lock()
	l := pl.locks[key]
	if l == nil {
		l = &positionLock{}
		pl.locks[key] = l
	}
	l.refs++
	pl.mapMutex.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		pl.mapMutex.Lock()
		l.refs--
		if l.refs == 0 {
			delete(pl.locks, key)
		}
		pl.mapMutex.Unlock()
	}
}

// Len returns the number of positions currently locked or awaited.
func (pl *PositionLocks) Len() int {
	pl.mapMutex.Lock()
	defer pl.mapMutex.Unlock()
	return len(pl.locks)
}
