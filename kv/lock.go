package kv

import (
	"sync"
	"time"
)

// blockLock is the state of one block in the lock table.
type blockLock struct {
	readers        int
	writer         bool
	writersWaiting int
}

// lockTable grants reader/writer locks on blocks. Waiting writers are
// preferred over new readers so a stream of readers cannot starve a writer.
type lockTable struct {
	mu     sync.Mutex
	blocks map[int]*blockLock
	// changed is closed and replaced every time a lock is released. Waiters
	// select on it to recheck their condition.
	changed chan struct{}
}

func newLockTable() *lockTable {
	return &lockTable{
		blocks:  map[int]*blockLock{},
		changed: make(chan struct{}),
	}
}

func (lt *lockTable) get(block int) *blockLock {
	bl, ok := lt.blocks[block]
	if !ok {
		bl = &blockLock{}
		lt.blocks[block] = bl
	}
	return bl
}

// acquire blocks until the lock is granted or timeout passes. ownReaders is
// the number of read locks the caller already holds on the block, which lets
// a reader upgrade to a writer.
func (lt *lockTable) acquire(block int, write bool, ownReaders int, timeout time.Duration) error {
	var timer *time.Timer
	waiting := false
	lt.mu.Lock()
	for {
		bl := lt.get(block)
		if write && !bl.writer && bl.readers == ownReaders {
			bl.writer = true
			if waiting {
				bl.writersWaiting--
			}
			lt.mu.Unlock()
			return nil
		}
		if !write && !bl.writer && bl.writersWaiting == 0 {
			bl.readers++
			lt.mu.Unlock()
			return nil
		}
		if write && !waiting {
			bl.writersWaiting++
			waiting = true
		}
		changed := lt.changed
		lt.mu.Unlock()
		if timer == nil {
			timer = time.NewTimer(timeout)
			defer timer.Stop()
		}
		select {
		case <-changed:
		case <-timer.C:
			lt.mu.Lock()
			if waiting {
				lt.get(block).writersWaiting--
				lt.broadcast()
			}
			lt.mu.Unlock()
			return ErrLockTimeout
		}
		lt.mu.Lock()
	}
}

func (lt *lockTable) release(block int, write bool) {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	bl := lt.get(block)
	if write {
		bl.writer = false
	} else if bl.readers > 0 {
		bl.readers--
	}
	if bl.readers == 0 && !bl.writer && bl.writersWaiting == 0 {
		delete(lt.blocks, block)
	}
	lt.broadcast()
}

// broadcast wakes every waiter. lt.mu must be held.
func (lt *lockTable) broadcast() {
	close(lt.changed)
	lt.changed = make(chan struct{})
}
