package kv

import (
	"fmt"
	"time"

	"github.com/chirst/relq/metrics"
	"github.com/chirst/relq/pager"
	"github.com/google/uuid"
)

// heldLock counts how many times a transaction locked a block in each mode.
type heldLock struct {
	reads  int
	writes int
}

// Transaction is a unit of work against the storage. Writes are made to
// private page copies which are published when the block's write lock is
// released, persisted by Flush and forgotten by Commit. A Transaction is used
// by one goroutine at a time.
type Transaction struct {
	id      uuid.UUID
	kv      *KV
	timeout time.Duration
	held    map[int]*heldLock
	// dirty holds private page copies by block then page number.
	dirty map[int]map[int]*pager.Page
	// published holds pages made visible but not yet flushed, by block.
	published map[int][]*pager.Page
}

// Begin starts a transaction.
func (kv *KV) Begin() *Transaction {
	return &Transaction{
		id:        uuid.New(),
		kv:        kv,
		timeout:   kv.lockTimeout,
		held:      map[int]*heldLock{},
		dirty:     map[int]map[int]*pager.Page{},
		published: map[int][]*pager.Page{},
	}
}

// ID identifies the transaction in logs.
func (tx *Transaction) ID() string {
	return tx.id.String()
}

// LockTimeout is how long Lock waits before giving up.
func (tx *Transaction) LockTimeout() time.Duration {
	return tx.timeout
}

// Lock acquires a read or write lock on block. Locks are reentrant and a read
// lock may be upgraded to a write lock.
func (tx *Transaction) Lock(block int, write bool) error {
	h, ok := tx.held[block]
	if !ok {
		h = &heldLock{}
		tx.held[block] = h
	}
	if (write && h.writes > 0) || (!write && (h.reads > 0 || h.writes > 0)) {
		tx.count(h, write)
		return nil
	}
	ownReaders := 0
	if h.reads > 0 {
		ownReaders = 1
	}
	mode := modeName(write)
	start := time.Now()
	err := tx.kv.locks.acquire(block, write, ownReaders, tx.timeout)
	metrics.LockWait.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	if err != nil {
		if h.reads == 0 && h.writes == 0 {
			delete(tx.held, block)
		}
		metrics.LockTimeouts.Inc()
		tx.kv.logger.Warn("lock timeout", "block", block, "mode", mode, "timeout", tx.timeout, "tx", tx.ID())
		return fmt.Errorf("%s lock on block %d: %w", mode, block, ErrLockTimeout)
	}
	tx.count(h, write)
	return nil
}

func (tx *Transaction) count(h *heldLock, write bool) {
	if write {
		h.writes++
	} else {
		h.reads++
	}
}

// Unlock releases one Lock of block. Releasing the last write lock publishes
// the pages the transaction changed in the block.
func (tx *Transaction) Unlock(block int, write bool) {
	h, ok := tx.held[block]
	if !ok {
		return
	}
	if write {
		if h.writes == 0 {
			return
		}
		h.writes--
		if h.writes == 0 {
			tx.publish(block)
			tx.kv.locks.release(block, true)
		}
	} else {
		if h.reads == 0 {
			return
		}
		h.reads--
		if h.reads == 0 {
			tx.kv.locks.release(block, false)
		}
	}
	if h.reads == 0 && h.writes == 0 {
		delete(tx.held, block)
	}
}

func (tx *Transaction) publish(block int) {
	pages, ok := tx.dirty[block]
	if !ok {
		return
	}
	delete(tx.dirty, block)
	list := make([]*pager.Page, 0, len(pages))
	for _, p := range pages {
		list = append(list, p)
	}
	tx.kv.pager.Publish(list)
	tx.published[block] = append(tx.published[block], list...)
}

// Flush writes every published page to storage.
func (tx *Transaction) Flush() error {
	var pages []*pager.Page
	for _, ps := range tx.published {
		pages = append(pages, ps...)
	}
	if err := tx.kv.pager.Flush(pages); err != nil {
		tx.kv.logger.Error("flush failed", "pages", len(pages), "tx", tx.ID(), "error", err)
		return err
	}
	metrics.PagesFlushed.Add(float64(len(pages)))
	return nil
}

// Commit forgets the flushed pages of block.
func (tx *Transaction) Commit(block int) {
	delete(tx.published, block)
}

// Rollback discards every change that has not been published. Locks are left
// to be released by their holders.
func (tx *Transaction) Rollback() {
	clear(tx.dirty)
}

// holds reports whether the transaction holds a lock on block, and a write
// lock when write is set.
func (tx *Transaction) holds(block int, write bool) bool {
	h, ok := tx.held[block]
	if !ok {
		return false
	}
	if write {
		return h.writes > 0
	}
	return h.reads > 0 || h.writes > 0
}

func (tx *Transaction) readPage(block, pageNumber int) (*pager.Page, error) {
	if !tx.holds(block, false) {
		return nil, fmt.Errorf("read page %d of block %d: %w", pageNumber, block, ErrNotLocked)
	}
	if p, ok := tx.dirty[block][pageNumber]; ok {
		return p, nil
	}
	return tx.kv.pager.GetPage(pageNumber)
}

func (tx *Transaction) writePage(block, pageNumber int) (*pager.Page, error) {
	if !tx.holds(block, true) {
		return nil, fmt.Errorf("write page %d of block %d: %w", pageNumber, block, ErrNotLocked)
	}
	if p, ok := tx.dirty[block][pageNumber]; ok {
		return p, nil
	}
	p, err := tx.kv.pager.ClonePage(pageNumber)
	if err != nil {
		return nil, err
	}
	tx.track(block, p)
	return p, nil
}

func (tx *Transaction) newPage(block int) (*pager.Page, error) {
	if !tx.holds(block, true) {
		return nil, fmt.Errorf("allocate page in block %d: %w", block, ErrNotLocked)
	}
	p := tx.kv.pager.NewPage()
	tx.track(block, p)
	return p, nil
}

func (tx *Transaction) track(block int, p *pager.Page) {
	pages, ok := tx.dirty[block]
	if !ok {
		pages = map[int]*pager.Page{}
		tx.dirty[block] = pages
	}
	pages[p.GetNumber()] = p
}

// CreateTree allocates an empty B-tree in block and returns its root page.
func (tx *Transaction) CreateTree(block int) (int, error) {
	p, err := tx.newPage(block)
	if err != nil {
		return 0, err
	}
	return p.GetNumber(), nil
}

func modeName(write bool) string {
	if write {
		return "write"
	}
	return "read"
}
