package kv

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

func TestLockTable(t *testing.T) {
	t.Run("shared readers", func(t *testing.T) {
		lt := newLockTable()
		if err := lt.acquire(7, false, 0, time.Second); err != nil {
			t.Fatal(err)
		}
		if err := lt.acquire(7, false, 0, time.Second); err != nil {
			t.Fatal(err)
		}
		if err := lt.acquire(7, true, 0, 10*time.Millisecond); !errors.Is(err, ErrLockTimeout) {
			t.Fatalf("expected ErrLockTimeout got %v", err)
		}
	})

	t.Run("upgrade sole reader", func(t *testing.T) {
		lt := newLockTable()
		if err := lt.acquire(3, false, 0, time.Second); err != nil {
			t.Fatal(err)
		}
		if err := lt.acquire(3, true, 1, time.Second); err != nil {
			t.Fatalf("expected upgrade got %v", err)
		}
	})

	t.Run("waiting writer blocks new readers", func(t *testing.T) {
		lt := newLockTable()
		if err := lt.acquire(1, false, 0, time.Second); err != nil {
			t.Fatal(err)
		}
		done := make(chan error)
		go func() { done <- lt.acquire(1, true, 0, time.Second) }()
		time.Sleep(20 * time.Millisecond)
		if err := lt.acquire(1, false, 0, 10*time.Millisecond); !errors.Is(err, ErrLockTimeout) {
			t.Fatalf("expected reader to wait behind writer got %v", err)
		}
		lt.release(1, false)
		if err := <-done; err != nil {
			t.Fatal(err)
		}
	})

	t.Run("exclusive writers", func(t *testing.T) {
		lt := newLockTable()
		var inside, maxInside atomic.Int32
		var g errgroup.Group
		for range 20 {
			g.Go(func() error {
				if err := lt.acquire(5, true, 0, 5*time.Second); err != nil {
					return err
				}
				n := inside.Add(1)
				for {
					m := maxInside.Load()
					if n <= m || maxInside.CompareAndSwap(m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				inside.Add(-1)
				lt.release(5, true)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			t.Fatal(err)
		}
		if m := maxInside.Load(); m != 1 {
			t.Fatalf("expected one writer at a time got %d", m)
		}
	})
}

func TestTransactionLock(t *testing.T) {
	kv := mustNewMemoryKV(t)
	a := kv.Begin()
	b := kv.Begin()
	if err := a.Lock(2, true); err != nil {
		t.Fatal(err)
	}
	// Reentrant.
	if err := a.Lock(2, false); err != nil {
		t.Fatal(err)
	}
	if err := b.Lock(2, false); !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout got %v", err)
	}
	a.Unlock(2, false)
	a.Unlock(2, true)
	if err := b.Lock(2, false); err != nil {
		t.Fatalf("expected lock after release got %v", err)
	}
	b.Unlock(2, false)
}
