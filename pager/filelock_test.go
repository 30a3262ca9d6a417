package pager

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func mustFlockFileLock(t *testing.T, path string) fileLock {
	t.Helper()
	fl, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		t.Fatalf("error opening db file: %s", err)
	}
	t.Cleanup(func() { fl.Close() })
	l, err := newFlockFileLock(fl.Fd())
	if err != nil {
		t.Skip(err)
	}
	return l
}

func TestMultipleExclusive(t *testing.T) {
	l := mustFlockFileLock(t, filepath.Join(t.TempDir(), "lock.db"))
	var inCritical atomic.Int32
	var didErrShared atomic.Bool
	var didErrLocking atomic.Bool
	wg := sync.WaitGroup{}
	criticalCount := 4

	wg.Add(criticalCount)
	for range criticalCount {
		go func() {
			defer wg.Done()
			if err := l.Lock(); err != nil {
				didErrLocking.Store(true)
				return
			}
			if inCritical.Add(1) > 1 {
				didErrShared.Store(true)
			}
			time.Sleep(20 * time.Millisecond)
			inCritical.Add(-1)
			if err := l.Unlock(); err != nil {
				didErrLocking.Store(true)
			}
		}()
	}
	wg.Wait()

	if didErrShared.Load() {
		t.Fatal("two or more in critical section")
	}
	if didErrLocking.Load() {
		t.Fatal("a lock failed")
	}
}

func TestSharedReaders(t *testing.T) {
	locks := map[string]fileLock{
		"memory": newMemoryFileLock(),
		"flock":  mustFlockFileLock(t, filepath.Join(t.TempDir(), "shared.db")),
	}
	for name, l := range locks {
		t.Run(name, func(t *testing.T) {
			if err := l.RLock(); err != nil {
				t.Fatal(err)
			}
			done := make(chan struct{})
			go func() {
				if err := l.RLock(); err != nil {
					t.Error(err)
				}
				if err := l.RUnlock(); err != nil {
					t.Error(err)
				}
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatal("second reader blocked")
			}
			if err := l.RUnlock(); err != nil {
				t.Fatal(err)
			}
		})
	}
}

// A second handle on the same file stands in for another process. Its
// exclusive lock must wait until the last reader of the first handle is done.
func TestLastReaderReleasesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "readers.db")
	readers := mustFlockFileLock(t, path)
	writer := mustFlockFileLock(t, path)
	if err := readers.RLock(); err != nil {
		t.Fatal(err)
	}
	if err := readers.RLock(); err != nil {
		t.Fatal(err)
	}
	if err := readers.RUnlock(); err != nil {
		t.Fatal(err)
	}
	locked := make(chan struct{})
	go func() {
		if err := writer.Lock(); err != nil {
			t.Error(err)
		}
		close(locked)
	}()
	select {
	case <-locked:
		t.Fatal("writer locked while a reader holds the file")
	case <-time.After(50 * time.Millisecond):
	}
	if err := readers.RUnlock(); err != nil {
		t.Fatal(err)
	}
	select {
	case <-locked:
	case <-time.After(time.Second):
		t.Fatal("writer not released after the last reader")
	}
	if err := writer.Unlock(); err != nil {
		t.Fatal(err)
	}
}
