package pager

import (
	"fmt"
	"runtime"
	"sync"
	"syscall"

	pkgerrors "github.com/pkg/errors"
)

// fileLock guards the storage while pages are read from it or flushed to it.
// Block locks order transactions inside one process. fileLock additionally
// keeps another process from reading a half written flush.
type fileLock interface {
	Lock() error
	Unlock() error
	RLock() error
	RUnlock() error
}

// memoryFileLock is used when there is no file to lock.
type memoryFileLock struct {
	l sync.RWMutex
}

func newMemoryFileLock() *memoryFileLock {
	return &memoryFileLock{}
}

func (m *memoryFileLock) Lock() error {
	m.l.Lock()
	return nil
}

func (m *memoryFileLock) Unlock() error {
	m.l.Unlock()
	return nil
}

func (m *memoryFileLock) RLock() error {
	m.l.RLock()
	return nil
}

func (m *memoryFileLock) RUnlock() error {
	m.l.RUnlock()
	return nil
}

// flockFileLock is a cross process reader/writer lock built on flock. It is
// advisory, only processes that take the lock are kept out. Readers can starve
// a waiting flush.
type flockFileLock struct {
	fd int
	// inProcess orders goroutines of this process since flock is held per
	// open file description, not per goroutine.
	inProcess sync.RWMutex
	// mu guards readers. The shared flock is taken by the first reader of the
	// process and released by the last.
	mu      sync.Mutex
	readers int
}

func newFlockFileLock(fd uintptr) (fileLock, error) {
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" {
		return nil, fmt.Errorf("file lock does not support %s", runtime.GOOS)
	}
	return &flockFileLock{fd: int(fd)}, nil
}

func (l *flockFileLock) Lock() error {
	l.inProcess.Lock()
	if err := syscall.Flock(l.fd, syscall.LOCK_EX); err != nil {
		l.inProcess.Unlock()
		return pkgerrors.Wrap(err, "lock db file exclusive")
	}
	return nil
}

func (l *flockFileLock) Unlock() error {
	defer l.inProcess.Unlock()
	return pkgerrors.Wrap(syscall.Flock(l.fd, syscall.LOCK_UN), "unlock db file")
}

func (l *flockFileLock) RLock() error {
	l.inProcess.RLock()
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.readers == 0 {
		if err := syscall.Flock(l.fd, syscall.LOCK_SH); err != nil {
			l.inProcess.RUnlock()
			return pkgerrors.Wrap(err, "lock db file shared")
		}
	}
	l.readers++
	return nil
}

func (l *flockFileLock) RUnlock() error {
	defer l.inProcess.RUnlock()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.readers--
	if l.readers > 0 {
		return nil
	}
	return pkgerrors.Wrap(syscall.Flock(l.fd, syscall.LOCK_UN), "unlock db file")
}
