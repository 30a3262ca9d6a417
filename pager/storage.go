package pager

// Storage provides an interface for accessing the filesystem. This allows the
// database to run on an in memory buffer if desired.

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	pkgerrors "github.com/pkg/errors"
)

type storage interface {
	io.ReaderAt
	io.WriterAt
	// CreateJournal saves the current header and the current content of the
	// given pages so an interrupted write can be rolled back on the next open.
	CreateJournal(pageNumbers []int) error
	// DeleteJournal removes the journal once every page has been written.
	DeleteJournal() error
	Sync() error
	Close() error
	// lock returns the lock guarding the storage across processes.
	lock() fileLock
}

type memoryStorage struct {
	buf []byte
	l   fileLock
}

func newMemoryStorage() storage {
	return &memoryStorage{
		buf: make([]byte, pageSize),
		l:   newMemoryFileLock(),
	}
}

func (mf *memoryStorage) WriteAt(p []byte, off int64) (n int, err error) {
	for len(mf.buf) < int(off)+len(p) {
		mf.buf = append(mf.buf, make([]byte, pageSize)...)
	}
	copy(mf.buf[off:len(p)+int(off)], p)
	return len(p), nil
}

func (mf *memoryStorage) ReadAt(p []byte, off int64) (n int, err error) {
	for len(mf.buf) < int(off)+len(p) {
		mf.buf = append(mf.buf, make([]byte, pageSize)...)
	}
	copy(p, mf.buf[off:len(p)+int(off)])
	return len(p), nil
}

func (mf *memoryStorage) CreateJournal([]int) error {
	// journal does not matter in memory since all data is lost on a crash
	return nil
}

func (mf *memoryStorage) DeleteJournal() error {
	// journal does not matter in memory since all data is lost on a crash
	return nil
}

func (mf *memoryStorage) Sync() error    { return nil }
func (mf *memoryStorage) Close() error   { return nil }
func (mf *memoryStorage) lock() fileLock { return mf.l }

// fileStorage stores pages in a file next to a rollback journal. The journal
// holds the header followed by records of a 4 byte page number and the page
// content as it was before the write started.
type fileStorage struct {
	file        *os.File
	journalName string
	dbFileName  string
	l           fileLock
	// recovered is true when a journal was played back at open.
	recovered bool
}

func newFileStorage(filename string) (*fileStorage, error) {
	dName := getFileName(filename)
	jName := getJournalName(filename)
	fl, err := os.OpenFile(dName, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "open db file")
	}
	l, err := newFlockFileLock(fl.Fd())
	if err != nil {
		fl.Close()
		return nil, err
	}
	s := &fileStorage{
		file:        fl,
		dbFileName:  dName,
		journalName: jName,
		l:           l,
	}
	recovered, err := s.restoreJournal()
	if err != nil {
		fl.Close()
		return nil, err
	}
	s.recovered = recovered
	return s, nil
}

// restoreJournal copies the before images in the journal back into the db
// file. It returns false when there is no journal.
func (s *fileStorage) restoreJournal() (bool, error) {
	j, err := os.ReadFile(s.journalName)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, pkgerrors.Wrap(err, "read journal")
	}
	if len(j) < rootPageStart {
		// The journal was never completely written so the db file was never
		// touched.
		return true, s.DeleteJournal()
	}
	if _, err := s.file.WriteAt(j[:rootPageStart], freePageCounterOffset); err != nil {
		return false, pkgerrors.Wrap(err, "restore journal header")
	}
	recordSize := pagePointerSize + pageSize
	for off := rootPageStart; off+recordSize <= len(j); off += recordSize {
		pn := int(binary.LittleEndian.Uint32(j[off : off+pagePointerSize]))
		content := j[off+pagePointerSize : off+recordSize]
		if _, err := s.file.WriteAt(content, pageOffset(pn)); err != nil {
			return false, pkgerrors.Wrapf(err, "restore page %d", pn)
		}
	}
	if err := s.file.Sync(); err != nil {
		return false, pkgerrors.Wrap(err, "sync restored db file")
	}
	return true, s.DeleteJournal()
}

func getFileName(filename string) string {
	if filename == "" {
		return fmt.Sprintf("%s.db", DefaultDBFileName)
	}
	return fmt.Sprintf("%s.db", filename)
}

func getJournalName(filename string) string {
	if filename == "" {
		return fmt.Sprintf("%s%s.db", DefaultDBFileName, journalSuffix)
	}
	return fmt.Sprintf("%s%s.db", filename, journalSuffix)
}

func (s *fileStorage) WriteAt(p []byte, off int64) (n int, err error) {
	return s.file.WriteAt(p, off)
}

// ReadAt reads from the db file. Reading past the end of the file yields zero
// bytes since pages are allocated before they are first written.
func (s *fileStorage) ReadAt(p []byte, off int64) (n int, err error) {
	n, err = s.file.ReadAt(p, off)
	if errors.Is(err, io.EOF) {
		clear(p[n:])
		return len(p), nil
	}
	return n, err
}

func (s *fileStorage) CreateJournal(pageNumbers []int) error {
	buf := make([]byte, rootPageStart, rootPageStart+len(pageNumbers)*(pagePointerSize+pageSize))
	if _, err := s.ReadAt(buf, freePageCounterOffset); err != nil {
		return pkgerrors.Wrap(err, "read header for journal")
	}
	page := make([]byte, pageSize)
	for _, pn := range pageNumbers {
		if _, err := s.ReadAt(page, pageOffset(pn)); err != nil {
			return pkgerrors.Wrapf(err, "read page %d for journal", pn)
		}
		buf = binary.LittleEndian.AppendUint32(buf, uint32(pn))
		buf = append(buf, page...)
	}
	f, err := os.OpenFile(s.journalName, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return pkgerrors.Wrap(err, "create journal")
	}
	if _, err := f.Write(buf); err != nil {
		f.Close()
		return pkgerrors.Wrap(err, "write journal")
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return pkgerrors.Wrap(err, "sync journal")
	}
	return pkgerrors.Wrap(f.Close(), "close journal")
}

func (s *fileStorage) DeleteJournal() error {
	err := os.Remove(s.journalName)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return pkgerrors.Wrap(err, "delete journal")
	}
	return nil
}

func (s *fileStorage) Sync() error {
	return pkgerrors.Wrap(s.file.Sync(), "sync db file")
}

func (s *fileStorage) Close() error {
	return pkgerrors.Wrap(s.file.Close(), "close db file")
}

func (s *fileStorage) lock() fileLock { return s.l }

// pageOffset is the file offset of a page. Page number 0 is reserved as a
// pointer to nothing so page 1 starts right after the header.
func pageOffset(pageNumber int) int64 {
	return int64(rootPageStart + (pageNumber-1)*pageSize)
}
