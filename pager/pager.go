// Accessed by the kv layer. The pager provides an API for read and write access
// of pages. The pager handles caching the file operations of loading pages into
// memory and journaling writes.
package pager

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"

	"github.com/chirst/relq/pager/cache"
	pkgerrors "github.com/pkg/errors"
)

// The pager is an abstraction over the database file. The file is formatted
// with a header and pages as follows:
// +---------+
// | HEADER  |
// +---------+
// | Page 1  |
// +---------+
// | Page 2  |
// +---------+
// | Page n  |
// +---------+
// | Page... |
// +---------+

const (
	// journalSuffix is the suffix of the filename the rollback journal uses.
	// If the database file is called relq.db a journal will be called
	// relq-journal.db
	journalSuffix = "-journal"
	// DefaultDBFileName is the default name of the file the database uses. The
	// file extension is .db.
	DefaultDBFileName = "relq"
	// defaultPageCacheSize is the default amount of pages that can be cached in
	// memory.
	defaultPageCacheSize = 1000
)

// File header constants
const (
	// freePageCounterOffset is in the first position of the file header. It
	// stores the last allocated page.
	freePageCounterOffset = 0
	// freePageCounterSize is a uint32 and must match the size of the page
	// pointer size.
	freePageCounterSize = 4
	// rootPageStart marks the end of the file header.
	rootPageStart = 4
)

// Page constants
const (
	// pageSize is the byte size of a single page. This size is used to
	// calculate the offset for each block.
	//
	// The capacity of the database can be calculated with the pageSize and the
	// PAGE_POINTER_SIZE. For example 4096 * 4,294,967,295 = 1.7592186e+13 bytes
	// which is 17.5 Terabytes. This number could be much larger given the page
	// size was increased. It is eventually limited to the size of a file
	// allowed by the operating system.
	pageSize = 4096
	// PageSize is the exported page size so callers can bound record sizes.
	PageSize = pageSize
	// pageTypeUnknown is an invalid type.
	pageTypeUnknown = 0
	// pageTypeInternal is a page representing a B tree internal node.
	pageTypeInternal = 1
	// pageTypeLeaf is a page representing a B tree leaf.
	pageTypeLeaf   = 2
	pageTypeOffset = 0
	// pageTypeSize is a uint16
	pageTypeSize = 2
	// pagePointerSize is a uint32 and must be consistent with the free page
	// counter.
	pagePointerSize       = 4
	parentPointerOffset   = pageTypeOffset + pageTypeSize
	leftPointerOffset     = parentPointerOffset + pagePointerSize
	rightPointerOffset    = leftPointerOffset + pagePointerSize
	pageRecordCountOffset = rightPointerOffset + pagePointerSize
	// pageRecordCountSize is a uint16 and stores the number of records in a
	// page.
	pageRecordCountSize = 2
	// pageRowOffsetsOffset marks the start of offsets that map to the tuple
	// positions on a page.
	pageRowOffsetsOffset = pageRecordCountOffset + pageRecordCountSize
	// pageRowOffsetSize is a uint16 that is the size of each offset.
	pageRowOffsetSize = 2
	// emptyParentPageNumber is a reserved number to indicate no parent.
	emptyParentPageNumber = 0
)

// pageCache defines the page caching interface.
type pageCache interface {
	Get(pageNumber int) ([]byte, bool)
	Add(key int, value []byte)
	Remove(key int)
}

// Pager is an abstraction of the database file. Pager handles efficiently
// accessing the file in a thread safe manner and atomically writing to the
// file.
//
// Page buffers handed out by GetPage are shared and must never be modified.
// A writer works on a private copy from ClonePage and hands it back with
// Publish once it holds the page's block lock. Published pages stay pinned in
// memory until Flush writes them to storage.
type Pager struct {
	// mu guards currentMaxPage, unflushed and storage access.
	mu sync.Mutex
	// store implements storage and is typically a file, but also can be an in
	// memory representation for testing purposes.
	store storage
	// currentMaxPage is a counter that holds the last allocated page number.
	currentMaxPage int
	// unflushed holds published pages that have not been written to storage.
	// They are never evicted since storage is out of date for them.
	unflushed map[int][]byte
	// pageCache caches frequently used pages to reduce expensive reads from
	// the filesystem.
	pageCache pageCache
	logger    *slog.Logger
}

// Option configures a Pager.
type Option func(*Pager)

// WithCacheSize sets how many pages are cached in memory.
func WithCacheSize(size int) Option {
	return func(p *Pager) {
		if size > 0 {
			p.pageCache = cache.NewLRU(size)
		}
	}
}

// WithLogger sets the logger used for journal recovery and flush events.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pager) {
		if l != nil {
			p.logger = l
		}
	}
}

// New creates a new pager. The useMemory flag means the database will not
// create a file or persist changes to disk. This is useful for testing
// purposes.
func New(useMemory bool, filename string, opts ...Option) (*Pager, error) {
	var s storage
	recovered := false
	if useMemory {
		s = newMemoryStorage()
	} else {
		fs, err := newFileStorage(filename)
		if err != nil {
			return nil, err
		}
		recovered = fs.recovered
		s = fs
	}
	p := &Pager{
		store:     s,
		unflushed: map[int][]byte{},
		pageCache: cache.NewLRU(defaultPageCacheSize),
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(p)
	}
	fpc, err := allocateFreePageCounter(s)
	if err != nil {
		return nil, err
	}
	p.currentMaxPage = fpc
	if recovered {
		p.logger.Info("restored database from rollback journal", "file", getFileName(filename))
	}
	return p, nil
}

// Read the free page counter from the file header.
func allocateFreePageCounter(s storage) (int, error) {
	fb := make([]byte, freePageCounterSize)
	if _, err := s.ReadAt(fb, freePageCounterOffset); err != nil {
		return 0, pkgerrors.Wrap(err, "read free page counter")
	}
	fpc := int(binary.LittleEndian.Uint32(fb))
	// If the max page is the reserved page number the free page counter has not
	// yet been set. Meaning the max page should be 1 since page 1 always holds
	// the schema table.
	if fpc == emptyParentPageNumber {
		fpc = 1
	}
	return fpc, nil
}

// headerBytes encodes the file header.
func (p *Pager) headerBytes() []byte {
	fb := make([]byte, freePageCounterSize)
	binary.LittleEndian.PutUint32(fb, uint32(p.currentMaxPage))
	return fb
}

// GetPage returns the current published version of a page. The returned page
// is shared and must be treated as read only.
func (p *Pager) GetPage(pageNumber int) (*Page, error) {
	if pageNumber <= emptyParentPageNumber {
		return nil, fmt.Errorf("invalid page number %d", pageNumber)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if v, ok := p.unflushed[pageNumber]; ok {
		return p.allocatePage(pageNumber, v), nil
	}
	if v, hit := p.pageCache.Get(pageNumber); hit {
		return p.allocatePage(pageNumber, v), nil
	}
	page := make([]byte, pageSize)
	if err := p.store.lock().RLock(); err != nil {
		return nil, err
	}
	_, err := p.store.ReadAt(page, pageOffset(pageNumber))
	if uerr := p.store.lock().RUnlock(); err == nil {
		err = uerr
	}
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "read page %d", pageNumber)
	}
	p.pageCache.Add(pageNumber, page)
	return p.allocatePage(pageNumber, page), nil
}

// ClonePage returns a private copy of a page that the caller may modify.
func (p *Pager) ClonePage(pageNumber int) (*Page, error) {
	pg, err := p.GetPage(pageNumber)
	if err != nil {
		return nil, err
	}
	return pg.Clone(), nil
}

// NewPage increases the free page counter and allocates a new private leaf
// page.
func (p *Pager) NewPage() *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.currentMaxPage += 1
	np := p.allocatePage(p.currentMaxPage, make([]byte, pageSize))
	np.SetType(pageTypeLeaf)
	return np
}

// MaxPage returns the highest allocated page number.
func (p *Pager) MaxPage() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentMaxPage
}

// Publish makes private pages visible to readers. The caller must hold the
// write lock of the block the pages belong to.
func (p *Pager) Publish(pages []*Page) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, pg := range pages {
		p.unflushed[pg.number] = pg.content
		p.pageCache.Remove(pg.number)
	}
}

// Flush writes published pages to storage. A journal holding the previous
// content of the pages is created first and removed after all pages have been
// written. If there is a crash while the pages are being written the journal
// will be played back the next time the db is opened. This enables the
// database to write atomically.
func (p *Pager) Flush(pages []*Page) (err error) {
	if len(pages) == 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fl := p.store.lock()
	if err := fl.Lock(); err != nil {
		return err
	}
	defer func() {
		if uerr := fl.Unlock(); err == nil {
			err = uerr
		}
	}()
	numbers := make([]int, 0, len(pages))
	for _, pg := range pages {
		numbers = append(numbers, pg.number)
	}
	if err := p.store.CreateJournal(numbers); err != nil {
		return err
	}
	for _, pg := range pages {
		if err := p.writePage(pg); err != nil {
			return err
		}
	}
	if _, err := p.store.WriteAt(p.headerBytes(), freePageCounterOffset); err != nil {
		return pkgerrors.Wrap(err, "write free page counter")
	}
	if err := p.store.Sync(); err != nil {
		return err
	}
	if err := p.store.DeleteJournal(); err != nil {
		return err
	}
	for _, pg := range pages {
		// A later writer may have published a newer version already.
		if cur, ok := p.unflushed[pg.number]; ok && &cur[0] == &pg.content[0] {
			delete(p.unflushed, pg.number)
			p.pageCache.Add(pg.number, pg.content)
		}
	}
	return nil
}

// writePage writes the page to storage.
func (p *Pager) writePage(page *Page) error {
	_, err := p.store.WriteAt(page.content, pageOffset(page.GetNumber()))
	return pkgerrors.Wrapf(err, "write page %d", page.GetNumber())
}

// Close releases the underlying storage.
func (p *Pager) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.store.Close()
}

// allocatePage is a helper function that is capable of converting the
// underlying byte slice into a page structure.
func (p *Pager) allocatePage(pageNumber int, content []byte) *Page {
	np := &Page{
		content: content,
		number:  pageNumber,
	}
	return np
}

