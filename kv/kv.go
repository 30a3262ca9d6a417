// KV provides a set of key value operations that implement data structures such
// as a b-tree to efficiently access the page cache. KV implements an
// abstraction called a cursor to efficiently seek and scan the btree. Each B
// tree is referenced with a page number assigned by the catalog.
//
// Every tree belongs to a block. A block is the unit of locking and commit and
// is identified by the root page of the table owning the tree. Index trees
// share the block of their table. The schema table is block 1.
package kv

import (
	"log/slog"
	"time"

	"github.com/chirst/relq/catalog"
	"github.com/chirst/relq/pager"
)

// DefaultLockTimeout is used when Config.LockTimeout is zero.
const DefaultLockTimeout = 5 * time.Second

// Config configures a KV.
type Config struct {
	// UseMemory keeps the database in memory instead of a file.
	UseMemory bool
	// Filename is the database file name without the .db extension.
	Filename string
	// CacheSize is the number of pages cached in memory.
	CacheSize int
	// LockTimeout bounds how long a transaction waits for a block lock.
	LockTimeout time.Duration
	Logger      *slog.Logger
}

// KV is an abstraction on the pager module that provides efficient reads and
// writes through b tree indexes.
type KV struct {
	pager       *pager.Pager
	catalog     *catalog.Catalog
	locks       *lockTable
	lockTimeout time.Duration
	logger      *slog.Logger
}

// New creates an instance of kv and loads the catalog from the schema table.
func New(cfg Config) (*KV, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	p, err := pager.New(
		cfg.UseMemory,
		cfg.Filename,
		pager.WithCacheSize(cfg.CacheSize),
		pager.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	timeout := cfg.LockTimeout
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	ret := &KV{
		pager:       p,
		catalog:     catalog.NewCatalog(),
		locks:       newLockTable(),
		lockTimeout: timeout,
		logger:      logger,
	}
	if err := ret.ParseSchema(); err != nil {
		return nil, err
	}
	return ret, nil
}

// GetCatalog returns and instance of the system catalog.
func (kv *KV) GetCatalog() *catalog.Catalog {
	return kv.catalog
}

// Close releases the database file.
func (kv *KV) Close() error {
	return kv.pager.Close()
}

// ParseSchema updates the system catalog by reading the schema table.
func (kv *KV) ParseSchema() error {
	tx := kv.Begin()
	if err := tx.Lock(catalog.SchemaRootPage, false); err != nil {
		return err
	}
	objects, err := tx.ReadSchema()
	tx.Unlock(catalog.SchemaRootPage, false)
	if err != nil {
		return err
	}
	if err := kv.catalog.SetSchema(objects); err != nil {
		return err
	}
	kv.logger.Debug("catalog loaded", "objects", len(objects), "version", kv.catalog.GetVersion())
	return nil
}
