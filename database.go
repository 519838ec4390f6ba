// Package sqlitecore is the root facade over the storage core: opening
// or creating a SQLite 3 compatible file, reading and updating its
// header, and obtaining B-Tree handles for tables and indexes. It does
// not parse SQL, plan queries, or maintain a schema catalog - callers
// track their own table/index root page numbers.
package sqlitecore

import (
	"github.com/sirupsen/logrus"

	"github.com/joeandaverde/sqlitecore/internal/btree"
	"github.com/joeandaverde/sqlitecore/internal/pager"
	"github.com/joeandaverde/sqlitecore/internal/storage"
)

// DefaultPageSize matches SQLite's own default.
const DefaultPageSize = 4096

// Config controls database creation; zero values fall back to
// DefaultPageSize and no reserved space.
type Config struct {
	PageSize      uint32
	ReservedSpace byte
	Log           *logrus.Logger
}

// Database is a handle onto one SQLite 3 compatible file.
type Database struct {
	pager *pager.Pager
	pool  *pager.Pool
	log   *logrus.Logger
}

// poolOwnerID identifies this Database to its own Pool across its
// methods; a Database is one logical caller that may reenter the pool
// across nested calls without blocking on itself.
const poolOwnerID = 1

// Create initializes a brand new database file at path.
func Create(path string, cfg Config) (*Database, error) {
	pageSize := cfg.PageSize
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	log := cfg.Log
	if log == nil {
		log = logrus.New()
	}
	p, err := pager.Create(path, pageSize, cfg.ReservedSpace, log)
	if err != nil {
		return nil, err
	}
	return &Database{pager: p, pool: pager.NewPool(p), log: log}, nil
}

// Open loads an existing database file at path.
func Open(path string, cfg Config) (*Database, error) {
	log := cfg.Log
	if log == nil {
		log = logrus.New()
	}
	p, err := pager.Open(path, log)
	if err != nil {
		return nil, err
	}
	return &Database{pager: p, pool: pager.NewPool(p), log: log}, nil
}

// Header returns the current database header.
func (d *Database) Header() storage.Header {
	return d.pager.Header()
}

// UpdateHeader replaces header fields the caller owns (schema cookie,
// user_version, application_id, text encoding); page count and
// freelist bookkeeping remain pager-owned.
func (d *Database) UpdateHeader(h storage.Header) {
	d.pager.UpdateHeader(h)
}

// CreateTable allocates a new, empty table B-Tree and returns a handle
// onto it. The caller is responsible for remembering its root page
// number (e.g. in its own schema representation).
func (d *Database) CreateTable() (*btree.Tree, error) {
	d.pool.Acquire(poolOwnerID, pager.ModeWrite)
	defer d.pool.Release(poolOwnerID)
	return btree.Create(d.pager, btree.Table)
}

// CreateIndex allocates a new, empty index B-Tree.
func (d *Database) CreateIndex() (*btree.Tree, error) {
	d.pool.Acquire(poolOwnerID, pager.ModeWrite)
	defer d.pool.Release(poolOwnerID)
	return btree.Create(d.pager, btree.Index)
}

// OpenBTree returns a handle onto the B-Tree already rooted at root.
func (d *Database) OpenBTree(root int, kind btree.Kind) *btree.Tree {
	return btree.Open(d.pager, root, kind)
}

// Commit flushes every dirty page and the header to disk.
func (d *Database) Commit() error {
	d.pool.Acquire(poolOwnerID, pager.ModeWrite)
	defer d.pool.Release(poolOwnerID)
	d.log.Debug("sqlitecore: commit")
	return d.pager.Flush()
}

// Close commits and releases the underlying file.
func (d *Database) Close() error {
	d.pool.Acquire(poolOwnerID, pager.ModeWrite)
	defer d.pool.Release(poolOwnerID)
	return d.pager.Close()
}
