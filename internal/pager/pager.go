// Package pager implements the page cache, allocator, and freelist that
// mediate all file I/O for the storage core. It owns every in-memory page
// buffer; callers obtain pages only through scoped borrows (GetPage /
// GetPageMut followed by PutPage) and never hold a page across another
// call that might evict or mutate the cache.
package pager

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/joeandaverde/sqlitecore/internal/errs"
	"github.com/joeandaverde/sqlitecore/internal/storage"
)

type cacheEntry struct {
	data  []byte
	dirty bool
}

// Mode records which access a Pool-mediated caller currently holds. A
// Pager used directly (outside a Pool) is always ModeWrite; Pool moves
// it to ModeWrite on Acquire and back to ModeRead on Release, so a
// caller can observe (via Mode) whether it is the pool's current
// writer. Mode is advisory bookkeeping for pool callers - it does not
// gate Pager's own mutating methods, which remain directly usable by
// B-Tree code that never goes through a Pool.
type Mode int

const (
	ModeRead Mode = iota
	ModeWrite
)

// Pager maps page numbers to typed in-memory pages and mediates all file
// I/O. It caches by page number, keeps all dirty pages pinned, and is
// safe for concurrent use - reads may proceed concurrently, writes take
// an exclusive lock, following a read-then-upgrade pattern so the common
// cache-hit path never blocks other readers.
type Pager struct {
	mu     sync.RWMutex
	file   *os.File
	header storage.Header
	cache  map[int]*cacheEntry
	log    *logrus.Logger
	mode   Mode
}

// Mode returns the pager's current read/write mode.
func (p *Pager) Mode() Mode {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.mode
}

// SetMode changes the pager's read/write mode. pager.Pool calls this to
// grant and later revoke write access across callers sharing one Pager.
func (p *Pager) SetMode(mode Mode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mode = mode
}

// Create initializes a brand new database file at path with the given
// page size and reserved space, writing the file header and an empty
// table-leaf root page.
func Create(path string, pageSize uint32, reserved byte, log *logrus.Logger) (*Pager, error) {
	if !storage.ValidPageSize(pageSize) {
		return nil, errs.ErrInvalidPageSize
	}
	if log == nil {
		log = logrus.New()
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("pager: create %s: %w", path, err)
	}
	p := &Pager{
		file:   file,
		header: storage.NewHeader(pageSize, reserved),
		cache:  make(map[int]*cacheEntry),
		log:    log,
		mode:   ModeWrite,
	}
	root := storage.NewPage(1, int(pageSize), reserved, storage.PageTypeTableLeaf)
	if err := root.SetCells(nil); err != nil {
		return nil, err
	}
	if err := p.PutPage(root); err != nil {
		return nil, err
	}
	if err := p.Flush(); err != nil {
		return nil, err
	}
	log.WithField("path", path).WithField("page_size", pageSize).Debug("pager: created database")
	return p, nil
}

// Open loads an existing database file, validating its header.
func Open(path string, log *logrus.Logger) (*Pager, error) {
	if log == nil {
		log = logrus.New()
	}
	file, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("pager: open %s: %w", path, err)
	}
	headerBytes := make([]byte, storage.HeaderSize)
	if _, err := io.ReadFull(file, headerBytes); err != nil {
		return nil, fmt.Errorf("pager: read header: %w", errs.ErrCorruptFile)
	}
	header, err := storage.ParseHeader(headerBytes)
	if err != nil {
		return nil, err
	}
	p := &Pager{
		file:   file,
		header: header,
		cache:  make(map[int]*cacheEntry),
		log:    log,
		mode:   ModeWrite,
	}
	log.WithField("path", path).WithField("page_count", header.PageCount).Debug("pager: opened database")
	return p, nil
}

// Header returns a copy of the current in-memory database header.
func (p *Pager) Header() storage.Header {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.header
}

// UpdateHeader replaces the in-memory header; PageCount and the freelist
// fields remain owned by the pager and are not overwritten.
func (p *Pager) UpdateHeader(h storage.Header) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pageCount := p.header.PageCount
	freelistHead := p.header.FirstFreelistPage
	freelistCount := p.header.FreelistCount
	h.PageCount = pageCount
	h.FirstFreelistPage = freelistHead
	h.FreelistCount = freelistCount
	p.header = h
}

// PageSize returns the database's fixed page size.
func (p *Pager) PageSize() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return int(p.header.PageSize)
}

// UsableSize returns page_size - reserved_space.
func (p *Pager) UsableSize() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.header.UsableSize()
}

// ReservedSpace returns the per-page reserved byte count.
func (p *Pager) ReservedSpace() byte {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.header.ReservedSpace
}

func (p *Pager) pageOffset(n int) int64 {
	return int64(n-1) * int64(p.header.PageSize)
}

// readThrough loads page n from disk into the cache if it isn't already
// present, returning the cached raw bytes. Callers must hold at least a
// read lock; on a cache miss this method upgrades to a write lock
// internally (lock-upgrade-on-miss), re-checking the cache after
// acquiring it in case another goroutine populated it meanwhile.
func (p *Pager) readThrough(n int) ([]byte, error) {
	if n < 1 || n > int(p.header.PageCount) {
		return nil, fmt.Errorf("pager: page %d out of bounds: %w", n, errs.ErrCorruptFile)
	}
	if entry, ok := p.cache[n]; ok {
		return entry.data, nil
	}
	p.mu.RUnlock()
	p.mu.Lock()
	defer func() {
		p.mu.Unlock()
		p.mu.RLock()
	}()
	if entry, ok := p.cache[n]; ok {
		return entry.data, nil
	}
	buf := make([]byte, p.header.PageSize)
	if _, err := p.file.ReadAt(buf, p.pageOffset(n)); err != nil {
		return nil, fmt.Errorf("pager: read page %d: %w", n, errs.ErrCorruptFile)
	}
	p.cache[n] = &cacheEntry{data: buf}
	return buf, nil
}

// GetPage decodes and returns a read-only borrow of page n. The returned
// *storage.Page is a fresh decode; mutating it has no effect on the
// cache unless passed back to PutPage.
func (p *Pager) GetPage(n int) (*storage.Page, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.getPageLocked(n)
}

func (p *Pager) getPageLocked(n int) (*storage.Page, error) {
	raw, err := p.readThrough(n)
	if err != nil {
		return nil, err
	}
	return storage.ParsePage(n, int(p.header.PageSize), p.header.ReservedSpace, raw)
}

// GetPageMut is identical to GetPage; the distinction from the
// read-only form exists at the call site to make mutating intent
// explicit, since every mutation must be completed by a PutPage call
// before the page is borrowed again (nested borrows are disallowed).
func (p *Pager) GetPageMut(n int) (*storage.Page, error) {
	return p.GetPage(n)
}

// PutPage re-encodes page and writes it into the cache, marking it
// dirty. It is the only way a mutation becomes visible to later borrows
// or to Flush.
func (p *Pager) PutPage(page *storage.Page) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := page.Number()
	if n < 1 {
		return fmt.Errorf("pager: invalid page number %d", n)
	}
	p.cache[n] = &cacheEntry{data: append([]byte(nil), page.Encode()...), dirty: true}
	return nil
}

// AllocatePage returns a fresh, empty page of the given type, preferring
// reuse of a page popped from the freelist before extending the file.
// The returned page is already registered with the cache (dirty); the
// caller populates it (e.g. via SetCells) and calls PutPage again.
func (p *Pager) AllocatePage(pageType storage.PageType) (*storage.Page, error) {
	p.mu.Lock()
	n, err := p.allocatePageNumberLocked()
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}
	pg := storage.NewPage(n, int(p.PageSize()), p.ReservedSpace(), pageType)
	if err := pg.SetCells(nil); err != nil {
		return nil, err
	}
	if err := p.PutPage(pg); err != nil {
		return nil, err
	}
	p.log.WithField("page", n).WithField("type", pageType).Debug("pager: allocated page")
	return pg, nil
}

// allocatePageNumberLocked pops a page number from the freelist if one
// is available, else extends the file by one page. Caller holds p.mu.
func (p *Pager) allocatePageNumberLocked() (int, error) {
	if n, ok, err := p.popFreelistLocked(); err != nil {
		return 0, err
	} else if ok {
		return n, nil
	}
	p.header.PageCount++
	return int(p.header.PageCount), nil
}

// FreePage links page n into the on-disk freelist: pushed as a leaf
// pointer of the current trunk if it has room, else becoming a new
// trunk itself.
func (p *Pager) FreePage(n int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.cache, n)

	usable := p.header.UsableSize()
	capacity := (usable - 8) / 4

	if p.header.FirstFreelistPage != 0 {
		trunkNum := int(p.header.FirstFreelistPage)
		trunk, err := p.readFreelistTrunkLocked(trunkNum)
		if err != nil {
			return err
		}
		if len(trunk.leaves) < capacity {
			trunk.leaves = append(trunk.leaves, uint32(n))
			if err := p.writeFreelistTrunkLocked(trunkNum, trunk); err != nil {
				return err
			}
			p.header.FreelistCount++
			return nil
		}
	}

	// n becomes a new trunk page pointing at the previous head.
	newTrunk := freelistTrunk{next: p.header.FirstFreelistPage}
	if err := p.writeFreelistTrunkLocked(n, newTrunk); err != nil {
		return err
	}
	p.header.FirstFreelistPage = uint32(n)
	p.header.FreelistCount++
	return nil
}

// popFreelistLocked pops one page number off the freelist, preferring a
// trunk's leaf pointer and falling back to reclaiming the trunk page
// itself once its leaves are exhausted.
func (p *Pager) popFreelistLocked() (int, bool, error) {
	if p.header.FirstFreelistPage == 0 {
		return 0, false, nil
	}
	trunkNum := int(p.header.FirstFreelistPage)
	trunk, err := p.readFreelistTrunkLocked(trunkNum)
	if err != nil {
		return 0, false, err
	}
	if len(trunk.leaves) > 0 {
		last := trunk.leaves[len(trunk.leaves)-1]
		trunk.leaves = trunk.leaves[:len(trunk.leaves)-1]
		if err := p.writeFreelistTrunkLocked(trunkNum, trunk); err != nil {
			return 0, false, err
		}
		p.header.FreelistCount--
		return int(last), true, nil
	}
	// Trunk is empty: reclaim the trunk page itself.
	p.header.FirstFreelistPage = trunk.next
	p.header.FreelistCount--
	delete(p.cache, trunkNum)
	return trunkNum, true, nil
}

type freelistTrunk struct {
	next   uint32
	leaves []uint32
}

func (p *Pager) readFreelistTrunkLocked(n int) (freelistTrunk, error) {
	raw, err := p.readThroughForWrite(n)
	if err != nil {
		return freelistTrunk{}, err
	}
	return decodeFreelistTrunk(raw), nil
}

func (p *Pager) writeFreelistTrunkLocked(n int, t freelistTrunk) error {
	buf := make([]byte, p.header.PageSize)
	encodeFreelistTrunk(buf, t)
	p.cache[n] = &cacheEntry{data: buf, dirty: true}
	return nil
}

// readThroughForWrite is readThrough's counterpart for callers that
// already hold the write lock.
func (p *Pager) readThroughForWrite(n int) ([]byte, error) {
	if entry, ok := p.cache[n]; ok {
		return entry.data, nil
	}
	if n < 1 || n > int(p.header.PageCount) {
		return nil, fmt.Errorf("pager: page %d out of bounds: %w", n, errs.ErrCorruptFile)
	}
	buf := make([]byte, p.header.PageSize)
	if _, err := p.file.ReadAt(buf, p.pageOffset(n)); err != nil {
		return nil, fmt.Errorf("pager: read page %d: %w", n, errs.ErrCorruptFile)
	}
	p.cache[n] = &cacheEntry{data: buf}
	return buf, nil
}

// CreateOverflowPage allocates a page and writes an overflow chain link:
// a 4-byte next-page pointer followed by payload.
func (p *Pager) CreateOverflowPage(next uint32, payload []byte) (uint32, error) {
	p.mu.Lock()
	n, err := p.allocatePageNumberLocked()
	if err != nil {
		p.mu.Unlock()
		return 0, err
	}
	buf := make([]byte, p.header.PageSize)
	encodeOverflowPage(buf, next, payload)
	p.cache[n] = &cacheEntry{data: buf, dirty: true}
	p.mu.Unlock()
	return uint32(n), nil
}

// ReadOverflowPage returns the next-page pointer and the payload area
// of overflow page n: all page_size-4 bytes after the pointer. The page
// stores no length, so callers trim to the payload size they track.
func (p *Pager) ReadOverflowPage(n int) (uint32, []byte, error) {
	p.mu.RLock()
	raw, err := p.readThrough(n)
	p.mu.RUnlock()
	if err != nil {
		return 0, nil, err
	}
	next, payload := decodeOverflowPage(raw)
	return next, payload, nil
}

// Flush writes every dirty page to the file and persists the header.
// Durability (fsync) is left to the platform's default Sync semantics.
func (p *Pager) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for n, entry := range p.cache {
		if !entry.dirty {
			continue
		}
		if n == 1 {
			copy(entry.data[0:storage.HeaderSize], p.header.Encode())
		}
		if _, err := p.file.WriteAt(entry.data, p.pageOffset(n)); err != nil {
			return fmt.Errorf("pager: write page %d: %w", n, err)
		}
		entry.dirty = false
	}

	headerBuf := p.header.Encode()
	if _, err := p.file.WriteAt(headerBuf, 0); err != nil {
		return fmt.Errorf("pager: write header: %w", err)
	}

	if err := p.file.Sync(); err != nil {
		return fmt.Errorf("pager: sync: %w", err)
	}
	p.log.WithField("page_count", p.header.PageCount).Debug("pager: flushed")
	return nil
}

// Close flushes and releases the underlying file.
func (p *Pager) Close() error {
	if err := p.Flush(); err != nil {
		return err
	}
	return p.file.Close()
}
