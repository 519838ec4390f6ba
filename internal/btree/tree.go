package btree

import (
	"github.com/joeandaverde/sqlitecore/internal/errs"
	"github.com/joeandaverde/sqlitecore/internal/pager"
	"github.com/joeandaverde/sqlitecore/internal/storage"
)

// Kind distinguishes a table B-Tree (keyed by integer rowid, leaves hold
// a full record) from an index B-Tree (keyed by a composite column
// tuple, leaves hold only the key).
type Kind int

const (
	Table Kind = iota
	Index
)

// Tree is a handle onto one B-Tree living inside a Pager, rooted at a
// fixed page number. Every mutation is applied through scoped page
// borrows (GetPageMut/PutPage); Tree itself holds no page buffers
// between calls.
type Tree struct {
	pager *pager.Pager
	root  int
	kind  Kind
}

// Open returns a handle onto the B-Tree already rooted at root.
func Open(p *pager.Pager, root int, kind Kind) *Tree {
	return &Tree{pager: p, root: root, kind: kind}
}

// Create allocates a fresh, empty root page for a new B-Tree and
// returns a handle onto it.
func Create(p *pager.Pager, kind Kind) (*Tree, error) {
	leafType := storage.PageTypeTableLeaf
	if kind == Index {
		leafType = storage.PageTypeIndexLeaf
	}
	root, err := p.AllocatePage(leafType)
	if err != nil {
		return nil, err
	}
	return &Tree{pager: p, root: root.Number(), kind: kind}, nil
}

// Root returns the tree's root page number, the stable handle by which
// callers (e.g. a schema catalog) refer to this B-Tree.
func (t *Tree) Root() int { return t.root }

func (t *Tree) interiorType() storage.PageType {
	if t.kind == Index {
		return storage.PageTypeIndexInterior
	}
	return storage.PageTypeTableInterior
}

func (t *Tree) leafType() storage.PageType {
	if t.kind == Index {
		return storage.PageTypeIndexLeaf
	}
	return storage.PageTypeTableLeaf
}

func (t *Tree) requireKind(want Kind) error {
	if t.kind != want {
		return errs.ErrWrongTreeType
	}
	return nil
}

// packPayload splits payload into its on-page local portion and,
// when it exceeds max_local, an overflow chain holding the remainder.
func (t *Tree) packPayload(payload []byte) ([]byte, uint32, error) {
	usable := t.pager.UsableSize()
	h := t.pager.Header()
	maxLocal := MaxLocalPayload(usable, h.MaxPayloadFraction)
	minLocal := MinLocalPayload(usable, h.MinPayloadFraction)
	localLen := SplitPayload(len(payload), usable, maxLocal, minLocal)
	if localLen >= len(payload) {
		return payload, 0, nil
	}
	overflowPage, err := t.writeOverflowChain(payload[localLen:])
	if err != nil {
		return nil, 0, err
	}
	return payload[:localLen], overflowPage, nil
}

// writeOverflowChain splits rest into usable-4 byte chunks and links
// them tail-first so each page's next pointer is known before it is
// written, returning the head page number.
func (t *Tree) writeOverflowChain(rest []byte) (uint32, error) {
	chunk := t.pager.UsableSize() - 4
	if chunk <= 0 {
		return 0, errs.ErrCorruptFile
	}
	var chunks [][]byte
	for off := 0; off < len(rest); off += chunk {
		end := off + chunk
		if end > len(rest) {
			end = len(rest)
		}
		chunks = append(chunks, rest[off:end])
	}
	var next uint32
	for i := len(chunks) - 1; i >= 0; i-- {
		pn, err := t.pager.CreateOverflowPage(next, chunks[i])
		if err != nil {
			return 0, err
		}
		next = pn
	}
	return next, nil
}

// readOverflowChain walks an overflow chain collecting exactly total
// bytes, guarding against a cyclic chain via a hop budget.
func (t *Tree) readOverflowChain(start uint32, total int) ([]byte, error) {
	out := make([]byte, 0, total)
	page := start
	hops := 0
	limit := int(t.pager.Header().PageCount) + 1
	for page != 0 && len(out) < total {
		if hops > limit {
			return nil, errs.ErrCorruptChain
		}
		hops++
		next, payload, err := t.pager.ReadOverflowPage(int(page))
		if err != nil {
			return nil, err
		}
		remain := total - len(out)
		if remain < len(payload) {
			payload = payload[:remain]
		}
		out = append(out, payload...)
		page = next
	}
	if len(out) != total {
		return nil, errs.ErrCorruptChain
	}
	return out, nil
}

// freeOverflowChain releases every page in the chain back to the
// freelist.
func (t *Tree) freeOverflowChain(start uint32) error {
	page := start
	for page != 0 {
		next, _, err := t.pager.ReadOverflowPage(int(page))
		if err != nil {
			return err
		}
		if err := t.pager.FreePage(int(page)); err != nil {
			return err
		}
		page = next
	}
	return nil
}

// fullPayload resolves a cell's complete payload, following its
// overflow chain if present.
func (t *Tree) fullPayload(c Cell) ([]byte, error) {
	if !c.HasOverflow() {
		return c.Local, nil
	}
	rest, err := t.readOverflowChain(c.OverflowPage, c.PayloadSize-len(c.Local))
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, c.PayloadSize)
	out = append(out, c.Local...)
	out = append(out, rest...)
	return out, nil
}

// indexKeyAt decodes the composite key stored in the i-th cell of an
// index page, resolving overflow if needed.
func (t *Tree) indexKeyAt(page *storage.Page, i int) (storage.Record, error) {
	raw, err := page.CellBytes(i)
	if err != nil {
		return nil, err
	}
	cell, err := DecodeCell(page.Type(), raw)
	if err != nil {
		return nil, err
	}
	full, err := t.fullPayload(cell)
	if err != nil {
		return nil, err
	}
	rec, _, err := storage.FromBytes(full)
	return rec, err
}

// Find looks up a table row by rowid.
func (t *Tree) Find(rowID int64) (storage.Record, bool, error) {
	if err := t.requireKind(Table); err != nil {
		return nil, false, err
	}
	page, err := t.pager.GetPage(t.root)
	if err != nil {
		return nil, false, err
	}
	for page.Type().IsInterior() {
		if err := requirePageType(page, storage.PageTypeTableInterior); err != nil {
			return nil, false, err
		}
		child, err := descendTableInterior(page, rowID)
		if err != nil {
			return nil, false, err
		}
		page, err = t.pager.GetPage(int(child))
		if err != nil {
			return nil, false, err
		}
	}
	if err := requirePageType(page, storage.PageTypeTableLeaf); err != nil {
		return nil, false, err
	}
	found, idx, err := t.findInLeafTable(page, rowID)
	if err != nil || !found {
		return nil, false, err
	}
	raw, err := page.CellBytes(idx)
	if err != nil {
		return nil, false, err
	}
	cell, err := DecodeTableLeaf(raw)
	if err != nil {
		return nil, false, err
	}
	full, err := t.fullPayload(cell)
	if err != nil {
		return nil, false, err
	}
	rec, _, err := storage.FromBytes(full)
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

func (t *Tree) findInLeafTable(page *storage.Page, rowID int64) (bool, int, error) {
	n := page.CellCount()
	var cmpErr error
	found, idx := searchCells(n, func(i int) int {
		raw, err := page.CellBytes(i)
		if err != nil {
			cmpErr = err
			return 0
		}
		c, err := DecodeTableLeaf(raw)
		if err != nil {
			cmpErr = err
			return 0
		}
		switch {
		case rowID < c.RowID:
			return -1
		case rowID > c.RowID:
			return 1
		default:
			return 0
		}
	})
	return found, idx, cmpErr
}

// FindIndex reports whether key is present in the index tree.
func (t *Tree) FindIndex(key storage.Record) (bool, error) {
	if err := t.requireKind(Index); err != nil {
		return false, err
	}
	_, found, _, err := t.locateIndex(key)
	return found, err
}

// locateIndex walks from the root toward the leaf that would hold key,
// returning the page where key was found (an interior page when key is
// one of its separators, else the leaf), whether key is present, and
// its cell index if so.
func (t *Tree) locateIndex(key storage.Record) (*storage.Page, bool, int, error) {
	page, err := t.pager.GetPage(t.root)
	if err != nil {
		return nil, false, 0, err
	}
	for page.Type().IsInterior() {
		if err := requirePageType(page, storage.PageTypeIndexInterior); err != nil {
			return nil, false, 0, err
		}
		for i := 0; i < page.CellCount(); i++ {
			k, err := t.indexKeyAt(page, i)
			if err != nil {
				return nil, false, 0, err
			}
			if storage.CompareRecords(key, k) == 0 {
				return page, true, i, nil
			}
		}
		child, err := descendIndexInterior(page, key, func(i int) (storage.Record, error) {
			return t.indexKeyAt(page, i)
		})
		if err != nil {
			return nil, false, 0, err
		}
		page, err = t.pager.GetPage(int(child))
		if err != nil {
			return nil, false, 0, err
		}
	}
	if err := requirePageType(page, storage.PageTypeIndexLeaf); err != nil {
		return nil, false, 0, err
	}
	n := page.CellCount()
	var cmpErr error
	found, idx := searchCells(n, func(i int) int {
		rec, err := t.indexKeyAt(page, i)
		if err != nil {
			cmpErr = err
			return 0
		}
		return storage.CompareRecords(key, rec)
	})
	if cmpErr != nil {
		return nil, false, 0, cmpErr
	}
	return page, found, idx, nil
}

// ScanTable walks every row in rowid order, invoking fn until it
// returns false or an error.
func (t *Tree) ScanTable(fn func(rowID int64, rec storage.Record) (bool, error)) error {
	if err := t.requireKind(Table); err != nil {
		return err
	}
	_, err := t.scanTableNode(t.root, fn)
	return err
}

func (t *Tree) scanTableNode(num int, fn func(int64, storage.Record) (bool, error)) (bool, error) {
	page, err := t.pager.GetPage(num)
	if err != nil {
		return false, err
	}
	if page.Type().IsLeaf() {
		for i := 0; i < page.CellCount(); i++ {
			raw, err := page.CellBytes(i)
			if err != nil {
				return false, err
			}
			cell, err := DecodeTableLeaf(raw)
			if err != nil {
				return false, err
			}
			full, err := t.fullPayload(cell)
			if err != nil {
				return false, err
			}
			rec, _, err := storage.FromBytes(full)
			if err != nil {
				return false, err
			}
			cont, err := fn(cell.RowID, rec)
			if err != nil || !cont {
				return false, err
			}
		}
		return true, nil
	}
	for i := 0; i < page.CellCount(); i++ {
		raw, err := page.CellBytes(i)
		if err != nil {
			return false, err
		}
		cell, err := DecodeTableInterior(raw)
		if err != nil {
			return false, err
		}
		cont, err := t.scanTableNode(int(cell.LeftChild), fn)
		if err != nil || !cont {
			return false, err
		}
	}
	return t.scanTableNode(int(page.RightmostChild()), fn)
}

// ScanIndex walks every key in ascending order, invoking fn until it
// returns false or an error.
func (t *Tree) ScanIndex(fn func(key storage.Record) (bool, error)) error {
	if err := t.requireKind(Index); err != nil {
		return err
	}
	_, err := t.scanIndexNode(t.root, fn)
	return err
}

func (t *Tree) scanIndexNode(num int, fn func(storage.Record) (bool, error)) (bool, error) {
	page, err := t.pager.GetPage(num)
	if err != nil {
		return false, err
	}
	if page.Type().IsLeaf() {
		for i := 0; i < page.CellCount(); i++ {
			rec, err := t.indexKeyAt(page, i)
			if err != nil {
				return false, err
			}
			cont, err := fn(rec)
			if err != nil || !cont {
				return false, err
			}
		}
		return true, nil
	}
	for i := 0; i < page.CellCount(); i++ {
		raw, err := page.CellBytes(i)
		if err != nil {
			return false, err
		}
		cell, err := DecodeIndexInterior(raw)
		if err != nil {
			return false, err
		}
		cont, err := t.scanIndexNode(int(cell.LeftChild), fn)
		if err != nil || !cont {
			return false, err
		}
		rec, err := t.indexKeyAt(page, i)
		if err != nil {
			return false, err
		}
		cont, err = fn(rec)
		if err != nil || !cont {
			return false, err
		}
	}
	return t.scanIndexNode(int(page.RightmostChild()), fn)
}
