package storage

import (
	"encoding/binary"
	"sort"

	"github.com/joeandaverde/sqlitecore/internal/errs"
)

// PageType identifies the subtype of a B-Tree page.
type PageType byte

const (
	PageTypeIndexInterior PageType = 0x02
	PageTypeTableInterior PageType = 0x05
	PageTypeIndexLeaf     PageType = 0x0A
	PageTypeTableLeaf     PageType = 0x0D
)

// IsInterior reports whether t is one of the two interior page types.
func (t PageType) IsInterior() bool {
	return t == PageTypeTableInterior || t == PageTypeIndexInterior
}

// IsLeaf reports whether t is one of the two leaf page types.
func (t PageType) IsLeaf() bool {
	return t == PageTypeTableLeaf || t == PageTypeIndexLeaf
}

// IsTable reports whether t belongs to a table B-Tree.
func (t PageType) IsTable() bool {
	return t == PageTypeTableInterior || t == PageTypeTableLeaf
}

// IsIndex reports whether t belongs to an index B-Tree.
func (t PageType) IsIndex() bool {
	return t == PageTypeIndexInterior || t == PageTypeIndexLeaf
}

// Valid reports whether t is one of the four defined page types.
func (t PageType) Valid() bool {
	switch t {
	case PageTypeIndexInterior, PageTypeTableInterior, PageTypeIndexLeaf, PageTypeTableLeaf:
		return true
	default:
		return false
	}
}

// leafHeaderLen and interiorHeaderLen are the on-disk B-Tree page header
// sizes; interior pages carry an extra 4-byte rightmost-child pointer.
const (
	leafHeaderLen     = 8
	interiorHeaderLen = 12
)

// Page is an in-memory view of one B-Tree page: header fields, a
// logical-order cell-pointer array, and the raw cell content area. Cells
// are opaque byte slices to this package; the btree package interprets
// them according to page type.
type Page struct {
	number   int
	pageSize int
	reserved byte

	pageType            PageType
	firstFreeblock      uint16
	fragmentedFreeBytes byte
	rightmostChild      uint32

	pointers []uint16 // logical (key) order, one offset per cell
	data     []byte   // full raw page, length == pageSize
}

// NewPage allocates a fresh, empty page of the given type.
func NewPage(number, pageSize int, reserved byte, pageType PageType) *Page {
	return &Page{
		number:   number,
		pageSize: pageSize,
		reserved: reserved,
		pageType: pageType,
		pointers: nil,
		data:     make([]byte, pageSize),
	}
}

// Number returns the page's 1-based page number.
func (p *Page) Number() int { return p.number }

// Type returns the page's subtype.
func (p *Page) Type() PageType { return p.pageType }

// RightmostChild returns the rightmost-child pointer (interior pages only).
func (p *Page) RightmostChild() uint32 { return p.rightmostChild }

// SetRightmostChild sets the rightmost-child pointer (interior pages only).
func (p *Page) SetRightmostChild(n uint32) { p.rightmostChild = n }

// CellCount returns the number of cells currently on the page.
func (p *Page) CellCount() int { return len(p.pointers) }

// headerOffset returns the byte offset within data where the B-Tree page
// header begins: 100 for page 1 (after the file header), 0 otherwise.
func (p *Page) headerOffset() int {
	if p.number == 1 {
		return HeaderSize
	}
	return 0
}

// HeaderLen returns the on-disk page-header length for this page's type.
func (p *Page) HeaderLen() int {
	if p.pageType.IsInterior() {
		return interiorHeaderLen
	}
	return leafHeaderLen
}

func (p *Page) usableSize() int {
	return p.pageSize - int(p.reserved)
}

func (p *Page) pointerArrayOffset() int {
	return p.headerOffset() + p.HeaderLen()
}

// FreeSpace returns the number of bytes available for new cell content and
// pointer entries (the gap between the pointer array and the content
// area).
func (p *Page) FreeSpace() int {
	contentStart := p.contentStart()
	pointerEnd := p.pointerArrayOffset() + 2*len(p.pointers)
	return contentStart - pointerEnd
}

func (p *Page) contentStart() int {
	if len(p.pointers) == 0 {
		return p.usableSize()
	}
	min := p.pointers[0]
	for _, off := range p.pointers[1:] {
		if off < min {
			min = off
		}
	}
	return int(min)
}

// CellBytes returns the raw bytes of the i-th cell in logical (key)
// order. The returned slice runs from the cell's offset to the start of
// the next cell in physical (offset) order, or the end of the usable
// page if this cell is physically last - exactly delimiting the cell's
// encoded bytes since cells are packed with no gaps between them.
func (p *Page) CellBytes(i int) ([]byte, error) {
	if i < 0 || i >= len(p.pointers) {
		return nil, errs.ErrCorruptPage
	}
	offset := int(p.pointers[i])
	end := p.usableSize()
	for _, other := range p.pointers {
		o := int(other)
		if o > offset && o < end {
			end = o
		}
	}
	if offset < 0 || offset >= end || end > len(p.data) {
		return nil, errs.ErrCorruptPage
	}
	return p.data[offset:end], nil
}

// Cells returns every cell's raw bytes in logical (key) order.
func (p *Page) Cells() ([][]byte, error) {
	out := make([][]byte, len(p.pointers))
	for i := range p.pointers {
		b, err := p.CellBytes(i)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

// Fits reports whether SetCells(cells) would succeed without overflowing
// the page.
func (p *Page) Fits(cells [][]byte) bool {
	total := 0
	for _, c := range cells {
		total += len(c)
	}
	pointerBytes := 2 * len(cells)
	budget := p.usableSize() - p.pointerArrayOffset()
	return total+pointerBytes <= budget
}

// SetCells rewrites the page's entire cell-pointer array and content area
// from cells, which must already be in ascending logical (key) order.
// Cells are packed from the end of the usable area backward so that cell
// 0 (lowest key) ends up physically last, keeping pointer order and
// offset order consistent for CellBytes's boundary search.
func (p *Page) SetCells(cells [][]byte) error {
	if !p.Fits(cells) {
		return errs.ErrCorruptPage
	}
	pointers := make([]uint16, len(cells))
	cursor := p.usableSize()
	// Pack in reverse logical order so the first cell ends up at the
	// highest offset (physically last).
	bodies := make([][2]int, len(cells)) // [offset, length]
	for i := 0; i < len(cells); i++ {
		cursor -= len(cells[i])
		bodies[i] = [2]int{cursor, len(cells[i])}
	}
	// cells may alias this page's own buffer (as returned by Cells), so
	// write into a copy and swap it in once every cell has been read.
	data := append([]byte(nil), p.data...)
	for i, c := range cells {
		off := bodies[i][0]
		copy(data[off:off+len(c)], c)
		pointers[i] = uint16(off)
	}
	p.data = data
	p.pointers = pointers
	p.writeHeader()
	return nil
}

// writeHeader serializes the page header and pointer array into data.
func (p *Page) writeHeader() {
	ho := p.headerOffset()
	data := p.data
	data[ho] = byte(p.pageType)
	binary.BigEndian.PutUint16(data[ho+1:ho+3], p.firstFreeblock)
	binary.BigEndian.PutUint16(data[ho+3:ho+5], uint16(len(p.pointers)))
	contentStart := p.contentStart()
	if contentStart >= 65536 {
		contentStart = 0
	}
	binary.BigEndian.PutUint16(data[ho+5:ho+7], uint16(contentStart))
	data[ho+7] = p.fragmentedFreeBytes
	if p.pageType.IsInterior() {
		binary.BigEndian.PutUint32(data[ho+8:ho+12], p.rightmostChild)
	}
	po := p.pointerArrayOffset()
	for i, off := range p.pointers {
		binary.BigEndian.PutUint16(data[po+2*i:po+2*i+2], off)
	}
}

// Encode returns the page's raw bytes, ready to hand to the pager for a
// disk write. The header and pointer array are refreshed first.
func (p *Page) Encode() []byte {
	p.writeHeader()
	return p.data
}

// ParsePage parses a raw page buffer (as read from disk) into a Page.
func ParsePage(number, pageSize int, reserved byte, data []byte) (*Page, error) {
	if len(data) != pageSize {
		return nil, errs.ErrCorruptFile
	}
	cp := make([]byte, pageSize)
	copy(cp, data)

	p := &Page{number: number, pageSize: pageSize, reserved: reserved, data: cp}
	ho := p.headerOffset()
	if ho+leafHeaderLen > len(cp) {
		return nil, errs.ErrCorruptPage
	}
	pageType := PageType(cp[ho])
	if !pageType.Valid() {
		return nil, errs.ErrCorruptPage
	}
	p.pageType = pageType
	p.firstFreeblock = binary.BigEndian.Uint16(cp[ho+1 : ho+3])
	cellCount := int(binary.BigEndian.Uint16(cp[ho+3 : ho+5]))
	contentStart := int(binary.BigEndian.Uint16(cp[ho+5 : ho+7]))
	if contentStart == 0 {
		contentStart = 65536
	}
	p.fragmentedFreeBytes = cp[ho+7]
	if pageType.IsInterior() {
		if ho+interiorHeaderLen > len(cp) {
			return nil, errs.ErrCorruptPage
		}
		p.rightmostChild = binary.BigEndian.Uint32(cp[ho+8 : ho+12])
	}

	po := p.pointerArrayOffset()
	if po+2*cellCount > len(cp) {
		return nil, errs.ErrCorruptPage
	}
	pointers := make([]uint16, cellCount)
	seen := make(map[uint16]bool, cellCount)
	for i := 0; i < cellCount; i++ {
		off := binary.BigEndian.Uint16(cp[po+2*i : po+2*i+2])
		if int(off) < contentStart || int(off) >= p.usableSize() {
			return nil, errs.ErrCorruptPage
		}
		if seen[off] {
			return nil, errs.ErrCorruptPage
		}
		seen[off] = true
		pointers[i] = off
	}
	p.pointers = pointers
	return p, nil
}

// sortedOffsets returns the page's cell offsets in ascending (physical)
// order; used only by tests that want to assert packing invariants.
func (p *Page) sortedOffsets() []uint16 {
	out := append([]uint16(nil), p.pointers...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
