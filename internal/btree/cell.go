// Package btree implements the B-Tree engine: the per-page cell factory
// and node operations (this file and node.go), and the multi-node
// algorithms - descent, split propagation, root promotion/demotion, and
// rebalancing (tree.go, tree_insert.go and tree_delete.go).
package btree

import (
	"encoding/binary"

	"github.com/joeandaverde/sqlitecore/internal/errs"
	"github.com/joeandaverde/sqlitecore/internal/storage"
	"github.com/joeandaverde/sqlitecore/internal/varint"
)

// MaxLocalPayload returns the largest payload, in bytes, a cell may store
// entirely within the page (no overflow), per the database's usable page
// size and max_payload_fraction.
func MaxLocalPayload(usable int, maxFrac byte) int {
	v := (usable - 12) * int(maxFrac) / 255
	if cap := usable - 35; v > cap {
		v = cap
	}
	return v
}

// MinLocalPayload returns the minimum local payload size a cell factory
// will fall back to once a payload must spill into overflow.
func MinLocalPayload(usable int, minFrac byte) int {
	return (usable - 12) * int(minFrac) / 255
}

// SplitPayload computes the local byte count for a payload of the given
// total length. Corrects the source algorithm's fallback: when the
// unconditional formula would produce a local size exceeding maxLocal,
// SQLite (and this implementation) falls back to the minimum bound m
// instead, which the uncorrected formula does not do.
func SplitPayload(payloadLen, usable, maxLocal, minLocal int) int {
	m := minLocal
	if cap := (usable - 35) / 4; cap < m {
		m = cap
	}
	if payloadLen <= maxLocal {
		return payloadLen
	}
	l := m + (payloadLen-m)%(usable-4)
	if l > maxLocal {
		l = m
	}
	return l
}

// Cell is the decoded form of any of the four cell variants. Which
// fields are meaningful depends on the originating page type.
type Cell struct {
	RowID        int64  // TableLeaf, TableInterior
	LeftChild    uint32 // TableInterior, IndexInterior
	PayloadSize  int    // total payload length (TableLeaf, IndexLeaf, IndexInterior)
	Local        []byte // the bytes stored on-page
	OverflowPage uint32 // 0 if the payload fits entirely in Local
}

// HasOverflow reports whether the cell's payload continues into an
// overflow chain.
func (c Cell) HasOverflow() bool { return c.OverflowPage != 0 }

// EncodeTableLeaf builds a TableLeaf cell: payload_size, row_id, local
// payload, optional overflow pointer.
func EncodeTableLeaf(rowID int64, payloadSize int, local []byte, overflowPage uint32) []byte {
	out := append([]byte{}, varint.Encode(uint64(payloadSize))...)
	out = append(out, varint.EncodeInt64(rowID)...)
	out = append(out, local...)
	if overflowPage != 0 {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], overflowPage)
		out = append(out, b[:]...)
	}
	return out
}

// DecodeTableLeaf parses a TableLeaf cell. The cell's exact byte range
// (raw) is already delimited by the page's offset layout, so whether a
// trailing overflow pointer is present follows purely from comparing the
// declared payload_size to the bytes actually available after the
// row_id: if they match, the payload is entirely local; if fewer bytes
// are available, the last 4 of them are the overflow page pointer.
func DecodeTableLeaf(raw []byte) (Cell, error) {
	payloadSize, n1, err := varint.Get(raw)
	if err != nil {
		return Cell{}, errs.ErrCorruptPage
	}
	rowID, n2, err := varint.GetInt64(raw[n1:])
	if err != nil {
		return Cell{}, errs.ErrCorruptPage
	}
	off := n1 + n2
	cell, err := splitLocalTail(raw[off:], int(payloadSize))
	if err != nil {
		return Cell{}, err
	}
	cell.RowID = rowID
	return cell, nil
}

// splitLocalTail interprets rest as payloadSize bytes: either rest holds
// exactly payloadSize bytes (no overflow), or rest holds the local
// prefix followed by a 4-byte overflow page pointer.
func splitLocalTail(rest []byte, payloadSize int) (Cell, error) {
	if len(rest) == payloadSize {
		return Cell{PayloadSize: payloadSize, Local: append([]byte(nil), rest...)}, nil
	}
	localLen := len(rest) - 4
	if localLen < 0 || localLen >= payloadSize {
		return Cell{}, errs.ErrCorruptPage
	}
	overflowPage := binary.BigEndian.Uint32(rest[localLen : localLen+4])
	if overflowPage == 0 {
		return Cell{}, errs.ErrCorruptPage
	}
	return Cell{
		PayloadSize:  payloadSize,
		Local:        append([]byte(nil), rest[:localLen]...),
		OverflowPage: overflowPage,
	}, nil
}

// EncodeTableInterior builds a TableInterior cell: left_child, key.
func EncodeTableInterior(leftChild uint32, key int64) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], leftChild)
	out := append([]byte{}, b[:]...)
	out = append(out, varint.EncodeInt64(key)...)
	return out
}

// DecodeTableInterior parses a TableInterior cell.
func DecodeTableInterior(raw []byte) (Cell, error) {
	if len(raw) < 4 {
		return Cell{}, errs.ErrCorruptPage
	}
	leftChild := binary.BigEndian.Uint32(raw[0:4])
	key, _, err := varint.GetInt64(raw[4:])
	if err != nil {
		return Cell{}, errs.ErrCorruptPage
	}
	return Cell{LeftChild: leftChild, RowID: key}, nil
}

// EncodeIndexLeaf builds an IndexLeaf cell: payload_size, local payload,
// optional overflow pointer.
func EncodeIndexLeaf(payloadSize int, local []byte, overflowPage uint32) []byte {
	out := append([]byte{}, varint.Encode(uint64(payloadSize))...)
	out = append(out, local...)
	if overflowPage != 0 {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], overflowPage)
		out = append(out, b[:]...)
	}
	return out
}

// DecodeIndexLeaf parses an IndexLeaf cell.
func DecodeIndexLeaf(raw []byte) (Cell, error) {
	payloadSize, n1, err := varint.Get(raw)
	if err != nil {
		return Cell{}, errs.ErrCorruptPage
	}
	return splitLocalTail(raw[n1:], int(payloadSize))
}

// EncodeIndexInterior builds an IndexInterior cell: left_child,
// payload_size, local payload, optional overflow pointer.
func EncodeIndexInterior(leftChild uint32, payloadSize int, local []byte, overflowPage uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], leftChild)
	out := append([]byte{}, b[:]...)
	out = append(out, varint.Encode(uint64(payloadSize))...)
	out = append(out, local...)
	if overflowPage != 0 {
		var ob [4]byte
		binary.BigEndian.PutUint32(ob[:], overflowPage)
		out = append(out, ob[:]...)
	}
	return out
}

// DecodeIndexInterior parses an IndexInterior cell.
func DecodeIndexInterior(raw []byte) (Cell, error) {
	if len(raw) < 4 {
		return Cell{}, errs.ErrCorruptPage
	}
	leftChild := binary.BigEndian.Uint32(raw[0:4])
	payloadSize, n1, err := varint.Get(raw[4:])
	if err != nil {
		return Cell{}, errs.ErrCorruptPage
	}
	cell, err := splitLocalTail(raw[4+n1:], int(payloadSize))
	if err != nil {
		return Cell{}, err
	}
	cell.LeftChild = leftChild
	return cell, nil
}

// DecodeCell dispatches to the right decoder for pt.
func DecodeCell(pt storage.PageType, raw []byte) (Cell, error) {
	switch pt {
	case storage.PageTypeTableLeaf:
		return DecodeTableLeaf(raw)
	case storage.PageTypeTableInterior:
		return DecodeTableInterior(raw)
	case storage.PageTypeIndexLeaf:
		return DecodeIndexLeaf(raw)
	case storage.PageTypeIndexInterior:
		return DecodeIndexInterior(raw)
	default:
		return Cell{}, errs.ErrWrongPageType
	}
}
