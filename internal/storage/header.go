// Package storage implements the on-disk pieces of the SQLite 3 file
// format that sit below the B-Tree algorithms: the 100-byte file header,
// B-Tree/overflow/freelist page layout, and the record codec.
package storage

import (
	"encoding/binary"

	"github.com/joeandaverde/sqlitecore/internal/errs"
)

// HeaderSize is the fixed size of the database header, always the first
// 100 bytes of page 1.
const HeaderSize = 100

// magic is the 16-byte string every SQLite 3 file begins with.
var magic = [16]byte{'S', 'Q', 'L', 'i', 't', 'e', ' ', 'f', 'o', 'r', 'm', 'a', 't', ' ', '3', 0}

// Header is the parsed form of the 100-byte database header.
type Header struct {
	PageSize           uint32 // stored as u16 on disk; 1 denotes 65536
	FileFormatWrite    byte
	FileFormatRead     byte
	ReservedSpace      byte
	MaxPayloadFraction byte
	MinPayloadFraction byte
	LeafPayloadFraction byte
	FileChangeCounter  uint32
	PageCount          uint32
	FirstFreelistPage  uint32
	FreelistCount      uint32
	SchemaCookie       uint32
	SchemaFormat       uint32
	PageCacheSize      uint32
	VacuumPage         uint32
	TextEncoding       uint32
	UserVersion        uint32
	IncrementalVacuum  uint32
	ApplicationID      uint32
	VersionValidFor    uint32
	SQLiteVersion      uint32
}

// NewHeader returns the header for a freshly created database file with
// the given page size and per-page reserved space.
func NewHeader(pageSize uint32, reservedSpace byte) Header {
	return Header{
		PageSize:            pageSize,
		FileFormatWrite:     1,
		FileFormatRead:      1,
		ReservedSpace:       reservedSpace,
		MaxPayloadFraction:  64,
		MinPayloadFraction:  32,
		LeafPayloadFraction: 32,
		PageCount:           1,
		SchemaFormat:        4,
		TextEncoding:        1, // UTF-8
		VersionValidFor:     3,
		SQLiteVersion:       3045000,
	}
}

// UsableSize returns page_size - reserved_space, the budget available to
// the cell/pointer layer of every page.
func (h Header) UsableSize() int {
	return int(h.PageSize) - int(h.ReservedSpace)
}

// onDiskPageSize returns the u16 value written at offset 16: the literal
// page size, or 1 if the page size is 65536 (which doesn't fit in a u16).
func onDiskPageSize(pageSize uint32) uint16 {
	if pageSize == 65536 {
		return 1
	}
	return uint16(pageSize)
}

func fromOnDiskPageSize(v uint16) uint32 {
	if v == 1 {
		return 65536
	}
	return uint32(v)
}

// Encode writes the header into a 100-byte buffer.
func (h Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:16], magic[:])
	binary.BigEndian.PutUint16(buf[16:18], onDiskPageSize(h.PageSize))
	buf[18] = orDefault(h.FileFormatWrite, 1)
	buf[19] = orDefault(h.FileFormatRead, 1)
	buf[20] = h.ReservedSpace
	buf[21] = orDefault(h.MaxPayloadFraction, 64)
	buf[22] = orDefault(h.MinPayloadFraction, 32)
	buf[23] = orDefault(h.LeafPayloadFraction, 32)
	binary.BigEndian.PutUint32(buf[24:28], h.FileChangeCounter)
	binary.BigEndian.PutUint32(buf[28:32], h.PageCount)
	binary.BigEndian.PutUint32(buf[32:36], h.FirstFreelistPage)
	binary.BigEndian.PutUint32(buf[36:40], h.FreelistCount)
	binary.BigEndian.PutUint32(buf[40:44], h.SchemaCookie)
	binary.BigEndian.PutUint32(buf[44:48], orDefault32(h.SchemaFormat, 4))
	binary.BigEndian.PutUint32(buf[48:52], h.PageCacheSize)
	binary.BigEndian.PutUint32(buf[52:56], h.VacuumPage)
	binary.BigEndian.PutUint32(buf[56:60], orDefault32(h.TextEncoding, 1))
	binary.BigEndian.PutUint32(buf[60:64], h.UserVersion)
	binary.BigEndian.PutUint32(buf[64:68], h.IncrementalVacuum)
	binary.BigEndian.PutUint32(buf[68:72], h.ApplicationID)
	// bytes 72..91 reserved for expansion, left zero
	binary.BigEndian.PutUint32(buf[92:96], orDefault32(h.VersionValidFor, 3))
	binary.BigEndian.PutUint32(buf[96:100], orDefault32(h.SQLiteVersion, 3045000))
	return buf
}

func orDefault(v, def byte) byte {
	if v == 0 {
		return def
	}
	return v
}

func orDefault32(v, def uint32) uint32 {
	if v == 0 {
		return def
	}
	return v
}

// ParseHeader decodes a 100-byte buffer into a Header. Returns
// errs.ErrCorruptFile if the magic string doesn't match or buf is short.
func ParseHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, errs.ErrCorruptFile
	}
	for i, b := range magic {
		if buf[i] != b {
			return Header{}, errs.ErrCorruptFile
		}
	}
	return Header{
		PageSize:            fromOnDiskPageSize(binary.BigEndian.Uint16(buf[16:18])),
		FileFormatWrite:     buf[18],
		FileFormatRead:      buf[19],
		ReservedSpace:       buf[20],
		MaxPayloadFraction:  buf[21],
		MinPayloadFraction:  buf[22],
		LeafPayloadFraction: buf[23],
		FileChangeCounter:   binary.BigEndian.Uint32(buf[24:28]),
		PageCount:           binary.BigEndian.Uint32(buf[28:32]),
		FirstFreelistPage:   binary.BigEndian.Uint32(buf[32:36]),
		FreelistCount:       binary.BigEndian.Uint32(buf[36:40]),
		SchemaCookie:        binary.BigEndian.Uint32(buf[40:44]),
		SchemaFormat:        binary.BigEndian.Uint32(buf[44:48]),
		PageCacheSize:       binary.BigEndian.Uint32(buf[48:52]),
		VacuumPage:          binary.BigEndian.Uint32(buf[52:56]),
		TextEncoding:        binary.BigEndian.Uint32(buf[56:60]),
		UserVersion:         binary.BigEndian.Uint32(buf[60:64]),
		IncrementalVacuum:   binary.BigEndian.Uint32(buf[64:68]),
		ApplicationID:       binary.BigEndian.Uint32(buf[68:72]),
		VersionValidFor:     binary.BigEndian.Uint32(buf[92:96]),
		SQLiteVersion:       binary.BigEndian.Uint32(buf[96:100]),
	}, nil
}

// ValidPageSize reports whether size is a power of two in [512, 65536].
func ValidPageSize(size uint32) bool {
	if size < 512 || size > 65536 {
		return false
	}
	return size&(size-1) == 0
}
