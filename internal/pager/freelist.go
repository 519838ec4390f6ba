package pager

import "encoding/binary"

// Freelist trunk pages hold a 4-byte next-trunk pointer, a 4-byte leaf
// count, and up to capacity leaf page-number pointers, mirroring
// SQLite's on-disk trunk page layout.

func decodeFreelistTrunk(raw []byte) freelistTrunk {
	next := binary.BigEndian.Uint32(raw[0:4])
	count := binary.BigEndian.Uint32(raw[4:8])
	leaves := make([]uint32, 0, count)
	for i := uint32(0); i < count; i++ {
		off := 8 + 4*i
		if int(off+4) > len(raw) {
			break
		}
		leaves = append(leaves, binary.BigEndian.Uint32(raw[off:off+4]))
	}
	return freelistTrunk{next: next, leaves: leaves}
}

func encodeFreelistTrunk(buf []byte, t freelistTrunk) {
	binary.BigEndian.PutUint32(buf[0:4], t.next)
	binary.BigEndian.PutUint32(buf[4:8], uint32(len(t.leaves)))
	for i, leaf := range t.leaves {
		off := 8 + 4*i
		binary.BigEndian.PutUint32(buf[off:off+4], leaf)
	}
}

// Overflow pages hold a 4-byte next-page pointer followed by payload
// bytes filling the rest of the page.

func encodeOverflowPage(buf []byte, next uint32, payload []byte) {
	binary.BigEndian.PutUint32(buf[0:4], next)
	copy(buf[4:], payload)
}

func decodeOverflowPage(raw []byte) (uint32, []byte) {
	next := binary.BigEndian.Uint32(raw[0:4])
	return next, raw[4:]
}
