package storage

import (
	"math"

	"github.com/joeandaverde/sqlitecore/internal/errs"
	"github.com/joeandaverde/sqlitecore/internal/varint"
)

// intWidths are the fixed integer body widths serial types 1..6
// represent, in order.
var intWidths = [6]int{1, 2, 3, 4, 6, 8}

// serialTypeForInt picks the narrowest serial type (and body width) that
// losslessly represents v, using the 0/1 constant types when possible.
func serialTypeForInt(v int64) (serialType byte, width int) {
	if v == 0 {
		return 8, 0
	}
	if v == 1 {
		return 9, 0
	}
	for i, w := range intWidths {
		bits := uint(8 * w)
		min := -(int64(1) << (bits - 1))
		max := int64(1)<<(bits-1) - 1
		if v >= min && v <= max {
			return byte(i + 1), w
		}
	}
	return 6, 8
}

func putIntBody(buf []byte, v int64, width int) {
	u := uint64(v)
	for i := 0; i < width; i++ {
		shift := uint(8 * (width - 1 - i))
		buf[i] = byte(u >> shift)
	}
}

func getIntBody(buf []byte) int64 {
	var u uint64
	for _, b := range buf {
		u = (u << 8) | uint64(b)
	}
	// Sign-extend from len(buf)*8 bits.
	bits := uint(8 * len(buf))
	if bits < 64 && u&(1<<(bits-1)) != 0 {
		u |= ^uint64(0) << bits
	}
	return int64(u)
}

// serialBodyLen returns the number of body bytes a serial type occupies.
func serialBodyLen(serialType uint64) (int, error) {
	switch {
	case serialType == 0, serialType == 8, serialType == 9:
		return 0, nil
	case serialType >= 1 && serialType <= 6:
		return intWidths[serialType-1], nil
	case serialType == 7:
		return 8, nil
	case serialType >= 12 && serialType%2 == 0:
		return int((serialType - 12) / 2), nil
	case serialType >= 13 && serialType%2 == 1:
		return int((serialType - 13) / 2), nil
	default:
		return 0, errs.ErrTruncatedRecord
	}
}

// Record is an ordered list of typed column values, SQLite's on-disk
// record format (header_size + serial types + bodies).
type Record []Value

// ToBytes serializes the record.
func (r Record) ToBytes() []byte {
	serialTypes := make([]uint64, len(r))
	bodies := make([][]byte, len(r))
	headerBodyLen := 0

	for i, v := range r {
		switch v.Kind {
		case KindNull:
			serialTypes[i] = 0
			bodies[i] = nil
		case KindInt:
			st, w := serialTypeForInt(v.Int)
			serialTypes[i] = uint64(st)
			if w > 0 {
				b := make([]byte, w)
				putIntBody(b, v.Int, w)
				bodies[i] = b
			}
		case KindFloat:
			serialTypes[i] = 7
			b := make([]byte, 8)
			putIntBody(b, int64(math.Float64bits(v.Float)), 8)
			bodies[i] = b
		case KindText:
			b := []byte(v.Text)
			serialTypes[i] = uint64(len(b)*2 + 13)
			bodies[i] = b
		case KindBlob:
			serialTypes[i] = uint64(len(v.Blob) * 2 + 12)
			bodies[i] = v.Blob
		}
		headerBodyLen += varint.Sizeof(serialTypes[i])
	}

	// header_size includes the varint encoding the header_size itself;
	// converge on that self-referential width the same way SQLite does.
	hsz := varint.Sizeof(uint64(headerBodyLen + 1))
	for {
		total := uint64(hsz + headerBodyLen)
		real := varint.Sizeof(total)
		if real == hsz {
			break
		}
		hsz = real
	}
	headerSize := hsz + headerBodyLen

	bodyLen := 0
	for _, b := range bodies {
		bodyLen += len(b)
	}

	out := make([]byte, 0, headerSize+bodyLen)
	out = append(out, varint.Encode(uint64(headerSize))...)
	for _, st := range serialTypes {
		out = append(out, varint.Encode(st)...)
	}
	for _, b := range bodies {
		out = append(out, b...)
	}
	return out
}

// CompareRecords orders two records lexicographically by Compare on each
// column in turn; a record that is a strict prefix of the other sorts
// first. Used for index key ordering, where the indexed columns (plus,
// conventionally, the trailing rowid) form the composite key.
func CompareRecords(a, b Record) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return len(a) - len(b)
}

// FromBytes parses a record from the front of buf, returning the decoded
// values and the number of bytes consumed.
func FromBytes(buf []byte) (Record, int, error) {
	headerSize, hszLen, err := varint.Get(buf)
	if err != nil {
		return nil, 0, errs.ErrTruncatedRecord
	}
	if int(headerSize) > len(buf) {
		return nil, 0, errs.ErrTruncatedRecord
	}

	var serialTypes []uint64
	pos := hszLen
	for pos < int(headerSize) {
		st, n, err := varint.Get(buf[pos:])
		if err != nil {
			return nil, 0, errs.ErrTruncatedRecord
		}
		serialTypes = append(serialTypes, st)
		pos += n
	}
	if pos != int(headerSize) {
		return nil, 0, errs.ErrTruncatedRecord
	}

	values := make(Record, len(serialTypes))
	bodyPos := int(headerSize)
	for i, st := range serialTypes {
		bl, err := serialBodyLen(st)
		if err != nil {
			return nil, 0, err
		}
		if bodyPos+bl > len(buf) {
			return nil, 0, errs.ErrTruncatedRecord
		}
		body := buf[bodyPos : bodyPos+bl]
		switch {
		case st == 0:
			values[i] = Null()
		case st == 8:
			values[i] = Int64(0)
		case st == 9:
			values[i] = Int64(1)
		case st >= 1 && st <= 6:
			values[i] = Int64(getIntBody(body))
		case st == 7:
			bits := uint64(getIntBody(body))
			values[i] = Float64(math.Float64frombits(bits))
		case st%2 == 0:
			cp := make([]byte, len(body))
			copy(cp, body)
			values[i] = BlobValue(cp)
		default:
			values[i] = TextValue(string(body))
		}
		bodyPos += bl
	}
	return values, bodyPos, nil
}
