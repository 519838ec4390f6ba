// Package varint implements SQLite's big-endian variable-length integer
// encoding: a self-delimited 1-9 byte representation of a 64-bit value.
//
// Bytes 1 through 8 carry 7 bits of the value each, high bit set to
// signal "another byte follows". Byte 9, if reached, carries the
// remaining 8 bits with no continuation bit - it always terminates the
// encoding. The encoder always emits the shortest possible form; the
// decoder accepts any well-formed encoding, including longer-than-needed
// forms.
package varint

import (
	"io"

	"github.com/joeandaverde/sqlitecore/internal/errs"
)

// MaxLen is the longest a varint can be.
const MaxLen = 9

// Sizeof returns the number of bytes Put would write for v.
func Sizeof(v uint64) int {
	n := 1
	rest := v
	for rest >= 1<<7 {
		rest >>= 7
		n++
		if n == 9 {
			break
		}
	}
	return n
}

// Put encodes v into buf using the fewest bytes and returns the count
// written. buf must have at least MaxLen bytes of capacity.
func Put(buf []byte, v uint64) int {
	// Collect the 7-bit big-endian groups, most-significant non-zero
	// group first.
	n := Sizeof(v)
	if n < 9 {
		// Bytes 0..n-1, most-significant 7-bit group first, all but the
		// last carrying a continuation flag.
		for i := 0; i < n; i++ {
			shift := uint(7 * (n - 1 - i))
			b := byte(v>>shift) & 0x7f
			if i < n-1 {
				b |= 0x80
			}
			buf[i] = b
		}
		return n
	}

	// 9-byte form: byte 0..7 carry bits 8..63 as 7-bit groups (with
	// continuation flags), byte 8 carries bits 0..7 verbatim.
	for i := 0; i < 8; i++ {
		shift := uint(8 + 7*(7-i))
		buf[i] = byte(v>>shift)&0x7f | 0x80
	}
	buf[8] = byte(v)
	return 9
}

// Encode returns the canonical encoding of v as a new slice.
func Encode(v uint64) []byte {
	buf := make([]byte, MaxLen)
	n := Put(buf, v)
	return buf[:n]
}

// EncodeInt64 encodes a signed value using its unsigned bit pattern, the
// representation SQLite uses for varint-encoded rowids and keys.
func EncodeInt64(v int64) []byte {
	return Encode(uint64(v))
}

// Get decodes a varint from the front of buf, returning the value and the
// number of bytes consumed. Returns ErrMalformedVarint if buf is too short
// to contain a complete encoding.
func Get(buf []byte) (uint64, int, error) {
	var x uint64
	for i := 0; i < 9; i++ {
		if i >= len(buf) {
			return 0, 0, errs.ErrMalformedVarint
		}
		b := buf[i]
		if i == 8 {
			x = (x << 8) | uint64(b)
			return x, 9, nil
		}
		x = (x << 7) | uint64(b&0x7f)
		if b&0x80 == 0 {
			return x, i + 1, nil
		}
	}
	return 0, 0, errs.ErrMalformedVarint
}

// GetInt64 decodes a varint and reinterprets it as a signed value.
func GetInt64(buf []byte) (int64, int, error) {
	v, n, err := Get(buf)
	return int64(v), n, err
}

// Read decodes a single varint from r, one byte at a time.
func Read(r io.ByteReader) (uint64, int, error) {
	var x uint64
	for i := 0; i < 9; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, 0, errs.ErrMalformedVarint
		}
		if i == 8 {
			x = (x << 8) | uint64(b)
			return x, 9, nil
		}
		x = (x << 7) | uint64(b&0x7f)
		if b&0x80 == 0 {
			return x, i + 1, nil
		}
	}
	return 0, 0, errs.ErrMalformedVarint
}

// Write encodes v and writes it to w, returning the number of bytes
// written.
func Write(w io.ByteWriter, v uint64) (int, error) {
	buf := Encode(v)
	for _, b := range buf {
		if err := w.WriteByte(b); err != nil {
			return 0, err
		}
	}
	return len(buf), nil
}
