package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecord_ToBytesFromBytesRoundTrip(t *testing.T) {
	r := require.New(t)

	rec := Record{
		Null(),
		Int64(0),
		Int64(1),
		Int64(23500),
		Int64(-1),
		Float64(3.5),
		TextValue("Databases"),
		BlobValue([]byte{0xDE, 0xAD, 0xBE, 0xEF}),
	}

	buf := rec.ToBytes()
	got, n, err := FromBytes(buf)
	r.NoError(err)
	r.Equal(len(buf), n)
	r.Equal(rec, got)
}

func TestRecord_IntegerUsesNarrowestSerialType(t *testing.T) {
	r := require.New(t)

	// 23500 needs 2 bytes (fits in int16 range).
	rec := Record{Int64(23500)}
	buf := rec.ToBytes()

	// header_size(1) + serial type varint + 2-byte body == 4 bytes total.
	r.Len(buf, 4)
	r.Equal(byte(2), buf[1]) // serial type 2 -> 2 byte int
}

func TestRecord_ZeroAndOneUseConstantSerialTypesWithNoBody(t *testing.T) {
	r := require.New(t)

	rec := Record{Int64(0), Int64(1)}
	buf := rec.ToBytes()
	// header_size(1) + two serial type bytes, no body bytes at all.
	r.Len(buf, 3)
	r.Equal(byte(8), buf[1])
	r.Equal(byte(9), buf[2])
}

func TestRecord_EmptyRecord(t *testing.T) {
	r := require.New(t)

	rec := Record{}
	buf := rec.ToBytes()
	got, n, err := FromBytes(buf)
	r.NoError(err)
	r.Equal(len(buf), n)
	r.Empty(got)
}

func TestRecord_FromBytesRejectsTruncatedHeader(t *testing.T) {
	r := require.New(t)

	rec := Record{TextValue("hello world")}
	buf := rec.ToBytes()
	_, _, err := FromBytes(buf[:1])
	r.Error(err)
}

func TestCompareRecords_ColumnByColumn(t *testing.T) {
	r := require.New(t)

	a := Record{Int64(1), TextValue("a")}
	b := Record{Int64(1), TextValue("b")}
	r.Negative(CompareRecords(a, b))
	r.Positive(CompareRecords(b, a))
	r.Zero(CompareRecords(a, a))
}

func TestCompareRecords_ShorterPrefixSortsFirst(t *testing.T) {
	r := require.New(t)

	short := Record{Int64(1)}
	long := Record{Int64(1), Int64(2)}
	r.Negative(CompareRecords(short, long))
	r.Positive(CompareRecords(long, short))
}
