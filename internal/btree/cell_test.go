package btree

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joeandaverde/sqlitecore/internal/storage"
)

func TestSplitPayload_FitsEntirelyLocal(t *testing.T) {
	r := require.New(t)

	usable, maxFrac, minFrac := 4096, byte(64), byte(32)
	maxLocal := MaxLocalPayload(usable, maxFrac)
	minLocal := MinLocalPayload(usable, minFrac)

	small := maxLocal - 10
	r.Equal(small, SplitPayload(small, usable, maxLocal, minLocal))
}

func TestSplitPayload_FallsBackToMWhenFormulaExceedsMaxLocal(t *testing.T) {
	r := require.New(t)

	// A small usable size makes (usable-4) large relative to maxLocal, so
	// the unconditional formula can push past maxLocal and must fall back
	// to m.
	usable := 100
	maxLocal := MaxLocalPayload(usable, 64)
	minLocal := MinLocalPayload(usable, 32)
	m := minLocal
	if cap := (usable - 35) / 4; cap < m {
		m = cap
	}

	payload := maxLocal + 1
	got := SplitPayload(payload, usable, maxLocal, minLocal)
	r.LessOrEqual(got, maxLocal)
	r.GreaterOrEqual(got, m)
}

func TestTableLeafCell_EncodeDecodeRoundTrip(t *testing.T) {
	r := require.New(t)

	payload := []byte{0x10, 0x20, 0x30, 0x40}
	raw := EncodeTableLeaf(42, len(payload), payload, 0)
	c, err := DecodeTableLeaf(raw)
	r.NoError(err)
	r.Equal(int64(42), c.RowID)
	r.Equal(len(payload), c.PayloadSize)
	r.Equal(payload, c.Local)
	r.False(c.HasOverflow())
}

func TestTableLeafCell_WithOverflowPointer(t *testing.T) {
	r := require.New(t)

	local := []byte{0x01, 0x02, 0x03}
	raw := EncodeTableLeaf(7, 50, local, 9)
	c, err := DecodeTableLeaf(raw)
	r.NoError(err)
	r.Equal(50, c.PayloadSize)
	r.Equal(local, c.Local)
	r.True(c.HasOverflow())
	r.Equal(uint32(9), c.OverflowPage)
}

func TestTableInteriorCell_EncodeDecodeRoundTrip(t *testing.T) {
	r := require.New(t)

	raw := EncodeTableInterior(5, 123)
	c, err := DecodeTableInterior(raw)
	r.NoError(err)
	r.Equal(uint32(5), c.LeftChild)
	r.Equal(int64(123), c.RowID)
}

func TestIndexLeafCell_EncodeDecodeRoundTrip(t *testing.T) {
	r := require.New(t)

	payload := []byte{0xAA, 0xBB, 0xCC}
	raw := EncodeIndexLeaf(len(payload), payload, 0)
	c, err := DecodeIndexLeaf(raw)
	r.NoError(err)
	r.Equal(payload, c.Local)
	r.False(c.HasOverflow())
}

func TestIndexInteriorCell_EncodeDecodeRoundTrip(t *testing.T) {
	r := require.New(t)

	payload := []byte{0x01}
	raw := EncodeIndexInterior(11, 10, payload, 22)
	c, err := DecodeIndexInterior(raw)
	r.NoError(err)
	r.Equal(uint32(11), c.LeftChild)
	r.Equal(payload, c.Local)
	r.Equal(uint32(22), c.OverflowPage)
}

func TestDecodeCell_DispatchesByPageType(t *testing.T) {
	r := require.New(t)

	raw := EncodeTableInterior(3, 9)
	c, err := DecodeCell(storage.PageTypeTableInterior, raw)
	r.NoError(err)
	r.Equal(uint32(3), c.LeftChild)

	_, err = DecodeCell(storage.PageTypeTableLeaf+100, raw)
	r.Error(err)
}

func TestDecodeTableLeaf_RejectsCorruptCell(t *testing.T) {
	r := require.New(t)

	_, err := DecodeTableLeaf([]byte{0x01})
	r.Error(err)
}
