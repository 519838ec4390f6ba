package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeader_EncodeParseRoundTrip(t *testing.T) {
	r := require.New(t)

	h := NewHeader(4096, 0)
	h.PageCount = 7
	h.FirstFreelistPage = 3
	h.FreelistCount = 1
	h.SchemaCookie = 5
	h.UserVersion = 42
	h.ApplicationID = 0xCAFEBABE

	buf := h.Encode()
	r.Len(buf, HeaderSize)
	r.Equal("SQLite format 3\x00", string(buf[0:16]))

	got, err := ParseHeader(buf)
	r.NoError(err)
	r.Equal(h.PageSize, got.PageSize)
	r.Equal(h.PageCount, got.PageCount)
	r.Equal(h.FirstFreelistPage, got.FirstFreelistPage)
	r.Equal(h.FreelistCount, got.FreelistCount)
	r.Equal(h.SchemaCookie, got.SchemaCookie)
	r.Equal(h.UserVersion, got.UserVersion)
	r.Equal(h.ApplicationID, got.ApplicationID)
	r.Equal(byte(64), got.MaxPayloadFraction)
	r.Equal(byte(32), got.MinPayloadFraction)
}

func TestHeader_64KPageSizeEncodesAsOne(t *testing.T) {
	r := require.New(t)

	h := NewHeader(65536, 0)
	buf := h.Encode()
	r.Equal(byte(0), buf[16])
	r.Equal(byte(1), buf[17])

	got, err := ParseHeader(buf)
	r.NoError(err)
	r.Equal(uint32(65536), got.PageSize)
}

func TestHeader_ParseRejectsBadMagic(t *testing.T) {
	r := require.New(t)

	buf := NewHeader(4096, 0).Encode()
	buf[0] = 'X'
	_, err := ParseHeader(buf)
	r.Error(err)
}

func TestHeader_ParseRejectsShortBuffer(t *testing.T) {
	r := require.New(t)

	_, err := ParseHeader(make([]byte, 10))
	r.Error(err)
}

func TestValidPageSize(t *testing.T) {
	r := require.New(t)

	r.True(ValidPageSize(512))
	r.True(ValidPageSize(4096))
	r.True(ValidPageSize(65536))
	r.False(ValidPageSize(511))
	r.False(ValidPageSize(4097))
	r.False(ValidPageSize(100))
}

func TestHeader_UsableSize(t *testing.T) {
	r := require.New(t)

	h := NewHeader(4096, 12)
	r.Equal(4084, h.UsableSize())
}
