package btree

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joeandaverde/sqlitecore/internal/storage"
)

func TestSearchCells_FindsExactMatch(t *testing.T) {
	r := require.New(t)

	keys := []int{10, 20, 30, 40}
	cmp := func(target int) func(int) int {
		return func(i int) int { return target - keys[i] }
	}

	found, idx := searchCells(len(keys), cmp(30))
	r.True(found)
	r.Equal(2, idx)
}

func TestSearchCells_ReturnsInsertionPointWhenMissing(t *testing.T) {
	r := require.New(t)

	keys := []int{10, 20, 30, 40}
	cmp := func(target int) func(int) int {
		return func(i int) int { return target - keys[i] }
	}

	found, idx := searchCells(len(keys), cmp(25))
	r.False(found)
	r.Equal(2, idx)

	found, idx = searchCells(len(keys), cmp(50))
	r.False(found)
	r.Equal(4, idx)
}

func TestDescendTableInterior_PicksFirstCellAtOrAboveKey(t *testing.T) {
	r := require.New(t)

	page := storage.NewPage(2, 512, 0, storage.PageTypeTableInterior)
	page.SetRightmostChild(99)
	r.NoError(page.SetCells([][]byte{
		EncodeTableInterior(1, 10),
		EncodeTableInterior(2, 20),
	}))

	child, err := descendTableInterior(page, 15)
	r.NoError(err)
	r.Equal(uint32(2), child)

	child, err = descendTableInterior(page, 100)
	r.NoError(err)
	r.Equal(uint32(99), child)

	child, err = descendTableInterior(page, 10)
	r.NoError(err)
	r.Equal(uint32(1), child)
}

func TestSplitCells_HalvesAreAtLeastCeilHalf(t *testing.T) {
	r := require.New(t)

	cells := make([][]byte, 7)
	for i := range cells {
		cells[i] = []byte{byte(i)}
	}
	left, right, median := splitCells(cells)
	r.Len(left, 4)
	r.Len(right, 3)
	r.Equal(3, median)
	r.Equal(cells, append(append([][]byte{}, left...), right...))
}

func TestSplitCells_MinimumTwoCells(t *testing.T) {
	r := require.New(t)

	cells := [][]byte{{0x01}, {0x02}}
	left, right, _ := splitCells(cells)
	r.Len(left, 1)
	r.Len(right, 1)
}

func TestInsertAtAndRemoveAt(t *testing.T) {
	r := require.New(t)

	cells := [][]byte{{0x01}, {0x03}}
	withMiddle := insertAt(cells, 1, []byte{0x02})
	r.Equal([][]byte{{0x01}, {0x02}, {0x03}}, withMiddle)

	without := removeAt(withMiddle, 1)
	r.Equal([][]byte{{0x01}, {0x03}}, without)
}

func TestUnderfilled(t *testing.T) {
	r := require.New(t)

	usable := 100
	r.True(underfilled([][]byte{make([]byte, 10)}, usable))
	r.False(underfilled([][]byte{make([]byte, 60)}, usable))
}

func TestRequirePageType(t *testing.T) {
	r := require.New(t)

	page := storage.NewPage(2, 512, 0, storage.PageTypeTableLeaf)
	r.NoError(requirePageType(page, storage.PageTypeTableLeaf))
	r.Error(requirePageType(page, storage.PageTypeIndexLeaf))
}
