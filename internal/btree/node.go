package btree

import (
	"sort"

	"github.com/joeandaverde/sqlitecore/internal/errs"
	"github.com/joeandaverde/sqlitecore/internal/storage"
)

// searchCells performs a binary search over a page's n cells using cmp,
// which compares the sought key against cell i (negative if the key
// sorts before cell i, zero on match, positive if after). Returns
// whether an exact match was found and the index of the match, or the
// insertion point (the index of the first cell that sorts after the
// key) when not found.
func searchCells(n int, cmp func(i int) int) (found bool, idx int) {
	idx = sort.Search(n, func(i int) bool { return cmp(i) <= 0 })
	if idx < n && cmp(idx) == 0 {
		return true, idx
	}
	return false, idx
}

// descendTableInterior chooses the child page to descend into for rowid
// on a table-interior page: the left child of the first cell whose key
// is >= rowid, or the rightmost child if rowid exceeds every key.
func descendTableInterior(page *storage.Page, rowid int64) (uint32, error) {
	n := page.CellCount()
	for i := 0; i < n; i++ {
		raw, err := page.CellBytes(i)
		if err != nil {
			return 0, err
		}
		cell, err := DecodeTableInterior(raw)
		if err != nil {
			return 0, err
		}
		if rowid <= cell.RowID {
			return cell.LeftChild, nil
		}
	}
	return page.RightmostChild(), nil
}

// descendIndexInterior chooses the child page to descend into on an
// index-interior page using keyAt to fetch each cell's full composite
// key (which may require resolving an overflow chain, hence the
// callback rather than a pure function of the raw bytes). Comparing
// the whole record, not just its leading column, matters because
// duplicate leading columns are permitted: a split boundary can fall
// between two keys that tie on column 0, and a leading-column-only
// comparison would route both of them to either child.
func descendIndexInterior(page *storage.Page, target storage.Record, keyAt func(i int) (storage.Record, error)) (uint32, error) {
	n := page.CellCount()
	for i := 0; i < n; i++ {
		k, err := keyAt(i)
		if err != nil {
			return 0, err
		}
		raw, err := page.CellBytes(i)
		if err != nil {
			return 0, err
		}
		cell, err := DecodeIndexInterior(raw)
		if err != nil {
			return 0, err
		}
		if storage.CompareRecords(target, k) <= 0 {
			return cell.LeftChild, nil
		}
	}
	return page.RightmostChild(), nil
}

// splitIndex returns ceil(K/2), the number of cells splitCells puts in
// the left half of a K-cell split.
func splitIndex(k int) int {
	return (k + 1) / 2
}

// splitCells partitions sortedCells (already in ascending key order,
// including the newly inserted one) into a left half of ceil(K/2) cells
// and a right half holding the remaining floor(K/2), clamped so each
// side keeps at least one cell. It splits by count only; whether each
// half fits a page is checked by the caller's SetCells.
func splitCells(sortedCells [][]byte) (left, right [][]byte, medianIdx int) {
	k := len(sortedCells)
	s := splitIndex(k)
	if s < 1 {
		s = 1
	}
	if s > k-1 {
		s = k - 1
	}
	return sortedCells[:s], sortedCells[s:], s - 1
}

// insertAt returns a copy of cells with newCell inserted at position i.
func insertAt(cells [][]byte, i int, newCell []byte) [][]byte {
	out := make([][]byte, 0, len(cells)+1)
	out = append(out, cells[:i]...)
	out = append(out, newCell)
	out = append(out, cells[i:]...)
	return out
}

// removeAt returns a copy of cells with the cell at position i removed.
func removeAt(cells [][]byte, i int) [][]byte {
	if i < 0 || i >= len(cells) {
		return cells
	}
	out := make([][]byte, 0, len(cells)-1)
	out = append(out, cells[:i]...)
	out = append(out, cells[i+1:]...)
	return out
}

// cellsByteSize sums the encoded length of cells, the basis for the
// underfill predicate (cells_bytes < usable_size / 2).
func cellsByteSize(cells [][]byte) int {
	total := 0
	for _, c := range cells {
		total += len(c)
	}
	return total
}

// underfilled reports whether cells occupy less than half of usable,
// the rebalance threshold chosen per the design notes.
func underfilled(cells [][]byte, usable int) bool {
	return cellsByteSize(cells) < usable/2
}

func requirePageType(page *storage.Page, want storage.PageType) error {
	if page.Type() != want {
		return errs.ErrWrongPageType
	}
	return nil
}
