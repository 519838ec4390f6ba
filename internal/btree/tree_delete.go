package btree

import (
	"github.com/joeandaverde/sqlitecore/internal/errs"
	"github.com/joeandaverde/sqlitecore/internal/storage"
)

// Delete removes the row at rowID, freeing any overflow chain it owns
// and rebalancing the tree back up to the root. It reports found=false,
// err=nil when rowID is not present; err is reserved for I/O/corruption
// failures.
func (t *Tree) Delete(rowID int64) (bool, error) {
	if err := t.requireKind(Table); err != nil {
		return false, err
	}
	path, err := t.pathToTableLeaf(rowID)
	if err != nil {
		return false, err
	}
	leafNum := path[len(path)-1]
	leaf, err := t.pager.GetPageMut(leafNum)
	if err != nil {
		return false, err
	}
	found, idx, err := t.findInLeafTable(leaf, rowID)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	cells, err := leaf.Cells()
	if err != nil {
		return false, err
	}
	old, err := DecodeTableLeaf(cells[idx])
	if err != nil {
		return false, err
	}
	if old.HasOverflow() {
		if err := t.freeOverflowChain(old.OverflowPage); err != nil {
			return false, err
		}
	}
	cells = removeAt(cells, idx)
	if err := leaf.SetCells(cells); err != nil {
		return false, err
	}
	if err := t.pager.PutPage(leaf); err != nil {
		return false, err
	}
	return true, t.rebalanceTable(path)
}

// rebalanceTable checks the node at path[len(path)-1] for underflow and
// merges or redistributes with a sibling as needed, recursing upward.
// At the root (path length 1) it instead checks for the single-child
// demotion case.
func (t *Tree) rebalanceTable(path []int) error {
	nodeNum := path[len(path)-1]
	node, err := t.pager.GetPage(nodeNum)
	if err != nil {
		return err
	}

	if len(path) == 1 {
		return t.demoteTableRootIfNeeded(node)
	}

	cells, err := node.Cells()
	if err != nil {
		return err
	}
	if !underfilled(cells, t.pager.UsableSize()) {
		return nil
	}

	parentNum := path[len(path)-2]
	parent, err := t.pager.GetPageMut(parentNum)
	if err != nil {
		return err
	}
	children, err := tableChildren(parent)
	if err != nil {
		return err
	}
	pos := indexOf(children, uint32(nodeNum))
	if pos < 0 {
		return errs.ErrCorruptChain
	}

	var siblingPos int
	if pos+1 < len(children) {
		siblingPos = pos + 1
	} else if pos > 0 {
		siblingPos = pos - 1
	} else {
		// Only child: nothing to merge with here; the parent itself
		// will be caught by the demotion check once it is this sole
		// child's ancestor, or its own rebalance pass up the path.
		return nil
	}

	leftPos, rightPos := pos, siblingPos
	if leftPos > rightPos {
		leftPos, rightPos = rightPos, leftPos
	}
	if err := t.mergeOrRedistributeTable(path, parent, children, leftPos, rightPos); err != nil {
		return err
	}
	return t.rebalanceTable(path[:len(path)-1])
}

func tableChildren(parent *storage.Page) ([]uint32, error) {
	n := parent.CellCount()
	children := make([]uint32, 0, n+1)
	for i := 0; i < n; i++ {
		raw, err := parent.CellBytes(i)
		if err != nil {
			return nil, err
		}
		c, err := DecodeTableInterior(raw)
		if err != nil {
			return nil, err
		}
		children = append(children, c.LeftChild)
	}
	children = append(children, parent.RightmostChild())
	return children, nil
}

func indexOf(xs []uint32, v uint32) int {
	for i, x := range xs {
		if x == v {
			return i
		}
	}
	return -1
}

// mergeOrRedistributeTable combines the children at leftPos and rightPos
// (adjacent in parent's child order) and either merges them into one
// page (freeing the other and removing their shared separator from
// parent) or, if the combined cells don't fit a single page,
// redistributes them across both using the same split routine insert
// uses, rewriting the parent's separator to match.
func (t *Tree) mergeOrRedistributeTable(path []int, parent *storage.Page, children []uint32, leftPos, rightPos int) error {
	leftNum, rightNum := int(children[leftPos]), int(children[rightPos])
	left, err := t.pager.GetPageMut(leftNum)
	if err != nil {
		return err
	}
	right, err := t.pager.GetPageMut(rightNum)
	if err != nil {
		return err
	}
	leftCells, err := left.Cells()
	if err != nil {
		return err
	}
	rightCells, err := right.Cells()
	if err != nil {
		return err
	}

	parentCells, err := parent.Cells()
	if err != nil {
		return err
	}
	// The separator between leftPos and rightPos is parentCells[leftPos]
	// (valid since leftPos < len(children)-1, i.e. leftPos < len(parentCells)).
	sepCellRaw := parentCells[leftPos]
	sep, err := DecodeTableInterior(sepCellRaw)
	if err != nil {
		return err
	}

	combined := append(append([][]byte{}, leftCells...), rightCells...)
	pageType := left.Type()
	if pageType.IsInterior() {
		// Reintroduce the separator key as a real interior cell routed
		// through left's old rightmost child, mirroring how a split
		// would have promoted it away.
		reintroduced := EncodeTableInterior(left.RightmostChild(), sep.RowID)
		combined = append(append([][]byte{}, leftCells...), reintroduced)
		combined = append(combined, rightCells...)
	}

	if left.Fits(combined) {
		if err := left.SetCells(combined); err != nil {
			return err
		}
		if pageType.IsInterior() {
			left.SetRightmostChild(right.RightmostChild())
		}
		if err := t.pager.PutPage(left); err != nil {
			return err
		}
		if err := t.pager.FreePage(rightNum); err != nil {
			return err
		}
		return t.removeSeparatorTable(parent, parentCells, leftPos)
	}

	// Doesn't fit: redistribute across both pages using the insert-time
	// split boundary, then rewrite the parent's separator.
	newLeft, newRight, _ := splitCells(combined)
	var newSepKey int64
	if pageType.IsInterior() {
		promoted, err := DecodeTableInterior(newRight[0])
		if err != nil {
			return err
		}
		newSepKey = promoted.RowID
		left.SetRightmostChild(promoted.LeftChild)
		newRight = newRight[1:]
	} else {
		last, err := DecodeTableLeaf(newLeft[len(newLeft)-1])
		if err != nil {
			return err
		}
		newSepKey = last.RowID
	}
	if err := left.SetCells(newLeft); err != nil {
		return err
	}
	if err := t.pager.PutPage(left); err != nil {
		return err
	}
	if err := right.SetCells(newRight); err != nil {
		return err
	}
	if pageType.IsInterior() {
		// right keeps its own original rightmost child; untouched.
	}
	if err := t.pager.PutPage(right); err != nil {
		return err
	}
	parentCells[leftPos] = EncodeTableInterior(uint32(leftNum), newSepKey)
	if err := parent.SetCells(parentCells); err != nil {
		return err
	}
	return t.pager.PutPage(parent)
}

// removeSeparatorTable removes the separator cell at leftPos from
// parent (used after a merge folds rightPos's subtree into leftPos) and
// points the slot that referenced the right child at the left child.
func (t *Tree) removeSeparatorTable(parent *storage.Page, parentCells [][]byte, leftPos int) error {
	sep, err := DecodeTableInterior(parentCells[leftPos])
	if err != nil {
		return err
	}
	cells := removeAt(parentCells, leftPos)
	if leftPos < len(cells) {
		next, err := DecodeTableInterior(cells[leftPos])
		if err != nil {
			return err
		}
		cells[leftPos] = EncodeTableInterior(sep.LeftChild, next.RowID)
	} else {
		parent.SetRightmostChild(sep.LeftChild)
	}
	if err := parent.SetCells(cells); err != nil {
		return err
	}
	return t.pager.PutPage(parent)
}

// demoteTableRootIfNeeded implements the corrected root-demotion
// behavior: when the root is an interior page holding no separator
// cells at all (a single child, via rightmostChild), the tree's height
// can shrink by copying that child's content up into the root page
// itself and freeing the child, keeping the root's page number stable.
func (t *Tree) demoteTableRootIfNeeded(root *storage.Page) error {
	if root.Type().IsLeaf() || root.CellCount() != 0 {
		return nil
	}
	onlyChildNum := int(root.RightmostChild())
	child, err := t.pager.GetPage(onlyChildNum)
	if err != nil {
		return err
	}
	cells, err := child.Cells()
	if err != nil {
		return err
	}
	newRoot := storage.NewPage(root.Number(), t.pager.PageSize(), t.pager.ReservedSpace(), child.Type())
	if err := newRoot.SetCells(cells); err != nil {
		return err
	}
	if child.Type().IsInterior() {
		newRoot.SetRightmostChild(child.RightmostChild())
	}
	if err := t.pager.PutPage(newRoot); err != nil {
		return err
	}
	return t.pager.FreePage(onlyChildNum)
}

// DeleteIndex removes one occurrence of key from the index tree. It
// reports found=false, err=nil when key is not present; err is
// reserved for I/O/corruption failures.
func (t *Tree) DeleteIndex(key storage.Record) (bool, error) {
	if err := t.requireKind(Index); err != nil {
		return false, err
	}
	path, leafIdx, err := t.pathToIndexMatch(key)
	if err != nil {
		return false, err
	}
	if path == nil {
		return false, nil
	}
	leafNum := path[len(path)-1]
	leaf, err := t.pager.GetPageMut(leafNum)
	if err != nil {
		return false, err
	}
	cells, err := leaf.Cells()
	if err != nil {
		return false, err
	}
	old, err := DecodeIndexLeaf(cells[leafIdx])
	if err != nil {
		return false, err
	}
	if old.HasOverflow() {
		if err := t.freeOverflowChain(old.OverflowPage); err != nil {
			return false, err
		}
	}
	cells = removeAt(cells, leafIdx)
	if err := leaf.SetCells(cells); err != nil {
		return false, err
	}
	if err := t.pager.PutPage(leaf); err != nil {
		return false, err
	}
	return true, t.rebalanceIndex(path)
}

// pathToIndexMatch descends to the leaf that would hold key and
// returns the full descent path plus the matching cell's index, or a
// nil path if key is absent.
func (t *Tree) pathToIndexMatch(key storage.Record) ([]int, int, error) {
	path := []int{t.root}
	page, err := t.pager.GetPage(t.root)
	if err != nil {
		return nil, 0, err
	}
	for page.Type().IsInterior() {
		child, err := descendIndexInterior(page, key, func(i int) (storage.Record, error) {
			return t.indexKeyAt(page, i)
		})
		if err != nil {
			return nil, 0, err
		}
		path = append(path, int(child))
		page, err = t.pager.GetPage(int(child))
		if err != nil {
			return nil, 0, err
		}
	}
	n := page.CellCount()
	var cmpErr error
	found, idx := searchCells(n, func(i int) int {
		rec, err := t.indexKeyAt(page, i)
		if err != nil {
			cmpErr = err
			return 0
		}
		return storage.CompareRecords(key, rec)
	})
	if cmpErr != nil {
		return nil, 0, cmpErr
	}
	if !found {
		return nil, 0, nil
	}
	return path, idx, nil
}

func (t *Tree) rebalanceIndex(path []int) error {
	nodeNum := path[len(path)-1]
	node, err := t.pager.GetPage(nodeNum)
	if err != nil {
		return err
	}
	if len(path) == 1 {
		return t.demoteIndexRootIfNeeded(node)
	}
	cells, err := node.Cells()
	if err != nil {
		return err
	}
	if !underfilled(cells, t.pager.UsableSize()) {
		return nil
	}

	parentNum := path[len(path)-2]
	parent, err := t.pager.GetPageMut(parentNum)
	if err != nil {
		return err
	}
	children, err := indexChildren(parent)
	if err != nil {
		return err
	}
	pos := indexOf(children, uint32(nodeNum))
	if pos < 0 {
		return errs.ErrCorruptChain
	}

	var siblingPos int
	if pos+1 < len(children) {
		siblingPos = pos + 1
	} else if pos > 0 {
		siblingPos = pos - 1
	} else {
		return nil
	}
	leftPos, rightPos := pos, siblingPos
	if leftPos > rightPos {
		leftPos, rightPos = rightPos, leftPos
	}
	if err := t.mergeOrRedistributeIndex(path, parent, children, leftPos, rightPos); err != nil {
		return err
	}
	return t.rebalanceIndex(path[:len(path)-1])
}

func indexChildren(parent *storage.Page) ([]uint32, error) {
	n := parent.CellCount()
	children := make([]uint32, 0, n+1)
	for i := 0; i < n; i++ {
		raw, err := parent.CellBytes(i)
		if err != nil {
			return nil, err
		}
		c, err := DecodeIndexInterior(raw)
		if err != nil {
			return nil, err
		}
		children = append(children, c.LeftChild)
	}
	children = append(children, parent.RightmostChild())
	return children, nil
}

// mergeOrRedistributeIndex is mergeOrRedistributeTable's index-tree
// counterpart. The corrected behavior (vs. the source algorithm, which
// used an empty or hashed placeholder for the separator during
// rebalance) is that every separator cell written here - whether
// reintroduced during a merge or rewritten during a redistribution -
// carries the real key payload (and overflow pointer, if any) pulled
// directly from an actual cell, never a placeholder.
func (t *Tree) mergeOrRedistributeIndex(path []int, parent *storage.Page, children []uint32, leftPos, rightPos int) error {
	leftNum, rightNum := int(children[leftPos]), int(children[rightPos])
	left, err := t.pager.GetPageMut(leftNum)
	if err != nil {
		return err
	}
	right, err := t.pager.GetPageMut(rightNum)
	if err != nil {
		return err
	}
	leftCells, err := left.Cells()
	if err != nil {
		return err
	}
	rightCells, err := right.Cells()
	if err != nil {
		return err
	}
	parentCells, err := parent.Cells()
	if err != nil {
		return err
	}
	sep, err := DecodeIndexInterior(parentCells[leftPos])
	if err != nil {
		return err
	}

	pageType := left.Type()
	var combined [][]byte
	if pageType.IsInterior() {
		reintroduced := EncodeIndexInterior(left.RightmostChild(), sep.PayloadSize, sep.Local, sep.OverflowPage)
		combined = append(append([][]byte{}, leftCells...), reintroduced)
		combined = append(combined, rightCells...)
	} else {
		reintroduced := EncodeIndexLeaf(sep.PayloadSize, sep.Local, sep.OverflowPage)
		combined = append(append([][]byte{}, leftCells...), reintroduced)
		combined = append(combined, rightCells...)
	}

	if left.Fits(combined) {
		if err := left.SetCells(combined); err != nil {
			return err
		}
		if pageType.IsInterior() {
			left.SetRightmostChild(right.RightmostChild())
		}
		if err := t.pager.PutPage(left); err != nil {
			return err
		}
		if err := t.pager.FreePage(rightNum); err != nil {
			return err
		}
		cells := removeAt(parentCells, leftPos)
		if leftPos < len(cells) {
			next, err := DecodeIndexInterior(cells[leftPos])
			if err != nil {
				return err
			}
			cells[leftPos] = EncodeIndexInterior(uint32(leftNum), next.PayloadSize, next.Local, next.OverflowPage)
		} else {
			parent.SetRightmostChild(uint32(leftNum))
		}
		if err := parent.SetCells(cells); err != nil {
			return err
		}
		return t.pager.PutPage(parent)
	}

	newLeft, newRight, _ := splitCells(combined)
	var newSep Cell
	if pageType.IsInterior() {
		promoted, err := DecodeIndexInterior(newRight[0])
		if err != nil {
			return err
		}
		newSep = promoted
		left.SetRightmostChild(promoted.LeftChild)
		newRight = newRight[1:]
	} else {
		promoted, err := DecodeIndexLeaf(newRight[0])
		if err != nil {
			return err
		}
		newSep = promoted
		newRight = newRight[1:]
	}
	if err := left.SetCells(newLeft); err != nil {
		return err
	}
	if err := t.pager.PutPage(left); err != nil {
		return err
	}
	if err := right.SetCells(newRight); err != nil {
		return err
	}
	if err := t.pager.PutPage(right); err != nil {
		return err
	}
	parentCells[leftPos] = EncodeIndexInterior(uint32(leftNum), newSep.PayloadSize, newSep.Local, newSep.OverflowPage)
	if err := parent.SetCells(parentCells); err != nil {
		return err
	}
	return t.pager.PutPage(parent)
}

func (t *Tree) demoteIndexRootIfNeeded(root *storage.Page) error {
	if root.Type().IsLeaf() || root.CellCount() != 0 {
		return nil
	}
	onlyChildNum := int(root.RightmostChild())
	child, err := t.pager.GetPage(onlyChildNum)
	if err != nil {
		return err
	}
	cells, err := child.Cells()
	if err != nil {
		return err
	}
	newRoot := storage.NewPage(root.Number(), t.pager.PageSize(), t.pager.ReservedSpace(), child.Type())
	if err := newRoot.SetCells(cells); err != nil {
		return err
	}
	if child.Type().IsInterior() {
		newRoot.SetRightmostChild(child.RightmostChild())
	}
	if err := t.pager.PutPage(newRoot); err != nil {
		return err
	}
	return t.pager.FreePage(onlyChildNum)
}
