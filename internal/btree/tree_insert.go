package btree

import "github.com/joeandaverde/sqlitecore/internal/storage"

func (t *Tree) pathToTableLeaf(rowID int64) ([]int, error) {
	path := []int{t.root}
	page, err := t.pager.GetPage(t.root)
	if err != nil {
		return nil, err
	}
	for page.Type().IsInterior() {
		child, err := descendTableInterior(page, rowID)
		if err != nil {
			return nil, err
		}
		path = append(path, int(child))
		page, err = t.pager.GetPage(int(child))
		if err != nil {
			return nil, err
		}
	}
	return path, nil
}

func (t *Tree) pathToIndexLeaf(key storage.Record) ([]int, error) {
	path := []int{t.root}
	page, err := t.pager.GetPage(t.root)
	if err != nil {
		return nil, err
	}
	for page.Type().IsInterior() {
		child, err := descendIndexInterior(page, key, func(i int) (storage.Record, error) {
			return t.indexKeyAt(page, i)
		})
		if err != nil {
			return nil, err
		}
		path = append(path, int(child))
		page, err = t.pager.GetPage(int(child))
		if err != nil {
			return nil, err
		}
	}
	return path, nil
}

// Insert adds or replaces the row at rowID.
func (t *Tree) Insert(rowID int64, rec storage.Record) error {
	if err := t.requireKind(Table); err != nil {
		return err
	}
	path, err := t.pathToTableLeaf(rowID)
	if err != nil {
		return err
	}
	leafNum := path[len(path)-1]
	leaf, err := t.pager.GetPageMut(leafNum)
	if err != nil {
		return err
	}

	payload := rec.ToBytes()
	local, overflow, err := t.packPayload(payload)
	if err != nil {
		return err
	}
	newCell := EncodeTableLeaf(rowID, len(payload), local, overflow)

	cells, err := leaf.Cells()
	if err != nil {
		return err
	}
	found, idx, err := t.findInLeafTable(leaf, rowID)
	if err != nil {
		return err
	}
	if found {
		old, err := DecodeTableLeaf(cells[idx])
		if err != nil {
			return err
		}
		if old.HasOverflow() {
			if err := t.freeOverflowChain(old.OverflowPage); err != nil {
				return err
			}
		}
		cells[idx] = newCell
	} else {
		cells = insertAt(cells, idx, newCell)
	}

	if leaf.Fits(cells) {
		if err := leaf.SetCells(cells); err != nil {
			return err
		}
		return t.pager.PutPage(leaf)
	}
	return t.splitTableNodeObj(path, leaf, cells)
}

// splitTableNodeObj splits an already-open, possibly-overflowing table
// node (leaf or interior) and propagates the resulting separator
// upward, promoting a new root if the split reaches path[0].
func (t *Tree) splitTableNodeObj(path []int, node *storage.Page, cells [][]byte) error {
	nodeNum := path[len(path)-1]
	pageType := node.Type()
	left, right, _ := splitCells(cells)
	rightmostChild := node.RightmostChild()

	if len(path) == 1 {
		return t.splitTableRoot(node, pageType, left, right, rightmostChild)
	}
	siblingNum, key, err := t.writeTableSplitHalves(node, pageType, left, right, rightmostChild)
	if err != nil {
		return err
	}
	return t.insertSeparatorTable(path[:len(path)-1], nodeNum, siblingNum, key)
}

// writeTableSplitHalves writes the left half back into node and the
// right half into a freshly allocated sibling, returning the sibling's
// page number and the separator key to insert into the parent.
func (t *Tree) writeTableSplitHalves(node *storage.Page, pageType storage.PageType, left, right [][]byte, rightmostChild uint32) (uint32, int64, error) {
	var key int64
	if pageType.IsInterior() {
		promoted, err := DecodeTableInterior(right[0])
		if err != nil {
			return 0, 0, err
		}
		key = promoted.RowID
		right = right[1:]
		if err := node.SetCells(left); err != nil {
			return 0, 0, err
		}
		node.SetRightmostChild(promoted.LeftChild)
	} else {
		last, err := DecodeTableLeaf(left[len(left)-1])
		if err != nil {
			return 0, 0, err
		}
		key = last.RowID
		if err := node.SetCells(left); err != nil {
			return 0, 0, err
		}
	}
	if err := t.pager.PutPage(node); err != nil {
		return 0, 0, err
	}

	sibling, err := t.pager.AllocatePage(pageType)
	if err != nil {
		return 0, 0, err
	}
	if err := sibling.SetCells(right); err != nil {
		return 0, 0, err
	}
	if pageType.IsInterior() {
		sibling.SetRightmostChild(rightmostChild)
	}
	if err := t.pager.PutPage(sibling); err != nil {
		return 0, 0, err
	}
	return uint32(sibling.Number()), key, nil
}

// splitTableRoot handles a split that reaches the root: the root page
// number must remain the tree's stable handle, so its current content
// (left and right halves) moves into two freshly allocated pages, and
// the root itself is rewritten as a new interior page with one cell.
func (t *Tree) splitTableRoot(root *storage.Page, pageType storage.PageType, left, right [][]byte, rightmostChild uint32) error {
	var key int64
	rightCells := right
	var rightChildPtr uint32
	hasPtr := false
	if pageType.IsInterior() {
		promoted, err := DecodeTableInterior(right[0])
		if err != nil {
			return err
		}
		key = promoted.RowID
		rightCells = right[1:]
		rightChildPtr = promoted.LeftChild
		hasPtr = true
	} else {
		last, err := DecodeTableLeaf(left[len(left)-1])
		if err != nil {
			return err
		}
		key = last.RowID
	}

	leftPage, err := t.pager.AllocatePage(pageType)
	if err != nil {
		return err
	}
	if err := leftPage.SetCells(left); err != nil {
		return err
	}
	if hasPtr {
		leftPage.SetRightmostChild(rightChildPtr)
	}
	if err := t.pager.PutPage(leftPage); err != nil {
		return err
	}

	rightPage, err := t.pager.AllocatePage(pageType)
	if err != nil {
		return err
	}
	if err := rightPage.SetCells(rightCells); err != nil {
		return err
	}
	if pageType.IsInterior() {
		rightPage.SetRightmostChild(rightmostChild)
	}
	if err := t.pager.PutPage(rightPage); err != nil {
		return err
	}

	newRootCell := EncodeTableInterior(uint32(leftPage.Number()), key)
	newRoot := storage.NewPage(root.Number(), t.pager.PageSize(), t.pager.ReservedSpace(), storage.PageTypeTableInterior)
	if err := newRoot.SetCells([][]byte{newRootCell}); err != nil {
		return err
	}
	newRoot.SetRightmostChild(uint32(rightPage.Number()))
	return t.pager.PutPage(newRoot)
}

// insertSeparatorTable inserts a new routing cell for newSiblingNum into
// the parent at path[len(path)-1], locating the cell that used to
// reference oldChildNum (or the rightmost-child slot) and splicing the
// new separator in just before it.
func (t *Tree) insertSeparatorTable(path []int, oldChildNum int, newSiblingNum uint32, key int64) error {
	parentNum := path[len(path)-1]
	parent, err := t.pager.GetPageMut(parentNum)
	if err != nil {
		return err
	}
	cells, err := parent.Cells()
	if err != nil {
		return err
	}

	refIdx := -1
	for i, raw := range cells {
		c, err := DecodeTableInterior(raw)
		if err != nil {
			return err
		}
		if c.LeftChild == uint32(oldChildNum) {
			refIdx = i
			break
		}
	}
	newCell := EncodeTableInterior(uint32(oldChildNum), key)
	if refIdx == -1 {
		cells = append(cells, newCell)
		parent.SetRightmostChild(newSiblingNum)
	} else {
		oldDecoded, err := DecodeTableInterior(cells[refIdx])
		if err != nil {
			return err
		}
		cells[refIdx] = EncodeTableInterior(newSiblingNum, oldDecoded.RowID)
		cells = insertAt(cells, refIdx, newCell)
	}

	if parent.Fits(cells) {
		if err := parent.SetCells(cells); err != nil {
			return err
		}
		return t.pager.PutPage(parent)
	}
	return t.splitTableNodeObj(path, parent, cells)
}

// InsertIndex adds key to the index tree. Duplicate keys are permitted
// (a multiset); callers enforcing uniqueness check FindIndex first.
func (t *Tree) InsertIndex(key storage.Record) error {
	if err := t.requireKind(Index); err != nil {
		return err
	}
	path, err := t.pathToIndexLeaf(key)
	if err != nil {
		return err
	}
	leafNum := path[len(path)-1]
	leaf, err := t.pager.GetPageMut(leafNum)
	if err != nil {
		return err
	}

	payload := key.ToBytes()
	local, overflow, err := t.packPayload(payload)
	if err != nil {
		return err
	}
	newCell := EncodeIndexLeaf(len(payload), local, overflow)

	cells, err := leaf.Cells()
	if err != nil {
		return err
	}
	var cmpErr error
	_, idx := searchCells(len(cells), func(i int) int {
		rec, err := t.indexKeyAt(leaf, i)
		if err != nil {
			cmpErr = err
			return 0
		}
		return storage.CompareRecords(key, rec)
	})
	if cmpErr != nil {
		return cmpErr
	}
	cells = insertAt(cells, idx, newCell)

	if leaf.Fits(cells) {
		if err := leaf.SetCells(cells); err != nil {
			return err
		}
		return t.pager.PutPage(leaf)
	}
	return t.splitIndexNodeObj(path, leaf, cells)
}

func (t *Tree) splitIndexNodeObj(path []int, node *storage.Page, cells [][]byte) error {
	nodeNum := path[len(path)-1]
	pageType := node.Type()
	left, right, _ := splitCells(cells)
	rightmostChild := node.RightmostChild()

	if len(path) == 1 {
		return t.splitIndexRoot(node, pageType, left, right, rightmostChild)
	}
	siblingNum, sepCell, err := t.writeIndexSplitHalves(node, pageType, left, right, rightmostChild)
	if err != nil {
		return err
	}
	return t.insertSeparatorIndex(path[:len(path)-1], nodeNum, siblingNum, sepCell)
}

// writeIndexSplitHalves writes node's left half in place and the right
// half into a fresh sibling. Unlike table trees, an index key lives
// exactly once in the whole tree: the divider cell that moves up into
// the parent is removed from whichever page (leaf or interior) it came
// from, carrying its real payload (and overflow pointer, if any) as-is
// - never a placeholder.
func (t *Tree) writeIndexSplitHalves(node *storage.Page, pageType storage.PageType, left, right [][]byte, rightmostChild uint32) (uint32, []byte, error) {
	var sepCell []byte
	if pageType.IsInterior() {
		promoted, err := DecodeIndexInterior(right[0])
		if err != nil {
			return 0, nil, err
		}
		right = right[1:]
		sepCell = EncodeIndexInterior(uint32(node.Number()), promoted.PayloadSize, promoted.Local, promoted.OverflowPage)
		node.SetRightmostChild(promoted.LeftChild)
	} else {
		promoted, err := DecodeIndexLeaf(right[0])
		if err != nil {
			return 0, nil, err
		}
		right = right[1:]
		sepCell = EncodeIndexInterior(uint32(node.Number()), promoted.PayloadSize, promoted.Local, promoted.OverflowPage)
	}
	if err := node.SetCells(left); err != nil {
		return 0, nil, err
	}
	if err := t.pager.PutPage(node); err != nil {
		return 0, nil, err
	}

	sibling, err := t.pager.AllocatePage(pageType)
	if err != nil {
		return 0, nil, err
	}
	if err := sibling.SetCells(right); err != nil {
		return 0, nil, err
	}
	if pageType.IsInterior() {
		sibling.SetRightmostChild(rightmostChild)
	}
	if err := t.pager.PutPage(sibling); err != nil {
		return 0, nil, err
	}
	return uint32(sibling.Number()), sepCell, nil
}

// splitIndexRoot mirrors splitTableRoot for index trees.
func (t *Tree) splitIndexRoot(root *storage.Page, pageType storage.PageType, left, right [][]byte, rightmostChild uint32) error {
	var sep Cell
	var rightChildPtr uint32
	hasPtr := false
	if pageType.IsInterior() {
		promoted, err := DecodeIndexInterior(right[0])
		if err != nil {
			return err
		}
		sep = promoted
		right = right[1:]
		rightChildPtr = promoted.LeftChild
		hasPtr = true
	} else {
		promoted, err := DecodeIndexLeaf(right[0])
		if err != nil {
			return err
		}
		sep = promoted
		right = right[1:]
	}

	leftPage, err := t.pager.AllocatePage(pageType)
	if err != nil {
		return err
	}
	if err := leftPage.SetCells(left); err != nil {
		return err
	}
	if hasPtr {
		leftPage.SetRightmostChild(rightChildPtr)
	}
	if err := t.pager.PutPage(leftPage); err != nil {
		return err
	}

	rightPage, err := t.pager.AllocatePage(pageType)
	if err != nil {
		return err
	}
	if err := rightPage.SetCells(right); err != nil {
		return err
	}
	if pageType.IsInterior() {
		rightPage.SetRightmostChild(rightmostChild)
	}
	if err := t.pager.PutPage(rightPage); err != nil {
		return err
	}

	newRootCell := EncodeIndexInterior(uint32(leftPage.Number()), sep.PayloadSize, sep.Local, sep.OverflowPage)
	newRoot := storage.NewPage(root.Number(), t.pager.PageSize(), t.pager.ReservedSpace(), storage.PageTypeIndexInterior)
	if err := newRoot.SetCells([][]byte{newRootCell}); err != nil {
		return err
	}
	newRoot.SetRightmostChild(uint32(rightPage.Number()))
	return t.pager.PutPage(newRoot)
}

// insertSeparatorIndex inserts sepCell (already shaped as an
// IndexInterior cell whose left-child is oldChildNum) into the parent
// at path[len(path)-1], repointing whichever slot used to reference
// oldChildNum at newSiblingNum instead, since keys above the new
// separator now live in the sibling.
func (t *Tree) insertSeparatorIndex(path []int, oldChildNum int, newSiblingNum uint32, sepCell []byte) error {
	parentNum := path[len(path)-1]
	parent, err := t.pager.GetPageMut(parentNum)
	if err != nil {
		return err
	}
	cells, err := parent.Cells()
	if err != nil {
		return err
	}

	refIdx := -1
	for i, raw := range cells {
		c, err := DecodeIndexInterior(raw)
		if err != nil {
			return err
		}
		if c.LeftChild == uint32(oldChildNum) {
			refIdx = i
			break
		}
	}
	if refIdx == -1 {
		cells = append(cells, sepCell)
		parent.SetRightmostChild(newSiblingNum)
	} else {
		oldDecoded, err := DecodeIndexInterior(cells[refIdx])
		if err != nil {
			return err
		}
		cells[refIdx] = EncodeIndexInterior(newSiblingNum, oldDecoded.PayloadSize, oldDecoded.Local, oldDecoded.OverflowPage)
		cells = insertAt(cells, refIdx, sepCell)
	}

	if parent.Fits(cells) {
		if err := parent.SetCells(cells); err != nil {
			return err
		}
		return t.pager.PutPage(parent)
	}
	return t.splitIndexNodeObj(path, parent, cells)
}
