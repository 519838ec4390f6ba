package btree

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/joeandaverde/sqlitecore/internal/pager"
	"github.com/joeandaverde/sqlitecore/internal/storage"
)

func newTestPager(t *testing.T, pageSize uint32) *pager.Pager {
	t.Helper()
	path := filepath.Join(t.TempDir(), uuid.New().String()+".db")
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	p, err := pager.Create(path, pageSize, 0, log)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func TestTable_InsertFindScan(t *testing.T) {
	r := require.New(t)

	p := newTestPager(t, 4096)
	tree, err := Create(p, Table)
	r.NoError(err)

	want := map[int64]storage.Record{
		1: {storage.Int64(1), storage.TextValue("alice")},
		2: {storage.Int64(2), storage.TextValue("bob")},
		3: {storage.Int64(3), storage.TextValue("carol")},
	}
	for id, rec := range want {
		r.NoError(tree.Insert(id, rec))
	}

	for id, rec := range want {
		got, found, err := tree.Find(id)
		r.NoError(err)
		r.True(found)
		r.Equal(rec, got)
	}

	_, found, err := tree.Find(999)
	r.NoError(err)
	r.False(found)

	seen := map[int64]bool{}
	r.NoError(tree.ScanTable(func(rowID int64, rec storage.Record) (bool, error) {
		seen[rowID] = true
		r.Equal(want[rowID], rec)
		return true, nil
	}))
	r.Len(seen, len(want))
}

func TestTable_InsertReplacesExistingRowID(t *testing.T) {
	r := require.New(t)

	p := newTestPager(t, 4096)
	tree, err := Create(p, Table)
	r.NoError(err)

	r.NoError(tree.Insert(1, storage.Record{storage.TextValue("v1")}))
	r.NoError(tree.Insert(1, storage.Record{storage.TextValue("v2")}))

	got, found, err := tree.Find(1)
	r.NoError(err)
	r.True(found)
	r.Equal(storage.Record{storage.TextValue("v2")}, got)

	count := 0
	r.NoError(tree.ScanTable(func(int64, storage.Record) (bool, error) {
		count++
		return true, nil
	}))
	r.Equal(1, count)
}

func TestTable_ManyInsertsForceSplitsAndRootPromotion(t *testing.T) {
	r := require.New(t)

	p := newTestPager(t, 512)
	tree, err := Create(p, Table)
	r.NoError(err)

	const n = 300
	for i := int64(0); i < n; i++ {
		rec := storage.Record{storage.Int64(i), storage.TextValue(fmt.Sprintf("row-%04d", i))}
		r.NoError(tree.Insert(i, rec))
	}

	root, err := p.GetPage(tree.Root())
	r.NoError(err)
	r.True(root.Type().IsInterior(), "root should have been promoted to interior after many inserts")

	for i := int64(0); i < n; i++ {
		got, found, err := tree.Find(i)
		r.NoError(err)
		r.True(found, "rowid %d should be found", i)
		r.Equal(storage.Int64(i), got[0])
	}

	var inOrder []int64
	r.NoError(tree.ScanTable(func(rowID int64, rec storage.Record) (bool, error) {
		inOrder = append(inOrder, rowID)
		return true, nil
	}))
	r.Len(inOrder, n)
	for i := 1; i < len(inOrder); i++ {
		r.Less(inOrder[i-1], inOrder[i])
	}
}

func TestTable_DeleteAllRowsShrinksBackToLeafRoot(t *testing.T) {
	r := require.New(t)

	p := newTestPager(t, 512)
	tree, err := Create(p, Table)
	r.NoError(err)

	const n = 200
	for i := int64(0); i < n; i++ {
		rec := storage.Record{storage.Int64(i), storage.TextValue(fmt.Sprintf("row-%04d", i))}
		r.NoError(tree.Insert(i, rec))
	}
	root, err := p.GetPage(tree.Root())
	r.NoError(err)
	r.True(root.Type().IsInterior())

	for i := int64(0); i < n; i++ {
		found, err := tree.Delete(i)
		r.NoError(err)
		r.True(found)
	}

	root, err = p.GetPage(tree.Root())
	r.NoError(err)
	r.True(root.Type().IsLeaf(), "root should demote back to a leaf once emptied")
	r.Equal(0, root.CellCount())

	for i := int64(0); i < n; i++ {
		_, found, err := tree.Find(i)
		r.NoError(err)
		r.False(found)
	}
}

func TestTable_DeleteMissingRowIDReportsNotFound(t *testing.T) {
	r := require.New(t)

	p := newTestPager(t, 4096)
	tree, err := Create(p, Table)
	r.NoError(err)
	found, err := tree.Delete(123)
	r.NoError(err)
	r.False(found)
}

func TestTable_DeleteSomeRowsTriggersRebalanceWithoutLosingData(t *testing.T) {
	r := require.New(t)

	p := newTestPager(t, 512)
	tree, err := Create(p, Table)
	r.NoError(err)

	const n = 200
	for i := int64(0); i < n; i++ {
		r.NoError(tree.Insert(i, storage.Record{storage.TextValue(fmt.Sprintf("row-%04d", i))}))
	}
	// Delete every third row, forcing merges/redistributions without
	// emptying the tree.
	var deleted []int64
	for i := int64(0); i < n; i += 3 {
		found, err := tree.Delete(i)
		r.NoError(err)
		r.True(found)
		deleted = append(deleted, i)
	}
	deletedSet := map[int64]bool{}
	for _, d := range deleted {
		deletedSet[d] = true
	}

	for i := int64(0); i < n; i++ {
		_, found, err := tree.Find(i)
		r.NoError(err)
		r.Equal(!deletedSet[i], found, "rowid %d", i)
	}
}

func TestTable_OverflowChainForLargePayload(t *testing.T) {
	r := require.New(t)

	p := newTestPager(t, 512)
	tree, err := Create(p, Table)
	r.NoError(err)

	big := make([]byte, 4000)
	for i := range big {
		big[i] = byte(i)
	}
	rec := storage.Record{storage.BlobValue(big)}
	r.NoError(tree.Insert(1, rec))

	got, found, err := tree.Find(1)
	r.NoError(err)
	r.True(found)
	r.Equal(big, got[0].Blob)

	deleted, err := tree.Delete(1)
	r.NoError(err)
	r.True(deleted)
	_, found, err = tree.Find(1)
	r.NoError(err)
	r.False(found)
}

func TestIndex_InsertFindScanOrdersKeys(t *testing.T) {
	r := require.New(t)

	p := newTestPager(t, 4096)
	tree, err := Create(p, Index)
	r.NoError(err)

	keys := []storage.Record{
		{storage.Int64(5), storage.Int64(1)},
		{storage.Int64(1), storage.Int64(2)},
		{storage.Int64(3), storage.Int64(3)},
	}
	for _, k := range keys {
		r.NoError(tree.InsertIndex(k))
	}

	for _, k := range keys {
		found, err := tree.FindIndex(k)
		r.NoError(err)
		r.True(found)
	}
	found, err := tree.FindIndex(storage.Record{storage.Int64(99), storage.Int64(0)})
	r.NoError(err)
	r.False(found)

	var seen []storage.Record
	r.NoError(tree.ScanIndex(func(rec storage.Record) (bool, error) {
		seen = append(seen, rec)
		return true, nil
	}))
	r.Len(seen, len(keys))
	for i := 1; i < len(seen); i++ {
		r.Less(storage.CompareRecords(seen[i-1], seen[i]), 0)
	}
}

func TestIndex_AllowsDuplicateKeys(t *testing.T) {
	r := require.New(t)

	p := newTestPager(t, 4096)
	tree, err := Create(p, Index)
	r.NoError(err)

	key := storage.Record{storage.Int64(1), storage.TextValue("dup")}
	r.NoError(tree.InsertIndex(key))
	r.NoError(tree.InsertIndex(key))

	count := 0
	r.NoError(tree.ScanIndex(func(storage.Record) (bool, error) {
		count++
		return true, nil
	}))
	r.Equal(2, count)
}

func TestIndex_SharedLeadingColumnSplitsRouteCorrectly(t *testing.T) {
	r := require.New(t)

	p := newTestPager(t, 512)
	tree, err := Create(p, Index)
	r.NoError(err)

	// Every key shares the same leading column; ordering and routing
	// must fall through to the trailing column, not just column 0.
	const n = 300
	var keys []storage.Record
	for i := int64(0); i < n; i++ {
		key := storage.Record{storage.Int64(5), storage.TextValue(fmt.Sprintf("tail-%04d", i))}
		r.NoError(tree.InsertIndex(key))
		keys = append(keys, key)
	}

	root, err := p.GetPage(tree.Root())
	r.NoError(err)
	r.True(root.Type().IsInterior(), "shared leading column should still force interior splits")

	for _, key := range keys {
		found, err := tree.FindIndex(key)
		r.NoError(err)
		r.True(found, "key %v should be found", key)
	}

	var seen []storage.Record
	r.NoError(tree.ScanIndex(func(rec storage.Record) (bool, error) {
		seen = append(seen, rec)
		return true, nil
	}))
	r.Len(seen, n)
	for i := 1; i < len(seen); i++ {
		r.Less(storage.CompareRecords(seen[i-1], seen[i]), 0)
	}

	for i, key := range keys {
		if i%2 == 0 {
			found, err := tree.DeleteIndex(key)
			r.NoError(err)
			r.True(found)
		}
	}
	for i, key := range keys {
		found, err := tree.FindIndex(key)
		r.NoError(err)
		if i%2 == 0 {
			r.False(found, "key %v should have been deleted", key)
		} else {
			r.True(found, "key %v should remain", key)
		}
	}
}

func TestIndex_ManyInsertsForceSplitsWithRealSeparators(t *testing.T) {
	r := require.New(t)

	p := newTestPager(t, 512)
	tree, err := Create(p, Index)
	r.NoError(err)

	const n = 300
	for i := int64(0); i < n; i++ {
		key := storage.Record{storage.Int64(i), storage.TextValue(fmt.Sprintf("key-%04d", i))}
		r.NoError(tree.InsertIndex(key))
	}

	root, err := p.GetPage(tree.Root())
	r.NoError(err)
	r.True(root.Type().IsInterior())

	var seen []storage.Record
	r.NoError(tree.ScanIndex(func(rec storage.Record) (bool, error) {
		seen = append(seen, rec)
		return true, nil
	}))
	r.Len(seen, n)
	for i := 1; i < len(seen); i++ {
		r.Less(storage.CompareRecords(seen[i-1], seen[i]), 0)
	}
	for i := int64(0); i < n; i++ {
		key := storage.Record{storage.Int64(i), storage.TextValue(fmt.Sprintf("key-%04d", i))}
		found, err := tree.FindIndex(key)
		r.NoError(err)
		r.True(found, "key %d should be found", i)
	}
}

func TestIndex_DeleteRebalancesAndPreservesRemainingKeys(t *testing.T) {
	r := require.New(t)

	p := newTestPager(t, 512)
	tree, err := Create(p, Index)
	r.NoError(err)

	const n = 200
	var all []storage.Record
	for i := int64(0); i < n; i++ {
		key := storage.Record{storage.Int64(i), storage.TextValue(fmt.Sprintf("key-%04d", i))}
		r.NoError(tree.InsertIndex(key))
		all = append(all, key)
	}

	for i := 0; i < len(all); i += 2 {
		found, err := tree.DeleteIndex(all[i])
		r.NoError(err)
		r.True(found)
	}

	for i, key := range all {
		found, err := tree.FindIndex(key)
		r.NoError(err)
		if i%2 == 0 {
			r.False(found, "key %d should have been deleted", i)
		} else {
			r.True(found, "key %d should remain", i)
		}
	}
}

func TestIndex_DeleteMissingKeyReportsNotFound(t *testing.T) {
	r := require.New(t)

	p := newTestPager(t, 4096)
	tree, err := Create(p, Index)
	r.NoError(err)
	found, err := tree.DeleteIndex(storage.Record{storage.Int64(1)})
	r.NoError(err)
	r.False(found)
}

func TestTree_WrongKindOperationsError(t *testing.T) {
	r := require.New(t)

	p := newTestPager(t, 4096)
	table, err := Create(p, Table)
	r.NoError(err)
	r.Error(table.InsertIndex(storage.Record{storage.Int64(1)}))

	idx, err := Create(p, Index)
	r.NoError(err)
	r.Error(idx.Insert(1, storage.Record{}))
}
