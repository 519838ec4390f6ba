package sqlitecore

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/joeandaverde/sqlitecore/internal/btree"
	"github.com/joeandaverde/sqlitecore/internal/storage"
)

func tempDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), uuid.New().String()+".db")
}

func TestDatabase_CreateThenOpenRoundTrips(t *testing.T) {
	r := require.New(t)

	path := tempDBPath(t)
	db, err := Create(path, Config{PageSize: 4096})
	r.NoError(err)

	tree, err := db.CreateTable()
	r.NoError(err)
	r.NoError(tree.Insert(1, storage.Record{storage.TextValue("hello")}))
	r.NoError(db.Commit())
	r.NoError(db.Close())

	db2, err := Open(path, Config{})
	r.NoError(err)
	defer db2.Close()

	r.Equal(uint32(4096), db2.Header().PageSize)

	reopened := db2.OpenBTree(tree.Root(), btree.Table)
	rec, found, err := reopened.Find(1)
	r.NoError(err)
	r.True(found)
	r.Equal(storage.Record{storage.TextValue("hello")}, rec)
}

func TestDatabase_CreateDefaultsPageSize(t *testing.T) {
	r := require.New(t)

	db, err := Create(tempDBPath(t), Config{})
	r.NoError(err)
	defer db.Close()
	r.Equal(uint32(DefaultPageSize), db.Header().PageSize)
}

func TestDatabase_CreateTableAndIndexGetDistinctRoots(t *testing.T) {
	r := require.New(t)

	db, err := Create(tempDBPath(t), Config{})
	r.NoError(err)
	defer db.Close()

	table, err := db.CreateTable()
	r.NoError(err)
	index, err := db.CreateIndex()
	r.NoError(err)
	r.NotEqual(table.Root(), index.Root())
}

func TestDatabase_UpdateHeaderPersistsUserFields(t *testing.T) {
	r := require.New(t)

	path := tempDBPath(t)
	db, err := Create(path, Config{})
	r.NoError(err)

	h := db.Header()
	h.UserVersion = 7
	h.ApplicationID = 42
	db.UpdateHeader(h)
	r.NoError(db.Commit())
	r.NoError(db.Close())

	db2, err := Open(path, Config{})
	r.NoError(err)
	defer db2.Close()
	r.Equal(uint32(7), db2.Header().UserVersion)
	r.Equal(uint32(42), db2.Header().ApplicationID)
}
