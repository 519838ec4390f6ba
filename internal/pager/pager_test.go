package pager

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/joeandaverde/sqlitecore/internal/storage"
)

func tempDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), uuid.New().String()+".db")
}

func silentLog() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func TestPager_CreateWritesValidHeaderAndRootPage(t *testing.T) {
	r := require.New(t)

	path := tempDBPath(t)
	p, err := Create(path, 4096, 0, silentLog())
	r.NoError(err)
	defer p.Close()

	h := p.Header()
	r.Equal(uint32(4096), h.PageSize)
	r.Equal(uint32(1), h.PageCount)

	root, err := p.GetPage(1)
	r.NoError(err)
	r.Equal(storage.PageTypeTableLeaf, root.Type())
	r.Equal(0, root.CellCount())
}

func TestPager_CreateRejectsInvalidPageSize(t *testing.T) {
	r := require.New(t)

	_, err := Create(tempDBPath(t), 123, 0, silentLog())
	r.Error(err)
}

func TestPager_CreateFailsIfFileAlreadyExists(t *testing.T) {
	r := require.New(t)

	path := tempDBPath(t)
	p1, err := Create(path, 4096, 0, silentLog())
	r.NoError(err)
	r.NoError(p1.Close())

	_, err = Create(path, 4096, 0, silentLog())
	r.Error(err)
}

func TestPager_OpenRoundTripsAcrossClose(t *testing.T) {
	r := require.New(t)

	path := tempDBPath(t)
	p1, err := Create(path, 4096, 0, silentLog())
	r.NoError(err)

	pg, err := p1.AllocatePage(storage.PageTypeTableLeaf)
	r.NoError(err)
	r.NoError(pg.SetCells([][]byte{{0xDE, 0xAD}}))
	r.NoError(p1.PutPage(pg))
	r.NoError(p1.Close())

	p2, err := Open(path, silentLog())
	r.NoError(err)
	defer p2.Close()

	got, err := p2.GetPage(pg.Number())
	r.NoError(err)
	r.Equal(1, got.CellCount())
	cell, err := got.CellBytes(0)
	r.NoError(err)
	r.Equal([]byte{0xDE, 0xAD}, cell)
}

func TestPager_PutPageIsInvisibleUntilCalled(t *testing.T) {
	r := require.New(t)

	p, err := Create(tempDBPath(t), 4096, 0, silentLog())
	r.NoError(err)
	defer p.Close()

	page, err := p.GetPage(1)
	r.NoError(err)
	r.NoError(page.SetCells([][]byte{{0x01}}))

	// Mutation not yet committed via PutPage: a fresh borrow must not see it.
	fresh, err := p.GetPage(1)
	r.NoError(err)
	r.Equal(0, fresh.CellCount())

	r.NoError(p.PutPage(page))
	fresh2, err := p.GetPage(1)
	r.NoError(err)
	r.Equal(1, fresh2.CellCount())
}

func TestPager_AllocatePageExtendsFileWhenFreelistEmpty(t *testing.T) {
	r := require.New(t)

	p, err := Create(tempDBPath(t), 4096, 0, silentLog())
	r.NoError(err)
	defer p.Close()

	pg1, err := p.AllocatePage(storage.PageTypeTableLeaf)
	r.NoError(err)
	r.Equal(2, pg1.Number())

	pg2, err := p.AllocatePage(storage.PageTypeTableLeaf)
	r.NoError(err)
	r.Equal(3, pg2.Number())
}

func TestPager_FreePageThenAllocateReusesIt(t *testing.T) {
	r := require.New(t)

	p, err := Create(tempDBPath(t), 4096, 0, silentLog())
	r.NoError(err)
	defer p.Close()

	pg, err := p.AllocatePage(storage.PageTypeTableLeaf)
	r.NoError(err)
	freedNum := pg.Number()

	r.NoError(p.FreePage(freedNum))
	h := p.Header()
	r.Equal(uint32(1), h.FreelistCount)
	r.Equal(uint32(freedNum), h.FirstFreelistPage)

	reused, err := p.AllocatePage(storage.PageTypeTableLeaf)
	r.NoError(err)
	r.Equal(freedNum, reused.Number())

	h = p.Header()
	r.Equal(uint32(0), h.FreelistCount)
}

func TestPager_FreelistTrunkOverflowsIntoNewTrunk(t *testing.T) {
	r := require.New(t)

	// Small page size -> small trunk leaf capacity, easy to overflow.
	p, err := Create(tempDBPath(t), 512, 0, silentLog())
	r.NoError(err)
	defer p.Close()

	usable := p.UsableSize()
	capacity := (usable - 8) / 4

	var pages []int
	for i := 0; i < capacity+2; i++ {
		pg, err := p.AllocatePage(storage.PageTypeTableLeaf)
		r.NoError(err)
		pages = append(pages, pg.Number())
	}
	for _, n := range pages {
		r.NoError(p.FreePage(n))
	}

	h := p.Header()
	r.Equal(uint32(len(pages)), h.FreelistCount)

	// Popping every freed page back out must succeed without corruption.
	for range pages {
		_, err := p.AllocatePage(storage.PageTypeTableLeaf)
		r.NoError(err)
	}
	h = p.Header()
	r.Equal(uint32(0), h.FreelistCount)
}

func TestPager_OverflowChainRoundTrip(t *testing.T) {
	r := require.New(t)

	p, err := Create(tempDBPath(t), 4096, 0, silentLog())
	r.NoError(err)
	defer p.Close()

	n1, err := p.CreateOverflowPage(0, []byte("tail"))
	r.NoError(err)
	n2, err := p.CreateOverflowPage(n1, []byte("head-"))
	r.NoError(err)

	next, payload, err := p.ReadOverflowPage(int(n2))
	r.NoError(err)
	r.Equal(n1, next)
	r.Len(payload, 4096-4)
	r.Equal([]byte("head-"), payload[:len("head-")])

	next2, payload2, err := p.ReadOverflowPage(int(n1))
	r.NoError(err)
	r.Equal(uint32(0), next2)
	r.Len(payload2, 4096-4)
	r.Equal([]byte("tail"), payload2[:len("tail")])
}

func TestPager_UpdateHeaderPreservesPagerOwnedFields(t *testing.T) {
	r := require.New(t)

	p, err := Create(tempDBPath(t), 4096, 0, silentLog())
	r.NoError(err)
	defer p.Close()

	_, err = p.AllocatePage(storage.PageTypeTableLeaf)
	r.NoError(err)

	before := p.Header()
	updated := before
	updated.SchemaCookie = 7
	updated.PageCount = 99999 // caller cannot override this
	p.UpdateHeader(updated)

	after := p.Header()
	r.Equal(uint32(7), after.SchemaCookie)
	r.Equal(before.PageCount, after.PageCount)
}

func TestPager_FlushPersistsHeaderAndDirtyPages(t *testing.T) {
	r := require.New(t)

	path := tempDBPath(t)
	p, err := Create(path, 4096, 0, silentLog())
	r.NoError(err)

	updated := p.Header()
	updated.UserVersion = 123
	p.UpdateHeader(updated)
	r.NoError(p.Flush())
	r.NoError(p.Close())

	p2, err := Open(path, silentLog())
	r.NoError(err)
	defer p2.Close()
	r.Equal(uint32(123), p2.Header().UserVersion)
}
