package centralcache

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wenfang-style/tcmalloc/pageheap"
	"github.com/wenfang-style/tcmalloc/sizeclass"
	"github.com/wenfang-style/tcmalloc/span"
)

func newTestCache(t *testing.T) (*Cache, *sizeclass.Table) {
	t.Helper()
	table := sizeclass.NewTable(0, 0, 0, 0, 0)
	heap := pageheap.New(table.PageSize(), &pageheap.SliceMapper{})
	return New(table, heap), table
}

func TestFetchRangeGrowsOnFirstUse(t *testing.T) {
	c, table := newTestCache(t)
	class := table.ClassIndex(16)

	grown := 0
	c.onGrow = func(int) { grown++ }

	head, tail, got := c.FetchRange(class, 4)
	require.Equal(t, uintptr(4), got)
	require.NotZero(t, head)
	require.NotZero(t, tail)
	require.Equal(t, 1, grown, "first fetch for a class must grow a span from the page heap")
}

func TestFetchRangeReusesExistingSpanBeforeGrowing(t *testing.T) {
	c, table := newTestCache(t)
	class := table.ClassIndex(16)

	_, _, got1 := c.FetchRange(class, 2)
	require.Equal(t, uintptr(2), got1)

	grown := 0
	c.onGrow = func(int) { grown++ }

	_, _, got2 := c.FetchRange(class, 2)
	require.Equal(t, uintptr(2), got2)
	require.Equal(t, 0, grown, "a span with remaining free capacity must be reused before growing")
}

func TestReleaseRangeReclaimsFullyFreedSpan(t *testing.T) {
	c, table := newTestCache(t)
	class := table.ClassIndex(16)
	objSize := table.ClassSize(class)

	total := table.BatchCount(class) * 4
	head, _, got := c.FetchRange(class, total)
	require.Equal(t, total, got)
	require.True(t, got > 0)

	reclaimed := 0
	c.onReclaim = func(int) { reclaimed++ }

	c.ReleaseRange(head, got, objSize)
	require.Equal(t, 1, reclaimed, "returning every object from a span should reclaim it to the page heap")

	sh := &c.shards[class]
	require.True(t, sh.list.Empty(), "the shard's span list should be empty once its only span is reclaimed")
}

func TestReleaseRangePartialKeepsSpanInUse(t *testing.T) {
	c, table := newTestCache(t)
	class := table.ClassIndex(16)
	objSize := table.ClassSize(class)

	head, _, got := c.FetchRange(class, 4)
	require.Equal(t, uintptr(4), got)

	reclaimed := 0
	c.onReclaim = func(int) { reclaimed++ }

	// Release only 2 of the 4 taken objects.
	first := head
	second := span.ReadNext(first)
	span.WriteNext(second, 0)

	c.ReleaseRange(first, 2, objSize)
	require.Equal(t, 0, reclaimed, "a span still holding outstanding objects must not be reclaimed")
}

func TestFetchRangeReturnsZeroOnPageHeapExhaustion(t *testing.T) {
	table := sizeclass.NewTable(0, 0, 0, 0, 0)
	heap := pageheap.New(table.PageSize(), failingMapper{})
	c := New(table, heap)

	class := table.ClassIndex(16)
	head, tail, got := c.FetchRange(class, 4)
	require.Zero(t, head)
	require.Zero(t, tail)
	require.Zero(t, got)
}

type failingMapper struct{}

func (failingMapper) Map(pages, pageSize uintptr) (uintptr, error) {
	return 0, errSimulated{}
}

type errSimulated struct{}

func (errSimulated) Error() string { return "simulated OOM" }
