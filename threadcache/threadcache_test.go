package threadcache

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wenfang-style/tcmalloc/centralcache"
	"github.com/wenfang-style/tcmalloc/pageheap"
	"github.com/wenfang-style/tcmalloc/sizeclass"
)

func newTestStack(t *testing.T) (*sizeclass.Table, *centralcache.Cache, *Cache) {
	t.Helper()
	table := sizeclass.NewTable(0, 0, 0, 0, 0)
	heap := pageheap.New(table.PageSize(), &pageheap.SliceMapper{})
	central := centralcache.New(table, heap)
	tc := New(table, central)
	return table, central, tc
}

// Boundary scenario 1 (spec.md §8): tiny allocations, single-threaded.
// A sequence of small same-size allocate/free calls on a single cache
// should never hit out-of-memory and should round-trip cleanly.
func TestTinyAllocationsSingleThreaded(t *testing.T) {
	_, _, tc := newTestStack(t)

	const n = 200
	ptrs := make([]uintptr, 0, n)
	for i := 0; i < n; i++ {
		p := tc.Allocate(16)
		require.NotZero(t, p, "allocation %d should not OOM", i)
		ptrs = append(ptrs, p)
	}
	for _, p := range ptrs {
		tc.Deallocate(p, 16)
	}
}

func TestAllocateRefillsFromCentralOnEmptyList(t *testing.T) {
	table, _, tc := newTestStack(t)
	class := table.ClassIndex(16)

	require.Equal(t, uintptr(0), tc.Count(class))
	p := tc.Allocate(16)
	require.NotZero(t, p)
	// A refill pulls BatchCount(class) objects; one was consumed immediately.
	require.Equal(t, table.BatchCount(class)-1, tc.Count(class))
}

// Boundary scenario 5 (spec.md §8): drain threshold. Freeing enough
// objects of one class to cross 2*B(i) should drain roughly half the
// list back to the central cache rather than growing unbounded.
func TestDeallocateDrainsPastThreshold(t *testing.T) {
	table, _, tc := newTestStack(t)
	class := table.ClassIndex(16)
	threshold := 2 * table.BatchCount(class)

	// Build up a supply of distinct addresses by allocating then freeing
	// them all, so the local list grows past the threshold.
	n := int(threshold) + 1
	ptrs := make([]uintptr, 0, n)
	for i := 0; i < n; i++ {
		p := tc.Allocate(16)
		require.NotZero(t, p)
		ptrs = append(ptrs, p)
	}
	for _, p := range ptrs {
		tc.Deallocate(p, 16)
	}

	require.LessOrEqual(t, tc.Count(class), threshold, "drain should keep the local list at or below the threshold")
}

// Regression test for a drain off-by-one that used to drop the last
// object of the released chain and pin its span: drain first fires at
// count==2*B+1, so release==B while the chain split leaves B+1 nodes
// on the other side of the cut. Every allocated object must eventually
// make it back to the central cache and let every span it came from
// fully reclaim, with no leaked node along the way.
func TestDrainDoesNotLeakObjectsOrPinSpans(t *testing.T) {
	table := sizeclass.NewTable(0, 0, 0, 0, 0)
	heap := pageheap.New(table.PageSize(), &pageheap.SliceMapper{})

	grown, reclaimed := 0, 0
	central := centralcache.New(table, heap,
		centralcache.WithGrowHook(func(int) { grown++ }),
		centralcache.WithReclaimHook(func(int) { reclaimed++ }))
	tc := New(table, central)

	class := table.ClassIndex(16)
	threshold := 2 * table.BatchCount(class)

	// Cross the threshold by exactly one, forcing the first drain at
	// count == 2*B+1 — the exact case the bug hit.
	n := int(threshold) + 1
	ptrs := make([]uintptr, 0, n)
	for i := 0; i < n; i++ {
		p := tc.Allocate(16)
		require.NotZero(t, p)
		ptrs = append(ptrs, p)
	}
	for _, p := range ptrs {
		tc.Deallocate(p, 16)
	}

	// Hand back whatever remains locally, then every span this class
	// ever grew must be fully reclaimed — if an object were dropped on
	// the drain cut, its span's use count would never reach zero and
	// this would come up short.
	tc.ReleaseAll()
	require.Zero(t, tc.Count(class))
	require.NotZero(t, grown)
	require.Equal(t, grown, reclaimed, "every span grown for this class should have been fully reclaimed")
}

func TestReleaseAllEmptiesEveryClass(t *testing.T) {
	table, _, tc := newTestStack(t)
	classA := table.ClassIndex(16)
	classB := table.ClassIndex(128)

	pa := tc.Allocate(16)
	pb := tc.Allocate(128)
	tc.Deallocate(pa, 16)
	tc.Deallocate(pb, 128)

	require.NotZero(t, tc.Count(classA))
	require.NotZero(t, tc.Count(classB))

	tc.ReleaseAll()

	require.Zero(t, tc.Count(classA))
	require.Zero(t, tc.Count(classB))
}
