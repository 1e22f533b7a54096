package pageheap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const testPageSize = 4096

func TestAllocateSpanSplitsRemainder(t *testing.T) {
	h := New(testPageSize, &SliceMapper{})

	s := h.AllocateSpan(1)
	require.NotNil(t, s)
	require.Equal(t, uintptr(1), s.Pages)
	require.True(t, s.InUse)

	snap := h.Snapshot()
	require.Equal(t, 1, snap.FreeSpanCount, "the remainder of the 128-page system span should be on a free list")
}

func TestSplitThenCoalesce(t *testing.T) {
	// Boundary scenario 3 (spec.md §8): request a 1-page span (forces
	// newSpan of MinSystemPages=128 -> split -> 127-page remainder),
	// then return the 1-page span. Expect a single 128-page free span.
	h := New(testPageSize, &SliceMapper{})

	s := h.AllocateSpan(1)
	require.NotNil(t, s)
	require.Equal(t, uintptr(1), s.Pages)

	h.DeallocateSpan(s)

	snap := h.Snapshot()
	require.Equal(t, 1, snap.FreeSpanCount, "split span should have recoalesced into a single free span")

	b := bucket(MinSystemPages)
	got := h.free[b].First()
	require.NotNil(t, got)
	require.Equal(t, uintptr(MinSystemPages), got.Pages)
}

func TestAllocateSpanReusesFreedSpan(t *testing.T) {
	h := New(testPageSize, &SliceMapper{})

	s1 := h.AllocateSpan(2)
	addr := s1.Start
	h.DeallocateSpan(s1)

	s2 := h.AllocateSpan(2)
	require.Equal(t, addr, s2.Start, "reallocating the same page count right after a free should reuse the freed span")
}

func TestDeallocateSpanResetsMetadata(t *testing.T) {
	h := New(testPageSize, &SliceMapper{})
	s := h.AllocateSpan(1)
	s.SizeClass = 5
	s.UseCount = 3
	h.DeallocateSpan(s)

	require.False(t, s.InUse)
	require.Equal(t, -1, s.SizeClass)
	require.Equal(t, uintptr(0), s.UseCount)
}

func TestOOMWhenMapperFails(t *testing.T) {
	h := New(testPageSize, failingMapper{})
	s := h.AllocateSpan(1)
	require.Nil(t, s)
}

type failingMapper struct{}

func (failingMapper) Map(pages, pageSize uintptr) (uintptr, error) {
	return 0, errOOM{}
}

type errOOM struct{}

func (errOOM) Error() string { return "simulated OOM" }
