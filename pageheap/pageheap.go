// Package pageheap implements the page-level tier of the allocator:
// it owns every OS-backed mapping, hands out and reclaims Spans by
// page count, and keeps the address->span reverse map current across
// every split and coalesce.
//
// Grounded on the teacher's mheap.go (the free/busy mSpanList arrays
// and their single global lock) and, for the exact split/coalesce
// sequencing, on the original C++ source's PageCache.cpp
// (_examples/original_source/release/src/PageCache.cpp), which this
// port follows step for step.
package pageheap

import (
	"sync"

	"github.com/wenfang-style/tcmalloc/span"
)

// MaxPages bounds the page-heap free-list array: spans up to this many
// pages get their own bucket; spans of pageSize*MaxPages or more share
// the tail. Set generously relative to MinSystemPages so ordinary
// small-class spans never overflow into the shared bucket.
const MaxPages = 256

// MinSystemPages is the minimum number of pages requested from the OS
// on any single mmap, spec.md's MIN_SYSTEM_PAGES.
const MinSystemPages = 128

// Mapper is the OS boundary: anonymous, private, read/write page
// mappings in multiples of pageSize. Implemented by mmap on unix
// platforms (see mmap_unix.go); an alternate Mapper can be supplied for
// testing without touching real OS memory.
type Mapper interface {
	Map(pages, pageSize uintptr) (addr uintptr, err error)
}

// Heap is the page-heap singleton. A zero Heap is not usable; use New.
type Heap struct {
	mu sync.Mutex

	pageSize uintptr
	mapper   Mapper
	reverse  *span.ReverseMap

	free [MaxPages]span.List // free_lists_[pages-1], index MaxPages-1 holds pages >= MaxPages

	totalMapped uintptr // bytes ever obtained from the OS, monotonic
}

// New creates a page heap that maps memory through mapper in units of
// pageSize.
func New(pageSize uintptr, mapper Mapper) *Heap {
	h := &Heap{
		pageSize: pageSize,
		mapper:   mapper,
		reverse:  span.NewReverseMap(pageSize),
	}
	for i := range h.free {
		h.free[i].Init()
	}
	return h
}

// ReverseMap exposes the shared reverse map so the central cache can
// route freed objects back to their span on the release path.
func (h *Heap) ReverseMap() *span.ReverseMap {
	return h.reverse
}

// bucket returns the free-list index for a span of the given page
// count: pages-1, clamped to the last (overflow) bucket.
func bucket(pages uintptr) uintptr {
	if pages > MaxPages {
		return MaxPages - 1
	}
	return pages - 1
}

// AllocateSpan returns a span of exactly pages pages, splitting a
// larger free span or growing the heap as needed (spec.md §4.3,
// "Allocate algorithm"). Returns nil on OOM. The returned span has
// InUse=true and SizeClass=UnusedClass; the caller assigns a class.
func (h *Heap) AllocateSpan(pages uintptr) *span.Span {
	h.mu.Lock()
	defer h.mu.Unlock()

	var s *span.Span
	if b := bucket(pages); !h.free[b].Empty() {
		// The overflow bucket mixes sizes: take its first span that fits.
		s = h.free[b].First()
		for s != nil && s.Pages < pages {
			s = span.Next(s)
		}
		if s != nil {
			h.free[b].Remove(s)
		}
	}
	if s == nil {
		for i := pages + 1; i <= MaxPages; i++ {
			ib := bucket(i)
			if !h.free[ib].Empty() {
				s = h.free[ib].First()
				h.free[ib].Remove(s)
				break
			}
		}
	}

	if s == nil {
		s = h.newSpan(pages)
		if s == nil {
			return nil
		}
	}

	if s.Pages > pages {
		remainder := &span.Span{
			Start: s.Start + pages*h.pageSize,
			Pages: s.Pages - pages,
		}
		startPageID := h.reverse.PageID(s.Start)
		h.reverse.SetRange(startPageID+pages, remainder.Pages, remainder)
		s.Pages = pages
		h.free[bucket(remainder.Pages)].PushFront(remainder)
	}

	s.InUse = true
	s.SizeClass = span.UnusedClass
	return s
}

// newSpan requests at least max(pages, MinSystemPages) pages from the
// OS and records the whole mapping as one span, spec.md §4.3 "New
// span". Caller holds h.mu.
func (h *Heap) newSpan(pages uintptr) *span.Span {
	want := pages
	if want < MinSystemPages {
		want = MinSystemPages
	}
	addr, err := h.mapper.Map(want, h.pageSize)
	if err != nil {
		return nil
	}
	h.totalMapped += want * h.pageSize

	s := &span.Span{Start: addr, Pages: want}
	startPageID := h.reverse.PageID(addr)
	h.reverse.SetRange(startPageID, want, s)
	return s
}

// DeallocateSpan returns span to free state and coalesces it with its
// physically adjacent neighbors, spec.md §4.3 "Deallocate / coalesce".
func (h *Heap) DeallocateSpan(s *span.Span) {
	h.mu.Lock()
	defer h.mu.Unlock()

	currentID := h.reverse.PageID(s.Start)

	if prev := h.reverse.Lookup(currentID - 1); prev != nil {
		if !prev.InUse && prev.Start+prev.Pages*h.pageSize == s.Start {
			h.free[bucket(prev.Pages)].Remove(prev)
			prev.Pages += s.Pages
			h.reverse.SetRange(currentID, s.Pages, prev)
			s = prev
			currentID = h.reverse.PageID(s.Start)
		}
	}

	nextID := currentID + s.Pages
	if next := h.reverse.Lookup(nextID); next != nil {
		if !next.InUse && next.Start == s.Start+s.Pages*h.pageSize {
			h.free[bucket(next.Pages)].Remove(next)
			h.reverse.SetRange(nextID, next.Pages, s)
			s.Pages += next.Pages
		}
	}

	s.Reset()
	h.free[bucket(s.Pages)].PushFront(s)
}

// Stats is a point-in-time snapshot for diagnostics/metrics.
type Stats struct {
	TotalMappedBytes uintptr
	FreeSpanCount    int
}

// Snapshot reports the heap's current diagnostic state.
func (h *Heap) Snapshot() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	count := 0
	for i := range h.free {
		for s := h.free[i].First(); s != nil; s = span.Next(s) {
			count++
		}
	}
	return Stats{TotalMappedBytes: h.totalMapped, FreeSpanCount: count}
}
