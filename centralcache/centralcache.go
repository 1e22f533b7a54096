// Package centralcache implements the process-wide, size-class-sharded
// middle tier: one span list and one mutex per class, batching objects
// to and from thread caches and growing/reclaiming spans against the
// page heap.
//
// Grounded on the teacher's mcentral.go (the nonempty/empty span-list
// split, spans with free objects kept where they're found quickly) and
// on the original C++ source's CentralCache.cpp, whose fetchRange and
// releaseListToSpans this package follows directly — simplified by
// dropping the teacher's GC-sweep machinery (sweepgen, deductSweepCredit),
// which has no equivalent in this spec's non-GC'd heap.
package centralcache

import (
	"sync"

	"github.com/wenfang-style/tcmalloc/pageheap"
	"github.com/wenfang-style/tcmalloc/sizeclass"
	"github.com/wenfang-style/tcmalloc/span"
)

// shard is the per-size-class state: a mutex and the list of spans
// currently assigned to this class (spec.md §3, "Central-cache state").
type shard struct {
	mu   sync.Mutex
	list span.List
}

// Cache is the central cache: one shard per size class.
type Cache struct {
	table     *sizeclass.Table
	heap      *pageheap.Heap
	shards    []shard
	onGrow    func(class int) // optional metrics hook, may be nil
	onReclaim func(class int) // optional metrics hook, may be nil
}

// Option configures optional observability hooks.
type Option func(*Cache)

// WithGrowHook registers a callback invoked whenever a class grows a
// fresh span from the page heap (diagnostic only).
func WithGrowHook(f func(class int)) Option {
	return func(c *Cache) { c.onGrow = f }
}

// WithReclaimHook registers a callback invoked whenever a span is
// fully freed and handed back to the page heap (diagnostic only).
func WithReclaimHook(f func(class int)) Option {
	return func(c *Cache) { c.onReclaim = f }
}

// New creates a central cache bound to table and heap.
func New(table *sizeclass.Table, heap *pageheap.Heap, opts ...Option) *Cache {
	c := &Cache{
		table:  table,
		heap:   heap,
		shards: make([]shard, table.NumClasses()),
	}
	for i := range c.shards {
		c.shards[i].list.Init()
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchRange returns up to want free objects from class as a singly
// linked chain [head, tail], with got the actual count. got==0 means
// the page heap could not satisfy a span request (spec.md §4.2), or
// that the span found had an empty free chain (see the guard below).
func (c *Cache) FetchRange(class uintptr, want uintptr) (head, tail, got uintptr) {
	sh := &c.shards[class]
	sh.mu.Lock()
	defer sh.mu.Unlock()

	s := c.findNonEmpty(sh)
	if s == nil {
		s = c.grow(sh, class)
		if s == nil {
			return 0, 0, 0
		}
	}

	head, tail, got = s.TakeChain(want)
	if got == 0 {
		// Corrupt free list guard (spec.md §7, CorruptFreeList): the
		// span's counts claim free capacity but its chain is empty.
		// No objects are returned; the span is not moved or marked
		// full, so the next scan can find it again.
		return 0, 0, 0
	}
	if s.IsFull() {
		sh.list.Remove(s)
		sh.list.PushBack(s)
	}
	return head, tail, got
}

// findNonEmpty scans the shard's span list for one with free capacity.
// Caller holds sh.mu.
func (c *Cache) findNonEmpty(sh *shard) *span.Span {
	for s := sh.list.First(); s != nil; s = span.Next(s) {
		if !s.IsFull() {
			return s
		}
	}
	return nil
}

// grow requests a fresh span from the page heap, slices it into
// objects of this class's size, and pushes it to the front of the
// shard's list. Caller holds sh.mu.
func (c *Cache) grow(sh *shard, class uintptr) *span.Span {
	pages := c.table.SpanPages(class)
	s := c.heap.AllocateSpan(pages)
	if s == nil {
		return nil
	}
	s.SizeClass = int(class)
	s.Slice(c.table.ClassSize(class), c.table.PageSize())
	sh.list.PushFront(s)
	if c.onGrow != nil {
		c.onGrow(int(class))
	}
	return s
}

// ReleaseRange returns a chain of count objects of the given byte size
// to their owning spans, reclaiming any span whose use count reaches
// zero to the page heap (spec.md §4.2, "Release algorithm").
func (c *Cache) ReleaseRange(head uintptr, count uintptr, objectSize uintptr) {
	class := c.table.ClassIndex(objectSize)
	sh := &c.shards[class]
	sh.mu.Lock()
	defer sh.mu.Unlock()

	reverse := c.heap.ReverseMap()
	current := head
	for i := uintptr(0); i < count && current != 0; i++ {
		next := span.ReadNext(current)
		s := reverse.LookupAddr(current)
		if s == nil || s.SizeClass != int(class) {
			// InvalidSizedFree (spec.md §7): programmer error, caller
			// passed a size that doesn't match the object's owning
			// span. The debug build tag upgrades this to a panic; see
			// assert_debug.go / assert_release.go.
			assertValidFree(s, class)
			current = next
			continue
		}
		wasFull := s.IsFull()
		s.PutOne(current)
		switch {
		case s.UseCount == 0:
			sh.list.Remove(s)
			s.Reset()
			c.heap.DeallocateSpan(s)
			if c.onReclaim != nil {
				c.onReclaim(int(class))
			}
		case wasFull:
			// The span just gained free capacity: move it to the front
			// so findNonEmpty's scan hits it first (spec.md §3/§4.2,
			// "partial spans kept at the front").
			sh.list.Remove(s)
			sh.list.PushFront(s)
		}
		current = next
	}
}
