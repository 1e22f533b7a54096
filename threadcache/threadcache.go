// Package threadcache implements the allocator's front-line, per-owner
// free lists: one list and one counter per size class, refilling from
// and draining to a centralcache.Cache in batches.
//
// Grounded on the teacher's mcache.go (refill/releaseAll shape) and the
// original C++ source's ThreadCache.cpp, which this package follows
// directly for the drain-threshold and tail-finding logic. Go gives
// user code no safe handle on per-OS-thread storage the way the
// teacher's per-P mcache has via the runtime's unexported getg().m.p,
// so a Cache here is an explicit handle: callers that want the
// lock-free, single-owner semantics spec.md describes construct and
// hold one per long-lived goroutine. The package-level facade
// (package tcmalloc) instead multiplexes a small, mutex-guarded pool
// of these across goroutines — see SPEC_FULL.md §2.1.
package threadcache

import (
	"github.com/wenfang-style/tcmalloc/centralcache"
	"github.com/wenfang-style/tcmalloc/sizeclass"
	"github.com/wenfang-style/tcmalloc/span"
)

// freelist is one size class's local chain plus its length.
type freelist struct {
	head  uintptr
	count uintptr
}

// Cache is a single front cache: K free lists and counters, one per
// size class, plus a handle back to the central cache they refill from
// and drain to.
type Cache struct {
	table   *sizeclass.Table
	central *centralcache.Cache
	lists   []freelist

	onRefill func() // optional metrics hook, may be nil
	onDrain  func() // optional metrics hook, may be nil
}

// Option configures optional observability hooks.
type Option func(*Cache)

// WithRefillHook registers a callback invoked whenever a class refills
// a batch from the central cache (diagnostic only).
func WithRefillHook(f func()) Option {
	return func(c *Cache) { c.onRefill = f }
}

// WithDrainHook registers a callback invoked whenever a class drains
// its local list back to the central cache (diagnostic only).
func WithDrainHook(f func()) Option {
	return func(c *Cache) { c.onDrain = f }
}

// New creates a thread cache bound to table and central. Each Cache
// should be owned by a single goroutine at a time (or otherwise
// externally synchronized) — it performs no internal locking, matching
// spec.md §5's "thread-local, none required" entry for this tier.
func New(table *sizeclass.Table, central *centralcache.Cache, opts ...Option) *Cache {
	c := &Cache{
		table:   table,
		central: central,
		lists:   make([]freelist, table.NumClasses()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Allocate returns an object of the smallest class >= n bytes, or 0 on
// out-of-memory. Callers handle n > MaxSmall() themselves (routing to
// the system allocator) before reaching this tier, per spec.md §4.1.
func (c *Cache) Allocate(n uintptr) uintptr {
	if n == 0 {
		n = c.table.Align()
	}
	class := c.table.ClassIndex(n)
	fl := &c.lists[class]
	if fl.head != 0 {
		addr := fl.head
		fl.head = span.ReadNext(addr)
		fl.count--
		return addr
	}
	if !c.refill(class) {
		return 0
	}
	return c.Allocate(n)
}

// refill requests a batch from the central cache and appends it to the
// local list, spec.md §4.1 "Refill". Returns false on OOM.
func (c *Cache) refill(class uintptr) bool {
	want := c.table.BatchCount(class)
	head, _, got := c.central.FetchRange(class, want)
	if got == 0 {
		return false
	}
	fl := &c.lists[class]
	if fl.head == 0 {
		fl.head = head
	} else {
		span.WriteNext(findTail(fl.head), head)
	}
	fl.count += got
	if c.onRefill != nil {
		c.onRefill()
	}
	return true
}

// findTail walks a chain to its last node. Chain append is O(length of
// local list), acceptable because drains keep lists small (spec.md
// §4.1 "Tail-finding").
func findTail(head uintptr) uintptr {
	node := head
	for {
		next := span.ReadNext(node)
		if next == 0 {
			return node
		}
		node = next
	}
}

// Deallocate pushes ptr (an object of size n) onto the local list for
// its class, draining half to the central cache if the list has grown
// past 2*B(i) (spec.md §4.1 "Drain threshold").
func (c *Cache) Deallocate(ptr uintptr, n uintptr) {
	if n == 0 {
		n = c.table.Align()
	}
	class := c.table.ClassIndex(n)
	fl := &c.lists[class]
	span.WriteNext(ptr, fl.head)
	fl.head = ptr
	fl.count++

	threshold := 2 * c.table.BatchCount(class)
	if fl.count > threshold {
		c.drain(class)
	}
}

// drain splits the local list after count/2 nodes, releasing the
// prefix to the central cache and keeping the suffix — the same split
// the original source's ThreadCache::releaseExcessMemory uses (release
// starting from freeList_[index], keep what follows), so the released
// length and the list's new count always agree.
func (c *Cache) drain(class uintptr) {
	fl := &c.lists[class]
	release := fl.count / 2
	if release == 0 {
		return
	}
	prefixHead := fl.head
	node := prefixHead
	for i := uintptr(1); i < release; i++ {
		node = span.ReadNext(node)
	}
	suffixHead := span.ReadNext(node)
	span.WriteNext(node, 0)

	fl.head = suffixHead
	fl.count -= release
	objectSize := c.table.ClassSize(class)
	c.central.ReleaseRange(prefixHead, release, objectSize)
	if c.onDrain != nil {
		c.onDrain()
	}
}

// ReleaseAll hands every non-empty list back to the central cache in
// full, spec.md §4.1 "Termination" — called when the owning goroutine
// is done with this Cache (e.g. a worker shutting down).
func (c *Cache) ReleaseAll() {
	for class := uintptr(0); class < uintptr(len(c.lists)); class++ {
		fl := &c.lists[class]
		if fl.head == 0 {
			continue
		}
		objectSize := c.table.ClassSize(class)
		c.central.ReleaseRange(fl.head, fl.count, objectSize)
		fl.head = 0
		fl.count = 0
	}
}

// Count returns the current local free-list length for class, exposed
// for tests checking the boundary scenarios in spec.md §8.
func (c *Cache) Count(class uintptr) uintptr {
	return c.lists[class].count
}
