// Package tcmalloc is the public facade of a three-tier, TCMalloc-style
// allocator: a per-owner front cache, a size-class-sharded central
// cache, and a page heap that owns the OS boundary. See SPEC_FULL.md
// for the full design; package sizeclass, span, pageheap,
// centralcache, and threadcache hold the three tiers themselves.
package tcmalloc

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/wenfang-style/tcmalloc/centralcache"
	"github.com/wenfang-style/tcmalloc/pageheap"
	"github.com/wenfang-style/tcmalloc/sizeclass"
	"github.com/wenfang-style/tcmalloc/threadcache"
)

// shard pairs a thread cache with the mutex that stands in for true
// per-OS-thread isolation (SPEC_FULL.md §2.1): Go gives user code no
// safe handle on "which thread am I", so the facade stripes goroutines
// across a small, fixed pool of independently-locked caches instead of
// one genuinely lock-free cache per thread.
type shard struct {
	mu    sync.Mutex
	cache *threadcache.Cache
}

// Allocator is a complete, independent heap: its own size-class table,
// page heap, central cache, and thread-cache shard pool. Most programs
// only need the package-level Allocate/Free, which forward to a
// lazily-built default Allocator; NewAllocator exists for tests and for
// embedders that want an isolated heap.
type Allocator struct {
	cfg     *config
	table   *sizeclass.Table
	heap    *pageheap.Heap
	central *centralcache.Cache
	shards  []shard
	next    uint64 // atomic round-robin counter across shards

	large *largeAllocator
}

// NewAllocator builds an independent allocator. Defaults match spec.md
// §6's normative constants unless overridden by opts.
func NewAllocator(opts ...Option) *Allocator {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	table := sizeclass.NewTable(cfg.align, cfg.maxSmall, cfg.pageSize, cfg.minBatches, cfg.maxSpanBytes)
	// Re-read back the resolved values so zero-valued Options (the
	// caller didn't override that knob) don't leave cfg out of sync
	// with what the table actually used.
	cfg.align = table.Align()
	cfg.maxSmall = table.MaxSmall()
	cfg.pageSize = table.PageSize()

	heap := pageheap.New(cfg.pageSize, cfg.mapper)
	central := centralcache.New(table, heap,
		centralcache.WithGrowHook(func(class int) {
			cfg.telemetry.Metrics.SpansGrown.WithLabelValues(classLabel(class)).Inc()
		}),
		centralcache.WithReclaimHook(func(class int) {
			cfg.telemetry.Metrics.SpansReclaimed.WithLabelValues(classLabel(class)).Inc()
		}),
	)

	shardCount := cfg.shardCount
	if shardCount <= 0 {
		shardCount = clampShardCount(defaultGOMAXPROCS())
	}
	shards := make([]shard, shardCount)
	for i := range shards {
		shards[i].cache = threadcache.New(table, central,
			threadcache.WithRefillHook(func() {
				cfg.telemetry.Metrics.RefillTotal.Inc()
			}),
			threadcache.WithDrainHook(func() {
				cfg.telemetry.Metrics.DrainTotal.Inc()
			}),
		)
	}

	return &Allocator{
		cfg:     cfg,
		table:   table,
		heap:    heap,
		central: central,
		shards:  shards,
		large:   newLargeAllocator(),
	}
}

// Allocate returns size bytes, or nil on out-of-memory. A zero size is
// rounded up to the table's alignment, per spec.md §4.1.
func (a *Allocator) Allocate(size uintptr) unsafe.Pointer {
	if !a.table.IsSmall(size) {
		return a.allocateLarge(size)
	}
	sh := a.pickShard()
	sh.mu.Lock()
	addr := sh.cache.Allocate(size)
	sh.mu.Unlock()
	if addr == 0 {
		a.cfg.telemetry.Metrics.OOMTotal.Inc()
		return nil
	}
	return unsafe.Pointer(addr)
}

// Free releases ptr, which must have been returned by Allocate with
// exactly this size — the allocator is sized-free (spec.md §1).
func (a *Allocator) Free(ptr unsafe.Pointer, size uintptr) {
	if ptr == nil {
		return
	}
	if !a.table.IsSmall(size) {
		a.freeLarge(ptr)
		return
	}
	sh := a.pickShard()
	sh.mu.Lock()
	sh.cache.Deallocate(uintptr(ptr), size)
	sh.mu.Unlock()
}

// pickShard stripes calls across the shard pool via a round-robin
// counter rather than a persistent per-goroutine affinity — simple,
// contention stays proportional to shard count, and it avoids needing
// any form of goroutine-local storage. See SPEC_FULL.md §2.1.
func (a *Allocator) pickShard() *shard {
	i := atomic.AddUint64(&a.next, 1)
	return &a.shards[i%uint64(len(a.shards))]
}

// NewThreadCache exposes the real, single-owner front cache directly
// for callers that want spec.md's exact lock-free semantics: construct
// one per long-lived goroutine, use it exclusively from that goroutine,
// and call ReleaseAll on it before the goroutine exits.
func (a *Allocator) NewThreadCache() *threadcache.Cache {
	return threadcache.New(a.table, a.central,
		threadcache.WithRefillHook(func() {
			a.cfg.telemetry.Metrics.RefillTotal.Inc()
		}),
		threadcache.WithDrainHook(func() {
			a.cfg.telemetry.Metrics.DrainTotal.Inc()
		}),
	)
}

// Table exposes the allocator's size-class table, mainly for tests.
func (a *Allocator) Table() *sizeclass.Table { return a.table }

// Heap exposes the allocator's page heap, mainly for tests checking
// split/coalesce invariants (spec.md §8, R2).
func (a *Allocator) Heap() *pageheap.Heap { return a.heap }

var (
	defaultOnce sync.Once
	defaultInst *Allocator
)

func defaultAllocator() *Allocator {
	defaultOnce.Do(func() {
		defaultInst = NewAllocator()
	})
	return defaultInst
}

// Allocate forwards to a lazily-initialized process-wide default
// Allocator (spec.md §9, "Global state").
func Allocate(size uintptr) unsafe.Pointer {
	return defaultAllocator().Allocate(size)
}

// Free forwards to the process-wide default Allocator.
func Free(ptr unsafe.Pointer, size uintptr) {
	defaultAllocator().Free(ptr, size)
}
