package tcmalloc

import (
	"sync"
	"unsafe"
)

// Unmapper is implemented by Mapper implementations that can also
// release a mapping. UnixMapper implements it; pageheap.SliceMapper
// does not, since Go-heap-backed test memory has no OS mapping to
// release — Free on a large object allocated that way is a no-op,
// consistent with spec.md's "no munmap in steady state" posture
// applied to the one path (large bypass) where munmap would otherwise
// be legal.
type Unmapper interface {
	Unmap(addr, pages, pageSize uintptr) error
}

// largeAllocator tracks the page count behind every large (> MaxSmall)
// allocation so Free can release exactly what Allocate obtained. This
// is the "large-request path" of spec.md §4.3: bypassed to the OS
// allocator directly, never routed through the page heap's spans.
type largeAllocator struct {
	mu    sync.Mutex
	pages map[uintptr]uintptr // addr -> page count
}

func newLargeAllocator() *largeAllocator {
	return &largeAllocator{pages: make(map[uintptr]uintptr)}
}

func (a *Allocator) allocateLarge(size uintptr) unsafe.Pointer {
	pages := (size + a.cfg.pageSize - 1) / a.cfg.pageSize
	if pages == 0 {
		pages = 1
	}
	addr, err := a.cfg.mapper.Map(pages, a.cfg.pageSize)
	if err != nil {
		a.cfg.telemetry.Metrics.OOMTotal.Inc()
		a.cfg.telemetry.Log.Warnw("large allocation failed", "size", size, "error", err)
		return nil
	}
	a.large.mu.Lock()
	a.large.pages[addr] = pages
	a.large.mu.Unlock()
	return unsafe.Pointer(addr)
}

func (a *Allocator) freeLarge(ptr unsafe.Pointer) {
	addr := uintptr(ptr)
	a.large.mu.Lock()
	pages, ok := a.large.pages[addr]
	if ok {
		delete(a.large.pages, addr)
	}
	a.large.mu.Unlock()
	if !ok {
		return
	}
	if um, ok := a.cfg.mapper.(Unmapper); ok {
		if err := um.Unmap(addr, pages, a.cfg.pageSize); err != nil {
			a.cfg.telemetry.Log.Warnw("large free: unmap failed", "error", err)
		}
	}
}
