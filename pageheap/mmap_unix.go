//go:build linux || darwin

package pageheap

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// UnixMapper obtains anonymous, private, read/write mappings via
// mmap(2), the OS boundary spec.md §6 calls for. Grounded directly on
// the original source's PageCache::newSpan, which calls
// mmap(nullptr, size, PROT_READ|PROT_WRITE, MAP_PRIVATE|MAP_ANONYMOUS,
// -1, 0) (_examples/original_source/release/src/PageCache.cpp).
type UnixMapper struct{}

// Map requests pages*pageSize bytes from the kernel.
func (UnixMapper) Map(pages, pageSize uintptr) (uintptr, error) {
	size := int(pages * pageSize)
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return 0, fmt.Errorf("pageheap: mmap %d bytes: %w", size, err)
	}
	return uintptr(unsafe.Pointer(&data[0])), nil
}

// Unmap releases a mapping previously returned by Map. Only the large-
// object bypass path calls this in steady state; the span pipeline
// itself never munmaps (spec.md §6).
func (UnixMapper) Unmap(addr, pages, pageSize uintptr) error {
	size := int(pages * pageSize)
	data := unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)
	return unix.Munmap(data)
}
