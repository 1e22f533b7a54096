package pageheap

import (
	"sync"
	"unsafe"
)

// SliceMapper backs Map with ordinary Go-heap byte slices instead of a
// real mmap syscall. It satisfies the same Mapper contract (anonymous,
// zeroed, read/write memory in page-sized units) and is used by tests
// that want to exercise split/coalesce/reverse-map logic without
// depending on OS mmap permissions. Not used by the production default
// allocator, which uses UnixMapper.
//
// Every returned region must stay alive until the process exits or the
// mapper is discarded, since spec.md §6 forbids munmap in steady
// state; SliceMapper mirrors that by simply never releasing its
// slices.
type SliceMapper struct {
	mu   sync.Mutex
	kept [][]byte
}

// Map allocates pages*pageSize zeroed bytes and returns their address.
func (m *SliceMapper) Map(pages, pageSize uintptr) (uintptr, error) {
	buf := make([]byte, pages*pageSize)
	m.mu.Lock()
	m.kept = append(m.kept, buf)
	m.mu.Unlock()
	return uintptr(unsafe.Pointer(&buf[0])), nil
}
