// Package span implements the Span descriptor, its intrusive doubly
// linked list (the "tail queue" shape the teacher's mSpanList uses in
// mheap.go), and the address->span reverse map.
//
// Every free object inside a span threads through an intrusive
// singly-linked chain: the first machine word of a free object holds
// the address of the next free object, exactly as the teacher's
// gclink/gclinkptr does in mcache.go. Objects are addressed as raw
// uintptr, not Go pointers: this memory comes from mmap, not the Go
// heap, so the garbage collector must never see it as a pointer-typed
// value. Callers convert to unsafe.Pointer only at the package
// boundary facing user code.
package span

import (
	"sync"
	"unsafe"
)

// UnusedClass marks a span not currently assigned to any size class,
// i.e. resident in the page heap's free lists (spec.md §3, I2).
const UnusedClass = -1

// Span is a contiguous run of pages handed out by the page heap. See
// spec.md §3 for the full invariant list (I1-I5).
type Span struct {
	Start uintptr // base address, page-aligned
	Pages uintptr // length in pages

	SizeClass    int     // UnusedClass while free in the page heap
	ObjectSize   uintptr // object size while assigned to a class, else 0
	TotalObjects uintptr // floor(Pages*PageSize / ObjectSize), 0 while unused

	Free     uintptr // head of the intrusive free-object chain, 0 if empty
	UseCount uintptr // objects currently on loan (not on Free)
	InUse    bool    // true while loaned to a central-cache shard

	next, prev *Span
	list       *List // debug aid: which list currently owns this span
}

// FreeCount returns the number of objects still available in the span,
// derived the way spec.md's I3 states it rather than by walking Free.
func (s *Span) FreeCount() uintptr {
	return s.TotalObjects - s.UseCount
}

// IsFull reports whether every object in the span is on loan.
func (s *Span) IsFull() bool {
	return s.UseCount >= s.TotalObjects
}

// ReadNext reads the next-pointer stored in the first word of the free
// object at addr.
func ReadNext(addr uintptr) uintptr {
	return *(*uintptr)(unsafe.Pointer(addr))
}

// WriteNext stores next into the first word of the free object at addr.
func WriteNext(addr uintptr, next uintptr) {
	*(*uintptr)(unsafe.Pointer(addr)) = next
}

// Slice walks the span's memory in objectSize-wide steps starting at
// Start, threading every object into a single intrusive chain, and
// installs that chain as Free. Called once, when a freshly grown span
// is first assigned to a size class (spec.md §4.2 fetch step 1).
// pageSize is passed explicitly (rather than assumed as a package
// constant) so the whole tree stays configurable per the allocator's
// Option mechanism.
func (s *Span) Slice(objectSize, pageSize uintptr) {
	s.ObjectSize = objectSize
	s.TotalObjects = (s.Pages * pageSize) / objectSize
	var head uintptr
	for i := s.TotalObjects; i > 0; i-- {
		addr := s.Start + (i-1)*objectSize
		WriteNext(addr, head)
		head = addr
	}
	s.Free = head
}

// TakeChain detaches up to want objects from the front of Free,
// returning the chain's head, tail, and actual count got <= want. A
// short chain (corruption guard, spec.md §4.2) truncates got rather
// than panicking.
func (s *Span) TakeChain(want uintptr) (head, tail uintptr, got uintptr) {
	if s.Free == 0 || want == 0 {
		return 0, 0, 0
	}
	head = s.Free
	tail = head
	got = 1
	for got < want {
		next := ReadNext(tail)
		if next == 0 {
			break
		}
		tail = next
		got++
	}
	s.Free = ReadNext(tail)
	WriteNext(tail, 0)
	s.UseCount += got
	return head, tail, got
}

// PutOne pushes a single freed object back onto the span's free chain
// and decrements UseCount. The caller holds whatever lock protects the
// span (central-cache shard lock on the release path).
func (s *Span) PutOne(addr uintptr) {
	WriteNext(addr, s.Free)
	s.Free = addr
	s.UseCount--
}

// Reset restores a span to the "unused" state required by spec.md's
// I2, in preparation for handing it back to the page heap.
func (s *Span) Reset() {
	s.Free = 0
	s.UseCount = 0
	s.SizeClass = UnusedClass
	s.ObjectSize = 0
	s.TotalObjects = 0
	s.InUse = false
}

// List heads a doubly linked list of spans, tail-queue style — the
// same shape as the teacher's mSpanList in mheap.go, adapted to plain
// Go pointers since spans here are never swept concurrently with list
// mutation the way GC-integrated spans are.
type List struct {
	first *Span
	last  **Span
}

// Init prepares an empty list. The zero value is not usable because
// last must point at first.
func (l *List) Init() {
	l.first = nil
	l.last = &l.first
}

// Empty reports whether the list holds no spans.
func (l *List) Empty() bool {
	return l.first == nil
}

// First returns the head span, or nil if the list is empty.
func (l *List) First() *Span {
	return l.first
}

// PushFront inserts span at the head of the list.
func (l *List) PushFront(s *Span) {
	s.next = l.first
	if l.first != nil {
		l.first.prev = &s.next
	} else {
		l.last = &s.next
	}
	l.first = s
	s.prev = &l.first
	s.list = l
}

// PushBack inserts span at the tail of the list.
func (l *List) PushBack(s *Span) {
	s.next = nil
	s.prev = l.last
	*l.last = s
	l.last = &s.next
	s.list = l
}

// Remove detaches span from whichever list it is on. Panics (via a
// nil-deref-shaped failure made explicit) if span isn't on this list,
// mirroring the teacher's defensive MSpanList_Remove check.
func (l *List) Remove(s *Span) {
	if s.list != l {
		panic("span: remove from wrong list")
	}
	if s.next != nil {
		s.next.prev = s.prev
	} else {
		l.last = s.prev
	}
	*s.prev = s.next
	s.next = nil
	s.prev = nil
	s.list = nil
}

// Next returns s's successor in whatever List currently owns it, or
// nil if s is the tail (or not on a list). Exposed for read-only
// diagnostic walks outside the package; mutation must go through List.
func Next(s *Span) *Span {
	return s.next
}

// ReverseMap maps a page id (address >> pageShift) to the span that
// currently owns it, spec.md §3's "Reverse address map". Shared by the
// page heap (split/coalesce) and the central cache (routing a freed
// object to its span without knowing its class at the call site).
type ReverseMap struct {
	mu        sync.RWMutex
	pageShift uintptr
	pages     map[uintptr]*Span
}

// NewReverseMap creates a reverse map for the given page size. pageSize
// must be a power of two.
func NewReverseMap(pageSize uintptr) *ReverseMap {
	shift := uintptr(0)
	for p := pageSize; p > 1; p >>= 1 {
		shift++
	}
	return &ReverseMap{
		pageShift: shift,
		pages:     make(map[uintptr]*Span),
	}
}

// PageID returns the page identifier for an address.
func (m *ReverseMap) PageID(addr uintptr) uintptr {
	return addr >> m.pageShift
}

// Set installs s as the owner of the given page id.
func (m *ReverseMap) Set(pageID uintptr, s *Span) {
	m.mu.Lock()
	m.pages[pageID] = s
	m.mu.Unlock()
}

// SetRange installs s as the owner of every page id in [first, first+count).
func (m *ReverseMap) SetRange(first, count uintptr, s *Span) {
	m.mu.Lock()
	for i := uintptr(0); i < count; i++ {
		m.pages[first+i] = s
	}
	m.mu.Unlock()
}

// Lookup returns the span owning pageID, or nil if none.
func (m *ReverseMap) Lookup(pageID uintptr) *Span {
	m.mu.RLock()
	s := m.pages[pageID]
	m.mu.RUnlock()
	return s
}

// LookupAddr is a convenience wrapper combining PageID and Lookup.
func (m *ReverseMap) LookupAddr(addr uintptr) *Span {
	return m.Lookup(m.PageID(addr))
}

// Delete removes a page id from the map. The page heap's coalesce does
// not call it: merging re-points the absorbed pages with SetRange.
func (m *ReverseMap) Delete(pageID uintptr) {
	m.mu.Lock()
	delete(m.pages, pageID)
	m.mu.Unlock()
}
