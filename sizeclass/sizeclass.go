// Package sizeclass computes the small-object size-class table used by
// the allocator's three tiers.
//
// The classes are chosen the same way the teacher's msize.go chooses
// them: round every request up to the next multiple of Align, and
// assign a batch count and span page count so that refills stay cheap
// and spans don't waste much space. See malloc.go (teacher) for the
// original rationale; this table trades the teacher's variable
// alignment scheme for a single fixed alignment, per spec.md §3.
package sizeclass

// Table holds the normative constants and the derived per-class data.
// A zero Table is not usable; call NewTable.
type Table struct {
	align        uintptr
	maxSmall     uintptr
	pageSize     uintptr
	minBatches   uintptr
	maxSpanBytes uintptr

	numClasses uintptr
	sizes      []uintptr // size(i): object size for class i
	batches    []uintptr // batch(i): refill/drain granularity
	pages      []uintptr // pages(i): span page count
}

// Default normative constants, spec.md §6.
const (
	DefaultAlign        = 8
	DefaultMaxSmall     = 256 * 1024
	DefaultPageSize     = 4096
	DefaultMinBatches   = 8
	DefaultMaxSpanBytes = 128 * 1024
)

// NewTable builds the size-class table for the given parameters. Pass
// zero for any field to take its default.
func NewTable(align, maxSmall, pageSize, minBatches, maxSpanBytes uintptr) *Table {
	if align == 0 {
		align = DefaultAlign
	}
	if maxSmall == 0 {
		maxSmall = DefaultMaxSmall
	}
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	if minBatches == 0 {
		minBatches = DefaultMinBatches
	}
	if maxSpanBytes == 0 {
		maxSpanBytes = DefaultMaxSpanBytes
	}

	t := &Table{
		align:        align,
		maxSmall:     maxSmall,
		pageSize:     pageSize,
		minBatches:   minBatches,
		maxSpanBytes: maxSpanBytes,
		numClasses:   maxSmall / align,
	}
	t.sizes = make([]uintptr, t.numClasses)
	t.batches = make([]uintptr, t.numClasses)
	t.pages = make([]uintptr, t.numClasses)

	for i := uintptr(0); i < t.numClasses; i++ {
		size := (i + 1) * align
		t.sizes[i] = size
		t.batches[i] = t.batchCount(size)
		t.pages[i] = t.pageCount(size, t.batches[i])
	}
	return t
}

// batchCount implements §3's B(i): aim for B(i)*size(i) ≈ 2KiB, capped
// at ⌊4KiB/size(i)⌋, never below 1. Ground truth: Common.h's
// getBatchNum, same tiered constants (64/32/16/8/4/2/1).
func (t *Table) batchCount(size uintptr) uintptr {
	const target = 2 * 1024
	const cap4k = 4 * 1024

	base := target / size
	if base == 0 {
		base = 1
	}
	switch {
	case size <= 32:
		base = 64
	case size <= 64:
		base = 32
	case size <= 128:
		base = 16
	case size <= 256:
		base = 8
	case size <= 512:
		base = 4
	case size <= 1024:
		base = 2
	default:
		base = 1
	}

	maxBatch := cap4k / size
	if maxBatch == 0 {
		maxBatch = 1
	}
	if base > maxBatch {
		base = maxBatch
	}
	if base == 0 {
		base = 1
	}
	return base
}

// pageCount implements §3's P(i): enough pages to hold at least
// MIN_BATCHES_PER_SPAN batches, capped at MAX_SPAN_BYTES, never below 1.
func (t *Table) pageCount(size, batch uintptr) uintptr {
	desireObjects := batch * t.minBatches
	desireBytes := desireObjects * size
	pagesByDesire := (desireBytes + t.pageSize - 1) / t.pageSize
	pagesByLimit := t.maxSpanBytes / t.pageSize
	pages := pagesByDesire
	if pagesByLimit < pages {
		pages = pagesByLimit
	}
	if pages < 1 {
		pages = 1
	}
	return pages
}

// Align returns the table's alignment, A in spec.md.
func (t *Table) Align() uintptr { return t.align }

// MaxSmall returns MAX_SMALL: requests larger bypass the small-object path.
func (t *Table) MaxSmall() uintptr { return t.maxSmall }

// PageSize returns PAGE_SIZE.
func (t *Table) PageSize() uintptr { return t.pageSize }

// NumClasses returns K, the number of small-object size classes.
func (t *Table) NumClasses() uintptr { return t.numClasses }

// RoundUp rounds n up to the next multiple of Align, per §4.4.
func (t *Table) RoundUp(n uintptr) uintptr {
	return (n + t.align - 1) &^ (t.align - 1)
}

// ClassIndex returns the size class serving a request of n bytes. The
// caller must ensure n <= MaxSmall(); IsSmall should be checked first.
func (t *Table) ClassIndex(n uintptr) uintptr {
	if n < t.align {
		n = t.align
	}
	return (n+t.align-1)/t.align - 1
}

// IsSmall reports whether n should be routed through the small-object
// path at all (n <= MaxSmall()).
func (t *Table) IsSmall(n uintptr) bool {
	return n <= t.maxSmall
}

// ClassSize returns size(i), the object size served by class i.
func (t *Table) ClassSize(i uintptr) uintptr {
	return t.sizes[i]
}

// BatchCount returns B(i), the refill/drain granularity for class i.
func (t *Table) BatchCount(i uintptr) uintptr {
	return t.batches[i]
}

// SpanPages returns P(i), the page count of a freshly grown span for class i.
func (t *Table) SpanPages(i uintptr) uintptr {
	return t.pages[i]
}
