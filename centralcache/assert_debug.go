//go:build tcmallocdebug

package centralcache

import (
	"fmt"

	"github.com/wenfang-style/tcmalloc/span"
)

// assertValidFree panics on InvalidSizedFree (spec.md §7): the object's
// owning span either doesn't exist in the reverse map or belongs to a
// different size class than the caller's size implies. Only compiled
// into builds tagged tcmallocdebug, so the release hot path never pays
// for the check.
func assertValidFree(s *span.Span, class uintptr) {
	if s == nil {
		panic("tcmalloc: deallocate of address with no owning span")
	}
	if s.SizeClass != int(class) {
		panic(fmt.Sprintf("tcmalloc: sized free mismatch: span class %d, caller class %d", s.SizeClass, class))
	}
}
