//go:build !tcmallocdebug

package centralcache

import "github.com/wenfang-style/tcmalloc/span"

// assertValidFree is a no-op in release builds: spec.md §7 says
// InvalidSizedFree is a programmer error the allocator MAY assume
// absent outside debug builds.
func assertValidFree(s *span.Span, class uintptr) {}
