package tcmalloc

import (
	"github.com/wenfang-style/tcmalloc/internal/telemetry"
	"github.com/wenfang-style/tcmalloc/pageheap"
)

// config collects the tunables spec.md §6 calls normative constants,
// each overridable via an Option — the functional-options idiom the
// pack leans on repeatedly for allocator/cache-adjacent configuration
// (grounded: intel-goresctrl, AlexsanderHamir-GenPool).
type config struct {
	align        uintptr
	maxSmall     uintptr
	pageSize     uintptr
	minBatches   uintptr
	maxSpanBytes uintptr

	shardCount int
	mapper     pageheap.Mapper
	telemetry  *telemetry.Telemetry
}

func defaultConfig() *config {
	return &config{
		shardCount: 0, // 0 means "derive from GOMAXPROCS", see NewAllocator
		mapper:     pageheap.UnixMapper{},
		telemetry:  telemetry.Default(),
	}
}

// Option configures an Allocator at construction time.
type Option func(*config)

// WithAlignment overrides A (default 8).
func WithAlignment(a uintptr) Option {
	return func(c *config) { c.align = a }
}

// WithMaxSmall overrides MAX_SMALL (default 256KiB): requests above
// this size bypass the three-tier path entirely.
func WithMaxSmall(n uintptr) Option {
	return func(c *config) { c.maxSmall = n }
}

// WithPageSize overrides PAGE_SIZE (default 4096).
func WithPageSize(n uintptr) Option {
	return func(c *config) { c.pageSize = n }
}

// WithMinBatchesPerSpan overrides MIN_BATCHES_PER_SPAN (default 8).
func WithMinBatchesPerSpan(n uintptr) Option {
	return func(c *config) { c.minBatches = n }
}

// WithMaxSpanBytes overrides MAX_SPAN_BYTES (default 128KiB).
func WithMaxSpanBytes(n uintptr) Option {
	return func(c *config) { c.maxSpanBytes = n }
}

// WithShardCount overrides the number of thread-cache shards the
// package-level facade stripes goroutines across (default: GOMAXPROCS
// clamped to [8,128], see SPEC_FULL.md §2.1). Has no effect on an
// Allocator obtained only via its explicit threadcache.Cache API.
func WithShardCount(n int) Option {
	return func(c *config) { c.shardCount = n }
}

// WithMapper overrides the OS page-mapping boundary, mainly for tests
// that don't want to depend on real mmap (see pageheap.SliceMapper).
func WithMapper(m pageheap.Mapper) Option {
	return func(c *config) { c.mapper = m }
}

// WithTelemetry overrides the logger/metrics bundle (default:
// telemetry.Default(), a shared production zap logger and private
// Prometheus registry).
func WithTelemetry(t *telemetry.Telemetry) Option {
	return func(c *config) { c.telemetry = t }
}
