// Package telemetry holds the allocator's ambient, diagnostic-only
// observability: a leveled logger and a small set of Prometheus
// metrics. Nothing in this package ever influences an allocation
// decision — spec.md §1 and §6 name logging and benchmarking as
// external collaborators the core merely emits events for.
//
// The level split (error/warn/info/debug) mirrors the teacher project's
// own logger.h (_examples/original_source/release/include/logger.h),
// re-expressed with go.uber.org/zap's SugaredLogger instead of a
// hand-rolled file-backed logger.
package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Telemetry bundles a logger and the allocator's metrics.
type Telemetry struct {
	Log     *zap.SugaredLogger
	Metrics *Metrics
}

// Metrics are the allocator's Prometheus instruments. All are safe for
// concurrent use. NewMetrics registers them against the Registerer it
// is given; Default uses a private registry, so Allocators built with
// the default telemetry never collide on metric names.
type Metrics struct {
	OOMTotal       prometheus.Counter
	SpansGrown     *prometheus.CounterVec
	SpansReclaimed *prometheus.CounterVec
	RefillTotal    prometheus.Counter
	DrainTotal     prometheus.Counter
}

// NewMetrics registers the allocator's metrics against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OOMTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tcmalloc_oom_total",
			Help: "Number of allocations that failed for lack of memory, small or large path.",
		}),
		SpansGrown: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tcmalloc_spans_grown_total",
			Help: "Spans newly assigned to a size class by the central cache.",
		}, []string{"class"}),
		SpansReclaimed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tcmalloc_spans_reclaimed_total",
			Help: "Spans returned from the central cache to the page heap.",
		}, []string{"class"}),
		RefillTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tcmalloc_threadcache_refill_total",
			Help: "Thread-cache refills from the central cache.",
		}),
		DrainTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tcmalloc_threadcache_drain_total",
			Help: "Thread-cache drains to the central cache.",
		}),
	}
	reg.MustRegister(m.OOMTotal, m.SpansGrown, m.SpansReclaimed, m.RefillTotal, m.DrainTotal)
	return m
}

var (
	defaultOnce sync.Once
	defaultInst *Telemetry
)

// Default returns a lazily-built Telemetry wired to a production zap
// logger and a private Prometheus registry, for callers that don't
// supply their own (the same singleton-on-first-use discipline spec.md
// §9 describes for the allocator's own global state).
func Default() *Telemetry {
	defaultOnce.Do(func() {
		logger, err := zap.NewProduction()
		if err != nil {
			logger = zap.NewNop()
		}
		reg := prometheus.NewRegistry()
		defaultInst = &Telemetry{
			Log:     logger.Sugar(),
			Metrics: NewMetrics(reg),
		}
	})
	return defaultInst
}
