package tcmalloc

import (
	"runtime"
	"strconv"
)

// minShards and maxShards clamp the default shard count the same way
// AlexsanderHamir/GenPool clamps its own GOMAXPROCS-derived shard count
// ("clamped between 8 and 128 to avoid poor performance due to under-
// or over-sharding").
const (
	minShards = 8
	maxShards = 128
)

func defaultGOMAXPROCS() int {
	return runtime.GOMAXPROCS(0)
}

func clampShardCount(n int) int {
	if n < minShards {
		return minShards
	}
	if n > maxShards {
		return maxShards
	}
	return n
}

func classLabel(class int) string {
	return strconv.Itoa(class)
}
