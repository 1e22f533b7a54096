package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/wenfang-style/tcmalloc"
)

func newCompareCmd() *cobra.Command {
	var goroutines int
	var allocs int
	var size int

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare tcmalloc against Go's built-in allocator",
		RunE: func(cmd *cobra.Command, args []string) error {
			tc := runAllocator(goroutines, allocs, uintptr(size))
			sys := runSystemAllocator(goroutines, allocs, size)
			printComparison(tc, sys)
			return nil
		},
	}
	cmd.Flags().IntVar(&goroutines, "goroutines", 8, "concurrent goroutines")
	cmd.Flags().IntVar(&allocs, "allocs", 100000, "allocations per goroutine")
	cmd.Flags().IntVar(&size, "size", 64, "allocation size in bytes")
	return cmd
}

// runSystemAllocator is the comparison baseline: make([]byte, size) in
// the same loop shape, standing in for PerformanceTest.cpp's "malloc"
// scenario.
func runSystemAllocator(goroutines, allocs, size int) time.Duration {
	start := time.Now()
	var g errgroup.Group
	for i := 0; i < goroutines; i++ {
		g.Go(func() error {
			for j := 0; j < allocs; j++ {
				buf := make([]byte, size)
				buf[0] = 1
			}
			return nil
		})
	}
	_ = g.Wait()
	return time.Since(start)
}

// printComparison reports the same speedup-ratio / percent-improvement
// pair PerformanceTest.cpp's TestStats computes.
func printComparison(tcTime, sysTime time.Duration) {
	fmt.Printf("tcmalloc: %s\n", tcTime)
	fmt.Printf("system:   %s\n", sysTime)
	if tcTime <= 0 {
		return
	}
	ratio := float64(sysTime) / float64(tcTime)
	improvement := (float64(sysTime) - float64(tcTime)) / float64(sysTime) * 100.0
	fmt.Printf("speedup ratio:     %.3fx\n", ratio)
	fmt.Printf("percent improved:  %.1f%%\n", improvement)
}
