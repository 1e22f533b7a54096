package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/wenfang-style/tcmalloc"
)

func newRunCmd() *cobra.Command {
	var goroutines int
	var allocs int
	var size int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Allocate/free in a tight loop across goroutines and report elapsed time",
		RunE: func(cmd *cobra.Command, args []string) error {
			elapsed := runAllocator(goroutines, allocs, uintptr(size))
			fmt.Printf("tcmalloc: %d goroutines x %d allocs of %d bytes: %s\n",
				goroutines, allocs, size, elapsed)
			return nil
		},
	}
	cmd.Flags().IntVar(&goroutines, "goroutines", 8, "concurrent goroutines")
	cmd.Flags().IntVar(&allocs, "allocs", 100000, "allocations per goroutine")
	cmd.Flags().IntVar(&size, "size", 64, "allocation size in bytes")
	return cmd
}

// runAllocator mirrors PerformanceTest.cpp's per-scenario timing loop:
// each goroutine allocates then immediately frees allocs objects of
// size bytes, exercising the full allocate/deallocate round trip
// (spec.md §8, R1).
func runAllocator(goroutines, allocs int, size uintptr) time.Duration {
	a := tcmalloc.NewAllocator()
	start := time.Now()

	var g errgroup.Group
	for i := 0; i < goroutines; i++ {
		g.Go(func() error {
			for j := 0; j < allocs; j++ {
				ptr := a.Allocate(size)
				if ptr == nil {
					return fmt.Errorf("allocation failed at iteration %d", j)
				}
				a.Free(ptr, size)
			}
			return nil
		})
	}
	_ = g.Wait()
	return time.Since(start)
}
