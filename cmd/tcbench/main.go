// Command tcbench drives the allocator under synthetic load and
// compares it against Go's own allocator, in the shape of the teacher
// project's own PerformanceTest.cpp
// (_examples/original_source/debug/tests/PerformanceTest.cpp): same
// metrics (elapsed time, speedup ratio, percent improvement), same
// "run N allocations of size S across G goroutines" knobs, ported from
// a one-shot test binary to a proper subcommand tree since this is a
// benchmarking harness, not a test — spec.md §1 names benchmarking
// harnesses as an external collaborator of the core, not as something
// the core needs to contain.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tcbench",
		Short: "Benchmark the tcmalloc three-tier allocator",
	}
	root.AddCommand(newRunCmd())
	root.AddCommand(newCompareCmd())
	return root
}
