// Command benchmark drives the LSM-tree engine through the standard
// write-heavy/read-heavy/balanced workloads and reports throughput,
// latency and amplification figures.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kodeshop/lsmkv/common/benchmark"
	"github.com/kodeshop/lsmkv/lsm"
)

func main() {
	var quick bool
	var workload string
	var duration time.Duration
	var concurrency int
	var scan bool

	root := &cobra.Command{
		Use:   "benchmark",
		Short: "Run throughput/latency/amplification benchmarks against the LSM-tree engine",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(quick, workload, duration, concurrency, scan)
		},
	}
	root.Flags().BoolVar(&quick, "quick", false, "run quick benchmarks (shorter duration, smaller dataset)")
	root.Flags().StringVar(&workload, "workload", "all", "workload to run, or \"all\"")
	root.Flags().DurationVar(&duration, "duration", 60*time.Second, "override each workload's duration")
	root.Flags().IntVar(&concurrency, "concurrency", 8, "override each workload's concurrency")
	root.Flags().BoolVar(&scan, "scan", false, "also run the range-scan micro-benchmark")

	if err := root.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func run(quick bool, workload string, duration time.Duration, concurrency int, scan bool) error {
	fmt.Println("LSM-Tree Benchmark Suite")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %v | Concurrency: %d\n\n", duration, concurrency)

	var configs []benchmark.Config
	if quick {
		configs = benchmark.QuickWorkloads()
	} else {
		configs = benchmark.StandardWorkloads()
	}

	durationOverridden := duration != 60*time.Second
	concurrencyOverridden := concurrency != 8
	for i := range configs {
		if durationOverridden {
			configs[i].Duration = duration
		}
		if concurrencyOverridden {
			configs[i].Concurrency = concurrency
		}
	}

	if workload != "all" {
		filtered := configs[:0]
		for _, c := range configs {
			if c.Name == workload {
				filtered = append(filtered, c)
			}
		}
		if len(filtered) == 0 {
			return fmt.Errorf("unknown workload %q", workload)
		}
		configs = filtered
	}

	dir, err := os.MkdirTemp("", "benchmark-lsm-*")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	cfg := lsm.DefaultConfig(dir)
	adapter, err := lsm.NewAdapter(cfg, nil)
	if err != nil {
		return fmt.Errorf("open engine: %w", err)
	}
	defer adapter.Close()

	results := make([]*benchmark.Result, 0, len(configs))
	for _, c := range configs {
		fmt.Printf("\n=== Running: %s ===\n", c.Name)
		bench := benchmark.NewBenchmark(adapter, c)
		result, err := bench.Run()
		if err != nil {
			fmt.Printf("benchmark failed: %v\n", err)
			continue
		}
		results = append(results, result)
		printResult(result)
	}

	printSummaryTable(results)
	if scan {
		runRangeScanBenchmark(adapter)
	}
	return nil
}

func printResult(r *benchmark.Result) {
	fmt.Printf("\n--- Results ---\n")
	fmt.Printf("Throughput: %.0f ops/sec\n", r.OpsPerSec)
	fmt.Printf("Total Ops: %d (writes: %d, reads: %d)\n", r.TotalOps, r.WriteOps, r.ReadOps)

	if r.WriteOps > 0 {
		fmt.Printf("\nWrite Latency:\n")
		fmt.Printf("  P50:  %8s\n", r.WriteLatency.P50)
		fmt.Printf("  P95:  %8s\n", r.WriteLatency.P95)
		fmt.Printf("  P99:  %8s\n", r.WriteLatency.P99)
	}
	if r.ReadOps > 0 {
		fmt.Printf("\nRead Latency:\n")
		fmt.Printf("  P50:  %8s\n", r.ReadLatency.P50)
		fmt.Printf("  P95:  %8s\n", r.ReadLatency.P95)
		fmt.Printf("  P99:  %8s\n", r.ReadLatency.P99)
	}

	fmt.Printf("\nAmplification:\n")
	fmt.Printf("  Write: %.2fx\n", r.WriteAmplification)
	fmt.Printf("  Space: %.2fx\n", r.SpaceAmplification)
	fmt.Printf("\nDisk Usage: %.1f MB\n", r.TotalDiskMB)
}

func printSummaryTable(results []*benchmark.Result) {
	if len(results) == 0 {
		return
	}
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("BENCHMARK SUMMARY")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("\n%-25s %12s %12s %12s %12s\n", "Workload", "Throughput", "Write P99", "Read P99", "Write Amp")
	fmt.Println(strings.Repeat("-", 80))
	for _, r := range results {
		writeP99, readP99 := "N/A", "N/A"
		if r.WriteOps > 0 {
			writeP99 = r.WriteLatency.P99.String()
		}
		if r.ReadOps > 0 {
			readP99 = r.ReadLatency.P99.String()
		}
		fmt.Printf("%-25s %10.0f/s %12s %12s %11.2fx\n", r.Config.Name, r.OpsPerSec, writeP99, readP99, r.WriteAmplification)
	}
}

func runRangeScanBenchmark(adapter *lsm.Adapter) {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("RANGE SCAN BENCHMARK")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("\nPreparing range scan test data...")

	numKeys := 10000
	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("user:%06d", i)
		value := []byte(fmt.Sprintf(`{"id": %d, "name": "user%d"}`, i, i))
		adapter.Put([]byte(key), value)
	}

	ranges := []struct {
		name, start, end string
	}{
		{"Small (100 keys)", "user:000000", "user:000100"},
		{"Medium (1000 keys)", "user:000000", "user:001000"},
		{"Large (5000 keys)", "user:000000", "user:005000"},
		{"Full scan", "user:000000", "user:999999"},
	}

	for _, r := range ranges {
		start := time.Now()
		iter, err := adapter.Scan([]byte(r.start), []byte(r.end), 0)
		if err != nil {
			fmt.Printf("\n%s: scan failed: %v\n", r.name, err)
			continue
		}
		count := 0
		for iter.Next() {
			count++
		}
		iter.Close()
		elapsed := time.Since(start)

		fmt.Printf("\n%s:\n", r.name)
		fmt.Printf("  Keys scanned: %d\n", count)
		fmt.Printf("  Duration:     %v\n", elapsed)
		if count > 0 {
			fmt.Printf("  Throughput:   %.0f keys/sec\n", float64(count)/elapsed.Seconds())
		}
	}
}
