package dev

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/qdev/cmd/util"
	"github.com/ValentinKolb/qdev/rpc/common"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for qdev servers",
		Long:    "Runs write, read, info and mixed benchmarks against one device. The device is reset before and after the run.",
		RunE:    run,
		PreRunE: processPerfConfig,
	}
	perfChunkSize  = 0 // 0 = one quantum of the device
	perfNumThreads = 10
	perfSpread     = 100
	perfSkip       = make([]string, 0)
)

// perfResult is the outcome of one benchmark plus its latency distribution
type perfResult struct {
	bench   testing.BenchmarkResult
	latency gometrics.Histogram
	skipped bool
}

func init() {
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. write,info)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "chunk-size"
	perfTestCmd.Flags().Int(key, 0, util.WrapString("Bytes per read or write request (0 = one quantum of the device)"))
	key = "spread"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("Number of distinct chunk positions the tests cycle through"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	perfChunkSize = viper.GetInt("chunk-size")
	perfSpread = max(viper.GetInt("spread"), 1)
	perfNumThreads = max(viper.GetInt("threads"), 1)
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

func run(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	fmt.Println("Performance testing tool for qdev servers")

	if err := rpcDevice.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset device: %w", err)
	}
	defer func() {
		if err := rpcDevice.Reset(context.Background()); err != nil {
			log.Printf("failed to reset device after the run: %v\n", err)
		}
	}()

	info, err := rpcDevice.Info(ctx)
	if err != nil {
		return fmt.Errorf("failed to query device: %w", err)
	}
	if perfChunkSize <= 0 {
		perfChunkSize = info.Geometry.Quantum
	}

	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Device: %d (%s)\n", util.GetMinor(), info.Geometry)
	fmt.Printf("Threads: %d, Chunk: %d bytes, Spread: %d\n", perfNumThreads, perfChunkSize, perfSpread)
	fmt.Println()

	fmt.Println("starting tests...")

	chunk := make([]byte, perfChunkSize)
	for i := range chunk {
		chunk[i] = byte('a' + i%26)
	}
	position := func(i int) int64 {
		return int64(i%perfSpread) * int64(perfChunkSize)
	}

	results := make(map[string]perfResult)

	results["write"] = benchmark("write", func(i int) error {
		pos := position(i)
		_, err := rpcDevice.Write(ctx, chunk, &pos)
		return err
	})

	results["read"] = benchmark("read", func(i int) error {
		pos := position(i)
		_, err := rpcDevice.Read(ctx, make([]byte, perfChunkSize), &pos)
		return err
	})

	results["info"] = benchmark("info", func(int) error {
		_, err := rpcDevice.Info(ctx)
		return err
	})

	results["mixed"] = benchmark("mixed", func(i int) error {
		pos := position(i)
		if i%4 == 0 {
			_, err := rpcDevice.Write(ctx, chunk, &pos)
			return err
		}
		_, err := rpcDevice.Read(ctx, make([]byte, perfChunkSize), &pos)
		return err
	})

	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, util.GetClientConfig()); err != nil {
			return fmt.Errorf("failed to export results to CSV: %w", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// benchmark runs op in parallel, records the latency of every call and prints the result
func benchmark(test string, op func(i int) error) perfResult {
	latency := gometrics.NewHistogram(gometrics.NewUniformSample(4096))
	if shouldSkip(test) {
		res := perfResult{latency: latency.Snapshot(), skipped: true}
		printResult(test, res)
		return res
	}

	result := testing.Benchmark(func(b *testing.B) {
		b.SetParallelism(perfNumThreads)
		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				start := time.Now()
				err := op(counter)
				latency.Update(time.Since(start).Nanoseconds())
				if err != nil {
					log.Printf("(%s) - error: %v\n", test, err)
				}
				counter++
			}
		})
	})

	res := perfResult{bench: result, latency: latency.Snapshot()}
	printResult(test, res)
	return res
}

func shouldSkip(test string) bool {
	return slices.Contains(perfSkip, test)
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result perfResult) {
	if result.skipped {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.bench.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	p50 := time.Duration(result.latency.Percentile(0.5))
	p99 := time.Duration(result.latency.Percentile(0.99))

	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\tp50 %s\tp99 %s\n",
		test, nsPerOp, time.Duration(nsPerOp), opsPerSec, p50, p99)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]perfResult, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "P50Ns", "P99Ns", "MaxNs", "Skipped",
		"Endpoints", "TimeoutSec", "RetryCount", "ConnectionsPerEndpoint",
		"Minor", "Serializer", "Transport",
		"Threads", "ChunkSize", "Spread",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	tests := make([]string, 0, len(results))
	for test := range results {
		tests = append(tests, test)
	}
	slices.Sort(tests)

	for _, test := range tests {
		result := results[test]

		var nsPerOp, opsPerSec float64
		skipped := strconv.FormatBool(result.skipped)
		if !result.skipped {
			nsPerOp = math.Max(float64(result.bench.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			fmt.Sprintf("%.0f", result.latency.Percentile(0.5)),
			fmt.Sprintf("%.0f", result.latency.Percentile(0.99)),
			strconv.FormatInt(result.latency.Max(), 10),
			skipped,
			strings.Join(config.Transport.Endpoints, ";"),
			strconv.Itoa(config.Transport.TimeoutSecond),
			strconv.Itoa(config.Transport.RetryCount),
			strconv.Itoa(config.Transport.ConnectionsPerEndpoint),
			strconv.FormatUint(util.GetMinor(), 10),
			viper.GetString("serializer"),
			viper.GetString("transport"),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfChunkSize),
			strconv.Itoa(perfSpread),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %w", test, err)
		}
	}

	return nil
}
