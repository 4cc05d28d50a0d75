// Package perf implements a local benchmark suite for the stash store and
// the thread pools, reusing the testing package's benchmark driver so the
// numbers line up with go test -bench output.
package perf

import (
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/riddopic/garcun/cmd/util"
	"github.com/riddopic/garcun/lib/executor"
	store "github.com/riddopic/garcun/lib/stash"
)

var (
	// PerfCmd represents the perf command
	PerfCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Benchmark the store and the thread pools locally",
		RunE:    run,
		PreRunE: processPerfConfig,
	}

	perfKeyPrefix  = "__test"
	perfValueSize  = 128
	perfNumThreads = 10
	perfKeySpread  = 100
	perfSkip       = make([]string, 0)

	// per-benchmark latency timers, reported after the run
	timers = gometrics.NewRegistry()
)

func init() {
	cobra.OnInitialize(util.InitConfig)

	key := "skip"
	PerfCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. set,get)"))
	key = "threads"
	PerfCmd.Flags().Int(key, 10, util.WrapString("Number of goroutines to use for the benchmarks"))
	key = "value-size"
	PerfCmd.Flags().Int(key, 128, util.WrapString("Value size in bytes for the write benchmarks"))
	key = "keys"
	PerfCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "csv"
	PerfCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
	key = "path"
	PerfCmd.Flags().String(key, "", util.WrapString("Journal file to benchmark against (default: a temp file)"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	perfValueSize = viper.GetInt("value-size")
	perfKeySpread = viper.GetInt("keys")
	perfNumThreads = viper.GetInt("threads")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

func run(_ *cobra.Command, _ []string) error {

	fmt.Println("garcun local benchmark suite")

	path := viper.GetString("path")
	if path == "" {
		dir, err := os.MkdirTemp("", "garcun-perf")
		if err != nil {
			return err
		}
		defer os.RemoveAll(dir)
		path = filepath.Join(dir, "perf.stash")
	}

	opts, err := util.GetStoreOptions()
	if err != nil {
		return err
	}
	st, err := store.Open(path, opts...)
	if err != nil {
		return err
	}
	defer st.Close()

	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Printf("Journal: %s\n", path)
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Printf("Keys: %d, value size: %d bytes\n", perfKeySpread, perfValueSize)
	fmt.Println()

	fmt.Println("starting benchmarks...")

	value := make([]byte, perfValueSize)
	results := make(map[string]testing.BenchmarkResult)

	runBench := func(name string, bench func(b *testing.B)) {
		result := testing.Benchmark(func(b *testing.B) {
			if shouldSkip(name) {
				return
			}
			bench(b)
		})
		results[name] = result
		printResult(name, result)
	}

	runBench("set", func(b *testing.B) {
		getKey, _ := getKeys("set")
		timer := timers.GetOrRegister("set", gometrics.NewTimer).(gometrics.Timer)

		b.SetParallelism(perfNumThreads)
		b.ResetTimer()
		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				timer.Time(func() {
					if err := st.Set(getKey(counter), value); err != nil {
						log.Printf("(set) - error setting key: %v\n", err)
					}
				})
				counter++
			}
		})
	})

	runBench("set-sync", func(b *testing.B) {
		getKey, _ := getKeys("set-sync")
		timer := timers.GetOrRegister("set-sync", gometrics.NewTimer).(gometrics.Timer)

		b.SetParallelism(perfNumThreads)
		b.ResetTimer()
		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				timer.Time(func() {
					if err := st.SetSync(getKey(counter), value); err != nil {
						log.Printf("(set-sync) - error setting key: %v\n", err)
					}
				})
				counter++
			}
		})
	})

	runBench("get", func(b *testing.B) {
		getKey, iter := getKeys("get")
		iter(func(k string) {
			if err := st.Set(k, value); err != nil {
				log.Printf("(get) - error setting key: %v\n", err)
			}
		})
		timer := timers.GetOrRegister("get", gometrics.NewTimer).(gometrics.Timer)

		b.SetParallelism(perfNumThreads)
		b.ResetTimer()
		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				timer.Time(func() {
					if _, ok := st.Get(getKey(counter)); !ok {
						log.Printf("(get) - missing key %s\n", getKey(counter))
					}
				})
				counter++
			}
		})
	})

	runBench("delete", func(b *testing.B) {
		getKey, iter := getKeys("delete")
		iter(func(k string) {
			if err := st.Set(k, value); err != nil {
				log.Printf("(delete) - error setting key: %v\n", err)
			}
		})
		timer := timers.GetOrRegister("delete", gometrics.NewTimer).(gometrics.Timer)

		b.SetParallelism(perfNumThreads)
		b.ResetTimer()
		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				timer.Time(func() {
					if err := st.Delete(getKey(counter)); err != nil {
						log.Printf("(delete) - error deleting key: %v\n", err)
					}
				})
				counter++
			}
		})
	})

	runBench("mixed", func(b *testing.B) {
		getKey, iter := getKeys("mixed")
		iter(func(k string) {
			if err := st.Set(k, value); err != nil {
				log.Printf("(mixed) - error setting key: %v\n", err)
			}
		})
		timer := timers.GetOrRegister("mixed", gometrics.NewTimer).(gometrics.Timer)

		b.SetParallelism(perfNumThreads)
		b.ResetTimer()
		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				key := getKey(counter)
				timer.Time(func() {
					var err error
					switch counter % 4 {
					case 0:
						err = st.Set(key, value)
					case 1:
						_, _ = st.Get(key)
					case 2:
						err = st.Delete(key)
					case 3:
						_ = st.Has(key)
					}
					if err != nil {
						log.Printf("(mixed) - error performing operation (%d): %v\n", counter%4, err)
					}
				})
				counter++
			}
		})
	})

	runBench("pool-post", func(b *testing.B) {
		pool, err := executor.NewFixedThreadPool(perfNumThreads)
		if err != nil {
			b.Fatal(err)
		}
		b.Cleanup(func() {
			pool.Shutdown()
			pool.WaitForTermination(10 * time.Second)
		})
		timer := timers.GetOrRegister("pool-post", gometrics.NewTimer).(gometrics.Timer)

		b.ResetTimer()
		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				timer.Time(func() {
					if _, err := pool.Post(func() {}); err != nil {
						log.Printf("(pool-post) - error posting task: %v\n", err)
					}
				})
			}
		})
	})

	printLatencies()

	// Write results to csv if specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	for _, skip := range perfSkip {
		if test == skip {
			return true
		}
	}
	return false
}

// creates an array of test keys and functions to work with them
func getKeys(prefix string) (func(int) string, func(func(string))) {
	keys := make([]string, perfKeySpread)
	for i := 0; i < perfKeySpread; i++ {
		keys[i] = fmt.Sprintf("%s-%s-%d", perfKeyPrefix, prefix, i)
	}

	getKey := func(i int) string {
		return keys[i%perfKeySpread]
	}

	iterateKeys := func(fn func(string)) {
		for _, key := range keys {
			fn(key)
		}
	}

	return getKey, iterateKeys
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// printLatencies prints the latency distribution recorded for each benchmark
func printLatencies() {
	fmt.Println()
	fmt.Println("Latency distribution:")
	fmt.Printf("%-20s%12s%12s%12s\n", "test", "mean", "p95", "p99")
	timers.Each(func(name string, metric interface{}) {
		timer, ok := metric.(gometrics.Timer)
		if !ok || timer.Count() == 0 {
			return
		}
		fmt.Printf("%-20s%12s%12s%12s\n",
			name,
			time.Duration(int64(timer.Mean())),
			time.Duration(int64(timer.Percentile(0.95))),
			time.Duration(int64(timer.Percentile(0.99))))
	})
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped",
		"Serializer", "Threads", "ValueSizeBytes", "KeysCount",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	for test, result := range results {
		skipped := result.NsPerOp() == 0
		nsPerOp := math.Max(float64(result.NsPerOp()), 1)
		opsPerSec := 0.0
		if !skipped {
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			test,
			strconv.FormatInt(result.NsPerOp(), 10),
			time.Duration(result.NsPerOp()).String(),
			strconv.FormatFloat(opsPerSec, 'f', 0, 64),
			strconv.FormatBool(skipped),
			viper.GetString("serializer"),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfValueSize),
			strconv.Itoa(perfKeySpread),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %v", err)
		}
	}

	return nil
}
