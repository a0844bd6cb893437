package lsm

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"
	"time"
)

func BenchmarkWriteHeavy(b *testing.B) {
	config := DefaultConfig(b.TempDir())
	engine, err := Open(config, nil)
	if err != nil {
		b.Fatalf("failed to open engine: %v", err)
	}
	defer engine.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := fmt.Sprintf("key%010d", i)
		value := fmt.Sprintf("value%010d", i)
		if err := engine.Put([]byte(key), []byte(value)); err != nil {
			b.Fatalf("put failed: %v", err)
		}
	}
	b.StopTimer()

	opsPerSec := float64(b.N) / b.Elapsed().Seconds()
	b.ReportMetric(opsPerSec, "ops/sec")
}

func BenchmarkReadHeavy(b *testing.B) {
	config := DefaultConfig(b.TempDir())
	engine, err := Open(config, nil)
	if err != nil {
		b.Fatalf("failed to open engine: %v", err)
	}
	defer engine.Close()

	numKeys := 10000
	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("key%010d", i)
		value := fmt.Sprintf("value%010d", i)
		engine.Put([]byte(key), []byte(value))
	}
	time.Sleep(500 * time.Millisecond)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		keyIdx := rand.Intn(numKeys)
		key := fmt.Sprintf("key%010d", keyIdx)
		_, found, err := engine.Get([]byte(key))
		if err != nil {
			b.Fatalf("get failed: %v", err)
		}
		if !found {
			b.Fatalf("key not found: %s", key)
		}
	}
	b.StopTimer()

	opsPerSec := float64(b.N) / b.Elapsed().Seconds()
	b.ReportMetric(opsPerSec, "ops/sec")
}

func BenchmarkBalanced(b *testing.B) {
	config := DefaultConfig(b.TempDir())
	engine, err := Open(config, nil)
	if err != nil {
		b.Fatalf("failed to open engine: %v", err)
	}
	defer engine.Close()

	numKeys := 5000
	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("key%010d", i)
		value := fmt.Sprintf("value%010d", i)
		engine.Put([]byte(key), []byte(value))
	}
	time.Sleep(300 * time.Millisecond)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if rand.Float32() < 0.5 {
			keyIdx := rand.Intn(numKeys)
			key := fmt.Sprintf("key%010d", keyIdx)
			engine.Get([]byte(key))
		} else {
			keyIdx := rand.Intn(numKeys * 2)
			key := fmt.Sprintf("key%010d", keyIdx)
			value := fmt.Sprintf("value%010d", keyIdx)
			engine.Put([]byte(key), []byte(value))
		}
	}
	b.StopTimer()

	opsPerSec := float64(b.N) / b.Elapsed().Seconds()
	b.ReportMetric(opsPerSec, "ops/sec")
}

func BenchmarkWriteThroughput(b *testing.B) {
	benchmarks := []struct {
		name   string
		numOps int
	}{
		{"10K", 10000},
		{"50K", 50000},
		{"100K", 100000},
	}

	for _, bm := range benchmarks {
		b.Run(bm.name, func(b *testing.B) {
			config := DefaultConfig(b.TempDir())
			engine, err := Open(config, nil)
			if err != nil {
				b.Fatalf("failed to open engine: %v", err)
			}
			defer engine.Close()

			b.ResetTimer()
			start := time.Now()
			for i := 0; i < bm.numOps; i++ {
				key := fmt.Sprintf("key%010d", i)
				value := fmt.Sprintf("value%010d", i)
				engine.Put([]byte(key), []byte(value))
			}
			elapsed := time.Since(start)
			b.StopTimer()

			b.ReportMetric(float64(bm.numOps)/elapsed.Seconds(), "ops/sec")
			b.ReportMetric(elapsed.Seconds()*1000, "ms")
		})
	}
}

func BenchmarkReadLatency(b *testing.B) {
	config := DefaultConfig(b.TempDir())
	engine, err := Open(config, nil)
	if err != nil {
		b.Fatalf("failed to open engine: %v", err)
	}
	defer engine.Close()

	numKeys := 10000
	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("key%010d", i)
		value := fmt.Sprintf("value%010d", i)
		engine.Put([]byte(key), []byte(value))
	}
	time.Sleep(500 * time.Millisecond)

	latencies := make([]time.Duration, 1000)

	b.ResetTimer()
	for i := 0; i < 1000; i++ {
		keyIdx := rand.Intn(numKeys)
		key := fmt.Sprintf("key%010d", keyIdx)
		start := time.Now()
		engine.Get([]byte(key))
		latencies[i] = time.Since(start)
	}
	b.StopTimer()

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	b.ReportMetric(float64(latencies[500].Microseconds()), "p50_µs")
	b.ReportMetric(float64(latencies[950].Microseconds()), "p95_µs")
	b.ReportMetric(float64(latencies[990].Microseconds()), "p99_µs")
}

func BenchmarkNegativeLookup(b *testing.B) {
	config := DefaultConfig(b.TempDir())
	engine, err := Open(config, nil)
	if err != nil {
		b.Fatalf("failed to open engine: %v", err)
	}
	defer engine.Close()

	numKeys := 10000
	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("key%010d", i)
		value := fmt.Sprintf("value%010d", i)
		engine.Put([]byte(key), []byte(value))
	}
	time.Sleep(500 * time.Millisecond)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := fmt.Sprintf("key%010d", numKeys+i)
		_, found, err := engine.Get([]byte(key))
		if err != nil {
			b.Fatalf("get failed: %v", err)
		}
		if found {
			b.Fatalf("non-existent key found")
		}
	}
	b.StopTimer()

	opsPerSec := float64(b.N) / b.Elapsed().Seconds()
	b.ReportMetric(opsPerSec, "ops/sec")
}

func BenchmarkUpdateExisting(b *testing.B) {
	config := DefaultConfig(b.TempDir())
	engine, err := Open(config, nil)
	if err != nil {
		b.Fatalf("failed to open engine: %v", err)
	}
	defer engine.Close()

	numKeys := 1000
	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("key%010d", i)
		value := fmt.Sprintf("value%010d", i)
		engine.Put([]byte(key), []byte(value))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		keyIdx := rand.Intn(numKeys)
		key := fmt.Sprintf("key%010d", keyIdx)
		value := fmt.Sprintf("newvalue%010d", i)
		if err := engine.Put([]byte(key), []byte(value)); err != nil {
			b.Fatalf("put failed: %v", err)
		}
	}
	b.StopTimer()

	opsPerSec := float64(b.N) / b.Elapsed().Seconds()
	b.ReportMetric(opsPerSec, "ops/sec")
}
