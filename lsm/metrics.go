package lsm

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the Prometheus observation surface from spec.md §4.8 (the
// distilled spec excludes wiring it to an HTTP exporter, but the
// counters/histograms/gauges themselves are ambient instrumentation the
// engine always maintains, the way the teacher's own stats atomics do).
// Grounded on prometheus/client_golang, which both the teacher's wider
// dependency neighborhood (pebble) and miretskiy-rollingstone's
// metrics.go use for exactly this kind of engine instrumentation.
type Metrics struct {
	Puts        prometheus.Counter
	Deletes     prometheus.Counter
	Gets        prometheus.Counter
	GetHits     prometheus.Counter
	GetMisses   prometheus.Counter
	Scans       prometheus.Counter
	Flushes     prometheus.Counter
	Compactions prometheus.Counter
	WALAppends  prometheus.Counter
	BloomHits   prometheus.Counter
	BloomMisses prometheus.Counter

	OpLatency *prometheus.HistogramVec

	MemtableBytes  prometheus.Gauge
	WALBytes       prometheus.Gauge
	TotalDiskBytes prometheus.Gauge
	IsCompacting   prometheus.Gauge
	LevelFileCount *prometheus.GaugeVec
	LevelSizeBytes *prometheus.GaugeVec
}

// NewMetrics constructs and registers a fresh metric set against
// registry. Passing a non-global registry (e.g. prometheus.NewRegistry())
// keeps repeated engine instances in tests from colliding on the default
// registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		Puts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lsmkv", Name: "puts_total", Help: "Total Put operations.",
		}),
		Deletes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lsmkv", Name: "deletes_total", Help: "Total Delete operations.",
		}),
		Gets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lsmkv", Name: "gets_total", Help: "Total Get operations.",
		}),
		GetHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lsmkv", Name: "get_hits_total", Help: "Get operations that found a live value.",
		}),
		GetMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lsmkv", Name: "get_misses_total", Help: "Get operations that found nothing.",
		}),
		Scans: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lsmkv", Name: "scans_total", Help: "Total Scan operations.",
		}),
		Flushes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lsmkv", Name: "flushes_total", Help: "Memtable flushes to L0.",
		}),
		Compactions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lsmkv", Name: "compactions_total", Help: "Completed compaction passes.",
		}),
		WALAppends: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lsmkv", Name: "wal_appends_total", Help: "Total records appended to the write-ahead log.",
		}),
		BloomHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lsmkv", Name: "bloom_hits_total", Help: "SSTable lookups where the bloom filter allowed a block read to proceed.",
		}),
		BloomMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lsmkv", Name: "bloom_misses_total", Help: "SSTable lookups the bloom filter rejected outright, skipping a block read.",
		}),
		OpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lsmkv", Name: "op_latency_seconds", Help: "Per-operation latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		MemtableBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lsmkv", Name: "memtable_bytes", Help: "Approximate active memtable size.",
		}),
		WALBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lsmkv", Name: "wal_bytes", Help: "Current write-ahead log file size.",
		}),
		TotalDiskBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lsmkv", Name: "total_on_disk_bytes", Help: "Total measured SSTable bytes across all levels.",
		}),
		IsCompacting: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lsmkv", Name: "is_compacting", Help: "1 while a compaction pass is running, 0 otherwise.",
		}),
		LevelFileCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "lsmkv", Name: "level_file_count", Help: "SSTable count per level.",
		}, []string{"level"}),
		LevelSizeBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "lsmkv", Name: "level_size_bytes", Help: "Measured SSTable bytes per level.",
		}, []string{"level"}),
	}

	if registry != nil {
		registry.MustRegister(
			m.Puts, m.Deletes, m.Gets, m.GetHits, m.GetMisses, m.Scans,
			m.Flushes, m.Compactions, m.WALAppends, m.BloomHits, m.BloomMisses,
			m.OpLatency,
			m.MemtableBytes, m.WALBytes, m.TotalDiskBytes, m.IsCompacting,
			m.LevelFileCount, m.LevelSizeBytes,
		)
	}
	return m
}
