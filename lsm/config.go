package lsm

import "time"

// SyncPolicy controls when WAL appends are forced to stable storage.
type SyncPolicy string

const (
	// SyncAlways fsyncs after every WAL append. Required for the
	// crash-recovery guarantees in spec.md §8 and is the default.
	SyncAlways SyncPolicy = "always"
	// SyncGroup does not fsync on append; appended records reach stable
	// storage on the next explicit Sync call.
	SyncGroup SyncPolicy = "group"
	// SyncNever never forces an fsync; durability is bounded only by the
	// OS page cache flush schedule.
	SyncNever SyncPolicy = "never"
)

// Compression selects the codec used for SSTable data blocks.
type Compression string

const (
	CompressionGzip Compression = "gzip"
	CompressionNone Compression = "none"
)

// Config holds every tunable spec.md §6 lists, with the defaults it
// documents.
type Config struct {
	// DataDir is the root directory for wal/, sstables/ and manifest/
	// (bloom filters are stored inside each .sst file). Required; the teacher hard-codes a single directory
	// layout, this makes it a constructor argument per spec.md §9.
	DataDir string

	// MemtableFlushThresholdEntries triggers a flush once the active
	// memtable holds at least this many entries. Range 50-50000.
	MemtableFlushThresholdEntries int
	// MemtableFlushThresholdBytes triggers a flush once the active
	// memtable's approximate byte size crosses this threshold.
	MemtableFlushThresholdBytes int64

	// L0CompactionTrigger is the L0 file count that schedules an
	// L0->L1 compaction pass.
	L0CompactionTrigger int
	// LevelSizeMultiplier is the per-level size growth factor for
	// levels >= 1.
	LevelSizeMultiplier int
	// BaseLevelSizeBytes is the target size of level 1; level ℓ's
	// target is BaseLevelSizeBytes * LevelSizeMultiplier^(ℓ-1).
	BaseLevelSizeBytes int64

	// SparseIndexInterval samples every Nth entry into an SSTable's
	// sparse index.
	SparseIndexInterval int
	// BloomFalsePositiveRate is the target false-positive rate used to
	// size each SSTable's bloom filter.
	BloomFalsePositiveRate float64

	// WALSyncPolicy governs fsync behavior on the write path.
	WALSyncPolicy SyncPolicy
	// CompactionPollInterval is how often the background compaction
	// worker checks trigger conditions.
	CompactionPollInterval time.Duration
	// Compression selects the SSTable data block codec.
	Compression Compression

	// MaxValueSize rejects puts with larger values as InvalidInput. Zero
	// means unbounded.
	MaxValueSize int

	// Logger receives structured log events from the engine. Defaults
	// to a stdlib-backed logger if nil.
	Logger Logger
}

// DefaultConfig returns the configuration documented in spec.md §6.
func DefaultConfig(dataDir string) Config {
	return Config{
		DataDir:                        dataDir,
		MemtableFlushThresholdEntries:  1000,
		MemtableFlushThresholdBytes:    4 * 1024 * 1024,
		L0CompactionTrigger:            4,
		LevelSizeMultiplier:            10,
		BaseLevelSizeBytes:             100 * 1024,
		SparseIndexInterval:            10,
		BloomFalsePositiveRate:         0.01,
		WALSyncPolicy:                  SyncAlways,
		CompactionPollInterval:         5 * time.Second,
		Compression:                    CompressionGzip,
		MaxValueSize:                   0,
	}
}

// Validate rejects configurations that would violate spec.md's invariants
// before an engine is ever opened.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return errDataDirRequired
	}
	if c.MemtableFlushThresholdEntries < 50 || c.MemtableFlushThresholdEntries > 50000 {
		return errBadFlushThreshold
	}
	if c.L0CompactionTrigger < 1 {
		return errBadL0Trigger
	}
	if c.LevelSizeMultiplier < 2 {
		return errBadLevelMultiplier
	}
	if c.SparseIndexInterval < 1 {
		return errBadSparseIndexInterval
	}
	if c.BloomFalsePositiveRate <= 0 || c.BloomFalsePositiveRate >= 1 {
		return errBadBloomRate
	}
	switch c.WALSyncPolicy {
	case SyncAlways, SyncGroup, SyncNever:
	default:
		return errBadSyncPolicy
	}
	switch c.Compression {
	case CompressionGzip, CompressionNone:
	default:
		return errBadCompression
	}
	return nil
}
