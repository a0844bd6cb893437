package lsm

import (
	"syscall"

	"github.com/cockroachdb/errors"

	"github.com/kodeshop/lsmkv/common"
)

// Error kinds from spec.md §7. Each is a plain sentinel; engine code wraps
// it with errors.Wrapf for context while callers keep using errors.Is
// against the sentinel itself.
var (
	ErrInvalidInput  = errors.New("lsm: invalid input")
	ErrWALWriteFailed = errors.New("lsm: wal write failed")
	ErrSSTableIO     = errors.New("lsm: sstable io error")
	ErrCorrupted     = errors.New("lsm: corrupted data")
	ErrDiskFull      = errors.Mark(errors.New("lsm: disk full"), common.ErrDiskFull)
	ErrReadOnly      = errors.New("lsm: engine is read-only")
	ErrBusy          = errors.New("lsm: resource busy")
	ErrNotFound      = errors.Mark(errors.New("lsm: key not found"), common.ErrKeyNotFound)
	ErrClosed        = errors.Mark(errors.New("lsm: engine closed"), common.ErrClosed)

	errDataDirRequired       = errors.New("lsm: data_dir is required")
	errBadFlushThreshold     = errors.New("lsm: memtable_flush_threshold_entries out of range [50, 50000]")
	errBadL0Trigger          = errors.New("lsm: l0_compaction_trigger must be >= 1")
	errBadLevelMultiplier    = errors.New("lsm: level_size_multiplier must be >= 2")
	errBadSparseIndexInterval = errors.New("lsm: sparse_index_interval must be >= 1")
	errBadBloomRate          = errors.New("lsm: bloom_false_positive_rate must be in (0, 1)")
	errBadSyncPolicy         = errors.New("lsm: unknown wal_sync_policy")
	errBadCompression        = errors.New("lsm: unknown compression codec")
)

// classifyWriteError maps a failed write to the domain error it should
// surface: ErrDiskFull when the underlying cause is an exhausted device,
// fallback otherwise, so the engine can go read-only with the right cause
// attached instead of always blaming a generic write failure. Grounded on
// the teacher's common/testutil.ResourceLimiter, which simulates this same
// disk-full signal for tests against a byte budget; here it is derived
// from the real OS errno on the write path itself.
func classifyWriteError(err error, context string, fallback error) error {
	if errors.Is(err, syscall.ENOSPC) {
		return errors.Wrapf(ErrDiskFull, "%s: %v", context, err)
	}
	return errors.Wrapf(fallback, "%s: %v", context, err)
}

// CorruptionKind classifies a single WAL recovery failure, per spec.md §4.4
// and §7.
type CorruptionKind string

const (
	CorruptionChecksumMismatch CorruptionKind = "checksum_mismatch"
	CorruptionTruncated        CorruptionKind = "truncated"
	CorruptionInvalidFrame     CorruptionKind = "invalid_frame"
	CorruptionSequenceGap      CorruptionKind = "sequence_gap"
)

// CorruptionReport describes the first invalid WAL record recovery
// encountered, and whether the engine was able to recover by truncating
// at the last valid boundary.
type CorruptionReport struct {
	SegmentPath string
	RecordIndex int
	Kind        CorruptionKind
	Recovered   bool
}
