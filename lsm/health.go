package lsm

import (
	"os"
	"syscall"
)

// HealthStatus is the coarse health probe spec.md §7 asks for: a cheap,
// synchronous signal a caller can poll without touching the data path.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// minFreeDiskBytes below this on the data directory's filesystem counts
// as unhealthy, on the theory that the engine is about to go read-only
// from ErrDiskFull anyway.
const minFreeDiskBytes = 16 * 1024 * 1024

// Health computes a component-by-component probe rather than a single
// flag: it is Unhealthy if the engine has already gone read-only, if the
// data directory is no longer accessible (removed or permission
// revoked out from under a running engine), or if free disk space has
// dropped below minFreeDiskBytes; Degraded if the active memtable or
// current WAL segment has backed up well past its flush threshold, or
// if L0 has backed up past twice its compaction trigger (writes still
// succeed but reads are getting slower); Healthy otherwise.
func (l *LSM) Health() HealthStatus {
	if l.readOnly.Load() {
		return HealthUnhealthy
	}

	if _, err := os.Stat(l.config.DataDir); err != nil {
		return HealthUnhealthy
	}

	if free, ok := diskFreeBytes(l.config.DataDir); ok && free < minFreeDiskBytes {
		return HealthUnhealthy
	}

	l.mu.RLock()
	memtableBytes := l.activeMemtable.ApproximateSizeBytes()
	l.mu.RUnlock()
	if l.config.MemtableFlushThresholdBytes > 0 && memtableBytes > l.config.MemtableFlushThresholdBytes*2 {
		return HealthDegraded
	}

	if walSize, err := l.wal.Size(); err == nil && l.config.MemtableFlushThresholdBytes > 0 &&
		walSize > l.config.MemtableFlushThresholdBytes*4 {
		return HealthDegraded
	}

	if l.levels.NumFiles(0) > l.config.L0CompactionTrigger*2 {
		return HealthDegraded
	}
	return HealthHealthy
}

// diskFreeBytes reports the bytes free on the filesystem backing dir.
// ok is false if the statfs call fails, so callers can skip the check
// rather than mistake a platform quirk for a disk-full condition.
func diskFreeBytes(dir string) (free int64, ok bool) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(dir, &stat); err != nil {
		return 0, false
	}
	return int64(stat.Bavail) * int64(stat.Bsize), true
}
