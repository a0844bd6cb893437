package lsm

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// LSM is the embedded, ordered key-value store: an in-memory skip-list
// memtable backed by a write-ahead log, periodically flushed to
// immutable, sorted, bloom-filtered SSTables, which a leveled compaction
// engine keeps merged and bounded. Grounded on the teacher's lsm/lsm.go
// for the overall shape (active/immutable memtable handoff, buffered
// flush/compaction signal channels, background workers), generalized to
// []byte keys, a manifest-tracked SSTable set, a Metrics/Logger/Health
// surface and a read-only failure mode per spec.md §4.6/§7.
type LSM struct {
	config Config

	mu                sync.RWMutex
	activeMemtable    *MemTable
	immutableMemtable *MemTable
	wal               *WAL
	walGeneration     uint64
	levels            *LevelManager
	manifest          *Manifest

	sequence    atomic.Uint64
	nextFileNum atomic.Uint64
	readOnly    atomic.Bool

	flushChan      chan struct{}
	compactionChan chan struct{}
	closeChan      chan struct{}
	wg             sync.WaitGroup

	logger  Logger
	metrics *Metrics

	stats struct {
		writeCount   atomic.Int64
		readCount    atomic.Int64
		flushCount   atomic.Int64
		compactCount atomic.Int64
	}
}

// Open validates cfg and opens (or creates) the store at cfg.DataDir,
// replaying the WAL and manifest to restore state from the last clean
// point. Pass a Prometheus registerer (or nil to skip registration).
func Open(cfg Config, registry prometheus.Registerer) (*LSM, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = NewStdLogger()
	}

	for _, sub := range []string{"wal", "sstables", "manifest"} {
		if err := os.MkdirAll(filepath.Join(cfg.DataDir, sub), 0755); err != nil {
			return nil, errors.Wrapf(err, "create %s dir", sub)
		}
	}

	manifest, err := OpenManifest(cfg.DataDir)
	if err != nil {
		return nil, errors.Wrap(err, "open manifest")
	}

	l := &LSM{
		config:         cfg,
		activeMemtable: NewMemTable(cfg.MemtableFlushThresholdEntries, cfg.MemtableFlushThresholdBytes),
		levels:         NewLevelManager(cfg),
		manifest:       manifest,
		flushChan:      make(chan struct{}, 1),
		compactionChan: make(chan struct{}, 1),
		closeChan:      make(chan struct{}),
		logger:         logger,
		metrics:        NewMetrics(registry),
	}

	if err := l.loadSSTables(); err != nil {
		return nil, errors.Wrap(err, "load sstables")
	}

	wal, err := NewWAL(walPath(cfg.DataDir, 0), cfg.WALSyncPolicy)
	if err != nil {
		return nil, errors.Wrap(err, "open wal")
	}
	l.wal = wal

	if err := l.recoverFromWAL(); err != nil {
		return nil, errors.Wrap(err, "recover from wal")
	}

	l.wg.Add(2)
	go l.flushWorker()
	go l.compactionWorker()

	logger.Infof("lsm engine opened at %s", cfg.DataDir)
	return l, nil
}

func (l *LSM) nextSequence() uint64 { return l.sequence.Add(1) }

func (l *LSM) checkWritable() error {
	if l.readOnly.Load() {
		return ErrReadOnly
	}
	return nil
}

// Put inserts or overwrites key with value.
func (l *LSM) Put(key, value []byte) error {
	start := time.Now()
	defer func() { l.metrics.OpLatency.WithLabelValues("put").Observe(time.Since(start).Seconds()) }()

	if err := l.checkWritable(); err != nil {
		return err
	}
	if len(key) == 0 {
		return ErrInvalidInput
	}
	if l.config.MaxValueSize > 0 && len(value) > l.config.MaxValueSize {
		return errors.Wrapf(ErrInvalidInput, "value exceeds max_value_size (%d)", l.config.MaxValueSize)
	}

	seq := l.nextSequence()
	if err := l.wal.Append(key, value, seq, false); err != nil {
		l.goReadOnly(err)
		return err
	}
	l.metrics.WALAppends.Inc()
	l.observeWALBytes()

	l.mu.Lock()
	l.activeMemtable.Put(key, value, seq)
	full := l.activeMemtable.IsFull()
	l.mu.Unlock()

	l.stats.writeCount.Add(1)
	l.metrics.Puts.Inc()
	l.metrics.MemtableBytes.Set(float64(l.activeMemtable.ApproximateSizeBytes()))

	if full {
		l.rotateMemtable()
	}
	return nil
}

// Delete records a tombstone for key.
func (l *LSM) Delete(key []byte) error {
	start := time.Now()
	defer func() { l.metrics.OpLatency.WithLabelValues("delete").Observe(time.Since(start).Seconds()) }()

	if err := l.checkWritable(); err != nil {
		return err
	}
	if len(key) == 0 {
		return ErrInvalidInput
	}

	seq := l.nextSequence()
	if err := l.wal.Append(key, nil, seq, true); err != nil {
		l.goReadOnly(err)
		return err
	}
	l.metrics.WALAppends.Inc()
	l.observeWALBytes()

	l.mu.Lock()
	l.activeMemtable.Delete(key, seq)
	full := l.activeMemtable.IsFull()
	l.mu.Unlock()

	l.stats.writeCount.Add(1)
	l.metrics.Deletes.Inc()

	if full {
		l.rotateMemtable()
	}
	return nil
}

// BatchPut atomically applies every entry in entries: all of them land in
// the WAL as one contiguous batch write before any becomes visible in the
// memtable, per spec.md's batch_put contract — a crash partway through is
// rolled back as a unit on the next recovery rather than leaving a prefix
// applied.
func (l *LSM) BatchPut(entries []Entry) error {
	start := time.Now()
	defer func() {
		l.metrics.OpLatency.WithLabelValues("batch_put").Observe(time.Since(start).Seconds())
	}()

	if err := l.checkWritable(); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	for _, e := range entries {
		if len(e.Key) == 0 {
			return ErrInvalidInput
		}
		if l.config.MaxValueSize > 0 && len(e.Value) > l.config.MaxValueSize {
			return errors.Wrapf(ErrInvalidInput, "value exceeds max_value_size (%d)", l.config.MaxValueSize)
		}
	}

	walEntries := make([]WALEntry, len(entries))
	for i, e := range entries {
		walEntries[i] = WALEntry{Key: e.Key, Value: e.Value, Sequence: l.nextSequence()}
	}
	if err := l.wal.AppendBatch(walEntries); err != nil {
		l.goReadOnly(err)
		return err
	}
	l.metrics.WALAppends.Add(float64(len(walEntries)))
	l.observeWALBytes()

	l.mu.Lock()
	for _, we := range walEntries {
		l.activeMemtable.Put(we.Key, we.Value, we.Sequence)
	}
	full := l.activeMemtable.IsFull()
	l.mu.Unlock()

	l.stats.writeCount.Add(int64(len(entries)))
	l.metrics.Puts.Add(float64(len(entries)))
	l.metrics.MemtableBytes.Set(float64(l.activeMemtable.ApproximateSizeBytes()))

	if full {
		l.rotateMemtable()
	}
	return nil
}

// BatchDelete atomically records a tombstone for every key in keys, with
// the same all-or-nothing WAL durability as BatchPut.
func (l *LSM) BatchDelete(keys [][]byte) error {
	start := time.Now()
	defer func() {
		l.metrics.OpLatency.WithLabelValues("batch_delete").Observe(time.Since(start).Seconds())
	}()

	if err := l.checkWritable(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	for _, k := range keys {
		if len(k) == 0 {
			return ErrInvalidInput
		}
	}

	walEntries := make([]WALEntry, len(keys))
	for i, k := range keys {
		walEntries[i] = WALEntry{Key: k, Deleted: true, Sequence: l.nextSequence()}
	}
	if err := l.wal.AppendBatch(walEntries); err != nil {
		l.goReadOnly(err)
		return err
	}
	l.metrics.WALAppends.Add(float64(len(walEntries)))
	l.observeWALBytes()

	l.mu.Lock()
	for _, we := range walEntries {
		l.activeMemtable.Delete(we.Key, we.Sequence)
	}
	full := l.activeMemtable.IsFull()
	l.mu.Unlock()

	l.stats.writeCount.Add(int64(len(keys)))
	l.metrics.Deletes.Add(float64(len(keys)))

	if full {
		l.rotateMemtable()
	}
	return nil
}

// rotateMemtable freezes the active memtable and signals the flush
// worker, unless a flush is already in flight.
func (l *LSM) rotateMemtable() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.activeMemtable.IsFull() || l.immutableMemtable != nil {
		return
	}
	l.immutableMemtable = l.activeMemtable
	l.activeMemtable = NewMemTable(l.config.MemtableFlushThresholdEntries, l.config.MemtableFlushThresholdBytes)

	select {
	case l.flushChan <- struct{}{}:
	default:
	}
}

// observeWALBytes refreshes the wal_bytes gauge from the current WAL
// file's size. A stat failure is not fatal to the write that triggered
// it, so it is logged rather than propagated.
func (l *LSM) observeWALBytes() {
	size, err := l.wal.Size()
	if err != nil {
		l.logger.Warnf("stat wal size: %v", err)
		return
	}
	l.metrics.WALBytes.Set(float64(size))
}

// updateLevelMetrics refreshes the per-level gauges and the aggregate
// on-disk size gauge from the level manager's current state. Called
// after any change to the live SSTable set (load, flush, compaction).
func (l *LSM) updateLevelMetrics() {
	for level := 0; level < l.levels.NumLevels(); level++ {
		labelValue := fmt.Sprintf("%d", level)
		l.metrics.LevelFileCount.WithLabelValues(labelValue).Set(float64(l.levels.NumFiles(level)))
		l.metrics.LevelSizeBytes.WithLabelValues(labelValue).Set(float64(l.levels.LevelSize(level)))
	}
	l.metrics.TotalDiskBytes.Set(float64(l.levels.GetTotalSize()))
}

// goReadOnly transitions the engine to read-only mode after a durability
// failure (disk full, WAL write failure) it cannot safely paper over —
// per spec.md §7, surfacing stale-looking success is worse than refusing
// further writes.
func (l *LSM) goReadOnly(cause error) {
	if l.readOnly.CompareAndSwap(false, true) {
		l.logger.Errorf("engine entering read-only mode: %v", cause)
	}
}

// Get returns the current value for key, or found=false if it is absent
// or has been deleted.
func (l *LSM) Get(key []byte) ([]byte, bool, error) {
	start := time.Now()
	defer func() { l.metrics.OpLatency.WithLabelValues("get").Observe(time.Since(start).Seconds()) }()
	l.stats.readCount.Add(1)
	l.metrics.Gets.Inc()

	l.mu.RLock()
	if entry, ok := l.activeMemtable.Get(key); ok {
		l.mu.RUnlock()
		return l.resolveFound(entry)
	}
	if l.immutableMemtable != nil {
		if entry, ok := l.immutableMemtable.Get(key); ok {
			l.mu.RUnlock()
			return l.resolveFound(entry)
		}
	}
	l.mu.RUnlock()

	for level := 0; level < l.levels.NumLevels(); level++ {
		sstables := l.levels.GetAllSSTables(level)
		if level == 0 {
			// L0 files may overlap; the most recently flushed file
			// (highest fileNum) must win, so scan newest-first.
			for i := len(sstables) - 1; i >= 0; i-- {
				value, found, err := sstables[i].Get(key)
				if err != nil {
					return nil, false, err
				}
				if found {
					l.metrics.GetHits.Inc()
					return value, true, nil
				}
			}
			continue
		}
		for _, sst := range sstables {
			if !sst.Overlaps(key, key) {
				continue
			}
			value, found, err := sst.Get(key)
			if err != nil {
				return nil, false, err
			}
			if found {
				l.metrics.GetHits.Inc()
				return value, true, nil
			}
			break
		}
	}

	l.metrics.GetMisses.Inc()
	return nil, false, nil
}

func (l *LSM) resolveFound(entry Entry) ([]byte, bool, error) {
	if entry.Tombstone {
		l.metrics.GetMisses.Inc()
		return nil, false, nil
	}
	l.metrics.GetHits.Inc()
	return entry.Value, true, nil
}

// Sync forces the write-ahead log to stable storage.
func (l *LSM) Sync() error {
	return l.wal.Sync()
}

// CompactNow is non-blocking: it enqueues a compaction request for the
// background compaction worker and returns immediately, per spec.md's
// compact_now() contract. A full compactionChan (a pass already queued
// or running) makes this a no-op rather than a blocking send.
func (l *LSM) CompactNow() error {
	select {
	case l.compactionChan <- struct{}{}:
	default:
	}
	return nil
}

// compactNowSync runs one compaction pass on the caller's goroutine,
// bypassing the background worker. Only tests that need to assert on
// the result of a specific pass use this; production callers go through
// CompactNow.
func (l *LSM) compactNowSync() error {
	return l.performCompaction()
}

// Close stops background workers, flushes any remaining memtable data,
// and closes the WAL, manifest and every open SSTable.
func (l *LSM) Close() error {
	close(l.closeChan)
	l.wg.Wait()

	l.mu.Lock()
	if l.immutableMemtable != nil {
		if err := l.flushMemtable(l.immutableMemtable); err != nil {
			l.mu.Unlock()
			return err
		}
		l.immutableMemtable = nil
	}
	if l.activeMemtable.Len() > 0 {
		if err := l.flushMemtable(l.activeMemtable); err != nil {
			l.mu.Unlock()
			return err
		}
	}
	l.mu.Unlock()

	if err := l.wal.Close(); err != nil {
		return err
	}
	if err := l.levels.CloseAll(); err != nil {
		return err
	}
	return l.manifest.Close()
}

// recoverFromWAL replays the write-ahead log into the active memtable,
// logging (rather than failing on) a truncated tail — the tail of a WAL
// is exactly where a crash leaves a torn write.
func (l *LSM) recoverFromWAL() error {
	entries, report, err := l.wal.ReadAll()
	if err != nil {
		return err
	}
	if report != nil {
		l.logger.Warnf("wal recovery stopped at record %d (%s), %d entries recovered",
			report.RecordIndex, report.Kind, len(entries))
	}
	if len(entries) == 0 {
		return nil
	}

	l.logger.Infof("recovering %d entries from wal", len(entries))
	for _, e := range entries {
		if e.Sequence > l.sequence.Load() {
			l.sequence.Store(e.Sequence)
		}
		if e.Deleted {
			l.activeMemtable.Delete(e.Key, e.Sequence)
		} else {
			l.activeMemtable.Put(e.Key, e.Value, e.Sequence)
		}
	}
	return nil
}

// loadSSTables scans the sstables directory and opens every file the
// manifest still considers live, deleting orphans a crash mid-compaction
// left behind.
func (l *LSM) loadSSTables() error {
	dir := filepath.Join(l.config.DataDir, "sstables")
	files, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	for _, file := range files {
		if filepath.Ext(file.Name()) != ".sst" {
			continue
		}
		var level int
		var fileNum uint64
		if _, err := fmt.Sscanf(file.Name(), "L%d-%d.sst", &level, &fileNum); err != nil {
			l.logger.Warnf("skipping malformed sstable filename: %s", file.Name())
			continue
		}

		path := filepath.Join(dir, file.Name())
		if !l.manifest.IsLive(level, fileNum) {
			l.logger.Warnf("removing orphaned sstable %s (not in manifest)", file.Name())
			_ = os.Remove(path)
			continue
		}

		sst, err := OpenSSTable(path, level, fileNum, l.metrics)
		if err != nil {
			l.logger.Warnf("failed to open sstable %s: %v", file.Name(), err)
			continue
		}
		l.levels.AddSSTable(sst, level)

		if fileNum >= l.nextFileNum.Load() {
			l.nextFileNum.Store(fileNum + 1)
		}
	}
	l.updateLevelMetrics()
	return nil
}

func (l *LSM) sstablePath(level int, fileNum uint64) string {
	return filepath.Join(l.config.DataDir, "sstables", fmt.Sprintf("L%d-%06d.sst", level, fileNum))
}

// flushMemtable writes memtable's contents to a new L0 SSTable, logging
// it in the manifest before it becomes visible in the level manager.
func (l *LSM) flushMemtable(memtable *MemTable) error {
	entries := memtable.DrainSorted()
	if len(entries) == 0 {
		return nil
	}

	start := time.Now()
	defer func() { l.metrics.OpLatency.WithLabelValues("flush").Observe(time.Since(start).Seconds()) }()

	fileNum := l.nextFileNum.Add(1) - 1
	path := l.sstablePath(0, fileNum)
	l.stats.flushCount.Add(1)
	l.metrics.Flushes.Inc()

	compress := l.config.Compression == CompressionGzip
	builder, err := NewSSTableBuilder(path, len(entries), l.config.SparseIndexInterval, l.config.BloomFalsePositiveRate, compress)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := builder.Add(e.Key, e.Value, e.Tombstone, e.Sequence); err != nil {
			_ = builder.Abort()
			return err
		}
	}
	if err := builder.Finish(0, time.Now().Unix()); err != nil {
		return err
	}

	if err := l.manifest.LogAdd(0, fileNum); err != nil {
		return err
	}

	sst, err := OpenSSTable(path, 0, fileNum, l.metrics)
	if err != nil {
		return err
	}
	l.levels.AddSSTable(sst, 0)
	l.updateLevelMetrics()
	return nil
}

func (l *LSM) flushWorker() {
	defer l.wg.Done()
	for {
		select {
		case <-l.closeChan:
			return
		case <-l.flushChan:
			l.mu.Lock()
			if l.immutableMemtable != nil {
				if err := l.flushMemtable(l.immutableMemtable); err != nil {
					l.logger.Errorf("flush failed: %v", err)
				} else {
					l.immutableMemtable = nil
					_ = l.wal.Delete()
					l.walGeneration++
					if wal, err := NewWAL(walPath(l.config.DataDir, l.walGeneration), l.config.WALSyncPolicy); err != nil {
						l.logger.Errorf("failed to recreate wal: %v", err)
						l.goReadOnly(err)
					} else {
						l.wal = wal
					}
				}
			}
			l.mu.Unlock()

			if l.levels.ShouldCompact(0) {
				select {
				case l.compactionChan <- struct{}{}:
				default:
				}
			}
		}
	}
}

func (l *LSM) compactionWorker() {
	defer l.wg.Done()
	ticker := time.NewTicker(l.config.CompactionPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.closeChan:
			return
		case <-l.compactionChan:
			if err := l.performCompaction(); err != nil {
				l.logger.Errorf("compaction failed: %v", err)
			}
		case <-ticker.C:
			if err := l.performCompaction(); err != nil {
				l.logger.Errorf("compaction failed: %v", err)
			}
		}
	}
}

// performCompaction runs at most one compaction step — L0→L1 takes
// priority, otherwise the first level 1..N-2 over its size trigger —
// then re-signals itself if the result pushed the next level over its
// own trigger, so a burst of writes drains one level at a time instead
// of compacting everything inline.
func (l *LSM) performCompaction() error {
	if !l.levels.ShouldCompact(0) {
		needed := false
		for level := 1; level < l.levels.NumLevels()-1; level++ {
			if l.levels.ShouldCompact(level) {
				needed = true
				break
			}
		}
		if !needed {
			return nil
		}
	}

	l.metrics.IsCompacting.Set(1)
	start := time.Now()
	defer func() {
		l.metrics.OpLatency.WithLabelValues("compaction").Observe(time.Since(start).Seconds())
		l.metrics.IsCompacting.Set(0)
	}()

	if l.levels.ShouldCompact(0) {
		if err := l.compactL0ToL1(); err != nil {
			return err
		}
		l.triggerNextLevelCompaction(1)
		return nil
	}

	for level := 1; level < l.levels.NumLevels()-1; level++ {
		if l.levels.ShouldCompact(level) {
			if err := l.compactLevel(level, level+1); err != nil {
				return err
			}
			l.triggerNextLevelCompaction(level + 1)
			return nil
		}
	}
	return nil
}

func (l *LSM) compactL0ToL1() error {
	l.stats.compactCount.Add(1)
	l.metrics.Compactions.Inc()

	l0Files := l.levels.GetAllSSTables(0)
	l1Files := l.levels.GetAllSSTables(1)

	var newL1Files, oldL1Files []*SSTable
	err := l.withNextFileNum(func(next *uint64) error {
		var err error
		newL1Files, oldL1Files, err = CompactL0ToL1(filepath.Join(l.config.DataDir, "sstables"), l0Files, l1Files, next, l.config, l.metrics)
		return err
	})
	if err != nil {
		return errors.Wrap(err, "compact L0->L1")
	}
	return l.commitCompaction(l0Files, 0, oldL1Files, 1, newL1Files)
}

func (l *LSM) compactLevel(sourceLevel, targetLevel int) error {
	l.stats.compactCount.Add(1)
	l.metrics.Compactions.Inc()

	sourceFiles := l.levels.PickCompactionFiles(sourceLevel)
	targetFiles := l.levels.GetAllSSTables(targetLevel)

	var newFiles, oldTargetFiles []*SSTable
	err := l.withNextFileNum(func(next *uint64) error {
		var err error
		newFiles, oldTargetFiles, err = CompactLnToLn1(filepath.Join(l.config.DataDir, "sstables"), sourceFiles, targetFiles, targetLevel, next, l.config, l.metrics)
		return err
	})
	if err != nil {
		return errors.Wrapf(err, "compact L%d->L%d", sourceLevel, targetLevel)
	}
	return l.commitCompaction(sourceFiles, sourceLevel, oldTargetFiles, targetLevel, newFiles)
}

// commitCompaction logs the manifest changes, then updates the in-memory
// level manager, then deletes the superseded files — manifest first so
// a crash between these steps always leaves the manifest describing a
// superset of what is safe to keep, never a set that is missing a file
// still referenced on disk.
func (l *LSM) commitCompaction(removedSource []*SSTable, sourceLevel int, removedTarget []*SSTable, targetLevel int, added []*SSTable) error {
	for _, sst := range added {
		if err := l.manifest.LogAdd(targetLevel, sst.FileNum()); err != nil {
			return err
		}
	}
	for _, sst := range removedSource {
		if err := l.manifest.LogRemove(sourceLevel, sst.FileNum()); err != nil {
			return err
		}
	}
	for _, sst := range removedTarget {
		if err := l.manifest.LogRemove(targetLevel, sst.FileNum()); err != nil {
			return err
		}
	}

	l.mu.Lock()
	for _, sst := range removedSource {
		l.levels.RemoveSSTable(sst, sourceLevel)
	}
	for _, sst := range removedTarget {
		l.levels.RemoveSSTable(sst, targetLevel)
	}
	for _, sst := range added {
		l.levels.AddSSTable(sst, targetLevel)
	}
	l.mu.Unlock()

	DeleteSSTables(removedSource, l.logger)
	DeleteSSTables(removedTarget, l.logger)
	l.updateLevelMetrics()
	return nil
}

func (l *LSM) triggerNextLevelCompaction(level int) {
	if l.levels.ShouldCompact(level) {
		select {
		case l.compactionChan <- struct{}{}:
		default:
		}
	}
}

// withNextFileNum hands fn a *uint64 seeded from the atomic counter, runs
// it, then stores back whatever value fn left behind. CompactL0ToL1 and
// CompactLnToLn1 take a *uint64 to hand out file numbers across a single
// merge; only the single compaction worker goroutine ever calls this, so
// the load-mutate-store round trip is race-free.
func (l *LSM) withNextFileNum(fn func(next *uint64) error) error {
	v := l.nextFileNum.Load()
	err := fn(&v)
	l.nextFileNum.Store(v)
	return err
}

// Stats reports point-in-time counters and the write/space amplification
// estimates spec.md §4.8 describes.
func (l *LSM) Stats() Stats {
	totalFiles := l.levels.GetTotalFiles()
	totalSize := l.levels.GetTotalSize()

	l.mu.RLock()
	activeSize := l.activeMemtable.ApproximateSizeBytes()
	numKeys := int64(l.activeMemtable.Len())
	l.mu.RUnlock()

	flushes := l.stats.flushCount.Load()
	var writeAmp float64
	if flushes > 0 {
		writeAmp = float64(totalSize) / float64(flushes*l.config.MemtableFlushThresholdBytes)
	}
	var spaceAmp float64
	if numKeys > 0 {
		spaceAmp = float64(totalSize) / float64(numKeys)
	}

	return Stats{
		NumKeys:       numKeys,
		NumSegments:   totalFiles,
		ActiveSegSize: activeSize,
		TotalDiskSize: totalSize,
		WriteCount:    l.stats.writeCount.Load(),
		ReadCount:     l.stats.readCount.Load(),
		CompactCount:  l.stats.compactCount.Load(),
		WriteAmp:      writeAmp,
		SpaceAmp:      spaceAmp,
	}
}

// Stats mirrors common.Stats so the adapter can return it without
// conversion, while keeping this package's public API independent of
// the common package.
type Stats struct {
	NumKeys       int64
	NumSegments   int
	ActiveSegSize int64
	TotalDiskSize int64
	WriteCount    int64
	ReadCount     int64
	CompactCount  int64
	WriteAmp      float64
	SpaceAmp      float64
}

// GetLevels exposes the level manager for diagnostics, tests and the
// demo CLI's level summary.
func (l *LSM) GetLevels() *LevelManager {
	return l.levels
}
