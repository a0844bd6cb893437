package lsm

import (
	"bytes"
	"container/heap"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// CompactionEntry is one entry flowing through the k-way merge, tagged
// with which input SSTable iterator produced it.
type CompactionEntry struct {
	Entry
	sstIndex int
}

// CompactionHeap is a min-heap ordered by key, then by highest sequence
// number on ties — grounded on the teacher's lsm/compaction.go
// CompactionHeap, but now meaningful: since sstable entries carry real
// sequence numbers (see sstable_builder.go), the tie-break reliably
// surfaces the freshest duplicate instead of an arbitrary heap-order one.
type CompactionHeap []CompactionEntry

func (h CompactionHeap) Len() int { return len(h) }
func (h CompactionHeap) Less(i, j int) bool {
	if c := bytes.Compare(h[i].Key, h[j].Key); c != 0 {
		return c < 0
	}
	return h[i].Sequence > h[j].Sequence
}
func (h CompactionHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *CompactionHeap) Push(x any)        { *h = append(*h, x.(CompactionEntry)) }
func (h *CompactionHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}

// SSTableIterator walks an SSTable's data blocks in order, decoding one
// block at a time.
type SSTableIterator struct {
	sst      *SSTable
	blockIdx int
	entries  []Entry
	entryIdx int
}

// NewSSTableIterator opens an iterator positioned before the first entry.
func NewSSTableIterator(sst *SSTable) (*SSTableIterator, error) {
	it := &SSTableIterator{sst: sst, blockIdx: -1}
	return it, nil
}

// Next returns the next entry in ascending key order, or ok=false when
// exhausted.
func (it *SSTableIterator) Next() (Entry, bool, error) {
	for it.entryIdx >= len(it.entries) {
		it.blockIdx++
		if it.blockIdx >= it.sst.NumBlocks() {
			return Entry{}, false, nil
		}
		entries, err := it.sst.BlockEntries(it.blockIdx)
		if err != nil {
			return Entry{}, false, err
		}
		it.entries = entries
		it.entryIdx = 0
	}
	e := it.entries[it.entryIdx]
	it.entryIdx++
	return e, true, nil
}

// CompactL0ToL1 merges every L0 file together with whichever L1 files
// their combined key range overlaps, per spec.md's leveled-compaction
// design: L0 files may mutually overlap, so the whole set must merge at
// once.
func CompactL0ToL1(dataDir string, l0Files, l1Files []*SSTable, nextFileNum *uint64, cfg Config, metrics *Metrics) ([]*SSTable, []*SSTable, error) {
	return compactInto(dataDir, l0Files, l1Files, 1, nextFileNum, cfg, metrics)
}

// CompactLnToLn1 compacts lnFiles into targetLevel, merging with whatever
// files in ln1Files their range overlaps.
func CompactLnToLn1(dataDir string, lnFiles, ln1Files []*SSTable, targetLevel int, nextFileNum *uint64, cfg Config, metrics *Metrics) ([]*SSTable, []*SSTable, error) {
	return compactInto(dataDir, lnFiles, ln1Files, targetLevel, nextFileNum, cfg, metrics)
}

func compactInto(dataDir string, inputFiles, targetLevelFiles []*SSTable, targetLevel int, nextFileNum *uint64, cfg Config, metrics *Metrics) ([]*SSTable, []*SSTable, error) {
	if len(inputFiles) == 0 {
		return nil, nil, nil
	}

	minKey := inputFiles[0].MinKey()
	maxKey := inputFiles[0].MaxKey()
	for _, sst := range inputFiles {
		if bytes.Compare(sst.MinKey(), minKey) < 0 {
			minKey = sst.MinKey()
		}
		if bytes.Compare(sst.MaxKey(), maxKey) > 0 {
			maxKey = sst.MaxKey()
		}
	}

	var overlapping []*SSTable
	for _, sst := range targetLevelFiles {
		if sst.Overlaps(minKey, maxKey) {
			overlapping = append(overlapping, sst)
		}
	}

	allFiles := make([]*SSTable, 0, len(inputFiles)+len(overlapping))
	allFiles = append(allFiles, inputFiles...)
	allFiles = append(allFiles, overlapping...)

	newFiles, err := mergeFiles(dataDir, allFiles, targetLevel, nextFileNum, cfg, metrics)
	if err != nil {
		return nil, nil, err
	}
	return newFiles, overlapping, nil
}

// maxEntriesPerFile caps a compaction output file so level size stays
// bounded by file count rather than growing a single file unboundedly.
const maxEntriesPerFile = 100000

// mergeFiles performs a k-way merge of sstables via CompactionHeap,
// dropping superseded duplicates and (only at the deepest level) resolved
// tombstones, and writes the result as one or more SSTables at
// targetLevel. Grounded on the teacher's lsm/compaction.go mergeFiles,
// fixed to retain tombstones at every level except the last (the teacher
// hardcoded level 4, which silently broke on a custom level count) and
// to overlap output-file finalization with merge production via
// golang.org/x/sync/errgroup instead of blocking the merge loop on fsync.
func mergeFiles(dataDir string, sstables []*SSTable, targetLevel int, nextFileNum *uint64, cfg Config, metrics *Metrics) ([]*SSTable, error) {
	iterators := make([]*SSTableIterator, len(sstables))
	for i, sst := range sstables {
		it, err := NewSSTableIterator(sst)
		if err != nil {
			return nil, err
		}
		iterators[i] = it
	}

	h := &CompactionHeap{}
	heap.Init(h)
	for i, it := range iterators {
		entry, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if ok {
			heap.Push(h, CompactionEntry{Entry: entry, sstIndex: i})
		}
	}

	isLastLevel := targetLevel >= numLevels-1
	compress := cfg.Compression == CompressionGzip

	var group errgroup.Group
	var newSSTables []*SSTable
	var resultsMu sync.Mutex

	var builder *SSTableBuilder
	var currentFileNum uint64
	var currentPath string
	entriesInFile := 0

	finishAndOpen := func(b *SSTableBuilder, path string, fileNum uint64) {
		createdAt := time.Now().Unix()
		group.Go(func() error {
			if err := b.Finish(targetLevel, createdAt); err != nil {
				return err
			}
			sst, err := OpenSSTable(path, targetLevel, fileNum, metrics)
			if err != nil {
				return err
			}
			resultsMu.Lock()
			newSSTables = append(newSSTables, sst)
			resultsMu.Unlock()
			return nil
		})
	}

	for h.Len() > 0 {
		entry := heap.Pop(h).(CompactionEntry)

		it := iterators[entry.sstIndex]
		if nextEntry, ok, err := it.Next(); err != nil {
			return nil, err
		} else if ok {
			heap.Push(h, CompactionEntry{Entry: nextEntry, sstIndex: entry.sstIndex})
		}

		// entry is the highest-sequence version of its key across every
		// input file (the heap's tie-break), so every other occurrence of
		// the same key still on the heap is a stale duplicate: drain and
		// discard them, advancing each source iterator past its copy.
		for h.Len() > 0 && bytes.Equal((*h)[0].Key, entry.Key) {
			dup := heap.Pop(h).(CompactionEntry)
			dupIt := iterators[dup.sstIndex]
			if nextEntry, ok, err := dupIt.Next(); err != nil {
				return nil, err
			} else if ok {
				heap.Push(h, CompactionEntry{Entry: nextEntry, sstIndex: dup.sstIndex})
			}
		}

		if isLastLevel && entry.Tombstone {
			continue
		}

		if builder == nil {
			currentFileNum = *nextFileNum
			*nextFileNum++
			currentPath = filepath.Join(dataDir, fmt.Sprintf("L%d-%06d.sst", targetLevel, currentFileNum))
			var err error
			builder, err = NewSSTableBuilder(currentPath, maxEntriesPerFile, cfg.SparseIndexInterval, cfg.BloomFalsePositiveRate, compress)
			if err != nil {
				return nil, err
			}
			entriesInFile = 0
		}

		if err := builder.Add(entry.Key, entry.Value, entry.Tombstone, entry.Sequence); err != nil {
			_ = builder.Abort()
			return nil, err
		}
		entriesInFile++

		if entriesInFile >= maxEntriesPerFile {
			finishAndOpen(builder, currentPath, currentFileNum)
			builder = nil
		}
	}

	if builder != nil {
		finishAndOpen(builder, currentPath, currentFileNum)
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return newSSTables, nil
}

// DeleteSSTables removes every sstable's backing file, logging (but not
// failing) individual removal errors — a stray file left behind by a
// failed delete does not compromise correctness, since the manifest no
// longer references it.
func DeleteSSTables(sstables []*SSTable, logger Logger) {
	for _, sst := range sstables {
		if err := sst.Remove(); err != nil {
			logger.Warnf("failed to delete sstable %s: %v", sst.Path(), err)
		}
	}
}
