package lsm

import (
	"bytes"
	"sort"
	"time"
)

// Iterator provides forward, read-only access to a range of live
// (non-tombstone) entries in ascending key order. Matches the shape of
// common.Iterator so an engine-level iterator can be handed straight to
// a caller going through the StorageEngine adapter.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Error() error
	Close() error
}

// sliceIterator is the concrete Iterator backing Scan: the merge result
// is materialized once, then walked. spec.md's Non-goals exclude
// cross-operation MVCC and any requirement that Scan handle datasets
// larger than memory, so a precomputed slice is the straightforward
// choice — the teacher's own Scan left SSTable ranges as a TODO, so
// there is no existing streaming iterator to preserve here.
type sliceIterator struct {
	entries []Entry
	idx     int
	started bool
	err     error
}

func (it *sliceIterator) Next() bool {
	if !it.started {
		it.started = true
		it.idx = 0
	} else {
		it.idx++
	}
	return it.idx < len(it.entries)
}

func (it *sliceIterator) Key() []byte {
	if it.idx < 0 || it.idx >= len(it.entries) {
		return nil
	}
	return it.entries[it.idx].Key
}

func (it *sliceIterator) Value() []byte {
	if it.idx < 0 || it.idx >= len(it.entries) {
		return nil
	}
	return it.entries[it.idx].Value
}

func (it *sliceIterator) Error() error { return it.err }
func (it *sliceIterator) Close() error { return nil }

// filterRange returns the subslice of sorted entries whose keys fall in
// [start, end]. Empty start/end means unbounded on that side.
func filterRange(entries []Entry, start, end []byte) []Entry {
	lo := 0
	if len(start) > 0 {
		lo = sort.Search(len(entries), func(i int) bool {
			return bytes.Compare(entries[i].Key, start) >= 0
		})
	}
	hi := len(entries)
	if len(end) > 0 {
		hi = sort.Search(len(entries), func(i int) bool {
			return bytes.Compare(entries[i].Key, end) > 0
		})
	}
	if lo >= hi {
		return nil
	}
	return entries[lo:hi]
}

// mergeEntrySources flattens every source's (already range-filtered)
// entries, then for each distinct key keeps the entry with the highest
// sequence number — the same global-order tiebreak compaction uses — and
// drops tombstones, since a Scan only ever surfaces live data.
func mergeEntrySources(sources ...[]Entry) []Entry {
	total := 0
	for _, s := range sources {
		total += len(s)
	}
	flat := make([]Entry, 0, total)
	for _, s := range sources {
		flat = append(flat, s...)
	}

	sort.Slice(flat, func(i, j int) bool {
		if c := bytes.Compare(flat[i].Key, flat[j].Key); c != 0 {
			return c < 0
		}
		return flat[i].Sequence > flat[j].Sequence
	})

	out := make([]Entry, 0, len(flat))
	for i := 0; i < len(flat); {
		winner := flat[i]
		j := i + 1
		for j < len(flat) && bytes.Equal(flat[j].Key, winner.Key) {
			j++
		}
		if !winner.Tombstone {
			out = append(out, winner)
		}
		i = j
	}
	return out
}

// sstableRangeEntries decodes every block of sst and returns the entries
// within [start, end]. Grounded on the teacher's SSTableIterator
// block-by-block decode, simplified to an eager full decode per the
// sliceIterator design above.
func sstableRangeEntries(sst *SSTable, start, end []byte) ([]Entry, error) {
	var all []Entry
	for i := 0; i < sst.NumBlocks(); i++ {
		entries, err := sst.BlockEntries(i)
		if err != nil {
			return nil, err
		}
		all = append(all, entries...)
	}
	return filterRange(all, start, end), nil
}

// Scan returns an iterator over up to limit live keys in [start, end], in
// ascending order (limit <= 0 means unbounded). Empty start/end is
// unbounded on that side. Merges the active memtable, the immutable
// memtable (if a flush is in flight) and every overlapping SSTable across
// all levels, resolving duplicates by sequence number.
func (l *LSM) Scan(start, end []byte, limit int) (Iterator, error) {
	scanStart := time.Now()
	defer func() {
		l.metrics.OpLatency.WithLabelValues("scan").Observe(time.Since(scanStart).Seconds())
	}()
	l.metrics.Scans.Inc()

	l.mu.RLock()
	activeEntries := filterRange(l.activeMemtable.Seek(start), nil, end)
	var immutableEntries []Entry
	if l.immutableMemtable != nil {
		immutableEntries = filterRange(l.immutableMemtable.Seek(start), nil, end)
	}
	l.mu.RUnlock()

	sources := [][]Entry{activeEntries, immutableEntries}

	for level := 0; level < l.levels.NumLevels(); level++ {
		for _, sst := range l.levels.GetOverlapping(level, start, end) {
			entries, err := sstableRangeEntries(sst, start, end)
			if err != nil {
				return nil, err
			}
			sources = append(sources, entries)
		}
	}

	merged := mergeEntrySources(sources...)
	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return &sliceIterator{entries: merged, idx: -1}, nil
}
