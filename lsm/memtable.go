package lsm

import "sync"

// Entry is a single key's latest applied value, with the tombstone flag
// and sequence number spec.md §3 requires to make deletes explicit and
// give every write a total, recency-comparable order independent of wall
// clock time.
type Entry struct {
	Key       []byte
	Value     []byte
	Tombstone bool
	Sequence  uint64
}

// MemTable is the mutable, in-memory write buffer, backed by a skip list
// ordered by key. Grounded on the teacher's lsm/memtable.go for the
// operation set (Put/Delete/Get/Size/IsFull/GetAllEntries/Len), with the
// teacher's sorted-slice storage swapped for the skip list in skiplist.go
// per spec.md §4.1.
type MemTable struct {
	mu           sync.RWMutex
	list         *skipList
	approxBytes  int64
	flushEntries int
	flushBytes   int64
}

// NewMemTable constructs an empty memtable that reports itself full once
// either threshold is crossed.
func NewMemTable(flushEntries int, flushBytes int64) *MemTable {
	return &MemTable{
		list:         newSkipList(),
		flushEntries: flushEntries,
		flushBytes:   flushBytes,
	}
}

// Put inserts or overwrites key with value at sequence.
func (m *MemTable) Put(key, value []byte, sequence uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delta := m.list.put(skipListEntry{key: key, value: value, sequence: sequence})
	m.approxBytes += int64(delta)
}

// Delete records a tombstone for key at sequence. The key is not removed
// from the skip list — the tombstone itself must survive until compaction
// decides it is safe to drop, per spec.md §3's "delete is not absence"
// invariant.
func (m *MemTable) Delete(key []byte, sequence uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delta := m.list.put(skipListEntry{key: key, tombstone: true, sequence: sequence})
	m.approxBytes += int64(delta)
}

// Get returns the current entry for key, if present (including
// tombstones — callers distinguish "not found" from "deleted").
func (m *MemTable) Get(key []byte) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.list.get(key)
	if !ok {
		return Entry{}, false
	}
	return entryFromSkipList(e), true
}

// Seek returns entries from the first key >= start in ascending order,
// used by Scan.
func (m *MemTable) Seek(start []byte) []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Entry
	for n := m.list.seek(start); n != nil; n = n.forward[0] {
		out = append(out, entryFromSkipList(n.entry))
	}
	return out
}

// Len returns the number of distinct keys (including tombstones) held.
func (m *MemTable) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.list.len()
}

// ApproximateSizeBytes returns the running estimate of memory held,
// tracked incrementally on every Put/Delete rather than recomputed, per
// the teacher's Size() convention.
func (m *MemTable) ApproximateSizeBytes() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.approxBytes
}

// IsFull reports whether either flush threshold has been crossed.
func (m *MemTable) IsFull() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.list.len() >= m.flushEntries || m.approxBytes >= m.flushBytes
}

// DrainSorted returns every entry in ascending key order, ready for
// flushing into an SSTable. It does not clear the memtable — callers swap
// it out for a fresh one and keep the drained table immutable until the
// flush completes.
func (m *MemTable) DrainSorted() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	raw := m.list.all()
	out := make([]Entry, len(raw))
	for i, e := range raw {
		out[i] = entryFromSkipList(e)
	}
	return out
}

func entryFromSkipList(e skipListEntry) Entry {
	return Entry{Key: e.key, Value: e.value, Tombstone: e.tombstone, Sequence: e.sequence}
}
