package lsm

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func readAllEntries(t *testing.T, sst *SSTable) []Entry {
	t.Helper()
	it, err := NewSSTableIterator(sst)
	require.NoError(t, err)

	var out []Entry
	for {
		e, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		out = append(out, e)
	}
	return out
}

func TestCompactL0ToL1KeepsNewestSequenceOnDuplicateKeys(t *testing.T) {
	dataDir := t.TempDir()
	cfg := DefaultConfig(dataDir)

	older := filepath.Join(dataDir, "L0-000001.sst")
	builder, err := NewSSTableBuilder(older, 2, 4, 0.01, true)
	require.NoError(t, err)
	require.NoError(t, builder.Add([]byte("k"), []byte("old"), false, 1))
	require.NoError(t, builder.Finish(0, 1700000000))
	sstOld, err := OpenSSTable(older, 0, 1, nil)
	require.NoError(t, err)
	defer sstOld.Close()

	newer := filepath.Join(dataDir, "L0-000002.sst")
	builder, err = NewSSTableBuilder(newer, 2, 4, 0.01, true)
	require.NoError(t, err)
	require.NoError(t, builder.Add([]byte("k"), []byte("new"), false, 5))
	require.NoError(t, builder.Finish(0, 1700000001))
	sstNew, err := OpenSSTable(newer, 0, 2, nil)
	require.NoError(t, err)
	defer sstNew.Close()

	nextFileNum := uint64(10)
	outputs, _, err := CompactL0ToL1(dataDir, []*SSTable{sstOld, sstNew}, nil, &nextFileNum, cfg, nil)
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	defer outputs[0].Close()

	entries := readAllEntries(t, outputs[0])
	require.Len(t, entries, 1, "duplicate keys across inputs must collapse to a single winner")
	require.Equal(t, "new", string(entries[0].Value))
	require.Equal(t, uint64(5), entries[0].Sequence)
}

func TestMergeFilesDropsTombstonesOnlyAtLastLevel(t *testing.T) {
	dataDir := t.TempDir()
	cfg := DefaultConfig(dataDir)

	path := filepath.Join(dataDir, "L0-000001.sst")
	builder, err := NewSSTableBuilder(path, 2, 4, 0.01, true)
	require.NoError(t, err)
	require.NoError(t, builder.Add([]byte("k"), nil, true, 1))
	require.NoError(t, builder.Finish(0, 1700000000))
	sst, err := OpenSSTable(path, 0, 1, nil)
	require.NoError(t, err)
	defer sst.Close()

	nextFileNum := uint64(1)
	midLevelOutputs, err := mergeFiles(dataDir, []*SSTable{sst}, 1, &nextFileNum, cfg, nil)
	require.NoError(t, err)
	require.Len(t, midLevelOutputs, 1)
	defer midLevelOutputs[0].Close()
	require.Len(t, readAllEntries(t, midLevelOutputs[0]), 1, "a tombstone must survive compaction at a non-terminal level")

	lastLevelOutputs, err := mergeFiles(dataDir, []*SSTable{sst}, numLevels-1, &nextFileNum, cfg, nil)
	require.NoError(t, err)
	require.Empty(t, lastLevelOutputs, "a lone tombstone compacted into the last level has nothing left to write")
}

func TestMergeFilesSplitsAcrossMultipleOutputFilesWhenOverCapacity(t *testing.T) {
	dataDir := t.TempDir()
	cfg := DefaultConfig(dataDir)

	n := maxEntriesPerFile + 10
	path := filepath.Join(dataDir, "L0-000001.sst")
	builder, err := NewSSTableBuilder(path, n, 64, 0.01, true)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("key%07d", i)
		require.NoError(t, builder.Add([]byte(key), []byte("v"), false, uint64(i)))
	}
	require.NoError(t, builder.Finish(0, 1700000000))
	sst, err := OpenSSTable(path, 0, 1, nil)
	require.NoError(t, err)
	defer sst.Close()

	nextFileNum := uint64(1)
	outputs, err := mergeFiles(dataDir, []*SSTable{sst}, 1, &nextFileNum, cfg, nil)
	require.NoError(t, err)
	require.Greater(t, len(outputs), 1, "exceeding maxEntriesPerFile must split into more than one output file")

	total := 0
	for _, out := range outputs {
		total += len(readAllEntries(t, out))
		out.Close()
	}
	require.Equal(t, n, total)
}

func TestCompactLnToLn1OnlyMergesOverlappingTargetFiles(t *testing.T) {
	dataDir := t.TempDir()
	cfg := DefaultConfig(dataDir)

	l1Path := filepath.Join(dataDir, "L1-000001.sst")
	builder, err := NewSSTableBuilder(l1Path, 2, 4, 0.01, true)
	require.NoError(t, err)
	require.NoError(t, builder.Add([]byte("m"), []byte("1"), false, 1))
	require.NoError(t, builder.Finish(1, 1700000000))
	l1, err := OpenSSTable(l1Path, 1, 1, nil)
	require.NoError(t, err)
	defer l1.Close()

	l2Path := filepath.Join(dataDir, "L2-000001.sst")
	builder, err = NewSSTableBuilder(l2Path, 2, 4, 0.01, true)
	require.NoError(t, err)
	require.NoError(t, builder.Add([]byte("z"), []byte("9"), false, 1))
	require.NoError(t, builder.Finish(2, 1700000000))
	l2Far, err := OpenSSTable(l2Path, 2, 1, nil)
	require.NoError(t, err)
	defer l2Far.Close()

	nextFileNum := uint64(10)
	outputs, overlapping, err := CompactLnToLn1(dataDir, []*SSTable{l1}, []*SSTable{l2Far}, 2, &nextFileNum, cfg, nil)
	require.NoError(t, err)
	require.Empty(t, overlapping, "a disjoint L2 file must not be pulled into the merge")
	require.Len(t, outputs, 1)
	defer outputs[0].Close()

	entries := readAllEntries(t, outputs[0])
	require.Len(t, entries, 1)
	require.Equal(t, "m", string(entries[0].Key))
}
