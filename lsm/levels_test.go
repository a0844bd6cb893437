package lsm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLevelManagerAddRemoveAndSize(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	lm := NewLevelManager(cfg)

	sst := buildTestSSTable(t, []Entry{{Key: []byte("a"), Value: []byte("1")}}, true)
	lm.AddSSTable(sst, 0)

	require.Equal(t, 1, lm.NumFiles(0))
	require.Positive(t, lm.LevelSize(0))

	lm.RemoveSSTable(sst, 0)
	require.Equal(t, 0, lm.NumFiles(0))
	require.Equal(t, int64(0), lm.LevelSize(0))
}

func TestLevelManagerL1IsKeptSortedByMinKey(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	lm := NewLevelManager(cfg)

	sstC := buildTestSSTable(t, []Entry{{Key: []byte("c"), Value: []byte("1")}}, true)
	sstA := buildTestSSTable(t, []Entry{{Key: []byte("a"), Value: []byte("1")}}, true)
	sstB := buildTestSSTable(t, []Entry{{Key: []byte("b"), Value: []byte("1")}}, true)

	lm.AddSSTable(sstC, 1)
	lm.AddSSTable(sstA, 1)
	lm.AddSSTable(sstB, 1)

	all := lm.GetAllSSTables(1)
	require.Len(t, all, 3)
	require.Equal(t, "a", string(all[0].MinKey()))
	require.Equal(t, "b", string(all[1].MinKey()))
	require.Equal(t, "c", string(all[2].MinKey()))
}

func TestLevelManagerGetOverlapping(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	lm := NewLevelManager(cfg)

	sst1 := buildTestSSTable(t, []Entry{{Key: []byte("a"), Value: []byte("1")}, {Key: []byte("c"), Value: []byte("1")}}, true)
	sst2 := buildTestSSTable(t, []Entry{{Key: []byte("m"), Value: []byte("1")}, {Key: []byte("o"), Value: []byte("1")}}, true)
	lm.AddSSTable(sst1, 1)
	lm.AddSSTable(sst2, 1)

	overlapping := lm.GetOverlapping(1, []byte("b"), []byte("n"))
	require.Len(t, overlapping, 2)

	overlapping = lm.GetOverlapping(1, []byte("x"), []byte("z"))
	require.Empty(t, overlapping)
}

func TestLevelManagerShouldCompactL0ByFileCount(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	cfg.L0CompactionTrigger = 2
	lm := NewLevelManager(cfg)

	require.False(t, lm.ShouldCompact(0))

	lm.AddSSTable(buildTestSSTable(t, []Entry{{Key: []byte("a"), Value: []byte("1")}}, true), 0)
	require.False(t, lm.ShouldCompact(0))

	lm.AddSSTable(buildTestSSTable(t, []Entry{{Key: []byte("b"), Value: []byte("1")}}, true), 0)
	require.True(t, lm.ShouldCompact(0))
}

func TestLevelManagerShouldCompactL1ByByteSize(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	cfg.BaseLevelSizeBytes = 1
	cfg.LevelSizeMultiplier = 10
	lm := NewLevelManager(cfg)

	require.False(t, lm.ShouldCompact(1))
	lm.AddSSTable(buildTestSSTable(t, []Entry{{Key: []byte("a"), Value: []byte("1")}}, true), 1)
	require.True(t, lm.ShouldCompact(1), "any real sstable file exceeds a 1-byte target")
}

func TestLevelManagerPickCompactionFiles(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	lm := NewLevelManager(cfg)

	sstA := buildTestSSTable(t, []Entry{{Key: []byte("a"), Value: []byte("1")}}, true)
	sstB := buildTestSSTable(t, []Entry{{Key: []byte("b"), Value: []byte("1")}}, true)
	lm.AddSSTable(sstA, 0)
	lm.AddSSTable(sstB, 0)

	picked := lm.PickCompactionFiles(0)
	require.Len(t, picked, 2, "L0 compaction always takes every L0 file since they may mutually overlap")

	sstC := buildTestSSTable(t, []Entry{{Key: []byte("c"), Value: []byte("1")}}, true)
	sstD := buildTestSSTable(t, []Entry{{Key: []byte("d"), Value: []byte("1")}}, true)
	lm.AddSSTable(sstC, 1)
	lm.AddSSTable(sstD, 1)

	picked = lm.PickCompactionFiles(1)
	require.Len(t, picked, 1, "a non-overlapping level only needs its smallest-key file as input")
	require.Equal(t, "c", string(picked[0].MinKey()))
}

func TestLevelManagerTotals(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	lm := NewLevelManager(cfg)

	lm.AddSSTable(buildTestSSTable(t, []Entry{{Key: []byte("a"), Value: []byte("1")}}, true), 0)
	lm.AddSSTable(buildTestSSTable(t, []Entry{{Key: []byte("b"), Value: []byte("1")}}, true), 1)

	require.Equal(t, 2, lm.GetTotalFiles())
	require.Positive(t, lm.GetTotalSize())
	require.Equal(t, numLevels, lm.NumLevels())
}
