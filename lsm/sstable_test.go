package lsm

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildTestSSTable(t *testing.T, entries []Entry, compress bool) *SSTable {
	t.Helper()
	path := filepath.Join(t.TempDir(), "L0-000001.sst")

	builder, err := NewSSTableBuilder(path, len(entries), 4, 0.01, compress)
	require.NoError(t, err)
	for _, e := range entries {
		require.NoError(t, builder.Add(e.Key, e.Value, e.Tombstone, e.Sequence))
	}
	require.NoError(t, builder.Finish(0, 1700000000))

	sst, err := OpenSSTable(path, 0, 1, nil)
	require.NoError(t, err)
	t.Cleanup(func() { sst.Close() })
	return sst
}

func TestSSTableBuildAndGet(t *testing.T) {
	entries := []Entry{
		{Key: []byte("a"), Value: []byte("1"), Sequence: 1},
		{Key: []byte("b"), Value: []byte("2"), Sequence: 2},
		{Key: []byte("c"), Value: []byte("3"), Sequence: 3},
		{Key: []byte("d"), Tombstone: true, Sequence: 4},
	}
	sst := buildTestSSTable(t, entries, true)

	value, found, err := sst.Get([]byte("b"))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "2", string(value))

	_, found, err = sst.Get([]byte("d"))
	require.NoError(t, err)
	require.False(t, found, "Get reports a tombstone the same as an absent key")

	_, found, err = sst.Get([]byte("zzz"))
	require.NoError(t, err)
	require.False(t, found)

	require.Equal(t, "a", string(sst.MinKey()))
	require.Equal(t, "d", string(sst.MaxKey()))
}

func TestSSTableUncompressed(t *testing.T) {
	entries := []Entry{
		{Key: []byte("x"), Value: []byte("1")},
		{Key: []byte("y"), Value: []byte("2")},
	}
	sst := buildTestSSTable(t, entries, false)

	value, found, err := sst.Get([]byte("x"))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "1", string(value))
}

func TestSSTableManyEntriesAcrossMultipleBlocks(t *testing.T) {
	n := 200
	entries := make([]Entry, n)
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("key%04d", i)
		entries[i] = Entry{Key: []byte(key), Value: []byte(key + "-value"), Sequence: uint64(i)}
	}
	sst := buildTestSSTable(t, entries, true)

	require.Greater(t, sst.NumBlocks(), 1, "sparse index interval of 4 over 200 entries should span many blocks")

	for i := 0; i < n; i += 17 {
		key := fmt.Sprintf("key%04d", i)
		value, found, err := sst.Get([]byte(key))
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, key+"-value", string(value))
	}
}

func TestSSTableOverlaps(t *testing.T) {
	entries := []Entry{
		{Key: []byte("m"), Value: []byte("1")},
		{Key: []byte("n"), Value: []byte("2")},
		{Key: []byte("o"), Value: []byte("3")},
	}
	sst := buildTestSSTable(t, entries, true)

	require.True(t, sst.Overlaps([]byte("a"), []byte("z")))
	require.True(t, sst.Overlaps([]byte("m"), []byte("m")))
	require.False(t, sst.Overlaps([]byte("p"), []byte("z")))
	require.False(t, sst.Overlaps([]byte("a"), []byte("l")))
}

func TestSSTableBuilderAbortRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aborted.sst")
	builder, err := NewSSTableBuilder(path, 10, 4, 0.01, true)
	require.NoError(t, err)
	require.NoError(t, builder.Add([]byte("a"), []byte("1"), false, 1))
	require.NoError(t, builder.Abort())

	_, err = OpenSSTable(path, 0, 1, nil)
	require.Error(t, err)
}
