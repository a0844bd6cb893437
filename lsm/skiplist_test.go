package lsm

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSkipListPutGet(t *testing.T) {
	sl := newSkipList()

	sl.put(skipListEntry{key: []byte("b"), value: []byte("2"), sequence: 1})
	sl.put(skipListEntry{key: []byte("a"), value: []byte("1"), sequence: 2})
	sl.put(skipListEntry{key: []byte("c"), value: []byte("3"), sequence: 3})

	e, ok := sl.get([]byte("a"))
	require.True(t, ok)
	require.Equal(t, "1", string(e.value))

	_, ok = sl.get([]byte("missing"))
	require.False(t, ok)

	require.Equal(t, 3, sl.len())
}

func TestSkipListOverwriteReturnsSizeDelta(t *testing.T) {
	sl := newSkipList()

	delta := sl.put(skipListEntry{key: []byte("k"), value: []byte("short"), sequence: 1})
	require.Positive(t, delta)
	require.Equal(t, 1, sl.len())

	delta = sl.put(skipListEntry{key: []byte("k"), value: []byte("a much longer value"), sequence: 2})
	require.Positive(t, delta, "replacing with a longer value should grow the size estimate")
	require.Equal(t, 1, sl.len(), "overwrite must not create a second node")

	e, ok := sl.get([]byte("k"))
	require.True(t, ok)
	require.Equal(t, uint64(2), e.sequence)
}

func TestSkipListAllIsSorted(t *testing.T) {
	sl := newSkipList()
	keys := []string{"delta", "alpha", "charlie", "bravo", "echo"}
	for i, k := range keys {
		sl.put(skipListEntry{key: []byte(k), value: []byte(k), sequence: uint64(i)})
	}

	all := sl.all()
	require.Len(t, all, len(keys))
	for i := 1; i < len(all); i++ {
		require.LessOrEqual(t, string(all[i-1].key), string(all[i].key))
	}
}

func TestSkipListSeek(t *testing.T) {
	sl := newSkipList()
	for i := 0; i < 10; i++ {
		key := fmt.Sprintf("key%02d", i)
		sl.put(skipListEntry{key: []byte(key), value: []byte(key)})
	}

	node := sl.seek([]byte("key05"))
	require.NotNil(t, node)
	require.Equal(t, "key05", string(node.entry.key))

	node = sl.seek([]byte("key05a"))
	require.NotNil(t, node)
	require.Equal(t, "key06", string(node.entry.key))

	node = sl.seek([]byte("zzz"))
	require.Nil(t, node)
}

func TestSkipListManyRandomInserts(t *testing.T) {
	sl := newSkipList()
	n := 2000
	perm := rand.Perm(n)
	for _, i := range perm {
		key := fmt.Sprintf("key%06d", i)
		sl.put(skipListEntry{key: []byte(key), value: []byte(key)})
	}

	require.Equal(t, n, sl.len())
	all := sl.all()
	for i := 1; i < len(all); i++ {
		require.Less(t, string(all[i-1].key), string(all[i].key))
	}
}
