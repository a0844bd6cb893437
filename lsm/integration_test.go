package lsm

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCrashRecovery(t *testing.T) {
	dir := t.TempDir()
	config := DefaultConfig(dir)

	engine, err := Open(config, nil)
	require.NoError(t, err)

	testData := map[string]string{"key1": "value1", "key2": "value2", "key3": "value3"}
	for key, value := range testData {
		require.NoError(t, engine.Put([]byte(key), []byte(value)))
	}
	require.NoError(t, engine.Sync())
	require.NoError(t, engine.Close())

	engine2, err := Open(config, nil)
	require.NoError(t, err)
	defer engine2.Close()

	for key, expected := range testData {
		value, found, err := engine2.Get([]byte(key))
		require.NoError(t, err)
		require.True(t, found, "key %s not found after recovery", key)
		require.Equal(t, expected, string(value))
	}
}

func TestCompactionPreservesData(t *testing.T) {
	config := DefaultConfig(t.TempDir())
	config.MemtableFlushThresholdBytes = 512
	engine, err := Open(config, nil)
	require.NoError(t, err)
	defer engine.Close()

	numKeys := 1000
	testData := make(map[string]string, numKeys)
	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("key%05d", i)
		value := fmt.Sprintf("value%05d", i)
		testData[key] = value
		require.NoError(t, engine.Put([]byte(key), []byte(value)))
	}

	require.Eventually(t, func() bool {
		return engine.GetLevels().NumFiles(0) <= config.L0CompactionTrigger
	}, 2*time.Second, 20*time.Millisecond, "expected compaction to drain L0")

	for key, expected := range testData {
		value, found, err := engine.Get([]byte(key))
		require.NoError(t, err)
		require.True(t, found, "key %s not found after compaction", key)
		require.Equal(t, expected, string(value))
	}

	t.Logf("after compaction: L0=%d L1=%d L2=%d",
		engine.GetLevels().NumFiles(0), engine.GetLevels().NumFiles(1), engine.GetLevels().NumFiles(2))
}

func TestBloomFilterEffectiveness(t *testing.T) {
	config := DefaultConfig(t.TempDir())
	config.MemtableFlushThresholdBytes = 512
	registry := prometheus.NewRegistry()
	engine, err := Open(config, registry)
	require.NoError(t, err)
	defer engine.Close()

	for i := 0; i < 100; i++ {
		key := fmt.Sprintf("key%05d", i)
		value := fmt.Sprintf("value%05d", i)
		require.NoError(t, engine.Put([]byte(key), []byte(value)))
	}

	require.Eventually(t, func() bool {
		return engine.GetLevels().GetTotalFiles() > 0
	}, time.Second, 10*time.Millisecond, "expected at least one flush")

	missesBefore := testutil.ToFloat64(engine.metrics.BloomMisses)

	for i := 100; i < 200; i++ {
		key := fmt.Sprintf("key%05d", i)
		_, found, err := engine.Get([]byte(key))
		require.NoError(t, err)
		require.False(t, found, "key %s should not exist", key)
	}

	missesAfter := testutil.ToFloat64(engine.metrics.BloomMisses)
	require.Greater(t, missesAfter, missesBefore,
		"queries for absent keys should have been rejected by the bloom filter, growing bloom_misses_total")
}

func TestUpdatesDuringCompaction(t *testing.T) {
	config := DefaultConfig(t.TempDir())
	config.MemtableFlushThresholdBytes = 512
	engine, err := Open(config, nil)
	require.NoError(t, err)
	defer engine.Close()

	for i := 0; i < 100; i++ {
		key := fmt.Sprintf("key%04d", i)
		value := fmt.Sprintf("v1-%04d", i)
		require.NoError(t, engine.Put([]byte(key), []byte(value)))
	}

	require.Eventually(t, func() bool {
		return engine.GetLevels().GetTotalFiles() > 0
	}, time.Second, 10*time.Millisecond, "expected first flush")

	for i := 0; i < 100; i++ {
		key := fmt.Sprintf("key%04d", i)
		value := fmt.Sprintf("v2-%04d", i)
		require.NoError(t, engine.Put([]byte(key), []byte(value)))
	}

	require.Eventually(t, func() bool {
		for i := 0; i < 100; i++ {
			key := fmt.Sprintf("key%04d", i)
			value, found, err := engine.Get([]byte(key))
			if err != nil || !found || string(value) != fmt.Sprintf("v2-%04d", i) {
				return false
			}
		}
		return true
	}, 2*time.Second, 20*time.Millisecond, "expected every key to settle on its v2 value")
}

func TestPersistenceAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	config := DefaultConfig(dir)
	config.MemtableFlushThresholdBytes = 512

	engine1, err := Open(config, nil)
	require.NoError(t, err)

	for i := 0; i < 200; i++ {
		key := fmt.Sprintf("key%04d", i)
		value := fmt.Sprintf("value%04d", i)
		require.NoError(t, engine1.Put([]byte(key), []byte(value)))
	}

	require.Eventually(t, func() bool {
		return engine1.GetLevels().GetTotalFiles() > 0
	}, time.Second, 10*time.Millisecond, "expected data flushed before restart")
	require.NoError(t, engine1.Close())

	engine2, err := Open(config, nil)
	require.NoError(t, err)
	defer engine2.Close()

	for i := 0; i < 200; i++ {
		key := fmt.Sprintf("key%04d", i)
		expected := fmt.Sprintf("value%04d", i)
		value, found, err := engine2.Get([]byte(key))
		require.NoError(t, err)
		require.True(t, found, "key %s not found after restart", key)
		require.Equal(t, expected, string(value))
	}

	t.Logf("after restart: L0=%d L1=%d L2=%d",
		engine2.GetLevels().NumFiles(0), engine2.GetLevels().NumFiles(1), engine2.GetLevels().NumFiles(2))
}
