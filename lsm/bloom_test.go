package lsm

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBloomFilterNoFalseNegatives(t *testing.T) {
	bf := NewBloomFilter(1000, 0.01)

	present := make([][]byte, 1000)
	for i := range present {
		present[i] = []byte(fmt.Sprintf("key%05d", i))
		bf.Add(present[i])
	}

	for _, key := range present {
		require.True(t, bf.MayContain(key), "bloom filter must never reject a key it was given")
	}
}

func TestBloomFilterFalsePositiveRateIsBounded(t *testing.T) {
	bf := NewBloomFilter(1000, 0.01)
	for i := 0; i < 1000; i++ {
		bf.Add([]byte(fmt.Sprintf("key%05d", i)))
	}

	falsePositives := 0
	trials := 10000
	for i := 0; i < trials; i++ {
		key := []byte(fmt.Sprintf("absent%05d", i))
		if bf.MayContain(key) {
			falsePositives++
		}
	}

	rate := float64(falsePositives) / float64(trials)
	require.Less(t, rate, 0.05, "false positive rate should stay within an order of magnitude of the 1%% target")
}

func TestBloomFilterEncodeDecodeRoundTrip(t *testing.T) {
	bf := NewBloomFilter(500, 0.02)
	for i := 0; i < 500; i++ {
		bf.Add([]byte(fmt.Sprintf("k%04d", i)))
	}

	encoded := bf.Encode()
	decoded, err := DecodeBloomFilter(encoded)
	require.NoError(t, err)

	for i := 0; i < 500; i++ {
		require.True(t, decoded.MayContain([]byte(fmt.Sprintf("k%04d", i))))
	}
}

func TestDecodeBloomFilterRejectsTruncatedInput(t *testing.T) {
	_, err := DecodeBloomFilter([]byte{1, 2, 3})
	require.Error(t, err)
}
