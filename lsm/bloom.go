package lsm

import (
	"encoding/binary"
	"hash/fnv"
	"math"

	"github.com/bits-and-blooms/bitset"
	"github.com/cockroachdb/errors"
)

// BloomFilter is the per-SSTable membership test from spec.md §3/§4.2: a
// negative answer means the key is definitely absent, a positive answer
// means "maybe present" at the configured false-positive rate. Grounded
// on the teacher's lsm/bloom.go (FNV-1a/FNV-1 double hashing, m/k sizing
// formulas), with the raw bit array swapped for bitset.BitSet.
type BloomFilter struct {
	bits      *bitset.BitSet
	numBits   uint64
	numHashes uint32
}

// NewBloomFilter sizes a filter for expectedKeys entries at the given
// false-positive rate using the standard m = -n*ln(p)/ln(2)^2,
// k = (m/n)*ln(2) formulas.
func NewBloomFilter(expectedKeys int, falsePositiveRate float64) *BloomFilter {
	if expectedKeys < 1 {
		expectedKeys = 1
	}
	numBits := uint64(math.Ceil(-float64(expectedKeys) * math.Log(falsePositiveRate) / (math.Ln2 * math.Ln2)))
	if numBits < 8 {
		numBits = 8
	}
	numHashes := uint32(math.Ceil(float64(numBits) / float64(expectedKeys) * math.Ln2))
	if numHashes == 0 {
		numHashes = 1
	}

	return &BloomFilter{
		bits:      bitset.New(uint(numBits)),
		numBits:   numBits,
		numHashes: numHashes,
	}
}

func hash1(key []byte) uint64 {
	h := fnv.New64a()
	h.Write(key)
	return h.Sum64()
}

func hash2(key []byte) uint64 {
	h := fnv.New64()
	h.Write(key)
	return h.Sum64()
}

// getHashes derives k index positions via double hashing,
// h_i(x) = (h1(x) + i*h2(x)) mod m, avoiding k independent hash functions.
func (bf *BloomFilter) getHashes(key []byte) []uint64 {
	h1 := hash1(key)
	h2 := hash2(key)

	hashes := make([]uint64, bf.numHashes)
	for i := uint32(0); i < bf.numHashes; i++ {
		hashes[i] = (h1 + uint64(i)*h2) % bf.numBits
	}
	return hashes
}

// Add records key's membership.
func (bf *BloomFilter) Add(key []byte) {
	for _, h := range bf.getHashes(key) {
		bf.bits.Set(uint(h))
	}
}

// MayContain reports whether key might be present. false is a definite
// answer; true may be a false positive.
func (bf *BloomFilter) MayContain(key []byte) bool {
	for _, h := range bf.getHashes(key) {
		if !bf.bits.Test(uint(h)) {
			return false
		}
	}
	return true
}

// Encode serializes the filter. Format: [numBits(8)][numHashes(4)][words...]
func (bf *BloomFilter) Encode() []byte {
	words := bf.bits.Bytes()
	buf := make([]byte, 12, 12+len(words)*8)
	binary.LittleEndian.PutUint64(buf[0:], bf.numBits)
	binary.LittleEndian.PutUint32(buf[8:], bf.numHashes)
	for _, w := range words {
		var wbuf [8]byte
		binary.LittleEndian.PutUint64(wbuf[:], w)
		buf = append(buf, wbuf[:]...)
	}
	return buf
}

// DecodeBloomFilter deserializes a filter previously written by Encode.
func DecodeBloomFilter(data []byte) (*BloomFilter, error) {
	if len(data) < 12 {
		return nil, errors.Wrapf(ErrCorrupted, "bloom filter header truncated: %d bytes", len(data))
	}

	numBits := binary.LittleEndian.Uint64(data[0:])
	numHashes := binary.LittleEndian.Uint32(data[8:])
	payload := data[12:]
	if len(payload)%8 != 0 {
		return nil, errors.Wrapf(ErrCorrupted, "bloom filter payload not word-aligned: %d bytes", len(payload))
	}

	words := make([]uint64, len(payload)/8)
	for i := range words {
		words[i] = binary.LittleEndian.Uint64(payload[i*8:])
	}

	bs := bitset.FromWithLength(uint(numBits), words)

	return &BloomFilter{
		bits:      bs,
		numBits:   numBits,
		numHashes: numHashes,
	}, nil
}
