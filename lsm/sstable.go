package lsm

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"os"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/gzip"
)

const (
	sstableMagic   uint32 = 0x53535442 // "SSTB"
	sstableVersion uint16 = 1

	flagCompressed uint8 = 1 << 0

	// headerFixedSize covers every fixed-width header field, per spec.md §6:
	// magic(4) version(2) level(4) entryCount(8) createdAt(8) flags(1)
	// minKeyLen(4) maxKeyLen(4).
	headerFixedSize = 4 + 2 + 4 + 8 + 8 + 1 + 4 + 4

	// footerSize: indexOffset(8) indexLen(8) bloomOffset(8) bloomLen(8)
	// crc32(4) magic(4).
	footerSize = 8 + 8 + 8 + 8 + 4 + 4
)

// SparseIndexEntry maps a sampled key to the data block that contains it,
// the on-disk form of the sparse index from spec.md §4.3.
type SparseIndexEntry struct {
	Key            []byte
	Offset         uint64
	CompressedLen  uint32
	RawLen         uint32
}

// SSTable is an immutable, sorted, compressed file on disk:
// [header][data blocks][sparse index][bloom filter][footer]
// Grounded on the teacher's lsm/sstable.go for the open/footer/block-search
// shape; []byte keys, the spec's own header, and per-block gzip
// compression (github.com/klauspost/compress/gzip) replace the teacher's
// fixed-size uncompressed 4KB blocks.
type SSTable struct {
	file        *os.File
	path        string
	level       int
	fileNum     uint64
	minKey      []byte
	maxKey      []byte
	entryCount  uint64
	createdAt   int64
	compressed  bool
	index       []SparseIndexEntry
	bloomFilter *BloomFilter
	metrics     *Metrics
}

// OpenSSTable opens an existing table and loads its header, sparse index
// and bloom filter into memory; data blocks stay on disk and are read
// on demand. metrics may be nil (tests opening a table directly have no
// engine-level metrics to report against).
func OpenSSTable(path string, level int, fileNum uint64, metrics *Metrics) (*SSTable, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(ErrSSTableIO, "open %s: %v", path, err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, errors.Wrapf(ErrSSTableIO, "stat %s: %v", path, err)
	}
	fileSize := stat.Size()
	if fileSize < headerFixedSize+footerSize {
		file.Close()
		return nil, errors.Wrapf(ErrCorrupted, "sstable %s too small (%d bytes)", path, fileSize)
	}

	headerFixed := make([]byte, headerFixedSize)
	if _, err := file.ReadAt(headerFixed, 0); err != nil {
		file.Close()
		return nil, errors.Wrapf(ErrSSTableIO, "read header %s: %v", path, err)
	}
	magic := binary.LittleEndian.Uint32(headerFixed[0:])
	if magic != sstableMagic {
		file.Close()
		return nil, errors.Wrapf(ErrCorrupted, "sstable %s: bad magic %x", path, magic)
	}
	level32 := binary.LittleEndian.Uint32(headerFixed[6:])
	entryCount := binary.LittleEndian.Uint64(headerFixed[10:])
	createdAt := int64(binary.LittleEndian.Uint64(headerFixed[18:]))
	flags := headerFixed[26]
	minKeyLen := binary.LittleEndian.Uint32(headerFixed[27:])
	maxKeyLen := binary.LittleEndian.Uint32(headerFixed[31:])

	keys := make([]byte, minKeyLen+maxKeyLen)
	if _, err := file.ReadAt(keys, headerFixedSize); err != nil {
		file.Close()
		return nil, errors.Wrapf(ErrSSTableIO, "read header keys %s: %v", path, err)
	}

	footer := make([]byte, footerSize)
	if _, err := file.ReadAt(footer, fileSize-footerSize); err != nil {
		file.Close()
		return nil, errors.Wrapf(ErrSSTableIO, "read footer %s: %v", path, err)
	}
	footerMagic := binary.LittleEndian.Uint32(footer[36:])
	if footerMagic != sstableMagic {
		file.Close()
		return nil, errors.Wrapf(ErrCorrupted, "sstable %s: bad footer magic", path)
	}
	indexOffset := binary.LittleEndian.Uint64(footer[0:])
	indexLen := binary.LittleEndian.Uint64(footer[8:])
	bloomOffset := binary.LittleEndian.Uint64(footer[16:])
	bloomLen := binary.LittleEndian.Uint64(footer[24:])
	footerCRC := binary.LittleEndian.Uint32(footer[32:])

	indexData := make([]byte, indexLen)
	if _, err := file.ReadAt(indexData, int64(indexOffset)); err != nil {
		file.Close()
		return nil, errors.Wrapf(ErrSSTableIO, "read index %s: %v", path, err)
	}
	bloomData := make([]byte, bloomLen)
	if _, err := file.ReadAt(bloomData, int64(bloomOffset)); err != nil {
		file.Close()
		return nil, errors.Wrapf(ErrSSTableIO, "read bloom %s: %v", path, err)
	}

	check := make([]byte, 0, len(indexData)+len(bloomData))
	check = append(check, indexData...)
	check = append(check, bloomData...)
	if crc32.ChecksumIEEE(check) != footerCRC {
		file.Close()
		return nil, errors.Wrapf(ErrCorrupted, "sstable %s: footer checksum mismatch", path)
	}

	index, err := decodeSparseIndex(indexData)
	if err != nil {
		file.Close()
		return nil, errors.Wrapf(ErrCorrupted, "sstable %s: %v", path, err)
	}
	bloomFilter, err := DecodeBloomFilter(bloomData)
	if err != nil {
		file.Close()
		return nil, errors.Wrapf(ErrCorrupted, "sstable %s: %v", path, err)
	}

	return &SSTable{
		file:        file,
		path:        path,
		level:       level,
		fileNum:     fileNum,
		minKey:      keys[:minKeyLen],
		maxKey:      keys[minKeyLen:],
		entryCount:  entryCount,
		createdAt:   createdAt,
		compressed:  flags&flagCompressed != 0,
		index:       index,
		bloomFilter: bloomFilter,
		metrics:     metrics,
	}, nil
}

// decodeSparseIndex parses [numEntries(4)]{[keyLen(4)][offset(8)][compressedLen(4)][rawLen(4)][key]}*
func decodeSparseIndex(data []byte) ([]SparseIndexEntry, error) {
	if len(data) < 4 {
		return nil, errors.New("sparse index too small")
	}
	numEntries := binary.LittleEndian.Uint32(data[0:])
	entries := make([]SparseIndexEntry, numEntries)

	offset := 4
	for i := uint32(0); i < numEntries; i++ {
		if offset+20 > len(data) {
			return nil, errors.New("sparse index truncated")
		}
		keyLen := binary.LittleEndian.Uint32(data[offset:])
		blockOffset := binary.LittleEndian.Uint64(data[offset+4:])
		compressedLen := binary.LittleEndian.Uint32(data[offset+12:])
		rawLen := binary.LittleEndian.Uint32(data[offset+16:])
		offset += 20
		if offset+int(keyLen) > len(data) {
			return nil, errors.New("sparse index truncated")
		}
		key := make([]byte, keyLen)
		copy(key, data[offset:offset+int(keyLen)])
		offset += int(keyLen)

		entries[i] = SparseIndexEntry{Key: key, Offset: blockOffset, CompressedLen: compressedLen, RawLen: rawLen}
	}
	return entries, nil
}

// lookupStart returns the sparse index entry whose block may contain key:
// the last sampled key <= key, per spec.md §4.3's "clamp to last sample"
// rule (if key is past every sample, the last block is still searched).
func (sst *SSTable) lookupStart(key []byte) (SparseIndexEntry, bool) {
	if len(sst.index) == 0 {
		return SparseIndexEntry{}, false
	}
	i := sort.Search(len(sst.index), func(i int) bool {
		return bytes.Compare(sst.index[i].Key, key) > 0
	})
	if i == 0 {
		return SparseIndexEntry{}, false
	}
	return sst.index[i-1], true
}

// Get searches for key, returning (value, found, error). found is false
// both when the key is absent and when its tombstone is the live entry;
// BlockEntries, which returns entries with their tombstone flag, is the
// only way to tell the two apart.
func (sst *SSTable) Get(key []byte) ([]byte, bool, error) {
	if !sst.bloomFilter.MayContain(key) {
		if sst.metrics != nil {
			sst.metrics.BloomMisses.Inc()
		}
		return nil, false, nil
	}
	if sst.metrics != nil {
		sst.metrics.BloomHits.Inc()
	}
	start, ok := sst.lookupStart(key)
	if !ok {
		return nil, false, nil
	}
	block, err := sst.readBlock(start)
	if err != nil {
		return nil, false, err
	}
	return searchBlock(block, key)
}

// NumBlocks reports how many data blocks the sparse index describes.
func (sst *SSTable) NumBlocks() int { return len(sst.index) }

// BlockEntries decodes the idx'th data block into its constituent
// entries, for sequential scan/compaction.
func (sst *SSTable) BlockEntries(idx int) ([]Entry, error) {
	if idx < 0 || idx >= len(sst.index) {
		return nil, nil
	}
	block, err := sst.readBlock(sst.index[idx])
	if err != nil {
		return nil, err
	}
	return decodeBlockEntries(block)
}

func (sst *SSTable) readBlock(entry SparseIndexEntry) ([]byte, error) {
	raw := make([]byte, entry.CompressedLen)
	if _, err := sst.file.ReadAt(raw, int64(entry.Offset)); err != nil {
		return nil, errors.Wrapf(ErrSSTableIO, "read block at %d in %s: %v", entry.Offset, sst.path, err)
	}
	if !sst.compressed {
		return raw, nil
	}
	gz, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Wrapf(ErrCorrupted, "decompress block in %s: %v", sst.path, err)
	}
	defer gz.Close()
	out := make([]byte, 0, entry.RawLen)
	buf := make([]byte, 4096)
	for {
		n, err := gz.Read(buf)
		out = append(out, buf[:n]...)
		if err != nil {
			break
		}
	}
	return out, nil
}

// decodeBlockEntries parses every entry out of a decoded block, in
// on-disk (ascending key) order. Used by the compaction merge iterator,
// which needs every entry rather than a single point lookup.
func decodeBlockEntries(block []byte) ([]Entry, error) {
	if len(block) < 4 {
		return nil, nil
	}
	numEntries := binary.LittleEndian.Uint32(block[0:])
	offset := 4
	entries := make([]Entry, 0, numEntries)

	for i := uint32(0); i < numEntries; i++ {
		if offset+entryHeaderSize > len(block) {
			return nil, errors.Wrap(ErrCorrupted, "block truncated")
		}
		keySize := binary.LittleEndian.Uint32(block[offset:])
		offset += 4
		valueSize := binary.LittleEndian.Uint32(block[offset:])
		offset += 4
		deleted := block[offset] == 1
		offset++
		sequence := binary.LittleEndian.Uint64(block[offset:])
		offset += 8

		if offset+int(keySize)+int(valueSize) > len(block) {
			return nil, errors.Wrap(ErrCorrupted, "block truncated")
		}
		key := make([]byte, keySize)
		copy(key, block[offset:offset+int(keySize)])
		offset += int(keySize)
		value := make([]byte, valueSize)
		copy(value, block[offset:offset+int(valueSize)])
		offset += int(valueSize)

		entries = append(entries, Entry{Key: key, Value: value, Tombstone: deleted, Sequence: sequence})
	}
	return entries, nil
}

// searchBlock scans a decoded block (sorted, [numEntries(4)]{[keySize(4)]
// [valueSize(4)][deleted(1)][sequence(8)][key][value]}*) for key.
func searchBlock(block []byte, key []byte) ([]byte, bool, error) {
	if len(block) < 4 {
		return nil, false, nil
	}
	numEntries := binary.LittleEndian.Uint32(block[0:])
	offset := 4

	for i := uint32(0); i < numEntries; i++ {
		if offset+entryHeaderSize > len(block) {
			return nil, false, errors.Wrap(ErrCorrupted, "block truncated")
		}
		keySize := binary.LittleEndian.Uint32(block[offset:])
		offset += 4
		valueSize := binary.LittleEndian.Uint32(block[offset:])
		offset += 4
		deleted := block[offset] == 1
		offset++
		offset += 8 // sequence, unused for point lookups

		if offset+int(keySize)+int(valueSize) > len(block) {
			return nil, false, errors.Wrap(ErrCorrupted, "block truncated")
		}
		entryKey := block[offset : offset+int(keySize)]
		offset += int(keySize)

		cmp := bytes.Compare(entryKey, key)
		if cmp == 0 {
			if deleted {
				return nil, false, nil
			}
			value := make([]byte, valueSize)
			copy(value, block[offset:offset+int(valueSize)])
			return value, true, nil
		}
		offset += int(valueSize)
		if cmp > 0 {
			return nil, false, nil
		}
	}
	return nil, false, nil
}

// Overlaps reports whether this table's [minKey, maxKey] intersects
// [start, end]. Empty start/end means unbounded on that side.
func (sst *SSTable) Overlaps(start, end []byte) bool {
	if len(start) != 0 && bytes.Compare(sst.maxKey, start) < 0 {
		return false
	}
	if len(end) != 0 && bytes.Compare(sst.minKey, end) > 0 {
		return false
	}
	return true
}

func (sst *SSTable) Close() error {
	if sst.file != nil {
		return sst.file.Close()
	}
	return nil
}

func (sst *SSTable) Remove() error {
	_ = sst.Close()
	return os.Remove(sst.path)
}

func (sst *SSTable) MinKey() []byte     { return sst.minKey }
func (sst *SSTable) MaxKey() []byte     { return sst.maxKey }
func (sst *SSTable) Level() int         { return sst.level }
func (sst *SSTable) FileNum() uint64    { return sst.fileNum }
func (sst *SSTable) Path() string       { return sst.path }
func (sst *SSTable) EntryCount() uint64 { return sst.entryCount }
