package lsm

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/gzip"
)

// SSTableBuilder constructs a new, immutable SSTable from entries that
// must arrive in ascending key order. Grounded on the teacher's
// lsm/sstable_builder.go for the overall flush/finish shape; blocks are
// cut every sparseIndexInterval entries (rather than at a fixed byte
// size) so the sparse index in spec.md §4.3 samples block boundaries
// directly, and each block is gzip-compressed before being written.
type SSTableBuilder struct {
	file *os.File
	path string

	sparseIndexInterval int
	compress            bool

	pendingEntries [][]byte // encoded entries awaiting a block flush
	blockOffset    uint64
	index          []SparseIndexEntry

	bloomFilter *BloomFilter
	minKey      []byte
	maxKey      []byte
	numEntries  uint64
}

// NewSSTableBuilder creates path and prepares to receive entries.
// expectedKeys sizes the bloom filter; sparseIndexInterval controls how
// many entries go into each compressed data block.
func NewSSTableBuilder(path string, expectedKeys int, sparseIndexInterval int, falsePositiveRate float64, compress bool) (*SSTableBuilder, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(ErrSSTableIO, "create %s: %v", path, err)
	}
	if sparseIndexInterval < 1 {
		sparseIndexInterval = 1
	}

	return &SSTableBuilder{
		file:                 file,
		path:                 path,
		sparseIndexInterval:  sparseIndexInterval,
		compress:             compress,
		bloomFilter:          NewBloomFilter(maxInt(expectedKeys, 1), falsePositiveRate),
	}, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// entryHeaderSize: keySize(4) + valueSize(4) + deleted(1) + sequence(8).
// The sequence number travels with every on-disk entry so that a k-way
// compaction merge across files can pick the freshest duplicate by the
// same global order Put/Delete assign in the memtable, rather than by
// file/iterator position.
const entryHeaderSize = 17

// Add appends a single entry. Entries MUST arrive in ascending key order;
// the builder does not sort.
func (b *SSTableBuilder) Add(key, value []byte, deleted bool, sequence uint64) error {
	if b.numEntries == 0 {
		b.minKey = append([]byte(nil), key...)
	}
	b.maxKey = append([]byte(nil), key...)
	b.numEntries++
	b.bloomFilter.Add(key)

	keySize := uint32(len(key))
	valueSize := uint32(len(value))
	entry := make([]byte, entryHeaderSize+int(keySize)+int(valueSize))
	offset := 0
	binary.LittleEndian.PutUint32(entry[offset:], keySize)
	offset += 4
	binary.LittleEndian.PutUint32(entry[offset:], valueSize)
	offset += 4
	if deleted {
		entry[offset] = 1
	}
	offset++
	binary.LittleEndian.PutUint64(entry[offset:], sequence)
	offset += 8
	copy(entry[offset:], key)
	offset += int(keySize)
	copy(entry[offset:], value)

	b.pendingEntries = append(b.pendingEntries, entry)
	if len(b.pendingEntries) >= b.sparseIndexInterval {
		return b.flushBlock()
	}
	return nil
}

// flushBlock writes the accumulated entries as a single compressed data
// block and records its first key and location in the sparse index.
func (b *SSTableBuilder) flushBlock() error {
	if len(b.pendingEntries) == 0 {
		return nil
	}

	raw := make([]byte, 4)
	binary.LittleEndian.PutUint32(raw, uint32(len(b.pendingEntries)))
	for _, e := range b.pendingEntries {
		raw = append(raw, e...)
	}
	firstKeyOffset := 4 + entryHeaderSize
	firstKeyEnd := firstKeyOffset + int(binary.LittleEndian.Uint32(raw[4:]))
	firstKey := append([]byte(nil), raw[firstKeyOffset:firstKeyEnd]...)

	payload := raw
	if b.compress {
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		if _, err := gz.Write(raw); err != nil {
			return errors.Wrapf(ErrSSTableIO, "compress block: %v", err)
		}
		if err := gz.Close(); err != nil {
			return errors.Wrapf(ErrSSTableIO, "finish block compression: %v", err)
		}
		payload = buf.Bytes()
	}

	if _, err := b.file.Write(payload); err != nil {
		return classifyWriteError(err, "write block", ErrSSTableIO)
	}

	b.index = append(b.index, SparseIndexEntry{
		Key:           firstKey,
		Offset:        b.blockOffset,
		CompressedLen: uint32(len(payload)),
		RawLen:        uint32(len(raw)),
	})
	b.blockOffset += uint64(len(payload))
	b.pendingEntries = b.pendingEntries[:0]
	return nil
}

// Finish flushes any buffered block and writes the header, sparse index,
// bloom filter and footer, then fsyncs and closes the file.
func (b *SSTableBuilder) Finish(level int, createdAtUnix int64) error {
	// The header is written last but occupies the front of the file, so
	// data blocks are buffered into a temp region first... instead we
	// reserve the header space up front and seek back to fill it in,
	// avoiding a second temp file.
	if err := b.writeHeaderPlaceholder(); err != nil {
		return err
	}
	b.blockOffset = headerFixedSize + uint64(len(b.minKeyPeek())+len(b.maxKeyPeek()))

	if err := b.flushBlock(); err != nil {
		return err
	}

	indexOffset := b.blockOffset
	indexData := b.encodeIndex()
	if _, err := b.file.Write(indexData); err != nil {
		return classifyWriteError(err, "write index", ErrSSTableIO)
	}

	bloomOffset := indexOffset + uint64(len(indexData))
	bloomData := b.bloomFilter.Encode()
	if _, err := b.file.Write(bloomData); err != nil {
		return classifyWriteError(err, "write bloom", ErrSSTableIO)
	}

	check := make([]byte, 0, len(indexData)+len(bloomData))
	check = append(check, indexData...)
	check = append(check, bloomData...)
	crc := crc32.ChecksumIEEE(check)

	footer := make([]byte, footerSize)
	binary.LittleEndian.PutUint64(footer[0:], indexOffset)
	binary.LittleEndian.PutUint64(footer[8:], uint64(len(indexData)))
	binary.LittleEndian.PutUint64(footer[16:], bloomOffset)
	binary.LittleEndian.PutUint64(footer[24:], uint64(len(bloomData)))
	binary.LittleEndian.PutUint32(footer[32:], crc)
	binary.LittleEndian.PutUint32(footer[36:], sstableMagic)
	if _, err := b.file.Write(footer); err != nil {
		return classifyWriteError(err, "write footer", ErrSSTableIO)
	}

	if err := b.writeHeader(level, createdAtUnix); err != nil {
		return err
	}

	if err := b.file.Sync(); err != nil {
		return errors.Wrapf(ErrSSTableIO, "sync %s: %v", b.path, err)
	}
	return b.file.Close()
}

func (b *SSTableBuilder) minKeyPeek() []byte { return b.minKey }
func (b *SSTableBuilder) maxKeyPeek() []byte { return b.maxKey }

// writeHeaderPlaceholder reserves the header region so block offsets are
// known up front; writeHeader fills in the real values once EntryCount
// etc. are final.
func (b *SSTableBuilder) writeHeaderPlaceholder() error {
	placeholder := make([]byte, headerFixedSize+len(b.minKey)+len(b.maxKey))
	_, err := b.file.WriteAt(placeholder, 0)
	if err != nil {
		return classifyWriteError(err, "reserve header "+b.path, ErrSSTableIO)
	}
	return nil
}

func (b *SSTableBuilder) writeHeader(level int, createdAtUnix int64) error {
	header := make([]byte, headerFixedSize+len(b.minKey)+len(b.maxKey))
	binary.LittleEndian.PutUint32(header[0:], sstableMagic)
	binary.LittleEndian.PutUint16(header[4:], sstableVersion)
	binary.LittleEndian.PutUint32(header[6:], uint32(level))
	binary.LittleEndian.PutUint64(header[10:], b.numEntries)
	binary.LittleEndian.PutUint64(header[18:], uint64(createdAtUnix))
	if b.compress {
		header[26] = flagCompressed
	}
	binary.LittleEndian.PutUint32(header[27:], uint32(len(b.minKey)))
	binary.LittleEndian.PutUint32(header[31:], uint32(len(b.maxKey)))
	copy(header[headerFixedSize:], b.minKey)
	copy(header[headerFixedSize+len(b.minKey):], b.maxKey)

	_, err := b.file.WriteAt(header, 0)
	if err != nil {
		return classifyWriteError(err, "write header "+b.path, ErrSSTableIO)
	}
	return nil
}

func (b *SSTableBuilder) encodeIndex() []byte {
	size := 4
	for _, e := range b.index {
		size += 20 + len(e.Key)
	}
	buf := make([]byte, size)
	offset := 0
	binary.LittleEndian.PutUint32(buf[offset:], uint32(len(b.index)))
	offset += 4
	for _, e := range b.index {
		binary.LittleEndian.PutUint32(buf[offset:], uint32(len(e.Key)))
		binary.LittleEndian.PutUint64(buf[offset+4:], e.Offset)
		binary.LittleEndian.PutUint32(buf[offset+12:], e.CompressedLen)
		binary.LittleEndian.PutUint32(buf[offset+16:], e.RawLen)
		offset += 20
		copy(buf[offset:], e.Key)
		offset += len(e.Key)
	}
	return buf
}

// Abort discards a partially-written table.
func (b *SSTableBuilder) Abort() error {
	_ = b.file.Close()
	return os.Remove(b.path)
}

// NumEntries reports how many entries have been added so far.
func (b *SSTableBuilder) NumEntries() uint64 { return b.numEntries }
