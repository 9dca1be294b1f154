package sstable

import (
	"bufio"
	"math"
	"os"
)

// dataWriter is the minimal surface the encoder needs from either of the
// two Data-file write paths: the CRC-accumulating ChecksummedWriter
// (uncompressed tables) or the CompressedWriter (compressed tables).
type dataWriter interface {
	Write(p []byte) (int, error)
	Offset() int64
	Close() error
}

// trackingWriter wraps the Index.db file, the one component written
// uncompressed and unchecksummed but whose running byte offset the encoder
// still needs at every step (to place Summary/Index cross-references).
type trackingWriter struct {
	bw     *bufio.Writer
	f      *os.File
	offset int64
}

func newTrackingWriter(f *os.File) *trackingWriter {
	return &trackingWriter{bw: bufio.NewWriterSize(f, 64*1024), f: f}
}

func (w *trackingWriter) Write(p []byte) (int, error) {
	n, err := w.bw.Write(p)
	w.offset += int64(n)
	if err != nil {
		return n, newError(ErrIO, "", err)
	}
	return n, nil
}

func (w *trackingWriter) Offset() int64 { return w.offset }

func (w *trackingWriter) Close() error {
	if err := w.bw.Flush(); err != nil {
		return newError(ErrIO, "", err)
	}
	if err := w.f.Sync(); err != nil {
		return newError(ErrIO, "", err)
	}
	return w.f.Close()
}

// EncoderOptions configures one write_components pass.
type EncoderOptions struct {
	Schema                  Schema
	EstimatedPartitionCount uint64
	MinIndexInterval        uint32
	ChunkLength             uint32
}

// Encoder drives a single forward pass over a sorted MutationSource,
// producing Data.db, Index.db, Summary.db, Filter.db and the Statistics
// needed to complete an sstable, in lockstep.
type Encoder struct {
	opts      EncoderOptions
	data      dataWriter
	index     *trackingWriter
	summary   *Summary
	filter    *Filter
	collector *metadataCollector
	tracker   ColumnNameTracker
	rowStats  *columnStats

	keysWritten uint64
	firstKey    []byte
	lastKey     []byte

	compressionInfo *CompressionInfo
	crc             *CRC
}

const defaultMinIndexInterval = 128

// NewEncoder wraps the already-open Data.db (dataFile) and Index.db
// (indexFile) and prepares the in-memory Summary/Filter/collector. If the
// schema names a compressor other than "none", the data stream is wrapped
// in a CompressedWriter; otherwise it is wrapped in a checksummed,
// CRC-tracked writer. In both cases opts.ChunkLength is the chunk size,
// and 0 selects defaultChunkLen.
func NewEncoder(dataFile, indexFile *os.File, opts EncoderOptions) (*Encoder, error) {
	if opts.MinIndexInterval == 0 {
		opts.MinIndexInterval = defaultMinIndexInterval
	}
	if opts.EstimatedPartitionCount > math.MaxUint32 {
		return nil, malformed("estimated partition count %d exceeds UINT32_MAX", opts.EstimatedPartitionCount)
	}

	e := &Encoder{
		opts:      opts,
		index:     newTrackingWriter(indexFile),
		summary:   PrepareSummary(opts.MinIndexInterval),
		collector: newMetadataCollector(),
		rowStats:  newColumnStats(),
	}

	compressorName := opts.Schema.Compressor()
	if compressorName != "" && compressorName != "none" {
		e.compressionInfo = &CompressionInfo{
			CompressorName: compressorName,
			Options:        map[string]string{"crc_check_chance": "1.0"},
			ChunkLen:       opts.ChunkLength,
		}
		if e.compressionInfo.ChunkLen == 0 {
			e.compressionInfo.ChunkLen = defaultChunkLen
		}
		cw, err := NewCompressedWriter(dataFile, e.compressionInfo)
		if err != nil {
			return nil, err
		}
		e.data = cw
	} else {
		e.data = NewChecksummedWriter(dataFile, opts.ChunkLength)
	}

	fpChance := opts.Schema.BloomFilterFPChance()
	if fpChance < 1.0 {
		n := opts.EstimatedPartitionCount
		if n == 0 {
			n = 1
		}
		e.filter = NewFilter(n, fpChance)
	}

	return e, nil
}

// WritePartition serializes one partition into Data.db/Index.db and folds
// it into the Summary/Filter/Statistics state.
func (e *Encoder) WritePartition(p Partition) error {
	e.rowStats.reset()
	e.rowStats.startOffset = e.data.Offset()

	key := p.Key()
	indexOffset := uint64(e.index.Offset())
	dataOffset := uint64(e.data.Offset())

	if e.firstKey == nil {
		e.firstKey = append([]byte(nil), key...)
	}
	e.lastKey = append([]byte(nil), key...)

	maybeAddSummaryEntry(e.summary, key, indexOffset, e.keysWritten, e.opts.MinIndexInterval)
	if e.filter != nil {
		e.filter.Add(key)
	}
	e.collector.AddKey(key)
	e.keysWritten++

	if err := WriteIndexEntry(e.index, key, dataOffset, nil); err != nil {
		return err
	}

	if err := writeSizedString[uint16](e.data, key); err != nil {
		return err
	}

	if tomb, ok := p.Tombstone(); ok {
		if err := writeInt32(e.data, int32(tomb.LocalDeletionTime)); err != nil {
			return err
		}
		if err := writeInt64(e.data, int64(tomb.Timestamp)); err != nil {
			return err
		}
		e.rowStats.tombstoneHistogram.Update(int64(tomb.LocalDeletionTime))
		e.rowStats.updateMaxLocalDeletionTime(tomb.LocalDeletionTime)
		e.rowStats.updateMinTimestamp(tomb.Timestamp)
		e.rowStats.updateMaxTimestamp(tomb.Timestamp)
	} else {
		if err := writeInt32(e.data, math.MaxInt32); err != nil {
			return err
		}
		if err := writeInt64(e.data, math.MinInt64); err != nil {
			return err
		}
	}

	if err := e.writeStaticRow(p.StaticRow()); err != nil {
		return err
	}
	for _, rt := range p.RangeTombstones() {
		if err := e.writeRangeTombstone(rt); err != nil {
			return err
		}
	}
	for _, row := range p.ClusteredRows() {
		if err := e.writeClusteredRow(row); err != nil {
			return err
		}
	}

	if err := writeUint16(e.data, 0); err != nil { // end_marker
		return err
	}

	e.rowStats.rowSize = e.data.Offset() - e.rowStats.startOffset
	e.collector.Update(e.rowStats)
	return nil
}

func (e *Encoder) writeStaticRow(row Row) error {
	if row == nil {
		return nil
	}
	// Static rows carry an empty clustering-key prefix (sstables.cc
	// composite::static_prefix).
	prefix := Composite{}
	for _, c := range row.Cells() {
		if err := WriteColumnName(e.data, prefix, [][]byte{c.ColumnName}, MarkerNone, &e.tracker); err != nil {
			return err
		}
		if err := e.writeCell(c); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) writeRangeTombstone(rt RangeTombstone) error {
	prefix := Composite{}
	if err := WriteColumnName(e.data, prefix, rt.Start, MarkerStartRange, &e.tracker); err != nil {
		return err
	}
	if err := writeUint8(e.data, uint8(ColumnMaskRangeTombstone)); err != nil {
		return err
	}
	if err := WriteColumnName(e.data, prefix, rt.End, MarkerEndRange, &e.tracker); err != nil {
		return err
	}
	if err := writeUint32(e.data, rt.Tombstone.LocalDeletionTime); err != nil {
		return err
	}
	if err := writeUint64(e.data, rt.Tombstone.Timestamp); err != nil {
		return err
	}
	e.rowStats.updateCellStats(rt.Tombstone.Timestamp)
	e.rowStats.tombstoneHistogram.Update(int64(rt.Tombstone.LocalDeletionTime))
	return nil
}

func (e *Encoder) writeClusteredRow(row ClusteredRow) error {
	compound := e.opts.Schema.IsCompound()
	clusteringKey := FromExploded(row.ClusteringKey(), MarkerNone)

	if compound {
		if ts, ok := row.CreatedAt(); ok {
			if err := WriteColumnName(e.data, clusteringKey, [][]byte{nil}, MarkerNone, &e.tracker); err != nil {
				return err
			}
			if err := writeUint8(e.data, uint8(ColumnMaskNone)); err != nil {
				return err
			}
			if err := writeUint64(e.data, ts); err != nil {
				return err
			}
			if err := writeUint32(e.data, 0); err != nil { // value_length
				return err
			}
			e.rowStats.updateCellStats(ts)
		}
	}

	for _, c := range row.Cells() {
		if compound {
			if err := WriteColumnName(e.data, clusteringKey, [][]byte{c.ColumnName}, MarkerNone, &e.tracker); err != nil {
				return err
			}
		} else {
			if err := WriteSimpleColumnName(e.data, c.ColumnName, &e.tracker); err != nil {
				return err
			}
		}
		if err := e.writeCell(c); err != nil {
			return err
		}
	}
	return nil
}

// writeCell writes a cell body (everything after the column name), in one
// of the three shapes write_cell dispatches on.
func (e *Encoder) writeCell(c Cell) error {
	e.rowStats.updateCellStats(c.Timestamp)

	switch {
	case c.IsTombstone:
		if err := writeUint8(e.data, uint8(ColumnMaskDeletion)); err != nil {
			return err
		}
		if err := writeUint64(e.data, c.Timestamp); err != nil {
			return err
		}
		if err := writeUint32(e.data, 4); err != nil { // deletion_time_size
			return err
		}
		if err := writeUint32(e.data, c.DeletionTime); err != nil {
			return err
		}
		e.rowStats.tombstoneHistogram.Update(int64(c.DeletionTime))
		return nil

	case c.HasTTL:
		if err := writeUint8(e.data, uint8(ColumnMaskExpiration)); err != nil {
			return err
		}
		if err := writeUint32(e.data, c.TTL); err != nil {
			return err
		}
		if err := writeUint32(e.data, c.Expiration); err != nil {
			return err
		}
		if err := writeUint64(e.data, c.Timestamp); err != nil {
			return err
		}
		return writeSizedString[uint32](e.data, c.Value)

	default:
		if err := writeUint8(e.data, uint8(ColumnMaskNone)); err != nil {
			return err
		}
		if err := writeUint64(e.data, c.Timestamp); err != nil {
			return err
		}
		return writeSizedString[uint32](e.data, c.Value)
	}
}

// Finish seals the Summary, closes Index and Data, and returns everything
// the caller (SSTable.WriteComponents) still needs to write Filter/
// Statistics/CRC-or-CompressionInfo/Digest/TOC. It is an error to call
// Finish before at least one partition has been written: an empty stream
// fails because Summary requires at least one first_key.
func (e *Encoder) Finish() (*EncoderResult, error) {
	if e.firstKey == nil {
		return nil, malformed("cannot seal an sstable with zero partitions")
	}
	// memory_size is the byte length of the entries block: every sampled
	// key followed by its u64 Index.db position.
	var memorySize uint64
	for _, se := range e.summary.Entries {
		memorySize += uint64(len(se.Key)) + 8
	}
	if err := SealSummary(e.summary, memorySize); err != nil {
		return nil, err
	}
	e.summary.FirstKey = e.firstKey
	e.summary.LastKey = e.lastKey

	if err := e.index.Close(); err != nil {
		return nil, err
	}

	var fullChecksum uint32
	var chunks []uint32
	if cw, ok := e.data.(*ChecksummedWriter); ok {
		if err := cw.Close(); err != nil {
			return nil, err
		}
		fullChecksum = cw.FullChecksum()
		chunks = cw.Chunks()
		e.crc = &CRC{ChunkLen: cw.ChunkLen(), Chunks: chunks}
	} else if cw, ok := e.data.(*CompressedWriter); ok {
		if err := cw.Close(); err != nil {
			return nil, err
		}
		fullChecksum = cw.FullChecksum()
	}

	stats := e.collector.Seal(0, 1.0, 0, 0)
	stats.MinColumnNames = e.tracker.MinColumnNames()
	stats.MaxColumnNames = e.tracker.MaxColumnNames()

	return &EncoderResult{
		Summary:         e.summary,
		Filter:          e.filter,
		Statistics:      stats,
		CompressionInfo: e.compressionInfo,
		CRC:             e.crc,
		FullChecksum:    fullChecksum,
	}, nil
}

// EncoderResult bundles everything a write_components caller needs once
// the partition pass has completed.
type EncoderResult struct {
	Summary         *Summary
	Filter          *Filter
	Statistics      *StatsMetadata
	CompressionInfo *CompressionInfo
	CRC             *CRC
	FullChecksum    uint32
}
