package sstable

import (
	"bytes"
	"io"
	"sort"
)

// MetadataType discriminates the three sum-typed Statistics records. It
// is a tagged-union discriminator in place of a polymorphic base pointer:
// the Statistics file's on-disk hash already carries this value, so the
// in-memory representation follows it.
type MetadataType uint32

const (
	MetadataValidation MetadataType = iota
	MetadataCompaction
	MetadataStats
)

// ValidationMetadata: partitioner name ‖ bloom_filter_fp_chance.
type ValidationMetadata struct {
	Partitioner      string
	BloomFilterFPChance float64
}

func (v *ValidationMetadata) serializedSize() int {
	return 2 + len(v.Partitioner) + 8
}

func readValidationMetadata(r io.Reader) (*ValidationMetadata, error) {
	name, err := readSizedString[uint16](r)
	if err != nil {
		return nil, wrapMalformed(err, "validation.partitioner")
	}
	chance, err := readFloat64(r)
	if err != nil {
		return nil, wrapMalformed(err, "validation.bloom_filter_fp_chance")
	}
	return &ValidationMetadata{Partitioner: string(name), BloomFilterFPChance: chance}, nil
}

func writeValidationMetadata(w io.Writer, v *ValidationMetadata) error {
	if err := writeSizedString[uint16](w, []byte(v.Partitioner)); err != nil {
		return err
	}
	return writeFloat64(w, v.BloomFilterFPChance)
}

// CompactionMetadata: ancestors list + cardinality estimator, both
// length-prefixed.
type CompactionMetadata struct {
	Ancestors   []uint32
	Cardinality []byte // opaque hyperloglog-style byte blob
}

func (c *CompactionMetadata) serializedSize() int {
	return 4 + 4*len(c.Ancestors) + 4 + len(c.Cardinality)
}

func readCompactionMetadata(r io.Reader) (*CompactionMetadata, error) {
	ancestors, err := readSizedIntArray[uint32, uint32](r, 4)
	if err != nil {
		return nil, wrapMalformed(err, "compaction.ancestors")
	}
	card, err := readSizedString[uint32](r)
	if err != nil {
		return nil, wrapMalformed(err, "compaction.cardinality")
	}
	return &CompactionMetadata{Ancestors: ancestors, Cardinality: card}, nil
}

func writeCompactionMetadata(w io.Writer, c *CompactionMetadata) error {
	if err := writeSizedIntArray[uint32](w, c.Ancestors, 4); err != nil {
		return err
	}
	return writeSizedString[uint32](w, c.Cardinality)
}

// StatsMetadata carries the bulk of the collected column statistics.
type StatsMetadata struct {
	EstimatedRowSize        *EstimatedHistogram
	EstimatedColumnCount    *EstimatedHistogram
	ReplayPosition          uint64
	MinTimestamp            uint64
	MaxTimestamp            uint64
	MaxLocalDeletionTime    uint32
	CompressionRatio        float64
	TombstoneHistogram      *EstimatedHistogram
	SSTableLevel            uint32
	RepairedAt              uint64
	MinColumnNames          [][]byte
	MaxColumnNames          [][]byte
	HasLegacyCounterShards  bool
}

func (s *StatsMetadata) serializedSize() int {
	size := 4 + len(s.EstimatedRowSize.Buckets)*16
	size += 4 + len(s.EstimatedColumnCount.Buckets)*16
	size += 8 + 8 + 8 + 4 + 8
	size += 4 + len(s.TombstoneHistogram.Buckets)*16
	size += 4 + 8
	size += 4
	for _, c := range s.MinColumnNames {
		size += 2 + len(c)
	}
	size += 4
	for _, c := range s.MaxColumnNames {
		size += 2 + len(c)
	}
	size += 1
	return size
}

func readColumnNameList(r io.Reader) ([][]byte, error) {
	return readSizedArray[uint32, []byte](r, func(r io.Reader) ([]byte, error) {
		return readSizedString[uint16](r)
	})
}

func writeColumnNameList(w io.Writer, names [][]byte) error {
	return writeSizedArray[uint32](w, names, func(w io.Writer, b []byte) error {
		return writeSizedString[uint16](w, b)
	})
}

func readStatsMetadata(r io.Reader) (*StatsMetadata, error) {
	rowSize, err := ReadEstimatedHistogram(r)
	if err != nil {
		return nil, wrapMalformed(err, "stats.estimated_row_size")
	}
	colCount, err := ReadEstimatedHistogram(r)
	if err != nil {
		return nil, wrapMalformed(err, "stats.estimated_column_count")
	}
	replayPos, err := readUint64(r)
	if err != nil {
		return nil, wrapMalformed(err, "stats.replay_position")
	}
	minTS, err := readUint64(r)
	if err != nil {
		return nil, wrapMalformed(err, "stats.min_timestamp")
	}
	maxTS, err := readUint64(r)
	if err != nil {
		return nil, wrapMalformed(err, "stats.max_timestamp")
	}
	maxLDT, err := readUint32(r)
	if err != nil {
		return nil, wrapMalformed(err, "stats.max_local_deletion_time")
	}
	ratio, err := readFloat64(r)
	if err != nil {
		return nil, wrapMalformed(err, "stats.compression_ratio")
	}
	tombHist, err := ReadEstimatedHistogram(r)
	if err != nil {
		return nil, wrapMalformed(err, "stats.tombstone_histogram")
	}
	level, err := readUint32(r)
	if err != nil {
		return nil, wrapMalformed(err, "stats.sstable_level")
	}
	repairedAt, err := readUint64(r)
	if err != nil {
		return nil, wrapMalformed(err, "stats.repaired_at")
	}
	minCols, err := readColumnNameList(r)
	if err != nil {
		return nil, wrapMalformed(err, "stats.min_column_names")
	}
	maxCols, err := readColumnNameList(r)
	if err != nil {
		return nil, wrapMalformed(err, "stats.max_column_names")
	}
	legacy, err := readBool(r)
	if err != nil {
		return nil, wrapMalformed(err, "stats.has_legacy_counter_shards")
	}
	return &StatsMetadata{
		EstimatedRowSize:       rowSize,
		EstimatedColumnCount:   colCount,
		ReplayPosition:         replayPos,
		MinTimestamp:           minTS,
		MaxTimestamp:           maxTS,
		MaxLocalDeletionTime:   maxLDT,
		CompressionRatio:       ratio,
		TombstoneHistogram:     tombHist,
		SSTableLevel:           level,
		RepairedAt:             repairedAt,
		MinColumnNames:         minCols,
		MaxColumnNames:         maxCols,
		HasLegacyCounterShards: legacy,
	}, nil
}

func writeStatsMetadata(w io.Writer, s *StatsMetadata) error {
	if err := WriteEstimatedHistogram(w, s.EstimatedRowSize); err != nil {
		return err
	}
	if err := WriteEstimatedHistogram(w, s.EstimatedColumnCount); err != nil {
		return err
	}
	if err := writeUint64(w, s.ReplayPosition); err != nil {
		return err
	}
	if err := writeUint64(w, s.MinTimestamp); err != nil {
		return err
	}
	if err := writeUint64(w, s.MaxTimestamp); err != nil {
		return err
	}
	if err := writeUint32(w, s.MaxLocalDeletionTime); err != nil {
		return err
	}
	if err := writeFloat64(w, s.CompressionRatio); err != nil {
		return err
	}
	if err := WriteEstimatedHistogram(w, s.TombstoneHistogram); err != nil {
		return err
	}
	if err := writeUint32(w, s.SSTableLevel); err != nil {
		return err
	}
	if err := writeUint64(w, s.RepairedAt); err != nil {
		return err
	}
	if err := writeColumnNameList(w, s.MinColumnNames); err != nil {
		return err
	}
	if err := writeColumnNameList(w, s.MaxColumnNames); err != nil {
		return err
	}
	return writeBool(w, s.HasLegacyCounterShards)
}

// Statistics is the in-memory mirror of Statistics.db: a mapping from
// MetadataType to one of the three records above, located via a leading
// disk_hash<u32, metadata_type, u32>.
type Statistics struct {
	Validation *ValidationMetadata
	Compaction *CompactionMetadata
	Stats      *StatsMetadata
}

type statisticsRecord struct {
	Type   MetadataType
	Offset uint32
}

// ReadStatistics parses the Statistics.db component. The hash is parsed
// first, then each record is located by seeking (here: re-slicing the
// buffered payload) to its declared offset. Unknown types are skipped, not
// fatal, matching sstables.cc's "Invalid metadata type... " warn-and-skip.
func ReadStatistics(data []byte) (*Statistics, error) {
	br := bytes.NewReader(data)
	n, err := readUint32(br)
	if err != nil {
		return nil, wrapMalformed(err, "statistics hash length")
	}
	records := make([]statisticsRecord, 0, n)
	for i := uint32(0); i < n; i++ {
		t, err := readUint32(br)
		if err != nil {
			return nil, wrapMalformed(err, "statistics hash key[%d]", i)
		}
		off, err := readUint32(br)
		if err != nil {
			return nil, wrapMalformed(err, "statistics hash value[%d]", i)
		}
		records = append(records, statisticsRecord{Type: MetadataType(t), Offset: off})
	}

	s := &Statistics{}
	for _, rec := range records {
		if int(rec.Offset) > len(data) {
			return nil, malformed("statistics record offset %d out of range", rec.Offset)
		}
		sub := bytes.NewReader(data[rec.Offset:])
		switch rec.Type {
		case MetadataValidation:
			v, err := readValidationMetadata(sub)
			if err != nil {
				return nil, err
			}
			s.Validation = v
		case MetadataCompaction:
			c, err := readCompactionMetadata(sub)
			if err != nil {
				return nil, err
			}
			s.Compaction = c
		case MetadataStats:
			st, err := readStatsMetadata(sub)
			if err != nil {
				return nil, err
			}
			s.Stats = st
		default:
			// Unrecognized metadata type: skipped rather than failing.
			continue
		}
	}
	return s, nil
}

// WriteStatistics serializes the Statistics.db component. Offsets are
// computed before any record is written (seal_statistics in sstables.cc),
// and records are then emitted in strictly increasing offset order.
func WriteStatistics(w io.Writer, s *Statistics) error {
	const metadataTypeCount = 3
	offset := 4 + metadataTypeCount*8 // hash length + (type:u32, offset:u32) per entry

	type entry struct {
		typ    MetadataType
		offset int
		write  func(io.Writer) error
	}
	entries := []entry{
		{MetadataValidation, offset, func(w io.Writer) error { return writeValidationMetadata(w, s.Validation) }},
	}
	offset += s.Validation.serializedSize()
	entries = append(entries, entry{MetadataCompaction, offset, func(w io.Writer) error { return writeCompactionMetadata(w, s.Compaction) }})
	offset += s.Compaction.serializedSize()
	entries = append(entries, entry{MetadataStats, offset, func(w io.Writer) error { return writeStatsMetadata(w, s.Stats) }})

	sort.Slice(entries, func(i, j int) bool { return entries[i].offset < entries[j].offset })

	if err := writeUint32(w, metadataTypeCount); err != nil {
		return err
	}
	for _, e := range entries {
		if err := writeUint32(w, uint32(e.typ)); err != nil {
			return err
		}
		if err := writeUint32(w, uint32(e.offset)); err != nil {
			return err
		}
	}
	for _, e := range entries {
		if err := e.write(w); err != nil {
			return err
		}
	}
	return nil
}
