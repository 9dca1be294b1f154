package sstable

const (
	maxDeletionTime = int64(1<<31 - 1) // int32 max: "no tombstone" sentinel
)

var minTimestamp = int64(-1) << 63 // int64 min: "no tombstone" sentinel

// columnStats accumulates the per-partition counters that write_cell /
// write_row_marker / write_range_tombstone fold as they go (sstables.cc
// column_stats, reset() between partitions).
type columnStats struct {
	startOffset          int64
	rowSize              int64
	columnCount          uint64
	minTimestamp         uint64
	maxTimestamp         uint64
	maxLocalDeletionTime uint32
	tombstoneHistogram   *EstimatedHistogram
	hasTimestamp         bool
}

func newColumnStats() *columnStats {
	return &columnStats{
		tombstoneHistogram:   NewTombstoneHistogram(),
		maxLocalDeletionTime: 0,
		minTimestamp:         ^uint64(0),
		maxTimestamp:         0,
	}
}

func (c *columnStats) reset() {
	*c = *newColumnStats()
}

func (c *columnStats) updateMinTimestamp(ts uint64) {
	if !c.hasTimestamp || ts < c.minTimestamp {
		c.minTimestamp = ts
	}
	c.hasTimestamp = true
}

func (c *columnStats) updateMaxTimestamp(ts uint64) {
	if ts > c.maxTimestamp {
		c.maxTimestamp = ts
	}
}

func (c *columnStats) updateMaxLocalDeletionTime(t uint32) {
	if t > c.maxLocalDeletionTime {
		c.maxLocalDeletionTime = t
	}
}

// updateCellStats folds a single cell's timestamp into the running
// counters, matching update_cell_stats in sstables.cc.
func (c *columnStats) updateCellStats(timestamp uint64) {
	c.updateMinTimestamp(timestamp)
	c.updateMaxTimestamp(timestamp)
	c.columnCount++
}

// metadataCollector is the file-wide accumulator that absorbs one
// columnStats per partition as it finishes, eventually sealing into a
// StatsMetadata (sstables.cc metadata_collector / seal_statistics).
type metadataCollector struct {
	partitionCount       uint64
	rowSizeHistogram     *EstimatedHistogram
	columnCountHistogram *EstimatedHistogram
	minTimestamp         uint64
	maxTimestamp         uint64
	maxLocalDeletionTime uint32
	tombstoneHistogram   *EstimatedHistogram
	hasTimestamp         bool
	firstKey             []byte
	lastKey              []byte
}

func newMetadataCollector() *metadataCollector {
	return &metadataCollector{
		rowSizeHistogram:     newSizeHistogram(),
		columnCountHistogram: newSizeHistogram(),
		tombstoneHistogram:   NewTombstoneHistogram(),
		maxLocalDeletionTime: 0,
	}
}

// newSizeHistogram builds the 90-bucket log-scale histogram used for
// estimated_row_size / estimated_column_count (same shape as the tombstone
// histogram; the name differs only in what it measures).
func newSizeHistogram() *EstimatedHistogram {
	return NewTombstoneHistogram()
}

// AddKey records a partition key for the file's first/last-key
// tracking, matching sstable::load's first_key/last_key
// bookkeeping in sstables.cc.
func (m *metadataCollector) AddKey(key []byte) {
	if m.firstKey == nil {
		m.firstKey = append([]byte(nil), key...)
	}
	m.lastKey = append([]byte(nil), key...)
}

// Update merges one partition's columnStats into the running file-wide
// totals (sstables.cc metadata_collector::update).
func (m *metadataCollector) Update(c *columnStats) {
	m.partitionCount++
	m.rowSizeHistogram.Update(c.rowSize)
	m.columnCountHistogram.Update(int64(c.columnCount))
	if c.hasTimestamp {
		if !m.hasTimestamp || c.minTimestamp < m.minTimestamp {
			m.minTimestamp = c.minTimestamp
		}
		m.hasTimestamp = true
	}
	if c.maxTimestamp > m.maxTimestamp {
		m.maxTimestamp = c.maxTimestamp
	}
	if c.maxLocalDeletionTime > m.maxLocalDeletionTime {
		m.maxLocalDeletionTime = c.maxLocalDeletionTime
	}
	mergeHistogram(m.tombstoneHistogram, c.tombstoneHistogram)
}

func mergeHistogram(dst, src *EstimatedHistogram) {
	for i, v := range src.Buckets {
		dst.Buckets[i] += v
	}
}

// Seal produces the final StatsMetadata for Statistics.db, after every
// partition has been folded in (sstables.cc seal_statistics). The caller
// is responsible for filling in MinColumnNames/MaxColumnNames from its own
// file-wide ColumnNameTracker (Encoder.Finish does this): column names are
// tracked once, at the point WriteColumnName is actually called, not
// re-derived here.
func (m *metadataCollector) Seal(replayPosition uint64, compressionRatio float64, sstableLevel uint32, repairedAt uint64) *StatsMetadata {
	minTS := m.minTimestamp
	maxLDT := m.maxLocalDeletionTime
	if !m.hasTimestamp {
		minTS = uint64(minTimestamp)
		maxLDT = uint32(maxDeletionTime)
	}
	return &StatsMetadata{
		EstimatedRowSize:       m.rowSizeHistogram,
		EstimatedColumnCount:   m.columnCountHistogram,
		ReplayPosition:         replayPosition,
		MinTimestamp:           minTS,
		MaxTimestamp:           m.maxTimestamp,
		MaxLocalDeletionTime:   maxLDT,
		CompressionRatio:       compressionRatio,
		TombstoneHistogram:     m.tombstoneHistogram,
		SSTableLevel:           sstableLevel,
		RepairedAt:             repairedAt,
		HasLegacyCounterShards: false,
	}
}
