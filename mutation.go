package sstable

// MutationSource yields partitions in sorted-key order, the single input
// the encoder consumes to build Data.db/Index.db/Summary.db/Statistics.db
// together (sstables.cc's mutation_reader mr, driven by sstable::write_components's
// "while (mutation_opt mut = mr().get0())" loop).
type MutationSource interface {
	// Next returns the next partition, or (nil, nil) once exhausted.
	Next() (Partition, error)
}

// Partition is one CQL partition: a key, an optional partition-level
// tombstone, a static row, any range tombstones, and the clustered rows
// that share the partition key.
type Partition interface {
	Key() []byte
	Tombstone() (Tombstone, bool)
	StaticRow() Row
	RangeTombstones() []RangeTombstone
	ClusteredRows() []ClusteredRow
}

// Tombstone is a deletion marker: the wall-clock time it was issued
// (Timestamp) and the local server time it becomes eligible for purge
// (LocalDeletionTime), mirroring sstables.cc's deletion_time/tombstone.
type Tombstone struct {
	Timestamp         uint64
	LocalDeletionTime uint32
}

// RangeTombstone deletes every clustering value between Start and End
// (inclusive), both exploded composite prefixes, per write_range_tombstone.
type RangeTombstone struct {
	Start     [][]byte
	End       [][]byte
	Tombstone Tombstone
}

// ClusteredRow is one row within a partition, keyed by its exploded
// clustering key, carrying an optional row marker and a set of cells.
type ClusteredRow interface {
	ClusteringKey() [][]byte
	// CreatedAt is the row marker's timestamp, or (0, false) if the row has
	// no marker (sstables.cc's api::missing_timestamp check).
	CreatedAt() (uint64, bool)
	Cells() []Cell
}

// Row is an unkeyed set of cells, used for a partition's static row.
type Row interface {
	Cells() []Cell
}

// Cell is one column value, in one of three wire shapes depending on
// IsTombstone/HasTTL: dead (tombstone), expiring (TTL), or live
// (sstables.cc write_cell's column_mask dispatch).
type Cell struct {
	ColumnName []byte
	Timestamp  uint64
	Value      []byte

	IsTombstone bool
	DeletionTime uint32 // valid when IsTombstone

	HasTTL     bool
	TTL        uint32 // valid when HasTTL
	Expiration uint32 // valid when HasTTL
}

// ColumnMask mirrors column_mask: the leading byte of every cell that
// selects which of the three wire shapes follows.
type ColumnMask uint8

const (
	ColumnMaskNone           ColumnMask = 0x00
	ColumnMaskDeletion       ColumnMask = 0x01
	ColumnMaskExpiration     ColumnMask = 0x02
	ColumnMaskRangeTombstone ColumnMask = 0x10
)
