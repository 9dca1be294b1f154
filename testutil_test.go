package sstable_test

import "github.com/bsm/sstable"

// testSchema is the minimal Schema fixture shared by every test in this
// package, covering both the compound and non-compound encoding paths.
type testSchema struct {
	compound   bool
	fpChance   float64
	compressor string
}

func (s *testSchema) IsCompound() bool                         { return s.compound }
func (s *testSchema) StaticColumns() []sstable.ColumnDefinition { return nil }
func (s *testSchema) BloomFilterFPChance() float64              { return s.fpChance }
func (s *testSchema) Compressor() string                        { return s.compressor }
func (s *testSchema) Partitioner() string                       { return "org.apache.cassandra.dht.Murmur3Partitioner" }

type testRow struct {
	clustering [][]byte
	createdAt  uint64
	hasMarker  bool
	cells      []sstable.Cell
}

func (r *testRow) ClusteringKey() [][]byte   { return r.clustering }
func (r *testRow) CreatedAt() (uint64, bool) { return r.createdAt, r.hasMarker }
func (r *testRow) Cells() []sstable.Cell     { return r.cells }

type testStaticRow struct {
	cells []sstable.Cell
}

func (r *testStaticRow) Cells() []sstable.Cell { return r.cells }

type testPartition struct {
	key        []byte
	tombstone  sstable.Tombstone
	hasTomb    bool
	staticRow  sstable.Row
	rangeTombs []sstable.RangeTombstone
	rows       []sstable.ClusteredRow
}

func (p *testPartition) Key() []byte                               { return p.key }
func (p *testPartition) Tombstone() (sstable.Tombstone, bool)      { return p.tombstone, p.hasTomb }
func (p *testPartition) StaticRow() sstable.Row                    { return p.staticRow }
func (p *testPartition) RangeTombstones() []sstable.RangeTombstone { return p.rangeTombs }
func (p *testPartition) ClusteredRows() []sstable.ClusteredRow     { return p.rows }

type testSource struct {
	partitions []sstable.Partition
	pos        int
}

func newTestSource(p ...sstable.Partition) *testSource {
	return &testSource{partitions: p}
}

func (s *testSource) Next() (sstable.Partition, error) {
	if s.pos >= len(s.partitions) {
		return nil, nil
	}
	p := s.partitions[s.pos]
	s.pos++
	return p, nil
}
