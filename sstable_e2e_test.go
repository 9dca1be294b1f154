package sstable_test

import (
	"context"
	"os"
	"path/filepath"

	"github.com/bsm/sstable"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("SSTable", func() {
	var dir string

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "sstable-e2e-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(dir)
	})

	It("fails Finish on an empty mutation stream", func() {
		schema := &testSchema{compound: true, fpChance: 0.01}
		table := sstable.Open(dir, 1, nil)
		err := table.WriteComponents(context.Background(), newTestSource(), 0, sstable.EncoderOptions{Schema: schema})
		Expect(err).To(HaveOccurred())
	})

	It("writes and loads a single partition with a single live cell", func() {
		schema := &testSchema{compound: true, fpChance: 0.01}
		key := []byte{0, 0, 0, 1}
		row := &testRow{
			cells: []sstable.Cell{{ColumnName: []byte("v"), Timestamp: 1, Value: []byte{0, 0, 0, 100}}},
		}
		p := &testPartition{key: key, rows: []sstable.ClusteredRow{row}}

		table := sstable.Open(dir, 1, nil)
		Expect(table.WriteComponents(context.Background(), newTestSource(p), 1, sstable.EncoderOptions{Schema: schema})).To(Succeed())
		Expect(table.Close()).To(Succeed())

		loaded := sstable.Open(dir, 1, nil)
		defer loaded.Close()
		Expect(loaded.Load(context.Background())).To(Succeed())

		entries, err := loaded.ReadIndexes(0, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(1))
		Expect(entries[0].Key).To(Equal(key))

		data, err := loaded.DataRead(0, int(loaded.DataSize()))
		Expect(err).NotTo(HaveOccurred())
		Expect(data).NotTo(BeEmpty())
	})

	It("records a partition tombstone in the tombstone histogram", func() {
		schema := &testSchema{compound: true, fpChance: 0.01}
		p := &testPartition{
			key:       []byte{0, 0, 0, 1},
			hasTomb:   true,
			tombstone: sstable.Tombstone{Timestamp: 1000, LocalDeletionTime: 500},
		}

		table := sstable.Open(dir, 1, nil)
		Expect(table.WriteComponents(context.Background(), newTestSource(p), 1, sstable.EncoderOptions{Schema: schema})).To(Succeed())
		Expect(table.Close()).To(Succeed())

		loaded := sstable.Open(dir, 1, nil)
		defer loaded.Close()
		Expect(loaded.Load(context.Background())).To(Succeed())

		hist := loaded.Statistics().Stats.TombstoneHistogram
		var total uint64
		for _, c := range hist.Buckets {
			total += c
		}
		Expect(total).To(Equal(uint64(1)))
	})

	It("tracks component-wise min/max column names across a range tombstone's bounds", func() {
		schema := &testSchema{compound: true, fpChance: 0.01}
		p := &testPartition{
			key: []byte{0, 0, 0, 1},
			rangeTombs: []sstable.RangeTombstone{{
				Start:     [][]byte{{1}},
				End:       [][]byte{{2}},
				Tombstone: sstable.Tombstone{Timestamp: 1, LocalDeletionTime: 1},
			}},
		}

		table := sstable.Open(dir, 1, nil)
		Expect(table.WriteComponents(context.Background(), newTestSource(p), 1, sstable.EncoderOptions{Schema: schema})).To(Succeed())
		Expect(table.Close()).To(Succeed())

		loaded := sstable.Open(dir, 1, nil)
		defer loaded.Close()
		Expect(loaded.Load(context.Background())).To(Succeed())

		stats := loaded.Statistics().Stats
		Expect(stats.MinColumnNames).To(Equal([][]byte{{1}}))
		Expect(stats.MaxColumnNames).To(Equal([][]byte{{2}}))
	})

	It("round-trips through a compressed Data file identically to the uncompressed bytes", func() {
		// lz4 has no real implementation in this codec (see DESIGN.md);
		// snappy exercises the same chunked compressed-writer path using a
		// compressor this codec actually supports.
		rows := func() []sstable.ClusteredRow {
			return []sstable.ClusteredRow{&testRow{
				cells: []sstable.Cell{{ColumnName: []byte("v"), Timestamp: 1, Value: []byte("hello, compressed world")}},
			}}
		}
		partitions := func() []sstable.Partition {
			return []sstable.Partition{&testPartition{key: []byte{0, 0, 0, 1}, rows: rows()}}
		}

		plainDir := filepath.Join(dir, "plain")
		Expect(os.MkdirAll(plainDir, 0o755)).To(Succeed())
		plainSchema := &testSchema{compound: true, fpChance: 0.01}
		plain := sstable.Open(plainDir, 1, nil)
		Expect(plain.WriteComponents(context.Background(), newTestSource(partitions()...), 1, sstable.EncoderOptions{Schema: plainSchema})).To(Succeed())
		Expect(plain.Close()).To(Succeed())

		plainLoaded := sstable.Open(plainDir, 1, nil)
		defer plainLoaded.Close()
		Expect(plainLoaded.Load(context.Background())).To(Succeed())
		want, err := plainLoaded.DataRead(0, int(plainLoaded.DataSize()))
		Expect(err).NotTo(HaveOccurred())

		compDir := filepath.Join(dir, "snappy")
		Expect(os.MkdirAll(compDir, 0o755)).To(Succeed())
		compSchema := &testSchema{compound: true, fpChance: 0.01, compressor: "snappy"}
		comp := sstable.Open(compDir, 1, nil)
		Expect(comp.WriteComponents(context.Background(), newTestSource(partitions()...), 1, sstable.EncoderOptions{Schema: compSchema, ChunkLength: 16})).To(Succeed())
		Expect(comp.Close()).To(Succeed())

		compLoaded := sstable.Open(compDir, 1, nil)
		defer compLoaded.Close()
		Expect(compLoaded.Load(context.Background())).To(Succeed())
		Expect(compLoaded.HasComponent(sstable.ComponentCompressionInfo)).To(BeTrue())
		Expect(compLoaded.DataSize()).To(Equal(plainLoaded.DataSize()))

		got, err := compLoaded.DataRead(0, int(compLoaded.DataSize()))
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(want))
	})

	It("rewrites metadata components in place via Store, leaving Data/Index untouched", func() {
		schema := &testSchema{compound: true, fpChance: 0.01}
		p := &testPartition{key: []byte{0, 0, 0, 1}, rows: []sstable.ClusteredRow{&testRow{
			cells: []sstable.Cell{{ColumnName: []byte("v"), Timestamp: 1, Value: []byte{1}}},
		}}}

		table := sstable.Open(dir, 1, nil)
		Expect(table.WriteComponents(context.Background(), newTestSource(p), 1, sstable.EncoderOptions{Schema: schema})).To(Succeed())
		Expect(table.Close()).To(Succeed())

		dataBefore, err := os.ReadFile(filepath.Join(dir, "la-1-big-Data.db"))
		Expect(err).NotTo(HaveOccurred())

		loaded := sstable.Open(dir, 1, nil)
		defer loaded.Close()
		Expect(loaded.Load(context.Background())).To(Succeed())
		Expect(loaded.Store(context.Background())).To(Succeed())

		dataAfter, err := os.ReadFile(filepath.Join(dir, "la-1-big-Data.db"))
		Expect(err).NotTo(HaveOccurred())
		Expect(dataAfter).To(Equal(dataBefore))

		reloaded := sstable.Open(dir, 1, nil)
		defer reloaded.Close()
		Expect(reloaded.Load(context.Background())).To(Succeed())
		Expect(reloaded.Statistics().Stats.MinTimestamp).To(Equal(loaded.Statistics().Stats.MinTimestamp))
	})

	It("fails Store before any component set has been loaded or written", func() {
		table := sstable.Open(dir, 1, nil)
		defer table.Close()
		Expect(table.Store(context.Background())).To(HaveOccurred())
	})

	It("fails to load when Filter.db is missing, classified as file_not_found", func() {
		schema := &testSchema{compound: true, fpChance: 0.01}
		p := &testPartition{key: []byte{0, 0, 0, 1}, rows: []sstable.ClusteredRow{&testRow{
			cells: []sstable.Cell{{ColumnName: []byte("v"), Timestamp: 1, Value: []byte{1}}},
		}}}

		table := sstable.Open(dir, 1, nil)
		Expect(table.WriteComponents(context.Background(), newTestSource(p), 1, sstable.EncoderOptions{Schema: schema})).To(Succeed())
		Expect(table.Close()).To(Succeed())

		Expect(os.Remove(filepath.Join(dir, "la-1-big-Filter.db"))).To(Succeed())

		// The TOC still names Filter.db, so Load fails trying to open it.
		loaded := sstable.Open(dir, 1, nil)
		defer loaded.Close()
		err := loaded.Load(context.Background())
		Expect(err).To(HaveOccurred())

		sstErr, ok := err.(*sstable.SSTableError)
		Expect(ok).To(BeTrue())
		Expect(sstErr.Kind).To(Equal(sstable.ErrFileNotFound))
		Expect(sstErr.Path).To(HaveSuffix("Filter.db"))
	})

	It("fails to load a malformed TOC naming an unrecognized component", func() {
		schema := &testSchema{compound: true, fpChance: 0.01}
		p := &testPartition{key: []byte{0, 0, 0, 1}, rows: []sstable.ClusteredRow{&testRow{
			cells: []sstable.Cell{{ColumnName: []byte("v"), Timestamp: 1, Value: []byte{1}}},
		}}}

		table := sstable.Open(dir, 1, nil)
		Expect(table.WriteComponents(context.Background(), newTestSource(p), 1, sstable.EncoderOptions{Schema: schema})).To(Succeed())
		Expect(table.Close()).To(Succeed())

		Expect(os.WriteFile(filepath.Join(dir, "la-1-big-TOC.txt"), []byte("BogusComponent.db\n"), 0o644)).To(Succeed())

		loaded := sstable.Open(dir, 1, nil)
		defer loaded.Close()
		err := loaded.Load(context.Background())
		Expect(err).To(MatchError(ContainSubstring("Unrecognized TOC component: BogusComponent.db")))
	})

})
