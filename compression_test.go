package sstable_test

import (
	"bytes"
	"os"

	"github.com/bsm/sstable"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("CompressedWriter/CompressedReader", func() {
	var f *os.File

	BeforeEach(func() {
		var err error
		f, err = os.CreateTemp("", "sstable-compressed-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.Remove(f.Name())
	})

	It("round-trips data spanning multiple chunks", func() {
		meta := &sstable.CompressionInfo{
			CompressorName: "snappy",
			Options:        map[string]string{"crc_check_chance": "1.0"},
			ChunkLen:       8,
		}
		w, err := sstable.NewCompressedWriter(f, meta)
		Expect(err).NotTo(HaveOccurred())

		payload := []byte("0123456789abcdefghij") // 20 bytes over 8-byte chunks: 3 chunks
		_, err = w.Write(payload)
		Expect(err).NotTo(HaveOccurred())
		Expect(w.Close()).To(Succeed())
		Expect(meta.DataLen).To(Equal(uint64(len(payload))))
		Expect(meta.Offsets).To(HaveLen(3))

		rf, err := os.Open(f.Name())
		Expect(err).NotTo(HaveOccurred())
		defer rf.Close()

		r, err := sstable.NewCompressedReader(rf, meta)
		Expect(err).NotTo(HaveOccurred())

		got, err := r.ReadAt(0, len(payload))
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(payload))

		mid, err := r.ReadAt(5, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(mid).To(Equal(payload[5:15]))
	})

	It("detects a corrupted chunk via its trailing CRC", func() {
		meta := &sstable.CompressionInfo{
			CompressorName: "snappy",
			Options:        map[string]string{"crc_check_chance": "1.0"},
			ChunkLen:       8,
		}
		w, err := sstable.NewCompressedWriter(f, meta)
		Expect(err).NotTo(HaveOccurred())
		_, err = w.Write([]byte("12345678"))
		Expect(err).NotTo(HaveOccurred())
		Expect(w.Close()).To(Succeed())

		rf, err := os.OpenFile(f.Name(), os.O_RDWR, 0)
		Expect(err).NotTo(HaveOccurred())
		defer rf.Close()
		_, err = rf.WriteAt([]byte{0xff}, 0) // flip a byte inside the compressed payload
		Expect(err).NotTo(HaveOccurred())

		r, err := sstable.NewCompressedReader(rf, meta)
		Expect(err).NotTo(HaveOccurred())
		_, err = r.ReadAt(0, 8)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("CompressionInfo", func() {
	It("round-trips with a stable, sorted option order", func() {
		ci := &sstable.CompressionInfo{
			CompressorName: "snappy",
			Options:        map[string]string{"crc_check_chance": "1.0", "chunk_length_in_kb": "4"},
			ChunkLen:       4096,
			DataLen:        8192,
			Offsets:        []uint64{0, 120, 245},
		}

		var buf bytes.Buffer
		Expect(sstable.WriteCompressionInfo(&buf, ci)).To(Succeed())

		got, err := sstable.ReadCompressionInfo(&buf)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.CompressorName).To(Equal("snappy"))
		Expect(got.Options).To(Equal(ci.Options))
		Expect(got.ChunkLen).To(Equal(uint32(4096)))
		Expect(got.DataLen).To(Equal(uint64(8192)))
		Expect(got.Offsets).To(Equal(ci.Offsets))
	})
})
