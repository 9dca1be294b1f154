package sstable_test

import (
	"bytes"
	"os"

	"github.com/bsm/sstable"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("ChecksummedWriter", func() {
	var f *os.File

	BeforeEach(func() {
		var err error
		f, err = os.CreateTemp("", "sstable-crc-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.Remove(f.Name())
	})

	It("rolls a chunk CRC at every chunkLen boundary", func() {
		w := sstable.NewChecksummedWriter(f, 4)
		_, err := w.Write([]byte("abcdefgh")) // exactly two 4-byte chunks
		Expect(err).NotTo(HaveOccurred())
		Expect(w.Offset()).To(Equal(int64(8)))
		Expect(w.Close()).To(Succeed())
		Expect(w.Chunks()).To(HaveLen(2))

		var buf bytes.Buffer
		Expect(sstable.WriteCRC(&buf, &sstable.CRC{ChunkLen: 4, Chunks: w.Chunks()})).To(Succeed())

		got, err := sstable.ReadCRC(&buf)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.ChunkLen).To(Equal(uint32(4)))
		Expect(got.Chunks).To(Equal(w.Chunks()))
	})

	It("finalizes a trailing partial chunk on Close", func() {
		w := sstable.NewChecksummedWriter(f, 4)
		_, err := w.Write([]byte("abc")) // one partial chunk
		Expect(err).NotTo(HaveOccurred())
		Expect(w.Close()).To(Succeed())
		Expect(w.Chunks()).To(HaveLen(1))
	})
})

var _ = Describe("Digest", func() {
	It("encodes as ASCII decimal, not raw bytes", func() {
		Expect(sstable.EncodeDigest(12345)).To(Equal([]byte("12345")))
	})

	It("round-trips", func() {
		got, err := sstable.ParseDigest(sstable.EncodeDigest(4042375162))
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(uint32(4042375162)))
	})

	It("rejects non-numeric payloads", func() {
		_, err := sstable.ParseDigest([]byte("not-a-number"))
		Expect(err).To(HaveOccurred())
	})
})
