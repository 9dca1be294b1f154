package sstable_test

import (
	"bytes"

	"github.com/bsm/sstable"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Summary", func() {
	It("round-trips header, entries, and first/last key", func() {
		s := sstable.PrepareSummary(128)
		s.Entries = []sstable.SummaryEntry{
			{Key: []byte("aaa"), Position: 0},
			{Key: []byte("bbb"), Position: 40},
		}
		s.FirstKey = []byte("aaa")
		s.LastKey = []byte("zzz")
		Expect(sstable.SealSummary(s, 22)).To(Succeed()) // (3+8) + (3+8) bytes of entries

		var buf bytes.Buffer
		Expect(sstable.WriteSummary(&buf, s)).To(Succeed())

		got, err := sstable.ReadSummary(&buf)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Header.Size).To(Equal(uint32(2)))
		Expect(got.Header.MemorySize).To(Equal(uint64(22)))
		Expect(got.Entries).To(HaveLen(2))
		Expect(got.Entries[0].Key).To(Equal([]byte("aaa")))
		Expect(got.Entries[1].Position).To(Equal(uint64(40)))
		Expect(got.FirstKey).To(Equal([]byte("aaa")))
		Expect(got.LastKey).To(Equal([]byte("zzz")))
	})

	It("writes the header fields big-endian and only positions native-endian", func() {
		s := sstable.PrepareSummary(0x00010203)
		s.Header.SamplingLevel = 0x0a0b0c0d
		Expect(sstable.SealSummary(s, 0x1122334455667788)).To(Succeed())
		s.FirstKey = []byte("a")
		s.LastKey = []byte("z")

		var buf bytes.Buffer
		Expect(sstable.WriteSummary(&buf, s)).To(Succeed())

		want := []byte{
			0x00, 0x01, 0x02, 0x03, // min_index_interval, big-endian
			0x00, 0x00, 0x00, 0x00, // size == 0, big-endian
			0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88, // memory_size, big-endian
			0x0a, 0x0b, 0x0c, 0x0d, // sampling_level, big-endian
			0x00, 0x00, 0x00, 0x00, // size_at_full_sampling == 0, big-endian
			// no positions: one is stored per entry, and there are none
			0x00, 0x00, 0x00, 0x01, 'a', // first_key
			0x00, 0x00, 0x00, 0x01, 'z', // last_key
		}
		Expect(buf.Bytes()).To(Equal(want))
	})
})
