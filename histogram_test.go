package sstable_test

import (
	"bytes"

	"github.com/bsm/sstable"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("EstimatedHistogram", func() {
	It("buckets a value into the smallest offset >= value, overflow in the last bucket", func() {
		h := sstable.NewTombstoneHistogram()
		h.Update(0)
		h.Update(1)
		h.Update(1 << 40)

		Expect(h.Buckets[0]).To(Equal(uint64(2)))
		Expect(h.Buckets[len(h.Buckets)-1]).To(Equal(uint64(1)))
	})

	It("round-trips, including the duplicated first offset slot", func() {
		h := sstable.NewTombstoneHistogram()
		h.Update(5)

		var buf bytes.Buffer
		Expect(sstable.WriteEstimatedHistogram(&buf, h)).To(Succeed())

		got, err := sstable.ReadEstimatedHistogram(&buf)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Buckets).To(Equal(h.Buckets))
		Expect(got.BucketOffsets).To(Equal(h.BucketOffsets))
	})

	It("rejects a zero-length histogram on read", func() {
		_, err := sstable.ReadEstimatedHistogram(bytes.NewReader([]byte{0, 0, 0, 0}))
		Expect(err).To(HaveOccurred())
	})
})
