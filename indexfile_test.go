package sstable_test

import (
	"bytes"

	"github.com/bsm/sstable"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("IndexEntry", func() {
	It("round-trips with an empty promoted index", func() {
		var buf bytes.Buffer
		Expect(sstable.WriteIndexEntry(&buf, []byte("partition-key"), 4096, nil)).To(Succeed())

		got, err := sstable.ReadIndexEntry(&buf)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Key).To(Equal([]byte("partition-key")))
		Expect(got.Position).To(Equal(uint64(4096)))
		Expect(got.PromotedIndex).To(BeEmpty())
	})

	It("fails on an empty stream rather than returning a zero entry", func() {
		_, err := sstable.ReadIndexEntry(bytes.NewReader(nil))
		Expect(err).To(HaveOccurred())
	})
})
