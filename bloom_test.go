package sstable_test

import (
	"bytes"
	"fmt"

	"github.com/bsm/sstable"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Filter", func() {
	It("never false-negatives for inserted keys", func() {
		f := sstable.NewFilter(1000, 0.01)
		keys := make([][]byte, 0, 1000)
		for i := 0; i < 1000; i++ {
			k := []byte(fmt.Sprintf("key-%d", i))
			f.Add(k)
			keys = append(keys, k)
		}
		for _, k := range keys {
			Expect(f.Contains(k)).To(BeTrue())
		}
	})

	It("round-trips through Filter.db", func() {
		f := sstable.NewFilter(100, 0.05)
		f.Add([]byte("alpha"))
		f.Add([]byte("beta"))

		var buf bytes.Buffer
		Expect(sstable.WriteFilter(&buf, f)).To(Succeed())

		got, err := sstable.ReadFilter(&buf)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.HashCount).To(Equal(f.HashCount))
		Expect(got.BitCount).To(Equal(f.BitCount))
		Expect(got.Bits).To(Equal(f.Bits))
		Expect(got.Contains([]byte("alpha"))).To(BeTrue())
		Expect(got.Contains([]byte("beta"))).To(BeTrue())
	})
})
