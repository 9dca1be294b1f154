package sstable

import (
	"io"
	"math"

	"github.com/spaolacci/murmur3"
)

// This file implements the Filter.db component: a bloom
// filter parameterized by bit count and hash count, serialized as
// hash_count:u32 ‖ bit_count:u64 ‖ bits as u64-array. The k independent
// hash functions are derived from the two 64-bit halves of one murmur3
// 128-bit hash via Kirsch–Mitzenmacher double hashing, grounded on grailbio-bigslice's use of
// github.com/spaolacci/murmur3 for hash-partitioning (frame/ops.go,
// frame/ops_builtin.go) — see DESIGN.md for why the bit array itself is
// hand-rolled rather than delegated to a bloom-filter library.

// Filter is the in-memory mirror of Filter.db.
type Filter struct {
	HashCount uint32
	BitCount  uint64
	Bits      []uint64 // bit_count/64 (rounded up) words
}

// NewFilter sizes a filter for n expected elements at false-positive
// probability p, using the standard bloom-filter formulas:
//
//	m = ceil(-n*ln(p) / ln(2)^2)
//	k = round(m/n * ln(2))
func NewFilter(n uint64, p float64) *Filter {
	if n == 0 {
		n = 1
	}
	if p <= 0 || p >= 1 {
		p = 0.01
	}
	m := uint64(math.Ceil(-float64(n) * math.Log(p) / (math.Ln2 * math.Ln2)))
	if m == 0 {
		m = 1
	}
	k := uint32(math.Round(float64(m) / float64(n) * math.Ln2))
	if k < 1 {
		k = 1
	}
	words := (m + 63) / 64
	return &Filter{
		HashCount: k,
		BitCount:  m,
		Bits:      make([]uint64, words),
	}
}

func (f *Filter) indexes(key []byte) []uint64 {
	h1, h2 := murmur3.Sum128WithSeed(key, 0)
	idxs := make([]uint64, f.HashCount)
	for i := uint32(0); i < f.HashCount; i++ {
		combined := h1 + uint64(i)*h2
		idxs[i] = combined % f.BitCount
	}
	return idxs
}

// Add inserts key into the filter.
func (f *Filter) Add(key []byte) {
	for _, idx := range f.indexes(key) {
		f.Bits[idx/64] |= 1 << (idx % 64)
	}
}

// Contains reports whether key may have been added (false positives
// possible; false negatives never).
func (f *Filter) Contains(key []byte) bool {
	for _, idx := range f.indexes(key) {
		if f.Bits[idx/64]&(1<<(idx%64)) == 0 {
			return false
		}
	}
	return true
}

// ReadFilter parses the Filter.db component.
func ReadFilter(r io.Reader) (*Filter, error) {
	hashCount, err := readUint32(r)
	if err != nil {
		return nil, wrapMalformed(err, "hash_count")
	}
	bitCount, err := readUint64(r)
	if err != nil {
		return nil, wrapMalformed(err, "bit_count")
	}
	words := (bitCount + 63) / 64
	bits := make([]uint64, words)
	for i := range bits {
		v, err := readUint64(r)
		if err != nil {
			return nil, wrapMalformed(err, "bits[%d]", i)
		}
		bits[i] = v
	}
	return &Filter{HashCount: hashCount, BitCount: bitCount, Bits: bits}, nil
}

// WriteFilter serializes the Filter.db component.
func WriteFilter(w io.Writer, f *Filter) error {
	if err := writeUint32(w, f.HashCount); err != nil {
		return err
	}
	if err := writeUint64(w, f.BitCount); err != nil {
		return err
	}
	for _, word := range f.Bits {
		if err := writeUint64(w, word); err != nil {
			return err
		}
	}
	return nil
}
