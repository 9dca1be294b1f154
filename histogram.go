package sstable

import "io"

// EstimatedHistogram mirrors estimated_histogram:
// length:u32 ‖ (offset:u64, count:u64)×length. On read, bucket_offsets has
// length-1 entries while buckets has length entries — the first offset
// slot is a duplicated-or-zero placeholder kept for symmetry with the
// source format.
type EstimatedHistogram struct {
	BucketOffsets []uint64 // len == len(Buckets)-1
	Buckets       []uint64
}

// NewTombstoneHistogram builds the 90-bucket, exponentially-widening
// histogram used to track tombstone local-deletion-times.
func NewTombstoneHistogram() *EstimatedHistogram {
	const bucketCount = 90
	offsets := make([]uint64, bucketCount-1)
	// Exponentially increasing bucket widths, matching Cassandra's
	// EstimatedHistogram default construction (each bucket ~1.1x the last).
	val := int64(1)
	for i := 0; i < bucketCount-1; i++ {
		offsets[i] = uint64(val)
		next := val + maxInt64(1, val/10)
		val = next
	}
	return &EstimatedHistogram{
		BucketOffsets: offsets,
		Buckets:       make([]uint64, bucketCount),
	}
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// Update increments the bucket whose offset is the smallest one >= value.
func (h *EstimatedHistogram) Update(value int64) {
	idx := len(h.BucketOffsets) // last bucket (overflow) by default
	for i, off := range h.BucketOffsets {
		if value <= int64(off) {
			idx = i
			break
		}
	}
	h.Buckets[idx]++
}

// ReadEstimatedHistogram parses an estimated_histogram value.
func ReadEstimatedHistogram(r io.Reader) (*EstimatedHistogram, error) {
	length, err := readUint32(r)
	if err != nil {
		return nil, wrapMalformed(err, "estimated_histogram length")
	}
	if length == 0 {
		return nil, malformed("estimated_histogram: length must be > 0")
	}
	offsets := make([]uint64, length-1)
	buckets := make([]uint64, length)
	for i := uint32(0); i < length; i++ {
		off, err := readUint64(r)
		if err != nil {
			return nil, wrapMalformed(err, "estimated_histogram offset[%d]", i)
		}
		cnt, err := readUint64(r)
		if err != nil {
			return nil, wrapMalformed(err, "estimated_histogram count[%d]", i)
		}
		if i > 0 {
			offsets[i-1] = off
		}
		buckets[i] = cnt
	}
	return &EstimatedHistogram{BucketOffsets: offsets, Buckets: buckets}, nil
}

// WriteEstimatedHistogram serializes an estimated_histogram value. The
// first offset slot on the wire duplicates offsets[0] (or zero if there are
// no offsets), matching sstables.cc's symmetry placeholder.
func WriteEstimatedHistogram(w io.Writer, h *EstimatedHistogram) error {
	length, err := checkTruncateUint32(len(h.Buckets))
	if err != nil {
		return err
	}
	if err := writeUint32(w, length); err != nil {
		return err
	}
	for i := range h.Buckets {
		var off uint64
		if i == 0 {
			if len(h.BucketOffsets) > 0 {
				off = h.BucketOffsets[0]
			}
		} else {
			off = h.BucketOffsets[i-1]
		}
		if err := writeUint64(w, off); err != nil {
			return err
		}
		if err := writeUint64(w, h.Buckets[i]); err != nil {
			return err
		}
	}
	return nil
}
