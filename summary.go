package sstable

import (
	"encoding/binary"
	"io"
)

// BaseSamplingLevel is the reference sampling level summary entries are
// scaled against when the summary is downsampled (sstables.cc
// BASE_SAMPLING_LEVEL).
const BaseSamplingLevel = 128

// SummaryHeader mirrors summary::header. Its fields go through the
// generic integral read_integer/write path (net::ntoh/net::hton) like
// every other component's scalars — big-endian. Only the positions array
// and each entry's trailing position field are native-endian.
type SummaryHeader struct {
	MinIndexInterval    uint32
	Size                uint32
	MemorySize          uint64
	SamplingLevel       uint32
	SizeAtFullSampling  uint32
}

// SummaryEntry is one sampled key and its Index.db byte offset.
type SummaryEntry struct {
	Key      []byte
	Position uint64
}

// Summary mirrors the Summary.db component in full: header (big-endian),
// positions (native-endian, one per entry on disk; after ReadSummary the
// in-memory slice has one more entry than Entries — the last is a
// sentinel equal to header.MemorySize), entries, and first/last key.
type Summary struct {
	Header    SummaryHeader
	Positions []uint32
	Entries   []SummaryEntry
	FirstKey  []byte
	LastKey   []byte
}

var nativeOrder binary.ByteOrder = binary.LittleEndian

func readNativeUint32(r io.Reader) (uint32, error) {
	buf, err := readFull(r, 4)
	if err != nil {
		return 0, err
	}
	return nativeOrder.Uint32(buf), nil
}

func writeNativeUint32(w io.Writer, v uint32) error {
	var buf [4]byte
	nativeOrder.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func readNativeUint64(r io.Reader) (uint64, error) {
	buf, err := readFull(r, 8)
	if err != nil {
		return 0, err
	}
	return nativeOrder.Uint64(buf), nil
}

func writeNativeUint64(w io.Writer, v uint64) error {
	var buf [8]byte
	nativeOrder.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

// ReadSummary parses the Summary.db component (sstables.cc lines 411-492).
func ReadSummary(r io.Reader) (*Summary, error) {
	var h SummaryHeader
	var err error
	if h.MinIndexInterval, err = readUint32(r); err != nil {
		return nil, wrapMalformed(err, "summary.min_index_interval")
	}
	if h.Size, err = readUint32(r); err != nil {
		return nil, wrapMalformed(err, "summary.size")
	}
	if h.MemorySize, err = readUint64(r); err != nil {
		return nil, wrapMalformed(err, "summary.memory_size")
	}
	if h.SamplingLevel, err = readUint32(r); err != nil {
		return nil, wrapMalformed(err, "summary.sampling_level")
	}
	if h.SizeAtFullSampling, err = readUint32(r); err != nil {
		return nil, wrapMalformed(err, "summary.size_at_full_sampling")
	}

	// The file stores one position per entry; in memory, positions gets a
	// trailing sentinel equal to header.memory_size appended after reading
	// (sstables.cc: s.positions.push_back(s.header.memory_size)).
	positions := make([]uint32, h.Size, h.Size+1)
	for i := range positions {
		v, err := readNativeUint32(r)
		if err != nil {
			return nil, wrapMalformed(err, "summary.positions[%d]", i)
		}
		positions[i] = v
	}
	positions = append(positions, uint32(h.MemorySize))

	entries := make([]SummaryEntry, h.Size)
	for i := uint32(0); i < h.Size; i++ {
		var entryLen uint32
		if i+1 < uint32(len(positions)) {
			entryLen = positions[i+1] - positions[i]
		}
		if entryLen < 8 {
			return nil, malformed("summary entry[%d]: length %d too small for key+position", i, entryLen)
		}
		key, err := readFull(r, int(entryLen-8))
		if err != nil {
			return nil, wrapMalformed(err, "summary.entries[%d].key", i)
		}
		pos, err := readNativeUint64(r)
		if err != nil {
			return nil, wrapMalformed(err, "summary.entries[%d].position", i)
		}
		entries[i] = SummaryEntry{Key: key, Position: pos}
	}

	firstKey, err := readSizedString[uint32](r)
	if err != nil {
		return nil, wrapMalformed(err, "summary.first_key")
	}
	lastKey, err := readSizedString[uint32](r)
	if err != nil {
		return nil, wrapMalformed(err, "summary.last_key")
	}

	return &Summary{
		Header:    h,
		Positions: positions,
		Entries:   entries,
		FirstKey:  firstKey,
		LastKey:   lastKey,
	}, nil
}

// WriteSummary serializes the Summary.db component, recomputing Positions
// from Entries so callers never have to keep the two in sync by hand. Only
// one position per entry is written; the sentinel is not stored, and
// ReadSummary rebuilds it from header.MemorySize, which must therefore
// equal the byte length of the entries block.
func WriteSummary(w io.Writer, s *Summary) error {
	if err := writeUint32(w, s.Header.MinIndexInterval); err != nil {
		return err
	}
	size, err := checkTruncateUint32(len(s.Entries))
	if err != nil {
		return err
	}
	if err := writeUint32(w, size); err != nil {
		return err
	}
	if err := writeUint64(w, s.Header.MemorySize); err != nil {
		return err
	}
	if err := writeUint32(w, s.Header.SamplingLevel); err != nil {
		return err
	}
	if err := writeUint32(w, s.Header.SizeAtFullSampling); err != nil {
		return err
	}

	positions := make([]uint32, len(s.Entries))
	pos := uint32(0)
	for i, e := range s.Entries {
		positions[i] = pos
		pos += uint32(len(e.Key)) + 8
	}

	for _, p := range positions {
		if err := writeNativeUint32(w, p); err != nil {
			return err
		}
	}
	for _, e := range s.Entries {
		if _, err := w.Write(e.Key); err != nil {
			return err
		}
		if err := writeNativeUint64(w, e.Position); err != nil {
			return err
		}
	}
	if err := writeSizedString[uint32](w, s.FirstKey); err != nil {
		return err
	}
	return writeSizedString[uint32](w, s.LastKey)
}

// maybeAddSummaryEntry samples one partition key per min_index_interval
// partitions written, recording its Index.db offset (sstables.cc
// maybe_add_summary_entry: "keys_written % min_index_interval == 0").
func maybeAddSummaryEntry(s *Summary, key []byte, indexPosition uint64, keysWritten uint64, minIndexInterval uint32) {
	if minIndexInterval == 0 || keysWritten%uint64(minIndexInterval) == 0 {
		s.Entries = append(s.Entries, SummaryEntry{Key: append([]byte(nil), key...), Position: indexPosition})
	}
}

// PrepareSummary initializes a Summary for construction at the given
// min_index_interval and the conventional base sampling level.
func PrepareSummary(minIndexInterval uint32) *Summary {
	return &Summary{
		Header: SummaryHeader{
			MinIndexInterval: minIndexInterval,
			SamplingLevel:    BaseSamplingLevel,
		},
	}
}

// SealSummary finalizes header.size, size_at_full_sampling and memory_size
// once every entry has been added (sstables.cc seal_summary).
func SealSummary(s *Summary, dataMemorySize uint64) error {
	size, err := checkTruncateUint32(len(s.Entries))
	if err != nil {
		return err
	}
	s.Header.Size = size
	s.Header.SizeAtFullSampling = size
	s.Header.MemorySize = dataMemorySize
	return nil
}
