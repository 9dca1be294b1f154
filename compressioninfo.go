package sstable

import (
	"io"
	"sort"
)

// CompressionInfo mirrors the CompressionInfo.db component:
// compressor name ‖ options (hash of sized strings) ‖ chunk_len:u32 ‖
// data_len:u64 ‖ offsets (sized array of u64).
type CompressionInfo struct {
	CompressorName string
	Options        map[string]string
	ChunkLen       uint32
	DataLen        uint64
	Offsets        []uint64
}

// ReadCompressionInfo parses the CompressionInfo.db component.
func ReadCompressionInfo(r io.Reader) (*CompressionInfo, error) {
	name, err := readSizedString[uint32](r)
	if err != nil {
		return nil, wrapMalformed(err, "compressor name")
	}
	opts, err := readSizedHash[uint32, string, string](r,
		func(r io.Reader) (string, error) {
			b, err := readSizedString[uint16](r)
			return string(b), err
		},
		func(r io.Reader) (string, error) {
			b, err := readSizedString[uint16](r)
			return string(b), err
		},
	)
	if err != nil {
		return nil, wrapMalformed(err, "compression options")
	}
	chunkLen, err := readUint32(r)
	if err != nil {
		return nil, wrapMalformed(err, "chunk_len")
	}
	dataLen, err := readUint64(r)
	if err != nil {
		return nil, wrapMalformed(err, "data_len")
	}
	offsets, err := readSizedIntArray[uint32, uint64](r, 8)
	if err != nil {
		return nil, wrapMalformed(err, "offsets")
	}
	return &CompressionInfo{
		CompressorName: string(name),
		Options:        opts,
		ChunkLen:       chunkLen,
		DataLen:        dataLen,
		Offsets:        offsets,
	}, nil
}

// WriteCompressionInfo serializes the CompressionInfo.db component.
func WriteCompressionInfo(w io.Writer, c *CompressionInfo) error {
	if err := writeSizedString[uint32](w, []byte(c.CompressorName)); err != nil {
		return err
	}

	keys := make([]string, 0, len(c.Options))
	for k := range c.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	entries := make([]sizedHashEntry[string, string], len(keys))
	for i, k := range keys {
		entries[i] = sizedHashEntry[string, string]{Key: k, Value: c.Options[k]}
	}
	if err := writeSizedHash[uint32](w, entries,
		func(w io.Writer, s string) error { return writeSizedString[uint16](w, []byte(s)) },
		func(w io.Writer, s string) error { return writeSizedString[uint16](w, []byte(s)) },
	); err != nil {
		return err
	}

	if err := writeUint32(w, c.ChunkLen); err != nil {
		return err
	}
	if err := writeUint64(w, c.DataLen); err != nil {
		return err
	}
	return writeSizedIntArray[uint32](w, c.Offsets, 8)
}
